// Package gateway is the HTTP client for the oracle collection service.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

const (
	collectPath = "/api/v1/oracle/collect"
	healthPath  = "/health"
)

var (
	// ErrTransport wraps network failures and timeouts.
	ErrTransport = errors.New("oracle gateway transport failure")
	// ErrUnexpectedStatus is returned for non-2xx responses without an error envelope.
	ErrUnexpectedStatus = errors.New("oracle gateway returned unexpected status")
	// ErrDecode is returned when a 2xx body is not a response envelope.
	ErrDecode = errors.New("oracle gateway returned an undecodable response")
)

// Gateway issues oracle collection requests.
type Gateway interface {
	Collect(ctx context.Context, req domain.CollectRequest) (*domain.APIResponse, error)
}

// HealthChecker probes the oracle service health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) (*domain.HealthStatus, error)
}

// sources maps each routable kind to its fixed provider list.
var sources = map[domain.OracleKind][]string{
	domain.OracleKindPriceFeed: {"chainlink"},
	domain.OracleKindWeather:   {"weather"},
	domain.OracleKindSpace:     {"nasa"},
}

// SourcesFor returns the provider list for kind.
func SourcesFor(kind domain.OracleKind) []string {
	return append([]string(nil), sources[kind]...)
}

// BuildRequest assembles the collect request for an oracle kind and its parameters.
func BuildRequest(kind domain.OracleKind, params map[string]string, method domain.ConsensusMethod) domain.CollectRequest {
	p := make(map[string]any, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	if kind == domain.OracleKindSpace {
		p[domain.ParamSpaceDataType] = "asteroid"
	}
	return domain.CollectRequest{
		Sources:         SourcesFor(kind),
		DataType:        kind,
		Parameters:      p,
		ConsensusMethod: method,
	}
}

// Config holds HTTP client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

// Client implements Gateway over HTTP.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var (
	_ Gateway       = (*Client)(nil)
	_ HealthChecker = (*Client)(nil)
)

// NewClient creates a gateway client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "zer0gravis-command-center/1.0"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)
	if cfg.RetryCount > 0 {
		client.SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(250 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second)
	}

	return &Client{http: client, logger: logger}
}

// Collect posts a collection request. A non-nil response is returned for every
// answer that carries the service envelope, including success:false.
// The body is decoded here rather than by resty so a malformed answer is
// reported as ErrDecode and never as ErrTransport.
func (c *Client) Collect(ctx context.Context, req domain.CollectRequest) (*domain.APIResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(collectPath)
	if err != nil {
		c.logger.Warn("Oracle collect request failed", "data_type", req.DataType, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	var envelope domain.APIResponse
	decodeErr := json.Unmarshal(resp.Body(), &envelope)

	if resp.IsError() {
		if decodeErr == nil && envelope.Error != nil {
			c.logger.Warn("Oracle collect returned error envelope",
				"data_type", req.DataType,
				"status", resp.StatusCode(),
				"code", envelope.Error.Code,
			)
			envelope.Success = false
			return &envelope, nil
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnexpectedStatus, resp.StatusCode(), truncate(resp.String(), 200))
	}

	if decodeErr != nil {
		c.logger.Warn("Oracle collect returned undecodable body",
			"data_type", req.DataType,
			"status", resp.StatusCode(),
			"error", decodeErr,
		)
		return nil, fmt.Errorf("%w: %w", ErrDecode, decodeErr)
	}

	c.logger.Debug("Oracle collect completed",
		"data_type", req.DataType,
		"status", resp.StatusCode(),
		"success", envelope.Success,
		"duration", resp.Time(),
	)
	return &envelope, nil
}

// Health fetches the oracle service health document.
func (c *Client) Health(ctx context.Context) (*domain.HealthStatus, error) {
	var status domain.HealthStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&status).
		Get(healthPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedStatus, resp.StatusCode())
	}
	return &status, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
