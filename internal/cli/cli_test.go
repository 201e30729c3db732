package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/catalog"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/commandcenter"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/gateway"
)

// oracleService fakes the collection service. fail makes every collect answer success:false.
func oracleService(t *testing.T, fail bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"healthy","service":"zer0gravis-oracle","version":"1.2.0"}`))
		case "/api/v1/oracle/collect":
			var req domain.CollectRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if fail {
				_, _ = w.Write([]byte(`{"success":false,"error":{"code":"PROVIDER_DOWN","message":"providers offline"}}`))
				return
			}
			switch req.DataType {
			case domain.OracleKindWeather:
				_, _ = w.Write([]byte(`{"success":true,"data":{"sources":["openweathermap"],"aggregatedValue":{"temperature":18.5,"condition":"Clear"},"confidence":0.9}}`))
			default:
				_, _ = w.Write([]byte(`{"success":true,"data":{"sources":["chainlink"],"aggregatedValue":{"price":3500.5,"change24h":-2.13},"confidence":0.92,"executionTime":120}}`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("GATEWAY_TIMEOUT", "5s")
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "commandcenter version dev")
	assert.Contains(t, out, "Git commit:")
}

func TestAskRendersAnswer(t *testing.T) {
	srv := oracleService(t, false)

	out, _, err := run(t, "", "ask", "--gateway", srv.URL, "--plain", "--width", "200", "What's", "the", "ETH", "price?")
	require.NoError(t, err)
	assert.Contains(t, out, "[YOU]")
	assert.Contains(t, out, "What's the ETH price?")
	assert.Contains(t, out, "[ORACLE price_feed]")
	assert.Contains(t, out, "3,500.5")
}

func TestAskOracleFlagOverridesIntent(t *testing.T) {
	srv := oracleService(t, false)

	out, _, err := run(t, "", "ask", "--gateway", srv.URL, "--plain", "--width", "200", "--oracle", "weather", "ETH price")
	require.NoError(t, err)
	assert.Contains(t, out, "[ORACLE weather]")
	assert.Contains(t, out, "Weather in London")
}

func TestAskFailureExitsWithError(t *testing.T) {
	srv := oracleService(t, true)

	out, _, err := run(t, "", "ask", "--gateway", srv.URL, "--plain", "--width", "200", "btc price")
	require.ErrorIs(t, err, ErrOracleFailed)
	assert.Contains(t, out, "[ERROR price_feed]")
	assert.Contains(t, out, "providers offline")
}

func TestAskRejectsUnknownOracle(t *testing.T) {
	_, _, err := run(t, "", "ask", "--plain", "--oracle", "tarot", "anything")
	require.Error(t, err)
}

func TestAskWithoutIntentReturnsGuidance(t *testing.T) {
	srv := oracleService(t, false)

	out, _, err := run(t, "", "ask", "--gateway", srv.URL, "--plain", "--width", "200", "hello there")
	require.ErrorIs(t, err, ErrOracleFailed)
	assert.Contains(t, out, "Please select an oracle type first")
}

func TestChatSession(t *testing.T) {
	srv := oracleService(t, false)
	script := strings.Join([]string{
		"/oracle weather",
		"forecast please",
		"/oracle none",
		"/examples",
		"/bogus",
		"/quit",
		"never sent",
	}, "\n")

	out, _, err := run(t, script, "chat", "--gateway", srv.URL, "--plain", "--width", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome to ZeroGravis")
	assert.Contains(t, out, "Oracle set to weather")
	assert.Contains(t, out, "Oracle selection cleared")
	assert.Contains(t, out, "Weather in London")
	assert.Contains(t, out, "NASA Space Oracle (space)")
	assert.Contains(t, out, "unknown command /bogus")
	assert.NotContains(t, out, "never sent")
}

func TestChatReset(t *testing.T) {
	srv := oracleService(t, false)

	out, _, err := run(t, "eth price\n/reset\n", "chat", "--gateway", srv.URL, "--plain", "--width", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "Conversation cleared.")
}

var errClosedPipe = errors.New("write: broken pipe")

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errClosedPipe }

func TestChatReportsBrokenOutput(t *testing.T) {
	srv := oracleService(t, false)
	c, err := commandcenter.New(commandcenter.Config{
		Gateway: gateway.NewClient(gateway.Config{BaseURL: srv.URL}, nil),
		Channel: "cli",
	})
	require.NoError(t, err)
	r, err := NewRenderer(brokenWriter{}, 80, true)
	require.NoError(t, err)

	err = chat(context.Background(), c, r, catalog.Default(), strings.NewReader("eth price\nbtc price\n"), false)

	require.ErrorIs(t, err, errClosedPipe)
}

func TestProbe(t *testing.T) {
	srv := oracleService(t, false)

	out, _, err := run(t, "", "probe", "--gateway", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "zer0gravis-oracle healthy (version 1.2.0)")
}

func TestBadge(t *testing.T) {
	tests := []struct {
		entry domain.Entry
		want  string
	}{
		{domain.Entry{Role: domain.RoleUser}, "YOU"},
		{domain.Entry{Role: domain.RoleSystem}, "SYSTEM"},
		{domain.Entry{Role: domain.RoleOracle, Status: domain.StatusPending}, "PENDING"},
		{domain.Entry{Role: domain.RoleOracle, Status: domain.StatusResolvedError}, "ERROR"},
		{domain.Entry{Role: domain.RoleOracle, Status: domain.StatusResolvedOK}, "ORACLE"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Badge(tt.entry))
	}
}
