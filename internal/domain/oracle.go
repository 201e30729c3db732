// Package domain contains core domain types for the oracle command center.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OracleKind identifies an oracle data provider category.
type OracleKind string

const (
	// OracleKindPriceFeed is a Chainlink-style price feed.
	OracleKindPriceFeed OracleKind = "price_feed"
	// OracleKindWeather is a weather provider.
	OracleKindWeather OracleKind = "weather"
	// OracleKindSpace is the NASA near-earth-object feed.
	OracleKindSpace OracleKind = "space"

	// Reserved on the wire, not routed.
	OracleKindCryptoMetrics OracleKind = "crypto_metrics"
	OracleKindIoTSensor     OracleKind = "iot_sensor"
	OracleKindFinancial     OracleKind = "financial"
)

// RoutableKinds lists the oracle kinds the command center can route to, in display order.
var RoutableKinds = []OracleKind{OracleKindPriceFeed, OracleKindWeather, OracleKindSpace}

// Routable reports whether the kind is handled by the router.
func (k OracleKind) Routable() bool {
	switch k {
	case OracleKindPriceFeed, OracleKindWeather, OracleKindSpace:
		return true
	default:
		return false
	}
}

// Known reports whether the kind is part of the wire contract.
func (k OracleKind) Known() bool {
	switch k {
	case OracleKindCryptoMetrics, OracleKindIoTSensor, OracleKindFinancial:
		return true
	default:
		return k.Routable()
	}
}

// String implements fmt.Stringer.
func (k OracleKind) String() string {
	return string(k)
}

// ParseOracleKind normalizes user input into an OracleKind.
// An empty string or "none" yields the zero kind and no error.
func ParseOracleKind(s string) (OracleKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none":
		return "", nil
	case "price", "pricefeed", "price-feed":
		s = string(OracleKindPriceFeed)
	case "nasa", "asteroid":
		s = string(OracleKindSpace)
	}
	k := OracleKind(s)
	if !k.Known() {
		return "", fmt.Errorf("unknown oracle kind %q", s)
	}
	return k, nil
}

// Parameter keys extracted by the intent classifier.
const (
	ParamSymbol        = "symbol"
	ParamCity          = "city"
	ParamDate          = "date"
	ParamSpaceDataType = "spaceDataType"
)

// ParsedIntent is the classified oracle kind plus its extracted parameters.
type ParsedIntent struct {
	Kind       OracleKind        `json:"kind"`
	Parameters map[string]string `json:"parameters"`
}

// Param returns a parameter value or the fallback when absent.
func (p ParsedIntent) Param(key, fallback string) string {
	if v, ok := p.Parameters[key]; ok && v != "" {
		return v
	}
	return fallback
}

// ConsensusMethod is the aggregation strategy requested from the oracle service.
type ConsensusMethod string

const (
	ConsensusMajority        ConsensusMethod = "majority"
	ConsensusWeightedAverage ConsensusMethod = "weighted_average"
	ConsensusMedian          ConsensusMethod = "median"
	ConsensusAI              ConsensusMethod = "ai_consensus"
)

// Valid reports whether m is empty or one of the known consensus methods.
func (m ConsensusMethod) Valid() bool {
	switch m {
	case "", ConsensusMajority, ConsensusWeightedAverage, ConsensusMedian, ConsensusAI:
		return true
	default:
		return false
	}
}

// CollectRequest is the body of POST /api/v1/oracle/collect.
type CollectRequest struct {
	Sources         []string        `json:"sources"`
	DataType        OracleKind      `json:"dataType"`
	Parameters      map[string]any  `json:"parameters"`
	ConsensusMethod ConsensusMethod `json:"consensusMethod,omitempty"`
}

// DataPoint is a single provider observation contributing to an aggregate.
type DataPoint struct {
	Source     string         `json:"source"`
	DataType   string         `json:"dataType"`
	Value      any            `json:"value"`
	Timestamp  any            `json:"timestamp"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AggregatedOracleData is a provider's consensus answer. It is consumed read-only.
// Timestamps are kept as decoded: providers send epoch millis, fractional
// seconds or ISO strings, and nothing here reads them.
type AggregatedOracleData struct {
	DataType          string      `json:"dataType"`
	Sources           []string    `json:"sources"`
	AggregatedValue   any         `json:"aggregatedValue"`
	Confidence        float64     `json:"confidence"`
	Timestamp         any         `json:"timestamp"`
	DataPoints        []DataPoint `json:"dataPoints"`
	ConsensusMethod   string      `json:"consensusMethod"`
	ExecutionTime     float64     `json:"executionTime"`
	SourcesUsed       []string    `json:"sourcesUsed"`
	ConsensusAchieved bool        `json:"consensusAchieved"`
}

// HasValue reports whether the aggregate carries an aggregated value.
func (d *AggregatedOracleData) HasValue() bool {
	return d != nil && d.AggregatedValue != nil
}

// APIError is the error object of a failed oracle service response.
type APIError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// APIResponse is the oracle service response envelope.
type APIResponse struct {
	Success   bool                  `json:"success"`
	Data      *AggregatedOracleData `json:"data,omitempty"`
	Error     *APIError             `json:"error,omitempty"`
	Timestamp any                   `json:"timestamp"`
}

// HealthStatus is the oracle service health document.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp any    `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// Healthy reports whether the upstream declared itself healthy.
func (h *HealthStatus) Healthy() bool {
	return h != nil && h.Status == "healthy"
}
