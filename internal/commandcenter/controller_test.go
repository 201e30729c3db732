package commandcenter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/conversation"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/gateway"
	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGateway answers Collect with fn and records every request.
type fakeGateway struct {
	mu       sync.Mutex
	requests []domain.CollectRequest
	fn       func(ctx context.Context, req domain.CollectRequest) (*domain.APIResponse, error)
}

func (g *fakeGateway) Collect(ctx context.Context, req domain.CollectRequest) (*domain.APIResponse, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	return g.fn(ctx, req)
}

func (g *fakeGateway) Requests() []domain.CollectRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.CollectRequest(nil), g.requests...)
}

func answer(resp *domain.APIResponse, err error) *fakeGateway {
	return &fakeGateway{fn: func(context.Context, domain.CollectRequest) (*domain.APIResponse, error) {
		return resp, err
	}}
}

type fakeAuditor struct {
	mu        sync.Mutex
	recorded  []domain.QueryRecord
	completed []store.Completion
}

func (a *fakeAuditor) RecordQuery(_ context.Context, q *domain.QueryRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recorded = append(a.recorded, *q)
	return nil
}

func (a *fakeAuditor) CompleteQuery(_ context.Context, c store.Completion) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completed = append(a.completed, c)
	return nil
}

func ethPayload() *domain.AggregatedOracleData {
	return &domain.AggregatedOracleData{
		AggregatedValue: map[string]any{
			"price":     3500.5,
			"change24h": -2.13,
			"volume24h": 1000000.0,
			"marketCap": 400000000.0,
		},
		Sources:       []string{"chainlink"},
		Confidence:    0.92,
		ExecutionTime: 120,
	}
}

func newController(t *testing.T, gw *fakeGateway) *Controller {
	t.Helper()
	c, err := New(Config{Gateway: gw, UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Wait(ctx)
	})
	return c
}

func submitAndWait(t *testing.T, c *Controller, text string) *Submission {
	t.Helper()
	sub, err := c.Submit(context.Background(), text)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sub.Wait(ctx))
	return sub
}

func TestSubmitEmptyMessage(t *testing.T) {
	c := newController(t, answer(nil, nil))

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Submit(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Zero(t, c.Store().Len())
}

func TestSubmitPriceQueryResolves(t *testing.T) {
	gw := answer(&domain.APIResponse{Success: true, Data: ethPayload()}, nil)
	c := newController(t, gw)

	sub := submitAndWait(t, c, "What's the ETH price?")
	assert.True(t, sub.Routed())
	assert.Equal(t, domain.OracleKindPriceFeed, sub.Kind)
	require.NotNil(t, sub.Intent)
	assert.Equal(t, "ETH/USD", sub.Parameters[domain.ParamSymbol])

	entries := c.Store().Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.RoleUser, entries[0].Role)
	assert.Equal(t, "What's the ETH price?", entries[0].Text)

	oracle := entries[1]
	assert.Equal(t, sub.OracleEntryID, oracle.ID)
	assert.Equal(t, domain.StatusResolvedOK, oracle.Status)
	for _, want := range []string{"$3,500.5", "-2.13%", "92.0%", "120ms"} {
		assert.Contains(t, oracle.Text, want)
	}
	assert.NotNil(t, oracle.RawPayload)

	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"chainlink"}, reqs[0].Sources)
	assert.Equal(t, domain.OracleKindPriceFeed, reqs[0].DataType)
	assert.Equal(t, "ETH/USD", reqs[0].Parameters["symbol"])
	assert.Zero(t, c.Pending())
}

func TestSubmitApplicationFailure(t *testing.T) {
	gw := answer(&domain.APIResponse{
		Success: false,
		Error:   &domain.APIError{Code: "X", Message: "down"},
	}, nil)
	c := newController(t, gw)

	sub := submitAndWait(t, c, "bitcoin price")

	entry, ok := c.Store().Get(sub.OracleEntryID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusResolvedError, entry.Status)
	assert.Equal(t, "Oracle request failed: down", entry.Text)
}

func TestSubmitFailureMessages(t *testing.T) {
	partial := &domain.AggregatedOracleData{Confidence: 0.4, Sources: []string{"weather"}}

	tests := []struct {
		name        string
		resp        *domain.APIResponse
		err         error
		wantText    string
		wantPayload *domain.AggregatedOracleData
	}{
		{
			name:     "transport error",
			err:      errors.New("dial tcp: connection refused"),
			wantText: TransportFailureMessage,
		},
		{
			name:     "failure without message",
			resp:     &domain.APIResponse{Success: false},
			wantText: "No data available from oracle.",
		},
		{
			name:        "failure keeps partial payload",
			resp:        &domain.APIResponse{Success: false, Data: partial, Error: &domain.APIError{Code: "E"}},
			wantText:    "No data available from oracle.",
			wantPayload: partial,
		},
		{
			name:     "success without data",
			resp:     &domain.APIResponse{Success: true},
			wantText: "No data available from oracle.",
		},
		{
			name:        "success without aggregated value",
			resp:        &domain.APIResponse{Success: true, Data: partial},
			wantText:    "No data available from oracle.",
			wantPayload: partial,
		},
		{
			name:     "nil response",
			wantText: "No data available from oracle.",
		},
		{
			name:     "undecodable body",
			err:      fmt.Errorf("%w: unexpected end of JSON input", gateway.ErrDecode),
			wantText: "No data available from oracle.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(t, answer(tt.resp, tt.err))

			sub := submitAndWait(t, c, "weather in Paris")

			entry, ok := c.Store().Get(sub.OracleEntryID)
			require.True(t, ok)
			assert.Equal(t, domain.StatusResolvedError, entry.Status)
			assert.Equal(t, tt.wantText, entry.Text)
			assert.Same(t, tt.wantPayload, entry.RawPayload)
		})
	}
}

func TestSubmitWithoutIntentAppendsGuidance(t *testing.T) {
	gw := answer(nil, errors.New("must not be called"))
	c := newController(t, gw)

	sub := submitAndWait(t, c, "hello there")
	assert.False(t, sub.Routed())

	entries := c.Store().Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.RoleOracle, entries[1].Role)
	assert.Equal(t, domain.StatusResolvedError, entries[1].Status)
	assert.Equal(t, GuidanceMessage, entries[1].Text)
	assert.Empty(t, gw.Requests())
}

func TestExplicitSelectionOverridesInference(t *testing.T) {
	gw := answer(&domain.APIResponse{Success: true, Data: ethPayload()}, nil)
	c := newController(t, gw)
	require.NoError(t, c.SelectOracle(domain.OracleKindPriceFeed))

	sub := submitAndWait(t, c, "what's the weather in Paris")

	assert.Equal(t, domain.OracleKindPriceFeed, sub.Kind)
	require.NotNil(t, sub.Intent)
	assert.Equal(t, domain.OracleKindWeather, sub.Intent.Kind)
	assert.Equal(t, map[string]string{domain.ParamSymbol: "ETH/USD"}, sub.Parameters)

	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.OracleKindPriceFeed, reqs[0].DataType)
}

func TestSelectionUsesDefaultsWhenNothingInferred(t *testing.T) {
	gw := answer(&domain.APIResponse{Success: true, Data: &domain.AggregatedOracleData{AggregatedValue: map[string]any{}}}, nil)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c, err := New(Config{Gateway: gw, Now: func() time.Time { return now }})
	require.NoError(t, err)
	defer func() {
		c.Close()
		require.NoError(t, c.Wait(context.Background()))
	}()
	require.NoError(t, c.SelectOracle(domain.OracleKindSpace))

	sub := submitAndWait(t, c, "anything new out there")

	assert.Nil(t, sub.Intent)
	assert.Equal(t, "2025-03-10", sub.Parameters[domain.ParamDate])
	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"nasa"}, reqs[0].Sources)
	assert.Equal(t, "asteroid", reqs[0].Parameters["spaceDataType"])
}

func TestSelectOracle(t *testing.T) {
	c := newController(t, answer(nil, nil))

	assert.Equal(t, domain.OracleKind(""), c.Selection())
	require.NoError(t, c.SelectOracle(domain.OracleKindWeather))
	assert.Equal(t, domain.OracleKindWeather, c.Selection())

	err := c.SelectOracle(domain.OracleKindIoTSensor)
	assert.ErrorIs(t, err, ErrUnsupportedOracle)
	assert.Equal(t, domain.OracleKindWeather, c.Selection())

	require.NoError(t, c.SelectOracle(""))
	assert.Equal(t, domain.OracleKind(""), c.Selection())
}

func TestReadySeedsWelcomeOnce(t *testing.T) {
	c := newController(t, answer(nil, nil))

	c.Ready()
	c.Ready()

	entries := c.Store().Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.RoleSystem, entries[0].Role)
	assert.Equal(t, WelcomeMessage, entries[0].Text)
}

func TestSubmitOutlivesCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{fn: func(ctx context.Context, _ domain.CollectRequest) (*domain.APIResponse, error) {
		<-release
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &domain.APIResponse{Success: true, Data: ethPayload()}, nil
	}}
	c := newController(t, gw)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := c.Submit(ctx, "eth")
	require.NoError(t, err)

	entry, _ := c.Store().Get(sub.OracleEntryID)
	assert.Equal(t, domain.StatusPending, entry.Status)
	assert.Equal(t, PendingMessage, entry.Text)
	assert.Equal(t, int64(1), c.Pending())

	cancel()
	close(release)
	<-sub.Done()

	entry, _ = c.Store().Get(sub.OracleEntryID)
	assert.Equal(t, domain.StatusResolvedOK, entry.Status)
}

func TestConcurrentSubmissionsResolveOutOfOrder(t *testing.T) {
	gates := map[string]chan struct{}{
		"ETH/USD": make(chan struct{}),
		"BTC/USD": make(chan struct{}),
	}
	gw := &fakeGateway{fn: func(_ context.Context, req domain.CollectRequest) (*domain.APIResponse, error) {
		symbol, _ := req.Parameters["symbol"].(string)
		<-gates[symbol]
		data := ethPayload()
		data.AggregatedValue.(map[string]any)["price"] = 1.0
		return &domain.APIResponse{Success: true, Data: data}, nil
	}}
	c := newController(t, gw)

	first, err := c.Submit(context.Background(), "eth price")
	require.NoError(t, err)
	second, err := c.Submit(context.Background(), "btc price")
	require.NoError(t, err)

	close(gates["BTC/USD"])
	<-second.Done()

	firstEntry, _ := c.Store().Get(first.OracleEntryID)
	secondEntry, _ := c.Store().Get(second.OracleEntryID)
	assert.Equal(t, domain.StatusPending, firstEntry.Status)
	assert.Equal(t, domain.StatusResolvedOK, secondEntry.Status)
	assert.Contains(t, secondEntry.Text, "BTC/USD")

	close(gates["ETH/USD"])
	<-first.Done()

	firstEntry, _ = c.Store().Get(first.OracleEntryID)
	assert.Equal(t, domain.StatusResolvedOK, firstEntry.Status)
	assert.Contains(t, firstEntry.Text, "ETH/USD")

	entries := c.Store().Snapshot()
	require.Len(t, entries, 4)
	assert.Equal(t, first.OracleEntryID, entries[1].ID)
	assert.Equal(t, second.OracleEntryID, entries[3].ID)
}

func TestEveryRoutedSubmissionResolvesExactlyOnce(t *testing.T) {
	gw := answer(&domain.APIResponse{Success: true, Data: ethPayload()}, nil)
	s := conversation.NewStore()
	c, err := New(Config{Gateway: gw, Store: s})
	require.NoError(t, err)

	events, cancel := s.Subscribe(256)
	defer cancel()

	const n = 20
	subs := make([]*Submission, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub, err := c.Submit(context.Background(), fmt.Sprintf("eth price #%d", i))
			assert.NoError(t, err)
			subs[i] = sub
		}(i)
	}
	wg.Wait()
	c.Close()
	require.NoError(t, c.Wait(context.Background()))

	updates := make(map[string]int)
	for len(events) > 0 {
		ev := <-events
		if ev.Type == conversation.EventUpdated {
			updates[ev.Entry.ID]++
			assert.Equal(t, domain.StatusResolvedOK, ev.Entry.Status)
		}
	}
	require.Len(t, updates, n)
	for _, sub := range subs {
		assert.Equal(t, 1, updates[sub.OracleEntryID])
	}
}

func TestSubmitAuditsQueries(t *testing.T) {
	auditor := &fakeAuditor{}
	gw := answer(nil, errors.New("timeout"))
	c, err := New(Config{Gateway: gw, Auditor: auditor, UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)

	sub := submitAndWait(t, c, "asteroid data for 2024-01-15")
	c.Close()
	require.NoError(t, c.Wait(context.Background()))

	auditor.mu.Lock()
	defer auditor.mu.Unlock()
	require.Len(t, auditor.recorded, 1)
	assert.Equal(t, sub.OracleEntryID, auditor.recorded[0].EntryID)
	assert.Equal(t, domain.OracleKindSpace, auditor.recorded[0].Kind)
	assert.Equal(t, "2024-01-15", auditor.recorded[0].Parameters[domain.ParamDate])
	assert.Equal(t, "u1", auditor.recorded[0].UserID)

	require.Len(t, auditor.completed, 1)
	assert.Equal(t, domain.StatusResolvedError, auditor.completed[0].Status)
	assert.Equal(t, "TRANSPORT", auditor.completed[0].ErrorCode)
	assert.Equal(t, "timeout", auditor.completed[0].ErrorMessage)
}

func TestSubmitAuditsDecodeFailureAsApplicationError(t *testing.T) {
	auditor := &fakeAuditor{}
	gw := answer(nil, fmt.Errorf("%w: invalid character", gateway.ErrDecode))
	c, err := New(Config{Gateway: gw, Auditor: auditor, UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)

	submitAndWait(t, c, "eth price")
	c.Close()
	require.NoError(t, c.Wait(context.Background()))

	auditor.mu.Lock()
	defer auditor.mu.Unlock()
	require.Len(t, auditor.completed, 1)
	assert.Equal(t, "DECODE", auditor.completed[0].ErrorCode)
}

func TestSubmitAfterClose(t *testing.T) {
	c := newController(t, answer(nil, nil))
	c.Close()

	_, err := c.Submit(context.Background(), "eth")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestResetDropsLateResolution(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{fn: func(context.Context, domain.CollectRequest) (*domain.APIResponse, error) {
		<-release
		return &domain.APIResponse{Success: true, Data: ethPayload()}, nil
	}}
	c := newController(t, gw)

	sub, err := c.Submit(context.Background(), "eth")
	require.NoError(t, err)
	c.Reset()
	close(release)
	<-sub.Done()

	assert.Zero(t, c.Store().Len())
}

func TestNewRequiresGateway(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Gateway: answer(nil, nil), Consensus: "vote"})
	assert.Error(t, err)
}
