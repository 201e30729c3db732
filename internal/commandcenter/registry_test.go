package commandcenter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

func testFactory(gw *fakeGateway, now func() time.Time) Factory {
	return func(userID, sessionID string) (*Controller, error) {
		return New(Config{Gateway: gw, UserID: userID, SessionID: sessionID, Now: now})
	}
}

func TestRegistryGetCreatesOncePerSession(t *testing.T) {
	reg := NewRegistry(testFactory(answer(nil, nil), nil))
	defer func() { require.NoError(t, reg.Close(context.Background())) }()

	a, err := reg.Get("u1", "s1")
	require.NoError(t, err)
	again, err := reg.Get("u1", "s1")
	require.NoError(t, err)
	other, err := reg.Get("u1", "s2")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, reg.Len())

	found, ok := reg.Lookup("u1", "s2")
	assert.True(t, ok)
	assert.Same(t, other, found)
	_, ok = reg.Lookup("u2", "s1")
	assert.False(t, ok)
}

func TestRegistryFactoryError(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry(func(string, string) (*Controller, error) { return nil, boom })

	_, err := reg.Get("u1", "s1")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, reg.Len())
}

func TestRegistryCloseRejectsNewSessions(t *testing.T) {
	reg := NewRegistry(testFactory(answer(nil, nil), nil))
	c, err := reg.Get("u1", "s1")
	require.NoError(t, err)

	require.NoError(t, reg.Close(context.Background()))

	_, err = reg.Get("u1", "s2")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Submit(context.Background(), "eth")
	assert.ErrorIs(t, err, ErrClosed)
}

type fakeRetention struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *fakeRetention) DeleteOlderThan(_ context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, age)
	return 3, nil
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	release := make(chan struct{})
	gw := &fakeGateway{fn: func(context.Context, domain.CollectRequest) (*domain.APIResponse, error) {
		<-release
		return nil, errors.New("late")
	}}
	reg := NewRegistry(testFactory(gw, clock))

	idle, err := reg.Get("u1", "idle")
	require.NoError(t, err)
	busy, err := reg.Get("u1", "busy")
	require.NoError(t, err)
	sub, err := busy.Submit(context.Background(), "eth")
	require.NoError(t, err)

	advance(time.Hour)
	fresh, err := reg.Get("u1", "fresh")
	require.NoError(t, err)
	fresh.Ready()

	var evicted []*Controller
	retention := &fakeRetention{}
	sweep(context.Background(), reg, retention, TTLConfig{IdleTTL: 30 * time.Minute, Retention: 48 * time.Hour, Now: clock},
		func(c *Controller) { evicted = append(evicted, c) })

	require.Len(t, evicted, 1)
	assert.Same(t, idle, evicted[0])
	assert.Equal(t, 2, reg.Len())
	_, ok := reg.Lookup("u1", "idle")
	assert.False(t, ok)
	_, ok = reg.Lookup("u1", "busy")
	assert.True(t, ok, "sessions with queries in flight are kept")
	assert.Equal(t, []time.Duration{48 * time.Hour}, retention.calls)

	close(release)
	<-sub.Done()
	require.NoError(t, reg.Close(context.Background()))
}

func TestEvictIdleNeverDropsAcceptedSubmission(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := base.Add(-time.Hour)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	for i := 0; i < 200; i++ {
		mu.Lock()
		now = base.Add(-time.Hour)
		mu.Unlock()

		reg := NewRegistry(testFactory(answer(nil, errors.New("offline")), clock))
		c, err := reg.Get("u1", "s1")
		require.NoError(t, err)

		mu.Lock()
		now = base
		mu.Unlock()

		var (
			wg      sync.WaitGroup
			submit  error
			evicted []*Controller
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, submit = c.Submit(context.Background(), "eth price")
		}()
		go func() {
			defer wg.Done()
			evicted = reg.evictIdle(base.Add(-30 * time.Minute))
		}()
		wg.Wait()

		_, kept := reg.Lookup("u1", "s1")
		if submit == nil {
			assert.True(t, kept, "iteration %d: accepted submission on an evicted session", i)
			assert.Empty(t, evicted)
		} else {
			assert.ErrorIs(t, submit, ErrClosed)
			assert.False(t, kept)
		}

		require.NoError(t, c.Wait(context.Background()))
		require.NoError(t, reg.Close(context.Background()))
	}
}

func TestStartTTLWorkerStopsOnCancel(t *testing.T) {
	reg := NewRegistry(testFactory(answer(nil, nil), nil))
	retention := &fakeRetention{}
	ctx, cancel := context.WithCancel(context.Background())

	StartTTLWorker(ctx, reg, retention, TTLConfig{Interval: 5 * time.Millisecond, Retention: time.Hour}, nil)

	require.Eventually(t, func() bool {
		retention.mu.Lock()
		defer retention.mu.Unlock()
		return len(retention.calls) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
}
