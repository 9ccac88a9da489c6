package observer

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/config"
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
	"github.com/marwen-abid/opsconnect-sdk-go/query"
	"github.com/marwen-abid/opsconnect-sdk-go/sdk"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingSource fails the fetches listed in failOn and otherwise reports
// the fetch count as data.
type countingSource struct {
	mu      sync.Mutex
	fetches int
	failOn  map[int]bool
	times   []time.Time
	lastErr error
}

func (s *countingSource) Fetch(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	s.times = append(s.times, time.Now())
	s.lastErr = nil
	if s.failOn[s.fetches] {
		s.lastErr = stderrors.New("fetch failed")
	}
	return s.lastErr
}

func (s *countingSource) Result() query.Result[int] {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.fetches
	raw := query.RawState[int]{Data: &n}
	if s.lastErr != nil {
		raw.Error = s.lastErr
	}
	return query.Adapt(raw)
}

// runUntil starts p and stops it once done reports true.
func runUntil(t *testing.T, p *Poller[int], done func() bool) {
	t.Helper()

	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(context.Background()) }()

	require.Eventually(t, done, 2*time.Second, time.Millisecond)
	require.NoError(t, p.Stop())
	require.NoError(t, <-errCh)
}

func TestPoller_DeliversResults(t *testing.T) {
	src := &countingSource{}
	p := NewPoller[int](src, WithInterval(time.Millisecond))

	var mu sync.Mutex
	var seen []int
	p.OnResult(func(res query.Result[int]) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, *res.Data)
		return nil
	})

	runUntil(t, p, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 3
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, seen[:3])
}

func TestPoller_FiltersAreANDed(t *testing.T) {
	src := &countingSource{failOn: map[int]bool{2: true}}
	p := NewPoller[int](src, WithInterval(time.Millisecond), WithBackoff(time.Millisecond, time.Millisecond))

	var failed, healthy atomic.Int32
	p.OnResult(func(res query.Result[int]) error {
		failed.Add(1)
		assert.Equal(t, "fetch failed", res.Error)
		return nil
	}, WithErrors[int](), WithData[int]())
	p.OnResult(func(res query.Result[int]) error {
		healthy.Add(1)
		assert.False(t, res.HasError())
		return nil
	}, SkipLoading[int](), func(res query.Result[int]) bool { return !res.HasError() })

	runUntil(t, p, func() bool { return healthy.Load() >= 3 })

	assert.Equal(t, int32(1), failed.Load())
}

func TestPoller_BacksOffOnFailure(t *testing.T) {
	core, logs := zapobserver.New(zapcore.DebugLevel)
	src := &countingSource{failOn: map[int]bool{1: true, 2: true, 3: true}}
	p := NewPoller[int](src,
		WithInterval(time.Millisecond),
		WithBackoff(10*time.Millisecond, 25*time.Millisecond),
		WithLogger(zap.New(core)),
	)

	runUntil(t, p, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetches >= 5
	})

	src.mu.Lock()
	times := append([]time.Time(nil), src.times...)
	src.mu.Unlock()

	// waits: 10ms, 20ms, 25ms (capped), then the 1ms interval
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 10*time.Millisecond)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, times[3].Sub(times[2]), 25*time.Millisecond)

	warnings := logs.FilterMessage("poll failed").All()
	require.Len(t, warnings, 3)
	assert.Equal(t, int64(3), warnings[2].ContextMap()["attempt"])
}

func TestPoller_HandlerFailuresAreLogged(t *testing.T) {
	core, logs := zapobserver.New(zapcore.DebugLevel)
	src := &countingSource{}
	p := NewPoller[int](src, WithInterval(time.Millisecond), WithLogger(zap.New(core)))

	var after atomic.Int32
	p.OnResult(func(query.Result[int]) error { panic("boom") })
	p.OnResult(func(query.Result[int]) error { return stderrors.New("render failed") })
	p.OnResult(func(query.Result[int]) error {
		after.Add(1)
		return nil
	})

	runUntil(t, p, func() bool { return after.Load() >= 1 })

	entries := logs.FilterMessage("observer handler failed").All()
	require.GreaterOrEqual(t, len(entries), 2)
	assert.Contains(t, entries[0].ContextMap()["error"], "HANDLER_PANIC")
	assert.Equal(t, "render failed", entries[1].ContextMap()["error"])
}

func TestPoller_StartTwiceAndStop(t *testing.T) {
	src := &countingSource{}
	p := NewPoller[int](src, WithInterval(time.Hour))

	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(context.Background()) }()
	require.Eventually(t, func() bool {
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.running
	}, time.Second, time.Millisecond)

	err := p.Start(context.Background())
	assert.Equal(t, errors.OBSERVER_RUNNING, errors.CodeOf(err))

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	require.NoError(t, <-errCh)
}

func TestPoller_ContextCancel(t *testing.T) {
	p := NewPoller[int](&countingSource{}, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(ctx) }()
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestWithPollingConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Polling.Interval = "5s"
	cfg.Polling.InitialBackoff = "250ms"
	cfg.Polling.MaxBackoff = "10s"

	p := NewPoller[int](&countingSource{}, WithPollingConfig(cfg))
	assert.Equal(t, 5*time.Second, p.interval)
	assert.Equal(t, 250*time.Millisecond, p.initialBackoff)
	assert.Equal(t, 10*time.Second, p.maxBackoff)
}

func TestPoller_RestartAfterStop(t *testing.T) {
	src := &countingSource{}
	p := NewPoller[int](src, WithInterval(time.Millisecond))

	fetches := func() int {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetches
	}

	runUntil(t, p, func() bool { return fetches() >= 2 })
	first := fetches()

	runUntil(t, p, func() bool { return fetches() >= first+2 })
}

func TestPoller_StopBeforeStart(t *testing.T) {
	src := &countingSource{}
	p := NewPoller[int](src, WithInterval(time.Millisecond))

	require.NoError(t, p.Stop())
	require.NoError(t, p.Start(context.Background()))
	assert.Zero(t, src.fetches, "a pending Stop ends the next run before it fetches")

	runUntil(t, p, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetches >= 1
	})
}

func TestWithPollingConfig_Nil(t *testing.T) {
	var p *Poller[int]
	require.NotPanics(t, func() { p = NewPoller[int](&countingSource{}, WithPollingConfig(nil)) })
	assert.Equal(t, 30*time.Second, p.interval)
}

func TestPoller_SetInterval(t *testing.T) {
	p := NewPoller[int](&countingSource{}, WithInterval(time.Hour))

	p.SetInterval(2 * time.Second)
	assert.Equal(t, 2*time.Second, p.currentSettings().interval)

	p.SetInterval(0)
	assert.Equal(t, 2*time.Second, p.currentSettings().interval, "non-positive intervals are ignored")
}

type staticExecutor struct{}

func (staticExecutor) Execute(context.Context, opsconnect.Operation, map[string]any) (*opsconnect.ResultEnvelope, error) {
	return &opsconnect.ResultEnvelope{Data: json.RawMessage(`{"open":2}`)}, nil
}

func TestPoller_WatchesQueryHandle(t *testing.T) {
	type alertCount struct {
		Open int `json:"open"`
	}

	client := sdk.NewClient("http://ops.local/graphql", sdk.WithExecutor(staticExecutor{}))
	handle := sdk.NewQuery[alertCount](client, "alerts:count", opsconnect.Operation{Name: "AlertCount"}, nil)
	p := NewPoller[alertCount](handle, WithInterval(time.Millisecond))

	got := make(chan int, 1)
	p.OnResult(func(res query.Result[alertCount]) error {
		select {
		case got <- res.Data.Open:
		default:
		}
		return nil
	}, WithData[alertCount]())

	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(context.Background()) }()

	assert.Equal(t, 2, <-got)
	require.NoError(t, p.Stop())
	require.NoError(t, <-errCh)
}
