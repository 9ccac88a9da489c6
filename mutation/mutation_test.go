package mutation

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
	"github.com/marwen-abid/opsconnect-sdk-go/logging"
	"github.com/marwen-abid/opsconnect-sdk-go/notify"
	"github.com/marwen-abid/opsconnect-sdk-go/store/memory"
)

type alert struct {
	ID    string
	Acked bool
}

type ackVars struct {
	ID string
}

func ackAlert(prev []alert, vars ackVars) []alert {
	next := make([]alert, len(prev))
	copy(next, prev)
	for i := range next {
		if next[i].ID == vars.ID {
			next[i].Acked = true
		}
	}
	return next
}

// scriptedCache records the order of calls made on it.
type scriptedCache struct {
	mu        sync.Mutex
	values    map[string]any
	calls     []string
	cancelErr error
	panicOn   string
}

func newScriptedCache() *scriptedCache {
	return &scriptedCache{values: make(map[string]any)}
}

func (c *scriptedCache) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	if call == c.panicOn {
		panic("cache failure")
	}
}

func (c *scriptedCache) Get(key string) (any, bool) {
	c.record("get")
	v, ok := c.values[key]
	return v, ok
}

func (c *scriptedCache) Set(key string, value any) {
	c.record("set")
	c.values[key] = value
}

func (c *scriptedCache) CancelPending(context.Context, string) error {
	c.record("cancel")
	return c.cancelErr
}

func (c *scriptedCache) Invalidate(string) {
	c.record("invalidate")
}

func TestCoordinator_CancelsBeforeSnapshot(t *testing.T) {
	cache := newScriptedCache()
	cache.values["alerts"] = []alert{{ID: "a1"}}

	c := NewCoordinator(cache, "alerts", ackAlert)
	snap := c.OnMutate(context.Background(), ackVars{ID: "a1"})

	assert.Equal(t, []string{"cancel", "get", "set"}, cache.calls)
	require.NotNil(t, snap.PreviousData)
	assert.Equal(t, []alert{{ID: "a1"}}, *snap.PreviousData)
	assert.Equal(t, []alert{{ID: "a1", Acked: true}}, cache.values["alerts"])
}

func TestCoordinator_CancelErrorDoesNotBlockWrite(t *testing.T) {
	cache := newScriptedCache()
	cache.values["alerts"] = []alert{{ID: "a1"}}
	cache.cancelErr = errors.NewCacheError(errors.CANCEL_TIMEOUT, "stuck", context.DeadlineExceeded)

	c := NewCoordinator(cache, "alerts", ackAlert)
	snap := c.OnMutate(context.Background(), ackVars{ID: "a1"})

	require.NotNil(t, snap.PreviousData)
	assert.Equal(t, []alert{{ID: "a1", Acked: true}}, cache.values["alerts"])
}

func TestCoordinator_NoPreviousValue(t *testing.T) {
	cache := newScriptedCache()
	c := NewCoordinator(cache, "alerts", ackAlert)

	snap := c.OnMutate(context.Background(), ackVars{ID: "a1"})
	assert.Nil(t, snap.PreviousData)
	assert.Equal(t, []string{"cancel", "get"}, cache.calls)

	c.OnError(stderrors.New("boom"), ackVars{}, snap)
	_, ok := cache.values["alerts"]
	assert.False(t, ok, "nothing to restore")
}

func TestCoordinator_MismatchedTypeIsAbsent(t *testing.T) {
	cache := newScriptedCache()
	cache.values["alerts"] = "not a slice"

	c := NewCoordinator(cache, "alerts", ackAlert)
	snap := c.OnMutate(context.Background(), ackVars{ID: "a1"})

	assert.Nil(t, snap.PreviousData)
	assert.Equal(t, "not a slice", cache.values["alerts"])
}

func TestCoordinator_RollbackRestoresSnapshot(t *testing.T) {
	cache := memory.NewCache()
	before := []alert{{ID: "a1"}, {ID: "a2"}}
	cache.Set("alerts", before)

	c := NewCoordinator(cache, "alerts", ackAlert)
	snap := c.OnMutate(context.Background(), ackVars{ID: "a2"})

	optimistic, _ := cache.Get("alerts")
	assert.Equal(t, []alert{{ID: "a1"}, {ID: "a2", Acked: true}}, optimistic)

	c.OnError(stderrors.New("rejected"), ackVars{ID: "a2"}, snap)
	restored, _ := cache.Get("alerts")
	assert.Equal(t, before, restored)

	c.OnSettled()
	assert.True(t, cache.IsStale("alerts"))
}

func TestCoordinator_CancelsTrackedFetch(t *testing.T) {
	cache := memory.NewCache()
	cache.Set("alerts", []alert{{ID: "a1"}})

	fetchCtx, done := cache.Track(context.Background(), "alerts")
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		<-fetchCtx.Done()
		done()
	}()

	c := NewCoordinator(cache, "alerts", ackAlert)
	c.OnMutate(context.Background(), ackVars{ID: "a1"})

	assert.ErrorIs(t, fetchCtx.Err(), context.Canceled)
	assert.Equal(t, 0, cache.Pending("alerts"))
	<-finished
}

func TestCoordinator_NeverPanics(t *testing.T) {
	for _, call := range []string{"cancel", "get", "set", "invalidate"} {
		t.Run(call, func(t *testing.T) {
			cache := newScriptedCache()
			cache.values["alerts"] = []alert{{ID: "a1"}}
			cache.panicOn = call

			c := NewCoordinator(cache, "alerts", ackAlert)
			assert.NotPanics(t, func() {
				c.OnMutate(context.Background(), ackVars{ID: "a1"})
				c.OnError(stderrors.New("x"), ackVars{}, Snapshot[[]alert]{PreviousData: &[]alert{}})
				c.OnSettled()
			})
		})
	}

	nilCache := NewCoordinator[int, int](nil, "k", nil)
	assert.NotPanics(t, func() {
		nilCache.OnError(nil, 0, nilCache.OnMutate(context.Background(), 1))
		nilCache.OnSettled()
	})
}

type harness struct {
	toasts []opsconnect.Toast
	logs   *observer.ObservedLogs
	events []EventName
	disp   *notify.Dispatcher
	reg    *EventRegistry
}

func newHarness() *harness {
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{logs: logs, reg: NewEventRegistry()}
	h.disp = notify.NewDispatcher(
		opsconnect.NotifierFunc(func(t opsconnect.Toast) { h.toasts = append(h.toasts, t) }),
		logging.NewAdapter(logging.NewZap(zap.New(core))),
	)
	for _, name := range []EventName{EventStarted, EventSucceeded, EventFailed, EventSettled} {
		h.reg.On(name, func(ev Event) { h.events = append(h.events, ev.Name) })
	}
	return h
}

func TestMutation_FailureRollsBackAndNotifies(t *testing.T) {
	h := newHarness()
	cache := memory.NewCache()
	before := []alert{{ID: "a1"}}
	cache.Set("alerts", before)

	var seenInCache any
	var onErr error
	m := &Mutation[ackVars, bool]{
		Name: "AckAlert",
		Do: func(ctx context.Context, vars ackVars) (bool, error) {
			seenInCache, _ = cache.Get("alerts")
			return false, &errors.ClientError{GraphQLErrors: []opsconnect.GraphQLError{{
				Message:    "Alert already closed",
				Extensions: map[string]any{"code": "CONFLICT"},
			}}}
		},
		Optimistic: NewCoordinator(cache, "alerts", ackAlert),
		Dispatcher: h.disp,
		OnError:    func(err error, _ ackVars) { onErr = err },
		Events:     h.reg,
	}

	_, err := m.Run(context.Background(), ackVars{ID: "a1"})
	require.Error(t, err)
	assert.Equal(t, err, onErr)

	assert.Equal(t, []alert{{ID: "a1", Acked: true}}, seenInCache, "Do sees the optimistic value")
	after, _ := cache.Get("alerts")
	assert.Equal(t, before, after)
	assert.True(t, cache.IsStale("alerts"))

	require.Len(t, h.toasts, 1)
	assert.Equal(t, opsconnect.Toast{
		Title:       "Conflict detected",
		Description: "Alert already closed",
		Variant:     opsconnect.VariantDestructive,
	}, h.toasts[0])

	entries := h.logs.FilterMessage("Alert already closed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "AckAlert", entries[0].ContextMap()["operationName"])
	assert.Equal(t, "CONFLICT", entries[0].ContextMap()["code"])

	assert.Equal(t, []EventName{EventStarted, EventFailed, EventSettled}, h.events)
}

func TestMutation_SuccessToastAndCallbacks(t *testing.T) {
	h := newHarness()
	cache := memory.NewCache()
	cache.Set("alerts", []alert{{ID: "a1"}})

	var got string
	m := &Mutation[ackVars, string]{
		Name:           "AckAlert",
		Do:             func(context.Context, ackVars) (string, error) { return "ok", nil },
		Optimistic:     NewCoordinator(cache, "alerts", ackAlert),
		Dispatcher:     h.disp,
		SuccessTitle:   "Alert acknowledged",
		SuccessMessage: "a1 is now acknowledged",
		OnSuccess:      func(r string, _ ackVars) { got = r },
		Events:         h.reg,
	}

	res, err := m.Run(context.Background(), ackVars{ID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, "ok", got)

	v, _ := cache.Get("alerts")
	assert.Equal(t, []alert{{ID: "a1", Acked: true}}, v, "optimistic value stays until refetch")
	assert.True(t, cache.IsStale("alerts"))

	require.Len(t, h.toasts, 1)
	assert.Equal(t, opsconnect.VariantDefault, h.toasts[0].Variant)
	assert.Equal(t, "Alert acknowledged", h.toasts[0].Title)

	assert.Equal(t, 1, h.logs.FilterMessage("mutation succeeded").Len())
	assert.Equal(t, []EventName{EventStarted, EventSucceeded, EventSettled}, h.events)
}

func TestMutation_ErrorOptions(t *testing.T) {
	h := newHarness()
	failing := func(context.Context, struct{}) (int, error) { return 0, stderrors.New("fetch failed") }

	m := &Mutation[struct{}, int]{Do: failing, Dispatcher: h.disp, SuppressErrorToast: true}
	_, err := m.Run(context.Background(), struct{}{})
	require.Error(t, err)
	assert.Empty(t, h.toasts)
	assert.Equal(t, 1, h.logs.FilterMessage("fetch failed").Len())

	m = &Mutation[struct{}, int]{Do: failing, Dispatcher: h.disp, ErrorMessage: "Could not save site"}
	_, _ = m.Run(context.Background(), struct{}{})
	require.Len(t, h.toasts, 1)
	assert.Equal(t, "Request failed", h.toasts[0].Title)
	assert.Equal(t, "Could not save site", h.toasts[0].Description)
}

func TestMutation_NoDo(t *testing.T) {
	m := &Mutation[int, int]{Name: "Broken"}
	_, err := m.Run(context.Background(), 1)
	assert.Equal(t, errors.CONFIG_INVALID, errors.CodeOf(err))
}

func TestMutation_NilDispatcherAndEvents(t *testing.T) {
	m := &Mutation[int, int]{
		Do:           func(context.Context, int) (int, error) { return 0, stderrors.New("x") },
		SuccessTitle: "unused",
	}
	assert.NotPanics(t, func() { _, _ = m.Run(context.Background(), 1) })
}

type recordingForm struct {
	errs   map[string]opsconnect.FieldError
	resets int
}

func (f *recordingForm) Reset() { f.resets++ }

func (f *recordingForm) SetError(field string, err opsconnect.FieldError) {
	if f.errs == nil {
		f.errs = make(map[string]opsconnect.FieldError)
	}
	f.errs[field] = err
}

type siteForm struct {
	Name  string
	Email string
}

func TestFormMutation_AssignsFieldErrors(t *testing.T) {
	h := newHarness()
	form := &recordingForm{}
	userOnError := 0

	f := &FormMutation[siteForm, string]{
		Mutation: Mutation[siteForm, string]{
			Name: "CreateSite",
			Do: func(context.Context, siteForm) (string, error) {
				return "", errors.NewResponseError("CreateSite", []opsconnect.GraphQLError{
					{Message: "Email taken", Extensions: map[string]any{"code": "CONFLICT", "field": "email"}},
					{Message: "Invalid", Extensions: map[string]any{"fields": map[string]any{"name": "Name too short", "region": "Unknown region"}}},
				})
			},
			Dispatcher: h.disp,
			OnError:    func(error, siteForm) { userOnError++ },
		},
		Form:           form,
		Fields:         []string{"name", "email"},
		ResetOnSuccess: true,
	}

	_, err := f.Run(context.Background(), siteForm{Name: "x", Email: "ops@example.com"})
	require.Error(t, err)

	assert.Equal(t, map[string]opsconnect.FieldError{
		"email": {Type: FieldErrorType, Message: "Email taken"},
		"name":  {Type: FieldErrorType, Message: "Name too short"},
	}, form.errs)
	assert.Equal(t, 0, form.resets)
	assert.Equal(t, 1, userOnError)
	require.Len(t, h.toasts, 1, "field errors do not replace the toast")
	assert.Equal(t, "Conflict detected", h.toasts[0].Title)
}

func TestFormMutation_ResetOnSuccess(t *testing.T) {
	form := &recordingForm{}
	called := false
	f := &FormMutation[siteForm, string]{
		Mutation: Mutation[siteForm, string]{
			Do:        func(context.Context, siteForm) (string, error) { return "site-1", nil },
			OnSuccess: func(string, siteForm) { called = true },
		},
		Form:           form,
		ResetOnSuccess: true,
	}

	_, err := f.Run(context.Background(), siteForm{})
	require.NoError(t, err)
	assert.Equal(t, 1, form.resets)
	assert.True(t, called)

	f.ResetOnSuccess = false
	_, _ = f.Run(context.Background(), siteForm{})
	assert.Equal(t, 1, form.resets)
}

func TestEventRegistry(t *testing.T) {
	reg := NewEventRegistry()
	var order []int
	reg.On(EventFailed, func(Event) { order = append(order, 1) })
	reg.On(EventFailed, func(Event) { order = append(order, 2) })

	reg.Trigger(Event{Name: EventFailed})
	reg.Trigger(Event{Name: EventSucceeded})
	assert.Equal(t, []int{1, 2}, order)

	var nilReg *EventRegistry
	assert.NotPanics(t, func() { nilReg.Trigger(Event{Name: EventFailed}) })
}

func TestEventRegistry_HandlerRegisteredDuringTrigger(t *testing.T) {
	reg := NewEventRegistry()
	calls := 0
	reg.On(EventSettled, func(Event) {
		calls++
		reg.On(EventSettled, func(Event) { calls += 10 })
	})

	reg.Trigger(Event{Name: EventSettled})
	assert.Equal(t, 1, calls, "handlers added while triggering run from the next trigger")

	reg.Trigger(Event{Name: EventSettled})
	assert.Equal(t, 12, calls)
}
