package mutation

import (
	"context"

	"github.com/marwen-abid/opsconnect-sdk-go/errors"
	"github.com/marwen-abid/opsconnect-sdk-go/notify"
)

// Mutation wraps a server write with optimistic cache handling, failure
// notification, logging and lifecycle events.
type Mutation[V, R any] struct {
	// Name is the operation name attached to log records and events.
	Name string

	// Do performs the server write.
	Do func(ctx context.Context, vars V) (R, error)

	// Optimistic, when set, is applied before Do and rolled back on failure.
	Optimistic Optimistic[V]

	// Dispatcher surfaces failures and success toasts. Nil discards both.
	Dispatcher *notify.Dispatcher

	// SuccessTitle shows a success toast when non-empty.
	SuccessTitle   string
	SuccessMessage string

	// ErrorMessage replaces the template-derived failure toast.
	ErrorMessage string

	// SuppressErrorToast logs failures without showing a toast.
	SuppressErrorToast bool

	OnSuccess func(result R, vars V)
	OnError   func(err error, vars V)

	// Events receives lifecycle events. Nil disables them.
	Events *EventRegistry
}

// Run executes the mutation.
//
// On failure the optimistic write is rolled back, the error is toasted and
// logged, OnError runs and mutation:failed fires. On success the outcome is
// logged, the success toast is shown, OnSuccess runs and mutation:succeeded
// fires. The key is invalidated and mutation:settled fires in both cases.
func (m *Mutation[V, R]) Run(ctx context.Context, vars V) (R, error) {
	var zero R
	if m.Do == nil {
		return zero, errors.NewClientError(errors.CONFIG_INVALID, "mutation has no Do function", nil).
			With("operationName", m.Name)
	}

	m.emit(Event{Name: EventStarted, Variables: vars})

	var rollback func(error)
	if m.Optimistic != nil {
		rollback = m.Optimistic.Begin(ctx, vars)
	}
	defer func() {
		if m.Optimistic != nil {
			m.Optimistic.OnSettled()
		}
		m.emit(Event{Name: EventSettled, Variables: vars})
	}()

	dispatcher := m.dispatcher()
	result, err := m.Do(ctx, vars)
	if err != nil {
		if rollback != nil {
			rollback(err)
		}
		dispatcher.Toast(err, notify.ToastOptions{
			Suppress: m.SuppressErrorToast,
			Message:  m.ErrorMessage,
			Fields:   m.fields(),
		})
		if m.OnError != nil {
			m.OnError(err, vars)
		}
		m.emit(Event{Name: EventFailed, Variables: vars, Err: err})
		return result, err
	}

	dispatcher.Logger().Info("mutation succeeded", m.fields())
	if m.SuccessTitle != "" {
		dispatcher.Success(m.SuccessTitle, m.SuccessMessage)
	}
	if m.OnSuccess != nil {
		m.OnSuccess(result, vars)
	}
	m.emit(Event{Name: EventSucceeded, Variables: vars, Result: result})
	return result, nil
}

func (m *Mutation[V, R]) dispatcher() *notify.Dispatcher {
	if m.Dispatcher == nil {
		return notify.NewDispatcher(nil, nil)
	}
	return m.Dispatcher
}

func (m *Mutation[V, R]) fields() map[string]any {
	if m.Name == "" {
		return nil
	}
	return map[string]any{"operationName": m.Name}
}

func (m *Mutation[V, R]) emit(ev Event) {
	ev.Operation = m.Name
	m.Events.Trigger(ev)
}
