package mutation

import (
	"context"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
)

// FieldErrorType marks field errors that came back from the server.
const FieldErrorType = "server"

// FormMutation is a Mutation bound to a form. Server-reported field errors
// are assigned to the matching form fields, and the form can be reset after
// a successful write.
type FormMutation[V, R any] struct {
	Mutation[V, R]

	// Form receives field errors and resets. Nil disables both.
	Form opsconnect.FormBinding

	// Fields are the names of the form's fields. Only reported errors for
	// these names are assigned.
	Fields []string

	ResetOnSuccess bool
}

// Run executes the mutation. The failure toast is shown even when field
// errors were assigned.
func (f *FormMutation[V, R]) Run(ctx context.Context, vars V) (R, error) {
	m := f.Mutation

	onError := m.OnError
	m.OnError = func(err error, vars V) {
		f.assignFieldErrors(err)
		if onError != nil {
			onError(err, vars)
		}
	}

	onSuccess := m.OnSuccess
	m.OnSuccess = func(result R, vars V) {
		if f.ResetOnSuccess && f.Form != nil {
			f.Form.Reset()
		}
		if onSuccess != nil {
			onSuccess(result, vars)
		}
	}

	return m.Run(ctx, vars)
}

func (f *FormMutation[V, R]) assignFieldErrors(err error) {
	if f.Form == nil {
		return
	}
	reported := errors.FieldErrors(err)
	for _, name := range f.Fields {
		msg, ok := reported[name]
		if !ok {
			continue
		}
		f.Form.SetError(name, opsconnect.FieldError{Type: FieldErrorType, Message: msg})
	}
}
