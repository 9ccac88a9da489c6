package notify

import (
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
)

// ErrorContext describes where a failure happened.
type ErrorContext struct {
	Operation string
	Component string
	Fields    map[string]any
}

// Outcome is what Handle decided about a failure.
type Outcome struct {
	Message     string          `json:"message"`
	Severity    errors.Severity `json:"severity"`
	Code        string          `json:"code,omitempty"`
	ShouldToast bool            `json:"shouldToast"`
	ShouldLog   bool            `json:"shouldLog"`
}

// Handle normalizes and classifies err, always logs it and reports whether
// the caller should show a toast. Nothing is shown by Handle itself.
func (d *Dispatcher) Handle(err any, ec ErrorContext) Outcome {
	ce := errors.Normalize(err)
	severity := errors.Classify(ce.Code)

	fields := make(map[string]any, len(ec.Fields)+3)
	for k, v := range ec.Fields {
		fields[k] = v
	}
	fields["severity"] = string(severity)
	if ec.Operation != "" {
		fields["operationName"] = ec.Operation
	}
	if ec.Component != "" {
		fields["component"] = ec.Component
	}

	func() {
		defer func() { _ = recover() }()
		d.log.Log(ce.Message, err, fields)
	}()

	return Outcome{
		Message:     ce.Message,
		Severity:    severity,
		Code:        ce.Code,
		ShouldToast: !IsSuppressed(ce.Code),
		ShouldLog:   true,
	}
}
