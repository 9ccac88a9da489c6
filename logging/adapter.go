package logging

import (
	stderrors "errors"

	"go.uber.org/zap"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
)

// Adapter writes error records that merge caller context with fields
// derived from the normalized error.
type Adapter struct {
	logger opsconnect.Logger
}

// NewAdapter returns an Adapter writing to logger. A nil logger discards.
func NewAdapter(logger opsconnect.Logger) *Adapter {
	if logger == nil {
		logger = NewZap(zap.NewNop())
	}
	return &Adapter{logger: logger}
}

// Log records v at error level. The caller's fields are copied, then code,
// path and operationName are added when known. v is passed to the logger as
// an error; values that are not errors are wrapped first.
func (a *Adapter) Log(message string, v any, fields map[string]any) {
	ce := errors.Normalize(v)

	merged := make(map[string]any, len(fields)+3)
	for k, val := range fields {
		merged[k] = val
	}
	if ce.Code != "" {
		merged["code"] = ce.Code
	}
	if ce.Path != nil {
		merged["path"] = ce.Path
	}
	if op := operationName(v, fields); op != "" {
		merged["operationName"] = op
	}

	a.logger.Error(message, asError(v, ce), merged)
}

// Info records a non-error event.
func (a *Adapter) Info(message string, fields map[string]any) {
	a.logger.Info(message, nil, fields)
}

func asError(v any, ce errors.CanonicalError) error {
	if err, ok := v.(error); ok && err != nil {
		return err
	}
	return errors.NewClientError(errors.UNKNOWN_ERROR, ce.Message, nil).With("value", v)
}

func operationName(v any, fields map[string]any) string {
	if err, ok := v.(error); ok {
		var named interface{ OperationName() string }
		if stderrors.As(err, &named) {
			if op := named.OperationName(); op != "" {
				return op
			}
		}
	}
	op, _ := fields["operationName"].(string)
	return op
}
