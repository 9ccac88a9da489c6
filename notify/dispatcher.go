package notify

import (
	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
	"github.com/marwen-abid/opsconnect-sdk-go/logging"
)

// suppressedCodes never produce a toast from Handle: a session-expiry
// redirect is about to tell the user anyway.
var suppressedCodes = map[string]struct{}{
	string(errors.UNAUTHENTICATED): {},
	string(errors.TOKEN_EXPIRED):   {},
	string(errors.SESSION_EXPIRED): {},
}

// IsSuppressed reports whether code belongs to the session-expiry class.
func IsSuppressed(code string) bool {
	_, ok := suppressedCodes[code]
	return ok
}

// Dispatcher routes failures to the notification sink and the logger.
type Dispatcher struct {
	notifier opsconnect.Notifier
	log      *logging.Adapter
}

// NewDispatcher creates a Dispatcher. A nil notifier shows nothing and a nil
// log adapter discards records.
func NewDispatcher(notifier opsconnect.Notifier, log *logging.Adapter) *Dispatcher {
	if log == nil {
		log = logging.NewAdapter(nil)
	}
	return &Dispatcher{notifier: notifier, log: log}
}

// ToastOptions tunes a single Toast call.
type ToastOptions struct {
	// Suppress skips the toast; the error is still logged.
	Suppress bool

	// Message replaces the template-derived toast with a generic one
	// carrying this description.
	Message string

	// SkipLog disables the log record.
	SkipLog bool

	// LogMessage is the log record message; defaults to the normalized message.
	LogMessage string

	// Fields are merged into the log record.
	Fields map[string]any
}

// Toast normalizes err, logs it and shows at most one toast. It never panics,
// even if the notifier or logger does.
func (d *Dispatcher) Toast(err any, opts ToastOptions) {
	defer func() { _ = recover() }()

	ce := errors.Normalize(err)

	if !opts.SkipLog {
		msg := opts.LogMessage
		if msg == "" {
			msg = ce.Message
		}
		d.log.Log(msg, err, opts.Fields)
	}

	if opts.Suppress || d.notifier == nil {
		return
	}
	if opts.Message != "" {
		d.notifier.Show(GenericTemplate.Build(opts.Message))
		return
	}
	d.notifier.Show(ToastFor(ce))
}

// Success shows a default-variant toast.
func (d *Dispatcher) Success(title, description string) {
	defer func() { _ = recover() }()

	if d.notifier == nil || title == "" {
		return
	}
	d.notifier.Show(opsconnect.Toast{Title: title, Description: description, Variant: opsconnect.VariantDefault})
}

// Logger returns the adapter the dispatcher logs through.
func (d *Dispatcher) Logger() *logging.Adapter {
	return d.log
}
