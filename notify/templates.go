// Package notify decides whether and how a failure is surfaced to the user.
//
// Dispatcher.Toast is for interactive call sites: it normalizes the error,
// optionally logs it and shows at most one toast. Dispatcher.Handle is for
// non-interactive call sites: it always logs and returns an Outcome that
// tells the caller whether a toast would be appropriate.
package notify

import (
	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
)

// Template describes the toast shown for a known error code.
// A nil Description means the normalized message is shown verbatim.
type Template struct {
	Title       string
	Variant     opsconnect.ToastVariant
	Description func(message string) string
}

// Build returns the toast for message.
func (t Template) Build(message string) opsconnect.Toast {
	desc := message
	if t.Description != nil {
		desc = t.Description(message)
	}
	return opsconnect.Toast{Title: t.Title, Description: desc, Variant: t.Variant}
}

func fixed(text string) func(string) string {
	return func(string) string { return text }
}

// templates is read-only after init.
var templates = map[errors.Code]Template{
	errors.CONFLICT: {
		Title:   "Conflict detected",
		Variant: opsconnect.VariantDestructive,
	},
	errors.UNAUTHENTICATED: {
		Title:       "Session expired",
		Variant:     opsconnect.VariantDestructive,
		Description: fixed("Please sign in again to continue."),
	},
	errors.FORBIDDEN: {
		Title:       "Access denied",
		Variant:     opsconnect.VariantDestructive,
		Description: fixed("You do not have permission to perform this action."),
	},
	errors.UNAUTHORIZED: {
		Title:   "Not authorized",
		Variant: opsconnect.VariantDestructive,
	},
	errors.NOT_FOUND: {
		Title:   "Not found",
		Variant: opsconnect.VariantDefault,
	},
	errors.VALIDATION_ERROR: {
		Title:   "Invalid input",
		Variant: opsconnect.VariantDestructive,
	},
	errors.BAD_USER_INPUT: {
		Title:   "Invalid input",
		Variant: opsconnect.VariantDestructive,
	},
	errors.INTERNAL_SERVER_ERROR: {
		Title:       "Server error",
		Variant:     opsconnect.VariantDestructive,
		Description: fixed("Something went wrong on our side. Please try again."),
	},
	errors.DATABASE_ERROR: {
		Title:       "Database error",
		Variant:     opsconnect.VariantDestructive,
		Description: fixed("The request could not be saved. Please try again."),
	},
	errors.RATE_LIMITED: {
		Title:   "Too many requests",
		Variant: opsconnect.VariantDestructive,
		Description: func(message string) string {
			return message + " Please wait a moment before retrying."
		},
	},
}

// NetworkTemplate is used for transport failures without a known code.
var NetworkTemplate = Template{
	Title:       "Network error",
	Variant:     opsconnect.VariantDestructive,
	Description: fixed("Unable to reach the server. Check your connection and try again."),
}

// GenericTemplate is the fallback for every other failure.
var GenericTemplate = Template{
	Title:   "Request failed",
	Variant: opsconnect.VariantDestructive,
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := templates[errors.Code(code)]
	return t, ok
}

// ToastFor resolves the toast for an already normalized error:
// code template, then network template, then the generic template.
func ToastFor(ce errors.CanonicalError) opsconnect.Toast {
	if t, ok := Lookup(ce.Code); ok {
		return t.Build(ce.Message)
	}
	if ce.IsNetworkError {
		return NetworkTemplate.Build(ce.Message)
	}
	return GenericTemplate.Build(ce.Message)
}
