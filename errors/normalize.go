package errors

import (
	stderrors "errors"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
)

// DefaultMessage is used whenever no message can be extracted from an error.
const DefaultMessage = "An unexpected error occurred"

// CanonicalError is the single shape every error source is reduced to.
// Message is never empty. An empty Code and a nil Path mean "absent".
type CanonicalError struct {
	Message        string `json:"message"`
	Code           string `json:"code,omitempty"`
	Path           []any  `json:"path,omitempty"`
	IsNetworkError bool   `json:"isNetworkError,omitempty"`
}

// decoder attempts one typed parse of v. ok is false when v does not have
// the decoder's shape or nothing could be extracted from it.
type decoder func(v any) (ce CanonicalError, ok bool)

// decoders are tried in order; the first success wins.
var decoders = []decoder{
	decodeResponseError,
	decodeClientError,
	decodeErrorsRecord,
	decodeMessageRecord,
	decodeString,
}

// Normalize reduces any error value to a CanonicalError.
//
// Recognised shapes, in order: *ResponseError (protocol envelope wrapper),
// *ClientError or a map with a graphQLErrors array (legacy wrapper), a
// ResultEnvelope or a map with an errors array, any error or a map with a
// message field, and a plain string. Everything else yields DefaultMessage.
func Normalize(v any) CanonicalError {
	for _, decode := range decoders {
		if ce, ok := decode(v); ok {
			return ce
		}
	}
	return CanonicalError{Message: DefaultMessage}
}

func decodeResponseError(v any) (CanonicalError, bool) {
	var re *ResponseError
	switch t := v.(type) {
	case ResponseError:
		re = &t
	case error:
		if !stderrors.As(t, &re) {
			return CanonicalError{}, false
		}
	default:
		return CanonicalError{}, false
	}
	if re == nil {
		return CanonicalError{}, false
	}
	ce, _ := firstEntry(re.Errors)
	ce.Message = firstNonEmpty(ce.Message, re.Message, DefaultMessage)
	return ce, true
}

func decodeClientError(v any) (CanonicalError, bool) {
	var (
		entries []opsconnect.GraphQLError
		message string
		network bool
	)
	switch t := v.(type) {
	case map[string]any:
		raw, present := t["graphQLErrors"]
		list, ok := entriesOf(raw)
		if !present || !ok {
			return CanonicalError{}, false
		}
		entries = list
		message, _ = t["message"].(string)
		network = truthy(t["networkError"])
	case ClientError:
		entries, message, network = t.GraphQLErrors, t.Message, t.NetworkError != nil
	case error:
		var ce *ClientError
		if !stderrors.As(t, &ce) || ce == nil {
			return CanonicalError{}, false
		}
		entries, message, network = ce.GraphQLErrors, ce.Message, ce.NetworkError != nil
		if message == "" && ce.NetworkError != nil {
			message = errorText(ce.NetworkError)
		}
	default:
		return CanonicalError{}, false
	}
	ce, _ := firstEntry(entries)
	ce.Message = firstNonEmpty(ce.Message, message, DefaultMessage)
	ce.IsNetworkError = network
	return ce, true
}

func decodeErrorsRecord(v any) (CanonicalError, bool) {
	var (
		entries []opsconnect.GraphQLError
		message string
	)
	switch t := v.(type) {
	case opsconnect.ResultEnvelope:
		entries = t.Errors
	case *opsconnect.ResultEnvelope:
		if t == nil {
			return CanonicalError{}, false
		}
		entries = t.Errors
	case map[string]any:
		list, ok := entriesOf(t["errors"])
		if !ok {
			return CanonicalError{}, false
		}
		entries = list
		message, _ = t["message"].(string)
	default:
		return CanonicalError{}, false
	}
	ce, ok := firstEntry(entries)
	if !ok {
		return CanonicalError{}, false
	}
	ce.Message = firstNonEmpty(ce.Message, message, DefaultMessage)
	return ce, true
}

func decodeMessageRecord(v any) (CanonicalError, bool) {
	switch t := v.(type) {
	case map[string]any:
		msg, _ := t["message"].(string)
		if msg == "" {
			return CanonicalError{}, false
		}
		code, _ := t["code"].(string)
		return CanonicalError{Message: msg, Code: code}, true
	case *SDKError:
		if t == nil || t.Message == "" {
			return CanonicalError{}, false
		}
		return CanonicalError{Message: t.Message, Code: string(t.Code)}, true
	case error:
		msg := errorText(t)
		if msg == "" {
			return CanonicalError{}, false
		}
		return CanonicalError{Message: msg, Code: codeFromChain(t)}, true
	default:
		return CanonicalError{}, false
	}
}

func decodeString(v any) (CanonicalError, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return CanonicalError{}, false
	}
	return CanonicalError{Message: s}, true
}

// firstEntry extracts message, code and path from the first entry.
func firstEntry(entries []opsconnect.GraphQLError) (CanonicalError, bool) {
	if len(entries) == 0 {
		return CanonicalError{}, false
	}
	first := entries[0]
	ce := CanonicalError{Message: first.Message}
	if code, ok := first.Extensions["code"].(string); ok {
		ce.Code = code
	}
	if first.Path != nil {
		ce.Path = append([]any(nil), first.Path...)
	}
	return ce, true
}

// entriesOf converts a typed or JSON-decoded errors array. ok reports whether
// raw was an array at all, even an empty one.
func entriesOf(raw any) ([]opsconnect.GraphQLError, bool) {
	switch t := raw.(type) {
	case []opsconnect.GraphQLError:
		return t, true
	case []any:
		out := make([]opsconnect.GraphQLError, 0, len(t))
		for _, item := range t {
			m, _ := item.(map[string]any)
			var ge opsconnect.GraphQLError
			ge.Message, _ = m["message"].(string)
			ge.Path, _ = m["path"].([]any)
			ge.Extensions, _ = m["extensions"].(map[string]any)
			out = append(out, ge)
		}
		return out, true
	default:
		return nil, false
	}
}

// errorText returns err.Error(), or "" when a typed nil receiver panics.
func errorText(err error) (msg string) {
	defer func() {
		if recover() != nil {
			msg = ""
		}
	}()
	return err.Error()
}

func codeFromChain(err error) string {
	var se *SDKError
	if stderrors.As(err, &se) && se != nil {
		return string(se.Code)
	}
	var coded interface{ ErrorCode() string }
	if stderrors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// truthy mirrors the loose truthiness of JSON-decoded values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
