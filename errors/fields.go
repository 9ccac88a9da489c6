package errors

import (
	stderrors "errors"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
)

// FieldErrors collects per-field validation messages from every GraphQL
// entry carried by v. An entry contributes either through
// extensions.field (a single field name, using the entry message) or
// extensions.fields (a map of field name to message). Earlier entries win
// when the same field is reported twice.
func FieldErrors(v any) map[string]string {
	out := make(map[string]string)
	for _, entry := range allEntries(v) {
		if field, ok := entry.Extensions["field"].(string); ok && field != "" {
			if _, seen := out[field]; !seen && entry.Message != "" {
				out[field] = entry.Message
			}
		}
		fields, _ := entry.Extensions["fields"].(map[string]any)
		for field, raw := range fields {
			msg, ok := raw.(string)
			if !ok || msg == "" {
				continue
			}
			if _, seen := out[field]; !seen {
				out[field] = msg
			}
		}
	}
	return out
}

// allEntries returns every GraphQL entry v carries, whatever its wrapper.
func allEntries(v any) []opsconnect.GraphQLError {
	switch t := v.(type) {
	case map[string]any:
		if list, ok := entriesOf(t["graphQLErrors"]); ok && len(list) > 0 {
			return list
		}
		list, _ := entriesOf(t["errors"])
		return list
	case opsconnect.ResultEnvelope:
		return t.Errors
	case *opsconnect.ResultEnvelope:
		if t == nil {
			return nil
		}
		return t.Errors
	case error:
		var re *ResponseError
		if stderrors.As(t, &re) && re != nil {
			return re.Errors
		}
		var ce *ClientError
		if stderrors.As(t, &ce) && ce != nil {
			return ce.GraphQLErrors
		}
	}
	return nil
}
