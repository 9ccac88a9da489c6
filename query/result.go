// Package query adapts raw fetch state into the view model the UI renders.
//
// The central rule is that Loading is only ever true before the first data
// arrives. Once data exists, background fetches are reported through
// IsRefetching so list and detail views are never replaced by a full-page
// loading state on refresh.
package query

import (
	"fmt"
	"reflect"
)

// RawState is the state exposed by a fetch primitive. Paginated fetches
// report their accumulated pages as T.
type RawState[T any] struct {
	Data       *T
	IsLoading  bool
	IsFetching bool
	Error      any
	Refetch    func() error
}

// Result is the normalized view of a fetch. A nil Data means no data has been
// populated; an empty Error means no error.
type Result[T any] struct {
	Data         *T
	Loading      bool
	IsRefetching bool
	Error        string
	Refetch      func()
}

// Adapt normalizes raw into a Result.
func Adapt[T any](raw RawState[T]) Result[T] {
	return AdaptWith(raw, func(v T) T { return v })
}

// AdaptWith normalizes raw and applies fn to the data before exposing it.
// fn must be pure; loading and refetch semantics are the same as Adapt.
func AdaptWith[T, U any](raw RawState[T], fn func(T) U) Result[U] {
	hasData := raw.Data != nil

	var data *U
	if hasData {
		v := fn(*raw.Data)
		data = &v
	}

	return Result[U]{
		Data:         data,
		Loading:      !hasData && (raw.IsLoading || raw.IsFetching),
		IsRefetching: hasData && raw.IsFetching,
		Error:        errorString(raw.Error),
		Refetch:      refetcher(raw.Refetch),
	}
}

// HasError reports whether r carries an error.
func (r Result[T]) HasError() bool { return r.Error != "" }

// errorString turns an error-like value into its message. Falsy values
// (nil, "", false, numeric zero) and typed-nil errors are treated as no
// error.
func errorString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case error:
		return errorText(t)
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		if rv.IsZero() {
			return ""
		}
	}
	return fmt.Sprint(v)
}

// errorText returns err.Error(), or "" for a typed-nil error.
func errorText(err error) (msg string) {
	if rv := reflect.ValueOf(err); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ""
	}
	defer func() {
		if recover() != nil {
			msg = ""
		}
	}()
	return err.Error()
}

func refetcher(fn func() error) func() {
	return func() {
		if fn != nil {
			_ = fn()
		}
	}
}
