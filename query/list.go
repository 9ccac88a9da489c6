package query

// List adapts a raw list fetch through extract. Data is withheld while the
// raw fetch is loading or carries an error, so stale rows are never shown
// next to an error.
func List[R, T any](raw RawState[R], extract func(R) []T) Result[[]T] {
	return withheld(raw, func(r R) ([]T, bool) {
		return extract(r), true
	})
}

// Detail adapts a raw single-entity fetch through extract. A nil entity
// from extract leaves Data nil. Data is withheld under the same rules as List.
func Detail[R, T any](raw RawState[R], extract func(R) *T) Result[T] {
	return withheld(raw, func(r R) (T, bool) {
		if v := extract(r); v != nil {
			return *v, true
		}
		var zero T
		return zero, false
	})
}

func withheld[R, T any](raw RawState[R], extract func(R) (T, bool)) Result[T] {
	res := Result[T]{
		Error:   errorString(raw.Error),
		Refetch: refetcher(raw.Refetch),
	}

	if raw.Data != nil && !raw.IsLoading && res.Error == "" {
		if v, ok := extract(*raw.Data); ok {
			res.Data = &v
		}
	}

	hasData := res.Data != nil
	res.Loading = !hasData && (raw.IsLoading || raw.IsFetching)
	res.IsRefetching = hasData && raw.IsFetching
	return res
}
