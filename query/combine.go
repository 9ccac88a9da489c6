package query

// Pair holds the data of two combined results.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Combine merges two results. Data is present only when both inputs have
// data; the error is a's if set, otherwise b's; Refetch refetches both.
func Combine[A, B any](a Result[A], b Result[B]) Result[Pair[A, B]] {
	var data *Pair[A, B]
	if a.Data != nil && b.Data != nil {
		data = &Pair[A, B]{First: *a.Data, Second: *b.Data}
	}

	errMsg := a.Error
	if errMsg == "" {
		errMsg = b.Error
	}

	return Result[Pair[A, B]]{
		Data:         data,
		Loading:      data == nil && (a.Loading || b.Loading),
		IsRefetching: data != nil && (a.IsRefetching || b.IsRefetching),
		Error:        errMsg,
		Refetch: func() {
			if a.Refetch != nil {
				a.Refetch()
			}
			if b.Refetch != nil {
				b.Refetch()
			}
		},
	}
}
