package helpers

// Result is a tagged value: either a value or the error explaining why there
// is none. Pipelines use it to chain attempts without panics or sentinel values.
type Result[T any] struct {
	value T
	err   error
}

func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{
		value: value,
		err:   err,
	}
}

func NewValueResult[T any](value T) Result[T] {
	return Result[T]{
		value: value,
	}
}

func NewErrorResult[T any](err error) Result[T] {
	return Result[T]{
		err: err,
	}
}

func (r Result[T]) Value() (T, error) {
	return r.value, r.err
}

func (r Result[T]) Error() error {
	return r.err
}

func (r Result[T]) Ok() bool {
	return r.err == nil
}

func (r Result[T]) ValueOr(v T) T {
	if r.err != nil {
		return v
	}
	return r.value
}

// OrElse returns r if it holds a value, otherwise the result of next.
// next is only evaluated when needed.
func (r Result[T]) OrElse(next func() Result[T]) Result[T] {
	if r.err == nil {
		return r
	}
	return next()
}

// FirstOk evaluates attempts in order and returns the first result holding a
// value, or the last failure.
func FirstOk[T any](attempts ...func() Result[T]) Result[T] {
	var last Result[T]
	for _, a := range attempts {
		last = a()
		if last.Ok() {
			return last
		}
	}
	return last
}
