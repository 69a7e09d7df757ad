package helpers

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultOrElse(t *testing.T) {
	called := false
	r := NewValueResult(1).OrElse(func() Result[int] {
		called = true
		return NewValueResult(2)
	})
	v, err := r.Value()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.False(t, called)

	r = NewErrorResult[int](errors.New("nope")).OrElse(func() Result[int] {
		return NewValueResult(2)
	})
	assert.Equal(t, 2, r.ValueOr(0))
}

func TestFirstOk(t *testing.T) {
	var order []int
	attempt := func(i int, ok bool) func() Result[int] {
		return func() Result[int] {
			order = append(order, i)
			if ok {
				return NewValueResult(i)
			}
			return NewErrorResult[int](errors.Errorf("attempt %d failed", i))
		}
	}

	r := FirstOk(attempt(1, false), attempt(2, true), attempt(3, true))
	assert.True(t, r.Ok())
	assert.Equal(t, 2, r.ValueOr(0))
	assert.Equal(t, []int{1, 2}, order)

	order = nil
	r = FirstOk(attempt(1, false), attempt(2, false))
	assert.False(t, r.Ok())
	assert.EqualError(t, r.Error(), "attempt 2 failed")
	assert.Equal(t, -1, r.ValueOr(-1))
}
