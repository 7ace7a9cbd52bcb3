package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"validation", Validation("seats must be positive"), ErrValidation},
		{"capacity", Capacity("ride %d is full", 3), ErrCapacity},
		{"duplicate", Duplicate("already booked"), ErrDuplicate},
		{"not found", NotFound("ride %d", 1), ErrNotFound},
		{"transport", Transport(errors.New("blocked")), ErrTransport},
		{"store", Store("insert ride", errors.New("conn reset")), ErrStore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.kind)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tc.err), tc.kind)
			for _, other := range []error{ErrValidation, ErrCapacity, ErrDuplicate, ErrNotFound, ErrTransport, ErrStore} {
				if other != tc.kind {
					assert.NotErrorIs(t, tc.err, other)
				}
			}
		})
	}
}

func TestStore_KeepsKindAndCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := Store("book seat", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "book seat")

	capacity := Capacity("full")
	assert.Same(t, capacity, Store("book seat", capacity))
	assert.Nil(t, Store("noop", nil))
	assert.Nil(t, Transport(nil))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "seats must be positive", Message(Validation("seats must be positive")))
	assert.Equal(t, "seats must be positive", Message(fmt.Errorf("ctx: %w", Validation("seats must be positive"))))
	assert.Equal(t, "", Message(errors.New("plain")))
}
