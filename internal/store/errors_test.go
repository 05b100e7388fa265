package store

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	assert.ErrorIs(t, ErrBookNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrEmailExists, ErrAlreadyExists)
	assert.NotErrorIs(t, ErrBookNotFound, ErrAlreadyExists)

	wrapped := fmt.Errorf("loading: %w", ErrUserNotFound)
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestError_WithCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := ErrInvalidInput.WithMessage("bad cursor").WithCause(cause)

	assert.Equal(t, "bad cursor: disk on fire", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, err.HTTPCode())

	// The sentinel is untouched.
	assert.Equal(t, "invalid input", ErrInvalidInput.Error())
}
