package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", New(BadRequest, "bad"), http.StatusBadRequest},
		{"unauthorized", New(Unauthorized, "nope"), http.StatusUnauthorized},
		{"forbidden", New(Forbidden, "no"), http.StatusForbidden},
		{"not found", New(NotFound, "gone"), http.StatusNotFound},
		{"bare sentinel", ErrNotFound, http.StatusNotFound},
		{"wrapped sentinel", fmt.Errorf("load guide: %w", ErrNotFound), http.StatusNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Status(tc.err))
		})
	}
}

func TestMessageHidesCause(t *testing.T) {
	err := Wrap(Unauthorized, "invalid credentials", errors.New("bcrypt mismatch"))

	assert.Equal(t, "invalid credentials", Message(err))
	assert.Contains(t, err.Error(), "bcrypt mismatch")
	assert.Equal(t, "internal server error", Message(errors.New("db down")))
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	err := fmt.Errorf("refresh: %w", New(Unauthorized, "unauthorized"))

	assert.Equal(t, Unauthorized, KindOf(err))
	assert.Equal(t, "unauthorized", Message(err))
}
