package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryStatus(t *testing.T) {
	cases := []struct {
		err     *Error
		status  int
		message string
	}{
		{Unauthorized("User is not authorized"), http.StatusUnauthorized, "User is not authorized"},
		{Forbidden(""), http.StatusForbidden, "Forbidden"},
		{BadRequest("Email is already registered"), http.StatusBadRequest, "Email is already registered"},
		{NotFound(""), http.StatusNotFound, "Not Found"},
		{TooManyRequests(""), http.StatusTooManyRequests, "Too Many Requests"},
		{Internal(), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.Status)
		require.Len(t, tc.err.Messages, 1)
		assert.Equal(t, tc.message, tc.err.Messages[0].Message)
	}
}

func TestValidationKeepsEveryField(t *testing.T) {
	err := Validation(
		Message{Field: "firstName", Message: "is required"},
		Message{Field: "role", Message: "must be an enum value"},
	)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Len(t, err.Messages, 2)
	assert.Equal(t, "Bad Request: firstName: is required; role: must be an enum value", err.Error())
}

func TestAsUnwrapsChains(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NotFound("Item not found"))
	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, got.Status)

	_, ok = As(errors.New("boom"))
	assert.False(t, ok)
}
