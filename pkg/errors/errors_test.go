package errors_test

import (
	"errors"
	"net/http"
	"testing"

	pkgerrors "github.com/agentstation/omnisync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "user",
			ID:       "u-123",
		}
		assert.Equal(t, "user with ID u-123 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("group", "g-1")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Field: "mode", Value: "everything", Message: "must be one of all, groups, attributes"}
		assert.Equal(t, "validation failed for field mode: must be one of all, groups, attributes", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "no users in source"}
		assert.Equal(t, "validation failed: no users in source", err.Error())
	})
}

func TestAPIError(t *testing.T) {
	t.Run("message includes status and endpoint", func(t *testing.T) {
		err := &pkgerrors.APIError{
			Provider:   "omni",
			StatusCode: http.StatusBadRequest,
			Message:    "userName is required",
			Endpoint:   "POST /api/scim/v2/Users",
		}
		assert.Equal(t, "API error from omni (status 400) at POST /api/scim/v2/Users: userName is required", err.Error())
	})

	tests := []struct {
		name   string
		status int
		target error
	}{
		{"rate limited", http.StatusTooManyRequests, pkgerrors.ErrRateLimited},
		{"not found", http.StatusNotFound, pkgerrors.ErrNotFound},
		{"conflict", http.StatusConflict, pkgerrors.ErrAlreadyExists},
		{"unauthorized", http.StatusUnauthorized, pkgerrors.ErrAPIKeyInvalid},
		{"forbidden", http.StatusForbidden, pkgerrors.ErrAPIKeyInvalid},
		{"server error", http.StatusBadGateway, pkgerrors.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewAPIError("omni", tt.status, "boom")
			assert.True(t, errors.Is(err, tt.target))
		})
	}

	t.Run("bad request matches nothing", func(t *testing.T) {
		err := pkgerrors.NewAPIError("omni", http.StatusBadRequest, "bad")
		assert.False(t, pkgerrors.IsNotFound(err))
		assert.False(t, pkgerrors.IsRateLimited(err))
	})
}

func TestSyncError(t *testing.T) {
	base := pkgerrors.NewAPIError("omni", http.StatusConflict, "exists")
	err := pkgerrors.NewSyncError("create user", "jane@example.com", base)

	assert.Equal(t, "sync failed to create user jane@example.com: API error from omni (status 409): exists", err.Error())
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	var apiErr *pkgerrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestParseError(t *testing.T) {
	t.Run("with file and position", func(t *testing.T) {
		err := &pkgerrors.ParseError{
			Format:  "csv",
			File:    "users.csv",
			Line:    4,
			Column:  2,
			Message: "wrong number of fields",
		}
		assert.Equal(t, "parse error in csv at users.csv:4:2: wrong number of fields", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("wrap helper", func(t *testing.T) {
		baseErr := errors.New("unexpected end of JSON input")
		wrapped := pkgerrors.WrapParse("json", "users.json", baseErr)
		parseErr, ok := wrapped.(*pkgerrors.ParseError)
		require.True(t, ok)
		assert.Equal(t, "json", parseErr.Format)
		assert.Equal(t, "users.json", parseErr.File)
		assert.Equal(t, baseErr, parseErr.Unwrap())
	})
}

func TestAuthenticationError(t *testing.T) {
	apiErr := &pkgerrors.APIError{Provider: "omni", StatusCode: http.StatusUnauthorized, Message: "invalid API key"}
	err := &pkgerrors.AuthenticationError{Provider: "omni", Method: "bearer", Message: apiErr.Message, Err: apiErr}

	assert.Equal(t, "authentication error for omni (bearer): invalid API key", err.Error())
	assert.True(t, pkgerrors.IsAPIKeyError(err))
	assert.False(t, errors.Is(err, pkgerrors.ErrAPIKeyRequired))

	var unwrapped *pkgerrors.APIError
	require.True(t, errors.As(err, &unwrapped))
	assert.Equal(t, http.StatusUnauthorized, unwrapped.StatusCode)
}

func TestIsAuthStatus(t *testing.T) {
	assert.True(t, pkgerrors.IsAuthStatus(http.StatusUnauthorized))
	assert.True(t, pkgerrors.IsAuthStatus(http.StatusForbidden))
	assert.False(t, pkgerrors.IsAuthStatus(http.StatusNotFound))
}

func TestWrapHelpers(t *testing.T) {
	t.Run("nil passthrough", func(t *testing.T) {
		assert.Nil(t, pkgerrors.WrapIO("read", "file", nil))
		assert.Nil(t, pkgerrors.WrapResource("get", "user", "1", nil))
		assert.Nil(t, pkgerrors.WrapParse("json", "f", nil))
	})

	t.Run("WrapIO", func(t *testing.T) {
		err := pkgerrors.WrapIO("open", "data/users.csv", errors.New("no such file"))
		ioErr, ok := err.(*pkgerrors.IOError)
		require.True(t, ok)
		assert.Equal(t, "open", ioErr.Operation)
		assert.Contains(t, err.Error(), "data/users.csv")
	})

	t.Run("WrapResource", func(t *testing.T) {
		err := pkgerrors.WrapResource("update", "group", "g-1", pkgerrors.ErrAlreadyExists)
		assert.Equal(t, "failed to update group g-1: already exists", err.Error())
		assert.True(t, pkgerrors.IsAlreadyExists(err))
	})
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("environment", "OMNI_BASE_URL and OMNI_API_KEY must be set", nil)
	assert.Equal(t, "configuration error in environment: OMNI_BASE_URL and OMNI_API_KEY must be set", err.Error())
}
