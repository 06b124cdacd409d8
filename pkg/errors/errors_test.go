package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeIdempotency:   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key conflict"},
		CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, Retryable: true, PublicMessage: "rate limit exceeded"},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
		"NOT_A_CODE":      {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), code)
	}
}

func TestErrorMessageAndChain(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load staff")
	assert.Equal(t, "DEPENDENCY_ERROR: load staff: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	plain := Newf(CodeNotFound, "shift %s not found", "s-1")
	assert.Equal(t, "NOT_FOUND: shift s-1 not found", plain.Error())
	assert.Nil(t, plain.Unwrap())
	assert.Equal(t, "NOT_FOUND: gone", Wrap(CodeNotFound, nil, "gone").Error())
}

func TestDetails(t *testing.T) {
	err := New(CodeValidation, "invalid body")
	assert.Nil(t, err.Details())
	err.WithDetails(map[string]string{"timesheet_id": "required"})
	assert.Equal(t, map[string]string{"timesheet_id": "required"}, err.Details())

	var missing *Error
	assert.Nil(t, missing.WithDetails("x"))
	assert.Equal(t, CodeInternal, missing.Code())
}

func TestAsAndIsCodeFollowWrapping(t *testing.T) {
	err := fmt.Errorf("validate timesheet: %w", New(CodeStateConflict, "already approved"))
	typed := As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "already approved", typed.Message())
	assert.True(t, IsCode(err, CodeStateConflict))
	assert.False(t, IsCode(err, CodeConflict))
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(stdErrors.New("timeout")))
	assert.False(t, IsRetryable(New(CodeValidation, "bad")))
	assert.True(t, IsRetryable(fmt.Errorf("send: %w", New(CodeDependency, "sms relay down"))))
}
