package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
		code   string
	}{
		{Validation(nil), http.StatusBadRequest, CodeValidation},
		{Compliance("0xabc"), http.StatusBadRequest, CodeWalletNotVerified},
		{Ineligible("0xabc", "retail", "US"), http.StatusBadRequest, CodeInvestorIneligible},
		{NotFound("note"), http.StatusNotFound, CodeNotFound},
		{MethodNotAllowed(http.MethodPut), http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{GenerationExhausted(16, nil), http.StatusInternalServerError, CodeGenerationExhausted},
		{Unauthorized("no key"), http.StatusUnauthorized, CodeUnauthorized},
		{Forbidden("no admin key"), http.StatusForbidden, CodeForbidden},
		{RateLimited(), http.StatusTooManyRequests, CodeRateLimited},
		{Internal(errors.New("boom")), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status())
			assert.Equal(t, tc.code, tc.err.Code)
		})
	}
}

func TestAsWrapsForeignErrors(t *testing.T) {
	cause := errors.New("disk on fire")
	e := As(cause)
	require.NotNil(t, e)
	assert.Equal(t, KindInternal, e.Kind)
	assert.ErrorIs(t, e, cause)

	wrapped := fmt.Errorf("issue: %w", Compliance("0xabc"))
	assert.True(t, Is(wrapped, KindCompliance))
	assert.Equal(t, CodeWalletNotVerified, As(wrapped).Code)
}
