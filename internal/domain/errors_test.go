package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"invalid plan", ErrInvalidPlan, CodeInvalidPlan, http.StatusBadRequest},
		{"wrapped signature", fmt.Errorf("verify: %w", ErrSignatureInvalid), CodeSignatureInvalid, http.StatusBadRequest},
		{"missing metadata", ErrMissingMetadata, CodeMissingMetadata, http.StatusBadRequest},
		{"configuration", ErrConfiguration, CodeConfiguration, http.StatusInternalServerError},
		{"store write", ErrStoreWrite, CodeStoreWrite, http.StatusInternalServerError},
		{"session creation", ErrSessionCreation, CodeSessionCreation, http.StatusBadGateway},
		{"provider timeout", ErrProviderTimeout, CodeProviderTimeout, http.StatusGatewayTimeout},
		{"validation", ValidationErrors{{Field: "userId", Message: "required"}}, CodeInvalidInput, http.StatusBadRequest},
		{"typed", NewEntitlementError(CodeStoreWrite, "boom", "u1", http.StatusInternalServerError, ErrStoreWrite), CodeStoreWrite, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, status := StatusOf(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestEntitlementErrorUnwraps(t *testing.T) {
	err := NewEntitlementError(CodeProviderTimeout, "stripe did not answer", "u1", http.StatusGatewayTimeout, ErrProviderTimeout)

	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.Contains(t, err.Error(), "u1")
}
