package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planBody struct {
	Plan string `json:"plan" validate:"required"`
}

func TestHandleBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantCode int
	}{
		{"valid", `{"plan":"pro"}`, true, http.StatusOK},
		{"missing field", `{}`, false, http.StatusBadRequest},
		{"empty body", ``, false, http.StatusBadRequest},
		{"malformed", `{"plan":`, false, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			got, err := HandleBody[planBody](w, r, logger.Nop())
			if tt.wantOK {
				require.NoError(t, err)
				assert.Equal(t, "pro", got.Plan)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), "InvalidInput")
		})
	}
}
