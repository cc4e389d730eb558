package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/ratelimit"
	"github.com/Skotchmaster/auth_service/internal/service"
)

func TestWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		op   string
		err  error
		code int
		msg  string
	}{
		{"rate limited", "login", fmt.Errorf("check: %w", ratelimit.ErrLimited), http.StatusTooManyRequests, msgRateLimited},
		{"wrong current password", "change_password", service.ErrInvalidCredentials, http.StatusUnauthorized, "Current password is incorrect"},
		{"same password", "change_password", service.ErrSamePassword, http.StatusBadRequest, msgSamePassword},
		{"unexpected", "login", errors.New("boom"), http.StatusInternalServerError, msgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
			var he *echo.HTTPError
			require.ErrorAs(t, writeError(c, tt.op, tt.err), &he)
			assert.Equal(t, tt.code, he.Code)
			assert.Equal(t, echo.Map{"error": tt.msg}, he.Message)
		})
	}
}
