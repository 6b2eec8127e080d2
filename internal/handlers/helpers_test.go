package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/middleware"
	"wealthsync/internal/validator"
)

const (
	testUserID    = "0190a8e4-7a1c-7b3e-9f2d-1c2b3a4d5e6f"
	testAccountID = "0190a8e4-8b2d-7c4f-a03e-2d3c4b5e6f70"
	testSessionID = "0190a8e4-9c3e-7d50-b14f-3e4d5c6f7081"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app error", apperrors.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
		{"wrapped app error", apperrors.Wrap(apperrors.ErrProviderTransport, errors.New("dial tcp: refused")), http.StatusBadGateway, apperrors.ErrProviderTransport.Code},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrInternalServer.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { respondWithError(c, tt.err) })

			rec := doRequest(r, http.MethodGet, "/", "")
			assertStatus(t, rec, tt.wantStatus)
			assertErrorCode(t, parseJSON(t, rec), tt.wantCode)
		})
	}
}

func TestGetUserIDMissing(t *testing.T) {
	r := gin.New()
	r.GET("/accounts", NewAccountHandler(&mockAccountService{}).GetUserAccounts)

	rec := doRequest(r, http.MethodGet, "/accounts", "")
	assertStatus(t, rec, http.StatusUnauthorized)
	assertErrorCode(t, parseJSON(t, rec), apperrors.ErrUnauthorized.Code)
}
