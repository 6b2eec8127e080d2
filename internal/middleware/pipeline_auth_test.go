package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

// pipelineRouter mounts the guard in front of a handler that counts calls.
func pipelineRouter(apiKey string, calls *int) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/internal/sync", PipelineAuthMiddleware(apiKey), func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
	})
	return r
}

func TestPipelineAuthMiddleware(t *testing.T) {
	const key = "pipeline-key-0190f1f5"

	tests := []struct {
		name          string
		configuredKey string
		header        string
		want          *apperrors.AppError
		wantLogged    bool
	}{
		{name: "matching_key", configuredKey: key, header: key},
		{name: "wrong_key", configuredKey: key, header: "pipeline-key-0190f1f6", want: apperrors.ErrInvalidAPIKey, wantLogged: true},
		{name: "missing_header", configuredKey: key, want: apperrors.ErrInvalidAPIKey, wantLogged: true},
		{name: "prefix_of_key", configuredKey: key, header: key[:10], want: apperrors.ErrInvalidAPIKey, wantLogged: true},
		{name: "endpoint_disabled", header: key, want: apperrors.ErrPipelineNotConfigured},
		{name: "endpoint_disabled_no_header", want: apperrors.ErrPipelineNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			restore := logger.Replace(zap.New(core))
			defer restore()

			var calls int
			req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/sync", http.NoBody)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			pipelineRouter(tt.configuredKey, &calls).ServeHTTP(rec, req)

			if tt.want == nil {
				if rec.Code != http.StatusAccepted || calls != 1 {
					t.Fatalf("status = %d, calls = %d; want the sync to be triggered", rec.Code, calls)
				}
				if logs.Len() != 0 {
					t.Errorf("accepted request logged %d warnings", logs.Len())
				}
				return
			}

			if rec.Code != tt.want.StatusCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.want.StatusCode)
			}
			if calls != 0 {
				t.Error("rejected request reached the handler")
			}
			errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
			if !ok {
				t.Fatalf("expected error object, got %s", rec.Body.String())
			}
			if errObj["code"] != tt.want.Code || errObj["message"] != tt.want.Message {
				t.Errorf("error = %v, want %s %q", errObj, tt.want.Code, tt.want.Message)
			}

			rejected := logs.FilterMessage("rejected pipeline request").All()
			if !tt.wantLogged {
				if len(rejected) != 0 {
					t.Errorf("unexpected rejection log: %v", rejected)
				}
				return
			}
			if len(rejected) != 1 {
				t.Fatalf("expected 1 rejection log, got %d", len(rejected))
			}
			fields := rejected[0].ContextMap()
			if fields["path"] != "/api/v1/internal/sync" {
				t.Errorf("path = %v", fields["path"])
			}
			for _, v := range fields {
				if v == tt.header && tt.header != "" {
					t.Error("the presented key must not be logged")
				}
			}
		})
	}
}
