package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/live-service/internal/archive"
	"github.com/weiawesome/wes-io-live/live-service/internal/live"
	"github.com/weiawesome/wes-io-live/live-service/pkg/jwt"
	"github.com/weiawesome/wes-io-live/live-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/live-service/pkg/storage"
)

func TestReportRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	objects, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	writer := archive.NewWriter(objects, "reports")
	started := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)
	key, err := writer.WriteReport(context.Background(), live.SessionReport{
		SessionID:   "S1",
		StartedAt:   started,
		EndedAt:     started.Add(time.Minute),
		EndReason:   "ended",
		PeakViewers: 3,
	})
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	tokens, _ := jwt.NewManager("test-secret", "", time.Hour)
	admin, _ := tokens.GenerateToken("u-admin", "", "root", []string{"admin"})

	h := NewHandler(nil, nil, nil, middleware.NewAuthMiddleware(tokens), "admin", nil).
		WithReports(writer, time.Minute)
	r := gin.New()
	h.RegisterRoutes(r)

	get := func(path string) (int, map[string]interface{}) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+admin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var out map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &out)
		return w.Code, out
	}

	status, body := get("/api/v1/live/reports?day=2026-10-19")
	if status != http.StatusOK {
		t.Fatalf("list = %d %v", status, body)
	}
	data := body["data"].(map[string]interface{})
	list, _ := data["reports"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("reports = %v", data)
	}
	entry := list[0].(map[string]interface{})
	if entry["key"] != key || entry["url"] != "/"+key {
		t.Fatalf("entry = %v, want key %s", entry, key)
	}

	if status, _ := get("/api/v1/live/reports?day=yesterday"); status != http.StatusBadRequest {
		t.Fatalf("bad day = %d", status)
	}

	status, body = get("/api/v1/live/reports/item?key=" + key)
	if status != http.StatusOK {
		t.Fatalf("item = %d %v", status, body)
	}
	if got := body["data"].(map[string]interface{}); got["sessionId"] != "S1" || got["peakViewers"] != float64(3) {
		t.Fatalf("report = %v", got)
	}

	if status, _ := get("/api/v1/live/reports/item?key=reports/2026-10-19/missing.json"); status != http.StatusNotFound {
		t.Fatalf("missing report = %d", status)
	}
}
