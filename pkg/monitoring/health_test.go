package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCheckHealthAggregation(t *testing.T) {
	hc := NewHealthChecker("paymaster", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })

	if got := hc.CheckHealth().Status; got != StatusHealthy {
		t.Fatalf("expected healthy, got %s", got)
	}

	hc.AddCheck("slow", func() CheckResult { return CheckResult{Status: StatusDegraded} })
	if got := hc.CheckHealth().Status; got != StatusDegraded {
		t.Fatalf("expected degraded, got %s", got)
	}

	hc.AddCheck("down", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })
	if got := hc.CheckHealth().Status; got != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", got)
	}
}

func TestHealthHandlerStatusCode(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hc := NewHealthChecker("paymaster", "v1")
	hc.AddCheck("down", func() CheckResult { return CheckResult{Status: StatusUnhealthy, Message: "db gone"} })

	r := gin.New()
	r.GET("/health", hc.Handler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad health body: %v", err)
	}
	if status.Checks["down"].Message != "db gone" {
		t.Fatalf("expected check message to surface, got %+v", status.Checks)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	check := ConfigurationHealthCheck(map[string]string{"DATABASE_URL": "set", "JWT_SECRET": ""})
	if got := check().Status; got != "unhealthy" {
		t.Fatalf("expected unhealthy for missing config, got %s", got)
	}

	check = ConfigurationHealthCheck(map[string]string{"DATABASE_URL": "set"})
	if got := check().Status; got != "healthy" {
		t.Fatalf("expected healthy, got %s", got)
	}
}
