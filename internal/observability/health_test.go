package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func okCheck(ctx context.Context) (bool, error)   { return true, nil }
func failCheck(ctx context.Context) (bool, error) { return false, errors.New("no api key") }

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Status != "healthy" || status.Service != "voicebot" {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	rec := httptest.NewRecorder()
	handler := ReadinessHandler(map[string]HealthCheckFunc{"completion": okCheck, "tts": okCheck})
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status HealthStatus
	json.NewDecoder(rec.Body).Decode(&status)
	if status.Status != "ready" {
		t.Errorf("Expected status 'ready', got '%s'", status.Status)
	}
	if len(status.Dependencies) != 2 {
		t.Errorf("Expected 2 dependencies, got %d", len(status.Dependencies))
	}
}

func TestReadinessHandler_Unhealthy(t *testing.T) {
	rec := httptest.NewRecorder()
	handler := ReadinessHandler(map[string]HealthCheckFunc{"completion": failCheck, "tts": okCheck})
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	var status HealthStatus
	json.NewDecoder(rec.Body).Decode(&status)
	dep := status.Dependencies["completion"]
	if dep.Status != "unhealthy" || dep.Message != "no api key" {
		t.Errorf("Unexpected completion dependency: %+v", dep)
	}
	if status.Dependencies["tts"].Status != "healthy" {
		t.Errorf("Expected tts healthy, got %+v", status.Dependencies["tts"])
	}
}

func TestGRPCHealthServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	hs := NewGRPCHealthServer(map[string]HealthCheckFunc{"completion": okCheck, "stt": failCheck}, time.Hour)
	go hs.Serve(lis)
	defer hs.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		service string
		want    healthpb.HealthCheckResponse_ServingStatus
	}{
		{"voicebot.completion", healthpb.HealthCheckResponse_SERVING},
		{"voicebot.stt", healthpb.HealthCheckResponse_NOT_SERVING},
		{"", healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: tt.service})
		if err != nil {
			t.Fatalf("Check(%q) failed: %v", tt.service, err)
		}
		if resp.Status != tt.want {
			t.Errorf("Check(%q): expected %v, got %v", tt.service, tt.want, resp.Status)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug").String() != "debug" {
		t.Errorf("Expected debug level")
	}
	if ParseLevel("bogus").String() != "info" {
		t.Errorf("Expected unknown level to default to info")
	}
}
