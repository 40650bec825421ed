package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-hikepal/internal/auth"
	"backend-hikepal/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:          "secret",
		ServerPort:         ":0",
		UploadInterval:     10 * time.Second,
		DefaultZoneRadiusM: 50,
		GeminiModel:        "gemini-test",
		GeminiBaseURL:      "https://gemini.test/v1beta",
		SimulationStep:     time.Second,
	}
}

func TestHealthRoute(t *testing.T) {
	s := NewServer(testConfig(), nil, nil, nil)
	defer s.Close()

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
}

func TestCompanionRequiresBearer(t *testing.T) {
	s := NewServer(testConfig(), nil, nil, nil)
	defer s.Close()

	req := httptest.NewRequest(http.MethodPost, "/companion/hike-1/enter", nil)
	resp, _ := s.App.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}
}

func TestCompanionWithoutDatabase(t *testing.T) {
	s := NewServer(testConfig(), nil, nil, nil)
	defer s.Close()

	tokens, err := auth.NewService("secret").IssueToken("user-1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	bearer := "Bearer " + tokens.AccessToken

	for _, step := range []struct {
		path   string
		body   string
		status int
	}{
		{"/companion/hike-1/enter", "", http.StatusOK},
		{"/companion/hike-1/start", "", http.StatusOK},
		{"/companion/hike-1/positions", `{"lat":22.229,"lng":114.2425}`, http.StatusAccepted},
		{"/companion/hike-1/stop", "", http.StatusOK},
		{"/companion/hike-1/save", `{"name":"Dragon's Back"}`, http.StatusInternalServerError},
		{"/hikes/hike-1/complete", "", http.StatusServiceUnavailable},
	} {
		req := httptest.NewRequest(http.MethodPost, step.path, bytes.NewReader([]byte(step.body)))
		req.Header.Set("Authorization", bearer)
		if step.body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := s.App.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", step.path, err)
		}
		if resp.StatusCode != step.status {
			t.Fatalf("%s: expected %d, got %d", step.path, step.status, resp.StatusCode)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/risk-zones", nil)
	resp, err := s.App.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("risk zones should degrade to an empty list: %v", err)
	}
	if s.Companion.Len() != 1 {
		t.Fatalf("expected one open companion session")
	}
}
