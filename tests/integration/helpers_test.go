//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
)

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func baseURL() string {
	return envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
}

// doJSON issues a request as the given user and decodes the JSON response
// into out when out is non-nil.
func doJSON(t *testing.T, method, path, user string, payload any, out any) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, fmt.Sprintf("%s%s", baseURL(), path), &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp
}

type renderedQuestion struct {
	Fingerprint string   `json:"fingerprint"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
}

// startExam starts a short exam for the user and returns its pool.
func startExam(t *testing.T, user string, durationSeconds, limit int) []renderedQuestion {
	t.Helper()

	var out struct {
		SessionID string             `json:"session_id"`
		Total     int                `json:"total"`
		Pool      []renderedQuestion `json:"pool"`
		EmptyPool bool               `json:"empty_pool"`
	}
	resp := doJSON(t, http.MethodPost, "/v1/exam/start", user,
		map[string]any{"duration_seconds": durationSeconds, "limit": limit, "use_blueprint": false}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start exam status: %d", resp.StatusCode)
	}
	if out.EmptyPool {
		t.Fatalf("exam pool came back empty; is a question bank loaded?")
	}
	return out.Pool
}
