package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examdrill/exam-engine/internal/bank"
	"github.com/examdrill/exam-engine/internal/config"
	"github.com/examdrill/exam-engine/internal/pool"
	"github.com/examdrill/exam-engine/internal/session"
)

func testBank(n int) *bank.Bank {
	qs := make([]bank.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, bank.Question{
			Chapter: fmt.Sprintf("ch%d", i%2+1),
			Section: fmt.Sprintf("s%d", i%3),
			Text:    fmt.Sprintf("question %d", i),
			Options: []string{"A", "B", "C", "D"},
			Answer:  "A",
			Tags:    []string{"core"},
		})
	}
	return bank.New(qs)
}

func newTestServer(t *testing.T, bp *pool.Blueprint) (*httptest.Server, *bank.Bank) {
	t.Helper()
	bk := testBank(20)
	logger := zerolog.Nop()
	sessions := session.NewManager(bk, session.NewMemoryStore(), logger)
	api := NewHandler(HandlerOptions{
		Bank:      bk,
		Blueprint: bp,
		Builder:   pool.NewBuilder(bk, pool.BuilderOptions{}),
		Sessions:  sessions,
		ExamDefaults: config.Exam{
			DefaultDuration:  time.Minute,
			DefaultPassLine:  60,
			DefaultPoolLimit: 100,
		},
		Metrics: NewMetrics(prometheus.NewRegistry()),
	}, logger)

	cfg := &config.App{HTTPAddr: "127.0.0.1:0"}
	srv := httptest.NewServer(NewHTTPServer(cfg, api, nil).Handler)
	t.Cleanup(srv.Close)
	return srv, bk
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestBankMeta(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var meta struct {
		Questions int      `json:"questions"`
		Chapters  []string `json:"chapters"`
		Tags      []string `json:"tags"`
	}
	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/bank/meta", nil, &meta)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 20, meta.Questions)
	assert.Equal(t, []string{"ch1", "ch2"}, meta.Chapters)
	assert.Equal(t, []string{"core"}, meta.Tags)
}

func TestBuildPoolAndEmptyCondition(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var out struct {
		Pool      []RenderQuestion `json:"pool"`
		Count     int              `json:"count"`
		EmptyPool bool             `json:"empty_pool"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/pool",
		map[string]any{"mode": "plain", "limit": 5}, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, out.Count)
	assert.False(t, out.EmptyPool)
	assert.NotEmpty(t, out.Pool[0].Fingerprint)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/pool",
		map[string]any{"mode": "plain", "filters": map[string]any{"chapters": []string{"nope"}}}, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.EmptyPool)
}

func TestBuildPoolUnknownMode(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/pool", map[string]any{"mode": "bogus"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBuildPoolWrongOnlyMode(t *testing.T) {
	srv, bk := newTestServer(t, nil)
	fp := bank.Fingerprint(bk.All()[0])

	// Nothing missed yet: the wrong-only pool is empty.
	var out struct {
		Count     int  `json:"count"`
		EmptyPool bool `json:"empty_pool"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/v1/pool", map[string]any{"mode": "wrong_only"}, &out)
	assert.True(t, out.EmptyPool)

	doJSON(t, http.MethodPost, srv.URL+"/v1/practice/answer",
		map[string]string{"fingerprint": fp, "selected": "B"}, nil)

	doJSON(t, http.MethodPost, srv.URL+"/v1/pool", map[string]any{"mode": "wrong_only"}, &out)
	assert.Equal(t, 1, out.Count)
}

func TestPracticeAnswerFlow(t *testing.T) {
	srv, bk := newTestServer(t, nil)
	fp := bank.Fingerprint(bk.All()[0])

	var out struct {
		Correct  bool    `json:"correct"`
		Answer   string  `json:"answer"`
		Accuracy float64 `json:"accuracy"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/practice/answer",
		map[string]string{"fingerprint": fp, "selected": "A"}, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Correct)
	assert.Equal(t, 100.0, out.Accuracy)

	doJSON(t, http.MethodPost, srv.URL+"/v1/practice/answer",
		map[string]string{"fingerprint": fp, "selected": "B"}, &out)
	assert.False(t, out.Correct)
	assert.Equal(t, "A", out.Answer)
	assert.Equal(t, 50.0, out.Accuracy)

	var stats struct {
		Stats struct {
			Attempts   int `json:"attempts"`
			WrongTotal int `json:"wrong_total"`
		} `json:"stats"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/practice/stats", nil, &stats)
	assert.Equal(t, 2, stats.Stats.Attempts)
	assert.Equal(t, 1, stats.Stats.WrongTotal)
}

func TestPracticeAnswerUnknownFingerprint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/practice/answer",
		map[string]string{"fingerprint": "deadbeef", "selected": "A"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestToggleFavorite(t *testing.T) {
	srv, bk := newTestServer(t, nil)
	fp := bank.Fingerprint(bk.All()[0])

	var out struct {
		Favorite bool `json:"favorite"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/v1/practice/favorite", map[string]string{"fingerprint": fp}, &out)
	assert.True(t, out.Favorite)
	doJSON(t, http.MethodPost, srv.URL+"/v1/practice/favorite", map[string]string{"fingerprint": fp}, &out)
	assert.False(t, out.Favorite)
}

func TestExamFullFlow(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var started struct {
		SessionID string           `json:"session_id"`
		Total     int              `json:"total"`
		PassLine  int              `json:"pass_line"`
		Pool      []RenderQuestion `json:"pool"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/exam/start",
		map[string]any{"duration_seconds": 60, "limit": 10}, &started)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 10, started.Total)
	assert.Equal(t, 60, started.PassLine)
	assert.NotEmpty(t, started.SessionID)

	// Answer 7 correctly, 2 wrong, leave 1 unanswered.
	for i, q := range started.Pool {
		sel := "A"
		if i >= 7 && i < 9 {
			sel = "B"
		}
		if i == 9 {
			continue
		}
		r := doJSON(t, http.MethodPost, srv.URL+"/v1/exam/answer",
			map[string]string{"fingerprint": q.Fingerprint, "selected": sel}, nil)
		require.Equal(t, http.StatusOK, r.StatusCode)
	}

	var clock struct {
		State            string `json:"state"`
		RemainingSeconds int    `json:"remaining_seconds"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/exam/clock", nil, &clock)
	assert.Equal(t, "running", clock.State)
	assert.Greater(t, clock.RemainingSeconds, 0)

	var report struct {
		Score   float64 `json:"score"`
		Passed  bool    `json:"passed"`
		Correct int     `json:"correct"`
		Wrong   int     `json:"wrong"`
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/exam/submit", nil, &report)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 70.0, report.Score)
	assert.True(t, report.Passed)
	assert.Equal(t, 7, report.Correct)
	assert.Equal(t, 3, report.Wrong)

	// The report endpoint serves the same result.
	doJSON(t, http.MethodGet, srv.URL+"/v1/exam/report", nil, &report)
	assert.Equal(t, 70.0, report.Score)

	// Duplicate submit is handled idempotently.
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/exam/submit", nil, &report)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 70.0, report.Score)

	// Exam misses feed the practice wrong record.
	var stats struct {
		Stats struct {
			WrongTotal int `json:"wrong_total"`
		} `json:"stats"`
		ExamRecords []struct {
			Score float64 `json:"score"`
		} `json:"exam_records"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/practice/stats", nil, &stats)
	assert.Equal(t, 3, stats.Stats.WrongTotal)
	require.Len(t, stats.ExamRecords, 1)
	assert.Equal(t, 70.0, stats.ExamRecords[0].Score)
}

func TestExamActionsWithoutSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/exam/submit", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/exam/answer",
		map[string]string{"fingerprint": "x", "selected": "A"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/exam/report", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExamStartWithBlueprint(t *testing.T) {
	bp := &pool.Blueprint{
		Total:     6,
		PassScore: 70,
		Rules: []pool.Rule{
			{Count: 3, Chapter: pool.StringList{"ch1"}},
			{Count: 3, Chapter: pool.StringList{"ch2"}},
		},
	}
	srv, _ := newTestServer(t, bp)

	var started struct {
		Total    int `json:"total"`
		PassLine int `json:"pass_line"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/exam/start", map[string]any{}, &started)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6, started.Total)
	assert.Equal(t, 70, started.PassLine)
}

func TestExamStartEmptyPool(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var out struct {
		EmptyPool bool `json:"empty_pool"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/exam/start",
		map[string]any{"filters": map[string]any{"chapters": []string{"nope"}}}, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.EmptyPool)
}

func TestBackupRoundTripOverHTTP(t *testing.T) {
	srv, bk := newTestServer(t, nil)
	fp := bank.Fingerprint(bk.All()[0])

	doJSON(t, http.MethodPost, srv.URL+"/v1/practice/answer",
		map[string]string{"fingerprint": fp, "selected": "B"}, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/backup", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	blob := new(bytes.Buffer)
	_, err = blob.ReadFrom(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	// Import into a different user and verify the wrong record moved over.
	req, err = http.NewRequest(http.MethodPost, srv.URL+"/v1/backup", bytes.NewReader(blob.Bytes()))
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "other")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/v1/practice/stats", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "other")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats struct {
		Stats struct {
			WrongTotal int `json:"wrong_total"`
		} `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Stats.WrongTotal)
}

func TestBackupImportMalformed(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/backup", bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserIsolation(t *testing.T) {
	srv, bk := newTestServer(t, nil)
	fp := bank.Fingerprint(bk.All()[0])

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/practice/answer",
		bytes.NewReader([]byte(fmt.Sprintf(`{"fingerprint":%q,"selected":"A"}`, fp))))
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Default user sees no attempts.
	var stats struct {
		Stats struct {
			Attempts int `json:"attempts"`
		} `json:"stats"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/practice/stats", nil, &stats)
	assert.Equal(t, 0, stats.Stats.Attempts)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
