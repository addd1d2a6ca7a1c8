package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/examdrill/exam-engine/internal/config"
)

// NewHTTPServer wires the engine's routes: health and metrics, bank
// queries, practice and exam operations, backup, and the exam clock socket.
func NewHTTPServer(cfg *config.App, api *Handler, clock *ClockHandler) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/bank/meta", api.BankMeta)

	mux.HandleFunc("POST /v1/pool", api.BuildPool)
	mux.HandleFunc("POST /v1/practice/answer", api.PracticeAnswer)
	mux.HandleFunc("POST /v1/practice/favorite", api.ToggleFavorite)
	mux.HandleFunc("GET /v1/practice/stats", api.PracticeStats)

	mux.HandleFunc("POST /v1/exam/start", api.StartExam)
	mux.HandleFunc("POST /v1/exam/answer", api.ExamAnswer)
	mux.HandleFunc("GET /v1/exam/clock", api.ExamClock)
	mux.HandleFunc("POST /v1/exam/submit", api.SubmitExam)
	mux.HandleFunc("GET /v1/exam/report", api.ExamReport)

	mux.HandleFunc("/v1/backup", api.Backup)

	if clock != nil {
		mux.HandleFunc("GET /ws/exam", clock.HandleWebSocket)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}
