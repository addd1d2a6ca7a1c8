package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/examdrill/exam-engine/internal/bank"
	"github.com/examdrill/exam-engine/internal/config"
	"github.com/examdrill/exam-engine/internal/exam"
	"github.com/examdrill/exam-engine/internal/pool"
	"github.com/examdrill/exam-engine/internal/practice"
	"github.com/examdrill/exam-engine/internal/session"
	httperrors "github.com/examdrill/exam-engine/pkg/http/errors"
)

// Pool sampling modes accepted by the pool endpoint.
const (
	PoolModePlain     = "plain"
	PoolModeWeighted  = "weighted"
	PoolModeWrongOnly = "wrong_only"
)

// Reasons recorded when an exam session is finalized.
const (
	submitReasonExplicit = "submitted"
	submitReasonTimeout  = "timeout"
)

const defaultUserID = "local"

// Handler serves the engine API. The bank is shared read-only; everything
// mutable lives in per-user session states.
type Handler struct {
	bank         *bank.Bank
	bankWarning  string
	blueprint    *pool.Blueprint
	bpWarning    string
	builder      *pool.Builder
	sessions     *session.Manager
	examDefaults config.Exam
	metrics      *Metrics
	logger       zerolog.Logger
}

// HandlerOptions wires handler collaborators.
type HandlerOptions struct {
	Bank         *bank.Bank
	BankWarning  string
	Blueprint    *pool.Blueprint
	BPWarning    string
	Builder      *pool.Builder
	Sessions     *session.Manager
	ExamDefaults config.Exam
	Metrics      *Metrics
}

// NewHandler creates the API handler.
func NewHandler(opts HandlerOptions, logger zerolog.Logger) *Handler {
	return &Handler{
		bank:         opts.Bank,
		bankWarning:  opts.BankWarning,
		blueprint:    opts.Blueprint,
		bpWarning:    opts.BPWarning,
		builder:      opts.Builder,
		sessions:     opts.Sessions,
		examDefaults: opts.ExamDefaults,
		metrics:      opts.Metrics,
		logger:       logger.With().Str("component", "api").Logger(),
	}
}

// userID selects the per-user session state. No authentication by design:
// the header is a session discriminator, not an identity claim.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	if id := r.URL.Query().Get("user"); id != "" {
		return id
	}
	return defaultUserID
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed JSON body")
		return false
	}
	return true
}

// RenderQuestion is a question prepared for display: options pre-shuffled in
// the question's stable order, answer withheld.
type RenderQuestion struct {
	Fingerprint string   `json:"fingerprint"`
	Chapter     string   `json:"chapter"`
	Section     string   `json:"section"`
	Question    string   `json:"question"`
	Options     []string `json:"options,omitempty"`
	Type        string   `json:"type"`
	Difficulty  int      `json:"difficulty"`
	Tags        []string `json:"tags,omitempty"`
	Favorite    bool     `json:"favorite"`
}

func renderPool(qs []bank.Question, tracker *practice.Tracker) []RenderQuestion {
	out := make([]RenderQuestion, 0, len(qs))
	for _, q := range qs {
		fp := bank.Fingerprint(q)
		out = append(out, RenderQuestion{
			Fingerprint: fp,
			Chapter:     q.Chapter,
			Section:     q.Section,
			Question:    q.Text,
			Options:     bank.ShuffledOptions(q),
			Type:        q.Type,
			Difficulty:  q.Difficulty,
			Tags:        q.Tags,
			Favorite:    tracker.IsFavorite(fp),
		})
	}
	return out
}

// BankMeta reports bank composition for filter pickers.
func (h *Handler) BankMeta(w http.ResponseWriter, r *http.Request) {
	chapters := h.bank.Chapters()
	selected := r.URL.Query()["chapter"]
	if len(selected) == 0 {
		selected = chapters
	}
	resp := map[string]any{
		"questions": h.bank.Len(),
		"chapters":  chapters,
		"sections":  h.bank.SectionsFor(selected),
		"tags":      h.bank.Tags(),
	}
	if h.bankWarning != "" {
		resp["warning"] = h.bankWarning
	}
	if h.bpWarning != "" {
		resp["blueprint_warning"] = h.bpWarning
	}
	respondJSON(w, http.StatusOK, resp)
}

type buildPoolRequest struct {
	Mode    string      `json:"mode"`
	Filters pool.Filter `json:"filters"`
	Limit   int         `json:"limit"`
}

// BuildPool assembles a practice pool for the user. An empty result is a
// valid condition, reported rather than erroring.
func (h *Handler) BuildPool(w http.ResponseWriter, r *http.Request) {
	var req buildPoolRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = PoolModePlain
	}
	if req.Limit <= 0 {
		req.Limit = 30
	}

	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	wrong := st.Tracker.WrongSet()
	var qs []bank.Question
	switch req.Mode {
	case PoolModePlain:
		qs = h.builder.Plain(req.Filters, wrong, req.Limit)
	case PoolModeWeighted:
		qs = h.builder.WrongWeighted(req.Filters, wrong, req.Limit)
	case PoolModeWrongOnly:
		f := req.Filters
		f.WrongOnly = true
		qs = h.builder.Plain(f, wrong, req.Limit)
	default:
		httperrors.RespondBadRequest(w, httperrors.ErrCodeUnknownPoolMode, "mode must be plain, weighted or wrong_only")
		return
	}
	st.PracticePool = qs
	h.metrics.PoolsBuilt.WithLabelValues(req.Mode).Inc()

	respondJSON(w, http.StatusOK, map[string]any{
		"pool":       renderPool(qs, st.Tracker),
		"count":      len(qs),
		"empty_pool": len(qs) == 0,
	})
}

type answerRequest struct {
	Fingerprint string `json:"fingerprint"`
	Selected    string `json:"selected"`
}

// PracticeAnswer grades one practice answer with immediate feedback.
func (h *Handler) PracticeAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Fingerprint == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "fingerprint is required", "fingerprint")
		return
	}
	q, ok := h.bank.ByFingerprint(req.Fingerprint)
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuestionNotFound, "unknown question fingerprint")
		return
	}

	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	correct := st.Tracker.RecordAnswer(q, req.Selected)
	outcome := "wrong"
	if correct {
		outcome = "correct"
	}
	h.metrics.AnswersRecorded.WithLabelValues(outcome).Inc()
	h.sessions.Persist(r.Context(), st)

	respondJSON(w, http.StatusOK, map[string]any{
		"correct":     correct,
		"answer":      q.Answer,
		"explanation": q.Explanation,
		"accuracy":    st.Tracker.Accuracy(),
	})
}

type favoriteRequest struct {
	Fingerprint string `json:"fingerprint"`
}

// ToggleFavorite flips bookmark membership for a question.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := h.bank.ByFingerprint(req.Fingerprint); !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuestionNotFound, "unknown question fingerprint")
		return
	}

	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	fav := st.Tracker.ToggleFavorite(req.Fingerprint)
	h.sessions.Persist(r.Context(), st)
	respondJSON(w, http.StatusOK, map[string]any{"favorite": fav})
}

// PracticeStats returns the user's aggregate counters and exam history.
func (h *Handler) PracticeStats(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"stats":        st.Tracker.Stats(),
		"exam_records": st.Tracker.ExamRecords(),
	})
}

type startExamRequest struct {
	DurationSeconds int         `json:"duration_seconds"`
	PassLine        int         `json:"pass_line"`
	UseBlueprint    *bool       `json:"use_blueprint"`
	Limit           int         `json:"limit"`
	Filters         pool.Filter `json:"filters"`
}

// StartExam assembles the exam pool and starts a fresh timed session,
// replacing any previous one.
func (h *Handler) StartExam(w http.ResponseWriter, r *http.Request) {
	var req startExamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	duration := h.examDefaults.DefaultDuration
	if req.DurationSeconds > 0 {
		duration = time.Duration(req.DurationSeconds) * time.Second
	}
	limit := h.examDefaults.DefaultPoolLimit
	if req.Limit > 0 {
		limit = req.Limit
	}
	useBlueprint := h.blueprint != nil
	if req.UseBlueprint != nil {
		useBlueprint = *req.UseBlueprint && h.blueprint != nil
	}

	filters := req.Filters
	filters.MCQOnly = true
	filters.WrongOnly = false

	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	var qs []bank.Question
	passLine := h.examDefaults.DefaultPassLine
	if useBlueprint {
		qs = h.builder.FromBlueprint(h.blueprint, filters)
		passLine = h.blueprint.PassLine()
		if len(qs) == 0 {
			// Blueprint rules matched nothing; fall back to plain assembly.
			fallbackLimit := h.blueprint.Total
			if fallbackLimit <= 0 {
				fallbackLimit = limit
			}
			qs = h.builder.Plain(filters, nil, fallbackLimit)
		}
	} else {
		qs = h.builder.Plain(filters, nil, limit)
	}
	if req.PassLine > 0 {
		passLine = req.PassLine
	}

	if len(qs) == 0 {
		respondJSON(w, http.StatusOK, map[string]any{
			"empty_pool": true,
			"pool":       []RenderQuestion{},
		})
		return
	}

	s := exam.NewSession()
	if err := s.Start(qs, duration, passLine); err != nil {
		httperrors.RespondInternalError(w, "failed to start exam session")
		return
	}
	st.Exam = s
	st.LastReport = nil
	h.metrics.ExamsStarted.Inc()

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":       s.ID,
		"duration_seconds": int(duration / time.Second),
		"pass_line":        passLine,
		"total":            len(qs),
		"pool":             renderPool(qs, st.Tracker),
	})
}

// finalizeExam scores a submitted session, stores the report, feeds misses
// into the tracker and persists. Caller holds the state lock.
func (h *Handler) finalizeExam(ctx context.Context, st *session.State, reason string) *exam.Report {
	report, err := exam.Score(st.Exam, st.Tracker)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", st.UserID).Msg("exam scoring failed")
		return nil
	}
	st.LastReport = &report
	st.Tracker.AddExamRecord(practice.ExamRecord{
		Score:     report.Score,
		Passed:    report.Passed,
		Total:     report.Total,
		Correct:   report.Correct,
		Timestamp: report.Timestamp,
	})
	h.metrics.ExamsSubmitted.WithLabelValues(reason).Inc()
	h.sessions.Persist(ctx, st)
	return &report
}

// tickExam advances the countdown and finalizes on timeout. Caller holds the
// state lock.
func (h *Handler) tickExam(ctx context.Context, st *session.State) {
	if st.Exam != nil && st.Exam.Tick() {
		h.finalizeExam(ctx, st, submitReasonTimeout)
	}
}

// ExamAnswer upserts an answer for the running exam.
func (h *Handler) ExamAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	if st.Exam == nil {
		httperrors.RespondConflict(w, httperrors.ErrCodeNoActiveExam, "no exam session")
		return
	}
	h.tickExam(r.Context(), st)

	if err := st.Exam.SetAnswer(req.Fingerprint, req.Selected); err != nil {
		httperrors.RespondConflict(w, httperrors.ErrCodeInvalidState, "exam is not running")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"answered": st.Exam.AnsweredCount(),
		"total":    len(st.Exam.Pool()),
	})
}

// ExamClock reports the countdown, auto-submitting on timeout.
func (h *Handler) ExamClock(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	if st.Exam == nil {
		httperrors.RespondConflict(w, httperrors.ErrCodeNoActiveExam, "no exam session")
		return
	}
	h.tickExam(r.Context(), st)

	respondJSON(w, http.StatusOK, map[string]any{
		"state":             st.Exam.State(),
		"remaining_seconds": st.Exam.RemainingSeconds(),
		"answered":          st.Exam.AnsweredCount(),
		"total":             len(st.Exam.Pool()),
	})
}

// SubmitExam finalizes the running exam and returns the report. A duplicate
// submit after timeout returns the existing report instead of failing, so
// stray clicks stay idempotent.
func (h *Handler) SubmitExam(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	if st.Exam == nil {
		httperrors.RespondConflict(w, httperrors.ErrCodeNoActiveExam, "no exam session")
		return
	}
	h.tickExam(r.Context(), st)

	if err := st.Exam.Submit(); err != nil {
		if st.LastReport != nil {
			respondJSON(w, http.StatusOK, st.LastReport)
			return
		}
		httperrors.RespondConflict(w, httperrors.ErrCodeInvalidState, "exam is not running")
		return
	}

	report := h.finalizeExam(r.Context(), st, submitReasonExplicit)
	if report == nil {
		httperrors.RespondInternalError(w, "exam scoring failed")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// ExamReport returns the latest report for the user.
func (h *Handler) ExamReport(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	if st.LastReport == nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoReport, "no exam report available")
		return
	}
	respondJSON(w, http.StatusOK, st.LastReport)
}

// Backup exports or imports the user's progress blob.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	st := h.sessions.Get(r.Context(), userID(r))
	st.Lock()
	defer st.Unlock()

	switch r.Method {
	case http.MethodGet:
		blob, err := st.Tracker.ExportJSON()
		if err != nil {
			httperrors.RespondInternalError(w, "backup export failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(blob)

	case http.MethodPost:
		blob, err := io.ReadAll(r.Body)
		if err != nil {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "unreadable body")
			return
		}
		if err := st.Tracker.ImportJSON(blob, h.bank); err != nil {
			// Import failure leaves current state untouched.
			httperrors.RespondBadRequest(w, httperrors.ErrCodeImportFailed, "malformed backup blob")
			return
		}
		h.sessions.Persist(r.Context(), st)
		respondJSON(w, http.StatusOK, map[string]any{"imported": true})

	default:
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "unsupported method")
	}
}
