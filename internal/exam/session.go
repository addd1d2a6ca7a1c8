package exam

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/examdrill/exam-engine/internal/bank"
)

// Session lifecycle states.
const (
	StateNotStarted = "not_started"
	StateRunning    = "running"
	StateSubmitted  = "submitted"
)

// ErrInvalidTransition signals a contract violation such as submitting a
// session that is not running. Callers treat it as a stray duplicate action
// and ignore it idempotently; it is distinct from data errors.
var ErrInvalidTransition = errors.New("invalid exam state transition")

// Session is the state machine for one timed exam. Submitted is terminal; a
// new exam replaces the session rather than reusing it. The countdown is
// advisory and recomputed from wall-clock time on every check, so no timer
// goroutine is needed.
type Session struct {
	ID       string
	pool     []bank.Question
	answers  map[string]string
	startAt  time.Time
	duration time.Duration
	passLine int
	state    string

	now func() time.Time
}

// NewSession creates a not-started session.
func NewSession() *Session {
	return &Session{
		ID:      uuid.NewString(),
		answers: make(map[string]string),
		state:   StateNotStarted,
		now:     time.Now,
	}
}

// Start moves the session to running over the given pool. The pool is owned
// by the session from here on. Valid only from not-started.
func (s *Session) Start(pool []bank.Question, duration time.Duration, passLine int) error {
	if s.state != StateNotStarted {
		return ErrInvalidTransition
	}
	s.pool = pool
	s.answers = make(map[string]string)
	s.duration = duration
	s.passLine = passLine
	s.startAt = s.now()
	s.state = StateRunning
	return nil
}

// SetAnswer upserts the selected option for a question. Valid only while
// running; it never advances state.
func (s *Session) SetAnswer(fp, selected string) error {
	if s.state != StateRunning {
		return ErrInvalidTransition
	}
	s.answers[fp] = selected
	return nil
}

// Answer returns the stored selection for a fingerprint.
func (s *Session) Answer(fp string) (string, bool) {
	sel, ok := s.answers[fp]
	return sel, ok
}

// RemainingSeconds reports the countdown, floored at zero. Zero for any
// non-running session. Elapsed time is truncated to whole seconds before
// subtracting, so a fractional second underway never shortens the exam.
func (s *Session) RemainingSeconds() int {
	if s.state != StateRunning {
		return 0
	}
	elapsed := int(s.now().Sub(s.startAt) / time.Second)
	remaining := int(s.duration/time.Second) - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Tick auto-submits a running session whose time is up. Returns true when
// the transition happened on this call.
func (s *Session) Tick() bool {
	if s.state == StateRunning && s.RemainingSeconds() == 0 {
		s.state = StateSubmitted
		return true
	}
	return false
}

// Submit finalizes the session immediately regardless of remaining time.
// Valid only while running.
func (s *Session) Submit() error {
	if s.state != StateRunning {
		return ErrInvalidTransition
	}
	s.state = StateSubmitted
	return nil
}

// State returns the lifecycle state.
func (s *Session) State() string {
	return s.state
}

// Pool returns the exam's question pool in exam order.
func (s *Session) Pool() []bank.Question {
	return s.pool
}

// PassLine returns the pass threshold the session was started with.
func (s *Session) PassLine() int {
	return s.passLine
}

// AnsweredCount returns how many questions have a stored selection.
func (s *Session) AnsweredCount() int {
	return len(s.answers)
}
