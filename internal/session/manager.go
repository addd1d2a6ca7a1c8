package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/examdrill/exam-engine/internal/bank"
	"github.com/examdrill/exam-engine/internal/exam"
	"github.com/examdrill/exam-engine/internal/practice"
)

// State is one user's mutable engine state: tracker, current practice pool,
// and the active exam session. Handlers lock the state for the span of one
// user action so each action is a single atomic step. The question bank is
// the only resource shared across users, read-only.
type State struct {
	sync.Mutex

	UserID       string
	Tracker      *practice.Tracker
	PracticePool []bank.Question
	Exam         *exam.Session
	LastReport   *exam.Report
}

// Manager owns per-user states, hydrating them from the snapshot store on
// first touch and persisting after mutating actions.
type Manager struct {
	mu     sync.Mutex
	states map[string]*State
	bank   *bank.Bank
	store  SnapshotStore
	logger zerolog.Logger
}

// NewManager creates a session manager over the shared bank.
func NewManager(b *bank.Bank, store SnapshotStore, logger zerolog.Logger) *Manager {
	return &Manager{
		states: make(map[string]*State),
		bank:   b,
		store:  store,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Get returns the state for a user, creating and hydrating it on first
// touch. A broken or missing snapshot yields a fresh tracker; hydration
// failures are logged, never surfaced. Hydration runs outside the registry
// lock so one user's slow snapshot fetch never stalls other users; the
// insert is double-checked and the first state in wins.
func (m *Manager) Get(ctx context.Context, userID string) *State {
	m.mu.Lock()
	if st, ok := m.states[userID]; ok {
		m.mu.Unlock()
		return st
	}
	m.mu.Unlock()

	st := &State{
		UserID:  userID,
		Tracker: practice.NewTracker(),
	}
	if m.store != nil {
		blob, err := m.store.Get(ctx, userID)
		switch {
		case err != nil:
			m.logger.Warn().Err(err).Str("user_id", userID).Msg("snapshot fetch failed")
		case blob != nil:
			if err := st.Tracker.ImportJSON(blob, m.bank); err != nil {
				m.logger.Warn().Err(err).Str("user_id", userID).Msg("snapshot hydrate failed")
				st.Tracker = practice.NewTracker()
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.states[userID]; ok {
		return existing
	}
	m.states[userID] = st
	return st
}

// Persist snapshots a user's tracker to the store. Best effort: failures are
// logged and the in-memory state stays authoritative.
func (m *Manager) Persist(ctx context.Context, st *State) {
	if m.store == nil {
		return
	}
	blob, err := st.Tracker.ExportJSON()
	if err != nil {
		m.logger.Warn().Err(err).Str("user_id", st.UserID).Msg("snapshot export failed")
		return
	}
	if err := m.store.Set(ctx, st.UserID, blob); err != nil {
		m.logger.Warn().Err(err).Str("user_id", st.UserID).Msg("snapshot store failed")
	}
}
