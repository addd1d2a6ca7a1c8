package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/examdrill/exam-engine/internal/exam"
	ws "github.com/examdrill/exam-engine/pkg/http/ws"
)

// Upgrader handles WebSocket upgrades for the exam clock channel. The engine
// has no authentication surface, so origins are not restricted here.
var Upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ClockHandler streams exam countdown ticks to a connected client and pushes
// the auto-submit notice when a running session times out. The tick loop is
// just a cadence for re-reading the wall clock; the session itself never
// depends on it.
type ClockHandler struct {
	api      *Handler
	hub      *ws.Hub
	interval time.Duration
	logger   zerolog.Logger
}

// NewClockHandler creates the exam clock WebSocket handler.
func NewClockHandler(api *Handler, hub *ws.Hub, interval time.Duration, logger zerolog.Logger) *ClockHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &ClockHandler{
		api:      api,
		hub:      hub,
		interval: interval,
		logger:   logger.With().Str("component", "exam_clock").Logger(),
	}
}

// HandleWebSocket upgrades the connection and runs the clock loop until the
// exam ends or the client disconnects.
func (c *ClockHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	wsConn := ws.NewConnection(conn, c.logger)
	c.hub.RegisterConnection(uid, wsConn)

	done := make(chan struct{})
	go func() {
		wsConn.ReadPump(func(msg ws.Message) error {
			if msg.Type == ws.TypePing {
				return wsConn.Send(ws.Message{Type: ws.TypePong})
			}
			return nil
		})
		close(done)
	}()
	go wsConn.WritePump()

	go c.runClock(context.Background(), uid, wsConn, done)
}

func (c *ClockHandler) runClock(ctx context.Context, uid string, conn *ws.Connection, done <-chan struct{}) {
	// Only unregister our own connection; a reconnect may have replaced it.
	defer c.hub.UnregisterIf(uid, conn)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			finished, err := c.sendTick(ctx, uid, conn)
			if err != nil || finished {
				return
			}
		}
	}
}

// sendTick snapshots the user's exam under its lock and pushes one update.
// Returns finished=true when there is nothing further to stream.
func (c *ClockHandler) sendTick(ctx context.Context, uid string, conn *ws.Connection) (bool, error) {
	st := c.api.sessions.Get(ctx, uid)
	st.Lock()

	if st.Exam == nil {
		st.Unlock()
		return true, c.sendError(conn, "no_active_exam", "no exam session")
	}

	timedOut := st.Exam.Tick()
	if timedOut {
		c.api.finalizeExam(ctx, st, submitReasonTimeout)
	}
	state := st.Exam.State()
	tick := ws.ClockTickPayload{
		SessionID:        st.Exam.ID,
		RemainingSeconds: st.Exam.RemainingSeconds(),
		Answered:         st.Exam.AnsweredCount(),
		Total:            len(st.Exam.Pool()),
	}
	st.Unlock()

	if state != exam.StateRunning {
		reason := submitReasonExplicit
		if timedOut {
			reason = submitReasonTimeout
		}
		payload, _ := json.Marshal(ws.ExamSubmittedPayload{SessionID: tick.SessionID, Reason: reason})
		return true, conn.Send(ws.Message{Type: ws.TypeExamSubmitted, Payload: payload})
	}

	payload, _ := json.Marshal(tick)
	return false, conn.Send(ws.Message{Type: ws.TypeClockTick, Payload: payload})
}

func (c *ClockHandler) sendError(conn *ws.Connection, code, message string) error {
	payload, _ := json.Marshal(ws.ErrorPayload{Code: code, Message: message})
	return conn.Send(ws.Message{Type: ws.TypeError, Payload: payload})
}
