package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypePing = "ping"

	// Server -> Client
	TypePong          = "pong"
	TypeClockTick     = "clock_tick"
	TypeExamSubmitted = "exam_submitted"
	TypeError         = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// ClockTickPayload carries the exam countdown for a running session.
type ClockTickPayload struct {
	SessionID        string `json:"session_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Answered         int    `json:"answered"`
	Total            int    `json:"total"`
}

// ExamSubmittedPayload notifies the client that the session ended, either by
// explicit submission or auto-submit on timeout.
type ExamSubmittedPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"` // "submitted" or "timeout"
}

// ErrorPayload reports a protocol-level problem.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
