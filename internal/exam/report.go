package exam

import (
	"math"
	"time"

	"github.com/examdrill/exam-engine/internal/bank"
)

// WrongSink receives exam misses so they feed future practice weighting.
// *practice.Tracker satisfies it.
type WrongSink interface {
	RecordExamWrong(q bank.Question)
}

// WrongDetail is one missed question in pool order. Selected is nil when the
// question was left unanswered.
type WrongDetail struct {
	Question string  `json:"question"`
	Selected *string `json:"selected"`
	Answer   string  `json:"answer"`
	Chapter  string  `json:"chapter"`
	Section  string  `json:"section"`
}

// Report is the immutable result of scoring a submitted session.
type Report struct {
	Score     float64       `json:"score"`
	Passed    bool          `json:"passed"`
	Total     int           `json:"total"`
	Correct   int           `json:"correct"`
	Wrong     int           `json:"wrong"`
	Details   []WrongDetail `json:"detail"`
	Timestamp time.Time     `json:"timestamp"`
}

// Score grades a submitted session against its pass line. Each pool question
// is compared by exact string equality; an unanswered question never matches
// and scores incorrect. Misses are reported in pool order and pushed into
// the sink. Scoring only reads the session.
func Score(s *Session, sink WrongSink) (Report, error) {
	if s.state != StateSubmitted {
		return Report{}, ErrInvalidTransition
	}

	total := len(s.pool)
	correct := 0
	var details []WrongDetail

	for _, q := range s.pool {
		fp := bank.Fingerprint(q)
		sel, answered := s.answers[fp]
		if answered && sel == q.Answer {
			correct++
			continue
		}
		detail := WrongDetail{
			Question: q.Text,
			Answer:   q.Answer,
			Chapter:  q.Chapter,
			Section:  q.Section,
		}
		if answered {
			detail.Selected = &sel
		}
		details = append(details, detail)
		if sink != nil {
			sink.RecordExamWrong(q)
		}
	}

	score := 0.0
	if total > 0 {
		score = math.Round(float64(correct)/float64(total)*1000) / 10
	}

	return Report{
		Score:     score,
		Passed:    score >= float64(s.passLine),
		Total:     total,
		Correct:   correct,
		Wrong:     len(details),
		Details:   details,
		Timestamp: s.now(),
	}, nil
}
