package practice

import (
	"sort"
	"time"

	"github.com/examdrill/exam-engine/internal/bank"
	"github.com/examdrill/exam-engine/internal/pool"
)

// Mode labels recorded on history entries.
const (
	ModePractice = "practice"
	ModeExam     = "exam"
)

// A question missed this many times or more counts as hard.
const hardThreshold = 2

// Attempt is one immutable history entry.
type Attempt struct {
	Fingerprint string    `json:"fingerprint"`
	Correct     bool      `json:"correct"`
	At          time.Time `json:"at"`
	Mode        string    `json:"mode"`
}

// ExamRecord is the per-user summary kept for each finished exam.
type ExamRecord struct {
	Score     float64   `json:"score"`
	Passed    bool      `json:"passed"`
	Total     int       `json:"total"`
	Correct   int       `json:"correct"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is the aggregate snapshot returned to callers.
type Stats struct {
	Attempts      int      `json:"attempts"`
	Correct       int      `json:"correct"`
	Accuracy      float64  `json:"accuracy"`
	WrongTotal    int      `json:"wrong_total"`
	FavoriteTotal int      `json:"favorite_total"`
	HardQuestions []string `json:"hard_questions"`
}

// Tracker records per-question outcomes for one user: attempt counters, the
// wrong-answer record used for weighted sampling, cumulative wrong counts,
// favorites and an append-only history. It is not safe for concurrent use;
// the owning session serializes access.
type Tracker struct {
	attempts    int
	correct     int
	wrongRecord map[string]bank.Question
	wrongCount  map[string]int
	favorites   map[string]bool
	history     []Attempt
	examRecords []ExamRecord

	now func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		wrongRecord: make(map[string]bank.Question),
		wrongCount:  make(map[string]int),
		favorites:   make(map[string]bool),
		now:         time.Now,
	}
}

// RecordAnswer scores a practice answer by exact string equality against the
// question's stored answer. A correct answer removes the question from the
// wrong record; a wrong one inserts it and bumps its cumulative wrong count.
func (t *Tracker) RecordAnswer(q bank.Question, selected string) bool {
	fp := bank.Fingerprint(q)
	correct := selected == q.Answer

	t.attempts++
	if correct {
		t.correct++
		delete(t.wrongRecord, fp)
	} else {
		t.wrongRecord[fp] = q
		t.wrongCount[fp]++
	}
	t.history = append(t.history, Attempt{
		Fingerprint: fp,
		Correct:     correct,
		At:          t.now(),
		Mode:        ModePractice,
	})
	return correct
}

// RecordExamWrong accumulates an exam miss so future practice rounds weight
// it. Unlike practice scoring there is no removal path and no attempt
// counter change.
func (t *Tracker) RecordExamWrong(q bank.Question) {
	fp := bank.Fingerprint(q)
	t.wrongRecord[fp] = q
	t.wrongCount[fp]++
	t.history = append(t.history, Attempt{
		Fingerprint: fp,
		Correct:     false,
		At:          t.now(),
		Mode:        ModeExam,
	})
}

// AddExamRecord appends a finished exam summary.
func (t *Tracker) AddExamRecord(rec ExamRecord) {
	t.examRecords = append(t.examRecords, rec)
}

// ExamRecords returns finished exam summaries in order.
func (t *Tracker) ExamRecords() []ExamRecord {
	return t.examRecords
}

// Accuracy returns correct/attempts as a percentage, 0.0 with no attempts.
func (t *Tracker) Accuracy() float64 {
	if t.attempts == 0 {
		return 0.0
	}
	return float64(t.correct) / float64(t.attempts) * 100
}

// ToggleFavorite flips bookmark membership for a fingerprint and returns the
// new state. Independent of answer correctness.
func (t *Tracker) ToggleFavorite(fp string) bool {
	if t.favorites[fp] {
		delete(t.favorites, fp)
		return false
	}
	t.favorites[fp] = true
	return true
}

// IsFavorite reports bookmark membership.
func (t *Tracker) IsFavorite(fp string) bool {
	return t.favorites[fp]
}

// WrongSet exposes the wrong record as a sampling set for the pool builder.
func (t *Tracker) WrongSet() pool.WrongSet {
	set := make(pool.WrongSet, len(t.wrongRecord))
	for fp := range t.wrongRecord {
		set[fp] = true
	}
	return set
}

// WrongCount returns the cumulative miss count for a fingerprint.
func (t *Tracker) WrongCount(fp string) int {
	return t.wrongCount[fp]
}

// History returns the append-only attempt log.
func (t *Tracker) History() []Attempt {
	return t.history
}

// Stats builds the aggregate snapshot, including the hard-question set
// (missed at least twice, cumulatively).
func (t *Tracker) Stats() Stats {
	var hard []string
	for fp, n := range t.wrongCount {
		if n >= hardThreshold {
			hard = append(hard, fp)
		}
	}
	sort.Strings(hard)
	return Stats{
		Attempts:      t.attempts,
		Correct:       t.correct,
		Accuracy:      t.Accuracy(),
		WrongTotal:    len(t.wrongRecord),
		FavoriteTotal: len(t.favorites),
		HardQuestions: hard,
	}
}
