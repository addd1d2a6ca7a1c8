package practice

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/examdrill/exam-engine/internal/bank"
)

// QuestionResolver maps fingerprints back to questions on import. *bank.Bank
// satisfies it.
type QuestionResolver interface {
	ByFingerprint(fp string) (bank.Question, bool)
}

// Backup is the round-trippable progress export. Everything is keyed by
// fingerprint so a blob survives restarts as long as the underlying question
// bank is unchanged.
type Backup struct {
	Attempts    int            `json:"attempts"`
	Correct     int            `json:"correct"`
	History     []Attempt      `json:"history"`
	WrongIDs    []string       `json:"wrong_ids"`
	WrongCount  map[string]int `json:"wrong_count"`
	Favorites   []string       `json:"favorites"`
	ExamRecords []ExamRecord   `json:"exam_records"`
	ExportedAt  time.Time      `json:"exported_at"`
}

// Export snapshots the tracker into a backup value.
func (t *Tracker) Export() Backup {
	wrongIDs := make([]string, 0, len(t.wrongRecord))
	for fp := range t.wrongRecord {
		wrongIDs = append(wrongIDs, fp)
	}
	sort.Strings(wrongIDs)

	favorites := make([]string, 0, len(t.favorites))
	for fp := range t.favorites {
		favorites = append(favorites, fp)
	}
	sort.Strings(favorites)

	wrongCount := make(map[string]int, len(t.wrongCount))
	for fp, n := range t.wrongCount {
		wrongCount[fp] = n
	}

	return Backup{
		Attempts:    t.attempts,
		Correct:     t.correct,
		History:     append([]Attempt(nil), t.history...),
		WrongIDs:    wrongIDs,
		WrongCount:  wrongCount,
		Favorites:   favorites,
		ExamRecords: append([]ExamRecord(nil), t.examRecords...),
		ExportedAt:  t.now(),
	}
}

// ExportJSON serializes the backup blob.
func (t *Tracker) ExportJSON() ([]byte, error) {
	data, err := json.Marshal(t.Export())
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	return data, nil
}

// ImportJSON restores tracker state from a backup blob. Wrong-record entries
// are rehydrated through the resolver; fingerprints the current bank no
// longer knows are dropped from the record but keep their counts. A
// malformed blob leaves the tracker untouched and returns the error.
func (t *Tracker) ImportJSON(data []byte, resolver QuestionResolver) error {
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("parse backup: %w", err)
	}
	t.Restore(b, resolver)
	return nil
}

// Restore replaces tracker state with the backup contents.
func (t *Tracker) Restore(b Backup, resolver QuestionResolver) {
	t.attempts = b.Attempts
	t.correct = b.Correct
	t.history = append([]Attempt(nil), b.History...)
	t.examRecords = append([]ExamRecord(nil), b.ExamRecords...)

	t.wrongRecord = make(map[string]bank.Question, len(b.WrongIDs))
	for _, fp := range b.WrongIDs {
		if q, ok := resolver.ByFingerprint(fp); ok {
			t.wrongRecord[fp] = q
		}
	}

	t.wrongCount = make(map[string]int, len(b.WrongCount))
	for fp, n := range b.WrongCount {
		t.wrongCount[fp] = n
	}

	t.favorites = make(map[string]bool, len(b.Favorites))
	for _, fp := range b.Favorites {
		t.favorites[fp] = true
	}
}
