package bank

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Bank holds the normalized question set, loaded once and read-only for the
// process lifetime. A Bank is safe for concurrent readers.
type Bank struct {
	questions []Question
	byFP      map[string]Question
}

// New builds a bank from raw records, applying defaults and indexing by
// fingerprint. Duplicate fingerprints keep the first record; later ones are
// the same logical question.
func New(records []Question) *Bank {
	b := &Bank{
		questions: make([]Question, 0, len(records)),
		byFP:      make(map[string]Question, len(records)),
	}
	for _, q := range records {
		q.normalize()
		b.questions = append(b.questions, q)
		fp := Fingerprint(q)
		if _, seen := b.byFP[fp]; !seen {
			b.byFP[fp] = q
		}
	}
	return b
}

// Load reads a question bank from a JSON file. On any failure it returns an
// empty bank together with the error, so callers can surface a warning and
// keep running.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return New(nil), fmt.Errorf("read question bank: %w", err)
	}
	var records []Question
	if err := json.Unmarshal(data, &records); err != nil {
		return New(nil), fmt.Errorf("parse question bank: %w", err)
	}
	return New(records), nil
}

// Len returns the number of questions in the bank.
func (b *Bank) Len() int {
	return len(b.questions)
}

// All returns the full question list in load order. Callers must not mutate
// the returned slice.
func (b *Bank) All() []Question {
	return b.questions
}

// ByFingerprint resolves a fingerprint back to its question.
func (b *Bank) ByFingerprint(fp string) (Question, bool) {
	q, ok := b.byFP[fp]
	return q, ok
}

// Chapters returns the sorted set of non-empty chapter names.
func (b *Bank) Chapters() []string {
	set := map[string]struct{}{}
	for _, q := range b.questions {
		if q.Chapter != "" {
			set[q.Chapter] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// SectionsFor returns the sorted set of non-empty section names appearing
// under any of the given chapters.
func (b *Bank) SectionsFor(chapters []string) []string {
	want := map[string]struct{}{}
	for _, ch := range chapters {
		want[ch] = struct{}{}
	}
	set := map[string]struct{}{}
	for _, q := range b.questions {
		if q.Section == "" {
			continue
		}
		if _, ok := want[q.Chapter]; ok {
			set[q.Section] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Tags returns the sorted set of all tags in the bank.
func (b *Bank) Tags() []string {
	set := map[string]struct{}{}
	for _, q := range b.questions {
		for _, t := range q.Tags {
			set[t] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
