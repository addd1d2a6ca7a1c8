package pool

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/examdrill/exam-engine/internal/bank"
)

// DefaultPassScore applies when no blueprint supplies a pass line.
const DefaultPassScore = 60

// Blueprint describes exam composition: how many questions to draw from
// which chapter/section/tag/difficulty buckets, and the pass line.
type Blueprint struct {
	Total     int    `json:"total"`
	PassScore int    `json:"pass_score"`
	Rules     []Rule `json:"rules"`
}

// Rule is one quota bucket. Unset constraints impose nothing; chapter and
// section accept either a single value or a list in JSON.
type Rule struct {
	Count      int        `json:"count"`
	Chapter    StringList `json:"chapter,omitempty"`
	Section    StringList `json:"section,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Difficulty []int      `json:"difficulty,omitempty"` // inclusive [low, high]
}

// StringList unmarshals from either a JSON string or an array of strings.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or string list: %w", err)
	}
	*s = StringList(many)
	return nil
}

// match reports whether q satisfies every constraint the rule carries.
func (r Rule) match(q bank.Question) bool {
	if len(r.Chapter) > 0 && !contains(r.Chapter, q.Chapter) {
		return false
	}
	if len(r.Section) > 0 && !contains(r.Section, q.Section) {
		return false
	}
	if len(r.Tags) > 0 && !anyTag(q, r.Tags) {
		return false
	}
	if len(r.Difficulty) == 2 {
		if q.Difficulty < r.Difficulty[0] || q.Difficulty > r.Difficulty[1] {
			return false
		}
	}
	return true
}

// PassLine returns the blueprint pass score, or the default for a nil or
// unset blueprint.
func (bp *Blueprint) PassLine() int {
	if bp == nil || bp.PassScore <= 0 {
		return DefaultPassScore
	}
	return bp.PassScore
}

// LoadBlueprint reads a blueprint from a JSON file. A missing or malformed
// file yields a nil blueprint plus the error; callers fall back to plain
// random assembly.
func LoadBlueprint(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	var bp Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("parse blueprint: %w", err)
	}
	return &bp, nil
}

// FromBlueprint assembles an exam pool by applying blueprint rules in order.
// A question claimed by an earlier rule is never re-claimed by a later one;
// the claimed set is threaded through rule evaluation explicitly. Short
// results are backfilled from the remaining in-scope multiple-choice
// questions, and the final pool is truncated to the blueprint total.
func (b *Builder) FromBlueprint(bp *Blueprint, f Filter) []bank.Question {
	f.MCQOnly = true
	scoped := b.Scoped(f, nil)

	claimed := make(map[string]bool)
	var picked []bank.Question

	for _, rule := range bp.Rules {
		if rule.Count <= 0 {
			continue
		}
		var candidates []bank.Question
		for _, q := range scoped {
			if rule.match(q) {
				candidates = append(candidates, q)
			}
		}
		b.shuffle(candidates)
		taken := 0
		for _, q := range candidates {
			if taken >= rule.Count {
				break
			}
			fp := bank.Fingerprint(q)
			if claimed[fp] {
				continue
			}
			claimed[fp] = true
			picked = append(picked, q)
			taken++
		}
	}

	if bp.Total > 0 && len(picked) < bp.Total {
		var remain []bank.Question
		for _, q := range scoped {
			if !claimed[bank.Fingerprint(q)] {
				remain = append(remain, q)
			}
		}
		b.shuffle(remain)
		need := bp.Total - len(picked)
		picked = append(picked, truncate(remain, need)...)
	}

	if bp.Total > 0 {
		picked = truncate(picked, bp.Total)
	}
	return picked
}
