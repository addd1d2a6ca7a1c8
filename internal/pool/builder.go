package pool

import (
	"math/rand"
	"time"

	"github.com/examdrill/exam-engine/internal/bank"
)

// Weight added on top of the base weight for questions in the wrong set.
const wrongBonusWeight = 4.0

// WrongSet is the fingerprint set of previously missed questions, consulted
// by wrong-only filtering and wrong-weighted sampling.
type WrongSet map[string]bool

// Filter is the base scope applied before any sampling strategy. Empty
// selections impose no constraint. Questions with an empty section pass the
// section filter so chapter-level records stay reachable.
type Filter struct {
	Chapters  []string `json:"chapters,omitempty"`
	Sections  []string `json:"sections,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	MCQOnly   bool     `json:"mcq_only,omitempty"`
	WrongOnly bool     `json:"wrong_only,omitempty"`
}

// Match reports whether q falls inside the filter scope. The wrong set is
// only consulted when WrongOnly is set.
func (f Filter) Match(q bank.Question, wrong WrongSet) bool {
	if len(f.Chapters) > 0 && !contains(f.Chapters, q.Chapter) {
		return false
	}
	if len(f.Sections) > 0 && q.Section != "" && !contains(f.Sections, q.Section) {
		return false
	}
	if len(f.Tags) > 0 && !anyTag(q, f.Tags) {
		return false
	}
	if f.MCQOnly && !q.IsMCQ() {
		return false
	}
	if f.WrongOnly && !wrong[bank.Fingerprint(q)] {
		return false
	}
	return true
}

// BuilderOptions configures pool assembly.
type BuilderOptions struct {
	// Rand overrides the sampling source, useful for reproducible tests.
	Rand *rand.Rand
}

// Builder assembles practice and exam pools from the shared question bank.
// A pool is a snapshot: once returned it is owned by the session that
// requested it and never mutated by the builder.
type Builder struct {
	bank *bank.Bank
	rng  *rand.Rand
}

// NewBuilder creates a pool builder over the given bank.
func NewBuilder(b *bank.Bank, opts BuilderOptions) *Builder {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{bank: b, rng: rng}
}

// Scoped returns all bank questions matching the filter, in bank order.
func (b *Builder) Scoped(f Filter, wrong WrongSet) []bank.Question {
	var out []bank.Question
	for _, q := range b.bank.All() {
		if f.Match(q, wrong) {
			out = append(out, q)
		}
	}
	return out
}

// Plain samples up to limit in-scope questions uniformly at random. A limit
// above the available count truncates; an empty scope yields an empty pool.
func (b *Builder) Plain(f Filter, wrong WrongSet, limit int) []bank.Question {
	scoped := b.Scoped(f, wrong)
	b.shuffle(scoped)
	return truncate(scoped, limit)
}

// WrongWeighted samples up to limit distinct in-scope questions with extra
// weight on previously missed ones. Sampling draws with replacement in a
// bounded batch of 3x the target size and discards repeats, trading a small
// bias for simplicity over exact weighted-without-replacement schemes.
func (b *Builder) WrongWeighted(f Filter, wrong WrongSet, limit int) []bank.Question {
	scoped := b.Scoped(f, wrong)
	if len(scoped) == 0 || limit <= 0 {
		return nil
	}
	k := limit
	if k > len(scoped) {
		k = len(scoped)
	}

	weights := make([]float64, len(scoped))
	var total float64
	for i, q := range scoped {
		w := 1.0
		if wrong[bank.Fingerprint(q)] {
			w += wrongBonusWeight
		}
		weights[i] = w
		total += w
	}

	seen := make(map[int]bool, k)
	picked := make([]bank.Question, 0, k)
	for draw := 0; draw < 3*k && len(picked) < k; draw++ {
		i := b.weightedIndex(weights, total)
		if seen[i] {
			continue
		}
		seen[i] = true
		picked = append(picked, scoped[i])
	}
	return picked
}

// weightedIndex draws one index proportionally to the given weights.
func (b *Builder) weightedIndex(weights []float64, total float64) int {
	target := b.rng.Float64() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if target < acc {
			return i
		}
	}
	return len(weights) - 1
}

func (b *Builder) shuffle(qs []bank.Question) {
	b.rng.Shuffle(len(qs), func(i, j int) {
		qs[i], qs[j] = qs[j], qs[i]
	})
}

func truncate(qs []bank.Question, limit int) []bank.Question {
	if limit >= 0 && len(qs) > limit {
		return qs[:limit]
	}
	return qs
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func anyTag(q bank.Question, tags []string) bool {
	for _, t := range tags {
		if q.HasTag(t) {
			return true
		}
	}
	return false
}
