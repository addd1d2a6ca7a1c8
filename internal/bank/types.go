package bank

// Question type constants.
const (
	TypeMCQ          = "mcq"
	TypeFreeResponse = "qa"
)

// Difficulty bounds for normalized questions.
const (
	DifficultyMin     = 1
	DifficultyMax     = 5
	DefaultDifficulty = 3
)

// Question is a normalized bank record. Classification as multiple-choice is
// derived from the options list; a stored "type" value never overrides it.
type Question struct {
	Chapter     string   `json:"chapter"`
	Section     string   `json:"section"`
	Text        string   `json:"question"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer"`
	Type        string   `json:"type"`
	Difficulty  int      `json:"difficulty"`
	Tags        []string `json:"tags,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// IsMCQ reports whether the question is answerable by choosing one of at
// least two options.
func (q Question) IsMCQ() bool {
	return len(q.Options) >= 2
}

// HasTag reports whether the question carries the given tag.
func (q Question) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// normalize applies record defaults. The type field is always rewritten from
// the derived classification so the two can never disagree.
func (q *Question) normalize() {
	if q.IsMCQ() {
		q.Type = TypeMCQ
	} else {
		q.Type = TypeFreeResponse
	}
	if q.Difficulty < DifficultyMin || q.Difficulty > DifficultyMax {
		q.Difficulty = DefaultDifficulty
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}
}
