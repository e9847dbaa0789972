package assessment

// Rating is the qualitative outcome of a topic table.
type Rating string

const (
	Good    Rating = "good"
	Partial Rating = "partial"
	AtRisk  Rating = "at_risk"
)

func (r Rating) Valid() bool {
	return r == Good || r == Partial || r == AtRisk
}

// Severity orders ratings: good 0, partial 1, at risk 2.
func (r Rating) Severity() int {
	switch r {
	case Good:
		return 0
	case AtRisk:
		return 2
	default:
		return 1
	}
}

func (r Rating) Label() string {
	switch r {
	case Good:
		return "Good"
	case AtRisk:
		return "At risk"
	default:
		return "Partial"
	}
}

func (r Rating) Color() string {
	switch r {
	case Good:
		return "🟢"
	case AtRisk:
		return "🔴"
	default:
		return "🟡"
	}
}

// Match constrains one question. An empty In allows anything not in NotIn.
type Match struct {
	In    []Answer `yaml:"in,omitempty" json:"in,omitempty"`
	NotIn []Answer `yaml:"not_in,omitempty" json:"notIn,omitempty"`
}

func (m Match) matches(a Answer) bool {
	if len(m.In) > 0 && !containsAnswer(m.In, a) {
		return false
	}
	return !containsAnswer(m.NotIn, a)
}

// Condition is a conjunction of per-question matches.
type Condition map[string]Match

// Matches reports whether every constrained question matches. An empty
// condition always matches.
func (c Condition) Matches(a Answers) bool {
	for id, m := range c {
		if !m.matches(a.Get(id)) {
			return false
		}
	}
	return true
}

// Clause is When AND (any of Any). With no Any alternatives only When counts.
type Clause struct {
	When Condition   `yaml:"when,omitempty" json:"when,omitempty"`
	Any  []Condition `yaml:"any,omitempty" json:"any,omitempty"`
}

func (c Clause) Matches(a Answers) bool {
	if !c.When.Matches(a) {
		return false
	}
	if len(c.Any) == 0 {
		return true
	}
	for _, alt := range c.Any {
		if alt.Matches(a) {
			return true
		}
	}
	return false
}

// TopicRating is the rated outcome for one topic.
type TopicRating struct {
	Topic  string `json:"topic"`
	Title  string `json:"title"`
	Rating Rating `json:"rating"`
	Label  string `json:"label"`
	Color  string `json:"color"`
}

// Rate applies the topic's decision table: first matching clause wins,
// otherwise the default.
func (t Topic) Rate(a Answers) TopicRating {
	rating := t.Default
	for _, c := range t.Clauses {
		if c.Matches(a) {
			rating = c.Rating
			break
		}
	}
	return TopicRating{
		Topic:  t.ID,
		Title:  t.Title,
		Rating: rating,
		Label:  rating.Label(),
		Color:  rating.Color(),
	}
}

// RateTopics rates every topic in rules order.
func RateTopics(r *Rules, a Answers) []TopicRating {
	out := make([]TopicRating, 0, len(r.Topics))
	for _, t := range r.Topics {
		out = append(out, t.Rate(a))
	}
	return out
}

// RateTopic rates a single topic by id.
func RateTopic(r *Rules, id string, a Answers) (TopicRating, bool) {
	for _, t := range r.Topics {
		if t.ID == id {
			return t.Rate(a), true
		}
	}
	return TopicRating{}, false
}

func containsAnswer(set []Answer, a Answer) bool {
	for _, v := range set {
		if v == a {
			return true
		}
	}
	return false
}
