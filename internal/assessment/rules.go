package assessment

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

const (
	PolicyWeightedBands = "weighted_bands"
	PolicyTopicSeverity = "topic_severity"
)

const (
	PolarityPositive = "positive"
	PolarityNegative = "negative"
)

// Rules is a versioned rules document. Everything that decides a score or a
// recommendation lives here so it can change without a code change.
type Rules struct {
	Version            string             `yaml:"version" json:"version"`
	OverallPolicy      string             `yaml:"overall_policy" json:"overallPolicy"`
	AnswerCodes        AnswerCodes        `yaml:"answer_codes" json:"answerCodes"`
	Sections           []Section          `yaml:"sections" json:"sections"`
	Questions          []Question         `yaml:"questions" json:"questions"`
	Topics             []Topic            `yaml:"topics" json:"topics"`
	Bands              []Band             `yaml:"bands" json:"bands"`
	SeverityThresholds SeverityThresholds `yaml:"severity_thresholds" json:"severityThresholds"`
	Dependency         DependencyRules    `yaml:"dependency" json:"dependency"`
	MaxRecommendations int                `yaml:"max_recommendations" json:"maxRecommendations"`
	Recommendations    []Recommendation   `yaml:"recommendations" json:"recommendations"`

	questionIndex map[string]int
	sectionIndex  map[string]int
}

// AnswerCodes are the numeric values used by the weighted aggregator for a
// positively phrased question. Negative polarity swaps Yes and No.
type AnswerCodes struct {
	Yes        float64 `yaml:"yes" json:"yes"`
	Partially  float64 `yaml:"partially" json:"partially"`
	NotSure    float64 `yaml:"not_sure" json:"notSure"`
	No         float64 `yaml:"no" json:"no"`
	Unanswered float64 `yaml:"unanswered" json:"unanswered"`
}

type Section struct {
	ID     string  `yaml:"id" json:"id"`
	Title  string  `yaml:"title" json:"title"`
	Weight float64 `yaml:"weight" json:"weight"`
}

type Question struct {
	ID       string   `yaml:"id" json:"id"`
	Section  string   `yaml:"section" json:"section"`
	Prompt   string   `yaml:"prompt" json:"prompt"`
	Hint     string   `yaml:"hint,omitempty" json:"hint,omitempty"`
	Options  []string `yaml:"options" json:"options"`
	Polarity string   `yaml:"polarity,omitempty" json:"polarity,omitempty"`
	// Scored questions feed the weighted aggregator; the rest are context.
	Scored      bool      `yaml:"scored" json:"scored"`
	AppliesWhen Condition `yaml:"applies_when,omitempty" json:"appliesWhen,omitempty"`
}

// Allowed returns the canonical answers this question accepts.
func (q Question) Allowed() []Answer {
	out := make([]Answer, 0, len(q.Options))
	for _, o := range q.Options {
		if a := Normalize(o); a != Unanswered {
			out = append(out, a)
		}
	}
	return out
}

// Accepts reports whether a is a legal answer for q. Unanswered always is.
func (q Question) Accepts(a Answer) bool {
	if a == Unanswered {
		return true
	}
	return containsAnswer(q.Allowed(), a)
}

type Topic struct {
	ID      string        `yaml:"id" json:"id"`
	Title   string        `yaml:"title" json:"title"`
	Clauses []TopicClause `yaml:"clauses" json:"clauses"`
	Default Rating        `yaml:"default" json:"default"`
}

type TopicClause struct {
	Clause `yaml:",inline"`
	Rating Rating `yaml:"rating" json:"rating"`
}

// Band is one bucket of the weighted aggregator; a maturity falls into the
// first band whose Min it reaches.
type Band struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
	Min   int    `yaml:"min" json:"min"`
	Color string `yaml:"color" json:"color"`
}

// SeverityThresholds bucket the summed topic severities.
type SeverityThresholds struct {
	Medium int `yaml:"medium" json:"medium"`
	High   int `yaml:"high" json:"high"`
}

type DependencyRules struct {
	Factors []DependencyFactor `yaml:"factors" json:"factors"`
	Medium  int                `yaml:"medium" json:"medium"`
	High    int                `yaml:"high" json:"high"`
}

type DependencyFactor struct {
	Clause `yaml:",inline"`
	ID     string `yaml:"id" json:"id"`
	Title  string `yaml:"title" json:"title"`
}

// Parse decodes and validates a rules document.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadFile reads rules from path. An empty path yields the built-in rules.
func LoadFile(path string) (*Rules, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in rules.
func Default() (*Rules, error) {
	return Parse(defaultRulesYAML)
}

// DefaultYAML exposes the built-in document, e.g. for tooling that writes it out.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultRulesYAML))
	copy(out, defaultRulesYAML)
	return out
}

// Validate checks references and ordering and builds lookup indexes.
func (r *Rules) Validate() error {
	var errs []string

	if strings.TrimSpace(r.Version) == "" {
		errs = append(errs, "version required")
	}
	if r.OverallPolicy == "" {
		r.OverallPolicy = PolicyWeightedBands
	}
	if r.OverallPolicy != PolicyWeightedBands && r.OverallPolicy != PolicyTopicSeverity {
		errs = append(errs, fmt.Sprintf("unknown overall_policy %q", r.OverallPolicy))
	}
	if r.MaxRecommendations <= 0 {
		r.MaxRecommendations = 8
	}

	r.sectionIndex = make(map[string]int, len(r.Sections))
	for i, s := range r.Sections {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("sections[%d]: id required", i))
			continue
		}
		if _, dup := r.sectionIndex[s.ID]; dup {
			errs = append(errs, "duplicate section "+s.ID)
		}
		if s.Weight <= 0 {
			errs = append(errs, "section "+s.ID+": weight must be positive")
		}
		r.sectionIndex[s.ID] = i
	}

	r.questionIndex = make(map[string]int, len(r.Questions))
	for i, q := range r.Questions {
		if q.ID == "" {
			errs = append(errs, fmt.Sprintf("questions[%d]: id required", i))
			continue
		}
		if _, dup := r.questionIndex[q.ID]; dup {
			errs = append(errs, "duplicate question "+q.ID)
		}
		r.questionIndex[q.ID] = i
		if _, ok := r.sectionIndex[q.Section]; !ok {
			errs = append(errs, fmt.Sprintf("question %s: unknown section %q", q.ID, q.Section))
		}
		if len(q.Options) == 0 {
			errs = append(errs, "question "+q.ID+": options required")
		}
		for _, o := range q.Options {
			if Normalize(o) == Unanswered {
				errs = append(errs, fmt.Sprintf("question %s: option %q is not a recognised answer", q.ID, o))
			}
		}
		if q.Scored && q.Polarity != PolarityPositive && q.Polarity != PolarityNegative {
			errs = append(errs, "question "+q.ID+": scored questions need polarity positive or negative")
		}
	}
	// Conditions may reference any question, so check them after indexing.
	for _, q := range r.Questions {
		errs = append(errs, r.checkCondition("question "+q.ID+" applies_when", q.AppliesWhen)...)
	}

	topicIDs := map[string]bool{}
	for _, t := range r.Topics {
		if topicIDs[t.ID] {
			errs = append(errs, "duplicate topic "+t.ID)
		}
		topicIDs[t.ID] = true
		if !t.Default.Valid() {
			errs = append(errs, fmt.Sprintf("topic %s: invalid default %q", t.ID, t.Default))
		}
		for i, c := range t.Clauses {
			if !c.Rating.Valid() {
				errs = append(errs, fmt.Sprintf("topic %s clause %d: invalid rating %q", t.ID, i, c.Rating))
			}
			errs = append(errs, r.checkClause(fmt.Sprintf("topic %s clause %d", t.ID, i), c.Clause)...)
		}
	}

	if len(r.Bands) == 0 {
		errs = append(errs, "bands required")
	}
	for i, b := range r.Bands {
		if b.Label == "" {
			errs = append(errs, fmt.Sprintf("bands[%d]: label required", i))
		}
		if i > 0 && b.Min >= r.Bands[i-1].Min {
			errs = append(errs, fmt.Sprintf("bands[%d]: min must be strictly below the previous band", i))
		}
	}
	if n := len(r.Bands); n > 0 && r.Bands[n-1].Min > 0 {
		errs = append(errs, "last band must start at 0")
	}

	if r.SeverityThresholds.Medium <= 0 || r.SeverityThresholds.High <= r.SeverityThresholds.Medium {
		errs = append(errs, "severity_thresholds: need 0 < medium < high")
	}
	if r.Dependency.Medium <= 0 || r.Dependency.High < r.Dependency.Medium {
		errs = append(errs, "dependency: need 0 < medium <= high")
	}
	for _, f := range r.Dependency.Factors {
		errs = append(errs, r.checkClause("dependency factor "+f.ID, f.Clause)...)
	}

	recIDs := map[string]bool{}
	for _, rec := range r.Recommendations {
		if rec.ID == "" {
			errs = append(errs, "recommendation id required")
			continue
		}
		if recIDs[rec.ID] {
			errs = append(errs, "duplicate recommendation "+rec.ID)
		}
		recIDs[rec.ID] = true
		if tierRank(rec.Tier) < 0 {
			errs = append(errs, fmt.Sprintf("recommendation %s: unknown tier %q", rec.ID, rec.Tier))
		}
		for _, tag := range rec.RequiresTags {
			if !knownTag(tag) {
				errs = append(errs, fmt.Sprintf("recommendation %s: unknown tag %q", rec.ID, tag))
			}
		}
		errs = append(errs, r.checkClause("recommendation "+rec.ID, rec.Clause)...)
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return &ValidationError{Issues: errs}
	}
	return nil
}

func (r *Rules) checkClause(where string, c Clause) []string {
	errs := r.checkCondition(where, c.When)
	for _, alt := range c.Any {
		errs = append(errs, r.checkCondition(where+" any", alt)...)
	}
	return errs
}

func (r *Rules) checkCondition(where string, c Condition) []string {
	var errs []string
	for id, m := range c {
		if _, ok := r.questionIndex[id]; !ok {
			errs = append(errs, fmt.Sprintf("%s: unknown question %q", where, id))
		}
		for _, a := range append(append([]Answer{}, m.In...), m.NotIn...) {
			if !a.Valid() {
				errs = append(errs, fmt.Sprintf("%s: invalid answer %q for %s", where, a, id))
			}
		}
	}
	return errs
}

// ValidationError lists every problem found in a rules document.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid rules: " + strings.Join(e.Issues, "; ")
}

// Question looks a question up by id.
func (r *Rules) Question(id string) (Question, bool) {
	i, ok := r.questionIndex[id]
	if !ok {
		return Question{}, false
	}
	return r.Questions[i], true
}

// Section looks a section up by id.
func (r *Rules) Section(id string) (Section, bool) {
	i, ok := r.sectionIndex[id]
	if !ok {
		return Section{}, false
	}
	return r.Sections[i], true
}

// CheckAnswers reports the first answer that names an unknown question or an
// option the question does not offer.
func (r *Rules) CheckAnswers(a Answers) error {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		q, ok := r.Question(id)
		if !ok {
			return fmt.Errorf("unknown question %q", id)
		}
		if !a[id].Valid() || !q.Accepts(a[id]) {
			return fmt.Errorf("answer %q is not an option for %s", a[id], id)
		}
	}
	return nil
}

// AnswersSchema returns a JSON Schema for the raw answers payload: an object
// keyed by known question ids with string values.
func (r *Rules) AnswersSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(r.Questions))
	for _, q := range r.Questions {
		props[q.ID] = map[string]interface{}{
			"type":        "string",
			"maxLength":   64,
			"description": q.Prompt,
		}
	}
	return map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

// ParseAnswers normalizes a raw payload and checks it against the
// questionnaire. Blank or unrecognised values are dropped as unanswered.
func (r *Rules) ParseAnswers(raw map[string]string) (Answers, error) {
	a := NormalizeAll(raw)
	for id, v := range a {
		if v == Unanswered {
			if _, ok := r.Question(id); !ok {
				return nil, fmt.Errorf("unknown question %q", id)
			}
			delete(a, id)
		}
	}
	if err := r.CheckAnswers(a); err != nil {
		return nil, err
	}
	return a, nil
}
