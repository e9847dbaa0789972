// internal/workers/assessment/score-assessment/models.go
package scoreassessment

import "sme-cyber-assessment/internal/assessment"

type Input struct {
	Answers      map[string]string  `json:"answers"`
	Profile      assessment.Profile `json:"profile"`
	RulesVersion string             `json:"rulesVersion"`
}

// Output carries the full evaluation plus flat fields for gateway conditions.
type Output struct {
	Ratings         []assessment.TopicRating  `json:"ratings"`
	Overall         assessment.Overall        `json:"overall"`
	OverallBand     string                    `json:"overallBand"`
	Maturity        int                       `json:"maturity"`
	Dependency      assessment.Dependency     `json:"dependency"`
	DependencyLevel string                    `json:"dependencyLevel"`
	Sections        []assessment.SectionScore `json:"sections"`
	ContextTags     []string                  `json:"contextTags"`
	Answered        int                       `json:"answered"`
	Total           int                       `json:"total"`
	RulesVersion    string                    `json:"rulesVersion"`
}
