// internal/workers/assessment/record-assessment/models.go
package recordassessment

import "sme-cyber-assessment/internal/assessment"

type Input struct {
	SessionID          string                    `json:"sessionId"`
	// ProcessInstanceKey is taken from the job, not the variables.
	ProcessInstanceKey int64                     `json:"-"`
	Profile            assessment.Profile        `json:"profile"`
	Answers            map[string]string         `json:"answers"`
	RulesVersion       string                    `json:"rulesVersion"`
	Ratings            []assessment.TopicRating  `json:"ratings"`
	Overall            assessment.Overall        `json:"overall"`
	Dependency         assessment.Dependency     `json:"dependency"`
	Sections           []assessment.SectionScore `json:"sections"`
	ContextTags        []string                  `json:"contextTags"`
	Recommendations    []assessment.Advice       `json:"recommendations"`
}

type Output struct {
	ReportID   string `json:"reportId"`
	RecordedAt string `json:"recordedAt"`
}

// storedReport is the JSONB document kept next to the indexed columns.
type storedReport struct {
	Ratings         []assessment.TopicRating  `json:"ratings"`
	Overall         assessment.Overall        `json:"overall"`
	Dependency      assessment.Dependency     `json:"dependency"`
	Sections        []assessment.SectionScore `json:"sections"`
	ContextTags     []string                  `json:"contextTags"`
	Recommendations []assessment.Advice       `json:"recommendations"`
}
