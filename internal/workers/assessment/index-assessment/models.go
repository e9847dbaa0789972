// internal/workers/assessment/index-assessment/models.go
package indexassessment

import "sme-cyber-assessment/internal/assessment"

const (
	StatusIndexed = "indexed"
	StatusSkipped = "skipped"
)

type Input struct {
	ReportID     string                   `json:"reportId"`
	SessionID    string                   `json:"sessionId"`
	RulesVersion string                   `json:"rulesVersion"`
	Profile      assessment.Profile       `json:"profile"`
	Overall      assessment.Overall       `json:"overall"`
	Dependency   assessment.Dependency    `json:"dependency"`
	Ratings      []assessment.TopicRating `json:"ratings"`
	ContextTags  []string                 `json:"contextTags"`
}

type Output struct {
	IndexStatus string `json:"indexStatus"`
	DocumentID  string `json:"documentId,omitempty"`
}

// BenchmarkDocument is the anonymised record used for sector comparisons.
// It never carries person or company names.
type BenchmarkDocument struct {
	ReportID      string            `json:"reportId"`
	RulesVersion  string            `json:"rulesVersion"`
	Sector        string            `json:"sector,omitempty"`
	EmployeeRange string            `json:"employeeRange,omitempty"`
	Turnover      string            `json:"turnover,omitempty"`
	Region        string            `json:"region,omitempty"`
	WorkMode      string            `json:"workMode,omitempty"`
	OverallBand   string            `json:"overallBand"`
	Maturity      int               `json:"maturity"`
	Dependency    string            `json:"dependency"`
	Topics        map[string]string `json:"topics"`
	ContextTags   []string          `json:"contextTags"`
	IndexedAt     string            `json:"indexedAt"`
}
