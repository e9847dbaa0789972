// internal/workers/communication/send-report/models.go
package sendreport

import "sme-cyber-assessment/internal/assessment"

const (
	StatusSent      = "sent"
	StatusSkipped   = "skipped"
	StatusPublished = "published"
)

type Input struct {
	Email           string                   `json:"email"`
	SessionID       string                   `json:"sessionId"`
	ReportID        string                   `json:"reportId"`
	RulesVersion    string                   `json:"rulesVersion"`
	Profile         assessment.Profile       `json:"profile"`
	Overall         assessment.Overall       `json:"overall"`
	Ratings         []assessment.TopicRating `json:"ratings"`
	Dependency      assessment.Dependency    `json:"dependency"`
	Recommendations []assessment.Advice      `json:"recommendations"`
}

type Output struct {
	EmailStatus    string `json:"emailStatus"`
	MessageID      string `json:"messageId,omitempty"`
	Provider       string `json:"provider,omitempty"`
	AlertStatus    string `json:"alertStatus"`
	AlertMessageID string `json:"alertMessageId,omitempty"`
	SentAt         string `json:"sentAt,omitempty"`
}
