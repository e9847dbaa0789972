// internal/workers/assessment/load-session/models.go
package loadsession

import "sme-cyber-assessment/internal/assessment"

type Input struct {
	SessionID string `json:"sessionId"`
}

type Output struct {
	Profile       assessment.Profile `json:"profile"`
	Answers       map[string]string  `json:"answers"`
	RulesVersion  string             `json:"rulesVersion"`
	AnsweredCount int                `json:"answeredCount"`
}
