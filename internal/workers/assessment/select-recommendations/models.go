// internal/workers/assessment/select-recommendations/models.go
package selectrecommendations

import "sme-cyber-assessment/internal/assessment"

type Input struct {
	Answers map[string]string  `json:"answers"`
	Profile assessment.Profile `json:"profile"`
}

type Output struct {
	Recommendations     []assessment.Advice `json:"recommendations"`
	RecommendationCount int                 `json:"recommendationCount"`
	ContextTags         []string            `json:"contextTags"`
	TierCounts          map[string]int      `json:"tierCounts"`
}
