package api

import (
	"time"

	"sme-cyber-assessment/internal/assessment"
	"sme-cyber-assessment/internal/session"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type ProfileOptions struct {
	YearsInBusiness []string `json:"yearsInBusiness"`
	EmployeeRange   []string `json:"employeeRange"`
	Turnover        []string `json:"turnover"`
	WorkMode        []string `json:"workMode"`
	ITManagement    []string `json:"itManagement"`
}

type QuestionView struct {
	ID          string               `json:"id"`
	Section     string               `json:"section"`
	Prompt      string               `json:"prompt"`
	Hint        string               `json:"hint,omitempty"`
	Options     []string             `json:"options"`
	AppliesWhen assessment.Condition `json:"appliesWhen,omitempty"`
}

type RulesResponse struct {
	Version        string               `json:"version"`
	Policy         string               `json:"policy"`
	Sections       []assessment.Section `json:"sections"`
	Questions      []QuestionView       `json:"questions"`
	ProfileOptions ProfileOptions       `json:"profileOptions"`
}

type CreateSessionRequest struct {
	Profile *assessment.Profile `json:"profile"`
}

type SessionResponse struct {
	ID                 string             `json:"id"`
	RulesVersion       string             `json:"rulesVersion"`
	Profile            assessment.Profile `json:"profile"`
	ProfileComplete    bool               `json:"profileComplete"`
	Answers            map[string]string  `json:"answers"`
	Answered           int                `json:"answered"`
	Total              int                `json:"total"`
	Submitted          bool               `json:"submitted"`
	ProcessInstanceKey int64              `json:"processInstanceKey,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

type SubmitRequest struct {
	Email string `json:"email"`
}

type SubmitResponse struct {
	SessionID          string `json:"sessionId"`
	ProcessInstanceKey int64  `json:"processInstanceKey"`
	ProcessID          string `json:"processId"`
}

func (s *Server) sessionResponse(sess *session.Session) SessionResponse {
	return SessionResponse{
		ID:                 sess.ID,
		RulesVersion:       sess.RulesVersion,
		Profile:            sess.Profile,
		ProfileComplete:    sess.Profile.Complete(),
		Answers:            sess.Answers.Strings(),
		Answered:           len(sess.Answers),
		Total:              len(s.rules.Questions),
		Submitted:          sess.Submitted(),
		ProcessInstanceKey: sess.ProcessInstanceKey,
		CreatedAt:          sess.CreatedAt,
		UpdatedAt:          sess.UpdatedAt,
	}
}

type ResultResponse struct {
	SessionID string `json:"sessionId"`
	assessment.Report
}
