// Package session keeps in-progress questionnaires between requests.
package session

import (
	"fmt"
	"time"

	"sme-cyber-assessment/internal/assessment"
)

// Session is one respondent's questionnaire state.
type Session struct {
	ID                 string             `json:"id"`
	RulesVersion       string             `json:"rulesVersion"`
	Profile            assessment.Profile `json:"profile"`
	Answers            assessment.Answers `json:"answers"`
	Email              string             `json:"email,omitempty"`
	ProcessInstanceKey int64              `json:"processInstanceKey,omitempty"`
	SubmittedAt        *time.Time         `json:"submittedAt,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

func newSession(id, rulesVersion string, profile assessment.Profile, now time.Time) *Session {
	return &Session{
		ID:           id,
		RulesVersion: rulesVersion,
		Profile:      profile,
		Answers:      assessment.Answers{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SetAnswer records a single answer. Unanswered clears the question.
func (s *Session) SetAnswer(r *assessment.Rules, questionID string, a assessment.Answer) error {
	q, ok := r.Question(questionID)
	if !ok {
		return fmt.Errorf("unknown question %q", questionID)
	}
	if a == assessment.Unanswered {
		delete(s.Answers, questionID)
		return nil
	}
	if !q.Accepts(a) {
		return fmt.Errorf("answer %q is not an option for %s", a, questionID)
	}
	if s.Answers == nil {
		s.Answers = assessment.Answers{}
	}
	s.Answers[questionID] = a
	return nil
}

// SetAnswers merges answers. Nothing is applied if any entry is rejected.
func (s *Session) SetAnswers(r *assessment.Rules, answers assessment.Answers) error {
	if err := r.CheckAnswers(answers); err != nil {
		return err
	}
	for id, a := range answers {
		if err := s.SetAnswer(r, id, a); err != nil {
			return err
		}
	}
	return nil
}

// UpdateProfile replaces the business profile after validating it.
func (s *Session) UpdateProfile(p assessment.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.Profile = p
	return nil
}

// Reset returns the session to its initial state. The id is kept.
func (s *Session) Reset() {
	s.Profile = assessment.DefaultProfile()
	s.Answers = assessment.Answers{}
	s.Email = ""
	s.ProcessInstanceKey = 0
	s.SubmittedAt = nil
}

// Snapshot returns a copy of the current answers.
func (s *Session) Snapshot() assessment.Answers {
	return s.Answers.Clone()
}

// Submitted reports whether the session has started an assessment process.
func (s *Session) Submitted() bool {
	return s.SubmittedAt != nil
}
