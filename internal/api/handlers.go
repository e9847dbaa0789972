package api

import (
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"sme-cyber-assessment/internal/assessment"
	"sme-cyber-assessment/internal/common/errors"
	"sme-cyber-assessment/internal/common/metrics"
	"sme-cyber-assessment/internal/common/validation"
	"sme-cyber-assessment/internal/session"

	"github.com/gin-gonic/gin"
)

func (s *Server) getRules(c *gin.Context) {
	questions := make([]QuestionView, 0, len(s.rules.Questions))
	for _, q := range s.rules.Questions {
		questions = append(questions, QuestionView{
			ID:          q.ID,
			Section:     q.Section,
			Prompt:      q.Prompt,
			Hint:        q.Hint,
			Options:     q.Options,
			AppliesWhen: q.AppliesWhen,
		})
	}

	c.JSON(http.StatusOK, RulesResponse{
		Version:   s.rules.Version,
		Policy:    s.rules.OverallPolicy,
		Sections:  s.rules.Sections,
		Questions: questions,
		ProfileOptions: ProfileOptions{
			YearsInBusiness: assessment.YearsInBusinessOptions,
			EmployeeRange:   assessment.EmployeeRangeOptions,
			Turnover:        assessment.TurnoverOptions,
			WorkMode:        assessment.WorkModeOptions,
			ITManagement:    assessment.ITManagementOptions,
		},
	})
}

func (s *Server) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		s.respondError(c, "", errors.NewParseError(err))
		return
	}

	profile := assessment.DefaultProfile()
	if req.Profile != nil {
		if err := req.Profile.Validate(); err != nil {
			s.respondError(c, "", errors.NewProfileValidationFailedError(err.Error()))
			return
		}
		profile = *req.Profile
	}

	sess, err := s.store.Create(c.Request.Context(), profile)
	if err != nil {
		s.respondError(c, "", err)
		return
	}
	c.JSON(http.StatusCreated, s.sessionResponse(sess))
}

func (s *Server) getSession(c *gin.Context) {
	id := c.Param("id")
	sess, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) updateProfile(c *gin.Context) {
	id := c.Param("id")
	var profile assessment.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		s.respondError(c, id, errors.NewParseError(err))
		return
	}

	sess, err := session.Update(c.Request.Context(), s.store, id, func(sess *session.Session) error {
		if sess.Submitted() {
			return errors.NewDuplicateAssessmentError(id)
		}
		if err := sess.UpdateProfile(profile); err != nil {
			return errors.NewProfileValidationFailedError(err.Error())
		}
		return nil
	})
	if err != nil {
		s.respondError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, s.sessionResponse(sess))
}

// updateAnswers merges a question id to answer text map into the session.
// A blank value clears the question; any other text must normalize to an
// option the question offers.
func (s *Server) updateAnswers(c *gin.Context) {
	id := c.Param("id")
	var raw map[string]string
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.respondError(c, id, errors.NewParseError(err))
		return
	}

	result, err := s.validator.Validate(answersSchema, raw)
	if err != nil {
		s.respondError(c, id, errors.NewInternalError(err))
		return
	}
	if !result.Valid {
		s.respondError(c, id, errors.NewAnswersValidationFailedError(strings.Join(result.GetErrorMessages(), "; ")))
		return
	}

	answers, err := s.normalizeAnswers(raw)
	if err != nil {
		s.respondError(c, id, err)
		return
	}

	sess, err := session.Update(c.Request.Context(), s.store, id, func(sess *session.Session) error {
		if sess.Submitted() {
			return errors.NewDuplicateAssessmentError(id)
		}
		if err := sess.SetAnswers(s.rules, answers); err != nil {
			return errors.NewAnswersValidationFailedError(err.Error())
		}
		return nil
	})
	if err != nil {
		s.respondError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) normalizeAnswers(raw map[string]string) (assessment.Answers, error) {
	out := make(assessment.Answers, len(raw))
	for qid, text := range raw {
		a := assessment.Normalize(text)
		if a == assessment.Unanswered && strings.TrimSpace(text) != "" {
			return nil, errors.NewAnswersValidationFailedError(qid + ": unrecognised answer " + text)
		}
		out[qid] = a
	}
	return out, nil
}

func (s *Server) resetSession(c *gin.Context) {
	id := c.Param("id")
	sess, err := session.Update(c.Request.Context(), s.store, id, func(sess *session.Session) error {
		sess.Reset()
		return nil
	})
	if err != nil {
		s.respondError(c, id, err)
		return
	}
	metrics.SessionEvents.WithLabelValues("reset").Inc()
	c.JSON(http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) getResult(c *gin.Context) {
	id := c.Param("id")
	sess, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, id, err)
		return
	}

	start := time.Now()
	report := assessment.Evaluate(s.rules, sess.Snapshot(), sess.Profile)
	s.obs.RecordEvaluation(c.Request.Context(), "api", report.Overall.Band, time.Since(start))

	c.JSON(http.StatusOK, ResultResponse{SessionID: sess.ID, Report: report})
}

// submit hands the session to the assessment process. A session is
// submitted at most once; reset clears the flag.
func (s *Server) submit(c *gin.Context) {
	id := c.Param("id")
	var req SubmitRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		s.respondError(c, id, errors.NewParseError(err))
		return
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !validation.ValidateEmail(email) {
		s.respondError(c, id, errors.NewInvalidEmailError(email))
		return
	}

	ctx := c.Request.Context()
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		s.respondError(c, id, err)
		return
	}
	if !sess.Profile.Complete() {
		s.respondError(c, id, errors.NewProfileIncompleteError())
		return
	}
	if sess.Submitted() {
		s.respondError(c, id, errors.NewDuplicateAssessmentError(id))
		return
	}
	if s.starter == nil {
		s.respondError(c, id, errors.NewProcessStartFailedError(s.processID, errProcessEngineDisabled))
		return
	}

	key, err := s.starter.StartProcess(ctx, s.processID, map[string]interface{}{
		"sessionId":    sess.ID,
		"profile":      sess.Profile,
		"answers":      sess.Answers.Strings(),
		"email":        email,
		"rulesVersion": sess.RulesVersion,
	})
	if err != nil {
		s.respondError(c, id, errors.NewProcessStartFailedError(s.processID, err))
		return
	}

	now := time.Now().UTC()
	sess.Email = email
	sess.ProcessInstanceKey = key
	sess.SubmittedAt = &now
	if err := s.store.Save(ctx, sess); err != nil {
		// The process already runs on a snapshot of the variables.
		s.logger.Warn("failed to mark session submitted", map[string]interface{}{
			"sessionId":          id,
			"processInstanceKey": key,
			"error":              err,
		})
	}
	metrics.SessionEvents.WithLabelValues("submitted").Inc()

	s.logger.Info("assessment submitted", map[string]interface{}{
		"sessionId":          id,
		"processInstanceKey": key,
		"withEmail":          email != "",
	})

	c.JSON(http.StatusAccepted, SubmitResponse{
		SessionID:          sess.ID,
		ProcessInstanceKey: key,
		ProcessID:          s.processID,
	})
}

// bindOptionalJSON binds the body into v and treats an empty body as absent.
func bindOptionalJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}
