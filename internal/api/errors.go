package api

import (
	stderrors "errors"
	"net/http"

	"sme-cyber-assessment/internal/common/errors"
	"sme-cyber-assessment/internal/session"

	"github.com/gin-gonic/gin"
)

var statusByCode = map[errors.ErrorCode]int{
	errors.ErrCodeSessionNotFound:         http.StatusNotFound,
	errors.ErrCodeAnswersValidationFailed: http.StatusBadRequest,
	errors.ErrCodeProfileValidationFailed: http.StatusBadRequest,
	errors.ErrCodeInvalidEmail:            http.StatusBadRequest,
	errors.ErrCodeParseError:              http.StatusBadRequest,
	errors.ErrCodeProfileIncomplete:       http.StatusConflict,
	errors.ErrCodeDuplicateAssessment:     http.StatusConflict,
	errors.ErrCodeProcessStartFailed:      http.StatusBadGateway,
	errors.ErrCodeSessionStoreFailed:      http.StatusServiceUnavailable,
}

var errProcessEngineDisabled = stderrors.New("process engine is not configured")

// respondError writes err as {code, message, details} with a matching status.
func (s *Server) respondError(c *gin.Context, id string, err error) {
	if stderrors.Is(err, session.ErrNotFound) {
		err = errors.NewSessionNotFoundError(id)
	}
	stdErr := errors.AsStandard(err)

	status, ok := statusByCode[stdErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request error", map[string]interface{}{
			"code":    string(stdErr.Code),
			"details": stdErr.Details,
		})
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: stdErr.Details,
	})
}
