// Package api exposes the questionnaire over HTTP: rules, sessions, live
// results and submission into the assessment process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sme-cyber-assessment/internal/assessment"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/metrics"
	"sme-cyber-assessment/internal/common/observability"
	"sme-cyber-assessment/internal/common/validation"
	"sme-cyber-assessment/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const answersSchema = "answers"

// ProcessStarter starts a BPMN process instance. The Camunda client
// satisfies it.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// Check is a named readiness probe.
type Check func(ctx context.Context) error

type Options struct {
	Rules          *assessment.Rules
	Store          session.Store
	Starter        ProcessStarter
	ProcessID      string
	AllowedOrigins []string
	Checks         map[string]Check
	Observability  *observability.Observability
	Logger         logger.Logger
}

type Server struct {
	rules     *assessment.Rules
	store     session.Store
	starter   ProcessStarter
	processID string
	corsMW    gin.HandlerFunc
	checks    map[string]Check
	validator *validation.Validator
	obs       *observability.Observability
	logger    logger.Logger
}

func NewServer(opts Options) (*Server, error) {
	if opts.Rules == nil || opts.Store == nil {
		return nil, fmt.Errorf("api: rules and session store are required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}

	v := validation.NewValidator()
	if err := v.Register(answersSchema, opts.Rules.AnswersSchema()); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	corsHandler, err := newCORS(opts.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	return &Server{
		rules:     opts.Rules,
		store:     opts.Store,
		starter:   opts.Starter,
		processID: opts.ProcessID,
		corsMW:    corsHandler,
		checks:    opts.Checks,
		validator: v,
		obs:       opts.Observability,
		logger:    opts.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}, nil
}

// OpsRouter serves only health, readiness and metrics.
func (s *Server) OpsRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Router serves the ops endpoints plus the questionnaire API.
func (s *Server) Router() *gin.Engine {
	r := s.OpsRouter()
	if s.corsMW != nil {
		r.Use(s.corsMW)
	}

	r.GET("/rules", s.getRules)

	sessions := r.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("/:id", s.getSession)
	sessions.DELETE("/:id", s.deleteSession)
	sessions.PUT("/:id/profile", s.updateProfile)
	sessions.PUT("/:id/answers", s.updateAnswers)
	sessions.POST("/:id/reset", s.resetSession)
	sessions.GET("/:id/result", s.getResult)
	sessions.POST("/:id/submit", s.submit)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()

		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"route":    route,
			"status":   status,
			"duration": time.Since(start).String(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed", fields)
		} else {
			s.logger.Debug("request served", fields)
		}
	}
}

// newCORS returns nil when no origins are configured, leaving the API
// same-origin only. "*" allows any origin.
func newCORS(origins []string) (gin.HandlerFunc, error) {
	if len(origins) == 0 {
		return nil, nil
	}
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			break
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}
	return cors.New(cfg), nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "rulesVersion": s.rules.Version})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]string, len(s.checks))
	ready := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}
