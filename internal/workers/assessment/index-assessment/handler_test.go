package indexassessment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sme-cyber-assessment/internal/assessment"
	"sme-cyber-assessment/internal/common/config"
	apperrors "sme-cyber-assessment/internal/common/errors"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/observability"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

func createTestConfig() *Config {
	return NewConfig(config.WorkerConfig{Enabled: true, Timeout: 5000}, "")
}

func createTestInput() *Input {
	p := assessment.DefaultProfile()
	p.PersonName = "Aoife"
	p.CompanyName = "Harbour Bakery"
	p.Sector = "Food retail"
	p.Region = "Ireland"
	return &Input{
		ReportID:     "9d2b4f0e-1111-4c2a-8e55-0a6a0c1f2e33",
		SessionID:    "4b1e5c36-5d6f-4b8f-9a53-8f0e8c1d1b11",
		RulesVersion: "2025.1",
		Profile:      p,
		Overall:      assessment.Overall{Band: "good", Maturity: 72},
		Dependency:   assessment.Dependency{Level: "low"},
		Ratings: []assessment.TopicRating{
			{Topic: "systems", Rating: assessment.Good},
			{Topic: "exposure", Rating: assessment.AtRisk},
		},
	}
}

func newESHandler(t *testing.T, fn http.HandlerFunc) *Handler {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		fn(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	h := NewHandler(createTestConfig(), es, observability.Noop(), logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	return h
}

// ==========================
// Tests
// ==========================

func TestExecute_IndexesAnonymisedDocument(t *testing.T) {
	var doc map[string]interface{}
	var path string
	h := newESHandler(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &doc)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	out, err := h.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, out.IndexStatus)
	assert.Equal(t, "9d2b4f0e-1111-4c2a-8e55-0a6a0c1f2e33", out.DocumentID)
	assert.Equal(t, "/assessment-benchmarks/_doc/9d2b4f0e-1111-4c2a-8e55-0a6a0c1f2e33", path)

	assert.Equal(t, "Food retail", doc["sector"])
	assert.Equal(t, "good", doc["overallBand"])
	assert.Equal(t, float64(72), doc["maturity"])
	assert.Equal(t, map[string]interface{}{"systems": "good", "exposure": "at_risk"}, doc["topics"])
	assert.Equal(t, "2025-03-14T09:30:00Z", doc["indexedAt"])

	raw, _ := json.Marshal(doc)
	assert.NotContains(t, string(raw), "Aoife")
	assert.NotContains(t, string(raw), "Harbour Bakery")
}

func TestExecute_FallsBackToSessionID(t *testing.T) {
	var path string
	h := newESHandler(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":"updated"}`))
	})

	input := createTestInput()
	input.ReportID = ""
	out, err := h.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, input.SessionID, out.DocumentID)
	assert.Contains(t, path, input.SessionID)
}

func TestExecute_ClusterRejects(t *testing.T) {
	h := newESHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
	})

	_, err := h.Execute(context.Background(), createTestInput())

	require.Error(t, err)
	std := apperrors.AsStandard(err)
	assert.Equal(t, apperrors.ErrCodeIndexFailed, std.Code)
	assert.True(t, std.Retryable)
	assert.Contains(t, std.Details, "mapper_parsing_exception")
}

func TestExecute_SkippedWithoutClient(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, observability.Noop(), logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.IndexStatus)
	assert.Empty(t, out.DocumentID)
}

func TestExecute_MissingIDs(t *testing.T) {
	h := newESHandler(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	input := createTestInput()
	input.ReportID, input.SessionID = "", ""
	_, err := h.Execute(context.Background(), input)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeParseError))
}
