// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sme-cyber-assessment/internal/assessment"
	"sme-cyber-assessment/internal/common/camunda"
	"sme-cyber-assessment/internal/common/config"
	"sme-cyber-assessment/internal/common/database"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/observability"
	"sme-cyber-assessment/internal/session"

	indexassessment "sme-cyber-assessment/internal/workers/assessment/index-assessment"
	loadsession "sme-cyber-assessment/internal/workers/assessment/load-session"
	recordassessment "sme-cyber-assessment/internal/workers/assessment/record-assessment"
	scoreassessment "sme-cyber-assessment/internal/workers/assessment/score-assessment"
	selectrecommendations "sme-cyber-assessment/internal/workers/assessment/select-recommendations"
	sendreport "sme-cyber-assessment/internal/workers/communication/send-report"
)

// backends are the real services the pipeline runs against.
type backends struct {
	cfg   *config.Config
	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient
}

func setupBackends(t *testing.T) *backends {
	t.Helper()
	if os.Getenv("E2E_ENABLED") == "" {
		t.Skip("set E2E_ENABLED=1 with Postgres, Redis, Elasticsearch and Zeebe running")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL client creation failed")
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	require.NoError(t, pg.EnsureSchema(ctx))
	t.Cleanup(func() { _ = pg.Close() })

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "Redis client creation failed")
	require.NoError(t, rdb.Ping(ctx), "Redis ping failed")
	t.Cleanup(func() { _ = rdb.Close() })

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err, "Elasticsearch client creation failed")
	require.NoError(t, es.Ping(ctx), "Elasticsearch ping failed")
	require.NoError(t, es.EnsureIndex(ctx, cfg.Database.Elasticsearch.BenchmarkIndex, database.BenchmarkMapping))

	return &backends{cfg: cfg, pg: pg, redis: rdb, es: es}
}

// ==========================
// Connectivity
// ==========================

func TestZeebeConnectivity(t *testing.T) {
	b := setupBackends(t)

	client, err := camunda.NewClient(b.cfg.Camunda.BrokerAddress)
	require.NoError(t, err, "Zeebe connection failed")
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.NoError(t, client.HealthCheck(ctx))
}

// ==========================
// Pipeline
// ==========================

// TestAssessmentPipeline runs every worker's Execute in process order against
// the real stores, the way the BPMN process chains them.
func TestAssessmentPipeline(t *testing.T) {
	b := setupBackends(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log := logger.NewTestLogger(t)
	obs := observability.Noop()
	rules, err := assessment.Default()
	require.NoError(t, err)
	workerCfg := func(task string) config.WorkerConfig { return config.GetWorkerConfig(b.cfg, task) }

	// 1. a respondent fills in the questionnaire
	store := session.NewRedisStore(b.redis.Client, session.Options{
		KeyPrefix:    b.cfg.Session.KeyPrefix,
		TTL:          time.Hour,
		RulesVersion: rules.Version,
	}, log)

	profile := assessment.DefaultProfile()
	profile.PersonName = "E2E Tester"
	profile.CompanyName = "E2E Bakery " + time.Now().Format("150405.000")
	profile.Sector = "Food retail"
	profile.Region = "Ireland"

	sess, err := store.Create(ctx, profile)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Delete(context.Background(), sess.ID) })

	_, err = session.Update(ctx, store, sess.ID, func(s *session.Session) error {
		return s.SetAnswers(rules, assessment.Answers{
			"df_website":   assessment.Yes,
			"df_https":     assessment.No,
			"df_email":     assessment.No,
			"bp_byod":      assessment.Yes,
			"bp_sensitive": assessment.Yes,
		})
	})
	require.NoError(t, err)

	// 2. load-session
	loaded, err := loadsession.NewHandler(loadsession.NewConfig(workerCfg(loadsession.TaskType)), store, obs, log).
		Execute(ctx, &loadsession.Input{SessionID: sess.ID})
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.AnsweredCount)

	// 3. score-assessment
	scored, err := scoreassessment.NewHandler(scoreassessment.NewConfig(workerCfg(scoreassessment.TaskType)), rules, obs, log).
		Execute(ctx, &scoreassessment.Input{Answers: loaded.Answers, Profile: loaded.Profile, RulesVersion: loaded.RulesVersion})
	require.NoError(t, err)
	assert.Equal(t, "high", scored.DependencyLevel)

	// 4. select-recommendations
	recs, err := selectrecommendations.NewHandler(selectrecommendations.NewConfig(workerCfg(selectrecommendations.TaskType)), rules, obs, log).
		Execute(ctx, &selectrecommendations.Input{Answers: loaded.Answers, Profile: loaded.Profile})
	require.NoError(t, err)
	assert.NotEmpty(t, recs.Recommendations)

	// 5. record-assessment, twice: a redelivered job returns the stored report
	recorder := recordassessment.NewHandler(recordassessment.NewConfig(workerCfg(recordassessment.TaskType)), b.pg.DB, obs, log)
	recordInput := &recordassessment.Input{
		SessionID:          sess.ID,
		ProcessInstanceKey: time.Now().UnixNano(),
		Profile:            loaded.Profile,
		Answers:            loaded.Answers,
		RulesVersion:       scored.RulesVersion,
		Ratings:            scored.Ratings,
		Overall:            scored.Overall,
		Dependency:         scored.Dependency,
		Sections:           scored.Sections,
		ContextTags:        scored.ContextTags,
		Recommendations:    recs.Recommendations,
	}
	recorded, err := recorder.Execute(ctx, recordInput)
	require.NoError(t, err)
	assert.NotEmpty(t, recorded.ReportID)

	again, err := recorder.Execute(ctx, recordInput)
	require.NoError(t, err)
	assert.Equal(t, recorded.ReportID, again.ReportID)

	// 6. index-assessment
	indexed, err := indexassessment.NewHandler(
		indexassessment.NewConfig(workerCfg(indexassessment.TaskType), b.cfg.Database.Elasticsearch.BenchmarkIndex),
		b.es.Client, obs, log,
	).Execute(ctx, &indexassessment.Input{
		ReportID:     recorded.ReportID,
		SessionID:    sess.ID,
		RulesVersion: scored.RulesVersion,
		Profile:      loaded.Profile,
		Overall:      scored.Overall,
		Dependency:   scored.Dependency,
		Ratings:      scored.Ratings,
		ContextTags:  scored.ContextTags,
	})
	require.NoError(t, err)
	assert.Equal(t, indexassessment.StatusIndexed, indexed.IndexStatus)
	assert.Equal(t, recorded.ReportID, indexed.DocumentID)

	// 7. send-report without an address or transports
	sent, err := sendreport.NewHandler(sendreport.NewConfig(workerCfg(sendreport.TaskType), false), nil, nil, obs, log).
		Execute(ctx, &sendreport.Input{
			SessionID:       sess.ID,
			ReportID:        recorded.ReportID,
			Profile:         loaded.Profile,
			Overall:         scored.Overall,
			Ratings:         scored.Ratings,
			Dependency:      scored.Dependency,
			Recommendations: recs.Recommendations,
		})
	require.NoError(t, err)
	assert.Equal(t, sendreport.StatusSkipped, sent.EmailStatus)
}
