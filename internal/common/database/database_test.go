package database

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"sme-cyber-assessment/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := &PostgresClient{DB: db}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS assessment_reports")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, client.EnsureSchema(context.Background()))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	err = client.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure schema")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestRedis_EmptyAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func newESServer(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	return client
}

func TestElasticsearch_EnsureIndex(t *testing.T) {
	t.Run("creates missing index", func(t *testing.T) {
		var created bool
		client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodHead:
				w.WriteHeader(http.StatusNotFound)
			case http.MethodPut:
				created = true
				assert.Equal(t, "/assessment-benchmarks", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"acknowledged":true}`))
			}
		})

		require.NoError(t, client.EnsureIndex(context.Background(), "assessment-benchmarks", BenchmarkMapping))
		assert.True(t, created)
	})

	t.Run("existing index is left alone", func(t *testing.T) {
		client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodHead {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
		})

		assert.NoError(t, client.EnsureIndex(context.Background(), "assessment-benchmarks", BenchmarkMapping))
	})

	t.Run("create failure", func(t *testing.T) {
		client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
		})

		assert.Error(t, client.EnsureIndex(context.Background(), "assessment-benchmarks", BenchmarkMapping))
	})
}

func TestElasticsearch_Ping(t *testing.T) {
	client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, client.Ping(context.Background()))
}
