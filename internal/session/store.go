package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sme-cyber-assessment/internal/assessment"
	apperrors "sme-cyber-assessment/internal/common/errors"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id has no stored state.
var ErrNotFound = errors.New("session not found")

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, profile assessment.Profile) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

type Options struct {
	KeyPrefix    string
	TTL          time.Duration // zero keeps sessions forever
	RulesVersion string
}

// RedisStore stores each session as a JSON string with a sliding TTL.
type RedisStore struct {
	client redis.Cmdable
	opts   Options
	logger logger.Logger
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable, opts Options, log logger.Logger) *RedisStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "assessment:session:"
	}
	return &RedisStore{
		client: client,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "session-store"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) key(id string) string {
	return s.opts.KeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, profile assessment.Profile) (*Session, error) {
	sess := newSession(uuid.New().String(), s.opts.RulesVersion, profile, s.now())
	if err := s.write(ctx, sess); err != nil {
		return nil, err
	}
	metrics.SessionEvents.WithLabelValues("created").Inc()
	s.logger.Debug("session created", map[string]interface{}{"sessionId": sess.ID})
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewSessionStoreFailedError("get", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, apperrors.NewSessionStoreFailedError("decode", err)
	}
	if sess.Answers == nil {
		sess.Answers = assessment.Answers{}
	}
	return &sess, nil
}

// Save writes the session and refreshes its TTL. Concurrent saves of the
// same session are last-write-wins.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return apperrors.NewSessionStoreFailedError("save", fmt.Errorf("session has no id"))
	}
	sess.UpdatedAt = s.now()
	return s.write(ctx, sess)
}

func (s *RedisStore) write(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return apperrors.NewSessionStoreFailedError("encode", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.opts.TTL).Err(); err != nil {
		return apperrors.NewSessionStoreFailedError("set", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return apperrors.NewSessionStoreFailedError("delete", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	metrics.SessionEvents.WithLabelValues("deleted").Inc()
	return nil
}

// Update loads a session, applies fn and saves the result. fn errors are
// returned unchanged and nothing is written.
func Update(ctx context.Context, store Store, id string, fn func(*Session) error) (*Session, error) {
	sess, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
