// Package redisstore persists authentication sessions in Redis.
//
// Each session is stored as JSON under its internal state, with one pointer
// key per correlation field (redirect id, authorization code, token, request
// token) resolving back to the internal state. Transition runs inside an
// optimistic WATCH/MULTI/EXEC transaction, so concurrent status changes for
// the same session collapse to exactly one winner. Every key carries a
// backstop TTL slightly longer than the session's own lifetime; the expiry
// sweep remains the authoritative cleanup path.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/internal/store"
)

// transitionRetries bounds how many times a Transition re-runs after a
// WATCH conflict before reporting the conflict to the caller.
const transitionRetries = 3

// ttlGrace pads the backstop TTL so Redis never expires a record the
// sweep still considers live.
const ttlGrace = time.Minute

// SessionStore implements store.SessionStore on a Redis client.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New creates a Redis-backed session store.
// The client should be obtained from the shared connect helper.
func New(client redis.UniversalClient, opts ...Option) *SessionStore {
	s := &SessionStore{
		client: client,
		prefix: "authgate",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements store.SessionStore.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Join(store.ErrMalformedRecord, err)
	}

	ttl := session.TTL(sess.Status) + ttlGrace
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sess.InternalState), data, ttl)
	s.writeIndexes(ctx, pipe, sess, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Get implements store.SessionStore.
func (s *SessionStore) Get(ctx context.Context, key store.Key, value string) (*session.Session, error) {
	internalState, err := s.resolve(ctx, key, value)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, internalState)
}

// Transition implements store.SessionStore.
func (s *SessionStore) Transition(ctx context.Context, key store.Key, value string, from, to session.Status, apply func(*session.Session)) (*session.Session, error) {
	var result *session.Session

	txn := func(tx *redis.Tx) error {
		internalState := value
		if key != store.KeyInternalState {
			var err error
			internalState, err = s.resolve(ctx, key, value)
			if err != nil {
				return err
			}
		}

		data, err := tx.Get(ctx, s.sessionKey(internalState)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return store.ErrNotFound
			}
			return err
		}

		sess := &session.Session{}
		if err := json.Unmarshal(data, sess); err != nil {
			return errors.Join(store.ErrMalformedRecord, err)
		}
		if key != store.KeyInternalState && fieldValue(sess, key) != value {
			return store.ErrNotFound
		}
		if sess.Status != from {
			return store.ErrConflict
		}

		if apply != nil {
			apply(sess)
		}
		sess.Status = to
		sess.Timestamp = s.now().UnixMilli()

		updated, err := json.Marshal(sess)
		if err != nil {
			return errors.Join(store.ErrMalformedRecord, err)
		}

		ttl := session.TTL(to) + ttlGrace
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.sessionKey(sess.InternalState), updated, ttl)
			s.writeIndexes(ctx, pipe, sess, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = sess
		return nil
	}

	// The watched key changing between GET and EXEC aborts the transaction.
	// Re-running re-reads the record, so a genuinely lost race surfaces as
	// ErrConflict on the next pass rather than a silent double-advance.
	var err error
	for i := 0; i < transitionRetries; i++ {
		err = s.client.Watch(ctx, txn, s.sessionKey(s.watchTarget(ctx, key, value)))
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete implements store.SessionStore. The session key is consumed with
// GETDEL so that of two concurrent deletes exactly one succeeds; the loser
// gets ErrNotFound. The bearer-token single-use guarantee rests on this.
func (s *SessionStore) Delete(ctx context.Context, internalState string) error {
	data, err := s.client.GetDel(ctx, s.sessionKey(internalState)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		return err
	}
	sess := &session.Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		return errors.Join(store.ErrMalformedRecord, err)
	}

	var keys []string
	for _, key := range indexedKeys {
		if v := fieldValue(sess, key); v != "" {
			keys = append(keys, s.indexKey(key, v))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// All implements store.SessionStore.
func (s *SessionStore) All(ctx context.Context) ([]*session.Session, error) {
	var sessions []*session.Session
	pattern := s.prefix + ":session:*"
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // expired between SCAN and GET
				}
				return nil, err
			}
			sess := &session.Session{}
			if err := json.Unmarshal(data, sess); err != nil {
				return nil, errors.Join(store.ErrMalformedRecord, err)
			}
			sessions = append(sessions, sess)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return sessions, nil
}

// indexedKeys lists the correlation fields that get pointer keys.
var indexedKeys = []store.Key{store.KeyRedirectID, store.KeyCode, store.KeyToken, store.KeyOAuthToken}

func (s *SessionStore) writeIndexes(ctx context.Context, pipe redis.Pipeliner, sess *session.Session, ttl time.Duration) {
	for _, key := range indexedKeys {
		if v := fieldValue(sess, key); v != "" {
			pipe.Set(ctx, s.indexKey(key, v), sess.InternalState, ttl)
		}
	}
}

// resolve maps a correlation key to the session's internal state.
func (s *SessionStore) resolve(ctx context.Context, key store.Key, value string) (string, error) {
	if value == "" {
		return "", store.ErrNotFound
	}
	if key == store.KeyInternalState {
		return value, nil
	}
	internalState, err := s.client.Get(ctx, s.indexKey(key, value)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return internalState, nil
}

// watchTarget returns the internal state to watch for a Transition. When
// the lookup is by pointer key and the pointer is missing, the returned
// value is the raw input; the transaction body then reports ErrNotFound.
func (s *SessionStore) watchTarget(ctx context.Context, key store.Key, value string) string {
	if key == store.KeyInternalState {
		return value
	}
	internalState, err := s.resolve(ctx, key, value)
	if err != nil {
		return value
	}
	return internalState
}

func (s *SessionStore) load(ctx context.Context, internalState string) (*session.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(internalState)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sess := &session.Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, errors.Join(store.ErrMalformedRecord, err)
	}
	return sess, nil
}

func (s *SessionStore) sessionKey(internalState string) string {
	return s.prefix + ":session:" + internalState
}

func (s *SessionStore) indexKey(key store.Key, value string) string {
	return s.prefix + ":idx:" + string(key) + ":" + value
}

func fieldValue(sess *session.Session, key store.Key) string {
	switch key {
	case store.KeyInternalState:
		return sess.InternalState
	case store.KeyRedirectID:
		return sess.RedirectID
	case store.KeyCode:
		return sess.Code
	case store.KeyToken:
		return sess.Token
	case store.KeyOAuthToken:
		return sess.OAuthToken
	}
	return ""
}

var _ store.SessionStore = (*SessionStore)(nil)
