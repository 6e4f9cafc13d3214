package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wnsxk2/jt-log/internal/domain"
	"github.com/wnsxk2/jt-log/internal/repository"
	"github.com/wnsxk2/jt-log/pkg/database"
	apperrors "github.com/wnsxk2/jt-log/pkg/errors"
)

// DefaultPrefix namespaces all session keys.
const DefaultPrefix = "session"

// ExpiredRetention keeps a session's keys this long past its expiry, so a
// late refresh is told the session expired rather than that it never existed.
const ExpiredRetention = 24 * time.Hour

// Key layout, for prefix "session":
//
//	session:<id>              hash of the session fields
//	session:token:<digest>    session id issued with the refresh token digest
//	session:user:<userID>     set of the user's session ids
//	session:expiry            sorted set of session ids scored by expiry (ms)
const (
	fieldID        = "id"
	fieldUserID    = "user_id"
	fieldTokenHash = "token_hash"
	fieldExpiresAt = "expires_at"
	fieldUserAgent = "user_agent"
	fieldClientIP  = "client_ip"
	fieldCreatedAt = "created_at"
)

// createScript writes a session and its index entries unless the token
// digest is already indexed. Returns 1 on success and 0 on a duplicate digest.
//
// KEYS: session, token index, user set, expiry index
// ARGV: id, user_id, token_hash, expires_at, user_agent, client_ip,
// created_at, key deadline (ms).
const createScript = `
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1], "user_id", ARGV[2], "token_hash", ARGV[3], "expires_at", ARGV[4],
  "user_agent", ARGV[5], "client_ip", ARGV[6], "created_at", ARGV[7])
redis.call("PEXPIREAT", KEYS[1], ARGV[8])
redis.call("SET", KEYS[2], ARGV[1])
redis.call("PEXPIREAT", KEYS[2], ARGV[8])
redis.call("SADD", KEYS[3], ARGV[1])
redis.call("ZADD", KEYS[4], ARGV[4], ARGV[1])
return 1
`

var createLua = redis.NewScript(createScript)

// rotateScript consumes the old session and writes the new one only if the
// old session still exists and the new digest is not indexed yet. Returns 1
// on success, 0 if the old session was gone and -1 on a duplicate digest.
// Nothing is written unless it returns 1.
//
// KEYS: old session, new session, new token index, user set, expiry index
// ARGV: session key prefix, token key prefix, old id, then the new session's
// id, user_id, token_hash, expires_at, user_agent, client_ip, created_at and
// key deadline (ms).
const rotateScript = `
local old_hash = redis.call("HGET", KEYS[1], "token_hash")
if not old_hash then
  return 0
end
if redis.call("EXISTS", KEYS[3]) == 1 then
  return -1
end
redis.call("DEL", KEYS[1], ARGV[2] .. old_hash)
redis.call("SREM", KEYS[4], ARGV[3])
redis.call("ZREM", KEYS[5], ARGV[3])

redis.call("HSET", KEYS[2],
  "id", ARGV[4], "user_id", ARGV[5], "token_hash", ARGV[6], "expires_at", ARGV[7],
  "user_agent", ARGV[8], "client_ip", ARGV[9], "created_at", ARGV[10])
redis.call("PEXPIREAT", KEYS[2], ARGV[11])
redis.call("SET", KEYS[3], ARGV[4])
redis.call("PEXPIREAT", KEYS[3], ARGV[11])
redis.call("SADD", KEYS[4], ARGV[4])
redis.call("ZADD", KEYS[5], ARGV[7], ARGV[4])
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// deleteScript removes one session and its index entries. Returns 1 if the
// session existed.
//
// KEYS: session, expiry index
// ARGV: token key prefix, user key prefix, session id
const deleteScript = `
local fields = redis.call("HMGET", KEYS[1], "token_hash", "user_id")
redis.call("ZREM", KEYS[2], ARGV[3])
if not fields[1] then
  return 0
end
redis.call("DEL", KEYS[1], ARGV[1] .. fields[1])
redis.call("SREM", ARGV[2] .. fields[2], ARGV[3])
return 1
`

var deleteLua = redis.NewScript(deleteScript)

// deleteUserScript removes every session in a user's set. Returns the number
// of sessions removed.
//
// KEYS: user set, expiry index
// ARGV: session key prefix, token key prefix
const deleteUserScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  local hash = redis.call("HGET", key, "token_hash")
  if hash then
    redis.call("DEL", key, ARGV[2] .. hash)
    n = n + 1
  end
  redis.call("ZREM", KEYS[2], id)
end
redis.call("DEL", KEYS[1])
return n
`

var deleteUserLua = redis.NewScript(deleteUserScript)

// SessionStore implements repository.SessionRepository on Redis.
// Multi-key updates run as Lua scripts, so each is atomic. The scripts derive
// index keys from stored values, which Redis Cluster rejects, so the store
// takes a single-node client rather than a redis.UniversalClient.
type SessionStore struct {
	client *redis.Client
	prefix string
}

// NewSessionStore creates a Redis-backed session store. An empty prefix
// selects DefaultPrefix.
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

var _ repository.SessionRepository = (*SessionStore)(nil)

func (s *SessionStore) sessionKeyPrefix() string { return s.prefix + ":" }
func (s *SessionStore) tokenKeyPrefix() string { return s.prefix + ":token:" }
func (s *SessionStore) userKeyPrefix() string { return s.prefix + ":user:" }
func (s *SessionStore) expiryKey() string { return s.prefix + ":expiry" }

func (s *SessionStore) sessionKey(id string) string { return s.sessionKeyPrefix() + id }
func (s *SessionStore) tokenKey(hash string) string { return s.tokenKeyPrefix() + hash }
func (s *SessionStore) userKey(userID string) string { return s.userKeyPrefix() + userID }

func keyDeadline(sess *domain.Session) time.Time {
	return sess.ExpiresAt.Add(ExpiredRetention)
}

// Create stores a new session with its index entries. A digest that is
// already indexed yields apperrors.ErrAlreadyExists.
func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) (err error) {
	ctx, end := database.TraceRedis(ctx, "CreateSession")
	defer func() { end(err) }()

	f := sessionFields(sess)
	n, err := createLua.Run(ctx, s.client,
		[]string{
			s.sessionKey(sess.ID),
			s.tokenKey(sess.RefreshTokenHash),
			s.userKey(sess.UserID),
			s.expiryKey(),
		},
		f[fieldID], f[fieldUserID], f[fieldTokenHash], f[fieldExpiresAt],
		f[fieldUserAgent], f[fieldClientIP], f[fieldCreatedAt],
		keyDeadline(sess).UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if n == 0 {
		return apperrors.ErrAlreadyExists
	}
	return nil
}

// GetByID retrieves a session by its identifier.
func (s *SessionStore) GetByID(ctx context.Context, id string) (_ *domain.Session, err error) {
	ctx, end := database.TraceRedis(ctx, "GetSessionByID")
	defer func() { end(err) }()

	return s.load(ctx, id)
}

// GetByTokenHash retrieves a session by refresh token digest.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (_ *domain.Session, err error) {
	ctx, end := database.TraceRedis(ctx, "GetSessionByTokenHash")
	defer func() { end(err) }()

	id, err := s.client.Get(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get session id: %w", err)
	}
	return s.load(ctx, id)
}

func (s *SessionStore) load(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return parseSession(fields)
}

// DeleteByID removes a session. Removing an absent session succeeds.
func (s *SessionStore) DeleteByID(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceRedis(ctx, "DeleteSessionByID")
	defer func() { end(err) }()

	_, err = s.delete(ctx, id)
	return err
}

// DeleteByTokenHash removes the session issued with the refresh token digest.
func (s *SessionStore) DeleteByTokenHash(ctx context.Context, tokenHash string) (err error) {
	ctx, end := database.TraceRedis(ctx, "DeleteSessionByTokenHash")
	defer func() { end(err) }()

	id, err := s.client.Get(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("get session id: %w", err)
	}
	_, err = s.delete(ctx, id)
	return err
}

func (s *SessionStore) delete(ctx context.Context, id string) (bool, error) {
	n, err := deleteLua.Run(ctx, s.client,
		[]string{s.sessionKey(id), s.expiryKey()},
		s.tokenKeyPrefix(), s.userKeyPrefix(), id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return n == 1, nil
}

// DeleteAllByUserID removes every session of a user.
func (s *SessionStore) DeleteAllByUserID(ctx context.Context, userID string) (_ int64, err error) {
	ctx, end := database.TraceRedis(ctx, "DeleteSessionsByUserID")
	defer func() { end(err) }()

	n, err := deleteUserLua.Run(ctx, s.client,
		[]string{s.userKey(userID), s.expiryKey()},
		s.sessionKeyPrefix(), s.tokenKeyPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return n, nil
}

// Rotate atomically replaces session oldID with next.
func (s *SessionStore) Rotate(ctx context.Context, oldID string, next *domain.Session) (err error) {
	ctx, end := database.TraceRedis(ctx, "RotateSession")
	defer func() { end(err) }()

	f := sessionFields(next)
	n, err := rotateLua.Run(ctx, s.client,
		[]string{
			s.sessionKey(oldID),
			s.sessionKey(next.ID),
			s.tokenKey(next.RefreshTokenHash),
			s.userKey(next.UserID),
			s.expiryKey(),
		},
		s.sessionKeyPrefix(), s.tokenKeyPrefix(), oldID,
		f[fieldID], f[fieldUserID], f[fieldTokenHash], f[fieldExpiresAt],
		f[fieldUserAgent], f[fieldClientIP], f[fieldCreatedAt],
		keyDeadline(next).UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	switch n {
	case 0:
		return apperrors.NotFound("session", oldID)
	case -1:
		return apperrors.ErrAlreadyExists
	}
	return nil
}

// DeleteExpired removes sessions that expired before the given time.
func (s *SessionStore) DeleteExpired(ctx context.Context, before time.Time) (_ int64, err error) {
	ctx, end := database.TraceRedis(ctx, "DeleteExpiredSessions")
	defer func() { end(err) }()

	ids, err := s.client.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	var n int64
	for _, id := range ids {
		deleted, err := s.delete(ctx, id)
		if err != nil {
			return n, err
		}
		if deleted {
			n++
		}
	}
	return n, nil
}

func sessionFields(sess *domain.Session) map[string]any {
	return map[string]any{
		fieldID:        sess.ID,
		fieldUserID:    sess.UserID,
		fieldTokenHash: sess.RefreshTokenHash,
		fieldExpiresAt: strconv.FormatInt(sess.ExpiresAt.UnixMilli(), 10),
		fieldUserAgent: sess.UserAgent,
		fieldClientIP:  sess.ClientIP,
		fieldCreatedAt: strconv.FormatInt(sess.CreatedAt.UnixMilli(), 10),
	}
}

func parseSession(f map[string]string) (*domain.Session, error) {
	expiresAt, err := strconv.ParseInt(f[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session expires_at: %w", err)
	}
	createdAt, err := strconv.ParseInt(f[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	return &domain.Session{
		ID:               f[fieldID],
		UserID:           f[fieldUserID],
		RefreshTokenHash: f[fieldTokenHash],
		ExpiresAt:        time.UnixMilli(expiresAt).UTC(),
		UserAgent:        f[fieldUserAgent],
		ClientIP:         f[fieldClientIP],
		CreatedAt:        time.UnixMilli(createdAt).UTC(),
	}, nil
}
