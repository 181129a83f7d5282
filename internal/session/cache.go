// Package session caches the resolved principal behind an access token.
// Entries live in Redis under <prefix>:<sha256(token)> with a TTL, and every
// user has a set of their live session keys so a role change can drop them
// all at once.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"time"

	"admissions-workers/internal/common/auth"
	"admissions-workers/internal/common/config"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const collaboratorCache = "session-cache"

// Directory turns an identity-provider user id into a principal.
type Directory interface {
	Principal(ctx context.Context, id string) (models.Principal, error)
}

type Cache struct {
	rdb    redis.Cmdable
	idp    auth.IdentityProvider
	dir    Directory
	ttl    time.Duration
	prefix string
	now    func() time.Time
	logger logger.Logger
}

func New(rdb redis.Cmdable, idp auth.IdentityProvider, dir Directory, cfg config.SessionConfig, log logger.Logger) *Cache {
	c := &Cache{
		rdb:    rdb,
		idp:    idp,
		dir:    dir,
		ttl:    cfg.TTLDuration(),
		prefix: cfg.Prefix,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithFields(map[string]interface{}{"component": "session"}),
	}
	if c.ttl <= 0 {
		c.ttl = time.Hour
	}
	if c.prefix == "" {
		c.prefix = "session"
	}
	return c
}

func (c *Cache) tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return c.prefix + ":" + hex.EncodeToString(sum[:])
}

func (c *Cache) userKey(userID string) string {
	return c.prefix + ":user:" + userID
}

// OnLogin stores the principal for token, replacing any previous entry.
func (c *Cache) OnLogin(ctx context.Context, token string, identity auth.Identity, p models.Principal) (*models.Session, error) {
	if token == "" || p == nil {
		return nil, errors.NewInvalidInputError("token and principal are required")
	}
	now := c.now()
	sess := &models.Session{
		UserID:        identity.ID,
		Principal:     models.RecordOf(p),
		EmailVerified: identity.EmailVerified,
		CreatedAt:     now,
		ExpiresAt:     now.Add(c.ttl),
	}
	if sess.UserID == "" {
		sess.UserID = p.PrincipalID()
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, errors.NewInvalidInputError("session is not serialisable: " + err.Error())
	}

	key := c.tokenKey(token)
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, payload, c.ttl)
	pipe.SAdd(ctx, c.userKey(sess.UserID), key)
	pipe.Expire(ctx, c.userKey(sess.UserID), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorCache, err)
	}
	return sess, nil
}

// OnLogout drops the entry for token. It reports whether one existed.
func (c *Cache) OnLogout(ctx context.Context, token string) (bool, error) {
	key := c.tokenKey(token)
	sess, err := c.read(ctx, key)
	if err != nil {
		return false, errors.NewCollaboratorUnavailableError(collaboratorCache, err)
	}
	if sess == nil {
		return false, nil
	}
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, c.userKey(sess.UserID), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.NewCollaboratorUnavailableError(collaboratorCache, err)
	}
	return true, nil
}

// OnRoleChange drops every cached session of userID and returns how many
// entries were removed.
func (c *Cache) OnRoleChange(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.NewInvalidInputError("user id is required")
	}
	userKey := c.userKey(userID)
	keys, err := c.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, errors.NewCollaboratorUnavailableError(collaboratorCache, err)
	}
	removed := int64(0)
	if len(keys) > 0 {
		removed, err = c.rdb.Del(ctx, keys...).Result()
		if err != nil {
			return 0, errors.NewCollaboratorUnavailableError(collaboratorCache, err)
		}
	}
	if err := c.rdb.Del(ctx, userKey).Err(); err != nil {
		return 0, errors.NewCollaboratorUnavailableError(collaboratorCache, err)
	}
	c.logger.Info("sessions invalidated", map[string]interface{}{
		"userId":  userID,
		"removed": removed,
	})
	return int(removed), nil
}

// Resolve returns the session for token. On a miss the identity provider and
// the directory are consulted and the result is cached. A cache that cannot
// be read is skipped rather than failing the caller.
func (c *Cache) Resolve(ctx context.Context, token string) (*models.Session, bool, error) {
	if token == "" {
		return nil, false, errors.NewUnauthorizedError("missing access token")
	}
	key := c.tokenKey(token)

	sess, err := c.read(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("session cache read failed", map[string]interface{}{"error": err})
	case sess != nil && !sess.IsExpired(c.now()):
		return sess, true, nil
	}

	identity, err := c.idp.CurrentUser(ctx, token)
	if err != nil {
		return nil, false, err
	}
	p, err := c.dir.Principal(ctx, identity.ID)
	if err != nil {
		return nil, false, err
	}

	stored, err := c.OnLogin(ctx, token, *identity, p)
	if err != nil {
		c.logger.Warn("session cache write failed", map[string]interface{}{
			"userId": identity.ID,
			"error":  err,
		})
		now := c.now()
		return &models.Session{
			UserID:        identity.ID,
			Principal:     models.RecordOf(p),
			EmailVerified: identity.EmailVerified,
			CreatedAt:     now,
			ExpiresAt:     now.Add(c.ttl),
		}, false, nil
	}
	return stored, false, nil
}

// Authenticate resolves token to the principal behind it. A valid token
// whose user has no portal account is Unauthorized.
func (c *Cache) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	sess, _, err := c.Resolve(ctx, token)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewUnauthorizedError("no portal account for this token")
		}
		return nil, err
	}
	return sess.Principal.Principal()
}

// read returns nil, nil on a miss. Undecodable entries count as misses.
func (c *Cache) read(ctx context.Context, key string) (*models.Session, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		c.logger.Warn("dropping undecodable session", map[string]interface{}{"error": err})
		return nil, nil
	}
	return &sess, nil
}
