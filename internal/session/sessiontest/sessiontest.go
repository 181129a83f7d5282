// Package sessiontest builds a session cache backed by miniredis with a
// fixed set of tokens, for tests of packages that authenticate callers.
package sessiontest

import (
	"context"
	"testing"

	"admissions-workers/internal/common/auth"
	"admissions-workers/internal/common/config"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/models"
	"admissions-workers/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Tokens maps an access token to the principal it belongs to.
type Tokens map[string]models.Principal

type identities Tokens

func (i identities) CurrentUser(_ context.Context, token string) (*auth.Identity, error) {
	p, ok := i[token]
	if !ok {
		return nil, errors.NewUnauthorizedError("token is not active")
	}
	return &auth.Identity{ID: p.PrincipalID(), Email: p.ContactEmail(), EmailVerified: true}, nil
}

func (identities) Logout(context.Context, string) error { return nil }

type directory map[string]models.Principal

func (d directory) Principal(_ context.Context, id string) (models.Principal, error) {
	if p, ok := d[id]; ok {
		return p, nil
	}
	return nil, errors.NewNotFoundError("user", id)
}

// NewCache returns a cache that accepts exactly the given tokens.
func NewCache(t testing.TB, tokens Tokens) *session.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dir := directory{}
	for _, p := range tokens {
		dir[p.PrincipalID()] = p
	}
	return session.New(rdb, identities(tokens), dir,
		config.SessionConfig{TTL: 300, Prefix: "test-session"}, logger.NewTestLogger(t))
}
