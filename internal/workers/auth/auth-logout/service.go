// Package authlogout ends a user's session: the cached principal is dropped
// and the refresh token is revoked at the identity provider.
package authlogout

import (
	"context"
	"time"

	"admissions-workers/internal/common/auth"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/validation"
)

var schema = validation.MustCompile(inputSchema)

type Service struct {
	config   *Config
	sessions Sessions
	idp      auth.IdentityProvider
	logger   logger.Logger
	now      func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config:   config,
		sessions: deps.Sessions,
		idp:      deps.IdP,
		logger:   deps.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := schema.Validate(input); err != nil {
		return nil, err
	}
	s.logger.Info("executing auth logout", map[string]interface{}{
		"userId":    input.UserID,
		"logoutAll": input.LogoutAll,
		"reason":    input.Reason,
	})

	revoked := false
	if s.config.RevokeAtIdP && input.RefreshToken != "" && s.idp != nil {
		if err := s.idp.Logout(ctx, input.RefreshToken); err != nil {
			// the cached session is still dropped below
			s.logger.Warn("identity provider logout failed", map[string]interface{}{
				"userId": input.UserID,
				"error":  err,
			})
		} else {
			revoked = true
		}
	}

	var invalidated int
	if input.LogoutAll {
		// every session of the account goes, so the token must belong to it
		sess, _, err := s.sessions.Resolve(ctx, input.AccessToken)
		if err != nil {
			return nil, err
		}
		if sess.UserID != input.UserID {
			return nil, errors.NewUnauthorizedError("access token does not belong to " + input.UserID)
		}
		n, err := s.sessions.OnRoleChange(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		invalidated = n
	} else {
		found, err := s.sessions.OnLogout(ctx, input.AccessToken)
		if err != nil {
			return nil, err
		}
		if found {
			invalidated = 1
		}
	}

	s.logger.Info("auth logout completed", map[string]interface{}{
		"userId":              input.UserID,
		"sessionsInvalidated": invalidated,
		"tokenRevoked":        revoked,
	})

	return &Output{
		Success:             true,
		Message:             "Logout successful",
		SessionsInvalidated: invalidated,
		TokenRevoked:        revoked,
		LogoutAt:            s.now(),
	}, nil
}
