package authlogout

import (
	"context"
	"time"

	"admissions-workers/internal/common/auth"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/models"
)

type Input struct {
	UserID       string `json:"userId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	LogoutAll    bool   `json:"logoutAll,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type Output struct {
	Success             bool      `json:"success"`
	Message             string    `json:"message"`
	SessionsInvalidated int       `json:"sessionsInvalidated"`
	TokenRevoked        bool      `json:"tokenRevoked"`
	LogoutAt            time.Time `json:"logoutAt"`
}

// Sessions is implemented by session.Cache.
type Sessions interface {
	OnLogout(ctx context.Context, token string) (bool, error)
	OnRoleChange(ctx context.Context, userID string) (int, error)
	Resolve(ctx context.Context, token string) (*models.Session, bool, error)
}

type ServiceDependencies struct {
	Sessions Sessions
	IdP      auth.IdentityProvider
	Logger   logger.Logger
}

var inputSchema = `{
	"type": "object",
	"required": ["userId", "accessToken"],
	"properties": {
		"userId": {"type": "string", "minLength": 1, "maxLength": 255},
		"accessToken": {"type": "string", "minLength": 10, "maxLength": 4096},
		"refreshToken": {"type": "string", "maxLength": 4096},
		"logoutAll": {"type": "boolean"},
		"reason": {"type": "string", "maxLength": 500}
	}
}`
