package resolvesession

import (
	"time"

	"admissions-workers/internal/models"
)

type Input struct {
	AccessToken string `json:"accessToken"`
}

type Output struct {
	UserID        string                 `json:"userId"`
	Principal     models.PrincipalRecord `json:"principal"`
	EmailVerified bool                   `json:"emailVerified"`
	Cached        bool                   `json:"cached"`
	ExpiresAt     time.Time              `json:"expiresAt"`
}

var inputSchema = `{
	"type": "object",
	"required": ["accessToken"],
	"properties": {
		"accessToken": {"type": "string", "minLength": 1, "maxLength": 4096}
	}
}`
