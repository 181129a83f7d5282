package models

import "time"

// Session is the cached view of who is behind an access token.
type Session struct {
	UserID        string          `json:"userId"`
	Principal     PrincipalRecord `json:"principal"`
	EmailVerified bool            `json:"emailVerified"`
	CreatedAt     time.Time       `json:"createdAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

// IsExpired checks if session has expired
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
