// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"admissions-workers/internal/common/errors"
	httpclient "admissions-workers/internal/common/http"
	"admissions-workers/internal/models"
)

// Identity is what the identity provider knows about the caller of a token.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Username      string `json:"username"`
}

// IdentityProvider resolves bearer tokens and ends sessions.
type IdentityProvider interface {
	CurrentUser(ctx context.Context, token string) (*Identity, error)
	Logout(ctx context.Context, refreshToken string) error
}

// KeycloakClient talks to a Keycloak realm through its OpenID Connect and
// admin endpoints.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	http         *httpclient.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// User represents a user in Keycloak.
type User struct {
	ID            string `json:"id,omitempty"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Username      string `json:"username"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`

	Attributes map[string][]string `json:"attributes,omitempty"`
}

func (u *User) attribute(name string) string {
	if v := u.Attributes[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (u *User) displayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

// TokenInfo holds the fields of the introspection response that we use.
type TokenInfo struct {
	Active        bool   `json:"active"`
	Sub           string `json:"sub,omitempty"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Exp           int64  `json:"exp,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

const collaboratorIdP = "identity-provider"

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, timeout time.Duration) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         httpclient.NewClient(timeout),
	}
}

func (k *KeycloakClient) realmURL(path string) string {
	return fmt.Sprintf("%s/realms/%s%s", k.baseURL, k.realm, path)
}

func (k *KeycloakClient) postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return k.http.DoJSON(ctx, req, out)
}

// CurrentUser introspects token and returns the identity behind it.
// An inactive or rejected token is Unauthorized; transport failures and
// 5xx responses are CollaboratorUnavailable.
func (k *KeycloakClient) CurrentUser(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, errors.NewUnauthorizedError("missing access token")
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")
	form.Set("client_id", k.clientID)
	form.Set("client_secret", k.clientSecret)

	var info TokenInfo
	if err := k.postForm(ctx, k.realmURL("/protocol/openid-connect/token/introspect"), form, &info); err != nil {
		return nil, mapError(err)
	}
	if !info.Active || info.Sub == "" {
		return nil, errors.NewUnauthorizedError("token is not active")
	}

	return &Identity{
		ID:            info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Username:      info.Username,
	}, nil
}

// Logout revokes the refresh token of a session.
func (k *KeycloakClient) Logout(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("client_id", k.clientID)
	form.Set("client_secret", k.clientSecret)
	form.Set("refresh_token", refreshToken)

	if err := k.postForm(ctx, k.realmURL("/protocol/openid-connect/logout"), form, nil); err != nil {
		return mapError(err)
	}
	return nil
}

// GetUser retrieves a user by id through the admin API.
func (k *KeycloakClient) GetUser(ctx context.Context, userID string) (*User, error) {
	bearer, err := k.serviceToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s/users/%s", k.baseURL, k.realm, url.PathEscape(userID))
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError(collaboratorIdP, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	var user User
	if err := k.http.DoJSON(ctx, req, &user); err != nil {
		if se, ok := err.(*httpclient.StatusError); ok && se.StatusCode == http.StatusNotFound {
			return nil, errors.NewNotFoundError("user", userID)
		}
		return nil, mapError(err)
	}
	return &user, nil
}

// StudentProfile reads a student's contact details from the realm. It
// serves deployments without the users table.
func (k *KeycloakClient) StudentProfile(ctx context.Context, id string) (models.StudentProfile, error) {
	u, err := k.GetUser(ctx, id)
	if err != nil {
		return models.StudentProfile{}, err
	}
	return models.StudentProfile{ID: id, Name: u.displayName(), Email: u.Email}, nil
}

// Principal builds the portal principal of a realm user from its "role",
// "phone", "website", "approved" and "suspended" attributes. It serves
// deployments without the users table. A user without a recognised role is
// UnknownRole.
func (k *KeycloakClient) Principal(ctx context.Context, id string) (models.Principal, error) {
	u, err := k.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Enabled {
		return nil, errors.NewUnauthorizedError("account is disabled")
	}
	return models.PrincipalRecord{
		Role:      models.Role(u.attribute("role")),
		ID:        id,
		Name:      u.displayName(),
		Email:     u.Email,
		Phone:     u.attribute("phone"),
		Website:   u.attribute("website"),
		Approved:  u.attribute("approved") == "true",
		Suspended: u.attribute("suspended") == "true",
	}.Principal()
}

// serviceToken returns a cached client-credentials token, refreshing it
// shortly before expiry.
func (k *KeycloakClient) serviceToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", k.clientID)
	form.Set("client_secret", k.clientSecret)

	var tok tokenResponse
	if err := k.postForm(ctx, k.realmURL("/protocol/openid-connect/token"), form, &tok); err != nil {
		// the worker's own credentials are rejected: a configuration problem, not the caller's
		return "", errors.NewCollaboratorUnavailableError(collaboratorIdP, err)
	}

	k.accessToken = tok.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - 10*time.Second)
	return k.accessToken, nil
}

func mapError(err error) error {
	if se, ok := err.(*httpclient.StatusError); ok && !se.Transient() {
		return errors.NewUnauthorizedError(fmt.Sprintf("identity provider rejected request: status %d", se.StatusCode))
	}
	return errors.NewCollaboratorUnavailableError(collaboratorIdP, err)
}
