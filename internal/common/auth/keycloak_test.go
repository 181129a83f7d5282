package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeycloak(t *testing.T, handler http.HandlerFunc) *KeycloakClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewKeycloakClient(srv.URL, "portal", "workers", "secret", 2*time.Second)
}

func TestCurrentUser_ActiveToken(t *testing.T) {
	kc := newTestKeycloak(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/portal/protocol/openid-connect/token/introspect", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok-1", r.PostForm.Get("token"))
		assert.Equal(t, "workers", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active":true,"sub":"u-1","username":"thabo","email":"thabo@example.com","email_verified":true}`))
	})

	id, err := kc.CurrentUser(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, &Identity{ID: "u-1", Email: "thabo@example.com", EmailVerified: true, Username: "thabo"}, id)
}

func TestCurrentUser_InactiveToken(t *testing.T) {
	kc := newTestKeycloak(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"active":false}`))
	})

	_, err := kc.CurrentUser(context.Background(), "expired")
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))
}

func TestCurrentUser_EmptyToken(t *testing.T) {
	kc := NewKeycloakClient("http://unused", "portal", "workers", "secret", time.Second)
	_, err := kc.CurrentUser(context.Background(), "")
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))
}

func TestCurrentUser_ServerErrorIsCollaboratorUnavailable(t *testing.T) {
	kc := newTestKeycloak(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	})

	_, err := kc.CurrentUser(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrCollaboratorUnavailable))

	se, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.True(t, se.Retryable)
	assert.NotContains(t, se.Message, "maintenance")
	assert.Contains(t, se.Details, "maintenance")
}

func TestCurrentUser_UnreachableIsCollaboratorUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	kc := NewKeycloakClient(url, "portal", "workers", "secret", time.Second)
	_, err := kc.CurrentUser(context.Background(), "tok")
	assert.True(t, stderrors.Is(err, errors.ErrCollaboratorUnavailable))
}

func TestLogout(t *testing.T) {
	var called bool
	kc := newTestKeycloak(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/realms/portal/protocol/openid-connect/logout", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, kc.Logout(context.Background(), "refresh-1"))
	assert.True(t, called)
}

func TestGetUser_CachesServiceToken(t *testing.T) {
	tokenCalls := 0
	kc := newTestKeycloak(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/realms/portal/protocol/openid-connect/token":
			tokenCalls++
			_, _ = w.Write([]byte(`{"access_token":"svc","expires_in":300}`))
		case "/admin/realms/portal/users/u-1":
			assert.Equal(t, "Bearer svc", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":"u-1","email":"a@b.c","username":"a"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	for i := 0; i < 2; i++ {
		u, err := kc.GetUser(context.Background(), "u-1")
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", u.Email)
	}
	assert.Equal(t, 1, tokenCalls)

	_, err := kc.GetUser(context.Background(), "missing")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestStudentProfile(t *testing.T) {
	kc := newTestKeycloak(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/realms/portal/protocol/openid-connect/token":
			_, _ = w.Write([]byte(`{"access_token":"svc","expires_in":300}`))
		case "/admin/realms/portal/users/stu-1":
			_, _ = w.Write([]byte(`{"id":"stu-1","email":"lineo@example.com","firstName":"Lineo","lastName":"Mokoena"}`))
		case "/admin/realms/portal/users/stu-2":
			_, _ = w.Write([]byte(`{"id":"stu-2","username":"tumelo"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	p, err := kc.StudentProfile(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.StudentProfile{ID: "stu-1", Name: "Lineo Mokoena", Email: "lineo@example.com"}, p)

	p, err = kc.StudentProfile(context.Background(), "stu-2")
	require.NoError(t, err)
	assert.Equal(t, "tumelo", p.Name)
}

func TestPrincipal_FromAttributes(t *testing.T) {
	kc := newTestKeycloak(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/realms/portal/protocol/openid-connect/token":
			_, _ = w.Write([]byte(`{"access_token":"svc","expires_in":300}`))
		case "/admin/realms/portal/users/co-1":
			_, _ = w.Write([]byte(`{"id":"co-1","email":"hr@econet.co.ls","firstName":"Econet","enabled":true,
				"attributes":{"role":["Company"],"approved":["true"],"suspended":["false"]}}`))
		case "/admin/realms/portal/users/inst-1":
			_, _ = w.Write([]byte(`{"id":"inst-1","email":"registry@nul.ls","username":"nul","enabled":true,
				"attributes":{"role":["institute"],"website":["https://nul.ls"]}}`))
		case "/admin/realms/portal/users/u-norole":
			_, _ = w.Write([]byte(`{"id":"u-norole","username":"x","enabled":true}`))
		case "/admin/realms/portal/users/u-off":
			_, _ = w.Write([]byte(`{"id":"u-off","enabled":false,"attributes":{"role":["admin"]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	p, err := kc.Principal(ctx, "co-1")
	require.NoError(t, err)
	assert.Equal(t, models.Company{ID: "co-1", Name: "Econet", Email: "hr@econet.co.ls", Approved: true}, p)

	p, err = kc.Principal(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.Institute{ID: "inst-1", Name: "nul", Email: "registry@nul.ls", Website: "https://nul.ls"}, p)

	_, err = kc.Principal(ctx, "u-norole")
	assert.True(t, stderrors.Is(err, errors.ErrUnknownRole), "got %v", err)

	_, err = kc.Principal(ctx, "u-off")
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized), "got %v", err)

	_, err = kc.Principal(ctx, "ghost")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound), "got %v", err)
}
