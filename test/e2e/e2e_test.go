//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admissions-workers/internal/common/auth"
	"admissions-workers/internal/common/config"
	"admissions-workers/internal/common/database"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/models"
	"admissions-workers/internal/search"
	"admissions-workers/internal/session"
	"admissions-workers/internal/store/postgres"

	dap "admissions-workers/internal/workers/admissions/decide-application"
	sap "admissions-workers/internal/workers/admissions/submit-application"
)

var (
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
)

func TestMain(m *testing.M) {
	zapLog = logger.New("debug", "console")
	log = logger.NewZapAdapter(zapLog)

	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func openPostgres(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	require.NoError(t, pg.Ping(ctx), "postgres must be reachable")
	t.Cleanup(func() { _ = pg.Close() })

	require.NoError(t, postgres.Migrate(ctx, pg.DB))
	_, err = pg.DB.ExecContext(ctx, `TRUNCATE applications, job_applications`)
	require.NoError(t, err)
	return postgres.New(pg.DB)
}

// uniqueInstitution keeps repeated runs independent of old rows.
func uniqueInstitution() models.Institution {
	id := fmt.Sprintf("inst-%d", time.Now().UnixNano())
	return models.Institution{ID: id, Name: "National University", Email: id + "@nul.ls"}
}

func TestApplicationLifecycleOnPostgres(t *testing.T) {
	store := openPostgres(t)
	lc := lifecycle.NewManager(store, store, lifecycle.Options{}, log)
	ctx := context.Background()
	inst := uniqueInstitution()

	studentToken, instToken := uniqueToken("stu"), uniqueToken("inst")
	sessions := openSessions(t, map[string]models.Principal{
		studentToken: models.Student{ID: "stu-e2e", Name: "Refiloe", Email: "refiloe@example.com"},
		instToken:    models.Institute{ID: inst.ID, Name: inst.Name, Email: inst.Email},
	})
	submit := sap.NewHandler(sap.DefaultConfig(), lc, sessions, log)
	decide := dap.NewHandler(dap.DefaultConfig(), lc, sessions, log)

	out, err := submit.Execute(ctx, &sap.Input{
		AccessToken: studentToken,
		Institution: inst,
		Course:      models.Course{Name: "CS101"},
		Marks:       models.Marks{"overall": "72"},
	})
	require.NoError(t, err)

	_, err = submit.Execute(ctx, &sap.Input{
		AccessToken: studentToken,
		Institution: inst,
		Course:      models.Course{Name: "CS101"},
		Marks:       models.Marks{"overall": "72"},
	})
	assert.True(t, stderrors.Is(err, errors.ErrDuplicateApplication))

	decided, err := decide.Execute(ctx, &dap.Input{
		ApplicationID: out.ApplicationID,
		Outcome:       models.StatusAdmitted,
		AccessToken:   instToken,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdmitted, decided.Status)

	app, err := lc.Get(ctx, out.ApplicationID)
	require.NoError(t, err)
	require.NotNil(t, app.ReviewedAt)
	assert.Equal(t, inst.Name, app.ReviewedByName)
	assert.Equal(t, "Refiloe", app.StudentName)
}

func TestConcurrentSubmissionsRespectQuota(t *testing.T) {
	store := openPostgres(t)
	lc := lifecycle.NewManager(store, store, lifecycle.Options{MaxApplicationsPerInstitution: 2}, log)
	inst := uniqueInstitution()

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := lc.Submit(context.Background(), lifecycle.SubmitRequest{
				Student:     models.StudentProfile{ID: "stu-race"},
				Institution: inst,
				Course:      models.Course{Name: fmt.Sprintf("COURSE-%d", i)},
				Marks:       models.Marks{"overall": "80"},
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, stderrors.Is(err, errors.ErrQuotaExceeded), "got %v", err)
	}
	assert.Equal(t, 2, ok)
}

func TestConcurrentDecisionsHaveOneWinner(t *testing.T) {
	store := openPostgres(t)
	lc := lifecycle.NewManager(store, store, lifecycle.Options{}, log)
	ctx := context.Background()

	app, err := lc.Submit(ctx, lifecycle.SubmitRequest{
		Student:     models.StudentProfile{ID: "stu-decide"},
		Institution: uniqueInstitution(),
		Course:      models.Course{Name: "LAW100"},
		Marks:       models.Marks{"overall": "65"},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := models.StatusAdmitted
			if i%2 == 1 {
				outcome = models.StatusRejected
			}
			_, err := lc.Decide(ctx, app.ID, models.Admin{ID: fmt.Sprintf("adm-%d", i)}, outcome)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, stderrors.Is(err, errors.ErrAlreadyDecided), "got %v", err)
	}
	assert.Equal(t, 1, winners)
}

type staticDirectory map[string]models.Principal

func (d staticDirectory) Principal(_ context.Context, id string) (models.Principal, error) {
	if p, ok := d[id]; ok {
		return p, nil
	}
	return nil, errors.NewNotFoundError("user", id)
}

type staticIdP map[string]*auth.Identity

func (s staticIdP) CurrentUser(_ context.Context, token string) (*auth.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, errors.NewUnauthorizedError("token is not active")
}

func (staticIdP) Logout(context.Context, string) error { return nil }

func uniqueToken(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// openSessions returns a session cache on the configured Redis that accepts
// exactly the given tokens.
func openSessions(t *testing.T, tokens map[string]models.Principal) *session.Cache {
	t.Helper()
	rdb := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, rdb.Ping(context.Background()), "redis must be reachable")
	t.Cleanup(func() { _ = rdb.Close() })

	idp, dir := staticIdP{}, staticDirectory{}
	for token, p := range tokens {
		idp[token] = &auth.Identity{ID: p.PrincipalID(), Email: p.ContactEmail(), EmailVerified: true}
		dir[p.PrincipalID()] = p
	}
	return session.New(rdb.Client, idp, dir, config.SessionConfig{TTL: 60, Prefix: "e2e-session"}, log)
}

func TestSessionCacheOnRedis(t *testing.T) {
	ctx := context.Background()
	token := uniqueToken("tok")
	cache := openSessions(t, map[string]models.Principal{
		token: models.Institute{ID: "inst-1", Name: "NUL"},
	})

	_, cached, err := cache.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, cached)

	sess, cached, err := cache.Resolve(ctx, token)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, models.RoleInstitute, sess.Principal.Role)

	n, err := cache.OnRoleChange(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSearchIndex(t *testing.T) {
	if !cfg.Database.Elasticsearch.Enabled() {
		t.Skip("elasticsearch is not configured")
	}
	ctx := context.Background()
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err)
	require.NoError(t, es.Ping(ctx))

	name := fmt.Sprintf("e2e-applications-%d", time.Now().UnixNano())
	idx := search.New(es.Client, config.SearchConfig{Index: name}, log)
	require.NoError(t, idx.EnsureIndex(ctx))

	inst := uniqueInstitution()
	app := &models.Application{
		ID: "app-e2e", StudentID: "stu-1", StudentName: "Itumeleng Mahase",
		InstitutionID: inst.ID, InstitutionName: inst.Name, CourseName: "Computer Science",
		Status: models.StatusPending, AppliedAt: time.Now().UTC(),
	}
	require.NoError(t, idx.IndexApplication(ctx, app))
	refresh, err := es.Client.Indices.Refresh(es.Client.Indices.Refresh.WithIndex(name))
	require.NoError(t, err)
	refresh.Body.Close()

	res, err := idx.Search(ctx, search.Query{Text: "Itumeleng", InstitutionID: inst.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, "app-e2e", res.Applications[0].ID)
}

func TestZeebeGatewayReachable(t *testing.T) {
	client, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
	})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = client.NewTopologyCommand().Send(ctx)
	assert.NoError(t, err)
}
