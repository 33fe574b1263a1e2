package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/metrics"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/repomanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	cfg     *config.Config
	repos   repomanager.Manager
	manager *SessionManager
	store   *RefreshTokenStore
	sweeper *ExpirySweeper
	issuer  *auth.AccessTokenIssuer
	users   *UserService
	metrics *metrics.Recorder
	clock   *fakeClock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PasswordHashCost = bcrypt.MinCost
	cfg.RefreshTokenHashMemoryKiB = 64
	cfg.RefreshTokenTTL = time.Hour
	return cfg
}

func newTestEnv(t *testing.T, opts ...repomanager.Option) *testEnv {
	t.Helper()

	cfg := testConfig()
	repos := repomanager.NewMemoryManager(opts...)
	rec := metrics.NewRecorder(prometheus.NewRegistry())

	deps, issuer := NewDefaultDeps(repos, cfg, logging.Nop(), rec)
	m := NewSessionManager(deps, cfg.RefreshTokenTTL)

	clock := &fakeClock{t: time.Now()}
	m.now = clock.Now
	deps.Store.now = clock.Now
	deps.Sweeper.now = clock.Now

	return &testEnv{
		cfg:     cfg,
		repos:   repos,
		manager: m,
		store:   deps.Store,
		sweeper: deps.Sweeper,
		issuer:  issuer,
		users:   NewUserService(repos.Users(), auth.NewBcryptHasher(cfg.PasswordHashCost)),
		metrics: rec,
		clock:   clock,
	}
}

func (e *testEnv) metricsCounter(op, result string) prometheus.Counter {
	return e.metrics.Operations().WithLabelValues(op, result)
}

func (e *testEnv) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), email, password, false)
	require.NoError(t, err)
	return u
}
