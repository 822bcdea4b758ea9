package agent

import (
	"context"
	"fmt"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/rocket-approval/mortgage-agent/internal/async"
	"github.com/rocket-approval/mortgage-agent/internal/auth"
	"github.com/rocket-approval/mortgage-agent/internal/client"
	"github.com/rocket-approval/mortgage-agent/internal/config"
	"github.com/rocket-approval/mortgage-agent/internal/flow"
	"github.com/rocket-approval/mortgage-agent/internal/google"
	"github.com/rocket-approval/mortgage-agent/internal/logger"
	"github.com/rocket-approval/mortgage-agent/internal/services"
	"github.com/rocket-approval/mortgage-agent/internal/session"
	"github.com/rocket-approval/mortgage-agent/internal/tools"
)

// Agent wires the application API, tools, OAuth and the conversation engine together.
type Agent struct {
	config      *config.Config
	client      *client.APIClient
	application *services.ApplicationService
	store       session.Store
	redis       *session.RedisStore
	auth        *auth.Provider
	registry    *tools.Registry
	engine      *flow.Engine
	watcher     *async.StatusWatcher
}

// Options swaps out dependencies, mostly for tests.
type Options struct {
	ClientOptions []client.Option
	AuthOptions   []auth.Option
	People        tools.ProfileFetcher
	Store         session.Store
}

// New creates an agent with all dependencies.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Agent, error) {
	a := &Agent{config: cfg}

	a.store = opts.Store
	if a.store == nil {
		store, redisStore, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.store, a.redis = store, redisStore
	}

	a.client = client.NewAPIClient(cfg, opts.ClientOptions...)
	a.application = services.NewApplicationService(a.client, cfg.AccountRedirect)
	a.watcher = async.NewStatusWatcher(a.application, cfg.StatusInterval)
	a.auth = auth.NewProvider(cfg.Google, cfg.StateSecret, a.store, opts.AuthOptions...)

	var authorizer tools.Authorizer
	if cfg.GoogleEnabled() {
		authorizer = a.auth
	} else {
		logger.Debug("Google OAuth client not configured, account tools are disabled")
	}

	people := opts.People
	if people == nil {
		people = google.NewPeopleClient()
	}

	a.registry = tools.NewRegistry(authorizer)
	tools.RegisterAccountTools(a.registry, tools.AccountRequirement(cfg.Google), people)
	tools.RegisterMortgageTools(a.registry, a.application)

	steps := flow.DefaultSteps(flow.Options{Prefill: cfg.GoogleEnabled()})
	a.engine = flow.NewEngine(a.registry, flow.NewCheckpointer(a.store), steps)

	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (session.Store, *session.RedisStore, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR is not set, conversations will only last as long as this process")
		return session.NewMemoryStore(), nil, nil
	}

	store, err := session.NewRedisStore(ctx, &redisv9.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.SessionTTL, session.WithPrefixTTL(auth.TokenKeyPrefix, cfg.TokenTTL))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	logger.Info("Using redis at %s for checkpoints", cfg.RedisAddr)
	return store, store, nil
}

// Engine returns the conversation engine.
func (a *Agent) Engine() *flow.Engine {
	return a.engine
}

// Registry returns the tool registry.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// Auth returns the OAuth2 provider.
func (a *Agent) Auth() *auth.Provider {
	return a.auth
}

// Application returns the application API service.
func (a *Agent) Application() *services.ApplicationService {
	return a.application
}

// Watcher returns the status watcher.
func (a *Agent) Watcher() *async.StatusWatcher {
	return a.watcher
}

// GetConfig returns the current configuration
func (a *Agent) GetConfig() *config.Config {
	return a.config
}

// Persistent reports whether checkpoints survive the process.
func (a *Agent) Persistent() bool {
	_, memory := a.store.(*session.MemoryStore)
	return !memory
}

// WaitForAPIReady waits for the application API to answer.
func (a *Agent) WaitForAPIReady(ctx context.Context, attempts int) bool {
	return a.client.WaitForAPIReady(ctx, attempts)
}

// Cleanup stops the watcher and releases the checkpoint store.
func (a *Agent) Cleanup() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Failed to close redis: %v", err)
		}
	}
}
