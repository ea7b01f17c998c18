// internal/client/client.go
package client

import (
	"context"
	"fmt"
	"time"

	"fridgetrack-sync/internal/api/health"
	"fridgetrack-sync/internal/api/inventory"
	"fridgetrack-sync/internal/api/recipes"
	"fridgetrack-sync/internal/api/scan"
	"fridgetrack-sync/internal/api/stats"
	"fridgetrack-sync/internal/cache"
	"fridgetrack-sync/internal/common/config"
	"fridgetrack-sync/internal/common/database"
	apperrors "fridgetrack-sync/internal/common/errors"
	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/observability"
	"fridgetrack-sync/internal/common/retry"
	"fridgetrack-sync/internal/models"
	"fridgetrack-sync/internal/mutations"
	"fridgetrack-sync/internal/queries"
	"fridgetrack-sync/internal/upload"
)

type settings struct {
	httpOpts []apphttp.Option
	obs      *observability.Observability
	redis    *database.RedisClient
	clock    func() time.Time
}

type Option func(*settings)

// WithHTTPOptions passes extra options to the transport, after the ones
// derived from configuration.
func WithHTTPOptions(opts ...apphttp.Option) Option {
	return func(s *settings) { s.httpOpts = append(s.httpOpts, opts...) }
}

func WithObservability(o *observability.Observability) Option {
	return func(s *settings) { s.obs = o }
}

// WithRedis uses an existing Redis client for query persistence instead of
// dialing cache.redis.address.
func WithRedis(r *database.RedisClient) Option {
	return func(s *settings) { s.redis = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.clock = now }
}

// Client is the assembled sync layer: one transport, one query store and
// the services that share them.
type Client struct {
	cfg       *config.Config
	logger    logger.Logger
	reporter  *apperrors.Reporter
	http      *apphttp.Client
	store     *cache.Store
	persister *cache.RedisPersister
	redis     *database.RedisClient
	ownsRedis bool

	Inventory *inventory.Client
	Scan      *scan.Client
	Recipes   *recipes.Client
	Stats     *stats.Client
	Health    *health.Client

	Queries   *queries.Service
	Mutations *mutations.Orchestrator
	Upload    *upload.Pipeline
}

func New(cfg *config.Config, log logger.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("client: config is required")
	}
	log = logger.OrNop(log)
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}

	httpOpts := []apphttp.Option{
		apphttp.WithTimeout(config.GetDuration(cfg.API.Timeout)),
		apphttp.WithUploadTimeout(config.GetDuration(cfg.API.UploadTimeout)),
		apphttp.WithCredentials(apphttp.NewMemoryCredentials(cfg.Auth.Token)),
		apphttp.WithLogger(log),
		apphttp.WithObservability(s.obs),
	}
	hc, err := apphttp.NewClient(cfg.ResolveBaseURL(), append(httpOpts, s.httpOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("client: transport: %w", err)
	}

	c := &Client{
		cfg:      cfg,
		logger:   log,
		reporter: apperrors.NewReporter(log),
		http:     hc,
		redis:    s.redis,
	}

	storeOpts := []cache.Option{cache.WithLogger(log)}
	if s.clock != nil {
		storeOpts = append(storeOpts, cache.WithClock(s.clock))
	}
	if c.redis == nil && cfg.Cache.Redis.Enabled {
		c.redis, err = database.NewRedis(cfg.Cache.Redis)
		if err != nil {
			return nil, fmt.Errorf("client: redis: %w", err)
		}
		c.ownsRedis = true
	}
	if c.redis != nil {
		c.persister = cache.NewRedisPersister(c.redis, time.Duration(cfg.Cache.Redis.TTL)*time.Second)
		storeOpts = append(storeOpts, cache.WithPersister(c.persister))
	}
	c.store = cache.NewStore(cache.Config{StaleTime: config.GetDuration(cfg.Cache.StaleTime)}, storeOpts...)

	policy := retry.DefaultPolicy("")
	policy.MaxRetries = cfg.Retry.MaxRetries
	policy.BaseDelay = config.GetDuration(cfg.Retry.BaseDelay)
	policy.MaxJitter = config.GetDuration(cfg.Retry.MaxJitter)
	policy.Logger = log

	c.Inventory = inventory.NewClient(hc, log)
	c.Scan = scan.NewClient(hc, log)
	c.Recipes = recipes.NewClient(hc, policy, log)
	c.Stats = stats.NewClient(hc)
	c.Health = health.NewClient(hc)

	c.Queries = queries.NewService(c.store, c.Inventory, c.Recipes, c.Stats, c.Health, log)
	c.Mutations = mutations.NewOrchestrator(c.store, c.Inventory, log)
	c.Upload = upload.NewPipeline(upload.Config{
		MaxBytes:      cfg.Upload.MaxBytes,
		MaxWidth:      cfg.Upload.MaxWidth,
		CompressAbove: cfg.Upload.CompressAbove,
		Quality:       cfg.Upload.Quality,
		Timeout:       config.GetDuration(cfg.API.UploadTimeout),
	}, c.Scan, c.Queries, upload.WithLogger(log), upload.WithObservability(s.obs))

	log.Info("sync client ready", map[string]interface{}{
		"baseUrl":     hc.BaseURL(),
		"environment": cfg.App.Environment,
		"persistence": c.persister != nil,
	})
	return c, nil
}

// Store exposes the shared query store for subscriptions.
func (c *Client) Store() *cache.Store { return c.store }

// Credentials exposes the bearer token store.
func (c *Client) Credentials() apphttp.CredentialStore { return c.http.Credentials() }

// Report logs err with its diagnostic payload and returns it normalized.
func (c *Client) Report(operation string, err error) *apperrors.StructuredError {
	return c.reporter.Report(operation, err)
}

// Ping checks the backend and, when persistence is on, Redis.
func (c *Client) Ping(ctx context.Context) (*models.Health, error) {
	if c.redis != nil {
		if err := c.redis.Ping(ctx); err != nil {
			return nil, fmt.Errorf("client: redis ping: %w", err)
		}
	}
	return c.Health.Check(ctx)
}

// ClearPersisted drops every persisted query snapshot.
func (c *Client) ClearPersisted(ctx context.Context) error {
	if c.persister == nil {
		return nil
	}
	return c.persister.Purge(ctx)
}

// Close waits for background refreshes and releases owned connections.
func (c *Client) Close() error {
	c.store.Close()
	if c.ownsRedis && c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
