// Package memquiz wires configuration, storage, transport and the session
// engine into a ready-to-use quiz client.
package memquiz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/studygarden/memquiz/core/client"
	"github.com/studygarden/memquiz/core/config"
	"github.com/studygarden/memquiz/core/endpoint"
	"github.com/studygarden/memquiz/core/ranker"
	"github.com/studygarden/memquiz/core/session"
	"github.com/studygarden/memquiz/core/transport"
	"github.com/studygarden/memquiz/interfaces"
	"github.com/studygarden/memquiz/pkg/kvstore"
	"github.com/studygarden/memquiz/pkg/logging"
	"github.com/studygarden/memquiz/pkg/metrics"
)

var _ interfaces.Engine = (*session.Engine)(nil)

// App is a configured client: one store, one resolver, one request
// orchestrator. Engines created from it share all three.
type App struct {
	Config   *config.FileConfig
	Store    kvstore.Store
	Resolver *endpoint.Resolver
	API      *client.Client
	Ranker   *ranker.Ranker
	Metrics  *metrics.Collector

	logger    logging.Logger
	ownsStore bool
}

// Option configures New.
type Option func(*options)

type options struct {
	store      kvstore.Store
	httpClient *http.Client
	logger     logging.Logger
	metrics    *metrics.Collector
}

// WithStore uses store instead of opening the configured backend. The caller
// keeps ownership; App.Close will not close it.
func WithStore(store kvstore.Store) Option {
	return func(o *options) { o.store = store }
}

// WithHTTPClient replaces the HTTP client built from the configuration.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger for every component.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records requests, fallbacks and answers on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// New validates cfg and builds an App.
func New(ctx context.Context, cfg *config.FileConfig, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.GetLogger()
	}

	app := &App{Config: cfg, Metrics: o.metrics, logger: o.logger}

	app.Store = o.store
	if app.Store == nil {
		store, err := OpenStore(cfg.Storage)
		if err != nil {
			return nil, err
		}
		app.Store = store
		app.ownsStore = true
	}

	app.Resolver = endpoint.NewResolver(ctx, cfg.API.Primary, cfg.API.Stable,
		kvstore.NewSlot(app.Store, cfg.Storage.EndpointKey), o.logger)

	httpClient := o.httpClient
	if httpClient == nil {
		hc := transport.DefaultHTTPClientConfig()
		hc.ProxyURL = cfg.API.ProxyURL
		var err error
		if httpClient, err = transport.NewHTTPClient(hc); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("create http client: %w", err)
		}
	}

	httpOpts := []transport.HTTPOption{transport.WithUserAgent(cfg.API.UserAgent)}
	if cfg.API.PostEncoding == config.PostEncodingJSON {
		httpOpts = append(httpOpts, transport.WithJSONBodies())
	}

	middlewares := []transport.Middleware{
		transport.LoggingMiddleware(o.logger.With("component", "transport")),
		transport.TimeoutMiddleware(cfg.API.Timeout),
	}
	if cfg.API.RateLimit > 0 {
		middlewares = append(middlewares, transport.ThrottlingMiddleware(rate.Limit(cfg.API.RateLimit), cfg.API.RateBurst))
	}
	if o.metrics != nil {
		middlewares = append(middlewares, transport.MetricsMiddleware(o.metrics))
	}
	tr := transport.Chain(middlewares...)(transport.NewHTTPTransport(httpClient, httpOpts...))

	clientOpts := []client.Option{
		client.WithTimeout(cfg.API.Timeout),
		client.WithLogger(o.logger),
		client.WithMetrics(o.metrics),
	}
	if cfg.API.Credential != "" {
		clientOpts = append(clientOpts, client.WithCredential(cfg.API.CredentialParam, cfg.API.Credential))
	}
	app.API = client.New(tr, app.Resolver, clientOpts...)
	app.Ranker = ranker.New(app.API, o.logger, 0)

	o.logger.Debug("client ready",
		"primary", cfg.API.Primary,
		"stable", cfg.API.Stable,
		"active", app.Resolver.Resolve(),
		"storage", cfg.Storage.Backend,
	)
	return app, nil
}

// NewEngine creates a session engine that reports to presenter.
func (a *App) NewEngine(ctx context.Context, presenter session.Presenter) *session.Engine {
	return session.New(ctx, a.API, presenter, kvstore.NewSlot(a.Store, a.Config.Storage.SessionKey),
		session.Config{
			UserID:           a.Config.Session.UserID,
			QuestionLimit:    a.Config.Session.QuestionLimit,
			ReviewLimit:      a.Config.Session.ReviewLimit,
			AutoAdvanceDelay: a.Config.Session.AutoAdvanceDelay,
		},
		session.WithLogger(a.logger),
		session.WithMetrics(a.Metrics),
	)
}

// Probe pings every candidate endpoint and returns them best first. With
// promote set, the fastest reachable endpoint becomes the active one.
func (a *App) Probe(ctx context.Context, promote bool) ([]ranker.Result, error) {
	results := a.Ranker.Rank(ctx, a.Resolver.Candidates())
	if !promote {
		return results, nil
	}
	best, ok := ranker.Best(results)
	if !ok {
		return results, errors.New("no endpoint is reachable")
	}
	if err := a.Resolver.Promote(ctx, best); err != nil {
		return results, err
	}
	return results, nil
}

// Close releases the store if App opened it.
func (a *App) Close() error {
	if a.ownsStore && a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// OpenStore opens the storage backend named in cfg.
func OpenStore(cfg config.Storage) (kvstore.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return kvstore.NewMemoryStore(), nil
	case config.BackendFile, "":
		s, err := kvstore.NewFileStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return s, nil
	case config.BackendSQLite:
		path := cfg.Path
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("get home directory: %w", err)
			}
			path = filepath.Join(home, ".memquiz", "state.db")
		}
		s, err := kvstore.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		s, err := kvstore.NewRedisStore(kvstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
