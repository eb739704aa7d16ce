package platefulclient

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/plateful/plateful-client/api"
	"github.com/plateful/plateful-client/auth"
	"github.com/plateful/plateful-client/cache"
	httpclient "github.com/plateful/plateful-client/client"
	"github.com/plateful/plateful-client/config"
	"github.com/plateful/plateful-client/endpoint"
	"github.com/plateful/plateful-client/logger"
	"github.com/plateful/plateful-client/metrics"
	"github.com/plateful/plateful-client/poller"
	"github.com/plateful/plateful-client/session"
	"github.com/plateful/plateful-client/types"
)

// SDK is the composed data-synchronization layer for one tab-lifetime
// session against the Plateful API. The root owns the cache store and
// hands it by reference to every consumer; nothing here is a package
// singleton.
type SDK struct {
	Store   *cache.Store
	HTTP    *httpclient.HTTPClient
	Auth    *auth.Service
	API     *api.Client
	Metrics *metrics.Set

	logger    types.Logger
	scheduler *poller.CronScheduler
	nav       session.Navigator
	cancel    context.CancelFunc
}

// New wires the SDK from a validated config. The navigator is the host
// application's routing hook; registry may be nil to skip metrics
// registration.
func New(ctx context.Context, cfg *types.Config, nav session.Navigator, registry prometheus.Registerer) (*SDK, error) {
	if cfg == nil || cfg.API == nil {
		return nil, types.ErrConfigNotFound
	}

	log, err := logger.NewDefaultLogger(cfg.Logger)
	if err != nil {
		return nil, types.WrapError(err, "failed to build logger")
	}

	resolver, err := endpoint.NewResolver(cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}

	sdkCtx, cancel := context.WithCancel(ctx)

	scheduler := poller.NewCronScheduler(log)
	if err := scheduler.Start(); err != nil {
		cancel()
		return nil, err
	}

	set := metrics.NewSet(registry, "")
	httpClient := httpclient.New(sdkCtx, log, resolver, cfg.API)

	store := cache.NewStore(sdkCtx, log, cache.Options{
		Clock:     types.SystemClock(),
		Scheduler: scheduler,
		Metrics:   set,
	})

	sdk := &SDK{
		Store:     store,
		HTTP:      httpClient,
		Auth:      auth.NewService(store, httpClient, nav, log),
		API:       api.NewClient(store, httpClient, log, types.SystemClock(), cfg.Sync),
		Metrics:   set,
		logger:    log,
		scheduler: scheduler,
		nav:       nav,
		cancel:    cancel,
	}

	return sdk, nil
}

// NewFromConfigFile loads and validates a yaml config before wiring.
func NewFromConfigFile(ctx context.Context, configPath string, nav session.Navigator, registry prometheus.Registerer) (*SDK, error) {
	cfg, err := config.NewLoader().LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, nav, registry)
}

// ProtectedGate builds a gate for a view that requires an authenticated
// user, optionally narrowed to one role.
func (s *SDK) ProtectedGate(requiredRole *types.Role) *session.Gate {
	return session.NewGate(s.Store, s.nav, s.logger, session.Options{
		RequiredRole:  requiredRole,
		IdentityFetch: s.Auth.IdentityFetch(),
	})
}

// AnonymousGate builds a gate for sign-in/sign-up style views that only
// render for signed-out visitors.
func (s *SDK) AnonymousGate() *session.Gate {
	return session.NewGate(s.Store, s.nav, s.logger, session.Options{
		AnonymousOnly: true,
		IdentityFetch: s.Auth.IdentityFetch(),
	})
}

// Close tears the session down: polling stops, the store empties, the
// transport drops its session cookie.
func (s *SDK) Close() {
	s.Store.Close()

	if err := s.scheduler.Stop(); err != nil {
		s.logger.Warn("Scheduler stop failed during close")
	}

	s.HTTP.Close()
	s.cancel()
}
