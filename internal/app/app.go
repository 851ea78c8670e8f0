package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/redisinsight-azure-auth/internal/config"
	"github.com/redis/redisinsight-azure-auth/internal/credentials"
	"github.com/redis/redisinsight-azure-auth/internal/dataplane"
	"github.com/redis/redisinsight-azure-auth/internal/discovery"
	"github.com/redis/redisinsight-azure-auth/internal/events"
	"github.com/redis/redisinsight-azure-auth/internal/oauth"
	"github.com/redis/redisinsight-azure-auth/internal/reauth"
	"github.com/redis/redisinsight-azure-auth/internal/refresh"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// App owns every component of the token lifecycle for one process.
type App struct {
	cfg              config.Config
	managementScopes pkgoauth.ScopeSet
	dataPlaneScopes  pkgoauth.ScopeSet

	provider    *oauth.EntraProvider
	states      *oauth.StateStore
	cache       *oauth.TokenCache
	flow        *oauth.FlowManager
	registry    *dataplane.Registry
	scheduler   *refresh.Scheduler
	reauth      *reauth.Reauthenticator
	discovery   *discovery.Resolver
	credentials *credentials.Resolver

	dial    DialFunc
	browser BrowserFunc

	unsubscribe  []func()
	shutdownOnce sync.Once
}

// New validates cfg and builds the application.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:              cfg,
		managementScopes: pkgoauth.ScopeSet(cfg.Azure.ManagementScopes),
		dataPlaneScopes:  pkgoauth.ScopeSet(cfg.Azure.DataPlaneScopes),
		dial:             o.dial,
		browser:          o.browser,
	}

	a.provider = oauth.NewEntraProvider(oauth.EntraConfig{
		ClientID:      cfg.Azure.ClientID,
		Authority:     cfg.Azure.Authority,
		RedirectURI:   cfg.Azure.RedirectURI,
		RefreshMargin: cfg.Refresh.Buffer,
		HTTPClient:    o.httpClient,
		Clock:         o.clock,
	})
	a.states = oauth.NewStateStore(cfg.Authorization.PendingRequestTTL, o.clock)
	a.cache = oauth.NewTokenCache(a.provider, events.NewNotifier(), oauth.TokenCacheConfig{
		RefreshBuffer: cfg.Refresh.Buffer,
		Clock:         o.clock,
	})
	a.flow = oauth.NewFlowManager(a.provider, a.states, a.cache, a.managementScopes, o.clock)

	a.registry = dataplane.NewRegistry()
	a.scheduler = refresh.NewScheduler(a.cache, a.registry, refresh.Config{
		Scopes:         a.dataPlaneScopes,
		RefreshBuffer:  cfg.Refresh.Buffer,
		RefreshTimeout: cfg.Refresh.Timeout,
		Clock:          o.clock,
	})
	a.reauth = reauth.New(a.registry, cfg.Dataplane.ReauthTimeout)

	a.unsubscribe = append(a.unsubscribe,
		a.cache.Subscribe(events.ForScopes(a.dataPlaneScopes, a.scheduler.OnTokenAcquired)),
		a.cache.Subscribe(events.ForScopes(a.dataPlaneScopes, a.reauth.OnTokenAcquired)),
	)

	a.discovery = discovery.NewResolver(a.cache, discovery.Config{
		Endpoint:       cfg.Azure.ManagementEndpoint,
		Audience:       cfg.Azure.ManagementAudience,
		Scopes:         a.managementScopes,
		Concurrency:    cfg.Discovery.Concurrency,
		RequestTimeout: cfg.Discovery.RequestTimeout,
		Transport:      o.managementTransport,
		MaxRetries:     o.managementRetries,
	})
	a.credentials = credentials.NewResolver(a.cache, a.discovery, a.dataPlaneScopes)

	logging.Info("App", "Initialized (authority=%s, redirect=%s)", cfg.Azure.Authority, cfg.Azure.RedirectURI)
	return a, nil
}

// Login runs an interactive sign-in for sessionID through the loopback
// redirect URI: it serves the callback, presents the authorization URL and
// completes the exchange.
func (a *App) Login(ctx context.Context, sessionID string) (*pkgoauth.TokenResult, error) {
	server, err := oauth.NewCallbackServer(a.cfg.Azure.RedirectURI)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, oauth.CallbackTimeout)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		return nil, err
	}
	defer server.Stop()

	authURL, err := a.flow.BeginAuthorization(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := a.browser(authURL); err != nil {
		logging.Warn("App", "Could not open a browser: %v", err)
		logging.Info("App", "Open this URL to sign in: %s", authURL)
	}

	callback, err := server.WaitForCallback(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for sign-in: %w", err)
	}

	return a.flow.HandleRedirect(ctx, callback.RedirectURL)
}

// BeginAuthorization starts a sign-in whose redirect is delivered by the
// caller through HandleRedirect.
func (a *App) BeginAuthorization(ctx context.Context, sessionID string) (string, error) {
	return a.flow.BeginAuthorization(ctx, sessionID)
}

// HandleRedirect completes a sign-in started with BeginAuthorization.
func (a *App) HandleRedirect(ctx context.Context, redirectURL string) (*pkgoauth.TokenResult, error) {
	return a.flow.HandleRedirect(ctx, redirectURL)
}

// Session returns the current session token, refreshing it silently when it
// is close to expiry. It returns nil when the session is unknown or the
// refresh fails.
func (a *App) Session(ctx context.Context, sessionID string) *pkgoauth.TokenResult {
	return a.cache.GetValid(ctx, sessionID)
}

// Accounts returns the identities currently signed in.
func (a *App) Accounts() []pkgoauth.IdentityReference {
	return a.provider.Accounts()
}

// Subscriptions lists the subscriptions visible to identityKey.
func (a *App) Subscriptions(ctx context.Context, identityKey string) []discovery.Subscription {
	return a.discovery.ListSubscriptions(ctx, identityKey)
}

// Databases lists the Redis databases in subscriptionID.
func (a *App) Databases(ctx context.Context, identityKey, subscriptionID string) []discovery.Resource {
	return a.discovery.ListResourcesInSubscription(ctx, identityKey, subscriptionID)
}

// ResolveCredential resolves how to connect to resource as identityKey.
func (a *App) ResolveCredential(ctx context.Context, identityKey string, resource discovery.Resource) (*credentials.ConnectionCredential, error) {
	return a.credentials.Resolve(ctx, identityKey, resource)
}

// Connect resolves a credential for resource, opens a connection and registers
// it. Connections authenticated with an identity token take part in the
// refresh cycle of that identity.
func (a *App) Connect(ctx context.Context, identityKey string, resource discovery.Resource) (dataplane.Connection, error) {
	cred, err := a.credentials.Resolve(ctx, identityKey, resource)
	if err != nil {
		return nil, err
	}

	opts := dataplane.DialOptions{
		Host:        cred.Host,
		Port:        cred.Port,
		TLS:         cred.TLS,
		Username:    cred.Username,
		Password:    cred.Password,
		DialTimeout: a.cfg.Dataplane.DialTimeout,
	}
	if cred.AuthKind == credentials.AuthKindIdentityToken {
		opts.Password = cred.Token.Token
		opts.IdentityKey = cred.IdentityKey
		opts.TokenExpiry = cred.Token.ExpiresOn
	}

	conn, err := a.dial(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", resource.DisplayName(), err)
	}
	a.registry.Add(conn)

	if cred.AuthKind == credentials.AuthKindIdentityToken {
		a.scheduler.Schedule(cred.IdentityKey, cred.Token.ExpiresOn)
	}

	logging.Info("App", "Connected to %s using %s", resource.DisplayName(), cred.AuthKind)
	return conn, nil
}

// Disconnect closes and unregisters the connection with the given ID.
func (a *App) Disconnect(id string) error {
	conn, ok := a.registry.Remove(id)
	if !ok {
		return fmt.Errorf("connection %s not found", id)
	}
	conn.Close()
	return nil
}

// Logout evicts sessionID. Identities no other session uses lose their
// refresh cycle and their connections.
func (a *App) Logout(sessionID string) []string {
	removed := a.cache.EvictAll(sessionID)
	for _, identityKey := range removed {
		a.scheduler.Cancel(identityKey)
		if n := a.registry.RemoveIdentity(identityKey); n > 0 {
			logging.Info("App", "Closed %d connections of identity %s", n, logging.TruncateKey(identityKey))
		}
	}
	return removed
}

// Shutdown cancels every refresh cycle, stops background work and closes all
// connections.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		for _, unsubscribe := range a.unsubscribe {
			unsubscribe()
		}
		a.scheduler.CancelAll()
		a.states.Stop()
		a.registry.CloseAll()
		logging.Info("App", "Shut down")
	})
}

// Scheduler exposes the refresh scheduler for status reporting.
func (a *App) Scheduler() *refresh.Scheduler {
	return a.scheduler
}

// Registry exposes the connection registry.
func (a *App) Registry() *dataplane.Registry {
	return a.registry
}

// IsAuthorizationError reports whether err came from the sign-in protocol
// rather than from the environment.
func IsAuthorizationError(err error) bool {
	var exchange *oauth.ExchangeFailedError
	var denied *oauth.AuthorizationDeniedError
	return errors.Is(err, oauth.ErrInvalidOrExpiredRequest) || errors.As(err, &exchange) || errors.As(err, &denied)
}
