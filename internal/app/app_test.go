package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redis/redisinsight-azure-auth/internal/config"
	"github.com/redis/redisinsight-azure-auth/internal/credentials"
	"github.com/redis/redisinsight-azure-auth/internal/dataplane"
	"github.com/redis/redisinsight-azure-auth/internal/discovery"
	"github.com/redis/redisinsight-azure-auth/internal/oauth"
	"github.com/redis/redisinsight-azure-auth/internal/refresh"
	"github.com/redis/redisinsight-azure-auth/internal/testing/mock"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

const testSubscription = "aaaaaaaa-0000-0000-0000-000000000001"

type harness struct {
	idp   *mock.IdentityServer
	arm   *mock.ARMServer
	clock *mock.FakeClock
	app   *App

	mu          sync.Mutex
	dialed      []dataplane.DialOptions
	connections []*mock.FakeConnection
}

func freeRedirectURI(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return fmt.Sprintf("http://127.0.0.1:%d/callback", port)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{clock: mock.NewFakeClock(time.Now())}
	h.idp = mock.NewIdentityServer(mock.IdentityServerConfig{Clock: h.clock})
	t.Cleanup(h.idp.Close)
	h.arm = mock.NewARMServer()
	t.Cleanup(h.arm.Close)

	cfg := config.Default()
	cfg.Azure.ClientID = h.idp.ClientID()
	cfg.Azure.Authority = h.idp.Authority()
	cfg.Azure.RedirectURI = freeRedirectURI(t)
	cfg.Azure.ManagementEndpoint = h.arm.URL()
	cfg.Azure.ManagementAudience = h.arm.URL()

	a, err := New(cfg,
		WithHTTPClient(h.idp.HTTPClient()),
		WithManagementRetries(-1),
		WithClock(h.clock),
		WithDialer(h.dial),
		WithBrowser(h.approve),
	)
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)
	h.app = a
	return h
}

// approve plays the user's browser: it approves the request at the identity
// server and follows the redirect to the callback server.
func (h *harness) approve(authURL string) error {
	redirect, err := h.idp.Authorize(authURL)
	if err != nil {
		return err
	}
	resp, err := http.Get(redirect)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (h *harness) dial(_ context.Context, opts dataplane.DialOptions) (dataplane.Connection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := mock.NewFakeConnection(fmt.Sprintf("conn-%d", len(h.connections)+1), opts.IdentityKey, opts.TokenExpiry)
	h.dialed = append(h.dialed, opts)
	h.connections = append(h.connections, conn)
	return conn, nil
}

func (h *harness) login(t *testing.T) *pkgoauth.TokenResult {
	t.Helper()
	result, err := h.app.Login(context.Background(), pkgoauth.DefaultSessionID)
	require.NoError(t, err)
	return result
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(config.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure.clientId")
}

func TestApp_TokenLifecycle(t *testing.T) {
	h := newHarness(t)
	h.arm.AddCluster(testSubscription, mock.ARMCluster{
		ResourceGroup: "rg",
		Name:          "orders",
		Location:      "West Europe",
		Databases:     []mock.ARMDatabase{{Name: "default", Port: 10000}},
	})
	ctx := context.Background()

	result := h.login(t)
	identityKey := result.Identity.HomeAccountID
	assert.Equal(t, mock.User{
		ObjectID: "00000000-0000-0000-0000-0000000000aa",
		TenantID: "11111111-1111-1111-1111-111111111111",
	}.HomeAccountID(), identityKey)
	assert.True(t, result.ExpiresOn.After(h.clock.Now()))
	require.Len(t, h.app.Accounts(), 1)
	assert.NotNil(t, h.app.Session(ctx, pkgoauth.DefaultSessionID))

	databases := h.app.Databases(ctx, identityKey, testSubscription)
	require.Len(t, databases, 1)
	assert.Equal(t, "orders.westeurope.redis.azure.net", databases[0].Host)

	conn, err := h.app.Connect(ctx, identityKey, databases[0])
	require.NoError(t, err)

	require.Len(t, h.dialed, 1)
	dialed := h.dialed[0]
	assert.Equal(t, "orders.westeurope.redis.azure.net", dialed.Host)
	assert.Equal(t, 10000, dialed.Port)
	assert.True(t, dialed.TLS)
	assert.Equal(t, "00000000-0000-0000-0000-0000000000aa", dialed.Username)
	assert.NotEmpty(t, dialed.Password)
	assert.Equal(t, identityKey, dialed.IdentityKey)

	entry, ok := h.app.Scheduler().Scheduled(identityKey)
	require.True(t, ok)
	assert.Equal(t, refresh.StateScheduled, entry.State)
	assert.Equal(t, dialed.TokenExpiry, entry.ExpiresOn)

	h.clock.Advance(55 * time.Minute)

	fake := h.connections[0]
	reauths := fake.Reauths()
	require.Len(t, reauths, 1, "the scheduled refresh re-authenticates the live connection")
	assert.Equal(t, dialed.Username, reauths[0].Username)
	assert.NotEqual(t, dialed.Password, reauths[0].Token)

	entry, ok = h.app.Scheduler().Scheduled(identityKey)
	require.True(t, ok)
	assert.True(t, entry.ExpiresOn.After(dialed.TokenExpiry))
	assert.Equal(t, entry.ExpiresOn, conn.CachedTokenExpiry())

	removed := h.app.Logout(pkgoauth.DefaultSessionID)
	assert.Equal(t, []string{identityKey}, removed)
	assert.True(t, fake.Closed())
	assert.Zero(t, h.app.Registry().Len())
	assert.Zero(t, h.app.Scheduler().Len())
	assert.Empty(t, h.app.Accounts())
	assert.Nil(t, h.app.Session(ctx, pkgoauth.DefaultSessionID))

	assert.Empty(t, h.app.Logout(pkgoauth.DefaultSessionID))
}

func TestApp_RefreshCycleEndsWithoutConnections(t *testing.T) {
	h := newHarness(t)
	h.arm.AddCache(testSubscription, mock.ARMCache{ResourceGroup: "rg", Name: "cache", HostName: "cache.redis.cache.windows.net"})
	ctx := context.Background()

	identityKey := h.login(t).Identity.HomeAccountID
	databases := h.app.Databases(ctx, identityKey, testSubscription)
	require.Len(t, databases, 1)

	conn, err := h.app.Connect(ctx, identityKey, databases[0])
	require.NoError(t, err)
	assert.Equal(t, 6380, h.dialed[0].Port)

	require.NoError(t, h.app.Disconnect(conn.ID()))
	assert.Error(t, h.app.Disconnect(conn.ID()))

	refreshGrants := h.idp.CountGrant("refresh_token")
	h.clock.Advance(55 * time.Minute)

	assert.Equal(t, refreshGrants, h.idp.CountGrant("refresh_token"), "no refresh without connections")
	assert.Equal(t, refresh.StateIdle, h.app.Scheduler().State(identityKey))
}

func TestApp_ConnectFallsBackToAccessKey(t *testing.T) {
	h := newHarness(t)
	h.arm.AddCache(testSubscription, mock.ARMCache{
		ResourceGroup: "rg",
		Name:          "legacy",
		HostName:      "legacy.redis.cache.windows.net",
		SSLPort:       6380,
		PrimaryKey:    "primary-key",
	})
	ctx := context.Background()

	identityKey := h.login(t).Identity.HomeAccountID
	databases := h.app.Databases(ctx, identityKey, testSubscription)
	require.Len(t, databases, 1)

	h.idp.Simulate(mock.ErrorSimulation{RefreshError: "invalid_grant"})

	cred, err := h.app.ResolveCredential(ctx, identityKey, databases[0])
	require.NoError(t, err)
	assert.Equal(t, credentials.AuthKindAccessKey, cred.AuthKind)

	_, err = h.app.Connect(ctx, identityKey, databases[0])
	require.NoError(t, err)
	require.Len(t, h.dialed, 1)
	assert.Equal(t, "primary-key", h.dialed[0].Password)
	assert.Empty(t, h.dialed[0].IdentityKey)
	assert.Zero(t, h.app.Scheduler().Len())
}

func TestApp_ConnectWithoutAnyCredential(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	identityKey := h.login(t).Identity.HomeAccountID
	h.idp.Simulate(mock.ErrorSimulation{RefreshError: "invalid_grant"})

	_, err := h.app.Connect(ctx, identityKey, discovery.Resource{
		Kind: discovery.KindSingleNode, SubscriptionID: testSubscription, ResourceGroup: "rg", Name: "gone",
	})
	assert.ErrorIs(t, err, credentials.ErrNoCredential)
	assert.Empty(t, h.dialed)
}

func TestApp_SubscriptionsRequireSignIn(t *testing.T) {
	h := newHarness(t)
	h.arm.AddSubscription(testSubscription, "Production")

	assert.Empty(t, h.app.Subscriptions(context.Background(), "unknown.identity"))
	assert.Empty(t, h.arm.Requests())

	identityKey := h.login(t).Identity.HomeAccountID
	subs := h.app.Subscriptions(context.Background(), identityKey)
	require.Len(t, subs, 1)
	assert.Equal(t, "Production", subs[0].DisplayName)
}

func TestApp_LoginDenied(t *testing.T) {
	h := newHarness(t)
	h.app.browser = func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		redirect := u.Query().Get("redirect_uri") + "?error=access_denied&error_description=declined&state=" + u.Query().Get("state")
		resp, err := http.Get(redirect)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}

	_, err := h.app.Login(context.Background(), pkgoauth.DefaultSessionID)
	var denied *oauth.AuthorizationDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "access_denied", denied.Code)
	assert.True(t, IsAuthorizationError(err))
	assert.Empty(t, h.app.Accounts())
}

func TestApp_ManualRedirect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	authURL, err := h.app.BeginAuthorization(ctx, "session-2")
	require.NoError(t, err)
	redirect, err := h.idp.Authorize(authURL)
	require.NoError(t, err)

	result, err := h.app.HandleRedirect(ctx, redirect)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = h.app.HandleRedirect(ctx, redirect)
	assert.ErrorIs(t, err, oauth.ErrInvalidOrExpiredRequest)
	assert.True(t, IsAuthorizationError(err))
	assert.False(t, IsAuthorizationError(errors.New("network down")))
}

func TestApp_ShutdownClosesConnections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.arm.AddCache(testSubscription, mock.ARMCache{ResourceGroup: "rg", Name: "cache"})

	identityKey := h.login(t).Identity.HomeAccountID
	databases := h.app.Databases(ctx, identityKey, testSubscription)
	require.Len(t, databases, 1)
	_, err := h.app.Connect(ctx, identityKey, databases[0])
	require.NoError(t, err)

	h.app.Shutdown()
	h.app.Shutdown()

	assert.True(t, h.connections[0].Closed())
	assert.Zero(t, h.app.Scheduler().Len())
	assert.Zero(t, h.app.Registry().Len())
}
