package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"golang.org/x/sync/errgroup"

	"github.com/redis/redisinsight-azure-auth/internal/oauth"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

const (
	subscriptionsAPIVersion   = "2022-12-01"
	redisAPIVersion           = "2024-03-01"
	redisEnterpriseAPIVersion = "2024-10-01"

	moduleName    = "github.com/redis/redisinsight-azure-auth/internal/discovery"
	moduleVersion = "v1.0.0"

	// DefaultConcurrency is the width of the fan-out worker pool.
	DefaultConcurrency = 5

	// DefaultRequestTimeout bounds each discovery operation.
	DefaultRequestTimeout = 30 * time.Second
)

var (
	// ErrAccessKeysDisabled is returned by GetAccessKey for resources that
	// have access-key authentication turned off.
	ErrAccessKeysDisabled = errors.New("access key authentication is disabled for this resource")

	// ErrNoAccessKey is returned when the management plane returns no key.
	ErrNoAccessKey = errors.New("no access key returned")
)

// Config configures a Resolver.
type Config struct {
	// Endpoint is the Azure Resource Manager base URL.
	Endpoint string
	// Audience is the ARM token audience.
	Audience string

	// Scopes is the management-plane scope set requested from the token cache.
	Scopes pkgoauth.ScopeSet

	Concurrency    int
	RequestTimeout time.Duration

	// Transport overrides the HTTP transport of the ARM pipeline.
	Transport policy.Transporter

	// MaxRetries is passed to the pipeline retry policy; negative disables retries.
	MaxRetries int32
}

// Resolver discovers subscriptions and Redis resources for an identity.
type Resolver struct {
	tokens      oauth.TokenSource
	cfg         Config
	concurrency int
	timeout     time.Duration
}

// NewResolver creates a resolver that obtains management-plane tokens from tokens.
func NewResolver(tokens oauth.TokenSource, cfg Config) *Resolver {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	if cfg.Audience == "" {
		cfg.Audience = cfg.Endpoint
	}

	return &Resolver{tokens: tokens, cfg: cfg, concurrency: concurrency, timeout: timeout}
}

// client builds an ARM client whose bearer policy authenticates as identityKey.
func (r *Resolver) client(identityKey string) (*arm.Client, error) {
	cred := oauth.NewCredential(r.tokens, identityKey, r.cfg.Scopes)

	options := &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Cloud: cloud.Configuration{
				Services: map[cloud.ServiceName]cloud.ServiceConfiguration{
					cloud.ResourceManager: {Endpoint: r.cfg.Endpoint, Audience: r.cfg.Audience},
				},
			},
			Retry:                           policy.RetryOptions{MaxRetries: r.cfg.MaxRetries},
			Telemetry:                       policy.TelemetryOptions{ApplicationID: "redisinsight-azure-auth"},
			InsecureAllowCredentialWithHTTP: strings.HasPrefix(r.cfg.Endpoint, "http://"),
		},
		DisableRPRegistration: true,
	}
	if r.cfg.Transport != nil {
		options.Transport = r.cfg.Transport
	}

	return arm.NewClient(moduleName, moduleVersion, cred, options)
}

// session returns an ARM client after checking that identityKey has a
// management-plane token, so that calls without one never reach the network.
func (r *Resolver) session(ctx context.Context, identityKey string) (*arm.Client, bool) {
	if r.tokens.AcquireFor(ctx, identityKey, r.cfg.Scopes) == nil {
		logging.Warn("Discovery", "No management token for identity %s", logging.TruncateKey(identityKey))
		return nil, false
	}

	client, err := r.client(identityKey)
	if err != nil {
		logging.Error("Discovery", err, "Failed to create management client")
		return nil, false
	}
	return client, true
}

// ListSubscriptions returns the subscriptions visible to identityKey, or an
// empty slice when none can be listed.
func (r *Resolver) ListSubscriptions(ctx context.Context, identityKey string) []Subscription {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client, ok := r.session(ctx, identityKey)
	if !ok {
		return []Subscription{}
	}

	subs, err := listAll[Subscription](ctx, client, "/subscriptions", subscriptionsAPIVersion)
	if err != nil {
		logging.Warn("Discovery", "Listing subscriptions failed: %v", err)
		return []Subscription{}
	}

	logging.Debug("Discovery", "Found %d subscriptions for identity %s", len(subs), logging.TruncateKey(identityKey))
	return subs
}

// ListResourcesInSubscription returns the single-node and clustered Redis
// databases in subscriptionID. Malformed subscription IDs are rejected without
// a network call. Ordering is not guaranteed.
func (r *Resolver) ListResourcesInSubscription(ctx context.Context, identityKey, subscriptionID string) []Resource {
	if !ValidSubscriptionID(subscriptionID) {
		logging.Warn("Discovery", "Rejecting malformed subscription ID %q", subscriptionID)
		return []Resource{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client, ok := r.session(ctx, identityKey)
	if !ok {
		return []Resource{}
	}

	families := []family{
		{name: "single-node caches", list: func(ctx context.Context) ([]Resource, error) {
			return r.listSingleNode(ctx, client, subscriptionID)
		}},
		{name: "clustered caches", list: func(ctx context.Context) ([]Resource, error) {
			return r.listClustered(ctx, client, subscriptionID)
		}},
	}
	resources := fanOut(ctx, r.concurrency, families,
		func(f family) string { return "Listing " + f.name + " in " + subscriptionID },
		func(ctx context.Context, f family) ([]Resource, error) { return f.list(ctx) })

	logging.Debug("Discovery", "Found %d databases in subscription %s", len(resources), subscriptionID)
	return resources
}

type family struct {
	name string
	list func(ctx context.Context) ([]Resource, error)
}

func (r *Resolver) listSingleNode(ctx context.Context, client *arm.Client, subscriptionID string) ([]Resource, error) {
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/providers/Microsoft.Cache/redis"
	caches, err := listAll[redisCache](ctx, client, path, redisAPIVersion)
	if err != nil {
		return nil, err
	}

	resources := make([]Resource, 0, len(caches))
	for _, c := range caches {
		resources = append(resources, c.toResource())
	}
	return resources, nil
}

func (r *Resolver) listClustered(ctx context.Context, client *arm.Client, subscriptionID string) ([]Resource, error) {
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/providers/Microsoft.Cache/redisEnterprise"
	clusters, err := listAll[redisEnterpriseCluster](ctx, client, path, redisEnterpriseAPIVersion)
	if err != nil {
		return nil, err
	}

	return fanOut(ctx, r.concurrency, clusters,
		func(c redisEnterpriseCluster) string { return "Listing databases of cluster " + c.Name },
		func(ctx context.Context, c redisEnterpriseCluster) ([]Resource, error) {
			databases, err := listAll[redisEnterpriseDatabase](ctx, client, c.ID+"/databases", redisEnterpriseAPIVersion)
			if err != nil {
				return nil, err
			}
			resources := make([]Resource, 0, len(databases))
			for _, db := range databases {
				resources = append(resources, c.databaseResource(db))
			}
			return resources, nil
		}), nil
}

// GetAccessKey returns the primary access key of resource through the
// family-specific listKeys operation.
func (r *Resolver) GetAccessKey(ctx context.Context, identityKey string, resource Resource) (string, error) {
	if resource.AccessKeyAuthEnabled != nil && !*resource.AccessKeyAuthEnabled {
		return "", ErrAccessKeysDisabled
	}

	var path, apiVersion string
	switch resource.Kind {
	case KindSingleNode:
		path = fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Cache/Redis/%s/listKeys",
			url.PathEscape(resource.SubscriptionID), url.PathEscape(resource.ResourceGroup), url.PathEscape(resource.Name))
		apiVersion = redisAPIVersion
	case KindClustered:
		path = fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Cache/redisEnterprise/%s/databases/%s/listKeys",
			url.PathEscape(resource.SubscriptionID), url.PathEscape(resource.ResourceGroup),
			url.PathEscape(resource.ClusterName), url.PathEscape(resource.DatabaseName))
		apiVersion = redisEnterpriseAPIVersion
	default:
		return "", fmt.Errorf("unknown resource kind %q", resource.Kind)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client, err := r.client(identityKey)
	if err != nil {
		return "", err
	}

	var keys accessKeys
	if err := do(ctx, client, http.MethodPost, path, apiVersion, &keys); err != nil {
		return "", err
	}
	if keys.PrimaryKey == "" {
		return "", ErrNoAccessKey
	}
	return keys.PrimaryKey, nil
}

// fanOut runs work for every unit with at most limit units in flight. A unit
// that fails is logged and contributes nothing; the others are unaffected.
func fanOut[U, R any](ctx context.Context, limit int, units []U, describe func(U) string, work func(context.Context, U) ([]R, error)) []R {
	results := make([][]R, len(units))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, unit := range units {
		g.Go(func() error {
			out, err := work(ctx, unit)
			if err != nil {
				logging.Warn("Discovery", "%s failed: %v", describe(unit), err)
				return nil
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return slices.Concat(results...)
}
