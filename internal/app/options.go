package app

import (
	"context"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/redis/redisinsight-azure-auth/internal/clock"
	"github.com/redis/redisinsight-azure-auth/internal/dataplane"
	"github.com/redis/redisinsight-azure-auth/internal/oauth"
)

// DialFunc opens a data-plane connection.
type DialFunc func(ctx context.Context, opts dataplane.DialOptions) (dataplane.Connection, error)

// BrowserFunc presents the authorization URL to the user.
type BrowserFunc func(authURL string) error

type options struct {
	httpClient          *http.Client
	managementTransport policy.Transporter
	managementRetries   int32
	clock               clock.Clock
	dial                DialFunc
	browser             BrowserFunc
}

// Option customizes New.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for the identity platform.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithManagementTransport sets the transport of the management-plane pipeline.
func WithManagementTransport(t policy.Transporter) Option {
	return func(o *options) { o.managementTransport = t }
}

// WithManagementRetries sets the pipeline retry count; negative disables retries.
func WithManagementRetries(n int32) Option {
	return func(o *options) { o.managementRetries = n }
}

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDialer replaces the valkey dialer.
func WithDialer(d DialFunc) Option {
	return func(o *options) { o.dial = d }
}

// WithBrowser replaces the system browser launcher.
func WithBrowser(b BrowserFunc) Option {
	return func(o *options) { o.browser = b }
}

func defaultOptions() options {
	return options{
		dial: func(ctx context.Context, opts dataplane.DialOptions) (dataplane.Connection, error) {
			conn, err := dataplane.Dial(ctx, opts)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		browser: oauth.OpenBrowser,
	}
}
