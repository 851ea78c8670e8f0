package dataplane

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/redis/redisinsight-azure-auth/pkg/logging"
)

// DefaultDialTimeout bounds establishing a data-plane connection.
const DefaultDialTimeout = 30 * time.Second

// DialOptions describes how to open a ValkeyConnection.
type DialOptions struct {
	// ID defaults to a random UUID.
	ID string

	Host string
	Port int
	TLS  bool

	Username string
	Password string

	// IdentityKey binds the connection to an identity. Leave empty for
	// access-key connections so they never take part in token rotation.
	IdentityKey string
	TokenExpiry time.Time

	DialTimeout time.Duration

	// TLSConfig overrides the default TLS settings when TLS is set.
	TLSConfig *tls.Config
}

// ValkeyConnection is a Connection backed by a valkey-go client.
//
// A client may hold several sockets (the pipelined one plus pooled sockets for
// blocking and dedicated commands). Re-authentication therefore replaces the
// whole client: every socket of the replacement authenticates with the new
// token during its handshake, and the previous client is closed.
type ValkeyConnection struct {
	id          string
	identityKey string
	addr        string
	option      valkey.ClientOption

	// reauthMu serializes client replacement.
	reauthMu sync.Mutex

	mu       sync.RWMutex
	client   valkey.Client
	closed   bool
	username string
	password string
	expiry   time.Time

	closeOnce sync.Once
}

var _ Connection = (*ValkeyConnection)(nil)

// newValkeyClient is replaced in tests.
var newValkeyClient = valkey.NewClient

// Dial opens a connection and verifies it with PING.
func Dial(ctx context.Context, opts DialOptions) (*ValkeyConnection, error) {
	c := newValkeyConnection(opts)
	c.option = c.clientOption(opts)

	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	c.client = client

	logging.Info("Dataplane", "Connected %s to %s (identity=%s)", c.id, c.addr, logging.TruncateKey(c.identityKey))
	return c, nil
}

// connect opens a client with the current credentials and verifies it with
// PING.
func (c *ValkeyConnection) connect(ctx context.Context) (valkey.Client, error) {
	client, err := newValkeyClient(c.option)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping %s failed: %w", c.addr, err)
	}
	return client, nil
}

func newValkeyConnection(opts DialOptions) *ValkeyConnection {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &ValkeyConnection{
		id:          id,
		identityKey: opts.IdentityKey,
		addr:        net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		username:    opts.Username,
		password:    opts.Password,
		expiry:      opts.TokenExpiry,
	}
}

func (c *ValkeyConnection) clientOption(opts DialOptions) valkey.ClientOption {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	option := valkey.ClientOption{
		InitAddress:       []string{c.addr},
		ClientName:        "redisinsight-azure-auth",
		DisableCache:      true,
		ForceSingleClient: true,
		// One pipelined socket per connection.
		PipelineMultiplex: -1,
		Dialer:            net.Dialer{Timeout: timeout},
		AuthCredentialsFn: c.credentials,
	}
	if opts.TLS {
		tlsConfig := opts.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		} else {
			tlsConfig = tlsConfig.Clone()
		}
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = opts.Host
		}
		option.TLSConfig = tlsConfig
	}
	return option
}

// credentials supplies the latest username and token to every new
// underlying connection the client opens.
func (c *ValkeyConnection) credentials(valkey.AuthCredentialsContext) (valkey.AuthCredentials, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return valkey.AuthCredentials{Username: c.username, Password: c.password}, nil
}

func (c *ValkeyConnection) ID() string {
	return c.id
}

func (c *ValkeyConnection) IdentityKey() string {
	return c.identityKey
}

func (c *ValkeyConnection) CachedTokenExpiry() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiry
}

func (c *ValkeyConnection) SetCachedTokenExpiry(expiresOn time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiry = expiresOn
}

// Client returns the client currently serving the connection. It changes
// after a successful Reauthenticate.
func (c *ValkeyConnection) Client() valkey.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Reauthenticate switches the connection to a new token. A replacement client
// authenticates every socket it opens with username and token (HELLO AUTH)
// and is verified with PING before it takes over; the previous client and all
// its sockets are then closed. On failure the previous client stays in use.
func (c *ValkeyConnection) Reauthenticate(ctx context.Context, username, token string) error {
	c.reauthMu.Lock()
	defer c.reauthMu.Unlock()

	c.mu.Lock()
	previousUsername, previousPassword := c.username, c.password
	c.username = username
	c.password = token
	open := c.client != nil && !c.closed
	c.mu.Unlock()

	if !open {
		return fmt.Errorf("connection %s is not open", c.id)
	}

	replacement, err := c.connect(ctx)
	if err != nil {
		c.mu.Lock()
		c.username, c.password = previousUsername, previousPassword
		c.mu.Unlock()
		return fmt.Errorf("re-authenticating %s: %w", c.addr, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		replacement.Close()
		return fmt.Errorf("connection %s is not open", c.id)
	}
	previous := c.client
	c.client = replacement
	c.mu.Unlock()

	previous.Close()
	logging.Debug("Dataplane", "Re-authenticated %s to %s", c.id, c.addr)
	return nil
}

// Addr returns host:port of the server.
func (c *ValkeyConnection) Addr() string {
	return c.addr
}

func (c *ValkeyConnection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		client := c.client
		c.mu.Unlock()

		if client != nil {
			client.Close()
		}
		logging.Debug("Dataplane", "Closed connection %s", c.id)
	})
}
