package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	Azure         AzureConfig         `yaml:"azure"`
	Refresh       RefreshConfig       `yaml:"refresh"`
	Authorization AuthorizationConfig `yaml:"authorization"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Dataplane     DataplaneConfig     `yaml:"dataplane"`
}

// AzureConfig describes the app registration and the Azure endpoints used.
type AzureConfig struct {
	ClientID    string `yaml:"clientId" env:"REDISAUTH_CLIENT_ID"`
	Authority   string `yaml:"authority" env:"REDISAUTH_AUTHORITY"`
	RedirectURI string `yaml:"redirectUri" env:"REDISAUTH_REDIRECT_URI"`

	ManagementScopes []string `yaml:"managementScopes" env:"REDISAUTH_MANAGEMENT_SCOPES" envSeparator:" "`
	DataPlaneScopes  []string `yaml:"dataPlaneScopes" env:"REDISAUTH_DATA_PLANE_SCOPES" envSeparator:" "`

	ManagementEndpoint string `yaml:"managementEndpoint" env:"REDISAUTH_MANAGEMENT_ENDPOINT"`
	ManagementAudience string `yaml:"managementAudience" env:"REDISAUTH_MANAGEMENT_AUDIENCE"`
}

// RefreshConfig controls proactive data-plane token refresh.
type RefreshConfig struct {
	Buffer  time.Duration `yaml:"buffer" env:"REDISAUTH_REFRESH_BUFFER"`
	Timeout time.Duration `yaml:"timeout" env:"REDISAUTH_REFRESH_TIMEOUT"`
}

// AuthorizationConfig controls interactive sign-in.
type AuthorizationConfig struct {
	PendingRequestTTL time.Duration `yaml:"pendingRequestTTL" env:"REDISAUTH_PENDING_REQUEST_TTL"`
}

// DiscoveryConfig controls management-plane resource discovery.
type DiscoveryConfig struct {
	Concurrency    int           `yaml:"concurrency" env:"REDISAUTH_DISCOVERY_CONCURRENCY"`
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"REDISAUTH_DISCOVERY_TIMEOUT"`
}

// DataplaneConfig controls Redis connections.
type DataplaneConfig struct {
	ReauthTimeout time.Duration `yaml:"reauthTimeout" env:"REDISAUTH_REAUTH_TIMEOUT"`
	DialTimeout   time.Duration `yaml:"dialTimeout" env:"REDISAUTH_DIAL_TIMEOUT"`
}
