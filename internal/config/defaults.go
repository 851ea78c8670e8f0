package config

import "time"

const (
	// DefaultAuthority accepts work and school accounts from any tenant.
	DefaultAuthority = "https://login.microsoftonline.com/organizations"

	// DefaultRedirectURI is the loopback redirect registered for the public client.
	DefaultRedirectURI = "http://localhost:3000/callback"

	// DefaultManagementEndpoint is the Azure Resource Manager endpoint of the public cloud.
	DefaultManagementEndpoint = "https://management.azure.com"

	// ManagementScope grants delegated access to Azure Resource Manager.
	ManagementScope = "https://management.azure.com/user_impersonation"

	// DataPlaneScope grants Entra ID authentication to Azure Cache for Redis.
	DataPlaneScope = "https://redis.azure.com/.default"
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		Azure: AzureConfig{
			Authority:          DefaultAuthority,
			RedirectURI:        DefaultRedirectURI,
			ManagementScopes:   []string{ManagementScope, "offline_access", "openid", "profile"},
			DataPlaneScopes:    []string{DataPlaneScope, "offline_access", "openid", "profile"},
			ManagementEndpoint: DefaultManagementEndpoint,
			ManagementAudience: DefaultManagementEndpoint,
		},
		Refresh: RefreshConfig{
			Buffer:  5 * time.Minute,
			Timeout: 30 * time.Second,
		},
		Authorization: AuthorizationConfig{
			PendingRequestTTL: 10 * time.Minute,
		},
		Discovery: DiscoveryConfig{
			Concurrency:    5,
			RequestTimeout: 30 * time.Second,
		},
		Dataplane: DataplaneConfig{
			ReauthTimeout: 30 * time.Second,
			DialTimeout:   30 * time.Second,
		},
	}
}
