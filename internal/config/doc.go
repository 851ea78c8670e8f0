// Package config provides configuration management for the Azure Redis
// authentication service.
//
// Configuration is loaded from a single directory. The default configuration
// directory is ~/.config/redisinsight-azure, but users can specify a custom
// directory using the --config-path flag.
//
// # Loading Order
//
//  1. Built-in defaults (Default)
//  2. <dir>/config.yaml, if present
//  3. REDISAUTH_* environment variables
//
// A missing config.yaml is not an error; the defaults are used.
//
// # Configuration Structure
//
//	azure:
//	  clientId: "00000000-0000-0000-0000-000000000000"  # public client registration (required)
//	  authority: "https://login.microsoftonline.com/organizations"
//	  redirectUri: "http://localhost:3000/callback"
//	  managementScopes: ["https://management.azure.com/user_impersonation", "offline_access", "openid", "profile"]
//	  dataPlaneScopes: ["https://redis.azure.com/.default", "offline_access", "openid", "profile"]
//	  managementEndpoint: "https://management.azure.com"
//	  managementAudience: "https://management.azure.com"
//	refresh:
//	  buffer: 5m        # refresh this long before a data-plane token expires
//	  timeout: 30s      # per-refresh deadline
//	authorization:
//	  pendingRequestTTL: 10m
//	discovery:
//	  concurrency: 5    # concurrent per-cluster database listings
//	  requestTimeout: 30s
//	dataplane:
//	  reauthTimeout: 30s
//	  dialTimeout: 30s
//
// # Usage Examples
//
//	cfg, err := config.LoadConfig(config.GetDefaultConfigPathOrPanic())
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
