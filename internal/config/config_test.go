package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
azure:
  clientId: my-client
  authority: https://login.microsoftonline.com/contoso.onmicrosoft.com
refresh:
  buffer: 2m
discovery:
  concurrency: 8
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "my-client", cfg.Azure.ClientID)
	assert.Equal(t, "https://login.microsoftonline.com/contoso.onmicrosoft.com", cfg.Azure.Authority)
	assert.Equal(t, 2*time.Minute, cfg.Refresh.Buffer)
	assert.Equal(t, 8, cfg.Discovery.Concurrency)

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultRedirectURI, cfg.Azure.RedirectURI)
	assert.Equal(t, 10*time.Minute, cfg.Authorization.PendingRequestTTL)
	assert.Equal(t, Default().Azure.DataPlaneScopes, cfg.Azure.DataPlaneScopes)
}

func TestLoadConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "azure: [unterminated")

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_EnvironmentWins(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "azure:\n  clientId: from-file\n")

	t.Setenv("REDISAUTH_CLIENT_ID", "from-env")
	t.Setenv("REDISAUTH_REFRESH_BUFFER", "90s")
	t.Setenv("REDISAUTH_DISCOVERY_CONCURRENCY", "3")
	t.Setenv("REDISAUTH_DATA_PLANE_SCOPES", "https://redis.azure.com/.default offline_access")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Azure.ClientID)
	assert.Equal(t, 90*time.Second, cfg.Refresh.Buffer)
	assert.Equal(t, 3, cfg.Discovery.Concurrency)
	assert.Equal(t, []string{"https://redis.azure.com/.default", "offline_access"}, cfg.Azure.DataPlaneScopes)
}

func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("REDISAUTH_REFRESH_BUFFER", "soon")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestGetDefaultConfigPathOrPanic(t *testing.T) {
	original := osUserHomeDir
	defer func() { osUserHomeDir = original }()

	osUserHomeDir = func() (string, error) { return "/home/test", nil }
	assert.Equal(t, filepath.Join("/home/test", userConfigDir), GetDefaultConfigPathOrPanic())

	osUserHomeDir = func() (string, error) { return "", errors.New("no home") }
	assert.Panics(t, func() { GetDefaultConfigPathOrPanic() })
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Azure.ClientID = "client"

	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:       "missing client id",
			mutate:     func(c *Config) { c.Azure.ClientID = " " },
			wantFields: []string{"azure.clientId"},
		},
		{
			name:       "relative authority",
			mutate:     func(c *Config) { c.Azure.Authority = "login.microsoftonline.com" },
			wantFields: []string{"azure.authority"},
		},
		{
			name: "empty scopes",
			mutate: func(c *Config) {
				c.Azure.ManagementScopes = nil
				c.Azure.DataPlaneScopes = nil
			},
			wantFields: []string{"azure.managementScopes", "azure.dataPlaneScopes"},
		},
		{
			name: "non-positive durations and concurrency",
			mutate: func(c *Config) {
				c.Refresh.Buffer = 0
				c.Discovery.Concurrency = 0
			},
			wantFields: []string{"refresh.buffer", "discovery.concurrency"},
		},
		{
			name:       "refresh buffer longer than a token lifetime",
			mutate:     func(c *Config) { c.Refresh.Buffer = 2 * time.Hour },
			wantFields: []string{"refresh.buffer"},
		},
		{
			name:   "refresh buffer at the limit",
			mutate: func(c *Config) { c.Refresh.Buffer = MaxRefreshBuffer },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			cfg.Azure.ManagementScopes = append([]string(nil), valid.Azure.ManagementScopes...)
			cfg.Azure.DataPlaneScopes = append([]string(nil), valid.Azure.DataPlaneScopes...)
			tc.mutate(&cfg)

			err := cfg.Validate()
			if len(tc.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var collection ConfigurationErrorCollection
			require.ErrorAs(t, err, &collection)
			assert.Equal(t, tc.wantFields, collection.Fields())
		})
	}
}

func TestConfigurationErrorCollection_Error(t *testing.T) {
	var errs ConfigurationErrorCollection
	assert.Equal(t, "no configuration errors", errs.Error())

	errs.Add("azure.clientId", "is required")
	assert.Equal(t, "invalid configuration: azure.clientId: is required", errs.Error())

	errs.Add("refresh.buffer", "must be positive")
	assert.Contains(t, errs.Error(), "2 configuration errors")
	assert.Contains(t, errs.Error(), "refresh.buffer: must be positive")
}
