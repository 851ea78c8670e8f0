package formatting

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/redis/redisinsight-azure-auth/internal/credentials"
	"github.com/redis/redisinsight-azure-auth/internal/discovery"
	"github.com/redis/redisinsight-azure-auth/internal/refresh"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

var (
	disabled  = false
	databases = []discovery.Resource{
		{
			ID:                "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Cache/redis/orders",
			Name:              "orders",
			Kind:              discovery.KindSingleNode,
			ResourceGroup:     "rg",
			Location:          "westeurope",
			Host:              "orders.redis.cache.windows.net",
			Port:              6379,
			ProvisioningState: "Succeeded",
		},
		{
			ID:                   "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Cache/redisEnterprise/cart/databases/default",
			Name:                 "default",
			Kind:                 discovery.KindClustered,
			ResourceGroup:        "rg",
			Location:             "westeurope",
			Host:                 "cart.westeurope.redis.azure.net",
			Port:                 10000,
			ProvisioningState:    "Succeeded",
			AccessKeyAuthEnabled: &disabled,
			ClusterName:          "cart",
			DatabaseName:         "default",
		},
	}
	identityCredential = &credentials.ConnectionCredential{
		Host:        "orders.redis.cache.windows.net",
		Port:        6380,
		TLS:         true,
		AuthKind:    credentials.AuthKindIdentityToken,
		Username:    "00000000-0000-0000-0000-0000000000aa",
		IdentityKey: "00000000-0000-0000-0000-0000000000aa.tenant",
		Token: &pkgoauth.TokenResult{
			Token:     "secret-access-token",
			ExpiresOn: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}
)

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"console", "json", "YAML", "table"} {
		_, err := ParseFormat(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestNew_FallsBackToConsole(t *testing.T) {
	f := New(Options{Format: "unknown"})
	var buf bytes.Buffer
	require.NoError(t, f.FormatSubscriptions(&buf, nil))
	assert.Equal(t, "No subscriptions found.\n", buf.String())
}

func TestConsole_Databases(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatConsole}).FormatDatabases(&buf, databases))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "RESOURCE GROUP")
	assert.Contains(t, string(lines[1]), "orders.redis.cache.windows.net:6380")
	assert.Contains(t, string(lines[1]), "unknown")
	assert.Contains(t, string(lines[2]), "cart/default")
	assert.Contains(t, string(lines[2]), "cart.westeurope.redis.azure.net:10000")
	assert.Contains(t, string(lines[2]), "disabled")
}

func TestConsole_QuietOmitsHeaders(t *testing.T) {
	var buf bytes.Buffer
	f := New(Options{Format: FormatConsole, Quiet: true})
	require.NoError(t, f.FormatSubscriptions(&buf, []discovery.Subscription{{ID: "sub-1", DisplayName: "Prod", State: "Enabled"}}))
	assert.Equal(t, "Prod  sub-1  Enabled\n", buf.String())

	buf.Reset()
	require.NoError(t, f.FormatSubscriptions(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestJSON_CredentialHasNoSecrets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatJSON}).FormatCredential(&buf, identityCredential))

	assert.NotContains(t, buf.String(), "secret-access-token")

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "identity-token", got["authKind"])
	assert.Equal(t, float64(6380), got["port"])
	assert.Equal(t, "2026-03-01T10:00:00Z", got["tokenExpiresOn"])
}

func TestYAML_AccessKeyCredentialHasNoSecrets(t *testing.T) {
	var buf bytes.Buffer
	cred := &credentials.ConnectionCredential{
		Host: "legacy.redis.cache.windows.net", Port: 6380, TLS: true,
		AuthKind: credentials.AuthKindAccessKey, Password: "primary-key",
	}
	require.NoError(t, New(Options{Format: FormatYAML}).FormatCredential(&buf, cred))

	assert.NotContains(t, buf.String(), "primary-key")
	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "access-key", got["authKind"])
	assert.NotContains(t, got, "tokenExpiresOn")
}

func TestJSON_EmptyListIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatJSON}).FormatDatabases(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestTable_Accounts(t *testing.T) {
	var buf bytes.Buffer
	accounts := []pkgoauth.IdentityReference{{
		HomeAccountID: "00000000-0000-0000-0000-0000000000aa.tenant",
		TenantID:      "tenant",
		Username:      "jane@contoso.com",
		DisplayName:   "Jane Doe",
	}}
	require.NoError(t, New(Options{Format: FormatTable}).FormatAccounts(&buf, accounts))

	out := buf.String()
	assert.Contains(t, out, "jane@contoso.com")
	assert.Contains(t, out, "00000000...")
	assert.Contains(t, out, "Total: 1 accounts")
	assert.NotContains(t, out, "\x1b[", "colors are off unless requested")
}

func TestTable_ScheduleWithColor(t *testing.T) {
	var buf bytes.Buffer
	entries := []refresh.ScheduledTimer{{
		IdentityKey: "00000000-0000-0000-0000-0000000000aa.tenant",
		ExpiresOn:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FireAt:      time.Date(2026, 3, 1, 9, 55, 0, 0, time.UTC),
		State:       refresh.StateScheduled,
	}}
	require.NoError(t, New(Options{Format: FormatTable, Color: true}).FormatSchedule(&buf, entries))

	out := buf.String()
	assert.Contains(t, out, "2026-03-01T09:55:00Z")
	assert.Contains(t, out, refresh.StateScheduled.String())
	assert.Contains(t, out, "\x1b[")
}

func TestTable_EmptyListing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatTable}).FormatSchedule(&buf, nil))
	assert.Equal(t, "No scheduled refreshes found\n", buf.String())
}

func TestSetOptions(t *testing.T) {
	f := New(Options{Format: FormatConsole})
	f.SetOptions(Options{Format: FormatConsole, Quiet: true})
	assert.True(t, f.GetOptions().Quiet)
}
