package formatting

import (
	"strconv"
	"time"

	"github.com/redis/redisinsight-azure-auth/internal/credentials"
	"github.com/redis/redisinsight-azure-auth/internal/discovery"
	"github.com/redis/redisinsight-azure-auth/internal/refresh"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// listing is the format-independent form of an output. Structured formats
// encode value; console and table output use the rows.
type listing struct {
	noun    string
	headers []string
	rows    [][]string
	// detail marks a single object rendered as key/value pairs.
	detail bool
	value  any
}

type accountView struct {
	HomeAccountID  string `json:"homeAccountId" yaml:"homeAccountId"`
	LocalAccountID string `json:"localAccountId" yaml:"localAccountId"`
	TenantID       string `json:"tenantId" yaml:"tenantId"`
	Username       string `json:"username" yaml:"username"`
	DisplayName    string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
}

type subscriptionView struct {
	ID          string `json:"subscriptionId" yaml:"subscriptionId"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	State       string `json:"state" yaml:"state"`
	TenantID    string `json:"tenantId" yaml:"tenantId"`
}

type databaseView struct {
	ID                   string `json:"id" yaml:"id"`
	Name                 string `json:"name" yaml:"name"`
	Kind                 string `json:"kind" yaml:"kind"`
	ResourceGroup        string `json:"resourceGroup" yaml:"resourceGroup"`
	Location             string `json:"location" yaml:"location"`
	Host                 string `json:"host" yaml:"host"`
	Port                 int    `json:"port" yaml:"port"`
	ProvisioningState    string `json:"provisioningState" yaml:"provisioningState"`
	AccessKeyAuthEnabled *bool  `json:"accessKeyAuthEnabled,omitempty" yaml:"accessKeyAuthEnabled,omitempty"`
}

type credentialView struct {
	Host           string     `json:"host" yaml:"host"`
	Port           int        `json:"port" yaml:"port"`
	TLS            bool       `json:"tls" yaml:"tls"`
	AuthKind       string     `json:"authKind" yaml:"authKind"`
	Username       string     `json:"username,omitempty" yaml:"username,omitempty"`
	IdentityKey    string     `json:"identityKey,omitempty" yaml:"identityKey,omitempty"`
	TokenExpiresOn *time.Time `json:"tokenExpiresOn,omitempty" yaml:"tokenExpiresOn,omitempty"`
}

type scheduleView struct {
	IdentityKey string    `json:"identityKey" yaml:"identityKey"`
	State       string    `json:"state" yaml:"state"`
	ExpiresOn   time.Time `json:"expiresOn" yaml:"expiresOn"`
	FireAt      time.Time `json:"fireAt" yaml:"fireAt"`
}

func accountsListing(accounts []pkgoauth.IdentityReference) listing {
	l := listing{noun: "accounts", headers: []string{"USERNAME", "NAME", "TENANT", "ACCOUNT"}}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView(a))
		l.rows = append(l.rows, []string{a.Username, a.DisplayName, a.TenantID, logging.TruncateKey(a.HomeAccountID)})
	}
	l.value = views
	return l
}

func subscriptionsListing(subscriptions []discovery.Subscription) listing {
	l := listing{noun: "subscriptions", headers: []string{"NAME", "SUBSCRIPTION", "STATE"}}
	views := make([]subscriptionView, 0, len(subscriptions))
	for _, s := range subscriptions {
		views = append(views, subscriptionView(s))
		l.rows = append(l.rows, []string{s.DisplayName, s.ID, s.State})
	}
	l.value = views
	return l
}

func databasesListing(databases []discovery.Resource) listing {
	l := listing{noun: "databases", headers: []string{"NAME", "KIND", "RESOURCE GROUP", "ENDPOINT", "STATE", "ACCESS KEYS"}}
	views := make([]databaseView, 0, len(databases))
	for _, r := range databases {
		port := r.EffectiveTLSPort()
		views = append(views, databaseView{
			ID:                   r.ID,
			Name:                 r.DisplayName(),
			Kind:                 string(r.Kind),
			ResourceGroup:        r.ResourceGroup,
			Location:             r.Location,
			Host:                 r.Host,
			Port:                 port,
			ProvisioningState:    r.ProvisioningState,
			AccessKeyAuthEnabled: r.AccessKeyAuthEnabled,
		})
		l.rows = append(l.rows, []string{
			r.DisplayName(),
			string(r.Kind),
			r.ResourceGroup,
			r.Host + ":" + strconv.Itoa(port),
			r.ProvisioningState,
			accessKeys(r.AccessKeyAuthEnabled),
		})
	}
	l.value = views
	return l
}

func accessKeys(enabled *bool) string {
	switch {
	case enabled == nil:
		return "unknown"
	case *enabled:
		return "enabled"
	default:
		return "disabled"
	}
}

func credentialListing(cred *credentials.ConnectionCredential) listing {
	view := credentialView{
		Host:        cred.Host,
		Port:        cred.Port,
		TLS:         cred.TLS,
		AuthKind:    string(cred.AuthKind),
		Username:    cred.Username,
		IdentityKey: cred.IdentityKey,
	}
	l := listing{noun: "credential", detail: true, headers: []string{"KEY", "VALUE"}}
	l.rows = [][]string{
		{"Endpoint", cred.Host + ":" + strconv.Itoa(cred.Port)},
		{"TLS", strconv.FormatBool(cred.TLS)},
		{"Authentication", string(cred.AuthKind)},
	}
	if cred.Username != "" {
		l.rows = append(l.rows, []string{"Username", cred.Username})
	}
	if cred.Token != nil {
		expires := cred.Token.ExpiresOn.UTC()
		view.TokenExpiresOn = &expires
		l.rows = append(l.rows, []string{"Token expires", expires.Format(time.RFC3339)})
	}
	l.value = view
	return l
}

func scheduleListing(entries []refresh.ScheduledTimer) listing {
	l := listing{noun: "scheduled refreshes", headers: []string{"ACCOUNT", "STATE", "TOKEN EXPIRES", "REFRESH AT"}}
	views := make([]scheduleView, 0, len(entries))
	for _, e := range entries {
		views = append(views, scheduleView{
			IdentityKey: e.IdentityKey,
			State:       e.State.String(),
			ExpiresOn:   e.ExpiresOn.UTC(),
			FireAt:      e.FireAt.UTC(),
		})
		l.rows = append(l.rows, []string{
			logging.TruncateKey(e.IdentityKey),
			e.State.String(),
			e.ExpiresOn.UTC().Format(time.RFC3339),
			e.FireAt.UTC().Format(time.RFC3339),
		})
	}
	l.value = views
	return l
}
