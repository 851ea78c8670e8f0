package discovery

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the resource family of a discovered database.
type Kind string

const (
	KindSingleNode Kind = "single-node"
	KindClustered  Kind = "clustered"
)

const (
	// DefaultSingleNodeTLSPort is used when a single-node cache reports no TLS port.
	DefaultSingleNodeTLSPort = 6380

	// DefaultClusteredPort is used when a clustered database reports no port.
	DefaultClusteredPort = 10000

	defaultSingleNodePort = 6379
	defaultDatabaseName   = "default"
)

// subscriptionIDPattern accepts canonical GUIDs only.
var subscriptionIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidSubscriptionID reports whether id is a well-formed subscription ID.
func ValidSubscriptionID(id string) bool {
	return subscriptionIDPattern.MatchString(id)
}

// Subscription is an Azure subscription visible to an identity.
type Subscription struct {
	ID          string `json:"subscriptionId"`
	DisplayName string `json:"displayName"`
	State       string `json:"state"`
	TenantID    string `json:"tenantId"`
}

// Resource is a discovered Redis database. It is rebuilt on every discovery
// call and never cached.
type Resource struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SubscriptionID string `json:"subscriptionId"`
	ResourceGroup  string `json:"resourceGroup"`
	Location       string `json:"location"`
	Kind           Kind   `json:"kind"`

	Host string `json:"host"`
	Port int    `json:"port"`
	// TLSPort is zero when the API did not report one.
	TLSPort int `json:"tlsPort,omitempty"`

	ProvisioningState string `json:"provisioningState"`

	// AccessKeyAuthEnabled is nil when the API did not say.
	AccessKeyAuthEnabled *bool `json:"accessKeyAuthEnabled,omitempty"`

	// ClusterName and DatabaseName are set for clustered resources.
	ClusterName  string `json:"clusterName,omitempty"`
	DatabaseName string `json:"databaseName,omitempty"`
}

// EffectiveTLSPort returns the port to use for TLS connections. Single-node
// caches use their TLS port or 6380; clustered databases use their only port
// or 10000.
func (r Resource) EffectiveTLSPort() int {
	switch r.Kind {
	case KindClustered:
		if r.Port != 0 {
			return r.Port
		}
		return DefaultClusteredPort
	default:
		if r.TLSPort != 0 {
			return r.TLSPort
		}
		return DefaultSingleNodeTLSPort
	}
}

// DisplayName is the name shown to users: the cache name, or cluster/database.
func (r Resource) DisplayName() string {
	if r.Kind == KindClustered {
		return fmt.Sprintf("%s/%s", r.ClusterName, r.DatabaseName)
	}
	return r.Name
}

// normalizeLocation lower-cases location and strips whitespace, turning
// "East US 2" into "eastus2".
func normalizeLocation(location string) string {
	return strings.ToLower(strings.Join(strings.Fields(location), ""))
}

// clusteredHost returns explicit when set, otherwise the host name Azure
// assigns to database on cluster in location.
func clusteredHost(explicit, cluster, database, location string) string {
	if explicit != "" {
		return explicit
	}
	name := cluster
	if database != "" && database != defaultDatabaseName {
		name = cluster + "-" + database
	}
	return fmt.Sprintf("%s.%s.redis.azure.net", strings.ToLower(name), normalizeLocation(location))
}

func singleNodeHost(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return strings.ToLower(name) + ".redis.cache.windows.net"
}
