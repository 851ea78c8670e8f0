package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// ARMCache is a single-node cache served by ARMServer.
type ARMCache struct {
	ResourceGroup     string
	Name              string
	Location          string
	HostName          string
	Port              int
	SSLPort           int
	ProvisioningState string

	// DisableAccessKeyAuthentication is omitted from the payload when nil.
	DisableAccessKeyAuthentication *bool

	PrimaryKey string
}

// ARMCluster is a clustered cache served by ARMServer.
type ARMCluster struct {
	ResourceGroup     string
	Name              string
	Location          string
	HostName          string
	ProvisioningState string
	Databases         []ARMDatabase
}

// ARMDatabase is a database inside an ARMCluster.
type ARMDatabase struct {
	Name                     string
	Port                     int
	ProvisioningState        string
	AccessKeysAuthentication string
	PrimaryKey               string
}

// ARMServer is an httptest-backed Azure Resource Manager endpoint serving the
// subscription, cache listing and listKeys operations.
type ARMServer struct {
	server *httptest.Server

	mu             sync.Mutex
	subscriptions  []armSubscription
	caches         map[string][]ARMCache
	clusters       map[string][]ARMCluster
	failures       map[string]int
	requests       []string
	authorizations []string
	pageSize       int
}

type armSubscription struct {
	ID          string `json:"id"`
	SubID       string `json:"subscriptionId"`
	DisplayName string `json:"displayName"`
	State       string `json:"state"`
	TenantID    string `json:"tenantId"`
}

// NewARMServer starts an empty management endpoint.
func NewARMServer() *ARMServer {
	s := &ARMServer{
		caches:   make(map[string][]ARMCache),
		clusters: make(map[string][]ARMCluster),
		failures: make(map[string]int),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the endpoint base URL.
func (s *ARMServer) URL() string { return s.server.URL }

// Close shuts the server down.
func (s *ARMServer) Close() { s.server.Close() }

// AddSubscription registers a subscription.
func (s *ARMServer) AddSubscription(id, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions = append(s.subscriptions, armSubscription{
		ID:          "/subscriptions/" + id,
		SubID:       id,
		DisplayName: displayName,
		State:       "Enabled",
		TenantID:    "11111111-1111-1111-1111-111111111111",
	})
}

// AddCache registers a single-node cache in subscriptionID.
func (s *ARMServer) AddCache(subscriptionID string, cache ARMCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caches[strings.ToLower(subscriptionID)] = append(s.caches[strings.ToLower(subscriptionID)], cache)
}

// AddCluster registers a clustered cache in subscriptionID.
func (s *ARMServer) AddCluster(subscriptionID string, cluster ARMCluster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters[strings.ToLower(subscriptionID)] = append(s.clusters[strings.ToLower(subscriptionID)], cluster)
}

// Fail makes requests fail with status when their path ends with fragment or
// contains fragment followed by a slash. Matching ignores case.
func (s *ARMServer) Fail(fragment string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[strings.ToLower(fragment)] = status
}

// SetPageSize splits subscription listings into pages of n entries.
func (s *ARMServer) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// Requests returns "METHOD path" for every request received.
func (s *ARMServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Authorizations returns the Authorization header of every request received.
func (s *ARMServer) Authorizations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.authorizations...)
}

func (s *ARMServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.authorizations = append(s.authorizations, r.Header.Get("Authorization"))

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeARMError(w, http.StatusUnauthorized, "AuthenticationFailed", "missing bearer token")
		return
	}
	if r.URL.Query().Get("api-version") == "" {
		writeARMError(w, http.StatusBadRequest, "MissingApiVersionParameter", "api-version is required")
		return
	}

	path := strings.ToLower(r.URL.Path)
	for fragment, status := range s.failures {
		if strings.HasSuffix(path, fragment) || strings.Contains(path, fragment+"/") {
			writeARMError(w, status, "InternalServerError", "simulated failure")
			return
		}
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "subscriptions":
		s.listSubscriptions(w, r)
	case r.Method == http.MethodGet && len(parts) == 5 && parts[4] == "redis":
		s.listCaches(w, parts[1])
	case r.Method == http.MethodGet && len(parts) == 5 && parts[4] == "redisenterprise":
		s.listClusters(w, parts[1])
	case r.Method == http.MethodGet && len(parts) == 9 && parts[6] == "redisenterprise" && parts[8] == "databases":
		s.listDatabases(w, parts[1], parts[3], parts[7])
	case r.Method == http.MethodPost && len(parts) == 9 && parts[6] == "redis" && parts[8] == "listkeys":
		s.cacheKeys(w, parts[1], parts[3], parts[7])
	case r.Method == http.MethodPost && len(parts) == 11 && parts[6] == "redisenterprise" && parts[10] == "listkeys":
		s.databaseKeys(w, parts[1], parts[3], parts[7], parts[9])
	default:
		writeARMError(w, http.StatusNotFound, "NotFound", "no route for "+r.URL.Path)
	}
}

func (s *ARMServer) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	start, _ := strconv.Atoi(r.URL.Query().Get("$skiptoken"))
	end := len(s.subscriptions)
	if s.pageSize > 0 && start+s.pageSize < end {
		end = start + s.pageSize
	}
	if start > end {
		start = end
	}

	body := map[string]any{"value": s.subscriptions[start:end]}
	if end < len(s.subscriptions) {
		body["nextLink"] = fmt.Sprintf("%s/subscriptions?api-version=%s&$skiptoken=%d",
			s.server.URL, r.URL.Query().Get("api-version"), end)
	}
	writeJSON(w, body)
}

func (s *ARMServer) listCaches(w http.ResponseWriter, subscriptionID string) {
	value := make([]map[string]any, 0)
	for _, c := range s.caches[subscriptionID] {
		properties := map[string]any{
			"hostName":          c.HostName,
			"port":              c.Port,
			"provisioningState": c.ProvisioningState,
		}
		if c.SSLPort != 0 {
			properties["sslPort"] = c.SSLPort
		}
		if c.DisableAccessKeyAuthentication != nil {
			properties["disableAccessKeyAuthentication"] = *c.DisableAccessKeyAuthentication
		}
		value = append(value, map[string]any{
			"id":         cacheID(subscriptionID, c.ResourceGroup, c.Name),
			"name":       c.Name,
			"type":       "Microsoft.Cache/Redis",
			"location":   c.Location,
			"properties": properties,
		})
	}
	writeJSON(w, map[string]any{"value": value})
}

func (s *ARMServer) listClusters(w http.ResponseWriter, subscriptionID string) {
	value := make([]map[string]any, 0)
	for _, c := range s.clusters[subscriptionID] {
		properties := map[string]any{"provisioningState": c.ProvisioningState}
		if c.HostName != "" {
			properties["hostName"] = c.HostName
		}
		value = append(value, map[string]any{
			"id":         clusterID(subscriptionID, c.ResourceGroup, c.Name),
			"name":       c.Name,
			"type":       "Microsoft.Cache/redisEnterprise",
			"location":   c.Location,
			"properties": properties,
		})
	}
	writeJSON(w, map[string]any{"value": value})
}

func (s *ARMServer) findCluster(subscriptionID, resourceGroup, name string) (ARMCluster, bool) {
	for _, c := range s.clusters[subscriptionID] {
		if strings.EqualFold(c.ResourceGroup, resourceGroup) && strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ARMCluster{}, false
}

func (s *ARMServer) listDatabases(w http.ResponseWriter, subscriptionID, resourceGroup, cluster string) {
	c, ok := s.findCluster(subscriptionID, resourceGroup, cluster)
	if !ok {
		writeARMError(w, http.StatusNotFound, "ResourceNotFound", "cluster not found")
		return
	}

	value := make([]map[string]any, 0, len(c.Databases))
	for _, db := range c.Databases {
		properties := map[string]any{
			"port":              db.Port,
			"provisioningState": db.ProvisioningState,
			"clientProtocol":    "Encrypted",
		}
		if db.AccessKeysAuthentication != "" {
			properties["accessKeysAuthentication"] = db.AccessKeysAuthentication
		}
		value = append(value, map[string]any{
			"id":         clusterID(subscriptionID, c.ResourceGroup, c.Name) + "/databases/" + db.Name,
			"name":       db.Name,
			"type":       "Microsoft.Cache/redisEnterprise/databases",
			"properties": properties,
		})
	}
	writeJSON(w, map[string]any{"value": value})
}

func (s *ARMServer) cacheKeys(w http.ResponseWriter, subscriptionID, resourceGroup, name string) {
	for _, c := range s.caches[subscriptionID] {
		if strings.EqualFold(c.ResourceGroup, resourceGroup) && strings.EqualFold(c.Name, name) && c.PrimaryKey != "" {
			writeJSON(w, map[string]string{"primaryKey": c.PrimaryKey, "secondaryKey": c.PrimaryKey + "-secondary"})
			return
		}
	}
	writeARMError(w, http.StatusNotFound, "ResourceNotFound", "cache not found")
}

func (s *ARMServer) databaseKeys(w http.ResponseWriter, subscriptionID, resourceGroup, cluster, database string) {
	if c, ok := s.findCluster(subscriptionID, resourceGroup, cluster); ok {
		for _, db := range c.Databases {
			if strings.EqualFold(db.Name, database) && db.PrimaryKey != "" {
				writeJSON(w, map[string]string{"primaryKey": db.PrimaryKey, "secondaryKey": db.PrimaryKey + "-secondary"})
				return
			}
		}
	}
	writeARMError(w, http.StatusNotFound, "ResourceNotFound", "database not found")
}

func cacheID(subscriptionID, resourceGroup, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Cache/Redis/%s", subscriptionID, resourceGroup, name)
}

func clusterID(subscriptionID, resourceGroup, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Cache/redisEnterprise/%s", subscriptionID, resourceGroup, name)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeARMError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
