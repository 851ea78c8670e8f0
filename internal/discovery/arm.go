package discovery

import (
	"context"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

type listPage[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"nextLink"`
}

type redisCache struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Properties struct {
		HostName                       string `json:"hostName"`
		Port                           int    `json:"port"`
		SSLPort                        int    `json:"sslPort"`
		ProvisioningState              string `json:"provisioningState"`
		DisableAccessKeyAuthentication *bool  `json:"disableAccessKeyAuthentication"`
	} `json:"properties"`
}

func (c redisCache) toResource() Resource {
	resource := Resource{
		ID:                c.ID,
		Name:              c.Name,
		Location:          c.Location,
		Kind:              KindSingleNode,
		Host:              singleNodeHost(c.Properties.HostName, c.Name),
		Port:              c.Properties.Port,
		TLSPort:           c.Properties.SSLPort,
		ProvisioningState: c.Properties.ProvisioningState,
	}
	if resource.Port == 0 {
		resource.Port = defaultSingleNodePort
	}
	if disabled := c.Properties.DisableAccessKeyAuthentication; disabled != nil {
		enabled := !*disabled
		resource.AccessKeyAuthEnabled = &enabled
	}
	resource.SubscriptionID, resource.ResourceGroup = scope(c.ID)
	return resource
}

type redisEnterpriseCluster struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Properties struct {
		HostName          string `json:"hostName"`
		ProvisioningState string `json:"provisioningState"`
	} `json:"properties"`
}

type redisEnterpriseDatabase struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Properties struct {
		Port                     int    `json:"port"`
		ProvisioningState        string `json:"provisioningState"`
		AccessKeysAuthentication string `json:"accessKeysAuthentication"`
	} `json:"properties"`
}

// databaseResource builds the resource for db. Clustered databases expose a
// single port that serves TLS.
func (c redisEnterpriseCluster) databaseResource(db redisEnterpriseDatabase) Resource {
	port := db.Properties.Port
	if port == 0 {
		port = DefaultClusteredPort
	}

	resource := Resource{
		ID:                db.ID,
		Name:              c.Name + "/" + db.Name,
		Location:          c.Location,
		Kind:              KindClustered,
		Host:              clusteredHost(c.Properties.HostName, c.Name, db.Name, c.Location),
		Port:              port,
		TLSPort:           port,
		ProvisioningState: db.Properties.ProvisioningState,
		ClusterName:       c.Name,
		DatabaseName:      db.Name,
	}
	switch strings.ToLower(db.Properties.AccessKeysAuthentication) {
	case "enabled":
		enabled := true
		resource.AccessKeyAuthEnabled = &enabled
	case "disabled":
		enabled := false
		resource.AccessKeyAuthEnabled = &enabled
	}
	resource.SubscriptionID, resource.ResourceGroup = scope(c.ID)
	return resource
}

type accessKeys struct {
	PrimaryKey   string `json:"primaryKey"`
	SecondaryKey string `json:"secondaryKey"`
}

// scope extracts the subscription and resource group from a resource ID.
func scope(resourceID string) (subscriptionID, resourceGroup string) {
	id, err := arm.ParseResourceID(resourceID)
	if err != nil {
		return "", ""
	}
	return id.SubscriptionID, id.ResourceGroupName
}

// listAll follows nextLink through every page of an ARM list operation.
func listAll[T any](ctx context.Context, client *arm.Client, path, apiVersion string) ([]T, error) {
	pager := runtime.NewPager(runtime.PagingHandler[listPage[T]]{
		More: func(page listPage[T]) bool {
			return page.NextLink != ""
		},
		Fetcher: func(ctx context.Context, current *listPage[T]) (listPage[T], error) {
			var page listPage[T]
			var err error
			if current == nil {
				err = do(ctx, client, http.MethodGet, path, apiVersion, &page)
			} else {
				err = doURL(ctx, client, http.MethodGet, current.NextLink, &page)
			}
			return page, err
		},
		Tracer: client.Tracer(),
	})

	var items []T
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Value...)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func do(ctx context.Context, client *arm.Client, method, path, apiVersion string, out any) error {
	req, err := runtime.NewRequest(ctx, method, runtime.JoinPaths(client.Endpoint(), path))
	if err != nil {
		return err
	}
	query := req.Raw().URL.Query()
	query.Set("api-version", apiVersion)
	req.Raw().URL.RawQuery = query.Encode()
	return send(client, req, out)
}

func doURL(ctx context.Context, client *arm.Client, method, rawURL string, out any) error {
	req, err := runtime.NewRequest(ctx, method, rawURL)
	if err != nil {
		return err
	}
	return send(client, req, out)
}

func send(client *arm.Client, req *policy.Request, out any) error {
	req.Raw().Header.Set("Accept", "application/json")

	resp, err := client.Pipeline().Do(req)
	if err != nil {
		return err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return runtime.NewResponseError(resp)
	}
	return runtime.UnmarshalAsJSON(resp, out)
}
