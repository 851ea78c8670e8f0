package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MaxRefreshBuffer bounds refresh.buffer. It must stay well below an access
// token lifetime of about an hour.
const MaxRefreshBuffer = 30 * time.Minute

// Validate checks the configuration and returns a ConfigurationErrorCollection
// describing every problem found.
func (c Config) Validate() error {
	var errs ConfigurationErrorCollection

	if strings.TrimSpace(c.Azure.ClientID) == "" {
		errs.Add("azure.clientId", "is required")
	}
	validateURL(&errs, "azure.authority", c.Azure.Authority)
	validateURL(&errs, "azure.redirectUri", c.Azure.RedirectURI)
	validateURL(&errs, "azure.managementEndpoint", c.Azure.ManagementEndpoint)

	if len(c.Azure.ManagementScopes) == 0 {
		errs.Add("azure.managementScopes", "must contain at least one scope")
	}
	if len(c.Azure.DataPlaneScopes) == 0 {
		errs.Add("azure.dataPlaneScopes", "must contain at least one scope")
	}

	if c.Refresh.Buffer <= 0 {
		errs.Add("refresh.buffer", "must be positive")
	} else if c.Refresh.Buffer > MaxRefreshBuffer {
		errs.Add("refresh.buffer", fmt.Sprintf("must not exceed %s", MaxRefreshBuffer))
	}
	if c.Refresh.Timeout <= 0 {
		errs.Add("refresh.timeout", "must be positive")
	}
	if c.Authorization.PendingRequestTTL <= 0 {
		errs.Add("authorization.pendingRequestTTL", "must be positive")
	}
	if c.Discovery.Concurrency < 1 {
		errs.Add("discovery.concurrency", "must be at least 1")
	}
	if c.Discovery.RequestTimeout <= 0 {
		errs.Add("discovery.requestTimeout", "must be positive")
	}
	if c.Dataplane.ReauthTimeout <= 0 {
		errs.Add("dataplane.reauthTimeout", "must be positive")
	}
	if c.Dataplane.DialTimeout <= 0 {
		errs.Add("dataplane.dialTimeout", "must be positive")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateURL(errs *ConfigurationErrorCollection, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs.Add(field, "is required")
		return
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs.Add(field, "must be an absolute URL")
	}
}
