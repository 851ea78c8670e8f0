package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/redis/redisinsight-azure-auth/internal/app"
	"github.com/redis/redisinsight-azure-auth/internal/config"
	"github.com/redis/redisinsight-azure-auth/internal/discovery"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// AuthRequiredError is returned when a command needs a signed-in identity and
// the sign-in was not completed.
type AuthRequiredError struct {
	Reason string
	Err    error
}

func (e *AuthRequiredError) Error() string {
	if e.Err == nil {
		return "authentication required: " + e.Reason
	}
	return fmt.Sprintf("authentication required: %s: %v", e.Reason, e.Err)
}

func (e *AuthRequiredError) Unwrap() error { return e.Err }

// AuthFailedError is returned when the identity provider rejected the sign-in.
type AuthFailedError struct {
	Err error
}

func (e *AuthFailedError) Error() string { return "authentication failed: " + e.Err.Error() }

func (e *AuthFailedError) Unwrap() error { return e.Err }

// newApplication is replaced in tests.
var newApplication = func(cfg config.Config) (*app.App, error) {
	return app.New(cfg)
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPathOrPanic()
	}
	return config.LoadConfig(path)
}

// session is the signed-in state of one command invocation. Tokens live only
// as long as the process.
type session struct {
	app    *app.App
	id     string
	result *pkgoauth.TokenResult
}

// startSession builds the application and signs in interactively.
func startSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := newApplication(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{app: a, id: "cli-" + uuid.NewString()}
	progress(cmd, "Opening the browser to sign in...\n")

	result, err := a.Login(cmd.Context(), s.id)
	if err != nil {
		a.Shutdown()
		return nil, signInError(err)
	}
	s.result = result
	progress(cmd, "Signed in as %s\n", result.Identity.Username)
	return s, nil
}

func (s *session) identityKey() string {
	return s.result.Identity.HomeAccountID
}

// close signs the session out and releases every connection it opened.
func (s *session) close() {
	s.app.Logout(s.id)
	s.app.Shutdown()
}

// findDatabase lists the databases of subscriptionID and picks the one called
// name. Clustered databases match "cluster/database", or the cluster name
// alone when the cluster has a single database.
func (s *session) findDatabase(ctx context.Context, subscriptionID, name string) (discovery.Resource, error) {
	return findDatabase(s.app.Databases(ctx, s.identityKey(), subscriptionID), name)
}

func findDatabase(databases []discovery.Resource, name string) (discovery.Resource, error) {
	var matches []discovery.Resource
	for _, r := range databases {
		if strings.EqualFold(r.DisplayName(), name) ||
			(r.Kind == discovery.KindSingleNode && strings.EqualFold(r.Name, name)) ||
			(r.Kind == discovery.KindClustered && strings.EqualFold(r.ClusterName, name)) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return discovery.Resource{}, fmt.Errorf("database %q not found", name)
	case 1:
		return matches[0], nil
	}

	// An exact display name wins over a cluster-name match.
	for _, r := range matches {
		if strings.EqualFold(r.DisplayName(), name) {
			return r, nil
		}
	}
	names := make([]string, 0, len(matches))
	for _, r := range matches {
		names = append(names, r.DisplayName())
	}
	return discovery.Resource{}, fmt.Errorf("database %q is ambiguous, use one of: %s", name, strings.Join(names, ", "))
}

func signInError(err error) error {
	switch {
	case app.IsAuthorizationError(err):
		return &AuthFailedError{Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &AuthRequiredError{Reason: "sign-in was not completed", Err: err}
	default:
		return err
	}
}

func validateSubscription(id string) error {
	if !discovery.ValidSubscriptionID(id) {
		return fmt.Errorf("invalid subscription ID %q", id)
	}
	return nil
}

// progress writes status messages to stderr so structured output on stdout
// stays parseable.
func progress(cmd *cobra.Command, format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), format, args...)
	}
}
