// Package formatting renders accounts, subscriptions, databases, resolved
// credentials and refresh schedules for the command line.
//
// Every formatter writes the same listings. Console and table output are meant
// for people; JSON and YAML output are stable for scripts and never include
// secrets.
package formatting

import (
	"fmt"
	"io"
	"strings"

	"github.com/redis/redisinsight-azure-auth/internal/credentials"
	"github.com/redis/redisinsight-azure-auth/internal/discovery"
	"github.com/redis/redisinsight-azure-auth/internal/refresh"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatConsole OutputFormat = "console" // Simple console output
	FormatJSON    OutputFormat = "json"    // JSON output
	FormatYAML    OutputFormat = "yaml"    // YAML output
	FormatTable   OutputFormat = "table"   // Rich table output
)

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Suppress decorative elements
	Color  bool // Enable colored output
}

// Formatter writes listings in one output format.
type Formatter interface {
	FormatAccounts(w io.Writer, accounts []pkgoauth.IdentityReference) error
	FormatSubscriptions(w io.Writer, subscriptions []discovery.Subscription) error
	FormatDatabases(w io.Writer, databases []discovery.Resource) error
	FormatCredential(w io.Writer, cred *credentials.ConnectionCredential) error
	FormatSchedule(w io.Writer, entries []refresh.ScheduledTimer) error

	SetOptions(options Options)
	GetOptions() Options
}

// renderer writes one listing.
type renderer interface {
	render(w io.Writer, l listing, options Options) error
}

// New creates the formatter for options.Format. Unknown formats fall back to
// console output.
func New(options Options) Formatter {
	var r renderer
	switch options.Format {
	case FormatJSON:
		r = jsonRenderer{}
	case FormatYAML:
		r = yamlRenderer{}
	case FormatTable:
		r = tableRenderer{}
	case FormatConsole:
		fallthrough
	default:
		r = consoleRenderer{}
	}
	return &formatter{options: options, renderer: r}
}

// ParseFormat validates a format name given on the command line.
func ParseFormat(name string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(name)); f {
	case FormatConsole, FormatJSON, FormatYAML, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want console, json, yaml or table)", name)
	}
}

type formatter struct {
	options  Options
	renderer renderer
}

func (f *formatter) FormatAccounts(w io.Writer, accounts []pkgoauth.IdentityReference) error {
	return f.renderer.render(w, accountsListing(accounts), f.options)
}

func (f *formatter) FormatSubscriptions(w io.Writer, subscriptions []discovery.Subscription) error {
	return f.renderer.render(w, subscriptionsListing(subscriptions), f.options)
}

func (f *formatter) FormatDatabases(w io.Writer, databases []discovery.Resource) error {
	return f.renderer.render(w, databasesListing(databases), f.options)
}

func (f *formatter) FormatCredential(w io.Writer, cred *credentials.ConnectionCredential) error {
	return f.renderer.render(w, credentialListing(cred), f.options)
}

func (f *formatter) FormatSchedule(w io.Writer, entries []refresh.ScheduledTimer) error {
	return f.renderer.render(w, scheduleListing(entries), f.options)
}

// SetOptions updates the formatter options
func (f *formatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *formatter) GetOptions() Options {
	return f.options
}
