package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redis/redisinsight-azure-auth/internal/formatting"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// Global flags
var (
	configPath   string
	logLevel     string
	outputFormat string
	quiet        bool
	noColor      bool
)

// rootCmd represents the base command for the application.
var rootCmd = &cobra.Command{
	Use:   "redisinsight-azure",
	Short: "Sign in to Azure and connect to Azure Cache for Redis with Entra ID",
	Long: `redisinsight-azure signs you in to Microsoft Entra ID, discovers the
Azure Cache for Redis and Azure Managed Redis databases your account can see,
and connects to them with identity tokens that are refreshed and re-applied to
live connections before they expire. Databases that do not accept identity
tokens fall back to their access key.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.InitForCLI(logging.ParseLevel(logLevel), cmd.ErrOrStderr())
		_, err := formatting.ParseFormat(outputFormat)
		return err
	},
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command until it finishes or the process is
// interrupted, then exits with a code describing the outcome.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "redisinsight-azure version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var authRequired *AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authFailed *AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

// newFormatter builds the formatter selected by the global output flags.
func newFormatter() formatting.Formatter {
	format, err := formatting.ParseFormat(outputFormat)
	if err != nil {
		format = formatting.FormatTable
	}
	return formatting.New(formatting.Options{
		Format: format,
		Quiet:  quiet,
		Color:  !noColor,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Directory containing config.yaml (default ~/.config/redisinsight-azure)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(formatting.FormatTable), "Output format (console, table, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress headers and progress messages")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newSubscriptionsCmd())
	rootCmd.AddCommand(newDatabasesCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newConnectCmd())
}
