package cmd

import (
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with Microsoft Entra ID",
		Long: `Sign in through the browser and show the signed-in account.

A loopback server on the configured redirect URI receives the authorization
response. The session ends when the command exits.

Examples:
  redisinsight-azure login
  redisinsight-azure login -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := startSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			return newFormatter().FormatAccounts(cmd.OutOrStdout(), s.app.Accounts())
		},
	}
}
