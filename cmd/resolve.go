package cmd

import (
	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	var subscriptionID, name string

	c := &cobra.Command{
		Use:   "resolve",
		Short: "Show how a database would be connected to",
		Long: `Resolve the connection credential for a database without connecting.

An identity token is preferred. When none can be obtained the database's access
key is used if access keys are enabled. Secrets are never printed.

Examples:
  redisinsight-azure resolve --subscription <id> --name orders
  redisinsight-azure resolve -s <id> -n cart/default -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateSubscription(subscriptionID); err != nil {
				return err
			}
			s, err := startSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			resource, err := s.findDatabase(cmd.Context(), subscriptionID, name)
			if err != nil {
				return err
			}
			cred, err := s.app.ResolveCredential(cmd.Context(), s.identityKey(), resource)
			if err != nil {
				return err
			}
			return newFormatter().FormatCredential(cmd.OutOrStdout(), cred)
		},
	}
	c.Flags().StringVarP(&subscriptionID, "subscription", "s", "", "Subscription ID")
	c.Flags().StringVarP(&name, "name", "n", "", "Database name (cache, or cluster/database)")
	_ = c.MarkFlagRequired("subscription")
	_ = c.MarkFlagRequired("name")
	return c
}
