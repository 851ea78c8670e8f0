package cmd

import (
	"github.com/spf13/cobra"
)

func newDatabasesCmd() *cobra.Command {
	var subscriptionID string

	c := &cobra.Command{
		Use:   "databases",
		Short: "List the Redis databases in a subscription",
		Long: `List Azure Cache for Redis caches and Azure Managed Redis databases in a
subscription. Each database of a cluster is listed as cluster/database.

Examples:
  redisinsight-azure databases --subscription <id>
  redisinsight-azure databases -s <id> -o yaml`,
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

			databases := s.app.Databases(cmd.Context(), s.identityKey(), subscriptionID)
			return newFormatter().FormatDatabases(cmd.OutOrStdout(), databases)
		},
	}
	c.Flags().StringVarP(&subscriptionID, "subscription", "s", "", "Subscription ID")
	_ = c.MarkFlagRequired("subscription")
	return c
}
