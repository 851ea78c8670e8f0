package cmd

import (
	"github.com/spf13/cobra"
)

func newConnectCmd() *cobra.Command {
	var subscriptionID, name string

	c := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a database and keep its token fresh",
		Long: `Connect to a database and hold the connection open until interrupted.

While connected, the identity token is refreshed before it expires and the
connection is re-authenticated with the new token. Press Ctrl+C to disconnect
and sign out.

Examples:
  redisinsight-azure connect --subscription <id> --name orders`,
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

			ctx := cmd.Context()
			resource, err := s.findDatabase(ctx, subscriptionID, name)
			if err != nil {
				return err
			}
			conn, err := s.app.Connect(ctx, s.identityKey(), resource)
			if err != nil {
				return err
			}

			f := newFormatter()
			progress(cmd, "Connected to %s (%s)\n", resource.DisplayName(), conn.ID())
			if conn.IdentityKey() == "" {
				progress(cmd, "Authenticated with an access key; no token refresh is needed\n")
			} else if err := f.FormatSchedule(cmd.OutOrStdout(), s.app.Scheduler().Entries()); err != nil {
				return err
			}
			progress(cmd, "Press Ctrl+C to disconnect\n")

			<-ctx.Done()
			progress(cmd, "Disconnecting\n")
			return nil
		},
	}
	c.Flags().StringVarP(&subscriptionID, "subscription", "s", "", "Subscription ID")
	c.Flags().StringVarP(&name, "name", "n", "", "Database name (cache, or cluster/database)")
	_ = c.MarkFlagRequired("subscription")
	_ = c.MarkFlagRequired("name")
	return c
}
