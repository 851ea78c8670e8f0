package cmd

import (
	"github.com/spf13/cobra"
)

func newSubscriptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "List the Azure subscriptions of the signed-in account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := startSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			subs := s.app.Subscriptions(cmd.Context(), s.identityKey())
			return newFormatter().FormatSubscriptions(cmd.OutOrStdout(), subs)
		},
	}
}
