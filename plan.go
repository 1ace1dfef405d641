package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tholdem/uniqn-sync/pkg/records"
	"github.com/tholdem/uniqn-sync/services/unified"
)

// planCmd prints the queries a user would be subscribed to, without
// touching Firestore.
func planCmd() *cobra.Command {
	var (
		role   string
		userID string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the subscription queries of a role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := records.ParseRole(role)
			if err != nil {
				return fmt.Errorf("%w: %q", err, role)
			}
			selector, err := app.newSelector()
			if err != nil {
				return err
			}
			service := unified.NewUnifiedService(app.newCache(), app.newTracker(), selector, nil, app.logger)

			specs, err := service.Plan(userID, r)
			if err != nil {
				return fmt.Errorf("failed to plan queries: %w", err)
			}

			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(specs)
		},
	}
	cmd.Flags().StringVarP(&role, "role", "r", string(records.RoleStaff), "Role to plan for (admin, manager, staff)")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id the queries are scoped to")
	cmd.MarkFlagRequired("user")
	return cmd
}
