package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/photoproos/studio_backend/utils"
	"github.com/spf13/cobra"
)

var tokenRoles = []string{utils.RoleOwner, utils.RoleStaff, utils.RoleSuperAdmin}

func newTokenCmd() *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Service tokens",
	}

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token with JWT_SECRET",
		Example: `  studioctl token issue --organization 3f1c... --user ops --role owner
  studioctl token issue --user ops --role super_admin --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			organizationId, _ := cmd.Flags().GetString("organization")
			userId, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if !slices.Contains(tokenRoles, role) {
				return fmt.Errorf("--role must be one of %v", tokenRoles)
			}
			if organizationId == "" && role != utils.RoleSuperAdmin {
				return fmt.Errorf("--organization is required for role %s", role)
			}
			signed, err := utils.JwtGenerate(userId, organizationId, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	issue.Flags().String("organization", "", "Organization id the token acts for")
	issue.Flags().String("user", "studioctl", "User id recorded in the token")
	issue.Flags().String("role", utils.RoleOwner, "owner, staff or super_admin")
	issue.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")

	token.AddCommand(issue)
	return token
}
