package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "studioctl",
		Short:         "Operational commands for the studio billing backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newRecurringCmd(),
		newCreditNotesCmd(),
		newOutboxCmd(),
		newTokenCmd(),
	)
	return root
}

// connect opens the database and returns a context that may touch every organization.
func connect(cmd *cobra.Command) (context.Context, *gorm.DB, error) {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		return nil, nil, errors.New("database not initialized, set the DB_* environment variables")
	}
	ctx := utils.SetIsAdminInContext(cmd.Context(), true)
	return utils.WithoutTenantScope(ctx), db, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
