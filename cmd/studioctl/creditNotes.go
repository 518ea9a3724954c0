package main

import (
	"fmt"

	"github.com/photoproos/studio_backend/models"
	"github.com/spf13/cobra"
)

func newCreditNotesCmd() *cobra.Command {
	creditNotes := &cobra.Command{
		Use:     "credit-notes",
		Aliases: []string{"cn"},
		Short:   "Credit note ledger checks",
	}

	audit := &cobra.Command{
		Use:   "audit",
		Short: "Report credit notes whose stored amounts do not add up",
		Long: `Checks that no credit note has applied plus refunded above its amount and that
applied amounts match the application rows. Exits non-zero when anything is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			organizationId, _ := cmd.Flags().GetString("organization")
			ctx, _, err := connect(cmd)
			if err != nil {
				return err
			}
			discrepancies, err := models.AuditCreditNotes(ctx, organizationId)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), discrepancies); err != nil {
				return err
			}
			if len(discrepancies) > 0 {
				return fmt.Errorf("%d credit note discrepancies", len(discrepancies))
			}
			return nil
		},
	}
	audit.Flags().String("organization", "", "Limit the audit to one organization id")

	creditNotes.AddCommand(audit)
	return creditNotes
}
