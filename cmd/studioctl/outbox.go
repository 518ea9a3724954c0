package main

import (
	"fmt"

	"github.com/photoproos/studio_backend/models"
	"github.com/spf13/cobra"
)

func newOutboxCmd() *cobra.Command {
	outbox := &cobra.Command{
		Use:   "outbox",
		Short: "Outbox event maintenance",
	}

	replay := &cobra.Command{
		Use:   "replay",
		Short: "Queue a FAILED or DEAD outbox event for publishing again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetInt("id")
			if id <= 0 {
				return fmt.Errorf("--id is required")
			}
			ctx, _, err := connect(cmd)
			if err != nil {
				return err
			}
			event, err := models.ReplayOutboxEvent(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "event %d (%s) is %s\n", event.ID, event.EventType, event.PublishStatus)
			return nil
		},
	}
	replay.Flags().Int("id", 0, "Outbox event id")

	outbox.AddCommand(replay)
	return outbox
}
