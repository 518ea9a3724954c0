package models_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/photoproos/studio_backend/models"
)

func TestAvailableAddonRequestActions(t *testing.T) {
	want := map[models.AddonRequestStatus][]models.AddonRequestAction{
		models.AddonRequestStatusPending: {
			models.AddonRequestActionSendQuote, models.AddonRequestActionStartWithoutQuote, models.AddonRequestActionCancel,
		},
		models.AddonRequestStatusQuoted: {
			models.AddonRequestActionSendQuote, models.AddonRequestActionApprove, models.AddonRequestActionDecline,
			models.AddonRequestActionCancel,
		},
		models.AddonRequestStatusApproved:   {models.AddonRequestActionStartWork, models.AddonRequestActionCancel},
		models.AddonRequestStatusInProgress: {models.AddonRequestActionComplete, models.AddonRequestActionCancel},
		models.AddonRequestStatusCompleted:  {},
		models.AddonRequestStatusDeclined:   {},
		models.AddonRequestStatusCancelled:  {},
	}
	for status, actions := range want {
		if diff := cmp.Diff(actions, models.AvailableAddonRequestActions(status)); diff != "" {
			t.Errorf("actions for %s (-want +got):\n%s", status, diff)
		}
	}
}

func TestAddonRequestTerminalStatuses(t *testing.T) {
	terminal := map[models.AddonRequestStatus]bool{
		models.AddonRequestStatusPending:    false,
		models.AddonRequestStatusQuoted:     false,
		models.AddonRequestStatusApproved:   false,
		models.AddonRequestStatusInProgress: false,
		models.AddonRequestStatusCompleted:  true,
		models.AddonRequestStatusDeclined:   true,
		models.AddonRequestStatusCancelled:  true,
	}
	for status, want := range terminal {
		if got := models.IsAddonRequestTerminal(status); got != want {
			t.Errorf("IsAddonRequestTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}
