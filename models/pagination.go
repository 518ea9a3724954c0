package models

import (
	"encoding/base64"
	"strconv"

	"github.com/photoproos/studio_backend/utils"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

// DecodeIdCursor returns 0 for an empty cursor.
func DecodeIdCursor(cursor *string) (int, error) {
	if cursor == nil || *cursor == "" {
		return 0, nil
	}
	b, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return 0, utils.NewValidationError("invalid cursor")
	}
	id, err := strconv.Atoi(string(b))
	if err != nil || id <= 0 {
		return 0, utils.NewValidationError("invalid cursor")
	}
	return id, nil
}

func EncodeIdCursor(id int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(id)))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
