// studioctl runs operational jobs against the studio database: migrations, recurring
// invoice catch-up, credit note audits, outbox replays and service tokens.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/studioctl migrate
//	go run ./cmd/studioctl recurring run --as-of 2025-03-01
package main

import (
	"fmt"
	"os"

	"github.com/photoproos/studio_backend/config"
)

func main() {
	defer config.CloseLogRotator()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "studioctl: %v\n", err)
		os.Exit(1)
	}
}
