package config

import (
	"os"
	"strings"
	"time"
)

// RecurringRunnerEnabled turns on the in-process cron trigger for recurring invoices.
//
// Set via env:
// - RECURRING_RUNNER_ENABLED=true
func RecurringRunnerEnabled() bool {
	return boolFromEnv("RECURRING_RUNNER_ENABLED", false)
}

// RecurringCronSpec is a 6-field (with seconds) robfig/cron expression.
func RecurringCronSpec() string {
	if v := strings.TrimSpace(os.Getenv("RECURRING_CRON")); v != "" {
		return v
	}
	return "0 */15 * * * *"
}

func RecurringRunnerConcurrency() int {
	n := intFromEnv("RECURRING_RUNNER_CONCURRENCY", 4)
	if n < 1 {
		return 1
	}
	return n
}

// RecurringMaxCatchUp bounds how many missed cycles one run materializes per agreement.
func RecurringMaxCatchUp() int {
	n := intFromEnv("RECURRING_MAX_CATCH_UP", 12)
	if n < 1 {
		return 1
	}
	return n
}

// OutboxDispatcherEnabled defaults to true; set OUTBOX_DISPATCHER_ENABLED=false on read replicas.
func OutboxDispatcherEnabled() bool {
	return boolFromEnv("OUTBOX_DISPATCHER_ENABLED", true)
}

func RateLimitPerMinute() int {
	return intFromEnv("RATE_LIMIT_PER_MINUTE", 0)
}

func JwtTTL() time.Duration {
	return time.Duration(intFromEnv("JWT_TTL_HOURS", 24)) * time.Hour
}

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	default:
		return def
	}
}
