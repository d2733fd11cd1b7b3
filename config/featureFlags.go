package config

import (
	"os"
	"strings"
)

// RulesOnlyScoring disables the legacy static-column fallback: when no rule
// matches, no penalty/fine is posted at all. For owners fully migrated to the
// rules engine.
//
// Set via env:
// - RULES_ONLY_SCORING=true
func RulesOnlyScoring() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RULES_ONLY_SCORING")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ReconcileForOwners restricts the scheduled reconciliation run to an
// allowlist of owners during incremental rollout.
//
// Set via env:
// - RECONCILE_OWNERS="owner-1,owner-2"
//
// Empty means all owners.
func ReconcileForOwners() []string {
	raw := os.Getenv("RECONCILE_OWNERS")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var owners []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			owners = append(owners, v)
		}
	}
	return owners
}
