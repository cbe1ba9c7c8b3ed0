package health

import "filekv/internal/metrics"

// RuleResult represents the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       Status
}

// Rule evaluates a metrics snapshot.
type Rule func(snapshot map[string]int64) RuleResult

// ---------- RULES ----------

// Persistence failures mean the backing file may lag behind memory.
func PersistFailureRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.PersistFailuresTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Snapshot persistence failures detected",
			Recommendation: "Check disk space and permissions of the backing file",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Hitting the storage limit means every further write will be rejected.
func StorageLimitRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.StorageLimitExceededTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Backing storage limit reached",
			Recommendation: "Delete keys or shorten TTLs to shrink the snapshot",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}

// A failed sweep leaves the on-disk snapshot holding expired keys.
func SweepFailureRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.SweepFailuresTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "TTL sweep failed to persist",
			Recommendation: "Inspect sweeper errors in the logs",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}
