package health

import (
	"strings"

	"filekv/internal/logs"
	"filekv/internal/metrics"
)

// Analyzer converts metrics + logs into a health report.
type Analyzer struct {
	metrics *metrics.Registry
	logger  *logs.Logger
	rules   []Rule
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(
	reg *metrics.Registry,
	logger *logs.Logger,
) *Analyzer {
	return &Analyzer{
		metrics: reg,
		logger:  logger,
		rules: []Rule{
			PersistFailureRule,
			StorageLimitRule,
			SweepFailureRule,
		},
	}
}

// Analyze evaluates metrics and logs and returns a health report.
func (a *Analyzer) Analyze() Report {
	snapshot := a.metrics.Snapshot()

	var (
		signals         = []string{}
		recommendations = []string{}
		status          = StatusOK
	)

	escalate := func(s Status) {
		if s == StatusCritical {
			status = StatusCritical
		} else if s == StatusDegraded && status == StatusOK {
			status = StatusDegraded
		}
	}

	/* ---------- METRICS-BASED RULES ---------- */

	for _, rule := range a.rules {
		result := rule(snapshot)
		if !result.Triggered {
			continue
		}

		signals = append(signals, result.Signal)
		recommendations = append(recommendations, result.Recommendation)
		escalate(result.Severity)
	}

	/* ---------- LOG-BASED SIGNALS ---------- */

	persistWarnings := 0
	panicCount := 0

	for _, entry := range a.logger.GetLast(100) {
		if entry.Level == logs.WARN &&
			strings.Contains(entry.Message, "persist failed") {
			persistWarnings++
		}

		if entry.Level == logs.ERROR &&
			strings.Contains(entry.Message, "panic") {
			panicCount++
		}
	}

	if persistWarnings >= 3 {
		signals = append(signals,
			"Repeated persistence failures in recent logs",
		)
		recommendations = append(recommendations,
			"Writes are being rejected; verify the backing file is writable",
		)
		escalate(StatusDegraded)
	}

	if panicCount > 0 {
		signals = append(signals,
			"Application panics detected in logs",
		)
		recommendations = append(recommendations,
			"Inspect stack traces and stabilize error handling",
		)
		escalate(StatusCritical)
	}

	/* ---------- SUMMARY ---------- */

	summary := "Store is healthy"
	if status != StatusOK {
		summary = "Store health issues detected"
	}

	return Report{
		OverallStatus:   status,
		Summary:         summary,
		Signals:         signals,
		Recommendations: recommendations,
		Metrics:         snapshot,
	}
}
