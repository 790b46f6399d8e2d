package reconcile

import "fmt"

// HealthLevel grades a finished run for alerting purposes. Alert delivery is
// out of scope; callers decide what to do with a non-OK level.
type HealthLevel string

const (
	HealthOK       HealthLevel = "ok"
	HealthWarning  HealthLevel = "warning"
	HealthCritical HealthLevel = "critical"
)

// HealthReport is the derived assessment of one run.
type HealthReport struct {
	Level     HealthLevel
	ErrorRate float64
	Reasons   []string
}

// AssessRun grades a single run. A run that found nothing, or whose error
// rate exceeds one half, is critical; an error rate above one tenth is a
// warning.
func AssessRun(run *RunMetadata) HealthReport {
	report := HealthReport{Level: HealthOK}

	if run.ListingsFound == 0 {
		report.Level = HealthCritical
		report.Reasons = append(report.Reasons, "run produced zero listings")
		if run.Errors > 0 {
			report.ErrorRate = 1
			report.Reasons = append(report.Reasons, fmt.Sprintf("extraction failed with %d error(s)", run.Errors))
		}
		return report
	}

	report.ErrorRate = float64(run.Errors) / float64(run.ListingsFound)
	switch {
	case report.ErrorRate > 0.5:
		report.Level = HealthCritical
		report.Reasons = append(report.Reasons, fmt.Sprintf("error rate %.0f%% exceeds 50%%", report.ErrorRate*100))
	case report.ErrorRate > 0.1:
		report.Level = HealthWarning
		report.Reasons = append(report.Reasons, fmt.Sprintf("error rate %.0f%% exceeds 10%%", report.ErrorRate*100))
	}
	return report
}

// SuccessRate returns the fraction of finished runs in the window assessed
// below critical. In-flight runs are skipped. An empty window reports 1.
func SuccessRate(runs []RunMetadata) float64 {
	finished, healthy := 0, 0
	for i := range runs {
		if !runs[i].Finished() {
			continue
		}
		finished++
		if AssessRun(&runs[i]).Level != HealthCritical {
			healthy++
		}
	}
	if finished == 0 {
		return 1
	}
	return float64(healthy) / float64(finished)
}

// WindowErrorRate returns the aggregate error rate over a window of runs:
// total errors divided by total listings found. A window that found nothing
// but recorded errors reports 1.
func WindowErrorRate(runs []RunMetadata) float64 {
	found, errs := 0, 0
	for i := range runs {
		found += runs[i].ListingsFound
		errs += runs[i].Errors
	}
	if found == 0 {
		if errs > 0 {
			return 1
		}
		return 0
	}
	return float64(errs) / float64(found)
}
