// Package compare derives categorized deltas between two audit runs.
package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/perfkit/lighthouse-compare/internal/models"
)

// Compare pairs the baseline and candidate reports by position and produces
// per-URL deltas plus an aggregate summary.
//
// Pairing is strictly positional: the i-th baseline report is compared
// against the i-th candidate report, never matched by URL. When the
// sequences differ in length, pairing stops at the shorter one. A pair is
// skipped entirely when either side failed; skipped pairs still count
// towards TotalURLs but produce no PerURL entry.
func Compare(baseline, candidate []models.AuditReport, baselineLabel, candidateLabel string) models.ComparisonResult {
	n := len(baseline)
	if len(candidate) < n {
		n = len(candidate)
	}

	result := models.ComparisonResult{
		BaselineLabel:  baselineLabel,
		CandidateLabel: candidateLabel,
		PerURL:         []models.URLComparison{},
	}
	result.Summary.TotalURLs = n

	for i := 0; i < n; i++ {
		base, cand := baseline[i], candidate[i]
		if base.Failed() || cand.Failed() {
			continue
		}

		uc := compareURL(base, cand)
		result.PerURL = append(result.PerURL, uc)

		improvements := len(uc.Improvements.Scores) + len(uc.Improvements.Metrics)
		regressions := len(uc.Regressions.Scores) + len(uc.Regressions.Metrics)
		if improvements > 0 {
			result.Summary.URLsWithImprovements++
		}
		if regressions > 0 {
			result.Summary.URLsWithRegressions++
		}
		result.Summary.TotalImprovements += improvements
		result.Summary.TotalRegressions += regressions
	}

	return result
}

func compareURL(base, cand models.AuditReport) models.URLComparison {
	uc := models.URLComparison{
		URL:           base.URL,
		ScoreChanges:  make(map[string]models.ScoreDelta),
		MetricChanges: make(map[string]models.MetricDelta),
		Improvements:  models.DeltaGroup{Scores: []models.ScoreDelta{}, Metrics: []models.MetricDelta{}},
		Regressions:   models.DeltaGroup{Scores: []models.ScoreDelta{}, Metrics: []models.MetricDelta{}},
	}

	for _, category := range orderedKeys(base.Scores, Categories) {
		cv, ok := cand.Scores[category]
		if !ok {
			// Missing on the candidate side; drop the field, not the URL.
			continue
		}
		d := scoreDelta(category, base.Scores[category], cv)
		uc.ScoreChanges[category] = d
		switch {
		case d.Change > 0:
			uc.Improvements.Scores = append(uc.Improvements.Scores, d)
		case d.Change < 0:
			uc.Regressions.Scores = append(uc.Regressions.Scores, d)
		}
	}

	for _, metric := range orderedKeys(base.Metrics, Metrics) {
		cv, ok := cand.Metrics[metric]
		if !ok {
			continue
		}
		d := metricDelta(metric, base.Metrics[metric], cv)
		uc.MetricChanges[metric] = d
		switch {
		case d.Change < 0:
			uc.Improvements.Metrics = append(uc.Improvements.Metrics, d)
		case d.Change > 0:
			uc.Regressions.Metrics = append(uc.Regressions.Metrics, d)
		}
	}

	return uc
}

func scoreDelta(category string, base, comparison int) models.ScoreDelta {
	change := comparison - base
	percent := 0
	if base > 0 {
		percent = int(math.Round(float64(change) / float64(base) * 100))
	}
	return models.ScoreDelta{
		Category:      category,
		DisplayName:   DisplayName(category),
		Baseline:      base,
		Comparison:    comparison,
		Change:        change,
		Improvement:   change > 0,
		ChangePercent: percent,
		Impact:        scoreImpact(change),
	}
}

func metricDelta(metric string, base, comparison float64) models.MetricDelta {
	change := comparison - base
	percent := 0
	if base > 0 {
		percent = int(math.Round(math.Abs(change) / base * 100))
	}
	return models.MetricDelta{
		Metric:              metric,
		DisplayName:         DisplayName(metric),
		Baseline:            base,
		Comparison:          comparison,
		Change:              change,
		Improvement:         change < 0,
		ChangePercent:       percent,
		FormattedBaseline:   formatValue(metric, base),
		FormattedComparison: formatValue(metric, comparison),
		FormattedChange:     formatChange(metric, change),
		Impact:              metricImpact(metric, base, change),
	}
}

// scoreImpact buckets an absolute score change. Thresholds are inclusive:
// a change of exactly 20 is high, exactly 19 is medium.
func scoreImpact(change int) models.ImpactLevel {
	abs := change
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 20:
		return models.ImpactHigh
	case abs >= 10:
		return models.ImpactMedium
	case abs >= 5:
		return models.ImpactLow
	default:
		return models.ImpactMinimal
	}
}

// metricImpact buckets a metric change. Cumulative layout shift uses
// absolute thresholds; all timing metrics use the relative change against
// the baseline, which is 0 when the baseline is not positive.
func metricImpact(metric string, base, change float64) models.ImpactLevel {
	abs := math.Abs(change)
	if metric == MetricCumulativeLayoutShift {
		switch {
		case abs >= 0.25:
			return models.ImpactHigh
		case abs >= 0.10:
			return models.ImpactMedium
		case abs >= 0.05:
			return models.ImpactLow
		default:
			return models.ImpactMinimal
		}
	}

	percent := 0.0
	if base > 0 {
		percent = abs / base * 100
	}
	switch {
	case percent >= 50:
		return models.ImpactHigh
	case percent >= 25:
		return models.ImpactMedium
	case percent >= 10:
		return models.ImpactLow
	default:
		return models.ImpactMinimal
	}
}

func formatValue(metric string, v float64) string {
	if metric == MetricCumulativeLayoutShift {
		return fmt.Sprintf("%.3f", v)
	}
	return fmt.Sprintf("%dms", int(math.Round(v)))
}

func formatChange(metric string, change float64) string {
	s := formatValue(metric, change)
	if change > 0 {
		return "+" + s
	}
	return s
}

// orderedKeys returns the keys of m with the fixed well-known keys first,
// in their report order, followed by any remaining keys sorted. Keeps
// output deterministic without losing unknown keys.
func orderedKeys[V any](m map[string]V, fixed []string) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(fixed))
	for _, k := range fixed {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var extra []string
	for k := range m {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}
