// Package auditor runs Lighthouse against URLs and turns its JSON report
// into score and metric maps.
package auditor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/perfkit/lighthouse-compare/internal/compare"
	"github.com/perfkit/lighthouse-compare/internal/config"
	"github.com/perfkit/lighthouse-compare/internal/models"
	"github.com/perfkit/lighthouse-compare/internal/observability"
)

var tracer = otel.Tracer("lighthouse-compare/auditor")

// Runner executes Lighthouse for a single URL and writes the JSON report
// to outPath.
type Runner interface {
	Run(ctx context.Context, url, outPath string) error
}

type Auditor struct {
	runner  Runner
	backend string
	timeout time.Duration
}

// New builds an Auditor with the runner backend named in the config.
func New(cfg config.Auditor) (*Auditor, error) {
	var (
		runner Runner
		err    error
	)
	switch cfg.Runner {
	case "", "exec":
		runner = NewExecRunner(cfg)
	case "docker":
		runner, err = NewDockerRunner(cfg)
	case "kubernetes":
		runner, err = NewKubernetesRunner(cfg)
	default:
		return nil, fmt.Errorf("unknown audit runner %q", cfg.Runner)
	}
	if err != nil {
		return nil, err
	}
	return &Auditor{runner: runner, backend: cfg.Runner, timeout: cfg.Timeout}, nil
}

// NewWithRunner wires an explicit runner, used by tests and custom setups.
func NewWithRunner(r Runner, timeout time.Duration) *Auditor {
	return &Auditor{runner: r, backend: "custom", timeout: timeout}
}

// AuditAll audits every URL in order, one at a time. Lighthouse drives a
// full browser, so runs are kept strictly sequential to avoid overlapping
// resource usage on the host. Reports land in runDir, one JSON per URL.
func (a *Auditor) AuditAll(ctx context.Context, urls []string, branch, runDir string) []models.AuditReport {
	reports := make([]models.AuditReport, 0, len(urls))
	for i, url := range urls {
		outPath := filepath.Join(runDir, reportFileName(branch, i))
		reports = append(reports, a.Audit(ctx, url, branch, outPath))
	}
	return reports
}

// Audit runs Lighthouse for one URL. It never returns a Go error: any
// failure is absorbed into the report's Error field so a single bad URL
// cannot abort a batch.
func (a *Auditor) Audit(ctx context.Context, url, branch, outPath string) models.AuditReport {
	ctx, span := tracer.Start(ctx, "auditor.Audit")
	span.SetAttributes(attribute.String("audit.url", url), attribute.String("audit.branch", branch))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	report := models.AuditReport{URL: url, Branch: branch}
	start := time.Now()

	if err := a.runner.Run(ctx, url, outPath); err != nil {
		observability.AuditsTotal.WithLabelValues(a.backend, "error").Inc()
		report.Error = err.Error()
		return report
	}

	result, err := readResult(outPath)
	if err != nil {
		observability.AuditsTotal.WithLabelValues(a.backend, "error").Inc()
		report.Error = err.Error()
		return report
	}
	if result.RuntimeError != nil && result.RuntimeError.Code != "" && result.RuntimeError.Code != "NO_ERROR" {
		observability.AuditsTotal.WithLabelValues(a.backend, "error").Inc()
		report.Error = fmt.Sprintf("lighthouse runtime error %s: %s", result.RuntimeError.Code, result.RuntimeError.Message)
		return report
	}

	report.Scores = extractScores(result)
	report.Metrics = extractMetrics(result)

	observability.AuditsTotal.WithLabelValues(a.backend, "ok").Inc()
	observability.AuditDuration.WithLabelValues(a.backend).Observe(time.Since(start).Seconds())
	return report
}

func readResult(path string) (*models.LighthouseResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lighthouse report not found: %w", err)
	}
	defer file.Close()

	var result models.LighthouseResult
	if err := json.NewDecoder(file).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse lighthouse report: %w", err)
	}
	if len(result.Categories) == 0 {
		return nil, fmt.Errorf("lighthouse report has no categories")
	}
	return &result, nil
}

// extractScores scales the raw 0-1 category scores to 0-100, rounding.
// Absent or null categories score 0.
func extractScores(result *models.LighthouseResult) map[string]int {
	scores := make(map[string]int, len(compare.Categories))
	for _, key := range compare.Categories {
		var v float64
		if c := result.Categories[key]; c != nil && c.Score != nil {
			v = *c.Score
		}
		scores[key] = int(math.Round(v * 100))
	}
	return scores
}

// extractMetrics pulls the numeric value of each fixed metric audit.
// Absent or null audits read as 0.
func extractMetrics(result *models.LighthouseResult) map[string]float64 {
	metrics := make(map[string]float64, len(compare.Metrics))
	for _, key := range compare.Metrics {
		var v float64
		if a := result.Audits[key]; a != nil && a.NumericValue != nil {
			v = *a.NumericValue
		}
		metrics[key] = v
	}
	return metrics
}

func reportFileName(branch string, index int) string {
	if branch == "" {
		return fmt.Sprintf("url-%d.report.json", index)
	}
	return fmt.Sprintf("%s-url-%d.report.json", sanitize(branch), index)
}

func sanitize(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
