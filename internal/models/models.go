package models

type AuditRequest struct {
	URLs        []string `json:"urls"`
	ProjectPath string   `json:"projectPath,omitempty"`
	Branch1     string   `json:"branch1,omitempty"`
	Branch2     string   `json:"branch2,omitempty"`
}

type ErrorResponse struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}

// SingleResponse is returned when no branch pair was requested.
type SingleResponse struct {
	ID     string        `json:"id"`
	Single []AuditReport `json:"single"`
}

// CompareResponse is returned when two branches were audited.
type CompareResponse struct {
	ID         string            `json:"id"`
	Branch1    []AuditReport     `json:"branch1"`
	Branch2    []AuditReport     `json:"branch2"`
	Comparison *ComparisonResult `json:"comparison"`
}

// AuditReport is the outcome of auditing one URL under one branch.
// Either Scores and Metrics are populated, or Error is set; never both.
type AuditReport struct {
	URL     string             `json:"url"`
	Branch  string             `json:"branch,omitempty"`
	Scores  map[string]int     `json:"scores,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Failed reports whether the audit for this URL produced no usable data.
func (r AuditReport) Failed() bool {
	return r.Error != "" || len(r.Scores) == 0 || len(r.Metrics) == 0
}

type ImpactLevel string

const (
	ImpactMinimal ImpactLevel = "minimal"
	ImpactLow     ImpactLevel = "low"
	ImpactMedium  ImpactLevel = "medium"
	ImpactHigh    ImpactLevel = "high"
)

// ScoreDelta describes the change of one 0-100 category score, where a
// positive change is an improvement.
type ScoreDelta struct {
	Category      string      `json:"category"`
	DisplayName   string      `json:"displayName"`
	Baseline      int         `json:"baseline"`
	Comparison    int         `json:"comparison"`
	Change        int         `json:"change"`
	Improvement   bool        `json:"improvement"`
	ChangePercent int         `json:"changePercent"`
	Impact        ImpactLevel `json:"impact"`
}

// MetricDelta describes the change of one timing/shift metric, where a
// negative change (faster, less shift) is an improvement.
type MetricDelta struct {
	Metric              string      `json:"metric"`
	DisplayName         string      `json:"displayName"`
	Baseline            float64     `json:"baseline"`
	Comparison          float64     `json:"comparison"`
	Change              float64     `json:"change"`
	Improvement         bool        `json:"improvement"`
	ChangePercent       int         `json:"changePercent"`
	FormattedBaseline   string      `json:"formattedBaseline"`
	FormattedComparison string      `json:"formattedComparison"`
	FormattedChange     string      `json:"formattedChange"`
	Impact              ImpactLevel `json:"impact"`
}

type DeltaGroup struct {
	Scores  []ScoreDelta  `json:"scores"`
	Metrics []MetricDelta `json:"metrics"`
}

type URLComparison struct {
	URL           string                 `json:"url"`
	ScoreChanges  map[string]ScoreDelta  `json:"scoreChanges"`
	MetricChanges map[string]MetricDelta `json:"metricChanges"`
	Improvements  DeltaGroup             `json:"improvements"`
	Regressions   DeltaGroup             `json:"regressions"`
}

type ComparisonSummary struct {
	TotalURLs            int `json:"totalUrls"`
	URLsWithImprovements int `json:"urlsWithImprovements"`
	URLsWithRegressions  int `json:"urlsWithRegressions"`
	TotalImprovements    int `json:"totalImprovements"`
	TotalRegressions     int `json:"totalRegressions"`
}

type ComparisonResult struct {
	BaselineLabel  string            `json:"baselineLabel"`
	CandidateLabel string            `json:"candidateLabel"`
	PerURL         []URLComparison   `json:"perUrl"`
	Summary        ComparisonSummary `json:"summary"`
}

// Internal Lighthouse Data Models

type LighthouseResult struct {
	RequestedURL string                         `json:"requestedUrl"`
	FinalURL     string                         `json:"finalUrl"`
	Categories   map[string]*LighthouseCategory `json:"categories"`
	Audits       map[string]*LighthouseAudit    `json:"audits"`
	RuntimeError *LighthouseRuntimeError        `json:"runtimeError"`
}

type LighthouseCategory struct {
	Score *float64 `json:"score"`
}

type LighthouseAudit struct {
	Score        *float64 `json:"score"`
	NumericValue *float64 `json:"numericValue"`
}

type LighthouseRuntimeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
