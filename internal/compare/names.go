package compare

// Score categories reported by Lighthouse, 0-100, higher is better.
const (
	CategoryPerformance   = "performance"
	CategoryAccessibility = "accessibility"
	CategoryBestPractices = "best-practices"
	CategorySEO           = "seo"
)

// Timing and layout-shift metrics, lower is better. All are milliseconds
// except cumulative-layout-shift, which is unitless.
const (
	MetricFirstContentfulPaint   = "first-contentful-paint"
	MetricLargestContentfulPaint = "largest-contentful-paint"
	MetricSpeedIndex             = "speed-index"
	MetricTotalBlockingTime      = "total-blocking-time"
	MetricCumulativeLayoutShift  = "cumulative-layout-shift"
)

// Categories lists the fixed score categories in report order.
var Categories = []string{
	CategoryPerformance,
	CategoryAccessibility,
	CategoryBestPractices,
	CategorySEO,
}

// Metrics lists the fixed metrics in report order.
var Metrics = []string{
	MetricFirstContentfulPaint,
	MetricLargestContentfulPaint,
	MetricSpeedIndex,
	MetricTotalBlockingTime,
	MetricCumulativeLayoutShift,
}

var displayNames = map[string]string{
	CategoryPerformance:          "Performance",
	CategoryAccessibility:        "Accessibility",
	CategoryBestPractices:        "Best Practices",
	CategorySEO:                  "SEO",
	MetricFirstContentfulPaint:   "First Contentful Paint",
	MetricLargestContentfulPaint: "Largest Contentful Paint",
	MetricSpeedIndex:             "Speed Index",
	MetricTotalBlockingTime:      "Total Blocking Time",
	MetricCumulativeLayoutShift:  "Cumulative Layout Shift",
}

// DisplayName maps a machine-readable category or metric key to its
// human-readable label. Unknown keys pass through unchanged.
func DisplayName(key string) string {
	if name, ok := displayNames[key]; ok {
		return name
	}
	return key
}
