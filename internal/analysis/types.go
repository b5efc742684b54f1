// Package analysis defines core types shared across subsystems.
package analysis

import "time"

// Category identifies one of the five scored design dimensions.
type Category string

// Scored design categories.
const (
	CategoryTypography     Category = "typography"
	CategoryColor          Category = "color"
	CategoryLayout         Category = "layout"
	CategoryResponsiveness Category = "responsiveness"
	CategoryAccessibility  Category = "accessibility"
)

// Categories lists all scored categories in canonical order.
func Categories() []Category {
	return []Category{
		CategoryTypography,
		CategoryColor,
		CategoryLayout,
		CategoryResponsiveness,
		CategoryAccessibility,
	}
}

// Status represents the terminal state of an analysis request.
type Status string

// Analysis status values returned to the caller.
const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Viewport is a named screen-size profile used for screenshot capture.
type Viewport struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Standard capture viewports.
var (
	ViewportDesktop = Viewport{Name: "desktop", Width: 1200, Height: 800}
	ViewportMobile  = Viewport{Name: "mobile", Width: 375, Height: 667}
)

// Heading records a single h1-h6 element in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// TypographyMetric holds heading, paragraph, and font-fallback measurements.
type TypographyMetric struct {
	Score               float64    `json:"score"`
	HeadingHierarchy    []Heading  `json:"heading_hierarchy"`
	HierarchyViolations []string   `json:"hierarchy_violations"`
	ParagraphLengths    []int      `json:"paragraph_lengths"`
	LongParagraphs      int        `json:"long_paragraphs"`
	FontFallbacks       [][]string `json:"font_fallbacks"`
	FallbackViolations  []string   `json:"fallback_violations"`
}

// PaletteColor is one dominant color extracted from a screenshot.
type PaletteColor struct {
	RGB [3]uint8 `json:"rgb"`
	Hex string   `json:"hex"`
}

// ColorMetric holds palette and saturation measurements.
type ColorMetric struct {
	Score                float64        `json:"score"`
	PrimaryPalette       []PaletteColor `json:"primary_palette"`
	ColorCount           int            `json:"color_count"`
	SaturationViolations []PaletteColor `json:"saturation_violations"`
}

// LayoutMetric holds whitespace measurements derived from the screenshot bitmap.
type LayoutMetric struct {
	Score           float64  `json:"score"`
	WhitespaceRatio float64  `json:"whitespace_ratio"`
	Violations      []string `json:"violations"`
}

// ImageIssue identifies an <img> element that triggered a finding.
type ImageIssue struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// ResponsivenessMetric holds viewport-meta and image-scaling measurements.
type ResponsivenessMetric struct {
	Score              float64      `json:"score"`
	ViewportMeta       bool         `json:"viewport_meta"`
	ImageScalingIssues []ImageIssue `json:"image_scaling_issues"`
}

// AccessibilityMetric holds alt-text, semantic-tag, and label measurements.
type AccessibilityMetric struct {
	Score              float64  `json:"score"`
	MissingAltText     []string `json:"missing_alt_text"`
	SemanticHTMLIssues []string `json:"semantic_html_issues"`
	ARIAViolations     []string `json:"aria_violations"`
}

// DesignMetrics is one record per completed rule analysis, composed of the
// five category metrics. Created fresh per request and never mutated after
// the orchestrator reads it for aggregation.
type DesignMetrics struct {
	Typography     TypographyMetric     `json:"typography"`
	Color          ColorMetric          `json:"color"`
	Layout         LayoutMetric         `json:"layout"`
	Responsiveness ResponsivenessMetric `json:"responsiveness"`
	Accessibility  AccessibilityMetric  `json:"accessibility"`

	// FailedCategories records extractors that errored and were defaulted
	// to the neutral baseline score.
	FailedCategories map[Category]string `json:"failed_categories,omitempty"`
}

// Score returns the score for the named category.
func (m DesignMetrics) Score(c Category) float64 {
	switch c {
	case CategoryTypography:
		return m.Typography.Score
	case CategoryColor:
		return m.Color.Score
	case CategoryLayout:
		return m.Layout.Score
	case CategoryResponsiveness:
		return m.Responsiveness.Score
	case CategoryAccessibility:
		return m.Accessibility.Score
	}
	return 0
}

// ViolationCount returns the number of findings recorded for the category.
func (m DesignMetrics) ViolationCount(c Category) int {
	switch c {
	case CategoryTypography:
		return len(m.Typography.HierarchyViolations) +
			len(m.Typography.FallbackViolations) +
			m.Typography.LongParagraphs
	case CategoryColor:
		return len(m.Color.SaturationViolations)
	case CategoryLayout:
		return len(m.Layout.Violations)
	case CategoryResponsiveness:
		return len(m.Responsiveness.ImageScalingIssues)
	case CategoryAccessibility:
		return len(m.Accessibility.MissingAltText) +
			len(m.Accessibility.SemanticHTMLIssues) +
			len(m.Accessibility.ARIAViolations)
	}
	return 0
}

// TotalViolations sums findings across all categories.
func (m DesignMetrics) TotalViolations() int {
	total := 0
	for _, c := range Categories() {
		total += m.ViolationCount(c)
	}
	return total
}

// ScreenshotArtifact is the capture collaborator's output for one viewport.
type ScreenshotArtifact struct {
	Viewport    Viewport  `json:"viewport"`
	LocalPath   string    `json:"local_path"`
	PageTitle   string    `json:"page_title,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
	FromCache   bool      `json:"from_cache,omitempty"`
	UploadedURL string    `json:"uploaded_url,omitempty"`
}

// LLMAnalysis carries the vision model's output plus the flag confirming the
// response passed the visual grounding gate.
type LLMAnalysis struct {
	Content        string `json:"content"`
	Model          string `json:"model"`
	VisionAnalysis bool   `json:"vision_analysis"`
}

// CategoryReport is the synthesized human-readable view of one category.
type CategoryReport struct {
	Summary        string   `json:"summary"`
	Issues         []string `json:"issues"`
	Recommendation string   `json:"recommendation"`
}

// ReportSummary is a derived presentation block computed from DesignMetrics.
type ReportSummary struct {
	TotalIssuesFound int                         `json:"total_issues_found"`
	CriticalIssues   []string                    `json:"critical_issues"`
	Strengths        []string                    `json:"strengths"`
	ImprovementAreas []string                    `json:"improvement_areas"`
	Categories       map[Category]CategoryReport `json:"categories"`
}

// Overall is the aggregated weighted score with its two independent gradings.
type Overall struct {
	Score    float64 `json:"score"`
	Category string  `json:"category"`
	Grade    string  `json:"grade"`
}

// AnalysisResult is the top-level output compiled once per request. Immutable
// once returned; the core retains nothing beyond the response.
type AnalysisResult struct {
	AnalysisID      string               `json:"analysis_id"`
	URL             string               `json:"url"`
	Status          Status               `json:"status"`
	AnalyzedAt      time.Time            `json:"analyzed_at"`
	CompletedAt     time.Time            `json:"completed_at"`
	DurationSeconds float64              `json:"analysis_duration"`
	OverallScore    float64              `json:"overall_score"`
	ScoreCategory   string               `json:"score_category"`
	Grade           string               `json:"grade"`
	ScoresBreakdown map[Category]float64 `json:"scores_breakdown"`
	Metrics         DesignMetrics        `json:"rule_based_metrics"`
	LLMAnalysis     LLMAnalysis          `json:"llm_analysis"`
	Report          ReportSummary        `json:"report_summary"`
	Screenshots     []ScreenshotArtifact `json:"screenshots"`
	WeightsApplied  map[Category]float64 `json:"weights_applied"`
	RulesVersion    string               `json:"rules_version"`
}
