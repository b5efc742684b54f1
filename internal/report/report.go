// Package report derives the human-readable summary block from completed
// rule metrics. Pure and deterministic: identical metrics always produce
// identical text.
package report

import (
	"fmt"

	"github.com/designscore/designscore/internal/analysis"
)

const (
	strengthScoreFloor   = 80
	improvementScoreCeil = 70
	criticalScoreCeil    = 30
	defaultStrength      = "Site provides basic functionality"
	excellentBand        = 90
	acceptableBand       = 70
)

// Synthesize builds the report summary for a completed analysis.
func Synthesize(m analysis.DesignMetrics) analysis.ReportSummary {
	s := analysis.ReportSummary{
		TotalIssuesFound: m.TotalViolations(),
		Categories:       make(map[analysis.Category]analysis.CategoryReport, 5),
	}

	for _, c := range analysis.Categories() {
		score := m.Score(c)

		if score < criticalScoreCeil {
			s.CriticalIssues = append(s.CriticalIssues, criticalLabel(c))
		}
		if score >= strengthScoreFloor {
			s.Strengths = append(s.Strengths, strengthLabel(c))
		}
		if score < improvementScoreCeil {
			s.ImprovementAreas = append(s.ImprovementAreas, string(c))
		}

		s.Categories[c] = categoryReport(c, m)
	}

	if len(s.Strengths) == 0 {
		s.Strengths = append(s.Strengths, defaultStrength)
	}
	return s
}

func criticalLabel(c analysis.Category) string {
	switch c {
	case analysis.CategoryAccessibility:
		return "Poor accessibility compliance"
	case analysis.CategoryResponsiveness:
		return "Poor mobile readiness"
	default:
		return fmt.Sprintf("Poor %s quality", c)
	}
}

func strengthLabel(c analysis.Category) string {
	return fmt.Sprintf("Excellent %s", c)
}

func categoryReport(c analysis.Category, m analysis.DesignMetrics) analysis.CategoryReport {
	switch c {
	case analysis.CategoryTypography:
		return typographyReport(m.Typography)
	case analysis.CategoryColor:
		return colorReport(m.Color)
	case analysis.CategoryLayout:
		return layoutReport(m.Layout)
	case analysis.CategoryResponsiveness:
		return responsivenessReport(m.Responsiveness)
	default:
		return accessibilityReport(m.Accessibility)
	}
}

// band selects one of three template strings by score.
func band(score float64, excellent, acceptable, poor string) string {
	switch {
	case score >= excellentBand:
		return excellent
	case score >= acceptableBand:
		return acceptable
	default:
		return poor
	}
}

func typographyReport(t analysis.TypographyMetric) analysis.CategoryReport {
	r := analysis.CategoryReport{
		Summary: band(t.Score,
			"Typography is clean with a consistent heading structure.",
			"Typography is serviceable but has room for refinement.",
			"Typography needs significant attention."),
	}
	if len(t.HierarchyViolations) > 0 {
		r.Issues = append(r.Issues,
			fmt.Sprintf("%d heading hierarchy violations (levels skipped)", len(t.HierarchyViolations)))
	}
	if t.LongParagraphs > 0 {
		r.Issues = append(r.Issues,
			fmt.Sprintf("%d paragraphs exceed comfortable reading length", t.LongParagraphs))
	}
	if len(t.FallbackViolations) > 0 {
		r.Issues = append(r.Issues,
			fmt.Sprintf("%d font-family declarations lack fallback fonts", len(t.FallbackViolations)))
	}
	r.Recommendation = band(t.Score,
		"Maintain the current type system.",
		"Tighten the heading hierarchy and add font fallbacks.",
		"Restructure heading levels, shorten long paragraphs, and define font stacks with fallbacks.")
	return r
}

func colorReport(c analysis.ColorMetric) analysis.CategoryReport {
	r := analysis.CategoryReport{
		Summary: band(c.Score,
			"Color palette is restrained and harmonious.",
			"Color usage is acceptable with minor excesses.",
			"Color palette undermines the design."),
	}
	if c.ColorCount > 5 {
		r.Issues = append(r.Issues,
			fmt.Sprintf("palette contains %d dominant colors, above the recommended 5", c.ColorCount))
	}
	if len(c.SaturationViolations) > 0 {
		r.Issues = append(r.Issues,
			fmt.Sprintf("%d colors are oversaturated", len(c.SaturationViolations)))
	}
	r.Recommendation = band(c.Score,
		"Keep the palette as-is.",
		"Consolidate near-duplicate colors into a smaller palette.",
		"Reduce the palette to 3-5 colors and soften highly saturated tones.")
	return r
}

func layoutReport(l analysis.LayoutMetric) analysis.CategoryReport {
	r := analysis.CategoryReport{
		Summary: band(l.Score,
			"Layout balances content and whitespace well.",
			"Layout density is workable but not ideal.",
			"Layout density hurts readability."),
	}
	for _, v := range l.Violations {
		r.Issues = append(r.Issues, v)
	}
	r.Recommendation = band(l.Score,
		"Preserve the current spacing system.",
		"Adjust section spacing toward a 30-50% whitespace ratio.",
		"Rework page spacing: aim for a whitespace ratio between 0.3 and 0.5.")
	return r
}

func responsivenessReport(rm analysis.ResponsivenessMetric) analysis.CategoryReport {
	r := analysis.CategoryReport{
		Summary: band(rm.Score,
			"Page carries the responsive fundamentals.",
			"Responsive support is partial.",
			"Page lacks responsive behavior."),
	}
	if !rm.ViewportMeta {
		r.Issues = append(r.Issues, "missing viewport meta tag")
	}
	if len(rm.ImageScalingIssues) > 0 {
		r.Issues = append(r.Issues,
			fmt.Sprintf("%d images lack responsive sizing", len(rm.ImageScalingIssues)))
	}
	r.Recommendation = band(rm.Score,
		"Continue testing across breakpoints.",
		"Add srcset or fluid widths to fixed-size images.",
		"Add a viewport meta tag and make images scale with their containers.")
	return r
}

func accessibilityReport(a analysis.AccessibilityMetric) analysis.CategoryReport {
	r := analysis.CategoryReport{
		Summary: band(a.Score,
			"Accessibility fundamentals are in place.",
			"Accessibility coverage is partial.",
			"Accessibility compliance is poor."),
	}
	if len(a.MissingAltText) > 0 {
		r.Issues = append(r.Issues,
			fmt.Sprintf("%d content images missing alt text", len(a.MissingAltText)))
	}
	for _, issue := range a.SemanticHTMLIssues {
		r.Issues = append(r.Issues, issue)
	}
	if len(a.ARIAViolations) > 0 {
		r.Issues = append(r.Issues,
			fmt.Sprintf("%d buttons lack an accessible label", len(a.ARIAViolations)))
	}
	r.Recommendation = band(a.Score,
		"Keep alt text and landmarks current as content changes.",
		"Fill in missing alt text and label icon-only buttons.",
		"Add alt text to content images, introduce semantic landmarks, and label every interactive control.")
	return r
}
