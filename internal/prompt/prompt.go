// Package prompt builds the natural-language prompts sent to the vision
// model, with per-analysis-type length budgets.
package prompt

import (
	"fmt"

	"github.com/designscore/designscore/internal/analysis"
)

// AnalysisType selects the depth and length budget of a vision analysis.
type AnalysisType string

// Supported analysis types.
const (
	TypePDFReport AnalysisType = "pdf_report"
	TypeQuick     AnalysisType = "quick"
	TypeDetailed  AnalysisType = "detailed"
)

// Budget bounds a vision response: token cap for generation, character
// bounds for validation.
type Budget struct {
	MaxTokens   int
	MinChars    int
	TargetChars int
}

var budgets = map[AnalysisType]Budget{
	TypePDFReport: {MaxTokens: 2500, MinChars: 1500, TargetChars: 3000},
	TypeQuick:     {MaxTokens: 800, MinChars: 400, TargetChars: 1600},
	TypeDetailed:  {MaxTokens: 1800, MinChars: 400, TargetChars: 2400},
}

// BudgetFor returns the budget for t, defaulting to the PDF report budget
// for unknown types.
func BudgetFor(t AnalysisType) Budget {
	if b, ok := budgets[t]; ok {
		return b
	}
	return budgets[TypePDFReport]
}

// RequiredReportSections are the section headers a full report response must
// cover, in order.
var RequiredReportSections = []string{
	"EXECUTIVE SUMMARY",
	"TYPOGRAPHY & READABILITY",
	"COLOR & VISUAL DESIGN",
	"LAYOUT & STRUCTURE",
	"RESPONSIVENESS & UX",
	"ACCESSIBILITY & COMPLIANCE",
	"ACTIONABLE RECOMMENDATIONS",
}

// Build returns the prompt for the given analysis type.
func Build(t AnalysisType, url string, m analysis.DesignMetrics) string {
	switch t {
	case TypeQuick:
		return buildQuick(url)
	case TypeDetailed:
		return buildDetailed(url, m)
	default:
		return buildReport(url, m)
	}
}

func scoreLine(m analysis.DesignMetrics) string {
	return fmt.Sprintf(
		"Typography: %.0f/100 | Color: %.0f/100 | Layout: %.0f/100 | Responsiveness: %.0f/100 | Accessibility: %.0f/100",
		m.Typography.Score, m.Color.Score, m.Layout.Score,
		m.Responsiveness.Score, m.Accessibility.Score)
}

func buildReport(url string, m analysis.DesignMetrics) string {
	b := budgets[TypePDFReport]
	return fmt.Sprintf(`You are a senior UI/UX design consultant creating a design audit report for: %s

CRITICAL: Analyze the provided screenshot image. Base every observation on what you can actually SEE in it. Reference specific colors, spacing, text, and design elements.

RESPONSE LENGTH: target %d characters, minimum %d characters, maximum %d tokens.

Structure the report with these markdown sections, in order:

## 1. EXECUTIVE SUMMARY
Overall design quality, primary visual impression, 2-3 key strengths, 2-3 critical improvement areas.

## 2. TYPOGRAPHY & READABILITY (current score: %.0f/100)
Font choices, text hierarchy, readability and contrast, specific recommendations.

## 3. COLOR & VISUAL DESIGN (current score: %.0f/100)
Color scheme harmony, brand consistency, visual appeal, specific recommendations.

## 4. LAYOUT & STRUCTURE (current score: %.0f/100)
Grid alignment, visual hierarchy, white space utilization, specific improvements.

## 5. RESPONSIVENESS & UX (current score: %.0f/100)
Mobile-first indicators, navigation clarity, call-to-action effectiveness.

## 6. ACCESSIBILITY & COMPLIANCE (current score: %.0f/100)
Visual accessibility, contrast for all users, improvement priorities.

## 7. ACTIONABLE RECOMMENDATIONS
Prioritized as HIGH PRIORITY, MEDIUM PRIORITY, ENHANCEMENT, with specific actionable items.

Write in a professional consulting tone and start by confirming what you can see in the screenshot.`,
		url, b.TargetChars, b.MinChars, b.MaxTokens,
		m.Typography.Score, m.Color.Score, m.Layout.Score,
		m.Responsiveness.Score, m.Accessibility.Score)
}

func buildDetailed(url string, m analysis.DesignMetrics) string {
	b := budgets[TypeDetailed]
	return fmt.Sprintf(`You are an expert UI/UX designer with vision capabilities analyzing a SCREENSHOT of this website: %s

CRITICAL: You MUST look at the provided screenshot image. Your analysis must be based entirely on what you can SEE.

RESPONSE LENGTH: %d-%d characters, maximum %d tokens.

1. SCREENSHOT VERIFICATION: confirm you can see the screenshot and describe the header, main content, and dominant colors.
2. VISUAL LAYOUT: hierarchy, grid alignment, spacing consistency, balance (rate 1-10).
3. TYPOGRAPHY: font choices, sizing, hierarchy, and text contrast you can observe.
4. COLOR: scheme harmony, contrast, visual emphasis, brand consistency.
5. UI/UX ELEMENTS: navigation clarity, button design, call-to-action effectiveness.
6. TECHNICAL OBSERVATIONS: visual bugs, alignment issues, accessibility indicators.

AUTOMATED METRICS FOR REFERENCE:
%s

Finish with a final visual quality score (1-10) and the top three improvements. Mention specific visual elements, colors, text, and layout details you observe.`,
		url, b.MinChars, b.TargetChars, b.MaxTokens, scoreLine(m))
}

func buildQuick(url string) string {
	b := budgets[TypeQuick]
	return fmt.Sprintf(`Analyze this website screenshot for: %s

You are a UX expert. Look at the screenshot and provide:

RESPONSE LIMITS: %d-%d characters, maximum %d tokens.

1. Visual confirmation: confirm you can see the screenshot and describe what is visible.
2. Quick assessment: rate the design quality (1-10) for layout, color and typography, and overall user experience.
3. Key observations: 2-3 specific visual elements you notice.
4. Improvement suggestion: one main recommendation.

Keep it concise, and demonstrate you are actually seeing the screenshot by mentioning specific visual details.`,
		url, b.MinChars, b.TargetChars, b.MaxTokens)
}
