package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/designscore/designscore/internal/analysis"
)

func healthyMetrics() analysis.DesignMetrics {
	return analysis.DesignMetrics{
		Typography:     analysis.TypographyMetric{Score: 95},
		Color:          analysis.ColorMetric{Score: 85},
		Layout:         analysis.LayoutMetric{Score: 92, WhitespaceRatio: 0.4},
		Responsiveness: analysis.ResponsivenessMetric{Score: 88, ViewportMeta: true},
		Accessibility:  analysis.AccessibilityMetric{Score: 90},
	}
}

func strugglingMetrics() analysis.DesignMetrics {
	return analysis.DesignMetrics{
		Typography: analysis.TypographyMetric{
			Score:               60,
			HierarchyViolations: []string{"h1 followed by h3"},
			LongParagraphs:      2,
		},
		Color: analysis.ColorMetric{
			Score:                55,
			ColorCount:           7,
			SaturationViolations: []analysis.PaletteColor{{RGB: [3]uint8{255, 0, 0}}},
		},
		Layout: analysis.LayoutMetric{
			Score:           70,
			WhitespaceRatio: 0.2,
			Violations:      []string{"layout too dense: insufficient whitespace"},
		},
		Responsiveness: analysis.ResponsivenessMetric{
			Score:              50,
			ImageScalingIssues: []analysis.ImageIssue{{Src: "/a.jpg"}, {Src: "/b.jpg"}, {Src: "/c.jpg"}},
		},
		Accessibility: analysis.AccessibilityMetric{
			Score:          25,
			MissingAltText: []string{"/a.jpg", "/b.jpg", "/c.jpg", "/d.jpg"},
		},
	}
}

func TestSynthesizeHealthySite(t *testing.T) {
	t.Parallel()

	s := Synthesize(healthyMetrics())
	require.Zero(t, s.TotalIssuesFound)
	require.Empty(t, s.CriticalIssues)
	require.Empty(t, s.ImprovementAreas)
	require.Len(t, s.Strengths, 5)
	require.Len(t, s.Categories, 5)
	require.Contains(t, s.Categories[analysis.CategoryTypography].Summary, "clean")
}

func TestSynthesizeStrugglingSite(t *testing.T) {
	t.Parallel()

	s := Synthesize(strugglingMetrics())
	require.Equal(t, 12, s.TotalIssuesFound)
	require.Equal(t, []string{"Poor accessibility compliance"}, s.CriticalIssues)
	require.Equal(t, []string{defaultStrength}, s.Strengths)
	require.ElementsMatch(t,
		[]string{"typography", "color", "responsiveness", "accessibility"},
		s.ImprovementAreas)

	access := s.Categories[analysis.CategoryAccessibility]
	require.Contains(t, access.Summary, "poor")
	require.Contains(t, access.Issues[0], "4 content images missing alt text")
}

func TestSynthesizeIsIdempotent(t *testing.T) {
	t.Parallel()

	m := strugglingMetrics()
	first := Synthesize(m)
	second := Synthesize(m)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestSynthesizeIssueBreakdown(t *testing.T) {
	t.Parallel()

	s := Synthesize(strugglingMetrics())

	typ := s.Categories[analysis.CategoryTypography]
	require.Contains(t, typ.Issues[0], "1 heading hierarchy violations")
	require.Contains(t, typ.Issues[1], "2 paragraphs")

	col := s.Categories[analysis.CategoryColor]
	require.Contains(t, col.Issues[0], "7 dominant colors")
	require.Contains(t, col.Issues[1], "1 colors are oversaturated")
}
