package rules

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/designscore/designscore/internal/analysis"
)

const (
	missingAltThreshold   = 3
	missingAltPenalty     = 10
	unlabeledBtnThreshold = 2
	unlabeledBtnPenalty   = 15
)

// semanticLandmarks lists required landmark tags with descending penalty
// weights; a page missing <main> loses the most.
var semanticLandmarks = []struct {
	tag     string
	penalty float64
}{
	{"main", 20},
	{"header", 15},
	{"footer", 10},
	{"nav", 5},
}

// Accessibility scores alt-text coverage, semantic landmark presence, and
// button labeling. Alt and button penalties only fire past a threshold count
// so a single sloppy tag does not sink the category.
func Accessibility(doc *goquery.Document) (analysis.AccessibilityMetric, error) {
	m := analysis.AccessibilityMetric{Score: 100}
	if doc == nil {
		return m, nil
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if isDecorativeImage(src) {
			return
		}
		if alt, ok := s.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			m.MissingAltText = append(m.MissingAltText, src)
		}
	})
	if n := len(m.MissingAltText); n > missingAltThreshold {
		m.Score -= float64(n * missingAltPenalty)
	}

	for _, lm := range semanticLandmarks {
		if doc.Find(lm.tag).Length() == 0 {
			m.SemanticHTMLIssues = append(m.SemanticHTMLIssues,
				fmt.Sprintf("missing <%s> landmark", lm.tag))
			m.Score -= lm.penalty
		}
	}

	doc.Find("button").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "" {
			return
		}
		if label, ok := s.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
			return
		}
		m.ARIAViolations = append(m.ARIAViolations, "button without accessible label")
	})
	if n := len(m.ARIAViolations); n > unlabeledBtnThreshold {
		m.Score -= float64(n * unlabeledBtnPenalty)
	}

	m.Score = clampScore(m.Score)
	return m, nil
}
