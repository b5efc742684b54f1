package rules

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/designscore/designscore/internal/analysis"
)

const (
	missingViewportPenalty  = 25
	imageScalingThreshold   = 2
	imageScalingPenaltyOnce = 20
)

var responsiveClassHints = []string{
	"img-fluid", "img-responsive", "responsive", "w-full", "max-w-full",
}

// Responsiveness scores viewport configuration and image scaling readiness.
// Decorative images are excluded from the sample; the image penalty fires
// once, only when violations exceed a small threshold.
func Responsiveness(doc *goquery.Document) (analysis.ResponsivenessMetric, error) {
	m := analysis.ResponsivenessMetric{Score: 100}
	if doc == nil {
		return m, nil
	}

	m.ViewportMeta = doc.Find(`meta[name="viewport"]`).Length() > 0
	if !m.ViewportMeta {
		m.Score -= missingViewportPenalty
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if isDecorativeImage(src) {
			return
		}
		if isResponsiveImage(s) {
			return
		}
		alt, _ := s.Attr("alt")
		m.ImageScalingIssues = append(m.ImageScalingIssues, analysis.ImageIssue{Src: src, Alt: alt})
	})

	if len(m.ImageScalingIssues) > imageScalingThreshold {
		m.Score -= imageScalingPenaltyOnce
	}

	m.Score = clampScore(m.Score)
	return m, nil
}

// isResponsiveImage checks for any indicator that the image scales with its
// container: a srcset, a percentage or max-width style, or a known
// responsive class name.
func isResponsiveImage(s *goquery.Selection) bool {
	if srcset, ok := s.Attr("srcset"); ok && strings.TrimSpace(srcset) != "" {
		return true
	}

	style, _ := s.Attr("style")
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if strings.Contains(style, "width:100%") || strings.Contains(style, "max-width") {
		return true
	}

	class, _ := s.Attr("class")
	class = strings.ToLower(class)
	for _, hint := range responsiveClassHints {
		if strings.Contains(class, hint) {
			return true
		}
	}
	return false
}
