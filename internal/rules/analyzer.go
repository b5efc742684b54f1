// Package rules implements the heuristic design-quality extractors: five
// pure scoring functions over parsed HTML and a screenshot bitmap, plus an
// Analyzer that runs them with a partial-failure policy.
package rules

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/designscore/designscore/internal/analysis"
)

// neutralScore replaces a failed category's score so a single broken
// extractor degrades confidence without failing the request.
const neutralScore = 50

// criticalFailureCount aborts the whole rule analysis when reached.
const criticalFailureCount = 3

// Analyzer runs the five metric extractors over one page.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer builds an Analyzer.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger.Named("rules")}
}

// Analyze runs all five extractors and assembles DesignMetrics. Individual
// extractor failures are tolerated up to criticalFailureCount; past that the
// whole analysis is aborted.
func (a *Analyzer) Analyze(ctx context.Context, doc *goquery.Document, imagePath string) (analysis.DesignMetrics, error) {
	if err := ctx.Err(); err != nil {
		return analysis.DesignMetrics{}, err
	}

	img, imgErr := decodeScreenshot(imagePath)
	if imgErr != nil {
		a.logger.Warn("screenshot unreadable, image-based extractors will fail",
			zap.String("path", imagePath), zap.Error(imgErr))
	}

	var m analysis.DesignMetrics
	failed := make(map[analysis.Category]string)

	run := func(c analysis.Category, fn func() error) {
		if err := fn(); err != nil {
			failed[c] = err.Error()
			a.logger.Warn("extractor failed",
				zap.String("category", string(c)), zap.Error(err))
		}
	}

	run(analysis.CategoryTypography, func() error {
		var err error
		m.Typography, err = Typography(doc)
		return err
	})
	run(analysis.CategoryColor, func() error {
		if imgErr != nil {
			return fmt.Errorf("decode screenshot: %w", imgErr)
		}
		var err error
		m.Color, err = Color(img)
		return err
	})
	run(analysis.CategoryLayout, func() error {
		if imgErr != nil {
			return fmt.Errorf("decode screenshot: %w", imgErr)
		}
		var err error
		m.Layout, err = Layout(img)
		return err
	})
	run(analysis.CategoryResponsiveness, func() error {
		var err error
		m.Responsiveness, err = Responsiveness(doc)
		return err
	})
	run(analysis.CategoryAccessibility, func() error {
		var err error
		m.Accessibility, err = Accessibility(doc)
		return err
	})

	if len(failed) >= criticalFailureCount {
		return analysis.DesignMetrics{}, analysis.NewStageError(
			analysis.StageRuleAnalysis, analysis.KindDependency,
			fmt.Sprintf("%d of 5 extractors failed", len(failed)), nil)
	}

	for c, reason := range failed {
		a.applyNeutral(&m, c)
		if m.FailedCategories == nil {
			m.FailedCategories = make(map[analysis.Category]string)
		}
		m.FailedCategories[c] = reason
	}

	return m, nil
}

func (a *Analyzer) applyNeutral(m *analysis.DesignMetrics, c analysis.Category) {
	switch c {
	case analysis.CategoryTypography:
		m.Typography = analysis.TypographyMetric{Score: neutralScore}
	case analysis.CategoryColor:
		m.Color = analysis.ColorMetric{Score: neutralScore}
	case analysis.CategoryLayout:
		m.Layout = analysis.LayoutMetric{Score: neutralScore}
	case analysis.CategoryResponsiveness:
		m.Responsiveness = analysis.ResponsivenessMetric{Score: neutralScore}
	case analysis.CategoryAccessibility:
		m.Accessibility = analysis.AccessibilityMetric{Score: neutralScore}
	}
}

func decodeScreenshot(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}
