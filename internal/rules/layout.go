package rules

import (
	"image"

	"github.com/designscore/designscore/internal/analysis"
)

const (
	whitespaceBrightness = 240
	denseRatioFloor      = 0.3
	sparseRatioCeiling   = 0.5
	densePenalty         = 30
	sparsePenalty        = 15
)

// Layout scores how much of the screenshot reads as whitespace. The ratio is
// the fraction of near-white grayscale pixels over the full bitmap.
func Layout(img image.Image) (analysis.LayoutMetric, error) {
	if img == nil {
		return analysis.LayoutMetric{Score: 100}, nil
	}

	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return analysis.LayoutMetric{Score: 100}, nil
	}

	light := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma on 8-bit channels.
			luma := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
			if luma > whitespaceBrightness {
				light++
			}
		}
	}

	return layoutFromRatio(float64(light) / float64(total)), nil
}

// layoutFromRatio applies the whitespace deduction rules. The 0.3 and 0.5
// boundaries themselves incur no penalty.
func layoutFromRatio(ratio float64) analysis.LayoutMetric {
	m := analysis.LayoutMetric{Score: 100, WhitespaceRatio: ratio}
	switch {
	case ratio < denseRatioFloor:
		m.Violations = append(m.Violations, "layout too dense: insufficient whitespace")
		m.Score -= densePenalty
	case ratio > sparseRatioCeiling:
		m.Violations = append(m.Violations, "layout too sparse: excessive whitespace")
		m.Score -= sparsePenalty
	}
	m.Score = clampScore(m.Score)
	return m
}
