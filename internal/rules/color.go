package rules

import (
	"fmt"
	"image"
	"sort"

	"github.com/designscore/designscore/internal/analysis"
)

const (
	paletteSize            = 6
	paletteColorLimit      = 5
	excessColorPenalty     = 10
	saturationLimit        = 0.85
	saturationPenalty      = 15
	paletteSampleBudget    = 20000
	paletteChannelBucketSz = 32
)

// Color scores palette size and saturation from the screenshot bitmap.
func Color(img image.Image) (analysis.ColorMetric, error) {
	if img == nil {
		return analysis.ColorMetric{Score: 100}, nil
	}
	return colorMetricFromPalette(extractPalette(img, paletteSize)), nil
}

// colorMetricFromPalette applies the deduction rules to an already-extracted
// palette.
func colorMetricFromPalette(palette []analysis.PaletteColor) analysis.ColorMetric {
	m := analysis.ColorMetric{
		Score:          100,
		PrimaryPalette: palette,
		ColorCount:     len(palette),
	}

	if m.ColorCount > paletteColorLimit {
		m.Score -= float64((m.ColorCount - paletteColorLimit) * excessColorPenalty)
	}

	for _, c := range palette {
		if saturation(c.RGB) > saturationLimit {
			m.SaturationViolations = append(m.SaturationViolations, c)
			m.Score -= saturationPenalty
		}
	}

	m.Score = clampScore(m.Score)
	return m
}

func saturation(rgb [3]uint8) float64 {
	maxV, minV := rgb[0], rgb[0]
	for _, v := range rgb[1:] {
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
	}
	if maxV == 0 {
		return 0
	}
	return float64(maxV-minV) / float64(maxV)
}

type colorBucket struct {
	count   int
	r, g, b uint64
}

// extractPalette returns up to k dominant colors by bucketed quantization:
// pixels are sampled on a stride, binned into coarse RGB buckets, and the
// most populous buckets are returned as their average color.
func extractPalette(img image.Image, k int) []analysis.PaletteColor {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 || k <= 0 {
		return nil
	}

	step := 1
	for (bounds.Dx()/step)*(bounds.Dy()/step) > paletteSampleBudget {
		step++
	}

	buckets := make(map[uint32]*colorBucket)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r, g, b := uint8(r16>>8), uint8(g16>>8), uint8(b16>>8)
			key := uint32(r/paletteChannelBucketSz)<<16 |
				uint32(g/paletteChannelBucketSz)<<8 |
				uint32(b/paletteChannelBucketSz)
			bk, ok := buckets[key]
			if !ok {
				bk = &colorBucket{}
				buckets[key] = bk
			}
			bk.count++
			bk.r += uint64(r)
			bk.g += uint64(g)
			bk.b += uint64(b)
		}
	}

	ordered := make([]*colorBucket, 0, len(buckets))
	for _, bk := range buckets {
		ordered = append(ordered, bk)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].count > ordered[j].count })
	if len(ordered) > k {
		ordered = ordered[:k]
	}

	palette := make([]analysis.PaletteColor, 0, len(ordered))
	for _, bk := range ordered {
		n := uint64(bk.count)
		rgb := [3]uint8{uint8(bk.r / n), uint8(bk.g / n), uint8(bk.b / n)}
		palette = append(palette, analysis.PaletteColor{
			RGB: rgb,
			Hex: fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]),
		})
	}
	return palette
}
