package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/designscore/designscore/internal/analysis"
)

const (
	maxImageBytes = 10 * 1024 * 1024
	maxImageW     = 1920
	maxImageH     = 1080
)

// encodeImage loads a screenshot, verifies it is a real PNG or JPEG, scales
// oversized bitmaps down to fit maxImageW x maxImageH, and returns it
// base64-encoded for the vision payload.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindInput,
			"screenshot unreadable", err)
	}
	if len(data) == 0 {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindInput,
			"screenshot file is empty", nil)
	}
	if err := sniffImageFormat(data); err != nil {
		return "", err
	}

	data, err = downscaleIfOversized(data)
	if err != nil {
		return "", err
	}
	if len(data) > maxImageBytes {
		return "", analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindInput,
			fmt.Sprintf("screenshot still exceeds %d bytes after downscaling", maxImageBytes), nil)
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// sniffImageFormat checks the leading magic bytes rather than trusting the
// file extension.
func sniffImageFormat(data []byte) error {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return nil
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return nil
	case bytes.HasPrefix(data, []byte("RIFF")):
		return nil
	}
	return analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindInput,
		"file is not a valid image format", nil)
}

// downscaleIfOversized re-encodes bitmaps that are larger than the model
// accepts, either in pixels or in bytes. Smaller images pass through
// untouched.
func downscaleIfOversized(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// RIFF images (webp) cannot be decoded here; pass through and let
		// the byte cap catch truly oversized files.
		return data, nil
	}
	if cfg.Width <= maxImageW && cfg.Height <= maxImageH && len(data) <= maxImageBytes {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindInput,
			"decode screenshot for downscaling", err)
	}

	b := src.Bounds()
	scale := 1.0
	if s := float64(maxImageW) / float64(b.Dx()); s < scale {
		scale = s
	}
	if s := float64(maxImageH) / float64(b.Dy()); s < scale {
		scale = s
	}
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)

	var buf bytes.Buffer
	if len(data) > maxImageBytes {
		// Large inputs re-encode as JPEG to stay under the byte cap.
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	} else {
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, analysis.NewStageError(analysis.StageVisionAnalysis, analysis.KindInput,
			"re-encode downscaled screenshot", err)
	}
	return buf.Bytes(), nil
}
