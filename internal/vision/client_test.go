package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/designscore/designscore/internal/analysis"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "shot.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func groundedReply() string {
	return strings.Repeat("The layout is balanced and the color palette reads well on screen. ", 10)
}

func TestGenerateSuccess(t *testing.T) {
	t.Parallel()

	imgPath := writePNG(t, 64, 64)
	var captured generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(generateResponse{Response: groundedReply()})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "llama3.2-vision", 10*time.Second, zap.NewNop())
	out, err := c.Generate(context.Background(), "describe the page", imgPath, "pdf_report")
	require.NoError(t, err)
	require.NotEmpty(t, out)

	require.Equal(t, "llama3.2-vision", captured.Model)
	require.False(t, captured.Stream)
	require.Equal(t, 2500, captured.Options.NumPredict)
	require.InDelta(t, 0.3, captured.Options.Temperature, 1e-9)
	require.Len(t, captured.Images, 1)
	_, err = base64.StdEncoding.DecodeString(captured.Images[0])
	require.NoError(t, err)
}

func TestGenerateEndpointUnreachable(t *testing.T) {
	t.Parallel()

	imgPath := writePNG(t, 8, 8)
	c := NewClient("http://127.0.0.1:1", "m", time.Second, zap.NewNop())
	_, err := c.Generate(context.Background(), "p", imgPath, "quick")
	require.Error(t, err)
	require.Equal(t, analysis.StageVisionAnalysis, analysis.StageOf(err))
}

func TestGenerateNonOKStatus(t *testing.T) {
	t.Parallel()

	imgPath := writePNG(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", time.Second, zap.NewNop())
	_, err := c.Generate(context.Background(), "p", imgPath, "quick")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestGenerateRejectsUngroundedReply(t *testing.T) {
	t.Parallel()

	imgPath := writePNG(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: strings.Repeat("ok ", 100)})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", time.Second, zap.NewNop())
	_, err := c.Generate(context.Background(), "p", imgPath, "quick")
	require.Error(t, err)

	var se *analysis.StageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, analysis.KindValidation, se.Kind)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", time.Second, zap.NewNop())
	require.NoError(t, c.Health(context.Background()))

	down := NewClient("http://127.0.0.1:1", "m", time.Second, zap.NewNop())
	require.Error(t, down.Health(context.Background()))
}

func TestValidateResponseGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"empty", "", true},
		{"short with no vocabulary", strings.Repeat("x", 40), true},
		{"long but ungrounded", strings.Repeat("fine work overall, quite tidy prose here. ", 20), true},
		{
			"long and grounded",
			"the navigation color is clear " + strings.Repeat("and the page reads well in every respect considered ", 11),
			false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateResponse(tt.content)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
