package orchestrator

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/designscore/designscore/internal/analysis"
	"github.com/designscore/designscore/internal/metrics"
	"github.com/designscore/designscore/internal/publisher/memory"
	"github.com/designscore/designscore/internal/rules"
	"github.com/designscore/designscore/internal/score"
	"github.com/designscore/designscore/internal/sheets"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

const testHTML = `<!DOCTYPE html>
<html>
<head>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Test Page</title>
  <style>body { font-family: Helvetica, Arial, sans-serif; }</style>
</head>
<body>
  <header><nav><a href="/">Home</a></nav></header>
  <main>
    <h1>Welcome</h1>
    <h2>Section</h2>
    <p>A short introductory paragraph.</p>
    <img src="/photo.jpg" alt="A photo" srcset="/photo.jpg 1x">
    <button>Submit</button>
  </main>
  <footer>Footer</footer>
</body>
</html>`

// writeTestScreenshot renders a PNG with roughly 40% near-white pixels so the
// layout extractor sees a balanced whitespace ratio.
func writeTestScreenshot(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 40 {
				img.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 40, G: 60, B: 120, A: 255})
			}
		}
	}
	path := filepath.Join(t.TempDir(), "shot.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

type fakeCapturer struct {
	mu       sync.Mutex
	path     string
	failName string
	captures []string
}

func (c *fakeCapturer) Capture(_ context.Context, url string, vp analysis.Viewport) (analysis.ScreenshotArtifact, error) {
	c.mu.Lock()
	c.captures = append(c.captures, vp.Name)
	c.mu.Unlock()
	if vp.Name == c.failName {
		return analysis.ScreenshotArtifact{}, analysis.NewStageError(
			analysis.StageScreenshotCapture, analysis.KindDependency, "browser crashed", nil)
	}
	return analysis.ScreenshotArtifact{
		Viewport:   vp,
		LocalPath:  c.path,
		PageTitle:  "Test Page",
		CapturedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

type fakeFetcher struct {
	html string
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) (*goquery.Document, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.html))
	if err != nil {
		return nil, "", err
	}
	return doc, f.html, nil
}

type fakeVision struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (v *fakeVision) Generate(_ context.Context, prompt, _, _ string) (string, error) {
	v.mu.Lock()
	v.prompts = append(v.prompts, prompt)
	v.mu.Unlock()
	if v.err != nil {
		return "", v.err
	}
	return v.reply, nil
}

func (v *fakeVision) Model() string { return "llama3.2-vision" }

type fakeBlobStore struct {
	mu    sync.Mutex
	paths []string
}

func (b *fakeBlobStore) PutObject(_ context.Context, objectPath, _ string, _ io.Reader) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, objectPath)
	return "gs://test-bucket/" + objectPath, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fakeIDs struct{}

func (fakeIDs) NewID() (string, error) { return "test-analysis-id", nil }

type fakeHistory struct {
	mu      sync.Mutex
	results []analysis.AnalysisResult
}

func (h *fakeHistory) RecordAnalysis(_ context.Context, result analysis.AnalysisResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
	return nil
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

func testWeights() map[analysis.Category]float64 {
	return map[analysis.Category]float64{
		analysis.CategoryTypography:     0.25,
		analysis.CategoryColor:          0.20,
		analysis.CategoryLayout:         0.25,
		analysis.CategoryResponsiveness: 0.15,
		analysis.CategoryAccessibility:  0.15,
	}
}

func newTestOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Rules == nil {
		deps.Rules = rules.NewAnalyzer(zap.NewNop())
	}
	if deps.Aggregator == nil {
		agg, err := score.NewAggregator(testWeights(), nil)
		require.NoError(t, err)
		deps.Aggregator = agg
	}
	if deps.Clock == nil {
		deps.Clock = &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	}
	if deps.IDs == nil {
		deps.IDs = fakeIDs{}
	}
	o, err := New(deps, Config{
		StoragePrefix: "website-screenshots",
		Topic:         "analysis-completed",
		RulesVersion:  "1.0",
		Weights:       testWeights(),
	})
	require.NoError(t, err)
	return o
}

func TestAnalyzeCompleted(t *testing.T) {
	t.Parallel()

	shot := writeTestScreenshot(t)
	capturer := &fakeCapturer{path: shot}
	vision := &fakeVision{reply: "The screenshot shows a clean, well organized layout with readable text and visible navigation elements. " + strings.Repeat("More visual observations. ", 10)}
	appender := sheets.NewMemoryAppender()
	pub := memory.New()
	history := &fakeHistory{}

	o := newTestOrchestrator(t, Deps{
		Capturer:  capturer,
		Fetcher:   &fakeFetcher{html: testHTML},
		Vision:    vision,
		Sheets:    appender,
		Publisher: pub,
		History:   history,
	})

	result, err := o.Analyze(context.Background(), "example.com", Options{
		IncludeMobile: true,
		LogToSheets:   true,
	})
	require.NoError(t, err)

	require.Equal(t, analysis.StatusCompleted, result.Status)
	require.Equal(t, "test-analysis-id", result.AnalysisID)
	require.Equal(t, "https://example.com", result.URL)
	require.GreaterOrEqual(t, result.OverallScore, 0.0)
	require.LessOrEqual(t, result.OverallScore, 100.0)
	require.Len(t, result.Screenshots, 2)
	require.Len(t, result.ScoresBreakdown, 5)
	require.True(t, result.LLMAnalysis.VisionAnalysis)
	require.Equal(t, "llama3.2-vision", result.LLMAnalysis.Model)
	require.NotEmpty(t, result.Report.Categories)
	require.Greater(t, result.DurationSeconds, 0.0)

	// Both viewports captured, prompt carried the URL.
	require.ElementsMatch(t, []string{"desktop", "mobile"}, capturer.captures)
	require.Len(t, vision.prompts, 1)
	require.Contains(t, vision.prompts[0], "https://example.com")

	// Sinks are delivered in the background.
	require.Eventually(t, func() bool {
		return len(appender.Rows()) == 1 && len(pub.Messages()) == 1 && history.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	event, ok := pub.Messages()[0].Payload.(CompletionEvent)
	require.True(t, ok)
	require.Equal(t, result.AnalysisID, event.AnalysisID)
	require.Equal(t, result.OverallScore, event.OverallScore)
}

func TestAnalyzeVisionFailureIsFatal(t *testing.T) {
	t.Parallel()

	shot := writeTestScreenshot(t)
	appender := sheets.NewMemoryAppender()
	visionErr := analysis.NewStageError(
		analysis.StageVisionAnalysis, analysis.KindDependency, "ollama unreachable", nil)

	o := newTestOrchestrator(t, Deps{
		Capturer: &fakeCapturer{path: shot},
		Fetcher:  &fakeFetcher{html: testHTML},
		Vision:   &fakeVision{err: visionErr},
		Sheets:   appender,
	})

	result, err := o.Analyze(context.Background(), "https://example.com", Options{LogToSheets: true})
	require.Error(t, err)
	require.Equal(t, analysis.StageVisionAnalysis, analysis.StageOf(err))

	// No partial result is produced.
	require.Equal(t, analysis.AnalysisResult{}, result)
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, appender.Rows())
}

func TestAnalyzeDesktopCaptureFailureIsFatal(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, Deps{
		Capturer: &fakeCapturer{failName: "desktop"},
		Fetcher:  &fakeFetcher{html: testHTML},
		Vision:   &fakeVision{reply: "ok"},
	})

	_, err := o.Analyze(context.Background(), "https://example.com", Options{})
	require.Error(t, err)
	require.Equal(t, analysis.StageScreenshotCapture, analysis.StageOf(err))
}

func TestAnalyzeDesktopFailureWithMobileFailsAtVision(t *testing.T) {
	t.Parallel()

	shot := writeTestScreenshot(t)
	o := newTestOrchestrator(t, Deps{
		Capturer: &fakeCapturer{path: shot, failName: "desktop"},
		Fetcher:  &fakeFetcher{html: testHTML},
		Vision:   &fakeVision{reply: "ok"},
	})

	_, err := o.Analyze(context.Background(), "https://example.com", Options{IncludeMobile: true})
	require.Error(t, err)
	require.Equal(t, analysis.StageVisionAnalysis, analysis.StageOf(err))
	require.Contains(t, err.Error(), "desktop screenshot required")
}

func TestAnalyzeMobileCaptureFailureIsTolerated(t *testing.T) {
	t.Parallel()

	shot := writeTestScreenshot(t)
	o := newTestOrchestrator(t, Deps{
		Capturer: &fakeCapturer{path: shot, failName: "mobile"},
		Fetcher:  &fakeFetcher{html: testHTML},
		Vision:   &fakeVision{reply: "The visible layout is clean and the screenshot shows consistent colors throughout."},
	})

	result, err := o.Analyze(context.Background(), "https://example.com", Options{IncludeMobile: true})
	require.NoError(t, err)
	require.Len(t, result.Screenshots, 1)
	require.Equal(t, "desktop", result.Screenshots[0].Viewport.Name)
}

func TestAnalyzeFetchFailureIsFatal(t *testing.T) {
	t.Parallel()

	shot := writeTestScreenshot(t)
	fetchErr := analysis.NewStageError(
		analysis.StageHTMLFetch, analysis.KindDependency, "connection refused", nil)
	o := newTestOrchestrator(t, Deps{
		Capturer: &fakeCapturer{path: shot},
		Fetcher:  &fakeFetcher{err: fetchErr},
		Vision:   &fakeVision{reply: "ok"},
	})

	_, err := o.Analyze(context.Background(), "https://example.com", Options{})
	require.Error(t, err)
	require.Equal(t, analysis.StageHTMLFetch, analysis.StageOf(err))
}

func TestAnalyzeEmptyURL(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, Deps{
		Capturer: &fakeCapturer{},
		Fetcher:  &fakeFetcher{html: testHTML},
		Vision:   &fakeVision{reply: "ok"},
	})

	_, err := o.Analyze(context.Background(), "   ", Options{})
	require.Error(t, err)
	require.True(t, analysis.IsInputError(err))
}

func TestCaptureOnly(t *testing.T) {
	t.Parallel()

	shot := writeTestScreenshot(t)
	o := newTestOrchestrator(t, Deps{
		Capturer: &fakeCapturer{path: shot},
		Fetcher:  &fakeFetcher{html: testHTML},
		Vision:   &fakeVision{reply: "ok"},
	})

	shots, err := o.CaptureOnly(context.Background(), "example.com",
		[]analysis.Viewport{analysis.ViewportDesktop, analysis.ViewportMobile}, false)
	require.NoError(t, err)
	require.Len(t, shots, 2)
	require.Equal(t, shot, shots[0].LocalPath)

	// Defaults to desktop when no viewport is named.
	shots, err = o.CaptureOnly(context.Background(), "example.com", nil, false)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	require.Equal(t, "desktop", shots[0].Viewport.Name)
}

func TestCaptureOnlyFailureIsFatal(t *testing.T) {
	t.Parallel()

	shot := writeTestScreenshot(t)
	o := newTestOrchestrator(t, Deps{
		Capturer: &fakeCapturer{path: shot, failName: "mobile"},
		Fetcher:  &fakeFetcher{html: testHTML},
		Vision:   &fakeVision{reply: "ok"},
	})

	_, err := o.CaptureOnly(context.Background(), "example.com",
		[]analysis.Viewport{analysis.ViewportDesktop, analysis.ViewportMobile}, false)
	require.Error(t, err)
	require.Equal(t, analysis.StageScreenshotCapture, analysis.StageOf(err))
}

func TestAnalyzeUploadsArtifacts(t *testing.T) {
	t.Parallel()

	shot := writeTestScreenshot(t)
	blobs := &fakeBlobStore{}
	o := newTestOrchestrator(t, Deps{
		Capturer: &fakeCapturer{path: shot},
		Fetcher:  &fakeFetcher{html: testHTML},
		Vision:   &fakeVision{reply: "The screenshot shows a clean and visible layout with readable text."},
		Blobs:    blobs,
	})

	result, err := o.Analyze(context.Background(), "https://example.com", Options{
		IncludeMobile:   true,
		UploadArtifacts: true,
	})
	require.NoError(t, err)

	require.Len(t, blobs.paths, 2)
	require.Contains(t, blobs.paths, "website-screenshots/test-analysis-id/desktop.png")
	require.Contains(t, blobs.paths, "website-screenshots/test-analysis-id/mobile.png")
	for _, s := range result.Screenshots {
		require.True(t, strings.HasPrefix(s.UploadedURL, "gs://test-bucket/"))
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		want string
		mut  func(*Deps)
	}{
		{"capturer", "capturer is required", func(d *Deps) { d.Capturer = nil }},
		{"fetcher", "fetcher is required", func(d *Deps) { d.Fetcher = nil }},
		{"vision", "vision client is required", func(d *Deps) { d.Vision = nil }},
		{"clock", "clock is required", func(d *Deps) { d.Clock = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			agg, err := score.NewAggregator(testWeights(), nil)
			require.NoError(t, err)
			deps := Deps{
				Capturer:   &fakeCapturer{},
				Fetcher:    &fakeFetcher{html: testHTML},
				Rules:      rules.NewAnalyzer(zap.NewNop()),
				Aggregator: agg,
				Vision:     &fakeVision{},
				Clock:      &fixedClock{now: time.Now()},
				IDs:        fakeIDs{},
			}
			tc.mut(&deps)
			_, err = New(deps, Config{})
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
