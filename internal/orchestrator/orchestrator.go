// Package orchestrator runs the end-to-end analysis pipeline: screenshot
// capture, HTML fetch, rule extraction, score aggregation, vision analysis,
// and report synthesis, followed by best-effort delivery to the external
// sinks (spreadsheet log, history database, completion events).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/designscore/designscore/internal/analysis"
	"github.com/designscore/designscore/internal/fetcher"
	"github.com/designscore/designscore/internal/metrics"
	"github.com/designscore/designscore/internal/prompt"
	"github.com/designscore/designscore/internal/report"
	"github.com/designscore/designscore/internal/rules"
	"github.com/designscore/designscore/internal/score"
)

// sinkTimeout bounds the background delivery of one completed analysis to
// the optional sinks after the response has been returned.
const sinkTimeout = 30 * time.Second

// Options control per-request pipeline behavior.
type Options struct {
	IncludeMobile   bool
	LogToSheets     bool
	AnalysisType    prompt.AnalysisType
	UploadArtifacts bool
}

// Deps collects the pipeline collaborators. Capturer, Fetcher, Rules,
// Aggregator, Vision, Clock, and IDs are required; the sink collaborators
// (Blobs, Sheets, History, Publisher) are optional and skipped when nil.
type Deps struct {
	Capturer   analysis.Capturer
	Fetcher    analysis.PageFetcher
	Rules      *rules.Analyzer
	Aggregator *score.Aggregator
	Vision     analysis.VisionClient
	Blobs      analysis.BlobStore
	Sheets     analysis.RowAppender
	History    analysis.HistoryStore
	Publisher  analysis.Publisher
	Clock      analysis.Clock
	IDs        analysis.IDGenerator
	Logger     *zap.Logger
}

// Config holds the static pipeline settings.
type Config struct {
	StoragePrefix string
	ContentType   string
	Topic         string
	RulesVersion  string
	Weights       map[analysis.Category]float64
}

// Orchestrator coordinates one analysis request at a time per call; it is
// safe for concurrent use.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// CompletionEvent is the payload published after a successful analysis.
type CompletionEvent struct {
	AnalysisID   string    `json:"analysis_id"`
	URL          string    `json:"url"`
	OverallScore float64   `json:"overall_score"`
	Grade        string    `json:"grade"`
	Status       string    `json:"status"`
	CompletedAt  time.Time `json:"completed_at"`
}

// New validates the required collaborators and returns an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Capturer == nil:
		return nil, fmt.Errorf("capturer is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Rules == nil:
		return nil, fmt.Errorf("rule analyzer is required")
	case deps.Aggregator == nil:
		return nil, fmt.Errorf("score aggregator is required")
	case deps.Vision == nil:
		return nil, fmt.Errorf("vision client is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "image/png"
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger.Named("orchestrator")}, nil
}

// Analyze runs the full pipeline for one URL. Any stage failure aborts the
// run with no partial result; the returned error carries the failing stage.
func (o *Orchestrator) Analyze(ctx context.Context, rawURL string, opts Options) (analysis.AnalysisResult, error) {
	url := fetcher.NormalizeURL(rawURL)
	if url == "" {
		return analysis.AnalysisResult{}, o.fail(url, analysis.NewStageError(
			analysis.StageHTMLFetch, analysis.KindInput, "url is required", nil))
	}
	if opts.AnalysisType == "" {
		opts.AnalysisType = prompt.TypePDFReport
	}

	id, err := o.deps.IDs.NewID()
	if err != nil {
		return analysis.AnalysisResult{}, o.fail(url, analysis.NewStageError(
			analysis.StageMasterAnalysis, analysis.KindDependency, "generate analysis id", err))
	}

	start := o.deps.Clock.Now().UTC()
	logger := o.logger.With(zap.String("analysis_id", id), zap.String("url", url))
	logger.Info("analysis started", zap.Bool("include_mobile", opts.IncludeMobile))

	metrics.IncActiveAnalyses()
	defer metrics.DecActiveAnalyses()

	shots, err := o.captureScreenshots(ctx, url, opts.IncludeMobile, logger)
	if err != nil {
		return analysis.AnalysisResult{}, o.fail(url, err)
	}
	// The rule extractors can work from any captured viewport, but the
	// vision model reviews the desktop rendering specifically.
	primary := shots[0]
	desktopPath := ""
	for _, s := range shots {
		if s.Viewport.Name == analysis.ViewportDesktop.Name {
			desktopPath = s.LocalPath
		}
	}

	doc, _, err := o.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		return analysis.AnalysisResult{}, o.fail(url, err)
	}

	designMetrics, err := o.deps.Rules.Analyze(ctx, doc, primary.LocalPath)
	if err != nil {
		return analysis.AnalysisResult{}, o.fail(url, err)
	}

	overall := o.deps.Aggregator.Aggregate(designMetrics)
	promptText := prompt.Build(opts.AnalysisType, url, designMetrics)

	if desktopPath == "" {
		return analysis.AnalysisResult{}, o.fail(url, analysis.NewStageError(
			analysis.StageVisionAnalysis, analysis.KindDependency,
			"desktop screenshot required for vision analysis", nil))
	}

	visionStart := time.Now()
	content, err := o.deps.Vision.Generate(ctx, promptText, desktopPath, string(opts.AnalysisType))
	metrics.ObserveVisionRequest(time.Since(visionStart))
	if err != nil {
		return analysis.AnalysisResult{}, o.fail(url, err)
	}

	if opts.UploadArtifacts && o.deps.Blobs != nil {
		o.uploadArtifacts(ctx, id, shots, logger)
	}

	completed := o.deps.Clock.Now().UTC()
	result := analysis.AnalysisResult{
		AnalysisID:      id,
		URL:             url,
		Status:          analysis.StatusCompleted,
		AnalyzedAt:      start,
		CompletedAt:     completed,
		DurationSeconds: round2(completed.Sub(start).Seconds()),
		OverallScore:    overall.Score,
		ScoreCategory:   overall.Category,
		Grade:           overall.Grade,
		ScoresBreakdown: o.deps.Aggregator.Breakdown(designMetrics),
		Metrics:         designMetrics,
		LLMAnalysis: analysis.LLMAnalysis{
			Content:        content,
			Model:          o.deps.Vision.Model(),
			VisionAnalysis: true,
		},
		Report:         report.Synthesize(designMetrics),
		Screenshots:    shots,
		WeightsApplied: o.cfg.Weights,
		RulesVersion:   o.cfg.RulesVersion,
	}

	metrics.ObserveAnalysis(url, string(analysis.StatusCompleted), completed.Sub(start))
	metrics.ObserveOverallScore(overall.Score)
	logger.Info("analysis completed",
		zap.Float64("overall_score", overall.Score),
		zap.String("grade", overall.Grade),
		zap.Float64("duration_seconds", result.DurationSeconds))

	o.deliver(result, opts.LogToSheets, logger)
	return result, nil
}

// CaptureOnly captures the requested viewports without running the analysis
// pipeline. Unlike Analyze, any capture failure is fatal here: the caller
// asked for exactly these screenshots.
func (o *Orchestrator) CaptureOnly(ctx context.Context, rawURL string, viewports []analysis.Viewport, upload bool) ([]analysis.ScreenshotArtifact, error) {
	url := fetcher.NormalizeURL(rawURL)
	if url == "" {
		return nil, o.fail(url, analysis.NewStageError(
			analysis.StageScreenshotCapture, analysis.KindInput, "url is required", nil))
	}
	if len(viewports) == 0 {
		viewports = []analysis.Viewport{analysis.ViewportDesktop}
	}

	results := o.captureAll(ctx, url, viewports)
	shots := make([]analysis.ScreenshotArtifact, 0, len(viewports))
	for i := range results {
		if err := results[i].err; err != nil {
			return nil, o.fail(url, err)
		}
		shots = append(shots, results[i].shot)
	}

	if upload && o.deps.Blobs != nil {
		id, idErr := o.deps.IDs.NewID()
		if idErr == nil {
			o.uploadArtifacts(ctx, id, shots, o.logger)
		}
	}
	return shots, nil
}

// captureScreenshots captures the desktop viewport and, when requested, the
// mobile viewport concurrently. Both captures are awaited; the stage fails
// only when every requested capture failed. A partial failure is logged and
// the surviving artifacts flow on.
func (o *Orchestrator) captureScreenshots(ctx context.Context, url string, includeMobile bool, logger *zap.Logger) ([]analysis.ScreenshotArtifact, error) {
	viewports := []analysis.Viewport{analysis.ViewportDesktop}
	if includeMobile {
		viewports = append(viewports, analysis.ViewportMobile)
	}

	results := o.captureAll(ctx, url, viewports)

	var (
		shots   []analysis.ScreenshotArtifact
		lastErr error
	)
	for i, vp := range viewports {
		if err := results[i].err; err != nil {
			lastErr = err
			logger.Warn("viewport capture failed", zap.String("viewport", vp.Name), zap.Error(err))
			continue
		}
		shots = append(shots, results[i].shot)
	}
	if len(shots) == 0 {
		return nil, analysis.NewStageError(analysis.StageScreenshotCapture, analysis.KindDependency,
			"all screenshot captures failed", lastErr)
	}
	return shots, nil
}

type captureResult struct {
	shot analysis.ScreenshotArtifact
	err  error
}

func (o *Orchestrator) captureAll(ctx context.Context, url string, viewports []analysis.Viewport) []captureResult {
	results := make([]captureResult, len(viewports))
	done := make(chan struct{}, len(viewports))
	for i, vp := range viewports {
		go func(i int, vp analysis.Viewport) {
			shot, err := o.deps.Capturer.Capture(ctx, url, vp)
			results[i] = captureResult{shot: shot, err: err}
			done <- struct{}{}
		}(i, vp)
	}
	for range viewports {
		<-done
	}

	for i, vp := range viewports {
		status := "success"
		if results[i].err != nil {
			status = "error"
		} else if results[i].shot.FromCache {
			metrics.ObserveCacheHit()
		}
		metrics.ObserveCapture(vp.Name, status)
	}
	return results
}

// uploadArtifacts pushes captured screenshots to the blob store and records
// the resulting URIs on the artifacts. Upload failures are logged, never fatal.
func (o *Orchestrator) uploadArtifacts(ctx context.Context, id string, shots []analysis.ScreenshotArtifact, logger *zap.Logger) {
	for i := range shots {
		f, err := os.Open(shots[i].LocalPath)
		if err != nil {
			logger.Warn("open screenshot for upload", zap.Error(err))
			continue
		}
		objectPath := path.Join(o.cfg.StoragePrefix, id, shots[i].Viewport.Name+".png")
		uri, err := o.deps.Blobs.PutObject(ctx, objectPath, o.cfg.ContentType, f)
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("close screenshot file", zap.Error(closeErr))
		}
		if err != nil {
			logger.Warn("screenshot upload failed",
				zap.String("viewport", shots[i].Viewport.Name), zap.Error(err))
			continue
		}
		shots[i].UploadedURL = uri
	}
}

// deliver pushes the completed result to the optional sinks in the
// background. A sink failure never fails the analysis.
func (o *Orchestrator) deliver(result analysis.AnalysisResult, logToSheets bool, logger *zap.Logger) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()

		if logToSheets && o.deps.Sheets != nil {
			if err := o.deps.Sheets.AppendRow(ctx, result); err != nil {
				metrics.ObserveStageError(string(analysis.StageSheetsLogging), string(analysis.KindDependency))
				logger.Warn("sheets logging failed", zap.Error(err))
			}
		}
		if o.deps.History != nil {
			if err := o.deps.History.RecordAnalysis(ctx, result); err != nil {
				logger.Warn("history write failed", zap.Error(err))
			}
		}
		if o.deps.Publisher != nil {
			event := CompletionEvent{
				AnalysisID:   result.AnalysisID,
				URL:          result.URL,
				OverallScore: result.OverallScore,
				Grade:        result.Grade,
				Status:       string(result.Status),
				CompletedAt:  result.CompletedAt,
			}
			if _, err := o.deps.Publisher.Publish(ctx, o.cfg.Topic, event); err != nil {
				logger.Warn("completion event publish failed", zap.Error(err))
			}
		}
	}()
}

// fail records the stage failure and returns the error unchanged.
func (o *Orchestrator) fail(url string, err error) error {
	stage := analysis.StageOf(err)
	kind := analysis.KindDependency
	var se *analysis.StageError
	if errors.As(err, &se) {
		kind = se.Kind
	}
	metrics.ObserveStageError(string(stage), string(kind))
	metrics.ObserveAnalysis(url, string(analysis.StatusFailed), 0)
	o.logger.Error("analysis failed",
		zap.String("url", url),
		zap.String("stage", string(stage)),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return err
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
