package analysis

import (
	"context"
	"io"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Capturer produces screenshot artifacts for a URL at a given viewport.
type Capturer interface {
	Capture(ctx context.Context, url string, viewport Viewport) (ScreenshotArtifact, error)
}

// PageFetcher downloads and parses a page's HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, string, error)
}

// VisionClient sends a prompt plus screenshot to a vision-capable model.
type VisionClient interface {
	Generate(ctx context.Context, prompt string, imagePath string, analysisType string) (string, error)
	Model() string
}

// BlobStore writes artifacts and returns a public URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// RowAppender appends one derived summary row to the external log sink.
type RowAppender interface {
	AppendRow(ctx context.Context, result AnalysisResult) error
}

// HistoryStore persists a derived subset of a completed analysis.
type HistoryStore interface {
	RecordAnalysis(ctx context.Context, result AnalysisResult) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces analysis IDs.
type IDGenerator interface {
	NewID() (string, error)
}
