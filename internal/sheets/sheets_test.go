package sheets

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/designscore/designscore/internal/analysis"
)

func sampleResult() analysis.AnalysisResult {
	return analysis.AnalysisResult{
		AnalysisID: "0195f7a2-1111-7000-8000-000000000001",
		URL:        "https://example.com",
		AnalyzedAt: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
		ScoresBreakdown: map[analysis.Category]float64{
			analysis.CategoryTypography:     85.123,
			analysis.CategoryColor:          70,
			analysis.CategoryLayout:         90,
			analysis.CategoryResponsiveness: 75,
			analysis.CategoryAccessibility:  60,
		},
		OverallScore:    78.456,
		DurationSeconds: 12.345,
		LLMAnalysis:     analysis.LLMAnalysis{Content: "The layout looks clean."},
		Screenshots: []analysis.ScreenshotArtifact{
			{Viewport: analysis.ViewportDesktop, UploadedURL: "gs://bucket/desktop.png"},
			{Viewport: analysis.ViewportMobile, UploadedURL: "gs://bucket/mobile.png"},
		},
	}
}

func TestRowLayout(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	row := Row(now, sampleResult())
	require.Len(t, row, len(headerRow))

	require.Equal(t, "2025-06-01 11:00:00", row[0])
	require.Equal(t, "https://example.com", row[2])
	require.Equal(t, 78.46, row[4])
	require.Equal(t, 85.12, row[5])
	require.Equal(t, "gs://bucket/desktop.png", row[10])
	require.Equal(t, "gs://bucket/mobile.png", row[11])
	require.Equal(t, 12.35, row[14])
	require.Equal(t, "The layout looks clean.", row[15])
}

func TestRowTruncatesLongSummary(t *testing.T) {
	t.Parallel()

	r := sampleResult()
	r.LLMAnalysis.Content = strings.Repeat("x", 600)
	row := Row(time.Now(), r)

	summary, ok := row[15].(string)
	require.True(t, ok)
	require.Len(t, summary, summaryMaxChars+3)
	require.True(t, strings.HasSuffix(summary, "..."))
}

func TestRowMissingScreenshots(t *testing.T) {
	t.Parallel()

	r := sampleResult()
	r.Screenshots = nil
	row := Row(time.Now(), r)
	require.Equal(t, "", row[10])
	require.Equal(t, "", row[11])
}

func TestMemoryAppender(t *testing.T) {
	t.Parallel()

	m := NewMemoryAppender()
	require.NoError(t, m.AppendRow(context.Background(), sampleResult()))
	require.NoError(t, m.AppendRow(context.Background(), sampleResult()))

	rows := m.Rows()
	require.Len(t, rows, 2)
	require.Equal(t, "https://example.com", rows[0].URL)
}
