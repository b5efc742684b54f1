// Package sheets appends derived analysis rows to a Google Sheets worksheet.
package sheets

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/designscore/designscore/internal/analysis"
)

// summaryMaxChars truncates the AI summary column so rows stay readable.
const summaryMaxChars = 500

// headerRow is written once when the worksheet is first created.
var headerRow = []any{
	"Timestamp", "Analysis ID", "URL", "Analyzed At", "Overall Score",
	"Typography Score", "Color Score", "Layout Score",
	"Responsiveness Score", "Accessibility Score",
	"Desktop Screenshot", "Mobile Screenshot",
	"Desktop Thumbnail", "Mobile Thumbnail",
	"Analysis Duration (s)", "AI Summary",
}

// Config identifies the target spreadsheet.
type Config struct {
	CredentialsPath string
	SpreadsheetID   string
	WorksheetName   string
}

// Appender implements analysis.RowAppender against the Sheets API.
type Appender struct {
	svc    *gsheets.Service
	cfg    Config
	clock  analysis.Clock
	logger *zap.Logger
}

// New builds an Appender authenticated with a service account key file.
func New(ctx context.Context, cfg Config, clock analysis.Clock, logger *zap.Logger) (*Appender, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.WorksheetName == "" {
		cfg.WorksheetName = "Website Analysis Results"
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Appender{
		svc:    svc,
		cfg:    cfg,
		clock:  clock,
		logger: logger.Named("sheets"),
	}, nil
}

// AppendRow writes one derived summary row for a completed analysis.
func (a *Appender) AppendRow(ctx context.Context, result analysis.AnalysisResult) error {
	values := &gsheets.ValueRange{Values: [][]any{Row(a.clock.Now(), result)}}

	_, err := a.svc.Spreadsheets.Values.
		Append(a.cfg.SpreadsheetID, a.cfg.WorksheetName, values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append analysis row: %w", err)
	}

	a.logger.Info("logged analysis to sheet",
		zap.String("analysis_id", result.AnalysisID),
		zap.String("url", result.URL))
	return nil
}

// Row flattens an AnalysisResult into the worksheet's column layout.
func Row(now time.Time, r analysis.AnalysisResult) []any {
	var desktopURL, mobileURL string
	for _, shot := range r.Screenshots {
		switch shot.Viewport.Name {
		case analysis.ViewportDesktop.Name:
			desktopURL = shot.UploadedURL
		case analysis.ViewportMobile.Name:
			mobileURL = shot.UploadedURL
		}
	}

	summary := r.LLMAnalysis.Content
	if len(summary) > summaryMaxChars {
		summary = summary[:summaryMaxChars] + "..."
	}

	return []any{
		now.UTC().Format("2006-01-02 15:04:05"),
		r.AnalysisID,
		r.URL,
		r.AnalyzedAt.UTC().Format(time.RFC3339),
		round2(r.OverallScore),
		round2(r.ScoresBreakdown[analysis.CategoryTypography]),
		round2(r.ScoresBreakdown[analysis.CategoryColor]),
		round2(r.ScoresBreakdown[analysis.CategoryLayout]),
		round2(r.ScoresBreakdown[analysis.CategoryResponsiveness]),
		round2(r.ScoresBreakdown[analysis.CategoryAccessibility]),
		desktopURL,
		mobileURL,
		desktopURL,
		mobileURL,
		round2(r.DurationSeconds),
		summary,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EnsureWorksheet creates the worksheet with its header row when it does not
// exist yet. Safe to call at startup.
func (a *Appender) EnsureWorksheet(ctx context.Context) error {
	ss, err := a.svc.Spreadsheets.Get(a.cfg.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sheet := range ss.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == a.cfg.WorksheetName {
			return nil
		}
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{Requests: []*gsheets.Request{{
		AddSheet: &gsheets.AddSheetRequest{
			Properties: &gsheets.SheetProperties{Title: a.cfg.WorksheetName},
		},
	}}}
	if _, err := a.svc.Spreadsheets.BatchUpdate(a.cfg.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create worksheet: %w", err)
	}

	header := &gsheets.ValueRange{Values: [][]any{headerRow}}
	_, err = a.svc.Spreadsheets.Values.
		Append(a.cfg.SpreadsheetID, a.cfg.WorksheetName, header).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	return nil
}
