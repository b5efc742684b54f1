// Package fetcher downloads and parses page HTML with a browser-like
// identity, following redirects and tolerating certificate problems.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/designscore/designscore/internal/analysis"
)

// ErrorKind distinguishes HTTP-status failures from transport failures.
type ErrorKind string

// Fetch failure kinds.
const (
	KindHTTPStatus ErrorKind = "http_status"
	KindNetwork    ErrorKind = "network"
)

// FetchError is the single error type surfaced by Fetch.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap exposes the wrapped cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
}

// defaultUserAgent mimics a desktop browser so sites serve their real markup.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher implements analysis.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch normalizes rawURL, downloads the page, and returns both the parsed
// document and the raw HTML.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, string, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return nil, "", analysis.NewStageError(analysis.StageHTMLFetch, analysis.KindInput,
			"empty url", nil)
	}

	var (
		body     []byte
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(newHTTPTransport())
	collector.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= f.cfg.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", f.cfg.MaxRedirects)
		}
		return nil
	})

	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 {
			fetchErr = &FetchError{Kind: KindHTTPStatus, URL: target, StatusCode: r.StatusCode, Err: err}
			return
		}
		fetchErr = &FetchError{Kind: KindNetwork, URL: target, Err: err}
	})

	if err := f.runCollector(ctx, collector, target, &fetchErr); err != nil {
		return nil, "", analysis.NewStageError(analysis.StageHTMLFetch, kindFor(err), "fetch page", err)
	}

	raw := string(body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, "", analysis.NewStageError(analysis.StageHTMLFetch, analysis.KindDependency,
			"parse html", err)
	}
	return doc, raw, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return &FetchError{Kind: KindNetwork, URL: url, Err: ctx.Err()}
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return &FetchError{Kind: KindNetwork, URL: url, Err: err}
		}
		return nil
	}
}

func kindFor(err error) analysis.ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Kind == KindHTTPStatus {
		return analysis.KindInput
	}
	return analysis.KindDependency
}

// NormalizeURL prepends https:// when no scheme is present and trims
// surrounding whitespace.
func NormalizeURL(rawURL string) string {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // analyzed sites often have broken certs
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
