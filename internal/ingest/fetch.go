package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
)

const (
	DefaultFetchTimeout = 15 * time.Second
	maxFetchBytes       = 10 << 20
	userAgent           = "trajgen/1.0 (+https://github.com/vishal2002series1/synthetic-data-kit-with-trajectory)"
)

// Fetcher retrieves a web page and extracts its readable text.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Document, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// NewFetcher returns a fetcher of the given type.
func NewFetcher(fetcherType FetcherType, timeout time.Duration) (Fetcher, error) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	switch fetcherType {
	case HTTPFetcherType, "":
		return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}, nil
	case ChromedpFetcherType:
		return &ChromeFetcher{Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", fetcherType)
	}
}

// HTTPFetcher does a plain GET. It is enough for static pages.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return Document{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Document{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return extractHTML(string(body), u)
}

// ChromeFetcher renders the page in headless Chrome before extraction, for
// pages that build their content with scripts.
type ChromeFetcher struct {
	Timeout time.Duration
}

func (f *ChromeFetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return Document{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	if err := chromedp.Run(bctx,
		chromedp.Navigate(u.String()),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return Document{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	return extractHTML(html, u)
}

func parseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("invalid url: " + raw)
	}
	return u, nil
}

func extractHTML(html string, u *url.URL) (Document, error) {
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return Document{}, fmt.Errorf("extract %s: %w", u, err)
	}
	return Document{
		Source: u.String(),
		Title:  strings.TrimSpace(article.Title),
		Text:   strings.TrimSpace(article.TextContent),
	}, nil
}
