package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-catalog/config"
)

const (
	ctxStart    = "start"
	ctxPage     = "page"
	ctxStatus   = "status"
	ctxParseErr = "parse_error"
)

// Page is one successfully fetched catalog page.
type Page struct {
	// URL is the resolved response URL, used as the base for relative links.
	URL        *url.URL
	StatusCode int
	Doc        *goquery.Document
}

// PageFetcher retrieves and parses a single page. Failures are returned as *FetchError.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Fetcher is the colly-backed PageFetcher. One collector, and so one connection pool,
// is reused for every call.
type Fetcher struct {
	collector *colly.Collector
	delay     time.Duration
	sleep     func(context.Context, time.Duration)
	metrics   *Metrics
}

// NewFetcher builds a synchronous collector configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	// No domain filter: next links may point at another host or port.
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &Fetcher{
		collector: collector,
		delay:     cfg.Delay,
		sleep:     sleepContext,
		metrics:   metrics,
	}
	f.registerCallbacks()
	return f, nil
}

func (f *Fetcher) registerCallbacks() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		r.Headers.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		slog.Debug("requesting page", slog.String("url", r.URL.String()))
	})

	f.collector.OnResponse(func(r *colly.Response) {
		f.observe(r.Ctx)
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			r.Ctx.Put(ctxParseErr, err)
			return
		}
		r.Ctx.Put(ctxPage, &Page{
			URL:        r.Request.URL,
			StatusCode: r.StatusCode,
			Doc:        doc,
		})
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r == nil {
			return
		}
		ctx := r.Ctx
		if ctx == nil && r.Request != nil {
			ctx = r.Request.Ctx
		}
		if ctx == nil {
			return
		}
		f.observe(ctx)
		ctx.Put(ctxStatus, r.StatusCode)
	})
}

func (f *Fetcher) observe(ctx *colly.Context) {
	if start, ok := ctx.GetAny(ctxStart).(time.Time); ok {
		f.metrics.ObserveDuration(time.Since(start))
	}
}

// Fetch issues a GET for rawURL. On success it waits for the configured delay before
// returning; failed fetches return immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, newFetchError(rawURL, err, 0)
	}

	reqCtx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil)
	if err != nil {
		status, _ := reqCtx.GetAny(ctxStatus).(int)
		return nil, f.fail(newFetchError(rawURL, err, status))
	}

	page, ok := reqCtx.GetAny(ctxPage).(*Page)
	if !ok || page == nil {
		parseErr, _ := reqCtx.GetAny(ctxParseErr).(error)
		if parseErr == nil {
			parseErr = errors.New("empty response")
		}
		return nil, f.fail(newFetchError(rawURL, fmt.Errorf("parse html: %w", parseErr), 0))
	}

	f.metrics.IncRequest("ok")
	f.sleep(ctx, f.delay)
	return page, nil
}

func (f *Fetcher) fail(fe *FetchError) *FetchError {
	f.metrics.IncRequest("failed")
	f.metrics.IncError(fe.Kind())
	return fe
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
