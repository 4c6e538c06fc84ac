package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-catalog-export/config"
	"github.com/gocolly/colly/v2"
)

// Crawl phases, used as the request counter label.
const (
	phaseList   = "list"
	phaseDetail = "detail"
)

// Fetcher loads a single URL and returns the parsed document, retrying
// transient failures with exponential backoff. It wraps a synchronous
// colly collector so the crawl issues exactly one request at a time and
// reuses the collector's connection pool for the whole run.
//
// A Fetcher is not safe for concurrent use; the crawl is strictly
// sequential.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error

	requestCount int
	retryCount   int
	errorCount   int
	errorsByType map[string]int

	// per-attempt capture filled by the collector callbacks
	lastBody   []byte
	lastStatus int
}

// NewFetcher builds a fetcher restricted to the start URL's host.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("start url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
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
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if cfg.Delay > 0 {
		if err := collector.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 1,
			Delay:       cfg.Delay,
		}); err != nil {
			return nil, fmt.Errorf("configure rate limits: %w", err)
		}
	}

	f := &Fetcher{
		cfg:          cfg,
		collector:    collector,
		metrics:      metrics,
		sleep:        sleepCtx,
		errorsByType: make(map[string]int),
	}

	collector.OnResponse(func(r *colly.Response) {
		f.lastStatus = r.StatusCode
		f.lastBody = r.Body
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			f.lastStatus = r.StatusCode
		}
	})

	return f, nil
}

// Fetch retrieves url and parses it into a document. Transient failures
// (timeouts, connection errors, 429, 5xx) are retried up to the
// configured attempt budget with backoff; other client errors fail
// fast. When the budget runs out the returned ExhaustedError carries
// the last underlying failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, phase string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := f.attempt(rawURL, phase)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		label := errorTypeLabel(err)
		f.errorCount++
		f.errorsByType[label]++
		f.metrics.IncError(label)

		if !retryable(err) {
			return nil, err
		}
		if attempt == f.cfg.MaxRetries-1 {
			break
		}

		delay := f.backoff(attempt)
		f.retryCount++
		f.metrics.IncRetries()
		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	exhausted := ExhaustedError{URL: rawURL, Attempts: f.cfg.MaxRetries, Err: lastErr}
	f.errorsByType[errorTypeLabel(exhausted)]++
	f.metrics.IncError(errorTypeLabel(exhausted))
	return nil, exhausted
}

func (f *Fetcher) attempt(rawURL, phase string) (*goquery.Document, error) {
	f.lastBody = nil
	f.lastStatus = 0
	f.requestCount++
	f.metrics.IncRequest(phase)

	start := time.Now()
	err := f.collector.Visit(rawURL)
	f.metrics.ObserveDuration(time.Since(start))

	if err != nil {
		return nil, f.classify(err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(f.lastBody))
	if err != nil {
		return nil, fmt.Errorf("parse document from %s: %w", rawURL, err)
	}
	return doc, nil
}

// classify maps a collector failure to the fetch error taxonomy using
// the status code captured by the OnError callback.
func (f *Fetcher) classify(err error) error {
	switch status := f.lastStatus; {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited{Err: err}
	case status >= 500:
		return ErrServer{StatusCode: status, Err: err}
	case status >= 400:
		return ErrHTTP{StatusCode: status, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrConnection{Err: err}
	}
	return err
}

// backoff computes the sleep before the next attempt: base doubled per
// attempt (indexed from zero), capped at the configured maximum.
func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := f.cfg.RetryBackoff << uint(attempt)
	if max := f.cfg.RetryBackoffMax; delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

// Requests returns the number of attempts issued so far.
func (f *Fetcher) Requests() int { return f.requestCount }

// Retries returns the number of retry sleeps performed so far.
func (f *Fetcher) Retries() int { return f.retryCount }

// Errors returns the number of failed attempts so far.
func (f *Fetcher) Errors() int { return f.errorCount }

// ErrorsByType returns a copy of the per-category error counts.
func (f *Fetcher) ErrorsByType() map[string]int {
	out := make(map[string]int, len(f.errorsByType))
	for k, v := range f.errorsByType {
		out[k] = v
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
