package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-catalog-export/config"
	"github.com/aluiziolira/go-catalog-export/models"
	"github.com/jarcoal/httpmock"
)

func newTestRecord(title, productURL string) *models.Record {
	return &models.Record{Title: title, ProductURL: productURL}
}

// newTestScraper builds a scraper with a mock transport and instant
// backoff sleeps.
func newTestScraper(t *testing.T, cfg *config.Config) (*Scraper, *httpmock.MockTransport) {
	t.Helper()

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	transport := httpmock.NewMockTransport()
	s.fetcher.collector.WithTransport(transport)
	s.fetcher.sleep = func(context.Context, time.Duration) error { return nil }
	return s, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func buildListingPage(page, items int, hasNext bool) string {
	var builder strings.Builder
	builder.WriteString(`<html><body><section class="products">`)

	for i := 1; i <= items; i++ {
		id := (page-1)*items + i
		fmt.Fprintf(&builder, `<article class="product_pod">`)
		fmt.Fprintf(&builder, `<h3><a href="book-%d/index.html" title="Book %d">Book %d</a></h3>`, id, id, id)
		fmt.Fprintf(&builder, `<p class="price_color">&pound;%d.50</p>`, id)
		builder.WriteString(`<p class="star-rating Two"></p>`)
		builder.WriteString(`<p class="instock availability">In stock</p>`)
		builder.WriteString(`</article>`)
	}

	if hasNext {
		fmt.Fprintf(&builder, `<li class="next"><a href="page-%d.html">next</a></li>`, page+1)
	}

	builder.WriteString(`</section></body></html>`)
	return builder.String()
}

func buildDetailPage(category, description, upc string) string {
	var builder strings.Builder
	builder.WriteString(`<html><body>`)
	builder.WriteString(`<ul class="breadcrumb">`)
	builder.WriteString(`<li><a href="/">Home</a></li>`)
	builder.WriteString(`<li><a href="/books">Books</a></li>`)
	fmt.Fprintf(&builder, `<li><a href="/books/cat">%s</a></li>`, category)
	builder.WriteString(`</ul>`)
	builder.WriteString(`<div class="item active"><img src="../../media/cover.jpg"/></div>`)
	builder.WriteString(`<div id="product_description"><h2>Product Description</h2></div>`)
	fmt.Fprintf(&builder, `<p>%s</p>`, description)
	builder.WriteString(`<table class="table">`)
	fmt.Fprintf(&builder, `<tr><th>UPC</th><td>%s</td></tr>`, upc)
	builder.WriteString(`<tr><th>Product Type</th><td>Books</td></tr>`)
	builder.WriteString(`</table>`)
	builder.WriteString(`</body></html>`)
	return builder.String()
}

func TestScraperStopsWithoutNextLink(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 0 // no limit; termination comes from the missing next link
	s, transport := newTestScraper(t, cfg)

	transport.RegisterResponder("GET", cfg.StartURL, htmlResponder(buildListingPage(1, 2, false)))

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 1 {
		t.Errorf("pages = %d, want 1", result.PageCount)
	}
	if len(result.Records) != 2 {
		t.Errorf("records = %d, want 2", len(result.Records))
	}
}

func TestScraperRespectsPageLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 1
	s, transport := newTestScraper(t, cfg)

	// only page 1 is registered: fetching page 2 would fail the crawl
	transport.RegisterResponder("GET", cfg.StartURL, htmlResponder(buildListingPage(1, 20, true)))

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 1 {
		t.Errorf("pages = %d, want 1", result.PageCount)
	}
	if len(result.Records) != 20 {
		t.Errorf("records = %d, want 20", len(result.Records))
	}
}

func TestScraperWalksAllPages(t *testing.T) {
	cfg := testConfig()
	s, transport := newTestScraper(t, cfg)

	base := "http://example.test/catalogue/"
	transport.RegisterResponder("GET", cfg.StartURL, htmlResponder(buildListingPage(1, 20, true)))
	transport.RegisterResponder("GET", base+"page-2.html", htmlResponder(buildListingPage(2, 20, true)))
	transport.RegisterResponder("GET", base+"page-3.html", htmlResponder(buildListingPage(3, 20, false)))

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 3 {
		t.Errorf("pages = %d, want 3", result.PageCount)
	}
	if len(result.Records) != 60 {
		t.Errorf("records = %d, want 60", len(result.Records))
	}

	sample := result.Records[0]
	if sample.Title != "Book 1" {
		t.Errorf("title = %q, want Book 1", sample.Title)
	}
	if sample.ProductURL != base+"book-1/index.html" {
		t.Errorf("product URL = %q", sample.ProductURL)
	}
	if sample.Price == nil || *sample.Price != 1.50 {
		t.Errorf("price = %v, want 1.50", sample.Price)
	}
	if sample.Rating == nil || *sample.Rating != 2 {
		t.Errorf("rating = %v, want 2", sample.Rating)
	}
}

func TestScraperEmptyListing(t *testing.T) {
	cfg := testConfig()
	s, transport := newTestScraper(t, cfg)

	transport.RegisterResponder("GET", cfg.StartURL, htmlResponder("<html><body></body></html>"))

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("records = %d, want 0", len(result.Records))
	}
	if result.PageCount != 1 {
		t.Errorf("pages = %d, want 1", result.PageCount)
	}
}

func TestScraperListFetchFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	s, transport := newTestScraper(t, cfg)

	base := "http://example.test/catalogue/"
	transport.RegisterResponder("GET", cfg.StartURL, htmlResponder(buildListingPage(1, 5, true)))
	transport.RegisterResponder("GET", base+"page-2.html", httpmock.NewStringResponder(http.StatusNotFound, ""))

	result, err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected a fatal error for a failing listing page")
	}
	if !strings.Contains(err.Error(), base+"page-2.html") {
		t.Errorf("error should identify the failing URL: %v", err)
	}
	// partial results stay available to the caller
	if len(result.Records) != 5 {
		t.Errorf("partial records = %d, want 5", len(result.Records))
	}
	if result.PageCount != 1 {
		t.Errorf("pages = %d, want 1", result.PageCount)
	}
}

func TestScraperDetailFailureIsolated(t *testing.T) {
	cfg := testConfig()
	cfg.WithDetails = true
	s, transport := newTestScraper(t, cfg)

	base := "http://example.test/catalogue/"
	transport.RegisterResponder("GET", cfg.StartURL, htmlResponder(buildListingPage(1, 3, false)))
	detail := buildDetailPage("Poetry", "A fine book.", "a897fe39b1053632")
	transport.RegisterResponder("GET", base+"book-1/index.html", htmlResponder(detail))
	transport.RegisterResponder("GET", base+"book-2/index.html", httpmock.NewStringResponder(http.StatusInternalServerError, ""))
	transport.RegisterResponder("GET", base+"book-3/index.html", htmlResponder(detail))

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Records) != 3 {
		t.Fatalf("records = %d, want 3 (one failure must not drop items)", len(result.Records))
	}
	if result.DetailErrors != 1 {
		t.Errorf("detail errors = %d, want 1", result.DetailErrors)
	}

	for i, rec := range result.Records {
		msg, failed := rec.DetailsError()
		if i == 1 {
			if !failed {
				t.Error("record 2 should carry details_error")
			}
			if !strings.Contains(msg, base+"book-2/index.html") {
				t.Errorf("details_error should identify the URL: %q", msg)
			}
			if _, ok := rec.Extra("category"); ok {
				t.Error("failed record should have no category")
			}
			continue
		}
		if failed {
			t.Errorf("record %d should not carry details_error", i+1)
		}
		if got, _ := rec.Extra("category"); got != "Poetry" {
			t.Errorf("record %d category = %q, want Poetry", i+1, got)
		}
		if got, _ := rec.Extra("upc"); got != "a897fe39b1053632" {
			t.Errorf("record %d upc = %q", i+1, got)
		}
	}

	if len(result.FailedURLs) != 1 || result.FailedURLs[0] != base+"book-2/index.html" {
		t.Errorf("failed URLs = %v", result.FailedURLs)
	}
}

func TestScraperBreaksPaginationCycle(t *testing.T) {
	cfg := testConfig()
	s, transport := newTestScraper(t, cfg)

	// page 1 points at page 2, page 2 points back at page 1
	page1 := buildListingPage(1, 2, true)
	page2 := strings.Replace(buildListingPage(2, 2, true), "page-3.html", "page-1.html", 1)
	base := "http://example.test/catalogue/"
	transport.RegisterResponder("GET", cfg.StartURL, htmlResponder(page1))
	transport.RegisterResponder("GET", base+"page-2.html", htmlResponder(page2))

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 2 {
		t.Errorf("pages = %d, want 2 (cycle must terminate)", result.PageCount)
	}
}

func TestScraperContextCancellation(t *testing.T) {
	cfg := testConfig()
	s, transport := newTestScraper(t, cfg)

	transport.RegisterResponder("GET", cfg.StartURL, htmlResponder(buildListingPage(1, 2, false)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Run(ctx); err == nil {
		t.Fatal("expected context cancellation error")
	}
}
