// Package scraper crawls a paginated catalog: it walks listing pages,
// extracts product records, optionally enriches each record from its
// detail page, and reports run statistics.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-catalog-export/config"
	"github.com/aluiziolira/go-catalog-export/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Scraper drives pagination over listing pages. One page is fetched and
// fully processed before the next fetch begins.
type Scraper struct {
	cfg     *config.Config
	fetcher *Fetcher
	Metrics *Metrics

	// visited guards against pagination cycles: a next link pointing at
	// an already-processed page terminates the crawl instead of looping.
	visited *lru.Cache[string, struct{}]
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}

	visited, err := lru.New[string, struct{}](cfg.VisitedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create visited cache: %w", err)
	}

	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		Metrics: metrics,
		visited: visited,
	}, nil
}

// Run crawls from the configured start URL until the page limit is
// reached or no next-page link exists.
//
// A fetch failure on a listing page is fatal: Run returns the error
// together with the partial result accumulated so far, and the caller
// decides whether anything is exported. A fetch failure on a detail
// page is attributed to that single item as a details_error field and
// the crawl continues.
func (s *Scraper) Run(ctx context.Context) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.CrawlResult{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	defer func() {
		result.EndTime = time.Now()
		result.RequestCount = s.fetcher.Requests()
		result.RetryCount = s.fetcher.Retries()
		result.ErrorCount = s.fetcher.Errors()
		result.ErrorsByType = s.fetcher.ErrorsByType()
	}()

	pageURL := s.cfg.StartURL
	s.visited.Add(pageURL, struct{}{})

	for pageURL != "" {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, err := s.fetcher.Fetch(ctx, pageURL, phaseList)
		if err != nil {
			return result, fmt.Errorf("fetch listing page %s: %w", pageURL, err)
		}

		records, next := extractList(doc, pageURL)
		result.PageCount++
		s.Metrics.IncPages()
		s.Metrics.AddItems(len(records))

		if s.cfg.WithDetails {
			if err := s.enrich(ctx, records, result); err != nil {
				return result, err
			}
		}

		result.Records = append(result.Records, records...)
		slog.Info("listing page processed",
			slog.Int("page", result.PageCount),
			slog.Int("items", len(records)),
			slog.String("url", pageURL),
		)

		if s.cfg.MaxPages > 0 && result.PageCount >= s.cfg.MaxPages {
			slog.Debug("page limit reached", slog.Int("pages", result.PageCount))
			break
		}
		if next == "" {
			break
		}
		if ok, _ := s.visited.ContainsOrAdd(next, struct{}{}); ok {
			slog.Warn("pagination cycle detected, stopping", slog.String("url", next))
			break
		}
		pageURL = next
	}

	return result, nil
}

// enrich fetches each record's detail page and merges the extra fields
// in. A failure is recorded on the failing item only; the remaining
// items on the page are unaffected.
func (s *Scraper) enrich(ctx context.Context, records []*models.Record, result *models.CrawlResult) error {
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := s.fetcher.Fetch(ctx, rec.ProductURL, phaseDetail)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rec.SetExtra(models.DetailsErrorKey, err.Error())
			result.DetailErrors++
			result.FailedURLs = append(result.FailedURLs, rec.ProductURL)
			s.Metrics.IncDetailFailure()
			slog.Warn("detail extraction failed",
				slog.String("url", rec.ProductURL),
				slog.Any("error", err),
			)
			continue
		}
		applyDetails(rec, doc, rec.ProductURL)
	}
	return nil
}
