package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"kijiji-watcher/models"
	"kijiji-watcher/utils"
)

// StopReason says why pagination ended.
type StopReason string

const (
	StopLastPage      StopReason = "last-page"
	StopNextPageError StopReason = "next-page-lookup-failed"
	StopFetchFailed   StopReason = "next-page-fetch-failed"
	StopCycle         StopReason = "page-cycle"
	StopPageCap       StopReason = "page-cap"
	StopCancelled     StopReason = "cancelled"
	StopStartFailed   StopReason = "start-page-failed"
)

// CrawlResult is everything one pagination pass produced.
type CrawlResult struct {
	Listings []models.Listing
	Pages    int
	Skipped  int
	Stop     StopReason
}

// Crawler follows "next" links from a start page and accumulates listings.
// Pages are fetched one at a time, in order.
type Crawler struct {
	fetcher   PageFetcher
	extractor Extractor
	retry     *utils.RetryConfig
	maxPages  int
	logger    *utils.Logger
}

// NewCrawler creates a Crawler. maxPages <= 0 disables the page cap.
func NewCrawler(fetcher PageFetcher, extractor Extractor, retry *utils.RetryConfig, maxPages int, logger *utils.Logger) *Crawler {
	return &Crawler{
		fetcher:   fetcher,
		extractor: extractor,
		retry:     retry,
		maxPages:  maxPages,
		logger:    logger,
	}
}

// Run crawls from startURL. A failure on the start page, or cancellation, is
// returned as an error together with whatever was collected; any other
// failure past the first page ends pagination normally and is reported via
// CrawlResult.Stop.
func (c *Crawler) Run(ctx context.Context, session *models.Session, startURL string) (*CrawlResult, error) {
	res := &CrawlResult{}
	visited := utils.NewURLSet()
	pageURL := startURL

	for {
		if c.maxPages > 0 && res.Pages >= c.maxPages {
			c.logger.Warn("[crawler] Reached page cap (%d), stopping", c.maxPages)
			res.Stop = StopPageCap
			return res, nil
		}
		if !visited.Add(pageURL) {
			c.logger.Warn("[crawler] Next page %s was already visited, stopping to avoid a loop", pageURL)
			res.Stop = StopCycle
			return res, nil
		}

		pageNum := res.Pages + 1
		c.logger.Info("[crawler] Scraping page %d: %s", pageNum, pageURL)

		doc, err := c.fetchPage(ctx, pageURL, pageNum)
		if err != nil {
			if ctx.Err() != nil {
				res.Stop = StopCancelled
				return res, fmt.Errorf("crawl: page %d: %w", pageNum, ctx.Err())
			}
			if res.Pages == 0 {
				res.Stop = StopStartFailed
				return res, fmt.Errorf("crawl: start page: %w", err)
			}
			c.logger.Warn("[crawler] Page %d could not be fetched, treating it as the end of results: %v", pageNum, err)
			res.Stop = StopFetchFailed
			return res, nil
		}
		res.Pages++

		listings, errs := c.extractor.Listings(doc, pageURL)
		for _, e := range errs {
			if errors.Is(e, ErrNoResults) {
				c.logger.Warn("[crawler] Page %d: %v", pageNum, e)
				continue
			}
			res.Skipped++
			c.logger.Warn("[crawler] Page %d: skipped record: %v", pageNum, e)
		}
		for _, l := range listings {
			res.Listings = append(res.Listings, session.Stamp(l))
		}
		c.logger.Info("[crawler] Page %d done: %d listings (%d collected so far)", pageNum, len(listings), len(res.Listings))

		next := c.extractor.NextPage(doc, pageURL)
		switch next.Kind {
		case HasNextPage:
			pageURL = next.URL
		case NextPageError:
			c.logger.Warn("[crawler] Could not read the next-page link on page %d, stopping: %v", pageNum, next.Err)
			res.Stop = StopNextPageError
			return res, nil
		default:
			c.logger.Info("[crawler] Page %d is the last page", pageNum)
			res.Stop = StopLastPage
			return res, nil
		}
	}
}

func (c *Crawler) fetchPage(ctx context.Context, pageURL string, pageNum int) (*goquery.Document, error) {
	var doc *goquery.Document
	err := c.retry.Do(ctx, fmt.Sprintf("fetch-page-%d", pageNum), func(ctx context.Context) error {
		html, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return err
		}
		doc, err = ParseHTML(html)
		return err
	})
	return doc, err
}
