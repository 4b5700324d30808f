package scraper

import (
	"context"
	"time"

	"kijiji-watcher/models"
	"kijiji-watcher/utils"
)

// EnrichResult reports what an enrichment pass did.
type EnrichResult struct {
	Listings []models.Listing
	Enriched int
	Failed   int
	Skipped  int
}

// Enricher visits the detail page of each listing to fill in its description.
type Enricher struct {
	fetcher   PageFetcher
	extractor Extractor
	delayer   utils.Delayer
	minDelay  time.Duration
	maxDelay  time.Duration
	logger    *utils.Logger
}

// NewEnricher creates an Enricher that waits a random [minDelay, maxDelay]
// between two detail-page visits.
func NewEnricher(fetcher PageFetcher, extractor Extractor, delayer utils.Delayer, minDelay, maxDelay time.Duration, logger *utils.Logger) *Enricher {
	return &Enricher{
		fetcher:   fetcher,
		extractor: extractor,
		delayer:   delayer,
		minDelay:  minDelay,
		maxDelay:  maxDelay,
		logger:    logger,
	}
}

// Enrich returns copies of listings with descriptions filled in. A failed
// visit leaves that listing's description empty and moves on. When ctx is
// cancelled the remaining listings are returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, listings []models.Listing) EnrichResult {
	res := EnrichResult{Listings: append([]models.Listing(nil), listings...)}

	for i, l := range listings {
		if i > 0 {
			if err := e.delayer.Wait(ctx, e.minDelay, e.maxDelay); err != nil {
				res.Skipped = len(listings) - i
				e.logger.Warn("[enricher] Stopped before %d remaining listings: %v", res.Skipped, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			res.Skipped = len(listings) - i
			e.logger.Warn("[enricher] Stopped before %d remaining listings: %v", res.Skipped, err)
			break
		}

		description, err := e.describe(ctx, l.Link)
		if err != nil {
			res.Failed++
			e.logger.Warn("[enricher] Error fetching description for %s: %v", l.Link, err)
			continue
		}

		res.Listings[i] = l.WithDescription(description)
		res.Enriched++
		e.logger.Debug("[enricher] Visited: %s", l.Link)
	}

	e.logger.Info("[enricher] Descriptions: %d enriched, %d failed, %d skipped",
		res.Enriched, res.Failed, res.Skipped)
	return res
}

func (e *Enricher) describe(ctx context.Context, link string) (string, error) {
	html, err := e.fetcher.Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	doc, err := ParseHTML(html)
	if err != nil {
		return "", err
	}
	return e.extractor.Description(doc)
}
