package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kijiji-watcher/models"
	"kijiji-watcher/notify"
	"kijiji-watcher/scraper"
	"kijiji-watcher/storage"
	"kijiji-watcher/utils"
)

// Notifier delivers a digest, falling back to local storage.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) (notify.Outcome, error)
}

// WatcherDeps lists the collaborators of a Watcher. Enricher may be nil to
// skip detail-page visits.
type WatcherDeps struct {
	Store    storage.ListingStore
	Crawler  *scraper.Crawler
	Enricher *scraper.Enricher
	Composer *Composer
	Notifier Notifier
	Now      func() time.Time
	Logger   *utils.Logger
}

// Watcher runs one load, crawl, diff, notify, save cycle.
type Watcher struct {
	store    storage.ListingStore
	crawler  *scraper.Crawler
	enricher *scraper.Enricher
	deduper  *Deduper
	composer *Composer
	notifier Notifier
	now      func() time.Time
	logger   *utils.Logger
}

// NewWatcher creates a Watcher.
func NewWatcher(deps WatcherDeps) *Watcher {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Watcher{
		store:    deps.Store,
		crawler:  deps.Crawler,
		enricher: deps.Enricher,
		deduper:  NewDeduper(deps.Logger),
		composer: deps.Composer,
		notifier: deps.Notifier,
		now:      now,
		logger:   deps.Logger,
	}
}

// Run executes one cycle against startURL.
//
// Failing to load history is fatal and nothing else happens. Once history is
// loaded the merged state is always saved, even when the crawl fails part-way,
// so listings found before the failure are kept. The returned error joins the
// crawl, notification and save failures, if any.
func (w *Watcher) Run(ctx context.Context, startURL string) (report *Report, err error) {
	stored, err := w.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	session := models.NewSession(w.now(), models.NewHistory(stored))
	report = &Report{StartedAt: session.StartedAt}

	var fresh, known, notified []models.Listing
	persistFresh := true

	defer func() {
		crawled := make([]models.Listing, 0, len(fresh)+len(known))
		if persistFresh {
			crawled = append(crawled, fresh...)
		}
		crawled = append(crawled, known...)

		next := Reconcile(session.History, crawled, notified)
		if saveErr := w.store.Save(next.Listings()); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("save history: %w", saveErr))
			return
		}
		report.StoreSize = next.Len()
		report.Finished = w.now()
	}()

	res, crawlErr := w.crawler.Run(ctx, session, startURL)
	if crawlErr != nil {
		w.logger.Error("[watcher] Crawl failed: %v", crawlErr)
	}
	if res != nil {
		session.Crawled = res.Listings
		report.Pages = res.Pages
		report.Extracted = len(res.Listings)
		report.Skipped = res.Skipped
		report.Stop = res.Stop
	}

	fresh, known = w.deduper.Partition(session.Crawled, session.History)
	report.New = len(fresh)
	report.Known = len(known)

	if w.enricher != nil && len(fresh) > 0 {
		er := w.enricher.Enrich(ctx, fresh)
		fresh = er.Listings
		report.Enriched = er.Enriched
		report.EnrichFailed = er.Failed
		report.EnrichSkipped = er.Skipped
	}

	// Delivery is not interrupted by cancellation: the listings are about to
	// be stored as seen, so their digest has to go out or be saved now.
	notified, notifyErr := w.notify(context.WithoutCancel(ctx), fresh, report)
	if notifyErr != nil {
		w.logger.Error("[watcher] %v", notifyErr)
		// Nothing was delivered or saved; leave the new listings out of the
		// history so the next run finds and reports them again.
		persistFresh = false
	}

	return report, errors.Join(crawlErr, notifyErr)
}

func (w *Watcher) notify(ctx context.Context, fresh []models.Listing, report *Report) ([]models.Listing, error) {
	pending := Pending(fresh)
	if len(pending) == 0 {
		w.logger.Info("[watcher] No new listings, nothing to send")
		return nil, nil
	}

	digest, err := w.composer.Compose(pending)
	if err != nil {
		return nil, err
	}
	report.KeywordMatches = digest.KeywordMatches

	outcome, err := w.notifier.Notify(ctx, notify.Message{
		Subject: digest.Subject,
		HTML:    digest.HTML,
		Text:    digest.Text,
	})
	report.FallbackPath = outcome.FallbackPath
	if err != nil {
		return nil, err
	}
	if !outcome.Delivered {
		return nil, nil
	}

	report.Delivered = true
	report.Notified = len(digest.Listings)
	return digest.Listings, nil
}
