package services

import (
	"kijiji-watcher/models"
	"kijiji-watcher/utils"
)

// Deduper splits crawled listings into ads seen in an earlier run and ads
// seen for the first time.
type Deduper struct {
	logger *utils.Logger
}

// NewDeduper creates a Deduper with the given logger.
func NewDeduper(logger *utils.Logger) *Deduper {
	return &Deduper{logger: logger}
}

// Partition keeps the crawl order in both outputs. A link that appears more
// than once in extracted is classified on its first occurrence only.
func (d *Deduper) Partition(extracted []models.Listing, history *models.History) (fresh, known []models.Listing) {
	seen := make(map[string]struct{}, len(extracted))

	for _, l := range extracted {
		key := l.Key()
		if key == "" {
			d.logger.Warn("[dedup] Dropping listing with empty link: %s", l.Title)
			continue
		}
		if _, dup := seen[key]; dup {
			d.logger.Debug("[dedup] Duplicate link in this crawl skipped: %s", key)
			continue
		}
		seen[key] = struct{}{}

		if history.Contains(key) {
			known = append(known, l)
			continue
		}
		fresh = append(fresh, l)
	}

	d.logger.Info("[dedup] %d new, %d already known (of %d extracted)", len(fresh), len(known), len(extracted))
	return fresh, known
}
