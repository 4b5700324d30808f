package services

import "kijiji-watcher/models"

// Reconcile returns the history to persist after a run. notified listings
// are marked sent; crawled listings with a new link are added; listings
// already in history keep their stored values apart from the sent flag.
// The input history is left untouched.
func Reconcile(history *models.History, crawled, notified []models.Listing) *models.History {
	next := history.Clone()

	sent := make(map[string]struct{}, len(notified))
	for _, l := range notified {
		sent[l.Key()] = struct{}{}
	}

	for _, l := range crawled {
		if _, ok := sent[l.Key()]; ok {
			l = l.WithEmailSent()
		}
		next.Insert(l)
	}
	for _, l := range notified {
		next.Insert(l.WithEmailSent())
		next.MarkSent(l.Key())
	}
	return next
}
