package storage

import "kijiji-watcher/models"

// ListingStore persists the full listing history between runs.
type ListingStore interface {
	Load() ([]models.Listing, error)
	Save(listings []models.Listing) error
}
