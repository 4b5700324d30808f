package models

import (
	"strings"
	"time"
)

// Listing is one classified ad as seen on the search results feed.
// It is a value type: updates go through the With* methods, which return a copy.
type Listing struct {
	Title       string
	Price       string
	Location    string
	PostTime    string
	Distance    string
	Link        string
	Description string
	CreateDate  time.Time
	EmailSent   bool
}

// FieldNames is the persisted column order.
var FieldNames = []string{
	"title", "price", "location", "post_time", "distance",
	"link", "description", "create_date", "email_sent",
}

// Key returns the identity of the ad. Two observations with the same link are
// the same ad; title and price are not unique across ads.
func (l Listing) Key() string {
	return strings.TrimSpace(l.Link)
}

// WithDescription returns a copy with Description set.
func (l Listing) WithDescription(description string) Listing {
	l.Description = description
	return l
}

// WithEmailSent returns a copy marked as notified.
func (l Listing) WithEmailSent() Listing {
	l.EmailSent = true
	return l
}

// Text concatenates the human-readable fields, used for keyword matching.
func (l Listing) Text() string {
	return strings.Join([]string{l.Title, l.Price, l.Description, l.Location, l.PostTime, l.Distance}, " ")
}
