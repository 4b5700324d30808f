package models

import "time"

// Session is the state of one run. It is never persisted.
type Session struct {
	StartedAt time.Time
	History   *History
	Crawled   []Listing
}

// NewSession starts a session at now, truncated to the second so that the
// create date of new listings survives a save/load cycle unchanged.
func NewSession(now time.Time, history *History) *Session {
	return &Session{
		StartedAt: now.Truncate(time.Second),
		History:   history,
	}
}

// PostTimePrefix is prepended to the relative date text shown on the feed
// ("2 hours ago") so the stored value can be read back later.
func (s *Session) PostTimePrefix() string {
	return s.StartedAt.Format("2006-01-02 15h+")
}

// Stamp fills in the session-derived fields of a freshly extracted listing.
func (s *Session) Stamp(l Listing) Listing {
	l.PostTime = s.PostTimePrefix() + l.PostTime
	l.CreateDate = s.StartedAt
	l.EmailSent = false
	return l
}
