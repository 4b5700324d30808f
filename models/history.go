package models

// History is the set of every listing ever observed, keyed by Listing.Key.
// Insertion order is kept so that saved files are stable across runs.
type History struct {
	order []string
	byKey map[string]Listing
}

// NewHistory builds a History. When a key repeats, the first record wins but
// EmailSent is OR-ed so a notified ad never reverts to un-notified.
func NewHistory(listings []Listing) *History {
	h := &History{byKey: make(map[string]Listing, len(listings))}
	for _, l := range listings {
		h.merge(l)
	}
	return h
}

func (h *History) merge(l Listing) {
	key := l.Key()
	if key == "" {
		return
	}
	existing, ok := h.byKey[key]
	if !ok {
		h.order = append(h.order, key)
		h.byKey[key] = l
		return
	}
	if l.EmailSent && !existing.EmailSent {
		h.byKey[key] = existing.WithEmailSent()
	}
}

// Contains reports whether an ad with this key has been seen before.
func (h *History) Contains(key string) bool {
	_, ok := h.byKey[key]
	return ok
}

// Get returns the stored listing for key.
func (h *History) Get(key string) (Listing, bool) {
	l, ok := h.byKey[key]
	return l, ok
}

// Len returns the number of distinct ads.
func (h *History) Len() int {
	return len(h.order)
}

// Listings returns the stored listings in insertion order.
func (h *History) Listings() []Listing {
	out := make([]Listing, 0, len(h.order))
	for _, k := range h.order {
		out = append(out, h.byKey[k])
	}
	return out
}

// Clone returns an independent copy.
func (h *History) Clone() *History {
	c := &History{
		order: make([]string, len(h.order)),
		byKey: make(map[string]Listing, len(h.byKey)),
	}
	copy(c.order, h.order)
	for k, v := range h.byKey {
		c.byKey[k] = v
	}
	return c
}

// Insert adds l when its key is new. Existing entries only take the
// EmailSent false->true transition. It returns true when l was inserted.
func (h *History) Insert(l Listing) bool {
	key := l.Key()
	if key == "" {
		return false
	}
	_, existed := h.byKey[key]
	h.merge(l)
	return !existed
}

// MarkSent flips EmailSent for key. It is a no-op for unknown keys.
func (h *History) MarkSent(key string) {
	if l, ok := h.byKey[key]; ok && !l.EmailSent {
		h.byKey[key] = l.WithEmailSent()
	}
}
