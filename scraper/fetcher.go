package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"kijiji-watcher/models"
)

// ErrNoResults is returned by an Extractor when the page has no results
// container at all (for example a block page instead of a search page).
var ErrNoResults = errors.New("results container not found")

// PageFetcher loads a page and returns its HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Extractor knows the markup of one classifieds site.
type Extractor interface {
	// Listings returns every complete record on a search page. Records that
	// fail extraction are reported in errs and do not stop the others.
	Listings(doc *goquery.Document, pageURL string) (listings []models.Listing, errs []error)
	// NextPage reports the pagination state of a search page.
	NextPage(doc *goquery.Document, pageURL string) NextPage
	// Description returns the ad text of a detail page.
	Description(doc *goquery.Document) (string, error)
}

// NextKind classifies the pagination state of a page.
type NextKind int

const (
	NoNextPage NextKind = iota
	HasNextPage
	NextPageError
)

func (k NextKind) String() string {
	switch k {
	case NoNextPage:
		return "no-next-page"
	case HasNextPage:
		return "next-page"
	case NextPageError:
		return "next-page-error"
	}
	return fmt.Sprintf("NextKind(%d)", int(k))
}

// NextPage is the result of looking for a "next" link.
type NextPage struct {
	Kind NextKind
	URL  string
	Err  error
}

// Next builds a HasNextPage result.
func Next(u string) NextPage { return NextPage{Kind: HasNextPage, URL: u} }

// LastPage builds a NoNextPage result.
func LastPage() NextPage { return NextPage{Kind: NoNextPage} }

// NextFailed builds a NextPageError result.
func NextFailed(err error) NextPage { return NextPage{Kind: NextPageError, Err: err} }

// ParseHTML turns fetched HTML into a goquery document.
func ParseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ResolveURL resolves ref against base. Absolute refs are returned as-is.
func ResolveURL(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty link")
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", ref, err)
	}
	if r.IsAbs() {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	return b.ResolveReference(r).String(), nil
}
