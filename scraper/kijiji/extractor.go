// Package kijiji holds the page markup knowledge for Kijiji search results
// and ad detail pages.
package kijiji

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"kijiji-watcher/models"
	"kijiji-watcher/scraper"
)

// ErrMissingField is returned when a listing card lacks one of its fields.
var ErrMissingField = errors.New("missing field")

const (
	searchListSel  = `[data-testid="srp-search-list"]`
	listingItemSel = `[data-testid^="listing-card-list-item-"]`
	titleSel       = `[data-testid="listing-title"]`
	priceSel       = `[data-testid="listing-price"]`
	locationSel    = `[data-testid="listing-location"]`
	dateSel        = `[data-testid="listing-date"]`
	proximitySel   = `[data-testid="listing-proximity"]`
	linkSel        = `[data-testid="listing-link"]`
	nextPageSel    = `[data-testid="pagination-next-link"]`
	detailBodySel  = `#vip-body`
	descriptionSel = `[class^="descriptionContainer-"]`
)

// Extractor implements scraper.Extractor for kijiji.ca.
type Extractor struct {
	converter *md.Converter
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{converter: md.NewConverter("", true, nil)}
}

var _ scraper.Extractor = (*Extractor)(nil)

// Listings reads every listing card in the results list.
func (x *Extractor) Listings(doc *goquery.Document, pageURL string) ([]models.Listing, []error) {
	list := doc.Find(searchListSel).First()
	if list.Length() == 0 {
		return nil, []error{scraper.ErrNoResults}
	}

	var (
		listings []models.Listing
		errs     []error
	)
	list.Find(listingItemSel).Each(func(i int, item *goquery.Selection) {
		l, err := x.listing(item, pageURL)
		if err != nil {
			id, _ := item.Attr("data-testid")
			errs = append(errs, fmt.Errorf("card %d (%s): %w", i+1, id, err))
			return
		}
		listings = append(listings, l)
	})
	return listings, errs
}

func (x *Extractor) listing(item *goquery.Selection, pageURL string) (models.Listing, error) {
	var l models.Listing
	var err error

	if l.Title, err = field(item, titleSel, "title"); err != nil {
		return l, err
	}
	if l.Price, err = field(item, priceSel, "price"); err != nil {
		return l, err
	}
	if l.Location, err = field(item, locationSel, "location"); err != nil {
		return l, err
	}
	if l.PostTime, err = field(item, dateSel, "date"); err != nil {
		return l, err
	}
	if l.Distance, err = field(item, proximitySel, "distance"); err != nil {
		return l, err
	}

	href, ok := item.Find(linkSel).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return l, fmt.Errorf("%w: link", ErrMissingField)
	}
	if l.Link, err = scraper.ResolveURL(pageURL, href); err != nil {
		return l, err
	}
	return l, nil
}

// NextPage looks for the pagination "next" control. A missing or disabled
// control means the current page is the last one.
func (x *Extractor) NextPage(doc *goquery.Document, pageURL string) scraper.NextPage {
	next := doc.Find(nextPageSel).First()
	if next.Length() == 0 || !visible(next) {
		return scraper.LastPage()
	}

	anchor := next
	if !anchor.Is("a[href]") {
		anchor = next.Find("a[href]").First()
	}
	if anchor.Length() == 0 || !visible(anchor) {
		return scraper.NextFailed(errors.New("next control has no link"))
	}

	href, _ := anchor.Attr("href")
	resolved, err := scraper.ResolveURL(pageURL, href)
	if err != nil {
		return scraper.NextFailed(err)
	}
	return scraper.Next(resolved)
}

// Description returns the ad body of a detail page as single-line text.
func (x *Extractor) Description(doc *goquery.Document) (string, error) {
	container := doc.Find(detailBodySel).Find(descriptionSel).First()
	if container.Length() == 0 {
		return "", fmt.Errorf("%w: description", ErrMissingField)
	}

	html, err := container.Html()
	if err != nil {
		return normaliseText(container.Text()), nil
	}
	text, err := x.converter.ConvertString(html)
	if err != nil {
		return normaliseText(container.Text()), nil
	}
	return normaliseText(text), nil
}

func field(item *goquery.Selection, sel, role string) (string, error) {
	s := item.Find(sel).First()
	if s.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingField, role)
	}
	return normaliseText(s.Text()), nil
}

func visible(s *goquery.Selection) bool {
	if _, hidden := s.Attr("hidden"); hidden {
		return false
	}
	if _, disabled := s.Attr("disabled"); disabled {
		return false
	}
	if v, _ := s.Attr("aria-disabled"); strings.EqualFold(v, "true") {
		return false
	}
	if v, _ := s.Attr("aria-hidden"); strings.EqualFold(v, "true") {
		return false
	}
	style, _ := s.Attr("style")
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false
	}
	return true
}

// normaliseText strips leading/trailing whitespace and collapses internal
// whitespace, which also removes the tabs and newlines the store cannot hold.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
