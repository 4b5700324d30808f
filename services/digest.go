package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"kijiji-watcher/models"
)

const digestDateLayout = "06/01/02"

const digestHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8" />
<style>
  .digest-table {
    border: solid 2px #DDEEEE;
    border-collapse: collapse;
    border-spacing: 0;
    font: normal 14px Roboto, sans-serif;
  }
  .digest-table thead th {
    background-color: #DDEFEF;
    border: solid 1px #DDEEEE;
    color: #336B6B;
    padding: 10px;
    text-align: left;
  }
  .digest-table tbody td {
    border: solid 1px #DDEEEE;
    color: #333;
    padding: 10px;
  }
</style>
</head>
<body>
<h1>{{.Heading}}</h1>
<table class="digest-table" border="1">
<thead>
<tr><th>Name</th><th>Price</th><th>Description</th><th>Location</th><th>Posted Date</th><th>Distance</th><th>Search Date</th><th>URL</th></tr>
</thead>
<tbody>
{{range .Rows}}<tr><td>{{.Title}}</td><td>{{.Price}}</td><td>{{.Description}}</td><td>{{.Location}}</td><td>{{.PostTime}}</td><td>{{.Distance}}</td><td>{{.SearchDate}}</td><td><a href="{{.Link}}">{{.Link}}</a></td></tr>
{{end}}</tbody>
</table>
</body>
</html>
`

var digestTmpl = template.Must(template.New("digest").Parse(digestHTML))

// Digest is one notification: a subject plus the same table as HTML and as
// plain text.
type Digest struct {
	Subject        string
	HTML           string
	Text           string
	Listings       []models.Listing
	KeywordMatches int
}

// ComposerOptions configures subject and heading text.
type ComposerOptions struct {
	SubjectPrefix string
	Heading       string
	// Keywords are counted in the subject, e.g. month names for move-in dates.
	Keywords []string
}

// Composer renders digests.
type Composer struct {
	opts ComposerOptions
	now  func() time.Time
}

// NewComposer creates a Composer. now stamps the subject date.
func NewComposer(opts ComposerOptions, now func() time.Time) *Composer {
	if now == nil {
		now = time.Now
	}
	return &Composer{opts: opts, now: now}
}

// Pending returns the listings that have not been notified yet, in order.
func Pending(listings []models.Listing) []models.Listing {
	var out []models.Listing
	for _, l := range listings {
		if !l.EmailSent {
			out = append(out, l)
		}
	}
	return out
}

type digestRow struct {
	models.Listing
	SearchDate string
}

// Compose renders listings that are not yet sent, in the given order.
func (c *Composer) Compose(listings []models.Listing) (*Digest, error) {
	pending := Pending(listings)

	rows := make([]digestRow, len(pending))
	matches := 0
	for i, l := range pending {
		rows[i] = digestRow{Listing: l, SearchDate: searchDate(l)}
		if c.matchesKeyword(l) {
			matches++
		}
	}

	var buf bytes.Buffer
	err := digestTmpl.Execute(&buf, struct {
		Heading string
		Rows    []digestRow
	}{Heading: c.opts.Heading, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("digest: render: %w", err)
	}

	return &Digest{
		Subject:        c.subject(len(pending), matches),
		HTML:           buf.String(),
		Text:           textTable(pending),
		Listings:       pending,
		KeywordMatches: matches,
	}, nil
}

func (c *Composer) subject(count, matches int) string {
	s := fmt.Sprintf("%s%s - %d new listings", c.opts.SubjectPrefix, c.now().Format(digestDateLayout), count)
	if len(c.opts.Keywords) > 0 {
		s += fmt.Sprintf(" - %d keyword matches", matches)
	}
	return s
}

func (c *Composer) matchesKeyword(l models.Listing) bool {
	text := l.Text()
	for _, kw := range c.opts.Keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func searchDate(l models.Listing) string {
	if l.CreateDate.IsZero() {
		return ""
	}
	return l.CreateDate.Format(digestDateLayout)
}

type textColumn struct {
	header string
	max    int
	value  func(models.Listing) string
}

var textColumns = []textColumn{
	{"Name", 40, func(l models.Listing) string { return l.Title }},
	{"Price", 14, func(l models.Listing) string { return l.Price }},
	{"Description", 60, func(l models.Listing) string { return l.Description }},
	{"Location", 24, func(l models.Listing) string { return l.Location }},
	{"Posted Date", 26, func(l models.Listing) string { return l.PostTime }},
	{"Distance", 10, func(l models.Listing) string { return l.Distance }},
	{"Search Date", 11, searchDate},
	{"URL", 0, func(l models.Listing) string { return l.Link }},
}

// textTable lays the listings out in aligned columns. Widths are measured in
// terminal cells so CJK titles line up.
func textTable(listings []models.Listing) string {
	widths := make([]int, len(textColumns))
	for i, col := range textColumns {
		widths[i] = runewidth.StringWidth(col.header)
		for _, l := range listings {
			if w := runewidth.StringWidth(col.value(l)); w > widths[i] {
				widths[i] = w
			}
		}
		if col.max > 0 && widths[i] > col.max {
			widths[i] = col.max
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString(" | ")
			}
			if i == len(cells)-1 {
				b.WriteString(cell)
				continue
			}
			b.WriteString(runewidth.FillRight(runewidth.Truncate(cell, widths[i], "…"), widths[i]))
		}
		b.WriteString("\n")
	}

	header := make([]string, len(textColumns))
	rule := make([]string, len(textColumns))
	for i, col := range textColumns {
		header[i] = col.header
		rule[i] = strings.Repeat("-", widths[i])
	}
	writeRow(header)
	writeRow(rule)
	for _, l := range listings {
		cells := make([]string, len(textColumns))
		for i, col := range textColumns {
			cells[i] = col.value(l)
		}
		writeRow(cells)
	}
	return b.String()
}
