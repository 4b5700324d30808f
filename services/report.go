package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"kijiji-watcher/scraper"
)

// Report summarises one run.
type Report struct {
	StartedAt time.Time
	Finished  time.Time

	Pages     int
	Extracted int
	Skipped   int
	Stop      scraper.StopReason

	New   int
	Known int

	Enriched      int
	EnrichFailed  int
	EnrichSkipped int

	Notified       int
	KeywordMatches int
	Delivered      bool
	FallbackPath   string

	StoreSize int
}

// PrintReport writes a human-readable summary of r to w.
func PrintReport(w io.Writer, r *Report) {
	if r == nil {
		return
	}
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  LISTING WATCH RUN %s\033[0m\n", r.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Crawl\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Pages crawled      : \033[1m%d\033[0m\n", r.Pages)
	fmt.Fprintf(w, "  Listings extracted : \033[1m%d\033[0m\n", r.Extracted)
	fmt.Fprintf(w, "  Records skipped    : %d\n", r.Skipped)
	fmt.Fprintf(w, "  Stopped because    : %s\n", stopText(r.Stop))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  New                : \033[1;32m%d\033[0m\n", r.New)
	fmt.Fprintf(w, "  Already known      : %d\n", r.Known)
	if r.Enriched+r.EnrichFailed+r.EnrichSkipped > 0 {
		fmt.Fprintf(w, "  Descriptions       : %d fetched, %d failed, %d skipped\n",
			r.Enriched, r.EnrichFailed, r.EnrichSkipped)
	}
	fmt.Fprintf(w, "  Stored in history  : %d\n", r.StoreSize)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Notification\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	switch {
	case r.Notified == 0 && r.FallbackPath == "" && !r.Delivered:
		fmt.Fprintf(w, "  Nothing to send\n")
	case r.Delivered:
		fmt.Fprintf(w, "  Sent \033[1;32m%d\033[0m listings (%d keyword matches)\n", r.Notified, r.KeywordMatches)
	case r.FallbackPath != "":
		fmt.Fprintf(w, "  \033[1;31mNot delivered\033[0m, saved to %s\n", r.FallbackPath)
	default:
		fmt.Fprintf(w, "  \033[1;31mNot delivered\033[0m\n")
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func stopText(s scraper.StopReason) string {
	if s == "" {
		return "-"
	}
	return string(s)
}
