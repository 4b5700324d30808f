package scraper

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"kijiji-watcher/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	ChromeBin   string
	Headless    bool
	PageTimeout time.Duration
	// Settle is how long to wait after navigation for client-side rendering.
	Settle time.Duration
	// MinInterval is the minimum gap between two page loads.
	MinInterval time.Duration
}

// BrowserFetcher loads pages in a single headless Chrome instance, one tab per
// fetch. Close must be called to stop the browser process.
type BrowserFetcher struct {
	opts    BrowserOptions
	logger  *utils.Logger
	limiter *rate.Limiter

	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewBrowserFetcher starts the browser.
func NewBrowserFetcher(opts BrowserOptions, logger *utils.Logger) (*BrowserFetcher, error) {
	chromeBin := resolveChromeBinary(opts.ChromeBin, exec.LookPath)
	logger.Info("[browser] Using browser binary: %q", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	// Suppress chromedp log noise
	browserCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// An empty Run launches the browser so start-up failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start: %w", err)
	}

	return &BrowserFetcher{
		opts:        opts,
		logger:      logger,
		limiter:     newLimiter(opts.MinInterval),
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
	}, nil
}

// Fetch navigates a fresh tab to pageURL and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("browser: rate limit: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.opts.PageTimeout)
	defer cancelTimeout()

	// The tab hangs off the browser context, so tie it to the caller as well.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(b.opts.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser: fetch %s: %w", pageURL, err)
	}

	b.logger.Debug("[browser] Fetched %s (%d bytes)", pageURL, len(html))
	return html, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (b *BrowserFetcher) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}

func newLimiter(minInterval time.Duration) *rate.Limiter {
	if minInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(minInterval), 1)
}

// chromeCandidates are tried in order when no binary is configured. Bare
// names go through PATH; absolute paths are checked as-is.
var chromeCandidates = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"/snap/bin/chromium",
	"/opt/google/chrome/google-chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

// resolveChromeBinary returns configured when set, otherwise the first
// candidate lookPath accepts. An empty result lets chromedp use its default.
func resolveChromeBinary(configured string, lookPath func(string) (string, error)) string {
	if configured != "" {
		return configured
	}
	for _, name := range chromeCandidates {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	return ""
}
