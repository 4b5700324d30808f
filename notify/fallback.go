package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"kijiji-watcher/utils"
)

// FallbackWriter stores undelivered digests as standalone HTML files.
type FallbackWriter struct {
	dir string
	now func() time.Time
}

// NewFallbackWriter writes into dir, creating it on first use.
func NewFallbackWriter(dir string, now func() time.Time) *FallbackWriter {
	if now == nil {
		now = time.Now
	}
	return &FallbackWriter{dir: dir, now: now}
}

// Write stores body under a new timestamped name and fsyncs it before
// returning the path. An existing file is never overwritten.
func (w *FallbackWriter) Write(body string) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("fallback: create dir: %w", err)
	}

	name := fmt.Sprintf("digest-%s-%s.html",
		w.now().Format("20060102-150405.000000000"), uuid.NewString()[:8])
	path := filepath.Join(w.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("fallback: create %q: %w", path, err)
	}
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("fallback: write %q: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("fallback: sync %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("fallback: close %q: %w", path, err)
	}
	syncDir(w.dir)
	return path, nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Outcome describes what happened to one digest.
type Outcome struct {
	Delivered    bool
	FallbackPath string
	SendErr      error
}

// Notifier sends digests and falls back to a local file on failure.
type Notifier struct {
	sender   Sender
	fallback *FallbackWriter
	logger   *utils.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(sender Sender, fallback *FallbackWriter, logger *utils.Logger) *Notifier {
	return &Notifier{sender: sender, fallback: fallback, logger: logger}
}

// Notify delivers msg. A send failure is not an error as long as the HTML
// body was saved locally; the error result is reserved for the case where
// both delivery and the local copy failed.
func (n *Notifier) Notify(ctx context.Context, msg Message) (Outcome, error) {
	err := n.safeSend(ctx, msg)
	if err == nil {
		n.logger.Info("[notify] Sent %q", msg.Subject)
		return Outcome{Delivered: true}, nil
	}

	n.logger.Error("[notify] Failed to send email: %v", err)
	path, werr := n.fallback.Write(msg.HTML)
	if werr != nil {
		return Outcome{SendErr: err}, fmt.Errorf("notify: send failed (%v) and digest could not be saved: %w", err, werr)
	}

	n.logger.Warn("[notify] Undelivered digest saved to %s", path)
	return Outcome{FallbackPath: path, SendErr: err}, nil
}

func (n *Notifier) safeSend(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	return n.sender.Send(ctx, msg)
}
