package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kijiji-watcher/utils"
)

type stubSender struct {
	err   error
	panic bool
	sent  []Message
}

func (s *stubSender) Send(ctx context.Context, msg Message) error {
	if s.panic {
		panic("smtp client exploded")
	}
	s.sent = append(s.sent, msg)
	return s.err
}

func fixedNow() time.Time { return time.Date(2024, 8, 5, 9, 30, 0, 0, time.UTC) }

func TestNotifyDelivered(t *testing.T) {
	dir := t.TempDir()
	s := &stubSender{}
	n := NewNotifier(s, NewFallbackWriter(dir, fixedNow), utils.NewNopLogger())

	out, err := n.Notify(context.Background(), Message{Subject: "s", HTML: "<p>x</p>"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !out.Delivered || out.FallbackPath != "" {
		t.Errorf("unexpected outcome: %+v", out)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("no fallback file expected, found %d", len(entries))
	}
}

func TestNotifyFailureWritesExactDigest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	sendErr := errors.New("535 authentication failed")
	n := NewNotifier(&stubSender{err: sendErr}, NewFallbackWriter(dir, fixedNow), utils.NewNopLogger())

	body := "<html><body><table><tr><td>Room</td></tr></table></body></html>"
	out, err := n.Notify(context.Background(), Message{Subject: "s", HTML: body})
	if err != nil {
		t.Fatalf("Notify should absorb send failure: %v", err)
	}
	if out.Delivered {
		t.Error("Delivered should be false")
	}
	if !errors.Is(out.SendErr, sendErr) {
		t.Errorf("SendErr: got %v", out.SendErr)
	}

	data, err := os.ReadFile(out.FallbackPath)
	if err != nil {
		t.Fatalf("fallback file: %v", err)
	}
	if string(data) != body {
		t.Errorf("fallback content: got %q, want %q", data, body)
	}
	if !strings.HasPrefix(filepath.Base(out.FallbackPath), "digest-20240805-093000") {
		t.Errorf("unexpected fallback name %q", out.FallbackPath)
	}
}

func TestNotifyRecoversFromPanickingSender(t *testing.T) {
	dir := t.TempDir()
	n := NewNotifier(&stubSender{panic: true}, NewFallbackWriter(dir, fixedNow), utils.NewNopLogger())

	out, err := n.Notify(context.Background(), Message{HTML: "<p>x</p>"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if out.Delivered || out.FallbackPath == "" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestNotifyReportsFallbackFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	n := NewNotifier(&stubSender{err: errors.New("down")}, NewFallbackWriter(file, fixedNow), utils.NewNopLogger())

	if _, err := n.Notify(context.Background(), Message{HTML: "x"}); err == nil {
		t.Error("expected error when the fallback directory cannot be created")
	}
}

func TestFallbackNamesDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	w := NewFallbackWriter(dir, fixedNow)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		p, err := w.Write("same")
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if seen[p] {
			t.Fatalf("duplicate path %s", p)
		}
		seen[p] = true
	}
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@example.com", To: []string{"b@example.com"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Send(ctx, Message{Subject: "s", HTML: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
