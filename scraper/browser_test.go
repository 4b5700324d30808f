package scraper

import (
	"errors"
	"testing"
)

func TestResolveChromeBinary(t *testing.T) {
	installed := func(names ...string) func(string) (string, error) {
		return func(name string) (string, error) {
			for _, n := range names {
				if n == name {
					return "/usr/bin/" + name, nil
				}
			}
			return "", errors.New("not found")
		}
	}

	tests := []struct {
		name       string
		configured string
		lookPath   func(string) (string, error)
		want       string
	}{
		{"configured wins", "/custom/chrome", installed("google-chrome"), "/custom/chrome"},
		{"first candidate on PATH", "", installed("chromium", "google-chrome"), "/usr/bin/google-chrome"},
		{"later candidate", "", installed("chromium-browser"), "/usr/bin/chromium-browser"},
		{"nothing installed", "", installed(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveChromeBinary(tt.configured, tt.lookPath); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
