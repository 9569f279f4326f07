package tokenutil

import (
	"strings"
	"testing"
)

func TestEstimateFast(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\t", 0},
		{"single char", "a", 1},
		{"short words dominate", "a b c d e f", 6},
		{"long run dominates", strings.Repeat("x", 40), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateFast(tt.text); got != tt.want {
				t.Errorf("EstimateFast(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestCountNeverZeroForContent(t *testing.T) {
	if Count("") != 0 {
		t.Error("empty text should count 0")
	}
	if Count("hello world") <= 0 {
		t.Error("non-empty text should count > 0")
	}
	// Longer text counts more.
	short := Count("hello")
	long := Count(strings.Repeat("hello world ", 50))
	if long <= short {
		t.Errorf("count should grow with content: short=%d long=%d", short, long)
	}
}

func TestTruncate(t *testing.T) {
	text := strings.Repeat("one two three four five ", 100)

	cut := Truncate(text, 20)
	if len(cut) >= len(text) {
		t.Fatal("truncation did not shorten the text")
	}
	if !strings.HasSuffix(cut, "...") {
		t.Fatalf("truncated text missing ellipsis: %q", cut[len(cut)-10:])
	}
	if Count(strings.TrimSuffix(cut, "...")) > 20 {
		t.Errorf("truncated text still exceeds the budget: %d tokens", Count(cut))
	}

	// Text under the budget passes through untouched.
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("short text modified: %q", got)
	}
	// A non-positive budget disables truncation.
	if got := Truncate(text, 0); got != text {
		t.Error("zero budget should return the text unchanged")
	}
}
