package diff

import (
	"strings"
	"testing"
)

func TestUnifiedIdenticalContent(t *testing.T) {
	r := Unified("same", "same", "a.txt")
	if r.Unified != "" || r.AddedLines != 0 || r.DeletedLines != 0 {
		t.Fatalf("identical content should produce an empty diff: %+v", r)
	}
	if r.Summary() != "no changes" {
		t.Errorf("summary = %q", r.Summary())
	}
}

func TestUnifiedTextChange(t *testing.T) {
	before := "alpha\nbeta\ngamma\n"
	after := "alpha\nBETA\ngamma\ndelta\n"

	r := Unified(before, after, "notes.txt")
	if r.Binary {
		t.Fatal("text change flagged as binary")
	}
	if !strings.HasPrefix(r.Unified, "--- a/notes.txt\n+++ b/notes.txt\n") {
		t.Fatalf("missing file header: %q", r.Unified)
	}
	if !strings.Contains(r.Unified, "@@") {
		t.Fatalf("missing hunk header: %q", r.Unified)
	}
	if r.AddedLines == 0 || r.DeletedLines == 0 {
		t.Fatalf("expected both additions and deletions: %+v", r)
	}

	summary := r.Summary()
	if !strings.Contains(summary, "+") || !strings.Contains(summary, "-") {
		t.Errorf("summary should mention both directions: %q", summary)
	}
}

func TestUnifiedBinaryContent(t *testing.T) {
	r := Unified("plain", "bin\x00ary", "blob.dat")
	if !r.Binary {
		t.Fatal("NUL bytes should mark the diff binary")
	}
	if !strings.Contains(r.Unified, "Binary file blob.dat changed") {
		t.Fatalf("unexpected binary placeholder: %q", r.Unified)
	}
	if r.Summary() != "binary file changed" {
		t.Errorf("summary = %q", r.Summary())
	}
}

func TestUnifiedOversizedContent(t *testing.T) {
	huge := strings.Repeat("x", maxDiffableSize+1)
	r := Unified(huge, "small", "big.txt")
	if !strings.Contains(r.Unified, "diff skipped") {
		t.Fatalf("oversized content should skip diffing: %q", r.Unified[:80])
	}
}

func TestColorizePreservesLines(t *testing.T) {
	unified := "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-old\n+new"
	colored := Colorize(unified)

	// Same line count regardless of color escapes.
	if got, want := len(strings.Split(colored, "\n")), len(strings.Split(unified, "\n")); got != want {
		t.Fatalf("line count changed: got %d, want %d", got, want)
	}
	for _, word := range []string{"old", "new", "@@"} {
		if !strings.Contains(colored, word) {
			t.Errorf("colorized output lost %q", word)
		}
	}
}
