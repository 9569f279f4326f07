// Package diff renders unified diffs for file-editing tools. The diff is
// attached to the edit as an artifact so reviewers see what changed
// without re-reading the file.
package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxDiffableSize skips diffing pathologically large payloads.
const maxDiffableSize = 10 * 1024 * 1024

// Result is a rendered diff plus its line statistics.
type Result struct {
	Unified      string
	AddedLines   int
	DeletedLines int
	Binary       bool
}

// Unified produces a unified diff between before and after for the named
// file. Identical contents yield an empty diff; binary and oversized
// contents yield a placeholder.
func Unified(before, after, filename string) *Result {
	if before == after {
		return &Result{}
	}
	if isBinary(before) || isBinary(after) {
		return &Result{
			Unified: fmt.Sprintf("Binary file %s changed", filename),
			Binary:  true,
		}
	}
	if len(before) > maxDiffableSize || len(after) > maxDiffableSize {
		return &Result{
			Unified: fmt.Sprintf("--- a/%s\n+++ b/%s\n@@ file too large, diff skipped @@", filename, filename),
		}
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))
	patches := dmp.PatchMake(before, diffs)

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", filename, filename)
	b.WriteString(dmp.PatchToText(patches))

	added, deleted := countChanges(diffs)
	return &Result{
		Unified:      b.String(),
		AddedLines:   added,
		DeletedLines: deleted,
	}
}

// Summary is a one-line human summary of the change.
func (r *Result) Summary() string {
	switch {
	case r.Binary:
		return "binary file changed"
	case r.AddedLines == 0 && r.DeletedLines == 0:
		return "no changes"
	}
	var parts []string
	if r.AddedLines > 0 {
		parts = append(parts, fmt.Sprintf("+%d lines", r.AddedLines))
	}
	if r.DeletedLines > 0 {
		parts = append(parts, fmt.Sprintf("-%d lines", r.DeletedLines))
	}
	return strings.Join(parts, ", ")
}

// Colorize renders the unified diff with terminal colors for CLI output.
func Colorize(unified string) string {
	var b strings.Builder
	for _, line := range strings.Split(unified, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			b.WriteString(color.CyanString(line))
		case strings.HasPrefix(line, "+"):
			b.WriteString(color.GreenString(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(color.RedString(line))
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func countChanges(diffs []diffmatchpatch.Diff) (added, deleted int) {
	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		if !strings.HasSuffix(d.Text, "\n") {
			n++
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			deleted += n
		}
	}
	return
}

func isBinary(content string) bool {
	limit := len(content)
	if limit > 8000 {
		limit = 8000
	}
	for i := 0; i < limit; i++ {
		if content[i] == 0 {
			return true
		}
	}
	return false
}
