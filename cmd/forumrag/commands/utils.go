// ABOUTME: Display and flag helpers shared by the forumrag commands
// ABOUTME: Fits post text into table cells, labels evaluation runs and checks count flags
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/harper/forum-rag/internal/models"
)

// clip puts a chunk of forum text on one line and cuts it to width runes,
// marking the cut with a trailing "…"
func clip(s string, width int) string {
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if width <= 0 {
		return ""
	}
	if len(runes) <= width {
		return string(runes)
	}
	return string(runes[:width-1]) + "…"
}

// shortRunID is the first group of a run uuid
func shortRunID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return clip(id, 8)
}

// runAge says when an evaluation run started. Runs from the last day read as
// minutes or hours ago; older ones, and any timestamp ahead of now, print the
// UTC minute.
func runAge(ts, now time.Time) string {
	d := now.Sub(ts)
	switch {
	case d < 0:
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return ts.UTC().Format("2006-01-02 15:04Z")
}

// requireCount rejects a --top-k or --limit value below 1
func requireCount(flag string, v int) error {
	if v < 1 {
		return fmt.Errorf("%w: --%s must be at least 1, got %d", models.ErrConfig, flag, v)
	}
	return nil
}
