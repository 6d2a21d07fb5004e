// Package tui renders gateway state for terminal users.
//
// RenderStatus prints a human-readable summary of a gateway.StatsResponse:
// backend health, call counters, cache effectiveness, rate limit headroom
// and queue depth. Bars are color-coded by how close a resource is to
// exhaustion.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/compresr/assist-gateway/internal/gateway"
)

// =============================================================================
// COLORS
// =============================================================================

const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
	ColorRed    = "\033[0;31m"
	ColorGreen  = "\033[0;32m"
	ColorYellow = "\033[1;33m"
	ColorBlue   = "\033[0;34m"
)

// palette switches ANSI codes off for non-terminal output.
type palette struct{ on bool }

func (p palette) c(code string) string {
	if p.on {
		return code
	}
	return ""
}

// =============================================================================
// STATUS
// =============================================================================

// RenderStatus writes a summary of st. maxPerWindow sizes the rate limit bar;
// now is used for the "checked N ago" hint.
func RenderStatus(w io.Writer, st gateway.StatsResponse, maxPerWindow int, now time.Time, color bool) {
	p := palette{on: color}
	ok := p.c(ColorGreen) + "[OK]" + p.c(ColorReset)
	warn := p.c(ColorYellow) + "[WARN]" + p.c(ColorReset)
	info := p.c(ColorBlue) + "[INFO]" + p.c(ColorReset)

	// Backend
	b := st.Backend
	switch {
	case !b.Probed:
		fmt.Fprintf(w, "%s Backend: %s (not probed yet)\n", info, b.BaseURL)
	case b.Available:
		fmt.Fprintf(w, "%s Backend: %s available%s\n", ok, b.BaseURL, checkedAgo(b.CheckedAt, now))
	default:
		fmt.Fprintf(w, "%s Backend: %s unavailable: %s%s\n", warn, b.BaseURL, b.Reason, checkedAgo(b.CheckedAt, now))
	}

	fmt.Fprintf(w, "%s Uptime: %s\n", info, st.Uptime)

	// Calls and errors
	calls := fmt.Sprintf("Calls: %d", st.Stats.TotalCalls)
	if st.Stats.Errors > 0 {
		kinds := make([]string, 0, len(st.ErrorsByKind))
		for _, e := range st.ErrorsByKind {
			kinds = append(kinds, fmt.Sprintf("%s=%d", e.Kind, e.Count))
		}
		fmt.Fprintf(w, "%s %s, errors: %d (%s)\n", warn, calls, st.Stats.Errors, strings.Join(kinds, ", "))
	} else {
		fmt.Fprintf(w, "%s %s, no errors\n", ok, calls)
	}

	// Cache. A high hit rate is good, so the bar shows misses.
	if lookups := st.Stats.CacheHits + st.Stats.CacheMisses; lookups > 0 {
		fmt.Fprintf(w, "%s Cache: %d entries, %d/%d hits  %s %.0f%%\n",
			info, st.Cache.Entries, st.Stats.CacheHits, lookups,
			renderMiniBar(p, 100-st.CacheHitRate, 15), st.CacheHitRate)
	} else {
		fmt.Fprintf(w, "%s Cache: %d entries, no lookups yet\n", info, st.Cache.Entries)
	}

	// Rate limit
	if maxPerWindow > 0 {
		used := float64(maxPerWindow-st.RateLimit.Remaining) / float64(maxPerWindow) * 100
		tag := info
		if st.RateLimit.Remaining == 0 {
			tag = warn
		}
		line := fmt.Sprintf("%s Rate limit: %d/%d remaining  %s", tag, st.RateLimit.Remaining, maxPerWindow, renderMiniBar(p, used, 15))
		if st.RateLimit.RetryAfterMs > 0 {
			line += fmt.Sprintf("  (next slot in %s)", time.Duration(st.RateLimit.RetryAfterMs)*time.Millisecond)
		}
		fmt.Fprintln(w, line)
	}

	// Queue
	q := st.Queue
	tag := info
	if q.Rejected > 0 || q.Expired > 0 {
		tag = warn
	}
	fmt.Fprintf(w, "%s Queue: %d pending, %d enqueued, %d rejected, %d expired\n",
		tag, q.Pending, q.Enqueued, q.Rejected, q.Expired)
}

// =============================================================================
// PROGRESS BAR
// =============================================================================

// renderMiniBar returns a compact bar without brackets for inline display.
// width is the number of bar characters.
func renderMiniBar(p palette, percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	empty := width - filled

	barColor := ColorGreen
	if percent >= 80 {
		barColor = ColorRed
	} else if percent >= 50 {
		barColor = ColorYellow
	}

	var sb strings.Builder
	sb.WriteString(p.c(barColor))
	sb.WriteString(strings.Repeat("█", filled))
	sb.WriteString(p.c(ColorReset) + p.c(ColorDim))
	sb.WriteString(strings.Repeat("░", empty))
	sb.WriteString(p.c(ColorReset))
	return sb.String()
}

// =============================================================================
// HELPERS
// =============================================================================

func checkedAgo(checkedAt string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, checkedAt)
	if err != nil {
		return ""
	}
	return " (checked " + formatDuration(now.Sub(t)) + ")"
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(d.Hours()))
}
