// Package util holds small terminal text helpers shared by the CLI.
package util

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "…"

// TruncateANSI shortens s to at most width visible columns, ending with an
// ellipsis when anything was cut. Escape sequences do not count toward the
// width and are preserved.
func TruncateANSI(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, ellipsis)
}

// PadANSI fits s into exactly width visible columns, truncating or padding
// with spaces on the right.
func PadANSI(s string, width int) string {
	s = TruncateANSI(s, width)
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// Plural returns "1 row" or "n rows".
func Plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
