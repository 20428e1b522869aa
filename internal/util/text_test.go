package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateANSI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{"fits", "Session_1", 10, "Session_1"},
		{"exact", "Session_1", 9, "Session_1"},
		{"cut", "Session_12_SYNTH", 10, "Session_1…"},
		{"zero width", "Session_1", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateANSI(tt.input, tt.width); got != tt.want {
				t.Errorf("TruncateANSI(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.want)
			}
		})
	}
}

func TestTruncateANSI_StyledText(t *testing.T) {
	styled := lipgloss.NewStyle().Bold(true).Render("Session_12_SYNTH")
	got := TruncateANSI(styled, 8)
	if w := lipgloss.Width(got); w > 8 {
		t.Errorf("visible width = %d, want <= 8", w)
	}
}

func TestPadANSI(t *testing.T) {
	tests := []struct {
		input string
		width int
		want  string
	}{
		{"abc", 6, "abc   "},
		{"abcdef", 6, "abcdef"},
		{"abcdefgh", 6, "abcde…"},
	}

	for _, tt := range tests {
		if got := PadANSI(tt.input, tt.width); got != tt.want {
			t.Errorf("PadANSI(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.want)
		}
	}
}

func TestPlural(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 rows"},
		{1, "1 row"},
		{250, "250 rows"},
	}

	for _, tt := range tests {
		if got := Plural(tt.n, "row"); got != tt.want {
			t.Errorf("Plural(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
