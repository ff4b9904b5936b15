package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for the TUI.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

var (
	successStyle = lipgloss.NewStyle().Foreground(DefaultTheme.Primary)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd75f"))
)

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Section is a labeled block of lines. Only the last lines that fit are
// shown.
type Section struct {
	Label string
	Lines []string
}

// Frame is a boxed status screen: a title with a status tag, sections, and
// a help line below the box.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render renders the frame to a string of exactly height lines.
func (f Frame) Render(width, height int) string {
	if width < 8 || height < 6 {
		return f.Title + " [" + f.Status + "]"
	}

	bc := f.Styles.Border
	inner := width - 4

	lines := []string{bc.Render("╭" + strings.Repeat("─", width-2) + "╮")}

	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Help.Render("[" + f.Status + "]")
	padding := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines, bc.Render("│")+" "+title+" "+status+strings.Repeat(" ", padding)+" "+bc.Render("│"))

	n := max(1, len(f.Sections))
	// top, title, one label per section, bottom, help
	rows := max((height-4-n)/n, 1)
	for _, sec := range f.Sections {
		lines = append(lines, f.renderSection(sec, rows, width, inner)...)
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	lines = append(lines, f.Styles.Help.Render(f.Help))
	return strings.Join(lines, "\n")
}

func (f Frame) renderSection(sec Section, rows, width, inner int) []string {
	bc := f.Styles.Border
	label := f.Styles.Label.Render(sec.Label)
	padding := max(0, width-3-lipgloss.Width(label))
	lines := []string{bc.Render("├") + bc.Render("─") + label + bc.Render(strings.Repeat("─", padding)) + bc.Render("┤")}

	content := sec.Lines
	if len(content) > rows {
		content = content[len(content)-rows:]
	}
	for i := range rows {
		text := ""
		if i < len(content) {
			text = content[i]
		}
		if lipgloss.Width(text) > inner {
			text = truncateString(text, inner-1) + "…"
		}
		lines = append(lines, bc.Render("│")+" "+text+strings.Repeat(" ", max(0, inner-lipgloss.Width(text)))+" "+bc.Render("│"))
	}
	return lines
}

// truncateString truncates s to the given display width.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	cur := 0
	for i, r := range s {
		w := lipgloss.Width(string(r))
		if cur+w > width {
			return s[:i]
		}
		cur += w
	}
	return s
}
