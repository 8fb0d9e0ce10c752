package diffview

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/charmbracelet/lipgloss"
)

var (
	fileHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	hunkHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	addedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	deletedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	statStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

// Render formats a raw patch for the terminal: styled file and hunk headers,
// coloured add/delete lines, and syntax highlighting on context lines.
func Render(raw string) (string, error) {
	patch, err := Parse(raw)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, f := range patch.Files {
		b.WriteString(fileHeaderStyle.Render(f.Path()))
		b.WriteString(statStyle.Render(fmt.Sprintf("  +%d -%d", f.Added, f.Deleted)))
		b.WriteString("\n")

		if f.Binary {
			b.WriteString("  (binary file)\n")
			continue
		}

		for _, frag := range f.Hunks {
			b.WriteString(hunkHeaderStyle.Render(fragmentHeader(frag)))
			b.WriteString("\n")

			highlighted := highlightFragment(f.Path(), frag)
			for i, line := range frag.Lines {
				text := strings.TrimRight(line.Line, "\n")
				switch line.Op {
				case gitdiff.OpAdd:
					b.WriteString(addedStyle.Render("+" + text))
				case gitdiff.OpDelete:
					b.WriteString(deletedStyle.Render("-" + text))
				default:
					b.WriteString(" " + highlighted[i])
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func fragmentHeader(frag *gitdiff.TextFragment) string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@ %s",
		frag.OldPosition, frag.OldLines, frag.NewPosition, frag.NewLines,
		strings.TrimSpace(frag.Comment))
}

// highlightFragment returns one rendered string per fragment line; only
// context lines carry syntax colours, add/delete lines are coloured whole.
func highlightFragment(filename string, frag *gitdiff.TextFragment) []string {
	lines := make([]string, len(frag.Lines))
	for i, l := range frag.Lines {
		lines[i] = strings.TrimRight(l.Line, "\n")
	}
	hl := HighlightLines(filename, lines)
	out := make([]string, len(lines))
	for i, h := range hl {
		var b strings.Builder
		for _, tok := range h.Tokens {
			if tok.Color != "" {
				b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
			} else {
				b.WriteString(tok.Text)
			}
		}
		out[i] = b.String()
	}
	return out
}
