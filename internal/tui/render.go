package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/revq/internal/gitlab"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}
	if m.diffOpen {
		return m.renderDiff()
	}

	// Layout: merge request list on the left, detail on the right
	listWidth := m.listWidth()
	detailWidth := m.width - listWidth - 1

	list := m.renderList(listWidth, m.height-2)
	detail := m.renderDetail(detailWidth, m.height-2)

	main := lipgloss.JoinHorizontal(lipgloss.Top, list, " ", detail)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) listWidth() int {
	maxLen := 24
	for _, i := range m.visible() {
		label := listLabel(&m.requests[i].MR)
		if len(label) > maxLen {
			maxLen = len(label)
		}
	}
	w := maxLen + 4
	if w > m.width/2 {
		w = m.width / 2
	}
	if w < 24 {
		w = 24
	}
	return w
}

func listLabel(mr *gitlab.MergeRequest) string {
	return fmt.Sprintf("!%d %s", mr.IID, mr.Title)
}

func (m Model) renderList(width, height int) string {
	vis := m.visible()

	var b strings.Builder
	if len(vis) == 0 {
		b.WriteString(helpBarStyle.Render("no merge requests"))
	}
	for row, i := range vis {
		mr := &m.requests[i].MR

		label := listLabel(mr)
		maxLabel := width - 4
		if maxLabel > 0 && len(label) > maxLabel {
			label = label[:maxLabel-1] + "…"
		}

		var style lipgloss.Style
		switch {
		case row == m.cursor:
			style = itemSelectedStyle
		case mr.Draft:
			style = itemDraftStyle
		default:
			style = itemStyle
		}

		b.WriteString(style.Width(width - 4).Render(label))
		if row < len(vis)-1 {
			b.WriteByte('\n')
		}
	}

	return listStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderDetail(width, height int) string {
	r := m.current()
	innerHeight := height - 2
	if r == nil {
		return detailStyle.Width(width).Height(innerHeight).Render("Nothing selected")
	}
	mr := &r.MR

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("!%d %s", mr.IID, mr.Title)))
	b.WriteByte('\n')

	b.WriteString(fieldStyle.Render("author  "))
	b.WriteString(mr.Author.Name)
	b.WriteByte('\n')
	b.WriteString(fieldStyle.Render("branch  "))
	b.WriteString(fmt.Sprintf("%s → %s", mr.SourceBranch, mr.TargetBranch))
	b.WriteByte('\n')
	b.WriteString(fieldStyle.Render("state   "))
	b.WriteString(stateStyle(mr.State).Render(string(mr.State)))
	b.WriteString("\n\n")

	if len(r.Versions) == 0 {
		b.WriteString(helpBarStyle.Render("no versions recorded yet, run revq sync"))
	}
	for i, v := range r.Versions {
		style := versionStyle
		if i == m.verCursor {
			style = versionSelectedStyle
		}
		progress := progressPendingStyle
		if v.Total > 0 && v.Reviewed == v.Total {
			progress = progressDoneStyle
		}
		line := style.Render(v.String()) +
			progress.Render(fmt.Sprintf("  (%d/%d reviewed)", v.Reviewed, v.Total))
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if mr.Description != "" {
		b.WriteByte('\n')
		b.WriteString(truncateText(mr.Description, width-4, innerHeight-8-len(r.Versions)))
	}

	return detailStyle.Width(width).Height(innerHeight).Render(b.String())
}

func stateStyle(s gitlab.State) lipgloss.Style {
	switch s {
	case gitlab.StateMerged:
		return stateMergedStyle
	case gitlab.StateClosed:
		return stateClosedStyle
	default:
		return stateOpenStyle
	}
}

func (m Model) renderDiff() string {
	if m.diffErr != nil {
		return detailStyle.Width(m.width).Height(m.height - 2).
			Render(stateClosedStyle.Render("diff unavailable: " + m.diffErr.Error()))
	}

	visible := m.height - 3
	if visible < 1 {
		visible = 1
	}
	end := m.diffOffset + visible
	if end > len(m.diffLines) {
		end = len(m.diffLines)
	}

	var b strings.Builder
	for i := m.diffOffset; i < end; i++ {
		b.WriteString(m.diffLines[i])
		if i < end-1 {
			b.WriteByte('\n')
		}
	}

	body := detailStyle.Width(m.width).Height(m.height - 3).Render(b.String())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	vis := m.visible()

	var left string
	if m.diffOpen {
		left = fmt.Sprintf(" Line %d/%d", m.diffOffset+1, len(m.diffLines))
	} else {
		left = fmt.Sprintf(" MR %d/%d", min(m.cursor+1, len(vis)), len(vis))
	}

	filter := "hiding drafts & own"
	if m.showHidden {
		filter = "showing all"
	}
	right := fmt.Sprintf("%s  ? help ", filter)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("revq — Keyboard Shortcuts"))
	b.WriteString("\n\n")

	helpItems := []struct{ key, desc string }{
		{"↑/k", "Previous merge request"},
		{"↓/j", "Next merge request"},
		{"]/Tab", "Next version"},
		{"[/S-Tab", "Previous version"},
		{"enter", "Show version diff"},
		{"esc", "Close diff"},
		{"h", "Toggle drafts & own requests"},
		{"?", "Toggle this help"},
		{"q", "Quit"},
	}

	for _, item := range helpItems {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			helpKeyStyle.Width(12).Render(item.key),
			item.desc,
		))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))

	return b.String()
}

func truncateText(text string, width, maxLines int) string {
	if maxLines < 1 {
		return ""
	}
	lines := splitLines(text)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	for i, l := range lines {
		if width > 0 && len(l) > width {
			lines[i] = l[:width-1] + "…"
		}
	}
	return helpBarStyle.Render(strings.Join(lines, "\n"))
}

func splitLines(text string) []string {
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}
