// Package tui implements the Bubble Tea merge request browser.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/sprite-ai/revq/internal/gitlab"
	"github.com/sprite-ai/revq/internal/mrdb"
)

// VersionEntry is one recorded version of a merge request together with its
// review progress over base..head.
type VersionEntry struct {
	mrdb.Version
	Reviewed int
	Total    int
}

// Request is a merge request with its version history, ready for display.
type Request struct {
	MR       gitlab.MergeRequest
	Versions []VersionEntry
}

// DiffFn renders the diff between two commits as styled terminal text.
type DiffFn func(base, head plumbing.Hash) (string, error)

// Model is the top-level Bubble Tea model for revq.
type Model struct {
	requests []Request
	username string
	diffFn   DiffFn

	// UI state
	width  int
	height int

	// List navigation
	cursor     int // index into visible()
	verCursor  int // selected version of the current request
	showHidden bool

	// Diff overlay
	diffOpen   bool
	diffLines  []string
	diffOffset int
	diffErr    error

	// Help
	showHelp bool
}

// New creates the browser model. Drafts and the user's own requests start
// out hidden.
func New(requests []Request, username string, diffFn DiffFn) Model {
	return Model{
		requests: requests,
		username: username,
		diffFn:   diffFn,
	}
}

// visible returns the indexes of the requests the current filter admits.
func (m Model) visible() []int {
	idx := make([]int, 0, len(m.requests))
	for i := range m.requests {
		if !m.showHidden && m.requests[i].MR.HiddenFor(m.username) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// current returns the selected request, or nil when the list is empty.
func (m Model) current() *Request {
	vis := m.visible()
	if len(vis) == 0 {
		return nil
	}
	if m.cursor >= len(vis) {
		return &m.requests[vis[len(vis)-1]]
	}
	return &m.requests[vis[m.cursor]]
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.diffOpen {
			return m.updateDiff(msg)
		}
		return m.updateList(msg)
	}

	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.visible())-1 {
			m.cursor++
			m.verCursor = 0
		}

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.verCursor = 0
		}

	case key.Matches(msg, keys.NextVersion):
		if r := m.current(); r != nil && m.verCursor < len(r.Versions)-1 {
			m.verCursor++
		}

	case key.Matches(msg, keys.PrevVersion):
		if m.verCursor > 0 {
			m.verCursor--
		}

	case key.Matches(msg, keys.Hidden):
		m.showHidden = !m.showHidden
		m.cursor = 0
		m.verCursor = 0

	case key.Matches(msg, keys.Open):
		m.openDiff()

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
	}

	return m, nil
}

func (m Model) updateDiff(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit), key.Matches(msg, keys.Back):
		m.diffOpen = false
		m.diffLines = nil
		m.diffErr = nil

	case key.Matches(msg, keys.Down):
		if m.diffOffset < len(m.diffLines)-1 {
			m.diffOffset++
		}

	case key.Matches(msg, keys.Up):
		if m.diffOffset > 0 {
			m.diffOffset--
		}
	}

	return m, nil
}

func (m *Model) openDiff() {
	r := m.current()
	if r == nil || len(r.Versions) == 0 || m.diffFn == nil {
		return
	}
	if m.verCursor >= len(r.Versions) {
		m.verCursor = len(r.Versions) - 1
	}
	v := r.Versions[m.verCursor]

	m.diffOpen = true
	m.diffOffset = 0
	text, err := m.diffFn(v.Base, v.Head)
	if err != nil {
		m.diffErr = err
		m.diffLines = nil
		return
	}
	m.diffErr = nil
	m.diffLines = splitLines(text)
}

// Run starts the browser.
func Run(requests []Request, username string, diffFn DiffFn) error {
	m := New(requests, username, diffFn)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
