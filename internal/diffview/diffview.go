// Package diffview formats rendered patches for the terminal, with per-file
// stats, diff colouring and syntax highlighting on context lines.
package diffview

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// FileDiff is one file's change within a patch.
type FileDiff struct {
	OldPath string
	NewPath string
	Created bool
	Removed bool
	Renamed bool
	Binary  bool
	Added   int
	Deleted int
	Hunks   []*gitdiff.TextFragment
}

// Path is the display path: both sides for a rename, the surviving side
// otherwise.
func (f *FileDiff) Path() string {
	switch {
	case f.Renamed:
		return fmt.Sprintf("%s → %s", f.OldPath, f.NewPath)
	case f.Removed:
		return f.OldPath
	case f.NewPath != "":
		return f.NewPath
	default:
		return f.OldPath
	}
}

// Patch is a parsed multi-file diff.
type Patch struct {
	Files []*FileDiff
}

// Totals sums the added and deleted line counts over every file.
func (p *Patch) Totals() (added, deleted int) {
	for _, f := range p.Files {
		added += f.Added
		deleted += f.Deleted
	}
	return added, deleted
}

// Parse reads a unified diff.
func Parse(raw string) (*Patch, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	p := &Patch{}
	for _, f := range files {
		fd := &FileDiff{
			OldPath: f.OldName,
			NewPath: f.NewName,
			Created: f.IsNew,
			Removed: f.IsDelete,
			Renamed: f.IsRename,
			Binary:  f.IsBinary,
			Hunks:   f.TextFragments,
		}
		for _, h := range f.TextFragments {
			fd.Added += int(h.LinesAdded)
			fd.Deleted += int(h.LinesDeleted)
		}
		p.Files = append(p.Files, fd)
	}
	return p, nil
}
