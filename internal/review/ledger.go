// Package review maintains per-commit review annotations and classifies
// commits into review statuses.
package review

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sprite-ai/revq/internal/gitstore"
)

// DuplicateFinder reports commits whose normalized diff is identical to the
// given commit's. Satisfied by *similarity.Index.
type DuplicateFinder interface {
	ExactDuplicates(c *object.Commit) ([]plumbing.Hash, error)
}

// Ledger reads and writes review annotations and answers status queries.
type Ledger struct {
	store *gitstore.Store
	log   *slog.Logger

	// Local reviewer identity, resolved once at construction.
	name  string
	email string

	// Optional duplicate detection; nil means disabled.
	dup DuplicateFinder
}

// NewLedger builds a ledger over the given store. The reviewer identity is
// resolved eagerly so that later classification cannot half-fail.
func NewLedger(store *gitstore.Store, log *slog.Logger) (*Ledger, error) {
	name, email, err := store.Identity()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: store, log: log, name: name, email: email}, nil
}

// EnableDedup turns on duplicate detection for Classify.
func (l *Ledger) EnableDedup(d DuplicateFinder) {
	l.dup = d
}

// Append attaches line to the commit's annotation. The stored note is always
// the sorted, deduplicated union of every line ever attached, so appending
// the same line twice is a no-op. The resulting line set is returned.
func (l *Ledger) Append(h plumbing.Hash, line string) ([]string, error) {
	old, _, err := l.store.Note(h)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	for _, existing := range strings.Split(old, "\n") {
		if existing != "" {
			set[existing] = true
		}
	}
	set[line] = true

	lines := make([]string, 0, len(set))
	for s := range set {
		lines = append(lines, s)
	}
	sort.Strings(lines)

	if err := l.store.SetNote(h, strings.Join(lines, "\n")); err != nil {
		return nil, fmt.Errorf("write note for %s: %w", h, err)
	}
	l.log.Debug("annotation updated", "commit", h.String(), "lines", lines)
	return lines, nil
}

// Note returns the commit's annotation lines, if any.
func (l *Ledger) Note(h plumbing.Hash) ([]string, error) {
	text, ok, err := l.store.Note(h)
	if err != nil || !ok {
		return nil, err
	}
	var lines []string
	for _, s := range strings.Split(text, "\n") {
		if s != "" {
			lines = append(lines, s)
		}
	}
	return lines, nil
}

// Classify derives the review status of the commit at h.
func (l *Ledger) Classify(h plumbing.Hash) (Status, error) {
	c, err := l.store.Commit(h)
	if err != nil {
		return StatusNew, err
	}
	return l.ClassifyCommit(c)
}

// ClassifyCommit is Classify for an already-loaded commit.
func (l *Ledger) ClassifyCommit(c *object.Commit) (Status, error) {
	note, ok, err := l.store.Note(c.Hash)
	if err != nil {
		return StatusNew, err
	}
	if ok {
		for _, line := range strings.Split(note, "\n") {
			if line == CheckpointMarker {
				return StatusCheckpoint, nil
			}
		}
		return StatusReviewed, nil
	}

	if l.isOurs(c) {
		return StatusOurs, nil
	}
	if c.NumParents() > 1 {
		return StatusMerge, nil
	}

	if l.dup != nil {
		reviewed, err := l.reviewedDuplicate(c)
		if err != nil {
			return StatusNew, err
		}
		if reviewed {
			return StatusReviewed, nil
		}
	}
	return StatusNew, nil
}

func (l *Ledger) isOurs(c *object.Commit) bool {
	if l.email != "" && c.Author.Email != "" {
		return c.Author.Email == l.email
	}
	return l.name != "" && c.Author.Name == l.name
}

// reviewedDuplicate reports whether some already-annotated commit carries a
// diff identical to c's.
func (l *Ledger) reviewedDuplicate(c *object.Commit) (bool, error) {
	dups, err := l.dup.ExactDuplicates(c)
	if err != nil {
		return false, err
	}
	for _, other := range dups {
		if other == c.Hash {
			continue
		}
		_, annotated, err := l.store.Note(other)
		if err != nil {
			return false, err
		}
		if annotated {
			l.log.Debug("commit matches a reviewed duplicate",
				"commit", c.Hash.String(), "duplicate", other.String())
			return true, nil
		}
	}
	return false, nil
}

// RangeProgress counts the commits of base..head and how many of them no
// longer need attention (everything except New).
func (l *Ledger) RangeProgress(base, head plumbing.Hash) (reviewed, total int, err error) {
	spec := fmt.Sprintf("%s..%s", base, head)
	err = l.store.Walk(spec, func(c *object.Commit) error {
		status, err := l.ClassifyCommit(c)
		if err != nil {
			return err
		}
		total++
		if status != StatusNew {
			reviewed++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return reviewed, total, nil
}

// WalkNew visits every New commit reachable from the range (or HEAD),
// newest first. The first Checkpoint encountered terminates the walk:
// everything older is considered handled. Other statuses are skipped.
func (l *Ledger) WalkNew(rangeSpec string, visit func(*object.Commit) error) error {
	return l.store.Walk(rangeSpec, func(c *object.Commit) error {
		status, err := l.ClassifyCommit(c)
		if err != nil {
			return err
		}
		switch status {
		case StatusNew:
			return visit(c)
		case StatusCheckpoint:
			return gitstore.ErrStopWalk
		default:
			return nil
		}
	})
}
