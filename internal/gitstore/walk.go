package gitstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// ErrStopWalk terminates a Walk early without reporting an error.
var ErrStopWalk = errors.New("stop walk")

// Walk visits commits in reverse-chronological order starting from a revision
// or a "base..head" range. An empty spec walks from HEAD. Returning
// ErrStopWalk from fn ends the walk cleanly; any other error aborts it.
// The walk is restartable: no cursor state is kept between calls.
func (s *Store) Walk(rangeSpec string, fn func(*object.Commit) error) error {
	spec := rangeSpec
	if spec == "" {
		spec = "HEAD"
	}

	var headRev string
	exclude := map[plumbing.Hash]bool{}

	if strings.Contains(spec, "...") {
		return fmt.Errorf("symmetric-difference range %q is not supported, use base..head", rangeSpec)
	}
	if i := strings.Index(spec, ".."); i >= 0 {
		baseRev := spec[:i]
		headRev = spec[i+2:]
		if baseRev == "" || headRev == "" {
			return fmt.Errorf("malformed range %q", rangeSpec)
		}
		base, err := s.ResolveRevision(baseRev)
		if err != nil {
			return err
		}
		exclude, err = s.ancestors(base)
		if err != nil {
			return err
		}
	} else {
		headRev = spec
	}

	headHash, err := s.ResolveRevision(headRev)
	if err != nil {
		return err
	}
	head, err := s.Commit(headHash)
	if err != nil {
		return err
	}

	iter := object.NewCommitIterCTime(head, exclude, nil)
	defer iter.Close()
	return iter.ForEach(func(c *object.Commit) error {
		if exclude[c.Hash] {
			return nil
		}
		if err := fn(c); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return storer.ErrStop
			}
			return err
		}
		return nil
	})
}

// ancestors returns h and every commit reachable from it.
func (s *Store) ancestors(h plumbing.Hash) (map[plumbing.Hash]bool, error) {
	c, err := s.Commit(h)
	if err != nil {
		return nil, err
	}
	seen := make(map[plumbing.Hash]bool)
	iter := object.NewCommitPreorderIter(c, nil, nil)
	defer iter.Close()
	err = iter.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk ancestors of %s: %w", h, err)
	}
	return seen, nil
}
