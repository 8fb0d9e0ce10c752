// Package similarity maintains a persistent inverted index from diff-line
// digests to commits, used to recognize rebased or cherry-picked duplicates
// of already-reviewed changes and to rank commits by content overlap.
package similarity

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sprite-ai/revq/internal/gitstore"
)

// Key layout. Forward and reverse entries are one key per (commit, digest)
// pair so that "append" is a plain Set of a fresh key rather than a
// read-modify-write of a packed value.
//
//	idx/c/<sha20>           -> whole-diff digest (8B BE) + digest count (4B BE)
//	idx/f/<sha20><digest8>  -> nil
//	idx/r/<digest8><sha20>  -> nil
var (
	prefixCommit  = []byte("idx/c/")
	prefixForward = []byte("idx/f/")
	prefixReverse = []byte("idx/r/")
)

// Match is one similarity candidate.
type Match struct {
	Commit plumbing.Hash
	Score  float64 // Dice coefficient, in [0,1]
	Shared int     // size of the digest intersection
}

// Index is the line-similarity index. Entries are only ever added; there is
// no eviction, and the whole index can be rebuilt from notes with Refresh.
type Index struct {
	db    *badger.DB
	store *gitstore.Store
	log   *slog.Logger
}

// NewIndex builds an index over the given ledger database and object store.
func NewIndex(db *badger.DB, store *gitstore.Store, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{db: db, store: store, log: log}
}

// Contains reports whether the commit has been indexed.
func (ix *Index) Contains(h plumbing.Hash) (bool, error) {
	err := ix.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(commitKey(h))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read index entry for %s: %w", h, err)
	}
	return true, nil
}

// Add indexes the commit's diff lines. Adding an already-indexed commit is
// a no-op, so Add is safe to re-run.
func (ix *Index) Add(c *object.Commit) error {
	indexed, err := ix.Contains(c.Hash)
	if err != nil {
		return err
	}
	if indexed {
		return nil
	}

	digests, whole, err := ix.digest(c)
	if err != nil {
		return err
	}

	marker := make([]byte, 12)
	binary.BigEndian.PutUint64(marker[:8], uint64(whole))
	binary.BigEndian.PutUint32(marker[8:], uint32(len(digests)))

	err = ix.db.Update(func(txn *badger.Txn) error {
		for d := range digests {
			if err := txn.Set(forwardKey(c.Hash, d), nil); err != nil {
				return err
			}
			if err := txn.Set(reverseKey(d, c.Hash), nil); err != nil {
				return err
			}
		}
		return txn.Set(commitKey(c.Hash), marker)
	})
	if err != nil {
		return fmt.Errorf("index %s: %w", c.Hash, err)
	}
	ix.log.Debug("indexed commit", "commit", c.Hash.String(), "lines", len(digests))
	return nil
}

// Refresh indexes every commit that carries a review annotation and is not
// indexed yet. Safe to call repeatedly.
func (ix *Index) Refresh() error {
	return ix.store.ForEachNote(func(h plumbing.Hash, _ string) error {
		indexed, err := ix.Contains(h)
		if err != nil {
			return err
		}
		if indexed {
			return nil
		}
		c, err := ix.store.Commit(h)
		if err != nil {
			return err
		}
		return ix.Add(c)
	})
}

// Similarity ranks indexed commits by Dice coefficient against c, most
// similar first. c itself scores 1.0 when indexed.
func (ix *Index) Similarity(c *object.Commit) ([]Match, error) {
	digests, _, cands, err := ix.candidates(c)
	if err != nil {
		return nil, err
	}

	n := len(digests)
	matches := make([]Match, 0, len(cands))
	for h, cand := range cands {
		// A dangling index entry means the underlying store lost a commit
		// we still know about; surface it rather than skipping.
		if _, err := ix.store.Commit(h); err != nil {
			return nil, fmt.Errorf("indexed commit %s is gone from the object store: %w", h, err)
		}
		matches = append(matches, Match{
			Commit: h,
			Score:  2 * float64(cand.shared) / float64(n+cand.total),
			Shared: cand.shared,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Commit.String() < matches[j].Commit.String()
	})
	return matches, nil
}

// ExactDuplicates returns indexed commits whose normalized diff is identical
// to c's: full line overlap in both directions plus an equal whole-diff
// digest.
func (ix *Index) ExactDuplicates(c *object.Commit) ([]plumbing.Hash, error) {
	digests, whole, cands, err := ix.candidates(c)
	if err != nil {
		return nil, err
	}

	n := len(digests)
	var dups []plumbing.Hash
	for h, cand := range cands {
		if cand.shared != n || cand.total != n || cand.whole != whole {
			continue
		}
		if _, err := ix.store.Commit(h); err != nil {
			return nil, fmt.Errorf("indexed commit %s is gone from the object store: %w", h, err)
		}
		dups = append(dups, h)
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].String() < dups[j].String() })
	return dups, nil
}

type candidate struct {
	shared int
	total  int
	whole  Digest
}

// candidates computes c's digest set and gathers, via the reverse map, every
// indexed commit sharing at least one digest.
func (ix *Index) candidates(c *object.Commit) (map[Digest]struct{}, Digest, map[plumbing.Hash]*candidate, error) {
	digests, whole, err := ix.digest(c)
	if err != nil {
		return nil, 0, nil, err
	}

	cands := make(map[plumbing.Hash]*candidate)
	err = ix.db.View(func(txn *badger.Txn) error {
		for d := range digests {
			prefix := append(append([]byte{}, prefixReverse...), digestBytes(d)...)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				key := it.Item().Key()
				var h plumbing.Hash
				copy(h[:], key[len(prefix):])
				if cands[h] == nil {
					cands[h] = &candidate{}
				}
				cands[h].shared++
			}
			it.Close()
		}

		for h, cand := range cands {
			item, err := txn.Get(commitKey(h))
			if err != nil {
				return fmt.Errorf("read index entry for %s: %w", h, err)
			}
			err = item.Value(func(val []byte) error {
				if len(val) != 12 {
					return fmt.Errorf("corrupt index entry for %s: %d bytes", h, len(val))
				}
				cand.whole = Digest(binary.BigEndian.Uint64(val[:8]))
				cand.total = int(binary.BigEndian.Uint32(val[8:]))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, nil, err
	}
	return digests, whole, cands, nil
}

func (ix *Index) digest(c *object.Commit) (map[Digest]struct{}, Digest, error) {
	patch, err := ix.store.Patch(c)
	if err != nil {
		return nil, 0, err
	}
	digests, whole, err := digestPatch(patch.String())
	if err != nil {
		return nil, 0, fmt.Errorf("digest %s: %w", c.Hash, err)
	}
	return digests, whole, nil
}

func commitKey(h plumbing.Hash) []byte {
	return append(append([]byte{}, prefixCommit...), h[:]...)
}

func forwardKey(h plumbing.Hash, d Digest) []byte {
	key := append(append([]byte{}, prefixForward...), h[:]...)
	return append(key, digestBytes(d)...)
}

func reverseKey(d Digest, h plumbing.Hash) []byte {
	key := append(append([]byte{}, prefixReverse...), digestBytes(d)...)
	return append(key, h[:]...)
}

func digestBytes(d Digest) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(d))
	return b[:]
}
