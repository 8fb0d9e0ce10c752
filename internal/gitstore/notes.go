package gitstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Notes are stored the way git-notes stores them: a commit at refs/notes/revq
// whose tree maps the annotated commit's hex hash to a blob with the note
// text. We always write a flat tree; reads tolerate the fanout layouts other
// tools may have written (aa/bbbb..., aa/bb/cccc...).

// Note returns the annotation text attached to h, if any.
func (s *Store) Note(h plumbing.Hash) (string, bool, error) {
	tree, _, err := s.notesTree()
	if err != nil {
		return "", false, err
	}
	if tree == nil {
		return "", false, nil
	}

	hex := h.String()
	for _, path := range []string{
		hex,
		hex[:2] + "/" + hex[2:],
		hex[:2] + "/" + hex[2:4] + "/" + hex[4:],
	} {
		f, err := tree.File(path)
		if err != nil {
			if errors.Is(err, object.ErrFileNotFound) {
				continue
			}
			return "", false, fmt.Errorf("read note for %s: %w", hex, err)
		}
		text, err := f.Contents()
		if err != nil {
			return "", false, fmt.Errorf("read note blob for %s: %w", hex, err)
		}
		return text, true, nil
	}
	return "", false, nil
}

// SetNote attaches text to h, replacing any previous note. The notes ref
// advances by one commit; a single SetNote is atomic at the ref level.
func (s *Store) SetNote(h plumbing.Hash, text string) error {
	tree, parent, err := s.notesTree()
	if err != nil {
		return err
	}

	entries := make(map[string]plumbing.Hash)
	if tree != nil {
		if err := forEachNoteEntry(tree, func(hex string, blob plumbing.Hash) error {
			entries[hex] = blob
			return nil
		}); err != nil {
			return err
		}
	}

	blob, err := s.storeBlob([]byte(text))
	if err != nil {
		return fmt.Errorf("store note blob: %w", err)
	}
	entries[h.String()] = blob

	treeHash, err := s.storeNotesTree(entries)
	if err != nil {
		return err
	}

	name, email, err := s.Identity()
	if err != nil {
		return err
	}
	sig := object.Signature{Name: name, Email: email, When: time.Now()}
	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   "Notes added by 'revq mark'\n",
		TreeHash:  treeHash,
	}
	if parent != plumbing.ZeroHash {
		commit.ParentHashes = []plumbing.Hash{parent}
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return fmt.Errorf("encode notes commit: %w", err)
	}
	commitHash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return fmt.Errorf("store notes commit: %w", err)
	}
	if err := s.repo.Storer.SetReference(plumbing.NewHashReference(s.notesRef, commitHash)); err != nil {
		return fmt.Errorf("update %s: %w", s.notesRef, err)
	}
	return nil
}

// ForEachNote visits every annotated commit and its note text.
func (s *Store) ForEachNote(fn func(h plumbing.Hash, text string) error) error {
	tree, _, err := s.notesTree()
	if err != nil {
		return err
	}
	if tree == nil {
		return nil
	}
	iter := tree.Files()
	defer iter.Close()
	return iter.ForEach(func(f *object.File) error {
		hex := strings.ReplaceAll(f.Name, "/", "")
		if !isCommitHex(hex) {
			return nil
		}
		text, err := f.Contents()
		if err != nil {
			return fmt.Errorf("read note blob %s: %w", f.Blob.Hash, err)
		}
		return fn(plumbing.NewHash(hex), text)
	})
}

// notesTree returns the current notes tree and the notes commit it belongs
// to, or (nil, ZeroHash) when no notes exist yet.
func (s *Store) notesTree() (*object.Tree, plumbing.Hash, error) {
	ref, err := s.repo.Reference(s.notesRef, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, plumbing.ZeroHash, nil
		}
		return nil, plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", s.notesRef, err)
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, plumbing.ZeroHash, fmt.Errorf("load notes commit %s: %w", ref.Hash(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, plumbing.ZeroHash, fmt.Errorf("load notes tree: %w", err)
	}
	return tree, commit.Hash, nil
}

// forEachNoteEntry flattens fanout directories: the annotated hash is the
// entry path with separators removed.
func forEachNoteEntry(tree *object.Tree, fn func(hex string, blob plumbing.Hash) error) error {
	iter := tree.Files()
	defer iter.Close()
	return iter.ForEach(func(f *object.File) error {
		hex := strings.ReplaceAll(f.Name, "/", "")
		if !isCommitHex(hex) {
			return nil
		}
		return fn(hex, f.Blob.Hash)
	})
}

func isCommitHex(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (s *Store) storeBlob(data []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

func (s *Store) storeNotesTree(entries map[string]plumbing.Hash) (plumbing.Hash, error) {
	tree := &object.Tree{}
	for hex, blob := range entries {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: hex,
			Mode: filemode.Regular,
			Hash: blob,
		})
	}
	sort.Slice(tree.Entries, func(i, j int) bool {
		return tree.Entries[i].Name < tree.Entries[j].Name
	})

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode notes tree: %w", err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store notes tree: %w", err)
	}
	return h, nil
}
