// Package gitstore wraps go-git with the repository operations revq needs:
// commit lookup, bounded history walks, notes, merge-base and config access.
package gitstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Store is an open git repository.
type Store struct {
	repo     *git.Repository
	gitDir   string
	notesRef plumbing.ReferenceName
}

// NotesRef is where review annotations live.
const NotesRef = "refs/notes/revq"

// Open opens the repository containing path, searching parent directories
// for the .git directory the way git itself does.
func Open(path string) (*Store, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", path, err)
	}

	gitDir := ""
	if fs, ok := repo.Storer.(*filesystem.Storage); ok {
		gitDir = fs.Filesystem().Root()
	}

	return &Store{
		repo:     repo,
		gitDir:   gitDir,
		notesRef: plumbing.ReferenceName(NotesRef),
	}, nil
}

// GitDir returns the path of the .git directory, or "" for non-filesystem
// storage (in-memory repositories in tests).
func (s *Store) GitDir() string {
	return s.gitDir
}

// Identity returns the local reviewer's name and email from git config.
func (s *Store) Identity() (name, email string, err error) {
	cfg, err := s.repo.ConfigScoped(config.SystemScope)
	if err != nil {
		return "", "", fmt.Errorf("read git config: %w", err)
	}
	if cfg.User.Name == "" && cfg.User.Email == "" {
		return "", "", errors.New("user.name and user.email are not set in git config")
	}
	return cfg.User.Name, cfg.User.Email, nil
}

// Commit looks up a commit by hash.
func (s *Store) Commit(h plumbing.Hash) (*object.Commit, error) {
	c, err := s.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", h, err)
	}
	return c, nil
}

// ResolveRevision resolves a revision expression ("HEAD", branch, short sha)
// to a commit hash.
func (s *Store) ResolveRevision(rev string) (plumbing.Hash, error) {
	h, err := s.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	return *h, nil
}

// MergeBase returns the best common ancestor of a and b.
func (s *Store) MergeBase(a, b plumbing.Hash) (plumbing.Hash, error) {
	ca, err := s.Commit(a)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	cb, err := s.Commit(b)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	bases, err := ca.MergeBase(cb)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("merge-base of %s and %s: %w", a, b, err)
	}
	if len(bases) == 0 {
		return plumbing.ZeroHash, fmt.Errorf("no merge-base between %s and %s", a, b)
	}
	return bases[0].Hash, nil
}

// CreateRef creates a named reference pointing at h. It refuses to move an
// existing reference that points elsewhere.
func (s *Store) CreateRef(name string, h plumbing.Hash) error {
	refName := plumbing.ReferenceName(name)
	if existing, err := s.repo.Reference(refName, false); err == nil {
		if existing.Hash() == h {
			return nil
		}
		return fmt.Errorf("reference %s already exists", name)
	}
	if err := s.repo.Storer.SetReference(plumbing.NewHashReference(refName, h)); err != nil {
		return fmt.Errorf("create reference %s: %w", name, err)
	}
	return nil
}

// Patch renders the diff of a commit against its first parent, or against
// the empty tree for a root commit.
func (s *Store) Patch(c *object.Commit) (*object.Patch, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", c.Hash, err)
	}

	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("load parent of %s: %w", c.Hash, err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("load parent tree of %s: %w", c.Hash, err)
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("diff %s against parent: %w", c.Hash, err)
	}
	patch, err := changes.Patch()
	if err != nil {
		return nil, fmt.Errorf("render patch of %s: %w", c.Hash, err)
	}
	return patch, nil
}

// PatchBetween renders the diff from base's tree to head's tree.
func (s *Store) PatchBetween(base, head plumbing.Hash) (*object.Patch, error) {
	cb, err := s.Commit(base)
	if err != nil {
		return nil, err
	}
	ch, err := s.Commit(head)
	if err != nil {
		return nil, err
	}
	baseTree, err := cb.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", base, err)
	}
	headTree, err := ch.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", head, err)
	}
	changes, err := object.DiffTree(baseTree, headTree)
	if err != nil {
		return nil, fmt.Errorf("diff %s against %s: %w", base, head, err)
	}
	patch, err := changes.Patch()
	if err != nil {
		return nil, fmt.Errorf("render patch %s..%s: %w", base, head, err)
	}
	return patch, nil
}

// ParseHash parses a full 40-character commit sha.
func ParseHash(s string) (plumbing.Hash, error) {
	if !isCommitHex(strings.ToLower(s)) {
		return plumbing.ZeroHash, fmt.Errorf("malformed commit sha %q", s)
	}
	return plumbing.NewHash(s), nil
}

// RemoteConfig is the gitlab connection configuration, read from git config:
//
//	[gitlab]
//	    url = gitlab.example.com
//	    privateToken = glpat-...
//	    projectId = 42
//	    username = reviewer
type RemoteConfig struct {
	URL       string
	Token     string
	ProjectID int64
	Username  string
}

// RemoteConfig loads the [gitlab] section of git config.
func (s *Store) RemoteConfig() (RemoteConfig, error) {
	cfg, err := s.repo.ConfigScoped(config.SystemScope)
	if err != nil {
		return RemoteConfig{}, fmt.Errorf("read git config: %w", err)
	}
	sec := cfg.Raw.Section("gitlab")

	rc := RemoteConfig{
		URL:      sec.Option("url"),
		Token:    sec.Option("privateToken"),
		Username: sec.Option("username"),
	}
	if rc.URL == "" {
		return RemoteConfig{}, errors.New("gitlab.url is not set in git config")
	}
	if rc.Token == "" {
		return RemoteConfig{}, errors.New("gitlab.privateToken is not set in git config")
	}
	raw := sec.Option("projectId")
	if raw == "" {
		return RemoteConfig{}, errors.New("gitlab.projectId is not set in git config")
	}
	rc.ProjectID, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return RemoteConfig{}, fmt.Errorf("gitlab.projectId %q is not a number: %w", raw, err)
	}
	return rc, nil
}

// BoolOption reads a boolean option like "revq.dedup" from git config.
// Unset or unparseable values return the default.
func (s *Store) BoolOption(section, option string, def bool) bool {
	cfg, err := s.repo.ConfigScoped(config.SystemScope)
	if err != nil {
		return def
	}
	raw := strings.ToLower(cfg.Raw.Section(section).Option(option))
	switch raw {
	case "true", "yes", "on", "1":
		return true
	case "false", "no", "off", "0":
		return false
	}
	return def
}
