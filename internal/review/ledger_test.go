package review

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/revq/internal/gitstore"
)

type fixture struct {
	t      *testing.T
	dir    string
	repo   *git.Repository
	store  *gitstore.Store
	ledger *Ledger
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "Reviewer"
	cfg.User.Email = "reviewer@example.com"
	require.NoError(t, repo.SetConfig(cfg))

	store, err := gitstore.Open(dir)
	require.NoError(t, err)
	ledger, err := NewLedger(store, nil)
	require.NoError(t, err)

	return &fixture{
		t:      t,
		dir:    dir,
		repo:   repo,
		store:  store,
		ledger: ledger,
		clock:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// commit writes a change authored by somebody else.
func (f *fixture) commit(file, content, msg string) plumbing.Hash {
	return f.commitAs(file, content, msg, "Author", "author@example.com")
}

// ourCommit writes a change authored by the local reviewer.
func (f *fixture) ourCommit(file, content, msg string) plumbing.Hash {
	return f.commitAs(file, content, msg, "Reviewer", "reviewer@example.com")
}

func (f *fixture) commitAs(file, content, msg, name, email string) plumbing.Hash {
	f.t.Helper()
	w, err := f.repo.Worktree()
	require.NoError(f.t, err)

	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir, file), []byte(content), 0o644))
	_, err = w.Add(file)
	require.NoError(f.t, err)

	f.clock = f.clock.Add(time.Minute)
	sig := &object.Signature{Name: name, Email: email, When: f.clock}
	h, err := w.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(f.t, err)
	return h
}

func (f *fixture) mergeCommit(msg string, parents ...plumbing.Hash) plumbing.Hash {
	f.t.Helper()
	w, err := f.repo.Worktree()
	require.NoError(f.t, err)

	f.clock = f.clock.Add(time.Minute)
	sig := &object.Signature{Name: "Author", Email: "author@example.com", When: f.clock}
	h, err := w.Commit(msg, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		Parents:           parents,
		AllowEmptyCommits: true,
	})
	require.NoError(f.t, err)
	return h
}

func (f *fixture) checkout(h plumbing.Hash) {
	f.t.Helper()
	w, err := f.repo.Worktree()
	require.NoError(f.t, err)
	require.NoError(f.t, w.Checkout(&git.CheckoutOptions{Hash: h, Force: true}))
}

func TestAppendIsIdempotent(t *testing.T) {
	f := newFixture(t)
	h := f.commit("a.txt", "one\n", "first")

	lines, err := f.ledger.Append(h, "reviewed")
	require.NoError(t, err)
	require.Equal(t, []string{"reviewed"}, lines)

	lines, err = f.ledger.Append(h, "reviewed")
	require.NoError(t, err)
	require.Equal(t, []string{"reviewed"}, lines)

	// Distinct lines accumulate, sorted.
	lines, err = f.ledger.Append(h, "follow-up needed")
	require.NoError(t, err)
	require.Equal(t, []string{"follow-up needed", "reviewed"}, lines)
}

func TestClassify(t *testing.T) {
	f := newFixture(t)
	plain := f.commit("a.txt", "one\n", "first")
	reviewed := f.commit("a.txt", "two\n", "second")
	checkpointed := f.commit("a.txt", "three\n", "third")
	ours := f.ourCommit("a.txt", "four\n", "fourth")
	merge := f.mergeCommit("merge", ours, plain)

	_, err := f.ledger.Append(reviewed, "reviewed")
	require.NoError(t, err)
	_, err = f.ledger.Append(checkpointed, CheckpointMarker)
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		hash plumbing.Hash
		want Status
	}{
		{"plain", plain, StatusNew},
		{"reviewed", reviewed, StatusReviewed},
		{"checkpointed", checkpointed, StatusCheckpoint},
		{"ours", ours, StatusOurs},
		{"merge", merge, StatusMerge},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.ledger.Classify(tc.hash)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestAnnotationBeatsOtherStatuses(t *testing.T) {
	f := newFixture(t)
	base := f.commit("a.txt", "one\n", "first")
	ours := f.ourCommit("a.txt", "two\n", "second")
	merge := f.mergeCommit("merge", ours, base)

	// An annotated own commit, or an annotated merge, counts as reviewed.
	_, err := f.ledger.Append(ours, "reviewed")
	require.NoError(t, err)
	_, err = f.ledger.Append(merge, "reviewed")
	require.NoError(t, err)

	got, err := f.ledger.Classify(ours)
	require.NoError(t, err)
	require.Equal(t, StatusReviewed, got)

	got, err = f.ledger.Classify(merge)
	require.NoError(t, err)
	require.Equal(t, StatusReviewed, got)
}

func TestWalkNewStopsAtCheckpoint(t *testing.T) {
	f := newFixture(t)
	old := f.commit("a.txt", "one\n", "ancient")
	cp := f.commit("a.txt", "two\n", "release")
	skipped := f.ourCommit("a.txt", "three\n", "ours")
	pending := f.commit("a.txt", "four\n", "newest")

	_, err := f.ledger.Append(cp, CheckpointMarker)
	require.NoError(t, err)

	var got []plumbing.Hash
	err = f.ledger.WalkNew("", func(c *object.Commit) error {
		got = append(got, c.Hash)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{pending}, got)
	require.NotContains(t, got, old)
	require.NotContains(t, got, skipped)
}

func TestRangeProgress(t *testing.T) {
	f := newFixture(t)
	base := f.commit("a.txt", "one\n", "base")
	a := f.commit("a.txt", "two\n", "change a")
	b := f.commit("a.txt", "three\n", "change b")

	reviewed, total, err := f.ledger.RangeProgress(base, b)
	require.NoError(t, err)
	require.Equal(t, 0, reviewed)
	require.Equal(t, 2, total)

	_, err = f.ledger.Append(a, "reviewed")
	require.NoError(t, err)

	reviewed, total, err = f.ledger.RangeProgress(base, b)
	require.NoError(t, err)
	require.Equal(t, 1, reviewed)
	require.Equal(t, 2, total)
}

type fakeDup struct {
	dups []plumbing.Hash
}

func (d *fakeDup) ExactDuplicates(*object.Commit) ([]plumbing.Hash, error) {
	return d.dups, nil
}

func TestClassifyWithDedup(t *testing.T) {
	f := newFixture(t)
	original := f.commit("a.txt", "one\n", "original")
	f.checkout(original)
	twin := f.commitAs("b.txt", "same\n", "twin of something reviewed", "Author", "author@example.com")

	_, err := f.ledger.Append(original, "reviewed")
	require.NoError(t, err)

	// Without dedup the twin is new.
	got, err := f.ledger.Classify(twin)
	require.NoError(t, err)
	require.Equal(t, StatusNew, got)

	// With a finder reporting the reviewed original, the twin is reviewed.
	f.ledger.EnableDedup(&fakeDup{dups: []plumbing.Hash{original}})
	got, err = f.ledger.Classify(twin)
	require.NoError(t, err)
	require.Equal(t, StatusReviewed, got)
}
