package cli

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
	"github.com/sprite-ai/revq/internal/review"
)

func commitFile(t *testing.T, repo *git.Repository, dir, file, content, msg string, when time.Time) plumbing.Hash {
	t.Helper()
	w, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
	_, err = w.Add(file)
	require.NoError(t, err)

	sig := &object.Signature{Name: "Author", Email: "author@example.com", When: when}
	h, err := w.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return h
}

// A note written without going through mark (fetched from a remote, or git
// notes by hand) must still feed duplicate detection when revq.dedup turns
// it on.
func TestOpenAppDedupSeesForeignNotes(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "Reviewer"
	cfg.User.Email = "reviewer@example.com"
	cfg.Raw.Section("revq").SetOption("dedup", "true")
	require.NoError(t, repo.SetConfig(cfg))

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	base := commitFile(t, repo, dir, "a.txt", "seed\n", "base", clock)
	one := commitFile(t, repo, dir, "b.txt", "func main() {}\n", "add main", clock.Add(time.Minute))

	w, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, w.Checkout(&git.CheckoutOptions{Hash: base, Force: true}))
	two := commitFile(t, repo, dir, "b.txt", "func main() {}\n", "add main, again", clock.Add(2*time.Minute))

	store, err := gitstore.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.SetNote(one, "reviewed"))

	t.Chdir(dir)
	app, err := openApp()
	require.NoError(t, err)
	defer app.Close()

	// The ledger database lives under the git dir, never in memory.
	_, err = os.Stat(filepath.Join(dir, ".git", "revq"))
	require.NoError(t, err)

	status, err := app.ledger.Classify(two)
	require.NoError(t, err)
	require.Equal(t, review.StatusReviewed, status)
}
