package cli

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/sprite-ai/revq/internal/gitstore"
	"github.com/sprite-ai/revq/internal/mrdb"
	"github.com/sprite-ai/revq/internal/review"
	"github.com/sprite-ai/revq/internal/similarity"
)

// shaStyle colours commit shas the way git's oneline output does.
var shaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

// app holds the open repository and databases shared by the subcommands.
type app struct {
	store  *gitstore.Store
	kv     *badger.DB
	ledger *review.Ledger
	index  *similarity.Index
	mrs    *mrdb.DB
	log    *slog.Logger
}

// openApp opens the enclosing repository and the key-value store kept under
// its .git directory. Duplicate detection is wired in when revq.dedup is set
// in git config.
func openApp() (*app, error) {
	log := slog.Default()

	store, err := gitstore.Open(".")
	if err != nil {
		return nil, err
	}

	if store.GitDir() == "" {
		return nil, errors.New("repository has no .git directory to hold the ledger")
	}
	opts := badger.DefaultOptions(filepath.Join(store.GitDir(), "revq"))
	kv, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, err
	}

	ledger, err := review.NewLedger(store, log)
	if err != nil {
		kv.Close()
		return nil, err
	}

	index := similarity.NewIndex(kv, store, log)
	if store.BoolOption("revq", "dedup", false) {
		// Pick up annotations that did not pass through mark, e.g. notes
		// fetched from a remote or written with git notes directly.
		if err := index.Refresh(); err != nil {
			kv.Close()
			return nil, err
		}
		ledger.EnableDedup(index)
	}

	return &app{
		store:  store,
		kv:     kv,
		ledger: ledger,
		index:  index,
		mrs:    mrdb.New(kv),
		log:    log,
	}, nil
}

// Close releases the key-value store.
func (a *app) Close() error {
	return a.kv.Close()
}
