// Package syncer reconciles the local merge request ledger against the
// remote. It records new (base, head) versions as heads move, pins them with
// references so the commits survive remote garbage collection, and notices
// requests that changed state or disappeared.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sprite-ai/revq/internal/gitlab"
	"github.com/sprite-ai/revq/internal/gitstore"
	"github.com/sprite-ai/revq/internal/mrdb"
)

// Remote is the slice of the GitLab API the driver consumes. Satisfied by
// *gitlab.Client; faked in tests.
type Remote interface {
	ListOpenMergeRequests(ctx context.Context) ([]gitlab.MergeRequest, error)
	MergeRequestByIID(ctx context.Context, iid int64) (*gitlab.MergeRequest, error)
	BranchTip(ctx context.Context, branch string) (string, error)
	Versions(ctx context.Context, iid int64) ([]gitlab.DiffVersion, error)
}

// Summary is what one synchronization run did.
type Summary struct {
	Open         int             // open requests reported by the remote
	Recorded     int             // version records written
	Removed      int             // cache entries dropped (remote 404)
	StateChanges []string        // e.g. "!12 is now merged"
	Failures     map[int64]error // per-request errors, by iid
}

// Syncer drives one synchronization pass.
type Syncer struct {
	store  *gitstore.Store
	db     *mrdb.DB
	remote Remote
	log    *slog.Logger
}

// New builds a syncer.
func New(store *gitstore.Store, db *mrdb.DB, remote Remote, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{store: store, db: db, remote: remote, log: log}
}

// Sync fetches all open merge requests, updates the version ledger for each,
// and then checks in on cached requests the listing no longer mentions.
// Per-request failures are collected in the summary; only a failure to list
// open requests at all aborts the run.
func (s *Syncer) Sync(ctx context.Context) (*Summary, error) {
	sum := &Summary{Failures: make(map[int64]error)}

	open, err := s.remote.ListOpenMergeRequests(ctx)
	if err != nil {
		return nil, err
	}
	sum.Open = len(open)

	seen := make(map[int64]bool, len(open))
	for i := range open {
		mr := open[i]
		seen[mr.IID] = true
		if err := s.db.SaveRequest(mr); err != nil {
			return nil, err
		}
		n, err := s.updateVersions(ctx, &mr)
		sum.Recorded += n
		if err != nil {
			s.log.Error("merge request sync failed", "mr", mr.IID, "error", err)
			sum.Failures[mr.IID] = err
		}
	}

	if err := s.checkStale(ctx, seen, sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// checkStale revisits cached requests that the open listing did not return:
// either they were closed or merged, or they are gone entirely.
func (s *Syncer) checkStale(ctx context.Context, seen map[int64]bool, sum *Summary) error {
	var stale []gitlab.MergeRequest
	err := s.db.ForEachRequest(func(mr gitlab.MergeRequest) error {
		if !seen[mr.IID] && mr.State == gitlab.StateOpened {
			stale = append(stale, mr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := range stale {
		mr := stale[i]
		s.log.Debug("checking in on missing merge request", "mr", mr.IID)
		fresh, err := s.remote.MergeRequestByIID(ctx, mr.IID)
		if errors.Is(err, gitlab.ErrNotFound) {
			s.log.Warn("merge request is gone, dropping the cached copy", "mr", mr.IID)
			if err := s.db.DeleteRequest(mr.IID); err != nil {
				return err
			}
			sum.Removed++
			continue
		}
		if err != nil {
			s.log.Error("merge request check failed", "mr", mr.IID, "error", err)
			sum.Failures[mr.IID] = err
			continue
		}

		if err := s.db.SaveRequest(*fresh); err != nil {
			return err
		}
		if fresh.State != gitlab.StateOpened {
			sum.StateChanges = append(sum.StateChanges,
				fmt.Sprintf("!%d is now %s", fresh.IID, fresh.State))
		}
		n, err := s.updateVersions(ctx, fresh)
		sum.Recorded += n
		if err != nil {
			s.log.Error("merge request sync failed", "mr", fresh.IID, "error", err)
			sum.Failures[fresh.IID] = err
		}
	}
	return nil
}

// updateVersions records any versions the ledger is missing for mr. It
// returns the number of records written.
//
// Only a changed head triggers work. Re-checking the base every time would
// catch target-branch changes too, but costs an API round-trip per request.
func (s *Syncer) updateVersions(ctx context.Context, mr *gitlab.MergeRequest) (int, error) {
	if mr.SHA == "" {
		return 0, fmt.Errorf("merge request !%d has no head sha", mr.IID)
	}
	head, err := gitstore.ParseHash(mr.SHA)
	if err != nil {
		return 0, err
	}

	latest, err := s.db.Latest(mr.IID)
	if err != nil {
		return 0, err
	}
	if latest != nil && latest.Head == head {
		s.log.Debug("head unchanged, skipping", "mr", mr.IID)
		return 0, nil
	}

	pending, err := s.pendingVersions(ctx, mr, head, latest)
	if err != nil {
		return 0, err
	}

	recorded := 0
	for _, v := range pending {
		existing, err := s.db.Insert(mr.IID, v)
		if err != nil {
			return recorded, err
		}
		if existing != nil {
			if *existing != v {
				s.log.Warn("version history rewritten at the remote, keeping the local record",
					"mr", mr.IID, "stored", existing.String(), "remote", v.String())
			}
			continue
		}
		recorded++
		s.pinRef(mr, v)
		s.log.Info("recorded version", "mr", mr.IID, "version", v.String())
	}
	return recorded, nil
}

// pendingVersions prefers the remote's version-history endpoint; when that
// is unreachable it falls back to synthesizing a single version from the
// observed head. The fallback is a first-class branch, not error recovery:
// older servers simply do not expose the endpoint.
func (s *Syncer) pendingVersions(ctx context.Context, mr *gitlab.MergeRequest, head plumbing.Hash, latest *mrdb.Version) ([]mrdb.Version, error) {
	remoteVers, err := s.remote.Versions(ctx, mr.IID)
	if err != nil {
		s.log.Warn("version history unavailable, falling back to the observed head",
			"mr", mr.IID, "error", err)
		base, err := s.resolveBase(ctx, mr, head)
		if err != nil {
			return nil, err
		}
		num := 0
		if latest != nil {
			num = latest.Num + 1
		}
		return []mrdb.Version{{Num: num, Base: base, Head: head}}, nil
	}
	return s.reconcile(mr.IID, remoteVers)
}

// reconcile numbers the remote's recent (base, head) pairs. If the newest
// remote pair is already on record locally, numbering restarts at that
// record so the two histories stay aligned; otherwise it continues past the
// last local version, or starts at 0.
func (s *Syncer) reconcile(iid int64, remoteVers []gitlab.DiffVersion) ([]mrdb.Version, error) {
	if len(remoteVers) == 0 {
		return nil, nil
	}

	local, err := s.db.Versions(iid)
	if err != nil {
		return nil, err
	}

	newestBase, err := gitstore.ParseHash(remoteVers[0].BaseSHA)
	if err != nil {
		return nil, fmt.Errorf("version history of !%d: %w", iid, err)
	}
	newestHead, err := gitstore.ParseHash(remoteVers[0].HeadSHA)
	if err != nil {
		return nil, fmt.Errorf("version history of !%d: %w", iid, err)
	}

	start := 0
	matched := false
	for i := len(local) - 1; i >= 0; i-- {
		if local[i].Base == newestBase && local[i].Head == newestHead {
			start = local[i].Num
			matched = true
			break
		}
	}
	if !matched && len(local) > 0 {
		start = local[len(local)-1].Num + 1
	}

	// Remote reports newest first; number oldest to newest.
	out := make([]mrdb.Version, 0, len(remoteVers))
	for i := len(remoteVers) - 1; i >= 0; i-- {
		base, err := gitstore.ParseHash(remoteVers[i].BaseSHA)
		if err != nil {
			return nil, fmt.Errorf("version history of !%d: %w", iid, err)
		}
		head, err := gitstore.ParseHash(remoteVers[i].HeadSHA)
		if err != nil {
			return nil, fmt.Errorf("version history of !%d: %w", iid, err)
		}
		out = append(out, mrdb.Version{Num: start + len(out), Base: base, Head: head})
	}
	return out, nil
}

// resolveBase determines the base of a new version: the remote's explicit
// base when supplied, else the merge-base of the head and the target
// branch's current remote tip.
func (s *Syncer) resolveBase(ctx context.Context, mr *gitlab.MergeRequest, head plumbing.Hash) (plumbing.Hash, error) {
	if mr.DiffRefs != nil && mr.DiffRefs.BaseSHA != "" {
		return gitstore.ParseHash(mr.DiffRefs.BaseSHA)
	}

	tip, err := s.remote.BranchTip(ctx, mr.TargetBranch)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve base of !%d: %w", mr.IID, err)
	}
	tipHash, err := gitstore.ParseHash(tip)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	base, err := s.store.MergeBase(head, tipHash)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve base of !%d: %w", mr.IID, err)
	}
	return base, nil
}

// pinRef creates a reference at the version's head so the commit survives
// even if the remote forgets it. Failures are logged, never propagated.
func (s *Syncer) pinRef(mr *gitlab.MergeRequest, v mrdb.Version) {
	name := fmt.Sprintf("refs/revq/%d_%s/%d", mr.IID, mr.SourceBranch, v.Num)
	if err := s.store.CreateRef(name, v.Head); err != nil {
		s.log.Error("could not create pinning ref", "ref", name, "error", err)
		return
	}
	s.log.Debug("created pinning ref", "ref", name)
}
