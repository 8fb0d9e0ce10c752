package cli

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/diffview"
	"github.com/sprite-ai/revq/internal/gitlab"
	"github.com/sprite-ai/revq/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse merge requests interactively",
	Args:  cobra.NoArgs,
	RunE:  runTui,
}

func runTui(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	rc, _ := app.store.RemoteConfig()

	var requests []tui.Request
	err = app.mrs.ForEachRequest(func(mr gitlab.MergeRequest) error {
		req := tui.Request{MR: mr}
		versions, err := app.mrs.Versions(mr.IID)
		if err != nil {
			return err
		}
		for _, v := range versions {
			entry := tui.VersionEntry{Version: v}
			// Counts are best effort: the commits may not be fetched yet.
			if reviewed, total, err := app.ledger.RangeProgress(v.Base, v.Head); err == nil {
				entry.Reviewed = reviewed
				entry.Total = total
			}
			req.Versions = append(req.Versions, entry)
		}
		requests = append(requests, req)
		return nil
	})
	if err != nil {
		return err
	}

	diffFn := func(base, head plumbing.Hash) (string, error) {
		patch, err := app.store.PatchBetween(base, head)
		if err != nil {
			return "", err
		}
		return diffview.Render(patch.String())
	}

	return tui.Run(requests, rc.Username, diffFn)
}
