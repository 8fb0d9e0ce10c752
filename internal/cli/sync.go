package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/gitlab"
	"github.com/sprite-ai/revq/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch merge request state from GitLab",
	Long: `Fetch open merge requests and record any versions not yet on file.
Each recorded version is pinned with a ref so its commits survive remote
history rewrites. Requests that disappeared from the open listing are
checked individually: merged and closed ones are reported, deleted ones
are dropped from the cache.

Requires gitlab.url, gitlab.privateToken and gitlab.projectId in git
config.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	rc, err := app.store.RemoteConfig()
	if err != nil {
		return err
	}
	client := gitlab.NewClient(rc.URL, rc.Token, rc.ProjectID)

	s := syncer.New(app.store, app.mrs, client, app.log)
	sum, err := s.Sync(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%d open merge request(s), %d new version(s) recorded.\n",
		sum.Open, sum.Recorded)
	for _, change := range sum.StateChanges {
		fmt.Println(change)
	}
	if sum.Removed > 0 {
		fmt.Printf("%d stale request(s) dropped from the cache.\n", sum.Removed)
	}
	if len(sum.Failures) > 0 {
		for iid, ferr := range sum.Failures {
			fmt.Printf("!%d could not be synced: %v\n", iid, ferr)
		}
		return fmt.Errorf("%d merge request(s) failed to sync", len(sum.Failures))
	}
	return nil
}
