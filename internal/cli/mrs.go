package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/gitlab"
)

var mrsCmd = &cobra.Command{
	Use:   "mrs",
	Short: "List cached merge requests and their review progress",
	Long: `List merge requests as of the last sync, with each recorded version
and how many of its commits have been reviewed. Drafts and your own
requests are hidden unless --hidden is given.`,
	Args: cobra.NoArgs,
	RunE: runMrs,
}

func init() {
	mrsCmd.Flags().Bool("hidden", false, "include drafts and your own requests")
}

func runMrs(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	showHidden, _ := cmd.Flags().GetBool("hidden")
	// The username is only needed for filtering; without gitlab config
	// every request is shown.
	rc, _ := app.store.RemoteConfig()

	shown := 0
	err = app.mrs.ForEachRequest(func(mr gitlab.MergeRequest) error {
		if !showHidden && mr.HiddenFor(rc.Username) {
			return nil
		}
		shown++

		fmt.Printf("!%d %s\n", mr.IID, mr.Title)
		fmt.Printf("    %s, %s → %s [%s]\n",
			mr.Author.Name, mr.SourceBranch, mr.TargetBranch, mr.State)

		versions, err := app.mrs.Versions(mr.IID)
		if err != nil {
			return err
		}
		for _, v := range versions {
			reviewed, total, err := app.ledger.RangeProgress(v.Base, v.Head)
			if err != nil {
				// Commits may not be fetched locally yet.
				fmt.Printf("    %s\n", v.String())
				continue
			}
			fmt.Printf("    %s  (%d/%d reviewed)\n", v.String(), reviewed, total)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if shown == 0 {
		fmt.Println("No merge requests on record. Run revq sync first.")
	}
	return nil
}
