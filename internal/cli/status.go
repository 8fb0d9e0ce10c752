package cli

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [commit-range]",
	Short: "List commits that still need review",
	Long: `List unreviewed commits, newest first. Walks from HEAD (or the given
range) and stops at the first checkpoint. Your own commits, merge commits
and annotated commits are skipped.

Examples:
  revq status                  # everything since the last checkpoint
  revq status main..feature    # commits on feature not yet on main
  revq status origin/main      # as fetched, before merging`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("dup", false, "treat commits with a reviewed identical diff as reviewed")
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if dup, _ := cmd.Flags().GetBool("dup"); dup {
		if err := app.index.Refresh(); err != nil {
			return err
		}
		app.ledger.EnableDedup(app.index)
	}

	rangeSpec := ""
	if len(args) == 1 {
		rangeSpec = args[0]
	}

	pending := 0
	err = app.ledger.WalkNew(rangeSpec, func(c *object.Commit) error {
		pending++
		fmt.Printf("%s %s\n", shaStyle.Render(c.Hash.String()[:10]), subject(c))
		return nil
	})
	if err != nil {
		return err
	}

	if pending == 0 {
		fmt.Println("Everything up to date.")
	} else {
		fmt.Printf("\n%d commit(s) awaiting review.\n", pending)
	}
	return nil
}

func subject(c *object.Commit) string {
	s, _, _ := strings.Cut(c.Message, "\n")
	return s
}
