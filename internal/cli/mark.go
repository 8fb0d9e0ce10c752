package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/review"
)

var markCmd = &cobra.Command{
	Use:   "mark <revision> [note...]",
	Short: "Record that a commit has been reviewed",
	Long: `Attach a review annotation to a commit. The note defaults to
"reviewed"; extra arguments become the note text. Marking the same commit
again merges the notes, so repeated marks are harmless.

Examples:
  revq mark HEAD~2
  revq mark 1a2b3c4 needs a follow-up on error handling`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMark,
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint <revision>",
	Short: "Mark a commit as a review checkpoint",
	Long: `Mark a commit as a checkpoint: status walks stop there, treating
everything older as already handled. Useful after reviewing a release or
when adopting revq on an existing history.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckpoint,
}

func runMark(cmd *cobra.Command, args []string) error {
	note := "reviewed"
	if len(args) > 1 {
		note = strings.Join(args[1:], " ")
	}
	return annotate(args[0], note)
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	return annotate(args[0], review.CheckpointMarker)
}

func annotate(rev, note string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	h, err := app.store.ResolveRevision(rev)
	if err != nil {
		return err
	}
	c, err := app.store.Commit(h)
	if err != nil {
		return err
	}

	lines, err := app.ledger.Append(h, note)
	if err != nil {
		return err
	}

	// Keep the similarity index current so future duplicate lookups see
	// this commit.
	if err := app.index.Add(c); err != nil {
		app.log.Warn("could not index commit", "commit", h.String(), "error", err)
	}

	fmt.Printf("%s %s\n", shaStyle.Render(h.String()[:10]), subject(c))
	for _, l := range lines {
		fmt.Printf("    %s\n", l)
	}
	return nil
}
