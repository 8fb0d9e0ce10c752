package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/diffview"
)

var showCmd = &cobra.Command{
	Use:   "show <revision>",
	Short: "Show a commit with its review status and diff",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	h, err := app.store.ResolveRevision(args[0])
	if err != nil {
		return err
	}
	c, err := app.store.Commit(h)
	if err != nil {
		return err
	}

	status, err := app.ledger.Classify(h)
	if err != nil {
		return err
	}

	fmt.Printf("commit %s\n", shaStyle.Render(h.String()))
	fmt.Printf("Author: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Printf("Status: %s\n", status)

	notes, err := app.ledger.Note(h)
	if err != nil {
		return err
	}
	for _, line := range notes {
		fmt.Printf("Note:   %s\n", line)
	}

	fmt.Printf("\n    %s\n\n", subject(c))

	patch, err := app.store.Patch(c)
	if err != nil {
		return err
	}
	rendered, err := diffview.Render(patch.String())
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}
