package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var similarCmd = &cobra.Command{
	Use:   "similar <revision>",
	Short: "Find annotated commits with a similar diff",
	Long: `Rank previously annotated commits by how much their diff overlaps
with the given commit's, using line-level fingerprints. A score of 1.00
with an exact-duplicate tag means the diffs are identical.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().IntP("limit", "n", 10, "maximum number of matches to show")
	similarCmd.Flags().Float64P("threshold", "t", 0.2, "minimum similarity score")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.index.Refresh(); err != nil {
		return err
	}

	h, err := app.store.ResolveRevision(args[0])
	if err != nil {
		return err
	}
	c, err := app.store.Commit(h)
	if err != nil {
		return err
	}

	matches, err := app.index.Similarity(c)
	if err != nil {
		return err
	}
	exact, err := app.index.ExactDuplicates(c)
	if err != nil {
		return err
	}
	dup := make(map[string]bool, len(exact))
	for _, d := range exact {
		dup[d.String()] = true
	}

	limit, _ := cmd.Flags().GetInt("limit")
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	shown := 0
	for _, m := range matches {
		if m.Commit == h || m.Score < threshold {
			continue
		}
		if shown >= limit {
			break
		}
		shown++

		other, err := app.store.Commit(m.Commit)
		if err != nil {
			return err
		}
		tag := ""
		if dup[m.Commit.String()] {
			tag = "  [identical]"
		}
		fmt.Printf("%.2f %s %s%s\n", m.Score, shaStyle.Render(m.Commit.String()[:10]), subject(other), tag)
	}

	if shown == 0 {
		fmt.Println("No similar commits on record.")
	}
	return nil
}
