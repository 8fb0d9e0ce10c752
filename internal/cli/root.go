// Package cli wires the revq subcommands together.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "revq",
	Short: "Track review status of commits and merge requests",
	Long: `revq keeps a local ledger of which commits you have reviewed, stored
as git notes so it travels with the repository. It classifies history into
reviewed, unreviewed, own and merge commits, finds commits with similar
diffs, and tracks merge request versions observed from GitLab.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(mrsCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
