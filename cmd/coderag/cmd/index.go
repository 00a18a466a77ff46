package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a repository for searching",
		Long: `Scans the repository rooted at path (default: current directory),
chunks its code and documentation, embeds every chunk, and builds the
BM25 keyword index used by "coderag search". The dependency graph is
built in memory for this run only; it is not saved, so a later
"coderag search" process starts with an empty graph.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			root, cfg, err := resolveRoot(path)
			if err != nil {
				return err
			}

			d, err := wireDeps(cmd.Context(), root, cfg)
			if err != nil {
				return err
			}
			defer d.close(cmd.Context())

			coord, err := d.coordinator(repositoryID(root))
			if err != nil {
				return err
			}

			started := time.Now()
			stats, err := coord.IngestAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("index %s: %w", root, err)
			}

			cmd.Printf("Indexed %s in %s\n", root, time.Since(started).Round(time.Millisecond))
			cmd.Printf("  files indexed: %d\n", stats.FilesIndexed)
			cmd.Printf("  files failed:  %d\n", stats.FilesFailed)
			cmd.Printf("  chunks:        %d\n", stats.ChunksIndexed)
			return nil
		},
	}

	return cmd
}
