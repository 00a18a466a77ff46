package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Reports whether a repository's index is ready along with how many
chunks are indexed, which embedding model built them, which vector store
backend holds them, and which LLM provider (if any) is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := resolveRoot(path)
			if err != nil {
				return err
			}

			d, err := wireDeps(cmd.Context(), root, cfg)
			if err != nil {
				return err
			}
			defer d.close(cmd.Context())

			stats, err := d.vectorStore.GetStats(cmd.Context())
			ready := err == nil && stats.TotalEntries > 0
			styles := stylesFor(cmd.OutOrStdout())

			cmd.Printf("repository:      %s\n", root)
			if ready {
				cmd.Printf("ready:           %s\n", styles.Score.Render("true"))
			} else {
				cmd.Printf("ready:           %s\n", styles.Warn.Render("false"))
			}
			if err != nil {
				cmd.Printf("error:           %s\n", styles.Error.Render(err.Error()))
			} else {
				cmd.Printf("indexed chunks:  %d\n", stats.TotalEntries)
				cmd.Printf("embedding model: %s\n", stats.Model)
			}
			cmd.Printf("store backend:   %s\n", backendName(cfg.VectorStore.Backend))
			cmd.Printf("bm25 backend:    %s\n", cfg.Search.BM25Backend)
			if cfg.LLM.Provider != "" {
				cmd.Printf("llm provider:    %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
			} else {
				cmd.Printf("llm provider:    none\n")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Repository root (or any path inside it)")
	return cmd
}

func backendName(b string) string {
	if b == "" {
		return "memory"
	}
	return fmt.Sprint(b)
}
