package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ossara-labs/coderag/internal/pipeline"
)

func newSearchCmd() *cobra.Command {
	var (
		path       string
		topK       int
		reranker   string
		maxHops    int
		noExpand   bool
		showTraces bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search an indexed repository",
		Long: `Runs a hybrid BM25 + semantic query against an already-indexed
repository, fuses the two result sets, optionally expands through the
dependency graph, and optionally reranks before printing the top chunks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			root, cfg, err := resolveRoot(path)
			if err != nil {
				return err
			}

			d, err := wireDeps(cmd.Context(), root, cfg)
			if err != nil {
				return err
			}
			defer d.close(cmd.Context())

			expand := !noExpand
			resp, err := d.engine.Search(cmd.Context(), pipeline.Request{
				Query:        query,
				RepositoryID: repositoryID(root),
				Options: pipeline.SearchOptions{
					TopK:        topK,
					Reranker:    pipeline.RerankerMode(reranker),
					ExpandGraph: &expand,
					MaxHops:     maxHops,
				},
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			styles := stylesFor(cmd.OutOrStdout())

			for i, rc := range resp.Chunks {
				loc := fmt.Sprintf("%s:%d-%d", rc.Chunk.FilePath, rc.Chunk.StartLine, rc.Chunk.EndLine)
				if rc.HasScore {
					cmd.Printf("%d. %s %s\n", i+1, styles.Header.Render(loc), styles.Score.Render(fmt.Sprintf("(score %.4f)", rc.Score)))
				} else {
					cmd.Printf("%d. %s %s\n", i+1, styles.Header.Render(loc), styles.Dim.Render("(via graph expansion)"))
				}
				if rc.Chunk.Name != "" {
					cmd.Printf("   %s\n", styles.Dim.Render(fmt.Sprintf("%s %s", rc.Chunk.NodeType, rc.Chunk.Name)))
				}
			}

			if showTraces {
				cmd.Printf("\n%s %s\n", styles.Dim.Render("query id:"), resp.Stage.QueryID)
				cmd.Printf("stages:\n")
				for _, s := range resp.Stage.Stages {
					cmd.Printf("  %-14s count=%-4d %s\n", s.Name, s.Count, s.Duration)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Repository root (or any path inside it)")
	cmd.Flags().IntVar(&topK, "top-k", pipeline.DefaultTopK, "Number of results to return")
	cmd.Flags().StringVar(&reranker, "reranker", string(pipeline.RerankerNone), "Reranker mode: none, bge, llm")
	cmd.Flags().IntVar(&maxHops, "max-hops", pipeline.DefaultMaxHops, "Dependency graph expansion depth")
	cmd.Flags().BoolVar(&noExpand, "no-expand", false, "Disable dependency graph expansion")
	cmd.Flags().BoolVar(&showTraces, "trace", false, "Print the per-stage execution trace")

	return cmd
}
