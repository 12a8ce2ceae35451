package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Chunk the documents and rebuild the index if they changed",
	Long: `Chunk every Markdown document, compare the corpus fingerprint with the
stored one and rebuild the vector index when they differ. Use --force to
rebuild regardless. The generation backend is not contacted.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "rebuild even when the documents are unchanged")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cmd.Printf("Indexing %s...\n", a.Indexer.DocsDir())
	stats, err := a.Indexer.Sync(cmd.Context(), indexForce)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	for _, name := range stats.SkippedDocs {
		cmd.Printf("  skipped %s (no \"## \" sections)\n", name)
	}
	if !stats.Rebuilt {
		cmd.Printf("Index up to date: %d sections from %d documents (fingerprint %s)\n",
			stats.Chunks, stats.Documents, stats.Fingerprint.Short())
		return nil
	}
	cmd.Printf("Rebuilt index: %d sections from %d documents in %s (%s)\n",
		stats.Chunks, stats.Documents, stats.Duration.Round(time.Millisecond), stats.Reason)
	cmd.Printf("Fingerprint: %s\n", stats.Fingerprint)
	return nil
}
