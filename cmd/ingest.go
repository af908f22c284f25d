package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/osbuddy/osbuddy/internal/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the corpus vector index ahead of serving",
	Long: `Ingest chunks and embeds every markdown and text file in the corpus
directory into the persistent vector index, so the first chat request
does not pay the indexing cost.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()

	client, err := newModelClient(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	if client == nil {
		return errors.New("GEMINI_API_KEY is required for ingestion")
	}

	retriever := newRetriever(cfg, client, logger)
	n, err := retriever.Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	fmt.Printf("Indexed %d chunks from %s into %s\n", n, cfg.CorpusDir(), cfg.IndexPath())
	return nil
}
