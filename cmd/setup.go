package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/genai"

	"github.com/osbuddy/osbuddy/internal/config"
	"github.com/osbuddy/osbuddy/internal/knowledge"
	"github.com/osbuddy/osbuddy/internal/log"
)

// newLogger builds the process logger from the environment.
// OSBUDDY_LOG_LEVEL selects verbosity; OSBUDDY_LOG_JSON switches to JSON
// output for log aggregation.
func newLogger() *slog.Logger {
	return log.New(log.Config{
		Level: parseLogLevel(os.Getenv("OSBUDDY_LOG_LEVEL")),
		JSON:  os.Getenv("OSBUDDY_LOG_JSON") == "true",
	})
}

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// newModelClient creates the Gemini client, or nil when no API key is
// configured. A nil client is not fatal: the tutor reports the missing key
// per chat turn instead of refusing to boot.
func newModelClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genai.Client, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, chat turns will report a configuration error")
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	return client, nil
}

// newRetriever wires the corpus retriever. With no model client there is no
// embedder, so retrieval stays disabled and the tutor answers directly.
func newRetriever(cfg *config.Config, client *genai.Client, logger *slog.Logger) *knowledge.Retriever {
	opts := knowledge.Options{
		IndexPath:    cfg.IndexPath(),
		CorpusDir:    cfg.CorpusDir(),
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Logger:       logger,
	}
	if client != nil {
		opts.Embedding = knowledge.NewGeminiEmbedding(client, cfg.EmbedderModel)
	}
	return knowledge.NewRetriever(opts)
}
