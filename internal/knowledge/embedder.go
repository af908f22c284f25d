package knowledge

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	"google.golang.org/genai"
)

// NewGeminiEmbedding creates a chromem-go EmbeddingFunc backed by the Gemini
// embedding API.
//
// Note: chromem-go automatically normalizes vectors, so no manual
// normalization is needed.
func NewGeminiEmbedding(client *genai.Client, model string) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.Models.EmbedContent(ctx, model, genai.Text(text), nil)
		if err != nil {
			return nil, fmt.Errorf("embed failed: %w", err)
		}

		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}

		return resp.Embeddings[0].Values, nil
	}
}
