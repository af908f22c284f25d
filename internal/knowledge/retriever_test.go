package knowledge

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	chromem "github.com/philippgille/chromem-go"

	"github.com/osbuddy/osbuddy/internal/log"
)

// fakeEmbedding derives a deterministic vector from the text so similar
// strings do not need a real model. calls counts embedding invocations.
func fakeEmbedding(calls *atomic.Int64) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		if calls != nil {
			calls.Add(1)
		}
		sum := sha256.Sum256([]byte(text))
		vec := make([]float32, 16)
		for i := range vec {
			vec[i] = float32(sum[i])/255 + 0.01
		}
		return vec, nil
	}
}

func writeCorpus(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestRetriever(t *testing.T, corpus, index string, calls *atomic.Int64) *Retriever {
	t.Helper()
	return NewRetriever(Options{
		IndexPath:    index,
		CorpusDir:    corpus,
		ChunkSize:    2000,
		ChunkOverlap: 200,
		Embedding:    fakeEmbedding(calls),
		Logger:       log.NewNop(),
	})
}

func TestSearchBuildsIndexFromCorpus(t *testing.T) {
	corpus := t.TempDir()
	writeCorpus(t, corpus, map[string]string{
		"paging.md":   "Paging divides physical memory into fixed-size frames.",
		"deadlock.txt": "A deadlock is a circular wait among processes holding resources.",
		"notes.pdf":   "binary stuff that must be ignored",
	})

	r := newTestRetriever(t, corpus, t.TempDir(), nil)
	got := r.Search(context.Background(), "deadlock", 2)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (pdf file must be skipped)", len(got))
	}
	for _, p := range got {
		if p == "binary stuff that must be ignored" {
			t.Error("non-corpus file was indexed")
		}
	}
}

func TestSearchInitializesOnlyOnce(t *testing.T) {
	corpus := t.TempDir()
	writeCorpus(t, corpus, map[string]string{"a.md": "context switches save CPU registers."})

	var calls atomic.Int64
	r := newTestRetriever(t, corpus, t.TempDir(), &calls)
	ctx := context.Background()

	r.Search(ctx, "first", 1)
	afterBuild := calls.Load()
	if afterBuild < 2 { // one document plus one query embedding
		t.Fatalf("embed calls = %d, want document + query", afterBuild)
	}

	r.Search(ctx, "second", 1)
	if calls.Load() != afterBuild+1 {
		t.Errorf("second search embedded %d times, want 1 (query only, no rebuild)",
			calls.Load()-afterBuild)
	}
}

func TestSearchWithoutCorpusReturnsNothing(t *testing.T) {
	r := newTestRetriever(t, filepath.Join(t.TempDir(), "missing"), t.TempDir(), nil)

	if got := r.Search(context.Background(), "anything", 3); got != nil {
		t.Errorf("Search = %v, want nil without a corpus", got)
	}
	// Still no passages on the second call; no panic, no rebuild attempt.
	if got := r.Search(context.Background(), "again", 3); got != nil {
		t.Errorf("Search = %v, want nil", got)
	}
}

func TestSearchClampsKToCollectionSize(t *testing.T) {
	corpus := t.TempDir()
	writeCorpus(t, corpus, map[string]string{"only.md": "semaphores coordinate access."})

	r := newTestRetriever(t, corpus, t.TempDir(), nil)
	got := r.Search(context.Background(), "semaphore", 10)
	if len(got) != 1 {
		t.Errorf("len = %d, want 1 (k clamped to collection size)", len(got))
	}
}

func TestPersistedIndexIsReloadedNotRebuilt(t *testing.T) {
	corpus := t.TempDir()
	index := t.TempDir()
	writeCorpus(t, corpus, map[string]string{"mem.md": "virtual memory decouples addresses."})

	if _, err := newTestRetriever(t, corpus, index, nil).Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	var calls atomic.Int64
	r := newTestRetriever(t, corpus, index, &calls)
	got := r.Search(context.Background(), "virtual memory", 1)

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 from persisted index", len(got))
	}
	if calls.Load() != 1 {
		t.Errorf("embed calls = %d, want 1 (query only when index persisted)", calls.Load())
	}
}

func TestBuildReportsChunkCount(t *testing.T) {
	corpus := t.TempDir()
	writeCorpus(t, corpus, map[string]string{
		"a.md":  "alpha",
		"b.txt": "beta",
	})

	n, err := newTestRetriever(t, corpus, t.TempDir(), nil).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n != 2 {
		t.Errorf("chunks = %d, want 2", n)
	}
}

func TestSearchInvalidKReturnsNothing(t *testing.T) {
	corpus := t.TempDir()
	writeCorpus(t, corpus, map[string]string{"a.md": "scheduling"})
	r := newTestRetriever(t, corpus, t.TempDir(), nil)

	if got := r.Search(context.Background(), "scheduling", 0); got != nil {
		t.Errorf("Search(k=0) = %v, want nil", got)
	}
}
