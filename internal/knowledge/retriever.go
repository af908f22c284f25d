// Package knowledge provides semantic retrieval over the course corpus.
//
// Passages are stored in a persistent chromem-go collection keyed by content
// hash. The index is built lazily on first use: if a persisted collection
// exists on disk it is loaded, otherwise the corpus directory is chunked,
// embedded, and indexed once. A missing corpus is not an error; retrieval
// simply yields no passages and the tutor answers from model knowledge.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "os_corpus"

// Options configures a Retriever.
type Options struct {
	// IndexPath is the directory holding the persisted vector index.
	IndexPath string

	// CorpusDir holds the source material (.md and .txt files) the index is
	// built from when no persisted index exists.
	CorpusDir string

	// ChunkSize and ChunkOverlap control corpus splitting, in runes.
	ChunkSize    int
	ChunkOverlap int

	// Embedding produces the vector for a piece of text.
	Embedding chromem.EmbeddingFunc

	Logger *slog.Logger
}

// Retriever performs top-k semantic search over the indexed corpus.
//
// Initialization happens at most once, on the first Search or Build call,
// guarded by a mutex. A failed initialization leaves the retriever in a
// permanent no-index state rather than retrying on every query.
//
// Retriever is safe for concurrent use by multiple goroutines.
type Retriever struct {
	opts Options

	mu          sync.Mutex
	initialized bool
	collection  *chromem.Collection
}

// NewRetriever creates a Retriever. No I/O happens until the first query.
func NewRetriever(opts Options) *Retriever {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Retriever{opts: opts}
}

// Search returns up to k passages relevant to query, most similar first.
// Retrieval failure is never fatal to a chat turn: any error is logged and
// an empty result is returned.
func (r *Retriever) Search(ctx context.Context, query string, k int) []string {
	coll := r.ensureInit(ctx)
	if coll == nil || k < 1 {
		return nil
	}

	// chromem rejects queries asking for more results than documents.
	if n := coll.Count(); n < k {
		if n == 0 {
			return nil
		}
		k = n
	}

	results, err := coll.Query(ctx, query, k, nil, nil)
	if err != nil {
		r.opts.Logger.Error("vector search failed", "error", err)
		return nil
	}

	passages := make([]string, 0, len(results))
	for _, res := range results {
		passages = append(passages, res.Content)
	}
	return passages
}

// Build forces index construction from the corpus directory and reports how
// many chunks were indexed. The serve path never needs this; the ingest
// command uses it to warm the index ahead of time.
func (r *Retriever) Build(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	coll, err := r.openCollection()
	if err != nil {
		return 0, err
	}
	added, err := r.indexCorpus(ctx, coll)
	if err != nil {
		return 0, err
	}

	r.collection = coll
	r.initialized = true
	return added, nil
}

// ensureInit loads or builds the index exactly once. Returns nil when the
// retriever is in the no-index state.
func (r *Retriever) ensureInit(ctx context.Context) *chromem.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return r.collection
	}
	r.initialized = true

	coll, err := r.openCollection()
	if err != nil {
		r.opts.Logger.Error("vector index unavailable, retrieval disabled", "error", err)
		return nil
	}

	if coll.Count() == 0 {
		added, err := r.indexCorpus(ctx, coll)
		if err != nil {
			r.opts.Logger.Error("corpus indexing failed, retrieval disabled", "error", err)
			return nil
		}
		if added == 0 {
			r.opts.Logger.Warn("no corpus material found, answering from model knowledge only",
				"corpus", r.opts.CorpusDir)
		} else {
			r.opts.Logger.Info("corpus indexed", "chunks", added)
		}
	} else {
		r.opts.Logger.Info("loaded persisted vector index", "chunks", coll.Count())
	}

	r.collection = coll
	return coll
}

func (r *Retriever) openCollection() (*chromem.Collection, error) {
	// Without an embedder there is nothing to index or query. Refusing here
	// also keeps chromem from falling back to its own default embedding
	// provider.
	if r.opts.Embedding == nil {
		return nil, errors.New("no embedding function configured")
	}

	db, err := chromem.NewPersistentDB(r.opts.IndexPath, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector index at %s: %w", r.opts.IndexPath, err)
	}
	coll, err := db.GetOrCreateCollection(collectionName, nil, r.opts.Embedding)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", collectionName, err)
	}
	return coll, nil
}

// indexCorpus chunks and embeds every corpus file into the collection.
func (r *Retriever) indexCorpus(ctx context.Context, coll *chromem.Collection) (int, error) {
	var docs []chromem.Document

	err := filepath.WalkDir(r.opts.CorpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isCorpusFile(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading corpus file %s: %w", path, err)
		}

		rel, relErr := filepath.Rel(r.opts.CorpusDir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}

		for i, chunk := range Chunk(string(data), r.opts.ChunkSize, r.opts.ChunkOverlap) {
			docs = append(docs, chromem.Document{
				ID:      docID(rel, i, chunk),
				Content: chunk,
				Metadata: map[string]string{
					"source": rel,
					"chunk":  strconv.Itoa(i),
				},
			})
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("walking corpus dir %s: %w", r.opts.CorpusDir, err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("indexing corpus: %w", err)
	}
	return len(docs), nil
}

func isCorpusFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return true
	}
	return false
}

// docID derives a stable id from the chunk's provenance and content, so
// re-ingesting an unchanged corpus upserts instead of duplicating.
func docID(source string, index int, content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%s#%d-%s", source, index, hex.EncodeToString(sum[:8]))
}
