package tool_similarkeywords

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/spf13/afero"

	"github.com/elee1766/dataagent/src/aisdk"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

// DefaultEmbeddingModel must match the model the CSV vectors were built with.
const DefaultEmbeddingModel = "text-embedding-3-large"

var ErrEmptyIndex = errors.New("keyword index is empty")

// Entry is one keyword with its precomputed embedding.
type Entry struct {
	Keyword   string
	Embedding []float32
}

// Match is a keyword and its cosine similarity to the query.
type Match struct {
	Keyword    string  `json:"keyword"`
	Similarity float64 `json:"similarity"`
}

// ReadEntries parses a CSV with a keyword column and an embedding column
// holding a bracketed, comma separated vector.
func ReadEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	kwIdx, embIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "keyword":
			kwIdx = i
		case "embedding":
			embIdx = i
		}
	}
	if kwIdx < 0 || embIdx < 0 {
		return nil, fmt.Errorf("csv must have keyword and embedding columns, got %v", header)
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) <= max(kwIdx, embIdx) {
			return nil, fmt.Errorf("line %d: expected at least %d fields", line, max(kwIdx, embIdx)+1)
		}
		vec, err := ParseVector(rec[embIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, Entry{Keyword: rec[kwIdx], Embedding: vec})
	}
	return entries, nil
}

// ParseVector parses "[0.1, 0.2, ...]".
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty embedding")
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid embedding component %q: %w", p, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// Index is a lazily loaded in-memory vector collection of keywords.
type Index struct {
	fs       afero.Fs
	path     string
	embedder aisdk.Embedder
	model    string

	mu  sync.Mutex
	col *chromem.Collection
}

func NewIndex(fs afero.Fs, path string, embedder aisdk.Embedder, model string) *Index {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Index{fs: fs, path: path, embedder: embedder, model: model}
}

// Embed returns the embedding of one text.
func (ix *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := ix.embedder.CreateEmbedding(ctx, &aisdk.EmbeddingRequest{Model: ix.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response has no data")
	}
	return resp.Data[0].Embedding, nil
}

// collection loads the CSV on first use. A failed load is retried on the
// next call.
func (ix *Index) collection(ctx context.Context) (*chromem.Collection, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.col != nil {
		return ix.col, nil
	}

	f, err := ix.fs.Open(ix.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword file: %w", err)
	}
	defer f.Close()

	entries, err := ReadEntries(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ix.path, err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyIndex
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection("keywords", nil, ix.Embed)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		doc := chromem.Document{ID: strconv.Itoa(i), Content: e.Keyword, Embedding: e.Embedding}
		if err := col.AddDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to index %q: %w", e.Keyword, err)
		}
	}

	toolsutil.GetLogger().Info("keyword index loaded", "path", ix.path, "keywords", len(entries))
	ix.col = col
	return col, nil
}

// Search returns at most topK keywords ordered by descending similarity.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	col, err := ix.collection(ctx)
	if err != nil {
		return nil, err
	}
	if topK > col.Count() {
		topK = col.Count()
	}

	results, err := col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{Keyword: r.Content, Similarity: float64(r.Similarity)}
	}
	return matches, nil
}
