package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

const (
	defaultMinScore  = 0.1
	defaultChunkSize = 1200
)

type indexedChunk struct {
	content   string
	source    string
	terms     map[string]float64
	embedding []float64
}

// Option customizes Index.
type Option func(*Index)

func WithMinScore(score float64) Option {
	return func(ix *Index) {
		if score >= 0 {
			ix.minScore = score
		}
	}
}

func WithChunkSize(size int) Option {
	return func(ix *Index) {
		if size > 0 {
			ix.chunkSize = size
		}
	}
}

// WithEmbedder switches scoring from the lexical fallback to embedding
// cosine similarity.
func WithEmbedder(e Embedder) Option {
	return func(ix *Index) {
		ix.embedder = e
	}
}

// Index is an in-memory document index. It scores chunks with embedding
// cosine similarity when an Embedder is configured and falls back to a
// lexical term-vector score otherwise. Safe for concurrent queries.
type Index struct {
	mu        sync.RWMutex
	chunks    []indexedChunk
	embedder  Embedder
	minScore  float64
	chunkSize int
}

func NewIndex(opts ...Option) *Index {
	ix := &Index{
		minScore:  defaultMinScore,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ix)
		}
	}
	return ix
}

// AddDocument splits content into chunks and indexes them under source.
func (ix *Index) AddDocument(ctx context.Context, source, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("%w: document content is empty", contractx.ErrValidation)
	}

	parts := splitChunks(content, ix.chunkSize)

	var embeddings [][]float64
	if ix.embedder != nil {
		var err error
		embeddings, err = ix.embedder.Embed(ctx, parts)
		if err != nil {
			return fmt.Errorf("%w: embed document %s: %v", contractx.ErrUnavailable, source, err)
		}
		if len(embeddings) != len(parts) {
			return fmt.Errorf("%w: embedder returned %d vectors for %d chunks", contractx.ErrUnavailable, len(embeddings), len(parts))
		}
	}

	chunks := make([]indexedChunk, 0, len(parts))
	for i, part := range parts {
		c := indexedChunk{
			content: part,
			source:  source,
			terms:   termVector(part),
		}
		if embeddings != nil {
			c.embedding = embeddings[i]
		}
		chunks = append(chunks, c)
	}

	ix.mu.Lock()
	ix.chunks = append(ix.chunks, chunks...)
	ix.mu.Unlock()
	return nil
}

// LoadDirectory indexes every .txt and .md file under dir. Returns the
// number of files indexed.
func (ix *Index) LoadDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("%w: read docs dir: %v", contractx.ErrUnavailable, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return count, fmt.Errorf("%w: read %s: %v", contractx.ErrUnavailable, entry.Name(), err)
		}
		if strings.TrimSpace(string(raw)) == "" {
			continue
		}
		if err := ix.AddDocument(ctx, entry.Name(), string(raw)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Query returns at most topK chunks ordered by descending relevance.
// Chunks below the minimum score are dropped; an empty result is not an
// error.
func (ix *Index) Query(ctx context.Context, text string, topK int) ([]contractx.RetrievedChunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is empty", contractx.ErrValidation)
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be >= 1, got %d", contractx.ErrValidation, topK)
	}

	var queryEmbedding []float64
	if ix.embedder != nil {
		vectors, err := ix.embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, fmt.Errorf("%w: embed query: %v", contractx.ErrUnavailable, err)
		}
		if len(vectors) != 1 {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for one query", contractx.ErrUnavailable, len(vectors))
		}
		queryEmbedding = vectors[0]
	}
	queryTerms := termVector(text)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scored := make([]contractx.RetrievedChunk, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		var score float64
		if queryEmbedding != nil && c.embedding != nil {
			score = cosine(queryEmbedding, c.embedding)
		} else {
			score = lexicalScore(queryTerms, c.terms)
		}
		if score < ix.minScore {
			continue
		}
		scored = append(scored, contractx.RetrievedChunk{
			Content: c.content,
			Score:   score,
			Source:  c.source,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// splitChunks breaks text on blank lines and packs paragraphs into chunks
// of at most maxLen runes. Oversized paragraphs are split hard.
func splitChunks(text string, maxLen int) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		for len([]rune(p)) > maxLen {
			runes := []rune(p)
			chunks = append(chunks, string(runes[:maxLen]))
			p = strings.TrimSpace(string(runes[maxLen:]))
		}
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p)+2 > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
