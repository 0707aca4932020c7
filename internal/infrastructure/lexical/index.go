// Package lexical provides an in-memory BM25 index over the chunk corpus.
package lexical

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type posting struct {
	chunk int
	freq  int
}

// Index scores chunks against a query with Okapi BM25. It is built once
// from the loaded corpus and never mutated, so concurrent Search calls
// need no locking.
type Index struct {
	chunks   []domain.Chunk
	postings map[string][]posting
	docLen   []int
	meanLen  float64
}

var _ ports.LexicalSearcher = (*Index)(nil)

func NewIndex(chunks []domain.Chunk) *Index {
	idx := &Index{
		chunks:   chunks,
		postings: make(map[string][]posting, len(chunks)*8),
		docLen:   make([]int, len(chunks)),
	}

	totalTokens := 0
	for i, chunk := range chunks {
		tokens := Tokenize(chunk.Text)
		idx.docLen[i] = len(tokens)
		totalTokens += len(tokens)

		freq := make(map[string]int, len(tokens))
		for _, token := range tokens {
			freq[token]++
		}
		// One posting per (term, chunk); chunks are visited in corpus
		// order so every postings list is sorted by chunk position.
		for term, n := range freq {
			idx.postings[term] = append(idx.postings[term], posting{chunk: i, freq: n})
		}
	}
	if len(chunks) > 0 {
		idx.meanLen = float64(totalTokens) / float64(len(chunks))
	}
	return idx
}

// Len reports the number of indexed chunks.
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Search returns up to limit chunks by descending BM25 score. Candidates
// come from the union of the query terms' postings lists, never a full
// corpus scan. Ties are broken by ascending chunk index.
func (idx *Index) Search(query string, limit int, filter domain.SearchFilter) []domain.ScoredChunk {
	if limit <= 0 || len(idx.chunks) == 0 || idx.meanLen == 0 {
		return nil
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(terms))
	scores := make(map[int]float64, limit*4)
	corpusSize := float64(len(idx.chunks))

	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		plist := idx.postings[term]
		if len(plist) == 0 {
			continue
		}
		df := float64(len(plist))
		idf := math.Log(1 + (corpusSize-df+0.5)/(df+0.5))
		for _, p := range plist {
			f := float64(p.freq)
			norm := bm25K1 * (1 - bm25B + bm25B*float64(idx.docLen[p.chunk])/idx.meanLen)
			scores[p.chunk] += idf * (f * (bm25K1 + 1)) / (f + norm)
		}
	}

	hits := make([]domain.ScoredChunk, 0, len(scores))
	for pos, score := range scores {
		if score <= 0 {
			continue
		}
		chunk := idx.chunks[pos]
		if filter.Source != "" && chunk.Source != filter.Source {
			continue
		}
		hits = append(hits, domain.ScoredChunk{Chunk: chunk, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Tokenize lowercases text and splits it into alphanumeric runs. The same
// tokenization feeds indexing, queries and the heuristic reranker.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
