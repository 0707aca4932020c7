package chunking

import (
	"strings"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
	"github.com/ayurmitra/ayurmitra/internal/core/ports"
)

// WordChunker cuts a chapter into overlapping word windows and enriches
// every window with detected metadata. Chunk indices are local to one call;
// the corpus loader assigns global ordinals.
type WordChunker struct {
	Size    int
	Overlap int
}

func NewWordChunker(size, overlap int) *WordChunker {
	if size <= 0 {
		size = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &WordChunker{
		Size:    size,
		Overlap: overlap,
	}
}

var _ ports.Chunker = (*WordChunker)(nil)

func (c *WordChunker) Chunk(source string, chapter domain.ChapterText) []domain.Chunk {
	words := strings.Fields(chapter.Content)
	if len(words) == 0 {
		return nil
	}

	step := c.Size - c.Overlap
	if step <= 0 {
		step = c.Size
	}

	out := make([]domain.Chunk, 0, len(words)/step+1)
	for start := 0; start < len(words); start += step {
		end := start + c.Size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, enrich(domain.Chunk{
			Index:   len(out),
			Text:    strings.Join(words[start:end], " "),
			Source:  source,
			Chapter: chapter.Title,
		}))
		if end == len(words) {
			break
		}
	}
	return out
}
