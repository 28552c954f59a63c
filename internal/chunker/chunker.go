package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dshills/dirrag/internal/loader"
)

const (
	// DefaultChunkSize is the maximum chunk length in runes
	DefaultChunkSize = 1024

	// DefaultChunkOverlap is the number of runes shared by neighbouring chunks
	DefaultChunkOverlap = 150

	// MetaChunkIndex is the metadata key holding a chunk's position in its document
	MetaChunkIndex = "chunk_index"
)

// DefaultSeparators are tried in order, coarsest first. The empty separator
// splits into single runes.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// ErrInvalidSize is returned for a non-positive size or an overlap that is
// not smaller than the size.
var ErrInvalidSize = errors.New("invalid chunk size")

// Chunk is a piece of a document small enough to embed.
type Chunk struct {
	Content  string
	Metadata map[string]string
}

// Chunker is a recursive character splitter.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// New creates a Chunker with the given size and overlap in runes.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidSize, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidSize, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap, separators: DefaultSeparators}, nil
}

// Default creates a Chunker with DefaultChunkSize and DefaultChunkOverlap.
func Default() *Chunker {
	c, _ := New(DefaultChunkSize, DefaultChunkOverlap)
	return c
}

// Split splits every document and copies its metadata onto each chunk.
func (c *Chunker) Split(docs []loader.Document) []Chunk {
	chunks := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		for i, text := range c.SplitText(doc.Content) {
			md := make(map[string]string, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				md[k] = v
			}
			md[MetaChunkIndex] = strconv.Itoa(i)
			chunks = append(chunks, Chunk{Content: text, Metadata: md})
		}
	}
	return chunks
}

// SplitText splits text into trimmed, non-empty pieces of at most size runes
// where the separators allow it.
func (c *Chunker) SplitText(text string) []string {
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	// Pick the first separator present in text
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			sep = s
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, sep) {
		if runeLen(piece) < c.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge greedily packs pieces into chunks, carrying up to overlap runes of
// trailing pieces into the next chunk.
func (c *Chunker) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.size && len(current) > 0 {
			if doc := joinTrimmed(current); doc != "" {
				out = append(out, doc)
			}
			for total > c.overlap || (total+n > c.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := joinTrimmed(current); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeepSeparator splits text on sep, keeping sep at the start of each
// following piece. Empty pieces are dropped.
func splitKeepSeparator(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		raw := strings.Split(text, sep)
		parts = make([]string, 0, len(raw))
		parts = append(parts, raw[0])
		for _, p := range raw[1:] {
			parts = append(parts, sep+p)
		}
	}

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinTrimmed(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
