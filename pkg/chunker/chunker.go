package chunker

import (
	"fmt"
	"strings"

	"mosaic/pkg/common"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultThreshold is the document size below which no splitting happens.
	DefaultThreshold = 20000
	// DefaultMaxSize is the target size of a single chunk in characters.
	DefaultMaxSize = 1000
	// DefaultOverlap is the number of characters shared between consecutive chunks.
	DefaultOverlap = 200
	// DefaultMaxChunks caps the number of chunks emitted per document.
	DefaultMaxChunks = 50
)

const tokenEncoder = "o200k_base"

// Options configures Split. Zero values fall back to the package defaults.
type Options struct {
	Threshold int
	MaxSize   int
	Overlap   int
	MaxChunks int
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.Overlap <= 0 {
		o.Overlap = DefaultOverlap
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = DefaultMaxChunks
	}
	return o
}

// Split cuts text into ordered, overlapping segments sized for embedding.
//
// Documents at or below the threshold are returned whole as a single trimmed
// chunk. Larger documents are split into windows of at most MaxSize
// characters, preferring sentence or line boundaries in the back 70% of each
// window. Consecutive windows share Overlap characters so that no sentence is
// lost at a cut point. The window start always advances by at least one
// character, and both iterations and emitted chunks are hard-capped, so
// degenerate option combinations (e.g. Overlap >= MaxSize) terminate.
func Split(text string, opts Options) ([]string, error) {
	opts = opts.withDefaults()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("chunker: empty input: %w", common.ErrValidation)
	}

	if len(text) <= opts.Threshold || len(text) <= opts.MaxSize {
		return []string{trimmed}, nil
	}

	chunks := make([]string, 0, len(text)/(opts.MaxSize-min(opts.Overlap, opts.MaxSize-1))+1)
	start := 0
	iterations := 0
	maxIterations := safetyLimit(len(text), opts.MaxSize, opts.Overlap)

	for start < len(text) && iterations < maxIterations {
		iterations++

		end := min(start+opts.MaxSize, len(text))

		// Prefer a sentence or line boundary, but only when it lands far
		// enough into the window to keep chunks from degenerating.
		if end < len(text) {
			lastSentence := strings.LastIndex(text[:end+1], ".")
			lastNewline := strings.LastIndex(text[:end+1], "\n")
			breakPoint := max(lastSentence, lastNewline)

			if breakPoint > start && float64(breakPoint) > float64(start)+float64(opts.MaxSize)*0.3 {
				end = breakPoint + 1
			}
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Always move forward, even when the overlap swallows the whole window.
		start = max(start+1, end-opts.Overlap)

		if start >= len(text) || len(chunks) >= opts.MaxChunks {
			break
		}
	}

	return chunks, nil
}

func safetyLimit(textLen, maxSize, overlap int) int {
	stride := maxSize - overlap
	if stride <= 0 {
		stride = 1
	}
	return (textLen+stride-1)/stride + 10
}

// EstimateTokens returns an approximate token count for text. It uses the
// o200k_base encoding when available and falls back to a chars/4 heuristic.
func EstimateTokens(text string) int {
	enc, err := tiktoken.GetEncoding(tokenEncoder)
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
