package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"mosaic/pkg/common"
)

func sentenceText(minLen int) string {
	var b strings.Builder
	for i := 0; b.Len() < minLen; i++ {
		fmt.Fprintf(&b, "Sentence number %d ends right about here. ", i)
	}
	return strings.TrimSpace(b.String())
}

func TestSplit_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t "} {
		if _, err := Split(input, Options{}); !errors.Is(err, common.ErrValidation) {
			t.Fatalf("Split(%q) error = %v, want ErrValidation", input, err)
		}
	}
}

func TestSplit_BelowThresholdReturnsWhole(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "short note", text: "Buy milk tomorrow."},
		{name: "padded note", text: "  Buy milk tomorrow.\n"},
		{name: "just under threshold", text: sentenceText(DefaultThreshold)[:DefaultThreshold-1]},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Split(tc.text, Options{})
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("Split() returned %d chunks, want 1", len(got))
			}
			if got[0] != strings.TrimSpace(tc.text) {
				t.Fatalf("Split() chunk = %q, want trimmed input", got[0])
			}
		})
	}
}

func TestSplit_LargeDocumentCoverage(t *testing.T) {
	text := sentenceText(DefaultThreshold + 5000)

	chunks, err := Split(text, Options{})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks for %d chars, want several", len(chunks), len(text))
	}

	covered := 0
	for i, chunk := range chunks {
		if chunk == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if len(chunk) > DefaultMaxSize+1 {
			t.Fatalf("chunk %d has %d chars, want <= %d", i, len(chunk), DefaultMaxSize+1)
		}
		pos := strings.Index(text, chunk)
		if pos < 0 {
			t.Fatalf("chunk %d not found in source text", i)
		}
		if pos > covered {
			t.Fatalf("gap before chunk %d: starts at %d, covered up to %d", i, pos, covered)
		}
		if end := pos + len(chunk); end > covered {
			covered = end
		}
	}
	if covered != len(text) {
		t.Fatalf("chunks cover %d of %d chars", covered, len(text))
	}
}

func TestSplit_DefaultOptionsKeepOverlap(t *testing.T) {
	text := sentenceText(DefaultThreshold + 7000)

	chunks, err := Split(text, Options{})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks, want several", len(chunks))
	}

	// Consecutive windows share the overlap region, so the head of each chunk
	// must reappear in the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		head := chunks[i][:min(100, len(chunks[i]))]
		if !strings.Contains(chunks[i-1], head) {
			t.Fatalf("chunk %d does not overlap chunk %d: head %q missing from predecessor",
				i, i-1, head)
		}
	}
}

func TestSplit_ChunkCap(t *testing.T) {
	// No sentence or line breaks, so every window is cut at MaxSize.
	text := strings.Repeat("a", DefaultThreshold*4)

	chunks, err := Split(text, Options{})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) > DefaultMaxChunks {
		t.Fatalf("Split() returned %d chunks, want <= %d", len(chunks), DefaultMaxChunks)
	}
}

func TestSplit_DegenerateOverlapTerminates(t *testing.T) {
	text := sentenceText(30000)

	chunks, err := Split(text, Options{MaxSize: 100, Overlap: 100, Threshold: 1000, MaxChunks: 20})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) == 0 || len(chunks) > 20 {
		t.Fatalf("Split() returned %d chunks, want 1..20", len(chunks))
	}
}

func TestSplit_PrefersSentenceBoundaries(t *testing.T) {
	text := sentenceText(DefaultThreshold + 2000)

	chunks, err := Split(text, Options{})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	boundaryHits := 0
	for _, chunk := range chunks[:len(chunks)-1] {
		if strings.HasSuffix(chunk, ".") {
			boundaryHits++
		}
	}
	if boundaryHits < len(chunks)/2 {
		t.Fatalf("only %d of %d non-final chunks end on a sentence boundary", boundaryHits, len(chunks)-1)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("EstimateTokens(\"\") = %d, want 0", got)
	}
	text := sentenceText(4000)
	got := EstimateTokens(text)
	if got <= 0 {
		t.Fatalf("EstimateTokens() = %d, want > 0", got)
	}
	// Both the encoder and the chars/4 fallback land well under one token per char.
	if got > len(text) {
		t.Fatalf("EstimateTokens() = %d for %d chars, implausibly high", got, len(text))
	}
}
