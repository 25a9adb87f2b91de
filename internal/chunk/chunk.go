// Package chunk implements the chunking contract ingestion must honor for
// the retrieval core: articles over a word-count threshold are split
// into overlapping, paragraph-aligned segments of target size; articles
// under it are embedded whole, with the title prepended several times to
// bias the embedding toward title matches.
package chunk

import (
	"regexp"
	"strings"

	"github.com/domwxyz/marxist-search/internal/store"
)

// Defaults: a 4,500-word chunking threshold, 1,500-word target segments,
// 17.5% overlap.
const (
	DefaultThreshold    = 4500
	DefaultTargetSize   = 1500
	DefaultOverlapRatio = 0.175
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Options configures a Chunker. Zero values are replaced with the package
// defaults by NewChunker.
type Options struct {
	Threshold    int
	TargetSize   int
	OverlapRatio float64
}

// DefaultOptions returns the package defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:    DefaultThreshold,
		TargetSize:   DefaultTargetSize,
		OverlapRatio: DefaultOverlapRatio,
	}
}

// Chunker splits long article bodies into store.Chunk rows.
type Chunker struct {
	opts Options
}

// NewChunker builds a Chunker, filling any zero-valued option with its
// package default.
func NewChunker(opts Options) *Chunker {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.TargetSize <= 0 {
		opts.TargetSize = DefaultTargetSize
	}
	if opts.OverlapRatio <= 0 {
		opts.OverlapRatio = DefaultOverlapRatio
	}
	return &Chunker{opts: opts}
}

// ShouldChunk reports whether an article of wordCount words crosses the
// chunking threshold and must be split rather than embedded whole.
func (c *Chunker) ShouldChunk(wordCount int) bool {
	return wordCount > c.opts.Threshold
}

type paragraph struct {
	text      string
	wordCount int
	offset    int
}

// Chunk splits body into contiguous, zero-indexed, overlapping segments.
// Each segment targets opts.TargetSize words, preferring to break on
// paragraph boundaries, and carries forward the trailing ~OverlapRatio
// fraction of the previous segment's paragraphs so no sentence straddling a
// boundary loses context entirely.
func (c *Chunker) Chunk(articleID int, body string) []store.Chunk {
	paragraphs := splitParagraphs(body)
	if len(paragraphs) == 0 {
		return nil
	}

	overlapWords := int(float64(c.opts.TargetSize) * c.opts.OverlapRatio)

	var chunks []store.Chunk
	var current []paragraph
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, store.Chunk{
			ArticleID:   articleID,
			ChunkIndex:  len(chunks),
			Body:        joinParagraphs(current),
			WordCount:   currentWords,
			StartOffset: current[0].offset,
		})
	}

	for _, p := range paragraphs {
		if currentWords > 0 && currentWords+p.wordCount > c.opts.TargetSize {
			flush()
			current = overlapTail(current, overlapWords)
			currentWords = sumWords(current)
		}
		current = append(current, p)
		currentWords += p.wordCount
	}
	flush()

	return chunks
}

// splitParagraphs breaks body on blank-line boundaries, recording each
// surviving paragraph's approximate byte offset in the original body so
// chunks can report StartOffset.
func splitParagraphs(body string) []paragraph {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	parts := paragraphBreak.Split(normalized, -1)

	var out []paragraph
	cursor := 0
	for _, part := range parts {
		start := cursor
		if idx := strings.Index(normalized[cursor:], part); idx >= 0 {
			start = cursor + idx
		}
		cursor = start + len(part)

		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, paragraph{text: trimmed, wordCount: len(strings.Fields(trimmed)), offset: start})
	}
	return out
}

func joinParagraphs(paras []paragraph) string {
	texts := make([]string, len(paras))
	for i, p := range paras {
		texts[i] = p.text
	}
	return strings.Join(texts, "\n\n")
}

func sumWords(paras []paragraph) int {
	total := 0
	for _, p := range paras {
		total += p.wordCount
	}
	return total
}

// overlapTail returns the trailing paragraphs of paras whose combined word
// count is at least targetWords, so the next chunk opens with some shared
// context rather than a hard cut.
func overlapTail(paras []paragraph, targetWords int) []paragraph {
	if targetWords <= 0 || len(paras) == 0 {
		return nil
	}
	words := 0
	start := len(paras)
	for start > 0 && words < targetWords {
		start--
		words += paras[start].wordCount
	}
	tail := make([]paragraph, len(paras)-start)
	copy(tail, paras[start:])
	return tail
}

// PrependTitle builds the title-weighted text ingestion embeds for an
// unchunked article, or the first chunk of a chunked one: the title
// repeated `repeat` times, then the body. Later chunks must never call this;
// they embed pure content.
func PrependTitle(title, body string, repeat int) string {
	if repeat <= 0 || title == "" {
		return body
	}
	var b strings.Builder
	for i := 0; i < repeat; i++ {
		b.WriteString(title)
		b.WriteString(" ")
	}
	b.WriteString(body)
	return b.String()
}
