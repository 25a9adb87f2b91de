package retrieval

import (
	"sort"
	"strings"
)

// Expand rewrites a raw query string into an OR-group-augmented form.
// Canonical multi-word terms found as substrings are replaced first
// (so their constituent tokens are never re-expanded individually), then
// remaining single tokens are expanded against their synonym/alias set,
// capped at maxVariants. The expanded string is handed to the vector store
// as-is; a pure-dense store still benefits from the extra vocabulary tokens
// contributed to the embedding.
func Expand(raw string, vocab *Vocabulary, maxVariants int) string {
	if vocab == nil || strings.TrimSpace(raw) == "" {
		return raw
	}

	lower := strings.ToLower(raw)
	consumed := make([]bool, len(raw))

	type span struct {
		start, end int
		text       string
	}
	var spans []span

	for _, term := range vocab.CanonicalTerms() {
		pattern := vocab.Pattern(term)
		if pattern == nil {
			continue
		}
		for _, loc := range pattern.FindAllStringIndex(lower, -1) {
			start, end := loc[0], loc[1]
			if rangeConsumed(consumed, start, end) {
				continue
			}
			markRange(consumed, start, end)
			spans = append(spans, span{start, end, orGroup(vocab.VariantsFor(term), maxVariants)})
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.start > pos {
			b.WriteString(expandTokens(raw[pos:s.start], vocab, maxVariants))
		}
		b.WriteString(s.text)
		pos = s.end
	}
	if pos < len(raw) {
		b.WriteString(expandTokens(raw[pos:], vocab, maxVariants))
	}

	return b.String()
}

func rangeConsumed(consumed []bool, start, end int) bool {
	for i := start; i < end && i < len(consumed); i++ {
		if consumed[i] {
			return true
		}
	}
	return false
}

func markRange(consumed []bool, start, end int) {
	for i := start; i < end && i < len(consumed); i++ {
		consumed[i] = true
	}
}

// expandTokens replaces each whitespace-separated token of text that has
// more than one synonym variant with a quoted OR group, leaving everything
// else (whitespace, punctuation-only tokens, already-expanded text) intact.
func expandTokens(text string, vocab *Vocabulary, maxVariants int) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return text
	}

	out := make([]string, len(fields))
	for i, tok := range fields {
		clean := strings.Trim(tok, `."',;:!?()`)
		if clean == "" {
			out[i] = tok
			continue
		}

		syn := vocab.SynonymsFor(clean)
		seen := make(map[string]bool, len(syn))
		variants := make([]string, 0, len(syn)+1)
		for _, v := range syn {
			if !seen[v] {
				seen[v] = true
				variants = append(variants, v)
			}
		}
		if canonical, ok := vocab.CanonicalFor(clean); ok && !seen[canonical] {
			seen[canonical] = true
			variants = append(variants, canonical)
		}

		if len(variants) > 1 {
			out[i] = orGroup(variants, maxVariants)
		} else {
			out[i] = tok
		}
	}

	// Fields() discards the original whitespace layout; a single space
	// between tokens is fine here since the result is only ever consumed by
	// the vector store's embedder, not re-parsed.
	return strings.Join(out, " ")
}

func orGroup(variants []string, maxVariants int) string {
	if maxVariants > 0 && len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}
	if len(variants) == 1 {
		return variants[0]
	}
	quoted := make([]string, len(variants))
	for i, v := range variants {
		if strings.Contains(v, " ") {
			quoted[i] = `"` + v + `"`
		} else {
			quoted[i] = v
		}
	}
	return "(" + strings.Join(quoted, " OR ") + ")"
}
