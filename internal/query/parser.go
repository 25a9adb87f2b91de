// Package query parses a raw search string into its structured parts:
// field-scoped filters, quoted phrases, and the free-text semantic terms
// left over once both have been pulled out. Nothing here ever touches SQL
// directly; values are sanitized and handed to callers as plain strings,
// which the store package parameterizes.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxQueryLength is the longest raw query string the parser accepts.
// Longer input is rejected with ErrQueryTooLong before any parsing happens.
const MaxQueryLength = 1000

// maxFieldValueLength bounds a single field:"value" or "phrase" value after
// sanitization, independent of the overall query length.
const maxFieldValueLength = 500

// ErrQueryTooLong is returned by Parse when the raw query exceeds
// MaxQueryLength runes.
var ErrQueryTooLong = fmt.Errorf("query exceeds %d characters", MaxQueryLength)

// knownFields are the field: prefixes the grammar recognizes. Anything else
// is dropped with a warning, not an error.
var knownFields = map[string]bool{
	"title":  true,
	"author": true,
}

var (
	fieldPattern = regexp.MustCompile(`(?i)(\w+):"([^"]*)"`)
	quotePattern = regexp.MustCompile(`"([^"]*)"`)
)

// Parsed is the structured result of parsing one raw query string.
type Parsed struct {
	SemanticTerms []string `json:"semantic_terms"`
	ExactPhrases  []string `json:"exact_phrases"`
	TitlePhrases  []string `json:"title_phrases"`
	AuthorFilter  string   `json:"author_filter"`

	// Warnings records non-fatal issues (unknown field names, repeated
	// author: clauses) for callers that want to surface them.
	Warnings []string `json:"warnings,omitempty"`
}

// HasContent reports whether the parsed query carries anything at all:
// semantic terms, phrases, or an author filter. A query with none of these
// (e.g. blank or whitespace-only) and no attribute filter short-circuits to
// an empty result set in dispatch.
func (p Parsed) HasContent() bool {
	return len(p.SemanticTerms) > 0 || len(p.ExactPhrases) > 0 ||
		len(p.TitlePhrases) > 0 || p.AuthorFilter != ""
}

// Parse extracts field filters, quoted phrases, and semantic terms from a
// raw query string, greedily and in that order: field:"value" first, then
// remaining "phrase" runs, then whatever whitespace-separated tokens are
// left.
func Parse(raw string) (Parsed, error) {
	if len([]rune(raw)) > MaxQueryLength {
		return Parsed{}, ErrQueryTooLong
	}

	var p Parsed
	remaining := raw
	authorSeen := false

	remaining = fieldPattern.ReplaceAllStringFunc(remaining, func(match string) string {
		sub := fieldPattern.FindStringSubmatch(match)
		field := strings.ToLower(sub[1])
		value := sanitize(sub[2])

		switch field {
		case "title":
			if value != "" {
				p.TitlePhrases = append(p.TitlePhrases, value)
			}
		case "author":
			if authorSeen {
				p.Warnings = append(p.Warnings, fmt.Sprintf("multiple author: clauses, keeping last (%q)", value))
			}
			p.AuthorFilter = value
			authorSeen = true
		default:
			p.Warnings = append(p.Warnings, fmt.Sprintf("unknown field %q dropped", field))
		}
		return " "
	})

	remaining = quotePattern.ReplaceAllStringFunc(remaining, func(match string) string {
		sub := quotePattern.FindStringSubmatch(match)
		value := sanitize(sub[1])
		if value != "" {
			p.ExactPhrases = append(p.ExactPhrases, value)
		}
		return " "
	})

	for _, tok := range strings.Fields(remaining) {
		tok = sanitize(tok)
		if tok != "" {
			p.SemanticTerms = append(p.SemanticTerms, tok)
		}
	}

	return p, nil
}

// sanitize strips null bytes, trims surrounding whitespace, and truncates to
// maxFieldValueLength runes. Values are never interpolated into SQL; this
// is defense in depth against control characters reaching downstream
// parameterized queries and regexes, not an SQL-escaping step.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > maxFieldValueLength {
		runes = runes[:maxFieldValueLength]
	}
	return string(runes)
}
