package retrieval

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const excerptWindow = 100
const excerptFallbackLen = 200

// BuildExcerpt centers a ~200-char window on the first
// whole-word match of one of the exact phrases, preferring a second
// occurrence when the first one falls inside a title-weighted prefix (the
// title repeated titleWeight times at the start of body, a byproduct of
// title-weighted indexing). Falls back to the first 200 characters
// when no phrase matches.
func BuildExcerpt(body, title string, exactPhrases []string, titleWeight int) (excerpt string, matchedPhrase string) {
	prefixLen := titleWeightedPrefixLen(body, title, titleWeight)

	for _, phrase := range exactPhrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)

		loc := pattern.FindStringIndex(body)
		if loc == nil {
			continue
		}
		pos, length := loc[0], loc[1]-loc[0]

		if prefixLen > 0 && pos < prefixLen && prefixLen < len(body) {
			if loc2 := pattern.FindStringIndex(body[prefixLen:]); loc2 != nil {
				pos = prefixLen + loc2[0]
				length = loc2[1] - loc2[0]
			}
		}

		return windowAround(body, pos, length), phrase
	}

	return fallbackExcerpt(body), ""
}

// titleWeightedPrefixLen detects how many times title is repeated at the
// start of body, allowing whitespace between repeats, and returns the byte
// length of that prefix, or 0 if body doesn't start with the title at all.
func titleWeightedPrefixLen(body, title string, maxRepeats int) int {
	if title == "" || maxRepeats <= 0 {
		return 0
	}
	pos := 0
	for i := 0; i < maxRepeats; i++ {
		rest := body[pos:]
		trimmed := strings.TrimLeft(rest, " \t\n")
		if !strings.HasPrefix(trimmed, title) {
			break
		}
		pos += (len(rest) - len(trimmed)) + len(title)
	}
	return pos
}

func windowAround(body string, pos, matchLen int) string {
	start := pos - excerptWindow
	end := pos + matchLen + excerptWindow

	leftTruncated := start > 0
	rightTruncated := end < len(body)
	if start < 0 {
		start = 0
	}
	if end > len(body) {
		end = len(body)
	}
	start = snapRuneBoundaryForward(body, start)
	end = snapRuneBoundaryBackward(body, end)
	if end < start {
		end = start
	}

	excerpt := strings.TrimSpace(body[start:end])
	if leftTruncated {
		excerpt = "…" + excerpt
	}
	if rightTruncated {
		excerpt = excerpt + "…"
	}
	return excerpt
}

func fallbackExcerpt(body string) string {
	if len(body) <= excerptFallbackLen {
		return strings.TrimSpace(body)
	}
	end := snapRuneBoundaryBackward(body, excerptFallbackLen)
	return strings.TrimSpace(body[:end]) + "…"
}

func snapRuneBoundaryForward(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

func snapRuneBoundaryBackward(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
