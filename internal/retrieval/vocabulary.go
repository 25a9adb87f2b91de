package retrieval

import (
	"regexp"
	"sort"
	"strings"
)

// Vocabulary is the controlled matching vocabulary: a synonyms map
// (base -> variants), a terms map (category -> terms, kept for aggregate and
// faceting use rather than expansion), and an aliases map (alias ->
// canonical). Matching is case-insensitive; multi-word canonical terms are
// matched as substrings, without word boundaries.
//
// Per-vocabulary-term regexes are compiled once here, at construction, and
// reused across every query.
type Vocabulary struct {
	synonyms map[string][]string // lowercased base -> lowercased variants (includes base)
	terms    map[string][]string
	aliases  map[string]string // lowercased alias -> lowercased canonical

	// termCategory maps each lowercased term from the terms map back to its
	// category, for term-hit analytics and faceting.
	termCategory map[string]string
	categories   []string

	// canonicalPatterns holds a compiled whole-word-boundary-free substring
	// matcher for each multi-word canonical term, ordered longest-first so a
	// longer phrase is tried before any of its sub-phrases.
	canonicalTerms    []string
	canonicalPatterns map[string]*regexp.Regexp
}

// NewVocabulary builds a Vocabulary from explicit maps, compiling the
// canonical multi-word term patterns up front.
func NewVocabulary(synonyms map[string][]string, terms map[string][]string, aliases map[string]string) *Vocabulary {
	v := &Vocabulary{
		synonyms:          make(map[string][]string, len(synonyms)),
		terms:             terms,
		aliases:           make(map[string]string, len(aliases)),
		termCategory:      make(map[string]string),
		canonicalPatterns: make(map[string]*regexp.Regexp),
	}

	for category, termList := range terms {
		v.categories = append(v.categories, category)
		for _, term := range termList {
			v.termCategory[strings.ToLower(term)] = category
		}
	}
	sort.Strings(v.categories)

	for base, variants := range synonyms {
		base = strings.ToLower(base)
		set := map[string]bool{base: true}
		lowered := make([]string, 0, len(variants)+1)
		lowered = append(lowered, base)
		for _, variant := range variants {
			variant = strings.ToLower(variant)
			if set[variant] {
				continue
			}
			set[variant] = true
			lowered = append(lowered, variant)
		}
		v.synonyms[base] = lowered
		if strings.Contains(base, " ") {
			v.canonicalTerms = append(v.canonicalTerms, base)
		}
	}
	for alias, canonical := range aliases {
		v.aliases[strings.ToLower(alias)] = strings.ToLower(canonical)
	}

	// Longest terms first so "permanent revolution theory" is matched before
	// "permanent revolution" inside it; ties break lexically so scan order
	// is stable across restarts.
	sort.Slice(v.canonicalTerms, func(i, j int) bool {
		a, b := v.canonicalTerms[i], v.canonicalTerms[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	for _, term := range v.canonicalTerms {
		v.canonicalPatterns[term] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))
	}

	return v
}

// SynonymsFor returns the synonym set for a single lowercased token,
// including the token itself. An unknown token returns just itself.
func (v *Vocabulary) SynonymsFor(token string) []string {
	token = strings.ToLower(token)
	if syn, ok := v.synonyms[token]; ok {
		return syn
	}
	return []string{token}
}

// CanonicalFor resolves a lowercased alias to its canonical term.
func (v *Vocabulary) CanonicalFor(token string) (string, bool) {
	canonical, ok := v.aliases[strings.ToLower(token)]
	return canonical, ok
}

// CanonicalTerms returns the multi-word canonical terms, longest first, for
// substring scanning during expansion.
func (v *Vocabulary) CanonicalTerms() []string {
	return v.canonicalTerms
}

// VariantsFor returns the OR-group members for a canonical multi-word term:
// the term itself plus any aliases that resolve to it, aliases sorted so
// the expanded query text is stable across calls.
func (v *Vocabulary) VariantsFor(canonical string) []string {
	canonical = strings.ToLower(canonical)
	var aliases []string
	for alias, target := range v.aliases {
		if target == canonical {
			aliases = append(aliases, alias)
		}
	}
	sort.Strings(aliases)
	return append([]string{canonical}, aliases...)
}

// Pattern returns the compiled substring matcher for a canonical multi-word
// term, or nil if it isn't one.
func (v *Vocabulary) Pattern(canonical string) *regexp.Regexp {
	return v.canonicalPatterns[strings.ToLower(canonical)]
}

// Terms returns the category's term list, for faceting/aggregate use rather
// than query expansion.
func (v *Vocabulary) Terms(category string) []string {
	return v.terms[category]
}

// CategoryOf resolves a term (case-insensitive) to the category it is listed
// under in the terms map.
func (v *Vocabulary) CategoryOf(term string) (string, bool) {
	category, ok := v.termCategory[strings.ToLower(term)]
	return category, ok
}

// Categories returns the term categories, sorted.
func (v *Vocabulary) Categories() []string {
	return v.categories
}

// DefaultVocabulary returns the controlled vocabulary used when no
// project-specific vocabulary file is configured: a synonym/alias set for
// Marxist political-economic theory, grounded in the corpus this engine was
// built to search (classical economics, historical materialism, the history
// of the socialist and labour movements).
func DefaultVocabulary() *Vocabulary {
	synonyms := map[string][]string{
		"capitalism":           {"capitalist system", "capital"},
		"imperialism":          {"imperialist"},
		"dialectics":           {"dialectical method", "dialectic"},
		"permanent revolution": {"uninterrupted revolution"},
		"labour theory of value": {"labor theory of value", "theory of value"},
		"surplus value":        {"surplus labour", "surplus labor"},
		"means of production":  {"productive forces"},
		"class struggle":       {"class war", "class conflict"},
		"proletariat":          {"working class", "workers"},
		"bourgeoisie":          {"capitalist class", "ruling class"},
		"alienation":           {"estrangement"},
		"dictatorship of the proletariat": {"workers' state"},
		"historical materialism": {"materialist conception of history"},
		"trade union":          {"labour union", "labor union"},
		"revolution":           {"uprising", "insurrection"},
		"reformism":            {"gradualism"},
		"bureaucracy":          {"bureaucratic caste"},
		"world economy":        {"global economy", "world market"},
		"crisis":               {"economic crisis", "slump", "recession"},
		"nationalization":      {"nationalisation", "state ownership"},
	}

	terms := map[string][]string{
		"economics":  {"capital", "value", "price", "wage", "profit", "rent", "interest"},
		"philosophy": {"dialectics", "materialism", "idealism", "contradiction"},
		"politics":   {"party", "state", "revolution", "reform", "democracy"},
		"history":    {"october revolution", "paris commune", "cold war"},
	}

	aliases := map[string]string{
		"capital":  "capitalism",
		"labor":    "labour theory of value",
		"labour":   "labour theory of value",
		"dotp":     "dictatorship of the proletariat",
		"histmat":  "historical materialism",
		"perm rev": "permanent revolution",
	}

	return NewVocabulary(synonyms, terms, aliases)
}
