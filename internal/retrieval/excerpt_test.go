package retrieval_test

import (
	"strings"
	"testing"

	"github.com/domwxyz/marxist-search/internal/retrieval"
	"github.com/stretchr/testify/require"
)

func TestBuildExcerptCentersOnPhrase(t *testing.T) {
	body := strings.Repeat("filler word ", 50) + "the permanent revolution must continue" + strings.Repeat(" more filler", 50)
	excerpt, phrase := retrieval.BuildExcerpt(body, "Some Title", []string{"permanent revolution"}, 5)

	require.Equal(t, "permanent revolution", phrase)
	require.Contains(t, strings.ToLower(excerpt), "permanent revolution")
}

func TestBuildExcerptSkipsTitleWeightedPrefix(t *testing.T) {
	title := "Imperialism"
	prefix := strings.Repeat(title+" ", 5)
	body := prefix + strings.Repeat("filler ", 80) + "imperialism is the highest stage" + strings.Repeat(" filler", 40)

	excerpt, phrase := retrieval.BuildExcerpt(body, title, []string{"imperialism"}, 5)
	require.Equal(t, "imperialism", phrase)
	// The excerpt should be drawn from the second occurrence, past the
	// title-weighted prefix, not from the prefix itself.
	require.Contains(t, strings.ToLower(excerpt), "highest stage")
}

func TestBuildExcerptFallsBackWhenNoPhraseMatches(t *testing.T) {
	body := strings.Repeat("a", 300)
	excerpt, phrase := retrieval.BuildExcerpt(body, "Title", []string{"nonexistent phrase"}, 5)

	require.Empty(t, phrase)
	require.True(t, strings.HasSuffix(excerpt, "…"))
	require.Less(t, len(excerpt), len(body))
}

func TestBuildExcerptNoPhrasesReturnsShortBodyVerbatim(t *testing.T) {
	body := "short body"
	excerpt, phrase := retrieval.BuildExcerpt(body, "Title", nil, 5)

	require.Empty(t, phrase)
	require.Equal(t, body, excerpt)
}
