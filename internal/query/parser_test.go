package query_test

import (
	"strings"
	"testing"

	"github.com/domwxyz/marxist-search/internal/query"
	"github.com/stretchr/testify/require"
)

func TestParseSplitsFieldsPhrasesAndTerms(t *testing.T) {
	p, err := query.Parse(`author:"Alan Woods" title:"Labour Theory" "permanent revolution" dialectics today`)
	require.NoError(t, err)
	require.Equal(t, "Alan Woods", p.AuthorFilter)
	require.Equal(t, []string{"Labour Theory"}, p.TitlePhrases)
	require.Equal(t, []string{"permanent revolution"}, p.ExactPhrases)
	require.ElementsMatch(t, []string{"dialectics", "today"}, p.SemanticTerms)
}

func TestParseUnknownFieldDroppedWithWarning(t *testing.T) {
	p, err := query.Parse(`publisher:"Pathfinder Press" imperialism`)
	require.NoError(t, err)
	require.Empty(t, p.AuthorFilter)
	require.Empty(t, p.TitlePhrases)
	require.Contains(t, p.SemanticTerms, "imperialism")
	require.NotEmpty(t, p.Warnings)
}

func TestParseRepeatedAuthorKeepsLast(t *testing.T) {
	p, err := query.Parse(`author:"Marx" author:"Engels" dialectics`)
	require.NoError(t, err)
	require.Equal(t, "Engels", p.AuthorFilter)
	require.NotEmpty(t, p.Warnings)
}

func TestParseTooLong(t *testing.T) {
	_, err := query.Parse(strings.Repeat("a", query.MaxQueryLength+1))
	require.ErrorIs(t, err, query.ErrQueryTooLong)
}

func TestParseEmptyQueryHasNoContent(t *testing.T) {
	p, err := query.Parse("   ")
	require.NoError(t, err)
	require.False(t, p.HasContent())
}

func TestParseSanitizesNullBytesAndTruncates(t *testing.T) {
	p, err := query.Parse("title:\"abc\x00def\" " + strings.Repeat("x", 10))
	require.NoError(t, err)
	require.Equal(t, []string{"abcdef"}, p.TitlePhrases)

	p, err = query.Parse("title:\"" + strings.Repeat("x", 600) + "\"")
	require.NoError(t, err)
	require.Equal(t, []string{strings.Repeat("x", 500)}, p.TitlePhrases)
}
