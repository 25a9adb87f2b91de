package ids_test

import (
	"testing"

	"github.com/domwxyz/marxist-search/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	a := ids.MakeArticleID(42)
	assert.Equal(t, "a_42", a.String())

	c := ids.MakeChunkID(42, 3)
	assert.Equal(t, "c_42_3", c.String())

	parsedA, err := ids.Parse(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsedA)

	parsedC, err := ids.Parse(c.String())
	require.NoError(t, err)
	assert.Equal(t, c, parsedC)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{"", "x_1", "a_", "a_abc", "c_1", "c_1_2_3", "c_a_b", "article_1"}
	for _, raw := range cases {
		_, err := ids.Parse(raw)
		require.Error(t, err, raw)
		var malformed *ids.MalformedIDError
		assert.ErrorAs(t, err, &malformed)
	}
}

func TestGroupByArticle(t *testing.T) {
	raw := []string{"a_1", "c_1_0", "c_1_1", "c_2_0", "garbage"}
	groups := ids.GroupByArticle(raw)
	assert.Len(t, groups, 2)
	assert.Len(t, groups[1], 3)
	assert.Len(t, groups[2], 1)
}
