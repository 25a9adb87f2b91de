package ingest

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/retrieval"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractBodyPrefersArticleContainer(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<nav>Home | About</nav>
		<article><p>The main argument.</p><p>A second paragraph.</p></article>
		<footer>Copyright</footer>
	</body></html>`)

	body := ExtractBody(doc)

	assert.Contains(t, body, "The main argument.")
	assert.Contains(t, body, "A second paragraph.")
	assert.NotContains(t, body, "Home | About")
	assert.NotContains(t, body, "Copyright")
}

func TestExtractBodyStripsScriptsAndSidebars(t *testing.T) {
	doc := docFromHTML(t, `<html><body><div class="entry-content">
		<script>alert(1)</script>
		<div class="sidebar"><p>Related posts</p></div>
		<p>Visible text.</p>
	</div></body></html>`)

	body := ExtractBody(doc)

	assert.Contains(t, body, "Visible text.")
	assert.NotContains(t, body, "alert(1)")
	assert.NotContains(t, body, "Related posts")
}

func TestExtractBodyFallsBackToWholeBody(t *testing.T) {
	doc := docFromHTML(t, `<html><body><p>No container here at all.</p></body></html>`)

	assert.Contains(t, ExtractBody(doc), "No container here at all.")
}

func TestNormalizeTextCollapsesUnicodeWhitespace(t *testing.T) {
	in := "word\u00a0one two\u200bthree"
	assert.Equal(t, "word one two three", NormalizeText(in))
}

func TestNormalizeTextCompressesBlankLines(t *testing.T) {
	in := "para one\n\n\n\n\npara two"
	assert.Equal(t, "para one\n\npara two", NormalizeText(in))
}

func TestExtractTermsFindsCanonicalVocabulary(t *testing.T) {
	vocab := retrieval.DefaultVocabulary()
	body := "The theory of permanent revolution holds that the class struggle cannot stop at national borders."

	terms := ExtractTerms(body, vocab.CanonicalTerms(), vocab.Pattern)

	assert.Contains(t, terms, "permanent revolution")
	assert.Contains(t, terms, "class struggle")
	assert.NotContains(t, terms, "surplus value")
}
