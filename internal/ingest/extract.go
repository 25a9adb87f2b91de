package ingest

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var mainContentSelectors = []string{
	"article", "main", ".entry-content", ".post-content", ".post-body", ".article-body",
	"[role='main']", ".content", "#content",
}

var boilerplateSelector = "script, style, nav, footer, header, aside, form, iframe, noscript, " +
	".sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner, .comments, #comments"

var blockSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre"

// ArticleHTMLFetcher downloads an article's HTML body and extracts its main
// textual content, dropping navigation, ads, and other template boilerplate.
type ArticleHTMLFetcher struct {
	client *http.Client
}

// NewArticleHTMLFetcher builds a fetcher with the given per-request timeout.
func NewArticleHTMLFetcher(timeout time.Duration) *ArticleHTMLFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ArticleHTMLFetcher{client: &http.Client{Timeout: timeout}}
}

// FetchAndExtract downloads articleURL and returns its extracted body text.
func (f *ArticleHTMLFetcher) FetchAndExtract(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", fmt.Errorf("build article request: %w", err)
	}
	req.Header.Set("User-Agent", "marxist-search-ingest/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article %s: %w", articleURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article %s returned status %d", articleURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article html %s: %w", articleURL, err)
	}
	return ExtractBody(doc), nil
}

// ExtractBody pulls the article's main text out of a parsed document,
// preferring a known content container and falling back to the whole body.
func ExtractBody(doc *goquery.Document) string {
	doc.Find(boilerplateSelector).Remove()

	var b strings.Builder
	for _, selector := range mainContentSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		sel.Find(blockSelector).Each(func(_ int, item *goquery.Selection) {
			text := strings.TrimSpace(item.Text())
			if text == "" {
				return
			}
			b.WriteString(text)
			b.WriteString("\n\n")
		})
		if b.Len() > 0 {
			break
		}
	}

	if b.Len() == 0 {
		doc.Find("body").Find(blockSelector).Each(func(_ int, item *goquery.Selection) {
			text := strings.TrimSpace(item.Text())
			if text == "" {
				return
			}
			b.WriteString(text)
			b.WriteString("\n\n")
		})
	}

	return NormalizeText(b.String())
}

var multiBlankLine = regexp.MustCompile(`\n{3,}`)
var multiSpace = regexp.MustCompile(`[ \t]{2,}`)

// NormalizeText collapses non-breaking spaces and other Unicode whitespace
// variants to plain ASCII space, and compresses runs of blank lines so
// chunking's paragraph-boundary detection sees consistent input regardless
// of the source site's markup quirks.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\u00a0' || r == '\u2009' || r == '\u200b' {
			b.WriteRune(' ')
			continue
		}
		if unicode.IsSpace(r) && r != '\n' {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	out = multiSpace.ReplaceAllString(out, " ")
	out = multiBlankLine.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// ExtractTerms scans body against the configured vocabulary's canonical
// terms and returns whichever ones appear at least once, for storage as
// FilterRow.Terms facets.
func ExtractTerms(body string, canonicalTerms []string, patternFor func(string) *regexp.Regexp) []string {
	lower := strings.ToLower(body)
	var found []string
	for _, term := range canonicalTerms {
		pattern := patternFor(term)
		if pattern == nil {
			if strings.Contains(lower, term) {
				found = append(found, term)
			}
			continue
		}
		if pattern.MatchString(body) {
			found = append(found, term)
		}
	}
	return found
}
