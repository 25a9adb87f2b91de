// Package ingest implements the RSS/Atom ingestion pipeline: paginated feed
// fetching, HTML body extraction, chunking, embedding, and the metadata and
// vector store writes that make newly-ingested articles searchable. It is
// the only writer against internal/store.
package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Item is one entry read from a feed, before HTML extraction.
type Item struct {
	Title       string
	Link        string
	Description string
	Published   time.Time
}

// rss is the minimal RSS 2.0 shape this package cares about.
type rss struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// atom is the minimal Atom shape this package cares about, including the
// feed-level rel="next" link WordPress-style pagination relies on when a
// source publishes Atom instead of RSS.
type atom struct {
	XMLName xml.Name    `xml:"feed"`
	Link    []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Link      []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

// FeedFetcher pulls every item off a feed, walking pagination until the feed
// looks exhausted (see FetchAll) or the page cap is reached.
type FeedFetcher struct {
	client         *http.Client
	maxPages       int
	requestTimeout time.Duration
}

// NewFeedFetcher builds a fetcher with the given page cap and per-request
// timeout.
func NewFeedFetcher(maxPages int, requestTimeout time.Duration) *FeedFetcher {
	if maxPages <= 0 {
		maxPages = 200
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &FeedFetcher{
		client:         &http.Client{Timeout: requestTimeout},
		maxPages:       maxPages,
		requestTimeout: requestTimeout,
	}
}

// maxConsecutivePageFailures is how many failed or all-duplicate pages in a
// row end a pagination walk. Archive sites intermittently 500 on deep pages,
// so one bad page must not truncate a backfill.
const maxConsecutivePageFailures = 3

// FetchAll walks every page of feedURL and returns the combined item list.
// Two pagination dialects are supported: WordPress-style "?paged=N" query
// parameters, tried in increasing order, and Atom's <link rel="next">,
// followed until absent. A WordPress walk tolerates up to
// maxConsecutivePageFailures failed or item-less pages before concluding the
// feed is exhausted; an Atom walk ends at the first failure, since the next
// page URL comes from the page that failed.
func (f *FeedFetcher) FetchAll(ctx context.Context, feedURL string) ([]Item, error) {
	var all []Item
	seen := make(map[string]bool)

	nextURL := feedURL
	wordpressPage := 1
	failures := 0
	knownAtom := false

	for page := 0; page < f.maxPages; page++ {
		items, next, isAtom, err := f.fetchOne(ctx, nextURL)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			if knownAtom {
				break
			}
			failures++
			if failures >= maxConsecutivePageFailures {
				break
			}
			wordpressPage++
			nextURL = withPagedParam(feedURL, wordpressPage)
			continue
		}
		knownAtom = isAtom

		newCount := 0
		for _, it := range items {
			if it.Link == "" || seen[it.Link] {
				continue
			}
			seen[it.Link] = true
			all = append(all, it)
			newCount++
		}

		if isAtom {
			if next == "" {
				break
			}
			nextURL = next
			continue
		}

		// RSS has no standard next-page link; fall back to WordPress-style
		// ?paged=N. An all-duplicate or empty page counts against the same
		// failure budget as an error, since the usual end-of-feed signal is
		// the last page repeating forever.
		if newCount == 0 {
			failures++
			if failures >= maxConsecutivePageFailures {
				break
			}
		} else {
			failures = 0
		}
		wordpressPage++
		nextURL = withPagedParam(feedURL, wordpressPage)
	}

	return all, nil
}

func (f *FeedFetcher) fetchOne(ctx context.Context, feedURL string) (items []Item, next string, isAtom bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", "marxist-search-ingest/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", false, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", false, fmt.Errorf("feed %s returned status %d", feedURL, resp.StatusCode)
	}

	var r rss
	if err := xml.NewDecoder(resp.Body).Decode(&r); err == nil && len(r.Channel.Items) > 0 {
		items = make([]Item, 0, len(r.Channel.Items))
		for _, it := range r.Channel.Items {
			items = append(items, Item{
				Title:       strings.TrimSpace(it.Title),
				Link:        strings.TrimSpace(it.Link),
				Description: it.Description,
				Published:   parseRSSDate(it.PubDate),
			})
		}
		return items, "", false, nil
	}

	resp2, err := f.client.Get(feedURL)
	if err != nil {
		return nil, "", false, fmt.Errorf("re-fetch feed %s for atom parsing: %w", feedURL, err)
	}
	defer resp2.Body.Close()

	var a atom
	if err := xml.NewDecoder(resp2.Body).Decode(&a); err != nil {
		return nil, "", false, fmt.Errorf("parse feed %s as rss or atom: %w", feedURL, err)
	}

	items = make([]Item, 0, len(a.Entries))
	for _, e := range a.Entries {
		items = append(items, Item{
			Title:       strings.TrimSpace(e.Title),
			Link:        strings.TrimSpace(primaryLink(e.Link)),
			Description: e.Summary,
			Published:   parseAtomDate(firstNonEmpty(e.Published, e.Updated)),
		})
	}
	for _, l := range a.Link {
		if l.Rel == "next" {
			next = l.Href
			break
		}
	}
	return items, next, true, nil
}

func primaryLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(links) > 0 {
		return links[0].Href
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func withPagedParam(feedURL string, page int) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	q := u.Query()
	q.Set("paged", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

var rssDateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
}

func parseRSSDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, format := range rssDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseAtomDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return parseRSSDate(s)
}
