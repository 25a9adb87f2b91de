package store

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// BleveContentIndex is a full-text phrase index over article title+body,
// separate from the dense-vector store. It backs exact-phrase matching on
// the DB path of dispatch (SearchByContent) against the whole corpus without
// a table scan. Title phrases and the cutoff's keyword-aware bypass do not
// use it.
type BleveContentIndex struct {
	index bleve.Index
	path  string
}

type contentDoc struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// OpenBleveContentIndex opens (or creates, if absent) a bleve index rooted
// at dir. An empty dir creates an in-memory index, used by tests.
func OpenBleveContentIndex(dir string) (*BleveContentIndex, error) {
	if dir == "" {
		idx, err := bleve.NewMemOnly(defaultContentMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory content index: %w", err)
		}
		return &BleveContentIndex{index: idx}, nil
	}

	idx, err := bleve.Open(dir)
	if err == nil {
		return &BleveContentIndex{index: idx, path: dir}, nil
	}
	idx, err = bleve.New(dir, defaultContentMapping())
	if err != nil {
		return nil, fmt.Errorf("create content index at %s: %w", dir, err)
	}
	return &BleveContentIndex{index: idx, path: dir}, nil
}

func defaultContentMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = "en"
	return m
}

// Index upserts the title+body of one article, keyed by its integer id.
func (c *BleveContentIndex) Index(articleID int, title, body string) error {
	return c.index.Index(strconv.Itoa(articleID), contentDoc{Title: title, Body: body})
}

// Delete removes an article's content document.
func (c *BleveContentIndex) Delete(articleID int) error {
	return c.index.Delete(strconv.Itoa(articleID))
}

// PhraseMatch returns the article ids whose title or body contains phrase as
// a matched phrase, most-relevant first, capped at limit.
func (c *BleveContentIndex) PhraseMatch(phrase string, limit int) ([]int, error) {
	q := bleve.NewMatchPhraseQuery(phrase)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("phrase search: %w", err)
	}

	out := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Close releases the underlying index.
func (c *BleveContentIndex) Close() error {
	return c.index.Close()
}
