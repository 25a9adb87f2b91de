package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/domwxyz/marxist-search/internal/ids"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO
)

// SQLiteMetadataStore implements MetadataStore over a single articles.db
// file. It is the single-writer, multi-reader relational store: a
// small connection pool shared across readers, WAL mode so ingestion (the
// sole writer, running out-of-process) doesn't block concurrent search
// reads.
type SQLiteMetadataStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	path    string
	content *BleveContentIndex // optional; phrase matching delegates here when set
}

// SetContentIndex attaches a bleve phrase index that SearchByContent uses
// for exact phrases instead of LIKE-scanning the whole table. Safe to call
// once at startup before serving traffic.
func (s *SQLiteMetadataStore) SetContentIndex(c *BleveContentIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = c
}

// ContentIndex exposes the attached bleve phrase index, if any.
func (s *SQLiteMetadataStore) ContentIndex() *BleveContentIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// NewSQLiteMetadataStore opens (and, if necessary, creates) articles.db at
// path. An empty path opens an in-memory database, used by tests.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open articles.db: %w", err)
	}
	// A small connection pool; writes are serialized by s.mu rather than by
	// limiting the pool to one connection.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &SQLiteMetadataStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteMetadataStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS articles (
		id             INTEGER PRIMARY KEY,
		url            TEXT NOT NULL UNIQUE,
		title          TEXT NOT NULL,
		body           TEXT NOT NULL DEFAULT '',
		source         TEXT NOT NULL DEFAULT '',
		author         TEXT NOT NULL DEFAULT '',
		published_at   DATETIME NOT NULL,
		word_count     INTEGER NOT NULL DEFAULT 0,
		chunked        INTEGER NOT NULL DEFAULT 0,
		indexed        INTEGER NOT NULL DEFAULT 0,
		tags           TEXT NOT NULL DEFAULT '',
		terms          TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
	CREATE INDEX IF NOT EXISTS idx_articles_author ON articles(author);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);

	CREATE TABLE IF NOT EXISTS chunks (
		article_id   INTEGER NOT NULL REFERENCES articles(id),
		chunk_index  INTEGER NOT NULL,
		body         TEXT NOT NULL,
		word_count   INTEGER NOT NULL DEFAULT 0,
		start_offset INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (article_id, chunk_index)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LookupByIDs returns the filter projection for a mixed set of article and
// chunk ids. Malformed or unresolvable ids are dropped, not erred.
func (s *SQLiteMetadataStore) LookupByIDs(ctx context.Context, rawIDs []string) ([]FilterRow, error) {
	if len(rawIDs) == 0 {
		return nil, nil
	}

	groups := ids.GroupByArticle(rawIDs)
	articleIDs := make([]int, 0, len(groups))
	for articleID := range groups {
		articleIDs = append(articleIDs, articleID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(articleIDs)), ",")
	args := make([]any, len(articleIDs))
	for i, id := range articleIDs {
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT id, title, url, source, author, published_at, word_count, tags, terms
		FROM articles WHERE id IN (%s)`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup articles: %w", err)
	}
	defer rows.Close()

	articles := make(map[int]FilterRow, len(articleIDs))
	for rows.Next() {
		var a FilterRow
		var tagsCSV, termsCSV string
		var articleID int
		if err := rows.Scan(&articleID, &a.Title, &a.URL, &a.Source, &a.Author, &a.PublishedDate, &a.WordCount, &tagsCSV, &termsCSV); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.ArticleID = articleID
		a.Tags = splitCSV(tagsCSV)
		a.Terms = splitCSV(termsCSV)
		a.PublishedYear = a.PublishedDate.Year()
		a.PublishedMonth = int(a.PublishedDate.Month())
		articles[articleID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]FilterRow, 0, len(rawIDs))
	for _, id := range rawIDs {
		parsed, err := ids.Parse(id)
		if err != nil {
			continue
		}
		base, ok := articles[parsed.ArticleID]
		if !ok {
			continue
		}
		row := base
		row.ID = id
		row.IsChunk = parsed.IsChunk()
		if parsed.IsChunk() {
			row.ChunkIndex = parsed.ChunkIdx
		}
		out = append(out, row)
	}
	return out, nil
}

// FetchContent returns body text for the given candidate or result ids. Chunk
// ids fetch the chunk body; article ids fetch the article body.
func (s *SQLiteMetadataStore) FetchContent(ctx context.Context, rawIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(rawIDs))
	if len(rawIDs) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, raw := range rawIDs {
		parsed, err := ids.Parse(raw)
		if err != nil {
			continue
		}
		var body string
		if parsed.IsChunk() {
			err = s.db.QueryRowContext(ctx,
				`SELECT body FROM chunks WHERE article_id = ? AND chunk_index = ?`,
				parsed.ArticleID, parsed.ChunkIdx).Scan(&body)
		} else {
			err = s.db.QueryRowContext(ctx,
				`SELECT body FROM articles WHERE id = ?`, parsed.ArticleID).Scan(&body)
		}
		if err != nil {
			continue // storage-error: drop the individual candidate, keep going
		}
		out[raw] = body
	}
	return out, nil
}

// SearchByContent implements the DB path of dispatch: attribute filters plus
// phrase matching (bleve phrase queries for exact phrases when a content
// index is attached, LIKE substring matching otherwise), with no semantic
// terms involved. Rows come back ordered by publication date descending.
func (s *SQLiteMetadataStore) SearchByContent(ctx context.Context, q ContentQuery) ([]FilterRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any

	if q.Filter.InvalidDateRange {
		where = append(where, "1 = 0")
	}
	if q.Filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, q.Filter.Source)
	}
	if q.Filter.Author != "" {
		for _, tok := range strings.Fields(strings.ToLower(q.Filter.Author)) {
			where = append(where, "LOWER(author) LIKE ? ESCAPE '\\'")
			args = append(args, "%"+escapeLike(tok)+"%")
		}
	}
	if q.Filter.PublishedYear != 0 {
		where = append(where, "strftime('%Y', published_at) = ?")
		args = append(args, fmt.Sprintf("%04d", q.Filter.PublishedYear))
	}
	if q.Filter.MinWordCount > 0 {
		where = append(where, "word_count >= ?")
		args = append(args, q.Filter.MinWordCount)
	}
	if start, end, ok := resolveDateRange(q.Filter); ok {
		where = append(where, "published_at >= ? AND published_at <= ?")
		args = append(args, start, end)
	}

	// Phrase matching: bleve when a content index is attached (the normal
	// case, since a real phrase index beats a LIKE table scan at corpus scale),
	// LIKE as a fallback for stores that never had one wired in (tests).
	if s.content != nil {
		for _, phrase := range q.ExactPhrases {
			matchedIDs, err := s.content.PhraseMatch(phrase, maxPhraseCandidates)
			if err != nil {
				return nil, fmt.Errorf("phrase match %q: %w", phrase, err)
			}
			if len(matchedIDs) == 0 {
				where = append(where, "1 = 0")
				continue
			}
			where = append(where, "id IN ("+placeholdersFor(len(matchedIDs))+")")
			for _, id := range matchedIDs {
				args = append(args, id)
			}
		}
		for _, phrase := range q.TitlePhrases {
			where = append(where, "LOWER(title) LIKE ? ESCAPE '\\'")
			args = append(args, "%"+escapeLike(strings.ToLower(phrase))+"%")
		}
	} else {
		for _, phrase := range q.ExactPhrases {
			where = append(where, "(LOWER(body) LIKE ? ESCAPE '\\' OR LOWER(title) LIKE ? ESCAPE '\\')")
			like := "%" + escapeLike(strings.ToLower(phrase)) + "%"
			args = append(args, like, like)
		}
		for _, phrase := range q.TitlePhrases {
			where = append(where, "LOWER(title) LIKE ? ESCAPE '\\'")
			args = append(args, "%"+escapeLike(strings.ToLower(phrase))+"%")
		}
	}

	query := `SELECT id, title, url, source, author, published_at, word_count, tags, terms FROM articles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY published_at DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search by content: %w", err)
	}
	defer rows.Close()

	var out []FilterRow
	for rows.Next() {
		var a FilterRow
		var tagsCSV, termsCSV string
		if err := rows.Scan(&a.ArticleID, &a.Title, &a.URL, &a.Source, &a.Author, &a.PublishedDate, &a.WordCount, &tagsCSV, &termsCSV); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.ID = fmt.Sprintf("a_%d", a.ArticleID)
		a.Tags = splitCSV(tagsCSV)
		a.Terms = splitCSV(termsCSV)
		a.PublishedYear = a.PublishedDate.Year()
		a.PublishedMonth = int(a.PublishedDate.Month())
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteMetadataStore) AggregateSources(ctx context.Context) ([]SourceAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*), MIN(published_at), MAX(published_at)
		FROM articles GROUP BY source ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceAggregate
	for rows.Next() {
		var a SourceAggregate
		if err := rows.Scan(&a.Name, &a.ArticleCount, &a.Earliest, &a.Latest); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteMetadataStore) AggregateTopAuthors(ctx context.Context, minArticles, limit int) ([]AuthorAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT author, COUNT(*) AS n FROM articles
		WHERE author != '' GROUP BY author HAVING n >= ? ORDER BY n DESC LIMIT ?`,
		minArticles, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuthorAggregate
	for rows.Next() {
		var a AuthorAggregate
		if err := rows.Scan(&a.Name, &a.ArticleCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteMetadataStore) AggregateStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT source), COUNT(DISTINCT author),
		       COALESCE(MIN(published_at), CURRENT_TIMESTAMP), COALESCE(MAX(published_at), CURRENT_TIMESTAMP)
		FROM articles`)
	if err := row.Scan(&st.ArticleCount, &st.SourceCount, &st.AuthorCount, &st.EarliestArticle, &st.LatestArticle); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.ChunkCount); err != nil {
		return st, err
	}
	return st, nil
}

// ArticleByURL returns the id, published timestamp, and indexed flag for a
// canonical URL, with ok=false when the URL has never been ingested. Used by
// the ingestion pipeline to skip unchanged articles without re-fetching.
func (s *SQLiteMetadataStore) ArticleByURL(ctx context.Context, url string) (id int, publishedAt time.Time, indexed bool, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRowContext(ctx,
		`SELECT id, published_at, indexed FROM articles WHERE url = ?`, url).
		Scan(&id, &publishedAt, &indexed)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, false, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, false, err
	}
	return id, publishedAt, indexed, true, nil
}

// UpsertArticle inserts a new article or, if the URL already exists, updates
// it in place, keeping re-ingest of an unchanged URL idempotent. It is the single write path into the articles table; retrieval
// never calls it. Returns the article's id.
func (s *SQLiteMetadataStore) UpsertArticle(ctx context.Context, a Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (url, title, body, source, author, published_at, word_count, chunked, indexed, tags, terms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title, body = excluded.body, source = excluded.source,
			author = excluded.author, published_at = excluded.published_at,
			word_count = excluded.word_count, chunked = excluded.chunked,
			indexed = excluded.indexed, tags = excluded.tags, terms = excluded.terms`,
		a.URL, a.Title, a.Body, a.Source, a.Author, a.PublishedAt, a.WordCount,
		a.Chunked, a.Indexed, strings.Join(a.Tags, ","), strings.Join(a.ExtractedTerm, ","))
	if err != nil {
		return 0, fmt.Errorf("upsert article: %w", err)
	}

	var id int
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM articles WHERE url = ?`, a.URL).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve article id: %w", err)
	}
	_ = res

	if s.content != nil {
		if err := s.content.Index(id, a.Title, a.Body); err != nil {
			return id, fmt.Errorf("index article content: %w", err)
		}
	}
	return id, nil
}

// ReplaceChunks atomically replaces an article's chunk rows, used whenever
// chunking crosses the threshold and needs to re-segment a previously
// unchunked (or differently-chunked) article. An empty chunks list clears
// the rows and marks the article unchunked.
func (s *SQLiteMetadataStore) ReplaceChunks(ctx context.Context, articleID int, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("clear old chunks: %w", err)
	}
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (article_id, chunk_index, body, word_count, start_offset)
			VALUES (?, ?, ?, ?, ?)`,
			articleID, c.ChunkIndex, c.Body, c.WordCount, c.StartOffset); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE articles SET chunked = ? WHERE id = ?`, len(chunks) > 0, articleID); err != nil {
		return fmt.Errorf("mark article chunked: %w", err)
	}
	return tx.Commit()
}

// MarkIndexed flips the indexed flag once an article's embedding(s) have
// landed in the vector store.
func (s *SQLiteMetadataStore) MarkIndexed(ctx context.Context, articleID int, indexed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE articles SET indexed = ? WHERE id = ?`, indexed, articleID)
	return err
}

func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.content != nil {
		_ = s.content.Close()
	}
	return s.db.Close()
}

// maxPhraseCandidates bounds how many article ids a single bleve phrase
// query is allowed to hand back into the SQL IN-list.
const maxPhraseCandidates = 5000

func placeholdersFor(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func resolveDateRange(f SearchFilter) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	switch f.DateRangePreset {
	case "past_week":
		return now.AddDate(0, 0, -7), now, true
	case "past_month":
		return now.AddDate(0, 0, -30), now, true
	case "past_3months":
		return now.AddDate(0, 0, -90), now, true
	case "past_year":
		return now.AddDate(0, 0, -365), now, true
	case "2020s":
		return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2029, 12, 31, 23, 59, 59, 0, time.UTC), true
	case "2010s":
		return time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2019, 12, 31, 23, 59, 59, 0, time.UTC), true
	case "2000s":
		return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2009, 12, 31, 23, 59, 59, 0, time.UTC), true
	case "1990s":
		return time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC), true
	}
	if f.StartDate != nil && f.EndDate != nil {
		return *f.StartDate, *f.EndDate, true
	}
	return time.Time{}, time.Time{}, false
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)
