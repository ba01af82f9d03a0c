package news

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS news_articles (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	source     TEXT NOT NULL,
	vehicle    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_news_articles_created_at ON news_articles(created_at DESC);
`

// SQLiteStore keeps the feed in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("news: sqlite: open: %w", err)
	}
	// A single connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("news: sqlite: wal: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("news: sqlite: schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

const articleColumns = "id, title, question, answer, created_at, source, vehicle"

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (Article, error) {
	var (
		a       Article
		created int64
		source  string
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Question, &a.Answer, &created, &source, &a.Vehicle); err != nil {
		return Article{}, err
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	a.Source = Source(source)
	return a, nil
}

// List returns the newest ListLimit articles.
func (s *SQLiteStore) List(ctx context.Context) ([]Article, error) {
	return s.list(ctx, ListLimit)
}

// All returns up to MaxArticles articles.
func (s *SQLiteStore) All(ctx context.Context) ([]Article, error) {
	return s.list(ctx, MaxArticles)
}

func (s *SQLiteStore) list(ctx context.Context, limit int) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+articleColumns+" FROM news_articles ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("news: sqlite: list: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("news: sqlite: scan: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Article, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+articleColumns+" FROM news_articles WHERE id = ?", id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Article{}, fmt.Errorf("news: sqlite: get: %w", err)
	}
	return a, nil
}

// Add inserts a and prunes everything past MaxArticles in one transaction.
func (s *SQLiteStore) Add(ctx context.Context, a Article) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("news: sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO news_articles ("+articleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.Title, a.Question, a.Answer, a.CreatedAt.UnixNano(), string(a.Source), a.Vehicle)
	if err != nil {
		return fmt.Errorf("news: sqlite: insert: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM news_articles WHERE id NOT IN (
		SELECT id FROM news_articles ORDER BY created_at DESC LIMIT ?)`, MaxArticles)
	if err != nil {
		return fmt.Errorf("news: sqlite: prune: %w", err)
	}
	return tx.Commit()
}
