package news

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/pochini/pochini/pkg/repo"
)

// Label is the node label used for feed articles.
const Label = "NewsArticle"

// GraphStore keeps the feed as NewsArticle nodes in Neo4j.
type GraphStore struct {
	repo *repo.Neo4jRepo[Article, string]
}

// NewGraphStore creates a Neo4j-backed store.
func NewGraphStore(driver neo4j.DriverWithContext, database string) *GraphStore {
	return &GraphStore{repo: repo.NewNeo4jRepo[Article, string](driver, Label, toProps, fromRecord,
		repo.WithDatabase[Article, string](database))}
}

// EnsureSchema creates the createdAt index used for ordering and pruning.
func (s *GraphStore) EnsureSchema(ctx context.Context) error {
	if err := s.repo.EnsureIndex(ctx, "createdAt"); err != nil {
		return fmt.Errorf("news: graph: ensure index: %w", err)
	}
	return nil
}

// List returns the newest ListLimit articles.
func (s *GraphStore) List(ctx context.Context) ([]Article, error) {
	return s.list(ctx, ListLimit)
}

// All returns up to MaxArticles articles.
func (s *GraphStore) All(ctx context.Context) ([]Article, error) {
	return s.list(ctx, MaxArticles)
}

func (s *GraphStore) list(ctx context.Context, limit int) ([]Article, error) {
	articles, err := s.repo.List(ctx, repo.ListOpts{Limit: limit, OrderBy: "createdAt", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("news: graph: list: %w", err)
	}
	return articles, nil
}

func (s *GraphStore) Get(ctx context.Context, id string) (Article, error) {
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return Article{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Article{}, fmt.Errorf("news: graph: get: %w", err)
	}
	return a, nil
}

// Add creates the node and prunes everything past MaxArticles in one statement.
func (s *GraphStore) Add(ctx context.Context, a Article) error {
	if _, err := s.repo.CreateCapped(ctx, a, "createdAt", MaxArticles); err != nil {
		return fmt.Errorf("news: graph: add: %w", err)
	}
	return nil
}

func toProps(a Article) map[string]any {
	return map[string]any{
		"id":        a.ID,
		"title":     a.Title,
		"question":  a.Question,
		"answer":    a.Answer,
		"createdAt": a.CreatedAt.UTC(),
		"source":    string(a.Source),
		"vehicle":   a.Vehicle,
	}
}

func fromRecord(rec *neo4j.Record) (Article, error) {
	props, err := repo.NodeProps(rec, "n")
	if err != nil {
		return Article{}, err
	}
	str := func(k string) string {
		s, _ := props[k].(string)
		return s
	}
	a := Article{
		ID:       str("id"),
		Title:    str("title"),
		Question: str("question"),
		Answer:   str("answer"),
		Source:   Source(str("source")),
		Vehicle:  str("vehicle"),
	}
	switch at := props["createdAt"].(type) {
	case time.Time:
		a.CreatedAt = at.UTC()
	case string:
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, at)
	}
	return a, nil
}
