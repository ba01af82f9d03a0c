// Package news persists the consultation feed: a capped, newest-first log of
// past symptom analyses, maintenance schedules and chat answers.
package news

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Source names the flow that produced an article.
type Source string

const (
	SourceSymptoms    Source = "Анализ симптомов"
	SourceMaintenance Source = "Советник по ТО"
	SourceChat        Source = "Чат-ассистент"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceSymptoms, SourceMaintenance, SourceChat:
		return true
	}
	return false
}

// Article is one feed entry.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
	Source    Source    `json:"source"`
	Vehicle   string    `json:"vehicle,omitempty"`
}

// NewArticle stamps a fresh ID and a UTC creation time.
func NewArticle(source Source, title, question, answer string, now time.Time) Article {
	return Article{
		ID:        uuid.NewString(),
		Title:     title,
		Question:  question,
		Answer:    answer,
		CreatedAt: now.UTC(),
		Source:    source,
	}
}

// Sort orders articles newest first. Ties keep their relative order.
func Sort(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})
}

const (
	// MaxArticles is how many articles any store retains.
	MaxArticles = 100
	// ListLimit is how many articles a document store returns per List.
	ListLimit = 50
)

// Store is a news feed backend.
type Store interface {
	// List returns articles newest first.
	List(ctx context.Context) ([]Article, error)
	Get(ctx context.Context, id string) (Article, error)
	Add(ctx context.Context, a Article) error
}

// Exporter is implemented by stores whose List is capped below what they
// retain.
type Exporter interface {
	// All returns every retained article, newest first.
	All(ctx context.Context) ([]Article, error)
}

// All returns every article st retains, falling back to List for stores
// that do not cap it.
func All(ctx context.Context, st Store) ([]Article, error) {
	if e, ok := st.(Exporter); ok {
		return e.All(ctx)
	}
	return st.List(ctx)
}
