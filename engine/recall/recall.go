// Package recall indexes feed articles as vectors and finds past
// consultations similar to a new question. The advisor uses the matches as
// prompt context; the API exposes them directly.
package recall

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pochini/pochini/engine/news"
	"github.com/pochini/pochini/engine/semantic"
	"github.com/pochini/pochini/pkg/fn"
	"github.com/pochini/pochini/pkg/llm"
)

// VectorIndex abstracts the Qdrant store.
type VectorIndex interface {
	Upsert(ctx context.Context, points []semantic.Point) error
	Search(ctx context.Context, vector []float32, q semantic.Query) ([]semantic.Hit, error)
	Reset(ctx context.Context, dims int) error
}

// Options configures the service.
type Options struct {
	TopK          int
	MinScore      float32
	SearchTimeout time.Duration
	// MaxContent bounds the stored content per article, in runes.
	MaxContent int
	Workers    int
	// Dims is the embedding size used when the index is rebuilt.
	Dims int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          3,
		MinScore:      0.55,
		SearchTimeout: 5 * time.Second,
		MaxContent:    4000,
		Workers:       4,
		Dims:          768,
	}
}

// Service embeds and searches consultations.
type Service struct {
	embed  llm.Embedder
	index  VectorIndex
	opts   Options
	logger *slog.Logger
}

// New creates a Service.
func New(embed llm.Embedder, index VectorIndex, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = d.TopK
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = d.SearchTimeout
	}
	if opts.MaxContent <= 0 {
		opts.MaxContent = d.MaxContent
	}
	if opts.Workers <= 0 {
		opts.Workers = d.Workers
	}
	if opts.Dims <= 0 {
		opts.Dims = d.Dims
	}
	return &Service{embed: embed, index: index, opts: opts, logger: logger}
}

// Match is a past consultation similar to the query.
type Match struct {
	ArticleID string  `json:"articleId"`
	Title     string  `json:"title"`
	Source    string  `json:"source"`
	Content   string  `json:"content"`
	Score     float32 `json:"score"`
}

// Document renders the text that gets embedded for an article.
func Document(a news.Article) string {
	return "Вопрос: " + a.Question + "\nОтвет: " + a.Answer
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// legacyIDs namespaces the point IDs derived from article IDs that are not
// UUIDs, such as the millisecond timestamps of older feeds.
var legacyIDs = uuid.MustParse("6f1c7a52-3f0e-4b8e-9d3a-2c5e8b41d0a7")

// PointID returns the vector point ID for an article ID. Qdrant accepts only
// UUIDs and integers, so other IDs map to a stable name-based UUID.
func PointID(articleID string) string {
	if id, err := uuid.Parse(articleID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(legacyIDs, []byte(articleID)).String()
}

// Index embeds a and upserts it under the article ID.
func (s *Service) Index(ctx context.Context, a news.Article) error {
	content := truncate(Document(a), s.opts.MaxContent)
	vec, err := s.embed.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("recall: embed %s: %w", a.ID, err)
	}
	pt := semantic.Point{
		ID:     PointID(a.ID),
		Vector: vec,
		Payload: semantic.Payload{
			ArticleID: a.ID,
			Title:     a.Title,
			Source:    string(a.Source),
			Vehicle:   a.Vehicle,
			Content:   content,
		},
	}
	if err := s.index.Upsert(ctx, []semantic.Point{pt}); err != nil {
		return fmt.Errorf("recall: index %s: %w", a.ID, err)
	}
	s.logger.Debug("recall indexed article", "id", a.ID, "source", a.Source)
	return nil
}

// IndexAll indexes articles concurrently and returns how many succeeded plus
// the per-article errors.
func (s *Service) IndexAll(ctx context.Context, articles []news.Article) (int, []error) {
	stage := fn.StageOf(func(ctx context.Context, a news.Article) (string, error) {
		return a.ID, s.Index(ctx, a)
	})
	ok, errs := fn.Partition(fn.BatchStage(s.opts.Workers, stage)(ctx, articles))
	return len(ok), errs
}

// Reset empties the index so the next IndexAll rebuilds it from scratch.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.index.Reset(ctx, s.opts.Dims); err != nil {
		return fmt.Errorf("recall: reset: %w", err)
	}
	return nil
}

// Similar returns up to k consultations similar to text. k <= 0 uses the
// configured TopK.
func (s *Service) Similar(ctx context.Context, text string, k int) ([]Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if k <= 0 {
		k = s.opts.TopK
	}
	vec, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("recall: embed query: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	hits, err := s.index.Search(searchCtx, vec, semantic.Query{Limit: k, MinScore: s.opts.MinScore})
	if err != nil {
		return nil, fmt.Errorf("recall: search: %w", err)
	}

	matches := make([]Match, len(hits))
	for i, h := range hits {
		p := h.Payload
		matches[i] = Match{ArticleID: p.ArticleID, Title: p.Title, Source: p.Source, Content: p.Content, Score: h.Score}
	}
	return matches, nil
}

// Context builds prompt context from consultations similar to question.
// Failures are logged and yield no context.
func (s *Service) Context(ctx context.Context, question string) []string {
	matches, err := s.Similar(ctx, question, 0)
	if err != nil {
		s.logger.Warn("recall: similar lookup failed, continuing without", "err", err)
		return nil
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("[%s] (%s, %.2f)\n%s", m.Title, m.Source, m.Score, m.Content))
	}
	return parts
}
