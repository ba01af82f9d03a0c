package recall

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pochini/pochini/engine/news"
	"github.com/pochini/pochini/engine/semantic"
)

type mockEmbedder struct {
	err   error
	texts []string
	mu    sync.Mutex
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type mockIndex struct {
	mu       sync.Mutex
	records  []semantic.Point
	results  []semantic.Hit
	query    semantic.Query
	resetDim int
	err      error
	upsertFn func(semantic.Point) error
}

func (m *mockIndex) Upsert(_ context.Context, recs []semantic.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		if m.upsertFn != nil {
			if err := m.upsertFn(r); err != nil {
				return err
			}
		}
	}
	m.records = append(m.records, recs...)
	return m.err
}

func (m *mockIndex) Search(_ context.Context, _ []float32, q semantic.Query) ([]semantic.Hit, error) {
	m.query = q
	return m.results, m.err
}

func (m *mockIndex) Reset(_ context.Context, dims int) error {
	m.resetDim = dims
	return m.err
}

func testArticle() news.Article {
	a := news.NewArticle(news.SourceSymptoms, "Диагностика: Lada Niva 2015", "Стук в подвеске", `[{"diagnosis":"Шаровая"}]`, time.Now())
	a.Vehicle = "Lada Niva 2015"
	return a
}

func TestIndex(t *testing.T) {
	emb, idx := &mockEmbedder{}, &mockIndex{}
	svc := New(emb, idx, Options{}, nil)
	a := testArticle()
	if err := svc.Index(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if len(idx.records) != 1 {
		t.Fatalf("expected one record, got %d", len(idx.records))
	}
	rec := idx.records[0]
	if rec.ID != a.ID || rec.Payload.ArticleID != a.ID || rec.Payload.Source != "Анализ симптомов" || rec.Payload.Vehicle != "Lada Niva 2015" {
		t.Errorf("unexpected record %+v", rec)
	}
	if !strings.HasPrefix(emb.texts[0], "Вопрос: Стук в подвеске\nОтвет: ") {
		t.Errorf("unexpected document %q", emb.texts[0])
	}
}

func TestIndexLegacyNumericID(t *testing.T) {
	idx := &mockIndex{}
	svc := New(&mockEmbedder{}, idx, Options{}, nil)
	a := testArticle()
	a.ID = "1718000000000"
	if err := svc.Index(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	rec := idx.records[0]
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		t.Fatalf("point ID %q is not a UUID: %v", rec.ID, err)
	}
	if id.Version() != 5 {
		t.Errorf("expected a name-based UUID, got version %d", id.Version())
	}
	if rec.ID != PointID("1718000000000") {
		t.Error("point ID must be stable across reindexing")
	}
	if rec.Payload.ArticleID != "1718000000000" {
		t.Errorf("payload must keep the original ID, got %q", rec.Payload.ArticleID)
	}
	if PointID("1718000000001") == rec.ID {
		t.Error("distinct IDs must not collide")
	}
}

func TestIndexTruncatesContent(t *testing.T) {
	emb := &mockEmbedder{}
	svc := New(emb, &mockIndex{}, Options{MaxContent: 10}, nil)
	a := testArticle()
	a.Answer = strings.Repeat("ж", 100)
	if err := svc.Index(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(emb.texts[0])); n != 10 {
		t.Errorf("expected 10 runes, got %d", n)
	}
}

func TestIndexErrors(t *testing.T) {
	svc := New(&mockEmbedder{err: errors.New("embed fail")}, &mockIndex{}, Options{}, nil)
	if err := svc.Index(context.Background(), testArticle()); err == nil || !strings.Contains(err.Error(), "recall: embed") {
		t.Errorf("expected embed error, got %v", err)
	}
	svc = New(&mockEmbedder{}, &mockIndex{err: errors.New("qdrant down")}, Options{}, nil)
	if err := svc.Index(context.Background(), testArticle()); err == nil || !strings.Contains(err.Error(), "recall: index") {
		t.Errorf("expected index error, got %v", err)
	}
}

func TestIndexAll(t *testing.T) {
	bad := testArticle()
	idx := &mockIndex{upsertFn: func(r semantic.Point) error {
		if r.ID == bad.ID {
			return errors.New("rejected")
		}
		return nil
	}}
	svc := New(&mockEmbedder{}, idx, Options{Workers: 2}, nil)
	articles := []news.Article{testArticle(), bad, testArticle()}
	n, errs := svc.IndexAll(context.Background(), articles)
	if n != 2 || len(errs) != 1 {
		t.Fatalf("expected 2 ok and 1 error, got %d and %v", n, errs)
	}
}

func TestSimilar(t *testing.T) {
	idx := &mockIndex{results: []semantic.Hit{{ID: "p1", Score: 0.8, Payload: semantic.Payload{
		ArticleID: "a1", Title: "Вопрос о Lada", Source: "Чат-ассистент", Content: "Вопрос: ...",
	}}}}
	svc := New(&mockEmbedder{}, idx, DefaultOptions(), nil)
	got, err := svc.Similar(context.Background(), "  стук подвески ", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ArticleID != "a1" || got[0].Score != 0.8 {
		t.Fatalf("unexpected matches %+v", got)
	}
	if idx.query.Limit != 3 || idx.query.MinScore != DefaultOptions().MinScore {
		t.Errorf("unexpected search params %+v", idx.query)
	}

	if got, err := svc.Similar(context.Background(), "   ", 5); err != nil || got != nil {
		t.Errorf("blank query should return nothing, got %v %v", got, err)
	}
}

func TestContext(t *testing.T) {
	idx := &mockIndex{results: []semantic.Hit{{Score: 0.9, Payload: semantic.Payload{Title: "T", Source: "S", Content: "C"}}}}
	parts := New(&mockEmbedder{}, idx, Options{}, nil).Context(context.Background(), "вопрос")
	if len(parts) != 1 || parts[0] != "[T] (S, 0.90)\nC" {
		t.Errorf("unexpected context %q", parts)
	}

	idx.err = errors.New("search fail")
	if parts := New(&mockEmbedder{}, idx, Options{}, nil).Context(context.Background(), "вопрос"); parts != nil {
		t.Errorf("failed lookups should yield no context, got %q", parts)
	}
}

func TestReset(t *testing.T) {
	idx := &mockIndex{}
	if err := New(&mockEmbedder{}, idx, Options{Dims: 384}, nil).Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if idx.resetDim != 384 {
		t.Errorf("expected reset with 384 dims, got %d", idx.resetDim)
	}
	idx.err = errors.New("qdrant down")
	if err := New(&mockEmbedder{}, idx, Options{}, nil).Reset(context.Background()); err == nil {
		t.Error("expected reset error")
	}
}
