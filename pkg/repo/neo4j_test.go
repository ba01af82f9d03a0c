package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type item struct {
	ID   string
	Name string
}

type fakeResult struct {
	records []*neo4j.Record
	pos     int
	err     error
}

func (r *fakeResult) Next(context.Context) bool {
	if r.pos >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.pos-1] }

func (r *fakeResult) Err() error { return r.err }

type call struct {
	cypher string
	params map[string]any
}

type mockRunner struct {
	calls   []call
	modes   []neo4j.AccessMode
	records []*neo4j.Record
	err     error
	resErr  error
	closed  int
}

func (m *mockRunner) Run(_ context.Context, cypher string, params map[string]any) (result, error) {
	m.calls = append(m.calls, call{cypher, params})
	if m.err != nil {
		return nil, m.err
	}
	return &fakeResult{records: m.records, err: m.resErr}, nil
}

func (m *mockRunner) Close(context.Context) error { m.closed++; return nil }

func nodeRecord(props map[string]any) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"n"}, Values: []any{neo4j.Node{Labels: []string{"Item"}, Props: props}}}
}

func newTestRepo(m *mockRunner) *Neo4jRepo[item, string] {
	r := NewNeo4jRepo[item, string](nil, "Item",
		func(i item) map[string]any { return map[string]any{"id": i.ID, "name": i.Name} },
		func(rec *neo4j.Record) (item, error) {
			props, err := NodeProps(rec, "n")
			if err != nil {
				return item{}, err
			}
			id, _ := props["id"].(string)
			name, _ := props["name"].(string)
			return item{ID: id, Name: name}, nil
		})
	r.newSession = func(_ context.Context, mode neo4j.AccessMode) runner {
		m.modes = append(m.modes, mode)
		return m
	}
	return r
}

func TestNewNeo4jRepoOptions(t *testing.T) {
	r := NewNeo4jRepo[item, string](nil, "Item", nil, nil,
		WithIDKey[item, string]("uuid"), WithDatabase[item, string]("news"))
	if r.idKey != "uuid" || r.database != "news" {
		t.Fatalf("options not applied: idKey=%s database=%s", r.idKey, r.database)
	}
	if NewNeo4jRepo[item, string](nil, "Item", nil, nil).idKey != "id" {
		t.Fatal("expected default idKey=id")
	}
}

func TestGet(t *testing.T) {
	m := &mockRunner{records: []*neo4j.Record{nodeRecord(map[string]any{"id": "a", "name": "Alpha"})}}
	got, err := newTestRepo(m).Get(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if got != (item{ID: "a", Name: "Alpha"}) {
		t.Errorf("unexpected item %+v", got)
	}
	if m.calls[0].params["id"] != "a" || !strings.Contains(m.calls[0].cypher, "MATCH (n:Item {id: $id})") {
		t.Errorf("unexpected query %+v", m.calls[0])
	}
	if m.closed != 1 {
		t.Errorf("session not closed")
	}
	if m.modes[0] != neo4j.AccessModeRead {
		t.Errorf("get should use a read session")
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := newTestRepo(&mockRunner{}).Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdering(t *testing.T) {
	m := &mockRunner{records: []*neo4j.Record{
		nodeRecord(map[string]any{"id": "b"}),
		nodeRecord(map[string]any{"id": "a"}),
	}}
	items, err := newTestRepo(m).List(context.Background(), ListOpts{Limit: 50, OrderBy: "createdAt", Desc: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != "b" {
		t.Fatalf("unexpected items %+v", items)
	}
	c := m.calls[0]
	if !strings.Contains(c.cypher, "ORDER BY n.createdAt DESC") {
		t.Errorf("missing order clause: %s", c.cypher)
	}
	if c.params["limit"] != 50 || c.params["offset"] != 0 {
		t.Errorf("unexpected params %v", c.params)
	}
}

func TestListDefaultLimitAndBadOrder(t *testing.T) {
	m := &mockRunner{}
	r := newTestRepo(m)
	if _, err := r.List(context.Background(), ListOpts{}); err != nil {
		t.Fatal(err)
	}
	if m.calls[0].params["limit"] != 100 {
		t.Errorf("expected default limit 100, got %v", m.calls[0].params["limit"])
	}
	if _, err := r.List(context.Background(), ListOpts{OrderBy: "x) DETACH DELETE n //"}); err == nil {
		t.Error("expected invalid order property to be rejected")
	}
}

func TestCreate(t *testing.T) {
	m := &mockRunner{records: []*neo4j.Record{nodeRecord(map[string]any{"id": "c", "name": "Gamma"})}}
	got, err := newTestRepo(m).Create(context.Background(), item{ID: "c", Name: "Gamma"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Gamma" {
		t.Errorf("unexpected item %+v", got)
	}
	props := m.calls[0].params["props"].(map[string]any)
	if props["id"] != "c" {
		t.Errorf("unexpected props %v", props)
	}
}

func TestRunError(t *testing.T) {
	boom := errors.New("boom")
	r := newTestRepo(&mockRunner{err: boom})
	if _, err := r.List(context.Background(), ListOpts{}); !errors.Is(err, boom) {
		t.Errorf("List: expected boom, got %v", err)
	}
	if _, err := r.Create(context.Background(), item{}); !errors.Is(err, boom) {
		t.Errorf("Create: expected boom, got %v", err)
	}
}

func TestStreamError(t *testing.T) {
	lost := errors.New("connection reset")
	m := &mockRunner{
		records: []*neo4j.Record{nodeRecord(map[string]any{"id": "a", "name": "Alpha"})},
		resErr:  lost,
	}
	r := newTestRepo(m)
	items, err := r.List(context.Background(), ListOpts{})
	if !errors.Is(err, lost) {
		t.Fatalf("List: expected stream error, got %v", err)
	}
	if items != nil {
		t.Errorf("partial results must not be returned, got %v", items)
	}
	if _, err := r.Get(context.Background(), "a"); !errors.Is(err, lost) {
		t.Errorf("Get: expected stream error, got %v", err)
	}
}

func TestCreateCappedAndEnsureIndex(t *testing.T) {
	m := &mockRunner{records: []*neo4j.Record{nodeRecord(map[string]any{"id": "n"})}}
	r := newTestRepo(m)
	got, err := r.CreateCapped(context.Background(), item{ID: "n"}, "createdAt", 100)
	if err != nil || got.ID != "n" {
		t.Fatalf("got %+v, %v", got, err)
	}
	c := m.calls[0]
	for _, frag := range []string{"CREATE (n:Item $props)", "MATCH (m:Item) WITH m ORDER BY m.createdAt DESC SKIP $keep DETACH DELETE m", "RETURN n"} {
		if !strings.Contains(c.cypher, frag) {
			t.Errorf("missing %q in %s", frag, c.cypher)
		}
	}
	if c.params["keep"] != 100 || m.modes[0] != neo4j.AccessModeWrite {
		t.Errorf("unexpected call %+v mode %v", c, m.modes[0])
	}

	if err := r.EnsureIndex(context.Background(), "createdAt"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(m.calls[1].cypher, "IF NOT EXISTS FOR (n:Item) ON (n.createdAt)") {
		t.Errorf("unexpected index cypher %s", m.calls[1].cypher)
	}
	if _, err := r.CreateCapped(context.Background(), item{}, "bad name", 1); err == nil {
		t.Error("expected invalid property to be rejected")
	}
	if err := r.EnsureIndex(context.Background(), "n) DETACH DELETE n"); err == nil {
		t.Error("expected invalid index property to be rejected")
	}
}

func TestCreateNoRow(t *testing.T) {
	if _, err := newTestRepo(&mockRunner{}).Create(context.Background(), item{ID: "x"}); err == nil {
		t.Error("expected an error when no node is returned")
	}
}

func TestInvalidLabelPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for an injectable label")
		}
	}()
	NewNeo4jRepo[item, string](nil, "Item) DETACH DELETE (x", nil, nil)
}

func TestNodeProps(t *testing.T) {
	rec := &neo4j.Record{Keys: []string{"n"}, Values: []any{map[string]any{"id": "m"}}}
	props, err := NodeProps(rec, "n")
	if err != nil || props["id"] != "m" {
		t.Fatalf("map props: %v %v", props, err)
	}
	if _, err := NodeProps(rec, "x"); err == nil {
		t.Error("expected missing key error")
	}
	rec = &neo4j.Record{Keys: []string{"n"}, Values: []any{42}}
	if _, err := NodeProps(rec, "n"); err == nil {
		t.Error("expected non-node error")
	}
}
