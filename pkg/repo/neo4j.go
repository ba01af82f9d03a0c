package repo

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// identifier guards labels and property names interpolated into Cypher.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(kind, s string) error {
	if !identifier.MatchString(s) {
		return fmt.Errorf("repo: invalid %s %q", kind, s)
	}
	return nil
}

// Neo4jRepo stores one node per entity under a single label.
type Neo4jRepo[T any, ID comparable] struct {
	driver     neo4j.DriverWithContext
	database   string
	label      string
	idKey      string
	toMap      func(T) map[string]any
	fromRecord func(*neo4j.Record) (T, error)
	newSession func(ctx context.Context, mode neo4j.AccessMode) runner
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the ID property (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// WithDatabase selects a named database instead of the server default.
func WithDatabase[T any, ID comparable](name string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.database = name }
}

// NewNeo4jRepo creates a repository for nodes labelled label. It panics on a
// label or ID key that is not a plain identifier.
func NewNeo4jRepo[T any, ID comparable](
	driver neo4j.DriverWithContext,
	label string,
	toMap func(T) map[string]any,
	fromRecord func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		driver:     driver,
		label:      label,
		idKey:      "id",
		toMap:      toMap,
		fromRecord: fromRecord,
	}
	for _, o := range opts {
		o(r)
	}
	if err := checkIdent("label", r.label); err != nil {
		panic(err)
	}
	if err := checkIdent("id key", r.idKey); err != nil {
		panic(err)
	}
	return r
}

var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

type driverSession struct{ neo4j.SessionWithContext }

func (s driverSession) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return s.SessionWithContext.Run(ctx, cypher, params)
}

func (r *Neo4jRepo[T, ID]) session(ctx context.Context, mode neo4j.AccessMode) runner {
	if r.newSession != nil {
		return r.newSession(ctx, mode)
	}
	return driverSession{r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database, AccessMode: mode})}
}

// run executes one statement and decodes every returned record.
func (r *Neo4jRepo[T, ID]) run(ctx context.Context, mode neo4j.AccessMode, op, cypher string, params map[string]any) ([]T, error) {
	sess := r.session(ctx, mode)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("repo: %s %s: %w", r.label, op, err)
	}
	var out []T
	for res.Next(ctx) {
		item, err := r.fromRecord(res.Record())
		if err != nil {
			return nil, fmt.Errorf("repo: %s %s: decode: %w", r.label, op, err)
		}
		out = append(out, item)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("repo: %s %s: %w", r.label, op, err)
	}
	return out, nil
}

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n LIMIT 1", r.label, r.idKey)
	items, err := r.run(ctx, neo4j.AccessModeRead, "get", cypher, map[string]any{"id": id})
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return items[0], nil
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	order := ""
	if opts.OrderBy != "" {
		if err := checkIdent("order property", opts.OrderBy); err != nil {
			return nil, err
		}
		order = " ORDER BY n." + opts.OrderBy
		if opts.Desc {
			order += " DESC"
		}
	}
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN n%s SKIP $offset LIMIT $limit", r.label, order)
	return r.run(ctx, neo4j.AccessModeRead, "list", cypher, map[string]any{"offset": opts.Offset, "limit": limit})
}

func (r *Neo4jRepo[T, ID]) Create(ctx context.Context, entity T) (T, error) {
	cypher := fmt.Sprintf("CREATE (n:%s $props) RETURN n", r.label)
	return r.createOne(ctx, cypher, map[string]any{"props": r.toMap(entity)})
}

// CreateCapped creates entity and, in the same statement, deletes every node
// of the label beyond the newest keep by orderBy.
func (r *Neo4jRepo[T, ID]) CreateCapped(ctx context.Context, entity T, orderBy string, keep int) (T, error) {
	if err := checkIdent("order property", orderBy); err != nil {
		var zero T
		return zero, err
	}
	cypher := fmt.Sprintf(`CREATE (n:%[1]s $props)
WITH n
CALL {
  MATCH (m:%[1]s) WITH m ORDER BY m.%[2]s DESC SKIP $keep DETACH DELETE m
}
RETURN n`, r.label, orderBy)
	return r.createOne(ctx, cypher, map[string]any{"props": r.toMap(entity), "keep": keep})
}

func (r *Neo4jRepo[T, ID]) createOne(ctx context.Context, cypher string, params map[string]any) (T, error) {
	var zero T
	items, err := r.run(ctx, neo4j.AccessModeWrite, "create", cypher, params)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("repo: %s create: no node returned", r.label)
	}
	return items[0], nil
}

// EnsureIndex creates a range index on prop if it does not exist yet.
func (r *Neo4jRepo[T, ID]) EnsureIndex(ctx context.Context, prop string) error {
	if err := checkIdent("index property", prop); err != nil {
		return err
	}
	cypher := fmt.Sprintf("CREATE INDEX %[1]s_%[2]s IF NOT EXISTS FOR (n:%[1]s) ON (n.%[2]s)", r.label, prop)
	_, err := r.run(ctx, neo4j.AccessModeWrite, "index", cypher, nil)
	return err
}

// NodeProps extracts the property map of the node returned under key.
// Both driver nodes and plain maps are accepted.
func NodeProps(rec *neo4j.Record, key string) (map[string]any, error) {
	v, ok := rec.Get(key)
	if !ok {
		return nil, fmt.Errorf("repo: record has no %q", key)
	}
	switch n := v.(type) {
	case neo4j.Node:
		return n.Props, nil
	case map[string]any:
		return n, nil
	default:
		return nil, fmt.Errorf("repo: %q is %T, not a node", key, v)
	}
}
