// Package semantic owns the Qdrant collection that holds embedded feed
// articles.
package semantic

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type pointsClient interface {
	Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
	Query(ctx context.Context, in *qdrant.QueryPoints, opts ...grpc.CallOption) (*qdrant.QueryResponse, error)
}

type collectionsClient interface {
	CollectionExists(ctx context.Context, in *qdrant.CollectionExistsRequest, opts ...grpc.CallOption) (*qdrant.CollectionExistsResponse, error)
	Create(ctx context.Context, in *qdrant.CreateCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *qdrant.DeleteCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error)
}

// VectorStore reads and writes one Qdrant collection over gRPC.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
	collection  string
}

// New dials Qdrant's gRPC endpoint at addr (host:port).
func New(addr, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	vs := NewWithClients(qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), collection)
	vs.conn = conn
	return vs, nil
}

// NewWithClients builds a VectorStore over existing clients.
func NewWithClients(points pointsClient, collections collectionsClient, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection with cosine distance unless it
// already exists.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	resp, err := v.collections.CollectionExists(ctx, &qdrant.CollectionExistsRequest{CollectionName: v.collection})
	if err != nil {
		return fmt.Errorf("semantic: check collection %s: %w", v.collection, err)
	}
	if resp.GetResult().GetExists() {
		return nil
	}
	return v.create(ctx, dims)
}

// Reset drops and recreates the collection.
func (v *VectorStore) Reset(ctx context.Context, dims int) error {
	if _, err := v.collections.Delete(ctx, &qdrant.DeleteCollection{CollectionName: v.collection}); err != nil {
		return fmt.Errorf("semantic: drop collection %s: %w", v.collection, err)
	}
	return v.create(ctx, dims)
}

func (v *VectorStore) create(ctx context.Context, dims int) error {
	_, err := v.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert writes points, replacing any with the same ID.
func (v *VectorStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload.values()),
		})
	}
	_, err := v.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: v.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search returns the points nearest to vector, best first.
func (v *VectorStore) Search(ctx context.Context, vector []float32, q Query) ([]Hit, error) {
	req := &qdrant.QueryPoints{
		CollectionName: v.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(max(q.Limit, 1))),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if q.MinScore > 0 {
		req.ScoreThreshold = qdrant.PtrOf(q.MinScore)
	}
	if q.Source != "" {
		req.Filter = &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("source", q.Source)}}
	}

	resp, err := v.points.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: query: %w", err)
	}
	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, sp := range resp.GetResult() {
		hits = append(hits, Hit{ID: sp.GetId().GetUuid(), Score: sp.GetScore(), Payload: payloadOf(sp.GetPayload())})
	}
	return hits, nil
}

func payloadOf(m map[string]*qdrant.Value) Payload {
	str := func(k string) string { return m[k].GetStringValue() }
	return Payload{
		ArticleID: str("article_id"),
		Title:     str("title"),
		Source:    str("source"),
		Vehicle:   str("vehicle"),
		Content:   str("content"),
	}
}
