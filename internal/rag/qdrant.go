package rag

import (
	"context"
	"fmt"
	"os"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantConfig holds configuration for a Qdrant gRPC endpoint and collection
type QdrantConfig struct {
	Address        string // gRPC address (e.g., "localhost:6334")
	CollectionName string
	Dimension      int
}

// DefaultQdrantConfig returns default configuration from environment variables
func DefaultQdrantConfig() QdrantConfig {
	address := os.Getenv("QDRANT_ADDRESS")
	if address == "" {
		address = "localhost:6334"
	}

	collection := os.Getenv("QDRANT_COLLECTION")
	if collection == "" {
		collection = "story_chunks"
	}

	return QdrantConfig{
		Address:        address,
		CollectionName: collection,
		Dimension:      DefaultEmbeddingDimension,
	}
}

// QdrantStore implements VectorStore interface using Qdrant
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	config      QdrantConfig
}

// NewQdrantStore connects to Qdrant and ensures the collection exists
func NewQdrantStore(ctx context.Context, config QdrantConfig) (*QdrantStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	conn, err := grpc.NewClient(config.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial qdrant %s: %v", ErrConnectionFailed, config.Address, err)
	}

	store := &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		config:      config,
	}

	if err := store.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the collection if it doesn't exist
func (q *QdrantStore) ensureCollection(ctx context.Context) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", ErrConnectionFailed, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.config.CollectionName {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.config.CollectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.config.Dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.config.CollectionName, err)
	}
	return nil
}

// Insert upserts chunk records as points keyed by chunk ID
func (q *QdrantStore) Insert(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		if len(r.Embedding) != q.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, q.config.Dimension, len(r.Embedding))
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"source":       stringValue(r.Source),
				"chunk_index":  intValue(r.Index),
				"start_offset": intValue(r.Start),
				"content":      stringValue(r.Text),
				"model":        stringValue(r.Model),
			},
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.config.CollectionName,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points: %v", ErrInsertFailed, len(records), err)
	}
	return nil
}

// Flush is a no-op: upserts wait for the write to be applied
func (q *QdrantStore) Flush(ctx context.Context) error {
	return nil
}

// Search performs k-NN similarity search with optional source filtering
func (q *QdrantStore) Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error) {
	if len(queryVector) != q.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, q.config.Dimension, len(queryVector))
	}

	req := &pb.SearchPoints{
		CollectionName: q.config.CollectionName,
		Vector:         queryVector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if opts != nil && len(opts.Sources) > 0 {
		req.Filter = sourceFilter(opts.Sources)
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	chunks := make([]ContextChunk, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		payload := r.GetPayload()
		chunks[i] = ContextChunk{
			ID:     r.GetId().GetUuid(),
			Source: payload["source"].GetStringValue(),
			Index:  int(payload["chunk_index"].GetIntegerValue()),
			Start:  int(payload["start_offset"].GetIntegerValue()),
			Text:   payload["content"].GetStringValue(),
			Score:  r.GetScore(),
		}
	}
	return chunks, nil
}

// DeleteSources removes all points whose source matches one of sources
func (q *QdrantStore) DeleteSources(ctx context.Context, sources []string) error {
	if len(sources) == 0 {
		return nil
	}

	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.config.CollectionName,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: sourceFilter(sources),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// Reset deletes and recreates the collection
func (q *QdrantStore) Reset(ctx context.Context) error {
	_, err := q.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: q.config.CollectionName,
	})
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", q.config.CollectionName, err)
	}
	return q.ensureCollection(ctx)
}

// GetStats returns the collection point count
func (q *QdrantStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	info, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: q.config.CollectionName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return map[string]interface{}{
		"backend":    StoreQdrant,
		"collection": q.config.CollectionName,
		"row_count":  info.GetResult().GetPointsCount(),
	}, nil
}

// Close closes the underlying gRPC connection
func (q *QdrantStore) Close() error {
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// sourceFilter matches points whose source equals any of sources
func sourceFilter(sources []string) *pb.Filter {
	should := make([]*pb.Condition, len(sources))
	for i, src := range sources {
		should[i] = &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "source",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{Keyword: src},
					},
				},
			},
		}
	}
	return &pb.Filter{Should: should}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}

var _ VectorStore = (*QdrantStore)(nil)
