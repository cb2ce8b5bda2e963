package qdrant

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"studyrag/internal/vectorstore"
)

// Config configures the Qdrant gRPC connection.
type Config struct {
	// Addr is the gRPC endpoint, usually port 6334.
	Addr             string
	APIKey           string
	CollectionPrefix string
	// Metric is "euclidean" (default) or "cosine".
	Metric string
	Logger *zap.Logger
}

// Client shares one gRPC connection across the per-corpus collections.
type Client struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	apiKey      string
	prefix      string
	distance    qdrant.Distance
	logger      *zap.Logger
}

// Dial opens an insecure gRPC connection to Qdrant.
func Dial(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("qdrant: empty address")
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant dial %s: %w", cfg.Addr, err)
	}
	c, err := newClient(qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func newClient(points qdrant.PointsClient, collections qdrant.CollectionsClient, cfg Config) (*Client, error) {
	distance := qdrant.Distance_Euclid
	switch cfg.Metric {
	case "", "euclidean":
	case "cosine":
		distance = qdrant.Distance_Cosine
	default:
		return nil, fmt.Errorf("qdrant: unknown metric %q", cfg.Metric)
	}
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "studyrag"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		points:      points,
		collections: collections,
		apiKey:      cfg.APIKey,
		prefix:      prefix,
		distance:    distance,
		logger:      logger,
	}, nil
}

// Close releases the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Factory returns a vectorstore.Factory that maps each corpus to its own
// collection.
func (c *Client) Factory() vectorstore.Factory {
	return func(corpusID string) (vectorstore.Storage, error) {
		return &Storage{client: c, collection: c.CollectionName(corpusID)}, nil
	}
}

// CollectionName derives a stable collection name from a corpus identifier.
func (c *Client) CollectionName(corpusID string) string {
	return c.prefix + "_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(corpusID)).String()
}

func (c *Client) withAuth(ctx context.Context) context.Context {
	if c.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", c.apiKey)
}

// Storage is one corpus held in a Qdrant collection. Point ids are the
// upsert positions.
type Storage struct {
	client     *Client
	collection string
	next       int
}

// Init drops any existing collection of the same name and creates it anew.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	ctx = s.client.withAuth(ctx)
	if err := s.drop(ctx); err != nil {
		return err
	}
	_, err := s.client.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: s.client.distance,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", s.collection, err)
	}
	s.next = 0
	s.client.logger.Debug("Qdrant collection created",
		zap.String("collection", s.collection),
		zap.Int("dimension", dimension),
	)
	return nil
}

func (s *Storage) drop(ctx context.Context) error {
	_, err := s.client.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("qdrant get collection %s: %w", s.collection, err)
	}
	if _, err := s.client.collections.Delete(ctx, &qdrant.DeleteCollection{CollectionName: s.collection}); err != nil {
		return fmt.Errorf("qdrant delete collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		pos := s.next + i
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(pos)),
			Vectors: qdrant.NewVectors(v...),
			Payload: map[string]*qdrant.Value{
				"position": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(pos)}},
			},
		}
	}
	wait := true
	resp, err := s.client.points.Upsert(s.client.withAuth(ctx), &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %s: %w", s.collection, err)
	}
	st := resp.GetResult().GetStatus()
	if st != qdrant.UpdateStatus_Acknowledged && st != qdrant.UpdateStatus_Completed {
		return fmt.Errorf("qdrant upsert %s: status %s", s.collection, st)
	}
	s.next += len(vectors)
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.Neighbor, error) {
	if topK <= 0 || s.next == 0 {
		return nil, nil
	}
	resp, err := s.client.points.Search(s.client.withAuth(ctx), &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search %s: %w", s.collection, err)
	}

	out := make([]vectorstore.Neighbor, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		pos := int(p.GetId().GetNum())
		if v, ok := p.GetPayload()["position"]; ok {
			pos = int(v.GetIntegerValue())
		}
		out = append(out, vectorstore.Neighbor{Position: pos, Distance: s.distance(p.GetScore())})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Distance != out[b].Distance {
			return out[a].Distance < out[b].Distance
		}
		return out[a].Position < out[b].Position
	})
	return out, nil
}

// distance converts a Qdrant score into an ascending distance.
func (s *Storage) distance(score float32) float64 {
	if s.client.distance == qdrant.Distance_Cosine {
		return 1 - float64(score)
	}
	return float64(score)
}

func (s *Storage) Clear(ctx context.Context) error {
	s.next = 0
	return s.drop(s.client.withAuth(ctx))
}
