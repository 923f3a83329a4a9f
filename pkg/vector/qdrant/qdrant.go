// Package qdrant provides the Qdrant vector database driver. It is the
// primary knowledge store: cosine distance, one collection, payloads carrying
// the passage text.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/xeleb-ai/xeleb/pkg/vector"
)

const (
	// DefaultCollection is used when Config.Collection is empty.
	DefaultCollection = "knowledgebase"

	// DefaultGRPCPort is Qdrant's gRPC port. The REST port 6333 is rewritten
	// to it so QDRANT_URL values written for the HTTP API keep working.
	DefaultGRPCPort = 6334
	restPort        = 6333

	// payloadDocID holds the original id of documents whose id is neither
	// numeric nor a UUID.
	payloadDocID = "doc_id"
)

// idNamespace derives stable point UUIDs from arbitrary string ids.
var idNamespace = uuid.MustParse("8c6a3f52-3c0e-4a8a-9d25-5f1c0b7d9e41")

// Client is the subset of *qdrant.Client the driver uses.
type Client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is "host:port" or a URL such as "https://xyz.cloud.qdrant.io:6333".
	Target string

	// APIKey authenticates against Qdrant Cloud.
	APIKey string

	// UseTLS forces TLS. An https Target enables it as well.
	UseTLS bool

	// Collection is the knowledge collection. Defaults to DefaultCollection.
	Collection string

	// Dimensions is the vector size used when creating the collection.
	Dimensions uint64
}

// Driver implements vector.Driver and vector.CollectionManager on Qdrant.
type Driver struct {
	client     Client
	collection string
	dimensions uint64
	logger     *slog.Logger
}

// NewDriver connects to Qdrant over gRPC.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant vector dimensions cannot be 0, must be configured")
	}

	host, port, tls, err := ParseTarget(c.Target)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: tls || c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	logger.Info("connected to qdrant",
		"host", host,
		"port", port,
		"collection", collectionOrDefault(c.Collection),
	)

	return NewDriverWithClient(client, c, logger), nil
}

// NewDriverWithClient wraps an existing client.
func NewDriverWithClient(client Client, c Config, logger *slog.Logger) *Driver {
	return &Driver{
		client:     client,
		collection: collectionOrDefault(c.Collection),
		dimensions: c.Dimensions,
		logger:     logger,
	}
}

func collectionOrDefault(name string) string {
	if name == "" {
		return DefaultCollection
	}
	return name
}

// ParseTarget splits a Qdrant target into host, gRPC port and whether TLS is
// implied by the scheme.
func ParseTarget(target string) (string, int, bool, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "localhost", DefaultGRPCPort, false, nil
	}

	useTLS := false
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", 0, false, fmt.Errorf("parsing qdrant target %q: %w", target, err)
		}
		useTLS = u.Scheme == "https"
		target = u.Host
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port given.
		return target, DefaultGRPCPort, useTLS, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	if port == restPort {
		port = DefaultGRPCPort
	}
	return host, port, useTLS, nil
}

// EnsureCollection creates the collection when it does not exist.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", d.collection, err)
	}
	if exists {
		return nil
	}
	return d.create(ctx)
}

// CreateCollection creates the cosine collection, failing if it exists.
func (d *Driver) CreateCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", d.collection, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", vector.ErrCollectionExists, d.collection)
	}
	return d.create(ctx)
}

func (d *Driver) create(ctx context.Context) error {
	err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     d.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", d.collection, err)
	}
	d.logger.Info("created qdrant collection", "collection", d.collection, "size", d.dimensions)
	return nil
}

// DropCollection deletes the collection.
func (d *Driver) DropCollection(ctx context.Context) error {
	if err := d.client.DeleteCollection(ctx, d.collection); err != nil {
		return fmt.Errorf("dropping collection %s: %w", d.collection, err)
	}
	d.logger.Info("dropped qdrant collection", "collection", d.collection)
	return nil
}

// CollectionInfo reports the collection's vector params and point count.
func (d *Driver) CollectionInfo(ctx context.Context) (vector.CollectionInfo, error) {
	info, err := d.client.GetCollectionInfo(ctx, d.collection)
	if err != nil {
		return vector.CollectionInfo{Name: d.collection}, fmt.Errorf("getting collection %s: %w", d.collection, err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	return vector.CollectionInfo{
		Name:        d.collection,
		VectorSize:  params.GetSize(),
		Distance:    params.GetDistance().String(),
		PointsCount: info.GetPointsCount(),
		Status:      strings.ToLower(info.GetStatus().String()),
	}, nil
}

// PointID maps a document id onto a Qdrant point id: numeric strings become
// numeric ids, UUIDs are kept and anything else becomes a UUIDv5 of the id.
// The second return reports whether the id had to be derived.
func PointID(id string) (*qdrant.PointId, bool) {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n), false
	}
	if u, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(u.String()), false
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(idNamespace, []byte(id)).String()), true
}

// documentID reverses PointID using the stored doc_id when present.
func documentID(id *qdrant.PointId, payload map[string]any) string {
	if original, ok := payload[payloadDocID].(string); ok && original != "" {
		return original
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// Add upserts documents and waits for the write to be applied.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		if d.dimensions != 0 && uint64(len(doc.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: doc %s has %d, collection expects %d",
				vector.ErrDimensionMismatch, doc.ID, len(doc.Embedding), d.dimensions)
		}

		stored := vector.JoinPayload(doc)
		pid, derived := PointID(doc.ID)
		if derived {
			stored[payloadDocID] = doc.ID
		}

		payload, err := qdrant.TryValueMap(stored)
		if err != nil {
			return fmt.Errorf("encoding payload for doc %s: %w", doc.ID, err)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pid,
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: payload,
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("upserted points to qdrant", "count", len(points), "collection", d.collection)
	return nil
}

// Query runs a nearest neighbour query with payloads.
func (d *Driver) Query(ctx context.Context, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	req := &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.ScoreThreshold != nil {
		req.ScoreThreshold = qdrant.PtrOf(*opts.ScoreThreshold)
	}
	req.Filter = PayloadFilter(opts.Filter)

	points, err := d.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("querying qdrant: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		stored := FromValueMap(p.GetPayload())
		text, meta := vector.SplitPayload(stored)
		delete(meta, payloadDocID)
		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:      documentID(p.GetId(), stored),
				Text:    text,
				Payload: meta,
			},
			Score: p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))
	return results, nil
}

func pointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		out[i], _ = PointID(id)
	}
	return out
}

// Get retrieves points by document id.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs(ids),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, p := range points {
		stored := FromValueMap(p.GetPayload())
		text, meta := vector.SplitPayload(stored)
		delete(meta, payloadDocID)
		docs = append(docs, vector.Document{
			ID:        documentID(p.GetId(), stored),
			Text:      text,
			Payload:   meta,
			Embedding: p.GetVectors().GetVector().GetData(),
		})
	}
	return docs, nil
}

// Delete removes points by document id.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted points from qdrant", "count", len(ids))
	return nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}
