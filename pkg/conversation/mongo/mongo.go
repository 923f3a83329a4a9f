// Package mongo stores conversations as MongoDB documents, one document per
// (user_id, thread_id, agent_name) with an embedded messages array.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xeleb-ai/xeleb/pkg/conversation"
)

const connectTimeout = 10 * time.Second

// Config holds the MongoDB connection settings.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// document is the stored BSON layout.
type document struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty"`
	UserID    string                 `bson:"user_id"`
	ThreadID  string                 `bson:"thread_id"`
	AgentName string                 `bson:"agent_name"`
	Messages  []conversation.Message `bson:"messages"`
	CreatedAt time.Time              `bson:"created_at"`
}

func (d document) toConversation() *conversation.Conversation {
	msgs := d.Messages
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	return &conversation.Conversation{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		ThreadID:  d.ThreadID,
		AgentName: d.AgentName,
		Messages:  msgs,
		CreatedAt: d.CreatedAt,
	}
}

// Store implements conversation.Store on a MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewStore connects to MongoDB, verifies the connection and ensures the
// thread key index.
func NewStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.URI == "" || cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New("mongodb uri, database and collection are required")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}

	if _, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "thread_id", Value: 1}, {Key: "agent_name", Value: 1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("creating conversation index: %w", err)
	}

	logger.Info("connected to mongodb", "database", cfg.Database, "collection", cfg.Collection)
	return s, nil
}

// KeyFilter matches the conversation of a thread key.
func KeyFilter(key conversation.ThreadKey) bson.D {
	return bson.D{
		{Key: "user_id", Value: key.UserID},
		{Key: "thread_id", Value: key.ThreadID},
		{Key: "agent_name", Value: key.AgentName},
	}
}

// ThreadFilter matches every conversation of a user's thread.
func ThreadFilter(userID, threadID string) bson.D {
	return bson.D{
		{Key: "user_id", Value: userID},
		{Key: "thread_id", Value: threadID},
	}
}

// OldestFirst sorts conversations by creation time.
var OldestFirst = bson.D{{Key: "created_at", Value: 1}}

// AppendUpdate builds the upsert that creates a conversation on first write
// and pushes msgs in order.
func AppendUpdate(key conversation.ThreadKey, msgs []conversation.Message, now time.Time) bson.D {
	return bson.D{
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "user_id", Value: key.UserID},
			{Key: "thread_id", Value: key.ThreadID},
			{Key: "agent_name", Value: key.AgentName},
			{Key: "created_at", Value: now.UTC()},
		}},
		{Key: "$push", Value: bson.D{
			{Key: "messages", Value: bson.D{{Key: "$each", Value: msgs}}},
		}},
	}
}

func (s *Store) Append(ctx context.Context, key conversation.ThreadKey, msgs ...conversation.Message) error {
	if len(msgs) == 0 {
		s.logger.Debug("no messages provided, skipping conversation update")
		return nil
	}

	res, err := s.collection.UpdateOne(ctx, KeyFilter(key), AppendUpdate(key, msgs, time.Now()),
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("appending messages: %w", err)
	}

	if res.UpsertedID != nil {
		s.logger.Debug("new conversation inserted", "user_id", key.UserID, "thread_id", key.ThreadID)
	}
	return nil
}

func (s *Store) Retrieve(ctx context.Context, key conversation.ThreadKey) (*conversation.Conversation, error) {
	var doc document
	err := s.collection.FindOne(ctx, KeyFilter(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving conversation: %w", err)
	}
	return doc.toConversation(), nil
}

func (s *Store) Clear(ctx context.Context, userID, threadID string) (bool, error) {
	err := s.collection.FindOneAndDelete(ctx, ThreadFilter(userID, threadID),
		options.FindOneAndDelete().SetSort(OldestFirst),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.logger.Info("no conversation found to clear", "user_id", userID, "thread_id", threadID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("clearing conversation: %w", err)
	}
	s.logger.Info("conversation cleared", "user_id", userID, "thread_id", threadID)
	return true, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	res, err := s.collection.DeleteMany(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("clearing conversations: %w", err)
	}
	s.logger.Info("conversation collection cleared", "deleted", res.DeletedCount)
	return nil
}

func (s *Store) List(ctx context.Context) ([]*conversation.Conversation, error) {
	cur, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(OldestFirst))
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding conversations: %w", err)
	}

	out := make([]*conversation.Conversation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toConversation())
	}
	return out, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
