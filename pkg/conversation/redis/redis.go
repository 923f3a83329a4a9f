// Package redis stores conversations in Redis: a JSON message list and a meta
// hash per conversation, plus an index hash from thread key to conversation id.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xeleb-ai/xeleb/pkg/conversation"
)

const (
	defaultPrefix = "xeleb:conversation"

	keySep = "\x1f"
)

// Config holds the Redis connection settings.
type Config struct {
	URL string

	// TTL expires idle conversations. Zero keeps them forever.
	TTL time.Duration

	Prefix string
}

// Store implements conversation.Store on Redis.
type Store struct {
	rdb    redis.Cmdable
	closer func() error
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewStore parses cfg.URL, pings the server and returns a Store.
func NewStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	s := NewStoreWithClient(client, cfg.TTL, cfg.Prefix, logger)
	s.closer = client.Close
	return s, nil
}

// NewStoreWithClient wraps an existing client. The caller owns its lifecycle.
func NewStoreWithClient(rdb redis.Cmdable, ttl time.Duration, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{
		rdb:    rdb,
		closer: func() error { return nil },
		ttl:    ttl,
		prefix: prefix,
		logger: logger,
	}
}

func (s *Store) indexKey() string {
	return s.prefix + ":index"
}

func (s *Store) metaKey(id string) string {
	return fmt.Sprintf("%s:%s:meta", s.prefix, id)
}

func (s *Store) messagesKey(id string) string {
	return fmt.Sprintf("%s:%s:messages", s.prefix, id)
}

func indexField(key conversation.ThreadKey) string {
	return strings.Join([]string{key.UserID, key.ThreadID, key.AgentName}, keySep)
}

func threadPrefix(userID, threadID string) string {
	return userID + keySep + threadID + keySep
}

// resolve returns the conversation id for key, creating one when create is
// set. The id is empty when no conversation exists and create is unset.
func (s *Store) resolve(ctx context.Context, key conversation.ThreadKey, create bool) (id string, created bool, err error) {
	field := indexField(key)

	id, err = s.rdb.HGet(ctx, s.indexKey(), field).Result()
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", false, err
	}
	if !create {
		return "", false, nil
	}

	id = uuid.NewString()
	ok, err := s.rdb.HSetNX(ctx, s.indexKey(), field, id).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		// Lost a race with a concurrent first write.
		id, err = s.rdb.HGet(ctx, s.indexKey(), field).Result()
		return id, false, err
	}
	return id, true, nil
}

func (s *Store) Append(ctx context.Context, key conversation.ThreadKey, msgs ...conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	id, created, err := s.resolve(ctx, key, true)
	if err != nil {
		return fmt.Errorf("resolving conversation: %w", err)
	}

	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		values = append(values, b)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, s.metaKey(id), "created_at", time.Now().UTC().Format(time.RFC3339Nano))
		p.HSet(ctx, s.metaKey(id),
			"user_id", key.UserID,
			"thread_id", key.ThreadID,
			"agent_name", key.AgentName,
		)
		p.RPush(ctx, s.messagesKey(id), values...)
		if s.ttl > 0 {
			p.Expire(ctx, s.metaKey(id), s.ttl)
			p.Expire(ctx, s.messagesKey(id), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending messages: %w", err)
	}

	if created {
		s.logger.Debug("new conversation inserted", "id", id, "user_id", key.UserID, "thread_id", key.ThreadID)
	}
	return nil
}

func (s *Store) Retrieve(ctx context.Context, key conversation.ThreadKey) (*conversation.Conversation, error) {
	id, _, err := s.resolve(ctx, key, false)
	if err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}
	if id == "" {
		return nil, conversation.ErrNotFound
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		// Expired; drop the dangling index entry.
		s.rdb.HDel(ctx, s.indexKey(), indexField(key))
		return nil, conversation.ErrNotFound
	}
	return c, nil
}

// load reads a conversation by id, returning nil when its meta hash is gone.
func (s *Store) load(ctx context.Context, id string) (*conversation.Conversation, error) {
	meta, err := s.rdb.HGetAll(ctx, s.metaKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading conversation meta: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil
	}

	rows, err := s.rdb.LRange(ctx, s.messagesKey(id), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("loading messages: %w", err)
	}

	msgs := make([]conversation.Message, 0, len(rows))
	for i, row := range rows {
		var m conversation.Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, meta["created_at"])
	return &conversation.Conversation{
		ID:        id,
		UserID:    meta["user_id"],
		ThreadID:  meta["thread_id"],
		AgentName: meta["agent_name"],
		Messages:  msgs,
		CreatedAt: createdAt,
	}, nil
}

func (s *Store) Clear(ctx context.Context, userID, threadID string) (bool, error) {
	index, err := s.rdb.HGetAll(ctx, s.indexKey()).Result()
	if err != nil {
		return false, fmt.Errorf("reading conversation index: %w", err)
	}

	prefix := threadPrefix(userID, threadID)
	var (
		field  string
		oldest time.Time
	)
	for f, id := range index {
		if !strings.HasPrefix(f, prefix) {
			continue
		}
		created, err := s.rdb.HGet(ctx, s.metaKey(id), "created_at").Result()
		if errors.Is(err, redis.Nil) {
			// Expired; drop the dangling index entry.
			s.rdb.HDel(ctx, s.indexKey(), f)
			continue
		}
		if err != nil {
			return false, fmt.Errorf("reading conversation meta: %w", err)
		}
		at, _ := time.Parse(time.RFC3339Nano, created)
		if field == "" || at.Before(oldest) || (at.Equal(oldest) && f < field) {
			field, oldest = f, at
		}
	}
	if field == "" {
		s.logger.Info("no conversation found to clear", "user_id", userID, "thread_id", threadID)
		return false, nil
	}

	id := index[field]
	if err := s.rdb.Del(ctx, s.metaKey(id), s.messagesKey(id)).Err(); err != nil {
		return false, fmt.Errorf("clearing conversation: %w", err)
	}
	if err := s.rdb.HDel(ctx, s.indexKey(), field).Err(); err != nil {
		return false, fmt.Errorf("clearing conversation index: %w", err)
	}

	s.logger.Info("conversation cleared", "user_id", userID, "thread_id", threadID)
	return true, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	index, err := s.rdb.HGetAll(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("reading conversation index: %w", err)
	}

	keys := make([]string, 0, len(index)*2+1)
	for _, id := range index {
		keys = append(keys, s.metaKey(id), s.messagesKey(id))
	}
	keys = append(keys, s.indexKey())

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clearing conversations: %w", err)
	}
	s.logger.Info("conversation store cleared", "deleted", len(index))
	return nil
}

// List returns live conversations ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*conversation.Conversation, error) {
	index, err := s.rdb.HGetAll(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("reading conversation index: %w", err)
	}

	out := make([]*conversation.Conversation, 0, len(index))
	for _, id := range index {
		c, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Close() error {
	return s.closer()
}
