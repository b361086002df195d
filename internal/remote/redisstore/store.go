// Package redisstore implements the remote backend on Redis. Each collection
// keeps its documents as hashes, its order in a sorted set scored by the
// Redis server clock, and announces changes on a pub/sub channel.
package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatroom/internal/logging"
	"github.com/matheus3301/chatroom/internal/remote"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	fieldData      = "data"
	fieldCreatedAt = "created_at"
)

// Config configures the Redis backend.
type Config struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	TokenSecret string
	TokenTTL    time.Duration
}

// Store implements remote.Backend on Redis.
type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	tokens *tokenIssuer

	mu      sync.Mutex
	streams map[*stream]struct{}
	current *remote.Account
}

var _ remote.Backend = (*Store)(nil)

// New connects to Redis and pings it.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s, err := NewWithClient(client, cfg, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	// Unreachable is logged only; the client redials on demand.
	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn("redis unreachable, continuing offline", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	return s, nil
}

// NewWithClient wraps an existing client. The store owns the client.
func NewWithClient(client *redis.Client, cfg Config, logger *zap.Logger) (*Store, error) {
	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "chatroom"
	}

	return &Store{
		client:  client,
		prefix:  prefix,
		logger:  logging.OrNop(logger).Named("redisstore"),
		tokens:  &tokenIssuer{secret: secret, ttl: ttl, issuer: prefix},
		streams: make(map[*stream]struct{}),
	}, nil
}

// Close cancels live subscriptions and closes the client.
func (s *Store) Close() error {
	s.mu.Lock()
	streams := make([]*stream, 0, len(s.streams))
	for st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.Unlock()

	for _, st := range streams {
		st.Cancel()
	}
	return s.client.Close()
}

func (s *Store) docKey(collection, id string) string {
	return s.prefix + ":" + collection + ":doc:" + id
}

func (s *Store) orderKey(collection string) string {
	return s.prefix + ":" + collection + ":order"
}

func (s *Store) channel(collection string) string {
	return s.prefix + ":" + collection + ":changes"
}

// serverTime reads the Redis clock so every client orders by the same source.
func (s *Store) serverTime(ctx context.Context) (time.Time, error) {
	t, err := s.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("read server time: %w", err)
	}
	return t.UTC(), nil
}

// Append stores data under a fresh id stamped with the Redis clock.
func (s *Store) Append(ctx context.Context, collection string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	now, err := s.serverTime(ctx)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.put(ctx, collection, id, raw, now); err != nil {
		return "", err
	}
	return id, nil
}

// Set creates or overwrites document id, keeping its original timestamp.
func (s *Store) Set(ctx context.Context, collection, id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	created, err := s.client.HGet(ctx, s.docKey(collection, id), fieldCreatedAt).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		now, err := s.serverTime(ctx)
		if err != nil {
			return err
		}
		return s.put(ctx, collection, id, raw, now)
	case err != nil:
		return fmt.Errorf("read document %s: %w", id, err)
	}
	return s.put(ctx, collection, id, raw, time.UnixMicro(created).UTC())
}

// Create stores document id unless it already exists.
func (s *Store) Create(ctx context.Context, collection, id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	now, err := s.serverTime(ctx)
	if err != nil {
		return err
	}
	claimed, err := s.client.HSetNX(ctx, s.docKey(collection, id), fieldCreatedAt, now.UnixMicro()).Result()
	if err != nil {
		return fmt.Errorf("claim document %s: %w", id, err)
	}
	if !claimed {
		return remote.ErrAlreadyExists
	}
	return s.put(ctx, collection, id, raw, now)
}

func (s *Store) put(ctx context.Context, collection, id string, raw []byte, created time.Time) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docKey(collection, id), fieldData, raw, fieldCreatedAt, created.UnixMicro())
		pipe.ZAdd(ctx, s.orderKey(collection), redis.Z{Score: float64(created.UnixMicro()), Member: id})
		pipe.Publish(ctx, s.channel(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write document %s: %w", id, err)
	}
	return nil
}

// Get returns document id, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, collection, id string) (*remote.Document, error) {
	fields, err := s.client.HGetAll(ctx, s.docKey(collection, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	if _, ok := fields[fieldData]; !ok {
		return nil, nil
	}
	doc := decodeDocument(id, fields[fieldData], fields[fieldCreatedAt])
	return &doc, nil
}

// Delete removes document id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(collection, id))
		pipe.ZRem(ctx, s.orderKey(collection), id)
		pipe.Publish(ctx, s.channel(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// snapshot reads the full ordered result set of q.
func (s *Store) snapshot(ctx context.Context, q remote.Query) (*remote.Snapshot, error) {
	start := int64(0)
	if q.Limit > 0 {
		start = -int64(q.Limit)
	}
	ids, err := s.client.ZRange(ctx, s.orderKey(q.Collection), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read order: %w", err)
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, s.docKey(q.Collection, id), fieldData, fieldCreatedAt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	docs := make([]remote.Document, 0, len(ids))
	for i, cmd := range cmds {
		vals := cmd.Val()
		data, ok := vals[0].(string)
		if !ok {
			continue // deleted between the two reads
		}
		created, _ := vals[1].(string)
		docs = append(docs, decodeDocument(ids[i], data, created))
	}

	readAt, err := s.serverTime(ctx)
	if err != nil {
		return nil, err
	}
	return &remote.Snapshot{Documents: docs, ReadAt: readAt}, nil
}

func decodeDocument(id, data, created string) remote.Document {
	doc := remote.Document{ID: id, Data: json.RawMessage(data)}
	if us, err := strconv.ParseInt(created, 10, 64); err == nil {
		t := time.UnixMicro(us).UTC()
		doc.CreatedAt = &t
	}
	return doc
}
