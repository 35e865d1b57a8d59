package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store on Redis. Each owner/collection pair maps to a
// hash whose fields are document ids and whose values are the JSON-encoded
// documents. Batches execute inside MULTI/EXEC so the remote side applies
// them atomically.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, logger: logger, prefix: "daygraph"}, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// HealthCheck verifies the connection is alive.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(owner, collection string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, owner, collection)
}

// List returns all documents under owner/collection ordered by created_at.
func (s *RedisStore) List(ctx context.Context, owner, collection string) ([]Document, error) {
	raw, err := s.client.HVals(ctx, s.key(owner, collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]Document, 0, len(raw))
	for _, v := range raw {
		var doc Document
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			// A document that is not even valid JSON cannot be coerced;
			// skip it rather than failing the whole listing.
			s.logger.Warn("skipping_undecodable_document",
				zap.String("owner", owner),
				zap.String("collection", collection),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := docs[i]["created_at"].(string)
		b, _ := docs[j]["created_at"].(string)
		return a < b
	})
	return docs, nil
}

// Get returns a single document or ErrDocNotFound.
func (s *RedisStore) Get(ctx context.Context, owner, collection, id string) (Document, error) {
	raw, err := s.client.HGet(ctx, s.key(owner, collection), id).Result()
	if err == redis.Nil {
		return nil, ErrDocNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// Set creates or replaces a document.
func (s *RedisStore) Set(ctx context.Context, owner, collection, id string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(owner, collection), id, raw).Err(); err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

// Merge applies a partial update via read-modify-write. Concurrent writers
// to the same document are not serialized here; the stores above run in a
// single-writer model.
func (s *RedisStore) Merge(ctx context.Context, owner, collection, id string, fields Document) error {
	doc, err := s.Get(ctx, owner, collection, id)
	if err != nil {
		return err
	}
	MergeInto(doc, fields)
	return s.Set(ctx, owner, collection, id, doc)
}

// Delete removes a document.
func (s *RedisStore) Delete(ctx context.Context, owner, collection, id string) error {
	n, err := s.client.HDel(ctx, s.key(owner, collection), id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n == 0 {
		return ErrDocNotFound
	}
	return nil
}

// Batch applies all operations inside MULTI/EXEC. Merge operands are read
// up front; the buffered writes then commit as one unit.
func (s *RedisStore) Batch(ctx context.Context, owner string, ops []BatchOp) error {
	// Resolve merge targets before queueing any write.
	resolved := make([]Document, len(ops))
	for i, op := range ops {
		if op.Kind != BatchMerge {
			continue
		}
		doc, err := s.Get(ctx, owner, op.Collection, op.ID)
		if err != nil {
			return fmt.Errorf("batch merge target %s/%s: %w", op.Collection, op.ID, err)
		}
		MergeInto(doc, op.Doc)
		resolved[i] = doc
	}

	pipe := s.client.TxPipeline()
	for i, op := range ops {
		key := s.key(owner, op.Collection)
		switch op.Kind {
		case BatchSet:
			raw, err := json.Marshal(op.Doc)
			if err != nil {
				return fmt.Errorf("failed to encode batch document: %w", err)
			}
			pipe.HSet(ctx, key, op.ID, raw)
		case BatchMerge:
			raw, err := json.Marshal(resolved[i])
			if err != nil {
				return fmt.Errorf("failed to encode batch document: %w", err)
			}
			pipe.HSet(ctx, key, op.ID, raw)
		case BatchDelete:
			pipe.HDel(ctx, key, op.ID)
		default:
			return fmt.Errorf("unknown batch op kind %q", op.Kind)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
