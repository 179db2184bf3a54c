package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// HNSW build parameters. Defaults follow the RediSearch recommendations for
// corpora in the tens of thousands of vectors.
const (
	defaultEFConstruction = 200
	defaultM              = 16
)

// Hash field names for stored records.
const (
	fieldContent   = "content"
	fieldEmbedding = "embedding"
	fieldNamespace = "namespace"
	fieldMetadata  = "metadata"
	scoreAlias     = "score"
)

// RedisConfig holds connection and index-build settings for the Redis backend.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IndexName      string
	Dimension      int
	EFConstruction int
	M              int
}

// Redis is a RediSearch-backed Index using an HNSW vector field. All
// namespaces share one RediSearch index; records carry a namespace TAG that
// queries filter on.
//
// Redis is safe for concurrent use.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
	logger *slog.Logger

	mu           sync.Mutex
	indexCreated bool
}

// NewRedis connects to Redis and ensures the vector index exists.
func NewRedis(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*Redis, error) {
	if cfg.Dimension < 1 {
		return nil, fmt.Errorf("dimension must be >= 1, got %d", cfg.Dimension)
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "lumen-knowledge"
	}
	if cfg.EFConstruction == 0 {
		cfg.EFConstruction = defaultEFConstruction
	}
	if cfg.M == 0 {
		cfg.M = defaultM
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: connecting to redis: %w", ErrUnavailable, err)
	}

	r := &Redis{client: client, cfg: cfg, logger: logger}
	if err := r.ensureIndex(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// ensureIndex creates the HNSW index if it does not exist yet.
func (r *Redis) ensureIndex(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexCreated {
		return nil
	}
	if _, err := r.client.Do(ctx, "FT.INFO", r.cfg.IndexName).Result(); err == nil {
		r.indexCreated = true
		return nil
	}

	_, err := r.client.Do(ctx, "FT.CREATE", r.cfg.IndexName,
		"ON", "HASH",
		"PREFIX", "1", r.keyPrefix(),
		"SCHEMA",
		fieldEmbedding, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(r.cfg.Dimension),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(r.cfg.EFConstruction),
		"M", strconv.Itoa(r.cfg.M),
		fieldNamespace, "TAG",
		fieldContent, "TEXT",
	).Result()
	if err != nil {
		return fmt.Errorf("%w: creating index: %w", ErrUnavailable, err)
	}

	r.indexCreated = true
	r.logger.Debug("created redis vector index", "index", r.cfg.IndexName, "dimension", r.cfg.Dimension)
	return nil
}

func (r *Redis) keyPrefix() string {
	return r.cfg.IndexName + ":"
}

func (r *Redis) key(namespace, id string) string {
	return r.keyPrefix() + namespace + ":" + id
}

// Upsert stores or replaces a record.
func (r *Redis) Upsert(ctx context.Context, namespace string, rec Record) error {
	if len(rec.Vector) == 0 {
		return ErrEmptyVector
	}
	if len(rec.Vector) != r.cfg.Dimension {
		return fmt.Errorf("%w: index holds %d-dimensional vectors, got %d",
			ErrDimensionMismatch, r.cfg.Dimension, len(rec.Vector))
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	err = r.client.HSet(ctx, r.key(namespace, rec.ID),
		fieldEmbedding, encodeVector(rec.Vector),
		fieldNamespace, escapeTag(namespace),
		fieldContent, rec.Content,
		fieldMetadata, metadataJSON,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: upserting record %q: %w", ErrUnavailable, rec.ID, err)
	}
	return nil
}

// Query returns up to k matches by descending cosine similarity.
func (r *Redis) Query(ctx context.Context, namespace string, vec []float32, k int) ([]Match, error) {
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}
	if len(vec) != r.cfg.Dimension {
		return nil, fmt.Errorf("%w: index holds %d-dimensional vectors, got %d",
			ErrDimensionMismatch, r.cfg.Dimension, len(vec))
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}

	// FT.SEARCH <index> "(@namespace:{ns})=>[KNN k @embedding $vec AS score]"
	queryStr := fmt.Sprintf("(@%s:{%s})=>[KNN %d @%s $vec AS %s]",
		fieldNamespace, escapeTag(namespace), k, fieldEmbedding, scoreAlias)

	raw, err := r.client.Do(ctx, "FT.SEARCH", r.cfg.IndexName, queryStr,
		"PARAMS", "2", "vec", encodeVector(vec),
		"RETURN", "3", fieldContent, fieldMetadata, scoreAlias,
		"SORTBY", scoreAlias,
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %w", ErrUnavailable, err)
	}

	return r.parseMatches(raw)
}

// Delete removes a record. Deleting an unknown id is a no-op.
func (r *Redis) Delete(ctx context.Context, namespace string, id string) error {
	if err := r.client.Del(ctx, r.key(namespace, id)).Err(); err != nil {
		return fmt.Errorf("%w: deleting record %q: %w", ErrUnavailable, id, err)
	}
	return nil
}

// parseMatches decodes an FT.SEARCH RESP2 reply: total count followed by
// alternating key and field-value arrays.
func (r *Redis) parseMatches(raw any) ([]Match, error) {
	values, ok := raw.([]any)
	if !ok || len(values) == 0 {
		return nil, fmt.Errorf("unexpected FT.SEARCH reply format")
	}

	var matches []Match
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		fields, ok := values[i+1].([]any)
		if !ok {
			continue
		}

		m := Match{ID: recordIDFromKey(key)}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			val, _ := fields[j+1].(string)
			switch name {
			case fieldContent:
				m.Content = val
			case fieldMetadata:
				if err := json.Unmarshal([]byte(val), &m.Metadata); err != nil {
					r.logger.Warn("failed to parse record metadata", "key", key, "error", err)
				}
			case scoreAlias:
				// RediSearch reports cosine distance; similarity = 1 - distance.
				if dist, err := strconv.ParseFloat(val, 32); err == nil {
					m.Score = 1 - float32(dist)
				}
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// recordIDFromKey strips "<index>:<namespace>:" from a hash key.
func recordIDFromKey(key string) string {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// encodeVector packs float32s little-endian, the layout RediSearch expects
// for FLOAT32 vector fields.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// escapeTag escapes RediSearch TAG separators.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, " ", "\\ ")
	return s
}
