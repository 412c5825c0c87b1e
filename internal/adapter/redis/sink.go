// Package redis stores exported layers as Redis hashes, one field per row.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/pipeline"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// Sink replaces a layer hash inside a MULTI/EXEC transaction so readers
// never observe a partially written layer. It implements pipeline.Sink.
type Sink struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewSink wraps a connected client. Keys are written under prefix.
func NewSink(client *redis.Client, prefix string, logger *slog.Logger) *Sink {
	return &Sink{client: client, prefix: prefix, logger: logger}
}

// NewClient opens a client and checks connectivity.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return c, nil
}

func (s *Sink) Name() string { return "redis" }

// LayerKey is the hash holding the rows of layer.
func (s *Sink) LayerKey(layer string) string {
	return s.prefix + ":" + layer
}

func (s *Sink) metaKey(layer string) string {
	return s.LayerKey(layer) + ":meta"
}

func (s *Sink) Write(ctx context.Context, layer string, t *domain.Table) error {
	fields, err := layerFields(t)
	if err != nil {
		return fmt.Errorf("encode %s: %w", layer, err)
	}
	meta, err := layerMeta(t)
	if err != nil {
		return fmt.Errorf("encode %s metadata: %w", layer, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.LayerKey(layer), s.metaKey(layer))
		if len(fields) > 0 {
			pipe.HSet(ctx, s.LayerKey(layer), fields)
		}
		pipe.HSet(ctx, s.metaKey(layer), meta)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s hash: %w", layer, err)
	}
	s.logger.Debug("layer stored", "layer", layer, "key", s.LayerKey(layer), "rows", len(fields))
	return nil
}

// layerFields encodes every row as JSON keyed by its row key. Rows sharing
// a key collapse to the last one, matching the upsert semantics of a hash.
func layerFields(t *domain.Table) (map[string]any, error) {
	fields := make(map[string]any, t.Len())
	for i := range t.Rows {
		data, err := json.Marshal(spatial.Record(t, i))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		fields[t.Key(i, pipeline.ExportedAtColumn)] = string(data)
	}
	return fields, nil
}

func layerMeta(t *domain.Table) (map[string]any, error) {
	cols := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		cols[c.Name] = c.Kind.String()
	}
	data, err := json.Marshal(cols)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"columns": string(data),
		"rows":    t.Len(),
		"srid":    t.CRS.SRID(),
	}, nil
}
