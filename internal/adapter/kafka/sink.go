package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/pipeline"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// batchSize caps the messages handed to one WriteMessages call.
const batchSize = 500

// messageWriter is the subset of *kafkago.Writer used by Sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink publishes every row of a layer as a keyed JSON message. On a
// compacted topic the latest message per key is the current row.
// It implements pipeline.Sink.
type Sink struct {
	writer messageWriter
	logger *slog.Logger
}

// NewSink creates a Kafka producer for the given topic.
func NewSink(brokers []string, topic string, logger *slog.Logger) *Sink {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Sink{writer: w, logger: logger}
}

func (s *Sink) Name() string { return "kafka" }

// Write serializes and publishes the rows of a layer in batches.
func (s *Sink) Write(ctx context.Context, layer string, t *domain.Table) error {
	if t.Len() == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, min(t.Len(), batchSize))
	for i := range t.Rows {
		msg, err := serializeRow(layer, t, i)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		if len(msgs) == batchSize {
			if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
				return fmt.Errorf("publish %s: %w", layer, err)
			}
			msgs = msgs[:0]
		}
	}
	if len(msgs) > 0 {
		if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish %s: %w", layer, err)
		}
	}
	s.logger.Debug("layer published", "layer", layer, "rows", t.Len())
	return nil
}

func (s *Sink) Close() error {
	return s.writer.Close()
}

// serializeRow marshals one row into a Kafka message keyed by layer and row
// key. Geometries travel as WKT alongside their SRID.
func serializeRow(layer string, t *domain.Table, i int) (kafkago.Message, error) {
	rec := spatial.Record(t, i)
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s row %d: %w", layer, i, err)
	}
	headers := []kafkago.Header{{Key: "layer", Value: []byte(layer)}}
	if at, ok := rec[pipeline.ExportedAtColumn].(time.Time); ok {
		headers = append(headers, kafkago.Header{Key: "exported_at", Value: []byte(at.Format(time.RFC3339))})
	}
	return kafkago.Message{
		Key:     []byte(layer + "/" + t.Key(i, pipeline.ExportedAtColumn)),
		Value:   data,
		Headers: headers,
	}, nil
}
