//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/paulmach/orb"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/kafka"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/observability"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/pipeline"
)

const testTopic = "watershed-series-test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("shoal-creek"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")
	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestKafkaSinkPublishesLayer exports a small spatial layer through the
// pipeline and reads every row back from the topic.
func TestKafkaSinkPublishesLayer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	sink := kafka.NewSink([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = sink.Close() })

	tbl := domain.NewSpatialTable(domain.UTM14N,
		domain.Column{Name: "ckey", Kind: domain.KindText},
		domain.Column{Name: "sample_location_id", Kind: domain.KindText},
		domain.Column{Name: "parameter", Kind: domain.KindText},
		domain.Column{Name: "value", Kind: domain.KindReal},
	)
	for i := range 3 {
		tbl.Append(orb.Point{620000 + float64(i), 3350000}, fmt.Sprintf("k%d", i), "USGS-08156800", "ph", 7.0+float64(i)/10)
	}

	p := pipeline.New(discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, p.Export(ctx, "water_quality", tbl, sink))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	seen := make(map[string]map[string]any)
	for len(seen) < 3 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, "water_quality", headers["layer"])
		assert.NotEmpty(t, headers["exported_at"])

		var rec map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		seen[string(msg.Key)] = rec
	}

	rec, ok := seen["water_quality/k1"]
	require.True(t, ok, "keys: %v", seen)
	assert.Equal(t, "USGS-08156800", rec["sample_location_id"])
	assert.InDelta(t, 7.1, rec["value"], 1e-9)
	assert.Equal(t, "POINT(620001 3350000)", rec["geometry"])
	assert.InDelta(t, 26914, rec["srid"], 0)
}
