// Package export opens the sinks named by the configured export targets.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/columnar"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/geopackage"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/kafka"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/postgres"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/redis"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/config"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/pipeline"
)

// RedisPrefix namespaces the layer hashes written to Redis.
const RedisPrefix = "shoal-creek"

// Set is the group of sinks for one batch and the connections behind them.
type Set struct {
	sinks   []pipeline.Sink
	closers []func() error
}

// Sinks returns the opened sinks in target order.
func (s *Set) Sinks() []pipeline.Sink { return s.sinks }

// Close releases every connection, joining the errors.
func (s *Set) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open connects a sink for each target. On error every connection opened so
// far is closed.
func Open(ctx context.Context, cfg *config.Config, targets []string, logger *slog.Logger) (*Set, error) {
	s := &Set{}
	for _, target := range targets {
		if err := s.open(ctx, cfg, target, logger); err != nil {
			s.Close() //nolint:errcheck // the open error is more useful
			return nil, fmt.Errorf("open %s sink: %w", target, err)
		}
		logger.Info("export target enabled", "target", target)
	}
	return s, nil
}

func (s *Set) open(ctx context.Context, cfg *config.Config, target string, logger *slog.Logger) error {
	switch target {
	case config.TargetPostGIS:
		pool, err := postgres.Connect(ctx, cfg.ReadWriteURL())
		if err != nil {
			return err
		}
		s.add(postgres.NewSink(pool, logger), func() error { pool.Close(); return nil })
	case config.TargetGeoPackage:
		db, err := geopackage.Open(cfg.GeoPackagePath)
		if err != nil {
			return err
		}
		s.add(geopackage.NewSink(db, logger), db.Close)
	case config.TargetColumnar:
		s.add(columnar.NewSink(cfg.ColumnarDir, logger), nil)
	case config.TargetKafka:
		sink := kafka.NewSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		s.add(sink, sink.Close)
	case config.TargetRedis:
		client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		s.add(redis.NewSink(client, RedisPrefix, logger), client.Close)
	default:
		return fmt.Errorf("unknown export target %q", target)
	}
	return nil
}

func (s *Set) add(sink pipeline.Sink, closer func() error) {
	s.sinks = append(s.sinks, sink)
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
}

// compile-time checks that every adapter satisfies the pipeline contracts.
var (
	_ pipeline.Sink              = (*postgres.Sink)(nil)
	_ pipeline.Sink              = (*geopackage.Sink)(nil)
	_ pipeline.Sink              = (*columnar.Sink)(nil)
	_ pipeline.Sink              = (*kafka.Sink)(nil)
	_ pipeline.Sink              = (*redis.Sink)(nil)
	_ pipeline.RowSource         = (*postgres.Store)(nil)
	_ pipeline.RowSource         = (*geopackage.Store)(nil)
	_ pipeline.ObservationSource = (*postgres.Store)(nil)
)
