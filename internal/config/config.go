package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Export targets accepted in EXPORT_TARGETS.
const (
	TargetPostGIS    = "postgis"
	TargetGeoPackage = "geopackage"
	TargetColumnar   = "columnar"
	TargetKafka      = "kafka"
	TargetRedis      = "redis"
)

var knownTargets = []string{TargetPostGIS, TargetGeoPackage, TargetColumnar, TargetKafka, TargetRedis}

// Config holds all batch settings, populated from environment variables.
type Config struct {
	StagingGPKGPath string
	GeoPackagePath  string
	ColumnarDir     string

	PostgresHost              string
	PostgresDatabase          string
	PostgresSSLMode           string
	PostgresReadOnlyUsername  string
	PostgresReadOnlyPassword  string
	PostgresReadWriteUsername string
	PostgresReadWritePassword string

	ExportTargets []string
	KafkaBrokers  []string
	KafkaTopic    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Analysis settings.
	WatershedName       string
	IntervalWidthDays   int
	BufferDistance      float64
	ConstructionDate    time.Time
	StudyStart          time.Time
	AggregateWorkers    int
	ProjectionCacheSize int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	RunTimeout      time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	runTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("RUN_TIMEOUT", "30m"))
	if err != nil || runTimeout <= 0 {
		return nil, errors.New("invalid RUN_TIMEOUT")
	}

	width, err := positiveInt("INTERVAL_WIDTH_DAYS", "120")
	if err != nil {
		return nil, err
	}
	workers, err := positiveInt("AGGREGATE_WORKERS", "4")
	if err != nil {
		return nil, err
	}
	cacheSize, err := positiveInt("PROJECTION_CACHE_SIZE", "1000")
	if err != nil {
		return nil, err
	}

	buffer, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("BUFFER_DISTANCE", "25"), 64)
	if err != nil || buffer < 0 {
		return nil, errors.New("invalid BUFFER_DISTANCE")
	}

	construction, err := parseDate("CONSTRUCTION_DATE", "2013-09-01")
	if err != nil {
		return nil, err
	}
	studyStart, err := parseDate("STUDY_START", "2000-01-01")
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	targets, err := ParseTargets(sharedcfg.EnvOrDefault("EXPORT_TARGETS", TargetPostGIS))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StagingGPKGPath: sharedcfg.EnvOrDefault("STAGING_GPKG_PATH", "data/staging.gpkg"),
		GeoPackagePath:  sharedcfg.EnvOrDefault("GEOPACKAGE_PATH", "data/shoal-creek-wq-bio-mitigation.gpkg"),
		ColumnarDir:     sharedcfg.EnvOrDefault("COLUMNAR_DIR", "data"),

		PostgresHost:              sharedcfg.EnvOrDefault("POSTGRES_HOST", "localhost:5432"),
		PostgresDatabase:          sharedcfg.EnvOrDefault("POSTGRES_DATABASE", "shoal_creek_wq_bio_mitigation"),
		PostgresSSLMode:           sharedcfg.EnvOrDefault("POSTGRES_SSLMODE", "require"),
		PostgresReadOnlyUsername:  sharedcfg.EnvOrDefault("POSTGRES_READONLY_USERNAME", ""),
		PostgresReadOnlyPassword:  sharedcfg.EnvOrDefault("POSTGRES_READONLY_PASSWORD", ""),
		PostgresReadWriteUsername: sharedcfg.EnvOrDefault("POSTGRES_READWRITE_USERNAME", ""),
		PostgresReadWritePassword: sharedcfg.EnvOrDefault("POSTGRES_READWRITE_PASSWORD", ""),

		ExportTargets: targets,
		KafkaBrokers:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_TOPIC", "watershed-series"),
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: sharedcfg.EnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		WatershedName:       sharedcfg.EnvOrDefault("WATERSHED_NAME", "Shoal Creek"),
		IntervalWidthDays:   width,
		BufferDistance:      buffer,
		ConstructionDate:    construction,
		StudyStart:          studyStart,
		AggregateWorkers:    workers,
		ProjectionCacheSize: cacheSize,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ""),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		RunTimeout:      runTimeout,
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.WatershedName == "" {
		return nil, errors.New("WATERSHED_NAME is required")
	}
	if cfg.HasTarget(TargetKafka) {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required for the kafka target")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required for the kafka target")
		}
	}
	if !cfg.StudyStart.Before(cfg.ConstructionDate) {
		return nil, errors.New("STUDY_START must precede CONSTRUCTION_DATE")
	}

	return cfg, nil
}

// ParseTargets splits a comma list of export targets and rejects unknown ones.
func ParseTargets(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		t := strings.ToLower(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		known := false
		for _, k := range knownTargets {
			if t == k {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("invalid EXPORT_TARGETS entry %q", t)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errors.New("EXPORT_TARGETS is required")
	}
	return out, nil
}

// HasTarget reports whether an export target is enabled.
func (c *Config) HasTarget(target string) bool {
	for _, t := range c.ExportTargets {
		if t == target {
			return true
		}
	}
	return false
}

// ReadOnlyURL is the connection string used to read staged layers.
func (c *Config) ReadOnlyURL() string {
	return c.postgresURL(c.PostgresReadOnlyUsername, c.PostgresReadOnlyPassword)
}

// ReadWriteURL is the connection string used by the PostGIS sink.
func (c *Config) ReadWriteURL() string {
	return c.postgresURL(c.PostgresReadWriteUsername, c.PostgresReadWritePassword)
}

func (c *Config) postgresURL(user, password string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     c.PostgresHost,
		Path:     "/" + c.PostgresDatabase,
		RawQuery: url.Values{"sslmode": {c.PostgresSSLMode}}.Encode(),
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u.String()
}

func positiveInt(key, fallback string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseDate(key, fallback string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, sharedcfg.EnvOrDefault(key, fallback))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s", key)
	}
	return t, nil
}
