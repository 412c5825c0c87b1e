package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/config"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// tags every line with the batch run id.
func NewLogger(cfg *config.Config, runID string) *slog.Logger {
	return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("run_id", runID)
}
