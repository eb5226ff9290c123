package optimizer

import (
	"log/slog"

	"github.com/vk/flowopt/internal/config"
)

// logLevel picks the level for pass progress reporting: info when verbose
// progress is configured, debug otherwise.
func logLevel(settings *config.Settings) slog.Level {
	if settings != nil && settings.VerboseProgress {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
