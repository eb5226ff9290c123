package optimizer

import (
	"context"

	"github.com/vk/flowopt/internal/config"
	"github.com/vk/flowopt/internal/ctxlog"
	"github.com/vk/flowopt/internal/prog"
)

// ReclassifySmallBuffers moves small, fully sized internal buffers to fast
// local storage: every transient, non-streaming buffer with default storage
// and scope-bound lifetime whose total element count is concrete and at most
// the tile-size threshold. A size that fails to evaluate leaves the buffer
// unchanged. Returns the number of buffers moved.
func ReclassifySmallBuffers(ctx context.Context, p *prog.Program, settings *config.Settings) int {
	logger := ctxlog.FromContext(ctx)
	if settings == nil {
		settings = config.Default()
	}

	converted := 0
	for _, sub := range prog.AllPrograms(p) {
		for _, arr := range sub.Arrays {
			if !arr.Transient || arr.Storage != prog.StorageDefault || arr.Lifetime != prog.LifetimeScope {
				continue
			}
			size, ok := arr.TotalSize().TryEvaluate(sub.Symbols)
			if !ok {
				// Symbolically sized; cannot prove it small.
				continue
			}
			if size <= settings.TileSizeThreshold {
				arr.Storage = prog.StorageFastLocal
				converted++
			}
		}
	}
	if converted > 0 {
		logger.Log(ctx, logLevel(settings), "Statically allocating small transient buffers.",
			"count", converted)
	}
	return converted
}
