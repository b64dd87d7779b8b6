package ai

import (
	"context"
	"time"

	"github.com/jade-labs/atomgraph/pkg/logger"
)

// UsageReporter is implemented by clients that accumulate ModelMetrics.
type UsageReporter interface {
	GetMetrics() ModelMetrics
	ResetMetrics()
}

// ReportUsage logs the usage r accumulated every interval and resets it,
// until ctx is done. Whatever is left is flushed on return.
func ReportUsage(ctx context.Context, r UsageReporter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushUsage(r)
			return
		case <-ticker.C:
			flushUsage(r)
		}
	}
}

func flushUsage(r UsageReporter) {
	m := r.GetMetrics()
	if m.Requests == 0 {
		return
	}
	r.ResetMetrics()
	logger.Info("[AI] Embedding usage",
		"requests", m.Requests,
		"input_tokens", m.InputTokens,
		"total_tokens", m.TotalTokens,
		"duration_ms", m.DurationMs,
		"tokens_per_second", m.TokenPerSecond,
	)
}
