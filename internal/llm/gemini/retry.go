package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/menu-catalog/internal/llm"
)

type attemptFunc func(ctx context.Context, attempt int) ([]llm.MenuItem, error)

// withRetry runs fn up to cfg.MaxAttempts times. Each attempt gets its own
// deadline. Cancellation of ctx stops the loop immediately, including during
// backoff.
func withRetry(ctx context.Context, cfg Config, log *slog.Logger, image string, fn attemptFunc) ([]llm.MenuItem, error) {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		items, err := fn(attemptCtx, attempt)
		cancel()
		if err == nil {
			return items, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err

		if attempt == cfg.MaxAttempts-1 {
			break
		}
		wait := Backoff(attempt, cfg.BackoffUnit)
		log.Warn("llm.extract.retry",
			"image", image,
			"attempt", attempt+1,
			"max_attempts", cfg.MaxAttempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	log.Error("llm.extract.exhausted", "image", image, "attempts", cfg.MaxAttempts, "error", lastErr)
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", llm.ErrExtractionFailed, image, cfg.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
