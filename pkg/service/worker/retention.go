package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/oppuna-lab/oppuna/pkg/domain/interfaces"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

// RetentionWorker manages background deletion of chat transcript rows older
// than the retention window.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type RetentionWorker struct {
	chatlog   interfaces.ChatLogRepository
	retention time.Duration
	interval  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewRetentionWorker creates a worker that prunes transcript rows older
// than retention, checking every interval.
func NewRetentionWorker(chatlog interfaces.ChatLogRepository, retention, interval time.Duration) *RetentionWorker {
	return &RetentionWorker{
		chatlog:   chatlog,
		retention: retention,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background prune loop
// - Initial prune and periodic prunes both run in a background goroutine
// - Does not block server startup
func (w *RetentionWorker) Start(ctx context.Context) error {
	logging.Default().Info("Chat log retention worker starting",
		"retention", w.retention.String(),
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *RetentionWorker) Stop() {
	logging.Default().Info("Chat log retention worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Chat log retention worker stopped")
}

func (w *RetentionWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.prune(ctx); err != nil {
		logging.Default().Error("Initial chat log prune failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.prune(ctx); err != nil {
				// Log error but continue worker
				logging.Default().Error("Chat log prune failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("Chat log retention worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Chat log retention worker context cancelled")
			return
		}
	}
}

// prune performs a single retention cycle.
func (w *RetentionWorker) prune(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-w.retention)

	removed, err := w.chatlog.PruneBefore(ctx, cutoff)
	if err != nil {
		return goerr.Wrap(err, "failed to prune chat logs", goerr.V("cutoff", cutoff))
	}

	if removed > 0 {
		logging.Default().Info("Chat log prune completed",
			"removed", removed,
			"cutoff", cutoff.Format(time.RFC3339))
	}

	return nil
}
