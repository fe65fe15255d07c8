package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tetraminz/persona_panel/internal/domain"
	"github.com/tetraminz/persona_panel/internal/prompt"
	"github.com/tetraminz/persona_panel/internal/queue"
	"github.com/tetraminz/persona_panel/internal/store"
)

// Coordinator — фасад пайплайна: создание run'ов, ретраи, статус, drain.
type Coordinator struct {
	store      *store.Store
	dispatcher *queue.Dispatcher
	logger     *zap.Logger
}

// NewCoordinator wires the evaluator into a dispatcher over the store.
func NewCoordinator(st *store.Store, evaluator *Evaluator, logger *zap.Logger, opts ...queue.Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]queue.Option{queue.WithDeadHandler(evaluator.HandleDead)}, opts...)
	return &Coordinator{
		store:      st,
		dispatcher: queue.NewDispatcher(st, evaluator.Handle, logger, opts...),
		logger:     logger,
	}
}

// CreateRun snapshots the project's personas×offers into a new run with
// one queued job per pair. The pair set is frozen here: personas or offers
// added later never join this run.
func (c *Coordinator) CreateRun(projectID string) (domain.Run, error) {
	run, err := c.store.CreateRunBatch(projectID, prompt.Version)
	if err != nil {
		return domain.Run{}, err
	}
	c.logger.Info("run created",
		zap.String("run_id", run.ID),
		zap.String("project_id", projectID),
		zap.Int("total_pairs", run.TotalPairs),
	)
	return run, nil
}

// RetryJudgment requeues one failed pair and moves the run back to RUNNING.
func (c *Coordinator) RetryJudgment(judgmentID string) error {
	if err := c.store.ResetJudgmentForRetry(judgmentID); err != nil {
		return err
	}
	c.logger.Info("judgment requeued", zap.String("judgment_id", judgmentID))
	return nil
}

// Status returns the run with its per-pair states.
func (c *Coordinator) Status(runID string) (store.RunStatusView, error) {
	return c.store.RunStatus(runID)
}

// ListRuns returns the project's runs, newest first.
func (c *Coordinator) ListRuns(projectID string) ([]domain.Run, error) {
	return c.store.ListRuns(projectID)
}

// Serve processes jobs until ctx is canceled.
func (c *Coordinator) Serve(ctx context.Context) error {
	return c.dispatcher.Run(ctx)
}

// Drain processes the run's jobs until none are queued or in flight, then
// returns the final run row. Backoff delays are waited out, so a drain of
// a run with flaky pairs takes as long as the retry schedule dictates.
func (c *Coordinator) Drain(ctx context.Context, runID string) (domain.Run, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Run{}, err
		}
		if err := c.dispatcher.RunOnce(ctx); err != nil {
			return domain.Run{}, fmt.Errorf("process jobs: %w", err)
		}
		pending, err := c.store.PendingJobCount(runID)
		if err != nil {
			return domain.Run{}, err
		}
		if pending == 0 {
			return c.store.GetRun(runID)
		}
		select {
		case <-ctx.Done():
			return domain.Run{}, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
