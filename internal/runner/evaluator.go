// Package runner ties the pipeline together: it builds prompts, calls the
// model, parses replies and records judgment outcomes through the store.
package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tetraminz/persona_panel/internal/domain"
	"github.com/tetraminz/persona_panel/internal/llm"
	"github.com/tetraminz/persona_panel/internal/parse"
	"github.com/tetraminz/persona_panel/internal/prompt"
	"github.com/tetraminz/persona_panel/internal/store"
)

const (
	// DefaultModel is used unless the caller overrides it.
	DefaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.7
	defaultMaxTokens   = 1200

	// contentRepairRetries is how many extra completions a worker buys for a
	// reply the parser rejects, on top of the first call.
	contentRepairRetries = 2

	repairHint = "Your previous reply was not valid. Return ONLY valid JSON matching the required schema. No prose, no markdown fences."
)

// Evaluator processes one judgment per job: prompt, complete, parse, persist.
type Evaluator struct {
	store     *store.Store
	completer llm.Completer
	logger    *zap.Logger
	model     string
}

// NewEvaluator builds an evaluator. A nil logger disables logging.
func NewEvaluator(st *store.Store, completer llm.Completer, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{store: st, completer: completer, logger: logger, model: DefaultModel}
}

// WithModel overrides the completion model.
func (e *Evaluator) WithModel(model string) *Evaluator {
	if model != "" {
		e.model = model
	}
	return e
}

// Handle is the queue handler. Model and parse failures are recorded
// business outcomes (the judgment fails, the run still resolves) and
// return nil; only storage errors bubble up for a job-level retry.
func (e *Evaluator) Handle(ctx context.Context, job store.Job) error {
	judgment, err := e.store.JudgmentForJob(job)
	if err != nil {
		return err
	}
	if judgment.Status != domain.JudgmentPending {
		// Resolved by an earlier attempt; nothing left to do.
		return nil
	}

	persona, err := e.store.GetPersona(judgment.PersonaID)
	if err != nil {
		return err
	}
	offer, err := e.store.GetOffer(judgment.OfferID)
	if err != nil {
		return err
	}

	eval, attempts, evalErr := e.evaluate(ctx, judgment.ID, persona, offer)
	if evalErr != nil {
		e.logger.Warn("evaluation failed",
			zap.String("judgment_id", judgment.ID),
			zap.String("persona", persona.Name),
			zap.String("offer", offer.Headline),
			zap.Int("attempts", attempts),
			zap.Error(evalErr),
		)
		if err := e.store.FailJudgment(judgment.ID); err != nil {
			return err
		}
		return e.finishIfResolved(judgment.RunID)
	}

	if err := e.store.CompleteJudgment(judgment.ID, *eval); err != nil {
		return err
	}
	e.logger.Info("judgment completed",
		zap.String("judgment_id", judgment.ID),
		zap.String("persona", persona.Name),
		zap.String("offer", offer.Headline),
		zap.String("decision", eval.Decision),
		zap.Int("attempts", attempts),
	)
	return e.finishIfResolved(judgment.RunID)
}

// HandleDead is the exhausted-job hook: a judgment whose job died of
// storage errors still has to resolve so the run can complete.
func (e *Evaluator) HandleDead(job store.Job, lastErr error) {
	judgment, err := e.store.GetJudgment(job.JudgmentID)
	if err != nil || judgment.Status != domain.JudgmentPending {
		return
	}
	e.logger.Error("judgment failed after job retries",
		zap.String("judgment_id", job.JudgmentID),
		zap.Error(lastErr),
	)
	if err := e.store.FailJudgment(job.JudgmentID); err != nil {
		e.logger.Error("fail judgment after dead job", zap.String("judgment_id", job.JudgmentID), zap.Error(err))
		return
	}
	if err := e.finishIfResolved(job.RunID); err != nil {
		e.logger.Error("finish run after dead job", zap.String("run_id", job.RunID), zap.Error(err))
	}
}

// evaluate runs the completion with a content-repair loop: a reply the
// parser rejects buys up to two more completions with a reinforcement
// line appended to the user prompt.
func (e *Evaluator) evaluate(ctx context.Context, judgmentID string, persona domain.Persona, offer domain.Offer) (*domain.Evaluation, int, error) {
	system := prompt.SystemPrompt(persona)
	user := prompt.EvaluationPrompt(offer, persona)

	attempts := 0
	for attempt := 0; attempt <= contentRepairRetries; attempt++ {
		attempts++
		req := llm.Request{
			System:      system,
			User:        user,
			Model:       e.model,
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
		}
		if attempt > 0 {
			req.User = user + "\n\n" + repairHint
			if err := e.store.BumpJudgmentRetryCount(judgmentID); err != nil {
				return nil, attempts, err
			}
		}

		raw, err := e.completer.Complete(ctx, req)
		if err != nil {
			return nil, attempts, err
		}
		if eval := parse.Evaluation(raw); eval != nil {
			return eval, attempts, nil
		}
		e.logger.Warn("model reply rejected by parser",
			zap.String("persona", persona.Name),
			zap.String("offer", offer.Headline),
			zap.Int("attempt", attempts),
		)
	}
	return nil, attempts, fmt.Errorf("no parseable reply after %d attempts", attempts)
}

func (e *Evaluator) finishIfResolved(runID string) error {
	finished, err := e.store.FinishRunIfResolved(runID)
	if err != nil {
		return err
	}
	if finished {
		e.logger.Info("run completed", zap.String("run_id", runID))
	}
	return nil
}
