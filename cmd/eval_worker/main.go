package main

/*
eval_worker is the long-running evaluation worker: it polls the jobs table
and processes persona×offer evaluations until interrupted.

Usage:
  OPENAI_API_KEY=... go run ./cmd/eval_worker \
    --db out/persona_panel.db \
    --model gpt-4o-mini \
    --workers 5

Flags:
  --db       Path to the SQLite DB file (created by `go run . setup`).
  --model    Completion model (default: gpt-4o-mini, or OPENAI_MODEL).
  --workers  Worker pool size (default: 5).
  --replay   Use deterministic replay output instead of the live model.
*/

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tetraminz/persona_panel/internal/llm"
	"github.com/tetraminz/persona_panel/internal/queue"
	"github.com/tetraminz/persona_panel/internal/runner"
	"github.com/tetraminz/persona_panel/internal/store"
)

func main() {
	_ = godotenv.Load()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dbPath := flag.String("db", "out/persona_panel.db", "path to SQLite DB file")
	model := flag.String("model", defaultModel(), "completion model")
	workers := flag.Int("workers", queue.DefaultWorkers, "worker pool size")
	replay := flag.Bool("replay", false, "use deterministic replay output")
	flag.Parse()

	if *workers <= 0 {
		return errors.New("--workers must be > 0")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	var completer llm.Completer
	if *replay {
		completer = llm.Replay{}
	} else {
		apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			return errors.New("OPENAI_API_KEY is required (or pass --replay)")
		}
		completer = llm.NewClient(apiKey, os.Getenv("OPENAI_BASE_URL"), nil, logger)
	}

	evaluator := runner.NewEvaluator(st, completer, logger).WithModel(*model)
	coord := runner.NewCoordinator(st, evaluator, logger, queue.WithWorkers(*workers))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("eval worker started",
		zap.String("db", *dbPath),
		zap.String("model", *model),
		zap.Int("workers", *workers),
		zap.Bool("replay", *replay),
	)
	if err := coord.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("eval worker stopped")
	return nil
}

func defaultModel() string {
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		return v
	}
	return runner.DefaultModel
}
