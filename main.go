package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tetraminz/persona_panel/internal/insights"
	"github.com/tetraminz/persona_panel/internal/llm"
	"github.com/tetraminz/persona_panel/internal/report"
	"github.com/tetraminz/persona_panel/internal/runner"
	"github.com/tetraminz/persona_panel/internal/store"
)

const defaultSQLitePath = "out/persona_panel.db"

func main() {
	_ = godotenv.Load()
	if err := runCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runCLI() error {
	if len(os.Args) < 2 {
		printUsage()
		return nil
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "setup":
		return runSetupCmd(args)
	case "demo":
		return runDemoCmd(args)
	case "run":
		return runRunCmd(args)
	case "status":
		return runStatusCmd(args)
	case "retry":
		return runRetryCmd(args)
	case "report":
		return runReportCmd(args)
	case "insights":
		return runInsightsCmd(args)
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runSetupCmd(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	dbPath := fs.String("db", defaultSQLitePath, "Path to SQLite DB file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.Setup(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	fmt.Printf("db_ready=%s\n", *dbPath)
	return nil
}

func runDemoCmd(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	dbPath := fs.String("db", defaultSQLitePath, "Path to SQLite DB file")
	skipRun := fs.Bool("skip_run", false, "Seed the demo project without evaluating it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	project, err := SeedDemoProject(st)
	if err != nil {
		return err
	}
	fmt.Printf("demo_project=%s name=%q\n", project.ID, project.Name)
	if *skipRun {
		return nil
	}

	// Demo evaluations replay deterministic canned results, no API key needed.
	coord := newCoordinator(st, llm.Replay{}, logger)
	run, err := coord.CreateRun(project.ID)
	if err != nil {
		return err
	}
	run, err = coord.Drain(context.Background(), run.ID)
	if err != nil {
		return err
	}
	fmt.Printf("run=%s status=%s completed=%d failed=%d\n",
		run.ID, run.Status, run.CompletedPairs, run.FailedPairs)
	return nil
}

func runRunCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	dbPath := fs.String("db", defaultSQLitePath, "Path to SQLite DB file")
	projectID := fs.String("project", "", "Project ID to evaluate")
	model := fs.String("model", envOr("OPENAI_MODEL", runner.DefaultModel), "Completion model")
	replay := fs.Bool("replay", false, "Use deterministic replay instead of the live model")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*projectID) == "" {
		return fmt.Errorf("--project is required")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	completer, err := buildCompleter(*replay, logger)
	if err != nil {
		return err
	}
	coord := newCoordinatorWithModel(st, completer, logger, *model)

	run, err := coord.CreateRun(*projectID)
	if err != nil {
		return err
	}
	fmt.Printf("run=%s total_pairs=%d\n", run.ID, run.TotalPairs)

	run, err = coord.Drain(context.Background(), run.ID)
	if err != nil {
		return err
	}
	fmt.Printf("run=%s status=%s completed=%d failed=%d\n",
		run.ID, run.Status, run.CompletedPairs, run.FailedPairs)
	return nil
}

func runStatusCmd(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	dbPath := fs.String("db", defaultSQLitePath, "Path to SQLite DB file")
	runID := fs.String("run", "", "Run ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*runID) == "" {
		return fmt.Errorf("--run is required")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	view, err := st.RunStatus(*runID)
	if err != nil {
		return err
	}
	fmt.Printf("run=%s status=%s total=%d completed=%d failed=%d\n",
		view.Run.ID, view.Run.Status, view.Run.TotalPairs,
		view.Run.CompletedPairs, view.Run.FailedPairs)
	for _, pair := range view.Pairs {
		decision := pair.Decision
		if decision == "" {
			decision = "-"
		}
		fmt.Printf("  %s x %s: %s decision=%s retries=%d judgment=%s\n",
			pair.PersonaName, pair.OfferName, pair.Status, decision, pair.RetryCount, pair.JudgmentID)
	}
	return nil
}

func runRetryCmd(args []string) error {
	fs := flag.NewFlagSet("retry", flag.ContinueOnError)
	dbPath := fs.String("db", defaultSQLitePath, "Path to SQLite DB file")
	judgmentID := fs.String("judgment", "", "Failed judgment ID to requeue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*judgmentID) == "" {
		return fmt.Errorf("--judgment is required")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ResetJudgmentForRetry(*judgmentID); err != nil {
		return err
	}
	fmt.Printf("requeued=%s\n", *judgmentID)
	return nil
}

func runReportCmd(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dbPath := fs.String("db", defaultSQLitePath, "Path to SQLite DB file")
	runID := fs.String("run", "", "Run ID")
	outPath := fs.String("out", "", "Optional file to write the markdown to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*runID) == "" {
		return fmt.Errorf("--run is required")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	markdown, err := report.BuildRunMarkdown(st, *runID)
	if err != nil {
		return err
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(markdown), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("report_written=%s\n", *outPath)
		return nil
	}
	fmt.Print(markdown)
	return nil
}

func runInsightsCmd(args []string) error {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	dbPath := fs.String("db", defaultSQLitePath, "Path to SQLite DB file")
	runID := fs.String("run", "", "Run ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*runID) == "" {
		return fmt.Errorf("--run is required")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(*runID)
	if err != nil {
		return err
	}
	judgments, err := st.CompletedJudgments(*runID)
	if err != nil {
		return err
	}
	personas, err := st.ListPersonas(run.ProjectID)
	if err != nil {
		return err
	}
	offers, err := st.ListOffers(run.ProjectID)
	if err != nil {
		return err
	}

	found := insights.Derive(judgments, personas, offers)
	if len(found) == 0 {
		fmt.Println("no insights")
		return nil
	}
	for _, ins := range found {
		fmt.Printf("[%s/%s] %s: %s\n", ins.Type, ins.Severity, ins.Title, ins.Detail)
	}
	return nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newCoordinator(st *store.Store, completer llm.Completer, logger *zap.Logger) *runner.Coordinator {
	return newCoordinatorWithModel(st, completer, logger, runner.DefaultModel)
}

func newCoordinatorWithModel(st *store.Store, completer llm.Completer, logger *zap.Logger, model string) *runner.Coordinator {
	evaluator := runner.NewEvaluator(st, completer, logger).WithModel(model)
	return runner.NewCoordinator(st, evaluator, logger)
}

func buildCompleter(replay bool, logger *zap.Logger) (llm.Completer, error) {
	if replay {
		return llm.Replay{}, nil
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required (or pass --replay)")
	}
	return llm.NewClient(apiKey, os.Getenv("OPENAI_BASE_URL"), nil, logger), nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run . setup --db out/persona_panel.db")
	fmt.Println("  go run . demo --db out/persona_panel.db")
	fmt.Println("  go run . run --db out/persona_panel.db --project <project_id>")
	fmt.Println("  go run . status --db out/persona_panel.db --run <run_id>")
	fmt.Println("  go run . retry --db out/persona_panel.db --judgment <judgment_id>")
	fmt.Println("  go run . report --db out/persona_panel.db --run <run_id> [--out report.md]")
	fmt.Println("  go run . insights --db out/persona_panel.db --run <run_id>")
}
