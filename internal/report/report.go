// Package report renders a finished run as markdown: totals, the
// decision matrix, derived insights and the failed-pair backlog.
package report

import (
	"fmt"
	"strings"

	"github.com/tetraminz/persona_panel/internal/domain"
	"github.com/tetraminz/persona_panel/internal/insights"
	"github.com/tetraminz/persona_panel/internal/store"
)

// RunReport собирает все данные отчета по одному run'у.
type RunReport struct {
	Run       domain.Run
	Project   domain.Project
	Personas  []domain.Persona
	Offers    []domain.Offer
	Judgments []domain.Judgment
	Failed    []store.PairStatus
	Insights  []insights.Insight
}

// BuildRunReport loads everything the markdown needs in one pass.
// It works on runs in any state: an unfinished run simply reports the
// judgments completed so far.
func BuildRunReport(st *store.Store, runID string) (RunReport, error) {
	run, err := st.GetRun(runID)
	if err != nil {
		return RunReport{}, err
	}
	project, err := st.GetProject(run.ProjectID)
	if err != nil {
		return RunReport{}, err
	}
	personas, err := st.ListPersonas(run.ProjectID)
	if err != nil {
		return RunReport{}, err
	}
	offers, err := st.ListOffers(run.ProjectID)
	if err != nil {
		return RunReport{}, err
	}
	judgments, err := st.CompletedJudgments(runID)
	if err != nil {
		return RunReport{}, err
	}
	failed, err := st.FailedJudgments(runID)
	if err != nil {
		return RunReport{}, err
	}

	return RunReport{
		Run:       run,
		Project:   project,
		Personas:  personas,
		Offers:    offers,
		Judgments: judgments,
		Failed:    failed,
		Insights:  insights.Derive(judgments, personas, offers),
	}, nil
}

// BuildRunMarkdown renders the run report.
func BuildRunMarkdown(st *store.Store, runID string) (string, error) {
	report, err := BuildRunReport(st, runID)
	if err != nil {
		return "", err
	}
	return report.Markdown(), nil
}

// Markdown renders the already-loaded report.
func (r RunReport) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Run Report: %s\n\n", r.Project.Name))
	b.WriteString("## Totals\n")
	b.WriteString(fmt.Sprintf("- run_id: `%s`\n", r.Run.ID))
	b.WriteString(fmt.Sprintf("- status: `%s`\n", r.Run.Status))
	b.WriteString(fmt.Sprintf("- prompt_version: `%s`\n", r.Run.PromptVersion))
	b.WriteString(fmt.Sprintf("- total_pairs: `%d`\n", r.Run.TotalPairs))
	b.WriteString(fmt.Sprintf("- completed_pairs: `%d`\n", r.Run.CompletedPairs))
	b.WriteString(fmt.Sprintf("- failed_pairs: `%d`\n\n", r.Run.FailedPairs))

	b.WriteString("## Decision Matrix\n")
	r.writeMatrix(&b)

	b.WriteString("## Insights\n")
	if len(r.Insights) == 0 {
		b.WriteString("- none\n\n")
	} else {
		for _, ins := range r.Insights {
			b.WriteString(fmt.Sprintf("- [%s/%s] %s: %s\n", ins.Type, ins.Severity, ins.Title, ins.Detail))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Failed Pairs\n")
	if len(r.Failed) == 0 {
		b.WriteString("- none\n")
	} else {
		b.WriteString("| persona | offer | retries | judgment_id |\n")
		b.WriteString("| --- | --- | ---: | --- |\n")
		for _, pair := range r.Failed {
			b.WriteString(fmt.Sprintf("| %s | %s | `%d` | `%s` |\n",
				pair.PersonaName, pair.OfferName, pair.RetryCount, pair.JudgmentID))
		}
	}
	return b.String()
}

// writeMatrix prints one row per persona, one column per offer, each cell
// the decision plus perceived value for that pair.
func (r RunReport) writeMatrix(b *strings.Builder) {
	if len(r.Judgments) == 0 {
		b.WriteString("- no completed judgments\n\n")
		return
	}

	type cellKey struct{ personaID, offerID string }
	cells := map[cellKey]*domain.Evaluation{}
	for _, j := range r.Judgments {
		cells[cellKey{j.PersonaID, j.OfferID}] = j.Evaluation
	}

	b.WriteString("| persona |")
	for _, o := range r.Offers {
		b.WriteString(fmt.Sprintf(" %s |", o.Headline))
	}
	b.WriteString("\n| --- |")
	for range r.Offers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, p := range r.Personas {
		b.WriteString(fmt.Sprintf("| %s |", p.Name))
		for _, o := range r.Offers {
			if eval, ok := cells[cellKey{p.ID, o.ID}]; ok {
				b.WriteString(fmt.Sprintf(" `%s` (%.1f) |", eval.Decision, eval.PerceivedValue))
			} else {
				b.WriteString(" n/a |")
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
