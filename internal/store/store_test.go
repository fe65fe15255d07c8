package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetraminz/persona_panel/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Setup(filepath.Join(t.TempDir(), "panel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedProject(t *testing.T, st *Store) domain.Project {
	t.Helper()
	project, err := st.CreateProject(domain.ProjectInput{
		Name:  "Coffee shop",
		Niche: "Specialty coffee downtown",
	}, false)
	require.NoError(t, err)
	return project
}

func personaInput(name string) domain.PersonaInput {
	return domain.PersonaInput{
		Name: name, Description: "test persona", AgeGroup: "24-29",
		IncomeLevel: "medium", Occupation: "tester",
		PersonalityTraits: []string{"curious"},
		Values:            []string{"quality"},
		PainPoints:        []string{"no time"},
		Goals:             []string{"good coffee"},
		DecisionFactors:   []string{"price"},
	}
}

func offerInput(headline string) domain.OfferInput {
	return domain.OfferInput{Headline: headline, Body: "body", Price: "$5"}
}

func TestProjectPersonaOfferCRUD(t *testing.T) {
	st := newTestStore(t)
	project := seedProject(t, st)

	loaded, err := st.GetProject(project.ID)
	require.NoError(t, err)
	require.Equal(t, "Coffee shop", loaded.Name)

	persona, err := st.CreatePersona(project.ID, personaInput("Anna"))
	require.NoError(t, err)
	offer, err := st.CreateOffer(project.ID, offerInput("Half price"))
	require.NoError(t, err)

	personas, err := st.ListPersonas(project.ID)
	require.NoError(t, err)
	require.Len(t, personas, 1)
	require.Equal(t, persona.ID, personas[0].ID)
	require.Equal(t, []string{"quality"}, personas[0].Values)

	offers, err := st.ListOffers(project.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, offer.ID, offers[0].ID)

	require.NoError(t, st.DeletePersona(persona.ID))
	require.NoError(t, st.DeleteOffer(offer.ID))

	_, err = st.GetPersona(persona.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreatePersona_ValidationErrors(t *testing.T) {
	st := newTestStore(t)
	project := seedProject(t, st)

	bad := personaInput("Anna")
	bad.AgeGroup = "12-17"
	_, err := st.CreatePersona(project.ID, bad)
	require.ErrorIs(t, err, domain.ErrValidation)

	noValues := personaInput("Anna")
	noValues.Values = nil
	_, err = st.CreatePersona(project.ID, noValues)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = st.CreatePersona("missing-project", personaInput("Anna"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateRunBatch_BuildsPairsAndJobs(t *testing.T) {
	st := newTestStore(t)
	project := seedProject(t, st)
	for _, name := range []string{"Anna", "Boris"} {
		_, err := st.CreatePersona(project.ID, personaInput(name))
		require.NoError(t, err)
	}
	for _, headline := range []string{"A", "B", "C"} {
		_, err := st.CreateOffer(project.ID, offerInput(headline))
		require.NoError(t, err)
	}

	run, err := st.CreateRunBatch(project.ID, "eval-v2")
	require.NoError(t, err)
	require.Equal(t, 6, run.TotalPairs)
	require.Equal(t, domain.RunStatusRunning, run.Status)

	view, err := st.RunStatus(run.ID)
	require.NoError(t, err)
	require.Len(t, view.Pairs, 6)
	for _, pair := range view.Pairs {
		require.Equal(t, domain.JudgmentPending, pair.Status)
	}

	jobs, err := st.ClaimDueJobs(10, timeNowForTest())
	require.NoError(t, err)
	require.Len(t, jobs, 6)
}

func TestCreateRunBatch_RequiresPersonasAndOffers(t *testing.T) {
	st := newTestStore(t)
	project := seedProject(t, st)

	_, err := st.CreateRunBatch(project.ID, "eval-v2")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = st.CreatePersona(project.ID, personaInput("Anna"))
	require.NoError(t, err)
	_, err = st.CreateRunBatch(project.ID, "eval-v2")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = st.CreateRunBatch("missing", "eval-v2")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeletePersona_ConflictWhenReferenced(t *testing.T) {
	st := newTestStore(t)
	project := seedProject(t, st)
	persona, err := st.CreatePersona(project.ID, personaInput("Anna"))
	require.NoError(t, err)
	offer, err := st.CreateOffer(project.ID, offerInput("A"))
	require.NoError(t, err)

	_, err = st.CreateRunBatch(project.ID, "eval-v2")
	require.NoError(t, err)

	require.ErrorIs(t, st.DeletePersona(persona.ID), domain.ErrConflict)
	require.ErrorIs(t, st.DeleteOffer(offer.ID), domain.ErrConflict)
}

func sampleEvaluation() domain.Evaluation {
	return domain.Evaluation{
		Decision:         domain.DecisionMaybeYes,
		Confidence:       0.8,
		PerceivedValue:   7.0,
		Emotion:          "interested",
		EmotionIntensity: 0.5,
		FirstReaction:    "ok",
		Reasoning:        "fits",
		Objections:       []string{},
		ValueAlignment:   map[string]float64{"quality": 0.9},
	}
}

func TestCompleteJudgment_CountsOnceAndIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	project := seedProject(t, st)
	_, err := st.CreatePersona(project.ID, personaInput("Anna"))
	require.NoError(t, err)
	_, err = st.CreateOffer(project.ID, offerInput("A"))
	require.NoError(t, err)
	run, err := st.CreateRunBatch(project.ID, "eval-v2")
	require.NoError(t, err)

	view, err := st.RunStatus(run.ID)
	require.NoError(t, err)
	judgmentID := view.Pairs[0].JudgmentID

	require.NoError(t, st.CompleteJudgment(judgmentID, sampleEvaluation()))
	// Second resolution of the same judgment changes nothing.
	require.NoError(t, st.CompleteJudgment(judgmentID, sampleEvaluation()))
	require.NoError(t, st.FailJudgment(judgmentID))

	got, err := st.GetRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.CompletedPairs)
	require.Equal(t, 0, got.FailedPairs)

	completed, err := st.CompletedJudgments(run.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, domain.DecisionMaybeYes, completed[0].Evaluation.Decision)
	require.Equal(t, map[string]float64{"quality": 0.9}, completed[0].Evaluation.ValueAlignment)
	require.Nil(t, completed[0].Evaluation.WhatWouldConvince)

	finished, err := st.FinishRunIfResolved(run.ID)
	require.NoError(t, err)
	require.True(t, finished)

	// Already completed, a second finish is a no-op.
	finished, err = st.FinishRunIfResolved(run.ID)
	require.NoError(t, err)
	require.False(t, finished)
}

func TestFailJudgment_AllFailedRunStillCompletes(t *testing.T) {
	st := newTestStore(t)
	project := seedProject(t, st)
	_, err := st.CreatePersona(project.ID, personaInput("Anna"))
	require.NoError(t, err)
	_, err = st.CreateOffer(project.ID, offerInput("A"))
	require.NoError(t, err)
	run, err := st.CreateRunBatch(project.ID, "eval-v2")
	require.NoError(t, err)

	view, err := st.RunStatus(run.ID)
	require.NoError(t, err)
	require.NoError(t, st.FailJudgment(view.Pairs[0].JudgmentID))

	finished, err := st.FinishRunIfResolved(run.ID)
	require.NoError(t, err)
	require.True(t, finished)

	got, err := st.GetRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusCompleted, got.Status)
	require.Equal(t, 1, got.FailedPairs)
}

func TestResetJudgmentForRetry(t *testing.T) {
	st := newTestStore(t)
	project := seedProject(t, st)
	_, err := st.CreatePersona(project.ID, personaInput("Anna"))
	require.NoError(t, err)
	_, err = st.CreateOffer(project.ID, offerInput("A"))
	require.NoError(t, err)
	run, err := st.CreateRunBatch(project.ID, "eval-v2")
	require.NoError(t, err)

	view, err := st.RunStatus(run.ID)
	require.NoError(t, err)
	judgmentID := view.Pairs[0].JudgmentID

	// Drain the original job so the retry job is unambiguous.
	jobs, err := st.ClaimDueJobs(10, timeNowForTest())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, st.MarkJobDone(jobs[0].ID))

	err = st.ResetJudgmentForRetry(judgmentID)
	require.ErrorIs(t, err, domain.ErrValidation) // still pending, not failed

	require.NoError(t, st.FailJudgment(judgmentID))
	_, err = st.FinishRunIfResolved(run.ID)
	require.NoError(t, err)

	require.NoError(t, st.ResetJudgmentForRetry(judgmentID))

	got, err := st.GetRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusRunning, got.Status)
	require.Equal(t, 0, got.FailedPairs)

	judgment, err := st.GetJudgment(judgmentID)
	require.NoError(t, err)
	require.Equal(t, domain.JudgmentPending, judgment.Status)
	// One increment from failing, one from the manual retry.
	require.Equal(t, 2, judgment.RetryCount)

	jobs, err = st.ClaimDueJobs(10, timeNowForTest())
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.ErrorIs(t, st.ResetJudgmentForRetry("missing"), domain.ErrNotFound)
}

func TestOpen_RejectsIncompatibleSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")
	st, err := Setup(dbPath)
	require.NoError(t, err)

	_, err = st.db.Exec(`ALTER TABLE runs DROP COLUMN prompt_version`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Open(dbPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "prompt_version")
}
