package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tetraminz/persona_panel/internal/domain"
)

// RunStatusView is what `status` shows: the run row plus its per-pair states
// with human-readable persona/offer names.
type RunStatusView struct {
	Run   domain.Run
	Pairs []PairStatus
}

// PairStatus is one judgment row joined with names.
type PairStatus struct {
	JudgmentID  string
	PersonaName string
	OfferName   string
	Status      string
	RetryCount  int
	Decision    string
}

// CreateRunBatch creates the run, one pending judgment per persona×offer
// pair and one queued job per judgment, all in a single transaction.
// The run leaves the transaction already RUNNING: there is no separate
// dispatch step that could observe a half-built batch.
func (s *Store) CreateRunBatch(projectID, promptVersion string) (domain.Run, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return domain.Run{}, err
	}
	personas, err := s.ListPersonas(projectID)
	if err != nil {
		return domain.Run{}, err
	}
	offers, err := s.ListOffers(projectID)
	if err != nil {
		return domain.Run{}, err
	}
	if len(personas) == 0 {
		return domain.Run{}, domain.Validationf("project %s has no personas", projectID)
	}
	if len(offers) == 0 {
		return domain.Run{}, domain.Validationf("project %s has no offers", projectID)
	}

	run := domain.Run{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		Status:        domain.RunStatusRunning,
		PromptVersion: promptVersion,
		TotalPairs:    len(personas) * len(offers),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return domain.Run{}, fmt.Errorf("begin run batch tx: %w", err)
	}
	defer tx.Rollback()

	now := nowUTC()
	if _, err := tx.Exec(
		`INSERT INTO runs (id, project_id, status, prompt_version, total_pairs, completed_pairs, failed_pairs, created_at_utc)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?)`,
		run.ID, run.ProjectID, domain.RunStatusPending, run.PromptVersion, run.TotalPairs, now,
	); err != nil {
		return domain.Run{}, fmt.Errorf("insert run: %w", err)
	}

	for _, persona := range personas {
		for _, offer := range offers {
			judgmentID := uuid.NewString()
			if _, err := tx.Exec(
				`INSERT INTO judgments (id, run_id, persona_id, offer_id, status, retry_count, created_at_utc)
				VALUES (?, ?, ?, ?, ?, 0, ?)`,
				judgmentID, run.ID, persona.ID, offer.ID, domain.JudgmentPending, now,
			); err != nil {
				return domain.Run{}, fmt.Errorf("insert judgment: %w", err)
			}
			if _, err := tx.Exec(
				`INSERT INTO jobs (id, judgment_id, run_id, status, attempts, next_attempt_at_utc, created_at_utc, updated_at_utc)
				VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
				uuid.NewString(), judgmentID, run.ID, JobQueued, now, now, now,
			); err != nil {
				return domain.Run{}, fmt.Errorf("insert job: %w", err)
			}
		}
	}

	if _, err := tx.Exec(
		`UPDATE runs SET status = ? WHERE id = ? AND status = ?`,
		domain.RunStatusRunning, run.ID, domain.RunStatusPending,
	); err != nil {
		return domain.Run{}, fmt.Errorf("transition run to running: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Run{}, fmt.Errorf("commit run batch tx: %w", err)
	}
	return run, nil
}

// GetRun loads one run row.
func (s *Store) GetRun(runID string) (domain.Run, error) {
	var r domain.Run
	err := s.db.QueryRow(
		`SELECT id, project_id, status, prompt_version, total_pairs, completed_pairs, failed_pairs
		FROM runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.ProjectID, &r.Status, &r.PromptVersion, &r.TotalPairs, &r.CompletedPairs, &r.FailedPairs)
	if err == sql.ErrNoRows {
		return domain.Run{}, domain.NotFoundf("run %s", runID)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("select run: %w", err)
	}
	return r, nil
}

// ListRuns returns the project's runs, newest first.
func (s *Store) ListRuns(projectID string) ([]domain.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, status, prompt_version, total_pairs, completed_pairs, failed_pairs
		FROM runs WHERE project_id = ? ORDER BY rowid DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var r domain.Run
		if err := rows.Scan(
			&r.ID, &r.ProjectID, &r.Status, &r.PromptVersion,
			&r.TotalPairs, &r.CompletedPairs, &r.FailedPairs,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// GetJudgment loads one judgment row without evaluation fields.
func (s *Store) GetJudgment(judgmentID string) (domain.Judgment, error) {
	var j domain.Judgment
	err := s.db.QueryRow(
		`SELECT id, run_id, persona_id, offer_id, status, retry_count FROM judgments WHERE id = ?`,
		judgmentID,
	).Scan(&j.ID, &j.RunID, &j.PersonaID, &j.OfferID, &j.Status, &j.RetryCount)
	if err == sql.ErrNoRows {
		return domain.Judgment{}, domain.NotFoundf("judgment %s", judgmentID)
	}
	if err != nil {
		return domain.Judgment{}, fmt.Errorf("select judgment: %w", err)
	}
	return j, nil
}

// CompleteJudgment persists a parsed evaluation and bumps the run's
// completed counter. The conditional UPDATE makes resolution one-shot:
// a second worker landing on the same judgment changes nothing.
func (s *Store) CompleteJudgment(judgmentID string, eval domain.Evaluation) error {
	objections, err := json.Marshal(eval.Objections)
	if err != nil {
		return fmt.Errorf("marshal objections: %w", err)
	}
	alignment, err := json.Marshal(eval.ValueAlignment)
	if err != nil {
		return fmt.Errorf("marshal value alignment: %w", err)
	}
	var convince sql.NullString
	if eval.WhatWouldConvince != nil {
		convince = sql.NullString{String: *eval.WhatWouldConvince, Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE judgments SET
			status = ?,
			decision = ?,
			confidence = ?,
			perceived_value = ?,
			emotion = ?,
			emotion_intensity = ?,
			first_reaction = ?,
			reasoning = ?,
			objections_json = ?,
			what_would_convince = ?,
			value_alignment_json = ?,
			evaluated_at_utc = ?
		WHERE id = ? AND status = ?`,
		domain.JudgmentCompleted,
		eval.Decision, eval.Confidence, eval.PerceivedValue,
		eval.Emotion, eval.EmotionIntensity, eval.FirstReaction, eval.Reasoning,
		string(objections), convince, string(alignment),
		nowUTC(), judgmentID, domain.JudgmentPending,
	)
	if err != nil {
		return fmt.Errorf("complete judgment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete judgment result: %w", err)
	}
	if affected == 0 {
		// Already resolved, nothing to count.
		return tx.Commit()
	}

	if _, err := tx.Exec(
		`UPDATE runs SET completed_pairs = completed_pairs + 1
		WHERE id = (SELECT run_id FROM judgments WHERE id = ?)`,
		judgmentID,
	); err != nil {
		return fmt.Errorf("increment completed pairs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete tx: %w", err)
	}
	return nil
}

// FailJudgment marks a pending judgment failed after all retries are spent
// and bumps the run's failed counter. retry_count is cumulative: content
// repairs, the failure itself and manual retries all add to it.
func (s *Store) FailJudgment(judgmentID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin fail tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE judgments SET status = ?, retry_count = retry_count + 1, evaluated_at_utc = ?
		WHERE id = ? AND status = ?`,
		domain.JudgmentFailed, nowUTC(), judgmentID, domain.JudgmentPending,
	)
	if err != nil {
		return fmt.Errorf("fail judgment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail judgment result: %w", err)
	}
	if affected == 0 {
		return tx.Commit()
	}

	if _, err := tx.Exec(
		`UPDATE runs SET failed_pairs = failed_pairs + 1
		WHERE id = (SELECT run_id FROM judgments WHERE id = ?)`,
		judgmentID,
	); err != nil {
		return fmt.Errorf("increment failed pairs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fail tx: %w", err)
	}
	return nil
}

// BumpJudgmentRetryCount records one more attempt on a still-pending judgment.
func (s *Store) BumpJudgmentRetryCount(judgmentID string) error {
	if _, err := s.db.Exec(
		`UPDATE judgments SET retry_count = retry_count + 1 WHERE id = ?`,
		judgmentID,
	); err != nil {
		return fmt.Errorf("bump judgment retry count: %w", err)
	}
	return nil
}

// FinishRunIfResolved transitions a run to COMPLETED once every pair is
// resolved. All-failed runs complete too. Safe to call after every pair:
// the WHERE clause fires at most once.
func (s *Store) FinishRunIfResolved(runID string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?
		WHERE id = ? AND status = ? AND completed_pairs + failed_pairs >= total_pairs`,
		domain.RunStatusCompleted, runID, domain.RunStatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish run result: %w", err)
	}
	return affected > 0, nil
}

// ResetJudgmentForRetry moves one failed judgment back to pending, rewinds
// the run counters and queues a fresh job. Retrying a pair that did not
// fail is a caller error, not a no-op.
func (s *Store) ResetJudgmentForRetry(judgmentID string) error {
	judgment, err := s.GetJudgment(judgmentID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin retry tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE judgments SET
			status = ?,
			retry_count = retry_count + 1,
			decision = NULL,
			confidence = NULL,
			perceived_value = NULL,
			emotion = NULL,
			emotion_intensity = NULL,
			first_reaction = NULL,
			reasoning = NULL,
			objections_json = NULL,
			what_would_convince = NULL,
			value_alignment_json = NULL,
			evaluated_at_utc = NULL
		WHERE id = ? AND status = ?`,
		domain.JudgmentPending, judgmentID, domain.JudgmentFailed,
	)
	if err != nil {
		return fmt.Errorf("reset judgment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset judgment result: %w", err)
	}
	if affected == 0 {
		return domain.Validationf("judgment %s is %s, only failed judgments can be retried", judgmentID, judgment.Status)
	}

	now := nowUTC()
	if _, err := tx.Exec(
		`UPDATE runs SET failed_pairs = failed_pairs - 1, status = ? WHERE id = ?`,
		domain.RunStatusRunning, judgment.RunID,
	); err != nil {
		return fmt.Errorf("rewind run counters: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO jobs (id, judgment_id, run_id, status, attempts, next_attempt_at_utc, created_at_utc, updated_at_utc)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		uuid.NewString(), judgmentID, judgment.RunID, JobQueued, now, now, now,
	); err != nil {
		return fmt.Errorf("enqueue retry job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit retry tx: %w", err)
	}
	return nil
}

// RunStatus joins the run with its pairs and names for display.
func (s *Store) RunStatus(runID string) (RunStatusView, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return RunStatusView{}, err
	}

	rows, err := s.db.Query(
		`SELECT j.id, p.name, o.headline, j.status, j.retry_count, COALESCE(j.decision, '')
		FROM judgments j
		JOIN personas p ON p.id = j.persona_id
		JOIN offers o ON o.id = j.offer_id
		WHERE j.run_id = ?
		ORDER BY j.rowid`,
		runID,
	)
	if err != nil {
		return RunStatusView{}, fmt.Errorf("query run pairs: %w", err)
	}
	defer rows.Close()

	view := RunStatusView{Run: run}
	for rows.Next() {
		var pair PairStatus
		if err := rows.Scan(
			&pair.JudgmentID, &pair.PersonaName, &pair.OfferName,
			&pair.Status, &pair.RetryCount, &pair.Decision,
		); err != nil {
			return RunStatusView{}, fmt.Errorf("scan run pair: %w", err)
		}
		view.Pairs = append(view.Pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return RunStatusView{}, fmt.Errorf("iterate run pairs: %w", err)
	}
	return view, nil
}

// CompletedJudgments returns the run's completed judgments with full
// evaluations, in judgment creation order.
func (s *Store) CompletedJudgments(runID string) ([]domain.Judgment, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, persona_id, offer_id, status, retry_count,
			decision, confidence, perceived_value, emotion, emotion_intensity,
			first_reaction, reasoning, objections_json, what_would_convince, value_alignment_json
		FROM judgments
		WHERE run_id = ? AND status = ?
		ORDER BY rowid`,
		runID, domain.JudgmentCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("query completed judgments: %w", err)
	}
	defer rows.Close()

	var judgments []domain.Judgment
	for rows.Next() {
		var j domain.Judgment
		var eval domain.Evaluation
		var objections, alignment string
		var convince sql.NullString
		if err := rows.Scan(
			&j.ID, &j.RunID, &j.PersonaID, &j.OfferID, &j.Status, &j.RetryCount,
			&eval.Decision, &eval.Confidence, &eval.PerceivedValue,
			&eval.Emotion, &eval.EmotionIntensity, &eval.FirstReaction, &eval.Reasoning,
			&objections, &convince, &alignment,
		); err != nil {
			return nil, fmt.Errorf("scan completed judgment: %w", err)
		}
		if err := json.Unmarshal([]byte(objections), &eval.Objections); err != nil {
			return nil, fmt.Errorf("unmarshal objections: %w", err)
		}
		if strings.TrimSpace(alignment) != "" {
			if err := json.Unmarshal([]byte(alignment), &eval.ValueAlignment); err != nil {
				return nil, fmt.Errorf("unmarshal value alignment: %w", err)
			}
		}
		if eval.ValueAlignment == nil {
			eval.ValueAlignment = map[string]float64{}
		}
		if convince.Valid {
			eval.WhatWouldConvince = &convince.String
		}
		j.Evaluation = &eval
		judgments = append(judgments, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed judgments: %w", err)
	}
	return judgments, nil
}

// FailedJudgments returns the run's failed judgments with names for display.
func (s *Store) FailedJudgments(runID string) ([]PairStatus, error) {
	rows, err := s.db.Query(
		`SELECT j.id, p.name, o.headline, j.status, j.retry_count, COALESCE(j.decision, '')
		FROM judgments j
		JOIN personas p ON p.id = j.persona_id
		JOIN offers o ON o.id = j.offer_id
		WHERE j.run_id = ? AND j.status = ?
		ORDER BY j.rowid`,
		runID, domain.JudgmentFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("query failed judgments: %w", err)
	}
	defer rows.Close()

	var pairs []PairStatus
	for rows.Next() {
		var pair PairStatus
		if err := rows.Scan(
			&pair.JudgmentID, &pair.PersonaName, &pair.OfferName,
			&pair.Status, &pair.RetryCount, &pair.Decision,
		); err != nil {
			return nil, fmt.Errorf("scan failed judgment: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failed judgments: %w", err)
	}
	return pairs, nil
}
