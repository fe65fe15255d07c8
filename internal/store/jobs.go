package store

import (
	"fmt"
	"time"

	"github.com/tetraminz/persona_panel/internal/domain"
)

// Job queue states. A claimed job that never reports back stays "claimed";
// setup recreates the table, so stuck rows do not survive a reset.
const (
	JobQueued  = "queued"
	JobClaimed = "claimed"
	JobDone    = "done"
	JobDead    = "dead"
)

// Job is one durable unit of evaluation work.
type Job struct {
	ID         string
	JudgmentID string
	RunID      string
	Status     string
	Attempts   int
	LastError  string
}

// ClaimDueJobs atomically moves up to limit due queued jobs to claimed and
// returns them. Single-writer SQLite semantics make the two statements one
// critical section within the transaction.
func (s *Store) ClaimDueJobs(limit int, now time.Time) ([]Job, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	nowStr := now.UTC().Format(time.RFC3339)
	rows, err := tx.Query(
		`SELECT id, judgment_id, run_id, status, attempts, last_error
		FROM jobs
		WHERE status = ? AND next_attempt_at_utc <= ?
		ORDER BY next_attempt_at_utc, rowid
		LIMIT ?`,
		JobQueued, nowStr, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.JudgmentID, &j.RunID, &j.Status, &j.Attempts, &j.LastError); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan due job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate due jobs: %w", err)
	}
	rows.Close()

	for i := range jobs {
		if _, err := tx.Exec(
			`UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at_utc = ? WHERE id = ?`,
			JobClaimed, nowStr, jobs[i].ID,
		); err != nil {
			return nil, fmt.Errorf("claim job %s: %w", jobs[i].ID, err)
		}
		jobs[i].Status = JobClaimed
		jobs[i].Attempts++
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return jobs, nil
}

// MarkJobDone finalizes a successfully processed job.
func (s *Store) MarkJobDone(jobID string) error {
	if _, err := s.db.Exec(
		`UPDATE jobs SET status = ?, updated_at_utc = ? WHERE id = ?`,
		JobDone, nowUTC(), jobID,
	); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

// RescheduleJob requeues a failed job for a later attempt.
func (s *Store) RescheduleJob(jobID string, nextAttempt time.Time, lastError string) error {
	if _, err := s.db.Exec(
		`UPDATE jobs SET status = ?, next_attempt_at_utc = ?, last_error = ?, updated_at_utc = ? WHERE id = ?`,
		JobQueued, nextAttempt.UTC().Format(time.RFC3339), lastError, nowUTC(), jobID,
	); err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	return nil
}

// MarkJobDead retires a job whose attempt budget is exhausted.
func (s *Store) MarkJobDead(jobID, lastError string) error {
	if _, err := s.db.Exec(
		`UPDATE jobs SET status = ?, last_error = ?, updated_at_utc = ? WHERE id = ?`,
		JobDead, lastError, nowUTC(), jobID,
	); err != nil {
		return fmt.Errorf("mark job dead: %w", err)
	}
	return nil
}

// PendingJobCount reports queued and claimed jobs for a run. Zero for a
// RUNNING run with unresolved pairs means the queue lost work.
func (s *Store) PendingJobCount(runID string) (int, error) {
	var count int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM jobs WHERE run_id = ? AND status IN (?, ?)`,
		runID, JobQueued, JobClaimed,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return count, nil
}

// JudgmentForJob resolves the job's target judgment.
func (s *Store) JudgmentForJob(job Job) (domain.Judgment, error) {
	return s.GetJudgment(job.JudgmentID)
}
