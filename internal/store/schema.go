package store

const createProjectsTableSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	niche TEXT NOT NULL,
	is_demo INTEGER NOT NULL DEFAULT 0,
	created_at_utc TEXT NOT NULL
)`

const createPersonasTableSQL = `
CREATE TABLE IF NOT EXISTS personas (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	age_group TEXT NOT NULL,
	income_level TEXT NOT NULL,
	occupation TEXT NOT NULL,
	traits_json TEXT NOT NULL,
	values_json TEXT NOT NULL,
	pain_points_json TEXT NOT NULL,
	goals_json TEXT NOT NULL,
	decision_factors_json TEXT NOT NULL,
	triggers_positive TEXT NOT NULL,
	triggers_negative TEXT NOT NULL,
	background_story TEXT NOT NULL,
	created_at_utc TEXT NOT NULL
)`

const createOffersTableSQL = `
CREATE TABLE IF NOT EXISTS offers (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	headline TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	call_to_action TEXT NOT NULL DEFAULT '',
	price TEXT NOT NULL DEFAULT '',
	strategy_type TEXT NOT NULL DEFAULT '',
	created_at_utc TEXT NOT NULL
)`

const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	status TEXT NOT NULL,
	prompt_version TEXT NOT NULL,
	total_pairs INTEGER NOT NULL,
	completed_pairs INTEGER NOT NULL DEFAULT 0,
	failed_pairs INTEGER NOT NULL DEFAULT 0,
	created_at_utc TEXT NOT NULL
)`

const createJudgmentsTableSQL = `
CREATE TABLE IF NOT EXISTS judgments (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	persona_id TEXT NOT NULL REFERENCES personas(id),
	offer_id TEXT NOT NULL REFERENCES offers(id),
	status TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER NOT NULL DEFAULT 0,
	decision TEXT,
	confidence REAL,
	perceived_value REAL,
	emotion TEXT,
	emotion_intensity REAL,
	first_reaction TEXT,
	reasoning TEXT,
	objections_json TEXT,
	what_would_convince TEXT,
	value_alignment_json TEXT,
	created_at_utc TEXT NOT NULL,
	evaluated_at_utc TEXT
)`

const createJobsTableSQL = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	judgment_id TEXT NOT NULL REFERENCES judgments(id),
	run_id TEXT NOT NULL REFERENCES runs(id),
	status TEXT NOT NULL DEFAULT 'queued',
	attempts INTEGER NOT NULL DEFAULT 0,
	next_attempt_at_utc TEXT NOT NULL,
	last_error TEXT NOT NULL DEFAULT '',
	created_at_utc TEXT NOT NULL,
	updated_at_utc TEXT NOT NULL
)`

var createIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_personas_project ON personas(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_offers_project ON offers(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_judgments_run ON judgments(run_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_judgments_persona ON judgments(persona_id)`,
	`CREATE INDEX IF NOT EXISTS idx_judgments_offer ON judgments(offer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_due ON jobs(status, next_attempt_at_utc)`,
}

var dropTablesSQL = []string{
	`DROP TABLE IF EXISTS jobs`,
	`DROP TABLE IF EXISTS judgments`,
	`DROP TABLE IF EXISTS runs`,
	`DROP TABLE IF EXISTS offers`,
	`DROP TABLE IF EXISTS personas`,
	`DROP TABLE IF EXISTS projects`,
}

func requiredJudgmentColumns() []string {
	return []string{
		"id",
		"run_id",
		"persona_id",
		"offer_id",
		"status",
		"retry_count",
		"decision",
		"confidence",
		"perceived_value",
		"emotion",
		"emotion_intensity",
		"first_reaction",
		"reasoning",
		"objections_json",
		"what_would_convince",
		"value_alignment_json",
		"created_at_utc",
		"evaluated_at_utc",
	}
}

func requiredRunColumns() []string {
	return []string{
		"id",
		"project_id",
		"status",
		"prompt_version",
		"total_pairs",
		"completed_pairs",
		"failed_pairs",
		"created_at_utc",
	}
}
