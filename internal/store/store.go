// Package store is the single durable source of truth: domain rows and the
// job queue live in the same SQLite file, so workers coordinate only through
// persisted state. Run counters change exclusively via atomic relative
// UPDATEs; read-modify-write on cached values is never used.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tetraminz/persona_panel/internal/domain"
)

// Store — обертка над SQLite для всех таблиц пайплайна.
type Store struct {
	db *sql.DB
}

// Open opens (and schema-checks) an existing database file.
func Open(dbPath string) (*Store, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Setup drops and recreates every table.
func Setup(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	for _, stmt := range dropTablesSQL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("drop table: %w", err)
		}
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func openSQLite(dbPath string) (*sql.DB, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	// The pragmas must ride the DSN: database/sql pools connections, and a
	// PRAGMA issued over the pool configures only the one connection that
	// happened to execute it.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	for name, stmt := range map[string]string{
		"projects":  createProjectsTableSQL,
		"personas":  createPersonasTableSQL,
		"offers":    createOffersTableSQL,
		"runs":      createRunsTableSQL,
		"judgments": createJudgmentsTableSQL,
		"jobs":      createJobsTableSQL,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create %s table: %w", name, err)
		}
	}

	for table, required := range map[string][]string{
		"runs":      requiredRunColumns(),
		"judgments": requiredJudgmentColumns(),
	} {
		missing, err := missingTableColumns(db, table, required)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf(
				"incompatible %s schema, missing columns: %s; run `go run . setup --db <path>`",
				table,
				strings.Join(missing, ", "),
			)
		}
	}

	for _, stmt := range createIndexesSQL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func missingTableColumns(db *sql.DB, tableName string, required []string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, tableName))
	if err != nil {
		return nil, fmt.Errorf("inspect %s schema: %w", tableName, err)
	}
	defer rows.Close()

	existing := map[string]struct{}{}
	for rows.Next() {
		var cid int
		var name string
		var colType string
		var notNull int
		var defaultValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scan %s schema: %w", tableName, err)
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s schema: %w", tableName, err)
	}

	var missing []string
	for _, col := range required {
		if _, ok := existing[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func marshalJSONList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(raw), nil
}

func unmarshalJSONList(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return items, nil
}

// CreateProject inserts a project after input validation.
func (s *Store) CreateProject(in domain.ProjectInput, isDemo bool) (domain.Project, error) {
	if err := domain.CheckInput(in); err != nil {
		return domain.Project{}, err
	}
	project := domain.Project{
		ID:     uuid.NewString(),
		Name:   strings.TrimSpace(in.Name),
		Niche:  strings.TrimSpace(in.Niche),
		IsDemo: isDemo,
	}
	if _, err := s.db.Exec(
		`INSERT INTO projects (id, name, niche, is_demo, created_at_utc) VALUES (?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Niche, boolToInt(isDemo), nowUTC(),
	); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return project, nil
}

// GetProject loads one project by id.
func (s *Store) GetProject(projectID string) (domain.Project, error) {
	var p domain.Project
	var isDemo int
	err := s.db.QueryRow(
		`SELECT id, name, niche, is_demo FROM projects WHERE id = ?`, projectID,
	).Scan(&p.ID, &p.Name, &p.Niche, &isDemo)
	if err == sql.ErrNoRows {
		return domain.Project{}, domain.NotFoundf("project %s", projectID)
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("select project: %w", err)
	}
	p.IsDemo = isDemo == 1
	return p, nil
}

// CreatePersona inserts a persona owned by the project.
func (s *Store) CreatePersona(projectID string, in domain.PersonaInput) (domain.Persona, error) {
	if err := domain.CheckInput(in); err != nil {
		return domain.Persona{}, err
	}
	if _, err := s.GetProject(projectID); err != nil {
		return domain.Persona{}, err
	}

	persona := domain.Persona{
		ID:                uuid.NewString(),
		ProjectID:         projectID,
		Name:              strings.TrimSpace(in.Name),
		Description:       strings.TrimSpace(in.Description),
		AgeGroup:          in.AgeGroup,
		IncomeLevel:       in.IncomeLevel,
		Occupation:        strings.TrimSpace(in.Occupation),
		PersonalityTraits: in.PersonalityTraits,
		Values:            in.Values,
		PainPoints:        in.PainPoints,
		Goals:             in.Goals,
		TriggersPositive:  in.TriggersPositive,
		TriggersNegative:  in.TriggersNegative,
		DecisionFactors:   in.DecisionFactors,
		BackgroundStory:   in.BackgroundStory,
	}

	traits, err := marshalJSONList(persona.PersonalityTraits)
	if err != nil {
		return domain.Persona{}, err
	}
	values, err := marshalJSONList(persona.Values)
	if err != nil {
		return domain.Persona{}, err
	}
	painPoints, err := marshalJSONList(persona.PainPoints)
	if err != nil {
		return domain.Persona{}, err
	}
	goals, err := marshalJSONList(persona.Goals)
	if err != nil {
		return domain.Persona{}, err
	}
	factors, err := marshalJSONList(persona.DecisionFactors)
	if err != nil {
		return domain.Persona{}, err
	}

	if _, err := s.db.Exec(
		`INSERT INTO personas (
			id, project_id, name, description, age_group, income_level, occupation,
			traits_json, values_json, pain_points_json, goals_json, decision_factors_json,
			triggers_positive, triggers_negative, background_story, created_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		persona.ID, persona.ProjectID, persona.Name, persona.Description,
		persona.AgeGroup, persona.IncomeLevel, persona.Occupation,
		traits, values, painPoints, goals, factors,
		persona.TriggersPositive, persona.TriggersNegative, persona.BackgroundStory,
		nowUTC(),
	); err != nil {
		return domain.Persona{}, fmt.Errorf("insert persona: %w", err)
	}
	return persona, nil
}

// ListPersonas returns the project's personas in creation order. The order
// is stable on purpose: insight tie-breaks depend on it.
func (s *Store) ListPersonas(projectID string) ([]domain.Persona, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, name, description, age_group, income_level, occupation,
			traits_json, values_json, pain_points_json, goals_json, decision_factors_json,
			triggers_positive, triggers_negative, background_story
		FROM personas WHERE project_id = ? ORDER BY rowid`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query personas: %w", err)
	}
	defer rows.Close()

	var personas []domain.Persona
	for rows.Next() {
		var p domain.Persona
		var traits, values, painPoints, goals, factors string
		if err := rows.Scan(
			&p.ID, &p.ProjectID, &p.Name, &p.Description, &p.AgeGroup, &p.IncomeLevel,
			&p.Occupation, &traits, &values, &painPoints, &goals, &factors,
			&p.TriggersPositive, &p.TriggersNegative, &p.BackgroundStory,
		); err != nil {
			return nil, fmt.Errorf("scan persona row: %w", err)
		}
		if p.PersonalityTraits, err = unmarshalJSONList(traits); err != nil {
			return nil, err
		}
		if p.Values, err = unmarshalJSONList(values); err != nil {
			return nil, err
		}
		if p.PainPoints, err = unmarshalJSONList(painPoints); err != nil {
			return nil, err
		}
		if p.Goals, err = unmarshalJSONList(goals); err != nil {
			return nil, err
		}
		if p.DecisionFactors, err = unmarshalJSONList(factors); err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persona rows: %w", err)
	}
	return personas, nil
}

// GetPersona loads one persona by id.
func (s *Store) GetPersona(personaID string) (domain.Persona, error) {
	var p domain.Persona
	var traits, values, painPoints, goals, factors string
	err := s.db.QueryRow(
		`SELECT id, project_id, name, description, age_group, income_level, occupation,
			traits_json, values_json, pain_points_json, goals_json, decision_factors_json,
			triggers_positive, triggers_negative, background_story
		FROM personas WHERE id = ?`,
		personaID,
	).Scan(
		&p.ID, &p.ProjectID, &p.Name, &p.Description, &p.AgeGroup, &p.IncomeLevel,
		&p.Occupation, &traits, &values, &painPoints, &goals, &factors,
		&p.TriggersPositive, &p.TriggersNegative, &p.BackgroundStory,
	)
	if err == sql.ErrNoRows {
		return domain.Persona{}, domain.NotFoundf("persona %s", personaID)
	}
	if err != nil {
		return domain.Persona{}, fmt.Errorf("select persona: %w", err)
	}
	if p.PersonalityTraits, err = unmarshalJSONList(traits); err != nil {
		return domain.Persona{}, err
	}
	if p.Values, err = unmarshalJSONList(values); err != nil {
		return domain.Persona{}, err
	}
	if p.PainPoints, err = unmarshalJSONList(painPoints); err != nil {
		return domain.Persona{}, err
	}
	if p.Goals, err = unmarshalJSONList(goals); err != nil {
		return domain.Persona{}, err
	}
	if p.DecisionFactors, err = unmarshalJSONList(factors); err != nil {
		return domain.Persona{}, err
	}
	return p, nil
}

// DeletePersona removes a persona unless judgments still reference it.
// A referenced persona is a conflict surfaced to the caller, not handled.
func (s *Store) DeletePersona(personaID string) error {
	var refs int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM judgments WHERE persona_id = ?`, personaID,
	).Scan(&refs); err != nil {
		return fmt.Errorf("count persona references: %w", err)
	}
	if refs > 0 {
		return domain.Conflictf("persona %s is referenced by %d judgments", personaID, refs)
	}
	res, err := s.db.Exec(`DELETE FROM personas WHERE id = ?`, personaID)
	if err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete persona result: %w", err)
	}
	if affected == 0 {
		return domain.NotFoundf("persona %s", personaID)
	}
	return nil
}

// CreateOffer inserts an offer owned by the project.
func (s *Store) CreateOffer(projectID string, in domain.OfferInput) (domain.Offer, error) {
	if err := domain.CheckInput(in); err != nil {
		return domain.Offer{}, err
	}
	if _, err := s.GetProject(projectID); err != nil {
		return domain.Offer{}, err
	}

	offer := domain.Offer{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Headline:     strings.TrimSpace(in.Headline),
		Body:         in.Body,
		CallToAction: in.CallToAction,
		Price:        in.Price,
		StrategyType: in.StrategyType,
	}
	if _, err := s.db.Exec(
		`INSERT INTO offers (id, project_id, headline, body, call_to_action, price, strategy_type, created_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		offer.ID, offer.ProjectID, offer.Headline, offer.Body,
		offer.CallToAction, offer.Price, offer.StrategyType, nowUTC(),
	); err != nil {
		return domain.Offer{}, fmt.Errorf("insert offer: %w", err)
	}
	return offer, nil
}

// ListOffers returns the project's offers in creation order.
func (s *Store) ListOffers(projectID string) ([]domain.Offer, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, headline, body, call_to_action, price, strategy_type
		FROM offers WHERE project_id = ? ORDER BY rowid`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(
			&o.ID, &o.ProjectID, &o.Headline, &o.Body, &o.CallToAction, &o.Price, &o.StrategyType,
		); err != nil {
			return nil, fmt.Errorf("scan offer row: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer rows: %w", err)
	}
	return offers, nil
}

// GetOffer loads one offer by id.
func (s *Store) GetOffer(offerID string) (domain.Offer, error) {
	var o domain.Offer
	err := s.db.QueryRow(
		`SELECT id, project_id, headline, body, call_to_action, price, strategy_type
		FROM offers WHERE id = ?`,
		offerID,
	).Scan(&o.ID, &o.ProjectID, &o.Headline, &o.Body, &o.CallToAction, &o.Price, &o.StrategyType)
	if err == sql.ErrNoRows {
		return domain.Offer{}, domain.NotFoundf("offer %s", offerID)
	}
	if err != nil {
		return domain.Offer{}, fmt.Errorf("select offer: %w", err)
	}
	return o, nil
}

// DeleteOffer removes an offer unless judgments still reference it.
func (s *Store) DeleteOffer(offerID string) error {
	var refs int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM judgments WHERE offer_id = ?`, offerID,
	).Scan(&refs); err != nil {
		return fmt.Errorf("count offer references: %w", err)
	}
	if refs > 0 {
		return domain.Conflictf("offer %s is referenced by %d judgments", offerID, refs)
	}
	res, err := s.db.Exec(`DELETE FROM offers WHERE id = ?`, offerID)
	if err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete offer result: %w", err)
	}
	if affected == 0 {
		return domain.NotFoundf("offer %s", offerID)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
