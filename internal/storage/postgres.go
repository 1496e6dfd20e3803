package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osiriscare/encounters/internal/audit"
	"github.com/osiriscare/encounters/internal/encounter"
)

// PostgresStore persists encounters and audit events in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS encounters (
			encounter_id   UUID PRIMARY KEY,
			patient_id     TEXT NOT NULL,
			provider_id    TEXT NOT NULL,
			encounter_date TIMESTAMPTZ NOT NULL,
			encounter_type TEXT NOT NULL,
			clinical_data  JSONB NOT NULL DEFAULT '{}',
			created_at     TIMESTAMPTZ NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL,
			created_by     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_encounters_patient ON encounters (patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_encounters_provider ON encounters (provider_id)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			seq             BIGSERIAL PRIMARY KEY,
			event_id        TEXT NOT NULL UNIQUE,
			event_type      TEXT NOT NULL,
			resource_type   TEXT NOT NULL,
			resource_id     TEXT NOT NULL,
			user_id         TEXT NOT NULL,
			ts              TIMESTAMPTZ NOT NULL,
			ip_address      TEXT,
			user_agent      TEXT,
			additional_data JSONB NOT NULL DEFAULT '{}',
			chain_hash      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_events (resource_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// CreateEncounter implements Store.
func (s *PostgresStore) CreateEncounter(ctx context.Context, req encounter.CreateRequest, createdBy string) (encounter.Encounter, error) {
	now := time.Now().UTC()
	e := encounter.Encounter{
		EncounterID:   uuid.New(),
		PatientID:     req.PatientID,
		ProviderID:    req.ProviderID,
		EncounterDate: req.EncounterDate,
		EncounterType: req.EncounterType,
		ClinicalData:  req.ClinicalData,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     createdBy,
	}
	if e.ClinicalData == nil {
		e.ClinicalData = map[string]any{}
	}

	clinical, err := json.Marshal(e.ClinicalData)
	if err != nil {
		return encounter.Encounter{}, fmt.Errorf("marshal clinical_data: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO encounters
			(encounter_id, patient_id, provider_id, encounter_date,
			 encounter_type, clinical_data, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.EncounterID, e.PatientID, e.ProviderID, e.EncounterDate,
		string(e.EncounterType), clinical, e.CreatedAt, e.UpdatedAt, e.CreatedBy)
	if err != nil {
		return encounter.Encounter{}, fmt.Errorf("insert encounter: %w", err)
	}
	return e, nil
}

// GetEncounter implements Store.
func (s *PostgresStore) GetEncounter(ctx context.Context, id uuid.UUID) (encounter.Encounter, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT encounter_id, patient_id, provider_id, encounter_date,
		       encounter_type, clinical_data, created_at, updated_at, created_by
		FROM encounters WHERE encounter_id = $1
	`, id)

	e, err := scanEncounter(row)
	if err == pgx.ErrNoRows {
		return encounter.Encounter{}, ErrNotFound
	}
	if err != nil {
		return encounter.Encounter{}, fmt.Errorf("get encounter: %w", err)
	}
	return e, nil
}

// ListEncounters implements Store.
func (s *PostgresStore) ListEncounters(ctx context.Context, f encounter.Filter) ([]encounter.Encounter, error) {
	query := `
		SELECT encounter_id, patient_id, provider_id, encounter_date,
		       encounter_type, clinical_data, created_at, updated_at, created_by
		FROM encounters WHERE 1=1`
	var args []any

	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}
	if f.PatientID != "" {
		add("patient_id", f.PatientID)
	}
	if f.ProviderID != "" {
		add("provider_id", f.ProviderID)
	}
	if f.EncounterType != "" {
		add("encounter_type", string(f.EncounterType))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		query += fmt.Sprintf(" AND encounter_date >= $%d", len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		query += fmt.Sprintf(" AND encounter_date <= $%d", len(args))
	}
	query += " ORDER BY created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	defer rows.Close()

	var out []encounter.Encounter
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan encounter: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// auditChainLockID scopes the advisory lock serializing audit appends.
const auditChainLockID = 0x61756454 // "audT"

// AppendAudit implements Store. The chain hash links to the most recent
// event. Appends serialize on a transaction-scoped advisory lock: locking
// the head row alone would let two concurrent appends against an empty
// trail both hash from "" and fork the genesis of the chain.
func (s *PostgresStore) AppendAudit(ctx context.Context, e audit.Event) (audit.Event, error) {
	if e.EventID == "" {
		e.EventID = audit.NewEventID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.AdditionalData == nil {
		e.AdditionalData = map[string]any{}
	}

	extra, err := json.Marshal(e.AdditionalData)
	if err != nil {
		return audit.Event{}, fmt.Errorf("marshal additional_data: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return audit.Event{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(auditChainLockID)); err != nil {
		return audit.Event{}, fmt.Errorf("chain lock: %w", err)
	}

	var prevHash string
	err = tx.QueryRow(ctx,
		`SELECT chain_hash FROM audit_events ORDER BY seq DESC LIMIT 1`,
	).Scan(&prevHash)
	if err != nil && err != pgx.ErrNoRows {
		return audit.Event{}, fmt.Errorf("chain head: %w", err)
	}
	e.ChainHash = e.ComputeChainHash(prevHash)

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_events
			(event_id, event_type, resource_type, resource_id, user_id,
			 ts, ip_address, user_agent, additional_data, chain_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.EventID, e.EventType, e.ResourceType, e.ResourceID, e.UserID,
		e.Timestamp, nullable(e.IPAddress), nullable(e.UserAgent), extra, e.ChainHash)
	if err != nil {
		return audit.Event{}, fmt.Errorf("insert audit event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return audit.Event{}, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

// ListAuditEvents implements Store.
func (s *PostgresStore) ListAuditEvents(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	query := `
		SELECT event_id, event_type, resource_type, resource_id, user_id,
		       ts, ip_address, user_agent, additional_data, chain_hash
		FROM audit_events WHERE 1=1`
	var args []any

	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}
	if f.ResourceType != "" {
		add("resource_type", f.ResourceType)
	}
	if f.ResourceID != "" {
		add("resource_id", f.ResourceID)
	}
	if f.UserID != "" {
		add("user_id", f.UserID)
	}
	if f.EventType != "" {
		add("event_type", f.EventType)
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	query += " ORDER BY seq"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e         audit.Event
			ip, agent *string
			extra     []byte
		)
		if err := rows.Scan(&e.EventID, &e.EventType, &e.ResourceType,
			&e.ResourceID, &e.UserID, &e.Timestamp, &ip, &agent,
			&extra, &e.ChainHash); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if ip != nil {
			e.IPAddress = *ip
		}
		if agent != nil {
			e.UserAgent = *agent
		}
		if err := json.Unmarshal(extra, &e.AdditionalData); err != nil {
			return nil, fmt.Errorf("decode additional_data: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func scanEncounter(row pgx.Row) (encounter.Encounter, error) {
	var (
		e        encounter.Encounter
		typ      string
		clinical []byte
	)
	if err := row.Scan(&e.EncounterID, &e.PatientID, &e.ProviderID,
		&e.EncounterDate, &typ, &clinical, &e.CreatedAt, &e.UpdatedAt,
		&e.CreatedBy); err != nil {
		return encounter.Encounter{}, err
	}
	e.EncounterType = encounter.Type(typ)
	if err := json.Unmarshal(clinical, &e.ClinicalData); err != nil {
		return encounter.Encounter{}, fmt.Errorf("decode clinical_data: %w", err)
	}
	return e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
