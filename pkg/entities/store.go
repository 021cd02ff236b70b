package entities

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/atriumhq/atrium/pkg/storage"
)

// Store manages entity definitions and records in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a new entity store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateDefinition validates the request, derives the slug from the name,
// and persists the definition with its ordered fields in one transaction.
func (s *Store) CreateDefinition(ctx context.Context, tenantID uuid.UUID, req *CreateDefinitionRequest) (*Definition, error) {
	if err := ValidateDefinitionRequest(req); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	def, err := insertDefinition(ctx, tx, tenantID, req, false)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit definition: %w", err)
	}
	return def, nil
}

// UpsertDefinitionTx creates or refreshes a definition inside the caller's
// transaction, keyed on (tenant, slug). On conflict the definition metadata
// is updated and its field set replaced. Used by template instantiation so
// re-runs refresh instead of failing.
func UpsertDefinitionTx(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID, req *CreateDefinitionRequest) (*Definition, error) {
	if err := ValidateDefinitionRequest(req); err != nil {
		return nil, err
	}
	return insertDefinition(ctx, tx, tenantID, req, true)
}

func insertDefinition(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID, req *CreateDefinitionRequest, upsert bool) (*Definition, error) {
	def := &Definition{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Name:        req.Name,
		Slug:        Slugify(req.Name),
		Icon:        req.Icon,
		Description: req.Description,
	}

	query := `
		INSERT INTO entity_definitions (id, tenant_id, name, slug, icon, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if upsert {
		query += `
		ON CONFLICT (tenant_id, slug) DO UPDATE
		SET name = EXCLUDED.name, icon = EXCLUDED.icon, description = EXCLUDED.description, updated_at = NOW()
		`
	}
	query += ` RETURNING id, created_at, updated_at`

	err := tx.QueryRowContext(ctx, query,
		def.ID, def.TenantID, def.Name, def.Slug, def.Icon, def.Description).
		Scan(&def.ID, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("failed to create definition: %w", err)
	}

	if upsert {
		// refresh semantics: the field set mirrors the request exactly
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entity_fields WHERE definition_id = $1`, def.ID); err != nil {
			return nil, fmt.Errorf("failed to clear definition fields: %w", err)
		}
	}

	for i, spec := range req.Fields {
		field := Field{
			ID:           uuid.New(),
			DefinitionID: def.ID,
			Name:         spec.Name,
			Key:          spec.Key,
			Type:         spec.Type,
			IsRequired:   spec.IsRequired,
			Options:      spec.Options,
			SortOrder:    i,
		}
		if field.Key == "" {
			field.Key = Slugify(spec.Name)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO entity_fields (id, definition_id, name, key, type, is_required, options, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, field.ID, field.DefinitionID, field.Name, field.Key, field.Type,
			field.IsRequired, pq.Array(field.Options), field.SortOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to create field %s: %w", field.Key, err)
		}

		def.Fields = append(def.Fields, field)
	}

	return def, nil
}

// GetDefinition fetches a definition by (tenant, slug) with fields ordered
// by sort_order ascending.
func (s *Store) GetDefinition(ctx context.Context, tenantID uuid.UUID, slug string) (*Definition, error) {
	query := `
		SELECT id, tenant_id, name, slug, icon, description, created_at, updated_at
		FROM entity_definitions
		WHERE tenant_id = $1 AND slug = $2
	`
	def := &Definition{}
	err := s.db.QueryRowContext(ctx, query, tenantID, slug).Scan(
		&def.ID, &def.TenantID, &def.Name, &def.Slug, &def.Icon,
		&def.Description, &def.CreatedAt, &def.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrDefinitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}

	fields, err := s.loadFields(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	def.Fields = fields
	return def, nil
}

func (s *Store) loadFields(ctx context.Context, definitionID uuid.UUID) ([]Field, error) {
	query := `
		SELECT id, definition_id, name, key, type, is_required, options, sort_order
		FROM entity_fields
		WHERE definition_id = $1
		ORDER BY sort_order ASC
	`
	rows, err := s.db.QueryContext(ctx, query, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(
			&f.ID, &f.DefinitionID, &f.Name, &f.Key, &f.Type,
			&f.IsRequired, pq.Array(&f.Options), &f.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// ListDefinitions lists a tenant's definitions without fields, newest first
func (s *Store) ListDefinitions(ctx context.Context, tenantID uuid.UUID) ([]*Definition, error) {
	query := `
		SELECT id, tenant_id, name, slug, icon, description, created_at, updated_at
		FROM entity_definitions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var result []*Definition
	for rows.Next() {
		def := &Definition{}
		if err := rows.Scan(
			&def.ID, &def.TenantID, &def.Name, &def.Slug, &def.Icon,
			&def.Description, &def.CreatedAt, &def.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		result = append(result, def)
	}
	return result, rows.Err()
}

// CreateRecord resolves the definition, validates the payload against it,
// and persists it with the actor as owner and creator.
func (s *Store) CreateRecord(ctx context.Context, tenantID uuid.UUID, slug string, data map[string]any, actorID uuid.UUID) (*Record, error) {
	def, err := s.GetDefinition(ctx, tenantID, slug)
	if err != nil {
		return nil, err
	}

	if err := ValidateRecord(def, data); err != nil {
		return nil, err
	}

	record := &Record{
		ID:           uuid.New(),
		TenantID:     tenantID,
		DefinitionID: def.ID,
		Data:         data,
		OwnerID:      actorID,
		CreatedBy:    actorID,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record data: %w", err)
	}

	query := `
		INSERT INTO entity_records (id, tenant_id, definition_id, data, owner_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		record.ID, record.TenantID, record.DefinitionID, dataJSON, record.OwnerID, record.CreatedBy).
		Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	return record, nil
}

// ListRecords resolves the definition and returns its records, newest first
func (s *Store) ListRecords(ctx context.Context, tenantID uuid.UUID, slug string) ([]*Record, error) {
	def, err := s.GetDefinition(ctx, tenantID, slug)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, definition_id, data, owner_id, created_by, created_at, updated_at
		FROM entity_records
		WHERE tenant_id = $1 AND definition_id = $2
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID, def.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		record := &Record{}
		var dataJSON []byte
		if err := rows.Scan(
			&record.ID, &record.TenantID, &record.DefinitionID, &dataJSON,
			&record.OwnerID, &record.CreatedBy, &record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal(dataJSON, &record.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record data: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// MigrationsTable tracks applied entity store migrations.
const MigrationsTable = "entities_migrations"

// GetMigrations returns all entity store migrations
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create entity_definitions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS entity_definitions (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL,
					icon VARCHAR(100),
					description TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, slug)
				);

				CREATE INDEX idx_entity_definitions_tenant_id ON entity_definitions(tenant_id);
				CREATE INDEX idx_entity_definitions_slug ON entity_definitions(slug);
			`,
		},
		{
			Version:     2,
			Description: "Create entity_fields table",
			SQL: `
				CREATE TABLE IF NOT EXISTS entity_fields (
					id UUID PRIMARY KEY,
					definition_id UUID NOT NULL REFERENCES entity_definitions(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					key VARCHAR(255) NOT NULL,
					type VARCHAR(50) NOT NULL,
					is_required BOOLEAN NOT NULL DEFAULT FALSE,
					options TEXT[],
					sort_order INT NOT NULL DEFAULT 0,
					UNIQUE(definition_id, key)
				);

				CREATE INDEX idx_entity_fields_definition_id ON entity_fields(definition_id);
			`,
		},
		{
			Version:     3,
			Description: "Create entity_records table",
			SQL: `
				CREATE TABLE IF NOT EXISTS entity_records (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					definition_id UUID NOT NULL REFERENCES entity_definitions(id) ON DELETE CASCADE,
					data JSONB NOT NULL DEFAULT '{}',
					owner_id UUID NOT NULL,
					created_by UUID NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_entity_records_tenant_id ON entity_records(tenant_id);
				CREATE INDEX idx_entity_records_definition_id ON entity_records(definition_id);
				CREATE INDEX idx_entity_records_created_at ON entity_records(created_at DESC);
			`,
		},
	}
}
