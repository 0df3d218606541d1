package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"imbackend/core"
	dbtx "imbackend/db/tx"
	"imbackend/models"
)

type PostgresIntegrationsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for integrations table
var integrationsColumns = []string{
	"id",
	"user_id",
	"client_id",
	"type",
	"name",
	"status",
	"credentials",
	"settings",
	"last_sync",
	"created_at",
	"updated_at",
}

func NewPostgresIntegrationsRepository(db *sqlx.DB, schema string) *PostgresIntegrationsRepository {
	return &PostgresIntegrationsRepository{db: db, schema: schema}
}

func (r *PostgresIntegrationsRepository) CreateIntegration(
	ctx context.Context,
	integration *models.Integration,
) (*models.Integration, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	if integration.ID == "" {
		integration.ID = core.NewID("in")
	}

	columnsStr := strings.Join(integrationsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.integrations (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING %s`,
		r.schema, columnsStr, columnsStr)

	created := &models.Integration{}
	err := db.QueryRowxContext(
		ctx,
		query,
		integration.ID,
		integration.UserID,
		integration.ClientID,
		integration.Type,
		integration.Name,
		integration.Status,
		integration.Credentials,
		integration.Settings,
		integration.LastSync,
	).StructScan(created)
	if err != nil {
		return nil, fmt.Errorf("failed to create integration: %w", err)
	}

	return created, nil
}

func (r *PostgresIntegrationsRepository) GetIntegrationByID(
	ctx context.Context,
	id string,
) (*models.Integration, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(integrationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.integrations
		WHERE id = $1`,
		columnsStr, r.schema)

	integration := &models.Integration{}
	err := db.QueryRowxContext(ctx, query, id).StructScan(integration)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil // Integration not found
		}
		return nil, fmt.Errorf("failed to get integration by id: %w", err)
	}

	return integration, nil
}

// ListIntegrations returns a tenant's integrations, optionally filtered by
// type and status.
func (r *PostgresIntegrationsRepository) ListIntegrations(
	ctx context.Context,
	clientID string,
	integrationType *models.IntegrationType,
	status *models.IntegrationStatus,
) ([]*models.Integration, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(integrationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.integrations
		WHERE client_id = $1`,
		columnsStr, r.schema)

	args := []any{clientID}
	if integrationType != nil {
		args = append(args, *integrationType)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	integrations := []*models.Integration{}
	if err := db.SelectContext(ctx, &integrations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	return integrations, nil
}

// IntegrationUpdate carries the mutable fields of an integration; nil
// means leave the column untouched.
type IntegrationUpdate struct {
	Name        *string
	Status      *models.IntegrationStatus
	Credentials *models.SecretMap
	Settings    *models.SecretMap
}

func (r *PostgresIntegrationsRepository) UpdateIntegration(
	ctx context.Context,
	id string,
	update IntegrationUpdate,
) (*models.Integration, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	setClauses := []string{"updated_at = NOW()"}
	args := []any{}

	if update.Name != nil {
		args = append(args, *update.Name)
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", len(args)))
	}
	if update.Status != nil {
		args = append(args, *update.Status)
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.Credentials != nil {
		args = append(args, *update.Credentials)
		setClauses = append(setClauses, fmt.Sprintf("credentials = $%d", len(args)))
	}
	if update.Settings != nil {
		args = append(args, *update.Settings)
		setClauses = append(setClauses, fmt.Sprintf("settings = $%d", len(args)))
	}

	args = append(args, id)
	columnsStr := strings.Join(integrationsColumns, ", ")
	query := fmt.Sprintf(`
		UPDATE %s.integrations
		SET %s
		WHERE id = $%d
		RETURNING %s`,
		r.schema, strings.Join(setClauses, ", "), len(args), columnsStr)

	updated := &models.Integration{}
	err := db.QueryRowxContext(ctx, query, args...).StructScan(updated)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update integration: %w", err)
	}

	return updated, nil
}

func (r *PostgresIntegrationsRepository) UpdateIntegrationStatus(
	ctx context.Context,
	id string,
	status models.IntegrationStatus,
) error {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		UPDATE %s.integrations
		SET status = $1, updated_at = NOW()
		WHERE id = $2`,
		r.schema)

	result, err := db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update integration status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}

	return nil
}

func (r *PostgresIntegrationsRepository) UpdateLastSync(
	ctx context.Context,
	id string,
	lastSync time.Time,
) error {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		UPDATE %s.integrations
		SET last_sync = $1, updated_at = NOW()
		WHERE id = $2`,
		r.schema)

	result, err := db.ExecContext(ctx, query, lastSync, id)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}

	return nil
}

func (r *PostgresIntegrationsRepository) DeleteIntegration(ctx context.Context, id string) error {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`DELETE FROM %s.integrations WHERE id = $1`, r.schema)

	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}

	return nil
}
