package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"imbackend/core"
	dbtx "imbackend/db/tx"
	"imbackend/models"
)

// PostgresSyncRunsRepository persists the per-invocation sync audit trail.
// Integration metrics are aggregated from these rows at read time.
type PostgresSyncRunsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for sync_runs table
var syncRunsColumns = []string{
	"id",
	"integration_id",
	"client_id",
	"sync_type",
	"success",
	"records_processed",
	"records_created",
	"records_updated",
	"records_failed",
	"errors",
	"duration_ms",
	"created_at",
}

func NewPostgresSyncRunsRepository(db *sqlx.DB, schema string) *PostgresSyncRunsRepository {
	return &PostgresSyncRunsRepository{db: db, schema: schema}
}

func (r *PostgresSyncRunsRepository) CreateSyncRun(
	ctx context.Context,
	run *models.SyncRun,
) (*models.SyncRun, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	if run.ID == "" {
		run.ID = core.NewID("sr")
	}

	columnsStr := strings.Join(syncRunsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.sync_runs (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING %s`,
		r.schema, columnsStr, columnsStr)

	created := &models.SyncRun{}
	err := db.QueryRowxContext(
		ctx,
		query,
		run.ID,
		run.IntegrationID,
		run.ClientID,
		run.SyncType,
		run.Success,
		run.RecordsProcessed,
		run.RecordsCreated,
		run.RecordsUpdated,
		run.RecordsFailed,
		run.Errors,
		run.DurationMs,
	).StructScan(created)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	return created, nil
}

func (r *PostgresSyncRunsRepository) ListSyncRuns(
	ctx context.Context,
	integrationID string,
	limit int,
) ([]*models.SyncRun, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(syncRunsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.sync_runs
		WHERE integration_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		columnsStr, r.schema)

	runs := []*models.SyncRun{}
	if err := db.SelectContext(ctx, &runs, query, integrationID, limit); err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	return runs, nil
}

// GetIntegrationMetrics aggregates an integration's sync history in a
// single query.
func (r *PostgresSyncRunsRepository) GetIntegrationMetrics(
	ctx context.Context,
	integrationID string,
) (*models.IntegrationMetrics, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*) AS total_syncs,
			COUNT(*) FILTER (WHERE success) AS successful_syncs,
			COUNT(*) FILTER (WHERE NOT success) AS failed_syncs,
			COALESCE(AVG(duration_ms), 0) AS average_sync_time,
			MAX(created_at) AS last_sync,
			COALESCE(SUM(records_processed), 0) AS records_processed,
			COALESCE(SUM(records_created), 0) AS records_created,
			COALESCE(SUM(records_updated), 0) AS records_updated,
			COALESCE(SUM(records_failed), 0) AS records_failed
		FROM %s.sync_runs
		WHERE integration_id = $1`,
		r.schema)

	metrics := &models.IntegrationMetrics{}
	if err := db.QueryRowxContext(ctx, query, integrationID).StructScan(metrics); err != nil {
		return nil, fmt.Errorf("failed to get integration metrics: %w", err)
	}

	if metrics.TotalSyncs > 0 {
		metrics.SuccessRate = float64(metrics.SuccessfulSyncs) / float64(metrics.TotalSyncs)
	}

	return metrics, nil
}
