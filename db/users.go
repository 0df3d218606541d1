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

type PostgresUsersRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for users table
var usersColumns = []string{
	"id",
	"auth_provider",
	"auth_provider_id",
	"client_id",
	"email",
	"created_at",
	"updated_at",
}

func NewPostgresUsersRepository(db *sqlx.DB, schema string) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db, schema: schema}
}

// GetOrCreateUser looks up the user by auth provider identity, creating a
// row (and a fresh tenant) on first sight.
func (r *PostgresUsersRepository) GetOrCreateUser(
	ctx context.Context,
	authProvider, authProviderID string,
) (*models.User, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(usersColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.users
		WHERE auth_provider = $1 AND auth_provider_id = $2`,
		columnsStr, r.schema)

	user := &models.User{}
	err := db.QueryRowxContext(ctx, query, authProvider, authProviderID).StructScan(user)
	if err == nil {
		return user, nil
	}
	if !strings.Contains(err.Error(), "no rows") {
		return nil, fmt.Errorf("failed to get user by auth provider: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s.users (%s)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING %s`,
		r.schema, columnsStr, columnsStr)

	created := &models.User{}
	err = db.QueryRowxContext(
		ctx,
		insert,
		core.NewID("u"),
		authProvider,
		authProviderID,
		core.NewID("cl"),
		"",
	).StructScan(created)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}
