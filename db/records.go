package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	dbtx "imbackend/db/tx"
	"imbackend/models"
)

// PostgresRecordsRepository stores the canonical contact and opportunity
// records produced by sync runs. Record identity is (source, crm_id,
// client_id): the same provider-native ID under two tenants, or from two
// providers, is two rows.
type PostgresRecordsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for crm_contacts table
var contactsColumns = []string{
	"crm_id",
	"client_id",
	"email",
	"first_name",
	"last_name",
	"phone",
	"company",
	"title",
	"source",
	"custom_fields",
	"created_at",
	"updated_at",
}

// Column names for crm_opportunities table
var opportunitiesColumns = []string{
	"crm_id",
	"client_id",
	"name",
	"amount",
	"stage",
	"probability",
	"close_date",
	"contact_id",
	"source",
	"custom_fields",
	"created_at",
	"updated_at",
}

func NewPostgresRecordsRepository(db *sqlx.DB, schema string) *PostgresRecordsRepository {
	return &PostgresRecordsRepository{db: db, schema: schema}
}

func (r *PostgresRecordsRepository) FindContact(
	ctx context.Context,
	source models.IntegrationType,
	crmID, clientID string,
) (*models.CRMContact, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(contactsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.crm_contacts
		WHERE source = $1 AND crm_id = $2 AND client_id = $3`,
		columnsStr, r.schema)

	contact := &contactRow{}
	err := db.QueryRowxContext(ctx, query, source, crmID, clientID).StructScan(contact)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil // Contact not found
		}
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}

	return &contact.CRMContact, nil
}

// UpsertContact inserts or overwrites the stored contact and reports
// whether a new row was created.
func (r *PostgresRecordsRepository) UpsertContact(
	ctx context.Context,
	clientID string,
	contact *models.CRMContact,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		INSERT INTO %s.crm_contacts
			(crm_id, client_id, email, first_name, last_name, phone, company, title, source, custom_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (source, crm_id, client_id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			company = EXCLUDED.company,
			title = EXCLUDED.title,
			custom_fields = EXCLUDED.custom_fields,
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted`,
		r.schema)

	var inserted bool
	err := db.QueryRowxContext(
		ctx,
		query,
		contact.ID,
		clientID,
		contact.Email,
		contact.FirstName,
		contact.LastName,
		contact.Phone,
		contact.Company,
		contact.Title,
		contact.Source,
		contact.CustomFields,
		contact.CreatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert contact: %w", err)
	}

	return inserted, nil
}

func (r *PostgresRecordsRepository) FindOpportunity(
	ctx context.Context,
	source models.IntegrationType,
	crmID, clientID string,
) (*models.CRMOpportunity, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	columnsStr := strings.Join(opportunitiesColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.crm_opportunities
		WHERE source = $1 AND crm_id = $2 AND client_id = $3`,
		columnsStr, r.schema)

	opportunity := &opportunityRow{}
	err := db.QueryRowxContext(ctx, query, source, crmID, clientID).StructScan(opportunity)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil // Opportunity not found
		}
		return nil, fmt.Errorf("failed to find opportunity: %w", err)
	}

	return &opportunity.CRMOpportunity, nil
}

func (r *PostgresRecordsRepository) UpsertOpportunity(
	ctx context.Context,
	clientID string,
	opportunity *models.CRMOpportunity,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	query := fmt.Sprintf(`
		INSERT INTO %s.crm_opportunities
			(crm_id, client_id, name, amount, stage, probability, close_date, contact_id, source, custom_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (source, crm_id, client_id) DO UPDATE SET
			name = EXCLUDED.name,
			amount = EXCLUDED.amount,
			stage = EXCLUDED.stage,
			probability = EXCLUDED.probability,
			close_date = EXCLUDED.close_date,
			contact_id = EXCLUDED.contact_id,
			custom_fields = EXCLUDED.custom_fields,
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted`,
		r.schema)

	var inserted bool
	err := db.QueryRowxContext(
		ctx,
		query,
		opportunity.ID,
		clientID,
		opportunity.Name,
		opportunity.Amount,
		opportunity.Stage,
		opportunity.Probability,
		opportunity.CloseDate,
		opportunity.ContactID,
		opportunity.Source,
		opportunity.CustomFields,
		opportunity.CreatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert opportunity: %w", err)
	}

	return inserted, nil
}

// contactRow adds the tenant column to the canonical struct for scanning.
type contactRow struct {
	models.CRMContact
	ClientID string `db:"client_id"`
}

type opportunityRow struct {
	models.CRMOpportunity
	ClientID string `db:"client_id"`
}
