package services

import (
	"context"

	"github.com/samber/mo"

	"imbackend/clients"
	"imbackend/db"
	"imbackend/models"
)

// IntegrationsService is the registry and lifecycle surface for a tenant's
// connected provider accounts.
type IntegrationsService interface {
	CreateIntegration(
		ctx context.Context,
		userID, clientID string,
		integrationType models.IntegrationType,
		name string,
		credentials, settings models.SecretMap,
	) (*models.Integration, error)
	GetIntegrationByID(ctx context.Context, id string) (mo.Option[*models.Integration], error)
	ListIntegrations(
		ctx context.Context,
		clientID string,
		integrationType *models.IntegrationType,
		status *models.IntegrationStatus,
	) ([]*models.Integration, error)
	UpdateIntegration(ctx context.Context, id string, update db.IntegrationUpdate) (*models.Integration, error)
	DeleteIntegration(ctx context.Context, id string) error

	TestConnection(ctx context.Context, id string) (*clients.HealthStatus, error)
	Sync(ctx context.Context, id string, syncType models.SyncType) (*models.SyncResult, error)
	GetMetrics(ctx context.Context, id string) (*models.IntegrationMetrics, error)
	GetSyncRuns(ctx context.Context, id string, limit int) ([]*models.SyncRun, error)
	GetContactRecord(ctx context.Context, id, recordID string) (mo.Option[*models.CRMContact], error)
	GetOpportunityRecord(ctx context.Context, id, recordID string) (mo.Option[*models.CRMOpportunity], error)
}

// TransactionManager handles database transactions via context.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SyncEngine drives the paginated pull-and-reconcile loop against a CRM
// adapter. A returned error means the pull itself failed fatally; per-record
// failures are folded into the result instead.
type SyncEngine interface {
	SyncContacts(ctx context.Context, crm clients.CRMClient, clientID string) (*models.SyncResult, error)
	SyncOpportunities(ctx context.Context, crm clients.CRMClient, clientID string) (*models.SyncResult, error)
}
