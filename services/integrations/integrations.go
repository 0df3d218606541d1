package integrations

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/samber/mo"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/db"
	"imbackend/models"
	"imbackend/services"
)

// IntegrationsRepository is the persistence surface the service needs; the
// Postgres repository in db satisfies it.
type IntegrationsRepository interface {
	CreateIntegration(ctx context.Context, integration *models.Integration) (*models.Integration, error)
	GetIntegrationByID(ctx context.Context, id string) (*models.Integration, error)
	ListIntegrations(
		ctx context.Context,
		clientID string,
		integrationType *models.IntegrationType,
		status *models.IntegrationStatus,
	) ([]*models.Integration, error)
	UpdateIntegration(ctx context.Context, id string, update db.IntegrationUpdate) (*models.Integration, error)
	UpdateIntegrationStatus(ctx context.Context, id string, status models.IntegrationStatus) error
	UpdateLastSync(ctx context.Context, id string, lastSync time.Time) error
	DeleteIntegration(ctx context.Context, id string) error
}

type SyncRunsRepository interface {
	CreateSyncRun(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error)
	ListSyncRuns(ctx context.Context, integrationID string, limit int) ([]*models.SyncRun, error)
	GetIntegrationMetrics(ctx context.Context, integrationID string) (*models.IntegrationMetrics, error)
}

// RecordsRepository is the read surface over the canonical records the sync
// engine has reconciled.
type RecordsRepository interface {
	FindContact(
		ctx context.Context,
		source models.IntegrationType,
		crmID, clientID string,
	) (*models.CRMContact, error)
	FindOpportunity(
		ctx context.Context,
		source models.IntegrationType,
		crmID, clientID string,
	) (*models.CRMOpportunity, error)
}

// IntegrationsService is the registry: it owns integration lifecycle,
// connection testing, sync orchestration status transitions and metrics.
type IntegrationsService struct {
	integrationsRepo IntegrationsRepository
	recordsRepo      RecordsRepository
	syncRunsRepo     SyncRunsRepository
	syncEngine       services.SyncEngine
	txManager        services.TransactionManager
	crmFactory       CRMClientFactory
	commFactory      CommunicationClientFactory
}

func NewIntegrationsService(
	integrationsRepo IntegrationsRepository,
	recordsRepo RecordsRepository,
	syncRunsRepo SyncRunsRepository,
	syncEngine services.SyncEngine,
	txManager services.TransactionManager,
	crmFactory CRMClientFactory,
	commFactory CommunicationClientFactory,
) *IntegrationsService {
	return &IntegrationsService{
		integrationsRepo: integrationsRepo,
		recordsRepo:      recordsRepo,
		syncRunsRepo:     syncRunsRepo,
		syncEngine:       syncEngine,
		txManager:        txManager,
		crmFactory:       crmFactory,
		commFactory:      commFactory,
	}
}

// CreateIntegration registers a new integration in status pending. The
// credential content is opaque here; it is validated by the adapter when the
// connection is first tested.
func (s *IntegrationsService) CreateIntegration(
	ctx context.Context,
	userID, clientID string,
	integrationType models.IntegrationType,
	name string,
	credentials, settings models.SecretMap,
) (*models.Integration, error) {
	log.Printf("📋 Starting to create integration type: %s for client: %s", integrationType, clientID)

	if !integrationType.IsValid() {
		return nil, core.NewValidationError(fmt.Sprintf("invalid integration type: %s", integrationType))
	}
	if name == "" {
		return nil, core.NewValidationError("integration name cannot be empty")
	}
	if userID == "" || clientID == "" {
		return nil, core.NewValidationError("user_id and client_id cannot be empty")
	}
	if len(credentials) == 0 {
		return nil, core.NewValidationError("integration credentials cannot be empty")
	}

	integration := &models.Integration{
		UserID:      userID,
		ClientID:    clientID,
		Type:        integrationType,
		Name:        name,
		Status:      models.IntegrationStatusPending,
		Credentials: credentials,
		Settings:    settings,
	}

	created, err := s.integrationsRepo.CreateIntegration(ctx, integration)
	if err != nil {
		return nil, fmt.Errorf("failed to create integration: %w", err)
	}

	log.Printf("📋 Completed successfully - created integration with ID: %s", created.ID)
	return created, nil
}

func (s *IntegrationsService) GetIntegrationByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.Integration], error) {
	log.Printf("📋 Starting to get integration by ID: %s", id)

	if !core.IsValidULID(id) {
		return mo.None[*models.Integration](), core.NewValidationError("integration ID must be a valid ULID")
	}

	integration, err := s.integrationsRepo.GetIntegrationByID(ctx, id)
	if err != nil {
		return mo.None[*models.Integration](), fmt.Errorf("failed to get integration: %w", err)
	}
	if integration == nil {
		log.Printf("📋 Completed successfully - integration not found")
		return mo.None[*models.Integration](), nil
	}

	log.Printf("📋 Completed successfully - retrieved integration: %s", integration.ID)
	return mo.Some(integration), nil
}

func (s *IntegrationsService) ListIntegrations(
	ctx context.Context,
	clientID string,
	integrationType *models.IntegrationType,
	status *models.IntegrationStatus,
) ([]*models.Integration, error) {
	log.Printf("📋 Starting to list integrations for client: %s", clientID)

	if clientID == "" {
		return nil, core.NewValidationError("client_id cannot be empty")
	}
	if integrationType != nil && !integrationType.IsValid() {
		return nil, core.NewValidationError(fmt.Sprintf("invalid integration type filter: %s", *integrationType))
	}
	if status != nil && !status.IsValid() {
		return nil, core.NewValidationError(fmt.Sprintf("invalid status filter: %s", *status))
	}

	integrations, err := s.integrationsRepo.ListIntegrations(ctx, clientID, integrationType, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	log.Printf("📋 Completed successfully - found %d integrations", len(integrations))
	return integrations, nil
}

func (s *IntegrationsService) UpdateIntegration(
	ctx context.Context,
	id string,
	update db.IntegrationUpdate,
) (*models.Integration, error) {
	log.Printf("📋 Starting to update integration: %s", id)

	if update.Status != nil && !update.Status.IsValid() {
		return nil, core.NewValidationError(fmt.Sprintf("invalid integration status: %s", *update.Status))
	}
	if update.Name != nil && *update.Name == "" {
		return nil, core.NewValidationError("integration name cannot be empty")
	}

	updated, err := s.integrationsRepo.UpdateIntegration(ctx, id, update)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NewNotFoundError(fmt.Sprintf("integration not found: %s", id))
		}
		return nil, fmt.Errorf("failed to update integration: %w", err)
	}

	log.Printf("📋 Completed successfully - updated integration: %s", updated.ID)
	return updated, nil
}

func (s *IntegrationsService) DeleteIntegration(ctx context.Context, id string) error {
	log.Printf("📋 Starting to delete integration: %s", id)

	if err := s.integrationsRepo.DeleteIntegration(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewNotFoundError(fmt.Sprintf("integration not found: %s", id))
		}
		return fmt.Errorf("failed to delete integration: %w", err)
	}

	log.Printf("📋 Completed successfully - deleted integration: %s", id)
	return nil
}

// TestConnection builds the adapter for the integration and runs its health
// check. A healthy probe promotes the integration to active; an unhealthy
// one demotes it to error. The health status is returned either way.
func (s *IntegrationsService) TestConnection(ctx context.Context, id string) (*clients.HealthStatus, error) {
	log.Printf("📋 Starting to test connection for integration: %s", id)

	integration, err := s.mustGetIntegration(ctx, id)
	if err != nil {
		return nil, err
	}

	health, err := s.healthCheck(ctx, integration)
	if err != nil {
		return nil, err
	}

	newStatus := models.IntegrationStatusActive
	if health.Status != clients.HealthStatusHealthy {
		newStatus = models.IntegrationStatusError
	}
	if err := s.integrationsRepo.UpdateIntegrationStatus(ctx, id, newStatus); err != nil {
		return nil, fmt.Errorf("failed to update integration status: %w", err)
	}

	log.Printf("📋 Completed successfully - connection test result: %s", health.Status)
	return health, nil
}

func (s *IntegrationsService) healthCheck(
	ctx context.Context,
	integration *models.Integration,
) (*clients.HealthStatus, error) {
	if integration.Type.IsCRM() {
		crm, err := s.crmFactory(integration.Type, integration.Credentials)
		if err != nil {
			return &clients.HealthStatus{
				Status:  clients.HealthStatusUnhealthy,
				Details: map[string]any{"error": err.Error()},
			}, nil
		}
		return crm.HealthCheck(ctx), nil
	}

	comm, err := s.commFactory(integration.Type, integration.Credentials)
	if err != nil {
		return &clients.HealthStatus{
			Status:  clients.HealthStatusUnhealthy,
			Details: map[string]any{"error": err.Error()},
		}, nil
	}

	health := comm.HealthCheck(ctx)
	if health.Status == clients.HealthStatusHealthy {
		PersistRotatedTokens(ctx, s.integrationsRepo, integration, comm)
	}
	return health, nil
}

// Sync runs a full pull for the integration. Status moves to syncing for
// the duration, then to active when the run completes (partial failures
// included) or error when it aborts.
func (s *IntegrationsService) Sync(
	ctx context.Context,
	id string,
	syncType models.SyncType,
) (*models.SyncResult, error) {
	log.Printf("📋 Starting %s sync for integration: %s", syncType, id)

	if !syncType.IsValid() {
		return nil, core.NewValidationError(fmt.Sprintf("Invalid sync type: %s", syncType))
	}

	integration, err := s.mustGetIntegration(ctx, id)
	if err != nil {
		return nil, err
	}
	if !integration.Type.IsCRM() {
		return nil, core.NewValidationError(
			fmt.Sprintf("integration type %s does not support record sync", integration.Type),
		)
	}

	if err := s.integrationsRepo.UpdateIntegrationStatus(ctx, id, models.IntegrationStatusSyncing); err != nil {
		return nil, fmt.Errorf("failed to mark integration syncing: %w", err)
	}

	result, err := s.runSync(ctx, integration, syncType)
	if err != nil {
		s.finishRun(ctx, integration, syncType,
			&models.SyncResult{Errors: []string{err.Error()}}, models.IntegrationStatusError, false)
		return nil, err
	}

	s.finishRun(ctx, integration, syncType, result, models.IntegrationStatusActive, true)

	log.Printf("📋 Completed successfully - sync processed %d records (%d failed)",
		result.RecordsProcessed, result.RecordsFailed)
	return result, nil
}

// finishRun commits the audit row and the closing status transition in one
// transaction so readers never see a recorded run on an integration still
// marked syncing. Bookkeeping failures are logged and the status transition
// retried outside the transaction: they must not fail a sync that already
// ran.
func (s *IntegrationsService) finishRun(
	ctx context.Context,
	integration *models.Integration,
	syncType models.SyncType,
	result *models.SyncResult,
	status models.IntegrationStatus,
	completed bool,
) {
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.persistRun(ctx, integration, syncType, result); err != nil {
			return err
		}
		if completed {
			if err := s.integrationsRepo.UpdateLastSync(ctx, integration.ID, time.Now().UTC()); err != nil {
				return err
			}
		}
		return s.integrationsRepo.UpdateIntegrationStatus(ctx, integration.ID, status)
	})
	if err == nil {
		return
	}

	log.Printf("📋 Failed to finalize sync bookkeeping for integration %s: %v", integration.ID, err)
	if statusErr := s.integrationsRepo.UpdateIntegrationStatus(ctx, integration.ID, status); statusErr != nil {
		log.Printf("📋 Failed to update integration status to %s: %v", status, statusErr)
	}
}

func (s *IntegrationsService) runSync(
	ctx context.Context,
	integration *models.Integration,
	syncType models.SyncType,
) (*models.SyncResult, error) {
	crm, err := s.crmFactory(integration.Type, integration.Credentials)
	if err != nil {
		return nil, err
	}
	if err := crm.Authenticate(ctx); err != nil {
		return nil, err
	}

	switch syncType {
	case models.SyncTypeContacts:
		return s.syncEngine.SyncContacts(ctx, crm, integration.ClientID)
	case models.SyncTypeOpportunities:
		return s.syncEngine.SyncOpportunities(ctx, crm, integration.ClientID)
	case models.SyncTypeAll:
		contacts, err := s.syncEngine.SyncContacts(ctx, crm, integration.ClientID)
		if err != nil {
			return nil, err
		}
		opportunities, err := s.syncEngine.SyncOpportunities(ctx, crm, integration.ClientID)
		if err != nil {
			return nil, err
		}
		merged := contacts.Merge(*opportunities)
		return &merged, nil
	default:
		return nil, core.NewValidationError(fmt.Sprintf("Invalid sync type: %s", syncType))
	}
}

func (s *IntegrationsService) persistRun(
	ctx context.Context,
	integration *models.Integration,
	syncType models.SyncType,
	result *models.SyncResult,
) error {
	_, err := s.syncRunsRepo.CreateSyncRun(ctx, &models.SyncRun{
		IntegrationID:    integration.ID,
		ClientID:         integration.ClientID,
		SyncType:         syncType,
		Success:          result.Success,
		RecordsProcessed: result.RecordsProcessed,
		RecordsCreated:   result.RecordsCreated,
		RecordsUpdated:   result.RecordsUpdated,
		RecordsFailed:    result.RecordsFailed,
		Errors:           pq.StringArray(result.Errors),
		DurationMs:       result.Duration,
	})
	if err != nil {
		return fmt.Errorf("failed to persist sync run: %w", err)
	}
	return nil
}

func (s *IntegrationsService) GetMetrics(ctx context.Context, id string) (*models.IntegrationMetrics, error) {
	log.Printf("📋 Starting to get metrics for integration: %s", id)

	if _, err := s.mustGetIntegration(ctx, id); err != nil {
		return nil, err
	}

	metrics, err := s.syncRunsRepo.GetIntegrationMetrics(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration metrics: %w", err)
	}

	log.Printf("📋 Completed successfully - metrics cover %d syncs", metrics.TotalSyncs)
	return metrics, nil
}

func (s *IntegrationsService) GetSyncRuns(
	ctx context.Context,
	id string,
	limit int,
) ([]*models.SyncRun, error) {
	log.Printf("📋 Starting to list sync runs for integration: %s", id)

	if _, err := s.mustGetIntegration(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	runs, err := s.syncRunsRepo.ListSyncRuns(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	log.Printf("📋 Completed successfully - found %d sync runs", len(runs))
	return runs, nil
}

// GetContactRecord reads one reconciled contact by its provider-native ID.
// Reads go straight to the record store and may observe a partially-synced
// state while a sync is in flight.
func (s *IntegrationsService) GetContactRecord(
	ctx context.Context,
	id, recordID string,
) (mo.Option[*models.CRMContact], error) {
	log.Printf("📋 Starting to get contact record %s via integration: %s", recordID, id)

	integration, err := s.crmIntegration(ctx, id)
	if err != nil {
		return mo.None[*models.CRMContact](), err
	}

	contact, err := s.recordsRepo.FindContact(ctx, integration.Type, recordID, integration.ClientID)
	if err != nil {
		return mo.None[*models.CRMContact](), fmt.Errorf("failed to find contact: %w", err)
	}
	if contact == nil {
		log.Printf("📋 Completed successfully - contact record not found")
		return mo.None[*models.CRMContact](), nil
	}

	log.Printf("📋 Completed successfully - found contact record: %s", contact.ID)
	return mo.Some(contact), nil
}

// GetOpportunityRecord reads one reconciled opportunity by its
// provider-native ID.
func (s *IntegrationsService) GetOpportunityRecord(
	ctx context.Context,
	id, recordID string,
) (mo.Option[*models.CRMOpportunity], error) {
	log.Printf("📋 Starting to get opportunity record %s via integration: %s", recordID, id)

	integration, err := s.crmIntegration(ctx, id)
	if err != nil {
		return mo.None[*models.CRMOpportunity](), err
	}

	opportunity, err := s.recordsRepo.FindOpportunity(ctx, integration.Type, recordID, integration.ClientID)
	if err != nil {
		return mo.None[*models.CRMOpportunity](), fmt.Errorf("failed to find opportunity: %w", err)
	}
	if opportunity == nil {
		log.Printf("📋 Completed successfully - opportunity record not found")
		return mo.None[*models.CRMOpportunity](), nil
	}

	log.Printf("📋 Completed successfully - found opportunity record: %s", opportunity.ID)
	return mo.Some(opportunity), nil
}

func (s *IntegrationsService) crmIntegration(
	ctx context.Context,
	id string,
) (*models.Integration, error) {
	integration, err := s.mustGetIntegration(ctx, id)
	if err != nil {
		return nil, err
	}
	if !integration.Type.IsCRM() {
		return nil, core.NewValidationError(
			fmt.Sprintf("integration type %s does not hold CRM records", integration.Type),
		)
	}
	return integration, nil
}

func (s *IntegrationsService) mustGetIntegration(
	ctx context.Context,
	id string,
) (*models.Integration, error) {
	integration, err := s.integrationsRepo.GetIntegrationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	if integration == nil {
		return nil, core.NewNotFoundError(fmt.Sprintf("integration not found: %s", id))
	}
	return integration, nil
}
