package integrations

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/db"
	"imbackend/models"
)

type fakeIntegrationsRepo struct {
	integrations map[string]*models.Integration
	statusLog    []models.IntegrationStatus
	lastSyncSet  bool
}

func newFakeIntegrationsRepo() *fakeIntegrationsRepo {
	return &fakeIntegrationsRepo{integrations: map[string]*models.Integration{}}
}

func (r *fakeIntegrationsRepo) CreateIntegration(
	ctx context.Context,
	integration *models.Integration,
) (*models.Integration, error) {
	stored := *integration
	stored.ID = core.NewID("in")
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.integrations[stored.ID] = &stored
	return &stored, nil
}

func (r *fakeIntegrationsRepo) GetIntegrationByID(ctx context.Context, id string) (*models.Integration, error) {
	return r.integrations[id], nil
}

func (r *fakeIntegrationsRepo) ListIntegrations(
	ctx context.Context,
	clientID string,
	integrationType *models.IntegrationType,
	status *models.IntegrationStatus,
) ([]*models.Integration, error) {
	var out []*models.Integration
	for _, integration := range r.integrations {
		if integration.ClientID != clientID {
			continue
		}
		if integrationType != nil && integration.Type != *integrationType {
			continue
		}
		if status != nil && integration.Status != *status {
			continue
		}
		out = append(out, integration)
	}
	return out, nil
}

func (r *fakeIntegrationsRepo) UpdateIntegration(
	ctx context.Context,
	id string,
	update db.IntegrationUpdate,
) (*models.Integration, error) {
	integration, ok := r.integrations[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if update.Name != nil {
		integration.Name = *update.Name
	}
	if update.Status != nil {
		integration.Status = *update.Status
	}
	if update.Credentials != nil {
		integration.Credentials = *update.Credentials
	}
	return integration, nil
}

func (r *fakeIntegrationsRepo) UpdateIntegrationStatus(
	ctx context.Context,
	id string,
	status models.IntegrationStatus,
) error {
	integration, ok := r.integrations[id]
	if !ok {
		return core.ErrNotFound
	}
	integration.Status = status
	r.statusLog = append(r.statusLog, status)
	return nil
}

func (r *fakeIntegrationsRepo) UpdateLastSync(ctx context.Context, id string, lastSync time.Time) error {
	integration, ok := r.integrations[id]
	if !ok {
		return core.ErrNotFound
	}
	integration.LastSync = &lastSync
	r.lastSyncSet = true
	return nil
}

func (r *fakeIntegrationsRepo) DeleteIntegration(ctx context.Context, id string) error {
	if _, ok := r.integrations[id]; !ok {
		return core.ErrNotFound
	}
	delete(r.integrations, id)
	return nil
}

type fakeSyncRunsRepo struct {
	runs      []*models.SyncRun
	createErr error
}

func (r *fakeSyncRunsRepo) CreateSyncRun(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	stored := *run
	stored.ID = core.NewID("sr")
	stored.CreatedAt = time.Now().UTC()
	r.runs = append(r.runs, &stored)
	return &stored, nil
}

func (r *fakeSyncRunsRepo) ListSyncRuns(
	ctx context.Context,
	integrationID string,
	limit int,
) ([]*models.SyncRun, error) {
	var out []*models.SyncRun
	for _, run := range r.runs {
		if run.IntegrationID == integrationID {
			out = append(out, run)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSyncRunsRepo) GetIntegrationMetrics(
	ctx context.Context,
	integrationID string,
) (*models.IntegrationMetrics, error) {
	metrics := &models.IntegrationMetrics{}
	for _, run := range r.runs {
		if run.IntegrationID != integrationID {
			continue
		}
		metrics.TotalSyncs++
		if run.Success {
			metrics.SuccessfulSyncs++
		} else {
			metrics.FailedSyncs++
		}
		metrics.RecordsProcessed += run.RecordsProcessed
	}
	return metrics, nil
}

type fakeRecordsRepo struct {
	contacts      map[string]*models.CRMContact
	opportunities map[string]*models.CRMOpportunity
}

func (r *fakeRecordsRepo) FindContact(
	ctx context.Context,
	source models.IntegrationType,
	crmID, clientID string,
) (*models.CRMContact, error) {
	contact, ok := r.contacts[crmID]
	if !ok || contact.Source != source || clientID != "cl_1" {
		return nil, nil
	}
	return contact, nil
}

func (r *fakeRecordsRepo) FindOpportunity(
	ctx context.Context,
	source models.IntegrationType,
	crmID, clientID string,
) (*models.CRMOpportunity, error) {
	opportunity, ok := r.opportunities[crmID]
	if !ok || opportunity.Source != source || clientID != "cl_1" {
		return nil, nil
	}
	return opportunity, nil
}

// passthroughTxManager runs the function without a real transaction so the
// fakes observe every write.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeSyncEngine returns canned per-kind results so status transitions and
// merge math can be asserted without touching a provider.
type fakeSyncEngine struct {
	contactsResult      *models.SyncResult
	opportunitiesResult *models.SyncResult
	contactsErr         error
}

func (e *fakeSyncEngine) SyncContacts(
	ctx context.Context,
	crm clients.CRMClient,
	clientID string,
) (*models.SyncResult, error) {
	if e.contactsErr != nil {
		return nil, e.contactsErr
	}
	return e.contactsResult, nil
}

func (e *fakeSyncEngine) SyncOpportunities(
	ctx context.Context,
	crm clients.CRMClient,
	clientID string,
) (*models.SyncResult, error) {
	return e.opportunitiesResult, nil
}

func mockCRMFactory(crm clients.CRMClient, err error) CRMClientFactory {
	return func(models.IntegrationType, models.SecretMap) (clients.CRMClient, error) {
		return crm, err
	}
}

func mockCommFactory(comm clients.CommunicationClient, err error) CommunicationClientFactory {
	return func(models.IntegrationType, models.SecretMap) (clients.CommunicationClient, error) {
		return comm, err
	}
}

func newTestService(
	repo *fakeIntegrationsRepo,
	runs *fakeSyncRunsRepo,
	engine *fakeSyncEngine,
	crmFactory CRMClientFactory,
	commFactory CommunicationClientFactory,
) *IntegrationsService {
	return newTestServiceWithRecords(repo, &fakeRecordsRepo{}, runs, engine, crmFactory, commFactory)
}

func newTestServiceWithRecords(
	repo *fakeIntegrationsRepo,
	records *fakeRecordsRepo,
	runs *fakeSyncRunsRepo,
	engine *fakeSyncEngine,
	crmFactory CRMClientFactory,
	commFactory CommunicationClientFactory,
) *IntegrationsService {
	if runs == nil {
		runs = &fakeSyncRunsRepo{}
	}
	if engine == nil {
		engine = &fakeSyncEngine{}
	}
	if crmFactory == nil {
		crmFactory = mockCRMFactory(clients.NewMockCRMClient(), nil)
	}
	if commFactory == nil {
		commFactory = mockCommFactory(clients.NewMockCommunicationClient(), nil)
	}
	return NewIntegrationsService(
		repo, records, runs, engine, passthroughTxManager{}, crmFactory, commFactory,
	)
}

func seedIntegration(repo *fakeIntegrationsRepo, integrationType models.IntegrationType) *models.Integration {
	integration, _ := repo.CreateIntegration(context.Background(), &models.Integration{
		UserID:      "u_1",
		ClientID:    "cl_1",
		Type:        integrationType,
		Name:        "Primary CRM",
		Status:      models.IntegrationStatusPending,
		Credentials: models.SecretMap{"accessToken": "tok"},
	})
	return integration
}

func TestCreateIntegration_StartsPending(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	service := newTestService(repo, nil, nil, nil, nil)

	created, err := service.CreateIntegration(
		context.Background(),
		"u_1", "cl_1",
		models.IntegrationTypeHubSpot,
		"Primary CRM",
		models.SecretMap{"accessToken": "tok"},
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, models.IntegrationStatusPending, created.Status)
	assert.True(t, core.IsValidULID(created.ID))
}

func TestCreateIntegration_Validation(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	service := newTestService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	creds := models.SecretMap{"accessToken": "tok"}

	tests := []struct {
		name string
		call func() error
	}{
		{"unknown type", func() error {
			_, err := service.CreateIntegration(ctx, "u_1", "cl_1", "crm_dynamics", "n", creds, nil)
			return err
		}},
		{"empty name", func() error {
			_, err := service.CreateIntegration(ctx, "u_1", "cl_1", models.IntegrationTypeHubSpot, "", creds, nil)
			return err
		}},
		{"missing tenant", func() error {
			_, err := service.CreateIntegration(ctx, "u_1", "", models.IntegrationTypeHubSpot, "n", creds, nil)
			return err
		}},
		{"empty credentials", func() error {
			_, err := service.CreateIntegration(ctx, "u_1", "cl_1", models.IntegrationTypeHubSpot, "n", nil, nil)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, core.StatusCodeOf(err))
		})
	}
}

func TestGetIntegrationByID_RejectsMalformedID(t *testing.T) {
	service := newTestService(newFakeIntegrationsRepo(), nil, nil, nil, nil)

	_, err := service.GetIntegrationByID(context.Background(), "not-a-ulid")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, core.StatusCodeOf(err))
}

func TestGetIntegrationByID_NotFoundIsNone(t *testing.T) {
	service := newTestService(newFakeIntegrationsRepo(), nil, nil, nil, nil)

	maybeIntegration, err := service.GetIntegrationByID(context.Background(), core.NewID("in"))
	require.NoError(t, err)
	assert.False(t, maybeIntegration.IsPresent())
}

func TestTestConnection_HealthyPromotesToActive(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)

	crm := clients.NewMockCRMClient()
	crm.MockHealthCheck = func(ctx context.Context) *clients.HealthStatus {
		return &clients.HealthStatus{Status: clients.HealthStatusHealthy, Details: map[string]any{}}
	}
	service := newTestService(repo, nil, nil, mockCRMFactory(crm, nil), nil)

	health, err := service.TestConnection(context.Background(), integration.ID)
	require.NoError(t, err)
	assert.Equal(t, clients.HealthStatusHealthy, health.Status)
	assert.Equal(t, models.IntegrationStatusActive, repo.integrations[integration.ID].Status)
}

func TestTestConnection_UnhealthyDemotesToError(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)

	crm := clients.NewMockCRMClient()
	crm.MockHealthCheck = func(ctx context.Context) *clients.HealthStatus {
		return &clients.HealthStatus{Status: clients.HealthStatusUnhealthy, Details: map[string]any{}}
	}
	service := newTestService(repo, nil, nil, mockCRMFactory(crm, nil), nil)

	health, err := service.TestConnection(context.Background(), integration.ID)
	require.NoError(t, err)
	assert.Equal(t, clients.HealthStatusUnhealthy, health.Status)
	assert.Equal(t, models.IntegrationStatusError, repo.integrations[integration.ID].Status)
}

func TestTestConnection_BadCredentialShapeIsUnhealthyNotError(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeSalesforce)

	factory := mockCRMFactory(nil, core.NewAuthenticationError("missing required Salesforce credentials"))
	service := newTestService(repo, nil, nil, factory, nil)

	health, err := service.TestConnection(context.Background(), integration.ID)
	require.NoError(t, err)
	assert.Equal(t, clients.HealthStatusUnhealthy, health.Status)
	assert.Equal(t, models.IntegrationStatusError, repo.integrations[integration.ID].Status)
}

func TestSync_InvalidSyncType(t *testing.T) {
	service := newTestService(newFakeIntegrationsRepo(), nil, nil, nil, nil)

	_, err := service.Sync(context.Background(), core.NewID("in"), "everything")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, core.StatusCodeOf(err))
	assert.Contains(t, err.Error(), "Invalid sync type")
}

func TestSync_CommunicationIntegrationRejected(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeSlack)
	service := newTestService(repo, nil, nil, nil, nil)

	_, err := service.Sync(context.Background(), integration.ID, models.SyncTypeContacts)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, core.StatusCodeOf(err))
	assert.Contains(t, err.Error(), "does not support record sync")
}

func TestSync_CompletedRunGoesActive(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)
	runs := &fakeSyncRunsRepo{}
	engine := &fakeSyncEngine{
		contactsResult: &models.SyncResult{
			Success: true, RecordsProcessed: 10, RecordsCreated: 10, Errors: []string{},
		},
	}
	service := newTestService(repo, runs, engine, nil, nil)

	result, err := service.Sync(context.Background(), integration.ID, models.SyncTypeContacts)
	require.NoError(t, err)
	assert.Equal(t, 10, result.RecordsProcessed)

	assert.Equal(t,
		[]models.IntegrationStatus{models.IntegrationStatusSyncing, models.IntegrationStatusActive},
		repo.statusLog)
	assert.True(t, repo.lastSyncSet)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, models.SyncTypeContacts, runs.runs[0].SyncType)
	assert.Equal(t, 10, runs.runs[0].RecordsProcessed)
}

func TestSync_PartialFailuresStillGoActive(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)
	engine := &fakeSyncEngine{
		contactsResult: &models.SyncResult{
			Success:          false,
			RecordsProcessed: 10,
			RecordsCreated:   7,
			RecordsFailed:    3,
			Errors:           []string{"contact c-1: invalid contact email"},
		},
	}
	service := newTestService(repo, nil, engine, nil, nil)

	result, err := service.Sync(context.Background(), integration.ID, models.SyncTypeContacts)
	require.NoError(t, err)
	assert.False(t, result.Success)

	// Partial failures are a completed run, not an aborted one.
	assert.Equal(t, models.IntegrationStatusActive, repo.integrations[integration.ID].Status)
}

func TestSync_AbortedRunGoesError(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)
	runs := &fakeSyncRunsRepo{}
	engine := &fakeSyncEngine{
		contactsErr: core.NewSyncError("failed to fetch contacts page at cursor \"\"", fmt.Errorf("boom")),
	}
	service := newTestService(repo, runs, engine, nil, nil)

	_, err := service.Sync(context.Background(), integration.ID, models.SyncTypeContacts)
	require.Error(t, err)
	assert.Equal(t, models.IntegrationStatusError, repo.integrations[integration.ID].Status)
	assert.False(t, repo.lastSyncSet)

	// The aborted run is still recorded for the audit trail, cause included.
	require.Len(t, runs.runs, 1)
	assert.False(t, runs.runs[0].Success)
	require.Len(t, runs.runs[0].Errors, 1)
	assert.Contains(t, runs.runs[0].Errors[0], "failed to fetch contacts page")
}

func TestSync_BookkeepingFailureStillGoesActive(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)
	runs := &fakeSyncRunsRepo{createErr: fmt.Errorf("disk full")}
	engine := &fakeSyncEngine{
		contactsResult: &models.SyncResult{
			Success: true, RecordsProcessed: 3, RecordsCreated: 3, Errors: []string{},
		},
	}
	service := newTestService(repo, runs, engine, nil, nil)

	// A failed audit write must not fail the sync or strand the
	// integration in syncing.
	result, err := service.Sync(context.Background(), integration.ID, models.SyncTypeContacts)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.IntegrationStatusActive, repo.integrations[integration.ID].Status)
}

func TestSync_AllMergesBothPasses(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)
	runs := &fakeSyncRunsRepo{}
	engine := &fakeSyncEngine{
		contactsResult: &models.SyncResult{
			Success: true, RecordsProcessed: 100, RecordsCreated: 60, RecordsUpdated: 40,
			Errors: []string{}, Duration: 120,
		},
		opportunitiesResult: &models.SyncResult{
			Success: false, RecordsProcessed: 20, RecordsCreated: 15, RecordsFailed: 5,
			Errors: []string{"opportunity d-9: opportunity name is required"}, Duration: 30,
		},
	}
	service := newTestService(repo, runs, engine, nil, nil)

	result, err := service.Sync(context.Background(), integration.ID, models.SyncTypeAll)
	require.NoError(t, err)

	assert.Equal(t, 120, result.RecordsProcessed)
	assert.Equal(t, 75, result.RecordsCreated)
	assert.Equal(t, 40, result.RecordsUpdated)
	assert.Equal(t, 5, result.RecordsFailed)
	assert.False(t, result.Success)
	assert.Equal(t, int64(150), result.Duration)
	require.Len(t, result.Errors, 1)

	// One merged audit row, not one per pass.
	require.Len(t, runs.runs, 1)
	assert.Equal(t, models.SyncTypeAll, runs.runs[0].SyncType)
	assert.Equal(t, 120, runs.runs[0].RecordsProcessed)
}

func TestSync_AuthenticationFailureAborts(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)

	crm := clients.NewMockCRMClient()
	crm.MockAuthenticate = func(ctx context.Context) error {
		return core.NewAuthenticationError("token revoked")
	}
	service := newTestService(repo, nil, nil, mockCRMFactory(crm, nil), nil)

	_, err := service.Sync(context.Background(), integration.ID, models.SyncTypeContacts)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, core.StatusCodeOf(err))
	assert.Equal(t, models.IntegrationStatusError, repo.integrations[integration.ID].Status)
}

func TestGetSyncRuns_ClampsLimit(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)
	runs := &fakeSyncRunsRepo{}
	for i := 0; i < 30; i++ {
		runs.CreateSyncRun(context.Background(), &models.SyncRun{
			IntegrationID: integration.ID,
			ClientID:      "cl_1",
			SyncType:      models.SyncTypeContacts,
			Success:       true,
		})
	}
	service := newTestService(repo, runs, nil, nil, nil)

	listed, err := service.GetSyncRuns(context.Background(), integration.ID, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 20)

	listed, err = service.GetSyncRuns(context.Background(), integration.ID, 5)
	require.NoError(t, err)
	assert.Len(t, listed, 5)
}

func TestGetMetrics_UnknownIntegration(t *testing.T) {
	service := newTestService(newFakeIntegrationsRepo(), nil, nil, nil, nil)

	_, err := service.GetMetrics(context.Background(), core.NewID("in"))
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, core.StatusCodeOf(err))
}

func TestGetContactRecord_Found(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)
	records := &fakeRecordsRepo{contacts: map[string]*models.CRMContact{
		"101": {ID: "101", Email: "ada@example.com", Source: models.IntegrationTypeHubSpot},
	}}
	service := newTestServiceWithRecords(repo, records, nil, nil, nil, nil)

	maybeContact, err := service.GetContactRecord(context.Background(), integration.ID, "101")
	require.NoError(t, err)
	contact, present := maybeContact.Get()
	require.True(t, present)
	assert.Equal(t, "ada@example.com", contact.Email)
}

func TestGetContactRecord_UnknownRecordIsNone(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeHubSpot)
	service := newTestService(repo, nil, nil, nil, nil)

	maybeContact, err := service.GetContactRecord(context.Background(), integration.ID, "999")
	require.NoError(t, err)
	assert.False(t, maybeContact.IsPresent())
}

func TestGetOpportunityRecord_Found(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypePipedrive)
	records := &fakeRecordsRepo{opportunities: map[string]*models.CRMOpportunity{
		"42": {ID: "42", Name: "Enterprise renewal", Source: models.IntegrationTypePipedrive},
	}}
	service := newTestServiceWithRecords(repo, records, nil, nil, nil, nil)

	maybeOpportunity, err := service.GetOpportunityRecord(context.Background(), integration.ID, "42")
	require.NoError(t, err)
	opportunity, present := maybeOpportunity.Get()
	require.True(t, present)
	assert.Equal(t, "Enterprise renewal", opportunity.Name)
}

func TestGetContactRecord_CommunicationIntegrationRejected(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeSlack)
	service := newTestService(repo, nil, nil, nil, nil)

	_, err := service.GetContactRecord(context.Background(), integration.ID, "101")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, core.StatusCodeOf(err))
	assert.Contains(t, err.Error(), "does not hold CRM records")
}

// rotatingCommClient stands in for an adapter that rotates tokens during
// authentication, the way the Teams refresh grant does.
type rotatingCommClient struct {
	*clients.MockCommunicationClient
	accessToken  string
	refreshToken string
}

func (c *rotatingCommClient) Tokens() (string, string) {
	return c.accessToken, c.refreshToken
}

func TestTestConnection_PersistsRotatedTokens(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration, _ := repo.CreateIntegration(context.Background(), &models.Integration{
		UserID:   "u_1",
		ClientID: "cl_1",
		Type:     models.IntegrationTypeTeams,
		Name:     "Teams",
		Status:   models.IntegrationStatusPending,
		Credentials: models.SecretMap{
			"clientId": "app", "clientSecret": "secret", "tenantId": "tenant",
			"refreshToken": "refresh-1",
		},
	})

	comm := &rotatingCommClient{
		MockCommunicationClient: clients.NewMockCommunicationClient(),
		accessToken:             "fresh-access",
		refreshToken:            "refresh-2",
	}
	service := newTestService(repo, nil, nil, nil, mockCommFactory(comm, nil))

	_, err := service.TestConnection(context.Background(), integration.ID)
	require.NoError(t, err)

	stored := repo.integrations[integration.ID].Credentials
	assert.Equal(t, "refresh-2", stored["refreshToken"])
	assert.Equal(t, "fresh-access", stored["accessToken"])
	assert.Equal(t, "app", stored["clientId"])
}

func TestPersistRotatedTokens_UnchangedTokensLeaveCredentialsAlone(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration, _ := repo.CreateIntegration(context.Background(), &models.Integration{
		UserID:   "u_1",
		ClientID: "cl_1",
		Type:     models.IntegrationTypeTeams,
		Name:     "Teams",
		Credentials: models.SecretMap{
			"clientId": "app", "clientSecret": "secret", "tenantId": "tenant",
			"accessToken": "same-access", "refreshToken": "same-refresh",
		},
	})
	before := repo.integrations[integration.ID].Credentials

	comm := &rotatingCommClient{
		MockCommunicationClient: clients.NewMockCommunicationClient(),
		accessToken:             "same-access",
		refreshToken:            "same-refresh",
	}
	PersistRotatedTokens(context.Background(), repo, integration, comm)

	assert.Equal(t, before, repo.integrations[integration.ID].Credentials)
}

func TestPersistRotatedTokens_NonRotatingClientIsNoop(t *testing.T) {
	repo := newFakeIntegrationsRepo()
	integration := seedIntegration(repo, models.IntegrationTypeSlack)
	before := repo.integrations[integration.ID].Credentials

	PersistRotatedTokens(context.Background(), repo, integration, clients.NewMockCommunicationClient())

	assert.Equal(t, before, repo.integrations[integration.ID].Credentials)
}
