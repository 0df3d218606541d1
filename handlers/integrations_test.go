package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbackend/appctx"
	"imbackend/clients"
	"imbackend/core"
	"imbackend/db"
	"imbackend/models"
	"imbackend/models/api"
)

// stubIntegrationsService implements services.IntegrationsService with
// overridable function fields, same shape as the client mocks.
type stubIntegrationsService struct {
	StubCreateIntegration func(
		ctx context.Context,
		userID, clientID string,
		integrationType models.IntegrationType,
		name string,
		credentials, settings models.SecretMap,
	) (*models.Integration, error)
	StubGetIntegrationByID func(ctx context.Context, id string) (mo.Option[*models.Integration], error)
	StubSync               func(ctx context.Context, id string, syncType models.SyncType) (*models.SyncResult, error)
	StubDeleteIntegration  func(ctx context.Context, id string) error
	StubGetContactRecord   func(ctx context.Context, id, recordID string) (mo.Option[*models.CRMContact], error)
	StubGetOpportunityRecord func(
		ctx context.Context,
		id, recordID string,
	) (mo.Option[*models.CRMOpportunity], error)
}

func (s *stubIntegrationsService) CreateIntegration(
	ctx context.Context,
	userID, clientID string,
	integrationType models.IntegrationType,
	name string,
	credentials, settings models.SecretMap,
) (*models.Integration, error) {
	if s.StubCreateIntegration != nil {
		return s.StubCreateIntegration(ctx, userID, clientID, integrationType, name, credentials, settings)
	}
	return &models.Integration{
		ID: core.NewID("in"), UserID: userID, ClientID: clientID,
		Type: integrationType, Name: name, Status: models.IntegrationStatusPending,
		Credentials: credentials, Settings: settings,
	}, nil
}

func (s *stubIntegrationsService) GetIntegrationByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.Integration], error) {
	if s.StubGetIntegrationByID != nil {
		return s.StubGetIntegrationByID(ctx, id)
	}
	return mo.None[*models.Integration](), nil
}

func (s *stubIntegrationsService) ListIntegrations(
	ctx context.Context,
	clientID string,
	integrationType *models.IntegrationType,
	status *models.IntegrationStatus,
) ([]*models.Integration, error) {
	return nil, nil
}

func (s *stubIntegrationsService) UpdateIntegration(
	ctx context.Context,
	id string,
	update db.IntegrationUpdate,
) (*models.Integration, error) {
	return nil, core.NewNotFoundError("integration not found: " + id)
}

func (s *stubIntegrationsService) DeleteIntegration(ctx context.Context, id string) error {
	if s.StubDeleteIntegration != nil {
		return s.StubDeleteIntegration(ctx, id)
	}
	return nil
}

func (s *stubIntegrationsService) TestConnection(ctx context.Context, id string) (*clients.HealthStatus, error) {
	return &clients.HealthStatus{Status: clients.HealthStatusHealthy, Details: map[string]any{}}, nil
}

func (s *stubIntegrationsService) Sync(
	ctx context.Context,
	id string,
	syncType models.SyncType,
) (*models.SyncResult, error) {
	if s.StubSync != nil {
		return s.StubSync(ctx, id, syncType)
	}
	return &models.SyncResult{Success: true, Errors: []string{}}, nil
}

func (s *stubIntegrationsService) GetMetrics(ctx context.Context, id string) (*models.IntegrationMetrics, error) {
	return &models.IntegrationMetrics{}, nil
}

func (s *stubIntegrationsService) GetSyncRuns(
	ctx context.Context,
	id string,
	limit int,
) ([]*models.SyncRun, error) {
	return nil, nil
}

func (s *stubIntegrationsService) GetContactRecord(
	ctx context.Context,
	id, recordID string,
) (mo.Option[*models.CRMContact], error) {
	if s.StubGetContactRecord != nil {
		return s.StubGetContactRecord(ctx, id, recordID)
	}
	return mo.None[*models.CRMContact](), nil
}

func (s *stubIntegrationsService) GetOpportunityRecord(
	ctx context.Context,
	id, recordID string,
) (mo.Option[*models.CRMOpportunity], error) {
	if s.StubGetOpportunityRecord != nil {
		return s.StubGetOpportunityRecord(ctx, id, recordID)
	}
	return mo.None[*models.CRMOpportunity](), nil
}

func testUser() *models.User {
	return &models.User{ID: "u_1", ClientID: "cl_1"}
}

func ownedIntegrationStub(integration *models.Integration) *stubIntegrationsService {
	return &stubIntegrationsService{
		StubGetIntegrationByID: func(ctx context.Context, id string) (mo.Option[*models.Integration], error) {
			if integration != nil && integration.ID == id {
				return mo.Some(integration), nil
			}
			return mo.None[*models.Integration](), nil
		},
	}
}

func doRequest(
	t *testing.T,
	handler http.HandlerFunc,
	method, target string,
	vars map[string]string,
	body any,
	user *models.User,
) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	if user != nil {
		req = req.WithContext(appctx.SetUser(req.Context(), user))
	}

	recorder := httptest.NewRecorder()
	handler(recorder, req)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) api.Response {
	t.Helper()
	var resp api.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp
}

func TestHandleCreateIntegration_RequiresAuth(t *testing.T) {
	handler := NewIntegrationsHTTPHandler(&stubIntegrationsService{})

	recorder := doRequest(t, handler.HandleCreateIntegration,
		http.MethodPost, "/api/v1/integrations", nil,
		CreateIntegrationRequest{Type: models.IntegrationTypeHubSpot, Name: "CRM"}, nil)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	resp := decodeResponse(t, recorder)
	assert.False(t, resp.Success)
	assert.Equal(t, "authentication required", resp.Error)
}

func TestHandleCreateIntegration_Success(t *testing.T) {
	handler := NewIntegrationsHTTPHandler(&stubIntegrationsService{})

	recorder := doRequest(t, handler.HandleCreateIntegration,
		http.MethodPost, "/api/v1/integrations", nil,
		CreateIntegrationRequest{
			Type:        models.IntegrationTypeHubSpot,
			Name:        "Primary CRM",
			Credentials: models.SecretMap{"accessToken": "tok"},
		}, testUser())

	assert.Equal(t, http.StatusCreated, recorder.Code)
	resp := decodeResponse(t, recorder)
	assert.True(t, resp.Success)

	// Credentials must never be echoed back.
	assert.NotContains(t, recorder.Body.String(), "tok")
	assert.Contains(t, recorder.Body.String(), `"has_credentials":true`)
}

func TestHandleCreateIntegration_MalformedBody(t *testing.T) {
	handler := NewIntegrationsHTTPHandler(&stubIntegrationsService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations", bytes.NewReader([]byte("{not json")))
	req = req.WithContext(appctx.SetUser(req.Context(), testUser()))
	recorder := httptest.NewRecorder()
	handler.HandleCreateIntegration(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleCreateIntegration_ServiceValidationMapsTo400(t *testing.T) {
	service := &stubIntegrationsService{
		StubCreateIntegration: func(
			ctx context.Context,
			userID, clientID string,
			integrationType models.IntegrationType,
			name string,
			credentials, settings models.SecretMap,
		) (*models.Integration, error) {
			return nil, core.NewValidationError("invalid integration type: crm_dynamics")
		},
	}
	handler := NewIntegrationsHTTPHandler(service)

	recorder := doRequest(t, handler.HandleCreateIntegration,
		http.MethodPost, "/api/v1/integrations", nil,
		CreateIntegrationRequest{Type: "crm_dynamics", Name: "CRM"}, testUser())

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	resp := decodeResponse(t, recorder)
	assert.Contains(t, resp.Error, "invalid integration type")
}

func TestHandleGetIntegration_TenantMismatchIs404(t *testing.T) {
	integration := &models.Integration{
		ID:       core.NewID("in"),
		ClientID: "cl_other",
		Type:     models.IntegrationTypeHubSpot,
	}
	handler := NewIntegrationsHTTPHandler(ownedIntegrationStub(integration))

	recorder := doRequest(t, handler.HandleGetIntegration,
		http.MethodGet, "/api/v1/integrations/"+integration.ID,
		map[string]string{"id": integration.ID}, nil, testUser())

	// Another tenant's integration is indistinguishable from a missing one.
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHandleGetIntegration_Found(t *testing.T) {
	integration := &models.Integration{
		ID:          core.NewID("in"),
		ClientID:    "cl_1",
		Type:        models.IntegrationTypeHubSpot,
		Name:        "Primary CRM",
		Status:      models.IntegrationStatusActive,
		Credentials: models.SecretMap{"accessToken": "tok"},
	}
	handler := NewIntegrationsHTTPHandler(ownedIntegrationStub(integration))

	recorder := doRequest(t, handler.HandleGetIntegration,
		http.MethodGet, "/api/v1/integrations/"+integration.ID,
		map[string]string{"id": integration.ID}, nil, testUser())

	assert.Equal(t, http.StatusOK, recorder.Code)
	resp := decodeResponse(t, recorder)
	assert.True(t, resp.Success)
	assert.NotContains(t, recorder.Body.String(), "tok")
}

func TestHandleSync_DefaultsToAll(t *testing.T) {
	integration := &models.Integration{
		ID: core.NewID("in"), ClientID: "cl_1", Type: models.IntegrationTypeHubSpot,
	}
	service := ownedIntegrationStub(integration)
	var requested models.SyncType
	service.StubSync = func(ctx context.Context, id string, syncType models.SyncType) (*models.SyncResult, error) {
		requested = syncType
		return &models.SyncResult{Success: true, Errors: []string{}}, nil
	}
	handler := NewIntegrationsHTTPHandler(service)

	recorder := doRequest(t, handler.HandleSync,
		http.MethodPost, "/api/v1/integrations/"+integration.ID+"/sync",
		map[string]string{"id": integration.ID}, map[string]any{}, testUser())

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, models.SyncTypeAll, requested)
}

func TestHandleSync_InvalidSyncTypeMapsTo400(t *testing.T) {
	integration := &models.Integration{
		ID: core.NewID("in"), ClientID: "cl_1", Type: models.IntegrationTypeHubSpot,
	}
	service := ownedIntegrationStub(integration)
	service.StubSync = func(ctx context.Context, id string, syncType models.SyncType) (*models.SyncResult, error) {
		return nil, core.NewValidationError("Invalid sync type: everything")
	}
	handler := NewIntegrationsHTTPHandler(service)

	recorder := doRequest(t, handler.HandleSync,
		http.MethodPost, "/api/v1/integrations/"+integration.ID+"/sync",
		map[string]string{"id": integration.ID},
		SyncRequest{SyncType: "everything"}, testUser())

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	resp := decodeResponse(t, recorder)
	assert.Contains(t, resp.Error, "Invalid sync type")
}

func TestHandleSync_ExternalServiceFailureMapsTo503(t *testing.T) {
	integration := &models.Integration{
		ID: core.NewID("in"), ClientID: "cl_1", Type: models.IntegrationTypeHubSpot,
	}
	service := ownedIntegrationStub(integration)
	service.StubSync = func(ctx context.Context, id string, syncType models.SyncType) (*models.SyncResult, error) {
		return nil, core.NewExternalServiceError("HubSpot list contacts failed", nil)
	}
	handler := NewIntegrationsHTTPHandler(service)

	recorder := doRequest(t, handler.HandleSync,
		http.MethodPost, "/api/v1/integrations/"+integration.ID+"/sync",
		map[string]string{"id": integration.ID},
		SyncRequest{SyncType: models.SyncTypeContacts}, testUser())

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestHandleDeleteIntegration_UnknownIDIs404(t *testing.T) {
	handler := NewIntegrationsHTTPHandler(ownedIntegrationStub(nil))

	id := core.NewID("in")
	recorder := doRequest(t, handler.HandleDeleteIntegration,
		http.MethodDelete, "/api/v1/integrations/"+id,
		map[string]string{"id": id}, nil, testUser())

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHandleGetContactRecord_Found(t *testing.T) {
	integration := &models.Integration{
		ID: core.NewID("in"), ClientID: "cl_1", Type: models.IntegrationTypeHubSpot,
	}
	service := ownedIntegrationStub(integration)
	service.StubGetContactRecord = func(
		ctx context.Context,
		id, recordID string,
	) (mo.Option[*models.CRMContact], error) {
		return mo.Some(&models.CRMContact{
			ID: recordID, Email: "ada@example.com", Source: models.IntegrationTypeHubSpot,
		}), nil
	}
	handler := NewIntegrationsHTTPHandler(service)

	recorder := doRequest(t, handler.HandleGetContactRecord,
		http.MethodGet, "/api/v1/integrations/"+integration.ID+"/records/contacts/101",
		map[string]string{"id": integration.ID, "recordID": "101"}, nil, testUser())

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "ada@example.com")
}

func TestHandleGetContactRecord_UnknownRecordIs404(t *testing.T) {
	integration := &models.Integration{
		ID: core.NewID("in"), ClientID: "cl_1", Type: models.IntegrationTypeHubSpot,
	}
	handler := NewIntegrationsHTTPHandler(ownedIntegrationStub(integration))

	recorder := doRequest(t, handler.HandleGetContactRecord,
		http.MethodGet, "/api/v1/integrations/"+integration.ID+"/records/contacts/999",
		map[string]string{"id": integration.ID, "recordID": "999"}, nil, testUser())

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHandleGetOpportunityRecord_TenantMismatchIs404(t *testing.T) {
	integration := &models.Integration{
		ID: core.NewID("in"), ClientID: "cl_other", Type: models.IntegrationTypeHubSpot,
	}
	service := ownedIntegrationStub(integration)
	service.StubGetOpportunityRecord = func(
		ctx context.Context,
		id, recordID string,
	) (mo.Option[*models.CRMOpportunity], error) {
		t.Fatal("record lookup must not run for another tenant's integration")
		return mo.None[*models.CRMOpportunity](), nil
	}
	handler := NewIntegrationsHTTPHandler(service)

	recorder := doRequest(t, handler.HandleGetOpportunityRecord,
		http.MethodGet, "/api/v1/integrations/"+integration.ID+"/records/opportunities/42",
		map[string]string{"id": integration.ID, "recordID": "42"}, nil, testUser())

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHandleGetOpportunityRecord_Found(t *testing.T) {
	integration := &models.Integration{
		ID: core.NewID("in"), ClientID: "cl_1", Type: models.IntegrationTypePipedrive,
	}
	service := ownedIntegrationStub(integration)
	service.StubGetOpportunityRecord = func(
		ctx context.Context,
		id, recordID string,
	) (mo.Option[*models.CRMOpportunity], error) {
		return mo.Some(&models.CRMOpportunity{
			ID: recordID, Name: "Enterprise renewal", Source: models.IntegrationTypePipedrive,
		}), nil
	}
	handler := NewIntegrationsHTTPHandler(service)

	recorder := doRequest(t, handler.HandleGetOpportunityRecord,
		http.MethodGet, "/api/v1/integrations/"+integration.ID+"/records/opportunities/42",
		map[string]string{"id": integration.ID, "recordID": "42"}, nil, testUser())

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Enterprise renewal")
}
