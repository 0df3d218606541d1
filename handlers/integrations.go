package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"imbackend/appctx"
	"imbackend/core"
	"imbackend/db"
	"imbackend/models"
	"imbackend/models/api"
	"imbackend/services"
)

type IntegrationsHTTPHandler struct {
	integrationsService services.IntegrationsService
}

func NewIntegrationsHTTPHandler(integrationsService services.IntegrationsService) *IntegrationsHTTPHandler {
	return &IntegrationsHTTPHandler{integrationsService: integrationsService}
}

type CreateIntegrationRequest struct {
	Type        models.IntegrationType `json:"type"`
	Name        string                 `json:"name"`
	Credentials models.SecretMap       `json:"credentials"`
	Settings    models.SecretMap       `json:"settings"`
}

type UpdateIntegrationRequest struct {
	Name        *string                   `json:"name"`
	Status      *models.IntegrationStatus `json:"status"`
	Credentials *models.SecretMap         `json:"credentials"`
	Settings    *models.SecretMap         `json:"settings"`
}

type SyncRequest struct {
	SyncType models.SyncType `json:"syncType"`
}

func (h *IntegrationsHTTPHandler) HandleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	log.Printf("🔌 Create integration request received from %s", r.RemoteAddr)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateIntegrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	integration, err := h.integrationsService.CreateIntegration(
		r.Context(), user.ID, user.ClientID, req.Type, req.Name, req.Credentials, req.Settings,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.SuccessResponse(api.DomainIntegrationToAPI(integration)))
}

func (h *IntegrationsHTTPHandler) HandleListIntegrations(w http.ResponseWriter, r *http.Request) {
	log.Printf("🔌 List integrations request received from %s", r.RemoteAddr)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var typeFilter *models.IntegrationType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := models.IntegrationType(raw)
		typeFilter = &t
	}
	var statusFilter *models.IntegrationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.IntegrationStatus(raw)
		statusFilter = &s
	}

	integrations, err := h.integrationsService.ListIntegrations(r.Context(), user.ClientID, typeFilter, statusFilter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(api.DomainIntegrationsToAPI(integrations)))
}

func (h *IntegrationsHTTPHandler) HandleGetIntegration(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("🔌 Get integration request for: %s", id)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	maybeIntegration, err := h.integrationsService.GetIntegrationByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	integration, present := maybeIntegration.Get()
	if !present || integration.ClientID != user.ClientID {
		writeError(w, http.StatusNotFound, "integration not found")
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(api.DomainIntegrationToAPI(integration)))
}

func (h *IntegrationsHTTPHandler) HandleUpdateIntegration(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("🔌 Update integration request for: %s", id)

	if _, err := h.ownedIntegration(w, r, id); err != nil {
		return
	}

	var req UpdateIntegrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	integration, err := h.integrationsService.UpdateIntegration(r.Context(), id, db.IntegrationUpdate{
		Name:        req.Name,
		Status:      req.Status,
		Credentials: req.Credentials,
		Settings:    req.Settings,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(api.DomainIntegrationToAPI(integration)))
}

func (h *IntegrationsHTTPHandler) HandleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("🔌 Delete integration request for: %s", id)

	if _, err := h.ownedIntegration(w, r, id); err != nil {
		return
	}

	if err := h.integrationsService.DeleteIntegration(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(map[string]string{"id": id, "deleted": "true"}))
}

func (h *IntegrationsHTTPHandler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("🔌 Test connection request for: %s", id)

	if _, err := h.ownedIntegration(w, r, id); err != nil {
		return
	}

	health, err := h.integrationsService.TestConnection(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(health))
}

func (h *IntegrationsHTTPHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("🔌 Sync request for: %s", id)

	if _, err := h.ownedIntegration(w, r, id); err != nil {
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SyncType == "" {
		req.SyncType = models.SyncTypeAll
	}

	result, err := h.integrationsService.Sync(r.Context(), id, req.SyncType)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(result))
}

func (h *IntegrationsHTTPHandler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("🔌 Metrics request for: %s", id)

	if _, err := h.ownedIntegration(w, r, id); err != nil {
		return
	}

	metrics, err := h.integrationsService.GetMetrics(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(metrics))
}

func (h *IntegrationsHTTPHandler) HandleListSyncRuns(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("🔌 Sync runs request for: %s", id)

	if _, err := h.ownedIntegration(w, r, id); err != nil {
		return
	}

	runs, err := h.integrationsService.GetSyncRuns(r.Context(), id, 20)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(runs))
}

func (h *IntegrationsHTTPHandler) HandleGetContactRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, recordID := vars["id"], vars["recordID"]
	log.Printf("🔌 Contact record request for: %s/%s", id, recordID)

	if _, err := h.ownedIntegration(w, r, id); err != nil {
		return
	}

	maybeContact, err := h.integrationsService.GetContactRecord(r.Context(), id, recordID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	contact, present := maybeContact.Get()
	if !present {
		writeError(w, http.StatusNotFound, "contact record not found")
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(contact))
}

func (h *IntegrationsHTTPHandler) HandleGetOpportunityRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, recordID := vars["id"], vars["recordID"]
	log.Printf("🔌 Opportunity record request for: %s/%s", id, recordID)

	if _, err := h.ownedIntegration(w, r, id); err != nil {
		return
	}

	maybeOpportunity, err := h.integrationsService.GetOpportunityRecord(r.Context(), id, recordID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	opportunity, present := maybeOpportunity.Get()
	if !present {
		writeError(w, http.StatusNotFound, "opportunity record not found")
		return
	}

	writeJSON(w, http.StatusOK, api.SuccessResponse(opportunity))
}

// ownedIntegration enforces tenant ownership before any mutating or
// provider-touching operation. It writes the HTTP error itself and returns
// a non-nil error purely as a control-flow signal.
func (h *IntegrationsHTTPHandler) ownedIntegration(
	w http.ResponseWriter,
	r *http.Request,
	id string,
) (*models.Integration, error) {
	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, core.ErrNotFound
	}

	maybeIntegration, err := h.integrationsService.GetIntegrationByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return nil, err
	}
	integration, present := maybeIntegration.Get()
	if !present || integration.ClientID != user.ClientID {
		writeError(w, http.StatusNotFound, "integration not found")
		return nil, core.ErrNotFound
	}

	return integration, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, api.ErrorResponse(message))
}

// writeServiceError maps taxonomy errors to their HTTP status; anything
// unclassified is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	log.Printf("❌ Request failed: %v", err)
	writeError(w, core.StatusCodeOf(err), err.Error())
}
