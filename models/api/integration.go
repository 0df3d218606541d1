package api

import (
	"time"

	"imbackend/models"
)

// Integration is the integration shape returned by the API. Credentials
// are never echoed back; only their presence is.
type Integration struct {
	ID             string                   `json:"id"`
	UserID         string                   `json:"user_id"`
	ClientID       string                   `json:"client_id"`
	Type           models.IntegrationType   `json:"type"`
	Name           string                   `json:"name"`
	Status         models.IntegrationStatus `json:"status"`
	HasCredentials bool                     `json:"has_credentials"`
	Settings       models.SecretMap         `json:"settings"`
	LastSync       *time.Time               `json:"last_sync"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// DomainIntegrationToAPI converts a domain Integration to its API shape
func DomainIntegrationToAPI(integration *models.Integration) *Integration {
	if integration == nil {
		return nil
	}

	return &Integration{
		ID:             integration.ID,
		UserID:         integration.UserID,
		ClientID:       integration.ClientID,
		Type:           integration.Type,
		Name:           integration.Name,
		Status:         integration.Status,
		HasCredentials: len(integration.Credentials) > 0,
		Settings:       integration.Settings,
		LastSync:       integration.LastSync,
		CreatedAt:      integration.CreatedAt,
		UpdatedAt:      integration.UpdatedAt,
	}
}

// DomainIntegrationsToAPI converts a list of domain Integrations
func DomainIntegrationsToAPI(integrations []*models.Integration) []*Integration {
	result := make([]*Integration, 0, len(integrations))
	for _, integration := range integrations {
		result = append(result, DomainIntegrationToAPI(integration))
	}
	return result
}
