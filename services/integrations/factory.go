package integrations

import (
	"imbackend/clients"
	"imbackend/clients/discord"
	"imbackend/clients/hubspot"
	"imbackend/clients/pipedrive"
	"imbackend/clients/salesforce"
	"imbackend/clients/slack"
	"imbackend/clients/teams"
	"imbackend/core"
	"imbackend/models"
)

// CRMClientFactory builds a CRM adapter from an integration's stored
// credentials. Injected so tests can substitute mocks.
type CRMClientFactory func(
	integrationType models.IntegrationType,
	credentials models.SecretMap,
) (clients.CRMClient, error)

// CommunicationClientFactory builds a communication adapter.
type CommunicationClientFactory func(
	integrationType models.IntegrationType,
	credentials models.SecretMap,
) (clients.CommunicationClient, error)

// NewCRMClient is the production CRM factory: a closed switch over the
// supported CRM providers.
func NewCRMClient(
	integrationType models.IntegrationType,
	credentials models.SecretMap,
) (clients.CRMClient, error) {
	switch integrationType {
	case models.IntegrationTypeSalesforce:
		return salesforce.NewClient(credentials)
	case models.IntegrationTypeHubSpot:
		return hubspot.NewClient(credentials)
	case models.IntegrationTypePipedrive:
		return pipedrive.NewClient(credentials)
	default:
		return nil, core.NewValidationError("unsupported CRM integration type: " + string(integrationType))
	}
}

// NewCommunicationClient is the production communication factory.
func NewCommunicationClient(
	integrationType models.IntegrationType,
	credentials models.SecretMap,
) (clients.CommunicationClient, error) {
	switch integrationType {
	case models.IntegrationTypeSlack:
		return slack.NewClient(credentials)
	case models.IntegrationTypeDiscord:
		return discord.NewClient(credentials)
	case models.IntegrationTypeTeams:
		return teams.NewClient(credentials)
	default:
		return nil, core.NewValidationError("unsupported communication integration type: " + string(integrationType))
	}
}
