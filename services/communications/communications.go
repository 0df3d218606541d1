package communications

import (
	"context"
	"fmt"
	"log"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/models"
	"imbackend/services/integrations"
)

// CommunicationsService exposes message and channel operations over a
// tenant's Slack/Discord/Teams integrations. Every call builds and
// authenticates a fresh adapter from stored credentials; nothing is
// bulk-synced.
type CommunicationsService struct {
	integrationsRepo integrations.IntegrationsRepository
	commFactory      integrations.CommunicationClientFactory
}

func NewCommunicationsService(
	integrationsRepo integrations.IntegrationsRepository,
	commFactory integrations.CommunicationClientFactory,
) *CommunicationsService {
	return &CommunicationsService{
		integrationsRepo: integrationsRepo,
		commFactory:      commFactory,
	}
}

func (s *CommunicationsService) SendMessage(
	ctx context.Context,
	clientID, integrationID, channel, content string,
	opts *clients.MessageOptions,
) (*models.CommunicationMessage, error) {
	log.Printf("📋 Starting to send message via integration: %s", integrationID)

	if content == "" {
		return nil, core.NewValidationError("message content cannot be empty")
	}

	client, err := s.client(ctx, clientID, integrationID)
	if err != nil {
		return nil, err
	}

	message, err := client.SendMessage(ctx, channel, content, opts)
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - sent message: %s", message.ID)
	return message, nil
}

func (s *CommunicationsService) SendDirectMessage(
	ctx context.Context,
	clientID, integrationID, userID, content string,
	opts *clients.MessageOptions,
) (*models.CommunicationMessage, error) {
	log.Printf("📋 Starting to send direct message via integration: %s", integrationID)

	if content == "" {
		return nil, core.NewValidationError("message content cannot be empty")
	}

	client, err := s.client(ctx, clientID, integrationID)
	if err != nil {
		return nil, err
	}

	message, err := client.SendDirectMessage(ctx, userID, content, opts)
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - sent direct message: %s", message.ID)
	return message, nil
}

func (s *CommunicationsService) GetChannels(
	ctx context.Context,
	clientID, integrationID string,
) ([]models.Channel, error) {
	log.Printf("📋 Starting to list channels for integration: %s", integrationID)

	client, err := s.client(ctx, clientID, integrationID)
	if err != nil {
		return nil, err
	}

	channels, err := client.GetChannels(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - found %d channels", len(channels))
	return channels, nil
}

func (s *CommunicationsService) GetUsers(
	ctx context.Context,
	clientID, integrationID string,
) ([]models.ChannelUser, error) {
	log.Printf("📋 Starting to list users for integration: %s", integrationID)

	client, err := s.client(ctx, clientID, integrationID)
	if err != nil {
		return nil, err
	}

	users, err := client.GetUsers(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - found %d users", len(users))
	return users, nil
}

func (s *CommunicationsService) CreateChannel(
	ctx context.Context,
	clientID, integrationID, name string,
	private bool,
) (*models.Channel, error) {
	log.Printf("📋 Starting to create channel %q via integration: %s", name, integrationID)

	if name == "" {
		return nil, core.NewValidationError("channel name cannot be empty")
	}

	client, err := s.client(ctx, clientID, integrationID)
	if err != nil {
		return nil, err
	}

	channel, err := client.CreateChannel(ctx, name, private)
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - created channel: %s", channel.ID)
	return channel, nil
}

func (s *CommunicationsService) UpdateMessage(
	ctx context.Context,
	clientID, integrationID, channelID, messageID, content string,
) error {
	log.Printf("📋 Starting to update message %s via integration: %s", messageID, integrationID)

	if content == "" {
		return core.NewValidationError("message content cannot be empty")
	}

	client, err := s.client(ctx, clientID, integrationID)
	if err != nil {
		return err
	}

	if err := client.UpdateMessage(ctx, channelID, messageID, content); err != nil {
		return err
	}

	log.Printf("📋 Completed successfully - updated message: %s", messageID)
	return nil
}

func (s *CommunicationsService) DeleteMessage(
	ctx context.Context,
	clientID, integrationID, channelID, messageID string,
) error {
	log.Printf("📋 Starting to delete message %s via integration: %s", messageID, integrationID)

	client, err := s.client(ctx, clientID, integrationID)
	if err != nil {
		return err
	}

	if err := client.DeleteMessage(ctx, channelID, messageID); err != nil {
		return err
	}

	log.Printf("📋 Completed successfully - deleted message: %s", messageID)
	return nil
}

func (s *CommunicationsService) GetChannelHistory(
	ctx context.Context,
	clientID, integrationID, channelID string,
	opts *clients.HistoryOptions,
) ([]*models.CommunicationMessage, error) {
	log.Printf("📋 Starting to read channel history via integration: %s", integrationID)

	client, err := s.client(ctx, clientID, integrationID)
	if err != nil {
		return nil, err
	}

	messages, err := client.GetChannelHistory(ctx, channelID, opts)
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - read %d messages", len(messages))
	return messages, nil
}

// client loads the integration, checks tenant ownership and that it is a
// communication provider, and returns an authenticated adapter. Another
// tenant's integration is indistinguishable from a missing one.
func (s *CommunicationsService) client(
	ctx context.Context,
	clientID, integrationID string,
) (clients.CommunicationClient, error) {
	integration, err := s.integrationsRepo.GetIntegrationByID(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	if integration == nil || integration.ClientID != clientID {
		return nil, core.NewNotFoundError(fmt.Sprintf("integration not found: %s", integrationID))
	}
	if integration.Type.IsCRM() {
		return nil, core.NewValidationError(
			fmt.Sprintf("integration type %s does not support messaging", integration.Type),
		)
	}

	client, err := s.commFactory(integration.Type, integration.Credentials)
	if err != nil {
		return nil, err
	}
	if err := client.Authenticate(ctx); err != nil {
		return nil, err
	}

	// Teams rotates refresh tokens on every grant; keep the stored
	// credentials current so the next adapter authenticates cleanly.
	integrations.PersistRotatedTokens(ctx, s.integrationsRepo, integration, client)
	return client, nil
}
