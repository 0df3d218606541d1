package clients

import (
	"context"

	"github.com/samber/mo"

	"imbackend/models"
)

// MockCRMClient implements CRMClient for testing. Each method delegates to
// its Mock function field when set and falls back to an empty success
// response otherwise.
type MockCRMClient struct {
	MockAuthenticate func(ctx context.Context) error
	MockHealthCheck  func(ctx context.Context) *HealthStatus

	MockListContacts      func(ctx context.Context, cursor string) (*ContactPage, error)
	MockListOpportunities func(ctx context.Context, cursor string) (*OpportunityPage, error)

	MockCreateContact  func(ctx context.Context, contact *models.CRMContact) (*models.CRMContact, error)
	MockUpdateContact  func(ctx context.Context, contactID string, contact *models.CRMContact) (*models.CRMContact, error)
	MockGetContact     func(ctx context.Context, contactID string) (mo.Option[*models.CRMContact], error)
	MockSearchContacts func(ctx context.Context, query string) ([]*models.CRMContact, error)

	MockCreateOpportunity func(ctx context.Context, opportunity *models.CRMOpportunity) (*models.CRMOpportunity, error)
	MockUpdateOpportunity func(
		ctx context.Context,
		opportunityID string,
		opportunity *models.CRMOpportunity,
	) (*models.CRMOpportunity, error)
	MockGetOpportunity      func(ctx context.Context, opportunityID string) (mo.Option[*models.CRMOpportunity], error)
	MockSearchOpportunities func(ctx context.Context, query string) ([]*models.CRMOpportunity, error)
}

// NewMockCRMClient creates a new mock CRM client
func NewMockCRMClient() *MockCRMClient {
	return &MockCRMClient{}
}

func (m *MockCRMClient) Authenticate(ctx context.Context) error {
	if m.MockAuthenticate != nil {
		return m.MockAuthenticate(ctx)
	}
	return nil
}

func (m *MockCRMClient) HealthCheck(ctx context.Context) *HealthStatus {
	if m.MockHealthCheck != nil {
		return m.MockHealthCheck(ctx)
	}
	return &HealthStatus{Status: HealthStatusHealthy, Details: map[string]any{}}
}

func (m *MockCRMClient) ListContacts(ctx context.Context, cursor string) (*ContactPage, error) {
	if m.MockListContacts != nil {
		return m.MockListContacts(ctx, cursor)
	}
	return &ContactPage{}, nil
}

func (m *MockCRMClient) ListOpportunities(ctx context.Context, cursor string) (*OpportunityPage, error) {
	if m.MockListOpportunities != nil {
		return m.MockListOpportunities(ctx, cursor)
	}
	return &OpportunityPage{}, nil
}

func (m *MockCRMClient) CreateContact(ctx context.Context, contact *models.CRMContact) (*models.CRMContact, error) {
	if m.MockCreateContact != nil {
		return m.MockCreateContact(ctx, contact)
	}
	return contact, nil
}

func (m *MockCRMClient) UpdateContact(
	ctx context.Context,
	contactID string,
	contact *models.CRMContact,
) (*models.CRMContact, error) {
	if m.MockUpdateContact != nil {
		return m.MockUpdateContact(ctx, contactID, contact)
	}
	return contact, nil
}

func (m *MockCRMClient) GetContact(ctx context.Context, contactID string) (mo.Option[*models.CRMContact], error) {
	if m.MockGetContact != nil {
		return m.MockGetContact(ctx, contactID)
	}
	return mo.None[*models.CRMContact](), nil
}

func (m *MockCRMClient) SearchContacts(ctx context.Context, query string) ([]*models.CRMContact, error) {
	if m.MockSearchContacts != nil {
		return m.MockSearchContacts(ctx, query)
	}
	return nil, nil
}

func (m *MockCRMClient) CreateOpportunity(
	ctx context.Context,
	opportunity *models.CRMOpportunity,
) (*models.CRMOpportunity, error) {
	if m.MockCreateOpportunity != nil {
		return m.MockCreateOpportunity(ctx, opportunity)
	}
	return opportunity, nil
}

func (m *MockCRMClient) UpdateOpportunity(
	ctx context.Context,
	opportunityID string,
	opportunity *models.CRMOpportunity,
) (*models.CRMOpportunity, error) {
	if m.MockUpdateOpportunity != nil {
		return m.MockUpdateOpportunity(ctx, opportunityID, opportunity)
	}
	return opportunity, nil
}

func (m *MockCRMClient) GetOpportunity(
	ctx context.Context,
	opportunityID string,
) (mo.Option[*models.CRMOpportunity], error) {
	if m.MockGetOpportunity != nil {
		return m.MockGetOpportunity(ctx, opportunityID)
	}
	return mo.None[*models.CRMOpportunity](), nil
}

func (m *MockCRMClient) SearchOpportunities(ctx context.Context, query string) ([]*models.CRMOpportunity, error) {
	if m.MockSearchOpportunities != nil {
		return m.MockSearchOpportunities(ctx, query)
	}
	return nil, nil
}

// MockCommunicationClient implements CommunicationClient for testing
type MockCommunicationClient struct {
	MockAuthenticate func(ctx context.Context) error
	MockHealthCheck  func(ctx context.Context) *HealthStatus

	MockSendMessage func(
		ctx context.Context,
		channel, content string,
		opts *MessageOptions,
	) (*models.CommunicationMessage, error)
	MockSendDirectMessage func(
		ctx context.Context,
		userID, content string,
		opts *MessageOptions,
	) (*models.CommunicationMessage, error)

	MockGetChannels func(ctx context.Context) ([]models.Channel, error)
	MockGetUsers    func(ctx context.Context) ([]models.ChannelUser, error)

	MockCreateChannel func(ctx context.Context, name string, private bool) (*models.Channel, error)
	MockJoinChannel   func(ctx context.Context, channelID string) error
	MockLeaveChannel  func(ctx context.Context, channelID string) error

	MockUpdateMessage     func(ctx context.Context, channelID, messageID, content string) error
	MockDeleteMessage     func(ctx context.Context, channelID, messageID string) error
	MockGetChannelHistory func(
		ctx context.Context,
		channelID string,
		opts *HistoryOptions,
	) ([]*models.CommunicationMessage, error)
}

// NewMockCommunicationClient creates a new mock communication client
func NewMockCommunicationClient() *MockCommunicationClient {
	return &MockCommunicationClient{}
}

func (m *MockCommunicationClient) Authenticate(ctx context.Context) error {
	if m.MockAuthenticate != nil {
		return m.MockAuthenticate(ctx)
	}
	return nil
}

func (m *MockCommunicationClient) HealthCheck(ctx context.Context) *HealthStatus {
	if m.MockHealthCheck != nil {
		return m.MockHealthCheck(ctx)
	}
	return &HealthStatus{Status: HealthStatusHealthy, Details: map[string]any{}}
}

func (m *MockCommunicationClient) SendMessage(
	ctx context.Context,
	channel, content string,
	opts *MessageOptions,
) (*models.CommunicationMessage, error) {
	if m.MockSendMessage != nil {
		return m.MockSendMessage(ctx, channel, content, opts)
	}
	return &models.CommunicationMessage{ID: "msg_1", Channel: channel, Content: content}, nil
}

func (m *MockCommunicationClient) SendDirectMessage(
	ctx context.Context,
	userID, content string,
	opts *MessageOptions,
) (*models.CommunicationMessage, error) {
	if m.MockSendDirectMessage != nil {
		return m.MockSendDirectMessage(ctx, userID, content, opts)
	}
	return &models.CommunicationMessage{ID: "msg_1", Recipient: userID, Content: content}, nil
}

func (m *MockCommunicationClient) GetChannels(ctx context.Context) ([]models.Channel, error) {
	if m.MockGetChannels != nil {
		return m.MockGetChannels(ctx)
	}
	return nil, nil
}

func (m *MockCommunicationClient) GetUsers(ctx context.Context) ([]models.ChannelUser, error) {
	if m.MockGetUsers != nil {
		return m.MockGetUsers(ctx)
	}
	return nil, nil
}

func (m *MockCommunicationClient) CreateChannel(
	ctx context.Context,
	name string,
	private bool,
) (*models.Channel, error) {
	if m.MockCreateChannel != nil {
		return m.MockCreateChannel(ctx, name, private)
	}
	return &models.Channel{ID: "ch_1", Name: name, IsPrivate: private}, nil
}

func (m *MockCommunicationClient) JoinChannel(ctx context.Context, channelID string) error {
	if m.MockJoinChannel != nil {
		return m.MockJoinChannel(ctx, channelID)
	}
	return nil
}

func (m *MockCommunicationClient) LeaveChannel(ctx context.Context, channelID string) error {
	if m.MockLeaveChannel != nil {
		return m.MockLeaveChannel(ctx, channelID)
	}
	return nil
}

func (m *MockCommunicationClient) UpdateMessage(ctx context.Context, channelID, messageID, content string) error {
	if m.MockUpdateMessage != nil {
		return m.MockUpdateMessage(ctx, channelID, messageID, content)
	}
	return nil
}

func (m *MockCommunicationClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if m.MockDeleteMessage != nil {
		return m.MockDeleteMessage(ctx, channelID, messageID)
	}
	return nil
}

func (m *MockCommunicationClient) GetChannelHistory(
	ctx context.Context,
	channelID string,
	opts *HistoryOptions,
) ([]*models.CommunicationMessage, error) {
	if m.MockGetChannelHistory != nil {
		return m.MockGetChannelHistory(ctx, channelID, opts)
	}
	return nil, nil
}
