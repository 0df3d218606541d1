package clients

import (
	"context"

	"github.com/samber/mo"

	"imbackend/models"
)

// HealthStatus is the result of an adapter health check. HealthCheck never
// returns an error: failures are reported through Status/Details.
type HealthStatus struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details"`
}

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

// ContactPage is one page of canonical contacts from a provider's bulk-list
// endpoint. HasMore signals another page is available at NextCursor; the
// cursor format is provider-specific (offset, after-token) and opaque to
// callers.
type ContactPage struct {
	Contacts   []*models.CRMContact
	NextCursor string
	HasMore    bool
}

// OpportunityPage is one page of canonical opportunities.
type OpportunityPage struct {
	Opportunities []*models.CRMOpportunity
	NextCursor    string
	HasMore       bool
}

// CRMClient is the uniform contract every CRM provider adapter implements.
// Adapters parse their credential map at construction, authenticate against
// stored credentials on Authenticate, and enforce auth gating on every
// subsequent operation.
type CRMClient interface {
	Authenticate(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus

	ListContacts(ctx context.Context, cursor string) (*ContactPage, error)
	ListOpportunities(ctx context.Context, cursor string) (*OpportunityPage, error)

	CreateContact(ctx context.Context, contact *models.CRMContact) (*models.CRMContact, error)
	UpdateContact(ctx context.Context, contactID string, contact *models.CRMContact) (*models.CRMContact, error)
	// GetContact returns None on a provider 404, never an error.
	GetContact(ctx context.Context, contactID string) (mo.Option[*models.CRMContact], error)
	SearchContacts(ctx context.Context, query string) ([]*models.CRMContact, error)

	CreateOpportunity(ctx context.Context, opportunity *models.CRMOpportunity) (*models.CRMOpportunity, error)
	UpdateOpportunity(
		ctx context.Context,
		opportunityID string,
		opportunity *models.CRMOpportunity,
	) (*models.CRMOpportunity, error)
	GetOpportunity(ctx context.Context, opportunityID string) (mo.Option[*models.CRMOpportunity], error)
	SearchOpportunities(ctx context.Context, query string) ([]*models.CRMOpportunity, error)
}

// Mention references a user to tag in an outgoing message.
type Mention struct {
	UserID      string
	DisplayName string
}

// MessageOptions carries provider-specific extras for outgoing messages.
// Adapters ignore options their platform does not support.
type MessageOptions struct {
	ThreadID         string
	ReplyToMessageID string
	Mentions         []Mention
	Attachments      []map[string]any
}

// HistoryOptions bounds a channel history read.
type HistoryOptions struct {
	Limit  int
	Oldest string
	Latest string
}

// CommunicationClient is the uniform contract every communication provider
// adapter (Slack, Discord, Teams) implements. Operations a platform does not
// support return a non-retryable validation error.
type CommunicationClient interface {
	Authenticate(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus

	SendMessage(
		ctx context.Context,
		channel, content string,
		opts *MessageOptions,
	) (*models.CommunicationMessage, error)
	SendDirectMessage(
		ctx context.Context,
		userID, content string,
		opts *MessageOptions,
	) (*models.CommunicationMessage, error)

	GetChannels(ctx context.Context) ([]models.Channel, error)
	GetUsers(ctx context.Context) ([]models.ChannelUser, error)

	CreateChannel(ctx context.Context, name string, private bool) (*models.Channel, error)
	JoinChannel(ctx context.Context, channelID string) error
	LeaveChannel(ctx context.Context, channelID string) error

	UpdateMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	GetChannelHistory(
		ctx context.Context,
		channelID string,
		opts *HistoryOptions,
	) ([]*models.CommunicationMessage, error)
}

// TokenRotator is implemented by adapters whose provider rotates tokens
// during authentication (Teams rotates the refresh token on every refresh
// grant). Callers persist the returned values so the next adapter built
// from stored credentials starts from the rotated token.
type TokenRotator interface {
	Tokens() (accessToken, refreshToken string)
}
