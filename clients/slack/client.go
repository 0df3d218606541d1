package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/models"
)

const providerName = "Slack"

// Credentials holds the Slack bot token (xoxb-).
type Credentials struct {
	BotToken string
}

func ParseCredentials(raw models.SecretMap) (*Credentials, error) {
	token := raw["botToken"]
	if token == "" {
		token = raw["bot_token"]
	}
	if token == "" {
		return nil, core.NewAuthenticationError("missing Slack bot token")
	}
	return &Credentials{BotToken: token}, nil
}

// Client implements clients.CommunicationClient using the slack-go/slack SDK.
// The SDK surfaces Slack's ok=false envelope as an error, which wrapError
// maps onto the uniform taxonomy.
type Client struct {
	api *slack.Client

	teamID        string
	botUserID     string
	authenticated bool
}

// NewClient builds a Slack adapter. Extra SDK options (e.g. a custom API URL)
// are passed through to slack.New.
func NewClient(raw models.SecretMap, opts ...slack.Option) (*Client, error) {
	creds, err := ParseCredentials(raw)
	if err != nil {
		return nil, err
	}
	return &Client{
		api: slack.New(creds.BotToken, opts...),
	}, nil
}

// Authenticate verifies the bot token with auth.test.
func (c *Client) Authenticate(ctx context.Context) error {
	response, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return wrapError("authentication", err)
	}

	c.teamID = response.TeamID
	c.botUserID = response.UserID
	c.authenticated = true
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) *clients.HealthStatus {
	if err := c.Authenticate(ctx); err != nil {
		return &clients.HealthStatus{
			Status: clients.HealthStatusUnhealthy,
			Details: map[string]any{
				"integration_type": models.IntegrationTypeSlack,
				"error":            err.Error(),
				"last_check":       time.Now().UTC(),
			},
		}
	}

	return &clients.HealthStatus{
		Status: clients.HealthStatusHealthy,
		Details: map[string]any{
			"integration_type": models.IntegrationTypeSlack,
			"authenticated":    true,
			"team_id":          c.teamID,
			"bot_user_id":      c.botUserID,
			"last_check":       time.Now().UTC(),
		},
	}
}

func (c *Client) SendMessage(
	ctx context.Context,
	channel, content string,
	opts *clients.MessageOptions,
) (*models.CommunicationMessage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	msgOptions := []slack.MsgOption{
		slack.MsgOptionText(renderContent(content, opts), false),
	}
	if opts != nil {
		threadTS := opts.ThreadID
		if threadTS == "" {
			threadTS = opts.ReplyToMessageID
		}
		if threadTS != "" {
			msgOptions = append(msgOptions, slack.MsgOptionTS(threadTS))
		}
	}

	channelID, timestamp, err := c.api.PostMessageContext(ctx, channel, msgOptions...)
	if err != nil {
		return nil, wrapError("send message", err)
	}

	return &models.CommunicationMessage{
		ID:        timestamp,
		Channel:   channelID,
		Platform:  string(models.IntegrationTypeSlack),
		Content:   content,
		Sender:    c.botUserID,
		Timestamp: parseSlackTimestamp(timestamp),
	}, nil
}

// SendDirectMessage opens (or reuses) the bot's IM with the user and posts
// into it.
func (c *Client) SendDirectMessage(
	ctx context.Context,
	userID, content string,
	opts *clients.MessageOptions,
) (*models.CommunicationMessage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	channel, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return nil, wrapError("open direct message", err)
	}

	message, err := c.SendMessage(ctx, channel.ID, content, opts)
	if err != nil {
		return nil, err
	}
	message.Recipient = userID
	return message, nil
}

func (c *Client) GetChannels(ctx context.Context) ([]models.Channel, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	var channels []models.Channel
	cursor := ""
	for {
		page, nextCursor, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:  []string{"public_channel", "private_channel"},
			Cursor: cursor,
			Limit:  200,
		})
		if err != nil {
			return nil, wrapError("list channels", err)
		}

		for _, channel := range page {
			channels = append(channels, models.Channel{
				ID:        channel.ID,
				Name:      channel.Name,
				IsPrivate: channel.IsPrivate,
				Topic:     channel.Topic.Value,
			})
		}

		if nextCursor == "" {
			return channels, nil
		}
		cursor = nextCursor
	}
}

func (c *Client) GetUsers(ctx context.Context) ([]models.ChannelUser, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	slackUsers, err := c.api.GetUsersContext(ctx)
	if err != nil {
		return nil, wrapError("list users", err)
	}

	users := make([]models.ChannelUser, 0, len(slackUsers))
	for _, user := range slackUsers {
		if user.Deleted {
			continue
		}
		users = append(users, models.ChannelUser{
			ID:          user.ID,
			Name:        user.Name,
			DisplayName: user.Profile.DisplayName,
			Email:       user.Profile.Email,
			IsBot:       user.IsBot,
		})
	}
	return users, nil
}

func (c *Client) CreateChannel(ctx context.Context, name string, private bool) (*models.Channel, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	channel, err := c.api.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: name,
		IsPrivate:   private,
	})
	if err != nil {
		return nil, wrapError("create channel", err)
	}

	return &models.Channel{
		ID:        channel.ID,
		Name:      channel.Name,
		IsPrivate: channel.IsPrivate,
	}, nil
}

func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	if _, _, _, err := c.api.JoinConversationContext(ctx, channelID); err != nil {
		return wrapError("join channel", err)
	}
	return nil
}

func (c *Client) LeaveChannel(ctx context.Context, channelID string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	if _, err := c.api.LeaveConversationContext(ctx, channelID); err != nil {
		return wrapError("leave channel", err)
	}
	return nil
}

func (c *Client) UpdateMessage(ctx context.Context, channelID, messageID, content string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, messageID, slack.MsgOptionText(content, false))
	if err != nil {
		return wrapError("update message", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	if _, _, err := c.api.DeleteMessageContext(ctx, channelID, messageID); err != nil {
		return wrapError("delete message", err)
	}
	return nil
}

func (c *Client) GetChannelHistory(
	ctx context.Context,
	channelID string,
	opts *clients.HistoryOptions,
) ([]*models.CommunicationMessage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	params := &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     50,
	}
	if opts != nil {
		if opts.Limit > 0 {
			params.Limit = opts.Limit
		}
		params.Oldest = opts.Oldest
		params.Latest = opts.Latest
	}

	history, err := c.api.GetConversationHistoryContext(ctx, params)
	if err != nil {
		return nil, wrapError("channel history", err)
	}

	messages := make([]*models.CommunicationMessage, 0, len(history.Messages))
	for _, message := range history.Messages {
		messages = append(messages, &models.CommunicationMessage{
			ID:        message.Timestamp,
			Channel:   channelID,
			Platform:  string(models.IntegrationTypeSlack),
			Content:   message.Text,
			Sender:    message.User,
			Timestamp: parseSlackTimestamp(message.Timestamp),
			Metadata:  map[string]any{"thread_ts": message.ThreadTimestamp},
		})
	}
	return messages, nil
}

// renderContent prefixes Slack mention markup, which the platform expands
// to display names.
func renderContent(content string, opts *clients.MessageOptions) string {
	if opts == nil || len(opts.Mentions) == 0 {
		return content
	}
	var builder strings.Builder
	for _, mention := range opts.Mentions {
		builder.WriteString("<@" + mention.UserID + "> ")
	}
	builder.WriteString(content)
	return builder.String()
}

// parseSlackTimestamp converts a Slack ts ("1712345678.000200") to a time.
func parseSlackTimestamp(ts string) time.Time {
	seconds, _, _ := strings.Cut(ts, ".")
	var unix int64
	if _, err := fmt.Sscanf(seconds, "%d", &unix); err != nil {
		return time.Now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}

// wrapError maps slack-go SDK errors (which carry Slack's ok=false error
// strings) onto the uniform taxonomy.
func wrapError(operation string, err error) error {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return core.NewRateLimitError(fmt.Sprintf("Slack %s rate limited, retry after %s", operation, rateLimited.RetryAfter))
	}

	message := fmt.Sprintf("Slack %s failed: %v", operation, err)
	switch err.Error() {
	case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "token_expired":
		return core.NewAuthenticationError(message)
	case "missing_scope", "not_allowed_token_type", "restricted_action":
		return core.NewAuthorizationError(message)
	case "channel_not_found", "user_not_found", "message_not_found":
		return core.NewNotFoundError(message)
	case "name_taken":
		return core.NewConflictError(message)
	default:
		return core.NewExternalServiceError(message, err)
	}
}
