package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/models"
)

const providerName = "Discord"

// Credentials holds the Discord bot token and the guild the integration is
// scoped to.
type Credentials struct {
	BotToken string
	GuildID  string
}

func ParseCredentials(raw models.SecretMap) (*Credentials, error) {
	creds := &Credentials{
		BotToken: raw["botToken"],
		GuildID:  raw["guildId"],
	}
	if creds.BotToken == "" {
		creds.BotToken = raw["bot_token"]
	}
	if creds.GuildID == "" {
		creds.GuildID = raw["guild_id"]
	}
	if creds.BotToken == "" {
		return nil, core.NewAuthenticationError("missing Discord bot token")
	}
	if creds.GuildID == "" {
		return nil, core.NewAuthenticationError("missing Discord guild ID")
	}
	return creds, nil
}

// Client implements clients.CommunicationClient using the discordgo SDK in
// plain REST mode (no gateway connection is opened).
type Client struct {
	session *discordgo.Session
	creds   *Credentials

	botUserID     string
	authenticated bool
}

func NewClient(raw models.SecretMap) (*Client, error) {
	creds, err := ParseCredentials(raw)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("Bot " + creds.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Client = &http.Client{Timeout: 30 * time.Second}

	return &Client{
		session: session,
		creds:   creds,
	}, nil
}

// Authenticate verifies the bot token by fetching the bot's own user.
func (c *Client) Authenticate(ctx context.Context) error {
	user, err := c.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return wrapError("authentication", err)
	}

	c.botUserID = user.ID
	c.authenticated = true
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) *clients.HealthStatus {
	if err := c.Authenticate(ctx); err != nil {
		return &clients.HealthStatus{
			Status: clients.HealthStatusUnhealthy,
			Details: map[string]any{
				"integration_type": models.IntegrationTypeDiscord,
				"error":            err.Error(),
				"last_check":       time.Now().UTC(),
			},
		}
	}

	return &clients.HealthStatus{
		Status: clients.HealthStatusHealthy,
		Details: map[string]any{
			"integration_type": models.IntegrationTypeDiscord,
			"authenticated":    true,
			"guild_id":         c.creds.GuildID,
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

	send := &discordgo.MessageSend{Content: renderContent(content, opts)}
	if opts != nil && opts.ReplyToMessageID != "" {
		send.Reference = &discordgo.MessageReference{
			MessageID: opts.ReplyToMessageID,
			ChannelID: channel,
			GuildID:   c.creds.GuildID,
		}
	}

	sent, err := c.session.ChannelMessageSendComplex(channel, send, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapError("send message", err)
	}
	return messageToModel(sent), nil
}

// SendDirectMessage opens the bot's DM channel with the user and posts into
// it.
func (c *Client) SendDirectMessage(
	ctx context.Context,
	userID, content string,
	opts *clients.MessageOptions,
) (*models.CommunicationMessage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	dmChannel, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapError("open direct message", err)
	}

	message, err := c.SendMessage(ctx, dmChannel.ID, content, opts)
	if err != nil {
		return nil, err
	}
	message.Recipient = userID
	return message, nil
}

// GetChannels lists the guild's text channels.
func (c *Client) GetChannels(ctx context.Context) ([]models.Channel, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	guildChannels, err := c.session.GuildChannels(c.creds.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapError("list channels", err)
	}

	var channels []models.Channel
	for _, channel := range guildChannels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		channels = append(channels, models.Channel{
			ID:    channel.ID,
			Name:  channel.Name,
			Topic: channel.Topic,
		})
	}
	return channels, nil
}

func (c *Client) GetUsers(ctx context.Context) ([]models.ChannelUser, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	var users []models.ChannelUser
	after := ""
	for {
		members, err := c.session.GuildMembers(c.creds.GuildID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapError("list users", err)
		}
		if len(members) == 0 {
			return users, nil
		}

		for _, member := range members {
			displayName := member.Nick
			if displayName == "" {
				displayName = member.User.GlobalName
			}
			users = append(users, models.ChannelUser{
				ID:          member.User.ID,
				Name:        member.User.Username,
				DisplayName: displayName,
				IsBot:       member.User.Bot,
			})
			after = member.User.ID
		}

		if len(members) < 1000 {
			return users, nil
		}
	}
}

func (c *Client) CreateChannel(ctx context.Context, name string, private bool) (*models.Channel, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}
	if private {
		return nil, core.NewValidationError("Discord private channels require explicit permission overwrites")
	}

	channel, err := c.session.GuildChannelCreate(
		c.creds.GuildID, name, discordgo.ChannelTypeGuildText, discordgo.WithContext(ctx),
	)
	if err != nil {
		return nil, wrapError("create channel", err)
	}

	return &models.Channel{
		ID:   channel.ID,
		Name: channel.Name,
	}, nil
}

// JoinChannel is a no-op for bots: guild membership grants channel access.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	return core.NewValidationError("Discord bots access all guild channels; joining is not applicable")
}

func (c *Client) LeaveChannel(ctx context.Context, channelID string) error {
	return core.NewValidationError("Discord bots access all guild channels; leaving is not applicable")
}

func (c *Client) UpdateMessage(ctx context.Context, channelID, messageID, content string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	if _, err := c.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx)); err != nil {
		return wrapError("update message", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	if err := c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
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

	limit := 50
	before := ""
	after := ""
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		after = opts.Oldest
		before = opts.Latest
	}

	history, err := c.session.ChannelMessages(channelID, limit, before, after, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapError("channel history", err)
	}

	messages := make([]*models.CommunicationMessage, 0, len(history))
	for _, message := range history {
		messages = append(messages, messageToModel(message))
	}
	return messages, nil
}

// AddReaction reacts to a message with a unicode emoji or custom emoji ID.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	if err := c.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return wrapError("add reaction", err)
	}
	return nil
}

func (c *Client) RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	if err := c.session.MessageReactionRemove(
		channelID, messageID, emoji, "@me", discordgo.WithContext(ctx),
	); err != nil {
		return wrapError("remove reaction", err)
	}
	return nil
}

func messageToModel(message *discordgo.Message) *models.CommunicationMessage {
	result := &models.CommunicationMessage{
		ID:       message.ID,
		Channel:  message.ChannelID,
		Platform: string(models.IntegrationTypeDiscord),
		Content:  message.Content,
	}
	if message.Author != nil {
		result.Sender = message.Author.ID
	}
	if !message.Timestamp.IsZero() {
		result.Timestamp = message.Timestamp.UTC()
	} else {
		result.Timestamp = time.Now().UTC()
	}
	return result
}

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

// wrapError maps discordgo REST errors onto the uniform taxonomy.
func wrapError(operation string, err error) error {
	var rateLimit *discordgo.RateLimitError
	if errors.As(err, &rateLimit) {
		return core.NewRateLimitError(
			fmt.Sprintf("Discord %s rate limited, retry after %s", operation, rateLimit.RetryAfter),
		)
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		body := ""
		if restErr.Message != nil {
			body = strconv.Itoa(restErr.Message.Code) + ": " + restErr.Message.Message
		}
		return clients.WrapHTTPStatus(providerName, operation, restErr.Response.StatusCode, body)
	}

	return clients.WrapTransportError(providerName, operation, err)
}
