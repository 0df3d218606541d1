package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/models"
)

const (
	providerName = "Teams"

	graphBaseURL = "https://graph.microsoft.com/v1.0"
	loginBaseURL = "https://login.microsoftonline.com"
)

// Credentials holds the Microsoft Graph OAuth material. AccessToken may be
// expired; RefreshToken lets the adapter mint a fresh one.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	AccessToken  string
	RefreshToken string
}

func ParseCredentials(raw models.SecretMap) (*Credentials, error) {
	creds := &Credentials{
		ClientID:     raw["clientId"],
		ClientSecret: raw["clientSecret"],
		TenantID:     raw["tenantId"],
		AccessToken:  raw["accessToken"],
		RefreshToken: raw["refreshToken"],
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.TenantID == "" {
		return nil, core.NewAuthenticationError("missing required Teams credentials")
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, core.NewAuthenticationError("Teams integration requires an access token or refresh token")
	}
	return creds, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Client implements clients.CommunicationClient against Microsoft Graph.
type Client struct {
	creds      *Credentials
	httpClient *http.Client

	graphURL string
	loginURL string

	accessToken   string
	refreshToken  string
	authenticated bool
}

func NewClient(raw models.SecretMap) (*Client, error) {
	creds, err := ParseCredentials(raw)
	if err != nil {
		return nil, err
	}
	return &Client{
		creds:        creds,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		graphURL:     graphBaseURL,
		loginURL:     loginBaseURL,
		accessToken:  creds.AccessToken,
		refreshToken: creds.RefreshToken,
	}, nil
}

// Authenticate probes Graph with the stored access token first and only
// falls back to the refresh grant when the probe fails. Microsoft rotates
// refresh tokens on every grant, so the rotated token replaces the old one.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.accessToken != "" {
		status, _, err := c.do(ctx, http.MethodGet, "/me", nil, nil)
		if err == nil && status == http.StatusOK {
			c.authenticated = true
			return nil
		}
	}

	if c.refreshToken == "" {
		return core.NewAuthenticationError("Teams access token rejected and no refresh token available")
	}
	if err := c.refreshAccessToken(ctx); err != nil {
		return err
	}

	status, body, err := c.do(ctx, http.MethodGet, "/me", nil, nil)
	if err != nil {
		return clients.WrapTransportError(providerName, "authentication", err)
	}
	if status != http.StatusOK {
		return clients.WrapHTTPStatus(providerName, "authentication", status, string(body))
	}

	c.authenticated = true
	return nil
}

func (c *Client) refreshAccessToken(ctx context.Context) error {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", c.creds.ClientID)
	data.Set("client_secret", c.creds.ClientSecret)
	data.Set("refresh_token", c.refreshToken)
	data.Set("scope", "https://graph.microsoft.com/.default")

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginURL, c.creds.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return clients.WrapTransportError(providerName, "token refresh", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return clients.WrapHTTPStatus(providerName, "token refresh", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return core.NewAuthenticationError("Teams token refresh returned no access token")
	}

	c.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.refreshToken = token.RefreshToken
	}
	return nil
}

// Tokens exposes the current access and refresh tokens so callers can
// persist rotated values after Authenticate.
func (c *Client) Tokens() (string, string) {
	return c.accessToken, c.refreshToken
}

func (c *Client) HealthCheck(ctx context.Context) *clients.HealthStatus {
	if err := c.Authenticate(ctx); err != nil {
		return &clients.HealthStatus{
			Status: clients.HealthStatusUnhealthy,
			Details: map[string]any{
				"integration_type": models.IntegrationTypeTeams,
				"error":            err.Error(),
				"last_check":       time.Now().UTC(),
			},
		}
	}

	return &clients.HealthStatus{
		Status: clients.HealthStatusHealthy,
		Details: map[string]any{
			"integration_type": models.IntegrationTypeTeams,
			"authenticated":    true,
			"tenant_id":        c.creds.TenantID,
			"last_check":       time.Now().UTC(),
		},
	}
}

// SendMessage posts to a chat, or to a team channel when channel is given as
// "teamID/channelID".
func (c *Client) SendMessage(
	ctx context.Context,
	channel, content string,
	opts *clients.MessageOptions,
) (*models.CommunicationMessage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	path := messagesPath(channel)
	if opts != nil && opts.ReplyToMessageID != "" {
		path += "/" + opts.ReplyToMessageID + "/replies"
	}

	payload := map[string]any{
		"body": map[string]any{
			"contentType": "html",
			"content":     renderContent(content, opts),
		},
	}

	status, body, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "send message", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "send message", status, string(body))
	}

	var sent graphMessage
	if err := json.Unmarshal(body, &sent); err != nil {
		return nil, fmt.Errorf("failed to decode sent message: %w", err)
	}
	return sent.toModel(channel), nil
}

// SendDirectMessage creates (or reuses) a one-on-one chat with the user and
// posts into it.
func (c *Client) SendDirectMessage(
	ctx context.Context,
	userID, content string,
	opts *clients.MessageOptions,
) (*models.CommunicationMessage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	chatPayload := map[string]any{
		"chatType": "oneOnOne",
		"members": []map[string]any{
			{
				"@odata.type":     "#microsoft.graph.aadUserConversationMember",
				"roles":           []string{"owner"},
				"user@odata.bind": c.graphURL + "/users('" + userID + "')",
			},
		},
	}

	status, body, err := c.do(ctx, http.MethodPost, "/chats", nil, chatPayload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "open direct chat", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "open direct chat", status, string(body))
	}

	var chat struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat: %w", err)
	}

	message, err := c.SendMessage(ctx, chat.ID, content, opts)
	if err != nil {
		return nil, err
	}
	message.Recipient = userID
	return message, nil
}

// GetChannels lists every channel of every team the signed-in user belongs
// to, with channel IDs qualified as "teamID/channelID".
func (c *Client) GetChannels(ctx context.Context) ([]models.Channel, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	status, body, err := c.do(ctx, http.MethodGet, "/me/joinedTeams", nil, nil)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "list teams", err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "list teams", status, string(body))
	}

	var teams struct {
		Value []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &teams); err != nil {
		return nil, fmt.Errorf("failed to decode teams: %w", err)
	}

	var channels []models.Channel
	for _, team := range teams.Value {
		status, body, err := c.do(ctx, http.MethodGet, "/teams/"+team.ID+"/channels", nil, nil)
		if err != nil {
			return nil, clients.WrapTransportError(providerName, "list channels", err)
		}
		if status != http.StatusOK {
			return nil, clients.WrapHTTPStatus(providerName, "list channels", status, string(body))
		}

		var teamChannels struct {
			Value []struct {
				ID             string `json:"id"`
				DisplayName    string `json:"displayName"`
				Description    string `json:"description"`
				MembershipType string `json:"membershipType"`
			} `json:"value"`
		}
		if err := json.Unmarshal(body, &teamChannels); err != nil {
			return nil, fmt.Errorf("failed to decode channels: %w", err)
		}

		for _, channel := range teamChannels.Value {
			channels = append(channels, models.Channel{
				ID:        team.ID + "/" + channel.ID,
				Name:      team.DisplayName + " / " + channel.DisplayName,
				IsPrivate: channel.MembershipType == "private",
				Topic:     channel.Description,
			})
		}
	}
	return channels, nil
}

func (c *Client) GetUsers(ctx context.Context) ([]models.ChannelUser, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	status, body, err := c.do(ctx, http.MethodGet, "/users", nil, nil)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "list users", err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "list users", status, string(body))
	}

	var result struct {
		Value []struct {
			ID                string `json:"id"`
			DisplayName       string `json:"displayName"`
			UserPrincipalName string `json:"userPrincipalName"`
			Mail              string `json:"mail"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]models.ChannelUser, 0, len(result.Value))
	for _, user := range result.Value {
		email := user.Mail
		if email == "" {
			email = user.UserPrincipalName
		}
		users = append(users, models.ChannelUser{
			ID:          user.ID,
			Name:        user.UserPrincipalName,
			DisplayName: user.DisplayName,
			Email:       email,
		})
	}
	return users, nil
}

// CreateChannel requires a team context passed as "teamID/name".
func (c *Client) CreateChannel(ctx context.Context, name string, private bool) (*models.Channel, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	teamID, channelName, found := strings.Cut(name, "/")
	if !found {
		return nil, core.NewValidationError("Teams channel creation requires a team context as teamID/name")
	}

	membershipType := "standard"
	if private {
		membershipType = "private"
	}
	payload := map[string]any{
		"displayName":    channelName,
		"membershipType": membershipType,
	}

	status, body, err := c.do(ctx, http.MethodPost, "/teams/"+teamID+"/channels", nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "create channel", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "create channel", status, string(body))
	}

	var created struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode created channel: %w", err)
	}

	return &models.Channel{
		ID:        teamID + "/" + created.ID,
		Name:      created.DisplayName,
		IsPrivate: private,
	}, nil
}

// JoinChannel is not exposed by Graph for delegated users; membership is
// managed by team owners.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	return core.NewValidationError("Teams does not support joining channels via the API")
}

func (c *Client) LeaveChannel(ctx context.Context, channelID string) error {
	return core.NewValidationError("Teams does not support leaving channels via the API")
}

func (c *Client) UpdateMessage(ctx context.Context, channelID, messageID, content string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	payload := map[string]any{
		"body": map[string]any{
			"contentType": "html",
			"content":     content,
		},
	}

	path := messagesPath(channelID) + "/" + messageID
	status, body, err := c.do(ctx, http.MethodPatch, path, nil, payload)
	if err != nil {
		return clients.WrapTransportError(providerName, "update message", err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return clients.WrapHTTPStatus(providerName, "update message", status, string(body))
	}
	return nil
}

// DeleteMessage soft-deletes; Graph has no hard delete for chat messages.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if !c.authenticated {
		return clients.NotAuthenticatedError(providerName)
	}

	path := messagesPath(channelID) + "/" + messageID + "/softDelete"
	status, body, err := c.do(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return clients.WrapTransportError(providerName, "delete message", err)
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return clients.WrapHTTPStatus(providerName, "delete message", status, string(body))
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

	params := url.Values{}
	limit := 50
	if opts != nil && opts.Limit > 0 {
		limit = opts.Limit
	}
	params.Set("$top", strconv.Itoa(limit))

	status, body, err := c.do(ctx, http.MethodGet, messagesPath(channelID), params, nil)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "channel history", err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "channel history", status, string(body))
	}

	var result struct {
		Value []graphMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode channel history: %w", err)
	}

	messages := make([]*models.CommunicationMessage, 0, len(result.Value))
	for _, message := range result.Value {
		messages = append(messages, message.toModel(channelID))
	}
	return messages, nil
}

type graphMessage struct {
	ID   string `json:"id"`
	Body struct {
		Content string `json:"content"`
	} `json:"body"`
	From *struct {
		User *struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"user"`
	} `json:"from"`
	CreatedDateTime string `json:"createdDateTime"`
}

func (m graphMessage) toModel(channel string) *models.CommunicationMessage {
	message := &models.CommunicationMessage{
		ID:       m.ID,
		Channel:  channel,
		Platform: string(models.IntegrationTypeTeams),
		Content:  m.Body.Content,
	}
	if m.From != nil && m.From.User != nil {
		message.Sender = m.From.User.ID
		message.Metadata = map[string]any{"sender_display_name": m.From.User.DisplayName}
	}
	if t, ok := clients.ParseProviderTime(m.CreatedDateTime); ok {
		message.Timestamp = t
	} else {
		message.Timestamp = time.Now().UTC()
	}
	return message
}

// messagesPath routes "teamID/channelID" to the team-channel endpoint and
// anything else to the chat endpoint.
func messagesPath(channel string) string {
	if teamID, channelID, found := strings.Cut(channel, "/"); found {
		return "/teams/" + teamID + "/channels/" + channelID + "/messages"
	}
	return "/chats/" + channel + "/messages"
}

func renderContent(content string, opts *clients.MessageOptions) string {
	if opts == nil || len(opts.Mentions) == 0 {
		return content
	}
	var mentions strings.Builder
	for _, mention := range opts.Mentions {
		mentions.WriteString("@" + mention.DisplayName + " ")
	}
	return mentions.String() + content
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	params url.Values,
	payload any,
) (int, []byte, error) {
	endpoint := c.graphURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}
