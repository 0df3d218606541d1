package models

import "time"

// CommunicationMessage is the canonical unit for Slack/Discord/Teams message
// operations. Messages are ephemeral: created/read per API call, never
// bulk-synced.
type CommunicationMessage struct {
	ID        string         `json:"id"`
	Channel   string         `json:"channel"`
	Platform  string         `json:"platform"`
	Content   string         `json:"content"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Channel is a provider-neutral view of a conversation surface
// (Slack channel, Discord channel, Teams channel or chat).
type Channel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	Topic     string `json:"topic,omitempty"`
}

// ChannelUser is a provider-neutral view of a workspace member.
type ChannelUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	IsBot       bool   `json:"is_bot"`
}
