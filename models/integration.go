package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// IntegrationType identifies one of the supported provider/category pairs.
type IntegrationType string

const (
	IntegrationTypeSalesforce IntegrationType = "crm_salesforce"
	IntegrationTypeHubSpot    IntegrationType = "crm_hubspot"
	IntegrationTypePipedrive  IntegrationType = "crm_pipedrive"
	IntegrationTypeSlack      IntegrationType = "communication_slack"
	IntegrationTypeDiscord    IntegrationType = "communication_discord"
	IntegrationTypeTeams      IntegrationType = "communication_teams"
)

// AllIntegrationTypes is the closed enum of supported providers.
var AllIntegrationTypes = []IntegrationType{
	IntegrationTypeSalesforce,
	IntegrationTypeHubSpot,
	IntegrationTypePipedrive,
	IntegrationTypeSlack,
	IntegrationTypeDiscord,
	IntegrationTypeTeams,
}

// IsValid reports whether t is one of the supported provider types.
func (t IntegrationType) IsValid() bool {
	for _, known := range AllIntegrationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsCRM reports whether t is a CRM provider (supports contact/opportunity sync).
func (t IntegrationType) IsCRM() bool {
	switch t {
	case IntegrationTypeSalesforce, IntegrationTypeHubSpot, IntegrationTypePipedrive:
		return true
	}
	return false
}

type IntegrationStatus string

const (
	IntegrationStatusPending  IntegrationStatus = "pending"
	IntegrationStatusActive   IntegrationStatus = "active"
	IntegrationStatusInactive IntegrationStatus = "inactive"
	IntegrationStatusError    IntegrationStatus = "error"
	IntegrationStatusSyncing  IntegrationStatus = "syncing"
)

func (s IntegrationStatus) IsValid() bool {
	switch s {
	case IntegrationStatusPending, IntegrationStatusActive, IntegrationStatusInactive,
		IntegrationStatusError, IntegrationStatusSyncing:
		return true
	}
	return false
}

// SecretMap is an opaque provider-specific key-value map stored as JSONB.
// The content is validated by the matching adapter at authenticate-time,
// not when the integration is created.
type SecretMap map[string]string

func (m SecretMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *SecretMap) Scan(src any) error {
	if src == nil {
		*m = SecretMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SecretMap", src)
	}
	return json.Unmarshal(data, m)
}

// Integration is one connected external account for a tenant. It is the
// unit of authentication: every sync/test operation re-authenticates from
// the stored credentials rather than assuming a live session.
type Integration struct {
	ID          string            `db:"id"           json:"id"`
	UserID      string            `db:"user_id"      json:"user_id"`
	ClientID    string            `db:"client_id"    json:"client_id"`
	Type        IntegrationType   `db:"type"         json:"type"`
	Name        string            `db:"name"         json:"name"`
	Status      IntegrationStatus `db:"status"       json:"status"`
	Credentials SecretMap         `db:"credentials"  json:"-"`
	Settings    SecretMap         `db:"settings"     json:"settings"`
	LastSync    *time.Time        `db:"last_sync"    json:"last_sync"`
	CreatedAt   time.Time         `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"   json:"updated_at"`
}
