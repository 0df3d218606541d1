package models

import "time"

// User is the authenticated identity resolved by the auth middleware.
// ClientID is the tenant (organization-level owner of integrations),
// distinct from the individual user.
type User struct {
	ID             string    `db:"id"               json:"id"`
	AuthProvider   string    `db:"auth_provider"    json:"auth_provider"`
	AuthProviderID string    `db:"auth_provider_id" json:"auth_provider_id"`
	ClientID       string    `db:"client_id"        json:"client_id"`
	Email          string    `db:"email"            json:"email"`
	CreatedAt      time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"       json:"updated_at"`
}
