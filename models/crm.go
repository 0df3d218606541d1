package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CustomFields preserves provider-native fields that have no canonical
// column, so information is never silently dropped on read.
type CustomFields map[string]any

func (f CustomFields) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

func (f *CustomFields) Scan(src any) error {
	if src == nil {
		*f = CustomFields{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CustomFields", src)
	}
	return json.Unmarshal(data, f)
}

// CRMContact is the canonical contact record. Its identity is (Source, ID):
// the same provider-native ID from two different providers is a different
// logical contact.
type CRMContact struct {
	ID           string          `db:"crm_id"        json:"id"`
	Email        string          `db:"email"         json:"email"`
	FirstName    string          `db:"first_name"    json:"first_name"`
	LastName     string          `db:"last_name"     json:"last_name"`
	Phone        string          `db:"phone"         json:"phone"`
	Company      string          `db:"company"       json:"company"`
	Title        string          `db:"title"         json:"title"`
	Source       IntegrationType `db:"source"        json:"source"`
	CustomFields CustomFields    `db:"custom_fields" json:"custom_fields"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"    json:"updated_at"`
}

// CRMOpportunity is the canonical deal record. Amount is in the provider's
// currency and Stage/Probability are provider-native values; no cross-provider
// normalization is applied.
type CRMOpportunity struct {
	ID           string          `db:"crm_id"        json:"id"`
	Name         string          `db:"name"          json:"name"`
	Amount       decimal.Decimal `db:"amount"        json:"amount"`
	Stage        string          `db:"stage"         json:"stage"`
	Probability  float64         `db:"probability"   json:"probability"`
	CloseDate    *time.Time      `db:"close_date"    json:"close_date"`
	ContactID    string          `db:"contact_id"    json:"contact_id"`
	Source       IntegrationType `db:"source"        json:"source"`
	CustomFields CustomFields    `db:"custom_fields" json:"custom_fields"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"    json:"updated_at"`
}

// ValidateContact enforces the canonical contact invariants: a plausible
// email and at least one of first/last name.
func ValidateContact(contact *CRMContact) error {
	if contact.Email == "" || !strings.Contains(contact.Email, "@") {
		return fmt.Errorf("invalid contact email: %q", contact.Email)
	}
	if contact.FirstName == "" && contact.LastName == "" {
		return fmt.Errorf("contact must have at least first name or last name")
	}
	return nil
}

// ValidateOpportunity enforces the canonical opportunity invariants: a
// non-empty name and a contact reference.
func ValidateOpportunity(opportunity *CRMOpportunity) error {
	if strings.TrimSpace(opportunity.Name) == "" {
		return fmt.Errorf("opportunity name is required")
	}
	if opportunity.ContactID == "" {
		return fmt.Errorf("opportunity must be associated with a contact")
	}
	return nil
}
