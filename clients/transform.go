package clients

import (
	"fmt"
	"strconv"
	"time"

	"imbackend/models"
)

// StringField returns the first non-empty string value among keys, so
// adapters can recognize a provider's historical field-name spellings on
// the read path (e.g. firstName / FirstName / first_name).
func StringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key]; ok && value != nil {
			switch v := value.(type) {
			case string:
				if v != "" {
					return v
				}
			case float64:
				return trimFloat(v)
			}
		}
	}
	return ""
}

// FloatField returns the first numeric value among keys. HubSpot serializes
// numeric properties as strings, so those are parsed too.
func FloatField(raw map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if value, ok := raw[key]; ok && value != nil {
			switch v := value.(type) {
			case float64:
				return v
			case int:
				return float64(v)
			case string:
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					return parsed
				}
			}
		}
	}
	return 0
}

// TimeField parses the first parseable timestamp among keys, defaulting to
// now when the provider sent nothing usable.
func TimeField(raw map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok && value != "" {
			if t, ok := ParseProviderTime(value); ok {
				return t
			}
		}
	}
	return time.Now().UTC()
}

// ParseProviderTime accepts the timestamp layouts seen across provider APIs.
func ParseProviderTime(value string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ExtractCustomFields preserves every native field not in the exclusion list
// (the canonical field names under all their historical spellings) verbatim,
// so no provider data is dropped on read.
func ExtractCustomFields(raw map[string]any, exclude []string) models.CustomFields {
	excluded := make(map[string]struct{}, len(exclude))
	for _, key := range exclude {
		excluded[key] = struct{}{}
	}

	customFields := models.CustomFields{}
	for key, value := range raw {
		if _, skip := excluded[key]; skip {
			continue
		}
		if value == nil {
			continue
		}
		customFields[key] = value
	}
	return customFields
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
