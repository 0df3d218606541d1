package clients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbackend/core"
)

func TestStringField_FirstNonEmptySpellings(t *testing.T) {
	raw := map[string]any{
		"FirstName":  "Ada",
		"first_name": "ignored",
	}

	assert.Equal(t, "Ada", StringField(raw, "firstName", "FirstName", "first_name"))
}

func TestStringField_NumericID(t *testing.T) {
	raw := map[string]any{"id": float64(42)}

	assert.Equal(t, "42", StringField(raw, "id"))
}

func TestStringField_Missing(t *testing.T) {
	assert.Equal(t, "", StringField(map[string]any{}, "email"))
	assert.Equal(t, "", StringField(map[string]any{"email": nil}, "email"))
}

func TestFloatField(t *testing.T) {
	raw := map[string]any{"amount": float64(1250.5)}

	assert.Equal(t, 1250.5, FloatField(raw, "amount", "value"))
	assert.Equal(t, float64(0), FloatField(raw, "probability"))

	// HubSpot numeric properties arrive as strings.
	assert.Equal(t, 25000.5, FloatField(map[string]any{"amount": "25000.50"}, "amount"))
	assert.Equal(t, float64(0), FloatField(map[string]any{"amount": "not-a-number"}, "amount"))
}

func TestParseProviderTime_Layouts(t *testing.T) {
	tests := []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00.123456789Z",
		"2024-03-01T10:00:00.000-0700",
		"2024-03-01 10:00:00",
		"2024-03-01",
	}

	for _, value := range tests {
		parsed, ok := ParseProviderTime(value)
		require.True(t, ok, "should parse %q", value)
		assert.Equal(t, 2024, parsed.Year())
		assert.Equal(t, time.March, parsed.Month())
	}
}

func TestParseProviderTime_Invalid(t *testing.T) {
	_, ok := ParseProviderTime("not a date")
	assert.False(t, ok)
}

func TestTimeField_DefaultsToNow(t *testing.T) {
	before := time.Now().UTC()
	parsed := TimeField(map[string]any{}, "createdAt")
	after := time.Now().UTC()

	assert.False(t, parsed.Before(before))
	assert.False(t, parsed.After(after))
}

func TestExtractCustomFields(t *testing.T) {
	raw := map[string]any{
		"id":           "c1",
		"email":        "ada@example.com",
		"nickname":     "adal",
		"lead_score":   float64(87),
		"empty_nilval": nil,
	}

	customFields := ExtractCustomFields(raw, []string{"id", "email"})

	assert.Equal(t, "adal", customFields["nickname"])
	assert.Equal(t, float64(87), customFields["lead_score"])
	assert.NotContains(t, customFields, "id")
	assert.NotContains(t, customFields, "email")
	assert.NotContains(t, customFields, "empty_nilval")
}

func TestWrapHTTPStatus_Taxonomy(t *testing.T) {
	tests := []struct {
		status     int
		wantStatus int
		retryable  bool
	}{
		{401, 401, false},
		{403, 403, false},
		{404, 404, false},
		{409, 409, false},
		{429, 429, true},
		{500, 503, true},
		{502, 503, true},
		{400, 400, false},
		{422, 400, false},
	}

	for _, tt := range tests {
		err := WrapHTTPStatus("Salesforce", "list contacts", tt.status, "body")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Salesforce")
		assert.Equal(t, tt.wantStatus, core.StatusCodeOf(err))
		assert.Equal(t, tt.retryable, core.IsRetryable(err))
	}
}
