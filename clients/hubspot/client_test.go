package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbackend/core"
	"imbackend/models"
)

func TestParseCredentials_MissingToken(t *testing.T) {
	_, err := ParseCredentials(models.SecretMap{})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, core.StatusCodeOf(err))
}

func TestParseCredentials_AcceptsSnakeCaseKey(t *testing.T) {
	creds, err := ParseCredentials(models.SecretMap{"access_token": "pat-123"})
	require.NoError(t, err)
	assert.Equal(t, "pat-123", creds.AccessToken)
}

func TestAuthenticate_ProbesContactsEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer pat-123", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(listResponse{})
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	require.NoError(t, client.Authenticate(context.Background()))
	assert.True(t, client.authenticated)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"category":"INVALID_AUTHENTICATION"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	err := client.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, core.StatusCodeOf(err))
	assert.False(t, client.authenticated)
}

func TestListContacts_FollowsPagingCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		switch r.URL.Query().Get("after") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{
						"id": "101",
						"properties": map[string]any{
							"email":       "ada@example.com",
							"firstname":   "Ada",
							"lastname":    "Lovelace",
							"jobtitle":    "Engineer",
							"lead_source": "conference",
						},
						"createdAt": "2024-01-10T08:00:00Z",
						"updatedAt": "2024-02-01T08:00:00Z",
					},
				},
				"paging": map[string]any{"next": map[string]any{"after": "abc123"}},
			})
		case "abc123":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"id": "102", "properties": map[string]any{"email": "grace@example.com"}},
				},
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	}))
	defer server.Close()

	client := authenticatedClient(t, server.URL)

	first, err := client.ListContacts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, first.Contacts, 1)
	assert.True(t, first.HasMore)
	assert.Equal(t, "abc123", first.NextCursor)
	assert.Equal(t, "Ada", first.Contacts[0].FirstName)
	assert.Equal(t, "Engineer", first.Contacts[0].Title)
	assert.Equal(t, "conference", first.Contacts[0].CustomFields["lead_source"])
	assert.Equal(t, models.IntegrationTypeHubSpot, first.Contacts[0].Source)

	second, err := client.ListContacts(context.Background(), first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Contacts, 1)
	assert.False(t, second.HasMore)
	assert.Empty(t, second.NextCursor)
}

func TestListOpportunities_MapsDealProperties(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/deals", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"id": "501",
					"properties": map[string]any{
						"dealname":                  "Enterprise renewal",
						"amount":                    "25000.50",
						"dealstage":                 "contractsent",
						"hs_deal_stage_probability": "0.8",
						"closedate":                 "2024-06-30",
						"associatedcontactids":      "101",
					},
				},
			},
		})
	}))
	defer server.Close()

	client := authenticatedClient(t, server.URL)

	page, err := client.ListOpportunities(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Opportunities, 1)

	deal := page.Opportunities[0]
	assert.Equal(t, "Enterprise renewal", deal.Name)
	assert.Equal(t, "25000.5", deal.Amount.String())
	assert.Equal(t, "contractsent", deal.Stage)
	assert.Equal(t, 0.8, deal.Probability)
	assert.Equal(t, "101", deal.ContactID)
	assert.NotContains(t, deal.CustomFields, "associatedcontactids")
	require.NotNil(t, deal.CloseDate)
	assert.Equal(t, "2024-06-30", deal.CloseDate.Format("2006-01-02"))

	// A listed deal must carry its contact association, or every record
	// would fail validation during reconcile.
	assert.NoError(t, models.ValidateOpportunity(deal))
}

func TestGetContact_NotFoundReturnsNone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := authenticatedClient(t, server.URL)

	maybeContact, err := client.GetContact(context.Background(), "999")
	require.NoError(t, err)
	assert.False(t, maybeContact.IsPresent())
}

func TestSearchContacts_PostsFilterGroups(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/crm/v3/objects/contacts/search", r.URL.Path)

		var payload struct {
			FilterGroups []struct {
				Filters []struct {
					PropertyName string `json:"propertyName"`
					Operator     string `json:"operator"`
					Value        string `json:"value"`
				} `json:"filters"`
			} `json:"filterGroups"`
			Limit int `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.FilterGroups, 3)
		assert.Equal(t, "CONTAINS_TOKEN", payload.FilterGroups[0].Filters[0].Operator)
		assert.Equal(t, "ada", payload.FilterGroups[0].Filters[0].Value)
		assert.Equal(t, 50, payload.Limit)

		json.NewEncoder(w).Encode(searchResponse{
			Total:   1,
			Results: []hubspotObject{{ID: "101", Properties: map[string]any{"email": "ada@example.com"}}},
		})
	}))
	defer server.Close()

	client := authenticatedClient(t, server.URL)

	results, err := client.SearchContacts(context.Background(), "ada")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ada@example.com", results[0].Email)
}

func TestOperations_RequireAuthentication(t *testing.T) {
	client := testClient(t, "http://unused.invalid")

	_, err := client.ListContacts(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authenticated with HubSpot")
}

func TestRateLimitedResponseIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := authenticatedClient(t, server.URL)

	_, err := client.ListContacts(context.Background(), "")
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))
	assert.Equal(t, http.StatusTooManyRequests, core.StatusCodeOf(err))
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(models.SecretMap{"accessToken": "pat-123"})
	require.NoError(t, err)
	client.baseURL = baseURL
	return client
}

func authenticatedClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client := testClient(t, baseURL)
	client.authenticated = true
	return client
}
