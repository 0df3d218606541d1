package salesforce

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

func testCredentials() models.SecretMap {
	return models.SecretMap{
		"clientId":      "test-client-id",
		"clientSecret":  "test-client-secret",
		"username":      "ops@example.com",
		"password":      "hunter2",
		"securityToken": "SECTOKEN",
	}
}

func TestParseCredentials_MissingField(t *testing.T) {
	creds := testCredentials()
	delete(creds, "securityToken")

	_, err := ParseCredentials(creds)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, core.StatusCodeOf(err))
}

func TestParseCredentials_SandboxFlag(t *testing.T) {
	creds := testCredentials()
	creds["sandbox"] = "true"

	parsed, err := ParseCredentials(creds)
	require.NoError(t, err)
	assert.True(t, parsed.Sandbox)

	client, err := NewClient(creds)
	require.NoError(t, err)
	assert.Equal(t, sandboxLoginURL, client.loginURL)
}

func TestAuthenticate_AppendsSecurityTokenToPassword(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/services/oauth2/token", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.FormValue("grant_type"))
		assert.Equal(t, "test-client-id", r.FormValue("client_id"))
		assert.Equal(t, "ops@example.com", r.FormValue("username"))
		assert.Equal(t, "hunter2SECTOKEN", r.FormValue("password"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(authResponse{
			AccessToken: "access-123",
			InstanceURL: server.URL,
			TokenType:   "Bearer",
		})
	}))
	defer server.Close()

	client, err := NewClient(testCredentials())
	require.NoError(t, err)
	client.loginURL = server.URL

	require.NoError(t, client.Authenticate(context.Background()))
	assert.True(t, client.authenticated)
	assert.Equal(t, "access-123", client.accessToken)
	assert.Equal(t, server.URL, client.instanceURL)
}

func TestAuthenticate_RejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	client, err := NewClient(testCredentials())
	require.NoError(t, err)
	client.loginURL = server.URL

	err = client.Authenticate(context.Background())
	require.Error(t, err)
	assert.False(t, client.authenticated)
}

func TestOperations_RequireAuthentication(t *testing.T) {
	client, err := NewClient(testCredentials())
	require.NoError(t, err)

	_, err = client.ListContacts(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authenticated with Salesforce")

	_, err = client.SearchContacts(context.Background(), "ada")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, core.StatusCodeOf(err))
}

func TestListContacts_SingleShotSOQL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/data/"+apiVersion+"/query/", r.URL.Path)
		assert.Equal(t, "Bearer access-123", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("q"), "FROM Contact")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(queryResponse{
			TotalSize: 2,
			Done:      true,
			Records: []map[string]any{
				{
					"attributes":       map[string]any{"type": "Contact"},
					"Id":               "003A",
					"Email":            "ada@example.com",
					"FirstName":        "Ada",
					"LastName":         "Lovelace",
					"Phone":            "+44 1234",
					"Title":            "Engineer",
					"Lead_Score__c":    float64(91),
					"CreatedDate":      "2024-01-10T08:00:00.000-0700",
					"LastModifiedDate": "2024-02-01T08:00:00.000-0700",
				},
				{
					"Id":    "003B",
					"Email": "grace@example.com",
				},
			},
		})
	}))
	defer server.Close()

	client := authenticatedClient(t, server.URL)

	page, err := client.ListContacts(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	require.Len(t, page.Contacts, 2)

	first := page.Contacts[0]
	assert.Equal(t, "003A", first.ID)
	assert.Equal(t, "ada@example.com", first.Email)
	assert.Equal(t, "Ada", first.FirstName)
	assert.Equal(t, "Lovelace", first.LastName)
	assert.Equal(t, models.IntegrationTypeSalesforce, first.Source)
	assert.Equal(t, float64(91), first.CustomFields["Lead_Score__c"])
	assert.NotContains(t, first.CustomFields, "attributes")
	assert.NotContains(t, first.CustomFields, "Email")
}

func TestGetContact_NotFoundReturnsNone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := authenticatedClient(t, server.URL)

	maybeContact, err := client.GetContact(context.Background(), "003MISSING")
	require.NoError(t, err)
	assert.False(t, maybeContact.IsPresent())
}

func TestCreateContact_ValidatesBeforeRequest(t *testing.T) {
	client, err := NewClient(testCredentials())
	require.NoError(t, err)

	_, err = client.CreateContact(context.Background(), &models.CRMContact{Email: "no-at-sign"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, core.StatusCodeOf(err))
}

func TestCreateContact_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/services/data/"+apiVersion+"/sobjects/Contact/", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ada@example.com", payload["Email"])
		assert.Equal(t, "Ada", payload["FirstName"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "003NEW", "success": true})
	}))
	defer server.Close()

	client := authenticatedClient(t, server.URL)

	created, err := client.CreateContact(context.Background(), &models.CRMContact{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, "003NEW", created.ID)
	assert.Equal(t, models.IntegrationTypeSalesforce, created.Source)
}

func TestSearchContacts_EscapesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		soql := r.URL.Query().Get("q")
		assert.Contains(t, soql, `O\'Brien`)
		assert.Contains(t, soql, "LIMIT 50")

		json.NewEncoder(w).Encode(queryResponse{Done: true})
	}))
	defer server.Close()

	client := authenticatedClient(t, server.URL)

	results, err := client.SearchContacts(context.Background(), "O'Brien")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTransformContactRoundTrip(t *testing.T) {
	contact := &models.CRMContact{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "+44 1234",
		Title:     "Engineer",
	}

	echoed := transformContactFromCRM(transformContactToCRM(contact))
	assert.Equal(t, contact.Email, echoed.Email)
	assert.Equal(t, contact.FirstName, echoed.FirstName)
	assert.Equal(t, contact.LastName, echoed.LastName)
}

func authenticatedClient(t *testing.T, instanceURL string) *Client {
	t.Helper()
	client, err := NewClient(testCredentials())
	require.NoError(t, err)
	client.instanceURL = instanceURL
	client.accessToken = "access-123"
	client.authenticated = true
	return client
}
