package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/models"
)

const (
	providerName = "Salesforce"
	apiVersion   = "v58.0"

	productionLoginURL = "https://login.salesforce.com"
	sandboxLoginURL    = "https://test.salesforce.com"
)

// Credentials is the parsed Salesforce credential tuple. The security token
// is appended to the password during the OAuth password grant; Salesforce
// does not accept it as a separate field.
type Credentials struct {
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string
	SecurityToken string
	Sandbox       bool
}

// ParseCredentials validates the opaque credential map up front so missing
// fields fail fast with a descriptive error before any network call.
func ParseCredentials(raw models.SecretMap) (*Credentials, error) {
	creds := &Credentials{
		ClientID:      raw["clientId"],
		ClientSecret:  raw["clientSecret"],
		Username:      raw["username"],
		Password:      raw["password"],
		SecurityToken: raw["securityToken"],
		Sandbox:       raw["sandbox"] == "true",
	}

	if creds.ClientID == "" || creds.ClientSecret == "" || creds.Username == "" ||
		creds.Password == "" || creds.SecurityToken == "" {
		return nil, core.NewAuthenticationError("missing required Salesforce credentials")
	}

	return creds, nil
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	TokenType   string `json:"token_type"`
}

type queryResponse struct {
	TotalSize int              `json:"totalSize"`
	Done      bool             `json:"done"`
	Records   []map[string]any `json:"records"`
}

// Client implements clients.CRMClient against the Salesforce REST API.
type Client struct {
	creds      *Credentials
	httpClient *http.Client

	loginURL      string
	instanceURL   string
	accessToken   string
	authenticated bool
}

// NewClient builds a Salesforce adapter from an integration's stored
// credential map.
func NewClient(raw models.SecretMap) (*Client, error) {
	creds, err := ParseCredentials(raw)
	if err != nil {
		return nil, err
	}

	loginURL := productionLoginURL
	if creds.Sandbox {
		loginURL = sandboxLoginURL
	}

	return &Client{
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		loginURL:   loginURL,
	}, nil
}

// Authenticate performs the OAuth2 password grant. The password sent to the
// token endpoint is the literal concatenation password+securityToken.
func (c *Client) Authenticate(ctx context.Context) error {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("client_id", c.creds.ClientID)
	data.Set("client_secret", c.creds.ClientSecret)
	data.Set("username", c.creds.Username)
	data.Set("password", c.creds.Password+c.creds.SecurityToken)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.loginURL+"/services/oauth2/token",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return clients.WrapTransportError(providerName, "authentication", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return clients.WrapHTTPStatus(providerName, "authentication", resp.StatusCode, string(body))
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	if auth.AccessToken == "" || auth.InstanceURL == "" {
		return core.NewAuthenticationError("Salesforce auth response missing access token or instance URL")
	}

	c.accessToken = auth.AccessToken
	c.instanceURL = auth.InstanceURL
	c.authenticated = true

	return nil
}

// HealthCheck re-authenticates from stored credentials and reports a status
// object. It never returns an error.
func (c *Client) HealthCheck(ctx context.Context) *clients.HealthStatus {
	if err := c.Authenticate(ctx); err != nil {
		return &clients.HealthStatus{
			Status: clients.HealthStatusUnhealthy,
			Details: map[string]any{
				"integration_type": models.IntegrationTypeSalesforce,
				"error":            err.Error(),
				"last_check":       time.Now().UTC(),
			},
		}
	}

	return &clients.HealthStatus{
		Status: clients.HealthStatusHealthy,
		Details: map[string]any{
			"integration_type": models.IntegrationTypeSalesforce,
			"authenticated":    true,
			"instance_url":     c.instanceURL,
			"sandbox":          c.creds.Sandbox,
			"last_check":       time.Now().UTC(),
		},
	}
}

// ListContacts runs a single SOQL pull of all contacts with an email set.
// Salesforce delivers the full result in one response, so there is never a
// follow-up page.
func (c *Client) ListContacts(ctx context.Context, _ string) (*clients.ContactPage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	soql := `SELECT Id, Email, FirstName, LastName, Phone, Title, CreatedDate, LastModifiedDate
		FROM Contact WHERE Email != null ORDER BY LastModifiedDate DESC`

	result, err := c.query(ctx, "list contacts", soql)
	if err != nil {
		return nil, err
	}

	contacts := make([]*models.CRMContact, 0, len(result.Records))
	for _, record := range result.Records {
		contacts = append(contacts, transformContactFromCRM(record))
	}

	return &clients.ContactPage{Contacts: contacts, HasMore: false}, nil
}

// ListOpportunities runs a single SOQL pull of all opportunities that
// reference a contact.
func (c *Client) ListOpportunities(ctx context.Context, _ string) (*clients.OpportunityPage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	soql := `SELECT Id, Name, Amount, StageName, Probability, CloseDate, ContactId, CreatedDate, LastModifiedDate
		FROM Opportunity WHERE ContactId != null ORDER BY LastModifiedDate DESC`

	result, err := c.query(ctx, "list opportunities", soql)
	if err != nil {
		return nil, err
	}

	opportunities := make([]*models.CRMOpportunity, 0, len(result.Records))
	for _, record := range result.Records {
		opportunities = append(opportunities, transformOpportunityFromCRM(record))
	}

	return &clients.OpportunityPage{Opportunities: opportunities, HasMore: false}, nil
}

func (c *Client) CreateContact(ctx context.Context, contact *models.CRMContact) (*models.CRMContact, error) {
	if err := models.ValidateContact(contact); err != nil {
		return nil, core.NewValidationError(err.Error())
	}
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	payload := transformContactToCRM(contact)
	status, body, err := c.do(ctx, http.MethodPost, "/services/data/"+apiVersion+"/sobjects/Contact/", nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "create contact", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "create contact", status, string(body))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode create contact response: %w", err)
	}

	result := *contact
	result.ID = created.ID
	result.Source = models.IntegrationTypeSalesforce
	return &result, nil
}

func (c *Client) UpdateContact(
	ctx context.Context,
	contactID string,
	contact *models.CRMContact,
) (*models.CRMContact, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	payload := transformContactToCRM(contact)
	path := "/services/data/" + apiVersion + "/sobjects/Contact/" + contactID
	status, body, err := c.do(ctx, http.MethodPatch, path, nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "update contact", err)
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "update contact", status, string(body))
	}

	updated, err := c.GetContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if !updated.IsPresent() {
		return nil, core.NewNotFoundError("contact not found after update")
	}
	return updated.MustGet(), nil
}

// GetContact returns None on a provider 404, never an error.
func (c *Client) GetContact(ctx context.Context, contactID string) (mo.Option[*models.CRMContact], error) {
	if !c.authenticated {
		return mo.None[*models.CRMContact](), clients.NotAuthenticatedError(providerName)
	}

	path := "/services/data/" + apiVersion + "/sobjects/Contact/" + contactID
	status, body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return mo.None[*models.CRMContact](), clients.WrapTransportError(providerName, "get contact", err)
	}
	if status == http.StatusNotFound {
		return mo.None[*models.CRMContact](), nil
	}
	if status != http.StatusOK {
		return mo.None[*models.CRMContact](), clients.WrapHTTPStatus(providerName, "get contact", status, string(body))
	}

	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return mo.None[*models.CRMContact](), fmt.Errorf("failed to decode contact: %w", err)
	}
	return mo.Some(transformContactFromCRM(record)), nil
}

// SearchContacts runs a provider-native LIKE search bounded to 50 results.
func (c *Client) SearchContacts(ctx context.Context, query string) ([]*models.CRMContact, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	escaped := escapeSOQL(query)
	soql := fmt.Sprintf(`SELECT Id, Email, FirstName, LastName, Phone, Title, CreatedDate, LastModifiedDate
		FROM Contact
		WHERE (FirstName LIKE '%%%s%%' OR LastName LIKE '%%%s%%' OR Email LIKE '%%%s%%')
		LIMIT 50`, escaped, escaped, escaped)

	result, err := c.query(ctx, "search contacts", soql)
	if err != nil {
		return nil, err
	}

	contacts := make([]*models.CRMContact, 0, len(result.Records))
	for _, record := range result.Records {
		contacts = append(contacts, transformContactFromCRM(record))
	}
	return contacts, nil
}

func (c *Client) CreateOpportunity(
	ctx context.Context,
	opportunity *models.CRMOpportunity,
) (*models.CRMOpportunity, error) {
	if err := models.ValidateOpportunity(opportunity); err != nil {
		return nil, core.NewValidationError(err.Error())
	}
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	payload := transformOpportunityToCRM(opportunity)
	status, body, err := c.do(ctx, http.MethodPost, "/services/data/"+apiVersion+"/sobjects/Opportunity/", nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "create opportunity", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "create opportunity", status, string(body))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode create opportunity response: %w", err)
	}

	result := *opportunity
	result.ID = created.ID
	result.Source = models.IntegrationTypeSalesforce
	return &result, nil
}

func (c *Client) UpdateOpportunity(
	ctx context.Context,
	opportunityID string,
	opportunity *models.CRMOpportunity,
) (*models.CRMOpportunity, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	payload := transformOpportunityToCRM(opportunity)
	path := "/services/data/" + apiVersion + "/sobjects/Opportunity/" + opportunityID
	status, body, err := c.do(ctx, http.MethodPatch, path, nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "update opportunity", err)
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "update opportunity", status, string(body))
	}

	updated, err := c.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	if !updated.IsPresent() {
		return nil, core.NewNotFoundError("opportunity not found after update")
	}
	return updated.MustGet(), nil
}

func (c *Client) GetOpportunity(
	ctx context.Context,
	opportunityID string,
) (mo.Option[*models.CRMOpportunity], error) {
	if !c.authenticated {
		return mo.None[*models.CRMOpportunity](), clients.NotAuthenticatedError(providerName)
	}

	path := "/services/data/" + apiVersion + "/sobjects/Opportunity/" + opportunityID
	status, body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return mo.None[*models.CRMOpportunity](), clients.WrapTransportError(providerName, "get opportunity", err)
	}
	if status == http.StatusNotFound {
		return mo.None[*models.CRMOpportunity](), nil
	}
	if status != http.StatusOK {
		return mo.None[*models.CRMOpportunity](),
			clients.WrapHTTPStatus(providerName, "get opportunity", status, string(body))
	}

	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return mo.None[*models.CRMOpportunity](), fmt.Errorf("failed to decode opportunity: %w", err)
	}
	return mo.Some(transformOpportunityFromCRM(record)), nil
}

func (c *Client) SearchOpportunities(ctx context.Context, query string) ([]*models.CRMOpportunity, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	escaped := escapeSOQL(query)
	soql := fmt.Sprintf(`SELECT Id, Name, Amount, StageName, Probability, CloseDate, ContactId, CreatedDate, LastModifiedDate
		FROM Opportunity
		WHERE Name LIKE '%%%s%%'
		LIMIT 50`, escaped)

	result, err := c.query(ctx, "search opportunities", soql)
	if err != nil {
		return nil, err
	}

	opportunities := make([]*models.CRMOpportunity, 0, len(result.Records))
	for _, record := range result.Records {
		opportunities = append(opportunities, transformOpportunityFromCRM(record))
	}
	return opportunities, nil
}

func (c *Client) query(ctx context.Context, operation, soql string) (*queryResponse, error) {
	params := url.Values{}
	params.Set("q", soql)

	status, body, err := c.do(ctx, http.MethodGet, "/services/data/"+apiVersion+"/query/", params, nil)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, operation, err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, operation, status, string(body))
	}

	var result queryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	return &result, nil
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	params url.Values,
	payload any,
) (int, []byte, error) {
	endpoint := c.instanceURL + path
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
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

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

func escapeSOQL(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}

var contactExcludeFields = []string{
	"attributes",
	"id", "Id",
	"email", "Email",
	"firstName", "FirstName", "first_name",
	"lastName", "LastName", "last_name",
	"phone", "Phone", "phone_number",
	"company", "Company", "company_name",
	"title", "Title", "job_title",
	"createdAt", "CreatedDate",
	"updatedAt", "LastModifiedDate",
}

var opportunityExcludeFields = []string{
	"attributes",
	"id", "Id",
	"name", "Name", "opportunity_name",
	"amount", "Amount", "value",
	"stage", "StageName", "stage_name",
	"probability", "Probability", "probability_percent",
	"closeDate", "CloseDate", "close_date",
	"contactId", "ContactId", "contact_id",
	"createdAt", "CreatedDate",
	"updatedAt", "LastModifiedDate",
}

func transformContactFromCRM(record map[string]any) *models.CRMContact {
	return &models.CRMContact{
		ID:           clients.StringField(record, "id", "Id"),
		Email:        clients.StringField(record, "email", "Email"),
		FirstName:    clients.StringField(record, "firstName", "FirstName", "first_name"),
		LastName:     clients.StringField(record, "lastName", "LastName", "last_name"),
		Phone:        clients.StringField(record, "phone", "Phone", "phone_number"),
		Company:      clients.StringField(record, "company", "Company", "company_name"),
		Title:        clients.StringField(record, "title", "Title", "job_title"),
		Source:       models.IntegrationTypeSalesforce,
		CustomFields: clients.ExtractCustomFields(record, contactExcludeFields),
		CreatedAt:    clients.TimeField(record, "createdAt", "CreatedDate"),
		UpdatedAt:    clients.TimeField(record, "updatedAt", "LastModifiedDate"),
	}
}

func transformOpportunityFromCRM(record map[string]any) *models.CRMOpportunity {
	opportunity := &models.CRMOpportunity{
		ID:           clients.StringField(record, "id", "Id"),
		Name:         clients.StringField(record, "name", "Name", "opportunity_name"),
		Amount:       decimal.NewFromFloat(clients.FloatField(record, "amount", "Amount", "value")),
		Stage:        clients.StringField(record, "stage", "StageName", "stage_name"),
		Probability:  clients.FloatField(record, "probability", "Probability", "probability_percent"),
		ContactID:    clients.StringField(record, "contactId", "ContactId", "contact_id"),
		Source:       models.IntegrationTypeSalesforce,
		CustomFields: clients.ExtractCustomFields(record, opportunityExcludeFields),
		CreatedAt:    clients.TimeField(record, "createdAt", "CreatedDate"),
		UpdatedAt:    clients.TimeField(record, "updatedAt", "LastModifiedDate"),
	}

	if raw := clients.StringField(record, "closeDate", "CloseDate", "close_date"); raw != "" {
		if t, ok := clients.ParseProviderTime(raw); ok {
			opportunity.CloseDate = &t
		}
	}
	return opportunity
}

func transformContactToCRM(contact *models.CRMContact) map[string]any {
	payload := map[string]any{
		"Email":     contact.Email,
		"FirstName": contact.FirstName,
		"LastName":  contact.LastName,
		"Phone":     contact.Phone,
		"Title":     contact.Title,
	}
	for key, value := range contact.CustomFields {
		payload[key] = value
	}
	return payload
}

func transformOpportunityToCRM(opportunity *models.CRMOpportunity) map[string]any {
	payload := map[string]any{
		"Name":        opportunity.Name,
		"Amount":      opportunity.Amount.InexactFloat64(),
		"StageName":   opportunity.Stage,
		"Probability": opportunity.Probability,
		"ContactId":   opportunity.ContactID,
	}
	if opportunity.CloseDate != nil {
		payload["CloseDate"] = opportunity.CloseDate.Format("2006-01-02")
	}
	for key, value := range opportunity.CustomFields {
		payload[key] = value
	}
	return payload
}
