package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/models"
)

const (
	providerName = "HubSpot"
	baseURL      = "https://api.hubapi.com"

	// HubSpot caps list endpoints at 100 records per page.
	pageLimit = 100
)

// Credentials holds the HubSpot private-app access token.
type Credentials struct {
	AccessToken string
}

func ParseCredentials(raw models.SecretMap) (*Credentials, error) {
	token := raw["accessToken"]
	if token == "" {
		token = raw["access_token"]
	}
	if token == "" {
		return nil, core.NewAuthenticationError("missing HubSpot access token")
	}
	return &Credentials{AccessToken: token}, nil
}

// hubspotObject is the standard CRM v3 object envelope: canonical values
// live under "properties", identity and timestamps at the top level.
type hubspotObject struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
	CreatedAt  string         `json:"createdAt"`
	UpdatedAt  string         `json:"updatedAt"`
}

type listResponse struct {
	Results []hubspotObject `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

type searchResponse struct {
	Total   int             `json:"total"`
	Results []hubspotObject `json:"results"`
}

// Client implements clients.CRMClient against the HubSpot CRM v3 API.
type Client struct {
	creds      *Credentials
	httpClient *http.Client

	baseURL       string
	authenticated bool
}

func NewClient(raw models.SecretMap) (*Client, error) {
	creds, err := ParseCredentials(raw)
	if err != nil {
		return nil, err
	}
	return &Client{
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}, nil
}

// Authenticate probes the contacts endpoint with a limit of one record.
// HubSpot access tokens have no exchange step, so a successful probe is the
// only way to confirm the token works.
func (c *Client) Authenticate(ctx context.Context) error {
	params := url.Values{}
	params.Set("limit", "1")

	status, body, err := c.do(ctx, http.MethodGet, "/crm/v3/objects/contacts", params, nil)
	if err != nil {
		return clients.WrapTransportError(providerName, "authentication", err)
	}
	if status != http.StatusOK {
		return clients.WrapHTTPStatus(providerName, "authentication", status, string(body))
	}

	c.authenticated = true
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) *clients.HealthStatus {
	if err := c.Authenticate(ctx); err != nil {
		return &clients.HealthStatus{
			Status: clients.HealthStatusUnhealthy,
			Details: map[string]any{
				"integration_type": models.IntegrationTypeHubSpot,
				"error":            err.Error(),
				"last_check":       time.Now().UTC(),
			},
		}
	}

	return &clients.HealthStatus{
		Status: clients.HealthStatusHealthy,
		Details: map[string]any{
			"integration_type": models.IntegrationTypeHubSpot,
			"authenticated":    true,
			"last_check":       time.Now().UTC(),
		},
	}
}

// ListContacts pulls one page of contacts. The opaque cursor is HubSpot's
// paging.next.after value from the previous page; empty means first page.
func (c *Client) ListContacts(ctx context.Context, cursor string) (*clients.ContactPage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageLimit))
	params.Set("properties", "email,firstname,lastname,phone,company,jobtitle")
	if cursor != "" {
		params.Set("after", cursor)
	}

	status, body, err := c.do(ctx, http.MethodGet, "/crm/v3/objects/contacts", params, nil)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "list contacts", err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "list contacts", status, string(body))
	}

	var result listResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode contacts page: %w", err)
	}

	contacts := make([]*models.CRMContact, 0, len(result.Results))
	for _, object := range result.Results {
		contacts = append(contacts, transformContactFromCRM(object))
	}

	page := &clients.ContactPage{Contacts: contacts}
	if result.Paging != nil && result.Paging.Next != nil && result.Paging.Next.After != "" {
		page.NextCursor = result.Paging.Next.After
		page.HasMore = true
	}
	return page, nil
}

func (c *Client) ListOpportunities(ctx context.Context, cursor string) (*clients.OpportunityPage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageLimit))
	params.Set("properties", "dealname,amount,dealstage,hs_deal_stage_probability,closedate,associatedcontactids")
	if cursor != "" {
		params.Set("after", cursor)
	}

	status, body, err := c.do(ctx, http.MethodGet, "/crm/v3/objects/deals", params, nil)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "list opportunities", err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "list opportunities", status, string(body))
	}

	var result listResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode deals page: %w", err)
	}

	opportunities := make([]*models.CRMOpportunity, 0, len(result.Results))
	for _, object := range result.Results {
		opportunities = append(opportunities, transformOpportunityFromCRM(object))
	}

	page := &clients.OpportunityPage{Opportunities: opportunities}
	if result.Paging != nil && result.Paging.Next != nil && result.Paging.Next.After != "" {
		page.NextCursor = result.Paging.Next.After
		page.HasMore = true
	}
	return page, nil
}

func (c *Client) CreateContact(ctx context.Context, contact *models.CRMContact) (*models.CRMContact, error) {
	if err := models.ValidateContact(contact); err != nil {
		return nil, core.NewValidationError(err.Error())
	}
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	payload := map[string]any{"properties": transformContactToCRM(contact)}
	status, body, err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "create contact", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "create contact", status, string(body))
	}

	var created hubspotObject
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode create contact response: %w", err)
	}
	return transformContactFromCRM(created), nil
}

func (c *Client) UpdateContact(
	ctx context.Context,
	contactID string,
	contact *models.CRMContact,
) (*models.CRMContact, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	payload := map[string]any{"properties": transformContactToCRM(contact)}
	status, body, err := c.do(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+contactID, nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "update contact", err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "update contact", status, string(body))
	}

	var updated hubspotObject
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, fmt.Errorf("failed to decode update contact response: %w", err)
	}
	return transformContactFromCRM(updated), nil
}

func (c *Client) GetContact(ctx context.Context, contactID string) (mo.Option[*models.CRMContact], error) {
	if !c.authenticated {
		return mo.None[*models.CRMContact](), clients.NotAuthenticatedError(providerName)
	}

	params := url.Values{}
	params.Set("properties", "email,firstname,lastname,phone,company,jobtitle")

	status, body, err := c.do(ctx, http.MethodGet, "/crm/v3/objects/contacts/"+contactID, params, nil)
	if err != nil {
		return mo.None[*models.CRMContact](), clients.WrapTransportError(providerName, "get contact", err)
	}
	if status == http.StatusNotFound {
		return mo.None[*models.CRMContact](), nil
	}
	if status != http.StatusOK {
		return mo.None[*models.CRMContact](), clients.WrapHTTPStatus(providerName, "get contact", status, string(body))
	}

	var object hubspotObject
	if err := json.Unmarshal(body, &object); err != nil {
		return mo.None[*models.CRMContact](), fmt.Errorf("failed to decode contact: %w", err)
	}
	return mo.Some(transformContactFromCRM(object)), nil
}

// SearchContacts uses the CRM search endpoint with CONTAINS_TOKEN filters on
// email, first and last name.
func (c *Client) SearchContacts(ctx context.Context, query string) ([]*models.CRMContact, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	payload := map[string]any{
		"filterGroups": []map[string]any{
			{"filters": []map[string]any{{"propertyName": "email", "operator": "CONTAINS_TOKEN", "value": query}}},
			{"filters": []map[string]any{{"propertyName": "firstname", "operator": "CONTAINS_TOKEN", "value": query}}},
			{"filters": []map[string]any{{"propertyName": "lastname", "operator": "CONTAINS_TOKEN", "value": query}}},
		},
		"properties": []string{"email", "firstname", "lastname", "phone", "company", "jobtitle"},
		"limit":      50,
	}

	status, body, err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "search contacts", err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "search contacts", status, string(body))
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	contacts := make([]*models.CRMContact, 0, len(result.Results))
	for _, object := range result.Results {
		contacts = append(contacts, transformContactFromCRM(object))
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

	payload := map[string]any{"properties": transformOpportunityToCRM(opportunity)}
	status, body, err := c.do(ctx, http.MethodPost, "/crm/v3/objects/deals", nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "create opportunity", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "create opportunity", status, string(body))
	}

	var created hubspotObject
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode create deal response: %w", err)
	}

	result := transformOpportunityFromCRM(created)
	if result.ContactID == "" {
		result.ContactID = opportunity.ContactID
	}
	return result, nil
}

func (c *Client) UpdateOpportunity(
	ctx context.Context,
	opportunityID string,
	opportunity *models.CRMOpportunity,
) (*models.CRMOpportunity, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	payload := map[string]any{"properties": transformOpportunityToCRM(opportunity)}
	status, body, err := c.do(ctx, http.MethodPatch, "/crm/v3/objects/deals/"+opportunityID, nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "update opportunity", err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "update opportunity", status, string(body))
	}

	var updated hubspotObject
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, fmt.Errorf("failed to decode update deal response: %w", err)
	}
	return transformOpportunityFromCRM(updated), nil
}

func (c *Client) GetOpportunity(
	ctx context.Context,
	opportunityID string,
) (mo.Option[*models.CRMOpportunity], error) {
	if !c.authenticated {
		return mo.None[*models.CRMOpportunity](), clients.NotAuthenticatedError(providerName)
	}

	params := url.Values{}
	params.Set("properties", "dealname,amount,dealstage,hs_deal_stage_probability,closedate,associatedcontactids")

	status, body, err := c.do(ctx, http.MethodGet, "/crm/v3/objects/deals/"+opportunityID, params, nil)
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

	var object hubspotObject
	if err := json.Unmarshal(body, &object); err != nil {
		return mo.None[*models.CRMOpportunity](), fmt.Errorf("failed to decode deal: %w", err)
	}
	return mo.Some(transformOpportunityFromCRM(object)), nil
}

func (c *Client) SearchOpportunities(ctx context.Context, query string) ([]*models.CRMOpportunity, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	payload := map[string]any{
		"filterGroups": []map[string]any{
			{"filters": []map[string]any{{"propertyName": "dealname", "operator": "CONTAINS_TOKEN", "value": query}}},
		},
		"properties": []string{
			"dealname", "amount", "dealstage", "hs_deal_stage_probability", "closedate",
			"associatedcontactids",
		},
		"limit": 50,
	}

	status, body, err := c.do(ctx, http.MethodPost, "/crm/v3/objects/deals/search", nil, payload)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, "search opportunities", err)
	}
	if status != http.StatusOK {
		return nil, clients.WrapHTTPStatus(providerName, "search opportunities", status, string(body))
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	opportunities := make([]*models.CRMOpportunity, 0, len(result.Results))
	for _, object := range result.Results {
		opportunities = append(opportunities, transformOpportunityFromCRM(object))
	}
	return opportunities, nil
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	params url.Values,
	payload any,
) (int, []byte, error) {
	endpoint := c.baseURL + path
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
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

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

var contactExcludeProperties = []string{
	"email", "firstname", "firstName", "first_name",
	"lastname", "lastName", "last_name",
	"phone", "phone_number",
	"company", "company_name",
	"jobtitle", "title", "job_title",
	"createdate", "lastmodifieddate", "hs_object_id",
}

var opportunityExcludeProperties = []string{
	"dealname", "name", "opportunity_name",
	"amount", "value",
	"dealstage", "stage", "stage_name",
	"hs_deal_stage_probability", "probability", "probability_percent",
	"closedate", "close_date",
	"associatedcontactids", "contact_id", "contactId",
	"createdate", "lastmodifieddate", "hs_object_id", "hs_lastmodifieddate",
}

func transformContactFromCRM(object hubspotObject) *models.CRMContact {
	properties := object.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	contact := &models.CRMContact{
		ID:           object.ID,
		Email:        clients.StringField(properties, "email"),
		FirstName:    clients.StringField(properties, "firstname", "firstName", "first_name"),
		LastName:     clients.StringField(properties, "lastname", "lastName", "last_name"),
		Phone:        clients.StringField(properties, "phone", "phone_number"),
		Company:      clients.StringField(properties, "company", "company_name"),
		Title:        clients.StringField(properties, "jobtitle", "title", "job_title"),
		Source:       models.IntegrationTypeHubSpot,
		CustomFields: clients.ExtractCustomFields(properties, contactExcludeProperties),
		CreatedAt:    parseHubSpotTime(object.CreatedAt),
		UpdatedAt:    parseHubSpotTime(object.UpdatedAt),
	}
	return contact
}

func transformOpportunityFromCRM(object hubspotObject) *models.CRMOpportunity {
	properties := object.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	opportunity := &models.CRMOpportunity{
		ID:           object.ID,
		Name:         clients.StringField(properties, "dealname", "name", "opportunity_name"),
		Amount:       decimal.NewFromFloat(clients.FloatField(properties, "amount", "value")),
		Stage:        clients.StringField(properties, "dealstage", "stage", "stage_name"),
		Probability:  clients.FloatField(properties, "hs_deal_stage_probability", "probability"),
		ContactID:    clients.StringField(properties, "associatedcontactids", "contact_id", "contactId"),
		Source:       models.IntegrationTypeHubSpot,
		CustomFields: clients.ExtractCustomFields(properties, opportunityExcludeProperties),
		CreatedAt:    parseHubSpotTime(object.CreatedAt),
		UpdatedAt:    parseHubSpotTime(object.UpdatedAt),
	}

	if raw := clients.StringField(properties, "closedate", "close_date"); raw != "" {
		if t, ok := clients.ParseProviderTime(raw); ok {
			opportunity.CloseDate = &t
		}
	}
	return opportunity
}

func parseHubSpotTime(value string) time.Time {
	if t, ok := clients.ParseProviderTime(value); ok {
		return t
	}
	return time.Now().UTC()
}

func transformContactToCRM(contact *models.CRMContact) map[string]any {
	properties := map[string]any{
		"email":     contact.Email,
		"firstname": contact.FirstName,
		"lastname":  contact.LastName,
		"phone":     contact.Phone,
		"company":   contact.Company,
		"jobtitle":  contact.Title,
	}
	for key, value := range contact.CustomFields {
		properties[key] = value
	}
	return properties
}

func transformOpportunityToCRM(opportunity *models.CRMOpportunity) map[string]any {
	properties := map[string]any{
		"dealname":  opportunity.Name,
		"amount":    opportunity.Amount.String(),
		"dealstage": opportunity.Stage,
	}
	if opportunity.ContactID != "" {
		properties["associatedcontactids"] = opportunity.ContactID
	}
	if opportunity.CloseDate != nil {
		properties["closedate"] = opportunity.CloseDate.Format("2006-01-02")
	}
	for key, value := range opportunity.CustomFields {
		properties[key] = value
	}
	return properties
}
