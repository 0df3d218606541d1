package pipedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/models"
)

const (
	providerName = "Pipedrive"
	baseURL      = "https://api.pipedrive.com/v1"

	// Pipedrive allows up to 500 records per list request.
	pageLimit = 500
)

// Credentials holds the Pipedrive API token. Pipedrive authenticates every
// request via an api_token query parameter rather than a header.
type Credentials struct {
	APIToken string
}

func ParseCredentials(raw models.SecretMap) (*Credentials, error) {
	token := raw["apiToken"]
	if token == "" {
		token = raw["api_token"]
	}
	if token == "" {
		return nil, core.NewAuthenticationError("missing Pipedrive API token")
	}
	return &Credentials{APIToken: token}, nil
}

// envelope is Pipedrive's standard response wrapper. A 200 response with
// success=false is still a failure and must be treated as one.
type envelope struct {
	Success        bool            `json:"success"`
	Data           json.RawMessage `json:"data"`
	Error          string          `json:"error"`
	AdditionalData *struct {
		Pagination *struct {
			Start                 int  `json:"start"`
			Limit                 int  `json:"limit"`
			MoreItemsInCollection bool `json:"more_items_in_collection"`
			NextStart             int  `json:"next_start"`
		} `json:"pagination"`
	} `json:"additional_data"`
}

// Client implements clients.CRMClient against the Pipedrive v1 API.
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

// Authenticate probes the current-user endpoint to confirm the token works.
func (c *Client) Authenticate(ctx context.Context) error {
	env, err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, "authentication")
	if err != nil {
		return err
	}
	if !env.Success {
		return core.NewAuthenticationError(fmt.Sprintf("Pipedrive rejected API token: %s", env.Error))
	}
	c.authenticated = true
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) *clients.HealthStatus {
	if err := c.Authenticate(ctx); err != nil {
		return &clients.HealthStatus{
			Status: clients.HealthStatusUnhealthy,
			Details: map[string]any{
				"integration_type": models.IntegrationTypePipedrive,
				"error":            err.Error(),
				"last_check":       time.Now().UTC(),
			},
		}
	}

	return &clients.HealthStatus{
		Status: clients.HealthStatusHealthy,
		Details: map[string]any{
			"integration_type": models.IntegrationTypePipedrive,
			"authenticated":    true,
			"last_check":       time.Now().UTC(),
		},
	}
}

// ListContacts pulls one page of persons. The opaque cursor is the numeric
// start offset of the next page; empty means offset zero.
func (c *Client) ListContacts(ctx context.Context, cursor string) (*clients.ContactPage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	start, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("start", strconv.Itoa(start))
	params.Set("limit", strconv.Itoa(pageLimit))

	env, err := c.do(ctx, http.MethodGet, "/persons", params, nil, "list contacts")
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, core.NewExternalServiceError(fmt.Sprintf("Pipedrive list persons failed: %s", env.Error), nil)
	}

	var records []map[string]any
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode persons page: %w", err)
		}
	}

	contacts := make([]*models.CRMContact, 0, len(records))
	for _, record := range records {
		contacts = append(contacts, transformContactFromCRM(record))
	}

	page := &clients.ContactPage{Contacts: contacts}
	if p := env.pagination(); p != nil && p.MoreItemsInCollection {
		page.NextCursor = strconv.Itoa(p.NextStart)
		page.HasMore = true
	}
	return page, nil
}

func (c *Client) ListOpportunities(ctx context.Context, cursor string) (*clients.OpportunityPage, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	start, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("start", strconv.Itoa(start))
	params.Set("limit", strconv.Itoa(pageLimit))

	env, err := c.do(ctx, http.MethodGet, "/deals", params, nil, "list opportunities")
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, core.NewExternalServiceError(fmt.Sprintf("Pipedrive list deals failed: %s", env.Error), nil)
	}

	var records []map[string]any
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode deals page: %w", err)
		}
	}

	opportunities := make([]*models.CRMOpportunity, 0, len(records))
	for _, record := range records {
		opportunities = append(opportunities, transformOpportunityFromCRM(record))
	}

	page := &clients.OpportunityPage{Opportunities: opportunities}
	if p := env.pagination(); p != nil && p.MoreItemsInCollection {
		page.NextCursor = strconv.Itoa(p.NextStart)
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

	env, err := c.do(ctx, http.MethodPost, "/persons", nil, transformContactToCRM(contact), "create contact")
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, core.NewExternalServiceError(fmt.Sprintf("Pipedrive create person failed: %s", env.Error), nil)
	}

	var record map[string]any
	if err := json.Unmarshal(env.Data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode created person: %w", err)
	}
	return transformContactFromCRM(record), nil
}

func (c *Client) UpdateContact(
	ctx context.Context,
	contactID string,
	contact *models.CRMContact,
) (*models.CRMContact, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	env, err := c.do(ctx, http.MethodPut, "/persons/"+contactID, nil, transformContactToCRM(contact), "update contact")
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, core.NewExternalServiceError(fmt.Sprintf("Pipedrive update person failed: %s", env.Error), nil)
	}

	var record map[string]any
	if err := json.Unmarshal(env.Data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode updated person: %w", err)
	}
	return transformContactFromCRM(record), nil
}

func (c *Client) GetContact(ctx context.Context, contactID string) (mo.Option[*models.CRMContact], error) {
	if !c.authenticated {
		return mo.None[*models.CRMContact](), clients.NotAuthenticatedError(providerName)
	}

	env, err := c.do(ctx, http.MethodGet, "/persons/"+contactID, nil, nil, "get contact")
	if err != nil {
		if core.IsNotFoundError(err) {
			return mo.None[*models.CRMContact](), nil
		}
		return mo.None[*models.CRMContact](), err
	}
	if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		return mo.None[*models.CRMContact](), nil
	}

	var record map[string]any
	if err := json.Unmarshal(env.Data, &record); err != nil {
		return mo.None[*models.CRMContact](), fmt.Errorf("failed to decode person: %w", err)
	}
	return mo.Some(transformContactFromCRM(record)), nil
}

func (c *Client) SearchContacts(ctx context.Context, query string) ([]*models.CRMContact, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	params := url.Values{}
	params.Set("term", query)
	params.Set("fields", "name,email")
	params.Set("limit", "50")

	env, err := c.do(ctx, http.MethodGet, "/persons/search", params, nil, "search contacts")
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, core.NewExternalServiceError(fmt.Sprintf("Pipedrive search persons failed: %s", env.Error), nil)
	}

	// Search responses nest hits under data.items[].item.
	var data struct {
		Items []struct {
			Item map[string]any `json:"item"`
		} `json:"items"`
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode search response: %w", err)
		}
	}

	contacts := make([]*models.CRMContact, 0, len(data.Items))
	for _, hit := range data.Items {
		contacts = append(contacts, transformContactFromCRM(hit.Item))
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

	env, err := c.do(ctx, http.MethodPost, "/deals", nil, transformOpportunityToCRM(opportunity), "create opportunity")
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, core.NewExternalServiceError(fmt.Sprintf("Pipedrive create deal failed: %s", env.Error), nil)
	}

	var record map[string]any
	if err := json.Unmarshal(env.Data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode created deal: %w", err)
	}
	return transformOpportunityFromCRM(record), nil
}

func (c *Client) UpdateOpportunity(
	ctx context.Context,
	opportunityID string,
	opportunity *models.CRMOpportunity,
) (*models.CRMOpportunity, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	env, err := c.do(
		ctx, http.MethodPut, "/deals/"+opportunityID, nil,
		transformOpportunityToCRM(opportunity), "update opportunity",
	)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, core.NewExternalServiceError(fmt.Sprintf("Pipedrive update deal failed: %s", env.Error), nil)
	}

	var record map[string]any
	if err := json.Unmarshal(env.Data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode updated deal: %w", err)
	}
	return transformOpportunityFromCRM(record), nil
}

func (c *Client) GetOpportunity(
	ctx context.Context,
	opportunityID string,
) (mo.Option[*models.CRMOpportunity], error) {
	if !c.authenticated {
		return mo.None[*models.CRMOpportunity](), clients.NotAuthenticatedError(providerName)
	}

	env, err := c.do(ctx, http.MethodGet, "/deals/"+opportunityID, nil, nil, "get opportunity")
	if err != nil {
		if core.IsNotFoundError(err) {
			return mo.None[*models.CRMOpportunity](), nil
		}
		return mo.None[*models.CRMOpportunity](), err
	}
	if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		return mo.None[*models.CRMOpportunity](), nil
	}

	var record map[string]any
	if err := json.Unmarshal(env.Data, &record); err != nil {
		return mo.None[*models.CRMOpportunity](), fmt.Errorf("failed to decode deal: %w", err)
	}
	return mo.Some(transformOpportunityFromCRM(record)), nil
}

func (c *Client) SearchOpportunities(ctx context.Context, query string) ([]*models.CRMOpportunity, error) {
	if !c.authenticated {
		return nil, clients.NotAuthenticatedError(providerName)
	}

	params := url.Values{}
	params.Set("term", query)
	params.Set("limit", "50")

	env, err := c.do(ctx, http.MethodGet, "/deals/search", params, nil, "search opportunities")
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, core.NewExternalServiceError(fmt.Sprintf("Pipedrive search deals failed: %s", env.Error), nil)
	}

	var data struct {
		Items []struct {
			Item map[string]any `json:"item"`
		} `json:"items"`
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode search response: %w", err)
		}
	}

	opportunities := make([]*models.CRMOpportunity, 0, len(data.Items))
	for _, hit := range data.Items {
		opportunities = append(opportunities, transformOpportunityFromCRM(hit.Item))
	}
	return opportunities, nil
}

// do sends a request with the api_token query parameter attached, which
// Pipedrive requires on every call.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	params url.Values,
	payload any,
	operation string,
) (*envelope, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.creds.APIToken)
	endpoint := c.baseURL + path + "?" + params.Encode()

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, clients.WrapTransportError(providerName, operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, clients.WrapHTTPStatus(providerName, operation, resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	return &env, nil
}

func (e *envelope) pagination() *struct {
	Start                 int  `json:"start"`
	Limit                 int  `json:"limit"`
	MoreItemsInCollection bool `json:"more_items_in_collection"`
	NextStart             int  `json:"next_start"`
} {
	if e.AdditionalData == nil {
		return nil
	}
	return e.AdditionalData.Pagination
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	start, err := strconv.Atoi(cursor)
	if err != nil || start < 0 {
		return 0, core.NewValidationError(fmt.Sprintf("invalid Pipedrive page cursor: %q", cursor))
	}
	return start, nil
}

var contactExcludeFields = []string{
	"id",
	"name",
	"email", "primary_email",
	"first_name", "firstName",
	"last_name", "lastName",
	"phone", "phone_number",
	"org_id", "org_name", "company", "company_name",
	"job_title", "title",
	"add_time", "update_time",
}

var opportunityExcludeFields = []string{
	"id",
	"title", "name", "opportunity_name",
	"value", "amount",
	"stage_id", "stage", "stage_name",
	"probability", "probability_percent",
	"expected_close_date", "close_date", "closeDate",
	"person_id", "contact_id", "contactId",
	"add_time", "update_time",
}

// primaryEntry resolves Pipedrive's email/phone shape: either a plain string
// or an array of {value, primary} objects.
func primaryEntry(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		var first string
		for _, entry := range v {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			value, _ := obj["value"].(string)
			if value == "" {
				continue
			}
			if first == "" {
				first = value
			}
			if primary, _ := obj["primary"].(bool); primary {
				return value
			}
		}
		return first
	}
	return ""
}

func splitName(record map[string]any) (string, string) {
	first := clients.StringField(record, "first_name", "firstName")
	last := clients.StringField(record, "last_name", "lastName")
	if first != "" || last != "" {
		return first, last
	}

	full := clients.StringField(record, "name")
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func transformContactFromCRM(record map[string]any) *models.CRMContact {
	first, last := splitName(record)

	email := primaryEntry(record["email"])
	if email == "" {
		email = clients.StringField(record, "primary_email")
	}

	company := clients.StringField(record, "org_name", "company", "company_name")
	if company == "" {
		if org, ok := record["org_id"].(map[string]any); ok {
			company = clients.StringField(org, "name")
		}
	}

	return &models.CRMContact{
		ID:           clients.StringField(record, "id"),
		Email:        email,
		FirstName:    first,
		LastName:     last,
		Phone:        primaryEntry(record["phone"]),
		Company:      company,
		Title:        clients.StringField(record, "job_title", "title"),
		Source:       models.IntegrationTypePipedrive,
		CustomFields: clients.ExtractCustomFields(record, contactExcludeFields),
		CreatedAt:    clients.TimeField(record, "add_time"),
		UpdatedAt:    clients.TimeField(record, "update_time"),
	}
}

func transformOpportunityFromCRM(record map[string]any) *models.CRMOpportunity {
	contactID := ""
	switch person := record["person_id"].(type) {
	case map[string]any:
		contactID = clients.StringField(person, "value", "id")
	default:
		contactID = clients.StringField(record, "person_id", "contact_id")
	}

	opportunity := &models.CRMOpportunity{
		ID:           clients.StringField(record, "id"),
		Name:         clients.StringField(record, "title", "name", "opportunity_name"),
		Amount:       decimal.NewFromFloat(clients.FloatField(record, "value", "amount")),
		Stage:        clients.StringField(record, "stage_id", "stage", "stage_name"),
		Probability:  clients.FloatField(record, "probability", "probability_percent"),
		ContactID:    contactID,
		Source:       models.IntegrationTypePipedrive,
		CustomFields: clients.ExtractCustomFields(record, opportunityExcludeFields),
		CreatedAt:    clients.TimeField(record, "add_time"),
		UpdatedAt:    clients.TimeField(record, "update_time"),
	}

	if raw := clients.StringField(record, "expected_close_date", "close_date"); raw != "" {
		if t, ok := clients.ParseProviderTime(raw); ok {
			opportunity.CloseDate = &t
		}
	}
	return opportunity
}

func transformContactToCRM(contact *models.CRMContact) map[string]any {
	name := strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	payload := map[string]any{
		"name":  name,
		"email": []map[string]any{{"value": contact.Email, "primary": true}},
	}
	if contact.Phone != "" {
		payload["phone"] = []map[string]any{{"value": contact.Phone, "primary": true}}
	}
	if contact.Title != "" {
		payload["job_title"] = contact.Title
	}
	for key, value := range contact.CustomFields {
		payload[key] = value
	}
	return payload
}

func transformOpportunityToCRM(opportunity *models.CRMOpportunity) map[string]any {
	payload := map[string]any{
		"title": opportunity.Name,
		"value": opportunity.Amount.InexactFloat64(),
	}
	if opportunity.Stage != "" {
		payload["stage_id"] = opportunity.Stage
	}
	if opportunity.ContactID != "" {
		payload["person_id"] = opportunity.ContactID
	}
	if opportunity.Probability > 0 {
		payload["probability"] = opportunity.Probability
	}
	if opportunity.CloseDate != nil {
		payload["expected_close_date"] = opportunity.CloseDate.Format("2006-01-02")
	}
	for key, value := range opportunity.CustomFields {
		payload[key] = value
	}
	return payload
}
