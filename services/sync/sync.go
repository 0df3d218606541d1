package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"imbackend/clients"
	"imbackend/core"
	"imbackend/models"
)

// RecordStore is the persistence surface the engine reconciles against.
type RecordStore interface {
	UpsertContact(ctx context.Context, clientID string, contact *models.CRMContact) (bool, error)
	UpsertOpportunity(ctx context.Context, clientID string, opportunity *models.CRMOpportunity) (bool, error)
}

// Engine pulls provider pages and reconciles each record into the store.
// A record that fails validation or persistence is counted and skipped; it
// never aborts the run. Page fetches are retried with backoff and abort the
// whole run if they keep failing.
type Engine struct {
	store RecordStore
	retry core.RetryConfig
}

func NewEngine(store RecordStore) *Engine {
	return &Engine{store: store, retry: core.DefaultRetryConfig}
}

func (e *Engine) SyncContacts(
	ctx context.Context,
	crm clients.CRMClient,
	clientID string,
) (*models.SyncResult, error) {
	log.Printf("📋 Starting contact sync for client: %s", clientID)
	start := time.Now()
	result := &models.SyncResult{Errors: []string{}}

	cursor := ""
	for {
		var page *clients.ContactPage
		err := core.RetryWithBackoff(ctx, e.retry, func() error {
			var fetchErr error
			page, fetchErr = crm.ListContacts(ctx, cursor)
			return fetchErr
		})
		if err != nil {
			return nil, core.NewSyncError(fmt.Sprintf("failed to fetch contacts page at cursor %q", cursor), err)
		}

		for _, contact := range page.Contacts {
			result.RecordsProcessed++
			created, err := e.reconcileContact(ctx, clientID, contact)
			if err != nil {
				result.RecordsFailed++
				result.Errors = append(result.Errors, fmt.Sprintf("contact %s: %v", contact.ID, err))
				continue
			}
			if created {
				result.RecordsCreated++
			} else {
				result.RecordsUpdated++
			}
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	result.Duration = time.Since(start).Milliseconds()
	result.Timestamp = time.Now().UTC()
	result.Success = result.RecordsFailed == 0
	log.Printf("📋 Completed contact sync - processed: %d, created: %d, updated: %d, failed: %d",
		result.RecordsProcessed, result.RecordsCreated, result.RecordsUpdated, result.RecordsFailed)
	return result, nil
}

func (e *Engine) SyncOpportunities(
	ctx context.Context,
	crm clients.CRMClient,
	clientID string,
) (*models.SyncResult, error) {
	log.Printf("📋 Starting opportunity sync for client: %s", clientID)
	start := time.Now()
	result := &models.SyncResult{Errors: []string{}}

	cursor := ""
	for {
		var page *clients.OpportunityPage
		err := core.RetryWithBackoff(ctx, e.retry, func() error {
			var fetchErr error
			page, fetchErr = crm.ListOpportunities(ctx, cursor)
			return fetchErr
		})
		if err != nil {
			return nil, core.NewSyncError(fmt.Sprintf("failed to fetch opportunities page at cursor %q", cursor), err)
		}

		for _, opportunity := range page.Opportunities {
			result.RecordsProcessed++
			created, err := e.reconcileOpportunity(ctx, clientID, opportunity)
			if err != nil {
				result.RecordsFailed++
				result.Errors = append(result.Errors, fmt.Sprintf("opportunity %s: %v", opportunity.ID, err))
				continue
			}
			if created {
				result.RecordsCreated++
			} else {
				result.RecordsUpdated++
			}
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	result.Duration = time.Since(start).Milliseconds()
	result.Timestamp = time.Now().UTC()
	result.Success = result.RecordsFailed == 0
	log.Printf("📋 Completed opportunity sync - processed: %d, created: %d, updated: %d, failed: %d",
		result.RecordsProcessed, result.RecordsCreated, result.RecordsUpdated, result.RecordsFailed)
	return result, nil
}

// reconcileContact validates the canonical record and upserts it. Validation
// happens here, not in the adapters: mapping is best-effort and total, so a
// malformed provider record surfaces as one failed record in the result.
func (e *Engine) reconcileContact(
	ctx context.Context,
	clientID string,
	contact *models.CRMContact,
) (bool, error) {
	if contact.ID == "" {
		return false, fmt.Errorf("record has no provider ID")
	}
	if err := models.ValidateContact(contact); err != nil {
		return false, err
	}

	created, err := e.store.UpsertContact(ctx, clientID, contact)
	if err != nil {
		return false, fmt.Errorf("failed to store contact: %w", err)
	}
	return created, nil
}

func (e *Engine) reconcileOpportunity(
	ctx context.Context,
	clientID string,
	opportunity *models.CRMOpportunity,
) (bool, error) {
	if opportunity.ID == "" {
		return false, fmt.Errorf("record has no provider ID")
	}
	if err := models.ValidateOpportunity(opportunity); err != nil {
		return false, err
	}

	created, err := e.store.UpsertOpportunity(ctx, clientID, opportunity)
	if err != nil {
		return false, fmt.Errorf("failed to store opportunity: %w", err)
	}
	return created, nil
}
