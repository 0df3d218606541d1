package models

import (
	"time"

	"github.com/lib/pq"
)

// SyncType selects which record kinds a sync invocation pulls.
type SyncType string

const (
	SyncTypeContacts      SyncType = "contacts"
	SyncTypeOpportunities SyncType = "opportunities"
	SyncTypeAll           SyncType = "all"
)

func (t SyncType) IsValid() bool {
	switch t {
	case SyncTypeContacts, SyncTypeOpportunities, SyncTypeAll:
		return true
	}
	return false
}

// SyncResult is the outcome of one sync invocation. Invariant:
// RecordsCreated + RecordsUpdated + RecordsFailed == RecordsProcessed,
// and Success is true iff RecordsFailed == 0.
type SyncResult struct {
	Success          bool      `json:"success"`
	RecordsProcessed int       `json:"records_processed"`
	RecordsCreated   int       `json:"records_created"`
	RecordsUpdated   int       `json:"records_updated"`
	RecordsFailed    int       `json:"records_failed"`
	Errors           []string  `json:"errors"`
	Duration         int64     `json:"duration_ms"`
	Timestamp        time.Time `json:"timestamp"`
}

// Merge combines two sync results into one, used when syncType "all" runs
// the contacts and opportunities passes sequentially.
func (r SyncResult) Merge(other SyncResult) SyncResult {
	merged := SyncResult{
		RecordsProcessed: r.RecordsProcessed + other.RecordsProcessed,
		RecordsCreated:   r.RecordsCreated + other.RecordsCreated,
		RecordsUpdated:   r.RecordsUpdated + other.RecordsUpdated,
		RecordsFailed:    r.RecordsFailed + other.RecordsFailed,
		Errors:           append(append([]string{}, r.Errors...), other.Errors...),
		Duration:         r.Duration + other.Duration,
		Timestamp:        other.Timestamp,
	}
	merged.Success = merged.RecordsFailed == 0
	return merged
}

// SyncRun is one persisted audit row per completed sync. Integration
// metrics are derived entirely from these rows, never from mutable
// counters on the integration itself.
type SyncRun struct {
	ID               string         `db:"id"                json:"id"`
	IntegrationID    string         `db:"integration_id"    json:"integration_id"`
	ClientID         string         `db:"client_id"         json:"client_id"`
	SyncType         SyncType       `db:"sync_type"         json:"sync_type"`
	Success          bool           `db:"success"           json:"success"`
	RecordsProcessed int            `db:"records_processed" json:"records_processed"`
	RecordsCreated   int            `db:"records_created"   json:"records_created"`
	RecordsUpdated   int            `db:"records_updated"   json:"records_updated"`
	RecordsFailed    int            `db:"records_failed"    json:"records_failed"`
	Errors           pq.StringArray `db:"errors"            json:"errors"`
	DurationMs       int64          `db:"duration_ms"       json:"duration_ms"`
	CreatedAt        time.Time      `db:"created_at"        json:"created_at"`
}

// IntegrationMetrics is the read-only aggregate view over an integration's
// past sync runs.
type IntegrationMetrics struct {
	TotalSyncs       int        `db:"total_syncs"       json:"total_syncs"`
	SuccessfulSyncs  int        `db:"successful_syncs"  json:"successful_syncs"`
	FailedSyncs      int        `db:"failed_syncs"      json:"failed_syncs"`
	SuccessRate      float64    `json:"success_rate"`
	AverageSyncTime  float64    `db:"average_sync_time" json:"average_sync_time_ms"`
	LastSync         *time.Time `db:"last_sync"         json:"last_sync"`
	RecordsProcessed int        `db:"records_processed" json:"records_processed"`
	RecordsCreated   int        `db:"records_created"   json:"records_created"`
	RecordsUpdated   int        `db:"records_updated"   json:"records_updated"`
	RecordsFailed    int        `db:"records_failed"    json:"records_failed"`
}
