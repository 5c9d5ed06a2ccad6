package types

import (
	"time"

	"github.com/icodeforyou/pvsoiling/types/maybe"
)

type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncError   SyncStatus = "error"
)

// EncryptedCredentials holds the three parts needed to decrypt a credential record.
type EncryptedCredentials struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

type InverterIntegration struct {
	ID                  string                 `json:"id"`
	PlantID             string                 `json:"plant_id"`
	Provider            string                 `json:"provider"`
	Credentials         EncryptedCredentials   `json:"-"`
	ExternalSiteID      string                 `json:"external_site_id"`
	IsActive            bool                   `json:"is_active"`
	SyncEnabled         bool                   `json:"sync_enabled"`
	LastSyncAt          maybe.Maybe[time.Time] `json:"last_sync_at"`
	LastSyncStatus      SyncStatus             `json:"last_sync_status"`
	LastSyncError       string                 `json:"last_sync_error,omitempty"`
	LastSyncCount       int                    `json:"last_sync_count"`
	ConsecutiveFailures int                    `json:"consecutive_failures"`
	NextSyncAfter       maybe.Maybe[time.Time] `json:"next_sync_after"`
}

// SyncResult is what one sync attempt writes back to its integration.
type SyncResult struct {
	At                  time.Time
	Status              SyncStatus
	Error               string
	Count               int
	ConsecutiveFailures int
	NextSyncAfter       maybe.Maybe[time.Time]
}
