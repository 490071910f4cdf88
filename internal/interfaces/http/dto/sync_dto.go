package dto

import (
	"time"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// SyncStatusResponse describes the sync engine state
type SyncStatusResponse struct {
	Running      bool                         `json:"running"`
	LastSyncTime *time.Time                   `json:"last_sync_time,omitempty"`
	LastReport   *integration.SyncCycleReport `json:"last_report,omitempty"`
	Scheduler    *SchedulerStatusResponse     `json:"scheduler,omitempty"`
}

// SchedulerStatusResponse describes the periodic trigger
type SchedulerStatusResponse struct {
	Running bool `json:"running"`
}

// PhaseSyncRequest selects the mode of a single-phase run
type PhaseSyncRequest struct {
	Mode string `form:"mode" binding:"omitempty,oneof=full incremental"`
}

// IsFull returns true unless an incremental run was requested
func (r PhaseSyncRequest) IsFull() bool {
	return r.Mode != string(integration.SyncModeIncremental)
}

// PhaseSyncURI identifies the phase of a single-phase run
type PhaseSyncURI struct {
	Phase string `uri:"phase" binding:"required,oneof=products inventory prices"`
}

// OrderSyncStatusResponse describes the order push state
type OrderSyncStatusResponse struct {
	Running    bool                         `json:"running"`
	LastReport *integration.OrderSyncReport `json:"last_report,omitempty"`
	Scheduler  *SchedulerStatusResponse     `json:"scheduler,omitempty"`
}
