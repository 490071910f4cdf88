package integration

import (
	"errors"
	"time"
)

// ---------------------------------------------------------------------------
// SyncStatus represents the synchronization status
// ---------------------------------------------------------------------------

// SyncStatus represents the synchronization status
type SyncStatus string

const (
	// SyncStatusInProgress indicates sync is in progress
	SyncStatusInProgress SyncStatus = "IN_PROGRESS"
	// SyncStatusSuccess indicates every dispatched action succeeded
	SyncStatusSuccess SyncStatus = "SUCCESS"
	// SyncStatusPartial indicates some actions failed
	SyncStatusPartial SyncStatus = "PARTIAL"
	// SyncStatusFailed indicates no action succeeded or the run aborted
	SyncStatusFailed SyncStatus = "FAILED"
	// SyncStatusSkipped indicates the phase did not run
	SyncStatusSkipped SyncStatus = "SKIPPED"
)

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// SyncPhase names one of the three sync dimensions
type SyncPhase string

const (
	SyncPhaseProducts  SyncPhase = "products"
	SyncPhaseInventory SyncPhase = "inventory"
	SyncPhasePrices    SyncPhase = "prices"
)

// ---------------------------------------------------------------------------
// SyncOutcome
// ---------------------------------------------------------------------------

// OutcomeStatus is the settled state of one action
type OutcomeStatus string

const (
	OutcomeStatusSucceeded OutcomeStatus = "SUCCEEDED"
	OutcomeStatusFailed    OutcomeStatus = "FAILED"
	OutcomeStatusSkipped   OutcomeStatus = "SKIPPED"
)

// SyncOutcome is the settled result of one action
type SyncOutcome struct {
	Action Action
	Status OutcomeStatus
	// Result is the record returned by the platform for creates and updates
	Result *CatalogRecord
	Err    error
}

// OutcomeSucceeded creates a success outcome
func OutcomeSucceeded(action Action, result *CatalogRecord) SyncOutcome {
	return SyncOutcome{Action: action, Status: OutcomeStatusSucceeded, Result: result}
}

// OutcomeFailed creates a failure outcome
func OutcomeFailed(action Action, err error) SyncOutcome {
	return SyncOutcome{Action: action, Status: OutcomeStatusFailed, Err: err}
}

// OutcomeSkipped creates a skip outcome
func OutcomeSkipped(action Action) SyncOutcome {
	return SyncOutcome{Action: action, Status: OutcomeStatusSkipped}
}

// ---------------------------------------------------------------------------
// SyncReport
// ---------------------------------------------------------------------------

// SyncFailure represents a failed sync item
type SyncFailure struct {
	// IdentityKey is the key of the failed record
	IdentityKey string `json:"identity_key"`
	// Direction is the flow the action belonged to
	Direction Direction `json:"direction"`
	// Action is the kind of mutation that failed
	Action ActionKind `json:"action"`
	// ErrorMessage describes the last error
	ErrorMessage string `json:"error_message"`
}

// SyncReport aggregates the outcomes of one sync phase
type SyncReport struct {
	Phase         SyncPhase     `json:"phase"`
	Status        SyncStatus    `json:"status"`
	ModifiedSince *time.Time    `json:"modified_since,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	TotalCount    int           `json:"total_count"`
	SuccessCount  int           `json:"success_count"`
	FailedCount   int           `json:"failed_count"`
	SkippedCount  int           `json:"skipped_count"`
	FailedItems   []SyncFailure `json:"failed_items,omitempty"`
	// Error is set when the phase aborted or was skipped
	Error string `json:"error,omitempty"`
}

// NewSyncReport creates an in-progress report for a phase
func NewSyncReport(phase SyncPhase, modifiedSince *time.Time, startedAt time.Time) *SyncReport {
	return &SyncReport{
		Phase:         phase,
		Status:        SyncStatusInProgress,
		ModifiedSince: modifiedSince,
		StartedAt:     startedAt,
	}
}

// Record adds an outcome to the report
func (r *SyncReport) Record(o SyncOutcome) {
	r.TotalCount++
	switch o.Status {
	case OutcomeStatusSucceeded:
		r.SuccessCount++
	case OutcomeStatusSkipped:
		r.SkippedCount++
	case OutcomeStatusFailed:
		r.FailedCount++
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		r.FailedItems = append(r.FailedItems, SyncFailure{
			IdentityKey:  o.Action.Key(),
			Direction:    o.Action.Direction,
			Action:       o.Action.Kind,
			ErrorMessage: msg,
		})
	}
}

// Finish stamps the finish time and derives the status from the counts
func (r *SyncReport) Finish(at time.Time) {
	r.FinishedAt = at
	switch {
	case r.FailedCount == 0:
		r.Status = SyncStatusSuccess
	case r.SuccessCount == 0:
		r.Status = SyncStatusFailed
	default:
		r.Status = SyncStatusPartial
	}
}

// Abort marks the phase as failed by a systemic error
func (r *SyncReport) Abort(at time.Time, err error) {
	r.FinishedAt = at
	r.Status = SyncStatusFailed
	r.Error = err.Error()
}

// Skip marks the phase as not run
func (r *SyncReport) Skip(at time.Time, err error) {
	r.FinishedAt = at
	r.Status = SyncStatusSkipped
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns how long the phase ran
func (r *SyncReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ---------------------------------------------------------------------------
// SyncCycleReport
// ---------------------------------------------------------------------------

// SyncMode distinguishes complete and incremental runs
type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// IsFull returns true for complete runs
func (m SyncMode) IsFull() bool {
	return m == SyncModeFull
}

// SyncCycleReport aggregates one complete or incremental run
type SyncCycleReport struct {
	RunID         string        `json:"run_id"`
	Mode          SyncMode      `json:"mode"`
	Status        SyncStatus    `json:"status"`
	ModifiedSince *time.Time    `json:"modified_since,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Phases        []*SyncReport `json:"phases"`
	Error         string        `json:"error,omitempty"`
}

// Add appends a phase report
func (c *SyncCycleReport) Add(r *SyncReport) {
	if r != nil {
		c.Phases = append(c.Phases, r)
	}
}

// Phase returns the report for a phase, or nil when the phase did not run
func (c *SyncCycleReport) Phase(p SyncPhase) *SyncReport {
	for _, r := range c.Phases {
		if r.Phase == p {
			return r
		}
	}
	return nil
}

// Finish stamps the finish time and derives the cycle status
func (c *SyncCycleReport) Finish(at time.Time, err error) {
	c.FinishedAt = at
	if err != nil {
		c.Status = SyncStatusFailed
		c.Error = err.Error()
		return
	}
	c.Status = SyncStatusSuccess
	for _, r := range c.Phases {
		if r.Status == SyncStatusPartial || r.Status == SyncStatusFailed || r.Status == SyncStatusSkipped {
			c.Status = SyncStatusPartial
		}
	}
}

// IsSystemic reports whether err aborted a run rather than a single action
func IsSystemic(err error) bool {
	return errors.Is(err, ErrCatalogFetchFailed) || errors.Is(err, ErrOrderFetchFailed)
}
