package integration

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Direction represents which side of the sync is authoritative
// ---------------------------------------------------------------------------

// Direction represents the flow of data between the two catalogs
type Direction string

const (
	// DirectionSourceToTarget flows from the storefront into the ERP
	DirectionSourceToTarget Direction = "source_to_target"
	// DirectionTargetToSource flows from the ERP into the storefront
	DirectionTargetToSource Direction = "target_to_source"
)

// IsValid returns true if the direction is one of the two recognized values
func (d Direction) IsValid() bool {
	switch d {
	case DirectionSourceToTarget, DirectionTargetToSource:
		return true
	default:
		return false
	}
}

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// ParseDirection parses a configured direction. Anything other than the two
// recognized values is a configuration error.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriceSyncDirection, s)
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// ActionKind represents a reconciliation decision
// ---------------------------------------------------------------------------

// ActionKind represents a reconciliation decision
type ActionKind string

const (
	// ActionCreate creates the record on the receiving side
	ActionCreate ActionKind = "CREATE"
	// ActionUpdate overwrites the existing counterpart
	ActionUpdate ActionKind = "UPDATE"
	// ActionSkip leaves both sides untouched
	ActionSkip ActionKind = "SKIP"
	// ActionAdjustInventory sets the storefront stock level
	ActionAdjustInventory ActionKind = "ADJUST_INVENTORY"
	// ActionUpdatePrice sets the price on the receiving side
	ActionUpdatePrice ActionKind = "UPDATE_PRICE"
)

// IsMutation returns true if executing the action calls a remote platform
func (k ActionKind) IsMutation() bool {
	return k != ActionSkip
}

// String returns the string representation of ActionKind
func (k ActionKind) String() string {
	return string(k)
}

// Skip reasons
const (
	SkipReasonNotNewer        = "not newer"
	SkipReasonMissingKey      = "missing identity key"
	SkipReasonStockUnchanged  = "stock unchanged"
	SkipReasonPriceUnchanged  = "price unchanged"
	SkipReasonNoInventoryItem = "no inventory item"
)

// Action is a single decision produced by reconciliation. Only mutation
// actions are dispatched to a platform; skips are recorded as outcomes.
type Action struct {
	Kind      ActionKind
	Direction Direction
	// Source is the record the decision was derived from
	Source CatalogRecord
	// Target is the existing counterpart, zero for creates
	Target CatalogRecord
	// Payload is the translated record to send for creates and updates
	Payload  CatalogRecord
	Quantity int64
	Price    decimal.Decimal
	Reason   string
}

// Key returns the identity key the action applies to
func (a Action) Key() string {
	if a.Source.HasIdentity() {
		return a.Source.Key()
	}
	return a.Target.Key()
}

// NewSkipAction creates a skip decision for a record
func NewSkipAction(dir Direction, source, target CatalogRecord, reason string) Action {
	return Action{
		Kind:      ActionSkip,
		Direction: dir,
		Source:    source,
		Target:    target,
		Reason:    reason,
	}
}

// CountMutations returns the number of actions that call a remote platform
func CountMutations(actions []Action) int {
	n := 0
	for _, a := range actions {
		if a.Kind.IsMutation() {
			n++
		}
	}
	return n
}
