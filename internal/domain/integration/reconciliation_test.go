package integration

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityTranslate copies the record without ids, like a real translator
func identityTranslate(r CatalogRecord) CatalogRecord {
	out := r.Clone()
	out.PlatformID = "should-be-replaced"
	return out
}

func byKey(actions []Action) map[string]Action {
	m := make(map[string]Action, len(actions))
	for _, a := range actions {
		m[a.Key()] = a
	}
	return m
}

// ---------------------------------------------------------------------------
// ReconcileProducts Tests
// ---------------------------------------------------------------------------

func TestReconcileProducts(t *testing.T) {
	older := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	t.Run("creates when no counterpart exists and keeps the identity key", func(t *testing.T) {
		actions := ReconcileProducts(DirectionSourceToTarget,
			[]CatalogRecord{{IdentityKey: " x2", PlatformID: "src-2", VariantID: "v-2"}},
			BuildCatalogIndex(nil),
			identityTranslate,
		)
		require.Len(t, actions, 1)
		a := actions[0]
		assert.Equal(t, ActionCreate, a.Kind)
		assert.Equal(t, "x2", a.Payload.IdentityKey)
		assert.Empty(t, a.Payload.PlatformID)
		assert.Empty(t, a.Payload.VariantID)
	})

	t.Run("skips when source is not strictly newer", func(t *testing.T) {
		for _, srcTime := range []time.Time{older, older.Add(-time.Minute)} {
			actions := ReconcileProducts(DirectionSourceToTarget,
				[]CatalogRecord{{IdentityKey: "X1", UpdatedAt: ptrTime(srcTime)}},
				BuildCatalogIndex([]CatalogRecord{{IdentityKey: "X1", PlatformID: "t-1", UpdatedAt: ptrTime(older)}}),
				identityTranslate,
			)
			require.Len(t, actions, 1)
			assert.Equal(t, ActionSkip, actions[0].Kind)
			assert.Equal(t, SkipReasonNotNewer, actions[0].Reason)
		}
	})

	t.Run("updates with the counterpart ids", func(t *testing.T) {
		target := CatalogRecord{
			IdentityKey:     "X1",
			PlatformID:      "t-1",
			VariantID:       "tv-1",
			InventoryItemID: "ti-1",
			UpdatedAt:       ptrTime(older),
		}
		actions := ReconcileProducts(DirectionSourceToTarget,
			[]CatalogRecord{{IdentityKey: "X1", PlatformID: "s-1", Title: "New", UpdatedAt: ptrTime(newer)}},
			BuildCatalogIndex([]CatalogRecord{target}),
			identityTranslate,
		)
		require.Len(t, actions, 1)
		a := actions[0]
		assert.Equal(t, ActionUpdate, a.Kind)
		assert.Equal(t, "t-1", a.Payload.PlatformID)
		assert.Equal(t, "tv-1", a.Payload.VariantID)
		assert.Equal(t, "ti-1", a.Payload.InventoryItemID)
		assert.Equal(t, "New", a.Payload.Title)
		assert.Equal(t, "t-1", a.Target.PlatformID)
	})

	t.Run("updates when either side has no modification time", func(t *testing.T) {
		actions := ReconcileProducts(DirectionTargetToSource,
			[]CatalogRecord{{IdentityKey: "X1"}},
			BuildCatalogIndex([]CatalogRecord{{IdentityKey: "X1", PlatformID: "p", UpdatedAt: ptrTime(newer)}}),
			identityTranslate,
		)
		require.Len(t, actions, 1)
		assert.Equal(t, ActionUpdate, actions[0].Kind)
		assert.Equal(t, DirectionTargetToSource, actions[0].Direction)
	})

	t.Run("records without identity key are skipped", func(t *testing.T) {
		actions := ReconcileProducts(DirectionSourceToTarget,
			[]CatalogRecord{{PlatformID: "no-key"}},
			BuildCatalogIndex(nil),
			identityTranslate,
		)
		require.Len(t, actions, 1)
		assert.Equal(t, ActionSkip, actions[0].Kind)
		assert.Equal(t, SkipReasonMissingKey, actions[0].Reason)
		assert.Equal(t, 0, CountMutations(actions))
	})

	t.Run("mixed catalog", func(t *testing.T) {
		source := []CatalogRecord{
			{IdentityKey: "X1", PlatformID: "A", UpdatedAt: ptrTime(newer)},
			{IdentityKey: "X2", PlatformID: "B", UpdatedAt: ptrTime(newer)},
		}
		target := []CatalogRecord{
			{IdentityKey: "X1", PlatformID: "C", UpdatedAt: ptrTime(older)},
		}

		forward := byKey(ReconcileProducts(DirectionSourceToTarget, source, BuildCatalogIndex(target), identityTranslate))
		require.Len(t, forward, 2)
		assert.Equal(t, ActionUpdate, forward["X1"].Kind)
		assert.Equal(t, "C", forward["X1"].Payload.PlatformID)
		assert.Equal(t, ActionCreate, forward["X2"].Kind)

		backward := ReconcileProducts(DirectionTargetToSource, target, BuildCatalogIndex(source), identityTranslate)
		require.Len(t, backward, 1)
		assert.Equal(t, ActionSkip, backward[0].Kind)
	})
}

// ---------------------------------------------------------------------------
// ReconcileInventory Tests
// ---------------------------------------------------------------------------

func TestReconcileInventory(t *testing.T) {
	storefront := BuildCatalogIndex([]CatalogRecord{
		{IdentityKey: "X1", PlatformID: "p1", InventoryItemID: "i1", StockQuantity: ptrInt(5)},
		{IdentityKey: "X2", PlatformID: "p2", InventoryItemID: "i2", StockQuantity: ptrInt(0)},
		{IdentityKey: "X3", PlatformID: "p3", InventoryItemID: "i3"},
		{IdentityKey: "X4", PlatformID: "p4", StockQuantity: ptrInt(1)},
	})

	actions := byKey(ReconcileInventory([]CatalogRecord{
		{IdentityKey: "X1", StockQuantity: ptrInt(8)},
		{IdentityKey: "X2"},
		{IdentityKey: "X3", StockQuantity: ptrInt(2)},
		{IdentityKey: "X4", StockQuantity: ptrInt(4)},
		{IdentityKey: "X9", StockQuantity: ptrInt(4)},
		{StockQuantity: ptrInt(4)},
	}, storefront))

	require.Len(t, actions, 4)

	assert.Equal(t, ActionAdjustInventory, actions["X1"].Kind)
	assert.Equal(t, int64(8), actions["X1"].Quantity)
	assert.Equal(t, "i1", actions["X1"].Target.InventoryItemID)

	assert.Equal(t, ActionSkip, actions["X2"].Kind, "missing ERP stock counts as zero")
	assert.Equal(t, SkipReasonStockUnchanged, actions["X2"].Reason)

	assert.Equal(t, ActionAdjustInventory, actions["X3"].Kind, "unknown storefront stock is always written")
	assert.Equal(t, int64(2), actions["X3"].Quantity)

	assert.Equal(t, ActionSkip, actions["X4"].Kind)
	assert.Equal(t, SkipReasonNoInventoryItem, actions["X4"].Reason)

	_, found := actions["X9"]
	assert.False(t, found)
}

// ---------------------------------------------------------------------------
// ReconcilePrices Tests
// ---------------------------------------------------------------------------

func TestReconcilePrices(t *testing.T) {
	toMinor := func(d decimal.Decimal) decimal.Decimal { return d.Mul(decimal.NewFromInt(100)) }

	t.Run("equal price after conversion emits no update", func(t *testing.T) {
		actions := ReconcilePrices(DirectionSourceToTarget,
			[]CatalogRecord{{IdentityKey: "X1", Price: decimal.NewNullDecimal(decimal.RequireFromString("19.99"))}},
			BuildCatalogIndex([]CatalogRecord{{IdentityKey: "X1", PlatformID: "t1", Price: decimal.NewNullDecimal(decimal.NewFromInt(1999))}}),
			toMinor,
		)
		require.Len(t, actions, 1)
		assert.Equal(t, ActionSkip, actions[0].Kind)
		assert.Equal(t, 0, CountMutations(actions))
	})

	t.Run("different price emits an update with the converted value", func(t *testing.T) {
		actions := ReconcilePrices(DirectionSourceToTarget,
			[]CatalogRecord{{IdentityKey: "X1", Price: decimal.NewNullDecimal(decimal.RequireFromString("21.50"))}},
			BuildCatalogIndex([]CatalogRecord{{IdentityKey: "X1", PlatformID: "t1", Price: decimal.NewNullDecimal(decimal.NewFromInt(1999))}}),
			toMinor,
		)
		require.Len(t, actions, 1)
		assert.Equal(t, ActionUpdatePrice, actions[0].Kind)
		assert.True(t, decimal.NewFromInt(2150).Equal(actions[0].Price))
		assert.Equal(t, "t1", actions[0].Target.PlatformID)
	})

	t.Run("comparison is exact", func(t *testing.T) {
		actions := ReconcilePrices(DirectionSourceToTarget,
			[]CatalogRecord{{IdentityKey: "X1", Price: decimal.NewNullDecimal(decimal.RequireFromString("19.991"))}},
			BuildCatalogIndex([]CatalogRecord{{IdentityKey: "X1", Price: decimal.NewNullDecimal(decimal.NewFromInt(1999))}}),
			toMinor,
		)
		require.Len(t, actions, 1)
		assert.Equal(t, ActionUpdatePrice, actions[0].Kind)
	})

	t.Run("receiving side without price is updated", func(t *testing.T) {
		actions := ReconcilePrices(DirectionTargetToSource,
			[]CatalogRecord{{IdentityKey: "X1", Price: decimal.NewNullDecimal(decimal.NewFromInt(500))}},
			BuildCatalogIndex([]CatalogRecord{{IdentityKey: "X1", VariantID: "v1"}}),
			func(d decimal.Decimal) decimal.Decimal { return d.Div(decimal.NewFromInt(100)) },
		)
		require.Len(t, actions, 1)
		assert.Equal(t, ActionUpdatePrice, actions[0].Kind)
		assert.True(t, decimal.NewFromInt(5).Equal(actions[0].Price))
	})

	t.Run("ignores unmatched records and records without price", func(t *testing.T) {
		actions := ReconcilePrices(DirectionSourceToTarget,
			[]CatalogRecord{
				{IdentityKey: "X1"},
				{IdentityKey: "X2", Price: decimal.NewNullDecimal(decimal.NewFromInt(1))},
				{Price: decimal.NewNullDecimal(decimal.NewFromInt(1))},
			},
			BuildCatalogIndex([]CatalogRecord{{IdentityKey: "X1"}}),
			toMinor,
		)
		assert.Empty(t, actions)
	})
}

// ---------------------------------------------------------------------------
// Direction Tests
// ---------------------------------------------------------------------------

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"source_to_target", false},
		{"target_to_source", false},
		{"both", true},
		{"", true},
		{"SOURCE_TO_TARGET", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDirection(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPriceSyncDirection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Direction(tt.in), d)
		})
	}
}
