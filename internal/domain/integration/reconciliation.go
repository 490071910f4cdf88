package integration

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ReconcileProducts decides, for every candidate on the sending side, whether
// its counterpart on the receiving side must be created, updated or left alone.
//
// Updates carry the counterpart's existing platform ids; creates never carry
// an id and always carry the identity key as the sending side spells it.
// Normalized keys are used for matching only.
func ReconcileProducts(
	dir Direction,
	candidates []CatalogRecord,
	counterparts CatalogIndex,
	translate func(CatalogRecord) CatalogRecord,
) []Action {
	actions := make([]Action, 0, len(candidates))
	for _, src := range candidates {
		key := src.Key()
		if key == "" {
			actions = append(actions, NewSkipAction(dir, src, CatalogRecord{}, SkipReasonMissingKey))
			continue
		}

		existing, found := counterparts.Lookup(key)
		if !found {
			payload := translate(src)
			payload.IdentityKey = strings.TrimSpace(src.IdentityKey)
			payload.PlatformID = ""
			payload.VariantID = ""
			payload.InventoryItemID = ""
			actions = append(actions, Action{
				Kind:      ActionCreate,
				Direction: dir,
				Source:    src,
				Payload:   payload,
			})
			continue
		}

		if !src.IsNewerThan(existing) {
			actions = append(actions, NewSkipAction(dir, src, existing, SkipReasonNotNewer))
			continue
		}

		payload := translate(src)
		payload.IdentityKey = strings.TrimSpace(src.IdentityKey)
		payload.PlatformID = existing.PlatformID
		payload.VariantID = existing.VariantID
		payload.InventoryItemID = existing.InventoryItemID
		actions = append(actions, Action{
			Kind:      ActionUpdate,
			Direction: dir,
			Source:    src,
			Target:    existing,
			Payload:   payload,
		})
	}
	return actions
}

// ReconcileInventory pushes ERP stock levels to the storefront. Only records
// present on both sides are considered; unknown ERP stock counts as zero.
func ReconcileInventory(stock []CatalogRecord, storefront CatalogIndex) []Action {
	actions := make([]Action, 0, len(stock))
	for _, src := range stock {
		key := src.Key()
		if key == "" {
			continue
		}
		existing, found := storefront.Lookup(key)
		if !found {
			continue
		}

		quantity := src.Stock()
		if existing.StockQuantity != nil && *existing.StockQuantity == quantity {
			actions = append(actions, NewSkipAction(DirectionTargetToSource, src, existing, SkipReasonStockUnchanged))
			continue
		}
		if existing.InventoryItemID == "" {
			actions = append(actions, NewSkipAction(DirectionTargetToSource, src, existing, SkipReasonNoInventoryItem))
			continue
		}

		actions = append(actions, Action{
			Kind:      ActionAdjustInventory,
			Direction: DirectionTargetToSource,
			Source:    src,
			Target:    existing,
			Quantity:  quantity,
		})
	}
	return actions
}

// ReconcilePrices compares prices in the given direction. Sending records
// without a key or a price are ignored. The converted price is compared
// exactly against the receiving side; a receiving record without a price is
// always updated.
func ReconcilePrices(
	dir Direction,
	sending []CatalogRecord,
	receiving CatalogIndex,
	convert func(decimal.Decimal) decimal.Decimal,
) []Action {
	actions := make([]Action, 0, len(sending))
	for _, src := range sending {
		key := src.Key()
		if key == "" || !src.Price.Valid {
			continue
		}
		existing, found := receiving.Lookup(key)
		if !found {
			continue
		}

		converted := convert(src.Price.Decimal)
		if existing.Price.Valid && converted.Equal(existing.Price.Decimal) {
			actions = append(actions, NewSkipAction(dir, src, existing, SkipReasonPriceUnchanged))
			continue
		}

		actions = append(actions, Action{
			Kind:      ActionUpdatePrice,
			Direction: dir,
			Source:    src,
			Target:    existing,
			Price:     converted,
		})
	}
	return actions
}
