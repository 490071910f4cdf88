// Package integration contains the catalog synchronization bounded context.
// This context keeps a storefront catalog and an ERP catalog consistent in
// product existence, stock levels and prices, and pushes storefront orders
// to the ERP.
//
// Key concepts:
//   - CatalogRecord: Platform-neutral view of a product on either side
//   - CatalogIndex: Identity-keyed lookup built fresh on every run
//   - Action: Reconciliation decision (create, update, skip, adjust stock, update price)
//   - SyncReport: Aggregated per-action outcomes of one sync phase
//   - Order / CustomerOrder: A storefront order and the ERP document built from it
//
// Design Pattern: Ports & Adapters
//   - Ports (SourcePlatform, TargetPlatform, OrderSource, OrderTarget,
//     RecordTranslator, SyncLock) are defined here
//   - Adapters (Shopify, MoySklad, Redis) are in the infrastructure layer
//   - Reconciliation functions are pure and hold no state between runs
package integration
