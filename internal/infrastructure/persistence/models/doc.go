// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel shared by every table with a uuid key
//   - catalog.go: products
//   - inventory.go: batches, store_stock, inventory_transactions
//   - sales.go: bills, bill_lines, bill_serial_counters
package models
