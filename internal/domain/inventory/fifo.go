package inventory

import (
	"bytes"
	"slices"
	"time"
)

// compareExpiry orders by expiry date ascending with nil (no expiry) last
func compareExpiry(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// SortBatchesFIFO orders batches by expiry, purchase date, then id
func SortBatchesFIFO(batches []Batch) {
	slices.SortStableFunc(batches, func(a, b Batch) int {
		if c := compareExpiry(a.ExpiryDate, b.ExpiryDate); c != 0 {
			return c
		}
		if c := a.PurchaseDate.Compare(b.PurchaseDate); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
}

// SortEntriesFIFO orders channel rows by expiry, first restock, then batch id
func SortEntriesFIFO(entries []StoreStockEntry) {
	slices.SortStableFunc(entries, func(a, b StoreStockEntry) int {
		if c := compareExpiry(a.ExpiryDate, b.ExpiryDate); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.BatchID[:], b.BatchID[:])
	})
}
