package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	salesapp "github.com/retail/backend/internal/application/sales"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/domain/shared"
)

// Ensure MemoryBillArchive implements BillArchive
var _ salesapp.BillArchive = (*MemoryBillArchive)(nil)

// MemoryBillArchive keeps archived bills in process memory.
// It is used when no object storage is configured and in tests.
type MemoryBillArchive struct {
	mu      sync.RWMutex
	prefix  string
	objects map[string][]byte
}

// NewMemoryBillArchive creates an empty MemoryBillArchive
func NewMemoryBillArchive(prefix string) *MemoryBillArchive {
	return &MemoryBillArchive{
		prefix:  prefix,
		objects: make(map[string][]byte),
	}
}

// Store keeps the bill as JSON, replacing an earlier copy
func (a *MemoryBillArchive) Store(_ context.Context, bill *sales.Bill) error {
	body, err := encodeBill(bill)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[archiveKey(a.prefix, bill.SerialNumber)] = body
	return nil
}

// Fetch returns an archived bill, NotFound if it was never archived
func (a *MemoryBillArchive) Fetch(_ context.Context, serial string) (*sales.Bill, error) {
	a.mu.RLock()
	body, ok := a.objects[archiveKey(a.prefix, serial)]
	a.mu.RUnlock()
	if !ok {
		return nil, shared.NewNotFoundError("Archived bill", serial)
	}
	var bill sales.Bill
	if err := json.Unmarshal(body, &bill); err != nil {
		return nil, fmt.Errorf("failed to decode bill %s: %w", serial, err)
	}
	return &bill, nil
}

// Keys returns the object keys held, in no particular order
func (a *MemoryBillArchive) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	return keys
}
