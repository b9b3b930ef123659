package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/catalog"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ErrDuplicateKey is returned when a bill id is inserted twice, as the
// primary key does in the database
var ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")

// Ledger is an in-memory store behind the product, batch, channel stock,
// transaction log and bill repositories. All views share one mutex, so each
// conditional update is atomic just like the SQL version.
type Ledger struct {
	mu       sync.Mutex
	products map[string]*catalog.Product
	batches  map[uuid.UUID]*inventory.Batch
	stock    map[stockKey]*inventory.StoreStockEntry
	records  []inventory.TransactionRecord
	bills    map[uuid.UUID]*sales.Bill
	serials  map[string]int

	appendErr      error
	billCreateErr  error
	addStockErr    error
	beforeDecrease func(channel inventory.Channel, productCode string, batchID uuid.UUID)
}

type stockKey struct {
	channel inventory.Channel
	code    string
	batchID uuid.UUID
}

// NewLedger creates an empty Ledger
func NewLedger() *Ledger {
	return &Ledger{
		products: make(map[string]*catalog.Product),
		batches:  make(map[uuid.UUID]*inventory.Batch),
		stock:    make(map[stockKey]*inventory.StoreStockEntry),
		bills:    make(map[uuid.UUID]*sales.Bill),
		serials:  make(map[string]int),
	}
}

// Day returns midnight UTC n days from today
func Day(n int) *time.Time {
	d := inventory.DateOf(time.Now()).AddDate(0, 0, n)
	return &d
}

// AddProduct registers an active product priced at price
func (l *Ledger) AddProduct(code, name, price string) *catalog.Product {
	p, err := catalog.NewProduct(code, name, decimal.RequireFromString(price))
	if err != nil {
		panic(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.products[code] = p
	return p
}

// AddBatch receives qty units of a product into the batch ledger
func (l *Ledger) AddBatch(code string, qty int, expiry *time.Time) *inventory.Batch {
	b, err := inventory.NewBatch(code, qty, decimal.NewFromInt(1), time.Now().AddDate(0, 0, -30), expiry, "Test Supplier")
	if err != nil {
		panic(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches[b.ID] = b
	return b
}

// PutStock places qty units of a batch directly on a channel.
// Rows put later count as restocked later.
func (l *Ledger) PutStock(channel inventory.Channel, code string, batch *inventory.Batch, qty int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addStockLocked(channel, code, batch.ID, batch.ExpiryDate, qty)
}

func (l *Ledger) addStockLocked(channel inventory.Channel, code string, batchID uuid.UUID, expiry *time.Time, qty int) {
	key := stockKey{channel, code, batchID}
	if e, ok := l.stock[key]; ok {
		e.Quantity += qty
		return
	}
	e := inventory.NewStoreStockEntry(code, batchID, channel, expiry, qty)
	// keep restock order strictly increasing even within one clock tick
	e.CreatedAt = time.Now().Add(time.Duration(len(l.stock)) * time.Microsecond)
	l.stock[key] = e
}

// StockQuantity returns the quantity of one channel row, 0 when missing
func (l *Ledger) StockQuantity(channel inventory.Channel, code string, batchID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.stock[stockKey{channel, code, batchID}]; ok {
		return e.Quantity
	}
	return 0
}

// ChannelTotal sums a product's rows on a channel
func (l *Ledger) ChannelTotal(channel inventory.Channel, code string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for k, e := range l.stock {
		if k.channel == channel && k.code == code {
			total += e.Quantity
		}
	}
	return total
}

// BatchRemaining returns the remaining quantity of a batch
func (l *Ledger) BatchRemaining(id uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.batches[id]; ok {
		return b.QuantityRemaining
	}
	return 0
}

// Records returns a copy of the transaction log
func (l *Ledger) Records() []inventory.TransactionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.records)
}

// RecordsOfKind returns the records of one kind
func (l *Ledger) RecordsOfKind(kind inventory.TransactionKind) []inventory.TransactionRecord {
	var out []inventory.TransactionRecord
	for _, r := range l.Records() {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// BillCount returns the number of persisted bills
func (l *Ledger) BillCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bills)
}

// FailAppend makes every TransactionLog.Append return err until reset with nil
func (l *Ledger) FailAppend(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendErr = err
}

// FailBillCreate makes BillRepository.Create return err until reset with nil
func (l *Ledger) FailBillCreate(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.billCreateErr = err
}

// FailAddStock makes StoreStockRepository.AddQuantity return err until reset with nil
func (l *Ledger) FailAddStock(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addStockErr = err
}

// BeforeDecrease installs a hook run before every channel decrement,
// outside the lock, so tests can simulate a concurrent sale.
func (l *Ledger) BeforeDecrease(hook func(channel inventory.Channel, productCode string, batchID uuid.UUID)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.beforeDecrease = hook
}

// Products returns the product repository view
func (l *Ledger) Products() catalog.ProductRepository { return productRepo{l} }

// Batches returns the batch repository view
func (l *Ledger) Batches() inventory.BatchRepository { return batchRepo{l} }

// Store returns the store stock repository of a channel
func (l *Ledger) Store(channel inventory.Channel) inventory.StoreStockRepository {
	return storeRepo{l, channel}
}

// Log returns the transaction log view
func (l *Ledger) Log() inventory.TransactionLog { return logRepo{l} }

// Bills returns the bill repository view
func (l *Ledger) Bills() sales.BillRepository { return billRepo{l} }

type productRepo struct{ l *Ledger }

func (r productRepo) FindByCode(_ context.Context, code string) (*catalog.Product, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	p, ok := r.l.products[code]
	if !ok {
		return nil, shared.NewNotFoundError("Product", code)
	}
	cp := *p
	return &cp, nil
}

func (r productRepo) FindByCodes(_ context.Context, codes []string) (map[string]*catalog.Product, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	out := make(map[string]*catalog.Product, len(codes))
	for _, c := range codes {
		if p, ok := r.l.products[c]; ok {
			cp := *p
			out[c] = &cp
		}
	}
	return out, nil
}

func (r productRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	_, ok := r.l.products[code]
	return ok, nil
}

func (r productRepo) Save(_ context.Context, p *catalog.Product) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	cp := *p
	r.l.products[p.Code] = &cp
	return nil
}

type batchRepo struct{ l *Ledger }

func (r batchRepo) Create(_ context.Context, b *inventory.Batch) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	cp := *b
	r.l.batches[b.ID] = &cp
	return nil
}

func (r batchRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Batch, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	b, ok := r.l.batches[id]
	if !ok {
		return nil, shared.NewNotFoundError("Batch", id)
	}
	cp := *b
	return &cp, nil
}

func (r batchRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	_, ok := r.l.batches[id]
	return ok, nil
}

func (r batchRepo) DecreaseRemaining(_ context.Context, id uuid.UUID, amount int) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	b, ok := r.l.batches[id]
	if !ok {
		return false, shared.NewNotFoundError("Batch", id)
	}
	if b.QuantityRemaining < amount {
		return false, nil
	}
	b.QuantityRemaining -= amount
	return true, nil
}

func (r batchRepo) IncreaseRemaining(_ context.Context, id uuid.UUID, amount int) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	b, ok := r.l.batches[id]
	if !ok {
		return false, shared.NewNotFoundError("Batch", id)
	}
	if b.QuantityRemaining+amount > b.QuantityReceived {
		return false, nil
	}
	b.QuantityRemaining += amount
	return true, nil
}

func (r batchRepo) filter(keep func(*inventory.Batch) bool) []inventory.Batch {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []inventory.Batch
	for _, b := range r.l.batches {
		if keep(b) {
			out = append(out, *b)
		}
	}
	inventory.SortBatchesFIFO(out)
	return out
}

func (r batchRepo) FindAvailableByProduct(_ context.Context, code string) ([]inventory.Batch, error) {
	return r.filter(func(b *inventory.Batch) bool {
		return b.ProductCode == code && b.QuantityRemaining > 0
	}), nil
}

func (r batchRepo) FindExpiringBetween(_ context.Context, from, to time.Time) ([]inventory.Batch, error) {
	return r.filter(func(b *inventory.Batch) bool {
		return b.QuantityRemaining > 0 && b.ExpiryDate != nil &&
			!b.ExpiryDate.Before(from) && !b.ExpiryDate.After(to)
	}), nil
}

func (r batchRepo) FindExpired(_ context.Context, asOf time.Time) ([]inventory.Batch, error) {
	return r.filter(func(b *inventory.Batch) bool {
		return b.QuantityRemaining > 0 && b.ExpiryDate != nil && b.ExpiryDate.Before(asOf)
	}), nil
}

func (r batchRepo) FindBySupplier(_ context.Context, supplier string) ([]inventory.Batch, error) {
	return r.filter(func(b *inventory.Batch) bool { return b.SupplierName == supplier }), nil
}

func (r batchRepo) FindByPurchaseDateRange(_ context.Context, from, to time.Time) ([]inventory.Batch, error) {
	return r.filter(func(b *inventory.Batch) bool {
		return !b.PurchaseDate.Before(from) && !b.PurchaseDate.After(to)
	}), nil
}

func (r batchRepo) TotalRemaining(_ context.Context, code string) (int, error) {
	total := 0
	for _, b := range r.filter(func(b *inventory.Batch) bool { return b.ProductCode == code }) {
		total += b.QuantityRemaining
	}
	return total, nil
}

func (r batchRepo) CountByProduct(_ context.Context, code string) (int64, error) {
	return int64(len(r.filter(func(b *inventory.Batch) bool { return b.ProductCode == code }))), nil
}

func (r batchRepo) Summary(_ context.Context) ([]inventory.ProductStockSummary, error) {
	byCode := map[string]*inventory.ProductStockSummary{}
	var codes []string
	for _, b := range r.filter(func(b *inventory.Batch) bool { return b.QuantityRemaining > 0 }) {
		s, ok := byCode[b.ProductCode]
		if !ok {
			s = &inventory.ProductStockSummary{ProductCode: b.ProductCode}
			byCode[b.ProductCode] = s
			codes = append(codes, b.ProductCode)
		}
		s.TotalRemaining += b.QuantityRemaining
		s.BatchCount++
		if b.ExpiryDate != nil && (s.EarliestExpiry == nil || b.ExpiryDate.Before(*s.EarliestExpiry)) {
			s.EarliestExpiry = b.ExpiryDate
		}
	}
	slices.Sort(codes)
	out := make([]inventory.ProductStockSummary, 0, len(codes))
	for _, c := range codes {
		out = append(out, *byCode[c])
	}
	return out, nil
}

type storeRepo struct {
	l       *Ledger
	channel inventory.Channel
}

func (r storeRepo) Channel() inventory.Channel { return r.channel }

func (r storeRepo) Find(_ context.Context, code string, batchID uuid.UUID) (*inventory.StoreStockEntry, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	e, ok := r.l.stock[stockKey{r.channel, code, batchID}]
	if !ok {
		return nil, shared.NewNotFoundError("Store stock", code+"/"+batchID.String())
	}
	cp := *e
	return &cp, nil
}

func (r storeRepo) rows(keep func(*inventory.StoreStockEntry) bool) []inventory.StoreStockEntry {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []inventory.StoreStockEntry
	for k, e := range r.l.stock {
		if k.channel == r.channel && keep(e) {
			out = append(out, *e)
		}
	}
	inventory.SortEntriesFIFO(out)
	return out
}

func (r storeRepo) FindByProduct(_ context.Context, code string) ([]inventory.StoreStockEntry, error) {
	return r.rows(func(e *inventory.StoreStockEntry) bool { return e.ProductCode == code }), nil
}

func (r storeRepo) FindAvailableByProduct(_ context.Context, code string) ([]inventory.StoreStockEntry, error) {
	return r.rows(func(e *inventory.StoreStockEntry) bool {
		return e.ProductCode == code && e.Quantity > 0
	}), nil
}

func (r storeRepo) AddQuantity(_ context.Context, code string, batchID uuid.UUID, expiry *time.Time, amount int) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if r.l.addStockErr != nil {
		return r.l.addStockErr
	}
	r.l.addStockLocked(r.channel, code, batchID, expiry, amount)
	return nil
}

func (r storeRepo) DecreaseQuantity(_ context.Context, code string, batchID uuid.UUID, amount int) (bool, error) {
	r.l.mu.Lock()
	hook := r.l.beforeDecrease
	r.l.mu.Unlock()
	if hook != nil {
		hook(r.channel, code, batchID)
	}

	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	e, ok := r.l.stock[stockKey{r.channel, code, batchID}]
	if !ok {
		return false, shared.NewNotFoundError("Store stock", code+"/"+batchID.String())
	}
	if e.Quantity < amount {
		return false, nil
	}
	e.Quantity -= amount
	return true, nil
}

func (r storeRepo) IncreaseQuantity(_ context.Context, code string, batchID uuid.UUID, amount int) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	e, ok := r.l.stock[stockKey{r.channel, code, batchID}]
	if !ok {
		return false, nil
	}
	e.Quantity += amount
	return true, nil
}

func (r storeRepo) TotalQuantity(ctx context.Context, code string) (int, error) {
	rows, _ := r.FindByProduct(ctx, code)
	return inventory.TotalQuantity(rows), nil
}

func (r storeRepo) Summary(_ context.Context) ([]inventory.ProductQuantity, error) {
	byCode := map[string]*inventory.ProductQuantity{}
	var codes []string
	for _, e := range r.rows(func(*inventory.StoreStockEntry) bool { return true }) {
		q, ok := byCode[e.ProductCode]
		if !ok {
			q = &inventory.ProductQuantity{ProductCode: e.ProductCode}
			byCode[e.ProductCode] = q
			codes = append(codes, e.ProductCode)
		}
		q.Quantity += e.Quantity
		if e.Quantity > 0 {
			q.BatchCount++
		}
	}
	slices.Sort(codes)
	out := make([]inventory.ProductQuantity, 0, len(codes))
	for _, c := range codes {
		out = append(out, *byCode[c])
	}
	return out, nil
}

func (r storeRepo) FindLowStock(ctx context.Context, threshold int) ([]inventory.ProductQuantity, error) {
	all, _ := r.Summary(ctx)
	var out []inventory.ProductQuantity
	for _, q := range all {
		if q.Quantity < threshold {
			out = append(out, q)
		}
	}
	return out, nil
}

type logRepo struct{ l *Ledger }

func (r logRepo) Append(_ context.Context, records ...*inventory.TransactionRecord) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if r.l.appendErr != nil {
		return r.l.appendErr
	}
	for _, rec := range records {
		r.l.records = append(r.l.records, *rec)
	}
	return nil
}

func (r logRepo) find(keep func(inventory.TransactionRecord) bool) []inventory.TransactionRecord {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []inventory.TransactionRecord
	for _, rec := range r.l.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (r logRepo) FindByProduct(_ context.Context, code string, limit int) ([]inventory.TransactionRecord, error) {
	out := r.find(func(rec inventory.TransactionRecord) bool { return rec.ProductCode == code })
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r logRepo) FindByBatch(_ context.Context, batchID uuid.UUID) ([]inventory.TransactionRecord, error) {
	return r.find(func(rec inventory.TransactionRecord) bool { return rec.BatchID == batchID }), nil
}

func (r logRepo) FindByBill(_ context.Context, billID uuid.UUID) ([]inventory.TransactionRecord, error) {
	return r.find(func(rec inventory.TransactionRecord) bool {
		return rec.BillID != nil && *rec.BillID == billID
	}), nil
}

type billRepo struct{ l *Ledger }

func (r billRepo) Create(_ context.Context, b *sales.Bill) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if r.l.billCreateErr != nil {
		return r.l.billCreateErr
	}
	if _, dup := r.l.bills[b.ID]; dup {
		return fmt.Errorf("%w: bill %s", ErrDuplicateKey, b.ID)
	}
	r.l.bills[b.ID] = b.Clone()
	return nil
}

func (r billRepo) FindByID(_ context.Context, id uuid.UUID) (*sales.Bill, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	b, ok := r.l.bills[id]
	if !ok {
		return nil, shared.NewNotFoundError("Bill", id)
	}
	return b.Clone(), nil
}

func (r billRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	_, ok := r.l.bills[id]
	return ok, nil
}

func (r billRepo) FindBySerialNumber(_ context.Context, serial string) (*sales.Bill, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, b := range r.l.bills {
		if b.SerialNumber == serial {
			return b.Clone(), nil
		}
	}
	return nil, shared.NewNotFoundError("Bill", serial)
}

func (r billRepo) finalized(keep func(*sales.Bill) bool) []sales.Bill {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []sales.Bill
	for _, b := range r.l.bills {
		if b.Status == sales.BillStatusFinalized && keep(b) {
			out = append(out, *b.Clone())
		}
	}
	slices.SortFunc(out, func(a, b sales.Bill) int { return b.BillDate.Compare(a.BillDate) })
	return out
}

func (r billRepo) FindByDateRange(_ context.Context, from, to time.Time) ([]sales.Bill, error) {
	return r.finalized(func(b *sales.Bill) bool {
		return !b.BillDate.Before(from) && b.BillDate.Before(to)
	}), nil
}

func (r billRepo) FindByCustomer(_ context.Context, customerRef string) ([]sales.Bill, error) {
	return r.finalized(func(b *sales.Bill) bool { return b.CustomerRef == customerRef }), nil
}

func (r billRepo) FindRecent(_ context.Context, limit int) ([]sales.Bill, error) {
	out := r.finalized(func(*sales.Bill) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r billRepo) NextSerialNumber(_ context.Context, channel inventory.Channel, day time.Time) (string, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	key := sales.SerialPrefix(channel) + day.Format("20060102")
	r.l.serials[key]++
	return sales.FormatSerialNumber(channel, day, r.l.serials[key]), nil
}

func (r billRepo) SummaryBetween(ctx context.Context, from, to time.Time) (sales.SalesSummary, error) {
	bills, _ := r.FindByDateRange(ctx, from, to)
	sum := sales.SalesSummary{Total: decimal.Zero}
	for _, b := range bills {
		sum.Count++
		sum.Total = sum.Total.Add(b.Total)
	}
	return sum, nil
}

var (
	_ catalog.ProductRepository      = productRepo{}
	_ inventory.BatchRepository      = batchRepo{}
	_ inventory.StoreStockRepository = storeRepo{}
	_ inventory.TransactionLog       = logRepo{}
	_ sales.BillRepository           = billRepo{}
)
