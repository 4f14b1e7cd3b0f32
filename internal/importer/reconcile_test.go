package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store used to exercise the engine without a
// database. It mimics the datastore contract: append-only prices, identity
// by normalized name, default settings.
type fakeStore struct {
	cfg        TenantPricingConfig
	suppliers  []EntityRecord
	categories []EntityRecord
	products   []ProductRecord
	prices     []PriceEntry

	resetCalls       int
	failPriceBatches bool
	priceBatchCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cfg: TenantPricingConfig{VATPercent: 18, GlobalMarginPercent: 30, UseMargin: true, UseVAT: true, DecimalPrecision: 2},
	}
}

func (f *fakeStore) PricingConfig(context.Context, uuid.UUID) (TenantPricingConfig, error) {
	return f.cfg, nil
}

func (f *fakeStore) ActiveSuppliers(context.Context, uuid.UUID) ([]EntityRecord, error) {
	return append([]EntityRecord(nil), f.suppliers...), nil
}

func (f *fakeStore) ActiveCategories(context.Context, uuid.UUID) ([]EntityRecord, error) {
	return append([]EntityRecord(nil), f.categories...), nil
}

func (f *fakeStore) ActiveProducts(context.Context, uuid.UUID) ([]ProductRecord, error) {
	return append([]ProductRecord(nil), f.products...), nil
}

func (f *fakeStore) LatestPrices(context.Context, uuid.UUID) ([]PricePoint, error) {
	latest := map[priceKey]PricePoint{}
	for _, e := range f.prices {
		latest[priceKey{e.ProductID, e.SupplierID}] = PricePoint{
			ProductID:         e.ProductID,
			SupplierID:        e.SupplierID,
			Cost:              e.Cost,
			DiscountPercent:   e.DiscountPercent,
			CostAfterDiscount: e.CostAfterDiscount,
			SellPrice:         e.SellPrice,
		}
	}
	out := make([]PricePoint, 0, len(latest))
	for _, p := range latest {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) EnsureCategory(_ context.Context, _ uuid.UUID, name string) (EntityRecord, error) {
	for _, c := range f.categories {
		if NormalizeName(c.Name) == NormalizeName(name) {
			return c, nil
		}
	}
	rec := EntityRecord{ID: uuid.New(), Name: name}
	f.categories = append(f.categories, rec)
	return rec, nil
}

func (f *fakeStore) InsertSuppliers(_ context.Context, _ uuid.UUID, names []string) ([]EntityRecord, error) {
	out := make([]EntityRecord, 0, len(names))
	for _, name := range names {
		rec := EntityRecord{ID: uuid.New(), Name: name}
		f.suppliers = append(f.suppliers, rec)
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) InsertCategories(_ context.Context, _ uuid.UUID, names []string) ([]EntityRecord, error) {
	out := make([]EntityRecord, 0, len(names))
	for _, name := range names {
		rec := EntityRecord{ID: uuid.New(), Name: name}
		f.categories = append(f.categories, rec)
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) InsertProducts(_ context.Context, _ uuid.UUID, products []NewProduct) ([]ProductRecord, error) {
	out := make([]ProductRecord, 0, len(products))
	for _, p := range products {
		rec := ProductRecord{ID: uuid.New(), Name: p.Name, CategoryID: p.CategoryID}
		f.products = append(f.products, rec)
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) InsertPriceEntries(_ context.Context, _ uuid.UUID, entries []PriceEntry) error {
	f.priceBatchCalls++
	if f.failPriceBatches {
		return errors.New("batch rejected")
	}
	f.prices = append(f.prices, entries...)
	return nil
}

func (f *fakeStore) ResetCatalog(context.Context, uuid.UUID) error {
	f.resetCalls++
	f.suppliers = nil
	f.categories = nil
	f.products = nil
	f.prices = nil
	return nil
}

func testEngine(store Store) *Engine {
	return NewEngine(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestApplyCreatesMissingEntities(t *testing.T) {
	store := newFakeStore()
	engine := testEngine(store)
	tenant := uuid.New()

	rows := []ImportRow{
		{RowNumber: 2, ProductName: "Milk", Supplier: "Tnuva", Category: "Dairy", Price: 5.9},
		{RowNumber: 3, ProductName: "Bread", Supplier: "Angel", Category: "", Price: 8},
	}

	stats, err := engine.Apply(context.Background(), tenant, rows, ModeMerge)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stats.SuppliersCreated != 2 {
		t.Fatalf("suppliers created = %d, want 2", stats.SuppliersCreated)
	}
	// "Dairy" is created; the empty category resolves to the default, which
	// EnsureCategory provides without counting as created.
	if stats.CategoriesCreated != 1 {
		t.Fatalf("categories created = %d, want 1", stats.CategoriesCreated)
	}
	if stats.ProductsCreated != 2 {
		t.Fatalf("products created = %d, want 2", stats.ProductsCreated)
	}
	if stats.PricesInserted != 2 || stats.PricesSkipped != 0 {
		t.Fatalf("prices inserted/skipped = %d/%d, want 2/0", stats.PricesInserted, stats.PricesSkipped)
	}
	if stats.ByCategory["Dairy"].Total != 1 || stats.ByCategory[DefaultCategoryName].Total != 1 {
		t.Fatalf("byCategory wrong: %v", stats.ByCategory)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	store := newFakeStore()
	engine := testEngine(store)
	tenant := uuid.New()

	rows := []ImportRow{
		{RowNumber: 2, ProductName: "Milk", Supplier: "Tnuva", Category: "Dairy", Price: 5.9, DiscountPercent: 10},
		{RowNumber: 3, ProductName: "Bread", Supplier: "Angel", Price: 8},
	}

	if _, err := engine.Apply(context.Background(), tenant, rows, ModeMerge); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	second, err := engine.Apply(context.Background(), tenant, rows, ModeMerge)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if second.SuppliersCreated != 0 || second.CategoriesCreated != 0 || second.ProductsCreated != 0 {
		t.Fatalf("second run must create nothing: %+v", second)
	}
	if second.PricesInserted != 0 || second.PricesSkipped != len(rows) {
		t.Fatalf("second run must skip every price: inserted=%d skipped=%d", second.PricesInserted, second.PricesSkipped)
	}
	if len(second.ByCategory) != 0 {
		t.Fatalf("skipped-as-unchanged rows must not be counted per category: %+v", second.ByCategory)
	}
	if len(store.prices) != 2 {
		t.Fatalf("price history must not grow on re-run: %d entries", len(store.prices))
	}
}

func TestApplyChangedPriceAppendsHistory(t *testing.T) {
	store := newFakeStore()
	engine := testEngine(store)
	tenant := uuid.New()

	rows := []ImportRow{{RowNumber: 2, ProductName: "Milk", Supplier: "Tnuva", Price: 5.9}}
	if _, err := engine.Apply(context.Background(), tenant, rows, ModeMerge); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	rows[0].Price = 6.4
	stats, err := engine.Apply(context.Background(), tenant, rows, ModeMerge)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if stats.PricesInserted != 1 || stats.PricesSkipped != 0 {
		t.Fatalf("changed price must insert: %+v", stats)
	}
	if len(store.prices) != 2 {
		t.Fatalf("history is append-only: %d entries", len(store.prices))
	}
}

func TestApplyCategoryScopedProductIdentity(t *testing.T) {
	store := newFakeStore()
	engine := testEngine(store)
	tenant := uuid.New()

	rows := []ImportRow{
		{RowNumber: 2, ProductName: "Milk", Supplier: "Tnuva", Category: "Dairy", Price: 5.9},
		{RowNumber: 3, ProductName: "Milk", Supplier: "Tnuva", Category: "Snacks", Price: 7.2},
	}
	stats, err := engine.Apply(context.Background(), tenant, rows, ModeMerge)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stats.ProductsCreated != 2 {
		t.Fatalf("same name in two categories must create two products, got %d", stats.ProductsCreated)
	}
}

func TestApplySkipsFailedPriceBatches(t *testing.T) {
	store := newFakeStore()
	store.failPriceBatches = true
	engine := testEngine(store)
	tenant := uuid.New()

	rows := []ImportRow{{RowNumber: 2, ProductName: "Milk", Supplier: "Tnuva", Price: 5.9}}
	stats, err := engine.Apply(context.Background(), tenant, rows, ModeMerge)
	if err != nil {
		t.Fatalf("merge mode must continue past batch failures: %v", err)
	}
	if stats.PricesInserted != 0 || stats.PricesSkipped != 1 {
		t.Fatalf("failed batch rows count as skipped: %+v", stats)
	}
}

func TestApplyOverwriteResetsFirstAndAbortsOnFailure(t *testing.T) {
	store := newFakeStore()
	engine := testEngine(store)
	tenant := uuid.New()

	seed := []ImportRow{{RowNumber: 2, ProductName: "Old", Supplier: "Gone", Price: 1}}
	if _, err := engine.Apply(context.Background(), tenant, seed, ModeMerge); err != nil {
		t.Fatalf("seed apply: %v", err)
	}

	rows := []ImportRow{{RowNumber: 2, ProductName: "Milk", Supplier: "Tnuva", Price: 5.9}}
	stats, err := engine.Apply(context.Background(), tenant, rows, ModeOverwrite)
	if err != nil {
		t.Fatalf("overwrite apply: %v", err)
	}
	if store.resetCalls != 1 {
		t.Fatalf("overwrite must reset the catalog once, got %d", store.resetCalls)
	}
	if len(store.prices) != 1 || stats.PricesInserted != 1 {
		t.Fatalf("post-reset state wrong: %d prices, stats %+v", len(store.prices), stats)
	}

	store.failPriceBatches = true
	if _, err := engine.Apply(context.Background(), tenant, rows, ModeOverwrite); err == nil {
		t.Fatal("overwrite mode must abort on a failed batch")
	}
}

func TestApplyBatchesLargeInserts(t *testing.T) {
	store := newFakeStore()
	engine := testEngine(store)
	engine.batchSize = 10
	tenant := uuid.New()

	rows := make([]ImportRow, 0, 25)
	for i := 0; i < 25; i++ {
		rows = append(rows, ImportRow{
			RowNumber:   i + 2,
			ProductName: "Product " + uuid.NewString(),
			Supplier:    "Acme",
			Price:       float64(i + 1),
		})
	}
	stats, err := engine.Apply(context.Background(), tenant, rows, ModeMerge)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stats.PricesInserted != 25 {
		t.Fatalf("inserted = %d, want 25", stats.PricesInserted)
	}
	if store.priceBatchCalls != 3 {
		t.Fatalf("expected 3 price batches of <=10, got %d", store.priceBatchCalls)
	}
}
