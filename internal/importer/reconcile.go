package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Mode selects how apply treats existing tenant data.
type Mode string

const (
	ModeMerge     Mode = "merge"
	ModeOverwrite Mode = "overwrite"
)

// BatchFailurePolicy decides what a failed bulk-insert batch does to the run.
type BatchFailurePolicy string

const (
	// BatchFailureSkip logs the failure, counts the batch rows as skipped and
	// continues with sibling batches. Safe for merge mode: re-running the
	// import is idempotent.
	BatchFailureSkip BatchFailurePolicy = "skip"
	// BatchFailureAbort stops the run on the first failed batch. Used for
	// overwrite mode where silent partial progress is worse than stopping.
	BatchFailureAbort BatchFailurePolicy = "abort"
)

const insertBatchSize = 500

// EntityRecord is a stored supplier or category.
type EntityRecord struct {
	ID   uuid.UUID
	Name string
}

// ProductRecord is a stored product; identity is (tenant, normalized name,
// category).
type ProductRecord struct {
	ID         uuid.UUID
	Name       string
	CategoryID uuid.UUID
}

// NewProduct is a product creation intent.
type NewProduct struct {
	Name       string
	CategoryID uuid.UUID
	SKU        string
	Barcode    string
}

// PricePoint is the most recent stored price for a (product, supplier) pair.
type PricePoint struct {
	ProductID         uuid.UUID
	SupplierID        uuid.UUID
	Cost              float64
	DiscountPercent   float64
	CostAfterDiscount float64
	SellPrice         float64
}

// PriceEntry is one append-only price history insert.
type PriceEntry struct {
	ProductID         uuid.UUID
	SupplierID        uuid.UUID
	Cost              float64
	DiscountPercent   float64
	CostAfterDiscount float64
	SellPrice         float64
	Currency          string
	VATPercent        *float64
	PackageQuantity   *float64
	SourceRow         int
}

// Store is the external-datastore contract the engine reconciles against.
// Implementations are tenant-scoped reads and bulk writes; the engine never
// updates or deletes price history.
type Store interface {
	PricingConfig(ctx context.Context, tenantID uuid.UUID) (TenantPricingConfig, error)
	ActiveSuppliers(ctx context.Context, tenantID uuid.UUID) ([]EntityRecord, error)
	ActiveCategories(ctx context.Context, tenantID uuid.UUID) ([]EntityRecord, error)
	ActiveProducts(ctx context.Context, tenantID uuid.UUID) ([]ProductRecord, error)
	LatestPrices(ctx context.Context, tenantID uuid.UUID) ([]PricePoint, error)
	EnsureCategory(ctx context.Context, tenantID uuid.UUID, name string) (EntityRecord, error)
	InsertSuppliers(ctx context.Context, tenantID uuid.UUID, names []string) ([]EntityRecord, error)
	InsertCategories(ctx context.Context, tenantID uuid.UUID, names []string) ([]EntityRecord, error)
	InsertProducts(ctx context.Context, tenantID uuid.UUID, products []NewProduct) ([]ProductRecord, error)
	InsertPriceEntries(ctx context.Context, tenantID uuid.UUID, entries []PriceEntry) error
	ResetCatalog(ctx context.Context, tenantID uuid.UUID) error
}

// CategoryStats is the per-category slice of the apply summary.
type CategoryStats struct {
	Total int `json:"total"`
}

// ApplyStats summarizes one apply run.
type ApplyStats struct {
	SuppliersCreated  int                      `json:"suppliersCreated"`
	CategoriesCreated int                      `json:"categoriesCreated"`
	ProductsCreated   int                      `json:"productsCreated"`
	PricesInserted    int                      `json:"pricesInserted"`
	PricesSkipped     int                      `json:"pricesSkipped"`
	ByCategory        map[string]CategoryStats `json:"byCategory"`
}

// Engine reconciles normalized import rows against the tenant catalog:
// preload, create-if-missing, then append price entries skipping writes that
// match the latest stored price.
type Engine struct {
	store     Store
	logger    *slog.Logger
	batchSize int
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger, batchSize: insertBatchSize}
}

type productKey struct {
	name       string
	categoryID uuid.UUID
}

type priceKey struct {
	productID  uuid.UUID
	supplierID uuid.UUID
}

// Apply runs the three reconciliation phases for deduplicated rows. In
// overwrite mode the tenant catalog is destructively reset first; callers
// gate that behind explicit confirmation and an elevated role check.
func (e *Engine) Apply(ctx context.Context, tenantID uuid.UUID, rows []ImportRow, mode Mode) (ApplyStats, error) {
	stats := ApplyStats{ByCategory: map[string]CategoryStats{}}

	policy := BatchFailureSkip
	if mode == ModeOverwrite {
		policy = BatchFailureAbort
		if err := e.store.ResetCatalog(ctx, tenantID); err != nil {
			return stats, fmt.Errorf("reset tenant catalog: %w", err)
		}
	}

	cfg, err := e.store.PricingConfig(ctx, tenantID)
	if err != nil {
		return stats, fmt.Errorf("load pricing config: %w", err)
	}

	// Phase 1: preload existing entities into normalized-name maps.
	supplierIDs, err := e.preloadEntities(ctx, tenantID, e.store.ActiveSuppliers)
	if err != nil {
		return stats, fmt.Errorf("preload suppliers: %w", err)
	}
	categoryIDs, err := e.preloadEntities(ctx, tenantID, e.store.ActiveCategories)
	if err != nil {
		return stats, fmt.Errorf("preload categories: %w", err)
	}

	// The default category must exist before any product creation.
	defaultCat, err := e.store.EnsureCategory(ctx, tenantID, DefaultCategoryName)
	if err != nil {
		return stats, fmt.Errorf("ensure default category: %w", err)
	}
	categoryIDs[NormalizeName(DefaultCategoryName)] = defaultCat.ID

	existingProducts, err := e.store.ActiveProducts(ctx, tenantID)
	if err != nil {
		return stats, fmt.Errorf("preload products: %w", err)
	}
	productIDs := make(map[productKey]uuid.UUID, len(existingProducts))
	for _, p := range existingProducts {
		productIDs[productKey{NormalizeName(p.Name), p.CategoryID}] = p.ID
	}

	latest, err := e.store.LatestPrices(ctx, tenantID)
	if err != nil {
		return stats, fmt.Errorf("preload latest prices: %w", err)
	}
	latestByPair := make(map[priceKey]PricePoint, len(latest))
	for _, p := range latest {
		latestByPair[priceKey{p.ProductID, p.SupplierID}] = p
	}

	// Phase 2: create missing suppliers, categories, then products.
	missingSuppliers := missingNames(rows, supplierIDs, func(r ImportRow) string { return r.Supplier })
	created, err := e.insertEntities(ctx, tenantID, missingSuppliers, supplierIDs, e.store.InsertSuppliers, policy, "suppliers")
	if err != nil {
		return stats, err
	}
	stats.SuppliersCreated = created

	missingCategories := missingNames(rows, categoryIDs, rowCategory)
	created, err = e.insertEntities(ctx, tenantID, missingCategories, categoryIDs, e.store.InsertCategories, policy, "categories")
	if err != nil {
		return stats, err
	}
	stats.CategoriesCreated = created

	// Products dedupe on (normalized name, category id): the same name under
	// two categories is two products.
	desiredProducts := make(map[productKey]NewProduct)
	var productOrder []productKey
	for _, row := range rows {
		catID, ok := categoryIDs[NormalizeName(rowCategory(row))]
		if !ok {
			continue
		}
		key := productKey{NormalizeName(row.ProductName), catID}
		if _, exists := productIDs[key]; exists {
			continue
		}
		if _, queued := desiredProducts[key]; queued {
			continue
		}
		desiredProducts[key] = NewProduct{Name: row.ProductName, CategoryID: catID, SKU: row.SKU, Barcode: row.Barcode}
		productOrder = append(productOrder, key)
	}
	for start := 0; start < len(productOrder); start += e.batchSize {
		end := start + e.batchSize
		if end > len(productOrder) {
			end = len(productOrder)
		}
		batch := make([]NewProduct, 0, end-start)
		for _, key := range productOrder[start:end] {
			batch = append(batch, desiredProducts[key])
		}
		records, err := e.store.InsertProducts(ctx, tenantID, batch)
		if err != nil {
			if policy == BatchFailureAbort {
				return stats, fmt.Errorf("insert products: %w", err)
			}
			e.logger.Warn("product batch insert failed", "tenant_id", tenantID, "rows", len(batch), "error", err)
			continue
		}
		for _, p := range records {
			productIDs[productKey{NormalizeName(p.Name), p.CategoryID}] = p.ID
			stats.ProductsCreated++
		}
	}

	// Phase 3: price intents with skip-if-unchanged, batched.
	var pending []PriceEntry
	for _, row := range rows {
		catID, okCat := categoryIDs[NormalizeName(rowCategory(row))]
		supplierID, okSup := supplierIDs[NormalizeName(row.Supplier)]
		if !okCat || !okSup {
			stats.PricesSkipped++
			continue
		}
		productID, okProd := productIDs[productKey{NormalizeName(row.ProductName), catID}]
		if !okProd {
			stats.PricesSkipped++
			continue
		}

		costAfter := CalcCostAfterDiscount(row.Price, row.DiscountPercent, cfg.DecimalPrecision)
		sell := CalcSellPrice(SellPriceInput{
			Cost:              row.Price,
			CostAfterDiscount: &costAfter,
			MarginPercent:     cfg.GlobalMarginPercent,
			VATPercent:        cfg.VATPercent,
			UseMargin:         cfg.UseMargin,
			UseVAT:            cfg.UseVAT,
			Precision:         cfg.DecimalPrecision,
		})

		if last, ok := latestByPair[priceKey{productID, supplierID}]; ok &&
			last.Cost == row.Price && last.DiscountPercent == row.DiscountPercent && last.SellPrice == sell {
			stats.PricesSkipped++
			continue
		}

		pending = append(pending, PriceEntry{
			ProductID:         productID,
			SupplierID:        supplierID,
			Cost:              row.Price,
			DiscountPercent:   row.DiscountPercent,
			CostAfterDiscount: costAfter,
			SellPrice:         sell,
			Currency:          row.Currency,
			VATPercent:        row.VATPercent,
			PackageQuantity:   row.PackageQuantity,
			SourceRow:         row.RowNumber,
		})
		bumpCategory(stats.ByCategory, rowCategory(row))
	}

	for start := 0; start < len(pending); start += e.batchSize {
		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]
		if err := e.store.InsertPriceEntries(ctx, tenantID, batch); err != nil {
			if policy == BatchFailureAbort {
				return stats, fmt.Errorf("insert price entries: %w", err)
			}
			e.logger.Warn("price batch insert failed", "tenant_id", tenantID, "rows", len(batch), "error", err)
			stats.PricesSkipped += len(batch)
			continue
		}
		stats.PricesInserted += len(batch)
	}

	return stats, nil
}

func rowCategory(row ImportRow) string {
	if strings.TrimSpace(row.Category) == "" {
		return DefaultCategoryName
	}
	return row.Category
}

func bumpCategory(byCategory map[string]CategoryStats, name string) {
	c := byCategory[name]
	c.Total++
	byCategory[name] = c
}

func (e *Engine) preloadEntities(ctx context.Context, tenantID uuid.UUID, load func(context.Context, uuid.UUID) ([]EntityRecord, error)) (map[string]uuid.UUID, error) {
	records, err := load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(records))
	for _, rec := range records {
		ids[NormalizeName(rec.Name)] = rec.ID
	}
	return ids, nil
}

// missingNames returns the display names referenced by rows but absent from
// the preload map, first occurrence wins, in deterministic order.
func missingNames(rows []ImportRow, known map[string]uuid.UUID, pick func(ImportRow) string) []string {
	byNorm := map[string]string{}
	for _, row := range rows {
		name := strings.TrimSpace(pick(row))
		if name == "" {
			continue
		}
		norm := NormalizeName(name)
		if _, exists := known[norm]; exists {
			continue
		}
		if _, queued := byNorm[norm]; queued {
			continue
		}
		byNorm[norm] = name
	}
	names := make([]string, 0, len(byNorm))
	for _, name := range byNorm {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) insertEntities(
	ctx context.Context,
	tenantID uuid.UUID,
	names []string,
	ids map[string]uuid.UUID,
	insert func(context.Context, uuid.UUID, []string) ([]EntityRecord, error),
	policy BatchFailurePolicy,
	kind string,
) (int, error) {
	created := 0
	for start := 0; start < len(names); start += e.batchSize {
		end := start + e.batchSize
		if end > len(names) {
			end = len(names)
		}
		records, err := insert(ctx, tenantID, names[start:end])
		if err != nil {
			if policy == BatchFailureAbort {
				return created, fmt.Errorf("insert %s: %w", kind, err)
			}
			// Likely a uniqueness race with a concurrent import; the rows
			// depending on this batch surface as skipped prices.
			e.logger.Warn("entity batch insert failed", "tenant_id", tenantID, "kind", kind, "rows", end-start, "error", err)
			continue
		}
		for _, rec := range records {
			ids[NormalizeName(rec.Name)] = rec.ID
			created++
		}
	}
	return created, nil
}
