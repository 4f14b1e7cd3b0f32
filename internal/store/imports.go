package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/priceflow-platform/api/internal/importer"
)

// Store implements importer.Store. Uniqueness races with concurrent imports
// surface as insert errors; the engine's batch-failure policy handles them.

func (s *Store) PricingConfig(ctx context.Context, tenantID uuid.UUID) (importer.TenantPricingConfig, error) {
	var cfg importer.TenantPricingConfig
	err := s.pool.QueryRow(ctx, `
		SELECT vat_percent, global_margin_percent, use_margin, use_vat, decimal_precision
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID).Scan(&cfg.VATPercent, &cfg.GlobalMarginPercent, &cfg.UseMargin, &cfg.UseVAT, &cfg.DecimalPrecision)
	if errors.Is(err, pgx.ErrNoRows) {
		return defaultPricingConfig(), nil
	}
	if err != nil {
		return importer.TenantPricingConfig{}, fmt.Errorf("load tenant settings: %w", err)
	}
	return cfg, nil
}

func defaultPricingConfig() importer.TenantPricingConfig {
	return importer.TenantPricingConfig{
		VATPercent:          18,
		GlobalMarginPercent: 30,
		UseMargin:           true,
		UseVAT:              true,
		DecimalPrecision:    2,
	}
}

func (s *Store) ActiveSuppliers(ctx context.Context, tenantID uuid.UUID) ([]importer.EntityRecord, error) {
	return s.activeEntities(ctx, tenantID, "suppliers")
}

func (s *Store) ActiveCategories(ctx context.Context, tenantID uuid.UUID) ([]importer.EntityRecord, error) {
	return s.activeEntities(ctx, tenantID, "categories")
}

func (s *Store) activeEntities(ctx context.Context, tenantID uuid.UUID, table string) ([]importer.EntityRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name FROM `+table+` WHERE tenant_id = $1 AND is_active ORDER BY name`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []importer.EntityRecord
	for rows.Next() {
		var rec importer.EntityRecord
		if err := rows.Scan(&rec.ID, &rec.Name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ActiveProducts(ctx context.Context, tenantID uuid.UUID) ([]importer.ProductRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category_id
		FROM products
		WHERE tenant_id = $1 AND is_active
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []importer.ProductRecord
	for rows.Next() {
		var rec importer.ProductRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.CategoryID); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) LatestPrices(ctx context.Context, tenantID uuid.UUID) ([]importer.PricePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (product_id, supplier_id)
		       product_id, supplier_id, cost, discount_percent, cost_after_discount, sell_price
		FROM price_entries
		WHERE tenant_id = $1
		ORDER BY product_id, supplier_id, created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list latest prices: %w", err)
	}
	defer rows.Close()

	var out []importer.PricePoint
	for rows.Next() {
		var p importer.PricePoint
		if err := rows.Scan(&p.ProductID, &p.SupplierID, &p.Cost, &p.DiscountPercent, &p.CostAfterDiscount, &p.SellPrice); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) EnsureCategory(ctx context.Context, tenantID uuid.UUID, name string) (importer.EntityRecord, error) {
	var rec importer.EntityRecord
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (tenant_id, name, name_norm)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, name_norm) DO UPDATE SET is_active = TRUE
		RETURNING id, name
	`, tenantID, name, importer.NormalizeName(name)).Scan(&rec.ID, &rec.Name)
	if err != nil {
		return importer.EntityRecord{}, fmt.Errorf("ensure category %q: %w", name, err)
	}
	return rec, nil
}

func (s *Store) InsertSuppliers(ctx context.Context, tenantID uuid.UUID, names []string) ([]importer.EntityRecord, error) {
	return s.insertNamed(ctx, tenantID, "suppliers", names)
}

func (s *Store) InsertCategories(ctx context.Context, tenantID uuid.UUID, names []string) ([]importer.EntityRecord, error) {
	return s.insertNamed(ctx, tenantID, "categories", names)
}

func (s *Store) insertNamed(ctx context.Context, tenantID uuid.UUID, table string, names []string) ([]importer.EntityRecord, error) {
	batch := &pgx.Batch{}
	for _, name := range names {
		batch.Queue(
			`INSERT INTO `+table+` (tenant_id, name, name_norm) VALUES ($1, $2, $3) RETURNING id, name`,
			tenantID, name, importer.NormalizeName(name))
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	out := make([]importer.EntityRecord, 0, len(names))
	for range names {
		var rec importer.EntityRecord
		if err := results.QueryRow().Scan(&rec.ID, &rec.Name); err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) InsertProducts(ctx context.Context, tenantID uuid.UUID, products []importer.NewProduct) ([]importer.ProductRecord, error) {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`
			INSERT INTO products (tenant_id, category_id, name, name_norm, sku, barcode)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, name, category_id
		`, tenantID, p.CategoryID, p.Name, importer.NormalizeName(p.Name), nullIfEmpty(p.SKU), nullIfEmpty(p.Barcode))
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	out := make([]importer.ProductRecord, 0, len(products))
	for range products {
		var rec importer.ProductRecord
		if err := results.QueryRow().Scan(&rec.ID, &rec.Name, &rec.CategoryID); err != nil {
			return nil, fmt.Errorf("insert products: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) InsertPriceEntries(ctx context.Context, tenantID uuid.UUID, entries []importer.PriceEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO price_entries
				(tenant_id, product_id, supplier_id, cost, discount_percent,
				 cost_after_discount, sell_price, currency, vat_percent,
				 package_quantity, source_row)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, tenantID, e.ProductID, e.SupplierID, e.Cost, e.DiscountPercent,
			e.CostAfterDiscount, e.SellPrice, nullIfEmpty(e.Currency), e.VATPercent,
			e.PackageQuantity, e.SourceRow)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert price entries: %w", err)
		}
	}
	return nil
}

// ResetCatalog destroys every supplier, category, product and price entry of
// the tenant and puts the pricing settings back to their defaults. Only the
// overwrite import path calls it, behind explicit confirmation; the engine
// loads the pricing config after the reset, so the rebuilt catalog is priced
// with the defaults.
func (s *Store) ResetCatalog(ctx context.Context, tenantID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"price_entries", "products", "suppliers", "categories", "tenant_settings"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE tenant_id = $1`, tenantID); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO tenant_settings (tenant_id) VALUES ($1)`, tenantID); err != nil {
		return fmt.Errorf("recreate tenant settings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
