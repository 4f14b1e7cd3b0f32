package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/priceflow-platform/api/internal/audit"
	"github.com/priceflow-platform/api/internal/httpx"
	"github.com/priceflow-platform/api/internal/importer"
	"github.com/priceflow-platform/api/internal/middleware"
	"github.com/priceflow-platform/api/internal/store"
)

type supplierPayload struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type categoryPayload struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type productPayload struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	CategoryID   uuid.UUID `json:"categoryId"`
	CategoryName string    `json:"categoryName"`
	SKU          *string   `json:"sku,omitempty"`
	Barcode      *string   `json:"barcode,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type priceEntryPayload struct {
	ID                uuid.UUID `json:"id"`
	ProductID         uuid.UUID `json:"productId"`
	SupplierID        uuid.UUID `json:"supplierId"`
	SupplierName      string    `json:"supplierName"`
	Cost              float64   `json:"cost"`
	DiscountPercent   float64   `json:"discountPercent"`
	CostAfterDiscount float64   `json:"costAfterDiscount"`
	SellPrice         float64   `json:"sellPrice"`
	Currency          *string   `json:"currency,omitempty"`
	VATPercent        *float64  `json:"vatPercent,omitempty"`
	PackageQuantity   *float64  `json:"packageQuantity,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type settingsPayload struct {
	VATPercent          float64 `json:"vatPercent"`
	GlobalMarginPercent float64 `json:"globalMarginPercent"`
	UseMargin           bool    `json:"useMargin"`
	UseVAT              bool    `json:"useVat"`
	DecimalPrecision    int     `json:"decimalPrecision"`
}

func (s *Server) GetSuppliers(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	suppliers, err := s.Store.ListSuppliers(r.Context(), tenantID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load suppliers", nil)
		return
	}

	out := make([]supplierPayload, 0, len(suppliers))
	for _, sup := range suppliers {
		out = append(out, supplierPayload(sup))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"suppliers": out})
}

func (s *Server) GetCategories(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	categories, err := s.Store.ListCategories(r.Context(), tenantID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load categories", nil)
		return
	}

	out := make([]categoryPayload, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryPayload(c))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) GetProducts(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	filter := store.ProductFilter{Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("categoryId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "categoryId must be a UUID", nil)
			return
		}
		filter.CategoryID = &id
	}

	products, err := s.Store.ListProducts(r.Context(), tenantID, filter)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load products", nil)
		return
	}

	out := make([]productPayload, 0, len(products))
	for _, p := range products {
		out = append(out, productPayload(p))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": out})
}

func (s *Server) GetProductPrices(w http.ResponseWriter, r *http.Request, productIDRaw string) {
	_, tenantID, _, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	productID, err := uuid.Parse(productIDRaw)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "productId must be a UUID", nil)
		return
	}
	var supplierID *uuid.UUID
	if raw := r.URL.Query().Get("supplierId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "supplierId must be a UUID", nil)
			return
		}
		supplierID = &id
	}

	if _, err := s.Store.GetProduct(r.Context(), tenantID, productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "product_not_found", "Product was not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load product", nil)
		return
	}

	history, err := s.Store.PriceHistory(r.Context(), tenantID, productID, supplierID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load price history", nil)
		return
	}

	out := make([]priceEntryPayload, 0, len(history))
	for _, h := range history {
		out = append(out, priceEntryPayload{
			ID:                h.ID,
			ProductID:         h.ProductID,
			SupplierID:        h.SupplierID,
			SupplierName:      h.SupplierName,
			Cost:              h.Cost,
			DiscountPercent:   h.DiscountPercent,
			CostAfterDiscount: h.CostAfterDiscount,
			SellPrice:         h.SellPrice,
			Currency:          h.Currency,
			VATPercent:        h.VATPercent,
			PackageQuantity:   h.PackageQuantity,
			CreatedAt:         h.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"prices": out})
}

// PostPrices records a single manually entered price using the same
// calculator as the import path.
func (s *Server) PostPrices(w http.ResponseWriter, r *http.Request) {
	_, tenantID, userID, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	var req struct {
		ProductID       uuid.UUID `json:"productId"`
		SupplierID      uuid.UUID `json:"supplierId"`
		Cost            float64   `json:"cost"`
		DiscountPercent float64   `json:"discountPercent"`
		VATPercent      *float64  `json:"vatPercent,omitempty"`
		Currency        string    `json:"currency,omitempty"`
		PackageQuantity *float64  `json:"packageQuantity,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}
	if req.ProductID == uuid.Nil || req.SupplierID == uuid.Nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "productId and supplierId are required", nil)
		return
	}
	if req.Cost <= 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "cost must be positive", nil)
		return
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "discountPercent must be within [0,100]", nil)
		return
	}

	cfg, err := s.Store.PricingConfig(r.Context(), tenantID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load settings", nil)
		return
	}

	costAfter := importer.CalcCostAfterDiscount(req.Cost, req.DiscountPercent, cfg.DecimalPrecision)
	sell := importer.CalcSellPrice(importer.SellPriceInput{
		Cost:              req.Cost,
		CostAfterDiscount: &costAfter,
		MarginPercent:     cfg.GlobalMarginPercent,
		VATPercent:        cfg.VATPercent,
		UseMargin:         cfg.UseMargin,
		UseVAT:            cfg.UseVAT,
		Precision:         cfg.DecimalPrecision,
	})

	entry := importer.PriceEntry{
		ProductID:         req.ProductID,
		SupplierID:        req.SupplierID,
		Cost:              req.Cost,
		DiscountPercent:   req.DiscountPercent,
		CostAfterDiscount: costAfter,
		SellPrice:         sell,
		Currency:          req.Currency,
		VATPercent:        req.VATPercent,
		PackageQuantity:   req.PackageQuantity,
	}
	if err := s.Store.InsertPriceEntries(r.Context(), tenantID, []importer.PriceEntry{entry}); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "price_insert_failed", "Failed to record price entry", nil)
		return
	}

	productID := req.ProductID
	_ = s.Audit.Log(r.Context(), audit.Entry{
		TenantID:   tenantID,
		UserID:     &userID,
		Action:     "prices.create",
		EntityType: "price_entry",
		EntityID:   &productID,
		RequestID:  middleware.RequestIDFromContext(r.Context()),
	})

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"productId":         req.ProductID,
		"supplierId":        req.SupplierID,
		"cost":              req.Cost,
		"discountPercent":   req.DiscountPercent,
		"costAfterDiscount": costAfter,
		"sellPrice":         sell,
	})
}

func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	cfg, err := s.Store.PricingConfig(r.Context(), tenantID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load settings", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, settingsPayload{
		VATPercent:          cfg.VATPercent,
		GlobalMarginPercent: cfg.GlobalMarginPercent,
		UseMargin:           cfg.UseMargin,
		UseVAT:              cfg.UseVAT,
		DecimalPrecision:    cfg.DecimalPrecision,
	})
}

func (s *Server) PutSettings(w http.ResponseWriter, r *http.Request) {
	_, tenantID, userID, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}
	if req.VATPercent < 0 || req.GlobalMarginPercent < 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "vatPercent and globalMarginPercent must be non-negative", nil)
		return
	}
	if req.DecimalPrecision < 0 || req.DecimalPrecision > 8 {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "decimalPrecision must be within [0,8]", nil)
		return
	}

	cfg := importer.TenantPricingConfig{
		VATPercent:          req.VATPercent,
		GlobalMarginPercent: req.GlobalMarginPercent,
		UseMargin:           req.UseMargin,
		UseVAT:              req.UseVAT,
		DecimalPrecision:    req.DecimalPrecision,
	}
	if err := s.Store.UpdateSettings(r.Context(), tenantID, cfg); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to update settings", nil)
		return
	}

	_ = s.Audit.Log(r.Context(), audit.Entry{
		TenantID:   tenantID,
		UserID:     &userID,
		Action:     "settings.update",
		EntityType: "tenant_settings",
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Metadata: map[string]any{
			"vatPercent":          req.VATPercent,
			"globalMarginPercent": req.GlobalMarginPercent,
			"useMargin":           req.UseMargin,
			"useVat":              req.UseVAT,
			"decimalPrecision":    req.DecimalPrecision,
		},
	})

	httpx.WriteJSON(w, http.StatusOK, req)
}

// GetExportsPricebookCsv streams the current price book: the latest price per
// product-supplier pair.
func (s *Server) GetExportsPricebookCsv(w http.ResponseWriter, r *http.Request) {
	_, tenantID, userID, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	rows, err := s.Store.PriceBookRows(r.Context(), tenantID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to generate export CSV", nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="pricebook.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"product", "category", "supplier", "sku", "barcode", "cost", "discount_percent", "cost_after_discount", "sell_price", "currency", "updated_at"})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.ProductName,
			row.CategoryName,
			row.SupplierName,
			derefString(row.SKU),
			derefString(row.Barcode),
			formatFloat(row.Cost),
			formatFloat(row.DiscountPercent),
			formatFloat(row.CostAfterDiscount),
			formatFloat(row.SellPrice),
			derefString(row.Currency),
			row.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writer.Flush()
	if writer.Error() != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to stream export CSV", nil)
		return
	}

	_ = s.Audit.Log(r.Context(), audit.Entry{
		TenantID:   tenantID,
		UserID:     &userID,
		Action:     "export.download",
		EntityType: "price_book",
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Metadata:   map[string]any{"rows": len(rows)},
	})
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
