package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/priceflow-platform/api/internal/audit"
	"github.com/priceflow-platform/api/internal/fileio"
	"github.com/priceflow-platform/api/internal/httpx"
	"github.com/priceflow-platform/api/internal/importer"
	"github.com/priceflow-platform/api/internal/middleware"
)

const (
	previewSampleRows   = 50
	maxRowErrorsInBody  = 50
	maxNormalizedInBody = 100
)

// importOptions is the "options" multipart form field, JSON-encoded.
// ManualRows and IgnoredRows are keyed by 0-based data-row index.
type importOptions struct {
	Sheet        string                    `json:"sheet,omitempty"`
	HasHeader    *bool                     `json:"hasHeader,omitempty"`
	Mapping      map[string]int            `json:"mapping"`
	IgnoredRows  []int                     `json:"ignoredRows,omitempty"`
	ManualGlobal map[string]string         `json:"manualGlobal,omitempty"`
	ManualRows   map[int]map[string]string `json:"manualRows,omitempty"`
	Mode         string                    `json:"mode,omitempty"`
	Confirm      string                    `json:"confirm,omitempty"`
}

type uploadedFile struct {
	filename string
	grid     fileio.Grid
	options  importOptions
}

type rowPayload struct {
	RowNumber       int      `json:"rowNumber"`
	PairIndex       int      `json:"pairIndex"`
	ProductName     string   `json:"productName"`
	Supplier        string   `json:"supplier"`
	Category        string   `json:"category,omitempty"`
	SKU             string   `json:"sku,omitempty"`
	Barcode         string   `json:"barcode,omitempty"`
	Price           float64  `json:"price"`
	DiscountPercent float64  `json:"discountPercent"`
	PackageQuantity *float64 `json:"packageQuantity,omitempty"`
	VATPercent      *float64 `json:"vatPercent,omitempty"`
	Currency        string   `json:"currency,omitempty"`
}

func mapRowPayload(row importer.ImportRow) rowPayload {
	return rowPayload{
		RowNumber:       row.RowNumber,
		PairIndex:       row.PairIndex,
		ProductName:     row.ProductName,
		Supplier:        row.Supplier,
		Category:        row.Category,
		SKU:             row.SKU,
		Barcode:         row.Barcode,
		Price:           row.Price,
		DiscountPercent: row.DiscountPercent,
		PackageQuantity: row.PackageQuantity,
		VATPercent:      row.VATPercent,
		Currency:        row.Currency,
	}
}

func (s *Server) PostImportsPreview(w http.ResponseWriter, r *http.Request) {
	if _, _, _, ok := requireActorIDs(w, r); !ok {
		return
	}

	parsed, appErr := s.parseImportUpload(r, false)
	if appErr != nil {
		httpx.WriteError(w, r, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}

	headers := fileio.HeaderTexts(parsed.grid.Rows)
	suggested := importer.SuggestMapping(headers)

	samples := parsed.grid.Rows
	if len(samples) > previewSampleRows {
		samples = samples[:previewSampleRows]
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"sheetNames":       parsed.grid.SheetNames,
		"sheet":            parsed.grid.Sheet,
		"headers":          headers,
		"sampleRows":       samples,
		"suggestedMapping": suggested,
		"rowsTotal":        len(parsed.grid.Rows),
		"requestId":        middleware.RequestIDFromContext(r.Context()),
	})
}

func (s *Server) PostImportsValidate(w http.ResponseWriter, r *http.Request) {
	if _, _, _, ok := requireActorIDs(w, r); !ok {
		return
	}

	parsed, appErr := s.parseImportUpload(r, true)
	if appErr != nil {
		httpx.WriteError(w, r, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}

	res := importer.NormalizeRows(buildNormalizeInput(parsed))
	if len(res.FieldErrors) > 0 {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"fieldErrors": res.FieldErrors,
			"rowErrors":   []importer.RowError{},
			"previews":    []rowPayload{},
			"stats": map[string]any{
				"rowsTotal": dataRowCount(parsed),
			},
			"requestId": middleware.RequestIDFromContext(r.Context()),
		})
		return
	}

	deduped := importer.DedupeLastRowWins(res.Rows)

	previews := make([]rowPayload, 0, min(len(deduped), maxNormalizedInBody))
	for _, row := range deduped {
		if len(previews) == maxNormalizedInBody {
			break
		}
		previews = append(previews, mapRowPayload(row))
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"fieldErrors": []string{},
		"rowErrors":   capRowErrors(res.RowErrors),
		"previews":    previews,
		"stats":       validateStats(parsed, res, deduped),
		"requestId":   middleware.RequestIDFromContext(r.Context()),
	})
}

// validateStats aggregates the dry-run outcome: row counts plus the distinct
// suppliers, categories and products the apply would touch. Products count
// per (category, name) the same way the reconciliation keys them.
func validateStats(parsed uploadedFile, res importer.NormalizeResult, deduped []importer.ImportRow) map[string]any {
	suppliers := map[string]struct{}{}
	categories := map[string]struct{}{}
	products := map[string]struct{}{}
	for _, row := range deduped {
		suppliers[importer.NormalizeName(row.Supplier)] = struct{}{}
		category := row.Category
		if strings.TrimSpace(category) == "" {
			category = importer.DefaultCategoryName
		}
		catNorm := importer.NormalizeName(category)
		categories[catNorm] = struct{}{}
		products[catNorm+"|"+importer.NormalizeName(row.ProductName)] = struct{}{}
	}

	produced := map[int]struct{}{}
	for _, row := range res.Rows {
		produced[row.RowNumber] = struct{}{}
	}

	return map[string]any{
		"rowsTotal":        dataRowCount(parsed),
		"rowsNormalized":   len(res.Rows),
		"rowsAfterDedupe":  len(deduped),
		"rowsSkipped":      dataRowCount(parsed) - len(produced),
		"rowErrorsTotal":   len(res.RowErrors),
		"uniqueSuppliers":  len(suppliers),
		"uniqueCategories": len(categories),
		"uniqueProducts":   len(products),
	}
}

func (s *Server) PostImportsApply(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, userID, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	parsed, appErr := s.parseImportUpload(r, true)
	if appErr != nil {
		httpx.WriteError(w, r, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}

	mode := importer.Mode(strings.TrimSpace(parsed.options.Mode))
	if mode == "" {
		mode = importer.ModeMerge
	}
	if mode != importer.ModeMerge && mode != importer.ModeOverwrite {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "options.mode must be merge or overwrite", nil)
		return
	}

	if mode == importer.ModeOverwrite {
		has, err := s.Store.UserHasPermission(r.Context(), userID, tenantID, "imports.overwrite")
		if err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Permission check failed", nil)
			return
		}
		if !has {
			httpx.WriteError(w, r, http.StatusForbidden, "forbidden", "Permission denied", map[string]string{"permission": "imports.overwrite"})
			return
		}
		expected := "ERASE " + actor.TenantSlug
		if parsed.options.Confirm != expected {
			httpx.WriteError(w, r, http.StatusBadRequest, "confirm_mismatch",
				fmt.Sprintf("Overwrite mode requires confirm to equal %q", expected), nil)
			return
		}
	}

	res := importer.NormalizeRows(buildNormalizeInput(parsed))
	if len(res.FieldErrors) > 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_mapping", "Mapping is not usable",
			map[string]any{"fieldErrors": res.FieldErrors})
		return
	}

	deduped := importer.DedupeLastRowWins(res.Rows)

	requestID := middleware.RequestIDFromContext(r.Context())
	_ = s.Audit.Log(r.Context(), audit.Entry{
		TenantID:   tenantID,
		UserID:     &userID,
		Action:     "import.apply_started",
		EntityType: "import",
		RequestID:  requestID,
		Metadata: map[string]any{
			"mode":     string(mode),
			"filename": parsed.filename,
			"rows":     len(deduped),
		},
	})

	stats, err := s.Engine.Apply(r.Context(), tenantID, deduped, mode)
	if err != nil {
		s.Logger.Error("import apply failed", "tenant_id", tenantID, "mode", mode, "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "import_failed", "Import apply failed", nil)
		return
	}

	_ = s.Audit.Log(r.Context(), audit.Entry{
		TenantID:   tenantID,
		UserID:     &userID,
		Action:     "import.apply_completed",
		EntityType: "import",
		RequestID:  requestID,
		Metadata: map[string]any{
			"mode":     string(mode),
			"filename": parsed.filename,
			"stats":    stats,
		},
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"stats":     stats,
		"rowErrors": capRowErrors(res.RowErrors),
		"requestId": requestID,
	})
}

func buildNormalizeInput(parsed uploadedFile) importer.NormalizeInput {
	hasHeader := true
	if parsed.options.HasHeader != nil {
		hasHeader = *parsed.options.HasHeader
	}

	ignored := make(map[int]bool, len(parsed.options.IgnoredRows))
	for _, idx := range parsed.options.IgnoredRows {
		ignored[idx] = true
	}

	return importer.NormalizeInput{
		Grid:      importer.RawGrid(parsed.grid.Rows),
		HasHeader: hasHeader,
		Mapping:   importer.ColumnMapping(parsed.options.Mapping),
		Overrides: importer.ManualOverrides{
			Global: parsed.options.ManualGlobal,
			Rows:   parsed.options.ManualRows,
		},
		IgnoredRows: ignored,
	}
}

func dataRowCount(parsed uploadedFile) int {
	n := len(parsed.grid.Rows)
	hasHeader := true
	if parsed.options.HasHeader != nil {
		hasHeader = *parsed.options.HasHeader
	}
	if hasHeader && n > 0 {
		n--
	}
	return n
}

func capRowErrors(errs []importer.RowError) []importer.RowError {
	if errs == nil {
		return []importer.RowError{}
	}
	if len(errs) > maxRowErrorsInBody {
		return errs[:maxRowErrorsInBody]
	}
	return errs
}

type appError struct {
	Status  int
	Code    string
	Message string
	Details any
}

// parseImportUpload reads the multipart upload into a cell grid. The options
// field is required when requireMapping is set (validate/apply); preview
// accepts a bare file plus an optional sheet form field.
func (s *Server) parseImportUpload(r *http.Request, requireMapping bool) (uploadedFile, *appError) {
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_content_type",
			Message: "Content-Type must be multipart/form-data",
		}
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_multipart",
			Message: "Failed to parse multipart form",
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "missing_file",
			Message: "file is required",
		}
	}
	defer file.Close()

	if s.Config.ImportMaxFileBytes > 0 && header.Size > s.Config.ImportMaxFileBytes {
		return uploadedFile{}, &appError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    "file_too_large",
			Message: "Uploaded file exceeds the import size limit",
			Details: map[string]any{"maxBytes": s.Config.ImportMaxFileBytes},
		}
	}

	var options importOptions
	optionsRaw := strings.TrimSpace(r.FormValue("options"))
	if optionsRaw != "" {
		if err := json.Unmarshal([]byte(optionsRaw), &options); err != nil {
			return uploadedFile{}, &appError{
				Status:  http.StatusBadRequest,
				Code:    "invalid_options",
				Message: "options must be valid JSON",
			}
		}
	}
	if options.Sheet == "" {
		options.Sheet = strings.TrimSpace(r.FormValue("sheet"))
	}
	if requireMapping && len(options.Mapping) == 0 {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "validation_error",
			Message: "options.mapping is required",
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_file",
			Message: "Failed to read uploaded file",
		}
	}

	grid, err := fileio.ReadGrid(bytes.NewReader(data), header.Filename, options.Sheet)
	if err != nil {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_file",
			Message: err.Error(),
		}
	}
	if len(grid.Rows) == 0 {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "empty_file",
			Message: "Uploaded file has no rows",
		}
	}
	if s.Config.ImportMaxRows > 0 && len(grid.Rows) > s.Config.ImportMaxRows {
		return uploadedFile{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "row_limit_exceeded",
			Message: "Row limit exceeded",
			Details: map[string]any{"maxRows": s.Config.ImportMaxRows},
		}
	}

	return uploadedFile{filename: header.Filename, grid: grid, options: options}, nil
}
