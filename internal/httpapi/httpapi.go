package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"pescapos/backend/internal/domain"
	"pescapos/backend/internal/report"
	"pescapos/backend/internal/service"
	"pescapos/backend/internal/store"
)

type API struct {
	service       *service.Service
	reports       *report.Engine
	allowedOrigin string
}

func New(svc *service.Service, reports *report.Engine, allowedOrigin string) *API {
	return &API{
		service:       svc,
		reports:       reports,
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/clients", a.handleClients)
	mux.HandleFunc("/api/v1/products", a.handleProducts)
	mux.HandleFunc("/api/v1/suppliers", a.handleSuppliers)
	mux.HandleFunc("/api/v1/stock-entries", a.handleStockEntries)
	mux.HandleFunc("/api/v1/sales", a.handleSales)
	mux.HandleFunc("/api/v1/sales/", a.handleSaleActions)
	mux.HandleFunc("/api/v1/checks", a.handleChecks)
	mux.HandleFunc("/api/v1/rotativo/payments", a.handleRotativoPayments)
	mux.HandleFunc("/api/v1/expenses", a.handleExpenses)
	mux.HandleFunc("/api/v1/expense-categories", a.handleExpenseCategories)
	mux.HandleFunc("/api/v1/movements", a.handleMovements)

	mux.HandleFunc("/api/v1/reports/dre", a.handleDRE)
	mux.HandleFunc("/api/v1/reports/cash-flow", a.handleCashFlow)
	mux.HandleFunc("/api/v1/reports/debtors", a.handleDebtors)
	mux.HandleFunc("/api/v1/reports/dashboard", a.handleDashboard)

	mux.HandleFunc("/api/v1/backup/export", a.handleBackupExport)
	mux.HandleFunc("/api/v1/backup/import", a.handleBackupImport)

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Registries ---

func (a *API) handleClients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		clients, err := a.service.ListClients(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, clients)
	case http.MethodPost:
		var client domain.Client
		if err := decodeJSON(r, &client); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := a.service.SaveClient(r.Context(), client)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		var product domain.Product
		if err := decodeJSON(r, &product); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := a.service.SaveProduct(r.Context(), product)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		suppliers, err := a.service.ListSuppliers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, suppliers)
	case http.MethodPost:
		var supplier domain.Supplier
		if err := decodeJSON(r, &supplier); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := a.service.SaveSupplier(r.Context(), supplier)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeMethodNotAllowed(w)
	}
}

// --- Inventory ---

func (a *API) handleStockEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := a.service.ListStockEntries(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		var req domain.StockEntryCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entry, err := a.service.AddStockEntry(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	default:
		writeMethodNotAllowed(w)
	}
}

// --- Sales ---

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sales)
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.CreateSale(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

// handleSaleActions serves /api/v1/sales/{id}/cancel.
func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sales/")
	saleID, action, found := strings.Cut(rest, "/")
	if !found || action != "cancel" || saleID == "" {
		writeError(w, http.StatusNotFound, errors.New("unknown sale action"))
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	sale, err := a.service.CancelSale(r.Context(), saleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// --- Checks ---

func (a *API) handleChecks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		checks, err := a.service.ListChecks(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checks)
	case http.MethodPost:
		var check domain.Check
		if err := decodeJSON(r, &check); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := a.service.SaveCheck(r.Context(), check)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeMethodNotAllowed(w)
	}
}

// --- Rotativo ---

func (a *API) handleRotativoPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PayRotativoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.PayRotativo(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Expenses ---

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		expenses, err := a.service.ListExpenses(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, expenses)
	case http.MethodPost:
		var expense domain.Expense
		if err := decodeJSON(r, &expense); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := a.service.SaveExpense(r.Context(), expense)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleExpenseCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := a.service.ListExpenseCategories(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	case http.MethodPost:
		var category domain.ExpenseCategory
		if err := decodeJSON(r, &category); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := a.service.SaveExpenseCategory(r.Context(), category)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeMethodNotAllowed(w)
	}
}

// --- Cash journal ---

func (a *API) handleMovements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		movements, err := a.service.ListMovements(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, movements)
	case http.MethodPost:
		var movement domain.Movement
		if err := decodeJSON(r, &movement); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.service.AddMovement(r.Context(), movement)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeMethodNotAllowed(w)
	}
}

// --- Reports ---

func (a *API) handleDRE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	dre, err := a.reports.MonthlyDRE(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dre)
}

func (a *API) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	flow, err := a.reports.MonthlyCashFlow(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

func (a *API) handleDebtors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	debtors, err := a.reports.Debtors(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, debtors)
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	summary, err := a.reports.DashboardSummary(r.Context(), time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- Backup ---

func (a *API) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	payload, err := a.service.ExportBackup(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="backup.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (a *API) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.ImportBackup(r.Context(), payload); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": true})
}

// --- Plumbing ---

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost {
			// Backups can be large; everything else stays tight.
			limit := int64(1 << 20)
			if r.URL.Path == "/api/v1/backup/import" {
				limit = 16 << 20
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// writeServiceError maps sentinel store errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrAlreadyCanceled):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses return a generic message so internals (SQL errors, file
	// paths) never reach the client; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
