package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pescapos/backend/internal/domain"
	"pescapos/backend/internal/store"
	"pescapos/backend/internal/xid"
)

// Service fronts the settlement engine: it validates and normalizes input at
// the write boundary, assigns identifiers, snapshots denormalized names and
// costs, and hands the prepared records to the repository, which applies
// each multi-entity mutation atomically.
type Service struct {
	repo store.Repository
}

func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

// --- Read accessors ---

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) ListChecks(ctx context.Context) ([]domain.Check, error) {
	return s.repo.ListChecks(ctx)
}

func (s *Service) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx)
}

func (s *Service) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	return s.repo.ListExpenseCategories(ctx)
}

func (s *Service) ListMovements(ctx context.Context) ([]domain.Movement, error) {
	return s.repo.ListMovements(ctx)
}

func (s *Service) ListStockEntries(ctx context.Context) ([]domain.StockEntry, error) {
	return s.repo.ListStockEntries(ctx)
}

// --- Registry mutators ---

func (s *Service) SaveClient(ctx context.Context, client domain.Client) (domain.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	client.TaxID = strings.TrimSpace(client.TaxID)
	if client.Name == "" {
		return domain.Client{}, fmt.Errorf("%w: client name is required", store.ErrInvalid)
	}
	if client.CreditLimit.Sign() < 0 {
		return domain.Client{}, fmt.Errorf("%w: credit limit cannot be negative", store.ErrInvalid)
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
		client.CurrentDebt = decimal.Zero
		client.Active = true
	}

	saved, err := s.repo.SaveClient(ctx, client)
	if err != nil {
		return domain.Client{}, err
	}
	return *saved, nil
}

func (s *Service) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.Description = strings.TrimSpace(product.Description)
	product.Unit = strings.TrimSpace(product.Unit)
	if product.Description == "" {
		return domain.Product{}, fmt.Errorf("%w: product description is required", store.ErrInvalid)
	}
	if product.Unit == "" {
		product.Unit = "KG"
	}
	if product.SellPrice.Sign() < 0 || product.AverageCost.Sign() < 0 {
		return domain.Product{}, fmt.Errorf("%w: prices cannot be negative", store.ErrInvalid)
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	saved, err := s.repo.SaveProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) SaveSupplier(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return domain.Supplier{}, fmt.Errorf("%w: supplier name is required", store.ErrInvalid)
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}

	saved, err := s.repo.SaveSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *saved, nil
}

func (s *Service) SaveExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (domain.ExpenseCategory, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return domain.ExpenseCategory{}, fmt.Errorf("%w: category name is required", store.ErrInvalid)
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}

	saved, err := s.repo.SaveExpenseCategory(ctx, category)
	if err != nil {
		return domain.ExpenseCategory{}, err
	}
	return *saved, nil
}

// SaveExpense upserts an expense. An expense saved as PAGO with a payment
// date books a cash exit in the journal; the repository guarantees it is
// booked only once per expense.
func (s *Service) SaveExpense(ctx context.Context, expense domain.Expense) (domain.Expense, error) {
	expense.Description = strings.TrimSpace(expense.Description)
	if expense.Description == "" {
		return domain.Expense{}, fmt.Errorf("%w: expense description is required", store.ErrInvalid)
	}
	if expense.Amount.Sign() <= 0 {
		return domain.Expense{}, fmt.Errorf("%w: expense amount must be positive", store.ErrInvalid)
	}
	switch expense.Status {
	case "":
		expense.Status = domain.ExpenseAberto
	case domain.ExpenseAberto, domain.ExpensePago:
	default:
		return domain.Expense{}, fmt.Errorf("%w: unknown expense status %q", store.ErrInvalid, expense.Status)
	}
	if expense.Status == domain.ExpensePago && expense.PaymentDate == nil {
		return domain.Expense{}, fmt.Errorf("%w: paid expense needs a payment date", store.ErrInvalid)
	}
	if expense.CompetenceDate.IsZero() {
		expense.CompetenceDate = time.Now().UTC()
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}

	saved, err := s.repo.SaveExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}
	return *saved, nil
}

// --- Inventory ledger ---

// AddStockEntry ingests a goods receipt: it derives the landed unit cost
// from the product cost plus freight/toll/food extras and folds it into the
// product's stock and weighted-average cost.
func (s *Service) AddStockEntry(ctx context.Context, req domain.StockEntryCreateRequest) (domain.StockEntry, error) {
	if req.ProductID == "" {
		return domain.StockEntry{}, fmt.Errorf("%w: product id is required", store.ErrInvalid)
	}
	if req.Quantity.Sign() <= 0 {
		return domain.StockEntry{}, fmt.Errorf("%w: quantity must be positive", store.ErrInvalid)
	}
	if req.CostProduct.Sign() < 0 || req.CostFreight.Sign() < 0 || req.CostTolls.Sign() < 0 || req.CostFood.Sign() < 0 {
		return domain.StockEntry{}, fmt.Errorf("%w: costs cannot be negative", store.ErrInvalid)
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	entry := domain.StockEntry{
		ID:            xid.New("entry"),
		ProductID:     req.ProductID,
		SupplierID:    req.SupplierID,
		Date:          date,
		Quantity:      req.Quantity,
		CostProduct:   req.CostProduct,
		CostFreight:   req.CostFreight,
		CostTolls:     req.CostTolls,
		CostFood:      req.CostFood,
		FinalUnitCost: domain.FinalUnitCost(req.Quantity, req.CostProduct, req.CostFreight, req.CostTolls, req.CostFood),
		DueDate:       req.DueDate,
	}

	created, err := s.repo.AddStockEntry(ctx, entry)
	if err != nil {
		return domain.StockEntry{}, err
	}
	return *created, nil
}

// --- Sale settlement ---

// CreateSale assembles and settles a sale: product names and the current
// average cost are snapshotted onto the line items, the total is computed
// from the lines, and the repository applies stock reduction plus the
// payment-method ledger effect atomically. Credit-limit and negative-stock
// conditions never block the sale; they come back as advisory warnings.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleCreateResponse, error) {
	switch req.PaymentMethod {
	case domain.PaymentDinheiro, domain.PaymentPix, domain.PaymentCheque, domain.PaymentRotativo:
	default:
		return domain.SaleCreateResponse{}, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalid, req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return domain.SaleCreateResponse{}, fmt.Errorf("%w: sale needs at least one item", store.ErrInvalid)
	}

	var client *domain.Client
	if req.ClientID != "" {
		found, err := s.repo.GetClientByID(ctx, req.ClientID)
		if err != nil {
			return domain.SaleCreateResponse{}, err
		}
		client = found
	} else if req.PaymentMethod == domain.PaymentRotativo {
		return domain.SaleCreateResponse{}, fmt.Errorf("%w: rotativo sale needs a client", store.ErrInvalid)
	}

	clientName := strings.TrimSpace(req.ClientName)
	if client != nil {
		clientName = client.Name
	}
	if clientName == "" {
		clientName = "CONSUMIDOR"
	}

	warnings := make([]string, 0, 2)
	items := make([]domain.SaleItem, 0, len(req.Items))
	total := decimal.Zero
	for _, in := range req.Items {
		if in.ProductID == "" {
			return domain.SaleCreateResponse{}, fmt.Errorf("%w: item product id is required", store.ErrInvalid)
		}
		if in.Quantity.Sign() <= 0 {
			return domain.SaleCreateResponse{}, fmt.Errorf("%w: item quantity must be positive", store.ErrInvalid)
		}
		if in.UnitPrice.Sign() < 0 {
			return domain.SaleCreateResponse{}, fmt.Errorf("%w: item price cannot be negative", store.ErrInvalid)
		}

		product, err := s.repo.GetProductByID(ctx, in.ProductID)
		if err != nil {
			return domain.SaleCreateResponse{}, fmt.Errorf("product %s: %w", in.ProductID, err)
		}
		if product.CurrentStock.Sub(in.Quantity).Sign() < 0 {
			warnings = append(warnings, domain.WarnNegativeStock)
		}

		lineTotal := in.Quantity.Mul(in.UnitPrice)
		items = append(items, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			AppliedCost: product.AverageCost,
			Total:       lineTotal,
		})
		total = total.Add(lineTotal)
	}

	if req.PaymentMethod == domain.PaymentRotativo && client != nil {
		if client.CurrentDebt.Add(total).Cmp(client.CreditLimit) > 0 {
			warnings = append(warnings, domain.WarnCreditLimitExceeded)
		}
	}

	sale := domain.Sale{
		ID:            xid.New("sale"),
		ClientName:    clientName,
		Date:          time.Now().UTC(),
		DueDate:       req.DueDate,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		Status:        domain.SaleConcluida,
		Items:         items,
	}
	if client != nil {
		sale.ClientID = client.ID
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.SaleCreateResponse{}, err
	}

	return domain.SaleCreateResponse{Sale: *created, Warnings: dedupe(warnings)}, nil
}

// CancelSale reverses a sale exactly: stock returns, the financial effect is
// inverted per payment method, and the status flips to CANCELADA. Cancelling
// an unknown or already-cancelled sale mutates nothing.
func (s *Service) CancelSale(ctx context.Context, saleID string) (domain.Sale, error) {
	if saleID == "" {
		return domain.Sale{}, fmt.Errorf("%w: sale id is required", store.ErrInvalid)
	}
	canceled, err := s.repo.CancelSale(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	log.Printf("[service] sale %s canceled (method=%s total=%s)", canceled.ID, canceled.PaymentMethod, canceled.Total)
	return *canceled, nil
}

// --- Check lifecycle ---

// SaveCheck inserts a new check in custody or applies a status transition.
// Ledger side effects of a transition live in the repository so they commit
// together with the status change.
func (s *Service) SaveCheck(ctx context.Context, check domain.Check) (domain.Check, error) {
	switch check.Status {
	case "":
		check.Status = domain.CheckCustodia
	case domain.CheckCustodia, domain.CheckCompensado, domain.CheckDevolvido, domain.CheckCancelado:
	default:
		return domain.Check{}, fmt.Errorf("%w: unknown check status %q", store.ErrInvalid, check.Status)
	}
	if check.Amount.Sign() <= 0 {
		return domain.Check{}, fmt.Errorf("%w: check amount must be positive", store.ErrInvalid)
	}
	if check.ID == "" {
		if check.ClientID == "" {
			return domain.Check{}, fmt.Errorf("%w: check needs a client", store.ErrInvalid)
		}
		client, err := s.repo.GetClientByID(ctx, check.ClientID)
		if err != nil {
			return domain.Check{}, err
		}
		check.ID = xid.New("chk")
		check.ClientName = client.Name
	}
	if check.Bank == "" {
		check.Bank = "N/A"
	}
	if check.Number == "" {
		check.Number = "N/A"
	}
	if check.UpdatedAt.IsZero() {
		check.UpdatedAt = time.Now().UTC()
	}
	if check.DueDate.IsZero() {
		check.DueDate = time.Now().UTC()
	}

	saved, err := s.repo.SaveCheck(ctx, check)
	if err != nil {
		return domain.Check{}, err
	}
	return *saved, nil
}

// --- Rotativo settlement ---

// PayRotativo settles part of a client's store-credit debt. The debt drops
// immediately for every method; a CHEQUE payment leaves a custody check as
// the receivable instead of a cash entry, and the bounce path reinstates the
// debt later if the check fails.
func (s *Service) PayRotativo(ctx context.Context, req domain.PayRotativoRequest) (domain.PayRotativoResponse, error) {
	switch req.Method {
	case domain.PaymentDinheiro, domain.PaymentPix, domain.PaymentCheque:
	default:
		return domain.PayRotativoResponse{}, fmt.Errorf("%w: unknown settlement method %q", store.ErrInvalid, req.Method)
	}
	if req.Amount.Sign() <= 0 {
		return domain.PayRotativoResponse{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalid)
	}

	client, err := s.repo.GetClientByID(ctx, req.ClientID)
	if err != nil {
		return domain.PayRotativoResponse{}, err
	}

	var check *domain.Check
	if req.Method == domain.PaymentCheque {
		now := time.Now().UTC()
		built := domain.Check{
			ID:         xid.New("chk"),
			ClientID:   client.ID,
			ClientName: client.Name,
			Bank:       "N/A",
			Number:     "N/A",
			Amount:     req.Amount,
			DueDate:    now,
			Status:     domain.CheckCustodia,
			UpdatedAt:  now,
		}
		if req.Check != nil {
			if req.Check.Bank != "" {
				built.Bank = req.Check.Bank
			}
			if req.Check.Number != "" {
				built.Number = req.Check.Number
			}
			if req.Check.DueDate != nil {
				built.DueDate = req.Check.DueDate.UTC()
			}
		}
		check = &built
	}

	if err := s.repo.PayRotativo(ctx, client.ID, req.Amount, req.Method, check); err != nil {
		return domain.PayRotativoResponse{}, err
	}

	updated, err := s.repo.GetClientByID(ctx, client.ID)
	if err != nil {
		return domain.PayRotativoResponse{}, err
	}
	return domain.PayRotativoResponse{Client: *updated, Check: check}, nil
}

// AddMovement books a manual journal adjustment. The journal is append-only;
// a wrong entry is corrected by booking the opposite movement.
func (s *Service) AddMovement(ctx context.Context, movement domain.Movement) (domain.Movement, error) {
	switch movement.Type {
	case domain.MovementEntrada, domain.MovementSaida:
	default:
		return domain.Movement{}, fmt.Errorf("%w: unknown movement type %q", store.ErrInvalid, movement.Type)
	}
	if movement.Amount.Sign() <= 0 {
		return domain.Movement{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalid)
	}
	movement.Description = strings.TrimSpace(movement.Description)
	if movement.Category == "" {
		movement.Category = "Ajuste Manual"
	}

	created, err := s.repo.AddMovement(ctx, movement)
	if err != nil {
		return domain.Movement{}, err
	}
	return *created, nil
}

// --- Backup ---

// ExportBackup serializes the whole store keyed by the legacy collection
// names.
func (s *Service) ExportBackup(ctx context.Context) ([]byte, error) {
	snapshot, err := s.repo.ExportSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(snapshot, "", "  ")
}

// ImportBackup replaces every recognized collection in the payload
// wholesale. A payload without any recognized collection key, or one that
// does not parse, is rejected without touching the store.
func (s *Service) ImportBackup(ctx context.Context, payload []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("%w: backup payload is not valid JSON: %v", store.ErrInvalid, err)
	}

	recognized := false
	for _, key := range domain.SnapshotKeys {
		if _, ok := raw[key]; ok {
			recognized = true
			break
		}
	}
	if !recognized {
		return fmt.Errorf("%w: backup payload has no recognized collection", store.ErrInvalid)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return fmt.Errorf("%w: backup payload does not match schema: %v", store.ErrInvalid, err)
	}

	if err := s.repo.ImportSnapshot(ctx, snapshot); err != nil {
		return err
	}
	log.Printf("[service] backup imported (%d bytes)", len(payload))
	return nil
}

func dedupe(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
