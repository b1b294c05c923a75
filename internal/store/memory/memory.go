package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pescapos/backend/internal/domain"
	"pescapos/backend/internal/store"
	"pescapos/backend/internal/xid"
)

// Store keeps every collection in process memory behind one RWMutex, so each
// settlement operation is atomic by construction. Collections are small
// (single shop, single tenant); linear scans are fine.
type Store struct {
	mu                sync.RWMutex
	clients           []domain.Client
	products          []domain.Product
	suppliers         []domain.Supplier
	sales             []domain.Sale
	checks            []domain.Check
	movements         []domain.Movement
	stockEntries      []domain.StockEntry
	expenses          []domain.Expense
	expenseCategories []domain.ExpenseCategory
}

func New() *Store {
	return &Store{}
}

// NewSeeded returns a store preloaded with demo data for dev mode.
func NewSeeded() *Store {
	dec := decimal.RequireFromString
	return &Store{
		clients: []domain.Client{
			{ID: "cli-seed-1", Name: "João Silva", TaxID: "123.456.789-00", CreditLimit: dec("1000"), CurrentDebt: decimal.Zero, Active: true},
			{ID: "cli-seed-2", Name: "Maria Souza", TaxID: "987.654.321-00", CreditLimit: dec("2000"), CurrentDebt: dec("150"), Active: true},
		},
		products: []domain.Product{
			{ID: "prod-seed-1", Description: "Tilápia Inteira", Unit: "KG", CurrentStock: dec("80"), AverageCost: dec("14.50"), SellPrice: dec("22.90")},
			{ID: "prod-seed-2", Description: "Camarão Cinza", Unit: "KG", CurrentStock: dec("25"), AverageCost: dec("38.00"), SellPrice: dec("54.90")},
			{ID: "prod-seed-3", Description: "Filé de Merluza", Unit: "KG", CurrentStock: dec("40"), AverageCost: dec("19.80"), SellPrice: dec("29.90")},
		},
		suppliers: []domain.Supplier{
			{ID: "sup-seed-1", Name: "Pescados Santos Ltda", Contact: "13 3333-4444"},
		},
		expenseCategories: []domain.ExpenseCategory{
			{ID: "cat-seed-1", Name: "Água/Luz"},
			{ID: "cat-seed-2", Name: "Aluguel"},
			{ID: "cat-seed-3", Name: "Salários"},
			{ID: "cat-seed-4", Name: "Manutenção"},
			{ID: "cat-seed-5", Name: "Impostos"},
			{ID: "cat-seed-6", Name: "Outros"},
		},
	}
}

// --- Clients ---

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := slices.Clone(s.clients)
	slices.SortFunc(clients, func(a, b domain.Client) int {
		return strings.Compare(a.Name, b.Name)
	})
	return clients, nil
}

func (s *Store) GetClientByID(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := slices.IndexFunc(s.clients, func(c domain.Client) bool { return c.ID == id })
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	client := s.clients[idx]
	return &client, nil
}

func (s *Store) SaveClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	if client.ID == "" || client.Name == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.clients, func(c domain.Client) bool { return c.ID == client.ID })
	if idx >= 0 {
		s.clients[idx] = client
	} else {
		s.clients = append(s.clients, client)
	}
	saved := client
	return &saved, nil
}

func (s *Store) UpdateClientDebt(_ context.Context, clientID string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateClientDebtLocked(clientID, delta)
	return nil
}

// updateClientDebtLocked is the only mutation path for current_debt. A
// missing client is a silent no-op: the debt ledger never fails a settlement
// over a deleted client record.
func (s *Store) updateClientDebtLocked(clientID string, delta decimal.Decimal) {
	idx := slices.IndexFunc(s.clients, func(c domain.Client) bool { return c.ID == clientID })
	if idx < 0 {
		return
	}
	s.clients[idx].CurrentDebt = s.clients[idx].CurrentDebt.Add(delta)
}

// --- Products ---

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := slices.Clone(s.products)
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Description, b.Description)
	})
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == id })
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	product := s.products[idx]
	return &product, nil
}

func (s *Store) SaveProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Description == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == product.ID })
	if idx >= 0 {
		s.products[idx] = product
	} else {
		s.products = append(s.products, product)
	}
	saved := product
	return &saved, nil
}

// --- Suppliers ---

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := slices.Clone(s.suppliers)
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) SaveSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" || supplier.Name == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.suppliers, func(x domain.Supplier) bool { return x.ID == supplier.ID })
	if idx >= 0 {
		s.suppliers[idx] = supplier
	} else {
		s.suppliers = append(s.suppliers, supplier)
	}
	saved := supplier
	return &saved, nil
}

// --- Inventory ledger ---

func (s *Store) ListStockEntries(_ context.Context) ([]domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.stockEntries), nil
}

// AddStockEntry appends the entry and folds it into the product's stock and
// weighted-average cost. The product is resolved before anything is written,
// so a bad product id leaves no dangling entry behind.
func (s *Store) AddStockEntry(_ context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	if entry.ID == "" || entry.ProductID == "" || entry.Quantity.Sign() <= 0 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == entry.ProductID })
	if idx < 0 {
		return nil, store.ErrNotFound
	}

	s.stockEntries = append(s.stockEntries, entry)

	p := &s.products[idx]
	p.AverageCost = domain.WeightedAverageCost(p.CurrentStock, p.AverageCost, entry.Quantity, entry.FinalUnitCost)
	p.CurrentStock = p.CurrentStock.Add(entry.Quantity)

	created := entry
	return &created, nil
}

// --- Sales ---

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.Date.Compare(a.Date)
	})
	return sales, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := slices.IndexFunc(s.sales, func(x domain.Sale) bool { return x.ID == id })
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	sale := cloneSale(s.sales[idx])
	return &sale, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.createSaleLocked(sale)
	return &created, nil
}

// createSaleLocked inserts the sale, reduces stock per line item and applies
// the payment-method side effect. Also the entry point for the synthetic
// bounced-check sale, so debt reinstatement shares the normal path.
func (s *Store) createSaleLocked(sale domain.Sale) domain.Sale {
	s.sales = append(s.sales, cloneSale(sale))

	for _, item := range sale.Items {
		if item.ProductID == "" {
			continue
		}
		idx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == item.ProductID })
		if idx < 0 {
			continue
		}
		s.products[idx].CurrentStock = s.products[idx].CurrentStock.Sub(item.Quantity)
	}

	switch sale.PaymentMethod {
	case domain.PaymentRotativo:
		s.updateClientDebtLocked(sale.ClientID, sale.Total)
	case domain.PaymentDinheiro, domain.PaymentPix:
		s.appendMovementLocked(domain.Movement{
			Date:          sale.Date,
			Type:          domain.MovementEntrada,
			Amount:        sale.Total,
			Category:      domain.CategoryVendaAVista,
			Description:   fmt.Sprintf("Venda #%s - %s", sale.ID, sale.ClientName),
			PaymentMethod: sale.PaymentMethod,
		})
	}
	// CHEQUE: no cash effect here; the check stays a receivable until
	// compensated.

	return cloneSale(sale)
}

func (s *Store) CancelSale(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.sales, func(x domain.Sale) bool { return x.ID == saleID })
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	sale := s.sales[idx]
	if sale.Status == domain.SaleCancelada {
		return nil, store.ErrAlreadyCanceled
	}
	if sale.Status == domain.SaleChequeDevolvido {
		// Synthetic debt-reinstatement records are not cancellable; the
		// check lifecycle owns them.
		return nil, store.ErrInvalid
	}

	for _, item := range sale.Items {
		if item.ProductID == "" {
			continue
		}
		pIdx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == item.ProductID })
		if pIdx < 0 {
			continue
		}
		s.products[pIdx].CurrentStock = s.products[pIdx].CurrentStock.Add(item.Quantity)
	}

	now := time.Now().UTC()
	switch sale.PaymentMethod {
	case domain.PaymentRotativo:
		s.updateClientDebtLocked(sale.ClientID, sale.Total.Neg())
	case domain.PaymentDinheiro, domain.PaymentPix:
		s.appendMovementLocked(domain.Movement{
			Date:          now,
			Type:          domain.MovementSaida,
			Amount:        sale.Total,
			Category:      domain.CategoryEstornoCancelamento,
			Description:   fmt.Sprintf("Estorno Venda #%s", sale.ID),
			PaymentMethod: sale.PaymentMethod,
		})
	case domain.PaymentCheque:
		cIdx := slices.IndexFunc(s.checks, func(c domain.Check) bool { return c.OriginSaleID == sale.ID })
		if cIdx >= 0 {
			if s.checks[cIdx].Status == domain.CheckCompensado {
				// The check already cleared: its cash entry must be
				// reversed before the check is written off.
				s.appendMovementLocked(domain.Movement{
					Date:          now,
					Type:          domain.MovementSaida,
					Amount:        s.checks[cIdx].Amount,
					Category:      domain.CategoryEstornoCheque,
					Description:   fmt.Sprintf("Estorno Cheque #%s (venda cancelada)", s.checks[cIdx].Number),
					PaymentMethod: domain.PaymentCheque,
				})
			}
			s.checks[cIdx].Status = domain.CheckCancelado
			s.checks[cIdx].UpdatedAt = now
		}
	}

	// Replace the whole record so the mutation is always observed.
	canceled := cloneSale(sale)
	canceled.Status = domain.SaleCancelada
	s.sales[idx] = canceled

	result := cloneSale(canceled)
	return &result, nil
}

// --- Checks ---

func (s *Store) ListChecks(_ context.Context) ([]domain.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checks := slices.Clone(s.checks)
	slices.SortFunc(checks, compareCheckForDisplay)
	return checks, nil
}

func (s *Store) GetCheckByID(_ context.Context, id string) (*domain.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := slices.IndexFunc(s.checks, func(c domain.Check) bool { return c.ID == id })
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	check := s.checks[idx]
	return &check, nil
}

// SaveCheck inserts a new check or applies a status transition. Transitions
// carry the ledger side effects: compensation books the cash entry (dated at
// the check's updated_at, so clearing can be back-dated), a bounce reverses
// a previously booked entry and reinstates the client's debt through a
// synthetic ROTATIVO sale.
func (s *Store) SaveCheck(_ context.Context, check domain.Check) (*domain.Check, error) {
	if check.ID == "" || check.Amount.Sign() < 0 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.checks, func(c domain.Check) bool { return c.ID == check.ID })
	if idx < 0 {
		s.checks = append(s.checks, check)
		saved := check
		return &saved, nil
	}

	oldStatus := s.checks[idx].Status
	now := time.Now().UTC()

	if oldStatus != domain.CheckCompensado && check.Status == domain.CheckCompensado {
		date := check.UpdatedAt
		if date.IsZero() {
			date = now
		}
		s.appendMovementLocked(domain.Movement{
			Date:          date,
			Type:          domain.MovementEntrada,
			Amount:        check.Amount,
			Category:      domain.CategoryCompensacaoCheque,
			Description:   fmt.Sprintf("Cheque #%s - %s", check.Number, check.ClientName),
			PaymentMethod: domain.PaymentCheque,
		})
	}

	if check.Status == domain.CheckDevolvido && oldStatus != domain.CheckDevolvido {
		if oldStatus == domain.CheckCompensado {
			s.appendMovementLocked(domain.Movement{
				Date:          now,
				Type:          domain.MovementSaida,
				Amount:        check.Amount,
				Category:      domain.CategoryEstornoCheque,
				Description:   fmt.Sprintf("Devolução Cheque #%s", check.Number),
				PaymentMethod: domain.PaymentCheque,
			})
		}
		s.createSaleLocked(domain.BouncedCheckSale(xid.New("sale"), check, now))
	}

	s.checks[idx] = check
	saved := check
	return &saved, nil
}

// --- Rotativo settlement ---

// PayRotativo settles client debt. The debt drops immediately for every
// method: a check received against the debt counts as settled while in
// custody, and a later bounce reinstates the obligation through the check
// lifecycle.
func (s *Store) PayRotativo(_ context.Context, clientID string, amount decimal.Decimal, method string, check *domain.Check) error {
	if clientID == "" || amount.Sign() <= 0 {
		return store.ErrInvalid
	}
	if method == domain.PaymentCheque && check == nil {
		return store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateClientDebtLocked(clientID, amount.Neg())

	if method == domain.PaymentCheque {
		s.checks = append(s.checks, *check)
		return nil
	}

	s.appendMovementLocked(domain.Movement{
		Date:          time.Now().UTC(),
		Type:          domain.MovementEntrada,
		Amount:        amount,
		Category:      domain.CategoryRecebimentoRotativo,
		Description:   fmt.Sprintf("Pagamento Fatura Cliente #%s", clientID),
		PaymentMethod: method,
	})
	return nil
}

// --- Cash journal ---

func (s *Store) ListMovements(_ context.Context) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.movements), nil
}

func (s *Store) AddMovement(_ context.Context, movement domain.Movement) (*domain.Movement, error) {
	if movement.Amount.Sign() < 0 {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.appendMovementLocked(movement)
	return &created, nil
}

func (s *Store) appendMovementLocked(movement domain.Movement) domain.Movement {
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.Date.IsZero() {
		movement.Date = time.Now().UTC()
	}
	s.movements = append(s.movements, movement)
	return movement
}

// --- Expenses ---

func (s *Store) ListExpenses(_ context.Context) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := slices.Clone(s.expenses)
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		return b.CompetenceDate.Compare(a.CompetenceDate)
	})
	return expenses, nil
}

// SaveExpense upserts the expense. Crossing into PAGO with a payment date
// books the cash exit once; re-saving an already paid expense does not book
// it again.
func (s *Store) SaveExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" || expense.Description == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wasPago := false
	idx := slices.IndexFunc(s.expenses, func(e domain.Expense) bool { return e.ID == expense.ID })
	if idx >= 0 {
		wasPago = s.expenses[idx].Status == domain.ExpensePago
		s.expenses[idx] = expense
	} else {
		s.expenses = append(s.expenses, expense)
	}

	if expense.Status == domain.ExpensePago && expense.PaymentDate != nil && !wasPago {
		s.appendMovementLocked(domain.Movement{
			Date:          *expense.PaymentDate,
			Type:          domain.MovementSaida,
			Amount:        expense.Amount,
			Category:      expense.Category,
			Description:   fmt.Sprintf("Pgto: %s", expense.Description),
			PaymentMethod: "DINHEIRO/PIX",
		})
	}

	saved := expense
	return &saved, nil
}

func (s *Store) ListExpenseCategories(_ context.Context) ([]domain.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := slices.Clone(s.expenseCategories)
	slices.SortFunc(categories, func(a, b domain.ExpenseCategory) int {
		return strings.Compare(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) SaveExpenseCategory(_ context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if category.ID == "" || category.Name == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.expenseCategories, func(c domain.ExpenseCategory) bool { return c.ID == category.ID })
	if idx >= 0 {
		s.expenseCategories[idx] = category
	} else {
		s.expenseCategories = append(s.expenseCategories, category)
	}
	saved := category
	return &saved, nil
}

// --- Backup ---

func (s *Store) ExportSnapshot(_ context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &domain.Snapshot{
		Clients:           append([]domain.Client{}, s.clients...),
		Products:          append([]domain.Product{}, s.products...),
		Suppliers:         append([]domain.Supplier{}, s.suppliers...),
		Sales:             make([]domain.Sale, 0, len(s.sales)),
		Checks:            append([]domain.Check{}, s.checks...),
		Expenses:          append([]domain.Expense{}, s.expenses...),
		Movements:         append([]domain.Movement{}, s.movements...),
		StockEntries:      append([]domain.StockEntry{}, s.stockEntries...),
		ExpenseCategories: append([]domain.ExpenseCategory{}, s.expenseCategories...),
	}
	for _, sale := range s.sales {
		snapshot.Sales = append(snapshot.Sales, cloneSale(sale))
	}
	return snapshot, nil
}

// ImportSnapshot replaces each collection present in the payload wholesale.
// Absent (nil) collections keep their current contents.
func (s *Store) ImportSnapshot(_ context.Context, snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot.Clients != nil {
		s.clients = slices.Clone(snapshot.Clients)
	}
	if snapshot.Products != nil {
		s.products = slices.Clone(snapshot.Products)
	}
	if snapshot.Suppliers != nil {
		s.suppliers = slices.Clone(snapshot.Suppliers)
	}
	if snapshot.Sales != nil {
		s.sales = make([]domain.Sale, 0, len(snapshot.Sales))
		for _, sale := range snapshot.Sales {
			s.sales = append(s.sales, cloneSale(sale))
		}
	}
	if snapshot.Checks != nil {
		s.checks = slices.Clone(snapshot.Checks)
	}
	if snapshot.Expenses != nil {
		s.expenses = slices.Clone(snapshot.Expenses)
	}
	if snapshot.Movements != nil {
		s.movements = slices.Clone(snapshot.Movements)
	}
	if snapshot.StockEntries != nil {
		s.stockEntries = slices.Clone(snapshot.StockEntries)
	}
	if snapshot.ExpenseCategories != nil {
		s.expenseCategories = slices.Clone(snapshot.ExpenseCategories)
	}
	return nil
}

// --- helpers ---

func cloneSale(sale domain.Sale) domain.Sale {
	out := sale
	out.Items = slices.Clone(sale.Items)
	if sale.DueDate != nil {
		due := *sale.DueDate
		out.DueDate = &due
	}
	return out
}

// compareCheckForDisplay puts checks still in custody first, then orders by
// ascending due date.
func compareCheckForDisplay(a, b domain.Check) int {
	aCustodia := a.Status == domain.CheckCustodia
	bCustodia := b.Status == domain.CheckCustodia
	if aCustodia != bCustodia {
		if aCustodia {
			return -1
		}
		return 1
	}
	return a.DueDate.Compare(b.DueDate)
}
