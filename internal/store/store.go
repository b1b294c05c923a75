package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"pescapos/backend/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalid         = errors.New("invalid input")
	ErrAlreadyCanceled = errors.New("sale already canceled")
)

// Repository is the persistence boundary of the settlement engine. Every
// operation that touches more than one collection (sale creation and
// cancellation, check transitions, stock entry ingestion, rotativo payment)
// is a single repository call so each backend can apply it atomically: the
// memory store under one lock, the postgres store in one serializable
// transaction.
type Repository interface {
	ListClients(ctx context.Context) ([]domain.Client, error)
	GetClientByID(ctx context.Context, id string) (*domain.Client, error)
	SaveClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	UpdateClientDebt(ctx context.Context, clientID string, delta decimal.Decimal) error

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	SaveSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	ListStockEntries(ctx context.Context) ([]domain.StockEntry, error)
	AddStockEntry(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error)

	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	CancelSale(ctx context.Context, saleID string) (*domain.Sale, error)

	ListChecks(ctx context.Context) ([]domain.Check, error)
	GetCheckByID(ctx context.Context, id string) (*domain.Check, error)
	SaveCheck(ctx context.Context, check domain.Check) (*domain.Check, error)

	PayRotativo(ctx context.Context, clientID string, amount decimal.Decimal, method string, check *domain.Check) error

	ListMovements(ctx context.Context) ([]domain.Movement, error)
	AddMovement(ctx context.Context, movement domain.Movement) (*domain.Movement, error)

	ListExpenses(ctx context.Context) ([]domain.Expense, error)
	SaveExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error)
	SaveExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error)

	ExportSnapshot(ctx context.Context) (*domain.Snapshot, error)
	ImportSnapshot(ctx context.Context, snapshot domain.Snapshot) error
}
