package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentDinheiro = "DINHEIRO"
	PaymentPix      = "PIX"
	PaymentCheque   = "CHEQUE"
	PaymentRotativo = "ROTATIVO"
)

const (
	SaleConcluida       = "CONCLUIDA"
	SaleCancelada       = "CANCELADA"
	SaleChequeDevolvido = "CHEQUE_DEVOLVIDO"
)

const (
	CheckCustodia   = "CUSTODIA"
	CheckCompensado = "COMPENSADO"
	CheckDevolvido  = "DEVOLVIDO"
	CheckCancelado  = "CANCELADO"
)

const (
	MovementEntrada = "ENTRADA"
	MovementSaida   = "SAIDA"
)

const (
	ExpenseAberto = "ABERTO"
	ExpensePago   = "PAGO"
)

// Fixed cash-journal categories written by the settlement engine.
const (
	CategoryVendaAVista         = "Venda à Vista"
	CategoryEstornoCancelamento = "Estorno/Cancelamento"
	CategoryCompensacaoCheque   = "Compensação Cheque"
	CategoryEstornoCheque       = "Estorno Cheque"
	CategoryRecebimentoRotativo = "Recebimento Rotativo"
)

type Client struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	TaxID       string          `json:"tax_id,omitempty"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	CurrentDebt decimal.Decimal `json:"current_debt"`
	Active      bool            `json:"active"`
}

type Supplier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type Product struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	SellPrice    decimal.Decimal `json:"sell_price"`
}

// StockEntry is immutable once created: the inventory ledger only appends.
type StockEntry struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id"`
	SupplierID    string          `json:"supplier_id,omitempty"`
	Date          time.Time       `json:"date"`
	Quantity      decimal.Decimal `json:"quantity"`
	CostProduct   decimal.Decimal `json:"cost_product"`
	CostFreight   decimal.Decimal `json:"cost_freight"`
	CostTolls     decimal.Decimal `json:"cost_tolls"`
	CostFood      decimal.Decimal `json:"cost_food"`
	FinalUnitCost decimal.Decimal `json:"final_unit_cost"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
}

type SaleItem struct {
	ProductID   string          `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	AppliedCost decimal.Decimal `json:"applied_cost"`
	Total       decimal.Decimal `json:"total"`
}

type Sale struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"client_id,omitempty"`
	ClientName    string          `json:"client_name"`
	Date          time.Time       `json:"date"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	Items         []SaleItem      `json:"items"`
}

type Check struct {
	ID           string          `json:"id"`
	ClientID     string          `json:"client_id"`
	ClientName   string          `json:"client_name"`
	OriginSaleID string          `json:"origin_sale_id,omitempty"`
	Bank         string          `json:"bank"`
	Number       string          `json:"number"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
	Status       string          `json:"status"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Movement is one confirmed cash-equivalent entry or exit. The journal is
// append-only: movements are never edited or deleted.
type Movement struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"payment_method"`
}

type Expense struct {
	ID             string          `json:"id"`
	SupplierID     string          `json:"supplier_id,omitempty"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	CompetenceDate time.Time       `json:"competence_date"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	Status         string          `json:"status"`
	Category       string          `json:"category"`
}

type ExpenseCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Snapshot is the whole-store backup payload. JSON keys keep the legacy
// collection names so backups from the previous system restore cleanly.
// A nil slice means the collection was absent from the payload and is
// left untouched on import.
type Snapshot struct {
	Clients           []Client          `json:"erp_clients"`
	Products          []Product         `json:"erp_products"`
	Suppliers         []Supplier        `json:"erp_suppliers"`
	Sales             []Sale            `json:"erp_sales"`
	Checks            []Check           `json:"erp_checks"`
	Expenses          []Expense         `json:"erp_expenses"`
	Movements         []Movement        `json:"erp_movements"`
	StockEntries      []StockEntry      `json:"erp_entries"`
	ExpenseCategories []ExpenseCategory `json:"erp_expense_categories"`
}

// SnapshotKeys lists every collection key a backup payload may carry.
var SnapshotKeys = []string{
	"erp_clients", "erp_products", "erp_suppliers", "erp_sales", "erp_checks",
	"erp_expenses", "erp_movements", "erp_entries", "erp_expense_categories",
}

// WeightedAverageCost computes the new average cost after receiving entryQty
// units at entryCost onto currentStock units carried at currentAvg. When the
// resulting quantity is not positive the cost basis resets to the incoming
// unit cost, which also covers the zero-division case.
func WeightedAverageCost(currentStock, currentAvg, entryQty, entryCost decimal.Decimal) decimal.Decimal {
	newQty := currentStock.Add(entryQty)
	if newQty.Sign() <= 0 {
		return entryCost
	}
	oldValue := currentStock.Mul(currentAvg)
	newValue := entryQty.Mul(entryCost)
	return oldValue.Add(newValue).Div(newQty)
}

// FinalUnitCost derives a stock entry's landed unit cost: product cost plus
// extra costs spread across the received quantity.
func FinalUnitCost(quantity, costProduct, costFreight, costTolls, costFood decimal.Decimal) decimal.Decimal {
	if quantity.Sign() <= 0 {
		return decimal.Zero
	}
	extras := costFreight.Add(costTolls).Add(costFood)
	return quantity.Mul(costProduct).Add(extras).Div(quantity)
}

// BouncedCheckSale builds the synthetic ROTATIVO sale that reinstates a
// client's debt when a check bounces. It routes through the normal sale
// creation path, which raises the client's debt by the check amount.
func BouncedCheckSale(id string, check Check, at time.Time) Sale {
	due := at
	return Sale{
		ID:            id,
		ClientID:      check.ClientID,
		ClientName:    check.ClientName,
		Date:          at,
		DueDate:       &due,
		Total:         check.Amount,
		PaymentMethod: PaymentRotativo,
		Status:        SaleChequeDevolvido,
		Items: []SaleItem{{
			ProductName: fmt.Sprintf("CHEQUE DEVOLVIDO #%s (Banco: %s)", check.Number, check.Bank),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   check.Amount,
			AppliedCost: decimal.Zero,
			Total:       check.Amount,
		}},
	}
}
