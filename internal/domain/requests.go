package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleItemInput struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleCreateRequest struct {
	ClientID      string          `json:"client_id,omitempty"`
	ClientName    string          `json:"client_name,omitempty"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	Items         []SaleItemInput `json:"items"`
}

// Advisory warning codes returned by sale creation. The engine never blocks
// on these conditions; the calling layer decides whether to confirm them
// with the user beforehand.
const (
	WarnCreditLimitExceeded = "credit_limit_exceeded"
	WarnNegativeStock       = "negative_stock"
)

type SaleCreateResponse struct {
	Sale     Sale     `json:"sale"`
	Warnings []string `json:"warnings,omitempty"`
}

type StockEntryCreateRequest struct {
	ProductID   string          `json:"product_id"`
	SupplierID  string          `json:"supplier_id,omitempty"`
	Date        *time.Time      `json:"date,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostProduct decimal.Decimal `json:"cost_product"`
	CostFreight decimal.Decimal `json:"cost_freight"`
	CostTolls   decimal.Decimal `json:"cost_tolls"`
	CostFood    decimal.Decimal `json:"cost_food"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
}

type CheckDetails struct {
	Bank    string     `json:"bank"`
	Number  string     `json:"number"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

type PayRotativoRequest struct {
	ClientID string          `json:"client_id"`
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method"`
	Check    *CheckDetails   `json:"check,omitempty"`
}

type PayRotativoResponse struct {
	Client Client `json:"client"`
	Check  *Check `json:"check,omitempty"`
}
