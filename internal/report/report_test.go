package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pescapos/backend/internal/domain"
	"pescapos/backend/internal/store"
	"pescapos/backend/internal/store/memory"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func seededEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()

	august := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		{
			ID: "sale-1", ClientName: "CONSUMIDOR", Date: august,
			Total: dec(t, "100"), PaymentMethod: domain.PaymentDinheiro, Status: domain.SaleConcluida,
			Items: []domain.SaleItem{{ProductName: "Tilápia", Quantity: dec(t, "5"), UnitPrice: dec(t, "20"), AppliedCost: dec(t, "12"), Total: dec(t, "100")}},
		},
		{
			ID: "sale-2", ClientID: "cli-1", ClientName: "Maria", Date: august.AddDate(0, 0, 1),
			Total: dec(t, "80"), PaymentMethod: domain.PaymentRotativo, Status: domain.SaleConcluida,
			Items: []domain.SaleItem{{ProductName: "Camarão", Quantity: dec(t, "2"), UnitPrice: dec(t, "40"), AppliedCost: dec(t, "25"), Total: dec(t, "80")}},
		},
		{
			ID: "sale-3", ClientName: "CONSUMIDOR", Date: august.AddDate(0, 0, 2),
			Total: dec(t, "999"), PaymentMethod: domain.PaymentDinheiro, Status: domain.SaleCancelada,
			Items: []domain.SaleItem{{ProductName: "Polvo", Quantity: dec(t, "1"), UnitPrice: dec(t, "999"), AppliedCost: dec(t, "500"), Total: dec(t, "999")}},
		},
		{
			ID: "sale-4", ClientName: "CONSUMIDOR", Date: time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC),
			Total: dec(t, "55"), PaymentMethod: domain.PaymentPix, Status: domain.SaleConcluida,
			Items: []domain.SaleItem{{ProductName: "Merluza", Quantity: dec(t, "1"), UnitPrice: dec(t, "55"), AppliedCost: dec(t, "30"), Total: dec(t, "55")}},
		},
	}
	snapshot := domain.Snapshot{
		Clients: []domain.Client{
			{ID: "cli-1", Name: "Maria", CreditLimit: dec(t, "1000"), CurrentDebt: dec(t, "80"), Active: true},
			{ID: "cli-2", Name: "João", CreditLimit: dec(t, "500"), CurrentDebt: dec(t, "0"), Active: true},
		},
		Sales: sales,
		Movements: []domain.Movement{
			{ID: "mov-1", Date: august, Type: domain.MovementEntrada, Amount: dec(t, "100"), Category: domain.CategoryVendaAVista},
			{ID: "mov-2", Date: august.Add(2 * time.Hour), Type: domain.MovementSaida, Amount: dec(t, "30"), Category: "Água/Luz"},
			{ID: "mov-3", Date: august.AddDate(0, 0, 1), Type: domain.MovementEntrada, Amount: dec(t, "50"), Category: domain.CategoryRecebimentoRotativo},
		},
		Expenses: []domain.Expense{
			{ID: "exp-1", Description: "Luz", Amount: dec(t, "30"), CompetenceDate: august, Status: domain.ExpensePago},
			{ID: "exp-2", Description: "Aluguel", Amount: dec(t, "200"), CompetenceDate: august, Status: domain.ExpenseAberto},
			{ID: "exp-3", Description: "Julho", Amount: dec(t, "999"), CompetenceDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), Status: domain.ExpensePago},
		},
		Checks: []domain.Check{
			{ID: "chk-1", ClientID: "cli-1", ClientName: "Maria", Amount: dec(t, "120"), DueDate: august, Status: domain.CheckCustodia, UpdatedAt: august},
			{ID: "chk-2", ClientID: "cli-1", ClientName: "Maria", Amount: dec(t, "60"), DueDate: august, Status: domain.CheckCompensado, UpdatedAt: august},
		},
		Products: []domain.Product{
			{ID: "prod-1", Description: "Tilápia", Unit: "KG", CurrentStock: dec(t, "10"), AverageCost: dec(t, "12"), SellPrice: dec(t, "20")},
			{ID: "prod-2", Description: "Camarão", Unit: "KG", CurrentStock: dec(t, "-2"), AverageCost: dec(t, "25"), SellPrice: dec(t, "40")},
		},
	}
	if err := repo.ImportSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewEngine(repo, nil), repo
}

func TestMonthlyDRE(t *testing.T) {
	engine, _ := seededEngine(t)

	dre, err := engine.MonthlyDRE(context.Background(), "2026-08")
	if err != nil {
		t.Fatalf("dre: %v", err)
	}

	// sale-1 (100) + sale-2 (80); cancelled sale-3 and July's sale-4 excluded.
	if !dre.Revenue.Equal(dec(t, "180")) {
		t.Fatalf("revenue %s, want 180", dre.Revenue)
	}
	// CMV from snapshotted costs: 5*12 + 2*25 = 110.
	if !dre.CostOfGoods.Equal(dec(t, "110")) {
		t.Fatalf("cmv %s, want 110", dre.CostOfGoods)
	}
	// Expenses by competence regardless of payment: 30 + 200.
	if !dre.Expenses.Equal(dec(t, "230")) {
		t.Fatalf("expenses %s, want 230", dre.Expenses)
	}
	if !dre.NetProfit.Equal(dec(t, "-160")) {
		t.Fatalf("net %s, want -160", dre.NetProfit)
	}
	if dre.SalesCounted != 2 {
		t.Fatalf("sales counted %d, want 2", dre.SalesCounted)
	}
}

func TestMonthlyDRERejectsBadMonth(t *testing.T) {
	engine, _ := seededEngine(t)

	if _, err := engine.MonthlyDRE(context.Background(), "agosto"); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestMonthlyCashFlow(t *testing.T) {
	engine, _ := seededEngine(t)

	flow, err := engine.MonthlyCashFlow(context.Background(), "2026-08")
	if err != nil {
		t.Fatalf("cash flow: %v", err)
	}
	if len(flow.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(flow.Days))
	}
	if flow.Days[0].Day != "2026-08-05" || flow.Days[1].Day != "2026-08-06" {
		t.Fatalf("days out of order: %+v", flow.Days)
	}
	if !flow.Days[0].Net.Equal(dec(t, "70")) {
		t.Fatalf("day 1 net %s, want 70", flow.Days[0].Net)
	}
	if !flow.Net.Equal(dec(t, "120")) {
		t.Fatalf("month net %s, want 120", flow.Net)
	}
}

func TestCashBalance(t *testing.T) {
	engine, _ := seededEngine(t)

	balance, err := engine.CashBalance(context.Background())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(dec(t, "120")) {
		t.Fatalf("balance %s, want 120", balance)
	}
}

func TestDebtors(t *testing.T) {
	engine, _ := seededEngine(t)

	debtors, err := engine.Debtors(context.Background())
	if err != nil {
		t.Fatalf("debtors: %v", err)
	}
	if len(debtors) != 1 {
		t.Fatalf("expected 1 debtor, got %d", len(debtors))
	}
	if debtors[0].ClientID != "cli-1" || debtors[0].OpenSales != 1 {
		t.Fatalf("unexpected debtor %+v", debtors[0])
	}
	if debtors[0].LastPurchase == nil {
		t.Fatalf("expected last purchase date")
	}
}

func TestDashboardSummary(t *testing.T) {
	engine, _ := seededEngine(t)

	now := time.Date(2026, 8, 5, 18, 0, 0, 0, time.UTC)
	summary, err := engine.DashboardSummary(context.Background(), now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if summary.SalesToday != 1 || !summary.SalesTodayTotal.Equal(dec(t, "100")) {
		t.Fatalf("today: %d sales / %s", summary.SalesToday, summary.SalesTodayTotal)
	}
	if !summary.CashBalance.Equal(dec(t, "120")) {
		t.Fatalf("cash balance %s, want 120", summary.CashBalance)
	}
	if !summary.Receivables.Equal(dec(t, "80")) {
		t.Fatalf("receivables %s, want 80", summary.Receivables)
	}
	if !summary.ChecksInCustody.Equal(dec(t, "120")) {
		t.Fatalf("custody %s, want 120", summary.ChecksInCustody)
	}
	// Negative stock does not count toward stock value: 10*12 = 120.
	if !summary.StockValue.Equal(dec(t, "120")) {
		t.Fatalf("stock value %s, want 120", summary.StockValue)
	}
}
