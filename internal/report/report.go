package report

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pescapos/backend/internal/cache"
	"pescapos/backend/internal/domain"
	"pescapos/backend/internal/store"
)

const cacheTTL = 5 * time.Minute

// Engine derives read-only reports from the store. Results are cached per
// report and period; cache failures are logged and the report is computed
// from source.
type Engine struct {
	repo  store.Repository
	cache cache.ReportCache
}

func NewEngine(repo store.Repository, c cache.ReportCache) *Engine {
	if c == nil {
		c = cache.NoopReportCache{}
	}
	return &Engine{repo: repo, cache: c}
}

// DRE is the accrual result statement for one month: revenue from settled
// sales, cost of goods from the costs snapshotted at sale time, expenses by
// competence date.
type DRE struct {
	Month        string          `json:"month"`
	Revenue      decimal.Decimal `json:"revenue"`
	CostOfGoods  decimal.Decimal `json:"cost_of_goods"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	Expenses     decimal.Decimal `json:"expenses"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	SalesCounted int             `json:"sales_counted"`
}

type DailyFlow struct {
	Day     string          `json:"day"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
}

type CashFlow struct {
	Month   string          `json:"month"`
	Days    []DailyFlow     `json:"days"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
}

type Debtor struct {
	ClientID     string          `json:"client_id"`
	ClientName   string          `json:"client_name"`
	CurrentDebt  decimal.Decimal `json:"current_debt"`
	CreditLimit  decimal.Decimal `json:"credit_limit"`
	OpenSales    int             `json:"open_sales"`
	LastPurchase *time.Time      `json:"last_purchase,omitempty"`
}

type Dashboard struct {
	Date            string          `json:"date"`
	SalesToday      int             `json:"sales_today"`
	SalesTodayTotal decimal.Decimal `json:"sales_today_total"`
	CashBalance     decimal.Decimal `json:"cash_balance"`
	Receivables     decimal.Decimal `json:"receivables"`
	ChecksInCustody decimal.Decimal `json:"checks_in_custody"`
	StockValue      decimal.Decimal `json:"stock_value"`
}

// ParseMonth validates a YYYY-MM period and returns its bounds.
func ParseMonth(month string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: month must be YYYY-MM", store.ErrInvalid)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// MonthlyDRE computes the accrual result for one YYYY-MM month. Cancelled
// sales and the synthetic bounced-check records are not revenue; expenses
// count by competence date regardless of payment status.
func (e *Engine) MonthlyDRE(ctx context.Context, month string) (*DRE, error) {
	start, end, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}

	key := "report:dre:" + month
	var cached DRE
	if hit := e.cacheGet(ctx, key, &cached); hit {
		return &cached, nil
	}

	sales, err := e.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	expenses, err := e.repo.ListExpenses(ctx)
	if err != nil {
		return nil, err
	}

	out := DRE{
		Month:       month,
		Revenue:     decimal.Zero,
		CostOfGoods: decimal.Zero,
		Expenses:    decimal.Zero,
	}
	for _, sale := range sales {
		if sale.Status != domain.SaleConcluida {
			continue
		}
		if sale.Date.Before(start) || !sale.Date.Before(end) {
			continue
		}
		out.Revenue = out.Revenue.Add(sale.Total)
		for _, item := range sale.Items {
			out.CostOfGoods = out.CostOfGoods.Add(item.Quantity.Mul(item.AppliedCost))
		}
		out.SalesCounted++
	}
	for _, exp := range expenses {
		if exp.CompetenceDate.Before(start) || !exp.CompetenceDate.Before(end) {
			continue
		}
		out.Expenses = out.Expenses.Add(exp.Amount)
	}
	out.GrossProfit = out.Revenue.Sub(out.CostOfGoods)
	out.NetProfit = out.GrossProfit.Sub(out.Expenses)

	e.cacheSet(ctx, key, out)
	return &out, nil
}

// MonthlyCashFlow groups the confirmed cash journal by day for one month.
func (e *Engine) MonthlyCashFlow(ctx context.Context, month string) (*CashFlow, error) {
	start, end, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}

	key := "report:cashflow:" + month
	var cached CashFlow
	if hit := e.cacheGet(ctx, key, &cached); hit {
		return &cached, nil
	}

	movements, err := e.repo.ListMovements(ctx)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*DailyFlow)
	out := CashFlow{
		Month:   month,
		Inflow:  decimal.Zero,
		Outflow: decimal.Zero,
	}
	for _, m := range movements {
		if m.Date.Before(start) || !m.Date.Before(end) {
			continue
		}
		day := m.Date.UTC().Format("2006-01-02")
		flow, ok := byDay[day]
		if !ok {
			flow = &DailyFlow{Day: day, Inflow: decimal.Zero, Outflow: decimal.Zero}
			byDay[day] = flow
		}
		switch m.Type {
		case domain.MovementEntrada:
			flow.Inflow = flow.Inflow.Add(m.Amount)
			out.Inflow = out.Inflow.Add(m.Amount)
		case domain.MovementSaida:
			flow.Outflow = flow.Outflow.Add(m.Amount)
			out.Outflow = out.Outflow.Add(m.Amount)
		}
	}

	out.Days = make([]DailyFlow, 0, len(byDay))
	for _, flow := range byDay {
		flow.Net = flow.Inflow.Sub(flow.Outflow)
		out.Days = append(out.Days, *flow)
	}
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Day < out.Days[j].Day })
	out.Net = out.Inflow.Sub(out.Outflow)

	e.cacheSet(ctx, key, out)
	return &out, nil
}

// CashBalance is the signed sum of the whole journal.
func (e *Engine) CashBalance(ctx context.Context) (decimal.Decimal, error) {
	movements, err := e.repo.ListMovements(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return sumMovements(movements), nil
}

// Debtors lists clients carrying rotativo debt, biggest first.
func (e *Engine) Debtors(ctx context.Context) ([]Debtor, error) {
	clients, err := e.repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := e.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	openSales := make(map[string]int)
	lastPurchase := make(map[string]time.Time)
	for _, sale := range sales {
		if sale.ClientID == "" || sale.Status == domain.SaleCancelada {
			continue
		}
		if sale.PaymentMethod == domain.PaymentRotativo {
			openSales[sale.ClientID]++
		}
		if sale.Date.After(lastPurchase[sale.ClientID]) {
			lastPurchase[sale.ClientID] = sale.Date
		}
	}

	debtors := make([]Debtor, 0, 16)
	for _, client := range clients {
		if client.CurrentDebt.Sign() <= 0 {
			continue
		}
		d := Debtor{
			ClientID:    client.ID,
			ClientName:  client.Name,
			CurrentDebt: client.CurrentDebt,
			CreditLimit: client.CreditLimit,
			OpenSales:   openSales[client.ID],
		}
		if last, ok := lastPurchase[client.ID]; ok {
			d.LastPurchase = &last
		}
		debtors = append(debtors, d)
	}
	sort.Slice(debtors, func(i, j int) bool {
		return debtors[i].CurrentDebt.Cmp(debtors[j].CurrentDebt) > 0
	})
	return debtors, nil
}

// DashboardSummary aggregates the front-page numbers: today's sales, cash
// balance, receivables (rotativo debt plus custody checks) and stock value
// at average cost.
func (e *Engine) DashboardSummary(ctx context.Context, now time.Time) (*Dashboard, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	sales, err := e.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	movements, err := e.repo.ListMovements(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := e.repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	checks, err := e.repo.ListChecks(ctx)
	if err != nil {
		return nil, err
	}
	products, err := e.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	out := Dashboard{
		Date:            dayStart.Format("2006-01-02"),
		SalesTodayTotal: decimal.Zero,
		Receivables:     decimal.Zero,
		ChecksInCustody: decimal.Zero,
		StockValue:      decimal.Zero,
	}
	for _, sale := range sales {
		if sale.Status != domain.SaleConcluida {
			continue
		}
		if sale.Date.Before(dayStart) || !sale.Date.Before(dayEnd) {
			continue
		}
		out.SalesToday++
		out.SalesTodayTotal = out.SalesTodayTotal.Add(sale.Total)
	}
	out.CashBalance = sumMovements(movements)
	for _, client := range clients {
		if client.CurrentDebt.Sign() > 0 {
			out.Receivables = out.Receivables.Add(client.CurrentDebt)
		}
	}
	for _, check := range checks {
		if check.Status == domain.CheckCustodia {
			out.ChecksInCustody = out.ChecksInCustody.Add(check.Amount)
		}
	}
	for _, product := range products {
		if product.CurrentStock.Sign() > 0 {
			out.StockValue = out.StockValue.Add(product.CurrentStock.Mul(product.AverageCost))
		}
	}
	return &out, nil
}

func sumMovements(movements []domain.Movement) decimal.Decimal {
	balance := decimal.Zero
	for _, m := range movements {
		switch m.Type {
		case domain.MovementEntrada:
			balance = balance.Add(m.Amount)
		case domain.MovementSaida:
			balance = balance.Sub(m.Amount)
		}
	}
	return balance
}

func (e *Engine) cacheGet(ctx context.Context, key string, dest any) bool {
	hit, err := e.cache.Get(ctx, key, dest)
	if err != nil {
		log.Printf("[report] cache get %s: %v", key, err)
		return false
	}
	return hit
}

func (e *Engine) cacheSet(ctx context.Context, key string, value any) {
	if err := e.cache.Set(ctx, key, value, cacheTTL); err != nil {
		log.Printf("[report] cache set %s: %v", key, err)
	}
}
