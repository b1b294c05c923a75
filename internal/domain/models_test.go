package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestWeightedAverageCost(t *testing.T) {
	cases := []struct {
		name     string
		stock    string
		avg      string
		qty      string
		cost     string
		expected string
	}{
		{"blend", "10", "5.00", "10", "7.00", "6"},
		{"first entry on empty stock", "0", "0", "50", "12.30", "12.3"},
		{"negative stock resets basis", "-5", "4.00", "3", "9.00", "9"},
		{"uneven quantities", "30", "10", "10", "14", "11"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := WeightedAverageCost(dec(t, tc.stock), dec(t, tc.avg), dec(t, tc.qty), dec(t, tc.cost))
			if !got.Equal(dec(t, tc.expected)) {
				t.Fatalf("got %s, want %s", got, tc.expected)
			}
		})
	}
}

func TestWeightedAverageCostIsExact(t *testing.T) {
	// 0.1 + 0.2 style inputs must not drift.
	got := WeightedAverageCost(dec(t, "0.1"), dec(t, "0.1"), dec(t, "0.2"), dec(t, "0.2"))
	want := dec(t, "0.1").Mul(dec(t, "0.1")).Add(dec(t, "0.2").Mul(dec(t, "0.2"))).Div(dec(t, "0.3"))
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestFinalUnitCost(t *testing.T) {
	got := FinalUnitCost(dec(t, "100"), dec(t, "10"), dec(t, "150"), dec(t, "30"), dec(t, "20"))
	if !got.Equal(dec(t, "12")) {
		t.Fatalf("got %s, want 12", got)
	}

	if !FinalUnitCost(dec(t, "0"), dec(t, "10"), dec(t, "1"), dec(t, "1"), dec(t, "1")).IsZero() {
		t.Fatalf("zero quantity must yield zero cost")
	}
}

func TestBouncedCheckSale(t *testing.T) {
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	check := Check{
		ID:         "chk-1",
		ClientID:   "cli-1",
		ClientName: "Maria",
		Bank:       "Itaú",
		Number:     "0042",
		Amount:     dec(t, "300"),
	}

	sale := BouncedCheckSale("sale-x", check, at)
	if sale.PaymentMethod != PaymentRotativo {
		t.Fatalf("synthetic sale must be ROTATIVO, got %s", sale.PaymentMethod)
	}
	if sale.Status != SaleChequeDevolvido {
		t.Fatalf("expected CHEQUE_DEVOLVIDO, got %s", sale.Status)
	}
	if !sale.Total.Equal(check.Amount) {
		t.Fatalf("total %s, want %s", sale.Total, check.Amount)
	}
	if len(sale.Items) != 1 || sale.Items[0].ProductID != "" {
		t.Fatalf("synthetic sale must carry one non-product line, got %+v", sale.Items)
	}
	if !strings.Contains(sale.Items[0].ProductName, "0042") || !strings.Contains(sale.Items[0].ProductName, "Itaú") {
		t.Fatalf("line must name the check, got %q", sale.Items[0].ProductName)
	}
}
