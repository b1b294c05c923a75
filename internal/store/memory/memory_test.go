package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pescapos/backend/internal/domain"
	"pescapos/backend/internal/store"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestListChecksOrdersCustodyFirst(t *testing.T) {
	s := New()
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2026, 9, d, 0, 0, 0, 0, time.UTC) }
	checks := []domain.Check{
		{ID: "chk-a", Amount: dec(t, "10"), DueDate: day(20), Status: domain.CheckCompensado, UpdatedAt: day(1)},
		{ID: "chk-b", Amount: dec(t, "10"), DueDate: day(15), Status: domain.CheckCustodia, UpdatedAt: day(1)},
		{ID: "chk-c", Amount: dec(t, "10"), DueDate: day(5), Status: domain.CheckDevolvido, UpdatedAt: day(1)},
		{ID: "chk-d", Amount: dec(t, "10"), DueDate: day(2), Status: domain.CheckCustodia, UpdatedAt: day(1)},
	}
	for _, c := range checks {
		if _, err := s.SaveCheck(ctx, c); err != nil {
			t.Fatalf("save %s: %v", c.ID, err)
		}
	}

	listed, err := s.ListChecks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]string, 0, len(listed))
	for _, c := range listed {
		got = append(got, c.ID)
	}
	want := []string{"chk-d", "chk-b", "chk-c", "chk-a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}

func TestAddMovementAssignsDefaults(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.AddMovement(ctx, domain.Movement{
		Type: domain.MovementEntrada, Amount: dec(t, "10"), Category: "Ajuste",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.Date.IsZero() {
		t.Fatalf("expected default date")
	}
}

func TestUpdateClientDebtMissingClientIsNoop(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if err := s.UpdateClientDebt(ctx, "cli-missing", dec(t, "100")); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestCreateSaleSkipsUnknownProductLines(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	// A line pointing at a removed product still records, only stock is skipped.
	_, err := s.CreateSale(ctx, domain.Sale{
		ID: "sale-1", ClientName: "CONSUMIDOR", Date: time.Now().UTC(),
		Total: dec(t, "10"), PaymentMethod: domain.PaymentDinheiro, Status: domain.SaleConcluida,
		Items: []domain.SaleItem{
			{ProductID: "prod-gone", ProductName: "Antigo", Quantity: dec(t, "1"), UnitPrice: dec(t, "10"), Total: dec(t, "10")},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sale, err := s.GetSaleByID(ctx, "sale-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sale.Status != domain.SaleConcluida {
		t.Fatalf("unexpected status %s", sale.Status)
	}
}

func TestGetSaleReturnsCopy(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if _, err := s.CreateSale(ctx, domain.Sale{
		ID: "sale-1", ClientName: "CONSUMIDOR", Date: time.Now().UTC(),
		Total: dec(t, "10"), PaymentMethod: domain.PaymentDinheiro, Status: domain.SaleConcluida,
		Items: []domain.SaleItem{
			{ProductID: "prod-seed-1", ProductName: "Tilápia Inteira", Quantity: dec(t, "1"), UnitPrice: dec(t, "10"), Total: dec(t, "10")},
		},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sale, err := s.GetSaleByID(ctx, "sale-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	sale.Items[0].ProductName = "mutated"

	again, _ := s.GetSaleByID(ctx, "sale-1")
	if again.Items[0].ProductName != "Tilápia Inteira" {
		t.Fatalf("stored sale was mutated through the returned copy")
	}
}

func TestPayRotativoChequeRequiresCheck(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	before, err := s.GetClientByID(ctx, "cli-seed-2")
	if err != nil {
		t.Fatalf("get client: %v", err)
	}

	err = s.PayRotativo(ctx, "cli-seed-2", dec(t, "10"), domain.PaymentCheque, nil)
	if !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	// The rejection must leave no partial state behind.
	after, err := s.GetClientByID(ctx, "cli-seed-2")
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if !after.CurrentDebt.Equal(before.CurrentDebt) {
		t.Fatalf("rejected payment mutated debt: before %s, after %s", before.CurrentDebt, after.CurrentDebt)
	}
	movements, _ := s.ListMovements(ctx)
	if len(movements) != 0 {
		t.Fatalf("rejected payment touched the journal: %d movements", len(movements))
	}
	checks, _ := s.ListChecks(ctx)
	if len(checks) != 0 {
		t.Fatalf("rejected payment created a check")
	}
}

func TestImportSnapshotReplacesWholesale(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	err := s.ImportSnapshot(ctx, domain.Snapshot{
		Products: []domain.Product{
			{ID: "prod-x", Description: "Lula", Unit: "KG", CurrentStock: dec(t, "5"), AverageCost: dec(t, "20"), SellPrice: dec(t, "35")},
		},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	products, _ := s.ListProducts(ctx)
	if len(products) != 1 || products[0].ID != "prod-x" {
		t.Fatalf("expected wholesale replacement, got %+v", products)
	}
	clients, _ := s.ListClients(ctx)
	if len(clients) == 0 {
		t.Fatalf("absent collections must survive the import")
	}
}
