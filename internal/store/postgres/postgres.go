package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"pescapos/backend/internal/domain"
	"pescapos/backend/internal/store"
	"pescapos/backend/internal/xid"
)

// Store persists every collection in postgres. Multi-entity settlement
// operations run in a single serializable transaction so their effects
// commit together or not at all, matching the memory store's one-lock
// semantics.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, so single-statement helpers
// can run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Clients ---

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tax_id, credit_limit, current_debt, active
		FROM clients
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &c.CreditLimit, &c.CurrentDebt, &c.Active); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Store) GetClientByID(ctx context.Context, id string) (*domain.Client, error) {
	return getClient(ctx, s.db, id)
}

func getClient(ctx context.Context, q dbtx, id string) (*domain.Client, error) {
	var c domain.Client
	err := q.QueryRowContext(ctx, `
		SELECT id, name, tax_id, credit_limit, current_debt, active
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.TaxID, &c.CreditLimit, &c.CurrentDebt, &c.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) SaveClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if client.ID == "" || client.Name == "" {
		return nil, store.ErrInvalid
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, tax_id, credit_limit, current_debt, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET name = $2, tax_id = $3, credit_limit = $4, current_debt = $5, active = $6
	`, client.ID, client.Name, client.TaxID, client.CreditLimit, client.CurrentDebt, client.Active)
	if err != nil {
		return nil, err
	}

	saved := client
	return &saved, nil
}

func (s *Store) UpdateClientDebt(ctx context.Context, clientID string, delta decimal.Decimal) error {
	return updateClientDebt(ctx, s.db, clientID, delta)
}

// updateClientDebt is the only mutation path for current_debt. A missing
// client is a silent no-op: the debt ledger never fails a settlement over a
// deleted client record.
func updateClientDebt(ctx context.Context, q dbtx, clientID string, delta decimal.Decimal) error {
	_, err := q.ExecContext(ctx, `
		UPDATE clients SET current_debt = current_debt + $2 WHERE id = $1
	`, clientID, delta)
	return err
}

// --- Products ---

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, unit, current_stock, average_cost, sell_price
		FROM products
		ORDER BY description
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Description, &p.Unit, &p.CurrentStock, &p.AverageCost, &p.SellPrice); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, description, unit, current_stock, average_cost, sell_price
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Description, &p.Unit, &p.CurrentStock, &p.AverageCost, &p.SellPrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Description == "" {
		return nil, store.ErrInvalid
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, description, unit, current_stock, average_cost, sell_price)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET description = $2, unit = $3, current_stock = $4, average_cost = $5, sell_price = $6
	`, product.ID, product.Description, product.Unit, product.CurrentStock, product.AverageCost, product.SellPrice)
	if err != nil {
		return nil, err
	}

	saved := product
	return &saved, nil
}

// --- Suppliers ---

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact FROM suppliers ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Contact); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) SaveSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" || supplier.Name == "" {
		return nil, store.ErrInvalid
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name = $2, contact = $3
	`, supplier.ID, supplier.Name, supplier.Contact)
	if err != nil {
		return nil, err
	}

	saved := supplier
	return &saved, nil
}

// --- Inventory ledger ---

func (s *Store) ListStockEntries(ctx context.Context) ([]domain.StockEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, supplier_id, date, quantity,
		       cost_product, cost_freight, cost_tolls, cost_food, final_unit_cost, due_date
		FROM stock_entries
		ORDER BY date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0, 64)
	for rows.Next() {
		var e domain.StockEntry
		var due sql.NullTime
		if err := rows.Scan(&e.ID, &e.ProductID, &e.SupplierID, &e.Date, &e.Quantity,
			&e.CostProduct, &e.CostFreight, &e.CostTolls, &e.CostFood, &e.FinalUnitCost, &due); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		if due.Valid {
			d := due.Time.UTC()
			e.DueDate = &d
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddStockEntry appends the entry and folds it into the product's stock and
// weighted-average cost in one serializable transaction. The product row is
// locked before anything is written, so a bad product id leaves no dangling
// entry behind.
func (s *Store) AddStockEntry(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	if entry.ID == "" || entry.ProductID == "" || entry.Quantity.Sign() <= 0 {
		return nil, store.ErrInvalid
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var stock, avg decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT current_stock, average_cost FROM products WHERE id = $1 FOR UPDATE
	`, entry.ProductID).Scan(&stock, &avg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_entries (
			id, product_id, supplier_id, date, quantity,
			cost_product, cost_freight, cost_tolls, cost_food, final_unit_cost, due_date
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, entry.ID, entry.ProductID, entry.SupplierID, entry.Date, entry.Quantity,
		entry.CostProduct, entry.CostFreight, entry.CostTolls, entry.CostFood, entry.FinalUnitCost, entry.DueDate)
	if err != nil {
		return nil, err
	}

	newAvg := domain.WeightedAverageCost(stock, avg, entry.Quantity, entry.FinalUnitCost)
	_, err = tx.ExecContext(ctx, `
		UPDATE products SET average_cost = $2, current_stock = current_stock + $3 WHERE id = $1
	`, entry.ProductID, newAvg, entry.Quantity)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := entry
	return &created, nil
}

// --- Sales ---

const saleColumns = `id, client_id, client_name, date, due_date, total, payment_method, status, items`

func scanSale(scan func(dest ...any) error) (domain.Sale, error) {
	var sale domain.Sale
	var due sql.NullTime
	var items []byte
	err := scan(&sale.ID, &sale.ClientID, &sale.ClientName, &sale.Date, &due,
		&sale.Total, &sale.PaymentMethod, &sale.Status, &items)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Date = sale.Date.UTC()
	if due.Valid {
		d := due.Time.UTC()
		sale.DueDate = &d
	}
	if err := json.Unmarshal(items, &sale.Items); err != nil {
		return domain.Sale{}, fmt.Errorf("sale %s items: %w", sale.ID, err)
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+` FROM sales ORDER BY date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		sale, err := scanSale(rows.Scan)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE id = $1
	`, id)
	sale, err := scanSale(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalid
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := createSaleTx(ctx, tx, sale); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

// createSaleTx inserts the sale, reduces stock per line item and applies the
// payment-method side effect. Also the entry point for the synthetic
// bounced-check sale, so debt reinstatement shares the normal path.
func createSaleTx(ctx context.Context, tx dbtx, sale domain.Sale) error {
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, client_id, client_name, date, due_date, total, payment_method, status, items)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sale.ID, sale.ClientID, sale.ClientName, sale.Date, sale.DueDate,
		sale.Total, sale.PaymentMethod, sale.Status, items)
	if err != nil {
		return err
	}

	for _, item := range sale.Items {
		if item.ProductID == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET current_stock = current_stock - $2 WHERE id = $1
		`, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
	}

	switch sale.PaymentMethod {
	case domain.PaymentRotativo:
		return updateClientDebt(ctx, tx, sale.ClientID, sale.Total)
	case domain.PaymentDinheiro, domain.PaymentPix:
		return insertMovement(ctx, tx, domain.Movement{
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
	return nil
}

func (s *Store) CancelSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE
	`, saleID)
	sale, err := scanSale(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
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
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET current_stock = current_stock + $2 WHERE id = $1
		`, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	switch sale.PaymentMethod {
	case domain.PaymentRotativo:
		if err := updateClientDebt(ctx, tx, sale.ClientID, sale.Total.Neg()); err != nil {
			return nil, err
		}
	case domain.PaymentDinheiro, domain.PaymentPix:
		err := insertMovement(ctx, tx, domain.Movement{
			Date:          now,
			Type:          domain.MovementSaida,
			Amount:        sale.Total,
			Category:      domain.CategoryEstornoCancelamento,
			Description:   fmt.Sprintf("Estorno Venda #%s", sale.ID),
			PaymentMethod: sale.PaymentMethod,
		})
		if err != nil {
			return nil, err
		}
	case domain.PaymentCheque:
		var checkID, checkNumber, checkStatus string
		var checkAmount decimal.Decimal
		err := tx.QueryRowContext(ctx, `
			SELECT id, number, status, amount FROM checks WHERE origin_sale_id = $1 FOR UPDATE
		`, sale.ID).Scan(&checkID, &checkNumber, &checkStatus, &checkAmount)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			if checkStatus == domain.CheckCompensado {
				// The check already cleared: its cash entry must be
				// reversed before the check is written off.
				err := insertMovement(ctx, tx, domain.Movement{
					Date:          now,
					Type:          domain.MovementSaida,
					Amount:        checkAmount,
					Category:      domain.CategoryEstornoCheque,
					Description:   fmt.Sprintf("Estorno Cheque #%s (venda cancelada)", checkNumber),
					PaymentMethod: domain.PaymentCheque,
				})
				if err != nil {
					return nil, err
				}
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE checks SET status = $2, updated_at = $3 WHERE id = $1
			`, checkID, domain.CheckCancelado, now)
			if err != nil {
				return nil, err
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales SET status = $2 WHERE id = $1
	`, sale.ID, domain.SaleCancelada)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	sale.Status = domain.SaleCancelada
	return &sale, nil
}

// --- Checks ---

const checkColumns = `id, client_id, client_name, origin_sale_id, bank, number, amount, due_date, status, updated_at`

func scanCheck(scan func(dest ...any) error) (domain.Check, error) {
	var c domain.Check
	err := scan(&c.ID, &c.ClientID, &c.ClientName, &c.OriginSaleID, &c.Bank, &c.Number,
		&c.Amount, &c.DueDate, &c.Status, &c.UpdatedAt)
	if err != nil {
		return domain.Check{}, err
	}
	c.DueDate = c.DueDate.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (s *Store) ListChecks(ctx context.Context) ([]domain.Check, error) {
	// Custody checks first, then ascending due date.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+checkColumns+` FROM checks
		ORDER BY (status = 'CUSTODIA') DESC, due_date ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checks := make([]domain.Check, 0, 32)
	for rows.Next() {
		check, err := scanCheck(rows.Scan)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

func (s *Store) GetCheckByID(ctx context.Context, id string) (*domain.Check, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+checkColumns+` FROM checks WHERE id = $1
	`, id)
	check, err := scanCheck(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &check, nil
}

func insertCheck(ctx context.Context, q dbtx, check domain.Check) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO checks (id, client_id, client_name, origin_sale_id, bank, number, amount, due_date, status, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, check.ID, check.ClientID, check.ClientName, check.OriginSaleID, check.Bank, check.Number,
		check.Amount, check.DueDate, check.Status, check.UpdatedAt)
	return err
}

// SaveCheck inserts a new check or applies a status transition. Transitions
// carry the ledger side effects: compensation books the cash entry (dated at
// the check's updated_at, so clearing can be back-dated), a bounce reverses
// a previously booked entry and reinstates the client's debt through a
// synthetic ROTATIVO sale.
func (s *Store) SaveCheck(ctx context.Context, check domain.Check) (*domain.Check, error) {
	if check.ID == "" || check.Amount.Sign() < 0 {
		return nil, store.ErrInvalid
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var oldStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM checks WHERE id = $1 FOR UPDATE
	`, check.ID).Scan(&oldStatus)
	if errors.Is(err, sql.ErrNoRows) {
		if err := insertCheck(ctx, tx, check); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		saved := check
		return &saved, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if oldStatus != domain.CheckCompensado && check.Status == domain.CheckCompensado {
		date := check.UpdatedAt
		if date.IsZero() {
			date = now
		}
		err := insertMovement(ctx, tx, domain.Movement{
			Date:          date,
			Type:          domain.MovementEntrada,
			Amount:        check.Amount,
			Category:      domain.CategoryCompensacaoCheque,
			Description:   fmt.Sprintf("Cheque #%s - %s", check.Number, check.ClientName),
			PaymentMethod: domain.PaymentCheque,
		})
		if err != nil {
			return nil, err
		}
	}

	if check.Status == domain.CheckDevolvido && oldStatus != domain.CheckDevolvido {
		if oldStatus == domain.CheckCompensado {
			err := insertMovement(ctx, tx, domain.Movement{
				Date:          now,
				Type:          domain.MovementSaida,
				Amount:        check.Amount,
				Category:      domain.CategoryEstornoCheque,
				Description:   fmt.Sprintf("Devolução Cheque #%s", check.Number),
				PaymentMethod: domain.PaymentCheque,
			})
			if err != nil {
				return nil, err
			}
		}
		if err := createSaleTx(ctx, tx, domain.BouncedCheckSale(xid.New("sale"), check, now)); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE checks
		SET client_id = $2, client_name = $3, origin_sale_id = $4, bank = $5, number = $6,
		    amount = $7, due_date = $8, status = $9, updated_at = $10
		WHERE id = $1
	`, check.ID, check.ClientID, check.ClientName, check.OriginSaleID, check.Bank, check.Number,
		check.Amount, check.DueDate, check.Status, check.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := check
	return &saved, nil
}

// --- Rotativo settlement ---

// PayRotativo settles client debt. The debt drops immediately for every
// method: a check received against the debt counts as settled while in
// custody, and a later bounce reinstates the obligation through the check
// lifecycle.
func (s *Store) PayRotativo(ctx context.Context, clientID string, amount decimal.Decimal, method string, check *domain.Check) error {
	if clientID == "" || amount.Sign() <= 0 {
		return store.ErrInvalid
	}
	if method == domain.PaymentCheque && check == nil {
		return store.ErrInvalid
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateClientDebt(ctx, tx, clientID, amount.Neg()); err != nil {
		return err
	}

	if method == domain.PaymentCheque {
		if err := insertCheck(ctx, tx, *check); err != nil {
			return err
		}
	} else {
		err := insertMovement(ctx, tx, domain.Movement{
			Date:          time.Now().UTC(),
			Type:          domain.MovementEntrada,
			Amount:        amount,
			Category:      domain.CategoryRecebimentoRotativo,
			Description:   fmt.Sprintf("Pagamento Fatura Cliente #%s", clientID),
			PaymentMethod: method,
		})
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// --- Cash journal ---

func (s *Store) ListMovements(ctx context.Context) ([]domain.Movement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, type, amount, category, description, payment_method
		FROM movements
		ORDER BY date ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.Movement, 0, 256)
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(&m.ID, &m.Date, &m.Type, &m.Amount, &m.Category, &m.Description, &m.PaymentMethod); err != nil {
			return nil, err
		}
		m.Date = m.Date.UTC()
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *Store) AddMovement(ctx context.Context, movement domain.Movement) (*domain.Movement, error) {
	if movement.Amount.Sign() < 0 {
		return nil, store.ErrInvalid
	}

	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.Date.IsZero() {
		movement.Date = time.Now().UTC()
	}
	if err := insertMovement(ctx, s.db, movement); err != nil {
		return nil, err
	}
	created := movement
	return &created, nil
}

func insertMovement(ctx context.Context, q dbtx, movement domain.Movement) error {
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.Date.IsZero() {
		movement.Date = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO movements (id, date, type, amount, category, description, payment_method)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, movement.ID, movement.Date, movement.Type, movement.Amount, movement.Category,
		movement.Description, movement.PaymentMethod)
	return err
}

// --- Expenses ---

func (s *Store) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, description, amount, competence_date, payment_date, status, category
		FROM expenses
		ORDER BY competence_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var e domain.Expense
		var paid sql.NullTime
		if err := rows.Scan(&e.ID, &e.SupplierID, &e.Description, &e.Amount, &e.CompetenceDate, &paid, &e.Status, &e.Category); err != nil {
			return nil, err
		}
		e.CompetenceDate = e.CompetenceDate.UTC()
		if paid.Valid {
			p := paid.Time.UTC()
			e.PaymentDate = &p
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// SaveExpense upserts the expense. Crossing into PAGO with a payment date
// books the cash exit once; re-saving an already paid expense does not book
// it again.
func (s *Store) SaveExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" || expense.Description == "" {
		return nil, store.ErrInvalid
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	wasPago := false
	var oldStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM expenses WHERE id = $1 FOR UPDATE
	`, expense.ID).Scan(&oldStatus)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		wasPago = oldStatus == domain.ExpensePago
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (id, supplier_id, description, amount, competence_date, payment_date, status, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE
		SET supplier_id = $2, description = $3, amount = $4, competence_date = $5,
		    payment_date = $6, status = $7, category = $8
	`, expense.ID, expense.SupplierID, expense.Description, expense.Amount,
		expense.CompetenceDate, expense.PaymentDate, expense.Status, expense.Category)
	if err != nil {
		return nil, err
	}

	if expense.Status == domain.ExpensePago && expense.PaymentDate != nil && !wasPago {
		err := insertMovement(ctx, tx, domain.Movement{
			Date:          *expense.PaymentDate,
			Type:          domain.MovementSaida,
			Amount:        expense.Amount,
			Category:      expense.Category,
			Description:   fmt.Sprintf("Pgto: %s", expense.Description),
			PaymentMethod: "DINHEIRO/PIX",
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := expense
	return &saved, nil
}

func (s *Store) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM expense_categories ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.ExpenseCategory, 0, 16)
	for rows.Next() {
		var c domain.ExpenseCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) SaveExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if category.ID == "" || category.Name == "" {
		return nil, store.ErrInvalid
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_categories (id, name)
		VALUES ($1,$2)
		ON CONFLICT (id) DO UPDATE SET name = $2
	`, category.ID, category.Name)
	if err != nil {
		return nil, err
	}

	saved := category
	return &saved, nil
}

// --- Backup ---

func (s *Store) ExportSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	snapshot := &domain.Snapshot{}
	var err error

	if snapshot.Clients, err = s.ListClients(ctx); err != nil {
		return nil, err
	}
	if snapshot.Products, err = s.ListProducts(ctx); err != nil {
		return nil, err
	}
	if snapshot.Suppliers, err = s.ListSuppliers(ctx); err != nil {
		return nil, err
	}
	if snapshot.Sales, err = s.ListSales(ctx); err != nil {
		return nil, err
	}
	if snapshot.Checks, err = s.ListChecks(ctx); err != nil {
		return nil, err
	}
	if snapshot.Expenses, err = s.ListExpenses(ctx); err != nil {
		return nil, err
	}
	if snapshot.Movements, err = s.ListMovements(ctx); err != nil {
		return nil, err
	}
	if snapshot.StockEntries, err = s.ListStockEntries(ctx); err != nil {
		return nil, err
	}
	if snapshot.ExpenseCategories, err = s.ListExpenseCategories(ctx); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ImportSnapshot replaces each collection present in the payload wholesale,
// all in one transaction. Absent (nil) collections keep their current rows.
func (s *Store) ImportSnapshot(ctx context.Context, snapshot domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if snapshot.Clients != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM clients`); err != nil {
			return err
		}
		for _, c := range snapshot.Clients {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO clients (id, name, tax_id, credit_limit, current_debt, active)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, c.ID, c.Name, c.TaxID, c.CreditLimit, c.CurrentDebt, c.Active)
			if err != nil {
				return err
			}
		}
	}

	if snapshot.Products != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
			return err
		}
		for _, p := range snapshot.Products {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO products (id, description, unit, current_stock, average_cost, sell_price)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, p.ID, p.Description, p.Unit, p.CurrentStock, p.AverageCost, p.SellPrice)
			if err != nil {
				return err
			}
		}
	}

	if snapshot.Suppliers != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM suppliers`); err != nil {
			return err
		}
		for _, sup := range snapshot.Suppliers {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO suppliers (id, name, contact) VALUES ($1,$2,$3)
			`, sup.ID, sup.Name, sup.Contact)
			if err != nil {
				return err
			}
		}
	}

	if snapshot.Sales != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sales`); err != nil {
			return err
		}
		for _, sale := range snapshot.Sales {
			items, err := json.Marshal(sale.Items)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO sales (id, client_id, client_name, date, due_date, total, payment_method, status, items)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, sale.ID, sale.ClientID, sale.ClientName, sale.Date, sale.DueDate,
				sale.Total, sale.PaymentMethod, sale.Status, items)
			if err != nil {
				return err
			}
		}
	}

	if snapshot.Checks != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM checks`); err != nil {
			return err
		}
		for _, c := range snapshot.Checks {
			if err := insertCheck(ctx, tx, c); err != nil {
				return err
			}
		}
	}

	if snapshot.Expenses != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
			return err
		}
		for _, e := range snapshot.Expenses {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO expenses (id, supplier_id, description, amount, competence_date, payment_date, status, category)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`, e.ID, e.SupplierID, e.Description, e.Amount, e.CompetenceDate, e.PaymentDate, e.Status, e.Category)
			if err != nil {
				return err
			}
		}
	}

	if snapshot.Movements != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM movements`); err != nil {
			return err
		}
		for _, m := range snapshot.Movements {
			if err := insertMovement(ctx, tx, m); err != nil {
				return err
			}
		}
	}

	if snapshot.StockEntries != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM stock_entries`); err != nil {
			return err
		}
		for _, e := range snapshot.StockEntries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO stock_entries (
					id, product_id, supplier_id, date, quantity,
					cost_product, cost_freight, cost_tolls, cost_food, final_unit_cost, due_date
				)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			`, e.ID, e.ProductID, e.SupplierID, e.Date, e.Quantity,
				e.CostProduct, e.CostFreight, e.CostTolls, e.CostFood, e.FinalUnitCost, e.DueDate)
			if err != nil {
				return err
			}
		}
	}

	if snapshot.ExpenseCategories != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM expense_categories`); err != nil {
			return err
		}
		for _, c := range snapshot.ExpenseCategories {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO expense_categories (id, name) VALUES ($1,$2)
			`, c.ID, c.Name)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
