package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cosmetiquera/backend/internal/domain"
	"cosmetiquera/backend/internal/store"
	"cosmetiquera/backend/internal/xid"
)

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

// EnsureSchema creates the tables on first boot so a fresh database works
// without a separate migration step. Every statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			brand TEXT NOT NULL DEFAULT '',
			quantity INT NOT NULL DEFAULT 0,
			sale_price_cents BIGINT NOT NULL DEFAULT 0,
			cost_price_cents BIGINT NOT NULL DEFAULT 0,
			min_stock INT NOT NULL DEFAULT 5
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS app_users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			national_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'seller',
			active BOOLEAN NOT NULL DEFAULT true,
			password_hash TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS app_users_national_id_uq
			ON app_users (national_id) WHERE national_id <> ''`,
		`CREATE TABLE IF NOT EXISTS sales (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			total_cents BIGINT NOT NULL DEFAULT 0,
			seller_id BIGINT NOT NULL REFERENCES app_users(id),
			customer_id BIGINT NOT NULL REFERENCES customers(id),
			tender_label TEXT NOT NULL DEFAULT '',
			payment_blob TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS sales_created_at_idx ON sales (created_at)`,
		`CREATE TABLE IF NOT EXISTS sale_lines (
			id BIGSERIAL PRIMARY KEY,
			sale_id BIGINT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			product_id BIGINT NOT NULL REFERENCES products(id),
			qty INT NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			subtotal_cents BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sale_lines_sale_id_idx ON sale_lines (sale_id)`,
		`CREATE TABLE IF NOT EXISTS cash_closings (
			id BIGSERIAL PRIMARY KEY,
			business_day TEXT NOT NULL UNIQUE,
			total_cents BIGINT NOT NULL DEFAULT 0,
			cash_cents BIGINT NOT NULL DEFAULT 0,
			non_cash_cents BIGINT NOT NULL DEFAULT 0,
			snapshot TEXT NOT NULL DEFAULT '',
			closed_by TEXT NOT NULL DEFAULT '',
			closed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			actor_username TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`INSERT INTO customers (id, name)
			VALUES (1, 'Cliente Genérico')
			ON CONFLICT (id) DO NOTHING`,
		`SELECT setval(pg_get_serial_sequence('customers','id'),
			GREATEST((SELECT MAX(id) FROM customers), 1))`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Products ---

const productColumns = `id, code, name, description, brand, quantity, sale_price_cents, cost_price_cents, min_stock`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Brand, &p.Quantity, &p.SalePriceCents, &p.CostPriceCents, &p.MinStock)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, search string) ([]domain.Product, error) {
	pattern := "%" + strings.TrimSpace(search) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE $1 = '%%'
			OR name ILIKE $1 OR code ILIKE $1 OR description ILIKE $1 OR brand ILIKE $1
		ORDER BY name
	`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE code = $1
	`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product code %s: %w", code, store.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(p.Name) == "" || p.Quantity < 0 || p.SalePriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if p.MinStock <= 0 {
		p.MinStock = 5
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// A unique throwaway placeholder keeps two concurrent code-less creates
	// from colliding on the code column before the backfill below.
	insertCode := p.Code
	if insertCode == "" {
		insertCode = xid.New("pending")
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO products (code, name, description, brand, quantity, sale_price_cents, cost_price_cents, min_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, insertCode, p.Name, p.Description, p.Brand, p.Quantity, p.SalePriceCents, p.CostPriceCents, p.MinStock).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product code %s: %w", p.Code, store.ErrDuplicateKey)
		}
		return nil, err
	}

	// Products created without a code get one derived from the new id so
	// every item is scannable.
	if p.Code == "" {
		p.Code = fmt.Sprintf("%012d", p.ID)
		if _, err := tx.ExecContext(ctx, `UPDATE products SET code = $2 WHERE id = $1`, p.ID, p.Code); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := p
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(p.Name) == "" || p.Quantity < 0 || p.SalePriceCents < 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET code = $2, name = $3, description = $4, brand = $5, quantity = $6,
			sale_price_cents = $7, cost_price_cents = $8, min_stock = $9
		WHERE id = $1
	`, p.ID, p.Code, p.Name, p.Description, p.Brand, p.Quantity, p.SalePriceCents, p.CostPriceCents, p.MinStock)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product code %s: %w", p.Code, store.ErrDuplicateKey)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("product %d: %w", p.ID, store.ErrNotFound)
	}

	updated := p
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) AddStock(ctx context.Context, productID int64, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, store.ErrInvalidInput
	}

	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2
		WHERE id = $1
		RETURNING `+productColumns+`
	`, productID, qty))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE quantity <= min_stock
		ORDER BY quantity ASC, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CountLowStock(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int FROM products WHERE quantity <= min_stock
	`).Scan(&count)
	return count, err
}

// --- Customers ---

func (s *Store) ListCustomers(ctx context.Context, search string) ([]domain.Customer, error) {
	pattern := "%" + strings.TrimSpace(search) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, email, created_at
		FROM customers
		WHERE $1 = '%%' OR name ILIKE $1 OR phone ILIKE $1
		ORDER BY id
	`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Email, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, email, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, phone, address, email, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, c.Name, c.Phone, c.Address, c.Email, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	created := c
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, address = $4, email = $5
		WHERE id = $1
		RETURNING created_at
	`, c.ID, c.Name, c.Phone, c.Address, c.Email).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", c.ID, store.ErrNotFound)
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	updated := c
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) CountCustomersSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int FROM customers WHERE created_at >= $1
	`, since).Scan(&count)
	return count, err
}

// --- Sales ---

func (s *Store) CreateSale(ctx context.Context, ins store.SaleInsert) (*domain.Sale, error) {
	if len(ins.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if ins.CreatedAt.IsZero() {
		ins.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var saleID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (created_at, total_cents, seller_id, customer_id, tender_label, payment_blob)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, ins.CreatedAt, ins.TotalCents, ins.SellerID, ins.CustomerID, ins.TenderLabel, ins.PaymentBlob).Scan(&saleID)
	if err != nil {
		return nil, err
	}

	for _, line := range ins.Lines {
		if line.Qty <= 0 {
			return nil, store.ErrInvalidInput
		}
		if err := decrementStock(ctx, tx, line.ProductID, line.Qty); err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, qty, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, saleID, line.ProductID, line.Qty, line.UnitPriceCents, int64(line.Qty)*line.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSale(ctx, saleID)
}

// decrementStock takes qty units conditionally: the WHERE clause refuses
// the update when stock would go negative, so concurrent sales can never
// oversell even without row locks.
func decrementStock(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2
		WHERE id = $1 AND quantity >= $2
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var name string
		var available int
		err := tx.QueryRowContext(ctx, `
			SELECT name, quantity FROM products WHERE id = $1
		`, productID).Scan(&name, &available)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s (requested %d, available %d)",
			store.ErrInsufficientStock, name, qty, available)
	}
	return nil
}

const saleColumns = `
	s.id, s.created_at, s.total_cents, s.seller_id, u.username,
	s.customer_id, c.name, s.tender_label, s.payment_blob`

const saleJoins = `
	FROM sales s
	JOIN app_users u ON u.id = s.seller_id
	JOIN customers c ON c.id = s.customer_id`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(&sale.ID, &sale.CreatedAt, &sale.TotalCents, &sale.SellerID, &sale.SellerName,
		&sale.CustomerID, &sale.CustomerName, &sale.TenderLabel, &sale.PaymentBlob)
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, err
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+saleJoins+`
		WHERE s.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", id, store.ErrNotFound)
		}
		return nil, err
	}

	lines, err := s.saleLines(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	sale.Lines = lines[id]
	return &sale, nil
}

func (s *Store) ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 30
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+saleJoins+`
		ORDER BY s.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return s.collectSales(ctx, rows)
}

func (s *Store) ListSalesBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+saleJoins+`
		WHERE s.created_at >= $1 AND s.created_at < $2
		ORDER BY s.created_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return s.collectSales(ctx, rows)
}

func (s *Store) collectSales(ctx context.Context, rows *sql.Rows) ([]domain.Sale, error) {
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	ids := make([]int64, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := s.saleLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Lines = lines[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) saleLines(ctx context.Context, saleIDs []int64) (map[int64][]domain.SaleLine, error) {
	result := make(map[int64][]domain.SaleLine, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.sale_id, l.product_id, p.name, l.qty, l.unit_price_cents, l.subtotal_cents
		FROM sale_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.sale_id = ANY($1)
		ORDER BY l.id ASC
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.SaleID, &line.ProductID, &line.ProductName, &line.Qty, &line.UnitPriceCents, &line.SubtotalCents); err != nil {
			return nil, err
		}
		result[line.SaleID] = append(result[line.SaleID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ReplaceSaleLines(ctx context.Context, saleID int64, lines []domain.SaleLineInput, newTotal int64, tenderLabel string) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)
	`, saleID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("sale %d: %w", saleID, store.ErrNotFound)
	}

	oldQty := make(map[int64]int)
	oldRows, err := tx.QueryContext(ctx, `
		SELECT product_id, qty FROM sale_lines WHERE sale_id = $1
	`, saleID)
	if err != nil {
		return nil, err
	}
	for oldRows.Next() {
		var productID int64
		var qty int
		if err := oldRows.Scan(&productID, &qty); err != nil {
			_ = oldRows.Close()
			return nil, err
		}
		oldQty[productID] += qty
	}
	if err := oldRows.Err(); err != nil {
		_ = oldRows.Close()
		return nil, err
	}
	_ = oldRows.Close()

	newQty := make(map[int64]int)
	for _, line := range lines {
		if line.Qty <= 0 {
			return nil, store.ErrInvalidInput
		}
		newQty[line.ProductID] += line.Qty
	}

	// Apply the per-product difference only. Returning stock is always
	// safe; taking more reuses the conditional decrement.
	touched := make(map[int64]struct{}, len(oldQty)+len(newQty))
	for id := range oldQty {
		touched[id] = struct{}{}
	}
	for id := range newQty {
		touched[id] = struct{}{}
	}
	for productID := range touched {
		delta := oldQty[productID] - newQty[productID]
		switch {
		case delta > 0:
			res, err := tx.ExecContext(ctx, `
				UPDATE products SET quantity = quantity + $2 WHERE id = $1
			`, productID, delta)
			if err != nil {
				return nil, err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, err
			}
			if affected == 0 {
				return nil, fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
			}
		case delta < 0:
			if err := decrementStock(ctx, tx, productID, -delta); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_lines WHERE sale_id = $1`, saleID); err != nil {
		return nil, err
	}
	for _, line := range lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, qty, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, saleID, line.ProductID, line.Qty, line.UnitPriceCents, int64(line.Qty)*line.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}

	if tenderLabel != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE sales SET total_cents = $2, tender_label = $3 WHERE id = $1
		`, saleID, newTotal, tenderLabel)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE sales SET total_cents = $2 WHERE id = $1
		`, saleID, newTotal)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSale(ctx, saleID)
}

func (s *Store) UpdateSaleHeader(ctx context.Context, saleID int64, customerID int64, sellerID int64, tenderLabel string, paymentBlob string) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET customer_id = $2, seller_id = $3, tender_label = $4, payment_blob = $5
		WHERE id = $1
	`, saleID, customerID, sellerID, tenderLabel, paymentBlob)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("sale header references: %w", store.ErrNotFound)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("sale %d: %w", saleID, store.ErrNotFound)
	}
	return s.GetSale(ctx, saleID)
}

func (s *Store) VoidSale(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, qty FROM sale_lines WHERE sale_id = $1
	`, id)
	if err != nil {
		return err
	}
	type restock struct {
		productID int64
		qty       int
	}
	restocks := make([]restock, 0, 8)
	for rows.Next() {
		var r restock
		if err := rows.Scan(&r.productID, &r.qty); err != nil {
			_ = rows.Close()
			return err
		}
		restocks = append(restocks, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, r := range restocks {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity = quantity + $2 WHERE id = $1
		`, r.productID, r.qty); err != nil {
			return err
		}
	}

	// sale_lines cascade on delete.
	res, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sale %d: %w", id, store.ErrNotFound)
	}

	return tx.Commit()
}

func (s *Store) SumSalesBetween(ctx context.Context, from time.Time, to time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents),0)::bigint
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&total)
	return total, err
}

// --- Cash closings ---

func (s *Store) GetCashClosing(ctx context.Context, businessDay string) (*domain.CashClosing, error) {
	var c domain.CashClosing
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_day, total_cents, cash_cents, non_cash_cents, snapshot, closed_by, closed_at
		FROM cash_closings
		WHERE business_day = $1
	`, businessDay).Scan(&c.ID, &c.BusinessDay, &c.TotalCents, &c.CashCents, &c.NonCashCents, &c.Snapshot, &c.ClosedBy, &c.ClosedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cash closing %s: %w", businessDay, store.ErrNotFound)
		}
		return nil, err
	}
	c.ClosedAt = c.ClosedAt.UTC()
	return &c, nil
}

func (s *Store) UpsertCashClosing(ctx context.Context, closing domain.CashClosing, overwrite bool) (*domain.CashClosing, error) {
	if closing.ClosedAt.IsZero() {
		closing.ClosedAt = time.Now().UTC()
	}

	if overwrite {
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO cash_closings (business_day, total_cents, cash_cents, non_cash_cents, snapshot, closed_by, closed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (business_day)
			DO UPDATE SET total_cents = EXCLUDED.total_cents, cash_cents = EXCLUDED.cash_cents,
				non_cash_cents = EXCLUDED.non_cash_cents, snapshot = EXCLUDED.snapshot,
				closed_by = EXCLUDED.closed_by, closed_at = EXCLUDED.closed_at
			RETURNING id
		`, closing.BusinessDay, closing.TotalCents, closing.CashCents, closing.NonCashCents,
			closing.Snapshot, closing.ClosedBy, closing.ClosedAt).Scan(&closing.ID)
		if err != nil {
			return nil, err
		}
		saved := closing
		return &saved, nil
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cash_closings (business_day, total_cents, cash_cents, non_cash_cents, snapshot, closed_by, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, closing.BusinessDay, closing.TotalCents, closing.CashCents, closing.NonCashCents,
		closing.Snapshot, closing.ClosedBy, closing.ClosedAt).Scan(&closing.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyClosed
		}
		return nil, err
	}
	saved := closing
	return &saved, nil
}

// --- Users ---

const userColumns = `id, username, first_name, last_name, national_id, role, active, password_hash`

func scanUser(row interface{ Scan(...any) error }) (domain.UserAccount, error) {
	var u domain.UserAccount
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.NationalID, &u.Role, &u.Active, &u.PasswordHash)
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM app_users ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.UserAccount, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM app_users WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM app_users WHERE username = $1
	`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.UserAccount) (*domain.UserAccount, error) {
	if strings.TrimSpace(u.Username) == "" || u.PasswordHash == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO app_users (username, first_name, last_name, national_id, role, active, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, u.Username, u.FirstName, u.LastName, u.NationalID, u.Role, u.Active, u.PasswordHash).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %s: %w", u.Username, store.ErrDuplicateKey)
		}
		return nil, err
	}
	created := u
	return &created, nil
}

func (s *Store) UpdateUser(ctx context.Context, u domain.UserAccount) (*domain.UserAccount, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET username = $2, first_name = $3, last_name = $4, national_id = $5,
			role = $6, active = $7, password_hash = $8
		WHERE id = $1
	`, u.ID, u.Username, u.FirstName, u.LastName, u.NationalID, u.Role, u.Active, u.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %s: %w", u.Username, store.ErrDuplicateKey)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("user %d: %w", u.ID, store.ErrNotFound)
	}
	updated := u
	return &updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM app_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int FROM app_users WHERE role = $1 AND active = true
	`, domain.RoleAdmin).Scan(&count)
	return count, err
}

// --- Audit ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Actor, entry.ActorRole, entry.Action, entry.Entity, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.ActorRole, &entry.Action, &entry.Entity, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
