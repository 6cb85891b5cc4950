package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"cosmetiquera/backend/internal/domain"
	"cosmetiquera/backend/internal/store"
)

func TestCreateAndVoidSaleRestoresStock(t *testing.T) {
	databaseURL := os.Getenv("COSMETIQUERA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set COSMETIQUERA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	stamp := time.Now().UnixNano()
	code := fmt.Sprintf("IT-%d", stamp)
	username := fmt.Sprintf("seller-it-%d", stamp)

	var productID int64
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (code, name, quantity, sale_price_cents, min_stock)
		VALUES ($1, 'Labial Integration', 10, 250000, 2)
		RETURNING id
	`, code).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	var sellerID int64
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO app_users (username, role, active, password_hash)
		VALUES ($1, 'seller', true, 'x')
		RETURNING id
	`, username).Scan(&sellerID); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE seller_id = $1`, sellerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM app_users WHERE id = $1`, sellerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	sale, err := s.CreateSale(ctx, store.SaleInsert{
		TotalCents:  750000,
		SellerID:    sellerID,
		CustomerID:  domain.GenericCustomerID,
		TenderLabel: "Cash",
		Lines: []domain.SaleLineInput{
			{ProductID: productID, Qty: 3, UnitPriceCents: 250000},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	var qty int
	if err := s.db.QueryRowContext(ctx, `
		SELECT quantity FROM products WHERE id = $1
	`, productID).Scan(&qty); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if qty != 7 {
		t.Fatalf("expected stock 7 after sale, got %d", qty)
	}

	if err := s.VoidSale(ctx, sale.ID); err != nil {
		t.Fatalf("void sale: %v", err)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT quantity FROM products WHERE id = $1
	`, productID).Scan(&qty); err != nil {
		t.Fatalf("query stock after void: %v", err)
	}
	if qty != 10 {
		t.Fatalf("expected stock 10 after void, got %d", qty)
	}

	if _, err := s.GetSale(ctx, sale.ID); err == nil {
		t.Fatal("expected voided sale to be gone")
	}
}

func TestConcurrentCodelessProductCreates(t *testing.T) {
	databaseURL := os.Getenv("COSMETIQUERA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set COSMETIQUERA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	stamp := time.Now().UnixNano()
	const workers = 4
	created := make([]*domain.Product, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created[i], errs[i] = s.CreateProduct(ctx, domain.Product{
				Name:           fmt.Sprintf("Brillo Labial IT-%d-%d", stamp, i),
				Quantity:       1,
				SalePriceCents: 100000,
				MinStock:       1,
			})
		}(i)
	}
	wg.Wait()

	t.Cleanup(func() {
		for _, p := range created {
			if p != nil {
				_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, p.ID)
			}
		}
	})

	codes := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("concurrent code-less create %d failed: %v", i, errs[i])
		}
		code := created[i].Code
		if len(code) != 12 {
			t.Fatalf("expected backfilled 12-digit code, got %q", code)
		}
		if codes[code] {
			t.Fatalf("duplicate backfilled code %q", code)
		}
		codes[code] = true
	}
}
