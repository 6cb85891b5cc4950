// Package memory implements store.Repository in process memory. It backs
// the unit tests and the dev mode started without DATABASE_URL, and keeps
// the same transactional semantics as the postgres store: a sale either
// applies all of its stock movements or none of them.
package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cosmetiquera/backend/internal/domain"
	"cosmetiquera/backend/internal/store"
)

type Store struct {
	mu sync.RWMutex

	products  map[int64]domain.Product
	customers map[int64]domain.Customer
	users     map[int64]domain.UserAccount
	sales     map[int64]domain.Sale
	saleLines map[int64][]domain.SaleLine
	closings  map[string]domain.CashClosing
	auditLogs []domain.AuditLog

	nextProductID  int64
	nextCustomerID int64
	nextUserID     int64
	nextSaleID     int64
	nextClosingID  int64
}

func New() *Store {
	s := &Store{
		products:       make(map[int64]domain.Product),
		customers:      make(map[int64]domain.Customer),
		users:          make(map[int64]domain.UserAccount),
		sales:          make(map[int64]domain.Sale),
		saleLines:      make(map[int64][]domain.SaleLine),
		closings:       make(map[string]domain.CashClosing),
		nextProductID:  1,
		nextCustomerID: 1,
		nextUserID:     1,
		nextSaleID:     1,
		nextClosingID:  1,
	}

	// The generic walk-in customer always exists and always has id 1.
	s.customers[domain.GenericCustomerID] = domain.Customer{
		ID:        domain.GenericCustomerID,
		Name:      "Cliente Genérico",
		CreatedAt: time.Now().UTC(),
	}
	s.nextCustomerID = domain.GenericCustomerID + 1

	return s
}

// NewSeeded builds a store with demo catalog and accounts for dev mode.
// Seed credentials come from SEED_ADMIN_PASSWORD / SEED_SELLER_PASSWORD;
// hardcoded dev defaults are used (with a warning) when unset.
func NewSeeded() *Store {
	s := New()

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "seller123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	for _, u := range []struct {
		username, first, last, nationalID, role, password string
	}{
		{"admin", "Johanna", "Chacón", "10203040", domain.RoleAdmin, adminPwd},
		{"gabi", "Gabriela", "Mora", "50607080", domain.RoleSeller, sellerPwd},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		id := s.nextUserID
		s.nextUserID++
		s.users[id] = domain.UserAccount{
			User: domain.User{
				ID:         id,
				Username:   u.username,
				FirstName:  u.first,
				LastName:   u.last,
				NationalID: u.nationalID,
				Role:       u.role,
				Active:     true,
			},
			PasswordHash: string(hash),
		}
	}

	for _, p := range []domain.Product{
		{Code: "750100000011", Name: "Labial Mate Rojo", Brand: "Vogue", Quantity: 24, SalePriceCents: 2500000, CostPriceCents: 1500000, MinStock: 5},
		{Code: "750100000028", Name: "Base Líquida Natural", Brand: "L'Oréal", Quantity: 15, SalePriceCents: 6800000, CostPriceCents: 4200000, MinStock: 5},
		{Code: "750100000035", Name: "Máscara de Pestañas", Brand: "Maybelline", Quantity: 30, SalePriceCents: 3900000, CostPriceCents: 2300000, MinStock: 8},
		{Code: "750100000042", Name: "Crema Hidratante 50ml", Brand: "Nivea", Quantity: 18, SalePriceCents: 3200000, CostPriceCents: 1900000, MinStock: 5},
		{Code: "750100000059", Name: "Esmalte Nude", Brand: "Masglo", Quantity: 40, SalePriceCents: 1500000, CostPriceCents: 800000, MinStock: 10},
		{Code: "750100000066", Name: "Perfume Floral 100ml", Brand: "Ésika", Quantity: 8, SalePriceCents: 9500000, CostPriceCents: 6000000, MinStock: 3},
	} {
		id := s.nextProductID
		s.nextProductID++
		p.ID = id
		s.products[id] = p
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- Products ---

func (s *Store) ListProducts(_ context.Context, search string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if needle != "" && !productMatches(p, needle) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func productMatches(p domain.Product, needle string) bool {
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Code), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) ||
		strings.Contains(strings.ToLower(p.Brand), needle)
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	copied := p
	return &copied, nil
}

func (s *Store) GetProductByCode(_ context.Context, code string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Code == code {
			copied := p
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("product code %s: %w", code, store.ErrNotFound)
}

func (s *Store) CreateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(p.Name) == "" || p.Quantity < 0 || p.SalePriceCents < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Code != "" {
		for _, existing := range s.products {
			if existing.Code == p.Code {
				return nil, fmt.Errorf("product code %s: %w", p.Code, store.ErrDuplicateKey)
			}
		}
	}

	p.ID = s.nextProductID
	s.nextProductID++
	if p.Code == "" {
		p.Code = fmt.Sprintf("%012d", p.ID)
	}
	if p.MinStock <= 0 {
		p.MinStock = 5
	}
	s.products[p.ID] = p
	copied := p
	return &copied, nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(p.Name) == "" || p.Quantity < 0 || p.SalePriceCents < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		return nil, fmt.Errorf("product %d: %w", p.ID, store.ErrNotFound)
	}
	for _, existing := range s.products {
		if existing.ID != p.ID && existing.Code == p.Code && p.Code != "" {
			return nil, fmt.Errorf("product code %s: %w", p.Code, store.ErrDuplicateKey)
		}
	}
	s.products[p.ID] = p
	copied := p
	return &copied, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AddStock(_ context.Context, productID int64, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	p.Quantity += qty
	s.products[productID] = p
	copied := p
	return &copied, nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.Quantity <= p.MinStock {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	return out, nil
}

func (s *Store) CountLowStock(ctx context.Context) (int, error) {
	low, err := s.ListLowStock(ctx)
	if err != nil {
		return 0, err
	}
	return len(low), nil
}

// --- Customers ---

func (s *Store) ListCustomers(_ context.Context, search string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Phone), needle) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	copied := c
	return &copied, nil
}

func (s *Store) CreateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextCustomerID
	s.nextCustomerID++
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.customers[c.ID] = c
	copied := c
	return &copied, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[c.ID]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", c.ID, store.ErrNotFound)
	}
	c.CreatedAt = existing.CreatedAt
	s.customers[c.ID] = c
	copied := c
	return &copied, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CountCustomersSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, c := range s.customers {
		if !c.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// --- Sales ---

func (s *Store) CreateSale(_ context.Context, ins store.SaleInsert) (*domain.Sale, error) {
	if len(ins.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every line before touching any quantity so a late failure
	// cannot leave a partial decrement behind.
	for _, line := range ins.Lines {
		if line.Qty <= 0 {
			return nil, store.ErrInvalidInput
		}
		p, ok := s.products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, store.ErrNotFound)
		}
		if p.Quantity < line.Qty {
			return nil, fmt.Errorf("%w: %s (requested %d, available %d)",
				store.ErrInsufficientStock, p.Name, line.Qty, p.Quantity)
		}
	}

	sale := domain.Sale{
		ID:          s.nextSaleID,
		CreatedAt:   ins.CreatedAt,
		TotalCents:  ins.TotalCents,
		SellerID:    ins.SellerID,
		CustomerID:  ins.CustomerID,
		TenderLabel: ins.TenderLabel,
		PaymentBlob: ins.PaymentBlob,
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	s.nextSaleID++

	lines := make([]domain.SaleLine, 0, len(ins.Lines))
	for _, line := range ins.Lines {
		p := s.products[line.ProductID]
		p.Quantity -= line.Qty
		s.products[line.ProductID] = p
		lines = append(lines, domain.SaleLine{
			SaleID:         sale.ID,
			ProductID:      line.ProductID,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			SubtotalCents:  int64(line.Qty) * line.UnitPriceCents,
		})
	}

	s.sales[sale.ID] = sale
	s.saleLines[sale.ID] = lines

	copied := sale
	copied.Lines = s.resolvedLines(sale.ID)
	s.resolveSaleNames(&copied)
	return &copied, nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, fmt.Errorf("sale %d: %w", id, store.ErrNotFound)
	}
	copied := sale
	copied.Lines = s.resolvedLines(id)
	s.resolveSaleNames(&copied)
	return &copied, nil
}

func (s *Store) ListRecentSales(_ context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 30
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for id, sale := range s.sales {
		copied := sale
		copied.Lines = s.resolvedLines(id)
		s.resolveSaleNames(&copied)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListSalesBetween(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, 32)
	for id, sale := range s.sales {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		copied := sale
		copied.Lines = s.resolvedLines(id)
		s.resolveSaleNames(&copied)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ReplaceSaleLines(_ context.Context, saleID int64, lines []domain.SaleLineInput, newTotal int64, tenderLabel string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[saleID]
	if !ok {
		return nil, fmt.Errorf("sale %d: %w", saleID, store.ErrNotFound)
	}

	oldQty := make(map[int64]int)
	for _, line := range s.saleLines[saleID] {
		oldQty[line.ProductID] += line.Qty
	}
	newQty := make(map[int64]int)
	for _, line := range lines {
		if line.Qty <= 0 {
			return nil, store.ErrInvalidInput
		}
		if _, ok := s.products[line.ProductID]; !ok {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, store.ErrNotFound)
		}
		newQty[line.ProductID] += line.Qty
	}

	// delta > 0 returns stock, delta < 0 takes more. Check all products
	// first; apply only when the whole edit fits.
	touched := make(map[int64]struct{}, len(oldQty)+len(newQty))
	for id := range oldQty {
		touched[id] = struct{}{}
	}
	for id := range newQty {
		touched[id] = struct{}{}
	}
	for id := range touched {
		p, ok := s.products[id]
		if !ok {
			// old line whose product was deleted since; no stock to return
			continue
		}
		delta := oldQty[id] - newQty[id]
		if p.Quantity+delta < 0 {
			return nil, fmt.Errorf("%w: %s (requested %d, available %d)",
				store.ErrInsufficientStock, p.Name, newQty[id], p.Quantity+oldQty[id])
		}
	}
	for id := range touched {
		p, ok := s.products[id]
		if !ok {
			continue
		}
		p.Quantity += oldQty[id] - newQty[id]
		s.products[id] = p
	}

	replaced := make([]domain.SaleLine, 0, len(lines))
	for _, line := range lines {
		replaced = append(replaced, domain.SaleLine{
			SaleID:         saleID,
			ProductID:      line.ProductID,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			SubtotalCents:  int64(line.Qty) * line.UnitPriceCents,
		})
	}
	s.saleLines[saleID] = replaced

	sale.TotalCents = newTotal
	if tenderLabel != "" {
		sale.TenderLabel = tenderLabel
	}
	s.sales[saleID] = sale

	copied := sale
	copied.Lines = s.resolvedLines(saleID)
	s.resolveSaleNames(&copied)
	return &copied, nil
}

func (s *Store) UpdateSaleHeader(_ context.Context, saleID int64, customerID int64, sellerID int64, tenderLabel string, paymentBlob string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[saleID]
	if !ok {
		return nil, fmt.Errorf("sale %d: %w", saleID, store.ErrNotFound)
	}
	if _, ok := s.customers[customerID]; !ok {
		return nil, fmt.Errorf("customer %d: %w", customerID, store.ErrNotFound)
	}
	if _, ok := s.users[sellerID]; !ok {
		return nil, fmt.Errorf("user %d: %w", sellerID, store.ErrNotFound)
	}

	sale.CustomerID = customerID
	sale.SellerID = sellerID
	sale.TenderLabel = tenderLabel
	sale.PaymentBlob = paymentBlob
	s.sales[saleID] = sale

	copied := sale
	copied.Lines = s.resolvedLines(saleID)
	s.resolveSaleNames(&copied)
	return &copied, nil
}

func (s *Store) VoidSale(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[id]; !ok {
		return fmt.Errorf("sale %d: %w", id, store.ErrNotFound)
	}

	for _, line := range s.saleLines[id] {
		if p, ok := s.products[line.ProductID]; ok {
			p.Quantity += line.Qty
			s.products[line.ProductID] = p
		}
	}
	delete(s.saleLines, id)
	delete(s.sales, id)
	return nil
}

func (s *Store) SumSalesBetween(ctx context.Context, from time.Time, to time.Time) (int64, error) {
	sales, err := s.ListSalesBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, sale := range sales {
		total += sale.TotalCents
	}
	return total, nil
}

func (s *Store) resolvedLines(saleID int64) []domain.SaleLine {
	lines := s.saleLines[saleID]
	out := make([]domain.SaleLine, 0, len(lines))
	for _, line := range lines {
		if p, ok := s.products[line.ProductID]; ok {
			line.ProductName = p.Name
		}
		out = append(out, line)
	}
	return out
}

func (s *Store) resolveSaleNames(sale *domain.Sale) {
	if u, ok := s.users[sale.SellerID]; ok {
		sale.SellerName = u.Username
	}
	if c, ok := s.customers[sale.CustomerID]; ok {
		sale.CustomerName = c.Name
	}
}

// --- Cash closings ---

func (s *Store) GetCashClosing(_ context.Context, businessDay string) (*domain.CashClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	closing, ok := s.closings[businessDay]
	if !ok {
		return nil, fmt.Errorf("cash closing %s: %w", businessDay, store.ErrNotFound)
	}
	copied := closing
	return &copied, nil
}

func (s *Store) UpsertCashClosing(_ context.Context, closing domain.CashClosing, overwrite bool) (*domain.CashClosing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.closings[closing.BusinessDay]; ok {
		if !overwrite {
			return nil, store.ErrAlreadyClosed
		}
		closing.ID = existing.ID
	} else {
		closing.ID = s.nextClosingID
		s.nextClosingID++
	}
	if closing.ClosedAt.IsZero() {
		closing.ClosedAt = time.Now().UTC()
	}
	s.closings[closing.BusinessDay] = closing
	copied := closing
	return &copied, nil
}

// --- Users ---

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	copied := u
	return &copied, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			copied := u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
}

func (s *Store) CreateUser(_ context.Context, u domain.UserAccount) (*domain.UserAccount, error) {
	if strings.TrimSpace(u.Username) == "" || u.PasswordHash == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return nil, fmt.Errorf("username %s: %w", u.Username, store.ErrDuplicateKey)
		}
		if u.NationalID != "" && existing.NationalID == u.NationalID {
			return nil, fmt.Errorf("national id %s: %w", u.NationalID, store.ErrDuplicateKey)
		}
	}

	u.ID = s.nextUserID
	s.nextUserID++
	s.users[u.ID] = u
	copied := u
	return &copied, nil
}

func (s *Store) UpdateUser(_ context.Context, u domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return nil, fmt.Errorf("user %d: %w", u.ID, store.ErrNotFound)
	}
	for _, existing := range s.users {
		if existing.ID != u.ID && existing.Username == u.Username {
			return nil, fmt.Errorf("username %s: %w", u.Username, store.ErrDuplicateKey)
		}
	}
	s.users[u.ID] = u
	copied := u
	return &copied, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

func (s *Store) CountAdmins(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, u := range s.users {
		if u.Role == domain.RoleAdmin && u.Active {
			count++
		}
	}
	return count, nil
}

// --- Audit ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
