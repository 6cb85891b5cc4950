package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"cosmetiquera/backend/internal/cache"
	"cosmetiquera/backend/internal/domain"
	"cosmetiquera/backend/internal/payment"
	"cosmetiquera/backend/internal/shift"
	"cosmetiquera/backend/internal/store"
	"cosmetiquera/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// paymentToleranceCents is how far the declared payment sum may drift from
// the sale total before the sale is rejected. Covers rounding on the client.
const paymentToleranceCents = 1

type Service struct {
	repo       store.Repository
	catalog    cache.CatalogCache
	windowing  shift.Windowing
	printer    *message.Printer
	catalogTTL time.Duration
}

func New(repo store.Repository, catalog cache.CatalogCache, windowing shift.Windowing, locale string, catalogTTL time.Duration) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if catalogTTL <= 0 {
		catalogTTL = 60 * time.Second
	}

	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse("es-CO")
	}

	return &Service{
		repo:       repo,
		catalog:    catalog,
		windowing:  windowing,
		printer:    message.NewPrinter(tag),
		catalogTTL: catalogTTL,
	}
}

func (s *Service) requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", store.ErrPermissionDenied)
	}
	return actor, nil
}

// FormatMoney renders integer cents in the shop locale for receipts.
func (s *Service) FormatMoney(cents int64) string {
	value := number.Decimal(float64(cents)/100, number.MinFractionDigits(2), number.MaxFractionDigits(2))
	return s.printer.Sprintf("$ %v", value)
}

// --- Products ---

func (s *Service) ListProducts(ctx context.Context, search string) ([]domain.Product, error) {
	key := strings.ToLower(strings.TrimSpace(search))
	if cached, ok, err := s.catalog.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: catalog cache read failed: %v", err)
	}

	products, err := s.repo.ListProducts(ctx, search)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Set(ctx, key, products, s.catalogTTL); err != nil {
		log.Printf("[service] WARN: catalog cache write failed: %v", err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.TrimSpace(req.Code)
	if req.Name == "" || req.Quantity < 0 || req.SalePriceCents < 0 || req.CostPriceCents < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Code:           req.Code,
		Name:           req.Name,
		Description:    strings.TrimSpace(req.Description),
		Brand:          strings.TrimSpace(req.Brand),
		Quantity:       req.Quantity,
		SalePriceCents: req.SalePriceCents,
		CostPriceCents: req.CostPriceCents,
		MinStock:       req.MinStock,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_create", "product", fmt.Sprintf("%d", created.ID), fmt.Sprintf("name=%s,code=%s,qty=%d", created.Name, created.Code, created.Quantity))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Code = code
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Brand != nil {
		updated.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Quantity = *req.Quantity
	}
	if req.SalePriceCents != nil {
		if *req.SalePriceCents < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.SalePriceCents = *req.SalePriceCents
	}
	if req.CostPriceCents != nil {
		if *req.CostPriceCents < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.CostPriceCents = *req.CostPriceCents
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.MinStock = *req.MinStock
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_update", "product", fmt.Sprintf("%d", saved.ID), fmt.Sprintf("name=%s,qty=%d,price=%d", saved.Name, saved.Quantity, saved.SalePriceCents))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_delete", "product", fmt.Sprintf("%d", id), "")
	return nil
}

// RestockByCode adds units to the product carrying the scanned barcode.
func (s *Service) RestockByCode(ctx context.Context, req domain.RestockRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" || req.Qty <= 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	product, err := s.repo.GetProductByCode(ctx, req.Code)
	if err != nil {
		return domain.Product{}, err
	}

	updated, err := s.repo.AddStock(ctx, product.ID, req.Qty)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_restock", "product", fmt.Sprintf("%d", updated.ID), fmt.Sprintf("code=%s,added=%d,qty=%d", req.Code, req.Qty, updated.Quantity))
	return *updated, nil
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: catalog cache invalidate failed: %v", err)
	}
}

// --- Customers ---

func (s *Service) ListCustomers(ctx context.Context, search string) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, search)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Email:     strings.TrimSpace(req.Email),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", fmt.Sprintf("%d", created.ID), fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerRequest) (domain.Customer, error) {
	if id == domain.GenericCustomerID {
		return domain.Customer{}, fmt.Errorf("%w: the walk-in customer cannot be edited", store.ErrPermissionDenied)
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidInput
	}

	updated, err := s.repo.UpdateCustomer(ctx, domain.Customer{
		ID:      id,
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Email:   strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_update", "customer", fmt.Sprintf("%d", updated.ID), fmt.Sprintf("name=%s", updated.Name))
	return *updated, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if id == domain.GenericCustomerID {
		return fmt.Errorf("%w: the walk-in customer cannot be deleted", store.ErrPermissionDenied)
	}

	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", "customer", fmt.Sprintf("%d", id), "")
	return nil
}

// --- Sales ---

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Sale{}, fmt.Errorf("%w: login required", store.ErrPermissionDenied)
	}
	seller, err := s.repo.GetUserByUsername(ctx, actor.Username)
	if err != nil {
		return domain.Sale{}, err
	}

	if len(req.Lines) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: a sale needs at least one line", store.ErrInvalidInput)
	}
	if req.CustomerID == 0 {
		req.CustomerID = domain.GenericCustomerID
	}
	if _, err := s.repo.GetCustomer(ctx, req.CustomerID); err != nil {
		return domain.Sale{}, err
	}

	// Unit prices come from the catalog unless the caller priced the line
	// explicitly (discounted items).
	lines := make([]domain.SaleLineInput, 0, len(req.Lines))
	var total int64
	for _, line := range req.Lines {
		if line.Qty <= 0 {
			return domain.Sale{}, fmt.Errorf("%w: line quantity must be positive", store.ErrInvalidInput)
		}
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return domain.Sale{}, err
		}
		if line.UnitPriceCents <= 0 {
			line.UnitPriceCents = product.SalePriceCents
		}
		total += int64(line.Qty) * line.UnitPriceCents
		lines = append(lines, line)
	}

	// The client echoes the total it showed the seller; a drift means the
	// cart changed between display and submit.
	if req.DeclaredTotalCents > 0 {
		if diff := req.DeclaredTotalCents - total; diff > paymentToleranceCents || diff < -paymentToleranceCents {
			return domain.Sale{}, fmt.Errorf("%w: declared total %d, computed %d", store.ErrPaymentMismatch, req.DeclaredTotalCents, total)
		}
	}

	breakdown := payment.New(req.Payments, req.ReferenceCode, req.ReferenceDate)
	if !breakdown.Empty() {
		if diff := breakdown.Total() - total; diff > paymentToleranceCents || diff < -paymentToleranceCents {
			return domain.Sale{}, fmt.Errorf("%w: payments sum %d, sale total %d", store.ErrPaymentMismatch, breakdown.Total(), total)
		}
	}

	created, err := s.repo.CreateSale(ctx, store.SaleInsert{
		CreatedAt:   time.Now().UTC(),
		TotalCents:  total,
		SellerID:    seller.ID,
		CustomerID:  req.CustomerID,
		TenderLabel: breakdown.TenderLabel(),
		PaymentBlob: payment.Encode(breakdown),
		Lines:       lines,
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_create", "sale", fmt.Sprintf("%d", created.ID), fmt.Sprintf("total=%d,tender=%s,lines=%d", created.TotalCents, created.TenderLabel, len(created.Lines)))
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// GetSaleReceipt assembles the printable view of a sale: lines, payment
// rows, timestamp in the shop timezone, and money preformatted for the
// thermal printer.
func (s *Service) GetSaleReceipt(ctx context.Context, id int64) (domain.Receipt, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Receipt{}, err
	}

	breakdown := payment.Decode(sale.PaymentBlob)
	payments := make([]domain.ReceiptPayment, 0, len(breakdown.Amounts))
	for _, entry := range breakdown.Display() {
		payments = append(payments, domain.ReceiptPayment{
			Method:        entry.Method,
			Label:         entry.Label,
			AmountCents:   entry.AmountCents,
			ReferenceCode: entry.ReferenceCode,
			ReferenceDate: entry.ReferenceDate,
		})
	}

	formatted := map[string]string{
		"total": s.FormatMoney(sale.TotalCents),
	}
	for _, p := range payments {
		formatted[p.Method] = s.FormatMoney(p.AmountCents)
	}

	return domain.Receipt{
		Sale:      *sale,
		LocalTime: sale.CreatedAt.In(s.windowing.Location()).Format("2006-01-02 15:04:05"),
		Lines:     sale.Lines,
		Payments:  payments,
		Formatted: formatted,
	}, nil
}

func (s *Service) ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 30
	}
	return s.repo.ListRecentSales(ctx, limit)
}

// EditSaleLineItems replaces the line set of an existing sale. Stock is
// reconciled per product: removed quantity goes back, added quantity is
// taken, unchanged lines do not move inventory. A sale edited down to a
// zero total keeps its header with the Voided label.
func (s *Service) EditSaleLineItems(ctx context.Context, saleID int64, req domain.SaleLinesUpdateRequest) (domain.Sale, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}

	lines := make([]domain.SaleLineInput, 0, len(req.Lines))
	var total int64
	for _, line := range req.Lines {
		if line.Qty <= 0 {
			return domain.Sale{}, fmt.Errorf("%w: line quantity must be positive", store.ErrInvalidInput)
		}
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return domain.Sale{}, err
		}
		if line.UnitPriceCents <= 0 {
			line.UnitPriceCents = product.SalePriceCents
		}
		total += int64(line.Qty) * line.UnitPriceCents
		lines = append(lines, line)
	}

	tenderLabel := ""
	if total == 0 {
		tenderLabel = payment.LabelVoided
	}

	updated, err := s.repo.ReplaceSaleLines(ctx, saleID, lines, total, tenderLabel)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_edit_lines", "sale", fmt.Sprintf("%d", saleID), fmt.Sprintf("total=%d,lines=%d", total, len(lines)))
	return *updated, nil
}

// EditSaleHeader changes who sold, who bought, and how the sale was paid
// without touching the line items.
func (s *Service) EditSaleHeader(ctx context.Context, saleID int64, req domain.SaleHeaderUpdateRequest) (domain.Sale, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}

	existing, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}

	customerID := req.CustomerID
	if customerID == 0 {
		customerID = existing.CustomerID
	}
	sellerID := req.SellerID
	if sellerID == 0 {
		sellerID = existing.SellerID
	}

	breakdown := payment.New(req.Payments, req.ReferenceCode, req.ReferenceDate)
	if !breakdown.Empty() {
		if diff := breakdown.Total() - existing.TotalCents; diff > paymentToleranceCents || diff < -paymentToleranceCents {
			return domain.Sale{}, fmt.Errorf("%w: payments sum %d, sale total %d", store.ErrPaymentMismatch, breakdown.Total(), existing.TotalCents)
		}
	}

	updated, err := s.repo.UpdateSaleHeader(ctx, saleID, customerID, sellerID, breakdown.TenderLabel(), payment.Encode(breakdown))
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_edit_header", "sale", fmt.Sprintf("%d", saleID), fmt.Sprintf("customer=%d,seller=%d,tender=%s", customerID, sellerID, updated.TenderLabel))
	return *updated, nil
}

// VoidSale restores the stock of every line and removes the sale entirely.
func (s *Service) VoidSale(ctx context.Context, saleID int64) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}

	if err := s.repo.VoidSale(ctx, saleID); err != nil {
		return err
	}
	s.logAudit(ctx, "sale_void", "sale", fmt.Sprintf("%d", saleID), "")
	return nil
}

// --- Shift totals and register closing ---

// ComputeShiftTotals aggregates all sales of one business day. Sales whose
// payment blob cannot be decoded still count toward the day total; they are
// surfaced via UndecodedSales instead of being guessed into a method bucket.
func (s *Service) ComputeShiftTotals(ctx context.Context, businessDay string) (domain.ShiftTotals, error) {
	day, err := s.resolveBusinessDay(businessDay)
	if err != nil {
		return domain.ShiftTotals{}, err
	}
	from, to := s.windowing.WindowOf(day)

	sales, err := s.repo.ListSalesBetween(ctx, from, to)
	if err != nil {
		return domain.ShiftTotals{}, err
	}

	totals := domain.ShiftTotals{
		BusinessDay: s.windowing.FormatDay(day),
		ByMethod:    make(map[string]int64),
		SaleCount:   len(sales),
	}
	sellerTotals := make(map[int64]*domain.SellerShiftTotal)

	for _, sale := range sales {
		totals.TotalCents += sale.TotalCents

		st := sellerTotals[sale.SellerID]
		if st == nil {
			st = &domain.SellerShiftTotal{SellerID: sale.SellerID, SellerName: sale.SellerName}
			sellerTotals[sale.SellerID] = st
		}
		st.TotalCents += sale.TotalCents

		breakdown, decoded := payment.DecodeChecked(sale.PaymentBlob)
		if !decoded {
			totals.UndecodedSales++
		}
		if breakdown.Empty() {
			continue
		}
		for method, cents := range breakdown.Amounts {
			totals.ByMethod[method] += cents
			if method == payment.MethodCash {
				totals.CashCents += cents
				st.CashCents += cents
			}
		}
	}

	// Derived rather than summed so an undecodable blob cannot push cash
	// and non-cash out of agreement with the day total.
	totals.NonCashCents = totals.TotalCents - totals.CashCents

	totals.BySeller = make([]domain.SellerShiftTotal, 0, len(sellerTotals))
	for _, st := range sellerTotals {
		totals.BySeller = append(totals.BySeller, *st)
	}
	sort.Slice(totals.BySeller, func(i, j int) bool {
		return totals.BySeller[i].SellerName < totals.BySeller[j].SellerName
	})

	return totals, nil
}

// CloseRegister records the day's totals. A seller may close a day once;
// reclosing needs an admin, whose snapshot replaces the previous one.
func (s *Service) CloseRegister(ctx context.Context, req domain.CloseRegisterRequest) (domain.CashClosing, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CashClosing{}, fmt.Errorf("%w: login required", store.ErrPermissionDenied)
	}

	totals, err := s.ComputeShiftTotals(ctx, req.BusinessDay)
	if err != nil {
		return domain.CashClosing{}, err
	}

	snapshot, err := json.Marshal(totals)
	if err != nil {
		return domain.CashClosing{}, err
	}

	overwrite := actor.Role == domain.RoleAdmin
	closing, err := s.repo.UpsertCashClosing(ctx, domain.CashClosing{
		BusinessDay:  totals.BusinessDay,
		TotalCents:   totals.TotalCents,
		CashCents:    totals.CashCents,
		NonCashCents: totals.NonCashCents,
		Snapshot:     string(snapshot),
		ClosedBy:     actor.Username,
		ClosedAt:     time.Now().UTC(),
	}, overwrite)
	if err != nil {
		return domain.CashClosing{}, err
	}

	s.logAudit(ctx, "register_close", "cash_closing", totals.BusinessDay, fmt.Sprintf("total=%d,cash=%d,overwrite=%t", totals.TotalCents, totals.CashCents, overwrite))
	return *closing, nil
}

func (s *Service) GetCashClosing(ctx context.Context, businessDay string) (domain.CashClosing, error) {
	day, err := s.resolveBusinessDay(businessDay)
	if err != nil {
		return domain.CashClosing{}, err
	}
	closing, err := s.repo.GetCashClosing(ctx, s.windowing.FormatDay(day))
	if err != nil {
		return domain.CashClosing{}, err
	}
	return *closing, nil
}

func (s *Service) resolveBusinessDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.windowing.Today(time.Now().UTC()), nil
	}
	day, err := s.windowing.ParseDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: business day must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	return day, nil
}

// --- Users ---

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	accounts, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(accounts))
	for _, account := range accounts {
		users = append(users, account.User)
	}
	return users, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if req.Username == "" || len(req.Password) < 6 {
		return domain.User{}, fmt.Errorf("%w: username and a password of at least 6 characters are required", store.ErrInvalidInput)
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleSeller {
		return domain.User{}, fmt.Errorf("%w: role must be admin or seller", store.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	created, err := s.repo.CreateUser(ctx, domain.UserAccount{
		User: domain.User{
			Username:   req.Username,
			FirstName:  strings.TrimSpace(req.FirstName),
			LastName:   strings.TrimSpace(req.LastName),
			NationalID: strings.TrimSpace(req.NationalID),
			Role:       req.Role,
			Active:     true,
		},
		PasswordHash: string(hash),
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logAudit(ctx, "user_create", "user", fmt.Sprintf("%d", created.ID), fmt.Sprintf("username=%s,role=%s", created.Username, created.Role))
	return created.User, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, req domain.UserUpdateRequest) (domain.User, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}

	existing, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	updated := *existing
	if req.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*req.Username))
		if username == "" {
			return domain.User{}, store.ErrInvalidInput
		}
		updated.Username = username
	}
	if req.FirstName != nil {
		updated.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updated.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*req.Role))
		if role != domain.RoleAdmin && role != domain.RoleSeller {
			return domain.User{}, fmt.Errorf("%w: role must be admin or seller", store.ErrInvalidInput)
		}
		updated.Role = role
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			return domain.User{}, fmt.Errorf("%w: password must be at least 6 characters", store.ErrInvalidInput)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, err
		}
		updated.PasswordHash = string(hash)
	}

	// Demoting or deactivating the only remaining admin would lock
	// everyone out of user management.
	losesAdmin := existing.Role == domain.RoleAdmin && existing.Active &&
		(updated.Role != domain.RoleAdmin || !updated.Active)
	if losesAdmin {
		admins, err := s.repo.CountAdmins(ctx)
		if err != nil {
			return domain.User{}, err
		}
		if admins <= 1 {
			return domain.User{}, fmt.Errorf("%w: at least one active admin must remain", store.ErrPermissionDenied)
		}
	}

	saved, err := s.repo.UpdateUser(ctx, updated)
	if err != nil {
		return domain.User{}, err
	}

	s.logAudit(ctx, "user_update", "user", fmt.Sprintf("%d", saved.ID), fmt.Sprintf("username=%s,role=%s,active=%t", saved.Username, saved.Role, saved.Active))
	return saved.User, nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}

	existing, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if existing.Role == domain.RoleAdmin && existing.Active {
		admins, err := s.repo.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return fmt.Errorf("%w: at least one active admin must remain", store.ErrPermissionDenied)
		}
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "user_delete", "user", fmt.Sprintf("%d", id), fmt.Sprintf("username=%s", existing.Username))
	return nil
}

// --- Dashboard and reports ---

func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	lowStock, err := s.repo.CountLowStock(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	now := time.Now().UTC()
	from, to := s.windowing.WindowOf(s.windowing.Today(now))
	todaySales, err := s.repo.SumSalesBetween(ctx, from, to)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	local := now.In(s.windowing.Location())
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.windowing.Location()).UTC()
	newCustomers, err := s.repo.CountCustomersSince(ctx, monthStart)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	return domain.DashboardStats{
		LowStockProducts:  lowStock,
		TodaySalesCents:   todaySales,
		NewCustomersMonth: newCustomers,
	}, nil
}

// SalesReport summarizes sales for the admin dashboard: today's and this
// month's totals, per-seller breakdowns, and an eight-week trend.
func (s *Service) SalesReport(ctx context.Context) (domain.SalesReport, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.SalesReport{}, err
	}

	now := time.Now().UTC()
	loc := s.windowing.Location()
	local := now.In(loc)

	dayStart, dayEnd := s.windowing.WindowOf(s.windowing.Today(now))
	weekStart := dayStart.Add(-time.Duration(int(local.Weekday())) * 24 * time.Hour)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc).UTC()
	trendStart := dayEnd.Add(-8 * 7 * 24 * time.Hour)

	report := domain.SalesReport{}

	daily, err := s.repo.SumSalesBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return domain.SalesReport{}, err
	}
	report.DailyTotalCents = daily

	weekly, err := s.repo.SumSalesBetween(ctx, weekStart, dayEnd)
	if err != nil {
		return domain.SalesReport{}, err
	}
	report.WeeklyTotalCents = weekly

	monthSales, err := s.repo.ListSalesBetween(ctx, monthStart, dayEnd)
	if err != nil {
		return domain.SalesReport{}, err
	}
	monthBySeller := make(map[string]int64)
	for _, sale := range monthSales {
		report.MonthlyTotalCents += sale.TotalCents
		monthBySeller[sale.SellerName] += sale.TotalCents
	}
	report.MonthBySeller = make([]domain.SellerTotalRow, 0, len(monthBySeller))
	for seller, total := range monthBySeller {
		report.MonthBySeller = append(report.MonthBySeller, domain.SellerTotalRow{SellerName: seller, TotalCents: total})
	}
	sort.Slice(report.MonthBySeller, func(i, j int) bool {
		return report.MonthBySeller[i].TotalCents > report.MonthBySeller[j].TotalCents
	})

	todaySales, err := s.repo.ListSalesBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return domain.SalesReport{}, err
	}
	type sellerTender struct {
		seller string
		tender string
	}
	todayRows := make(map[sellerTender]int64)
	for _, sale := range todaySales {
		todayRows[sellerTender{sale.SellerName, sale.TenderLabel}] += sale.TotalCents
	}
	report.TodayBySeller = make([]domain.SellerTenderRow, 0, len(todayRows))
	for key, total := range todayRows {
		report.TodayBySeller = append(report.TodayBySeller, domain.SellerTenderRow{
			SellerName:  key.seller,
			TenderLabel: key.tender,
			TotalCents:  total,
		})
	}
	sort.Slice(report.TodayBySeller, func(i, j int) bool {
		if report.TodayBySeller[i].SellerName == report.TodayBySeller[j].SellerName {
			return report.TodayBySeller[i].TenderLabel < report.TodayBySeller[j].TenderLabel
		}
		return report.TodayBySeller[i].SellerName < report.TodayBySeller[j].SellerName
	})

	trendSales, err := s.repo.ListSalesBetween(ctx, trendStart, dayEnd)
	if err != nil {
		return domain.SalesReport{}, err
	}
	weekTotals := make(map[string]int64)
	for _, sale := range trendSales {
		year, week := sale.CreatedAt.In(loc).ISOWeek()
		weekTotals[fmt.Sprintf("%d-W%02d", year, week)] += sale.TotalCents
	}
	report.WeeklyTrend = make([]domain.WeekBucket, 0, len(weekTotals))
	for week, total := range weekTotals {
		report.WeeklyTrend = append(report.WeeklyTrend, domain.WeekBucket{Week: week, TotalCents: total})
	}
	sort.Slice(report.WeeklyTrend, func(i, j int) bool {
		return report.WeeklyTrend[i].Week < report.WeeklyTrend[j].Week
	})

	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse(shift.DayFormat, date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entity string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:        xid.New("audit"),
		Actor:     actor.Username,
		ActorRole: actor.Role,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entity, entityID, err)
	}
}

// VerifyCredentials checks a username/password pair and returns the account
// when the login is valid and active.
func (s *Service) VerifyCredentials(ctx context.Context, username string, password string) (domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	account, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.UserAccount{}, fmt.Errorf("%w: invalid credentials", store.ErrPermissionDenied)
		}
		return domain.UserAccount{}, err
	}
	if !account.Active {
		return domain.UserAccount{}, fmt.Errorf("%w: account disabled", store.ErrPermissionDenied)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: invalid credentials", store.ErrPermissionDenied)
	}
	return *account, nil
}
