package store

import (
	"context"
	"errors"
	"time"

	"cosmetiquera/backend/internal/domain"
)

var (
	// ErrNotFound is wrapped with entity context by callers
	// ("sale 42: not found").
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPaymentMismatch   = errors.New("payment does not match sale total")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrAlreadyClosed     = errors.New("register already closed for this day")
	ErrDuplicateKey      = errors.New("duplicate key")
)

// SaleInsert is the unit handed to CreateSale: header fields plus the full
// line set, committed atomically with the stock decrements.
type SaleInsert struct {
	CreatedAt   time.Time
	TotalCents  int64
	SellerID    int64
	CustomerID  int64
	TenderLabel string
	PaymentBlob string
	Lines       []domain.SaleLineInput
}

type Repository interface {
	// Products
	ListProducts(ctx context.Context, search string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductByCode(ctx context.Context, code string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AddStock(ctx context.Context, productID int64, qty int) (*domain.Product, error)
	ListLowStock(ctx context.Context) ([]domain.Product, error)
	CountLowStock(ctx context.Context) (int, error)

	// Customers
	ListCustomers(ctx context.Context, search string) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	CountCustomersSince(ctx context.Context, since time.Time) (int, error)

	// Sales. CreateSale decrements stock with a conditional update per
	// line; any failure rolls the whole sale back. ReplaceSaleLines
	// applies per-product deltas the same way and swaps the line set
	// wholesale. VoidSale restores stock and hard-deletes the sale.
	CreateSale(ctx context.Context, ins SaleInsert) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error)
	ListSalesBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)
	ReplaceSaleLines(ctx context.Context, saleID int64, lines []domain.SaleLineInput, newTotal int64, tenderLabel string) (*domain.Sale, error)
	UpdateSaleHeader(ctx context.Context, saleID int64, customerID int64, sellerID int64, tenderLabel string, paymentBlob string) (*domain.Sale, error)
	VoidSale(ctx context.Context, id int64) error
	SumSalesBetween(ctx context.Context, from time.Time, to time.Time) (int64, error)

	// Cash closings
	GetCashClosing(ctx context.Context, businessDay string) (*domain.CashClosing, error)
	UpsertCashClosing(ctx context.Context, closing domain.CashClosing, overwrite bool) (*domain.CashClosing, error)

	// Users
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUser(ctx context.Context, id int64) (*domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	CreateUser(ctx context.Context, u domain.UserAccount) (*domain.UserAccount, error)
	UpdateUser(ctx context.Context, u domain.UserAccount) (*domain.UserAccount, error)
	DeleteUser(ctx context.Context, id int64) error
	CountAdmins(ctx context.Context) (int, error)

	// Audit
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
