package domain

import "time"

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)

// GenericCustomerID is the walk-in/cash customer every sale defaults to.
// The row is seeded at install time and can never be deleted.
const GenericCustomerID int64 = 1

type Actor struct {
	Username string
	Role     string
}

type Product struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Brand          string `json:"brand,omitempty"`
	Quantity       int    `json:"quantity"`
	SalePriceCents int64  `json:"sale_price_cents"`
	CostPriceCents int64  `json:"cost_price_cents"`
	MinStock       int    `json:"min_stock"`
}

type ProductCreateRequest struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Brand          string `json:"brand"`
	Quantity       int    `json:"quantity"`
	SalePriceCents int64  `json:"sale_price_cents"`
	CostPriceCents int64  `json:"cost_price_cents"`
	MinStock       int    `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Code           *string `json:"code,omitempty"`
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	Brand          *string `json:"brand,omitempty"`
	Quantity       *int    `json:"quantity,omitempty"`
	SalePriceCents *int64  `json:"sale_price_cents,omitempty"`
	CostPriceCents *int64  `json:"cost_price_cents,omitempty"`
	MinStock       *int    `json:"min_stock,omitempty"`
}

type RestockRequest struct {
	Code string `json:"code"`
	Qty  int    `json:"qty"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Email   string `json:"email"`
}

type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
	Role       string `json:"role"`
	Active     bool   `json:"active"`
}

// UserAccount is the persistence model carrying the credential hash.
type UserAccount struct {
	User
	PasswordHash string `json:"-"`
}

type UserCreateRequest struct {
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
	Role       string `json:"role"`
	Password   string `json:"password"`
}

type UserUpdateRequest struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      *string `json:"role,omitempty"`
	Password  *string `json:"password,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	Username    string `json:"username"`
	ExpiresAt   string `json:"expires_at"`
}

type SaleLineInput struct {
	ProductID      int64 `json:"product_id"`
	Qty            int   `json:"qty"`
	UnitPriceCents int64 `json:"unit_price_cents"`
}

type SaleLine struct {
	SaleID         int64  `json:"sale_id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name,omitempty"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Sale struct {
	ID           int64      `json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	TotalCents   int64      `json:"total_cents"`
	SellerID     int64      `json:"seller_id"`
	SellerName   string     `json:"seller_name,omitempty"`
	CustomerID   int64      `json:"customer_id"`
	CustomerName string     `json:"customer_name,omitempty"`
	TenderLabel  string     `json:"tender_label"`
	PaymentBlob  string     `json:"-"`
	Lines        []SaleLine `json:"lines,omitempty"`
}

type SaleCreateRequest struct {
	CustomerID         int64            `json:"customer_id"`
	Lines              []SaleLineInput  `json:"lines"`
	Payments           map[string]int64 `json:"payments"`
	ReferenceCode      string           `json:"reference_code"`
	ReferenceDate      string           `json:"reference_date"`
	DeclaredTotalCents int64            `json:"declared_total_cents"`
}

type SaleHeaderUpdateRequest struct {
	CustomerID    int64            `json:"customer_id"`
	SellerID      int64            `json:"seller_id"`
	Payments      map[string]int64 `json:"payments"`
	ReferenceCode string           `json:"reference_code"`
	ReferenceDate string           `json:"reference_date"`
}

type SaleLinesUpdateRequest struct {
	Lines []SaleLineInput `json:"lines"`
}

// ReceiptPayment is one payment-method row as printed on a receipt.
// Reference fields are present only for traceable non-cash methods.
type ReceiptPayment struct {
	Method        string `json:"method"`
	Label         string `json:"label"`
	AmountCents   int64  `json:"amount_cents"`
	ReferenceCode string `json:"reference_code,omitempty"`
	ReferenceDate string `json:"reference_date,omitempty"`
}

type Receipt struct {
	Sale      Sale              `json:"sale"`
	LocalTime string            `json:"local_time"`
	Lines     []SaleLine        `json:"lines"`
	Payments  []ReceiptPayment  `json:"payments"`
	Formatted map[string]string `json:"formatted,omitempty"`
}

type SellerShiftTotal struct {
	SellerID   int64  `json:"seller_id"`
	SellerName string `json:"seller_name"`
	TotalCents int64  `json:"total_cents"`
	CashCents  int64  `json:"cash_cents"`
}

type ShiftTotals struct {
	BusinessDay    string             `json:"business_day"`
	TotalCents     int64              `json:"total_cents"`
	CashCents      int64              `json:"cash_cents"`
	NonCashCents   int64              `json:"non_cash_cents"`
	ByMethod       map[string]int64   `json:"by_method"`
	BySeller       []SellerShiftTotal `json:"by_seller"`
	SaleCount      int                `json:"sale_count"`
	UndecodedSales int                `json:"undecoded_sales"`
}

type CashClosing struct {
	ID           int64     `json:"id"`
	BusinessDay  string    `json:"business_day"`
	TotalCents   int64     `json:"total_cents"`
	CashCents    int64     `json:"cash_cents"`
	NonCashCents int64     `json:"non_cash_cents"`
	Snapshot     string    `json:"snapshot"`
	ClosedBy     string    `json:"closed_by"`
	ClosedAt     time.Time `json:"closed_at"`
}

type CloseRegisterRequest struct {
	BusinessDay string `json:"business_day"`
}

type DashboardStats struct {
	LowStockProducts  int   `json:"low_stock_products"`
	TodaySalesCents   int64 `json:"today_sales_cents"`
	NewCustomersMonth int   `json:"new_customers_month"`
}

type SellerTenderRow struct {
	SellerName  string `json:"seller_name"`
	TenderLabel string `json:"tender_label"`
	TotalCents  int64  `json:"total_cents"`
}

type SellerTotalRow struct {
	SellerName string `json:"seller_name"`
	TotalCents int64  `json:"total_cents"`
}

type WeekBucket struct {
	Week       string `json:"week"`
	TotalCents int64  `json:"total_cents"`
}

type SalesReport struct {
	DailyTotalCents   int64             `json:"daily_total_cents"`
	WeeklyTotalCents  int64             `json:"weekly_total_cents"`
	MonthlyTotalCents int64             `json:"monthly_total_cents"`
	TodayBySeller     []SellerTenderRow `json:"today_by_seller"`
	MonthBySeller     []SellerTotalRow  `json:"month_by_seller"`
	WeeklyTrend       []WeekBucket      `json:"weekly_trend"`
}

type AuditLog struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	ActorRole string    `json:"actor_role"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
