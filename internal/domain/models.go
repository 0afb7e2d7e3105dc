package domain

type Product struct {
	ID          string  `db:"id" json:"id"`
	Slug        string  `db:"slug" json:"slug"`
	Title       string  `db:"title" json:"title"`
	Description string  `db:"description" json:"description,omitempty"`
	Price       float64 `db:"price" json:"price"`
	Stock       int     `db:"stock" json:"stock,omitempty"`
	Available   bool    `db:"available" json:"available"`
	CreatedAt   string  `db:"created_at" json:"-"`
	UpdatedAt   string  `db:"updated_at" json:"-"`
}

// Purchasable is the effective availability: the operator flag can force a
// product off the shelf, and zero stock always does.
func (p Product) Purchasable() bool { return p.Available && p.Stock > 0 }

type CartItem struct {
	ProductID string  `db:"product_id" json:"productId"`
	Slug      string  `db:"slug" json:"slug"`
	Title     string  `db:"title" json:"title"`
	Quantity  int     `db:"qty" json:"quantity"`
	Price     float64 `db:"price_at_add" json:"price"`
	ItemTotal float64 `db:"item_total" json:"itemTotal"`
}

// Cart is one user's cart document. TotalAfterCode is always
// TotalPrice - Savings; totals and discount are rewritten from scratch on
// every mutation, never adjusted incrementally.
type Cart struct {
	UserID         string     `json:"-"`
	Items          []CartItem `json:"items"`
	VoucherCode    string     `json:"voucher,omitempty"`
	TotalPrice     float64    `json:"totalPrice"`
	Savings        float64    `json:"savings"`
	TotalAfterCode float64    `json:"totalPriceAfterCode"`
}

// Order statuses, strictly forward-moving. DELIVERED is terminal.
const (
	StatusPending   = "PENDING"
	StatusPreparing = "PREPARING"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusPreparing, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// Order is an immutable snapshot taken at checkout; only Status moves after
// creation. CustomerName/Email are joined in from the owning user for
// notification sends.
type Order struct {
	ID              string  `db:"id" json:"id"`
	UserID          string  `db:"user_id" json:"-"`
	TotalPrice      float64 `db:"total_price" json:"totalPrice"`
	VoucherCode     string  `db:"voucher_code" json:"voucher,omitempty"`
	Savings         float64 `db:"savings" json:"savings"`
	TotalAfterCode  float64 `db:"total_after_code" json:"totalPriceAfterCode"`
	DeliveryAddress string  `db:"delivery_address" json:"deliveryAddress"`
	PaymentMethod   string  `db:"payment_method" json:"paymentMethod"`
	Status          string  `db:"status" json:"status"`
	CreatedAt       string  `db:"created_at" json:"createdAt"`
	CustomerName    string  `db:"customer_name" json:"-"`
	CustomerEmail   string  `db:"customer_email" json:"-"`
}

type OrderItem struct {
	OrderID   string  `db:"order_id" json:"-"`
	ProductID string  `db:"product_id" json:"productId"`
	Title     string  `db:"title" json:"title"`
	Quantity  int     `db:"qty" json:"quantity"`
	Price     float64 `db:"price" json:"price"`
}
