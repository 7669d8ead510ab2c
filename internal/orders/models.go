package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID              string          `json:"id"`
	UserID          int64           `json:"user_id"`
	Status          Status          `json:"status"` // lihat status.go
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	UserEmail       string          `json:"user_email"`
	UserName        string          `json:"user_name"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem is a snapshot of a cart line taken at creation time. It does not
// follow later catalog changes.
type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (o *Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// NewOrder builds a pending order from item snapshots. The total is the sum of
// line subtotals rounded to the cent.
func NewOrder(userID int64, address, email, name string, items []OrderItem) *Order {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	now := time.Now().UTC()
	return &Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Status:          StatusPending,
		TotalAmount:     total.Round(2),
		ShippingAddress: address,
		UserEmail:       email,
		UserName:        name,
		Items:           append([]OrderItem(nil), items...),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ---- collaborator snapshots ----

type CartLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"price"`
}

type Cart struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total_amount"`
}

type Identity struct {
	UserID    int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (id Identity) FullName() string {
	return strings.TrimSpace(id.FirstName + " " + id.LastName)
}

// CustomerInfo is optional contact data supplied with the order request. When
// present it takes precedence over the directory profile.
type CustomerInfo struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (c CustomerInfo) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type StatusChange struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from,omitempty"`
	To        Status    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

type Stats struct {
	Total      int             `json:"total_orders"`
	ByStatus   map[Status]int  `json:"by_status"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

func NewStats() Stats {
	by := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		by[s] = 0
	}
	return Stats{ByStatus: by, TotalSpent: decimal.Zero}
}

// Add folds one order into the aggregate. Cancelled orders do not count
// towards spend.
func (s *Stats) Add(o Order) {
	s.Total++
	s.ByStatus[o.Status]++
	if o.Status != StatusCancelled {
		s.TotalSpent = s.TotalSpent.Add(o.TotalAmount)
	}
}
