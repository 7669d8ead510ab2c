package httpx

import (
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type itemView struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	Subtotal    string `json:"subtotal"`
}

type orderView struct {
	ID              string        `json:"id"`
	UserID          int64         `json:"user_id"`
	Status          orders.Status `json:"status"`
	TotalAmount     string        `json:"total_amount"`
	TotalItems      int           `json:"total_items"`
	ShippingAddress string        `json:"shipping_address"`
	UserEmail       string        `json:"user_email"`
	UserName        string        `json:"user_name"`
	Items           []itemView    `json:"items"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func viewOrder(o *orders.Order) orderView {
	items := make([]itemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemView{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.UnitPrice.StringFixed(2),
			Subtotal:    it.Subtotal().StringFixed(2),
		})
	}
	return orderView{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		TotalItems:      o.TotalQuantity(),
		ShippingAddress: o.ShippingAddress,
		UserEmail:       o.UserEmail,
		UserName:        o.UserName,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type statsView struct {
	TotalOrders int                   `json:"total_orders"`
	ByStatus    map[orders.Status]int `json:"by_status"`
	TotalSpent  string                `json:"total_spent"`
}

func viewStats(s orders.Stats) statsView {
	return statsView{TotalOrders: s.Total, ByStatus: s.ByStatus, TotalSpent: s.TotalSpent.StringFixed(2)}
}
