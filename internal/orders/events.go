package orders

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventReleaseRequested   = "inventory.release_requested"
)

// ---- Payload tipe per event ----

type ItemQty struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type ItemSnapshot struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID      string         `json:"order_id"`
	UserID       int64          `json:"user_id"`
	TotalAmount  string         `json:"total_amount"`
	Items        []ItemSnapshot `json:"items"`
	CustomerInfo CustomerInfo   `json:"customer_info"`
}

type StatusChangedPayload struct {
	OrderID   string `json:"order_id"`
	UserID    int64  `json:"user_id"`
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
}

type OrderCancelledPayload struct {
	OrderID string    `json:"order_id"`
	UserID  int64     `json:"user_id"`
	Items   []ItemQty `json:"items"`
	// PendingRelease lists lines whose release was handed to reconciliation.
	PendingRelease []ItemQty `json:"pending_release,omitempty"`
}

type ReleaseRequestedPayload struct {
	OrderID   string `json:"order_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"` // e.g., saga_compensation | order_cancelled
}

func CreatedPayload(o *Order, info CustomerInfo) OrderCreatedPayload {
	items := make([]ItemSnapshot, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemSnapshot{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.UnitPrice.StringFixed(2),
		})
	}
	return OrderCreatedPayload{
		OrderID:      o.ID,
		UserID:       o.UserID,
		TotalAmount:  o.TotalAmount.StringFixed(2),
		Items:        items,
		CustomerInfo: info,
	}
}

func (o *Order) Lines() []ItemQty {
	out := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, ItemQty{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

// EventKey is the partition key of each payload: all events of one order
// share a partition, reconciliation requests are keyed by product.
func (p OrderCreatedPayload) EventKey() string     { return p.OrderID }
func (p StatusChangedPayload) EventKey() string    { return p.OrderID }
func (p OrderCancelledPayload) EventKey() string   { return p.OrderID }
func (p ReleaseRequestedPayload) EventKey() string { return string(ProductKey(p.ProductID)) }
