package models

// CartItem is one line of a cart. Event name and unit price are snapshotted
// by the backend at add time; the client never re-derives them from the event.
type CartItem struct {
	ID         int64   `json:"id"`
	EventID    int64   `json:"eventoId"`
	EventName  string  `json:"nombreEvento"`
	EventImage string  `json:"imagenEvento,omitempty"`
	UnitPrice  float64 `json:"precioUnitario"`
	Quantity   int     `json:"cantidad"`
}

func (i CartItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

type Cart struct {
	ID     int64      `json:"id"`
	UserID int64      `json:"usuarioId"`
	Items  []CartItem `json:"items"`
}

// IsEmpty reports whether the cart has no lines. An empty cart blocks checkout.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}
