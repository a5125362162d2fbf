package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TicketState is the validity state of an issued ticket. The client only
// reads it; the authoritative transitions live on the backend.
type TicketState string

const (
	TicketValid  TicketState = "VALID"
	TicketUsed   TicketState = "USED"
	TicketVoided TicketState = "VOIDED"
)

// ParseTicketState normalizes a wire value into a TicketState. The backend
// historically emitted Spanish enum names, so those are accepted too.
func ParseTicketState(s string) (TicketState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VALID", "VALIDO", "VÁLIDO":
		return TicketValid, nil
	case "USED", "USADO":
		return TicketUsed, nil
	case "VOIDED", "ANULADO":
		return TicketVoided, nil
	}
	return "", fmt.Errorf("unknown ticket state %q", s)
}

// CanTransition reports whether moving from s to next is a legal transition.
// VALID may become USED or VOIDED; USED and VOIDED are terminal.
func (s TicketState) CanTransition(next TicketState) bool {
	if s == next {
		return true
	}
	return s == TicketValid && (next == TicketUsed || next == TicketVoided)
}

func (s *TicketState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTicketState(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Ticket is a proof-of-purchase record as served by the backend. Event name,
// start and image are denormalized for display; PricePaid is the historical
// price at purchase, not the event's current price. Timestamps stay in the
// backend's ISO-8601 string form and are only formatted for display.
type Ticket struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"usuarioId"`
	EventID     int64       `json:"eventoId"`
	EventName   string      `json:"eventoNombre"`
	EventImage  string      `json:"eventoImagen,omitempty"`
	EventStart  string      `json:"eventoInicio"`
	QRCode      string      `json:"codigoQR"`
	PurchasedAt string      `json:"fechaCompra"`
	PricePaid   float64     `json:"precioPagado"`
	State       TicketState `json:"estado"`
}

// TicketQR is the on-demand QR lookup for one ticket. Image is an image
// reference (URL, server path or base64); Payload is the opaque scannable
// token the validation boundary understands.
type TicketQR struct {
	Image   string `json:"codigoQR"`
	Payload string `json:"contenidoQR"`
}
