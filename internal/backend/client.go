package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"showpass-core/internal/logger"
	"showpass-core/internal/models"
)

// Client speaks the ShowPass backend's JSON contract. It is the single place
// where paths, field names and status codes are known; the stores above it
// only see models and the error taxonomy. The backend stays the authority on
// totals, prices and ticket state - nothing here computes them.
type Client struct {
	baseURL           string
	recommendationURL string
	validationURL     string
	http              *http.Client
	events            *EventCache
	log               *logger.Logger
}

func NewClient(baseURL, recommendationURL, validationURL string, httpClient *http.Client, events *EventCache, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		recommendationURL: strings.TrimRight(recommendationURL, "/"),
		validationURL:     strings.TrimRight(validationURL, "/"),
		http:              httpClient,
		events:            events,
		log:               log,
	}
}

// ---------------- CART ----------------

func (c *Client) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	url := fmt.Sprintf("%s/carrito/%d", c.baseURL, userID)
	if err := c.do(ctx, "get cart", http.MethodGet, url, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) GetCartTotal(ctx context.Context, userID int64) (float64, error) {
	var total float64
	url := fmt.Sprintf("%s/carrito/total/%d", c.baseURL, userID)
	if err := c.do(ctx, "get cart total", http.MethodGet, url, nil, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (c *Client) AddCartItem(ctx context.Context, userID, eventID int64, quantity int) (*models.Cart, error) {
	body, err := json.Marshal(map[string]int{"cantidad": quantity})
	if err != nil {
		return nil, fmt.Errorf("failed to encode add-item request: %w", err)
	}
	var cart models.Cart
	url := fmt.Sprintf("%s/carrito/agregar/%d/%d", c.baseURL, userID, eventID)
	if err := c.do(ctx, "add cart item", http.MethodPost, url, bytes.NewReader(body), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) RemoveCartItem(ctx context.Context, userID, itemID int64) (*models.Cart, error) {
	var cart models.Cart
	url := fmt.Sprintf("%s/carrito/eliminar/%d/%d", c.baseURL, userID, itemID)
	if err := c.do(ctx, "remove cart item", http.MethodDelete, url, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) ClearCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	url := fmt.Sprintf("%s/carrito/vaciar/%d", c.baseURL, userID)
	if err := c.do(ctx, "clear cart", http.MethodDelete, url, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// FinalizeCart issues the single finalize exchange. The response body is an
// opaque confirmation and is deliberately discarded: the authoritative
// ticket set comes from a fresh TicketsByUser reload afterwards. intentKey
// rides along so the backend can drop an accidental duplicate submit.
func (c *Client) FinalizeCart(ctx context.Context, userID int64, intentKey string) error {
	url := fmt.Sprintf("%s/carrito/finalizar/%d", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("finalize cart: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Purchase-Intent", intentKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "finalize cart", Err: err}
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.serviceError("finalize cart", resp)
	}
	return nil
}

// ---------------- TICKETS ----------------

func (c *Client) TicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error) {
	var tickets []models.Ticket
	url := fmt.Sprintf("%s/ticket/findByUsuarioId/%d", c.baseURL, userID)
	if err := c.do(ctx, "load tickets", http.MethodGet, url, nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *Client) DeleteTicket(ctx context.Context, ticketID int64) error {
	url := fmt.Sprintf("%s/ticket/delete/%d", c.baseURL, ticketID)
	err := c.do(ctx, "delete ticket", http.MethodDelete, url, nil, nil)
	if svcErr, ok := err.(*ServiceError); ok && svcErr.StatusCode == http.StatusNotFound {
		return &StateConflict{Op: "delete ticket", Resource: fmt.Sprintf("ticket %d", ticketID)}
	}
	return err
}

func (c *Client) DeleteTicketsByUser(ctx context.Context, userID int64) error {
	url := fmt.Sprintf("%s/ticket/delete/all/%d", c.baseURL, userID)
	return c.do(ctx, "delete all tickets", http.MethodDelete, url, nil, nil)
}

// TicketQR fetches the QR image reference and scannable payload on demand.
// QR data is never embedded in the ticket list payload.
func (c *Client) TicketQR(ctx context.Context, ticketID int64) (*models.TicketQR, error) {
	var qr models.TicketQR
	url := fmt.Sprintf("%s/ticket/qr/%d", c.baseURL, ticketID)
	if err := c.do(ctx, "get ticket qr", http.MethodGet, url, nil, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

// ---------------- EVENTS ----------------

// EventByID reads through the snapshot cache when one is configured.
// Snapshots only feed receipt assembly and recommendation display, so a
// short TTL of staleness is acceptable there; ticket state never goes
// through this path.
func (c *Client) EventByID(ctx context.Context, eventID int64) (*models.Event, error) {
	if cached := c.events.Get(ctx, eventID); cached != nil {
		return cached, nil
	}

	var event models.Event
	url := fmt.Sprintf("%s/evento/findById/%d", c.baseURL, eventID)
	if err := c.do(ctx, "get event", http.MethodGet, url, nil, &event); err != nil {
		return nil, err
	}

	c.events.Put(ctx, &event)
	return &event, nil
}

// ---------------- RECOMMENDATIONS ----------------

// The recommendation service answers with event ids; the snapshots are
// joined in through EventByID. An id that fails to resolve is skipped, not
// fatal - recommendations are decoration, never load-bearing.
func (c *Client) RecommendationsForUser(ctx context.Context, userID int64) ([]models.Event, error) {
	var payload struct {
		EventIDs []int64 `json:"eventos_recomendados"`
	}
	url := fmt.Sprintf("%s/recommendations?userId=%d", c.recommendationURL, userID)
	if err := c.do(ctx, "get recommendations", http.MethodGet, url, nil, &payload); err != nil {
		return nil, err
	}
	return c.resolveEvents(ctx, payload.EventIDs), nil
}

func (c *Client) RecommendationsForEvent(ctx context.Context, eventID int64) ([]models.Event, error) {
	var payload struct {
		EventIDs []int64 `json:"eventos_similares"`
	}
	url := fmt.Sprintf("%s/recommendations/event?eventoId=%d", c.recommendationURL, eventID)
	if err := c.do(ctx, "get similar events", http.MethodGet, url, nil, &payload); err != nil {
		return nil, err
	}
	return c.resolveEvents(ctx, payload.EventIDs), nil
}

func (c *Client) resolveEvents(ctx context.Context, ids []int64) []models.Event {
	events := make([]models.Event, 0, len(ids))
	for _, id := range ids {
		event, err := c.EventByID(ctx, id)
		if err != nil {
			if c.log != nil {
				c.log.Warn("EVENTS", fmt.Sprintf("skipping recommended event %d: %v", id, err))
			}
			continue
		}
		events = append(events, *event)
	}
	return events
}

// ---------------- EMAIL RELAY ----------------

// EmailReceipt is the payload for the receipt email relay.
type EmailReceipt struct {
	Email     string `json:"email"`
	TicketID  string `json:"ticketId"`
	EventName string `json:"eventoNombre"`
	PDFBase64 string `json:"pdfBase64"`
}

func (c *Client) SendReceiptEmail(ctx context.Context, receipt EmailReceipt) error {
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to encode email payload: %w", err)
	}
	url := c.baseURL + "/carrito/enviarPdfEmail"
	return c.do(ctx, "send receipt email", http.MethodPost, url, bytes.NewReader(body), nil)
}

// ---------------- VALIDATION BOUNDARY ----------------

// ValidateTicket belongs to the independently-owned validation service and
// is consumed only by the QR viewer. A 2xx response carries a bare boolean:
// true means the ticket grants entry, false means readable but not usable.
func (c *Client) ValidateTicket(ctx context.Context, payload string) (bool, error) {
	body, err := json.Marshal(map[string]string{"codigoQR": payload})
	if err != nil {
		return false, fmt.Errorf("failed to encode validation payload: %w", err)
	}
	var valid bool
	url := c.validationURL + "/ticket/validar"
	if err := c.do(ctx, "validate ticket", http.MethodPost, url, bytes.NewReader(body), &valid); err != nil {
		return false, err
	}
	return valid, nil
}

// ---------------- PLUMBING ----------------

func (c *Client) do(ctx context.Context, op, method, url string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.serviceError(op, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func (c *Client) serviceError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if c.log != nil {
		c.log.Error("BACKEND", fmt.Sprintf("%s returned status %d", op, resp.StatusCode))
	}
	return &ServiceError{Op: op, StatusCode: resp.StatusCode, Body: string(snippet)}
}

func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil && c.log != nil {
		c.log.Error("BACKEND", fmt.Sprintf("failed to close response body: %v", err))
	}
}
