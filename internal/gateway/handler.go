package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"showpass-core/internal/backend"
	"showpass-core/internal/cart"
	"showpass-core/internal/checkout"
	"showpass-core/internal/logger"
	"showpass-core/internal/models"
	"showpass-core/internal/receipt"
	"showpass-core/internal/scan"
	"showpass-core/internal/session"
	"showpass-core/internal/tickets"
)

// userServices is the per-user bundle rebuilt on every identity change. The
// bundle holds all local purchase state, so switching users can never leak
// one user's cart or tickets into another's view.
type userServices struct {
	userID   int64
	cart     *cart.Store
	registry *tickets.Registry
	checkout *checkout.Service
	receipts *receipt.Pipeline
}

// Handler is the HTTP facade the web client talks to. It owns the session
// store and hands every request to the signed-in user's service bundle.
type Handler struct {
	Sessions  *session.Store
	Backend   *backend.Client
	Publisher checkout.PurchasePublisher
	Generator receipt.DocumentGenerator
	Images    receipt.ImageLoader
	Log       *logger.Logger

	viewer *scan.Viewer

	mu       sync.Mutex
	services *userServices
}

func NewHandler(sessions *session.Store, client *backend.Client, publisher checkout.PurchasePublisher, gen receipt.DocumentGenerator, images receipt.ImageLoader, log *logger.Logger) *Handler {
	return &Handler{
		Sessions:  sessions,
		Backend:   client,
		Publisher: publisher,
		Generator: gen,
		Images:    images,
		Log:       log,
		viewer:    scan.NewViewer(client, log),
	}
}

// Routes mounts the facade under a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	r.Post("/session", h.SignIn)
	r.Delete("/session", h.SignOut)
	r.Get("/session", h.CurrentSession)

	r.Get("/cart", h.GetCart)
	r.Post("/cart/items", h.AddCartItem)
	r.Delete("/cart/items/{itemID}", h.RemoveCartItem)
	r.Delete("/cart", h.ClearCart)
	r.Post("/cart/checkout", h.Checkout)

	r.Get("/tickets", h.ListTickets)
	r.Delete("/tickets/{ticketID}", h.DeleteTicket)
	r.Delete("/tickets", h.ClearTickets)
	r.Get("/tickets/{ticketID}/receipt", h.DownloadReceipt)
	r.Post("/tickets/{ticketID}/email", h.EmailReceipt)

	r.Get("/recommendations", h.Recommendations)
	r.Get("/events/{eventID}/similar", h.SimilarEvents)

	r.Post("/scan/validate", h.ValidateScan)
	r.Post("/scan/acknowledge", h.AcknowledgeScan)

	return r
}

// current resolves the signed-in user's service bundle, building a fresh one
// when the identity changed since the last request.
func (h *Handler) current(r *http.Request) (*userServices, error) {
	sess, err := h.Sessions.Current(r.Context())
	if err != nil {
		return nil, err
	}
	if sess.IsLoggedOut() {
		return nil, errNotSignedIn
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.services != nil && h.services.userID == sess.UserID {
		return h.services, nil
	}

	cartStore := cart.NewStore(h.Backend, h.Log, sess.UserID)
	registry := tickets.NewRegistry(h.Backend, h.Log, sess.UserID)
	h.services = &userServices{
		userID:   sess.UserID,
		cart:     cartStore,
		registry: registry,
		checkout: checkout.NewService(h.Backend, cartStore, registry, h.Publisher, h.Log),
		receipts: receipt.NewPipeline(h.Backend, h.Generator, h.Images, registry, h.Log),
	}
	return h.services, nil
}

var errNotSignedIn = fmt.Errorf("not signed in")

func (h *Handler) unauthorized(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	if err == errNotSignedIn {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse("Sign in first", err.Error()))
	} else {
		writeError(w, "Failed to resolve session", err)
	}
	return true
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid request body", "token is required"))
		return
	}

	sess, err := h.Sessions.SignIn(r.Context(), req.Token, req.Email)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Sign in failed", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Signed in", sess))
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.SignOut(r.Context()); err != nil {
		writeError(w, "Sign out failed", err)
		return
	}
	h.mu.Lock()
	h.services = nil
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, SuccessResponse("Signed out", nil))
}

func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Current(r.Context())
	if err != nil {
		writeError(w, "Failed to resolve session", err)
		return
	}
	if sess.IsLoggedOut() {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse("Sign in first", "no active session"))
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Active session", sess))
}

// cartLine pairs a cart item with its display subtotal; the cart total
// itself stays backend-computed.
type cartLine struct {
	models.CartItem
	Subtotal float64 `json:"subtotal"`
}

type cartView struct {
	Cart  models.Cart `json:"carrito"`
	Lines []cartLine  `json:"lineas"`
	Total float64     `json:"total"`
}

func newCartView(c models.Cart, total float64) cartView {
	lines := make([]cartLine, len(c.Items))
	for i, item := range c.Items {
		lines[i] = cartLine{CartItem: item, Subtotal: item.Subtotal()}
	}
	return cartView{Cart: c, Lines: lines, Total: total}
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	current, total, err := svc.cart.Load(r.Context())
	if err != nil {
		writeError(w, "Failed to load cart", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Cart loaded", newCartView(current, total)))
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	var req struct {
		EventID  int64 `json:"eventoId"`
		Quantity int   `json:"cantidad"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid request body", err.Error()))
		return
	}
	current, total, err := svc.cart.AddItem(r.Context(), req.EventID, req.Quantity)
	if err != nil {
		writeError(w, "Failed to add item", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Item added", newCartView(current, total)))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid item id", err.Error()))
		return
	}
	current, total, err := svc.cart.RemoveItem(r.Context(), itemID)
	if err != nil {
		writeError(w, "Failed to remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Item removed", newCartView(current, total)))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	current, total, err := svc.cart.Clear(r.Context())
	if err != nil {
		writeError(w, "Failed to clear cart", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Cart cleared", newCartView(current, total)))
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	// A fresh bundle has no local cart yet; sync before the empty check.
	if svc.cart.Empty() {
		if _, _, err := svc.cart.Load(r.Context()); err != nil {
			writeError(w, "Failed to load cart", err)
			return
		}
	}
	summary, err := svc.checkout.Finalize(r.Context())
	if err != nil {
		writeError(w, "Checkout failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Purchase completed", summary))
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	list, err := svc.registry.Load(r.Context())
	if err != nil {
		writeError(w, "Failed to load tickets", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Tickets loaded", list))
}

// confirmed maps the UI's dismissible confirm step onto the query string:
// the destructive ticket routes demand confirm=true.
func confirmed(r *http.Request) bool {
	return r.URL.Query().Get("confirm") == "true"
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	ticketID, err := pathID(r, "ticketID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid ticket id", err.Error()))
		return
	}

	var confirm tickets.Confirmation
	if confirmed(r) {
		confirm = tickets.ConfirmDestructive()
	}
	if err := svc.registry.Delete(r.Context(), ticketID, confirm); err != nil {
		writeError(w, "Failed to delete ticket", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Ticket deleted", nil))
}

func (h *Handler) ClearTickets(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	var confirm tickets.Confirmation
	if confirmed(r) {
		confirm = tickets.ConfirmDestructive()
	}
	if err := svc.registry.ClearAll(r.Context(), confirm); err != nil {
		writeError(w, "Failed to clear tickets", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Tickets cleared", nil))
}

func (h *Handler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	ticketID, err := pathID(r, "ticketID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid ticket id", err.Error()))
		return
	}
	ticket, ok := h.ticketByID(r, svc, ticketID)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse("Ticket not found", fmt.Sprintf("no ticket %d", ticketID)))
		return
	}

	doc, err := svc.receipts.Build(r.Context(), ticket)
	if err != nil {
		writeError(w, "Failed to build receipt", err)
		return
	}
	svc.registry.MarkExported(ticket.ID)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", receipt.Filename(ticket.EventName, ticket.ID)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) EmailReceipt(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	ticketID, err := pathID(r, "ticketID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid ticket id", err.Error()))
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid request body", err.Error()))
		return
	}
	ticket, ok := h.ticketByID(r, svc, ticketID)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse("Ticket not found", fmt.Sprintf("no ticket %d", ticketID)))
		return
	}

	if err := svc.receipts.SendByEmail(r.Context(), ticket, req.Email); err != nil {
		writeError(w, "Failed to send receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Receipt sent", nil))
}

func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	svc, err := h.current(r)
	if h.unauthorized(w, err) {
		return
	}
	events, err := h.Backend.RecommendationsForUser(r.Context(), svc.userID)
	if err != nil {
		writeError(w, "Failed to load recommendations", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Recommendations loaded", events))
}

func (h *Handler) SimilarEvents(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid event id", err.Error()))
		return
	}
	events, err := h.Backend.RecommendationsForEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, "Failed to load similar events", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse("Similar events loaded", events))
}

type scanView struct {
	State   string `json:"estado"`
	Message string `json:"mensaje,omitempty"`
}

// ValidateScan runs one QR validation round trip. The scan routes are not
// session-gated: the validation boundary authenticates scans on its own.
func (h *Handler) ValidateScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload string `json:"codigoQR"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.Payload == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("Invalid request body", "codigoQR is required"))
		return
	}

	state := h.viewer.Validate(r.Context(), req.Payload)
	writeJSON(w, http.StatusOK, SuccessResponse("Scan evaluated", scanView{
		State:   state.String(),
		Message: h.viewer.Message(),
	}))
}

func (h *Handler) AcknowledgeScan(w http.ResponseWriter, r *http.Request) {
	h.viewer.Acknowledge()
	writeJSON(w, http.StatusOK, SuccessResponse("Scanner ready", scanView{State: h.viewer.State().String()}))
}

// ticketByID looks the ticket up locally, pulling a fresh load first when
// the registry hasn't been populated in this bundle yet.
func (h *Handler) ticketByID(r *http.Request, svc *userServices, ticketID int64) (models.Ticket, bool) {
	if ticket, ok := svc.registry.Get(ticketID); ok {
		return ticket, true
	}
	if _, err := svc.registry.Load(r.Context()); err != nil {
		return models.Ticket{}, false
	}
	return svc.registry.Get(ticketID)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric, got %q", name, raw)
	}
	return id, nil
}

// requestLogger is the access log middleware.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.Log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start).String())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
