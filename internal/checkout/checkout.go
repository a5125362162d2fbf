package checkout

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"showpass-core/internal/backend"
	"showpass-core/internal/cart"
	"showpass-core/internal/logger"
	"showpass-core/internal/models"
	"showpass-core/internal/tickets"
)

// Phase tracks where the purchase flow is; after a successful finalize the
// client is in the recommendations phase even when the recommendation set
// came back empty.
type Phase int

const (
	PhaseCart Phase = iota
	PhaseRecommendations
)

// BackendClient is the slice of the boundary client checkout needs.
type BackendClient interface {
	FinalizeCart(ctx context.Context, userID int64, intentKey string) error
	TicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error)
	RecommendationsForUser(ctx context.Context, userID int64) ([]models.Event, error)
}

// PurchasePublisher streams completed purchases; publishing is best-effort
// and never fails a checkout.
type PurchasePublisher interface {
	PublishPurchaseCompleted(purchase models.PurchaseCompleted) error
}

// Summary is what the purchase-complete screen renders: the tickets issued
// by this checkout (ground truth from the post-finalize reload, not from the
// finalize response), their summed pricePaid, and the recommendations.
type Summary struct {
	NewTickets      []models.Ticket `json:"tickets"`
	Total           float64         `json:"total"`
	PurchasedEvents []models.Event  `json:"eventosComprados"`
	Recommendations []models.Event  `json:"eventosRecomendados"`
}

// Service runs the finalize protocol for one user's cart.
type Service struct {
	backend   BackendClient
	cart      *cart.Store
	registry  *tickets.Registry
	publisher PurchasePublisher
	log       *logger.Logger

	phase    atomic.Int32
	inFlight atomic.Bool
}

func NewService(client BackendClient, cartStore *cart.Store, registry *tickets.Registry, publisher PurchasePublisher, log *logger.Logger) *Service {
	return &Service{
		backend:   client,
		cart:      cartStore,
		registry:  registry,
		publisher: publisher,
		log:       log,
	}
}

func (s *Service) Phase() Phase {
	return Phase(s.phase.Load())
}

// ResetPhase returns the flow to the cart phase, e.g. when the user leaves
// the recommendations screen.
func (s *Service) ResetPhase() {
	s.phase.Store(int32(PhaseCart))
}

// Finalize turns a non-empty cart into issued tickets.
//
// The exchange is a single request with no client retry; the intent key
// lets the backend spot an accidental duplicate. On success the ticket list
// is re-fetched (strictly after finalize, never trusting the response body
// for ticket data), the purchase total is summed over the newly appeared
// tickets, the local cart resets, and the flow enters the recommendations
// phase. On failure the cart - local and remote - is untouched.
func (s *Service) Finalize(ctx context.Context) (*Summary, error) {
	if s.cart.Empty() {
		return nil, &backend.ValidationError{Reason: "cart is empty"}
	}

	// Debounce, not a correctness mechanism: the backend owns duplicate
	// prevention.
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, &backend.ValidationError{Reason: "checkout already in progress"}
	}
	defer s.inFlight.Store(false)

	userID := s.cart.UserID()

	// The summary is a diff against the pre-checkout ticket set. A registry
	// that was never populated would make every historical ticket look newly
	// purchased, so sync it before finalize touches anything.
	if !s.registry.Loaded() {
		if _, err := s.registry.Load(ctx); err != nil {
			return nil, fmt.Errorf("cannot snapshot existing tickets before checkout: %w", err)
		}
	}
	known := make(map[int64]bool)
	for _, id := range s.registry.IDs() {
		known[id] = true
	}

	intentKey := uuid.NewString()
	s.log.LogCheckout("FINALIZE", userID, fmt.Sprintf("intent=%s", intentKey))

	if err := s.backend.FinalizeCart(ctx, userID, intentKey); err != nil {
		s.log.Error("CHECKOUT", fmt.Sprintf("finalize failed for user %d: %v", userID, err))
		return nil, err
	}

	// Finalize succeeded: the backend cart is gone, so drop ours before
	// anything else can fail.
	s.cart.ResetLocal()

	fresh, err := s.backend.TicketsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("checkout succeeded but the ticket reload failed: %w", err)
	}
	s.registry.Replace(fresh)

	summary := &Summary{}
	seenEvents := make(map[int64]bool)
	for _, t := range fresh {
		if known[t.ID] {
			continue
		}
		summary.NewTickets = append(summary.NewTickets, t)
		summary.Total += t.PricePaid
		// The bought-events snapshot comes from the tickets' denormalized
		// fields; no extra event fetches here.
		if !seenEvents[t.EventID] {
			seenEvents[t.EventID] = true
			summary.PurchasedEvents = append(summary.PurchasedEvents, models.Event{
				ID:    t.EventID,
				Name:  t.EventName,
				Start: t.EventStart,
				Image: t.EventImage,
			})
		}
	}
	s.log.LogCheckout("ISSUED", userID, fmt.Sprintf("%d tickets, total %.2f", len(summary.NewTickets), summary.Total))

	s.publish(userID, intentKey, summary)

	// Recommendations are sequenced after the ticket reload; an empty or
	// failed fetch is still a completed checkout.
	recs, err := s.backend.RecommendationsForUser(ctx, userID)
	if err != nil {
		s.log.Warn("CHECKOUT", fmt.Sprintf("recommendations unavailable for user %d: %v", userID, err))
	} else {
		summary.Recommendations = recs
	}

	s.phase.Store(int32(PhaseRecommendations))
	return summary, nil
}

func (s *Service) publish(userID int64, intentKey string, summary *Summary) {
	if s.publisher == nil {
		return
	}

	purchase := models.PurchaseCompleted{
		UserID:      userID,
		Total:       summary.Total,
		IntentKey:   intentKey,
		PurchasedAt: time.Now(),
	}
	for _, t := range summary.NewTickets {
		purchase.TicketIDs = append(purchase.TicketIDs, t.ID)
		purchase.EventIDs = append(purchase.EventIDs, t.EventID)
	}

	if err := s.publisher.PublishPurchaseCompleted(purchase); err != nil {
		s.log.Warn("CHECKOUT", fmt.Sprintf("purchase event publish failed: %v", err))
	}
}
