package cart

import (
	"context"
	"fmt"
	"sync"

	"showpass-core/internal/backend"
	"showpass-core/internal/logger"
	"showpass-core/internal/models"
)

// BackendClient is the slice of the boundary client the cart store needs.
type BackendClient interface {
	GetCart(ctx context.Context, userID int64) (*models.Cart, error)
	GetCartTotal(ctx context.Context, userID int64) (float64, error)
	AddCartItem(ctx context.Context, userID, eventID int64, quantity int) (*models.Cart, error)
	RemoveCartItem(ctx context.Context, userID, itemID int64) (*models.Cart, error)
	ClearCart(ctx context.Context, userID int64) (*models.Cart, error)
}

// Store holds one user's cart as a read-through cache of backend state.
// Totals always come from the backend: tax and discount rules are not
// reproducible client-side, so a locally summed total is display-only
// garbage the moment a discount applies.
//
// Mutations commit only on a confirmed response; on failure the prior
// in-memory state stays as it was. A generation counter makes responses
// that arrive after a newer operation has finished land as no-ops, which is
// what lets a dismissed screen's late reply be discarded safely.
type Store struct {
	backend BackendClient
	log     *logger.Logger
	userID  int64

	mu    sync.Mutex
	cart  *models.Cart
	total float64
	gen   uint64
}

func NewStore(client BackendClient, log *logger.Logger, userID int64) *Store {
	return &Store{backend: client, log: log, userID: userID}
}

func (s *Store) UserID() int64 { return s.userID }

// Snapshot returns a copy of the current cart and total for rendering.
func (s *Store) Snapshot() (models.Cart, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		return models.Cart{UserID: s.userID}, 0
	}
	copied := *s.cart
	copied.Items = append([]models.CartItem(nil), s.cart.Items...)
	return copied, s.total
}

// Empty reports whether the locally held cart has no lines.
func (s *Store) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.IsEmpty()
}

// Load fetches the cart and its computed total. The two reads are separate
// backend calls reconciled into one commit so a render never sees a fresh
// item list against a stale total.
func (s *Store) Load(ctx context.Context) (models.Cart, float64, error) {
	gen := s.begin()

	cart, err := s.backend.GetCart(ctx, s.userID)
	if err != nil {
		return s.failed("LOAD", err)
	}
	total, err := s.backend.GetCartTotal(ctx, s.userID)
	if err != nil {
		return s.failed("LOAD", err)
	}

	s.commit(gen, cart, total)
	current, currentTotal := s.Snapshot()
	return current, currentTotal, nil
}

// AddItem adds a line for the event or increments the existing one.
func (s *Store) AddItem(ctx context.Context, eventID int64, quantity int) (models.Cart, float64, error) {
	if quantity < 1 {
		return models.Cart{}, 0, &backend.ValidationError{Reason: fmt.Sprintf("quantity must be at least 1, got %d", quantity)}
	}

	gen := s.begin()

	cart, err := s.backend.AddCartItem(ctx, s.userID, eventID, quantity)
	if err != nil {
		return s.failed("ADD", err)
	}
	total, err := s.backend.GetCartTotal(ctx, s.userID)
	if err != nil {
		return s.failed("ADD", err)
	}

	s.log.LogCart("ADD", s.userID, fmt.Sprintf("event %d x%d", eventID, quantity))
	s.commit(gen, cart, total)
	current, currentTotal := s.Snapshot()
	return current, currentTotal, nil
}

// RemoveItem removes one line and re-fetches the authoritative total.
func (s *Store) RemoveItem(ctx context.Context, itemID int64) (models.Cart, float64, error) {
	gen := s.begin()

	cart, err := s.backend.RemoveCartItem(ctx, s.userID, itemID)
	if err != nil {
		return s.failed("REMOVE", err)
	}
	total, err := s.backend.GetCartTotal(ctx, s.userID)
	if err != nil {
		return s.failed("REMOVE", err)
	}

	s.log.LogCart("REMOVE", s.userID, fmt.Sprintf("item %d", itemID))
	s.commit(gen, cart, total)
	current, currentTotal := s.Snapshot()
	return current, currentTotal, nil
}

// Clear empties the cart. The local total drops to zero only once the
// clearing call has succeeded.
func (s *Store) Clear(ctx context.Context) (models.Cart, float64, error) {
	gen := s.begin()

	cart, err := s.backend.ClearCart(ctx, s.userID)
	if err != nil {
		return s.failed("CLEAR", err)
	}

	s.log.LogCart("CLEAR", s.userID, "cart emptied")
	s.commit(gen, cart, 0)
	current, currentTotal := s.Snapshot()
	return current, currentTotal, nil
}

// ResetLocal drops local state after a successful checkout; the backend is
// expected to present a fresh empty cart on the next load.
func (s *Store) ResetLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cart = nil
	s.total = 0
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// commit applies a confirmed backend response unless a newer operation has
// started since; a stale response is dropped on the floor.
func (s *Store) commit(gen uint64, cart *models.Cart, total float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.log.Warn("CART", fmt.Sprintf("discarding stale response for user %d", s.userID))
		return
	}
	s.cart = cart
	s.total = total
}

func (s *Store) failed(action string, err error) (models.Cart, float64, error) {
	s.log.Error("CART", fmt.Sprintf("[%s] user=%d - %v", action, s.userID, err))
	cart, total := s.Snapshot()
	return cart, total, err
}
