package checkout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"showpass-core/internal/backend"
	"showpass-core/internal/cart"
	"showpass-core/internal/checkout"
	"showpass-core/internal/logger"
	"showpass-core/internal/models"
	"showpass-core/internal/tickets"
)

// MockBackend covers the cart, registry and checkout slices of the boundary
// client so one fake drives the whole protocol.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockBackend) GetCartTotal(ctx context.Context, userID int64) (float64, error) {
	args := m.Called(userID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockBackend) AddCartItem(ctx context.Context, userID, eventID int64, quantity int) (*models.Cart, error) {
	args := m.Called(userID, eventID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockBackend) RemoveCartItem(ctx context.Context, userID, itemID int64) (*models.Cart, error) {
	args := m.Called(userID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockBackend) ClearCart(ctx context.Context, userID int64) (*models.Cart, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockBackend) FinalizeCart(ctx context.Context, userID int64, intentKey string) error {
	args := m.Called(userID, intentKey)
	return args.Error(0)
}

func (m *MockBackend) TicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockBackend) DeleteTicket(ctx context.Context, ticketID int64) error {
	args := m.Called(ticketID)
	return args.Error(0)
}

func (m *MockBackend) DeleteTicketsByUser(ctx context.Context, userID int64) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockBackend) RecommendationsForUser(ctx context.Context, userID int64) ([]models.Event, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishPurchaseCompleted(purchase models.PurchaseCompleted) error {
	args := m.Called(purchase)
	return args.Error(0)
}

func loadedCart(t *testing.T, mb *MockBackend) *cart.Store {
	t.Helper()
	mb.On("GetCart", int64(42)).
		Return(&models.Cart{ID: 7, UserID: 42, Items: []models.CartItem{
			{ID: 1, EventID: 101, EventName: "Concierto E1", UnitPrice: 25.00, Quantity: 2},
		}}, nil).Once()
	mb.On("GetCartTotal", int64(42)).Return(50.0, nil).Once()

	store := cart.NewStore(mb, logger.New(), 42)
	_, total, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 50.0, total)
	return store
}

func TestFinalizeEmptyCartIsBlockedBeforeAnyNetworkCall(t *testing.T) {
	mb := new(MockBackend)
	svc := checkout.NewService(mb, cart.NewStore(mb, logger.New(), 42), tickets.NewRegistry(mb, logger.New(), 42), nil, logger.New())

	_, err := svc.Finalize(context.Background())

	var vErr *backend.ValidationError
	assert.ErrorAs(t, err, &vErr)
	mb.AssertNotCalled(t, "FinalizeCart", mock.Anything, mock.Anything)
}

func TestFinalizeFailureLeavesCartUntouched(t *testing.T) {
	mb := new(MockBackend)
	cartStore := loadedCart(t, mb)
	mb.On("TicketsByUser", int64(42)).Return([]models.Ticket{}, nil)
	mb.On("FinalizeCart", int64(42), mock.Anything).Return(errors.New("payment rejected"))

	svc := checkout.NewService(mb, cartStore, tickets.NewRegistry(mb, logger.New(), 42), nil, logger.New())
	_, err := svc.Finalize(context.Background())

	assert.Error(t, err)
	current, total := cartStore.Snapshot()
	assert.Len(t, current.Items, 1)
	assert.Equal(t, 50.0, total)
	assert.Equal(t, checkout.PhaseCart, svc.Phase())
}

// The cart scenario from end to end: 2 units of E1 at 25.00, finalize,
// reload yields the new tickets whose pricePaid sums to 50.00, and the cart
// comes back empty.
func TestFinalizeSuccessIssuesTicketsAndClearsCart(t *testing.T) {
	mb := new(MockBackend)
	cartStore := loadedCart(t, mb)
	registry := tickets.NewRegistry(mb, logger.New(), 42)

	issued := []models.Ticket{
		{ID: 900, UserID: 42, EventID: 101, EventName: "Concierto E1", PricePaid: 25.00, State: models.TicketValid},
		{ID: 901, UserID: 42, EventID: 101, EventName: "Concierto E1", PricePaid: 25.00, State: models.TicketValid},
	}
	mb.On("TicketsByUser", int64(42)).Return([]models.Ticket{}, nil).Once()
	mb.On("FinalizeCart", int64(42), mock.Anything).Return(nil)
	mb.On("TicketsByUser", int64(42)).Return(issued, nil).Once()
	mb.On("RecommendationsForUser", int64(42)).Return([]models.Event{{ID: 300, Name: "Otro concierto"}}, nil)

	pub := new(MockPublisher)
	pub.On("PublishPurchaseCompleted", mock.MatchedBy(func(p models.PurchaseCompleted) bool {
		return p.UserID == 42 && p.Total == 50.00 && len(p.TicketIDs) == 2
	})).Return(nil)

	svc := checkout.NewService(mb, cartStore, registry, pub, logger.New())
	summary, err := svc.Finalize(context.Background())

	require.NoError(t, err)
	assert.Len(t, summary.NewTickets, 2)
	assert.Equal(t, 50.00, summary.Total)
	assert.Len(t, summary.Recommendations, 1)
	assert.Equal(t, checkout.PhaseRecommendations, svc.Phase())

	// Two tickets for the same event collapse into one bought-event entry.
	require.Len(t, summary.PurchasedEvents, 1)
	assert.Equal(t, int64(101), summary.PurchasedEvents[0].ID)
	assert.Equal(t, "Concierto E1", summary.PurchasedEvents[0].Name)

	// Local cart reset; ticket count did not decrease.
	assert.True(t, cartStore.Empty())
	assert.Len(t, registry.Snapshot(), 2)
	pub.AssertExpectations(t)
}

// Tickets held before checkout are not counted into the session total.
func TestFinalizeTotalCountsOnlyNewTickets(t *testing.T) {
	mb := new(MockBackend)

	previous := []models.Ticket{{ID: 800, UserID: 42, EventID: 55, PricePaid: 10.00, State: models.TicketUsed}}
	mb.On("TicketsByUser", int64(42)).Return(previous, nil).Once()

	registry := tickets.NewRegistry(mb, logger.New(), 42)
	_, err := registry.Load(context.Background())
	require.NoError(t, err)

	cartStore := loadedCart(t, mb)
	mb.On("FinalizeCart", int64(42), mock.Anything).Return(nil)
	mb.On("TicketsByUser", int64(42)).Return(append(previous,
		models.Ticket{ID: 900, UserID: 42, EventID: 101, PricePaid: 25.00, State: models.TicketValid},
	), nil).Once()
	mb.On("RecommendationsForUser", int64(42)).Return([]models.Event{}, nil)

	svc := checkout.NewService(mb, cartStore, registry, nil, logger.New())
	summary, err := svc.Finalize(context.Background())

	require.NoError(t, err)
	assert.Len(t, summary.NewTickets, 1)
	assert.Equal(t, 25.00, summary.Total)
}

// A registry that was never populated in this session is synced before
// finalize, so tickets owned from earlier purchases are not misreported as
// newly bought. Covers the sign-in → add → checkout flow that skips the
// tickets screen entirely.
func TestFinalizeSyncsUnloadedRegistryBeforeDiffing(t *testing.T) {
	mb := new(MockBackend)
	cartStore := loadedCart(t, mb)
	registry := tickets.NewRegistry(mb, logger.New(), 42)

	previous := models.Ticket{ID: 800, UserID: 42, EventID: 55, PricePaid: 10.00, State: models.TicketUsed}
	mb.On("TicketsByUser", int64(42)).Return([]models.Ticket{previous}, nil).Once()
	mb.On("FinalizeCart", int64(42), mock.Anything).Return(nil)
	mb.On("TicketsByUser", int64(42)).Return([]models.Ticket{
		previous,
		{ID: 900, UserID: 42, EventID: 101, PricePaid: 25.00, State: models.TicketValid},
		{ID: 901, UserID: 42, EventID: 101, PricePaid: 25.00, State: models.TicketValid},
	}, nil).Once()
	mb.On("RecommendationsForUser", int64(42)).Return([]models.Event{}, nil)

	svc := checkout.NewService(mb, cartStore, registry, nil, logger.New())
	summary, err := svc.Finalize(context.Background())

	require.NoError(t, err)
	assert.Len(t, summary.NewTickets, 2)
	assert.Equal(t, 50.00, summary.Total)
	for _, ticket := range summary.NewTickets {
		assert.NotEqual(t, int64(800), ticket.ID)
	}
}

// When the pre-checkout sync itself fails, finalize never fires and the
// cart stays as it was.
func TestFinalizeAbortsWhenPreCheckoutSyncFails(t *testing.T) {
	mb := new(MockBackend)
	cartStore := loadedCart(t, mb)
	mb.On("TicketsByUser", int64(42)).Return(nil, errors.New("service down"))

	svc := checkout.NewService(mb, cartStore, tickets.NewRegistry(mb, logger.New(), 42), nil, logger.New())
	_, err := svc.Finalize(context.Background())

	assert.Error(t, err)
	mb.AssertNotCalled(t, "FinalizeCart", mock.Anything, mock.Anything)
	current, total := cartStore.Snapshot()
	assert.Len(t, current.Items, 1)
	assert.Equal(t, 50.0, total)
}

// An empty recommendation set is a valid terminal outcome, not an error.
func TestFinalizeSucceedsWithEmptyOrFailedRecommendations(t *testing.T) {
	mb := new(MockBackend)
	cartStore := loadedCart(t, mb)
	mb.On("TicketsByUser", int64(42)).Return([]models.Ticket{}, nil).Once()
	mb.On("FinalizeCart", int64(42), mock.Anything).Return(nil)
	mb.On("TicketsByUser", int64(42)).Return([]models.Ticket{
		{ID: 900, UserID: 42, EventID: 101, PricePaid: 50.00, State: models.TicketValid},
	}, nil).Once()
	mb.On("RecommendationsForUser", int64(42)).Return(nil, errors.New("service down"))

	svc := checkout.NewService(mb, cartStore, tickets.NewRegistry(mb, logger.New(), 42), nil, logger.New())
	summary, err := svc.Finalize(context.Background())

	require.NoError(t, err)
	assert.Empty(t, summary.Recommendations)
	assert.Equal(t, checkout.PhaseRecommendations, svc.Phase())
}
