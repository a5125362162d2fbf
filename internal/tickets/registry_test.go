package tickets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"showpass-core/internal/backend"
	"showpass-core/internal/logger"
	"showpass-core/internal/models"
	"showpass-core/internal/tickets"
)

type MockBackend struct {
	mock.Mock
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

func ticket(id int64, state models.TicketState) models.Ticket {
	return models.Ticket{ID: id, UserID: 42, EventID: 9, EventName: "Concierto", State: state, PricePaid: 25}
}

func TestLoadReplacesHeldTickets(t *testing.T) {
	mb := new(MockBackend)
	mb.On("TicketsByUser", int64(42)).
		Return([]models.Ticket{ticket(1, models.TicketValid), ticket(2, models.TicketValid)}, nil)

	reg := tickets.NewRegistry(mb, logger.New(), 42)
	got, err := reg.Load(context.Background())

	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []int64{1, 2}, reg.IDs())
}

// An empty list from the backend still counts as populated: "owns no
// tickets" and "never asked" are different answers.
func TestLoadedDistinguishesEmptyFromNeverSynced(t *testing.T) {
	mb := new(MockBackend)
	mb.On("TicketsByUser", int64(42)).Return([]models.Ticket{}, nil)

	reg := tickets.NewRegistry(mb, logger.New(), 42)
	assert.False(t, reg.Loaded())

	_, err := reg.Load(context.Background())
	assert.NoError(t, err)
	assert.True(t, reg.Loaded())
}

func TestReplaceMarksRegistryLoaded(t *testing.T) {
	reg := tickets.NewRegistry(new(MockBackend), logger.New(), 42)
	reg.Replace([]models.Ticket{ticket(1, models.TicketValid)})
	assert.True(t, reg.Loaded())
}

func TestDeleteRemovesExactlyTargetedTicket(t *testing.T) {
	mb := new(MockBackend)
	mb.On("TicketsByUser", int64(42)).
		Return([]models.Ticket{ticket(1, models.TicketValid), ticket(2, models.TicketValid), ticket(3, models.TicketUsed)}, nil)
	mb.On("DeleteTicket", int64(2)).Return(nil)

	reg := tickets.NewRegistry(mb, logger.New(), 42)
	_, _ = reg.Load(context.Background())

	err := reg.Delete(context.Background(), 2, tickets.ConfirmDestructive())

	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, reg.IDs())
}

func TestDeleteWithoutConfirmationIsBlocked(t *testing.T) {
	mb := new(MockBackend)
	reg := tickets.NewRegistry(mb, logger.New(), 42)

	err := reg.Delete(context.Background(), 2, tickets.Confirmation{})

	var vErr *backend.ValidationError
	assert.ErrorAs(t, err, &vErr)
	mb.AssertNotCalled(t, "DeleteTicket", mock.Anything)
}

func TestDeleteConflictForcesResync(t *testing.T) {
	mb := new(MockBackend)
	mb.On("TicketsByUser", int64(42)).
		Return([]models.Ticket{ticket(1, models.TicketValid)}, nil)
	mb.On("DeleteTicket", int64(9)).
		Return(&backend.StateConflict{Op: "delete ticket", Resource: "ticket 9"})

	reg := tickets.NewRegistry(mb, logger.New(), 42)

	err := reg.Delete(context.Background(), 9, tickets.ConfirmDestructive())

	var conflict *backend.StateConflict
	assert.ErrorAs(t, err, &conflict)
	// The conflict triggered a fresh load.
	mb.AssertCalled(t, "TicketsByUser", int64(42))
	assert.Equal(t, []int64{1}, reg.IDs())
}

func TestClearAllEmptiesRegistry(t *testing.T) {
	mb := new(MockBackend)
	mb.On("TicketsByUser", int64(42)).
		Return([]models.Ticket{ticket(1, models.TicketValid), ticket(2, models.TicketValid)}, nil).Once()
	mb.On("DeleteTicketsByUser", int64(42)).Return(nil)

	reg := tickets.NewRegistry(mb, logger.New(), 42)
	_, _ = reg.Load(context.Background())

	assert.NoError(t, reg.ClearAll(context.Background(), tickets.ConfirmDestructive()))
	assert.Empty(t, reg.Snapshot())

	mb.On("TicketsByUser", int64(42)).Return([]models.Ticket{}, nil).Once()
	got, err := reg.Load(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestClearAllWithoutConfirmationIsBlocked(t *testing.T) {
	mb := new(MockBackend)
	reg := tickets.NewRegistry(mb, logger.New(), 42)

	err := reg.ClearAll(context.Background(), tickets.Confirmation{})

	var vErr *backend.ValidationError
	assert.ErrorAs(t, err, &vErr)
	mb.AssertNotCalled(t, "DeleteTicketsByUser", mock.Anything)
}

func TestExportTrackingPerTicket(t *testing.T) {
	reg := tickets.NewRegistry(new(MockBackend), logger.New(), 42)

	assert.False(t, reg.Exported(5))
	reg.MarkExported(5)
	assert.True(t, reg.Exported(5))
	assert.False(t, reg.Exported(6))
}

func TestStateMachineLegality(t *testing.T) {
	assert.True(t, models.TicketValid.CanTransition(models.TicketUsed))
	assert.True(t, models.TicketValid.CanTransition(models.TicketVoided))
	assert.False(t, models.TicketUsed.CanTransition(models.TicketValid))
	assert.False(t, models.TicketVoided.CanTransition(models.TicketValid))
	assert.False(t, models.TicketUsed.CanTransition(models.TicketVoided))
	assert.False(t, models.TicketVoided.CanTransition(models.TicketUsed))
}

func TestParseTicketStateAcceptsLegacyWireValues(t *testing.T) {
	cases := map[string]models.TicketState{
		"VALID":   models.TicketValid,
		"VALIDO":  models.TicketValid,
		"usado":   models.TicketUsed,
		"USED":    models.TicketUsed,
		"ANULADO": models.TicketVoided,
		"VOIDED":  models.TicketVoided,
	}
	for raw, want := range cases {
		got, err := models.ParseTicketState(raw)
		assert.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := models.ParseTicketState("PENDING")
	assert.Error(t, err)
}
