package scan_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"showpass-core/internal/logger"
	"showpass-core/internal/scan"
)

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) ValidateTicket(ctx context.Context, payload string) (bool, error) {
	args := m.Called(payload)
	return args.Bool(0), args.Error(1)
}

func TestViewerStartsIdle(t *testing.T) {
	v := scan.NewViewer(new(MockValidator), logger.New())
	assert.Equal(t, scan.StateIdle, v.State())
}

func TestValidTicketReachesValidState(t *testing.T) {
	mv := new(MockValidator)
	mv.On("ValidateTicket", "qr-abc").Return(true, nil)

	v := scan.NewViewer(mv, logger.New())
	got := v.Validate(context.Background(), "qr-abc")

	assert.Equal(t, scan.StateValid, got)
	assert.Equal(t, scan.StateValid, v.State())
}

func TestUsedTicketIsInvalidNotError(t *testing.T) {
	mv := new(MockValidator)
	mv.On("ValidateTicket", "qr-used").Return(false, nil)

	v := scan.NewViewer(mv, logger.New())
	got := v.Validate(context.Background(), "qr-used")

	assert.Equal(t, scan.StateInvalid, got)
	assert.NotEmpty(t, v.Message())
}

func TestTransportFailureIsErrorNotInvalid(t *testing.T) {
	mv := new(MockValidator)
	mv.On("ValidateTicket", "qr-abc").Return(false, errors.New("connection refused"))

	v := scan.NewViewer(mv, logger.New())
	got := v.Validate(context.Background(), "qr-abc")

	assert.Equal(t, scan.StateError, got)
}

// Acknowledge resets to idle, and re-scanning the same payload goes through
// checking again - no cached short-circuit.
func TestAcknowledgeThenRescanRunsFresh(t *testing.T) {
	mv := new(MockValidator)
	mv.On("ValidateTicket", "qr-used").Return(false, nil).Twice()

	v := scan.NewViewer(mv, logger.New())

	assert.Equal(t, scan.StateInvalid, v.Validate(context.Background(), "qr-used"))
	v.Acknowledge()
	assert.Equal(t, scan.StateIdle, v.State())
	assert.Empty(t, v.Message())

	assert.Equal(t, scan.StateInvalid, v.Validate(context.Background(), "qr-used"))
	mv.AssertNumberOfCalls(t, "ValidateTicket", 2)
}

func TestAcknowledgeWhileIdleIsNoOp(t *testing.T) {
	v := scan.NewViewer(new(MockValidator), logger.New())
	v.Acknowledge()
	assert.Equal(t, scan.StateIdle, v.State())
}
