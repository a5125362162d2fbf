package scan

import (
	"context"
	"fmt"
	"sync"

	"showpass-core/internal/logger"
)

// State is the display state of the validation viewer.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateValid
	StateInvalid
	StateError
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "CHECKING"
	case StateValid:
		return "VALID"
	case StateInvalid:
		return "INVALID"
	case StateError:
		return "ERROR"
	default:
		return "IDLE"
	}
}

// Validator is the independently-owned validation boundary.
type Validator interface {
	ValidateTicket(ctx context.Context, payload string) (bool, error)
}

// Viewer is the staff-scanning display: a strict finite-state machine with
// no authority over ticket state. It dispatches the scanned payload, shows
// exactly one of valid/invalid/error per response, and resets to idle on
// acknowledge. Nothing is cached between scans - the same payload scanned
// again goes through checking from scratch.
//
// INVALID means the boundary read the ticket and rejected it (already used,
// voided); ERROR means the answer never arrived or was itself broken. They
// differ in message only - both recover through acknowledge and rescan.
type Viewer struct {
	validator Validator
	log       *logger.Logger

	mu      sync.Mutex
	state   State
	message string
}

func NewViewer(validator Validator, log *logger.Logger) *Viewer {
	return &Viewer{validator: validator, log: log}
}

func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Message is the human-readable text for the current terminal state.
func (v *Viewer) Message() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.message
}

// Validate dispatches the scanned payload and blocks until a terminal state
// is reached. A dispatch while a previous one is still checking is refused.
func (v *Viewer) Validate(ctx context.Context, payload string) State {
	v.mu.Lock()
	if v.state == StateChecking {
		v.mu.Unlock()
		return StateChecking
	}
	v.state = StateChecking
	v.message = "Validando código QR..."
	v.mu.Unlock()

	valid, err := v.validator.ValidateTicket(ctx, payload)

	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case err != nil:
		v.state = StateError
		v.message = "Error al validar el ticket. Hubo un problema de conexión, inténtalo nuevamente."
		v.log.Error("SCAN", fmt.Sprintf("validation failed: %v", err))
	case valid:
		v.state = StateValid
		v.message = "Ticket válido. Puedes acceder al evento."
	default:
		v.state = StateInvalid
		v.message = "Ticket no válido. El código QR ya fue usado o está anulado."
	}
	v.log.Info("SCAN", fmt.Sprintf("result: %s", v.state))
	return v.state
}

// Acknowledge resets a terminal state back to idle. Acknowledging while
// checking or already idle is a no-op.
func (v *Viewer) Acknowledge() {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.state {
	case StateValid, StateInvalid, StateError:
		v.state = StateIdle
		v.message = ""
	}
}
