package tickets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"showpass-core/internal/backend"
	"showpass-core/internal/logger"
	"showpass-core/internal/models"
)

// BackendClient is the slice of the boundary client the registry needs.
type BackendClient interface {
	TicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error)
	DeleteTicket(ctx context.Context, ticketID int64) error
	DeleteTicketsByUser(ctx context.Context, userID int64) error
}

// Confirmation gates the destructive registry operations. The zero value is
// not confirmed; UIs obtain one only by walking the user through the
// dismissible confirm step.
type Confirmation struct {
	acknowledged bool
}

// ConfirmDestructive records that the user saw the warning and accepted it.
// For ClearAll the warning copy must tell the user to export (download or
// email) tickets first: once the record is gone the QR fetch has nothing to
// hang a receipt on.
func ConfirmDestructive() Confirmation {
	return Confirmation{acknowledged: true}
}

// Registry holds the user's tickets between full reloads. State is read and
// displayed, never written: the validation boundary owns VALID→USED and the
// backend owns VALID→VOIDED. A reload that claims an illegal transition
// (USED back to VALID, USED to VOIDED) is taken - backend truth wins - but
// logged, because it means someone rewrote history server-side.
type Registry struct {
	backend BackendClient
	log     *logger.Logger
	userID  int64

	mu       sync.Mutex
	tickets  []models.Ticket
	loaded   bool
	exported map[int64]bool
}

func NewRegistry(client BackendClient, log *logger.Logger, userID int64) *Registry {
	return &Registry{
		backend:  client,
		log:      log,
		userID:   userID,
		exported: make(map[int64]bool),
	}
}

func (r *Registry) UserID() int64 { return r.userID }

// Loaded reports whether the registry has ever been populated from the
// backend. An empty loaded registry means "this user owns no tickets"; an
// unloaded one means nothing at all, and callers that diff against the held
// set must sync first.
func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Snapshot returns the tickets in load order. Presenting them reversed is a
// view toggle; the underlying order is stable.
func (r *Registry) Snapshot() []models.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Ticket(nil), r.tickets...)
}

// IDs returns the ids currently held, in load order.
func (r *Registry) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, len(r.tickets))
	for i, t := range r.tickets {
		ids[i] = t.ID
	}
	return ids
}

// Get finds one held ticket by id.
func (r *Registry) Get(ticketID int64) (models.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.ID == ticketID {
			return t, true
		}
	}
	return models.Ticket{}, false
}

// Load does a full reload; there is no delta sync. Validity state is always
// refreshed along with the list - cached state from a previous session is
// never trusted.
func (r *Registry) Load(ctx context.Context) ([]models.Ticket, error) {
	fresh, err := r.backend.TicketsByUser(ctx, r.userID)
	if err != nil {
		r.log.Error("TICKETS", fmt.Sprintf("[LOAD] user=%d - %v", r.userID, err))
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous := make(map[int64]models.TicketState, len(r.tickets))
	for _, t := range r.tickets {
		previous[t.ID] = t.State
	}
	for _, t := range fresh {
		if before, seen := previous[t.ID]; seen && !before.CanTransition(t.State) {
			r.log.Warn("TICKETS", fmt.Sprintf("ticket %d state went %s -> %s, which should be impossible", t.ID, before, t.State))
		}
	}

	r.tickets = fresh
	r.loaded = true
	r.log.LogTickets("LOAD", r.userID, fmt.Sprintf("%d tickets", len(fresh)))
	return append([]models.Ticket(nil), fresh...), nil
}

// Replace installs a freshly fetched list, used by checkout after finalize.
func (r *Registry) Replace(fresh []models.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = append([]models.Ticket(nil), fresh...)
	r.loaded = true
}

// MarkExported records that a ticket's receipt left the device (download or
// email), which is what the ClearAll warning is about.
func (r *Registry) MarkExported(ticketID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exported[ticketID] = true
}

// Exported reports whether the ticket's receipt was ever downloaded or
// emailed in this session.
func (r *Registry) Exported(ticketID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exported[ticketID]
}

// Delete removes a single ticket record. Irreversible, so it demands a
// Confirmation. A StateConflict (already gone server-side) forces a reload
// to resync before the error is handed back.
func (r *Registry) Delete(ctx context.Context, ticketID int64, c Confirmation) error {
	if !c.acknowledged {
		return &backend.ValidationError{Reason: "ticket deletion requires explicit confirmation"}
	}

	if err := r.backend.DeleteTicket(ctx, ticketID); err != nil {
		var conflict *backend.StateConflict
		if errors.As(err, &conflict) {
			r.log.Warn("TICKETS", fmt.Sprintf("ticket %d already gone, resyncing", ticketID))
			if _, reloadErr := r.Load(ctx); reloadErr != nil {
				r.log.Error("TICKETS", fmt.Sprintf("resync after conflict failed: %v", reloadErr))
			}
		}
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.tickets[:0]
	for _, t := range r.tickets {
		if t.ID != ticketID {
			kept = append(kept, t)
		}
	}
	r.tickets = kept
	r.log.LogTickets("DELETE", r.userID, fmt.Sprintf("ticket %d", ticketID))
	return nil
}

// ClearAll bulk-deletes every ticket. The confirm step's copy must carry the
// export warning; the registry only enforces that the step happened.
func (r *Registry) ClearAll(ctx context.Context, c Confirmation) error {
	if !c.acknowledged {
		return &backend.ValidationError{Reason: "clearing all tickets requires explicit confirmation"}
	}

	if err := r.backend.DeleteTicketsByUser(ctx, r.userID); err != nil {
		r.log.Error("TICKETS", fmt.Sprintf("[CLEAR] user=%d - %v", r.userID, err))
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = nil
	r.loaded = true
	r.log.LogTickets("CLEAR", r.userID, "all tickets removed")
	return nil
}
