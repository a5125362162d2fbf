package backend

import "fmt"

// The purchase core sorts every failure into one of four buckets. Validation
// failures never reach the network; the other three are produced at the
// operation boundary and surfaced to the user as dismissible messages.

// ValidationError is a client-detected precondition failure (empty cart,
// quantity below one, missing confirmation). No request is issued.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// TransportError means the backend could not be reached at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a non-success response from the backend.
type ServiceError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
}

// StateConflict means the client acted on a record the backend no longer
// has (deleting an already-deleted ticket). Callers must resync the
// affected registry after seeing one.
type StateConflict struct {
	Op       string
	Resource string
}

func (e *StateConflict) Error() string {
	return fmt.Sprintf("%s: %s no longer exists on the backend", e.Op, e.Resource)
}
