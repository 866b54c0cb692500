package source

import "fmt"

// ErrUnavailable indicates a transient adapter failure (timeout, server
// error, rate-limited).
type ErrUnavailable struct {
	Source Name
	Cause  error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the adapter has no data for the requested identifier.
type ErrNotFound struct {
	Source Name
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("source %s: %s not found", e.Source, e.ID)
}

// ErrAuthRequired indicates the adapter needs credentials but none are
// configured.
type ErrAuthRequired struct {
	Source Name
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("source %s: credentials not configured", e.Source)
}

// ErrAuthRejected indicates the upstream rejected the configured credentials.
// The render tier treats this as the signal to downgrade to its local
// endpoint for the rest of the request.
type ErrAuthRejected struct {
	Source Name
	Status int
}

func (e *ErrAuthRejected) Error() string {
	return fmt.Sprintf("source %s: credentials rejected (HTTP %d)", e.Source, e.Status)
}
