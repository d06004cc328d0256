package audit

import "context"

// Store is an append-only event sink. Append must be durable before
// returning; the publisher treats a failed append as a failed operation.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
