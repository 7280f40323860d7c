package selfservice

import "context"

// Store persists self-service requests. There is no delete.
type Store interface {
	CreateRequest(ctx context.Context, r Request) error

	// GetRequest returns (nil, nil) when the request does not exist.
	GetRequest(ctx context.Context, id string) (*Request, error)

	ListRequests(ctx context.Context, filter Filter) ([]Request, error)

	// CompleteReview records the transition of a pending request to status.
	// It must apply only if the stored row is still pending, returning
	// ErrInvalidTransition otherwise and ErrRequestNotFound for unknown IDs.
	CompleteReview(ctx context.Context, id string, status Status, review Review) error
}
