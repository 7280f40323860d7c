package selfservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/benefit-engine/events"
)

// =============================================================================
// EVENTS
// =============================================================================

// RequestSubmitted is published after a request is stored.
type RequestSubmitted struct {
	Request Request `json:"request"`
}

func (RequestSubmitted) EventName() string { return "selfservice.request_submitted" }

// RequestReviewed is published after a review is stored, carrying the
// record as re-read from the store.
type RequestReviewed struct {
	Request Request `json:"request"`
}

func (RequestReviewed) EventName() string { return "selfservice.request_reviewed" }

// =============================================================================
// SERVICE
// =============================================================================

// Service runs the request lifecycle against a Store.
type Service struct {
	Store  Store
	Bus    *events.Bus
	Logger zerolog.Logger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Submit validates and stores a new pending request.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Request, error) {
	in.Normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	r := Request{
		ID:          uuid.NewString(),
		Requester:   in.Requester,
		Category:    in.Category,
		Description: in.Description,
		SubmittedAt: s.now(),
		Status:      StatusPending,
	}
	if err := s.Store.CreateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to store request: %w", err)
	}

	stored, err := s.Get(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	s.Logger.Info().
		Str("request_id", stored.ID).
		Str("category", string(stored.Category)).
		Str("employee_number", stored.Requester.EmployeeNumber).
		Msg("request submitted")
	s.Bus.Publish(ctx, RequestSubmitted{Request: *stored})
	return stored, nil
}

// Get returns a request or ErrRequestNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	r, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	if r == nil {
		return nil, ErrRequestNotFound
	}
	return r, nil
}

// List returns requests matching filter, straight from the store.
func (s *Service) List(ctx context.Context, filter Filter) ([]Request, error) {
	return s.Store.ListRequests(ctx, filter)
}

// Approve moves a pending request to approved.
func (s *Service) Approve(ctx context.Context, id string, in ReviewInput) (*Request, error) {
	return s.review(ctx, id, StatusApproved, in)
}

// Reject moves a pending request to rejected.
func (s *Service) Reject(ctx context.Context, id string, in ReviewInput) (*Request, error) {
	return s.review(ctx, id, StatusRejected, in)
}

func (s *Service) review(ctx context.Context, id string, to Status, in ReviewInput) (*Request, error) {
	// Input is validated before anything is read or written so a missing
	// justification never reaches the store.
	in.Normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := Transition(*current, to, in.Reviewer, in.Justification, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.Store.CompleteReview(ctx, id, next.Status, *next.Review); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// Someone else reviewed it between our read and write.
			latest, gerr := s.Get(ctx, id)
			if gerr == nil {
				return nil, &TransitionError{RequestID: id, From: latest.Status, To: to}
			}
		}
		return nil, fmt.Errorf("failed to record review: %w", err)
	}

	stored, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.Logger.Info().
		Str("request_id", id).
		Str("status", string(stored.Status)).
		Str("reviewer_id", in.Reviewer.ID).
		Msg("request reviewed")
	s.Bus.Publish(ctx, RequestReviewed{Request: *stored})
	return stored, nil
}
