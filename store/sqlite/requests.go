package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/benefit-engine/selfservice"
)

// =============================================================================
// SELF-SERVICE REQUESTS (selfservice.Store interface)
// =============================================================================

const requestColumns = `
	id, employee_number, requester_name, requester_department, requester_role,
	category, description, submitted_at, status,
	reviewer_id, reviewer_name, reviewed_at, review_justification`

// CreateRequest stores a new request.
func (s *Store) CreateRequest(ctx context.Context, r selfservice.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selfservice_requests
		(id, employee_number, requester_name, requester_department, requester_role,
		 category, description, submitted_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Requester.EmployeeNumber, r.Requester.Name, r.Requester.Department, r.Requester.Role,
		r.Category, r.Description, formatTime(r.SubmittedAt), r.Status)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by ID.
func (s *Store) GetRequest(ctx context.Context, id string) (*selfservice.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM selfservice_requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests returns requests matching the filter, oldest first.
func (s *Store) ListRequests(ctx context.Context, f selfservice.Filter) ([]selfservice.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where = []string{"1 = 1"}
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.EmployeeNumber != "" {
		where = append(where, "employee_number = ?")
		args = append(args, f.EmployeeNumber)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM selfservice_requests WHERE "+strings.Join(where, " AND ")+" ORDER BY submitted_at, id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []selfservice.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CompleteReview applies a review only while the row is still pending.
func (s *Store) CompleteReview(ctx context.Context, id string, status selfservice.Status, review selfservice.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE selfservice_requests
		SET status = ?, reviewer_id = ?, reviewer_name = ?, reviewed_at = ?, review_justification = ?
		WHERE id = ? AND status = ?
	`, status, review.Reviewer.ID, review.Reviewer.Name, formatTime(review.ReviewedAt), review.Justification,
		id, selfservice.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM selfservice_requests WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return selfservice.ErrRequestNotFound
	}
	return selfservice.ErrInvalidTransition
}

func scanRequest(row rowScanner) (selfservice.Request, error) {
	var (
		r                                  selfservice.Request
		submittedAt                        string
		reviewerID, reviewerName, reviewed sql.NullString
		justification                      sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.Requester.EmployeeNumber, &r.Requester.Name, &r.Requester.Department, &r.Requester.Role,
		&r.Category, &r.Description, &submittedAt, &r.Status,
		&reviewerID, &reviewerName, &reviewed, &justification,
	)
	if err != nil {
		return selfservice.Request{}, err
	}
	if !r.Status.Valid() {
		return selfservice.Request{}, fmt.Errorf("request %s has unknown status %q", r.ID, r.Status)
	}
	if !r.Category.Valid() {
		return selfservice.Request{}, fmt.Errorf("request %s has unknown category %q", r.ID, r.Category)
	}
	r.SubmittedAt = parseTime(submittedAt)
	if reviewed.Valid {
		r.Review = &selfservice.Review{
			Reviewer:      selfservice.Reviewer{ID: reviewerID.String, Name: reviewerName.String},
			ReviewedAt:    parseTime(reviewed.String),
			Justification: justification.String,
		}
	}
	return r, nil
}
