package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefits"
)

// =============================================================================
// VOUCHER STORE (benefits.VoucherStore interface)
// =============================================================================

const voucherColumns = `
	id, code, issued_at, expires_at,
	employee_number, employee_name, employee_email, employee_department,
	benefit_id, benefit_name, benefit_description,
	justification, urgent, value, status, created_by, created_at,
	deleted, redeemed_at, cancel_reason`

// SetCodeSource overrides the entropy used for voucher codes. Tests use it to
// force collisions; nil means crypto/rand.
func (s *Store) SetCodeSource(r io.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeSource = r
}

// CreateVoucher inserts one voucher. The code is generated here so that a
// collision with an existing row can be retried with a fresh code.
func (s *Store) CreateVoucher(ctx context.Context, nv benefits.NewVoucher) (*benefits.Voucher, error) {
	if err := nv.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO vouchers
		(code, issued_at, expires_at,
		 employee_number, employee_name, employee_email, employee_department,
		 benefit_id, benefit_name, benefit_description,
		 justification, urgent, value, status, created_by, created_at, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := benefits.NewCode(s.codeSource)
		if err != nil {
			return nil, err
		}

		res, err := s.db.ExecContext(ctx, query,
			code,
			formatTime(nv.IssuedAt),
			formatTime(nv.ExpiresAt),
			nv.Employee.Number,
			nv.Employee.Name,
			nv.Employee.Email,
			nv.Employee.Department,
			nv.Benefit.ID,
			nv.Benefit.Name,
			nv.Benefit.Description,
			nv.Justification,
			nv.Urgent,
			nv.Value.String(),
			nv.Status,
			nv.CreatedBy,
			formatTime(nv.CreatedAt),
			nullString(nv.IdempotencyKey),
		)
		switch {
		case err == nil:
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("failed to read voucher id: %w", err)
			}
			return s.getVoucher(ctx, "id = ?", id)
		case isUniqueConstraintError(err) && constraintColumn(err, "vouchers.idempotency_key"):
			return nil, benefits.ErrDuplicateIdempotencyKey
		case isUniqueConstraintError(err) && constraintColumn(err, "vouchers.code"):
			continue
		case isForeignKeyError(err):
			return nil, fmt.Errorf("%w: %s", benefits.ErrInvalidBenefitReference, nv.Benefit.ID)
		default:
			return nil, fmt.Errorf("failed to insert voucher: %w", err)
		}
	}
	return nil, benefits.ErrDuplicateCode
}

// GetVoucher retrieves a voucher by ID.
func (s *Store) GetVoucher(ctx context.Context, id benefits.VoucherID) (*benefits.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getVoucher(ctx, "id = ?", int64(id))
}

// GetVoucherByCode retrieves a voucher by its code.
func (s *Store) GetVoucherByCode(ctx context.Context, code string) (*benefits.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getVoucher(ctx, "code = ?", code)
}

func (s *Store) getVoucher(ctx context.Context, where string, arg any) (*benefits.Voucher, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+voucherColumns+" FROM vouchers WHERE "+where, arg)
	v, err := scanVoucher(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVouchers returns vouchers matching the filter, newest first.
func (s *Store) ListVouchers(ctx context.Context, f benefits.VoucherFilter) ([]benefits.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	where = append(where, "deleted = FALSE")
	if f.EmployeeNumber != "" {
		where = append(where, "employee_number = ?")
		args = append(args, f.EmployeeNumber)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	query := "SELECT " + voucherColumns + " FROM vouchers WHERE " + strings.Join(where, " AND ") + " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vouchers: %w", err)
	}
	defer rows.Close()

	var out []benefits.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CancelVoucher marks an issued voucher cancelled. Vouchers in any other
// status are left alone and reported as ErrVoucherNotCancellable.
func (s *Store) CancelVoucher(ctx context.Context, id benefits.VoucherID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE vouchers SET status = ?, cancel_reason = ? WHERE id = ? AND status = ?",
		benefits.StatusCancelled, reason, int64(id), benefits.StatusIssued,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel voucher: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	v, err := s.getVoucher(ctx, "id = ?", int64(id))
	if err != nil {
		return err
	}
	if v == nil {
		return benefits.ErrVoucherNotFound
	}
	return benefits.ErrVoucherNotCancellable
}

// RedeemVoucher marks an issued, unexpired voucher redeemed.
func (s *Store) RedeemVoucher(ctx context.Context, code string, at time.Time) (*benefits.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE vouchers SET status = ?, redeemed_at = ?
		WHERE code = ? AND status = ? AND expires_at > ? AND deleted = FALSE
	`, benefits.StatusRedeemed, formatTime(at), code, benefits.StatusIssued, formatTime(at))
	if err != nil {
		return nil, fmt.Errorf("failed to redeem voucher: %w", err)
	}

	n, _ := res.RowsAffected()
	v, err := s.getVoucher(ctx, "code = ?", code)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, benefits.ErrVoucherNotFound
	}
	if n == 0 {
		return nil, benefits.ErrVoucherNotRedeemable
	}
	return v, nil
}

// ExpireVouchers moves issued vouchers past their expiry to expired.
func (s *Store) ExpireVouchers(ctx context.Context, asOf time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE vouchers SET status = ? WHERE status = ? AND expires_at <= ?",
		benefits.StatusExpired, benefits.StatusIssued, formatTime(asOf),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire vouchers: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoucher(row rowScanner) (benefits.Voucher, error) {
	var (
		v                            benefits.Voucher
		issuedAt, expiresAt, created string
		value                        string
		redeemedAt                   sql.NullString
	)
	err := row.Scan(
		&v.ID, &v.Code, &issuedAt, &expiresAt,
		&v.Employee.Number, &v.Employee.Name, &v.Employee.Email, &v.Employee.Department,
		&v.Benefit.ID, &v.Benefit.Name, &v.Benefit.Description,
		&v.Justification, &v.Urgent, &value, &v.Status, &v.CreatedBy, &created,
		&v.Deleted, &redeemedAt, &v.CancelReason,
	)
	if err != nil {
		return benefits.Voucher{}, err
	}
	if !v.Status.Valid() {
		return benefits.Voucher{}, fmt.Errorf("voucher %d has unknown status %q", v.ID, v.Status)
	}

	v.IssuedAt = parseTime(issuedAt)
	v.ExpiresAt = parseTime(expiresAt)
	v.CreatedAt = parseTime(created)
	v.RedeemedAt = parseNullTime(redeemedAt)
	v.Value, err = decimal.NewFromString(value)
	if err != nil {
		return benefits.Voucher{}, fmt.Errorf("voucher %d has malformed value %q: %w", v.ID, value, err)
	}
	v.Benefit.Value = v.Value
	return v, nil
}
