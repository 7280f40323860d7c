package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefits"
)

// =============================================================================
// EMPLOYEE OPERATIONS (benefits.EmployeeDirectory interface)
// =============================================================================

// SaveEmployee inserts or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, e benefits.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (employee_number, name, email, department, role, hire_date, terminated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_number) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department = excluded.department,
			role = excluded.role,
			hire_date = excluded.hire_date,
			terminated_at = excluded.terminated_at
	`

	var hireDate sql.NullString
	if !e.HireDate.IsZero() {
		hireDate = nullTime(&e.HireDate)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, query,
		e.Number, e.Name, e.Email, e.Department, e.Role,
		hireDate, nullTime(e.TerminatedAt), formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee retrieves an employee by number.
func (s *Store) GetEmployee(ctx context.Context, number benefits.EmployeeID) (*benefits.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT employee_number, name, email, department, role, hire_date, terminated_at, created_at
		FROM employees WHERE employee_number = ?`, number)

	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]benefits.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_number, name, email, department, role, hire_date, terminated_at, created_at
		FROM employees ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []benefits.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row rowScanner) (benefits.Employee, error) {
	var (
		e                    benefits.Employee
		hireDate, terminated sql.NullString
		createdAt            string
	)
	if err := row.Scan(&e.Number, &e.Name, &e.Email, &e.Department, &e.Role, &hireDate, &terminated, &createdAt); err != nil {
		return benefits.Employee{}, err
	}
	if t := parseNullTime(hireDate); t != nil {
		e.HireDate = *t
	}
	e.TerminatedAt = parseNullTime(terminated)
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// =============================================================================
// CATALOG OPERATIONS (benefits.CatalogStore interface)
// =============================================================================

// SaveBenefit inserts or updates a catalog definition. Existing vouchers keep
// their own snapshot and are not touched.
func (s *Store) SaveBenefit(ctx context.Context, b benefits.BenefitDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedAt := b.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO benefits (id, name, description, value, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			value = excluded.value,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, b.ID, b.Name, b.Description, b.Value.String(), b.Active, formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("failed to save benefit: %w", err)
	}
	return nil
}

// ListBenefits returns the definitions with the given IDs, active or not.
func (s *Store) ListBenefits(ctx context.Context, ids []benefits.BenefitID) ([]benefits.BenefitDefinition, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return s.queryBenefits(ctx, `
		SELECT id, name, description, value, active, updated_at
		FROM benefits WHERE id IN (`+placeholders+`)`, args...)
}

// ListActiveBenefits returns the active catalog ordered by name.
func (s *Store) ListActiveBenefits(ctx context.Context) ([]benefits.BenefitDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBenefits(ctx, `
		SELECT id, name, description, value, active, updated_at
		FROM benefits WHERE active = TRUE ORDER BY name`)
}

func (s *Store) queryBenefits(ctx context.Context, query string, args ...any) ([]benefits.BenefitDefinition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query benefits: %w", err)
	}
	defer rows.Close()

	var out []benefits.BenefitDefinition
	for rows.Next() {
		var (
			b                benefits.BenefitDefinition
			value, updatedAt string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &value, &b.Active, &updatedAt); err != nil {
			return nil, err
		}
		b.Value, err = decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("benefit %s has malformed value %q: %w", b.ID, value, err)
		}
		b.UpdatedAt = parseTime(updatedAt)
		out = append(out, b)
	}
	return out, rows.Err()
}
