// Package memory provides in-memory implementations of the voucher, catalog,
// employee and self-service stores, for tests and local demos.
package memory

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/selfservice"
)

const maxCodeAttempts = 5

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu sync.RWMutex

	employees   map[benefits.EmployeeID]benefits.Employee
	catalog     map[benefits.BenefitID]benefits.BenefitDefinition
	vouchers    []benefits.Voucher
	codes       map[string]int // code -> index into vouchers
	idempotency map[string]bool
	requests    map[string]selfservice.Request

	// Random is the code entropy source; nil means crypto/rand.
	Random io.Reader
}

func New() *Store {
	return &Store{
		employees:   make(map[benefits.EmployeeID]benefits.Employee),
		catalog:     make(map[benefits.BenefitID]benefits.BenefitDefinition),
		codes:       make(map[string]int),
		idempotency: make(map[string]bool),
		requests:    make(map[string]selfservice.Request),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Store) SaveEmployee(_ context.Context, e benefits.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.Number] = e
	return nil
}

func (m *Store) GetEmployee(_ context.Context, number benefits.EmployeeID) (*benefits.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[number]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// ListEmployees returns every employee ordered by name.
func (m *Store) ListEmployees(_ context.Context) ([]benefits.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]benefits.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Store) SaveBenefit(_ context.Context, b benefits.BenefitDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog[b.ID] = b
	return nil
}

func (m *Store) ListBenefits(_ context.Context, ids []benefits.BenefitID) ([]benefits.BenefitDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []benefits.BenefitDefinition
	for _, id := range ids {
		if b, ok := m.catalog[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Store) ListActiveBenefits(_ context.Context) ([]benefits.BenefitDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []benefits.BenefitDefinition
	for _, b := range m.catalog {
		if b.Active {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// VOUCHERS
// =============================================================================

func (m *Store) CreateVoucher(_ context.Context, nv benefits.NewVoucher) (*benefits.Voucher, error) {
	if err := nv.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.catalog[nv.Benefit.ID]; !ok {
		return nil, benefits.ErrInvalidBenefitReference
	}
	if nv.IdempotencyKey != "" && m.idempotency[nv.IdempotencyKey] {
		return nil, benefits.ErrDuplicateIdempotencyKey
	}

	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		c, err := benefits.NewCode(m.Random)
		if err != nil {
			return nil, err
		}
		if _, taken := m.codes[c]; !taken {
			code = c
			break
		}
	}
	if code == "" {
		return nil, benefits.ErrDuplicateCode
	}

	v := benefits.Voucher{
		ID:            benefits.VoucherID(len(m.vouchers) + 1),
		Code:          code,
		IssuedAt:      nv.IssuedAt,
		ExpiresAt:     nv.ExpiresAt,
		Employee:      nv.Employee,
		Benefit:       nv.Benefit,
		Justification: nv.Justification,
		Urgent:        nv.Urgent,
		Value:         nv.Value,
		Status:        nv.Status,
		CreatedBy:     nv.CreatedBy,
		CreatedAt:     nv.CreatedAt,
	}
	m.vouchers = append(m.vouchers, v)
	m.codes[code] = len(m.vouchers) - 1
	if nv.IdempotencyKey != "" {
		m.idempotency[nv.IdempotencyKey] = true
	}
	return &v, nil
}

func (m *Store) GetVoucher(_ context.Context, id benefits.VoucherID) (*benefits.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := int(id) - 1
	if i < 0 || i >= len(m.vouchers) {
		return nil, nil
	}
	v := m.vouchers[i]
	return &v, nil
}

func (m *Store) GetVoucherByCode(_ context.Context, code string) (*benefits.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.codes[code]
	if !ok {
		return nil, nil
	}
	v := m.vouchers[i]
	return &v, nil
}

func (m *Store) ListVouchers(_ context.Context, f benefits.VoucherFilter) ([]benefits.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []benefits.Voucher
	for _, v := range m.vouchers {
		if f.EmployeeNumber != "" && v.Employee.Number != f.EmployeeNumber {
			continue
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		out = append(out, v)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *Store) CancelVoucher(_ context.Context, id benefits.VoucherID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := int(id) - 1
	if i < 0 || i >= len(m.vouchers) {
		return benefits.ErrVoucherNotFound
	}
	if m.vouchers[i].Status != benefits.StatusIssued {
		return benefits.ErrVoucherNotCancellable
	}
	m.vouchers[i].Status = benefits.StatusCancelled
	m.vouchers[i].CancelReason = reason
	return nil
}

func (m *Store) RedeemVoucher(_ context.Context, code string, at time.Time) (*benefits.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.codes[code]
	if !ok {
		return nil, benefits.ErrVoucherNotFound
	}
	v := &m.vouchers[i]
	if v.Status != benefits.StatusIssued || v.ExpiredAt(at) {
		return nil, benefits.ErrVoucherNotRedeemable
	}
	v.Status = benefits.StatusRedeemed
	v.RedeemedAt = &at
	out := *v
	return &out, nil
}

func (m *Store) ExpireVouchers(_ context.Context, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.vouchers {
		if m.vouchers[i].Status == benefits.StatusIssued && m.vouchers[i].ExpiredAt(asOf) {
			m.vouchers[i].Status = benefits.StatusExpired
			n++
		}
	}
	return n, nil
}

// VoucherCount returns the number of stored vouchers.
func (m *Store) VoucherCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vouchers)
}

// =============================================================================
// SELF-SERVICE REQUESTS
// =============================================================================

func (m *Store) CreateRequest(_ context.Context, r selfservice.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[r.ID]; exists {
		return errors.New("request already exists: " + r.ID)
	}
	m.requests[r.ID] = r
	return nil
}

func (m *Store) GetRequest(_ context.Context, id string) (*selfservice.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return copyRequest(r), nil
}

func (m *Store) ListRequests(_ context.Context, f selfservice.Filter) ([]selfservice.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []selfservice.Request
	for _, r := range m.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.EmployeeNumber != "" && r.Requester.EmployeeNumber != f.EmployeeNumber {
			continue
		}
		out = append(out, *copyRequest(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (m *Store) CompleteReview(_ context.Context, id string, status selfservice.Status, review selfservice.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return selfservice.ErrRequestNotFound
	}
	if r.Status != selfservice.StatusPending {
		return selfservice.ErrInvalidTransition
	}
	r.Status = status
	r.Review = &review
	m.requests[id] = r
	return nil
}

func copyRequest(r selfservice.Request) *selfservice.Request {
	out := r
	if r.Review != nil {
		rv := *r.Review
		out.Review = &rv
	}
	return &out
}
