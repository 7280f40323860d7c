package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/benefit-engine/audit"
)

// AuditLog is an in-memory audit.Log.
type AuditLog struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (l *AuditLog) Append(_ context.Context, e audit.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	l.entries = append(l.entries, e)
	return nil
}

// List returns matching entries, most recent first.
func (l *AuditLog) List(_ context.Context, q audit.Query) ([]audit.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []audit.Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if !q.Matches(l.entries[i]) {
			continue
		}
		out = append(out, l.entries[i])
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
