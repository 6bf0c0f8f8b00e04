package memory

import (
	"context"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"
)

const defaultAuditLimit = 100

type AuditRepo struct {
	store *Store
}

func NewAuditRepo(store *Store) AuditRepo {
	return AuditRepo{store: store}
}

func (r AuditRepo) Append(_ context.Context, event kami.AuditEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.events {
		if event.ID != "" && e.ID == event.ID {
			return ports.ErrConflict
		}
	}
	r.store.events = append(r.store.events, event)
	return nil
}

// LatestForAgent scans from the newest append. Events are appended in
// creation order.
func (r AuditRepo) LatestForAgent(_ context.Context, agentID string, actions []string) (kami.AuditEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for i := len(r.store.events) - 1; i >= 0; i-- {
		e := r.store.events[i]
		if e.AgentID == agentID && contains(actions, e.Action) {
			return e, nil
		}
	}
	return kami.AuditEvent{}, ports.ErrNotFound
}

func (r AuditRepo) List(_ context.Context, filter ports.AuditFilter) ([]kami.AuditEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	out := make([]kami.AuditEvent, 0)
	for i := len(r.store.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.store.events[i]
		if filter.OperatorIdentity != "" && e.OperatorIdentity != filter.OperatorIdentity {
			continue
		}
		if filter.AgentID != "" && e.AgentID != filter.AgentID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
