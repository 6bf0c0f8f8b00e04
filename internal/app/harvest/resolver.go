package harvest

import (
	"context"
	"errors"
	"fmt"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"
)

var ErrHarvestUnresolved = errors.New("harvest id unresolved")

type Source string

const (
	SourceAudit  Source = "audit"
	SourceLedger Source = "ledger"
)

var startActions = []string{kami.ActionAutoStart, kami.ActionManualStart}

// Resolver finds the harvest entity id needed to stop a running harvest. The
// audit log is consulted first; scanning the ledger is the expensive fallback.
type Resolver struct {
	Audit  ports.AuditRepository
	Ledger ports.Ledger
}

func (r Resolver) Resolve(ctx context.Context, agentID string) (string, Source, error) {
	if r.Audit != nil {
		// A failed audit read falls through to the ledger, which is
		// authoritative anyway.
		event, err := r.Audit.LatestForAgent(ctx, agentID, startActions)
		if err == nil {
			if id, ok := event.HarvestID(); ok {
				return id, SourceAudit, nil
			}
		}
	}

	harvests, err := r.Ledger.HarvestsByTarget(ctx, agentID)
	if err != nil {
		return "", "", fmt.Errorf("scan harvests for kami %s: %w", agentID, err)
	}
	for _, h := range harvests {
		if h.Active && h.ID != "" {
			return h.ID, SourceLedger, nil
		}
	}
	return "", "", fmt.Errorf("%w: kami %s", ErrHarvestUnresolved, agentID)
}
