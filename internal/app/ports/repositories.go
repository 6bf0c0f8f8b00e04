package ports

import (
	"context"
	"time"

	"autokami/internal/domain/kami"
)

type ProfileRepository interface {
	Get(ctx context.Context, agentID string) (kami.AgentProfile, error)
	// GetOrCreate returns the stored profile, creating the safe default on
	// first reference.
	GetOrCreate(ctx context.Context, agentID, operator string) (kami.AgentProfile, error)
	Save(ctx context.Context, profile kami.AgentProfile) error
	// SaveState writes only operational fields (activity, timestamps,
	// counters) and leaves automation settings as stored.
	SaveState(ctx context.Context, profile kami.AgentProfile) error
	// SaveSettings writes only the operator-controlled fields (durations,
	// threshold, automation flags, target node) and leaves activity,
	// timestamps and counters as stored.
	SaveSettings(ctx context.Context, profile kami.AgentProfile) error
	ListAutomated(ctx context.Context) ([]kami.AgentProfile, error)
}

type CraftingSettingRepository interface {
	Get(ctx context.Context, operator string) (kami.CraftingSetting, error)
	Upsert(ctx context.Context, setting kami.CraftingSetting) error
	ListEnabled(ctx context.Context) ([]kami.CraftingSetting, error)
	MarkRun(ctx context.Context, operator string, at time.Time) error
}

type AuditFilter struct {
	OperatorIdentity string
	AgentID          string
	Limit            int
}

type AuditRepository interface {
	Append(ctx context.Context, event kami.AuditEvent) error
	// LatestForAgent returns the newest event for the agent whose action is
	// one of actions.
	LatestForAgent(ctx context.Context, agentID string, actions []string) (kami.AuditEvent, error)
	List(ctx context.Context, filter AuditFilter) ([]kami.AuditEvent, error)
}

type SealedCredential struct {
	OperatorIdentity string
	Ciphertext       []byte
	Salt             []byte
	Nonce            []byte
	UpdatedAt        time.Time
}

type CredentialRepository interface {
	Get(ctx context.Context, operator string) (SealedCredential, error)
	Put(ctx context.Context, credential SealedCredential) error
}

type RecipientRepository interface {
	// RecipientFor returns the chat recipient for an operator, or "" when none
	// is configured.
	RecipientFor(ctx context.Context, operator string) (string, error)
}

// RecipientStore adds the write side used by the operator surface.
type RecipientStore interface {
	RecipientRepository
	PutRecipient(ctx context.Context, operator, chatID string) error
}
