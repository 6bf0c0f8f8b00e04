// Package operator holds the configuration side of the service: profile and
// crafting settings, stored credentials, notification recipients and the
// audit feed.
package operator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"
)

var (
	ErrInvalidRequest   = errors.New("invalid operator request")
	ErrUnknownRecipe    = errors.New("unknown recipe")
	ErrOperatorMismatch = errors.New("kami is managed by another operator")
)

const maxAuditLimit = 500

// CredentialSealer stores a signing secret for an operator in sealed form.
type CredentialSealer interface {
	Store(ctx context.Context, operator string, secret []byte) error
}

type UseCase struct {
	Profiles   ports.ProfileRepository
	Settings   ports.CraftingSettingRepository
	Events     ports.AuditRepository
	Recipients ports.RecipientStore
	Sealer     CredentialSealer
	Catalog    kami.RecipeCatalog
	Lock       ports.Locker
	Now        func() time.Time
}

// Profile returns the stored profile. With an operator it creates the
// default profile on first reference.
func (u UseCase) Profile(ctx context.Context, agentID, operator string) (kami.AgentProfile, error) {
	agentID = strings.TrimSpace(agentID)
	operator = strings.TrimSpace(operator)
	if agentID == "" {
		return kami.AgentProfile{}, ErrInvalidRequest
	}
	if operator == "" {
		return u.Profiles.Get(ctx, agentID)
	}
	p, err := u.Profiles.GetOrCreate(ctx, agentID, operator)
	if err != nil {
		return kami.AgentProfile{}, err
	}
	if !strings.EqualFold(p.OperatorIdentity, operator) {
		return kami.AgentProfile{}, ErrOperatorMismatch
	}
	return p, nil
}

// UpdateAutomation applies a settings change under the operator lock. Only
// the configuration columns are written; activity, timestamps and counters
// belong to the harvest engine and stay as stored.
func (u UseCase) UpdateAutomation(ctx context.Context, req AutomationRequest) (kami.AgentProfile, error) {
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.Operator = strings.TrimSpace(req.Operator)
	if req.AgentID == "" || req.Operator == "" {
		return kami.AgentProfile{}, ErrInvalidRequest
	}
	if err := validateAutomation(req); err != nil {
		return kami.AgentProfile{}, err
	}

	var out kami.AgentProfile
	err := u.exclusive(ctx, req.Operator, func(ctx context.Context) error {
		p, err := u.Profile(ctx, req.AgentID, req.Operator)
		if err != nil {
			return err
		}
		applyAutomation(&p, req, u.now())
		if err := u.Profiles.SaveSettings(ctx, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		out, err = u.Profiles.Get(ctx, req.AgentID)
		return err
	})
	return out, err
}

func (u UseCase) UpsertCrafting(ctx context.Context, req CraftingRequest) (kami.CraftingSetting, error) {
	req.Operator = strings.TrimSpace(req.Operator)
	if req.Operator == "" || req.AmountPerRun < 1 || req.IntervalMinutes < 1 {
		return kami.CraftingSetting{}, ErrInvalidRequest
	}
	if _, ok := u.Catalog.Lookup(req.RecipeID); !ok {
		return kami.CraftingSetting{}, fmt.Errorf("%w: %d", ErrUnknownRecipe, req.RecipeID)
	}
	setting := kami.CraftingSetting{
		OperatorIdentity: req.Operator,
		RecipeID:         req.RecipeID,
		AmountPerRun:     req.AmountPerRun,
		IntervalMinutes:  req.IntervalMinutes,
		IsEnabled:        req.IsEnabled,
	}
	if err := u.Settings.Upsert(ctx, setting); err != nil {
		return kami.CraftingSetting{}, err
	}
	return u.Settings.Get(ctx, req.Operator)
}

func (u UseCase) Audit(ctx context.Context, req AuditRequest) (AuditResponse, error) {
	if req.Limit < 0 {
		return AuditResponse{}, ErrInvalidRequest
	}
	if req.Limit > maxAuditLimit {
		req.Limit = maxAuditLimit
	}
	events, err := u.Events.List(ctx, ports.AuditFilter{
		OperatorIdentity: strings.TrimSpace(req.Operator),
		AgentID:          strings.TrimSpace(req.AgentID),
		Limit:            req.Limit,
	})
	if err != nil {
		return AuditResponse{}, err
	}
	return AuditResponse{Events: events}, nil
}

// StoreCredential seals a hex-encoded signing key. The decoded bytes are
// zeroed once sealed.
func (u UseCase) StoreCredential(ctx context.Context, operator, privateKeyHex string) error {
	operator = strings.TrimSpace(operator)
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if operator == "" || privateKeyHex == "" || u.Sealer == nil {
		return ErrInvalidRequest
	}
	secret, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return fmt.Errorf("%w: private key is not hex", ErrInvalidRequest)
	}
	defer ports.NewCredential(secret).Wipe()
	return u.Sealer.Store(ctx, operator, secret)
}

// SetRecipient binds a chat id to the operator; an empty id clears it.
func (u UseCase) SetRecipient(ctx context.Context, operator, chatID string) error {
	operator = strings.TrimSpace(operator)
	if operator == "" || u.Recipients == nil {
		return ErrInvalidRequest
	}
	return u.Recipients.PutRecipient(ctx, operator, strings.TrimSpace(chatID))
}

func validateAutomation(req AutomationRequest) error {
	positive := func(v *int) bool { return v == nil || *v > 0 }
	if !positive(req.HarvestMinutes) || !positive(req.RestMinutes) {
		return fmt.Errorf("%w: durations must be positive minutes", ErrInvalidRequest)
	}
	if req.MinHealthThreshold != nil && (*req.MinHealthThreshold < 0 || *req.MinHealthThreshold > 100) {
		return fmt.Errorf("%w: min_health_threshold must be within 0..100", ErrInvalidRequest)
	}
	if req.TargetNodeIndex != nil && *req.TargetNodeIndex < 0 {
		return fmt.Errorf("%w: target_node_index must not be negative", ErrInvalidRequest)
	}
	return nil
}

func applyAutomation(p *kami.AgentProfile, req AutomationRequest, now time.Time) {
	if req.HarvestMinutes != nil {
		p.HarvestMinutes = *req.HarvestMinutes
	}
	if req.RestMinutes != nil {
		p.RestMinutes = *req.RestMinutes
	}
	if req.MinHealthThreshold != nil {
		p.MinHealthThreshold = *req.MinHealthThreshold
	}
	if req.AutoCollectEnabled != nil {
		p.AutoCollectEnabled = *req.AutoCollectEnabled
	}
	if req.AutoRestartEnabled != nil {
		p.AutoRestartEnabled = *req.AutoRestartEnabled
	}
	if req.TargetNodeIndex != nil {
		p.TargetNodeIndex = *req.TargetNodeIndex
	}
	if req.AutoHarvestEnabled != nil {
		if *req.AutoHarvestEnabled {
			p.EnableAutomation(now)
		} else {
			p.DisableAutomation()
		}
	}
}

func (u UseCase) exclusive(ctx context.Context, operator string, fn func(ctx context.Context) error) error {
	if u.Lock == nil {
		return fn(ctx)
	}
	return u.Lock.RunExclusive(ctx, operator, fn)
}

func (u UseCase) now() time.Time {
	if u.Now == nil {
		return time.Now().UTC()
	}
	return u.Now()
}
