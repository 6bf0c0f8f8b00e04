package memory

import (
	"context"
	"sort"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"
)

type ProfileRepo struct {
	store *Store
}

func NewProfileRepo(store *Store) ProfileRepo {
	return ProfileRepo{store: store}
}

func (r ProfileRepo) Get(_ context.Context, agentID string) (kami.AgentProfile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.profiles[agentID]
	if !ok {
		return kami.AgentProfile{}, ports.ErrNotFound
	}
	return p, nil
}

func (r ProfileRepo) GetOrCreate(_ context.Context, agentID, operator string) (kami.AgentProfile, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if p, ok := r.store.profiles[agentID]; ok {
		return p, nil
	}
	p := kami.NewAgentProfile(agentID, operator)
	p.UpdatedAt = r.store.now()
	r.store.profiles[agentID] = p
	return p, nil
}

func (r ProfileRepo) Save(_ context.Context, profile kami.AgentProfile) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	profile.UpdatedAt = r.store.now()
	r.store.profiles[profile.AgentID] = profile
	return nil
}

func (r ProfileRepo) SaveState(_ context.Context, profile kami.AgentProfile) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.profiles[profile.AgentID]
	if !ok {
		return ports.ErrNotFound
	}
	current.Activity = profile.Activity
	current.LastHarvestStart = profile.LastHarvestStart
	current.LastCollect = profile.LastCollect
	current.TotalHarvests = profile.TotalHarvests
	current.TotalRests = profile.TotalRests
	current.UpdatedAt = r.store.now()
	r.store.profiles[profile.AgentID] = current
	return nil
}

func (r ProfileRepo) SaveSettings(_ context.Context, profile kami.AgentProfile) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.profiles[profile.AgentID]
	if !ok {
		return ports.ErrNotFound
	}
	current.HarvestMinutes = profile.HarvestMinutes
	current.RestMinutes = profile.RestMinutes
	current.MinHealthThreshold = profile.MinHealthThreshold
	current.AutoHarvestEnabled = profile.AutoHarvestEnabled
	current.AutoCollectEnabled = profile.AutoCollectEnabled
	current.AutoRestartEnabled = profile.AutoRestartEnabled
	current.TargetNodeIndex = profile.TargetNodeIndex
	current.AutomationStartedAt = profile.AutomationStartedAt
	current.UpdatedAt = r.store.now()
	r.store.profiles[profile.AgentID] = current
	return nil
}

func (r ProfileRepo) ListAutomated(context.Context) ([]kami.AgentProfile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]kami.AgentProfile, 0)
	for _, p := range r.store.profiles {
		if p.AutoHarvestEnabled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}
