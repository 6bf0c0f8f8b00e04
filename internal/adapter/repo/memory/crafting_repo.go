package memory

import (
	"context"
	"sort"
	"time"

	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"
)

type CraftingSettingRepo struct {
	store *Store
}

func NewCraftingSettingRepo(store *Store) CraftingSettingRepo {
	return CraftingSettingRepo{store: store}
}

func (r CraftingSettingRepo) Get(_ context.Context, operator string) (kami.CraftingSetting, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.settings[operator]
	if !ok {
		return kami.CraftingSetting{}, ports.ErrNotFound
	}
	return s, nil
}

func (r CraftingSettingRepo) Upsert(_ context.Context, setting kami.CraftingSetting) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if current, ok := r.store.settings[setting.OperatorIdentity]; ok {
		setting.LastRunAt = current.LastRunAt
	}
	r.store.settings[setting.OperatorIdentity] = setting
	return nil
}

func (r CraftingSettingRepo) ListEnabled(context.Context) ([]kami.CraftingSetting, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]kami.CraftingSetting, 0)
	for _, s := range r.store.settings {
		if s.IsEnabled {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OperatorIdentity < out[j].OperatorIdentity })
	return out, nil
}

func (r CraftingSettingRepo) MarkRun(_ context.Context, operator string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.settings[operator]
	if !ok {
		return ports.ErrNotFound
	}
	t := at
	s.LastRunAt = &t
	r.store.settings[operator] = s
	return nil
}
