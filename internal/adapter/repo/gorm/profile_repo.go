package gormrepo

import (
	"context"
	"errors"
	"time"

	"autokami/internal/adapter/repo/gorm/model"
	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepo struct {
	db *gorm.DB
}

func NewProfileRepo(db *gorm.DB) ProfileRepo {
	return ProfileRepo{db: db}
}

func (r ProfileRepo) Get(ctx context.Context, agentID string) (kami.AgentProfile, error) {
	var m model.KamiProfile
	if err := getDBFromCtx(ctx, r.db).Where("agent_id = ?", agentID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return kami.AgentProfile{}, ports.ErrNotFound
		}
		return kami.AgentProfile{}, err
	}
	return toProfile(m), nil
}

// GetOrCreate inserts the default profile unless one exists and returns the
// stored row, so two racing first references agree on the result.
func (r ProfileRepo) GetOrCreate(ctx context.Context, agentID, operator string) (kami.AgentProfile, error) {
	seed := fromProfile(kami.NewAgentProfile(agentID, operator))
	now := time.Now().UTC()
	seed.CreatedAt, seed.UpdatedAt = now, now
	if err := getDBFromCtx(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return kami.AgentProfile{}, err
	}
	return r.Get(ctx, agentID)
}

func (r ProfileRepo) Save(ctx context.Context, profile kami.AgentProfile) error {
	m := fromProfile(profile)
	m.UpdatedAt = time.Now().UTC()
	m.CreatedAt = m.UpdatedAt
	return getDBFromCtx(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "agent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"operator_identity", "activity", "harvest_duration", "rest_duration",
			"min_health_threshold", "auto_harvest_enabled", "auto_collect_enabled",
			"auto_restart_enabled", "target_node_index", "last_harvest_start",
			"last_collect", "total_harvests", "total_rests", "automation_started_at",
			"updated_at",
		}),
	}).Create(&m).Error
}

func (r ProfileRepo) SaveState(ctx context.Context, profile kami.AgentProfile) error {
	updates := map[string]any{
		"activity":           string(profile.Activity),
		"last_harvest_start": profile.LastHarvestStart,
		"last_collect":       profile.LastCollect,
		"total_harvests":     profile.TotalHarvests,
		"total_rests":        profile.TotalRests,
		"updated_at":         time.Now().UTC(),
	}
	return r.update(ctx, profile.AgentID, updates)
}

func (r ProfileRepo) SaveSettings(ctx context.Context, profile kami.AgentProfile) error {
	return r.update(ctx, profile.AgentID, map[string]any{
		"harvest_duration":      int32(profile.HarvestMinutes),
		"rest_duration":         int32(profile.RestMinutes),
		"min_health_threshold":  int32(profile.MinHealthThreshold),
		"auto_harvest_enabled":  profile.AutoHarvestEnabled,
		"auto_collect_enabled":  profile.AutoCollectEnabled,
		"auto_restart_enabled":  profile.AutoRestartEnabled,
		"target_node_index":     int32(profile.TargetNodeIndex),
		"automation_started_at": profile.AutomationStartedAt,
		"updated_at":            time.Now().UTC(),
	})
}

func (r ProfileRepo) update(ctx context.Context, agentID string, updates map[string]any) error {
	res := getDBFromCtx(ctx, r.db).
		Model(&model.KamiProfile{}).
		Where("agent_id = ?", agentID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r ProfileRepo) ListAutomated(ctx context.Context) ([]kami.AgentProfile, error) {
	rows := []model.KamiProfile{}
	if err := getDBFromCtx(ctx, r.db).
		Where("auto_harvest_enabled = ?", true).
		Order("agent_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]kami.AgentProfile, 0, len(rows))
	for _, m := range rows {
		out = append(out, toProfile(m))
	}
	return out, nil
}

func toProfile(m model.KamiProfile) kami.AgentProfile {
	return kami.AgentProfile{
		AgentID:             m.AgentID,
		OperatorIdentity:    m.OperatorIdentity,
		Activity:            kami.Activity(m.Activity),
		HarvestMinutes:      int(m.HarvestDuration),
		RestMinutes:         int(m.RestDuration),
		MinHealthThreshold:  int(m.MinHealthThreshold),
		AutoHarvestEnabled:  m.AutoHarvestEnabled,
		AutoCollectEnabled:  m.AutoCollectEnabled,
		AutoRestartEnabled:  m.AutoRestartEnabled,
		TargetNodeIndex:     int(m.TargetNodeIndex),
		LastHarvestStart:    utcPtr(m.LastHarvestStart),
		LastCollect:         utcPtr(m.LastCollect),
		TotalHarvests:       m.TotalHarvests,
		TotalRests:          m.TotalRests,
		AutomationStartedAt: utcPtr(m.AutomationStartedAt),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
}

func fromProfile(p kami.AgentProfile) model.KamiProfile {
	return model.KamiProfile{
		AgentID:             p.AgentID,
		OperatorIdentity:    p.OperatorIdentity,
		Activity:            string(p.Activity),
		HarvestDuration:     int32(p.HarvestMinutes),
		RestDuration:        int32(p.RestMinutes),
		MinHealthThreshold:  int32(p.MinHealthThreshold),
		AutoHarvestEnabled:  p.AutoHarvestEnabled,
		AutoCollectEnabled:  p.AutoCollectEnabled,
		AutoRestartEnabled:  p.AutoRestartEnabled,
		TargetNodeIndex:     int32(p.TargetNodeIndex),
		LastHarvestStart:    p.LastHarvestStart,
		LastCollect:         p.LastCollect,
		TotalHarvests:       p.TotalHarvests,
		TotalRests:          p.TotalRests,
		AutomationStartedAt: p.AutomationStartedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
