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

type CraftingSettingRepo struct {
	db *gorm.DB
}

func NewCraftingSettingRepo(db *gorm.DB) CraftingSettingRepo {
	return CraftingSettingRepo{db: db}
}

func (r CraftingSettingRepo) Get(ctx context.Context, operator string) (kami.CraftingSetting, error) {
	var m model.CraftingSetting
	if err := getDBFromCtx(ctx, r.db).Where("operator_identity = ?", operator).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return kami.CraftingSetting{}, ports.ErrNotFound
		}
		return kami.CraftingSetting{}, err
	}
	return toCraftingSetting(m), nil
}

// Upsert writes the operator's configuration. last_run_at is owned by the
// crafting cycle and is kept on update.
func (r CraftingSettingRepo) Upsert(ctx context.Context, setting kami.CraftingSetting) error {
	m := model.CraftingSetting{
		OperatorIdentity: setting.OperatorIdentity,
		RecipeID:         int32(setting.RecipeID),
		AmountPerRun:     int32(setting.AmountPerRun),
		IntervalMinutes:  int32(setting.IntervalMinutes),
		IsEnabled:        setting.IsEnabled,
		LastRunAt:        setting.LastRunAt,
		UpdatedAt:        time.Now().UTC(),
	}
	return getDBFromCtx(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"recipe_id", "amount_per_run", "interval_minutes", "is_enabled", "updated_at"}),
	}).Create(&m).Error
}

func (r CraftingSettingRepo) ListEnabled(ctx context.Context) ([]kami.CraftingSetting, error) {
	rows := []model.CraftingSetting{}
	if err := getDBFromCtx(ctx, r.db).
		Where("is_enabled = ?", true).
		Order("operator_identity").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]kami.CraftingSetting, 0, len(rows))
	for _, m := range rows {
		out = append(out, toCraftingSetting(m))
	}
	return out, nil
}

func (r CraftingSettingRepo) MarkRun(ctx context.Context, operator string, at time.Time) error {
	res := getDBFromCtx(ctx, r.db).
		Model(&model.CraftingSetting{}).
		Where("operator_identity = ?", operator).
		Updates(map[string]any{"last_run_at": at, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func toCraftingSetting(m model.CraftingSetting) kami.CraftingSetting {
	return kami.CraftingSetting{
		OperatorIdentity: m.OperatorIdentity,
		RecipeID:         int(m.RecipeID),
		AmountPerRun:     int(m.AmountPerRun),
		IntervalMinutes:  int(m.IntervalMinutes),
		IsEnabled:        m.IsEnabled,
		LastRunAt:        utcPtr(m.LastRunAt),
	}
}
