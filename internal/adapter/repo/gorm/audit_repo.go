package gormrepo

import (
	"context"
	"encoding/json"
	"errors"

	"autokami/internal/adapter/repo/gorm/model"
	"autokami/internal/app/ports"
	"autokami/internal/domain/kami"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultAuditLimit = 100

type AuditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepo {
	return AuditRepo{db: db}
}

func (r AuditRepo) Append(ctx context.Context, event kami.AuditEvent) error {
	meta := event.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	row := model.AuditEvent{
		ID:               event.ID,
		OperatorIdentity: event.OperatorIdentity,
		AgentID:          event.AgentID,
		Action:           event.Action,
		Status:           string(event.Status),
		Message:          event.Message,
		Metadata:         datatypes.JSON(b),
		CreatedAt:        event.CreatedAt,
	}
	if err := getDBFromCtx(ctx, r.db).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrConflict
		}
		return err
	}
	return nil
}

func (r AuditRepo) LatestForAgent(ctx context.Context, agentID string, actions []string) (kami.AuditEvent, error) {
	var row model.AuditEvent
	err := getDBFromCtx(ctx, r.db).
		Where("agent_id = ? AND action IN ?", agentID, actions).
		Clauses(newestFirst).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return kami.AuditEvent{}, ports.ErrNotFound
		}
		return kami.AuditEvent{}, err
	}
	return toAuditEvent(row), nil
}

func (r AuditRepo) List(ctx context.Context, filter ports.AuditFilter) ([]kami.AuditEvent, error) {
	query := getDBFromCtx(ctx, r.db).Model(&model.AuditEvent{})
	if filter.OperatorIdentity != "" {
		query = query.Where("operator_identity = ?", filter.OperatorIdentity)
	}
	if filter.AgentID != "" {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	rows := []model.AuditEvent{}
	if err := query.Clauses(newestFirst).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]kami.AuditEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAuditEvent(row))
	}
	return out, nil
}

var newestFirst = clause.OrderBy{
	Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "created_at"}, Desc: true}},
}

func toAuditEvent(row model.AuditEvent) kami.AuditEvent {
	var meta map[string]any
	if len(row.Metadata) > 0 {
		_ = json.Unmarshal(row.Metadata, &meta)
	}
	if len(meta) == 0 {
		meta = nil
	}
	return kami.AuditEvent{
		ID:               row.ID,
		OperatorIdentity: row.OperatorIdentity,
		AgentID:          row.AgentID,
		Action:           row.Action,
		Status:           kami.AuditStatus(row.Status),
		Message:          row.Message,
		Metadata:         meta,
		CreatedAt:        row.CreatedAt.UTC(),
	}
}
