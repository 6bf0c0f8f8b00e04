package gormrepo

import (
	"context"
	"errors"
	"time"

	"autokami/internal/adapter/repo/gorm/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecipientRepo struct {
	db *gorm.DB
}

func NewRecipientRepo(db *gorm.DB) RecipientRepo {
	return RecipientRepo{db: db}
}

func (r RecipientRepo) RecipientFor(ctx context.Context, operator string) (string, error) {
	var row model.NotificationRecipient
	if err := getDBFromCtx(ctx, r.db).Where("operator_identity = ?", operator).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return row.ChatID, nil
}

// PutRecipient stores the chat id; an empty id removes the recipient.
func (r RecipientRepo) PutRecipient(ctx context.Context, operator, chatID string) error {
	db := getDBFromCtx(ctx, r.db)
	if chatID == "" {
		return db.Where("operator_identity = ?", operator).Delete(&model.NotificationRecipient{}).Error
	}
	row := model.NotificationRecipient{OperatorIdentity: operator, ChatID: chatID, UpdatedAt: time.Now().UTC()}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"chat_id", "updated_at"}),
	}).Create(&row).Error
}
