package gormrepo

import (
	"context"
	"errors"
	"strings"
	"time"

	"autokami/internal/adapter/repo/gorm/model"
	"autokami/internal/app/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CredentialRepo struct {
	db *gorm.DB
}

func NewCredentialRepo(db *gorm.DB) CredentialRepo {
	return CredentialRepo{db: db}
}

func (r CredentialRepo) Get(ctx context.Context, operator string) (ports.SealedCredential, error) {
	var row model.OperatorCredential
	if err := getDBFromCtx(ctx, r.db).Where(&model.OperatorCredential{OperatorIdentity: operator}).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.SealedCredential{}, ports.ErrNotFound
		}
		return ports.SealedCredential{}, err
	}
	return ports.SealedCredential{
		OperatorIdentity: row.OperatorIdentity,
		Ciphertext:       row.Ciphertext,
		Salt:             row.Salt,
		Nonce:            row.Nonce,
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}

// Put replaces the operator's sealed credential.
func (r CredentialRepo) Put(ctx context.Context, credential ports.SealedCredential) error {
	updatedAt := credential.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	row := model.OperatorCredential{
		OperatorIdentity: credential.OperatorIdentity,
		Ciphertext:       credential.Ciphertext,
		Salt:             credential.Salt,
		Nonce:            credential.Nonce,
		UpdatedAt:        updatedAt,
	}
	return getDBFromCtx(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"ciphertext", "salt", "nonce", "updated_at"}),
	}).Create(&row).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
