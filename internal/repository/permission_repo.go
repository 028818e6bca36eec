package repository

import (
	"context"
	"errors"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PermissionRepository interface {
	// PermissionLevel satisfies permission.OverrideSource.
	PermissionLevel(ctx context.Context, userID uuid.UUID, app string) (string, bool, error)
	Upsert(ctx context.Context, perm *model.AppPermission) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.AppPermission, error)
	Delete(ctx context.Context, userID uuid.UUID, app string) error
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) PermissionLevel(ctx context.Context, userID uuid.UUID, app string) (string, bool, error) {
	var perm model.AppPermission
	err := GetDB(ctx, r.db).Where("user_id = ? AND app = ?", userID, app).First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return perm.Level, true, nil
}

func (r *permissionRepository) Upsert(ctx context.Context, perm *model.AppPermission) error {
	db := GetDB(ctx, r.db)

	var existing model.AppPermission
	err := db.Where("user_id = ? AND app = ?", perm.UserID, perm.App).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(perm).Error
	}
	if err != nil {
		return err
	}

	existing.Level = perm.Level
	existing.GrantedBy = perm.GrantedBy
	return db.Save(&existing).Error
}

func (r *permissionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.AppPermission, error) {
	var perms []model.AppPermission
	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("app ASC").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) Delete(ctx context.Context, userID uuid.UUID, app string) error {
	return GetDB(ctx, r.db).Where("user_id = ? AND app = ?", userID, app).
		Delete(&model.AppPermission{}).Error
}
