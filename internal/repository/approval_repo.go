package repository

import (
	"context"
	"errors"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApprovalRepository interface {
	Create(ctx context.Context, req *model.ApprovalRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error)
	FindPending(ctx context.Context, userID uuid.UUID, app string) (*model.ApprovalRequest, error)
	List(ctx context.Context, status string, page, limit int) ([]model.ApprovalRequest, int64, error)
	Update(ctx context.Context, req *model.ApprovalRequest) error
	ListPendingOlderThan(ctx context.Context, userType string, cutoff time.Time) ([]model.ApprovalRequest, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, req *model.ApprovalRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *approvalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := GetDB(ctx, r.db).Preload("User").Preload("User.Profile").Preload("Reviewer").
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPending returns the open request for (user, app) if one exists. Used to
// enforce the single-open-request rule.
func (r *approvalRepository) FindPending(ctx context.Context, userID uuid.UUID, app string) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	err := GetDB(ctx, r.db).
		Where("user_id = ? AND app = ? AND status = ?", userID, app, model.ApprovalPending).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) List(ctx context.Context, status string, page, limit int) ([]model.ApprovalRequest, int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.ApprovalRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []model.ApprovalRequest
	offset := (page - 1) * limit
	fetch := db.Preload("User").Preload("User.Profile").Preload("Reviewer")
	if status != "" {
		fetch = fetch.Where("status = ?", status)
	}
	err := fetch.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

func (r *approvalRepository) Update(ctx context.Context, req *model.ApprovalRequest) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *approvalRepository) ListPendingOlderThan(ctx context.Context, userType string, cutoff time.Time) ([]model.ApprovalRequest, error) {
	var requests []model.ApprovalRequest
	query := GetDB(ctx, r.db).Preload("User").Preload("User.Profile").
		Where("approval_requests.status = ? AND approval_requests.created_at < ?", model.ApprovalPending, cutoff)
	if userType != "" {
		query = query.
			Joins("JOIN user_profiles ON user_profiles.user_id = approval_requests.user_id").
			Where("user_profiles.user_type = ?", userType)
	}
	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
