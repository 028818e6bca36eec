package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	CreateProfile(ctx context.Context, profile *model.UserProfile) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context, userType string, page, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	UpdateProfile(ctx context.Context, profile *model.UserProfile) error
	ListByRoles(ctx context.Context, roles []string) ([]model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) CreateProfile(ctx context.Context, profile *model.UserProfile) error {
	return GetDB(ctx, r.db).Create(profile).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Profile").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Profile").First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Profile").First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, userType string, page, limit int) ([]model.User, int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.User{})
	if userType != "" {
		query = query.Joins("JOIN user_profiles ON user_profiles.user_id = users.id").
			Where("user_profiles.user_type = ?", userType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	offset := (page - 1) * limit
	fetch := db.Preload("Profile")
	if userType != "" {
		fetch = fetch.Joins("JOIN user_profiles ON user_profiles.user_id = users.id").
			Where("user_profiles.user_type = ?", userType)
	}
	if err := fetch.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Save(user).Error
}

func (r *userRepository) UpdateProfile(ctx context.Context, profile *model.UserProfile) error {
	return GetDB(ctx, r.db).Save(profile).Error
}

// ListByRoles returns active employees holding any of the given roles. Used
// for management fan-out on high-value quote events.
func (r *userRepository) ListByRoles(ctx context.Context, roles []string) ([]model.User, error) {
	var users []model.User
	err := GetDB(ctx, r.db).Preload("Profile").
		Joins("JOIN user_profiles ON user_profiles.user_id = users.id").
		Where("user_profiles.user_type = ? AND user_profiles.role IN ?", model.UserTypeEmployee, roles).
		Where("users.is_active = ?", true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
