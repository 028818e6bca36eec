package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Client, error)
	// FindByIDForUpdate locks the client row; acceptance updates the aggregate
	// value/order columns under this lock.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Client, error)
	List(ctx context.Context, status string, search string, page, limit int) ([]model.Client, int64, error)
	Update(ctx context.Context, client *model.Client) error

	CreateInteraction(ctx context.Context, interaction *model.CustomerInteraction) error
	ListInteractions(ctx context.Context, clientID uuid.UUID, page, limit int) ([]model.CustomerInteraction, int64, error)
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	return GetDB(ctx, r.db).Create(client).Error
}

func (r *clientRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := GetDB(ctx, r.db).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&client, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) List(ctx context.Context, status string, search string, page, limit int) ([]model.Client, int64, error) {
	db := GetDB(ctx, r.db)

	apply := func(q *gorm.DB) *gorm.DB {
		if status != "" {
			q = q.Where("status = ?", status)
		}
		if search != "" {
			like := "%" + search + "%"
			q = q.Where("name ILIKE ? OR company_name ILIKE ? OR email ILIKE ?", like, like, like)
		}
		return q
	}

	var total int64
	if err := apply(db.Model(&model.Client{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var clients []model.Client
	offset := (page - 1) * limit
	err := apply(db).Order("created_at DESC").Offset(offset).Limit(limit).Find(&clients).Error
	if err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

func (r *clientRepository) Update(ctx context.Context, client *model.Client) error {
	return GetDB(ctx, r.db).Save(client).Error
}

func (r *clientRepository) CreateInteraction(ctx context.Context, interaction *model.CustomerInteraction) error {
	return GetDB(ctx, r.db).Create(interaction).Error
}

func (r *clientRepository) ListInteractions(ctx context.Context, clientID uuid.UUID, page, limit int) ([]model.CustomerInteraction, int64, error) {
	db := GetDB(ctx, r.db)

	var total int64
	if err := db.Model(&model.CustomerInteraction{}).Where("client_id = ?", clientID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var interactions []model.CustomerInteraction
	offset := (page - 1) * limit
	err := db.Where("client_id = ?", clientID).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&interactions).Error
	if err != nil {
		return nil, 0, err
	}
	return interactions, total, nil
}
