package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuoteListFilter narrows quote listings.
type QuoteListFilter struct {
	Status     string
	ClientID   *uuid.UUID
	AssignedTo *uuid.UUID
	Sort       string
	Page       int
	Limit      int
}

type QuoteRepository interface {
	Create(ctx context.Context, quote *model.Quote) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Quote, error)
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Quote, error)
	// FindByIDForUpdate locks the quote row for the duration of the enclosing
	// transaction. Every item mutation and status transition goes through this
	// lock to serialize concurrent edits of the same quote.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Quote, error)
	FindByAccessToken(ctx context.Context, token string) (*model.Quote, error)
	List(ctx context.Context, filter QuoteListFilter) ([]model.Quote, int64, error)
	Update(ctx context.Context, quote *model.Quote) error
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
	AdvisoryLock(ctx context.Context, key string) error

	CreateItem(ctx context.Context, item *model.QuoteItem) error
	FindItem(ctx context.Context, quoteID, itemID uuid.UUID) (*model.QuoteItem, error)
	UpdateItem(ctx context.Context, item *model.QuoteItem) error
	DeleteItem(ctx context.Context, quoteID, itemID uuid.UUID) error
	ListItems(ctx context.Context, quoteID uuid.UUID) ([]model.QuoteItem, error)

	ListOpenPastValidity(ctx context.Context, openStatuses []string, before time.Time) ([]model.Quote, error)
	ListDueFollowups(ctx context.Context, openStatuses []string, due time.Time) ([]model.Quote, error)
}

type quoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) QuoteRepository {
	return &quoteRepository{db: db}
}

func (r *quoteRepository) Create(ctx context.Context, quote *model.Quote) error {
	return GetDB(ctx, r.db).Create(quote).Error
}

func (r *quoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	var quote model.Quote
	if err := GetDB(ctx, r.db).First(&quote, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	var quote model.Quote
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, created_at ASC") }).
		Preload("Client").
		First(&quote, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	var quote model.Quote
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&quote, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepository) FindByAccessToken(ctx context.Context, token string) (*model.Quote, error) {
	var quote model.Quote
	err := GetDB(ctx, r.db).Preload("Items").Preload("Client").
		First(&quote, "access_token = ? AND access_token <> ''", token).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepository) List(ctx context.Context, filter QuoteListFilter) ([]model.Quote, int64, error) {
	db := GetDB(ctx, r.db)

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.ClientID != nil {
			q = q.Where("client_id = ?", *filter.ClientID)
		}
		if filter.AssignedTo != nil {
			q = q.Where("assigned_to = ?", *filter.AssignedTo)
		}
		return q
	}

	var total int64
	if err := apply(db.Model(&model.Quote{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Sort column is validated at the handler, never taken raw from the query.
	sortCol := filter.Sort
	if sortCol == "" {
		sortCol = "created_at"
	}

	var quotes []model.Quote
	offset := (filter.Page - 1) * filter.Limit
	err := apply(db.Preload("Client")).
		Order(sortCol + " DESC").Offset(offset).Limit(filter.Limit).
		Find(&quotes).Error
	if err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

func (r *quoteRepository) Update(ctx context.Context, quote *model.Quote) error {
	return GetDB(ctx, r.db).Save(quote).Error
}

func (r *quoteRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Quote{}).
		Where("quote_number LIKE ?", prefix+"%").Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AdvisoryLock takes a transaction-scoped postgres advisory lock, used to
// serialize quote number generation.
func (r *quoteRepository) AdvisoryLock(ctx context.Context, key string) error {
	return GetDB(ctx, r.db).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}

func (r *quoteRepository) CreateItem(ctx context.Context, item *model.QuoteItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *quoteRepository) FindItem(ctx context.Context, quoteID, itemID uuid.UUID) (*model.QuoteItem, error) {
	var item model.QuoteItem
	err := GetDB(ctx, r.db).First(&item, "id = ? AND quote_id = ?", itemID, quoteID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *quoteRepository) UpdateItem(ctx context.Context, item *model.QuoteItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *quoteRepository) DeleteItem(ctx context.Context, quoteID, itemID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ? AND quote_id = ?", itemID, quoteID).
		Delete(&model.QuoteItem{}).Error
}

func (r *quoteRepository) ListItems(ctx context.Context, quoteID uuid.UUID) ([]model.QuoteItem, error) {
	var items []model.QuoteItem
	err := GetDB(ctx, r.db).Where("quote_id = ?", quoteID).
		Order("sort_order ASC, created_at ASC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *quoteRepository) ListOpenPastValidity(ctx context.Context, openStatuses []string, before time.Time) ([]model.Quote, error) {
	var quotes []model.Quote
	err := GetDB(ctx, r.db).
		Where("status IN ? AND validity_date < ?", openStatuses, before).
		Find(&quotes).Error
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

func (r *quoteRepository) ListDueFollowups(ctx context.Context, openStatuses []string, due time.Time) ([]model.Quote, error) {
	var quotes []model.Quote
	err := GetDB(ctx, r.db).Preload("Client").
		Where("status IN ? AND next_followup IS NOT NULL AND next_followup <= ?", openStatuses, due).
		Find(&quotes).Error
	if err != nil {
		return nil, err
	}
	return quotes, nil
}
