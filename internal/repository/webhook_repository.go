package repository

import (
	"context"
	"time"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookRepository interface {
	CreateIfAbsent(ctx context.Context, d *model.WebhookDelivery) (bool, error)
	MarkProcessed(ctx context.Context, id uint64, at time.Time) error
	SetDB(db *gorm.DB)
}

type webhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) WebhookRepository {
	return &webhookRepository{db: db}
}

// CreateIfAbsent stores a delivery and reports false when the provider already
// sent one with the same id.
func (r *webhookRepository) CreateIfAbsent(ctx context.Context, d *model.WebhookDelivery) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "delivery_id"}},
		DoNothing: true,
	}).Create(d)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *webhookRepository) MarkProcessed(ctx context.Context, id uint64, at time.Time) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).
		Model(&model.WebhookDelivery{}).
		Where("id = ?", id).
		Update("processed_at", at.UTC()).Error
}

func (r *webhookRepository) SetDB(db *gorm.DB) {
	r.db = db
}
