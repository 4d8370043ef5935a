package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActivityEventRepository interface {
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
	FindByMessageID(ctx context.Context, messageID string) (*model.ActivityEvent, error)
	CreateIfAbsent(ctx context.Context, ev *model.ActivityEvent) (bool, error)
	SetDB(db *gorm.DB)
}

type activityEventRepository struct {
	db *gorm.DB
}

func NewActivityEventRepository(db *gorm.DB) ActivityEventRepository {
	return &activityEventRepository{db: db}
}

func (r *activityEventRepository) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&model.ActivityEvent{}).
		Where("message_id = ?", messageID).
		Limit(1).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *activityEventRepository) FindByMessageID(ctx context.Context, messageID string) (*model.ActivityEvent, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var ev model.ActivityEvent
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

// CreateIfAbsent inserts ev unless its MessageID is already stored. It
// reports false for a duplicate; the unique index decides concurrent races.
func (r *activityEventRepository) CreateIfAbsent(ctx context.Context, ev *model.ActivityEvent) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoNothing: true,
	}).Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *activityEventRepository) SetDB(db *gorm.DB) {
	r.db = db
}
