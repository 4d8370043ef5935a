package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LevelRepository interface {
	LevelForReward(ctx context.Context, total int64) (*model.Level, error)
	FindByNumber(ctx context.Context, number int) (*model.Level, error)
	NextAfter(ctx context.Context, number int) (*model.Level, error)
	All(ctx context.Context) ([]model.Level, error)
	UpsertRole(ctx context.Context, role *model.Role) (*model.Role, error)
	UpsertLevel(ctx context.Context, lv *model.Level) error
	SetDB(db *gorm.DB)
}

type levelRepository struct {
	db *gorm.DB
}

func NewLevelRepository(db *gorm.DB) LevelRepository {
	return &levelRepository{db: db}
}

// LevelForReward returns the highest level whose requirement total meets, or
// nil when no level qualifies.
func (r *levelRepository) LevelForReward(ctx context.Context, total int64) (*model.Level, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var lv model.Level
	if err := r.db.WithContext(ctx).
		Preload("Role").
		Where("required_reward_amount <= ?", total).
		Order("required_reward_amount DESC").
		Order("level_number DESC").
		First(&lv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lv, nil
}

func (r *levelRepository) FindByNumber(ctx context.Context, number int) (*model.Level, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var lv model.Level
	if err := r.db.WithContext(ctx).Preload("Role").Where("level_number = ?", number).First(&lv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lv, nil
}

// NextAfter returns the lowest level above number, or nil at the top.
func (r *levelRepository) NextAfter(ctx context.Context, number int) (*model.Level, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var lv model.Level
	if err := r.db.WithContext(ctx).Where("level_number > ?", number).Order("level_number ASC").First(&lv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lv, nil
}

func (r *levelRepository) All(ctx context.Context) ([]model.Level, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var lvs []model.Level
	if err := r.db.WithContext(ctx).Preload("Role").Order("level_number ASC").Find(&lvs).Error; err != nil {
		return nil, err
	}
	return lvs, nil
}

func (r *levelRepository) UpsertRole(ctx context.Context, role *model.Role) (*model.Role, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_role_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role_name", "description"}),
	}).Create(role).Error; err != nil {
		return nil, err
	}
	var out model.Role
	if err := r.db.WithContext(ctx).Where("discord_role_id = ?", role.DiscordRoleID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *levelRepository) UpsertLevel(ctx context.Context, lv *model.Level) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Omit("Role").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "level_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"required_reward_amount", "level_name", "role_id"}),
	}).Create(lv).Error
}

func (r *levelRepository) SetDB(db *gorm.DB) {
	r.db = db
}
