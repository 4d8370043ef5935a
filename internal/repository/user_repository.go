package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserProfile is the Discord-side identity used to create or refresh a user.
type UserProfile struct {
	DiscordID  string
	Username   string
	GlobalName *string
	AvatarURL  *string
}

type UserRepository interface {
	FindOrCreate(ctx context.Context, p UserProfile) (*model.User, error)
	FindByDiscordID(ctx context.Context, discordID string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	UpdateLevel(ctx context.Context, id uint64, level int) (bool, error)
	Leaderboard(ctx context.Context, limit, offset int) ([]model.User, int64, error)
	CountAbove(ctx context.Context, reward int64) (int64, error)
	Count(ctx context.Context) (int64, error)
	SetDB(db *gorm.DB)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// FindOrCreate inserts the user or refreshes the stored profile fields.
// Reward and level are never touched here.
func (r *userRepository) FindOrCreate(ctx context.Context, p UserProfile) (*model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	row := model.User{
		DiscordID:    p.DiscordID,
		Username:     p.Username,
		GlobalName:   p.GlobalName,
		AvatarURL:    p.AvatarURL,
		CurrentLevel: 1,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "global_name", "avatar_url", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return nil, err
	}
	var u model.User
	if err := r.db.WithContext(ctx).Where("discord_id = ?", p.DiscordID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByDiscordID(ctx context.Context, discordID string) (*model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var u model.User
	if err := r.db.WithContext(ctx).Where("discord_id = ?", discordID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateLevel raises the stored level. It reports false when the stored level
// is already at or above level, so levels never decrease.
func (r *userRepository) UpdateLevel(ctx context.Context, id uint64, level int) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND current_level < ?", id, level).
		Update("current_level", level)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepository) Leaderboard(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	if r.db == nil {
		return nil, 0, ErrDBNotReady
	}
	var (
		users []model.User
		total int64
	)
	db := r.db.WithContext(ctx).Model(&model.User{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).
		Order("current_reward DESC").
		Order("current_level DESC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CountAbove counts users holding strictly more reward than reward.
func (r *userRepository) CountAbove(ctx context.Context, reward int64) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("current_reward > ?", reward).Count(&n).Error
	return n, err
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error
	return n, err
}

func (r *userRepository) SetDB(db *gorm.DB) {
	r.db = db
}
