package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrantParams describes one ledger entry to commit.
type GrantParams struct {
	UserID    uint64
	Amount    int64
	Type      model.RewardType
	Reason    string
	EventID   *uint64
	CreatedAt time.Time
}

type ChannelRewardStats struct {
	ChannelID     string
	TotalRewards  int64
	TotalUsers    int64
	RewardsByType map[string]int64
}

// LedgerMismatch is a user whose balance disagrees with their history.
type LedgerMismatch struct {
	UserID        uint64
	DiscordID     string
	CurrentReward int64
	LedgerSum     int64
}

type RewardRepository interface {
	GetRewardableChannel(ctx context.Context, channelID string) (*model.RewardableChannel, error)
	ListRewardableChannels(ctx context.Context, activeOnly bool) ([]model.RewardableChannel, error)
	UpsertRewardableChannel(ctx context.Context, ch *model.RewardableChannel) error
	SumAmountBetween(ctx context.Context, userID uint64, typ model.RewardType, from, to time.Time) (int64, error)
	Grant(ctx context.Context, p GrantParams) (*model.User, *model.RewardHistory, error)
	ListHistory(ctx context.Context, userID uint64, limit, offset int) ([]model.RewardHistory, int64, error)
	ChannelStats(ctx context.Context, channelID string) (*ChannelRewardStats, error)
	LedgerMismatches(ctx context.Context) ([]LedgerMismatch, error)
	SetDB(db *gorm.DB)
}

type rewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) RewardRepository {
	return &rewardRepository{db: db}
}

// GetRewardableChannel returns nil when the channel has no configuration.
func (r *rewardRepository) GetRewardableChannel(ctx context.Context, channelID string) (*model.RewardableChannel, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var ch model.RewardableChannel
	if err := r.db.WithContext(ctx).Where("channel_id = ?", channelID).First(&ch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

func (r *rewardRepository) ListRewardableChannels(ctx context.Context, activeOnly bool) ([]model.RewardableChannel, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var chs []model.RewardableChannel
	db := r.db.WithContext(ctx).Order("channel_id ASC")
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	if err := db.Find(&chs).Error; err != nil {
		return nil, err
	}
	return chs, nil
}

func (r *rewardRepository) UpsertRewardableChannel(ctx context.Context, ch *model.RewardableChannel) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"channel_name",
			"message_reward_amount",
			"comment_reward_amount",
			"forum_post_reward_amount",
			"is_active",
			"updated_at",
		}),
	}).Create(ch).Error
}

// SumAmountBetween sums a user's ledger amounts of one type in [from, to).
func (r *rewardRepository) SumAmountBetween(ctx context.Context, userID uint64, typ model.RewardType, from, to time.Time) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.RewardHistory{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND created_at >= ? AND created_at < ?", userID, typ, from.UTC(), to.UTC()).
		Scan(&sum).Error
	return sum, err
}

// Grant increments the balance, appends the ledger row and marks the source
// event processed in one transaction. A second grant for the same event
// violates the unique event_id and rolls everything back.
func (r *rewardRepository) Grant(ctx context.Context, p GrantParams) (*model.User, *model.RewardHistory, error) {
	if r.db == nil {
		return nil, nil, ErrDBNotReady
	}
	var (
		user model.User
		hist model.RewardHistory
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).
			Where("id = ?", p.UserID).
			Update("current_reward", gorm.Expr("current_reward + ?", p.Amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		hist = model.RewardHistory{
			UserID:    p.UserID,
			Amount:    p.Amount,
			Type:      p.Type,
			Reason:    p.Reason,
			EventID:   p.EventID,
			CreatedAt: p.CreatedAt.UTC(),
		}
		if err := tx.Create(&hist).Error; err != nil {
			return err
		}

		if p.EventID != nil {
			if err := tx.Model(&model.ActivityEvent{}).
				Where("id = ?", *p.EventID).
				Update("processed", true).Error; err != nil {
				return err
			}
		}

		return tx.First(&user, p.UserID).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &user, &hist, nil
}

func (r *rewardRepository) ListHistory(ctx context.Context, userID uint64, limit, offset int) ([]model.RewardHistory, int64, error) {
	if r.db == nil {
		return nil, 0, ErrDBNotReady
	}
	var (
		rows  []model.RewardHistory
		total int64
	)
	if err := r.db.WithContext(ctx).Model(&model.RewardHistory{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).
		Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ChannelStats aggregates rewards paid for events recorded under a channel.
func (r *rewardRepository) ChannelStats(ctx context.Context, channelID string) (*ChannelRewardStats, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	stats := &ChannelRewardStats{ChannelID: channelID, RewardsByType: map[string]int64{}}

	if err := r.db.WithContext(ctx).
		Model(&model.ActivityEvent{}).
		Where("channel_id = ?", channelID).
		Distinct("user_id").
		Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		EventType string
		Total     int64
	}
	if err := r.db.WithContext(ctx).
		Table("activity_events AS e").
		Select("e.event_type AS event_type, COALESCE(SUM(h.amount), 0) AS total").
		Joins("JOIN reward_histories AS h ON h.event_id = e.id").
		Where("e.channel_id = ?", channelID).
		Group("e.event_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.RewardsByType[row.EventType] = row.Total
		stats.TotalRewards += row.Total
	}
	return stats, nil
}

// LedgerMismatches lists users whose current_reward is not the sum of their
// reward history.
func (r *rewardRepository) LedgerMismatches(ctx context.Context) ([]LedgerMismatch, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var out []LedgerMismatch
	err := r.db.WithContext(ctx).Raw(`
SELECT u.id AS user_id, u.discord_id AS discord_id, u.current_reward AS current_reward,
       COALESCE(SUM(h.amount), 0) AS ledger_sum
FROM discord_users u
LEFT JOIN reward_histories h ON h.user_id = u.id
GROUP BY u.id, u.discord_id, u.current_reward
HAVING u.current_reward <> COALESCE(SUM(h.amount), 0)
ORDER BY u.id`).Scan(&out).Error
	return out, err
}

func (r *rewardRepository) SetDB(db *gorm.DB) {
	r.db = db
}
