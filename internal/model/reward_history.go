package model

import "time"

type RewardType string

const (
	RewardTypeMessage    RewardType = "message"
	RewardTypeComment    RewardType = "comment"
	RewardTypeForumPost  RewardType = "forum_post"
	RewardTypeManual     RewardType = "manual"
	RewardTypeDailyBonus RewardType = "daily_bonus"
)

// RewardHistory is an append-only ledger row. A user's CurrentReward equals
// the sum of their RewardHistory amounts.
type RewardHistory struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	UserID    uint64         `gorm:"column:user_id;not null;index:idx_reward_histories_user_type_created,priority:1"`
	Amount    int64          `gorm:"column:amount;not null"`
	Type      RewardType     `gorm:"column:type;size:32;not null;index:idx_reward_histories_user_type_created,priority:2"`
	Reason    string         `gorm:"column:reason;size:255"`
	EventID   *uint64        `gorm:"column:event_id;uniqueIndex:uk_reward_histories_event_id"`
	Event     *ActivityEvent `gorm:"foreignKey:EventID"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index:idx_reward_histories_user_type_created,priority:3"`
}

func (RewardHistory) TableName() string {
	return "reward_histories"
}
