package model

import "time"

// RewardableChannel prices activity in one channel.
type RewardableChannel struct {
	ID                    uint64    `gorm:"primaryKey;autoIncrement"`
	ChannelID             string    `gorm:"column:channel_id;size:32;not null;uniqueIndex:uk_rewardable_channels_channel_id"`
	ChannelName           string    `gorm:"column:channel_name;size:120"`
	MessageRewardAmount   int64     `gorm:"column:message_reward_amount;not null;default:0"`
	CommentRewardAmount   int64     `gorm:"column:comment_reward_amount;not null;default:0"`
	ForumPostRewardAmount int64     `gorm:"column:forum_post_reward_amount;not null;default:0"`
	IsActive              bool      `gorm:"column:is_active;not null"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`
}

func (RewardableChannel) TableName() string {
	return "rewardable_channels"
}
