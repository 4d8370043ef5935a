package model

import "time"

// User is a Discord member known to the reward engine.
type User struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	DiscordID     string    `gorm:"column:discord_id;size:32;not null;uniqueIndex:uk_discord_users_discord_id"`
	Username      string    `gorm:"column:username;size:128;not null"`
	GlobalName    *string   `gorm:"column:global_name;size:128"`
	AvatarURL     *string   `gorm:"column:avatar_url;size:512"`
	CurrentReward int64     `gorm:"column:current_reward;not null;default:0;index"`
	CurrentLevel  int       `gorm:"column:current_level;not null;default:1"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "discord_users"
}

// DisplayName prefers the global name over the account username.
func (u *User) DisplayName() string {
	if u.GlobalName != nil && *u.GlobalName != "" {
		return *u.GlobalName
	}
	return u.Username
}
