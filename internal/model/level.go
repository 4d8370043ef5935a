package model

import "time"

type Role struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	DiscordRoleID string    `gorm:"column:discord_role_id;size:32;not null;uniqueIndex:uk_discord_roles_discord_role_id"`
	RoleName      string    `gorm:"column:role_name;size:120;not null"`
	Description   *string   `gorm:"column:description;type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (Role) TableName() string {
	return "discord_roles"
}

// Level is one rung of the ladder; a user reaches it once their cumulative
// reward is at least RequiredRewardAmount.
type Level struct {
	ID                   uint64    `gorm:"primaryKey;autoIncrement"`
	LevelNumber          int       `gorm:"column:level_number;not null;uniqueIndex:uk_levels_level_number"`
	RequiredRewardAmount int64     `gorm:"column:required_reward_amount;not null;index"`
	LevelName            string    `gorm:"column:level_name;size:120;not null"`
	RoleID               *uint64   `gorm:"column:role_id;index"`
	Role                 *Role     `gorm:"foreignKey:RoleID"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
}

func (Level) TableName() string {
	return "levels"
}
