package model

import "time"

type EventType string

const (
	EventTypeMessage   EventType = "message"
	EventTypeComment   EventType = "comment"
	EventTypeForumPost EventType = "forum_post"
)

// ActivityEvent is one observed unit of activity. MessageID is the external
// message or thread id and is unique: a source item is recorded at most once.
// CreatedAt is copied from the source item, not the insertion time.
type ActivityEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"column:user_id;not null;index"`
	EventType EventType `gorm:"column:event_type;size:32;not null"`
	ChannelID string    `gorm:"column:channel_id;size:32;not null;index"`
	MessageID string    `gorm:"column:message_id;size:32;not null;uniqueIndex:uk_activity_events_message_id"`
	Content   string    `gorm:"column:content;type:text"`
	Processed bool      `gorm:"column:processed;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

func (ActivityEvent) TableName() string {
	return "activity_events"
}
