package service

import (
	"context"
	"time"
)

// Author is the platform profile attached to a message or thread owner.
type Author struct {
	ID         string
	Username   string
	GlobalName string
	AvatarURL  string
	Bot        bool
}

// SourceMessage is one historical or live chat message.
type SourceMessage struct {
	ID              string
	ChannelID       string
	ParentChannelID string
	InThread        bool
	Author          Author
	Content         string
	System          bool
	CreatedAt       time.Time
}

// IsThreadStarter reports whether msg opens its thread. A forum post's first
// message shares the thread's id; the post itself is recorded from the thread.
func (m SourceMessage) IsThreadStarter() bool {
	return m.InThread && m.ID != "" && m.ID == m.ChannelID
}

// SourceThread is a forum post or any other thread.
type SourceThread struct {
	ID        string
	ParentID  string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

type ChannelKind int

const (
	ChannelKindUnsupported ChannelKind = iota
	ChannelKindText
	ChannelKindForum
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelKindText:
		return "text"
	case ChannelKindForum:
		return "forum"
	default:
		return "unsupported"
	}
}

type ChannelInfo struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	GuildID string      `json:"guildId,omitempty"`
	Kind    ChannelKind `json:"-"`
}

// ActivitySource pulls channel history. Pages are newest first.
type ActivitySource interface {
	FetchMessagesBefore(ctx context.Context, channelID, before string, limit int) ([]SourceMessage, error)
	FetchActiveThreads(ctx context.Context, channelID string) ([]SourceThread, error)
	FetchArchivedThreads(ctx context.Context, channelID string, limit int) ([]SourceThread, error)
	// ChannelInfo returns nil, nil for an unknown channel.
	ChannelInfo(ctx context.Context, channelID string) (*ChannelInfo, error)
}

type IdentityDirectory interface {
	LookupUser(ctx context.Context, userID string) (*Author, error)
}

// RoleNotifier performs level-up side effects. AssignRole is a no-op when the
// member already holds the role; SendDirectMessage never fails the caller.
type RoleNotifier interface {
	AssignRole(ctx context.Context, userID, roleID string) error
	SendDirectMessage(ctx context.Context, userID, text string) bool
}

type ChannelNotifier interface {
	SendChannelMessage(ctx context.Context, channelID, text string) error
}

type SourceStatus struct {
	Ready      bool
	GuildCount int
	StartedAt  time.Time
}

type StatusReporter interface {
	Status() SourceStatus
}
