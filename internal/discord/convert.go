package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shinyyama/community-reward-bot/internal/service"
	"github.com/shinyyama/community-reward-bot/internal/snowid"
)

// ChannelKind maps a Discord channel type to the migration flow that can
// read it. Threads and voice-text chats page like text channels.
func ChannelKind(t discordgo.ChannelType) service.ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildForum:
		return service.ChannelKindForum
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return service.ChannelKindText
	default:
		return service.ChannelKindUnsupported
	}
}

func channelTypeName(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return "GUILD_TEXT"
	case discordgo.ChannelTypeGuildVoice:
		return "GUILD_VOICE"
	case discordgo.ChannelTypeGuildCategory:
		return "GUILD_CATEGORY"
	case discordgo.ChannelTypeGuildNews:
		return "GUILD_ANNOUNCEMENT"
	case discordgo.ChannelTypeGuildNewsThread:
		return "ANNOUNCEMENT_THREAD"
	case discordgo.ChannelTypeGuildPublicThread:
		return "PUBLIC_THREAD"
	case discordgo.ChannelTypeGuildPrivateThread:
		return "PRIVATE_THREAD"
	case discordgo.ChannelTypeGuildStageVoice:
		return "GUILD_STAGE_VOICE"
	case discordgo.ChannelTypeGuildForum:
		return "GUILD_FORUM"
	default:
		return "UNKNOWN"
	}
}

func isThread(t discordgo.ChannelType) bool {
	return t == discordgo.ChannelTypeGuildNewsThread ||
		t == discordgo.ChannelTypeGuildPublicThread ||
		t == discordgo.ChannelTypeGuildPrivateThread
}

// isSystemMessage treats everything except plain messages and replies as
// system noise (joins, pins, boosts, thread starters).
func isSystemMessage(t discordgo.MessageType) bool {
	return t != discordgo.MessageTypeDefault && t != discordgo.MessageTypeReply
}

func toChannelInfo(ch *discordgo.Channel) *service.ChannelInfo {
	return &service.ChannelInfo{
		ID:      ch.ID,
		Name:    ch.Name,
		Type:    channelTypeName(ch.Type),
		GuildID: ch.GuildID,
		Kind:    ChannelKind(ch.Type),
	}
}

func toAuthor(u *discordgo.User) service.Author {
	if u == nil {
		return service.Author{}
	}
	return service.Author{
		ID:         u.ID,
		Username:   u.Username,
		GlobalName: u.GlobalName,
		AvatarURL:  u.AvatarURL(""),
		Bot:        u.Bot,
	}
}

// toSourceMessage converts m; ch is the channel m was posted in and may be nil.
func toSourceMessage(m *discordgo.Message, ch *discordgo.Channel) service.SourceMessage {
	out := service.SourceMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Author:    toAuthor(m.Author),
		Content:   m.Content,
		System:    isSystemMessage(m.Type),
		CreatedAt: m.Timestamp.UTC(),
	}
	if m.Author == nil {
		out.System = true
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = idTime(m.ID)
	}
	if ch != nil && isThread(ch.Type) {
		out.InThread = true
		out.ParentChannelID = ch.ParentID
	}
	return out
}

func toSourceThread(ch *discordgo.Channel) service.SourceThread {
	return service.SourceThread{
		ID:        ch.ID,
		ParentID:  ch.ParentID,
		Name:      ch.Name,
		OwnerID:   ch.OwnerID,
		CreatedAt: idTime(ch.ID),
	}
}

// idTime is the creation time encoded in a snowflake, or now for a bad id.
func idTime(id string) time.Time {
	if ts, err := snowid.Time(id); err == nil {
		return ts
	}
	return time.Now().UTC()
}
