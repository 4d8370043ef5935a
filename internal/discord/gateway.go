package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shinyyama/community-reward-bot/internal/service"
)

const handlerTimeout = 30 * time.Second

// RegisterActivityHandlers feeds live messages and new threads into the
// activity service. Errors are logged by the service.
func (c *Client) RegisterActivityHandlers(activity service.ActivityService) {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.GuildID != c.guildID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		ch, _ := c.channel(ctx, m.ChannelID)
		_, _ = activity.HandleMessage(ctx, toSourceMessage(m.Message, ch))
	})

	c.session.AddHandler(func(s *discordgo.Session, t *discordgo.ThreadCreate) {
		if t.Channel == nil || t.GuildID != c.guildID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		_, _ = activity.HandleThreadCreated(ctx, toSourceThread(t.Channel), t.NewlyCreated)
	})
}
