// Package discord adapts a discordgo session to the engine's source,
// directory and notifier interfaces.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shinyyama/community-reward-bot/internal/service"
)

type Client struct {
	session   *discordgo.Session
	guildID   string
	startedAt time.Time
	ready     atomic.Bool
	guilds    atomic.Int32
}

func New(token, guildID string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	c := &Client{session: s, guildID: guildID, startedAt: time.Now().UTC()}
	s.AddHandler(c.onReady)
	s.AddHandler(c.onDisconnect)
	return c, nil
}

func (c *Client) Open() error {
	return c.session.Open()
}

func (c *Client) Close() error {
	c.ready.Store(false)
	return c.session.Close()
}

func (c *Client) Session() *discordgo.Session {
	return c.session
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	c.ready.Store(true)
	c.guilds.Store(int32(len(r.Guilds)))
	log.Printf("[discord] ready user=%s guilds=%d", r.User.Username, len(r.Guilds))
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.ready.Store(false)
	log.Printf("[discord] disconnected")
}

func (c *Client) Status() service.SourceStatus {
	return service.SourceStatus{
		Ready:      c.ready.Load(),
		GuildCount: int(c.guilds.Load()),
		StartedAt:  c.startedAt,
	}
}

func (c *Client) ChannelInfo(ctx context.Context, channelID string) (*service.ChannelInfo, error) {
	ch, err := c.channel(ctx, channelID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return toChannelInfo(ch), nil
}

func (c *Client) FetchMessagesBefore(ctx context.Context, channelID, before string, limit int) ([]service.SourceMessage, error) {
	ch, err := c.channel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	msgs, err := c.session.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]service.SourceMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toSourceMessage(m, ch))
	}
	return out, nil
}

// FetchActiveThreads lists the guild's active threads under channelID.
func (c *Client) FetchActiveThreads(ctx context.Context, channelID string) ([]service.SourceThread, error) {
	list, err := c.session.GuildThreadsActive(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	var out []service.SourceThread
	for _, th := range list.Threads {
		if th.ParentID == channelID {
			out = append(out, toSourceThread(th))
		}
	}
	return out, nil
}

func (c *Client) FetchArchivedThreads(ctx context.Context, channelID string, limit int) ([]service.SourceThread, error) {
	list, err := c.session.ThreadsArchived(channelID, nil, limit, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]service.SourceThread, 0, len(list.Threads))
	for _, th := range list.Threads {
		out = append(out, toSourceThread(th))
	}
	return out, nil
}

func (c *Client) LookupUser(ctx context.Context, userID string) (*service.Author, error) {
	u, err := c.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	a := toAuthor(u)
	return &a, nil
}

// AssignRole adds roleID unless the member already holds it.
func (c *Client) AssignRole(ctx context.Context, userID, roleID string) error {
	member, err := c.session.GuildMember(c.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch member %s: %w", userID, err)
	}
	for _, r := range member.Roles {
		if r == roleID {
			return nil
		}
	}
	return c.session.GuildMemberRoleAdd(c.guildID, userID, roleID, discordgo.WithContext(ctx))
}

// SendDirectMessage reports false when the DM could not be delivered, e.g.
// the member blocks DMs from server members.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) bool {
	dm, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		log.Printf("[discord] dm user=%s stage=open err=%v", userID, err)
		return false
	}
	if _, err := c.session.ChannelMessageSend(dm.ID, text, discordgo.WithContext(ctx)); err != nil {
		log.Printf("[discord] dm user=%s stage=send err=%v", userID, err)
		return false
	}
	return true
}

func (c *Client) SendChannelMessage(ctx context.Context, channelID, text string) error {
	_, err := c.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}

// channel prefers the gateway cache over a REST call.
func (c *Client) channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if c.session.State != nil {
		if ch, err := c.session.State.Channel(channelID); err == nil {
			return ch, nil
		}
	}
	return c.session.Channel(channelID, discordgo.WithContext(ctx))
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
