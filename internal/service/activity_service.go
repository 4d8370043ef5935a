package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shinyyama/community-reward-bot/internal/metrics"
	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/repository"
	"github.com/shinyyama/community-reward-bot/internal/snowid"
)

const (
	SourceLive      = "live"
	SourceMigration = "migration"
)

type IngestStatus string

const (
	IngestIngested  IngestStatus = "ingested"
	IngestDuplicate IngestStatus = "duplicate"
	IngestIgnored   IngestStatus = "ignored"
)

// ActivityItem is a normalized message, reply or forum post. ScopeChannelID
// is the channel whose configuration prices it.
type ActivityItem struct {
	ExternalID     string
	EventType      model.EventType
	ScopeChannelID string
	Author         Author
	Content        string
	CreatedAt      time.Time
}

type IngestResult struct {
	Status IngestStatus
	Event  *model.ActivityEvent
	Reward *RewardOutcome
}

type ActivityService interface {
	Ingest(ctx context.Context, source string, item ActivityItem) (*IngestResult, error)
	HandleMessage(ctx context.Context, msg SourceMessage) (*IngestResult, error)
	HandleThreadCreated(ctx context.Context, th SourceThread, newlyCreated bool) (*IngestResult, error)
}

type activityService struct {
	users     repository.UserRepository
	events    repository.ActivityEventRepository
	rewards   RewardService
	directory IdentityDirectory
}

func NewActivityService(users repository.UserRepository, events repository.ActivityEventRepository, rewards RewardService, directory IdentityDirectory) ActivityService {
	return &activityService{users: users, events: events, rewards: rewards, directory: directory}
}

// Ingest records one item at most once and prices it. The pre-check avoids
// work for known items; the unique message_id insert is what actually
// decides a duplicate when two flows race.
func (s *activityService) Ingest(ctx context.Context, source string, item ActivityItem) (*IngestResult, error) {
	if item.ExternalID == "" {
		return nil, ErrInvalidItem
	}
	if item.Author.Bot || item.Author.ID == "" {
		return s.done(source, &IngestResult{Status: IngestIgnored}), nil
	}

	exists, err := s.events.ExistsByMessageID(ctx, item.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", item.ExternalID, err)
	}
	if exists {
		return s.done(source, &IngestResult{Status: IngestDuplicate}), nil
	}

	user, err := s.users.FindOrCreate(ctx, profileOf(item.Author))
	if err != nil {
		return nil, fmt.Errorf("find or create %s: %w", item.Author.ID, err)
	}

	at := item.CreatedAt
	if at.IsZero() {
		if ts, err := snowid.Time(item.ExternalID); err == nil {
			at = ts
		} else {
			at = time.Now()
		}
	}
	ev := &model.ActivityEvent{
		UserID:    user.ID,
		EventType: item.EventType,
		ChannelID: item.ScopeChannelID,
		MessageID: item.ExternalID,
		Content:   item.Content,
		CreatedAt: at.UTC(),
	}
	created, err := s.events.CreateIfAbsent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", item.ExternalID, err)
	}
	if !created {
		return s.done(source, &IngestResult{Status: IngestDuplicate}), nil
	}

	outcome, err := s.rewards.ProcessReward(ctx, RewardInput{
		UserID:     user.ID,
		ChannelID:  item.ScopeChannelID,
		EventType:  item.EventType,
		OccurredAt: ev.CreatedAt,
		EventID:    &ev.ID,
	})
	if err != nil {
		metrics.ActivityIngested.WithLabelValues(source, "reward_failed").Inc()
		return &IngestResult{Status: IngestIngested, Event: ev}, fmt.Errorf("reward %s: %w", item.ExternalID, err)
	}
	return s.done(source, &IngestResult{Status: IngestIngested, Event: ev, Reward: outcome}), nil
}

func (s *activityService) done(source string, res *IngestResult) *IngestResult {
	metrics.ActivityIngested.WithLabelValues(source, string(res.Status)).Inc()
	return res
}

// HandleMessage ingests a live message. Thread messages count as comments
// priced by the parent channel; a thread's starter message is left to
// HandleThreadCreated.
func (s *activityService) HandleMessage(ctx context.Context, msg SourceMessage) (*IngestResult, error) {
	if msg.Author.Bot || msg.System || msg.IsThreadStarter() {
		return s.done(SourceLive, &IngestResult{Status: IngestIgnored}), nil
	}
	res, err := s.Ingest(ctx, SourceLive, messageItem(msg, ""))
	if err != nil {
		log.Printf("[activity] source=live message=%s channel=%s err=%v", msg.ID, msg.ChannelID, err)
	}
	return res, err
}

// HandleThreadCreated ingests a newly created thread as a forum post by its
// owner.
func (s *activityService) HandleThreadCreated(ctx context.Context, th SourceThread, newlyCreated bool) (*IngestResult, error) {
	if !newlyCreated || th.OwnerID == "" {
		return s.done(SourceLive, &IngestResult{Status: IngestIgnored}), nil
	}
	item, err := threadItem(ctx, s.directory, th, "")
	if err != nil {
		log.Printf("[activity] source=live thread=%s stage=owner err=%v", th.ID, err)
		return nil, err
	}
	res, err := s.Ingest(ctx, SourceLive, item)
	if err != nil {
		log.Printf("[activity] source=live thread=%s err=%v", th.ID, err)
	}
	return res, err
}

// threadItem resolves the owner profile and builds the forum_post item. An
// empty scope falls back to the thread's parent.
func threadItem(ctx context.Context, directory IdentityDirectory, th SourceThread, scope string) (ActivityItem, error) {
	owner := &Author{ID: th.OwnerID, Username: th.OwnerID}
	if directory != nil {
		found, err := directory.LookupUser(ctx, th.OwnerID)
		if err != nil {
			return ActivityItem{}, fmt.Errorf("lookup owner %s: %w", th.OwnerID, err)
		}
		if found != nil {
			owner = found
		}
	}
	if scope == "" {
		scope = th.ParentID
	}
	if scope == "" {
		scope = th.ID
	}
	return ActivityItem{
		ExternalID:     th.ID,
		EventType:      model.EventTypeForumPost,
		ScopeChannelID: scope,
		Author:         *owner,
		Content:        th.Name,
		CreatedAt:      th.CreatedAt,
	}, nil
}

// messageItem normalizes a message. A non-empty scope overrides the channel
// derived from the message itself.
func messageItem(msg SourceMessage, scope string) ActivityItem {
	typ := model.EventTypeMessage
	if msg.InThread {
		typ = model.EventTypeComment
	}
	if scope == "" {
		scope = msg.ChannelID
		if msg.InThread && msg.ParentChannelID != "" {
			scope = msg.ParentChannelID
		}
	}
	return ActivityItem{
		ExternalID:     msg.ID,
		EventType:      typ,
		ScopeChannelID: scope,
		Author:         msg.Author,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
}

func profileOf(a Author) repository.UserProfile {
	p := repository.UserProfile{DiscordID: a.ID, Username: a.Username}
	if p.Username == "" {
		p.Username = a.ID
	}
	if a.GlobalName != "" {
		g := a.GlobalName
		p.GlobalName = &g
	}
	if a.AvatarURL != "" {
		u := a.AvatarURL
		p.AvatarURL = &u
	}
	return p
}
