package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/repository"
	"github.com/shinyyama/community-reward-bot/internal/testutil"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu        sync.Mutex
	assigned  []string
	dms       []string
	channel   []string
	assignErr error
	dmFails   bool
	sendErr   error
}

func (f *fakeNotifier) AssignRole(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assigned = append(f.assigned, userID+":"+roleID)
	return nil
}

func (f *fakeNotifier) SendDirectMessage(_ context.Context, userID, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmFails {
		return false
	}
	f.dms = append(f.dms, userID+":"+text)
	return true
}

func (f *fakeNotifier) SendChannelMessage(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.channel = append(f.channel, channelID+":"+text)
	return nil
}

type fakeDirectory struct {
	users map[string]Author
	err   error
}

func (f *fakeDirectory) LookupUser(_ context.Context, userID string) (*Author, error) {
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.users[userID]; ok {
		return &a, nil
	}
	return nil, nil
}

type fetchCall struct {
	channelID string
	before    string
	limit     int
}

// fakeSource serves canned history. Messages are stored per channel and paged
// newest first by numeric id.
type fakeSource struct {
	mu       sync.Mutex
	messages map[string][]SourceMessage
	active   map[string][]SourceThread
	archived map[string][]SourceThread
	infos    map[string]*ChannelInfo
	calls    []fetchCall
	// failOnCall makes the n-th FetchMessagesBefore call (1-based) fail.
	failOnCall int
	failThread map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		messages:   map[string][]SourceMessage{},
		active:     map[string][]SourceThread{},
		archived:   map[string][]SourceThread{},
		infos:      map[string]*ChannelInfo{},
		failThread: map[string]error{},
	}
}

func (f *fakeSource) FetchMessagesBefore(_ context.Context, channelID, before string, limit int) ([]SourceMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{channelID: channelID, before: before, limit: limit})
	if f.failOnCall > 0 && len(f.calls) == f.failOnCall {
		return nil, errors.New("rate limited")
	}
	if err := f.failThread[channelID]; err != nil {
		return nil, err
	}
	all := append([]SourceMessage(nil), f.messages[channelID]...)
	sort.Slice(all, func(i, j int) bool { return idNum(all[i].ID) > idNum(all[j].ID) })
	var out []SourceMessage
	for _, m := range all {
		// id-less items only ever show up on the first page
		if before != "" && (m.ID == "" || idNum(m.ID) >= idNum(before)) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSource) FetchActiveThreads(_ context.Context, channelID string) ([]SourceThread, error) {
	return f.active[channelID], nil
}

func (f *fakeSource) FetchArchivedThreads(_ context.Context, channelID string, _ int) ([]SourceThread, error) {
	return f.archived[channelID], nil
}

func (f *fakeSource) ChannelInfo(_ context.Context, channelID string) (*ChannelInfo, error) {
	return f.infos[channelID], nil
}

func (f *fakeSource) fetchCalls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func idNum(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}

type testEnv struct {
	db        *gorm.DB
	users     repository.UserRepository
	events    repository.ActivityEventRepository
	rewards   repository.RewardRepository
	levels    repository.LevelRepository
	notifier  *fakeNotifier
	directory *fakeDirectory
	levelSvc  LevelService
	rewardSvc RewardService
	activity  ActivityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenTestDB(t)
	e := &testEnv{
		db:        db,
		users:     repository.NewUserRepository(db),
		events:    repository.NewActivityEventRepository(db),
		rewards:   repository.NewRewardRepository(db),
		levels:    repository.NewLevelRepository(db),
		notifier:  &fakeNotifier{},
		directory: &fakeDirectory{users: map[string]Author{}},
	}
	e.levelSvc = NewLevelService(e.levels, e.users, e.notifier)
	e.rewardSvc = NewRewardService(e.rewards, e.users, e.levelSvc, RewardOptions{
		DailyCommentCap: DefaultDailyCommentCap,
		Now:             func() time.Time { return testNow },
	})
	e.activity = NewActivityService(e.users, e.events, e.rewardSvc, e.directory)
	return e
}

func (e *testEnv) channel(t *testing.T, id string, msg, comment, forum int64, active bool) {
	t.Helper()
	if err := e.rewards.UpsertRewardableChannel(context.Background(), &model.RewardableChannel{
		ChannelID:             id,
		ChannelName:           "ch-" + id,
		MessageRewardAmount:   msg,
		CommentRewardAmount:   comment,
		ForumPostRewardAmount: forum,
		IsActive:              active,
	}); err != nil {
		t.Fatalf("channel %s: %v", id, err)
	}
}

func (e *testEnv) user(t *testing.T, discordID string) *model.User {
	t.Helper()
	u, err := e.users.FindOrCreate(context.Background(), repository.UserProfile{DiscordID: discordID, Username: "u" + discordID})
	if err != nil {
		t.Fatalf("user %s: %v", discordID, err)
	}
	return u
}

func (e *testEnv) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (e *testEnv) assertLedgerConsistent(t *testing.T) {
	t.Helper()
	mism, err := e.rewards.LedgerMismatches(context.Background())
	if err != nil {
		t.Fatalf("mismatches: %v", err)
	}
	if len(mism) != 0 {
		t.Fatalf("ledger mismatches: %+v", mism)
	}
}
