package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestUserRepository_FindOrCreateRefreshesProfile(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testutil.OpenTestDB(t))

	u1, err := repo.FindOrCreate(ctx, UserProfile{DiscordID: "100", Username: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u1.CurrentLevel != 1 || u1.CurrentReward != 0 {
		t.Fatalf("new user got level=%d reward=%d", u1.CurrentLevel, u1.CurrentReward)
	}

	u2, err := repo.FindOrCreate(ctx, UserProfile{DiscordID: "100", Username: "alice2", GlobalName: strPtr("Alice")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u2.ID != u1.ID {
		t.Fatalf("id changed got=%d want=%d", u2.ID, u1.ID)
	}
	if u2.Username != "alice2" || u2.DisplayName() != "Alice" {
		t.Fatalf("profile not refreshed: %+v", u2)
	}

	missing, err := repo.FindByDiscordID(ctx, "999")
	if err != nil || missing != nil {
		t.Fatalf("missing user got=%v err=%v", missing, err)
	}
}

func TestUserRepository_UpdateLevelNeverLowers(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testutil.OpenTestDB(t))
	u, _ := repo.FindOrCreate(ctx, UserProfile{DiscordID: "1", Username: "a"})

	ok, err := repo.UpdateLevel(ctx, u.ID, 3)
	if err != nil || !ok {
		t.Fatalf("raise got=%v err=%v", ok, err)
	}
	ok, err = repo.UpdateLevel(ctx, u.ID, 2)
	if err != nil || ok {
		t.Fatalf("lower got=%v err=%v", ok, err)
	}
	got, _ := repo.FindByID(ctx, u.ID)
	if got.CurrentLevel != 3 {
		t.Fatalf("level got=%d want=3", got.CurrentLevel)
	}
}

func TestActivityEventRepository_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	users := NewUserRepository(db)
	events := NewActivityEventRepository(db)
	u, _ := users.FindOrCreate(ctx, UserProfile{DiscordID: "1", Username: "a"})

	ts := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	first := &model.ActivityEvent{UserID: u.ID, EventType: model.EventTypeMessage, ChannelID: "C", MessageID: "m1", CreatedAt: ts}
	created, err := events.CreateIfAbsent(ctx, first)
	if err != nil || !created {
		t.Fatalf("first insert created=%v err=%v", created, err)
	}
	created, err = events.CreateIfAbsent(ctx, &model.ActivityEvent{UserID: u.ID, EventType: model.EventTypeMessage, ChannelID: "C", MessageID: "m1", CreatedAt: ts})
	if err != nil || created {
		t.Fatalf("duplicate insert created=%v err=%v", created, err)
	}

	stored, err := events.FindByMessageID(ctx, "m1")
	if err != nil || stored == nil {
		t.Fatalf("find got=%v err=%v", stored, err)
	}
	if !stored.CreatedAt.Equal(ts) {
		t.Fatalf("created_at got=%v want=%v", stored.CreatedAt, ts)
	}
	exists, _ := events.ExistsByMessageID(ctx, "m1")
	if !exists {
		t.Fatalf("expected m1 to exist")
	}
}

func TestRewardRepository_GrantAndLedger(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	users := NewUserRepository(db)
	events := NewActivityEventRepository(db)
	rewards := NewRewardRepository(db)

	u, _ := users.FindOrCreate(ctx, UserProfile{DiscordID: "1", Username: "a"})
	ev := &model.ActivityEvent{UserID: u.ID, EventType: model.EventTypeComment, ChannelID: "C", MessageID: "m1", CreatedAt: time.Now().UTC()}
	if _, err := events.CreateIfAbsent(ctx, ev); err != nil {
		t.Fatalf("event: %v", err)
	}

	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	got, hist, err := rewards.Grant(ctx, GrantParams{UserID: u.ID, Amount: 5, Type: model.RewardTypeComment, Reason: "r", EventID: &ev.ID, CreatedAt: now})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if got.CurrentReward != 5 || hist.Amount != 5 {
		t.Fatalf("reward got=%d hist=%d", got.CurrentReward, hist.Amount)
	}

	stored, _ := events.FindByMessageID(ctx, "m1")
	if !stored.Processed {
		t.Fatalf("event should be processed after grant")
	}

	// same event again: unique event_id rejects it and the balance is unchanged
	if _, _, err := rewards.Grant(ctx, GrantParams{UserID: u.ID, Amount: 5, Type: model.RewardTypeComment, EventID: &ev.ID, CreatedAt: now}); err == nil {
		t.Fatalf("expected duplicate grant to fail")
	}
	after, _ := users.FindByID(ctx, u.ID)
	if after.CurrentReward != 5 {
		t.Fatalf("balance after rollback got=%d want=5", after.CurrentReward)
	}

	sum, err := rewards.SumAmountBetween(ctx, u.ID, model.RewardTypeComment, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil || sum != 5 {
		t.Fatalf("sum got=%d err=%v", sum, err)
	}
	sum, _ = rewards.SumAmountBetween(ctx, u.ID, model.RewardTypeComment, now.Add(time.Hour), now.Add(2*time.Hour))
	if sum != 0 {
		t.Fatalf("sum outside window got=%d", sum)
	}

	mism, err := rewards.LedgerMismatches(ctx)
	if err != nil || len(mism) != 0 {
		t.Fatalf("mismatches got=%v err=%v", mism, err)
	}
	db.Exec("UPDATE discord_users SET current_reward = 99 WHERE id = ?", u.ID)
	mism, _ = rewards.LedgerMismatches(ctx)
	if len(mism) != 1 || mism[0].LedgerSum != 5 || mism[0].CurrentReward != 99 {
		t.Fatalf("mismatch got=%+v", mism)
	}
}

func TestRewardRepository_GrantUnknownUser(t *testing.T) {
	rewards := NewRewardRepository(testutil.OpenTestDB(t))
	if _, _, err := rewards.Grant(context.Background(), GrantParams{UserID: 42, Amount: 1, Type: model.RewardTypeManual, CreatedAt: time.Now()}); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}

func TestRewardRepository_ChannelStats(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	users := NewUserRepository(db)
	events := NewActivityEventRepository(db)
	rewards := NewRewardRepository(db)

	a, _ := users.FindOrCreate(ctx, UserProfile{DiscordID: "1", Username: "a"})
	b, _ := users.FindOrCreate(ctx, UserProfile{DiscordID: "2", Username: "b"})
	now := time.Now().UTC()
	e1 := &model.ActivityEvent{UserID: a.ID, EventType: model.EventTypeMessage, ChannelID: "C", MessageID: "1", CreatedAt: now}
	e2 := &model.ActivityEvent{UserID: b.ID, EventType: model.EventTypeComment, ChannelID: "C", MessageID: "2", CreatedAt: now}
	e3 := &model.ActivityEvent{UserID: b.ID, EventType: model.EventTypeComment, ChannelID: "C", MessageID: "3", CreatedAt: now}
	for _, e := range []*model.ActivityEvent{e1, e2, e3} {
		if _, err := events.CreateIfAbsent(ctx, e); err != nil {
			t.Fatalf("event: %v", err)
		}
	}
	rewards.Grant(ctx, GrantParams{UserID: a.ID, Amount: 10, Type: model.RewardTypeMessage, EventID: &e1.ID, CreatedAt: now})
	rewards.Grant(ctx, GrantParams{UserID: b.ID, Amount: 3, Type: model.RewardTypeComment, EventID: &e2.ID, CreatedAt: now})

	stats, err := rewards.ChannelStats(ctx, "C")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRewards != 13 || stats.TotalUsers != 2 {
		t.Fatalf("stats got=%+v", stats)
	}
	if stats.RewardsByType["message"] != 10 || stats.RewardsByType["comment"] != 3 {
		t.Fatalf("by type got=%v", stats.RewardsByType)
	}
}

func TestLevelRepository_LevelForReward(t *testing.T) {
	ctx := context.Background()
	repo := NewLevelRepository(testutil.OpenTestDB(t))

	role, err := repo.UpsertRole(ctx, &model.Role{DiscordRoleID: "R2", RoleName: "Regular"})
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	for _, lv := range []*model.Level{
		{LevelNumber: 1, RequiredRewardAmount: 0, LevelName: "Newcomer"},
		{LevelNumber: 2, RequiredRewardAmount: 100, LevelName: "Regular", RoleID: &role.ID},
		{LevelNumber: 3, RequiredRewardAmount: 500, LevelName: "Veteran"},
	} {
		if err := repo.UpsertLevel(ctx, lv); err != nil {
			t.Fatalf("level: %v", err)
		}
	}

	tests := []struct {
		total int64
		want  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{499, 2},
		{10000, 3},
	}
	for _, tt := range tests {
		lv, err := repo.LevelForReward(ctx, tt.total)
		if err != nil || lv == nil {
			t.Fatalf("total=%d got=%v err=%v", tt.total, lv, err)
		}
		if lv.LevelNumber != tt.want {
			t.Fatalf("total=%d got=%d want=%d", tt.total, lv.LevelNumber, tt.want)
		}
	}

	lv2, _ := repo.LevelForReward(ctx, 150)
	if lv2.Role == nil || lv2.Role.DiscordRoleID != "R2" {
		t.Fatalf("role not preloaded: %+v", lv2.Role)
	}
	next, _ := repo.NextAfter(ctx, 3)
	if next != nil {
		t.Fatalf("expected no level after top, got %d", next.LevelNumber)
	}
}
