package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/repository"
)

func TestProcessReward_Promotion(t *testing.T) {
	tests := []struct {
		name         string
		at           time.Time
		wantAmount   int64
		wantPromoted bool
	}{
		{"A before cutoff", time.Date(2025, 7, 9, 9, 0, 0, 0, time.UTC), 20, true},
		{"B after cutoff", time.Date(2025, 7, 9, 10, 0, 0, 0, time.UTC), 10, false},
		{"C exactly at cutoff", time.Date(2025, 7, 9, 9, 53, 0, 0, time.UTC), 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newTestEnv(t)
			e.channel(t, "C", 10, 3, 50, true)
			u := e.user(t, "1")

			out, err := e.rewardSvc.ProcessReward(ctx, RewardInput{UserID: u.ID, ChannelID: "C", EventType: model.EventTypeMessage, OccurredAt: tt.at})
			if err != nil {
				t.Fatalf("ProcessReward: %v", err)
			}
			if out.Decision != DecisionGranted || out.Amount != tt.wantAmount || out.Promoted != tt.wantPromoted {
				t.Fatalf("got=%+v want amount=%d promoted=%v", out, tt.wantAmount, tt.wantPromoted)
			}
			reason := out.Grant.History.Reason
			if got := strings.Contains(reason, "(2x applied)"); got != tt.wantPromoted {
				t.Fatalf("reason=%q promoted marker=%v", reason, got)
			}
			if out.Grant.User.CurrentReward != tt.wantAmount {
				t.Fatalf("balance got=%d want=%d", out.Grant.User.CurrentReward, tt.wantAmount)
			}
		})
	}
}

func TestProcessReward_NotRewardable(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.channel(t, "OFF", 10, 10, 10, false)
	e.channel(t, "ZERO", 0, 0, 0, true)
	e.channel(t, "ON", 10, 10, 10, true)
	u := e.user(t, "1")

	tests := []struct {
		name    string
		channel string
		typ     model.EventType
		want    Decision
	}{
		{"inactive", "OFF", model.EventTypeMessage, DecisionChannelNotRewardable},
		{"missing", "NOPE", model.EventTypeForumPost, DecisionChannelNotRewardable},
		{"zero amount", "ZERO", model.EventTypeComment, DecisionZeroAmount},
		{"unknown type", "ON", model.EventType("reaction"), DecisionZeroAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.rewardSvc.ProcessReward(ctx, RewardInput{UserID: u.ID, ChannelID: tt.channel, EventType: tt.typ, OccurredAt: testNow})
			if err != nil {
				t.Fatalf("ProcessReward: %v", err)
			}
			if out.Decision != tt.want || out.Grant != nil {
				t.Fatalf("got=%+v want=%s", out, tt.want)
			}
		})
	}
	if n := e.count(t, &model.RewardHistory{}); n != 0 {
		t.Fatalf("ledger rows got=%d want=0", n)
	}
}

func TestProcessReward_DailyCommentCapClamps(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.channel(t, "C", 10, 3, 50, true)
	u := e.user(t, "1")

	// 13 comment points already today
	if _, err := e.rewardSvc.Grant(ctx, GrantRequest{UserID: u.ID, Amount: 13, Type: model.RewardTypeComment, Reason: "seed"}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	before := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	out, err := e.rewardSvc.ProcessReward(ctx, RewardInput{UserID: u.ID, ChannelID: "C", EventType: model.EventTypeComment, OccurredAt: before})
	if err != nil {
		t.Fatalf("ProcessReward: %v", err)
	}
	if out.Decision != DecisionGranted || out.Amount != 2 {
		t.Fatalf("D: got=%+v want amount=2", out)
	}

	out, err = e.rewardSvc.ProcessReward(ctx, RewardInput{UserID: u.ID, ChannelID: "C", EventType: model.EventTypeComment, OccurredAt: before})
	if err != nil {
		t.Fatalf("ProcessReward: %v", err)
	}
	if out.Decision != DecisionDailyCapReached {
		t.Fatalf("after cap got=%s", out.Decision)
	}
	e.assertLedgerConsistent(t)
}

func TestProcessReward_DailyCapNeverExceeded(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.channel(t, "C", 10, 4, 50, true)
	u := e.user(t, "1")

	for i := 0; i < 20; i++ {
		at := DoubleRewardCutoff().Add(time.Duration(i-10) * time.Hour)
		if _, err := e.rewardSvc.ProcessReward(ctx, RewardInput{UserID: u.ID, ChannelID: "C", EventType: model.EventTypeComment, OccurredAt: at}); err != nil {
			t.Fatalf("ProcessReward #%d: %v", i, err)
		}
	}
	from, to := DayWindowUTC(testNow)
	sum, err := e.rewards.SumAmountBetween(ctx, u.ID, model.RewardTypeComment, from, to)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != DefaultDailyCommentCap {
		t.Fatalf("daily comment sum got=%d want=%d", sum, DefaultDailyCommentCap)
	}
	// messages are not capped
	for i := 0; i < 3; i++ {
		out, _ := e.rewardSvc.ProcessReward(ctx, RewardInput{UserID: u.ID, ChannelID: "C", EventType: model.EventTypeMessage, OccurredAt: testNow})
		if out.Decision != DecisionGranted {
			t.Fatalf("message #%d got=%s", i, out.Decision)
		}
	}
	e.assertLedgerConsistent(t)
}

func TestProcessReward_CapWindowIsServiceDay(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.channel(t, "C", 10, 15, 50, true)
	u := e.user(t, "1")

	// yesterday's comments do not count against today
	yesterday := testNow.AddDate(0, 0, -1)
	if _, _, err := e.rewards.Grant(ctx, grantParamsAt(u.ID, 15, yesterday)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out, err := e.rewardSvc.ProcessReward(ctx, RewardInput{UserID: u.ID, ChannelID: "C", EventType: model.EventTypeComment, OccurredAt: testNow})
	if err != nil || out.Decision != DecisionGranted || out.Amount != 15 {
		t.Fatalf("got=%+v err=%v", out, err)
	}
}

func TestGrant_InvalidAmount(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "1")
	for _, amt := range []int64{0, -5} {
		if _, err := e.rewardSvc.Grant(context.Background(), GrantRequest{UserID: u.ID, Amount: amt, Type: model.RewardTypeManual}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount=%d err=%v want ErrInvalidAmount", amt, err)
		}
	}
	if n := e.count(t, &model.RewardHistory{}); n != 0 {
		t.Fatalf("ledger rows got=%d", n)
	}
}

func TestGrant_LevelUpAssignsRoleAndNotifies(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	seedLadder(t, e)
	u := e.user(t, "42")

	res, err := e.rewardSvc.GrantManual(ctx, "42", 150, "")
	if err != nil {
		t.Fatalf("GrantManual: %v", err)
	}
	lu := res.LevelUp
	if !lu.Changed || lu.OldLevel != 1 || lu.NewLevel != 2 {
		t.Fatalf("level up got=%+v", lu)
	}
	if !lu.RoleAssigned || !lu.Notified || lu.RoleID != "R2" {
		t.Fatalf("side effects got=%+v", lu)
	}
	if len(e.notifier.assigned) != 1 || e.notifier.assigned[0] != "42:R2" {
		t.Fatalf("assigned got=%v", e.notifier.assigned)
	}
	stored, _ := e.users.FindByID(ctx, u.ID)
	if stored.CurrentLevel != 2 || stored.CurrentReward != 150 {
		t.Fatalf("stored got level=%d reward=%d", stored.CurrentLevel, stored.CurrentReward)
	}

	// level without a role: no side effects
	res, err = e.rewardSvc.GrantManual(ctx, "42", 400, "bonus")
	if err != nil {
		t.Fatalf("GrantManual: %v", err)
	}
	if res.LevelUp.NewLevel != 3 || res.LevelUp.RoleAssigned {
		t.Fatalf("level 3 got=%+v", res.LevelUp)
	}
	if len(e.notifier.dms) != 1 {
		t.Fatalf("dms got=%d want=1", len(e.notifier.dms))
	}
}

func TestGrant_SideEffectFailuresKeepGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("dm blocked", func(t *testing.T) {
		e := newTestEnv(t)
		seedLadder(t, e)
		e.user(t, "42")
		e.notifier.dmFails = true

		res, err := e.rewardSvc.GrantManual(ctx, "42", 150, "")
		if err != nil {
			t.Fatalf("GrantManual: %v", err)
		}
		if res.LevelUp.Notified || !res.LevelUp.RoleAssigned || res.SideEffectErr() != nil {
			t.Fatalf("got=%+v", res.LevelUp)
		}
		if res.User.CurrentReward != 150 {
			t.Fatalf("balance got=%d", res.User.CurrentReward)
		}
	})

	t.Run("role assignment fails", func(t *testing.T) {
		e := newTestEnv(t)
		seedLadder(t, e)
		u := e.user(t, "42")
		e.notifier.assignErr = errors.New("missing permissions")

		res, err := e.rewardSvc.GrantManual(ctx, "42", 150, "")
		if err != nil {
			t.Fatalf("GrantManual: %v", err)
		}
		if res.SideEffectErr() == nil || res.LevelUp.RoleAssigned {
			t.Fatalf("got=%+v", res.LevelUp)
		}
		stored, _ := e.users.FindByID(ctx, u.ID)
		if stored.CurrentReward != 150 || stored.CurrentLevel != 2 {
			t.Fatalf("stored got reward=%d level=%d", stored.CurrentReward, stored.CurrentLevel)
		}
		e.assertLedgerConsistent(t)
	})
}

func TestGrant_LevelNeverDecreases(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	seedLadder(t, e)
	u := e.user(t, "42")
	if _, err := e.users.UpdateLevel(ctx, u.ID, 3); err != nil {
		t.Fatalf("UpdateLevel: %v", err)
	}

	res, err := e.rewardSvc.GrantManual(ctx, "42", 10, "")
	if err != nil {
		t.Fatalf("GrantManual: %v", err)
	}
	if res.LevelUp.Changed || res.User.CurrentLevel != 3 {
		t.Fatalf("got changed=%v level=%d", res.LevelUp.Changed, res.User.CurrentLevel)
	}
	if len(e.notifier.assigned) != 0 {
		t.Fatalf("unexpected role assignment %v", e.notifier.assigned)
	}
}

func TestGrantManual_UnknownUser(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.rewardSvc.GrantManual(context.Background(), "nobody", 5, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err got=%v want ErrNotFound", err)
	}
}

func TestLevelProgress(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	seedLadder(t, e)
	e.user(t, "42")
	res, err := e.rewardSvc.GrantManual(ctx, "42", 300, "")
	if err != nil {
		t.Fatalf("GrantManual: %v", err)
	}

	prog, err := e.levelSvc.Progress(ctx, res.User)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	// level 2 at 100, level 3 at 500: 200 of 400
	if prog.Level != 2 || prog.Progress != 200 || prog.ProgressPercentage != 50 {
		t.Fatalf("progress got=%+v", prog)
	}
}

func seedLadder(t *testing.T, e *testEnv) {
	t.Helper()
	ctx := context.Background()
	role, err := e.levels.UpsertRole(ctx, &model.Role{DiscordRoleID: "R2", RoleName: "Regular"})
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	for _, lv := range []*model.Level{
		{LevelNumber: 1, RequiredRewardAmount: 0, LevelName: "Newcomer"},
		{LevelNumber: 2, RequiredRewardAmount: 100, LevelName: "Regular", RoleID: &role.ID},
		{LevelNumber: 3, RequiredRewardAmount: 500, LevelName: "Veteran"},
	} {
		if err := e.levels.UpsertLevel(ctx, lv); err != nil {
			t.Fatalf("level: %v", err)
		}
	}
}

func grantParamsAt(userID uint64, amount int64, at time.Time) repository.GrantParams {
	return repository.GrantParams{UserID: userID, Amount: amount, Type: model.RewardTypeComment, Reason: "seed", CreatedAt: at}
}
