package service

import (
	"time"

	"github.com/shinyyama/community-reward-bot/internal/model"
)

var doubleRewardCutoff = time.Date(2025, 7, 9, 9, 53, 0, 0, time.UTC)

// DoubleRewardCutoff ends the launch promotion: activity strictly before it
// earns twice the base amount.
func DoubleRewardCutoff() time.Time {
	return doubleRewardCutoff
}

// DefaultDailyCommentCap bounds comment rewards per user per UTC day.
// Older code paths disagreed (5 vs 15); DAILY_COMMENT_CAP overrides it.
const DefaultDailyCommentCap int64 = 15

const promotedSuffix = " (2x applied)"

// BaseRewardAmount prices an event type for a channel. Unknown types are worth 0.
func BaseRewardAmount(ch *model.RewardableChannel, typ model.EventType) int64 {
	if ch == nil {
		return 0
	}
	var amount int64
	switch typ {
	case model.EventTypeMessage:
		amount = ch.MessageRewardAmount
	case model.EventTypeComment:
		amount = ch.CommentRewardAmount
	case model.EventTypeForumPost:
		amount = ch.ForumPostRewardAmount
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// Rewardable reports whether ch may pay out at all.
func Rewardable(ch *model.RewardableChannel) bool {
	return ch != nil && ch.IsActive
}

// RewardMultiplier is 2 for instants strictly before the cutoff, otherwise 1.
func RewardMultiplier(at time.Time) int64 {
	if at.Before(doubleRewardCutoff) {
		return 2
	}
	return 1
}

// DayWindowUTC returns the UTC calendar day [start, end) containing t.
func DayWindowUTC(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// ClampToCap limits amount to the headroom left under capAmount. It returns
// false when nothing is left.
func ClampToCap(amount, used, capAmount int64) (int64, bool) {
	if used >= capAmount {
		return 0, false
	}
	if remaining := capAmount - used; amount > remaining {
		return remaining, true
	}
	return amount, true
}

// RewardReason is the ledger reason for an activity grant.
func RewardReason(typ model.EventType, promoted bool) string {
	reason := string(typ) + " activity reward"
	if promoted {
		reason += promotedSuffix
	}
	return reason
}
