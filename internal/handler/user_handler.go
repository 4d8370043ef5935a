package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/service"
	"github.com/shinyyama/community-reward-bot/internal/snowid"
)

type UserHandler struct {
	users   service.UserService
	rewards service.RewardService
}

func NewUserHandler(users service.UserService, rewards service.RewardService) *UserHandler {
	return &UserHandler{users: users, rewards: rewards}
}

type UserResponse struct {
	DiscordID     string  `json:"discordId"`
	Username      string  `json:"username"`
	DisplayName   string  `json:"displayName"`
	AvatarURL     *string `json:"avatarUrl,omitempty"`
	CurrentReward int64   `json:"currentReward"`
	CurrentLevel  int     `json:"currentLevel"`
	CreatedAt     string  `json:"createdAt"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		DiscordID:     u.DiscordID,
		Username:      u.Username,
		DisplayName:   u.DisplayName(),
		AvatarURL:     u.AvatarURL,
		CurrentReward: u.CurrentReward,
		CurrentLevel:  u.CurrentLevel,
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type RewardHistoryResponse struct {
	ID        uint64  `json:"id"`
	Amount    int64   `json:"amount"`
	Type      string  `json:"type"`
	Reason    string  `json:"reason"`
	ChannelID *string `json:"channelId,omitempty"`
	MessageID *string `json:"messageId,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

func toRewardHistoryResponse(h model.RewardHistory) RewardHistoryResponse {
	r := RewardHistoryResponse{
		ID:        h.ID,
		Amount:    h.Amount,
		Type:      string(h.Type),
		Reason:    h.Reason,
		CreatedAt: h.CreatedAt.UTC().Format(time.RFC3339),
	}
	if h.Event != nil {
		r.ChannelID = &h.Event.ChannelID
		r.MessageID = &h.Event.MessageID
	}
	return r
}

func pageParams(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func (h *UserHandler) Profile(c echo.Context) error {
	discordID := c.Param("discordId")
	if !snowid.Valid(discordID) {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "discordId is not a valid snowflake"))
	}
	p, err := h.users.Profile(c.Request().Context(), discordID)
	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusNotFound, NewErrorResponse(CodeNotFound, "user not found"))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse(CodeInternal, "failed to fetch user"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":       toUserResponse(p.User),
		"rank":       p.Rank,
		"totalUsers": p.TotalUsers,
		"percentile": p.Percentile,
		"progress":   p.Progress,
	})
}

func (h *UserHandler) Rewards(c echo.Context) error {
	discordID := c.Param("discordId")
	if !snowid.Valid(discordID) {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "discordId is not a valid snowflake"))
	}
	limit, offset := pageParams(c)
	list, total, err := h.rewards.History(c.Request().Context(), discordID, limit, offset)
	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusNotFound, NewErrorResponse(CodeNotFound, "user not found"))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse(CodeInternal, "failed to fetch rewards"))
	}
	resp := make([]RewardHistoryResponse, 0, len(list))
	for _, r := range list {
		resp = append(resp, toRewardHistoryResponse(r))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rewards": resp,
		"total":   total,
	})
}

type LeaderboardEntry struct {
	Rank int `json:"rank"`
	UserResponse
}

func (h *UserHandler) Leaderboard(c echo.Context) error {
	limit, offset := pageParams(c)
	users, total, err := h.users.Leaderboard(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse(CodeInternal, "failed to fetch leaderboard"))
	}
	if offset < 0 {
		offset = 0
	}
	resp := make([]LeaderboardEntry, 0, len(users))
	for i := range users {
		resp = append(resp, LeaderboardEntry{Rank: offset + i + 1, UserResponse: toUserResponse(&users[i])})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users": resp,
		"total": total,
	})
}

type grantRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// Grant credits a manual reward. Level-up side-effect failures are reported
// but never undo the grant.
func (h *UserHandler) Grant(c echo.Context) error {
	discordID := c.Param("discordId")
	if !snowid.Valid(discordID) {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "discordId is not a valid snowflake"))
	}
	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "invalid body"))
	}
	res, err := h.rewards.GrantManual(c.Request().Context(), discordID, req.Amount, req.Reason)
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidAmount, "amount must be positive"))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse(CodeNotFound, "user not found"))
	case err != nil:
		log.Printf("[grant] user=%s err=%v", discordID, err)
		return c.JSON(http.StatusInternalServerError, NewErrorResponse(CodeInternal, "failed to grant reward"))
	}
	body := map[string]interface{}{
		"user":    toUserResponse(res.User),
		"reward":  toRewardHistoryResponse(*res.History),
		"levelUp": res.LevelUp.Changed,
	}
	if se := res.SideEffectErr(); se != nil {
		body["sideEffectError"] = se.Error()
	}
	return c.JSON(http.StatusCreated, body)
}
