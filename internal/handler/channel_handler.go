package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/service"
	"github.com/shinyyama/community-reward-bot/internal/snowid"
)

type ChannelHandler struct {
	rewards service.RewardService
}

func NewChannelHandler(rewards service.RewardService) *ChannelHandler {
	return &ChannelHandler{rewards: rewards}
}

type ChannelStatsResponse struct {
	ChannelID     string           `json:"channelId"`
	TotalRewards  int64            `json:"totalRewards"`
	TotalUsers    int64            `json:"totalUsers"`
	RewardsByType map[string]int64 `json:"rewardsByType"`
}

func (h *ChannelHandler) RewardStats(c echo.Context) error {
	channelID := c.Param("channelId")
	if !snowid.Valid(channelID) {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "channelId is not a valid snowflake"))
	}
	st, err := h.rewards.ChannelStats(c.Request().Context(), channelID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse(CodeInternal, "failed to fetch channel stats"))
	}
	byType := st.RewardsByType
	if byType == nil {
		byType = map[string]int64{}
	}
	return c.JSON(http.StatusOK, ChannelStatsResponse{
		ChannelID:     st.ChannelID,
		TotalRewards:  st.TotalRewards,
		TotalUsers:    st.TotalUsers,
		RewardsByType: byType,
	})
}

type upsertChannelRequest struct {
	ChannelName           string `json:"channelName"`
	MessageRewardAmount   int64  `json:"messageRewardAmount"`
	CommentRewardAmount   int64  `json:"commentRewardAmount"`
	ForumPostRewardAmount int64  `json:"forumPostRewardAmount"`
	IsActive              *bool  `json:"isActive"`
}

// Upsert configures reward amounts for a channel. Omitting isActive activates it.
func (h *ChannelHandler) Upsert(c echo.Context) error {
	channelID := c.Param("channelId")
	if !snowid.Valid(channelID) {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "channelId is not a valid snowflake"))
	}
	var req upsertChannelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "invalid body"))
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	ch := &model.RewardableChannel{
		ChannelID:             channelID,
		ChannelName:           req.ChannelName,
		MessageRewardAmount:   req.MessageRewardAmount,
		CommentRewardAmount:   req.CommentRewardAmount,
		ForumPostRewardAmount: req.ForumPostRewardAmount,
		IsActive:              active,
	}
	err := h.rewards.SetRewardableChannel(c.Request().Context(), ch)
	if errors.Is(err, service.ErrInvalidAmount) {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidAmount, "reward amounts must not be negative"))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse(CodeInternal, "failed to save channel"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"channelId":             ch.ChannelID,
		"channelName":           ch.ChannelName,
		"messageRewardAmount":   ch.MessageRewardAmount,
		"commentRewardAmount":   ch.CommentRewardAmount,
		"forumPostRewardAmount": ch.ForumPostRewardAmount,
		"isActive":              ch.IsActive,
	})
}
