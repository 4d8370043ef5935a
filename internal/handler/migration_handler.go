package handler

import (
	"errors"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-reward-bot/internal/service"
	"github.com/shinyyama/community-reward-bot/internal/snowid"
)

type MigrationHandler struct {
	svc          service.MigrationService
	source       service.ActivitySource
	status       service.StatusReporter
	defaultLimit int
	now          func() time.Time
}

func NewMigrationHandler(svc service.MigrationService, source service.ActivitySource, status service.StatusReporter, defaultLimit int) *MigrationHandler {
	if defaultLimit <= 0 {
		defaultLimit = 1000
	}
	return &MigrationHandler{svc: svc, source: source, status: status, defaultLimit: defaultLimit, now: time.Now}
}

type migrateRequest struct {
	ChannelID *string  `json:"channelId"`
	Limit     *float64 `json:"limit"`
}

type ChannelInfoResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	GuildID     string `json:"guildId,omitempty"`
	IsTextBased bool   `json:"isTextBased"`
	IsForum     bool   `json:"isForum"`
}

func toChannelInfoResponse(info *service.ChannelInfo) ChannelInfoResponse {
	return ChannelInfoResponse{
		ID:          info.ID,
		Name:        info.Name,
		Type:        info.Type,
		GuildID:     info.GuildID,
		IsTextBased: info.Kind == service.ChannelKindText,
		IsForum:     info.Kind == service.ChannelKindForum,
	}
}

type MigrateResponse struct {
	Message     string              `json:"message"`
	RunID       string              `json:"runId"`
	Kind        string              `json:"kind"`
	ChannelInfo ChannelInfoResponse `json:"channelInfo"`
	Limit       int                 `json:"limit"`
	Status      string              `json:"status"`
}

// Migrate validates the request and starts a background backfill; it answers
// 202 before any history is fetched.
func (h *MigrationHandler) Migrate(c echo.Context) error {
	var req migrateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "channelId must be a string and limit a positive integer"))
	}
	if req.ChannelID == nil || *req.ChannelID == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "channelId is required"))
	}
	if !snowid.Valid(*req.ChannelID) {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "channelId is not a valid snowflake"))
	}
	limit := h.defaultLimit
	if req.Limit != nil {
		l := *req.Limit
		if l <= 0 || l != math.Trunc(l) || l > math.MaxInt32 {
			return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "limit must be a positive integer"))
		}
		limit = int(l)
	}

	log.Printf("[migrate] request channel=%s limit=%d", *req.ChannelID, limit)
	run, info, err := h.svc.Start(c.Request().Context(), *req.ChannelID, limit)
	switch {
	case errors.Is(err, service.ErrChannelNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse(CodeNotFound, "channel not found"))
	case errors.Is(err, service.ErrUnsupportedChannel):
		msg := "only text and forum channels can be migrated"
		if info != nil {
			msg += " (got " + info.Type + ")"
		}
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeUnsupportedChannel, msg))
	case err != nil:
		log.Printf("[migrate] start channel=%s err=%v", *req.ChannelID, err)
		return c.JSON(http.StatusInternalServerError, NewErrorResponse(CodeInternal, "failed to start migration"))
	}

	return c.JSON(http.StatusAccepted, MigrateResponse{
		Message:     "migration started",
		RunID:       run.ID,
		Kind:        string(run.Kind),
		ChannelInfo: toChannelInfoResponse(info),
		Limit:       run.Limit,
		Status:      "processing",
	})
}

func (h *MigrationHandler) GetRun(c echo.Context) error {
	run, ok := h.svc.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, NewErrorResponse(CodeNotFound, "migration run not found"))
	}
	return c.JSON(http.StatusOK, run)
}

func (h *MigrationHandler) ListRuns(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"runs": h.svc.List(),
	})
}

type BotStatusResponse struct {
	IsReady    bool  `json:"isReady"`
	GuildCount int   `json:"guildCount"`
	Uptime     int64 `json:"uptime"`
}

func (h *MigrationHandler) Status(c echo.Context) error {
	now := h.now()
	st := h.status.Status()
	var uptime int64
	if !st.StartedAt.IsZero() {
		uptime = int64(now.Sub(st.StartedAt) / time.Second)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "migration service status",
		"botStatus": BotStatusResponse{
			IsReady:    st.Ready,
			GuildCount: st.GuildCount,
			Uptime:     uptime,
		},
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

func (h *MigrationHandler) ChannelInfo(c echo.Context) error {
	channelID := c.Param("channelId")
	if !snowid.Valid(channelID) {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "channelId is not a valid snowflake"))
	}
	info, err := h.source.ChannelInfo(c.Request().Context(), channelID)
	if err != nil {
		log.Printf("[migrate] channel info channel=%s err=%v", channelID, err)
		return c.JSON(http.StatusInternalServerError, NewErrorResponse(CodeInternal, "failed to fetch channel"))
	}
	if info == nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse(CodeNotFound, "channel not found"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"channelInfo": toChannelInfoResponse(info),
	})
}

func (h *MigrationHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
