package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-reward-bot/internal/service"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	svc service.WebhookService
}

func NewWebhookHandler(svc service.WebhookService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// Vercel reads the body unparsed; the signature covers the exact bytes sent.
func (h *WebhookHandler) Vercel(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, "failed to read body"))
	}
	res, err := h.svc.HandleVercel(c.Request().Context(), body, c.Request().Header.Get("x-vercel-signature"))
	if errors.Is(err, service.ErrInvalidSignature) {
		return c.JSON(http.StatusForbidden, NewErrorResponse(CodeInvalidSignature, "signature mismatch"))
	}
	if errors.Is(err, service.ErrInvalidPayload) {
		return c.JSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidPayload, "malformed webhook payload"))
	}
	if err != nil {
		log.Printf("[webhook] provider=vercel err=%v", err)
		return c.JSON(http.StatusInternalServerError, NewErrorResponse(CodeInternal, "failed to record webhook"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"received":  true,
		"duplicate": res.Duplicate,
		"notified":  res.Notified,
	})
}
