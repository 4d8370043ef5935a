package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/shinyyama/community-reward-bot/internal/metrics"
	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/repository"
	"gorm.io/datatypes"
)

const ProviderVercel = "vercel"

type VercelEvent struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	Payload   struct {
		Deployment struct {
			ID   string `json:"id"`
			URL  string `json:"url"`
			Name string `json:"name"`
		} `json:"deployment"`
		Links struct {
			Deployment string `json:"deployment"`
			Project    string `json:"project"`
		} `json:"links"`
		Target *string `json:"target"`
	} `json:"payload"`
}

type WebhookResult struct {
	Duplicate bool
	Notified  bool
	Event     *VercelEvent
}

type WebhookService interface {
	HandleVercel(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error)
}

type webhookService struct {
	repo      repository.WebhookRepository
	notifier  ChannelNotifier
	secret    string
	channelID string
}

func NewWebhookService(repo repository.WebhookRepository, notifier ChannelNotifier, secret, channelID string) WebhookService {
	return &webhookService{repo: repo, notifier: notifier, secret: secret, channelID: channelID}
}

// VerifySignature compares the hex HMAC-SHA1 of body against signature.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleVercel verifies, records and announces one deployment webhook. A
// delivery already recorded is acknowledged without a second announcement.
func (s *webhookService) HandleVercel(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error) {
	if !VerifySignature(s.secret, rawBody, signature) {
		metrics.WebhookDeliveries.WithLabelValues(ProviderVercel, "invalid_signature").Inc()
		return nil, ErrInvalidSignature
	}
	var ev VercelEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		metrics.WebhookDeliveries.WithLabelValues(ProviderVercel, "invalid_payload").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ev.ID == "" {
		metrics.WebhookDeliveries.WithLabelValues(ProviderVercel, "invalid_payload").Inc()
		return nil, fmt.Errorf("%w: missing id", ErrInvalidPayload)
	}

	d := &model.WebhookDelivery{
		Provider:       ProviderVercel,
		DeliveryID:     ev.ID,
		EventType:      ev.Type,
		Payload:        datatypes.JSON(rawBody),
		SignatureValid: true,
	}
	created, err := s.repo.CreateIfAbsent(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("record delivery %s: %w", ev.ID, err)
	}
	res := &WebhookResult{Event: &ev}
	if !created {
		res.Duplicate = true
		metrics.WebhookDeliveries.WithLabelValues(ProviderVercel, "duplicate").Inc()
		return res, nil
	}

	if s.notifier != nil && s.channelID != "" {
		if err := s.notifier.SendChannelMessage(ctx, s.channelID, DeploymentNotice(&ev)); err != nil {
			metrics.SideEffectFailures.WithLabelValues("channel").Inc()
			log.Printf("[webhook] provider=vercel id=%s stage=notify err=%v", ev.ID, err)
		} else {
			res.Notified = true
		}
	}
	if err := s.repo.MarkProcessed(ctx, d.ID, time.Now()); err != nil {
		log.Printf("[webhook] provider=vercel id=%s stage=mark err=%v", ev.ID, err)
	}
	metrics.WebhookDeliveries.WithLabelValues(ProviderVercel, "accepted").Inc()
	return res, nil
}

// DeploymentNotice renders the channel announcement for a deployment event.
func DeploymentNotice(ev *VercelEvent) string {
	target := "preview"
	if ev.Payload.Target != nil && *ev.Payload.Target != "" {
		target = *ev.Payload.Target
	}
	msg := fmt.Sprintf("🚀 Vercel Deployment %s\nA new deployment was created in the %s environment.\nProject: %s\nDeployment ID: %s",
		ev.Type, target, ev.Payload.Deployment.Name, ev.Payload.Deployment.ID)
	if ev.Payload.Deployment.URL != "" {
		msg += "\nURL: https://" + ev.Payload.Deployment.URL
	}
	return msg
}
