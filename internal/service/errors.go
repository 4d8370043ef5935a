package service

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrAlreadyRewarded    = errors.New("event already rewarded")
	ErrInvalidItem        = errors.New("activity item has no external id")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrUnsupportedChannel = errors.New("channel is neither text-based nor a forum")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrInvalidPayload     = errors.New("invalid webhook payload")
)
