package notification

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"github.com/iliyamo/event-ticketing/internal/config"
)

// Pusher sends a realtime message to one user.
type Pusher interface {
	Push(ctx context.Context, userID uint64, msg map[string]any) error
}

// UserChannel is the PubNub channel a client subscribes to for its own
// updates.
func UserChannel(userID uint64) string { return fmt.Sprintf("user-%d", userID) }

// PubNubPusher publishes to user channels.
type PubNubPusher struct {
	publish func(channel string, msg any) error
	logger  *slog.Logger
}

func NewPubNubPusher(cfg config.PubNubConfig, logger *slog.Logger) *PubNubPusher {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey
	pn := pubnub.NewPubNub(pnConfig)

	return &PubNubPusher{
		publish: func(channel string, msg any) error {
			_, status, err := pn.Publish().Channel(channel).Message(msg).Execute()
			if err != nil {
				return err
			}
			if status.StatusCode >= 300 {
				return fmt.Errorf("pubnub publish: status %d", status.StatusCode)
			}
			return nil
		},
		logger: logger.With("component", "pubnub"),
	}
}

func (p *PubNubPusher) Push(_ context.Context, userID uint64, msg map[string]any) error {
	ch := UserChannel(userID)
	if err := p.publish(ch, msg); err != nil {
		p.logger.Warn("push failed", "channel", ch, "error", err)
		return err
	}
	return nil
}

// NopPusher is used when PubNub keys are not configured.
type NopPusher struct{}

func (NopPusher) Push(context.Context, uint64, map[string]any) error { return nil }

// NewPusher returns a PubNub pusher when keys are configured.
func NewPusher(cfg config.PubNubConfig, logger *slog.Logger) Pusher {
	if !cfg.Enabled() {
		return NopPusher{}
	}
	return NewPubNubPusher(cfg, logger)
}
