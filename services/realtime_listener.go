package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"event-hub/config"

	pnv7 "github.com/pubnub/go/v7"
)

// RealtimeListener consumes join hints that clients publish after a
// successful HTTP join. Each hint carries only an event id; the listener
// re-reads the store and rebroadcasts the authoritative attendee list, so a
// client-supplied payload is never forwarded to a room.
type RealtimeListener struct {
	pn       *pnv7.PubNub
	listener *pnv7.Listener
	channel  string

	events   *EventService
	realtime *RealtimeService
}

func NewRealtimeListener(cfg *config.Config, events *EventService, realtime *RealtimeService) *RealtimeListener {
	pnCfg := pnv7.NewConfigWithUserId(pnv7.UserId(cfg.PubNubUUID))
	pnCfg.SubscribeKey = cfg.PubNubSubscribeKey
	pnCfg.SecretKey = cfg.PubNubSecretKey

	return &RealtimeListener{
		pn:       pnv7.NewPubNub(pnCfg),
		listener: pnv7.NewListener(),
		channel:  cfg.RealtimeJoinChannel,
		events:   events,
		realtime: realtime,
	}
}

// Run subscribes to the join-hint channel and serves messages until the
// context is cancelled.
func (l *RealtimeListener) Run(ctx context.Context) {
	l.pn.AddListener(l.listener)
	l.pn.Subscribe().
		Channels([]string{l.channel}).
		Execute()

	l.serve(ctx)
}

// serve drains every listener channel; an unread status event would strand
// one SDK goroutine per reconnect.
func (l *RealtimeListener) serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.pn.UnsubscribeAll()
			return
		case status := <-l.listener.Status:
			switch status.Category {
			case pnv7.PNConnectedCategory:
				slog.Info("realtime listener connected", "channel", l.channel)
			case pnv7.PNReconnectedCategory:
				slog.Info("realtime listener reconnected", "channel", l.channel)
			case pnv7.PNDisconnectedCategory:
				slog.Warn("realtime listener disconnected", "channel", l.channel)
			default:
				slog.Debug("realtime listener status", "category", status.Category.String())
			}
		case message := <-l.listener.Message:
			go l.handleJoinHint(ctx, message)
		}
	}
}

func (l *RealtimeListener) handleJoinHint(ctx context.Context, message *pnv7.PNMessage) {
	var hint struct {
		EventID string `json:"event_id"`
	}

	data, ok := message.Message.(map[string]any)
	if !ok {
		return
	}

	raw, _ := json.Marshal(data)
	if err := json.Unmarshal(raw, &hint); err != nil || hint.EventID == "" {
		return
	}

	event, err := l.events.Get(ctx, hint.EventID)
	if err != nil {
		slog.Warn("join hint for unknown event", "eventID", hint.EventID)
		return
	}

	l.realtime.PublishAttendeeUpdate(event)
}
