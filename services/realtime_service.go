package services

import (
	"fmt"
	"log/slog"

	"event-hub/models"

	pubnub "github.com/pubnub/go"
)

const attendeeUpdateType = "attendee_update"

// RealtimeService pushes attendee updates into per-event rooms. A room is a
// PubNub channel keyed by event id; event pages subscribe to it while open.
type RealtimeService struct {
	pubnub *pubnub.PubNub
}

func NewRealtimeService(pn *pubnub.PubNub) *RealtimeService {
	return &RealtimeService{pubnub: pn}
}

// RoomChannel returns the broadcast channel of a single event.
func RoomChannel(eventID string) string {
	return fmt.Sprintf("event-%s", eventID)
}

// PublishAttendeeUpdate broadcasts the attendee list of the given event to
// every subscriber of its room. The payload always comes from a fresh store
// read, never from a client.
func (s *RealtimeService) PublishAttendeeUpdate(event *models.Event) {
	if s.pubnub == nil {
		return
	}

	_, _, err := s.pubnub.Publish().
		Channel(RoomChannel(event.ID)).
		Message(attendeeUpdateMessage(event)).
		Execute()
	if err != nil {
		slog.Error("publish attendee update", "eventID", event.ID, "error", err)
	}
}

func attendeeUpdateMessage(event *models.Event) map[string]any {
	attendees := make([]map[string]any, 0, len(event.Attendees))
	for _, attendee := range event.Attendees {
		attendees = append(attendees, map[string]any{
			"id":    attendee.ID,
			"name":  attendee.Name,
			"email": attendee.Email,
		})
	}

	return map[string]any{
		"type":           attendeeUpdateType,
		"event_id":       event.ID,
		"attendees":      attendees,
		"attendee_count": len(event.Attendees),
	}
}
