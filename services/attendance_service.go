package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"event-hub/internal/status"
	"event-hub/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// AttendanceService enforces the capacity and duplicate-join invariants of
// an event's attendee list.
type AttendanceService struct {
	app     core.App
	redis   *redis.Client
	events  *EventService
	lockTTL time.Duration
}

func NewAttendanceService(app core.App, redisClient *redis.Client, events *EventService, lockTTL time.Duration) *AttendanceService {
	return &AttendanceService{
		app:     app,
		redis:   redisClient,
		events:  events,
		lockTTL: lockTTL,
	}
}

// Join appends userID to the event's attendees iff the event exists, the
// user is not already attending and there is spare capacity. The append is
// a single conditional UPDATE, so two concurrent joins cannot both pass the
// capacity check and push the list past capacity.
func (s *AttendanceService) Join(ctx context.Context, eventID, userID string) (*models.Event, error) {
	if s.redis != nil {
		lockKey := joinLockKey(eventID, userID)
		acquired, err := s.redis.SetNX(ctx, lockKey, "1", s.lockTTL).Result()
		if err == nil && !acquired {
			return nil, status.ErrJoinInProgress
		}
		// a Redis failure never blocks a join; the UPDATE below stays the
		// source of truth. The lock is released once the outcome is known so
		// an immediate retry classifies as a duplicate, not as in progress.
		defer s.releaseLock(ctx, lockKey)
	}

	rows, err := appendAttendee(s.app.DB(), eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("join event %s: %w", eventID, err)
	}
	if rows == 0 {
		return nil, s.classifyRejection(eventID, userID)
	}

	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	s.cacheAttendeeCount(ctx, eventID, len(event.Attendees))

	return event, nil
}

// appendAttendee pushes userID onto the event's attendee list iff there is
// spare capacity and the user is not already a member, all inside one
// statement. Returns the number of matched rows: 1 admitted, 0 rejected.
func appendAttendee(db dbx.Builder, eventID, userID string) (int64, error) {
	res, err := db.NewQuery(`
		UPDATE events
		SET attendees = json_insert(attendees, '$[#]', {:user})
		WHERE id = {:event}
		  AND json_array_length(attendees) < capacity
		  AND NOT EXISTS (
			SELECT 1 FROM json_each(events.attendees) WHERE json_each.value = {:user}
		  )
	`).Bind(dbx.Params{"event": eventID, "user": userID}).Execute()
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// classifyRejection re-reads the event to decide why the conditional update
// matched no row.
func (s *AttendanceService) classifyRejection(eventID, userID string) error {
	record, err := s.app.FindRecordById(eventsCollection, eventID)
	if err != nil {
		return status.ErrEventNotFound
	}

	return classifyJoinRejection(record.GetStringSlice("attendees"), record.GetInt("capacity"), userID)
}

func classifyJoinRejection(attendees []string, capacity int, userID string) error {
	if slices.Contains(attendees, userID) {
		return status.ErrAlreadyAttending
	}
	if len(attendees) >= capacity {
		return status.ErrEventFull
	}
	// lost a race with a concurrent writer; the client can retry
	return status.ErrJoinInProgress
}

func (s *AttendanceService) cacheAttendeeCount(ctx context.Context, eventID string, count int) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, attendeeCountKey(eventID), count, 0).Err(); err != nil {
		slog.Error("cache attendee count", "eventID", eventID, "error", err)
	}
}

func (s *AttendanceService) releaseLock(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, key)
}

func joinLockKey(eventID, userID string) string {
	return fmt.Sprintf("join:lock:%s:%s", eventID, userID)
}

func attendeeCountKey(eventID string) string {
	return fmt.Sprintf("event:attendees:%s", eventID)
}
