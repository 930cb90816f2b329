package handlers

import (
	"errors"
	"net/http"

	"event-hub/internal/status"
	"event-hub/monitoring"
	"event-hub/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AttendHandler struct {
	app        *pocketbase.PocketBase
	attendance *services.AttendanceService
	realtime   *services.RealtimeService
	monitor    *monitoring.Monitor
}

func NewAttendHandler(app *pocketbase.PocketBase, attendance *services.AttendanceService, realtime *services.RealtimeService, monitor *monitoring.Monitor) *AttendHandler {
	return &AttendHandler{
		app:        app,
		attendance: attendance,
		realtime:   realtime,
		monitor:    monitor,
	}
}

// Attend - join an event; on success the room receives the authoritative
// attendee list
func (h *AttendHandler) Attend(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("id")

	event, err := h.attendance.Join(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		h.monitor.TrackAttendOperation(eventID, attendFailureLabel(err))

		switch {
		case errors.Is(err, status.ErrEventNotFound):
			return apis.NewNotFoundError("Event not found", err)
		case errors.Is(err, status.ErrAlreadyAttending):
			return apis.NewBadRequestError("Already attending this event", err)
		case errors.Is(err, status.ErrEventFull):
			return apis.NewBadRequestError("Event is at full capacity", err)
		case errors.Is(err, status.ErrJoinInProgress):
			return apis.NewBadRequestError("Join already in progress", err)
		}
		return apis.NewInternalServerError("Error attending event", err)
	}

	h.monitor.TrackAttendOperation(eventID, "success")
	h.realtime.PublishAttendeeUpdate(event)

	return e.JSON(http.StatusOK, event)
}

func attendFailureLabel(err error) string {
	switch {
	case errors.Is(err, status.ErrEventNotFound):
		return "not_found"
	case errors.Is(err, status.ErrAlreadyAttending):
		return "already_attending"
	case errors.Is(err, status.ErrEventFull):
		return "capacity_exceeded"
	case errors.Is(err, status.ErrJoinInProgress):
		return "in_progress"
	}
	return "error"
}
