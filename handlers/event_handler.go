package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"event-hub/internal/status"
	"event-hub/models"
	"event-hub/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type EventHandler struct {
	app    *pocketbase.PocketBase
	events *services.EventService
}

func NewEventHandler(app *pocketbase.PocketBase, events *services.EventService) *EventHandler {
	return &EventHandler{
		app:    app,
		events: events,
	}
}

// List - browse events with optional category/date/search filters
func (h *EventHandler) List(e *core.RequestEvent) error {
	filter := parseEventFilter(e.Request.URL.Query())

	events, err := h.events.List(e.Request.Context(), filter)
	if err != nil {
		return apis.NewInternalServerError("Error fetching events", err)
	}

	return e.JSON(http.StatusOK, events)
}

// Get - fetch a single event by id
func (h *EventHandler) Get(e *core.RequestEvent) error {
	event, err := h.events.Get(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		if errors.Is(err, status.ErrEventNotFound) {
			return apis.NewNotFoundError("Event not found", err)
		}
		return apis.NewInternalServerError("Error fetching event", err)
	}

	return e.JSON(http.StatusOK, event)
}

// Create - store a new event; the authenticated user becomes creator and
// first attendee
func (h *EventHandler) Create(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var in models.CreateEventInput
	if err := e.BindBody(&in); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	event, err := h.events.Create(e.Request.Context(), e.Auth.Id, &in)
	if err != nil {
		if errors.Is(err, status.ErrInvalidEvent) {
			return apis.NewBadRequestError(err.Error(), err)
		}
		return apis.NewInternalServerError("Error creating event", err)
	}

	return e.JSON(http.StatusCreated, event)
}

func parseEventFilter(query url.Values) models.EventFilter {
	return models.EventFilter{
		Category: query.Get("category"),
		Date:     query.Get("date"),
		Search:   query.Get("search"),
	}
}
