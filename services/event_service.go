package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"event-hub/internal/status"
	"event-hub/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

const eventsCollection = "events"

// EventService owns reads and writes of the events collection.
type EventService struct {
	app core.App
}

func NewEventService(app core.App) *EventService {
	return &EventService{app: app}
}

// List returns all events matching the filter, sorted ascending by date,
// with creator and attendees expanded.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	expr, params := buildEventFilter(filter, time.Now())

	records, err := s.app.FindRecordsByFilter(eventsCollection, expr, "date", -1, 0, params)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]*models.Event, 0, len(records))
	for _, record := range records {
		event, err := s.toEvent(record)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	record, err := s.app.FindRecordById(eventsCollection, id)
	if err != nil {
		return nil, status.ErrEventNotFound
	}

	return s.toEvent(record)
}

// Create stores a new event. The creator is always the first attendee.
func (s *EventService) Create(ctx context.Context, creatorID string, in *models.CreateEventInput) (*models.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	date, err := types.ParseDateTime(in.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", status.ErrInvalidEvent, in.Date)
	}

	collection, err := s.app.FindCollectionByNameOrId(eventsCollection)
	if err != nil {
		return nil, err
	}

	record := core.NewRecord(collection)
	record.Set("name", in.Name)
	record.Set("description", in.Description)
	record.Set("date", date)
	record.Set("time", in.Time)
	record.Set("location", in.Location)
	record.Set("category", in.Category)
	record.Set("capacity", in.Capacity)
	record.Set("price", in.Price.InexactFloat64())
	record.Set("image", in.Image)
	record.Set("creator", creatorID)
	record.Set("attendees", []string{creatorID})

	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	return s.toEvent(record)
}

func (s *EventService) toEvent(record *core.Record) (*models.Event, error) {
	if errs := s.app.ExpandRecord(record, []string{"creator", "attendees"}, nil); len(errs) > 0 {
		return nil, fmt.Errorf("expand event %s: %v", record.Id, errs)
	}

	event := &models.Event{
		ID:          record.Id,
		Name:        record.GetString("name"),
		Description: record.GetString("description"),
		Date:        record.GetDateTime("date").Time(),
		Time:        record.GetString("time"),
		Location:    record.GetString("location"),
		Category:    record.GetString("category"),
		Capacity:    record.GetInt("capacity"),
		Price:       decimal.NewFromFloat(record.GetFloat("price")),
		Image:       record.GetString("image"),
		Attendees:   []models.EventUser{},
	}

	if creator := record.ExpandedOne("creator"); creator != nil {
		event.Creator = toEventUser(creator)
	}
	for _, attendee := range record.ExpandedAll("attendees") {
		event.Attendees = append(event.Attendees, *toEventUser(attendee))
	}

	return event, nil
}

func toEventUser(record *core.Record) *models.EventUser {
	return &models.EventUser{
		ID:    record.Id,
		Name:  record.GetString("name"),
		Email: record.GetString("email"),
	}
}

// buildEventFilter translates the listing query into a records filter
// expression. Unknown date buckets and the "all" category sentinel impose
// no constraint.
func buildEventFilter(filter models.EventFilter, now time.Time) (string, dbx.Params) {
	var conds []string
	params := dbx.Params{}

	if filter.Category != "" && filter.Category != "all" {
		conds = append(conds, "category = {:category}")
		params["category"] = filter.Category
	}

	if from, to, ok := dateWindow(filter.Date, now); ok {
		conds = append(conds, "date >= {:dateFrom} && date <= {:dateTo}")
		params["dateFrom"] = from.UTC().Format(types.DefaultDateLayout)
		params["dateTo"] = to.UTC().Format(types.DefaultDateLayout)
	}

	if filter.Search != "" {
		conds = append(conds, "(name ~ {:search} || description ~ {:search})")
		params["search"] = filter.Search
	}

	return strings.Join(conds, " && "), params
}

// dateWindow maps a date bucket to a closed local-time range:
// today = the current day, week = Sunday through Saturday of the current
// week, month = first through last day of the current month.
func dateWindow(bucket string, now time.Time) (time.Time, time.Time, bool) {
	switch bucket {
	case "today":
		return startOfDay(now), endOfDay(now), true
	case "week":
		sunday := startOfDay(now.AddDate(0, 0, -int(now.Weekday())))
		return sunday, endOfDay(sunday.AddDate(0, 0, 6)), true
	case "month":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return first, endOfDay(first.AddDate(0, 1, -1)), true
	}
	return time.Time{}, time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Millisecond)
}
