package models

import (
	"fmt"
	"time"

	"event-hub/internal/status"

	"github.com/shopspring/decimal"
)

const (
	CategoryConference = "Conference"
	CategoryWorkshop   = "Workshop"
	CategoryNetworking = "Networking"
	CategoryConcert    = "Concert"
	CategoryExhibition = "Exhibition"
	CategorySports     = "Sports"
)

var Categories = []string{
	CategoryConference,
	CategoryWorkshop,
	CategoryNetworking,
	CategoryConcert,
	CategoryExhibition,
	CategorySports,
}

func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// EventUser is the projection of a user record exposed on event responses.
type EventUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Event struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Time        string          `json:"time"`
	Location    string          `json:"location"`
	Category    string          `json:"category"`
	Capacity    int             `json:"capacity"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Creator     *EventUser      `json:"creator"`
	Attendees   []EventUser     `json:"attendees"`
}

func (e *Event) AttendeeCount() int {
	return len(e.Attendees)
}

func (e *Event) Full() bool {
	return len(e.Attendees) >= e.Capacity
}

// EventFilter carries the optional query parameters of the event listing.
type EventFilter struct {
	Category string
	Date     string // today, week, month
	Search   string
}

type CreateEventInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	Location    string          `json:"location"`
	Category    string          `json:"category"`
	Capacity    int             `json:"capacity"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
}

func (in *CreateEventInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", status.ErrInvalidEvent)
	}
	if in.Date == "" {
		return fmt.Errorf("%w: date is required", status.ErrInvalidEvent)
	}
	if !IsValidCategory(in.Category) {
		return fmt.Errorf("%w: unknown category %q", status.ErrInvalidEvent, in.Category)
	}
	if in.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be at least 1", status.ErrInvalidEvent)
	}
	if in.Price.Sign() < 0 {
		return fmt.Errorf("%w: price must not be negative", status.ErrInvalidEvent)
	}
	return nil
}
