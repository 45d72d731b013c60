// Package tools defines the closed set of tools available to the travel
// assistants and the registry that executes them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Name identifies a tool. The set is closed; anything else is unknown.
type Name string

const (
	FetchUserFlightInformation Name = "fetch_user_flight_information"
	SearchFlights              Name = "search_flights"
	UpdateTicketToNewFlight    Name = "update_ticket_to_new_flight"
	CancelTicket               Name = "cancel_ticket"

	SearchCarRentals Name = "search_car_rentals"
	BookCarRental    Name = "book_car_rental"
	UpdateCarRental  Name = "update_car_rental"
	CancelCarRental  Name = "cancel_car_rental"

	SearchHotels Name = "search_hotels"
	BookHotel    Name = "book_hotel"
	UpdateHotel  Name = "update_hotel"
	CancelHotel  Name = "cancel_hotel"

	SearchTripRecommendations Name = "search_trip_recommendations"
	BookExcursion             Name = "book_excursion"
	UpdateExcursion           Name = "update_excursion"
	CancelExcursion           Name = "cancel_excursion"

	LookupPolicy Name = "lookup_policy"

	// Control tools are declared to the model but never executed. The
	// routing predicates act on them instead.
	ToFlightBookingAssistant Name = "ToFlightBookingAssistant"
	ToBookCarRental          Name = "ToBookCarRental"
	ToHotelBookingAssistant  Name = "ToHotelBookingAssistant"
	ToBookExcursion          Name = "ToBookExcursion"
	CompleteOrEscalate       Name = "CompleteOrEscalate"
)

// TransferTools are the control tools that hand the dialog to a specialist.
var TransferTools = []Name{ToFlightBookingAssistant, ToBookCarRental, ToHotelBookingAssistant, ToBookExcursion}

// IsControl reports whether n is a routing-only tool.
func IsControl(n Name) bool {
	switch n {
	case ToFlightBookingAssistant, ToBookCarRental, ToHotelBookingAssistant, ToBookExcursion, CompleteOrEscalate:
		return true
	}
	return false
}

var (
	// ErrUnknownTool is returned for names outside the registry.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrNoPassenger is returned when a passenger-scoped tool runs without a
	// signed-in passenger.
	ErrNoPassenger = errors.New("no passenger id configured")
)

// ExecutionError wraps any failure raised while running a tool.
type ExecutionError struct {
	Tool Name
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Handler runs a tool. The returned text becomes the tool message content.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Definition describes a tool to the model and binds it to a handler.
// Control tools carry no handler.
type Definition struct {
	Name        Name
	Description string
	Parameters  map[string]any
	Handler     Handler
}

type passengerKey struct{}

// WithPassengerID returns a context carrying the signed-in passenger.
func WithPassengerID(ctx context.Context, passengerID string) context.Context {
	return context.WithValue(ctx, passengerKey{}, passengerID)
}

// PassengerID returns the passenger carried by ctx or ErrNoPassenger.
func PassengerID(ctx context.Context) (string, error) {
	id, _ := ctx.Value(passengerKey{}).(string)
	if id == "" {
		return "", ErrNoPassenger
	}
	return id, nil
}
