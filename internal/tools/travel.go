package tools

import (
	"context"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

// Store is the travel data the tools read and mutate.
type Store interface {
	ListUserFlights(ctx context.Context, passengerID string) ([]domain.UserFlight, error)
	SearchFlights(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error)
	GetFlight(ctx context.Context, flightID int64) (*domain.Flight, error)
	GetTicketFlightID(ctx context.Context, ticketNo string) (int64, bool, error)
	TicketOwnedBy(ctx context.Context, ticketNo, passengerID string) (bool, error)
	UpdateTicketFlight(ctx context.Context, ticketNo string, newFlightID int64) (bool, error)
	DeleteTicketFlights(ctx context.Context, ticketNo string) (bool, error)

	SearchCarRentals(ctx context.Context, q domain.PlaceQuery) ([]domain.CarRental, error)
	SetCarRentalBooked(ctx context.Context, id int64, booked bool) (bool, error)
	UpdateCarRentalDates(ctx context.Context, id int64, start, end string) (bool, error)

	SearchHotels(ctx context.Context, q domain.PlaceQuery) ([]domain.Hotel, error)
	SetHotelBooked(ctx context.Context, id int64, booked bool) (bool, error)
	UpdateHotelDates(ctx context.Context, id int64, checkin, checkout string) (bool, error)

	SearchTripRecommendations(ctx context.Context, q domain.PlaceQuery) ([]domain.TripRecommendation, error)
	SetTripBooked(ctx context.Context, id int64, booked bool) (bool, error)
	UpdateTripDetails(ctx context.Context, id int64, details string) (bool, error)
}

// PolicyLookup answers questions about company policy.
type PolicyLookup interface {
	Lookup(query string) string
}

// NewTravelRegistry registers every travel and control tool.
func NewTravelRegistry(store Store, policies PolicyLookup) *Registry {
	r := NewRegistry()
	for _, def := range flightTools(store) {
		r.MustRegister(def)
	}
	for _, def := range carRentalTools(store) {
		r.MustRegister(def)
	}
	for _, def := range hotelTools(store) {
		r.MustRegister(def)
	}
	for _, def := range excursionTools(store) {
		r.MustRegister(def)
	}
	r.MustRegister(lookupPolicyTool(policies))
	for _, def := range controlTools() {
		r.MustRegister(def)
	}
	return r
}
