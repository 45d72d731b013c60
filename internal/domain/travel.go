package domain

import "time"

// Flight is a scheduled flight.
type Flight struct {
	FlightID           int64      `json:"flight_id"`
	FlightNo           string     `json:"flight_no"`
	ScheduledDeparture time.Time  `json:"scheduled_departure"`
	ScheduledArrival   time.Time  `json:"scheduled_arrival"`
	DepartureAirport   string     `json:"departure_airport"`
	ArrivalAirport     string     `json:"arrival_airport"`
	Status             string     `json:"status"`
	AircraftCode       string     `json:"aircraft_code"`
	ActualDeparture    *time.Time `json:"actual_departure,omitempty"`
	ActualArrival      *time.Time `json:"actual_arrival,omitempty"`
}

// UserFlight is one leg of a passenger's ticket, joined with its flight.
type UserFlight struct {
	TicketNo           string    `json:"ticket_no"`
	BookRef            string    `json:"book_ref"`
	FlightID           int64     `json:"flight_id"`
	FlightNo           string    `json:"flight_no"`
	DepartureAirport   string    `json:"departure_airport"`
	ArrivalAirport     string    `json:"arrival_airport"`
	ScheduledDeparture time.Time `json:"scheduled_departure"`
	ScheduledArrival   time.Time `json:"scheduled_arrival"`
	SeatNo             string    `json:"seat_no,omitempty"`
	FareConditions     string    `json:"fare_conditions"`
}

// FlightQuery filters flight searches. Zero values are ignored.
type FlightQuery struct {
	DepartureAirport string
	ArrivalAirport   string
	StartTime        *time.Time
	EndTime          *time.Time
	Limit            int
}

// Hotel is a bookable hotel.
type Hotel struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	PriceTier    string `json:"price_tier"`
	CheckinDate  string `json:"checkin_date"`
	CheckoutDate string `json:"checkout_date"`
	Booked       bool   `json:"booked"`
}

// CarRental is a bookable rental car offer.
type CarRental struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	PriceTier string `json:"price_tier"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Booked    bool   `json:"booked"`
}

// TripRecommendation is a bookable excursion.
type TripRecommendation struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Keywords string `json:"keywords"`
	Details  string `json:"details"`
	Booked   bool   `json:"booked"`
}

// PlaceQuery filters hotel, car rental and excursion searches by substring.
type PlaceQuery struct {
	Location string
	Name     string
	Keywords []string
}
