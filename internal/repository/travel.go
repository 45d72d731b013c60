package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

const flightColumns = `flight_id, flight_no, scheduled_departure, scheduled_arrival, departure_airport, arrival_airport, status, aircraft_code, actual_departure, actual_arrival`

// ListUserFlights returns every flight leg booked on the passenger's tickets.
func (s *SQLiteStore) ListUserFlights(ctx context.Context, passengerID string) ([]domain.UserFlight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.ticket_no, t.book_ref, f.flight_id, f.flight_no, f.departure_airport, f.arrival_airport,
		       f.scheduled_departure, f.scheduled_arrival, bp.seat_no, tf.fare_conditions
		FROM tickets t
		JOIN ticket_flights tf ON t.ticket_no = tf.ticket_no
		JOIN flights f ON tf.flight_id = f.flight_id
		LEFT JOIN boarding_passes bp ON bp.ticket_no = t.ticket_no AND bp.flight_id = f.flight_id
		WHERE t.passenger_id = ?
		ORDER BY f.scheduled_departure ASC`, passengerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserFlight
	for rows.Next() {
		var uf domain.UserFlight
		var seat sql.NullString
		if err := rows.Scan(&uf.TicketNo, &uf.BookRef, &uf.FlightID, &uf.FlightNo, &uf.DepartureAirport, &uf.ArrivalAirport,
			&uf.ScheduledDeparture, &uf.ScheduledArrival, &seat, &uf.FareConditions); err != nil {
			return nil, err
		}
		uf.SeatNo = seat.String
		out = append(out, uf)
	}
	return out, rows.Err()
}

// SearchFlights returns flights matching q ordered by departure.
func (s *SQLiteStore) SearchFlights(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights WHERE 1 = 1`
	var args []interface{}

	if q.DepartureAirport != "" {
		query += ` AND departure_airport = ?`
		args = append(args, strings.ToUpper(q.DepartureAirport))
	}
	if q.ArrivalAirport != "" {
		query += ` AND arrival_airport = ?`
		args = append(args, strings.ToUpper(q.ArrivalAirport))
	}
	if q.StartTime != nil {
		query += ` AND scheduled_departure >= ?`
		args = append(args, q.StartTime.UTC())
	}
	if q.EndTime != nil {
		query += ` AND scheduled_departure <= ?`
		args = append(args, q.EndTime.UTC())
	}
	query += ` ORDER BY scheduled_departure ASC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Flight
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// GetFlight retrieves a flight by ID.
func (s *SQLiteStore) GetFlight(ctx context.Context, flightID int64) (*domain.Flight, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+flightColumns+` FROM flights WHERE flight_id = ?`, flightID)
	f, err := scanFlight(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFlight(sc scanner) (*domain.Flight, error) {
	var f domain.Flight
	var actualDep, actualArr sql.NullTime
	if err := sc.Scan(&f.FlightID, &f.FlightNo, &f.ScheduledDeparture, &f.ScheduledArrival, &f.DepartureAirport,
		&f.ArrivalAirport, &f.Status, &f.AircraftCode, &actualDep, &actualArr); err != nil {
		return nil, err
	}
	if actualDep.Valid {
		f.ActualDeparture = &actualDep.Time
	}
	if actualArr.Valid {
		f.ActualArrival = &actualArr.Time
	}
	return &f, nil
}

// GetTicketFlightID returns the flight a ticket is booked on, or ok=false.
func (s *SQLiteStore) GetTicketFlightID(ctx context.Context, ticketNo string) (flightID int64, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT flight_id FROM ticket_flights WHERE ticket_no = ? LIMIT 1`, ticketNo).Scan(&flightID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return flightID, true, nil
}

// TicketOwnedBy reports whether the ticket belongs to the passenger.
func (s *SQLiteStore) TicketOwnedBy(ctx context.Context, ticketNo, passengerID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE ticket_no = ? AND passenger_id = ?`, ticketNo, passengerID).Scan(&n)
	return n > 0, err
}

// UpdateTicketFlight moves a ticket to another flight.
func (s *SQLiteStore) UpdateTicketFlight(ctx context.Context, ticketNo string, newFlightID int64) (bool, error) {
	return s.execAffected(ctx, `UPDATE ticket_flights SET flight_id = ? WHERE ticket_no = ?`, newFlightID, ticketNo)
}

// DeleteTicketFlights cancels every leg of a ticket.
func (s *SQLiteStore) DeleteTicketFlights(ctx context.Context, ticketNo string) (bool, error) {
	return s.execAffected(ctx, `DELETE FROM ticket_flights WHERE ticket_no = ?`, ticketNo)
}

// SearchHotels returns hotels whose location and name contain the filters.
func (s *SQLiteStore) SearchHotels(ctx context.Context, q domain.PlaceQuery) ([]domain.Hotel, error) {
	query, args := placeQuery(`SELECT id, name, location, price_tier, checkin_date, checkout_date, booked FROM hotels WHERE 1 = 1`, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Hotel
	for rows.Next() {
		var h domain.Hotel
		if err := rows.Scan(&h.ID, &h.Name, &h.Location, &h.PriceTier, &h.CheckinDate, &h.CheckoutDate, &h.Booked); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetHotel retrieves a hotel by ID.
func (s *SQLiteStore) GetHotel(ctx context.Context, id int64) (*domain.Hotel, error) {
	var h domain.Hotel
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, location, price_tier, checkin_date, checkout_date, booked FROM hotels WHERE id = ?`, id).
		Scan(&h.ID, &h.Name, &h.Location, &h.PriceTier, &h.CheckinDate, &h.CheckoutDate, &h.Booked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// SetHotelBooked books or releases a hotel.
func (s *SQLiteStore) SetHotelBooked(ctx context.Context, id int64, booked bool) (bool, error) {
	return s.execAffected(ctx, `UPDATE hotels SET booked = ? WHERE id = ?`, boolInt(booked), id)
}

// UpdateHotelDates changes the non-empty dates of a hotel booking.
func (s *SQLiteStore) UpdateHotelDates(ctx context.Context, id int64, checkin, checkout string) (bool, error) {
	return s.updateDates(ctx, "hotels", "checkin_date", "checkout_date", id, checkin, checkout)
}

// SearchCarRentals returns rentals whose location and name contain the filters.
func (s *SQLiteStore) SearchCarRentals(ctx context.Context, q domain.PlaceQuery) ([]domain.CarRental, error) {
	query, args := placeQuery(`SELECT id, name, location, price_tier, start_date, end_date, booked FROM car_rentals WHERE 1 = 1`, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CarRental
	for rows.Next() {
		var c domain.CarRental
		if err := rows.Scan(&c.ID, &c.Name, &c.Location, &c.PriceTier, &c.StartDate, &c.EndDate, &c.Booked); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCarRental retrieves a car rental by ID.
func (s *SQLiteStore) GetCarRental(ctx context.Context, id int64) (*domain.CarRental, error) {
	var c domain.CarRental
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, location, price_tier, start_date, end_date, booked FROM car_rentals WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Location, &c.PriceTier, &c.StartDate, &c.EndDate, &c.Booked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetCarRentalBooked books or releases a car rental.
func (s *SQLiteStore) SetCarRentalBooked(ctx context.Context, id int64, booked bool) (bool, error) {
	return s.execAffected(ctx, `UPDATE car_rentals SET booked = ? WHERE id = ?`, boolInt(booked), id)
}

// UpdateCarRentalDates changes the non-empty dates of a car rental.
func (s *SQLiteStore) UpdateCarRentalDates(ctx context.Context, id int64, start, end string) (bool, error) {
	return s.updateDates(ctx, "car_rentals", "start_date", "end_date", id, start, end)
}

// SearchTripRecommendations matches location and name, and any of the keywords.
func (s *SQLiteStore) SearchTripRecommendations(ctx context.Context, q domain.PlaceQuery) ([]domain.TripRecommendation, error) {
	query, args := placeQuery(`SELECT id, name, location, keywords, details, booked FROM trip_recommendations WHERE 1 = 1`, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TripRecommendation
	for rows.Next() {
		var tr domain.TripRecommendation
		if err := rows.Scan(&tr.ID, &tr.Name, &tr.Location, &tr.Keywords, &tr.Details, &tr.Booked); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// GetTripRecommendation retrieves an excursion by ID.
func (s *SQLiteStore) GetTripRecommendation(ctx context.Context, id int64) (*domain.TripRecommendation, error) {
	var tr domain.TripRecommendation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, location, keywords, details, booked FROM trip_recommendations WHERE id = ?`, id).
		Scan(&tr.ID, &tr.Name, &tr.Location, &tr.Keywords, &tr.Details, &tr.Booked)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// SetTripBooked books or releases an excursion.
func (s *SQLiteStore) SetTripBooked(ctx context.Context, id int64, booked bool) (bool, error) {
	return s.execAffected(ctx, `UPDATE trip_recommendations SET booked = ? WHERE id = ?`, boolInt(booked), id)
}

// UpdateTripDetails replaces the details of an excursion.
func (s *SQLiteStore) UpdateTripDetails(ctx context.Context, id int64, details string) (bool, error) {
	return s.execAffected(ctx, `UPDATE trip_recommendations SET details = ? WHERE id = ?`, details, id)
}

func placeQuery(base string, q domain.PlaceQuery) (string, []interface{}) {
	query := base
	var args []interface{}
	if q.Location != "" {
		query += ` AND location LIKE ?`
		args = append(args, "%"+q.Location+"%")
	}
	if q.Name != "" {
		query += ` AND name LIKE ?`
		args = append(args, "%"+q.Name+"%")
	}
	var kw []string
	for _, k := range q.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			kw = append(kw, "keywords LIKE ?")
			args = append(args, "%"+k+"%")
		}
	}
	if len(kw) > 0 {
		query += ` AND (` + strings.Join(kw, " OR ") + `)`
	}
	return query + ` ORDER BY id ASC`, args
}

func (s *SQLiteStore) updateDates(ctx context.Context, table, startCol, endCol string, id int64, start, end string) (bool, error) {
	var sets []string
	var args []interface{}
	if start != "" {
		sets = append(sets, startCol+" = ?")
		args = append(args, start)
	}
	if end != "" {
		sets = append(sets, endCol+" = ?")
		args = append(args, end)
	}
	if len(sets) == 0 {
		var n int
		err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = ?`, table), id).Scan(&n)
		return n > 0, err
	}
	args = append(args, id)
	return s.execAffected(ctx, fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, table, strings.Join(sets, ", ")), args...)
}

func (s *SQLiteStore) execAffected(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
