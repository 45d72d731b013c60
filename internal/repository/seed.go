package repository

import (
	"fmt"
	"time"
)

// Seed identifiers referenced by tests and the demo client.
const (
	SeedPassengerID = "3442 587242"
	SeedTicketNo    = "7240005432906569"
	SeedFlightID    = 19250
)

type seedFlight struct {
	id       int64
	no       string
	from, to string
	departIn time.Duration
	duration time.Duration
	aircraft string
}

type seedStmt struct {
	query string
	args  []any
}

// seed fills an empty travel database. Times are relative to now so that
// booked flights always lie in the future.
func (s *SQLiteStore) seed() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM flights`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC().Truncate(time.Hour)
	day := 24 * time.Hour

	flights := []seedFlight{
		{SeedFlightID, "LX0112", "CDG", "BSL", 2*day + 9*time.Hour, 75 * time.Minute, "SU9"},
		{19251, "LX0114", "CDG", "BSL", 3*day + 9*time.Hour, 75 * time.Minute, "SU9"},
		{19252, "LX0116", "CDG", "BSL", 3*day + 17*time.Hour, 75 * time.Minute, "321"},
		{19253, "LX0118", "CDG", "BSL", 1 * time.Hour, 75 * time.Minute, "SU9"},
		{19254, "LX0120", "CDG", "BSL", 5*day + 7*time.Hour, 75 * time.Minute, "CR2"},
		{19260, "LX0113", "BSL", "CDG", 6*day + 11*time.Hour, 80 * time.Minute, "SU9"},
		{19261, "LX0287", "ZRH", "BSL", 2*day + 14*time.Hour, 45 * time.Minute, "CR2"},
		{19262, "LX0640", "CDG", "ZRH", 2*day + 8*time.Hour, 70 * time.Minute, "321"},
	}

	dateIn := func(d time.Duration) string {
		return now.Add(d).Format("2006-01-02")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, f := range flights {
		dep := now.Add(f.departIn)
		if _, err := tx.Exec(
			`INSERT INTO flights (flight_id, flight_no, scheduled_departure, scheduled_arrival, departure_airport, arrival_airport, status, aircraft_code) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			f.id, f.no, dep, dep.Add(f.duration), f.from, f.to, "Scheduled", f.aircraft); err != nil {
			return fmt.Errorf("seed flight %d: %w", f.id, err)
		}
	}

	stmts := []seedStmt{
		{`INSERT INTO tickets (ticket_no, book_ref, passenger_id) VALUES (?, ?, ?)`, []any{SeedTicketNo, "C46E9F", SeedPassengerID}},
		{`INSERT INTO ticket_flights (ticket_no, flight_id, fare_conditions, amount) VALUES (?, ?, ?, ?)`, []any{SeedTicketNo, SeedFlightID, "Economy", 165.0}},
		{`INSERT INTO boarding_passes (ticket_no, flight_id, boarding_no, seat_no) VALUES (?, ?, ?, ?)`, []any{SeedTicketNo, SeedFlightID, 27, "18E"}},
		{`INSERT INTO tickets (ticket_no, book_ref, passenger_id) VALUES (?, ?, ?)`, []any{"7240005432906570", "A1B2C3", "8149 604011"}},
		{`INSERT INTO ticket_flights (ticket_no, flight_id, fare_conditions, amount) VALUES (?, ?, ?, ?)`, []any{"7240005432906570", 19261, "Business", 410.0}},
	}

	hotels := []struct {
		name, location, tier string
	}{
		{"Hilton Basel", "Basel", "Luxury"},
		{"Marriott Zurich", "Zurich", "Upscale"},
		{"Hyatt Regency Basel", "Basel", "Upper Upscale"},
		{"Radisson Blu Lucerne", "Lucerne", "Midscale"},
		{"Best Western Bern", "Bern", "Upper Midscale"},
		{"InterContinental Geneva", "Geneva", "Luxury"},
		{"Sheraton Zurich", "Zurich", "Upper Upscale"},
		{"Holiday Inn Basel", "Basel", "Upper Midscale"},
		{"Courtyard Zurich", "Zurich", "Upscale"},
		{"Novotel Bern", "Bern", "Midscale"},
	}
	for i, h := range hotels {
		stmts = append(stmts, seedStmt{
			`INSERT INTO hotels (id, name, location, price_tier, checkin_date, checkout_date, booked) VALUES (?, ?, ?, ?, ?, ?, 0)`,
			[]any{i + 1, h.name, h.location, h.tier, dateIn(2 * day), dateIn(5 * day)},
		})
	}

	cars := []struct {
		name, location, tier string
	}{
		{"Europcar", "Basel", "Economy"},
		{"Avis", "Basel", "Luxury"},
		{"Hertz", "Zurich", "Midsize"},
		{"Sixt", "Geneva", "SUV"},
		{"Budget", "Lucerne", "Compact"},
		{"Thrifty", "Bern", "Midsize"},
		{"Enterprise", "Basel", "Premium"},
		{"Alamo", "Zurich", "Economy"},
		{"National", "Geneva", "Luxury"},
	}
	for i, c := range cars {
		stmts = append(stmts, seedStmt{
			`INSERT INTO car_rentals (id, name, location, price_tier, start_date, end_date, booked) VALUES (?, ?, ?, ?, ?, ?, 0)`,
			[]any{i + 1, c.name, c.location, c.tier, dateIn(2 * day), dateIn(6 * day)},
		})
	}

	trips := []struct {
		name, location, keywords, details string
	}{
		{"Basel Minster", "Basel", "landmark, history", "Visit the historic Basel Minster, a beautiful Gothic cathedral above the Rhine."},
		{"Kunstmuseum Basel", "Basel", "art, museum", "Explore the extensive art collection of the Kunstmuseum Basel."},
		{"Fondation Beyeler", "Basel", "art, museum, modern", "Modern art in a Renzo Piano building at the edge of Basel."},
		{"Rhine Swim", "Basel", "outdoor, river, summer", "Float down the Rhine with a Wickelfisch bag, a Basel summer tradition."},
		{"Zurich Old Town", "Zurich", "history, architecture", "Explore the charming streets and historic buildings of Zurich's Old Town."},
		{"Lucerne Chapel Bridge", "Lucerne", "landmark, history", "Walk across the iconic Chapel Bridge and admire its historic paintings."},
		{"Bern Old Town", "Bern", "history, architecture", "Discover the UNESCO-listed medieval arcades of Bern."},
		{"Lake Geneva Cruise", "Geneva", "cruise, scenic, lake", "Enjoy a scenic cruise on Lake Geneva with views of the Alps."},
		{"Rhine Falls", "Schaffhausen", "nature, waterfall, day trip", "See Europe's largest waterfall, a short train ride from Basel or Zurich."},
	}
	for i, tr := range trips {
		stmts = append(stmts, seedStmt{
			`INSERT INTO trip_recommendations (id, name, location, keywords, details, booked) VALUES (?, ?, ?, ?, ?, 0)`,
			[]any{i + 1, tr.name, tr.location, tr.keywords, tr.details},
		})
	}

	for _, st := range stmts {
		if _, err := tx.Exec(st.query, st.args...); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return tx.Commit()
}
