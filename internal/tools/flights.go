package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

// minRescheduleLead is how far ahead a replacement flight must depart.
const minRescheduleLead = 3 * time.Hour

const defaultFlightLimit = 20

var now = time.Now

func flightTools(store Store) []Definition {
	return []Definition{
		{
			Name:        FetchUserFlightInformation,
			Description: "Fetch all tickets for the user along with corresponding flight information and seat assignments.",
			Parameters:  object(map[string]any{}),
			Handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
				passengerID, err := PassengerID(ctx)
				if err != nil {
					return "", err
				}
				flights, err := store.ListUserFlights(ctx, passengerID)
				if err != nil {
					return "", err
				}
				if flights == nil {
					flights = []domain.UserFlight{}
				}
				return toJSON(flights)
			},
		},
		{
			Name:        SearchFlights,
			Description: "Search for flights based on departure airport, arrival airport, and departure time range.",
			Parameters: object(map[string]any{
				"departure_airport": str("IATA code of the departure airport"),
				"arrival_airport":   str("IATA code of the arrival airport"),
				"start_time":        str("Earliest departure, ISO 8601"),
				"end_time":          str("Latest departure, ISO 8601"),
				"limit":             integer("Maximum number of flights, default 20"),
			}),
			Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					DepartureAirport string   `json:"departure_airport"`
					ArrivalAirport   string   `json:"arrival_airport"`
					StartTime        string   `json:"start_time"`
					EndTime          string   `json:"end_time"`
					Limit            *flexInt `json:"limit"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return "", err
				}
				q := domain.FlightQuery{
					DepartureAirport: args.DepartureAirport,
					ArrivalAirport:   args.ArrivalAirport,
					Limit:            defaultFlightLimit,
				}
				if args.Limit != nil && *args.Limit > 0 {
					q.Limit = int(*args.Limit)
				}
				var err error
				if q.StartTime, err = parseTime(args.StartTime); err != nil {
					return "", err
				}
				if q.EndTime, err = parseTime(args.EndTime); err != nil {
					return "", err
				}
				flights, err := store.SearchFlights(ctx, q)
				if err != nil {
					return "", err
				}
				if flights == nil {
					flights = []domain.Flight{}
				}
				return toJSON(flights)
			},
		},
		{
			Name:        UpdateTicketToNewFlight,
			Description: "Update the user's ticket to a new valid flight.",
			Parameters: object(map[string]any{
				"ticket_no":     str("Ticket number to update"),
				"new_flight_id": integer("ID of the replacement flight"),
			}, "ticket_no", "new_flight_id"),
			Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					TicketNo    string  `json:"ticket_no"`
					NewFlightID flexInt `json:"new_flight_id"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return "", err
				}
				passengerID, err := PassengerID(ctx)
				if err != nil {
					return "", err
				}

				flight, err := store.GetFlight(ctx, int64(args.NewFlightID))
				if err != nil {
					return "", err
				}
				if flight == nil {
					return "Invalid new flight ID provided.", nil
				}
				if flight.ScheduledDeparture.Sub(now()) < minRescheduleLead {
					return fmt.Sprintf("Not permitted to reschedule to a flight that is less than 3 hours from the current time. Selected flight is at %s.",
						flight.ScheduledDeparture.Format(time.RFC3339)), nil
				}

				if msg, err := checkTicket(ctx, store, args.TicketNo, passengerID); err != nil || msg != "" {
					return msg, err
				}
				if _, err := store.UpdateTicketFlight(ctx, args.TicketNo, flight.FlightID); err != nil {
					return "", err
				}
				return "Ticket successfully updated to new flight.", nil
			},
		},
		{
			Name:        CancelTicket,
			Description: "Cancel the user's ticket and remove it from the database.",
			Parameters: object(map[string]any{
				"ticket_no": str("Ticket number to cancel"),
			}, "ticket_no"),
			Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					TicketNo string `json:"ticket_no"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return "", err
				}
				passengerID, err := PassengerID(ctx)
				if err != nil {
					return "", err
				}
				if msg, err := checkTicket(ctx, store, args.TicketNo, passengerID); err != nil || msg != "" {
					return msg, err
				}
				if _, err := store.DeleteTicketFlights(ctx, args.TicketNo); err != nil {
					return "", err
				}
				return "Ticket successfully cancelled.", nil
			},
		},
	}
}

// checkTicket returns a refusal message when the ticket does not exist or
// belongs to someone else.
func checkTicket(ctx context.Context, store Store, ticketNo, passengerID string) (string, error) {
	_, ok, err := store.GetTicketFlightID(ctx, ticketNo)
	if err != nil {
		return "", err
	}
	if !ok {
		return "No existing ticket found for the given ticket number.", nil
	}
	owned, err := store.TicketOwnedBy(ctx, ticketNo, passengerID)
	if err != nil {
		return "", err
	}
	if !owned {
		return fmt.Sprintf("Current signed-in passenger with ID %s not the owner of ticket %s", passengerID, ticketNo), nil
	}
	return "", nil
}
