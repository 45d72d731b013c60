package tools

import (
	"context"
	"encoding/json"
	"errors"
)

func lookupPolicyTool(policies PolicyLookup) Definition {
	return Definition{
		Name:        LookupPolicy,
		Description: "Consult the company policies to check whether certain options are permitted. Use this before making any flight changes or performing other 'write' events.",
		Parameters: object(map[string]any{
			"query": str("What to look up in the policy documents"),
		}, "query"),
		Handler: func(_ context.Context, raw json.RawMessage) (string, error) {
			var args struct {
				Query string `json:"query"`
			}
			if err := decodeArgs(raw, &args); err != nil {
				return "", err
			}
			if args.Query == "" {
				return "", errors.New("query is required")
			}
			return policies.Lookup(args.Query), nil
		},
	}
}

func controlTools() []Definition {
	request := str("Any additional information or requests from the user regarding the task")
	return []Definition{
		{
			Name:        ToFlightBookingAssistant,
			Description: "Transfers work to a specialized assistant to handle flight updates and cancellations.",
			Parameters:  object(map[string]any{"request": request}, "request"),
		},
		{
			Name:        ToBookCarRental,
			Description: "Transfers work to a specialized assistant to handle car rental bookings.",
			Parameters: object(map[string]any{
				"location":   str("The location where the user wants to rent a car"),
				"start_date": str("The start date of the car rental"),
				"end_date":   str("The end date of the car rental"),
				"request":    request,
			}, "location", "start_date", "end_date", "request"),
		},
		{
			Name:        ToHotelBookingAssistant,
			Description: "Transfer work to a specialized assistant to handle hotel bookings.",
			Parameters: object(map[string]any{
				"location":      str("The location where the user wants to book a hotel"),
				"checkin_date":  str("The check-in date for the hotel"),
				"checkout_date": str("The check-out date for the hotel"),
				"request":       request,
			}, "location", "checkin_date", "checkout_date", "request"),
		},
		{
			Name:        ToBookExcursion,
			Description: "Transfers work to a specialized assistant to handle trip recommendation and other excursion bookings.",
			Parameters: object(map[string]any{
				"location": str("The location where the user wants to book a recommended trip"),
				"request":  request,
			}, "location", "request"),
		},
		{
			Name:        CompleteOrEscalate,
			Description: "A tool to mark the current task as completed and/or to escalate control of the dialog to the main assistant, who can re-route the dialog based on the user's needs.",
			Parameters: object(map[string]any{
				"cancel": boolean("Whether the current task should be cancelled"),
				"reason": str("Why the task is complete or escalated"),
			}, "reason"),
		},
	}
}
