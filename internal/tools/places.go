package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/travel/internal/domain"
)

type placeArgs struct {
	Location string `json:"location"`
	Name     string `json:"name"`
}

func (a placeArgs) query() domain.PlaceQuery {
	return domain.PlaceQuery{Location: a.Location, Name: a.Name}
}

// bookable binds the shared book/update/cancel shape of cars, hotels and
// excursions to one table.
type bookable struct {
	label   string
	idField string
	setBook func(ctx context.Context, id int64, booked bool) (bool, error)
}

func (b bookable) idArgs() map[string]any {
	return object(map[string]any{b.idField: integer("ID of the " + strings.ToLower(b.label))}, b.idField)
}

func (b bookable) readID(raw json.RawMessage) (int64, error) {
	var args map[string]json.RawMessage
	if err := decodeArgs(raw, &args); err != nil {
		return 0, err
	}
	v, ok := args[b.idField]
	if !ok {
		return 0, fmt.Errorf("missing required argument %s", b.idField)
	}
	var id flexInt
	if err := json.Unmarshal(v, &id); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", b.idField, err)
	}
	return int64(id), nil
}

func (b bookable) notFound(id int64) string {
	return fmt.Sprintf("No %s found with ID %d.", strings.ToLower(b.label), id)
}

func (b bookable) toggle(verb string, booked bool) Handler {
	return func(ctx context.Context, raw json.RawMessage) (string, error) {
		id, err := b.readID(raw)
		if err != nil {
			return "", err
		}
		ok, err := b.setBook(ctx, id, booked)
		if err != nil {
			return "", err
		}
		if !ok {
			return b.notFound(id), nil
		}
		return fmt.Sprintf("%s %d successfully %s.", b.label, id, verb), nil
	}
}

func (b bookable) updated(id int64, ok bool) string {
	if !ok {
		return b.notFound(id)
	}
	return fmt.Sprintf("%s %d successfully updated.", b.label, id)
}

func carRentalTools(store Store) []Definition {
	b := bookable{label: "Car rental", idField: "rental_id", setBook: store.SetCarRentalBooked}
	return []Definition{
		{
			Name:        SearchCarRentals,
			Description: "Search for car rentals based on location, name, price tier, start date, and end date.",
			Parameters: object(map[string]any{
				"location":   str("Location of the car rental"),
				"name":       str("Name of the car rental company"),
				"price_tier": str("Price tier of the car rental"),
				"start_date": str("Start date of the car rental"),
				"end_date":   str("End date of the car rental"),
			}),
			Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args placeArgs
				if err := decodeArgs(raw, &args); err != nil {
					return "", err
				}
				cars, err := store.SearchCarRentals(ctx, args.query())
				if err != nil {
					return "", err
				}
				if cars == nil {
					cars = []domain.CarRental{}
				}
				return toJSON(cars)
			},
		},
		{Name: BookCarRental, Description: "Book a car rental by its ID.", Parameters: b.idArgs(), Handler: b.toggle("booked", true)},
		{
			Name:        UpdateCarRental,
			Description: "Update a car rental's start and end dates by its ID.",
			Parameters: object(map[string]any{
				"rental_id":  integer("ID of the car rental"),
				"start_date": str("New start date"),
				"end_date":   str("New end date"),
			}, "rental_id"),
			Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					RentalID  flexInt `json:"rental_id"`
					StartDate string  `json:"start_date"`
					EndDate   string  `json:"end_date"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return "", err
				}
				start, err := parseDate(args.StartDate)
				if err != nil {
					return "", err
				}
				end, err := parseDate(args.EndDate)
				if err != nil {
					return "", err
				}
				ok, err := store.UpdateCarRentalDates(ctx, int64(args.RentalID), start, end)
				if err != nil {
					return "", err
				}
				return b.updated(int64(args.RentalID), ok), nil
			},
		},
		{Name: CancelCarRental, Description: "Cancel a car rental by its ID.", Parameters: b.idArgs(), Handler: b.toggle("cancelled", false)},
	}
}

func hotelTools(store Store) []Definition {
	b := bookable{label: "Hotel", idField: "hotel_id", setBook: store.SetHotelBooked}
	return []Definition{
		{
			Name:        SearchHotels,
			Description: "Search for hotels based on location, name, price tier, check-in date, and check-out date.",
			Parameters: object(map[string]any{
				"location":      str("Location of the hotel"),
				"name":          str("Name of the hotel"),
				"price_tier":    str("Price tier of the hotel, e.g. Midscale, Upscale, Luxury"),
				"checkin_date":  str("Check-in date"),
				"checkout_date": str("Check-out date"),
			}),
			Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args placeArgs
				if err := decodeArgs(raw, &args); err != nil {
					return "", err
				}
				hotels, err := store.SearchHotels(ctx, args.query())
				if err != nil {
					return "", err
				}
				if hotels == nil {
					hotels = []domain.Hotel{}
				}
				return toJSON(hotels)
			},
		},
		{Name: BookHotel, Description: "Book a hotel by its ID.", Parameters: b.idArgs(), Handler: b.toggle("booked", true)},
		{
			Name:        UpdateHotel,
			Description: "Update a hotel's check-in and check-out dates by its ID.",
			Parameters: object(map[string]any{
				"hotel_id":      integer("ID of the hotel"),
				"checkin_date":  str("New check-in date"),
				"checkout_date": str("New check-out date"),
			}, "hotel_id"),
			Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					HotelID      flexInt `json:"hotel_id"`
					CheckinDate  string  `json:"checkin_date"`
					CheckoutDate string  `json:"checkout_date"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return "", err
				}
				checkin, err := parseDate(args.CheckinDate)
				if err != nil {
					return "", err
				}
				checkout, err := parseDate(args.CheckoutDate)
				if err != nil {
					return "", err
				}
				ok, err := store.UpdateHotelDates(ctx, int64(args.HotelID), checkin, checkout)
				if err != nil {
					return "", err
				}
				return b.updated(int64(args.HotelID), ok), nil
			},
		},
		{Name: CancelHotel, Description: "Cancel a hotel by its ID.", Parameters: b.idArgs(), Handler: b.toggle("cancelled", false)},
	}
}

func excursionTools(store Store) []Definition {
	b := bookable{label: "Trip recommendation", idField: "recommendation_id", setBook: store.SetTripBooked}
	return []Definition{
		{
			Name:        SearchTripRecommendations,
			Description: "Search for trip recommendations based on location, name, and keywords.",
			Parameters: object(map[string]any{
				"location": str("Location of the trip recommendation"),
				"name":     str("Name of the trip recommendation"),
				"keywords": str("Comma-separated keywords associated with the trip"),
			}),
			Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					placeArgs
					Keywords string `json:"keywords"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return "", err
				}
				q := args.query()
				if args.Keywords != "" {
					q.Keywords = strings.Split(args.Keywords, ",")
				}
				trips, err := store.SearchTripRecommendations(ctx, q)
				if err != nil {
					return "", err
				}
				if trips == nil {
					trips = []domain.TripRecommendation{}
				}
				return toJSON(trips)
			},
		},
		{Name: BookExcursion, Description: "Book an excursion by its recommendation ID.", Parameters: b.idArgs(), Handler: b.toggle("booked", true)},
		{
			Name:        UpdateExcursion,
			Description: "Update a trip recommendation's details by its ID.",
			Parameters: object(map[string]any{
				"recommendation_id": integer("ID of the trip recommendation"),
				"details":           str("New details of the trip"),
			}, "recommendation_id", "details"),
			Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					RecommendationID flexInt `json:"recommendation_id"`
					Details          string  `json:"details"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return "", err
				}
				ok, err := store.UpdateTripDetails(ctx, int64(args.RecommendationID), args.Details)
				if err != nil {
					return "", err
				}
				return b.updated(int64(args.RecommendationID), ok), nil
			},
		},
		{Name: CancelExcursion, Description: "Cancel a trip recommendation by its ID.", Parameters: b.idArgs(), Handler: b.toggle("cancelled", false)},
	}
}
