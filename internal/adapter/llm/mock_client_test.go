package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const systemWithFlights = "You are helpful.\n<Flights>\n" +
	`[{"ticket_no":"7240005432906569","flight_no":"LX0112","departure_airport":"CDG","arrival_airport":"BSL","scheduled_departure":"2030-01-01T09:00:00Z","seat_no":"18E"}]` +
	"\n</Flights>"

func toolsNamed(names ...string) []Tool {
	out := make([]Tool, len(names))
	for i, n := range names {
		out[i] = Tool{Type: "function", Function: ToolFunction{Name: n}}
	}
	return out
}

func ask(t *testing.T, tools []Tool, msgs ...ChatMessage) ChatMessage {
	t.Helper()
	req := &ChatCompletionRequest{
		Model:    "mock",
		Messages: append([]ChatMessage{{Role: "system", Content: systemWithFlights}}, msgs...),
		Tools:    tools,
	}
	resp, err := NewMockClient().CreateChatCompletion(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	return *resp.Choices[0].Message
}

func TestMockPrimaryRouting(t *testing.T) {
	primary := toolsNamed("search_flights", "lookup_policy", "fetch_user_flight_information",
		"ToFlightBookingAssistant", "ToBookCarRental", "ToHotelBookingAssistant", "ToBookExcursion")

	tests := []struct {
		text string
		tool string
	}{
		{"Can I change my flight?", "ToFlightBookingAssistant"},
		{"What car rental options do I have in Basel?", "ToBookCarRental"},
		{"Could you book a hotel?", "ToHotelBookingAssistant"},
		{"Can you suggest a weekend getaway near me?", "ToBookExcursion"},
		{"What is the baggage policy?", "lookup_policy"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			msg := ask(t, primary, ChatMessage{Role: "user", Content: tt.text})
			require.Len(t, msg.ToolCalls, 1)
			assert.Equal(t, tt.tool, msg.ToolCalls[0].Function.Name)
		})
	}

	msg := ask(t, primary, ChatMessage{Role: "user", Content: "At what time is my flight?"})
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "fetch_user_flight_information", msg.ToolCalls[0].Function.Name)

	msg = ask(t, primary,
		ChatMessage{Role: "user", Content: "At what time is my flight?"},
		ChatMessage{Role: "tool", ToolCallID: "c1", Content: `[{"ticket_no":"7240005432906569","flight_no":"LX0112","departure_airport":"CDG","arrival_airport":"BSL","scheduled_departure":"2030-01-01T09:00:00Z","seat_no":"18E"}]`})
	assert.Empty(t, msg.ToolCalls)
	assert.Contains(t, msg.Content, "LX0112")
	assert.Contains(t, msg.Content, "18E")
}

func TestMockFlightSpecialist(t *testing.T) {
	flight := toolsNamed("search_flights", "update_ticket_to_new_flight", "cancel_ticket", "CompleteOrEscalate")
	handoff := ChatMessage{Role: "tool", ToolCallID: "c0", Content: "The assistant is now the Flight Updates & Booking Assistant."}

	msg := ask(t, flight, ChatMessage{Role: "user", Content: "Can I change my flight?"}, handoff)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "search_flights", msg.ToolCalls[0].Function.Name)

	msg = ask(t, flight, ChatMessage{Role: "user", Content: "Move me to flight 19251 please"})
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "update_ticket_to_new_flight", msg.ToolCalls[0].Function.Name)
	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.ToolCalls[0].Function.Arguments), &args))
	assert.Equal(t, "7240005432906569", args["ticket_no"])
	assert.Equal(t, float64(19251), args["new_flight_id"])

	msg = ask(t, flight, ChatMessage{Role: "user", Content: "Actually I need a hotel"})
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "CompleteOrEscalate", msg.ToolCalls[0].Function.Name)
}

func TestMockBookingSpecialist(t *testing.T) {
	car := toolsNamed("search_car_rentals", "book_car_rental", "update_car_rental", "cancel_car_rental", "CompleteOrEscalate")

	msg := ask(t, car, ChatMessage{Role: "user", Content: "What car rental options do I have in Zurich?"})
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "search_car_rentals", msg.ToolCalls[0].Function.Name)
	assert.Contains(t, msg.ToolCalls[0].Function.Arguments, "Zurich")

	msg = ask(t, car, ChatMessage{Role: "user", Content: "Book rental 3"})
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "book_car_rental", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"rental_id":3}`, msg.ToolCalls[0].Function.Arguments)

	msg = ask(t, car, ChatMessage{Role: "user", Content: "Update rental 3 to end on 2030-02-01"})
	require.Len(t, msg.ToolCalls, 1)
	assert.JSONEq(t, `{"rental_id":3,"end_date":"2030-02-01"}`, msg.ToolCalls[0].Function.Arguments)

	msg = ask(t, car, ChatMessage{Role: "user", Content: "thanks, that's all"})
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "CompleteOrEscalate", msg.ToolCalls[0].Function.Name)
}

func TestMockSummarizesToolResults(t *testing.T) {
	car := toolsNamed("search_car_rentals", "book_car_rental", "CompleteOrEscalate")

	msg := ask(t, car, ChatMessage{Role: "tool", ToolCallID: "c1", Content: "API call denied by user. Reasoning: 'no'."})
	assert.Empty(t, msg.ToolCalls)
	assert.Contains(t, msg.Content, "did not go ahead")

	msg = ask(t, car, ChatMessage{Role: "tool", ToolCallID: "c1", Content: "Car rental 1 successfully booked."})
	assert.Equal(t, "Car rental 1 successfully booked.", msg.Content)

	msg = ask(t, nil, ChatMessage{Role: "user", Content: "hi"})
	assert.Contains(t, msg.Content, "[MOCK]")
}
