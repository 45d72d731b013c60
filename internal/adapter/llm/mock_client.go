package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockClient is a deterministic keyword-driven chat model. It recognises
// which assistant is calling from the declared tools and answers the latest
// user message with the tool call a real model would most likely make.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := m.respond(req)
	finish := "stop"
	if len(msg.ToolCalls) > 0 {
		finish = "tool_calls"
	}

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &msg,
				FinishReason: finish,
			},
		},
		Usage: &Usage{
			PromptTokens:     m.estimateTokens(req),
			CompletionTokens: len(msg.Content) / 4,
			TotalTokens:      m.estimateTokens(req) + len(msg.Content)/4,
		},
	}, nil
}

type mockRole int

const (
	roleUnknown mockRole = iota
	rolePrimary
	roleFlight
	roleCar
	roleHotel
	roleExcursion
)

// bookingTools names the tools of the three bookable specialists.
var bookingTools = map[mockRole]struct{ search, book, update, cancel string }{
	roleCar:       {"search_car_rentals", "book_car_rental", "update_car_rental", "cancel_car_rental"},
	roleHotel:     {"search_hotels", "book_hotel", "update_hotel", "cancel_hotel"},
	roleExcursion: {"search_trip_recommendations", "book_excursion", "update_excursion", "cancel_excursion"},
}

var (
	flightIDPattern = regexp.MustCompile(`\b(\d{5})\b`)
	smallIDPattern  = regexp.MustCompile(`\b(\d{1,3})\b`)
	datePattern     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	flightsBlock    = regexp.MustCompile(`(?s)<Flights>\s*(.*?)\s*</Flights>`)
	knownCities     = []string{"Basel", "Zurich", "Geneva", "Lucerne", "Bern", "Schaffhausen"}
)

func (m *MockClient) respond(req *ChatCompletionRequest) ChatMessage {
	if len(req.Messages) == 0 {
		return assistantText("[MOCK] This is a mock response from the LLM client.")
	}
	role := detectRole(req.Tools)
	last := req.Messages[len(req.Messages)-1]

	if last.Role == "tool" && !isHandoff(last.Content) {
		return summarizeToolResult(last.Content)
	}

	user := strings.ToLower(lastUserMessage(req.Messages))
	flights := userFlights(req.Messages)

	switch role {
	case rolePrimary:
		return m.primary(user)
	case roleFlight:
		if escalates(user, roleFlight) {
			return toolCall("CompleteOrEscalate", map[string]any{"cancel": true, "reason": "User needs help with another task."})
		}
		return m.flight(user, flights)
	case roleCar, roleHotel, roleExcursion:
		if escalates(user, role) {
			return toolCall("CompleteOrEscalate", map[string]any{"cancel": true, "reason": "User needs help with another task."})
		}
		return m.booking(role, user)
	default:
		return assistantText(fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(user, 100)))
	}
}

func (m *MockClient) primary(user string) ChatMessage {
	location := cityIn(user)
	switch domainOf(user) {
	case roleFlight:
		return toolCall("ToFlightBookingAssistant", map[string]any{"request": user})
	case roleCar:
		return toolCall("ToBookCarRental", map[string]any{"location": location, "start_date": "", "end_date": "", "request": user})
	case roleHotel:
		return toolCall("ToHotelBookingAssistant", map[string]any{"location": location, "checkin_date": "", "checkout_date": "", "request": user})
	case roleExcursion:
		return toolCall("ToBookExcursion", map[string]any{"location": location, "request": user})
	}
	switch {
	case containsAny(user, "policy", "allowed", "baggage", "refund", "fee", "check-in"):
		return toolCall("lookup_policy", map[string]any{"query": user})
	case containsAny(user, "flight", "seat", "ticket", "depart"):
		return toolCall("fetch_user_flight_information", map[string]any{})
	}
	return assistantText("Hello! I can help you with your flights, car rentals, hotels and excursions.")
}

func (m *MockClient) flight(user string, flights []mockFlight) ChatMessage {
	var ticket, from, to string
	if len(flights) > 0 {
		ticket, from, to = flights[0].TicketNo, flights[0].DepartureAirport, flights[0].ArrivalAirport
	}
	if ticket == "" {
		return toolCall("fetch_user_flight_information", map[string]any{})
	}
	if strings.Contains(user, "cancel") {
		return toolCall("cancel_ticket", map[string]any{"ticket_no": ticket})
	}
	if id := flightIDPattern.FindStringSubmatch(user); id != nil {
		var n int64
		fmt.Sscan(id[1], &n)
		return toolCall("update_ticket_to_new_flight", map[string]any{"ticket_no": ticket, "new_flight_id": n})
	}
	return toolCall("search_flights", map[string]any{
		"departure_airport": from,
		"arrival_airport":   to,
		"start_time":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (m *MockClient) booking(role mockRole, user string) ChatMessage {
	names := bookingTools[role]
	idField := map[mockRole]string{roleCar: "rental_id", roleHotel: "hotel_id", roleExcursion: "recommendation_id"}[role]

	dates := datePattern.FindAllString(user, 2)
	id := int64(1)
	if match := smallIDPattern.FindStringSubmatch(datePattern.ReplaceAllString(user, "")); match != nil {
		fmt.Sscan(match[1], &id)
	}

	switch {
	case strings.Contains(user, "cancel"):
		return toolCall(names.cancel, map[string]any{idField: id})
	case containsAny(user, "change", "update", "move", "extend"):
		args := map[string]any{idField: id}
		switch role {
		case roleCar:
			setDates(args, dates, "start_date", "end_date")
		case roleHotel:
			setDates(args, dates, "checkin_date", "checkout_date")
		case roleExcursion:
			args["details"] = user
		}
		return toolCall(names.update, args)
	case containsAny(user, "book", "reserve", "take"):
		if smallIDPattern.MatchString(datePattern.ReplaceAllString(user, "")) || containsAny(user, "first", "book it", "that one") {
			return toolCall(names.book, map[string]any{idField: id})
		}
	}
	args := map[string]any{"location": cityIn(user)}
	if role == roleExcursion {
		if kw := keywordsIn(user); kw != "" {
			args["keywords"] = kw
		}
	}
	return toolCall(names.search, args)
}

func setDates(args map[string]any, dates []string, first, second string) {
	if len(dates) == 1 {
		args[second] = dates[0]
	}
	if len(dates) == 2 {
		args[first], args[second] = dates[0], dates[1]
	}
}

func detectRole(tools []Tool) mockRole {
	has := make(map[string]bool, len(tools))
	for _, t := range tools {
		has[t.Function.Name] = true
	}
	switch {
	case has["ToFlightBookingAssistant"]:
		return rolePrimary
	case has["update_ticket_to_new_flight"]:
		return roleFlight
	case has["book_car_rental"]:
		return roleCar
	case has["book_hotel"]:
		return roleHotel
	case has["book_excursion"]:
		return roleExcursion
	}
	return roleUnknown
}

func domainOf(text string) mockRole {
	switch {
	case containsAny(text, "flight", "ticket") && containsAny(text, "change", "update", "reschedule", "move", "cancel", "rebook", "earlier", "later"):
		return roleFlight
	case containsAny(text, "car", "rental", "rent "):
		return roleCar
	case containsAny(text, "hotel", "room", "stay"):
		return roleHotel
	case containsAny(text, "excursion", "trip", "getaway", "tour", "things to do", "recommend", "activities"):
		return roleExcursion
	}
	return roleUnknown
}

func escalates(text string, role mockRole) bool {
	if containsAny(text, "thank", "that's all", "nothing else", "never mind", "nevermind") {
		return true
	}
	d := domainOf(text)
	return d != roleUnknown && d != role
}

// isHandoff reports whether a tool message hands control to the calling
// assistant, which must then act on the user's request.
func isHandoff(content string) bool {
	return strings.HasPrefix(content, "The assistant is now the") ||
		strings.HasPrefix(content, "Resuming dialog with the host assistant")
}

func summarizeToolResult(content string) ChatMessage {
	switch {
	case strings.HasPrefix(content, "API call denied by user"):
		return assistantText("Understood, I did not go ahead with that. Is there anything else I can help you with?")
	case strings.HasPrefix(content, "Error:"):
		return assistantText("Sorry, I ran into a problem: " + truncate(strings.TrimPrefix(content, "Error: "), 200))
	case strings.HasPrefix(content, "["), strings.HasPrefix(content, "{"):
		var flights []mockFlight
		if err := json.Unmarshal([]byte(content), &flights); err == nil && len(flights) > 0 && flights[0].TicketNo != "" {
			f := flights[0]
			return assistantText(fmt.Sprintf("Your flight %s from %s to %s departs at %s, seat %s.",
				f.FlightNo, f.DepartureAirport, f.ArrivalAirport, f.ScheduledDeparture, f.SeatNo))
		}
		return assistantText("Here is what I found: " + truncate(content, 500))
	}
	return assistantText(content)
}

type mockFlight struct {
	TicketNo           string `json:"ticket_no"`
	FlightNo           string `json:"flight_no"`
	DepartureAirport   string `json:"departure_airport"`
	ArrivalAirport     string `json:"arrival_airport"`
	ScheduledDeparture string `json:"scheduled_departure"`
	SeatNo             string `json:"seat_no"`
}

// userFlights reads the passenger's flights from the system prompt.
func userFlights(msgs []ChatMessage) []mockFlight {
	for _, msg := range msgs {
		if msg.Role != "system" {
			continue
		}
		match := flightsBlock.FindStringSubmatch(msg.Content)
		if match == nil {
			continue
		}
		var flights []mockFlight
		if err := json.Unmarshal([]byte(match[1]), &flights); err == nil {
			return flights
		}
	}
	return nil
}

func lastUserMessage(msgs []ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

func cityIn(text string) string {
	for _, c := range knownCities {
		if strings.Contains(text, strings.ToLower(c)) {
			return c
		}
	}
	return "Basel"
}

func keywordsIn(text string) string {
	var kw []string
	for _, k := range []string{"art", "museum", "history", "nature", "lake", "river", "outdoor", "architecture"} {
		if strings.Contains(text, k) {
			kw = append(kw, k)
		}
	}
	return strings.Join(kw, ",")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func assistantText(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

func toolCall(name string, args map[string]any) ChatMessage {
	b, _ := json.Marshal(args)
	return ChatMessage{
		Role: "assistant",
		ToolCalls: []ToolCall{{
			ID:   "call_" + uuid.New().String()[:8],
			Type: "function",
			Function: ToolCallFunction{
				Name:      name,
				Arguments: string(b),
			},
		}},
	}
}

// estimateTokens provides a rough token count estimate.
func (m *MockClient) estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
