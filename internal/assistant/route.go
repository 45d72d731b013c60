// Package assistant wires the travel assistants into an executable graph:
// routing predicates, entry and exit nodes, tool nodes and model-backed
// assistant nodes.
package assistant

import (
	"github.com/xiaot623/gogo/travel/internal/domain"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/tools"
)

// Fixed node names.
const (
	NodeFetchUserInfo         = "fetch_user_info"
	NodePrimaryAssistant      = "primary_assistant"
	NodePrimaryAssistantTools = "primary_assistant_tools"
	NodeLeaveSkill            = "leave_skill"
)

// Skill describes one specialized assistant and the tools it may call.
type Skill struct {
	Dialog      domain.DialogState
	DisplayName string
	// Transfer is the control tool the primary assistant calls to hand over.
	Transfer  tools.Name
	Safe      []tools.Name
	Sensitive []tools.Name
}

// Node is the assistant node of the skill. It equals the dialog frame.
func (s Skill) Node() string { return string(s.Dialog) }

// EntryNode pushes the skill's frame.
func (s Skill) EntryNode() string { return "enter_" + string(s.Dialog) }

// SafeNode runs read-only tools without pausing.
func (s Skill) SafeNode() string { return string(s.Dialog) + "_safe_tools" }

// SensitiveNode runs mutating tools after approval.
func (s Skill) SensitiveNode() string { return string(s.Dialog) + "_sensitive_tools" }

// Tools lists everything the skill's model is offered.
func (s Skill) Tools() []tools.Name {
	out := make([]tools.Name, 0, len(s.Safe)+len(s.Sensitive)+1)
	out = append(out, s.Safe...)
	out = append(out, s.Sensitive...)
	return append(out, tools.CompleteOrEscalate)
}

func (s Skill) isSafe(name string) bool {
	for _, n := range s.Safe {
		if string(n) == name {
			return true
		}
	}
	return false
}

// Catalog is the tool layout of the whole assistant team.
type Catalog struct {
	// Primary lists the tools the primary assistant executes itself.
	Primary []tools.Name
	Skills  []Skill
}

// DefaultCatalog returns the travel team.
func DefaultCatalog() Catalog {
	return Catalog{
		Primary: []tools.Name{tools.SearchFlights, tools.LookupPolicy, tools.FetchUserFlightInformation},
		Skills: []Skill{
			{
				Dialog:      domain.DialogUpdateFlight,
				DisplayName: "Flight Updates & Booking Assistant",
				Transfer:    tools.ToFlightBookingAssistant,
				Safe:        []tools.Name{tools.SearchFlights},
				Sensitive:   []tools.Name{tools.UpdateTicketToNewFlight, tools.CancelTicket},
			},
			{
				Dialog:      domain.DialogBookCarRental,
				DisplayName: "Car Rental Assistant",
				Transfer:    tools.ToBookCarRental,
				Safe:        []tools.Name{tools.SearchCarRentals},
				Sensitive:   []tools.Name{tools.BookCarRental, tools.UpdateCarRental, tools.CancelCarRental},
			},
			{
				Dialog:      domain.DialogBookHotel,
				DisplayName: "Hotel Booking Assistant",
				Transfer:    tools.ToHotelBookingAssistant,
				Safe:        []tools.Name{tools.SearchHotels},
				Sensitive:   []tools.Name{tools.BookHotel, tools.UpdateHotel, tools.CancelHotel},
			},
			{
				Dialog:      domain.DialogBookExcursion,
				DisplayName: "Trip Recommendation Assistant",
				Transfer:    tools.ToBookExcursion,
				Safe:        []tools.Name{tools.SearchTripRecommendations},
				Sensitive:   []tools.Name{tools.BookExcursion, tools.UpdateExcursion, tools.CancelExcursion},
			},
		},
	}
}

// PrimaryTools lists everything the primary model is offered.
func (c Catalog) PrimaryTools() []tools.Name {
	out := append([]tools.Name(nil), c.Primary...)
	for _, s := range c.Skills {
		out = append(out, s.Transfer)
	}
	return out
}

// Skill returns the skill owning dialog.
func (c Catalog) Skill(dialog domain.DialogState) (Skill, bool) {
	for _, s := range c.Skills {
		if s.Dialog == dialog {
			return s, true
		}
	}
	return Skill{}, false
}

// SkillBySensitiveNode returns the skill whose sensitive node is node.
func (c Catalog) SkillBySensitiveNode(node string) (Skill, bool) {
	for _, s := range c.Skills {
		if s.SensitiveNode() == node {
			return s, true
		}
	}
	return Skill{}, false
}

// SensitiveNodes lists the nodes the graph pauses before.
func (c Catalog) SensitiveNodes() []string {
	out := make([]string, 0, len(c.Skills))
	for _, s := range c.Skills {
		out = append(out, s.SensitiveNode())
	}
	return out
}

// RouteToWorkflow sends a new turn to whichever assistant owns the dialog.
func RouteToWorkflow(state domain.State) string {
	dialog := state.CurrentDialog()
	if dialog == domain.DialogPrimary {
		return NodePrimaryAssistant
	}
	return string(dialog)
}

// RoutePrimaryAssistant routes after the primary assistant. It returns ""
// for a state the assistant could not have produced, which the graph reports
// as an orchestration error.
func (c Catalog) RoutePrimaryAssistant(state domain.State) string {
	last, ok := state.LastMessage()
	if !ok || last.Role != domain.RoleAssistant {
		return ""
	}
	if !last.HasToolCalls() {
		return graph.End
	}
	first := tools.Name(last.ToolCalls[0].Name)
	for _, s := range c.Skills {
		if s.Transfer == first {
			return s.EntryNode()
		}
	}
	return NodePrimaryAssistantTools
}

// RouteSkill returns the predicate that routes after a specialized assistant.
// Any call outside the safe set, unknown names included, goes to the
// sensitive node.
func RouteSkill(skill Skill) graph.RouteFunc {
	return func(state domain.State) string {
		last, ok := state.LastMessage()
		if !ok || last.Role != domain.RoleAssistant {
			return ""
		}
		if !last.HasToolCalls() {
			return graph.End
		}
		for _, tc := range last.ToolCalls {
			if tc.Name == string(tools.CompleteOrEscalate) {
				return NodeLeaveSkill
			}
		}
		for _, tc := range last.ToolCalls {
			if !skill.isSafe(tc.Name) {
				return skill.SensitiveNode()
			}
		}
		return skill.SafeNode()
	}
}
