package assistant

import (
	"fmt"

	"github.com/xiaot623/gogo/travel/internal/adapter/llm"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/metrics"
	"github.com/xiaot623/gogo/travel/internal/prompts"
	"github.com/xiaot623/gogo/travel/internal/tools"
)

// Config holds everything the travel graph is built from.
type Config struct {
	Catalog        Catalog
	Registry       *tools.Registry
	Prompts        *prompts.Set
	Client         llm.LLMClient
	Model          string
	Saver          graph.Saver
	Ledger         Ledger
	Metrics        *metrics.Metrics
	RecursionLimit int
	Observers      []graph.Observer
	ToolObservers  []ToolObserver
}

// BuildGraph compiles the travel assistant graph:
//
//	START -> fetch_user_info -> (primary_assistant | <skill>)
//	primary_assistant -> (enter_<skill> | primary_assistant_tools | END)
//	enter_<skill> -> <skill> -> (<skill>_safe_tools | <skill>_sensitive_tools | leave_skill | END)
//	leave_skill -> primary_assistant
//
// Every tool node returns to the assistant that called it, and the graph
// pauses before each sensitive tool node.
func BuildGraph(cfg Config) (*graph.Graph, error) {
	toolOpts := []ToolNodeOption{WithToolMetrics(cfg.Metrics)}
	if cfg.Ledger != nil {
		toolOpts = append(toolOpts, WithLedger(cfg.Ledger))
	}
	for _, o := range cfg.ToolObservers {
		toolOpts = append(toolOpts, WithToolObserver(o))
	}
	toolNode := NewToolNode(cfg.Registry, toolOpts...).Run

	newAssistant := func(node, promptKey string, names []tools.Name) (graph.NodeFunc, error) {
		p, ok := cfg.Prompts.Get(promptKey)
		if !ok {
			return nil, fmt.Errorf("no prompt for %s", promptKey)
		}
		defs, err := cfg.Registry.Definitions(names...)
		if err != nil {
			return nil, fmt.Errorf("tools for %s: %w", node, err)
		}
		return NewAssistant(node, p, cfg.Client, cfg.Model, defs, cfg.Metrics).Run, nil
	}

	primary, err := newAssistant(NodePrimaryAssistant, NodePrimaryAssistant, cfg.Catalog.PrimaryTools())
	if err != nil {
		return nil, err
	}

	b := graph.NewBuilder().
		AddNode(NodeFetchUserInfo, graph.KindFunction, FetchUserInfo(cfg.Registry)).
		AddEdge(graph.Start, NodeFetchUserInfo).
		AddNode(NodePrimaryAssistant, graph.KindAssistant, primary).
		AddNode(NodePrimaryAssistantTools, graph.KindTool, toolNode).
		AddEdge(NodePrimaryAssistantTools, NodePrimaryAssistant).
		AddNode(NodeLeaveSkill, graph.KindExit, LeaveSkill).
		AddEdge(NodeLeaveSkill, NodePrimaryAssistant)

	workflowTargets := []string{NodePrimaryAssistant}
	primaryTargets := []string{NodePrimaryAssistantTools, graph.End}
	for _, s := range cfg.Catalog.Skills {
		run, err := newAssistant(s.Node(), string(s.Dialog), s.Tools())
		if err != nil {
			return nil, err
		}
		b.AddNode(s.EntryNode(), graph.KindEntry, EntryNode(s.DisplayName, s.Dialog)).
			AddEdge(s.EntryNode(), s.Node()).
			AddNode(s.Node(), graph.KindAssistant, run).
			AddConditionalEdges(s.Node(), RouteSkill(s), s.SafeNode(), s.SensitiveNode(), NodeLeaveSkill, graph.End).
			AddNode(s.SafeNode(), graph.KindTool, toolNode).
			AddEdge(s.SafeNode(), s.Node()).
			AddNode(s.SensitiveNode(), graph.KindTool, toolNode).
			AddEdge(s.SensitiveNode(), s.Node())

		workflowTargets = append(workflowTargets, s.Node())
		primaryTargets = append(primaryTargets, s.EntryNode())
	}
	b.AddConditionalEdges(NodeFetchUserInfo, RouteToWorkflow, workflowTargets...).
		AddConditionalEdges(NodePrimaryAssistant, cfg.Catalog.RoutePrimaryAssistant, primaryTargets...)

	opts := []graph.Option{
		graph.WithSaver(cfg.Saver),
		graph.WithInterruptBefore(cfg.Catalog.SensitiveNodes()...),
	}
	if cfg.RecursionLimit > 0 {
		opts = append(opts, graph.WithRecursionLimit(cfg.RecursionLimit))
	}
	for _, o := range cfg.Observers {
		opts = append(opts, graph.WithObserver(o))
	}
	return b.Compile(opts...)
}
