package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewDefaultEngine(ctx)
	require.NoError(t, err)

	tests := []struct {
		tool string
		want Decision
	}{
		{"search_flights", Allow},
		{"lookup_policy", Allow},
		{"CompleteOrEscalate", Allow},
		{"update_ticket_to_new_flight", RequireApproval},
		{"book_hotel", RequireApproval},
		{"cancel_excursion", RequireApproval},
		{"rm_rf", Block},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			got, err := engine.Classify(ctx, tt.tool)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package tool_policy

default decision = "allow"

decision = "block" {
	input.tool_name == "cancel_ticket"
}
`)
	require.NoError(t, err)

	got, err := engine.Classify(ctx, "cancel_ticket")
	require.NoError(t, err)
	assert.Equal(t, Block, got)

	got, err = engine.Evaluate(ctx, map[string]interface{}{"tool_name": "book_hotel"})
	require.NoError(t, err)
	assert.Equal(t, Allow, got)
}

func TestPolicyErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewEngine(ctx, "package tool_policy\n\ndecision = {")
	assert.Error(t, err)

	engine, err := NewEngine(ctx, "package tool_policy\n\ndefault decision = \"maybe\"\n")
	require.NoError(t, err)
	_, err = engine.Classify(ctx, "search_flights")
	assert.Error(t, err)

	engine, err = NewEngine(ctx, "package tool_policy\n\ndecision = \"allow\" {\n\tinput.tool_name == \"x\"\n}\n")
	require.NoError(t, err)
	_, err = engine.Classify(ctx, "y")
	assert.Error(t, err)
}
