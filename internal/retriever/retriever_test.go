package retriever

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSections(t *testing.T) {
	r := NewFromMarkdown([]byte("# Title\n\n## Empty parent\n\n### First\n\nAlpha beta.\nGamma.\n\n### Second\n\n- one\n- two\n"))

	sections := r.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, "First", sections[0].Title)
	assert.Equal(t, "Alpha beta. Gamma.", sections[0].Content)
	assert.Equal(t, "Second", sections[1].Title)
	assert.Contains(t, sections[1].Content, "- one")
	assert.Contains(t, sections[1].Content, "- two")
}

func TestQueryRanksHeadingsHigher(t *testing.T) {
	r := NewFromMarkdown([]byte("## Baggage\n\nBags are weighed.\n\n## Seats\n\nBaggage rules do not apply to seats.\n"))

	got := r.Query("baggage", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Baggage", got[0].Title)

	assert.Empty(t, r.Query("the and of", 2))
	assert.Empty(t, r.Query("submarine", 2))
	assert.Len(t, r.Query("baggage", 1), 1)
}

func TestLookupEmbeddedFAQ(t *testing.T) {
	r := New()
	require.NotEmpty(t, r.Sections())

	out := r.Lookup("Am I allowed to change my flight to one leaving in two hours?")
	assert.Contains(t, out, "three hours")

	out = r.Lookup("cancellation refund")
	assert.True(t, strings.HasPrefix(out, "## "))
	assert.Contains(t, strings.ToLower(out), "cancel")

	assert.Equal(t, "No relevant policy found.", r.Lookup("zzz"))
}
