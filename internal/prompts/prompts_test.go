package prompts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	set, err := Load()
	require.NoError(t, err)

	for _, key := range []string{"primary_assistant", "update_flight", "book_car_rental", "book_hotel", "book_excursion"} {
		p, ok := set.Get(key)
		require.True(t, ok, key)
		assert.NotEmpty(t, p.Name)
	}

	out, err := set.Render("book_hotel", Data{UserInfo: `[{"ticket_no":"1"}]`, Time: time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Contains(t, out, "<Flights>\n[{\"ticket_no\":\"1\"}]\n</Flights>")
	assert.Contains(t, out, "2030-01-01 09:00:00")

	_, err = set.Render("nope", Data{})
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("a: [unterminated"))
	assert.Error(t, err)

	_, err = Parse([]byte("a:\n  name: A\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("a:\n  system: \"{{.Missing\"\n"))
	assert.Error(t, err)
}
