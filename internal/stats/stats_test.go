package stats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatIncrementDecrement(t *testing.T) {
	var s Stat
	s.Increment()
	s.Increment()
	s.Decrement()
	assert.EqualValues(t, 1, s.Value())
}

func TestStatMarshalJSON(t *testing.T) {
	var s Stat
	s.Set(42)
	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "42", string(b))
}

func TestCommandStatsIncrement(t *testing.T) {
	var c CommandStats
	c.Increment("read")
	c.Increment("read")
	c.Increment("write")
	c.Increment("unknown")

	assert.EqualValues(t, 2, c.Read.Value())
	assert.EqualValues(t, 1, c.Write.Value())
	assert.EqualValues(t, 0, c.Bind.Value())
}

func TestStatsRoundTripsThroughJSON(t *testing.T) {
	s := New()
	s.Clients.Connects.Increment()
	s.Store.ReadsPending.Set(3)
	s.Zones.LocalLoaded.Set(7)

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	clients := decoded["clients"].(map[string]any)
	assert.EqualValues(t, 1, clients["connects"])
}
