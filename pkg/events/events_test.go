package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("home_tap")
	require.NoError(t, err)
	assert.Equal(t, HomeTap, k)
	assert.True(t, k.StartsStream())

	k, err = ParseKind(" BUMPER_DOWN ")
	require.NoError(t, err)
	assert.False(t, k.StartsStream())

	_, err = ParseKind("TRIGGER")
	assert.Error(t, err)
}

func TestEventJSON(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"START_STREAM","address":"10.0.0.5"}`), &ev))
	assert.Equal(t, StartStream, ev.Kind)
	assert.Equal(t, "10.0.0.5", ev.Address)

	out, err := json.Marshal(Event{Kind: BumperUp, Source: "ws"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"BUMPER_UP","source":"ws"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"type":"JUMP"}`), &ev))
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Submit(Event{Kind: HomeTap}))
	assert.ErrorIs(t, q.Submit(Event{Kind: HomeTap}), ErrQueueFull)

	ev := <-q
	assert.False(t, ev.At.IsZero())
}

func TestQueueRejectsEventWithoutType(t *testing.T) {
	q := NewQueue(2)
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"address":"10.0.0.5"}`), &ev))

	assert.ErrorIs(t, ev.Validate(), ErrMissingKind)
	assert.ErrorIs(t, q.Submit(ev), ErrMissingKind)
	assert.Error(t, q.Submit(Event{Kind: Kind(9)}))
	assert.Empty(t, q)
}
