package ride

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusMatching, StatusEnroute, true},
		{StatusEnroute, StatusPickup, true},
		{StatusPickup, StatusCarrying, true},
		{StatusCarrying, StatusArrived, true},
		{StatusArrived, StatusCompleted, true},
		{StatusMatching, StatusPickup, false},
		{StatusEnroute, StatusCarrying, false},
		{StatusPickup, StatusPickup, false},
		{StatusArrived, StatusCarrying, false},
		{StatusCompleted, StatusMatching, false},
		{StatusMatching, StatusCancelled, false},
		{StatusCancelled, StatusMatching, false},
	}

	for _, test := range tests {
		t.Run(string(test.from)+"->"+string(test.to), func(t *testing.T) {
			assert.Equal(t, test.want, test.from.CanTransitionTo(test.to))
		})
	}
}

func TestLifecycleFollowsTransitionTable(t *testing.T) {
	for i := 0; i+1 < len(Lifecycle); i++ {
		next, ok := Lifecycle[i].Next()
		require.True(t, ok, "status %s has no successor", Lifecycle[i])
		assert.Equal(t, Lifecycle[i+1], next)
	}
	_, ok := StatusCompleted.Next()
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" enroute ")
	require.NoError(t, err)
	assert.Equal(t, StatusEnroute, s)

	_, err = ParseStatus("EN_ROUTE")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatusEventDelivery(t *testing.T) {
	ev, err := NewStatusEvent("e1", "r1", StatusMatching)
	require.NoError(t, err)
	assert.False(t, ev.DeliveredTo(ChannelRider))
	assert.False(t, ev.DeliveredTo(ChannelChair))

	ev.MarkDelivered(ChannelChair, ev.CreatedAt)
	assert.False(t, ev.DeliveredTo(ChannelRider))
	assert.True(t, ev.DeliveredTo(ChannelChair))
}

func TestValidEvaluation(t *testing.T) {
	assert.ErrorIs(t, ValidEvaluation(0), ErrEvaluationRange)
	assert.NoError(t, ValidEvaluation(1))
	assert.NoError(t, ValidEvaluation(5))
	assert.ErrorIs(t, ValidEvaluation(6), ErrEvaluationRange)
}
