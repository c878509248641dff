package matcherservice

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"isuride/internal/general/contracts"
	"isuride/internal/general/logger"
	"isuride/internal/ports"
	"isuride/internal/software/matching"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMatcher struct{ rounds atomic.Int32 }

func (m *countingMatcher) MatchOnce(context.Context) (ports.MatchResult, error) {
	m.rounds.Add(1)
	return ports.MatchResult{}, nil
}

func TestNudgeHandler_TriggersRound(t *testing.T) {
	log := logger.NewWithWriter("test", io.Discard)
	m := &countingMatcher{}
	// an hour-long tick leaves nudges as the only trigger
	s := matching.NewScheduler(log, m, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	body, err := json.Marshal(contracts.RideStatusMessage{RideID: "r1", Status: "MATCHING"})
	require.NoError(t, err)

	h := nudgeHandler(log, s)
	require.NoError(t, h(ctx, amqp.Delivery{Body: body}))
	assert.Eventually(t, func() bool { return m.rounds.Load() >= 1 }, time.Second, 5*time.Millisecond)

	assert.Error(t, h(ctx, amqp.Delivery{Body: []byte("not json")}))
}
