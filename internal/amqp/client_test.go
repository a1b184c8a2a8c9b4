package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	want := map[int]time.Duration{
		-1: time.Second,
		0:  time.Second,
		1:  2 * time.Second,
		3:  8 * time.Second,
		4:  16 * time.Second,
		5:  maxBackoff,
		12: maxBackoff,
	}
	for attempt, d := range want {
		assert.Equal(t, d, exponentialBackoff(attempt), "attempt %d", attempt)
	}
}

func TestIsConnectionError(t *testing.T) {
	retryable := []error{
		errors.New("dial tcp: connection refused"),
		errors.New("unexpected EOF"),
		errors.New("write: broken pipe"),
		fmt.Errorf("publish: %w", amqp091.ErrClosed),
	}
	for _, err := range retryable {
		assert.True(t, isConnectionError(err), err.Error())
	}

	assert.False(t, isConnectionError(nil))
	assert.False(t, isConnectionError(errors.New("PRECONDITION_FAILED - inequivalent arg 'durable'")))
}

func TestClient_CircuitBreaker(t *testing.T) {
	c := &Client{exchangeName: "tripsplit", queueName: "trip_export"}
	require.False(t, c.isCircuitOpen())

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	assert.False(t, c.isCircuitOpen(), "below the threshold the breaker stays closed")

	c.recordFailure()
	assert.True(t, c.isCircuitOpen())
	assert.Equal(t, StateOpen, atomic.LoadInt32(&c.state))

	// Past the open timeout one trial call is let through.
	c.lastFailure.Store(time.Now().Add(-openTimeout - time.Second).UnixNano())
	assert.False(t, c.isCircuitOpen())
	assert.Equal(t, StateHalfOpen, atomic.LoadInt32(&c.state))

	c.recordSuccess()
	assert.Equal(t, StateClosed, atomic.LoadInt32(&c.state))
	assert.Zero(t, atomic.LoadInt64(&c.failureCount))
}

func TestClient_CircuitBreakerConcurrentFailures(t *testing.T) {
	c := &Client{exchangeName: "tripsplit", queueName: "trip_export"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < maxFailures; j++ {
				c.recordFailure()
				_ = c.isCircuitOpen()
			}
		}()
	}
	wg.Wait()

	assert.True(t, c.isCircuitOpen())
	assert.WithinDuration(t, time.Now(), time.Unix(0, c.lastFailure.Load()), time.Second)
}

func TestClient_PublishTripChanged_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "tripsplit", queueName: "trip_export"}

	t.Run("publish fails when circuit is open", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure.Store(time.Now().UnixNano())

		err := client.PublishTripChanged(context.Background(), "trip-1", ReasonExpenseAdded)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Contains(t, err.Error(), "circuit breaker is open")
	})

	t.Run("publish respects context cancellation", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateClosed)
		atomic.StoreInt64(&client.failureCount, 0)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.PublishTripChanged(ctx, "trip-1", ReasonExpenseAdded)
		assert.Equal(t, context.Canceled, err)
	})

	t.Run("half-open failure reopens immediately", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateHalfOpen)
		atomic.StoreInt64(&client.failureCount, 0)

		client.recordFailure()
		assert.Equal(t, StateOpen, atomic.LoadInt32(&client.state))
	})
}

func TestTripChangedMessage_JSON(t *testing.T) {
	msg := NewTripChangedMessage("trip-1", ReasonMemberAdded)
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)

	body, err := msg.ToJSON()
	require.NoError(t, err)

	parsed, err := TripChangedMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, "trip-1", parsed.TripID)
	assert.Equal(t, ReasonMemberAdded, parsed.Reason)
	assert.True(t, parsed.Timestamp.Equal(msg.Timestamp))
}

func TestTripChangedMessage_Invalid(t *testing.T) {
	for _, body := range []string{`{"trip_id": 5}`, `not json`, `{"reason":"x"}`} {
		_, err := TripChangedMessageFromJSON([]byte(body))
		assert.Error(t, err, body)
	}
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	if requeue {
		f.requeued++
	}
	return nil
}
func (f *fakeAck) Reject(uint64, bool) error { return nil }

func TestHandleDelivery(t *testing.T) {
	good, _ := NewTripChangedMessage("trip-1", ReasonExpenseAdded).ToJSON()

	tests := []struct {
		name       string
		body       []byte
		handlerErr error
		want       fakeAck
	}{
		{name: "success acks", body: good, want: fakeAck{acked: 1}},
		{name: "handler error requeues", body: good, handlerErr: errors.New("sheets down"), want: fakeAck{nacked: 1, requeued: 1}},
		{name: "malformed is dropped", body: []byte("{"), want: fakeAck{nacked: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			var seen string
			handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: tt.body},
				func(_ context.Context, m *TripChangedMessage) error {
					seen = m.TripID
					return tt.handlerErr
				})
			assert.Equal(t, tt.want, *ack)
			if tt.name != "malformed is dropped" {
				assert.Equal(t, "trip-1", seen)
			}
		})
	}
}
