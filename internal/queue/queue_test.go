package queue

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/booking-reconciler/internal/database"
	"github.com/iliyamo/booking-reconciler/internal/identity"
	"github.com/iliyamo/booking-reconciler/internal/model"
	"github.com/iliyamo/booking-reconciler/internal/repository"
	"github.com/iliyamo/booking-reconciler/internal/service"
)

const testTopic = "booking.deferred"

type mockReprocessor struct {
	mock.Mock
}

func (m *mockReprocessor) ReprocessBooking(ctx context.Context, userID uint64, booking model.Booking) (*model.Booking, error) {
	args := m.Called(ctx, userID, booking)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

// memoryClaimer is a process-local stand-in for the Redis guard.
type memoryClaimer struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (c *memoryClaimer) Claim(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.seen == nil {
		c.seen = map[string]bool{}
	}
	if c.seen[id] {
		return false, nil
	}
	c.seen[id] = true
	return true, nil
}

func (c *memoryClaimer) Release(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, id)
	return nil
}

func (c *memoryClaimer) claimed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[id]
}

// pending returns the number of undelivered messages on topic.
func pending(b *MemoryBus, topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, string, []byte) error {
	return errors.New("broker unreachable")
}

func sampleBooking() model.Booking {
	return model.Booking{
		BookingNumber: "BK-1",
		Containers:    []model.Container{{ContainerNumber: "C-1"}, {ContainerNumber: "C-2"}},
		Orders:        []model.Order{{PurchaseNumber: "PO-1", Invoices: []model.Invoice{{InvoiceNumber: "INV-1"}}}},
	}
}

func TestDeferBookingPublishesEnvelope(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	d := NewDeferrer(bus, testTopic, zerolog.Nop())

	id, err := d.DeferBooking(context.Background(), 7, sampleBooking(), "insert container: disk full")
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, 1, pending(bus, testTopic))

	ctx, cancel := context.WithCancel(context.Background())
	var got Message
	require.NoError(t, bus.Subscribe(ctx, testTopic, "", func(_ context.Context, m Message) error {
		got = m
		cancel()
		return nil
	}))

	assert.Equal(t, id, got.ID)
	var ev DeferredBooking
	require.NoError(t, json.Unmarshal(got.Body, &ev))
	assert.Equal(t, id, ev.MessageID)
	assert.Equal(t, uint64(7), ev.UserID)
	assert.Equal(t, sampleBooking(), ev.Booking)
	assert.Equal(t, "insert container: disk full", ev.Reason)
	assert.WithinDuration(t, time.Now(), ev.DeferredAt, time.Minute)
}

func TestDeferBookingPublishFailure(t *testing.T) {
	d := NewDeferrer(failingPublisher{}, testTopic, zerolog.Nop())
	id, err := d.DeferBooking(context.Background(), 7, sampleBooking(), "")
	assert.Empty(t, id)
	assert.ErrorContains(t, err, "broker unreachable")
}

func envelope(t *testing.T, id string, userID uint64) Message {
	t.Helper()
	body, err := json.Marshal(DeferredBooking{MessageID: id, UserID: userID, Booking: sampleBooking()})
	require.NoError(t, err)
	return Message{ID: id, Topic: testTopic, Body: body}
}

func TestRetryConsumerHandle(t *testing.T) {
	tests := map[string]struct {
		msg       func(t *testing.T) Message
		claimer   Claimer
		result    *model.Booking
		resultErr error
		wantCalls int
	}{
		"reprocessed": {
			msg:       func(t *testing.T) Message { return envelope(t, "m-1", 3) },
			claimer:   &memoryClaimer{},
			result:    &model.Booking{ID: 1, BookingNumber: "BK-1"},
			wantCalls: 1,
		},
		"second failure is acknowledged": {
			msg:       func(t *testing.T) Message { return envelope(t, "m-1", 3) },
			claimer:   &memoryClaimer{},
			resultErr: errors.New("still down"),
			wantCalls: 1,
		},
		"already claimed": {
			msg:       func(t *testing.T) Message { return envelope(t, "m-1", 3) },
			claimer:   &memoryClaimer{seen: map[string]bool{"m-1": true}},
			wantCalls: 0,
		},
		"guard unavailable still retries": {
			msg:       func(t *testing.T) Message { return envelope(t, "m-1", 3) },
			claimer:   &memoryClaimer{err: errors.New("redis down")},
			result:    &model.Booking{ID: 1},
			wantCalls: 1,
		},
		"no guard": {
			msg:       func(t *testing.T) Message { return envelope(t, "m-1", 3) },
			result:    &model.Booking{ID: 1},
			wantCalls: 1,
		},
		"poison message": {
			msg:       func(*testing.T) Message { return Message{ID: "m-2", Body: []byte("{not json")} },
			claimer:   &memoryClaimer{},
			wantCalls: 0,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			proc := &mockReprocessor{}
			proc.On("ReprocessBooking", mock.Anything, uint64(3), sampleBooking()).Return(tc.result, tc.resultErr)
			c := NewRetryConsumer(proc, tc.claimer, zerolog.Nop())

			err := c.Handle(context.Background(), tc.msg(t))
			assert.NoError(t, err)
			proc.AssertNumberOfCalls(t, "ReprocessBooking", tc.wantCalls)
		})
	}
}

func TestRetryConsumerProcessesEachMessageOnce(t *testing.T) {
	proc := &mockReprocessor{}
	proc.On("ReprocessBooking", mock.Anything, uint64(3), sampleBooking()).Return(&model.Booking{ID: 1}, nil)
	c := NewRetryConsumer(proc, &memoryClaimer{}, zerolog.Nop())

	msg := envelope(t, "m-1", 3)
	require.NoError(t, c.Handle(context.Background(), msg))
	require.NoError(t, c.Handle(context.Background(), msg))
	proc.AssertNumberOfCalls(t, "ReprocessBooking", 1)
}

func TestRetryConsumerRunOverMemoryBus(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	d := NewDeferrer(bus, testTopic, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &mockReprocessor{}
	proc.On("ReprocessBooking", mock.Anything, uint64(9), sampleBooking()).
		Run(func(mock.Arguments) { cancel() }).
		Return(&model.Booking{ID: 1}, nil).Once()

	_, err := d.DeferBooking(context.Background(), 9, sampleBooking(), "")
	require.NoError(t, err)

	c := NewRetryConsumer(proc, nil, zerolog.Nop())
	require.NoError(t, c.Run(ctx, bus, testTopic, "booking-retry"))
	proc.AssertExpectations(t)
	assert.Zero(t, pending(bus, testTopic))
}

func TestRetryConsumerHandleShutdown(t *testing.T) {
	t.Run("should not claim when cancelled before the attempt", func(t *testing.T) {
		proc := &mockReprocessor{}
		claimer := &memoryClaimer{}
		c := NewRetryConsumer(proc, claimer, zerolog.Nop())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := c.Handle(ctx, envelope(t, "m-1", 3))

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, claimer.claimed("m-1"))
		proc.AssertNotCalled(t, "ReprocessBooking", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should release the claim when interrupted", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		proc := &mockReprocessor{}
		proc.On("ReprocessBooking", mock.Anything, uint64(3), sampleBooking()).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, context.Canceled).Once()
		claimer := &memoryClaimer{}
		c := NewRetryConsumer(proc, claimer, zerolog.Nop())

		err := c.Handle(ctx, envelope(t, "m-1", 3))

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, claimer.claimed("m-1"))
	})

	t.Run("should keep the claim on a genuine second failure", func(t *testing.T) {
		proc := &mockReprocessor{}
		proc.On("ReprocessBooking", mock.Anything, uint64(3), sampleBooking()).Return(nil, errors.New("still down"))
		claimer := &memoryClaimer{}
		c := NewRetryConsumer(proc, claimer, zerolog.Nop())

		assert.NoError(t, c.Handle(context.Background(), envelope(t, "m-1", 3)))
		assert.True(t, claimer.claimed("m-1"))
	})
}

type reprocessorFunc func(ctx context.Context, userID uint64, booking model.Booking) (*model.Booking, error)

func (f reprocessorFunc) ReprocessBooking(ctx context.Context, userID uint64, booking model.Booking) (*model.Booking, error) {
	return f(ctx, userID, booking)
}

func TestRetryConsumerRedeliversAfterShutdown(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "retry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))

	store := repository.NewStore(db, database.TxOptions(database.DriverSQLite))
	svc := service.NewBookingService(store, identity.ContextProvider{}, NewDeferrer(NewMemoryBus(zerolog.Nop()), testTopic, zerolog.Nop()), zerolog.Nop())
	claimer := &memoryClaimer{}

	ctx, cancel := context.WithCancel(context.Background())
	interrupted := NewRetryConsumer(reprocessorFunc(func(ctx context.Context, userID uint64, b model.Booking) (*model.Booking, error) {
		cancel()
		return svc.ReprocessBooking(ctx, userID, b)
	}), claimer, zerolog.Nop())

	msg := envelope(t, "m-1", 3)
	require.Error(t, interrupted.Handle(ctx, msg), "transport must not ack an interrupted attempt")
	assert.False(t, claimer.claimed("m-1"))

	require.NoError(t, NewRetryConsumer(svc, claimer, zerolog.Nop()).Handle(context.Background(), msg))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM bookings WHERE user_id = 3").Scan(&n))
	assert.Equal(t, 1, n)
	assert.True(t, claimer.claimed("m-1"))
}

func TestRetryConsumerRunRequeuesInFlightOnShutdown(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	d := NewDeferrer(bus, testTopic, zerolog.Nop())
	_, err := d.DeferBooking(context.Background(), 9, sampleBooking(), "")
	require.NoError(t, err)

	var stop context.CancelFunc
	proc := &mockReprocessor{}
	proc.On("ReprocessBooking", mock.Anything, uint64(9), sampleBooking()).
		Run(func(mock.Arguments) { stop() }).
		Return(nil, context.Canceled).Once()
	proc.On("ReprocessBooking", mock.Anything, uint64(9), sampleBooking()).
		Run(func(mock.Arguments) { stop() }).
		Return(&model.Booking{ID: 1}, nil).Once()
	claimer := &memoryClaimer{}
	c := NewRetryConsumer(proc, claimer, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stop = cancel
	require.NoError(t, c.Run(ctx, bus, testTopic, "booking-retry"))
	assert.Equal(t, 1, pending(bus, testTopic), "interrupted delivery goes back on the topic")
	assert.Empty(t, claimer.seen)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	stop = cancel
	require.NoError(t, c.Run(ctx, bus, testTopic, "booking-retry"))
	assert.Zero(t, pending(bus, testTopic))
	proc.AssertExpectations(t)
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), testTopic, "x", nil), ErrClosed)
	assert.ErrorIs(t, bus.Subscribe(context.Background(), testTopic, "", nil), ErrClosed)
	assert.NoError(t, bus.Close())
}

func TestRedisClaimerWithoutClient(t *testing.T) {
	c := NewRedisClaimer(nil, "", 0)
	ok, err := c.Claim(context.Background(), "m-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, c.Release(context.Background(), "m-1"))
	assert.Equal(t, "deferred:claim:m-1", c.key("m-1"))
	assert.Equal(t, DefaultClaimTTL, c.ttl)
}

func TestParseBrokers(t *testing.T) {
	tests := map[string]struct {
		in   string
		want []string
	}{
		"single":   {"localhost:9092", []string{"localhost:9092"}},
		"several":  {"a:9092, b:9092,c:9092", []string{"a:9092", "b:9092", "c:9092"}},
		"trailing": {"a:9092,", []string{"a:9092"}},
		"empty":    {"", nil},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseBrokers(tc.in))
		})
	}
}
