package messaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandser/introq/directory"
)

type fakeDelivery struct {
	body   []byte
	ackErr error
	acked  bool
	onAck  func()
}

func (f *fakeDelivery) Body() []byte {
	return f.body
}

func (f *fakeDelivery) Acknowledge() error {
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = true
	if f.onAck != nil {
		f.onAck()
	}
	return nil
}

type fakeSubscription struct {
	out       chan Delivery
	committed int
	closed    bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{out: make(chan Delivery, 64)}
}

func (f *fakeSubscription) Deliveries() <-chan Delivery {
	return f.out
}

func (f *fakeSubscription) Commit() error {
	f.committed++
	return nil
}

func (f *fakeSubscription) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSubscription) deliver(texts ...string) {
	for _, text := range texts {
		f.out <- &fakeDelivery{body: []byte(text)}
	}
}

type fakeSubscriber struct {
	sub        *fakeSubscription
	err        error
	gotQueue   string
	gotAckMode AckMode
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, queue string, ackMode AckMode) (Subscription, error) {
	f.gotQueue = queue
	f.gotAckMode = ackMode
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

func TestNewConsumer(t *testing.T) {
	t.Run("rejects non-positive expected count", func(t *testing.T) {
		_, err := NewConsumer(&fakeSubscriber{}, demoRegistry(), 0)
		assert.Error(t, err)
	})

	t.Run("applies options", func(t *testing.T) {
		consumer, err := NewConsumer(&fakeSubscriber{}, demoRegistry(), 3,
			WithConsumerIdentity("Consumer-7"),
			WithConsumerAckMode(AckClient),
		)
		require.NoError(t, err)

		assert.Equal(t, "Consumer-7", consumer.identity)
		assert.Equal(t, AckClient, consumer.ackMode)
	})
}

func TestConsumerRun(t *testing.T) {
	t.Run("counts deliveries and signals completion", func(t *testing.T) {
		sub := newFakeSubscription()
		subscriber := &fakeSubscriber{sub: sub}
		var buf bytes.Buffer

		consumer, err := NewConsumer(subscriber, demoRegistry(), 3,
			WithConsumerRecords(NewRecordLog(&buf)),
		)
		require.NoError(t, err)
		require.NoError(t, consumer.Run(context.Background()))
		assert.Equal(t, "demo.queue", subscriber.gotQueue)

		sub.deliver("Message 0 from X", "Message 1 from X", "Message 2 from X")

		select {
		case <-consumer.Done():
		case <-time.After(time.Second):
			t.Fatal("consumer never signalled completion")
		}

		assert.Equal(t, int64(3), consumer.Received())
		assert.NoError(t, consumer.Err())
	})

	t.Run("emits one receive record per delivery with matching fingerprint", func(t *testing.T) {
		sub := newFakeSubscription()
		var buf bytes.Buffer

		consumer, err := NewConsumer(&fakeSubscriber{sub: sub}, demoRegistry(), 2,
			WithConsumerIdentity("Consumer-main"),
			WithConsumerRecords(NewRecordLog(&buf)),
		)
		require.NoError(t, err)
		require.NoError(t, consumer.Run(context.Background()))

		texts := []string{"Message 0 from X", "Message 1 from X"}
		sub.deliver(texts...)
		<-consumer.Done()

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 3)
		for i, text := range texts {
			want := fmt.Sprintf("Received : %s : Consumer-main", Fingerprint(text))
			assert.Equal(t, want, lines[i])
		}
		assert.Regexp(t, `^Stopwatch : \d+ ms$`, lines[2])
	})

	t.Run("stopwatch line appears exactly once even with extra deliveries", func(t *testing.T) {
		sub := newFakeSubscription()
		var buf bytes.Buffer

		consumer, err := NewConsumer(&fakeSubscriber{sub: sub}, demoRegistry(), 2,
			WithConsumerRecords(NewRecordLog(&buf)),
		)
		require.NoError(t, err)
		require.NoError(t, consumer.Run(context.Background()))

		sub.deliver("a", "b", "c", "d")
		<-consumer.Done()

		assert.Eventually(t, func() bool {
			return consumer.Received() == 4
		}, time.Second, 5*time.Millisecond)

		assert.Equal(t, 1, strings.Count(buf.String(), "Stopwatch"))
		assert.Equal(t, 4, strings.Count(buf.String(), "Received"))
	})

	t.Run("duplicate delivery logs a duplicate record", func(t *testing.T) {
		sub := newFakeSubscription()
		var buf bytes.Buffer

		consumer, err := NewConsumer(&fakeSubscriber{sub: sub}, demoRegistry(), 2,
			WithConsumerRecords(NewRecordLog(&buf)),
		)
		require.NoError(t, err)
		require.NoError(t, consumer.Run(context.Background()))

		sub.deliver("Message 0 from X", "Message 0 from X")
		<-consumer.Done()

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, lines[0], lines[1])
	})

	t.Run("client mode acknowledges before counting", func(t *testing.T) {
		sub := newFakeSubscription()

		consumer, err := NewConsumer(&fakeSubscriber{sub: sub}, demoRegistry(), 3,
			WithConsumerAckMode(AckClient),
			WithConsumerRecords(NewRecordLog(&bytes.Buffer{})),
		)
		require.NoError(t, err)
		require.NoError(t, consumer.Run(context.Background()))

		var countsAtAck []int64
		deliveries := make([]*fakeDelivery, 3)
		for i := range deliveries {
			deliveries[i] = &fakeDelivery{
				body:  []byte(fmt.Sprintf("Message %d from X", i)),
				onAck: func() { countsAtAck = append(countsAtAck, consumer.Received()) },
			}
			sub.out <- deliveries[i]
		}
		<-consumer.Done()

		for _, d := range deliveries {
			assert.True(t, d.acked)
		}
		assert.Equal(t, []int64{0, 1, 2}, countsAtAck)
	})

	t.Run("auto mode never acknowledges explicitly", func(t *testing.T) {
		sub := newFakeSubscription()

		consumer, err := NewConsumer(&fakeSubscriber{sub: sub}, demoRegistry(), 1,
			WithConsumerRecords(NewRecordLog(&bytes.Buffer{})),
		)
		require.NoError(t, err)
		require.NoError(t, consumer.Run(context.Background()))

		d := &fakeDelivery{body: []byte("Message 0 from X")}
		sub.out <- d
		<-consumer.Done()

		assert.False(t, d.acked)
		assert.Equal(t, 0, sub.committed)
	})

	t.Run("transacted mode commits per delivery", func(t *testing.T) {
		sub := newFakeSubscription()

		consumer, err := NewConsumer(&fakeSubscriber{sub: sub}, demoRegistry(), 2,
			WithConsumerAckMode(AckTransacted),
			WithConsumerRecords(NewRecordLog(&bytes.Buffer{})),
		)
		require.NoError(t, err)
		require.NoError(t, consumer.Run(context.Background()))

		sub.deliver("a", "b")
		<-consumer.Done()

		assert.Equal(t, 2, sub.committed)
	})

	t.Run("acknowledge failure is fatal and stops the worker", func(t *testing.T) {
		sub := newFakeSubscription()

		consumer, err := NewConsumer(&fakeSubscriber{sub: sub}, demoRegistry(), 2,
			WithConsumerAckMode(AckClient),
			WithConsumerRecords(NewRecordLog(&bytes.Buffer{})),
		)
		require.NoError(t, err)
		require.NoError(t, consumer.Run(context.Background()))

		sub.out <- &fakeDelivery{body: []byte("a"), ackErr: errors.New("channel closed")}
		sub.deliver("b")

		assert.Eventually(t, func() bool {
			return consumer.Err() != nil
		}, time.Second, 5*time.Millisecond)

		// The failed delivery was recorded but never counted, and the worker
		// stopped before the next message.
		assert.Equal(t, int64(0), consumer.Received())
	})

	t.Run("unresolvable destination is fatal", func(t *testing.T) {
		consumer, err := NewConsumer(&fakeSubscriber{sub: newFakeSubscription()}, directory.NewRegistry(), 1)
		require.NoError(t, err)

		err = consumer.Run(context.Background())
		assert.ErrorIs(t, err, directory.ErrNameNotFound)
	})

	t.Run("subscribe failure is fatal", func(t *testing.T) {
		consumer, err := NewConsumer(&fakeSubscriber{err: errors.New("no connection")}, demoRegistry(), 1)
		require.NoError(t, err)

		err = consumer.Run(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "subscribe")
	})

	t.Run("Close releases the subscription and is idempotent", func(t *testing.T) {
		sub := newFakeSubscription()

		consumer, err := NewConsumer(&fakeSubscriber{sub: sub}, demoRegistry(), 1)
		require.NoError(t, err)
		require.NoError(t, consumer.Run(context.Background()))

		assert.NoError(t, consumer.Close())
		assert.True(t, sub.closed)
		assert.NoError(t, consumer.Close())
	})

	t.Run("Close before Run is a no-op", func(t *testing.T) {
		consumer, err := NewConsumer(&fakeSubscriber{sub: newFakeSubscription()}, demoRegistry(), 1)
		require.NoError(t, err)

		assert.NoError(t, consumer.Close())
	})
}
