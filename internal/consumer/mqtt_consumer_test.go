package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqttcommon "vibration-monitor/common/mqtt"
	"vibration-monitor/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]mqttcommon.MessageHandler
	unsubscribed []string
	failOn       string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]mqttcommon.MessageHandler)}
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	if topic == f.failOn {
		return errors.New("subscribe refused")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

func (f *fakeSubscriber) deliver(filter, topic, payload string) error {
	f.mu.Lock()
	h := f.handlers[filter]
	f.mu.Unlock()
	return h(topic, []byte(payload))
}

func (f *fakeSubscriber) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type recordingIngester struct {
	mu     sync.Mutex
	topics []string
	active int
	maxPar int
}

func (r *recordingIngester) Ingest(ctx context.Context, topic string, payload []byte) error {
	r.mu.Lock()
	r.active++
	if r.active > r.maxPar {
		r.maxPar = r.active
	}
	r.topics = append(r.topics, topic)
	r.mu.Unlock()

	time.Sleep(time.Millisecond)

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	return errors.New("ignored")
}

func (r *recordingIngester) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func TestMQTTConsumer_ProcessesInOrderSequentially(t *testing.T) {
	sub := newFakeSubscriber()
	ing := &recordingIngester{}
	topics := []string{"Pompa1/Vibration/#", "Pompa2/Vibration/#"}
	c := NewMQTTConsumer(sub, ing, topics, 1, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return sub.subscribed() == 2 }, time.Second, 5*time.Millisecond)

	want := []string{
		"Pompa1/Vibration/rms",
		"Pompa2/Vibration/kategori",
		"Pompa1/Vibration/kategori",
	}
	require.NoError(t, sub.deliver(topics[0], want[0], "1.0"))
	require.NoError(t, sub.deliver(topics[1], want[1], "4"))
	require.NoError(t, sub.deliver(topics[0], want[2], "3"))

	require.Eventually(t, func() bool { return len(ing.seen()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, ing.seen())
	assert.Equal(t, 1, ing.maxPar)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, c.Stop(stopCtx))
	require.NoError(t, <-errCh)
	assert.ElementsMatch(t, topics, sub.unsubscribed)

	// 停止后的消息被丢弃
	assert.Error(t, sub.deliver(topics[0], "Pompa1/Vibration/rms", "1"))
}

func TestMQTTConsumer_NoTopics(t *testing.T) {
	c := NewMQTTConsumer(newFakeSubscriber(), &recordingIngester{}, nil, 0, nil, zap.NewNop())
	assert.Error(t, c.Start(context.Background()))
}

func TestMQTTConsumer_SubscribeFailure(t *testing.T) {
	sub := newFakeSubscriber()
	sub.failOn = "bad/#"
	c := NewMQTTConsumer(sub, &recordingIngester{}, []string{"bad/#"}, 0, nil, zap.NewNop())

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad/#")
}

func TestMQTTConsumer_ContextCancelStops(t *testing.T) {
	c := NewMQTTConsumer(newFakeSubscriber(), &recordingIngester{}, []string{"a/b/#"}, 0, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on context cancel")
	}
}

type slowIngester struct {
	mu    sync.Mutex
	count int
	delay time.Duration
}

func (s *slowIngester) Ingest(ctx context.Context, topic string, payload []byte) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

func (s *slowIngester) processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type dropCounter struct {
	metrics.Nop
	mu      sync.Mutex
	dropped map[string]int
}

func (d *dropCounter) MessageDropped(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dropped == nil {
		d.dropped = make(map[string]int)
	}
	d.dropped[reason]++
}

func TestMQTTConsumer_StopDrainsQueue(t *testing.T) {
	sub := newFakeSubscriber()
	ing := &slowIngester{delay: 20 * time.Millisecond}
	rec := &dropCounter{}
	topics := []string{"Pompa1/Vibration/#"}
	c := NewMQTTConsumer(sub, ing, topics, 0, rec, zap.NewNop())

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()
	require.Eventually(t, func() bool { return sub.subscribed() == 1 }, time.Second, 5*time.Millisecond)

	const sent = 10
	for i := 0; i < sent; i++ {
		require.NoError(t, sub.deliver(topics[0], "Pompa1/Vibration/rms", "1.0"))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(stopCtx))
	require.NoError(t, <-errCh)

	// 已入队的消息全部处理，没有计为丢弃
	assert.Equal(t, sent, ing.processed())
	assert.Zero(t, rec.dropped[metrics.DropShutdown])

	assert.Error(t, sub.deliver(topics[0], "Pompa1/Vibration/rms", "1.0"))
	assert.Equal(t, 1, rec.dropped[metrics.DropShutdown])
	assert.Equal(t, sent, ing.processed())
}

func TestMQTTConsumer_StopAfterFailedStart(t *testing.T) {
	c := NewMQTTConsumer(newFakeSubscriber(), &recordingIngester{}, nil, 0, nil, zap.NewNop())
	require.Error(t, c.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, c.Stop(stopCtx))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
