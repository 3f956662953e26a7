package realtime

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// queueSize bounds the intake queue between publishers and the
	// broadcast loop.
	queueSize = 256
	// subscriberBuffer bounds each subscriber's delivery channel.
	subscriberBuffer = 200
)

// Broadcaster fans messages out from node executors to UI subscribers.
//
// Publish performs a non-blocking send into a bounded queue; a single
// broadcast goroutine drains the queue and delivers to subscribers with
// non-blocking sends as well. Messages published by one sequentially
// executing run arrive in publication order per node; cross-node interleaving
// carries no guarantee.
type Broadcaster struct {
	mu          sync.RWMutex
	queue       chan Message
	subscribers []*subscription
	closed      bool
	done        chan struct{}
	log         *logrus.Logger
}

// subscription represents a single message subscriber.
type subscription struct {
	ch       chan Message
	channels map[string]bool // nil means all channels
}

// NewBroadcaster creates a broadcaster and starts its delivery loop.
func NewBroadcaster(log *logrus.Logger) *Broadcaster {
	if log == nil {
		log = logrus.StandardLogger()
	}

	b := &Broadcaster{
		queue:       make(chan Message, queueSize),
		subscribers: make([]*subscription, 0),
		done:        make(chan struct{}),
		log:         log,
	}
	go b.run()
	return b
}

// Publish enqueues a message without blocking. If the queue is full the
// message is dropped; delivery is best-effort and not required for run
// correctness.
func (b *Broadcaster) Publish(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	select {
	case b.queue <- msg:
	default:
		b.log.WithFields(logrus.Fields{
			"channel": msg.Channel,
			"node_id": msg.NodeID,
		}).Warn("realtime queue full, dropping message")
	}
}

// Subscribe returns a channel receiving all published messages.
func (b *Broadcaster) Subscribe() <-chan Message {
	return b.subscribe(nil)
}

// SubscribeChannels returns a channel receiving only messages published on
// the named channels.
func (b *Broadcaster) SubscribeChannels(channels ...string) <-chan Message {
	filter := make(map[string]bool, len(channels))
	for _, ch := range channels {
		filter[ch] = true
	}
	return b.subscribe(filter)
}

func (b *Broadcaster) subscribe(filter map[string]bool) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Message)
		close(ch)
		return ch
	}

	sub := &subscription{
		ch:       make(chan Message, subscriberBuffer),
		channels: filter,
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// Unsubscribe closes and removes a subscription.
func (b *Broadcaster) Unsubscribe(ch <-chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.ch == ch {
			close(sub.ch)
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			break
		}
	}
}

// Close stops the delivery loop and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
}

// run is the single delivery goroutine.
func (b *Broadcaster) run() {
	for {
		select {
		case <-b.done:
			b.drainAndClose()
			return
		case msg := <-b.queue:
			b.deliver(msg)
		}
	}
}

func (b *Broadcaster) deliver(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.channels != nil && !sub.channels[msg.Channel] {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Subscriber buffer full, drop rather than block delivery.
		}
	}
}

func (b *Broadcaster) drainAndClose() {
	// Flush anything already queued before closing subscriber channels.
	for {
		select {
		case msg := <-b.queue:
			b.deliver(msg)
		default:
			b.mu.Lock()
			for _, sub := range b.subscribers {
				close(sub.ch)
			}
			b.subscribers = nil
			b.mu.Unlock()
			return
		}
	}
}
