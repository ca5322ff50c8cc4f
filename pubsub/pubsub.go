package pubsub

import (
	"sync"

	"github.com/placeloop/go-common/logger"
)

// Handler receives values published to a Topic.
type Handler[T any] func(T)

type topicOptions struct {
	log        logger.Logger
	replayLast bool
}

type TopicOption func(*topicOptions)

// WithLogger sets the logger used to report subscriber panics. Defaults to a console logger.
func WithLogger(log logger.Logger) TopicOption {
	return func(o *topicOptions) { o.log = log }
}

// WithReplayLast delivers the most recently published value (if any) to late
// subscribers at the moment they subscribe.
func WithReplayLast() TopicOption {
	return func(o *topicOptions) { o.replayLast = true }
}

type subscription[T any] struct {
	id uint64
	fn Handler[T]
}

// Topic fans published values out to subscribers, synchronously and in
// subscription order. A panicking subscriber is recovered and logged without
// affecting delivery to the others.
type Topic[T any] struct {
	mutex       sync.Mutex
	subscribers []subscription[T]
	nextID      uint64
	log         logger.Logger
	replayLast  bool
	last        T
	hasLast     bool
	closed      bool
}

// NewTopic creates a Topic for values of type T.
func NewTopic[T any](opts ...TopicOption) *Topic[T] {
	o := topicOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = logger.NewConsoleLogger()
	}
	return &Topic[T]{
		log:        o.log,
		replayLast: o.replayLast,
	}
}

// Subscribe registers fn and returns a function that removes it. Subscribing
// to a closed topic returns a no-op unsubscribe and fn is never invoked.
func (t *Topic[T]) Subscribe(fn Handler[T]) func() {
	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return func() {}
	}
	id := t.nextID
	t.nextID++
	t.subscribers = append(t.subscribers, subscription[T]{id: id, fn: fn})
	replay := t.replayLast && t.hasLast
	last := t.last
	t.mutex.Unlock()
	if replay {
		t.invoke(fn, last)
	}
	return func() {
		t.unsubscribe(id)
	}
}

// Publish delivers v to every current subscriber. Subscribers added or
// removed while a publish is in flight do not change the delivery set of
// that publish.
func (t *Topic[T]) Publish(v T) {
	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return
	}
	if t.replayLast {
		t.last = v
		t.hasLast = true
	}
	subs := make([]subscription[T], len(t.subscribers))
	copy(subs, t.subscribers)
	t.mutex.Unlock()
	for _, s := range subs {
		t.invoke(s.fn, v)
	}
}

// Len returns the current subscriber count.
func (t *Topic[T]) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.subscribers)
}

// Close drops all subscribers. Publish and Subscribe become no-ops.
func (t *Topic[T]) Close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.closed = true
	t.subscribers = nil
}

func (t *Topic[T]) unsubscribe(id uint64) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for i, s := range t.subscribers {
		if s.id == id {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			return
		}
	}
}

func (t *Topic[T]) invoke(fn Handler[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("subscriber panicked: %v", r)
		}
	}()
	fn(v)
}
