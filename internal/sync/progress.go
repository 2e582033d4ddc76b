package sync

import (
	"sync"
	"time"
)

// Phase identifies what a progress event reports
type Phase string

const (
	PhaseCounting       Phase = "counting"
	PhasePageLoaded     Phase = "page-loaded"
	PhaseEntryProcessed Phase = "entry-processed"
	PhaseHeartbeat      Phase = "heartbeat"
	PhaseComplete       Phase = "complete"
	PhaseError          Phase = "error"
)

// ProgressEvent is one progress update. Percent is non-decreasing within
// a run; the broadcaster enforces that.
type ProgressEvent struct {
	Phase   Phase       `json:"phase"`
	Total   int         `json:"total"`
	Done    int         `json:"done"`
	Percent int         `json:"percent"`
	Message string      `json:"message,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Percentage weight bands per phase. Each phase advances within its band
// so the overall percentage stays monotonic across phases.
const (
	bandCountingEnd = 5
	bandFetchEnd    = 60
	bandPersistEnd  = 95
	bandGrantsEnd   = 100
)

// bandPercent maps done/total progress into the [lo, hi] band. With an
// unknown total it pins to the band floor.
func bandPercent(lo, hi, done, total int) int {
	if total <= 0 {
		return lo
	}
	if done > total {
		done = total
	}
	return lo + (hi-lo)*done/total
}

const subscriberBuffer = 64

// Broadcaster fans progress events out to subscribers. Delivery is
// best-effort: a subscriber that stops draining loses events rather than
// blocking the run. Subscribers registered mid-run receive only events
// published after registration.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[int]chan ProgressEvent
	nextID      int
	lastPercent int
	lastEvent   time.Time
	closed      bool

	heartbeatStop chan struct{}
	heartbeatOnce sync.Once
}

// NewBroadcaster creates a broadcaster. A heartbeat interval > 0 starts a
// keep-alive ticker that emits an event whenever the run has been idle for
// that long.
func NewBroadcaster(heartbeat time.Duration) *Broadcaster {
	b := &Broadcaster{
		subscribers:   make(map[int]chan ProgressEvent),
		lastEvent:     time.Now(),
		heartbeatStop: make(chan struct{}),
	}
	if heartbeat > 0 {
		go b.heartbeatLoop(heartbeat)
	}
	return b
}

// Subscribe registers a new subscriber. The returned cancel function
// removes the subscription and closes the channel; it is safe to call
// concurrently with Publish.
func (b *Broadcaster) Subscribe() (<-chan ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan ProgressEvent, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all current subscribers. The percent is
// clamped so the published sequence never decreases; terminal and
// heartbeat events pass through with the clamped value.
func (b *Broadcaster) Publish(event ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if event.Percent < b.lastPercent {
		event.Percent = b.lastPercent
	}
	b.lastPercent = event.Percent
	b.lastEvent = time.Now()

	b.deliver(event)
}

// SubscriberCount returns how many subscribers are currently registered
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close stops the heartbeat and closes all subscriber channels
func (b *Broadcaster) Close() {
	b.heartbeatOnce.Do(func() {
		close(b.heartbeatStop)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub)
	}
}

func (b *Broadcaster) deliver(event ProgressEvent) {
	for _, sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// slow subscriber, drop rather than block the run
		}
	}
}

func (b *Broadcaster) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.heartbeatStop:
			return
		case <-ticker.C:
			b.mu.Lock()
			if b.closed {
				b.mu.Unlock()
				return
			}
			if time.Since(b.lastEvent) >= interval {
				b.lastEvent = time.Now()
				b.deliver(ProgressEvent{
					Phase:   PhaseHeartbeat,
					Percent: b.lastPercent,
				})
			}
			b.mu.Unlock()
		}
	}
}
