// Package events provides the typed notification bus the orchestrator
// publishes to.
//
// Subscribers receive life-status changes, lifecycle events, foreground-app
// changes and running-list changes over buffered channels. Publishing never
// blocks; a subscriber that falls behind loses events rather than stalling
// the lifecycle loop.
package events

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

// Type discriminates bus events
type Type string

const (
	TypeLifeStatus        Type = "lifeStatusChanged"
	TypeLifecycleEvent    Type = "lifecycleEvent"
	TypeForegroundChanged Type = "foregroundAppChanged"
	TypeRunningList       Type = "runningListChanged"
)

// Event is one notification published on the bus
type Event struct {
	Type      Type                   `json:"type"`
	AppID     string                 `json:"appId,omitempty"`
	Status    types.LifeStatus       `json:"status,omitempty"`
	Event     types.LifeEvent        `json:"event,omitempty"`
	Running   []types.RunningApp     `json:"running,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type subscriber struct {
	ch chan Event
}

// Bus fans events out to all subscribers
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers e to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			// Slow subscriber; drop rather than stall the loop.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
