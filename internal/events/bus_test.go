package events

import (
	"testing"
	"time"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/types"
)

func TestPublishFanOut(t *testing.T) {
	b := NewBus()
	ch1, cancel1 := b.Subscribe(4)
	ch2, cancel2 := b.Subscribe(4)
	defer cancel1()
	defer cancel2()

	b.Publish(Event{Type: TypeLifeStatus, AppID: "com.test.app", Status: types.LifeStatusLaunching})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.AppID != "com.test.app" {
				t.Errorf("Expected app id, got %s", e.AppID)
			}
			if e.Timestamp.IsZero() {
				t.Error("Expected timestamp to be set")
			}
		case <-time.After(time.Second):
			t.Fatal("Subscriber did not receive event")
		}
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: TypeLifecycleEvent})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe(1)
	if b.SubscriberCount() != 1 {
		t.Fatal("Expected one subscriber")
	}
	cancel()
	if b.SubscriberCount() != 0 {
		t.Error("Expected subscriber to be removed")
	}
	cancel() // second cancel is a no-op
}
