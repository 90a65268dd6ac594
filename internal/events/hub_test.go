package events

import (
	"testing"
	"time"

	"ghibli-stylizer/internal/logger"
)

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(logger.NewDiscard())

	// No Run loop is draining the queue; once it fills, events must be
	// dropped rather than blocking the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Publish(Event{Type: TypeTransformStarted, Name: "photo.png"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with a full queue")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", hub.ClientCount())
	}
}

func TestStopIdempotent(t *testing.T) {
	hub := NewHub(logger.NewDiscard())

	finished := make(chan struct{})
	go func() {
		hub.Run()
		close(finished)
	}()

	hub.Stop()
	hub.Stop()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRegisterAfterStopReturns(t *testing.T) {
	hub := NewHub(logger.NewDiscard())
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.Register(nil)
		hub.Unregister(nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Register hung after Stop")
	}
}
