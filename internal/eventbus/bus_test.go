package eventbus

import (
	"testing"
	"time"

	"pkt.systems/snippad/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("alice")
	defer cancel()

	event := schema.ResultEvent{WorkspaceID: "alice", Result: schema.RunResult{FileID: 2, Output: "hi"}}
	bus.OnResult(event)

	select {
	case got := <-ch:
		if got.Type != EventResult {
			t.Fatalf("expected result event, got %v", got.Type)
		}
		if got.Result.Result.FileID != 2 || got.Result.Result.Output != "hi" {
			t.Fatalf("unexpected payload: %+v", got.Result)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestPublishIsScopedToWorkspace(t *testing.T) {
	bus := New(nil)
	alice, cancelAlice := bus.Subscribe("alice")
	defer cancelAlice()
	bob, cancelBob := bus.Subscribe("bob")
	defer cancelBob()

	bus.OnTerminalOutput(schema.TerminalEvent{WorkspaceID: "bob", Lines: []string{"x"}})
	select {
	case got := <-bob:
		if got.Type != EventTerminal {
			t.Fatalf("unexpected event type %v", got.Type)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for bob's event")
	}
	select {
	case got := <-alice:
		t.Fatalf("alice received bob's event: %+v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("alice")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe("alice")
	defer cancel()

	var sendCh chan Event
	bus.mu.Lock()
	for ch := range bus.subs["alice"] {
		sendCh = ch
		break
	}
	bus.mu.Unlock()
	if sendCh == nil {
		t.Fatalf("expected subscriber channel")
	}
	sendCh <- Event{Type: EventFile}
	done := make(chan struct{})
	go func() {
		bus.OnFileEvent(schema.FileEvent{WorkspaceID: "alice"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
}
