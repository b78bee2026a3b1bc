package httpapi

import (
	"testing"

	"pkt.systems/snippad/schema"
)

func TestHubPublishesPerWorkspace(t *testing.T) {
	hub := NewHub(10)
	ch, unsub, seq := hub.Subscribe("a")
	defer unsub()
	if seq != 0 {
		t.Fatalf("seq = %d, want 0", seq)
	}
	hub.OnTerminalOutput(schema.TerminalEvent{WorkspaceID: "b", Lines: []string{"other"}})
	hub.OnResult(schema.ResultEvent{WorkspaceID: "a", Result: schema.RunResult{FileID: 2, Output: "hi"}})

	select {
	case event := <-ch:
		if event.Type != "result" || event.Result == nil || event.Result.Output != "hi" {
			t.Fatalf("unexpected event: %+v", event)
		}
		if event.Seq != 1 {
			t.Fatalf("seq = %d, want 1", event.Seq)
		}
	default:
		t.Fatalf("expected an event")
	}
	select {
	case event := <-ch:
		t.Fatalf("unexpected event from another workspace: %+v", event)
	default:
	}
}

func TestHubReplayAndHistoryBound(t *testing.T) {
	hub := NewHub(3)
	for i := 0; i < 5; i++ {
		hub.OnFileEvent(schema.FileEvent{
			WorkspaceID: "a",
			Type:        schema.FileEventUpdated,
			File:        schema.FileSnapshot{ID: schema.FileID(i + 1)},
		})
	}
	events := hub.Replay("a", 0)
	if len(events) != 3 {
		t.Fatalf("history = %d, want 3", len(events))
	}
	if events[0].Seq != 3 || events[2].Seq != 5 {
		t.Fatalf("unexpected seqs: %d..%d", events[0].Seq, events[2].Seq)
	}
	if got := hub.Replay("a", 4); len(got) != 1 || got[0].File.ID != 5 {
		t.Fatalf("unexpected replay after 4: %+v", got)
	}
	if hub.Replay("missing", 0) != nil {
		t.Fatalf("expected nil replay for unknown workspace")
	}
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(0)
	ch, unsub, _ := hub.Subscribe("a")
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	hub.OnTerminalOutput(schema.TerminalEvent{WorkspaceID: "a", Lines: []string{"x"}})
}

func TestHubDropsStaleGenerations(t *testing.T) {
	hub := NewHub(10)
	result := func(gen uint64, status schema.RunStatus) schema.ResultEvent {
		return schema.ResultEvent{WorkspaceID: "a", Result: schema.RunResult{FileID: 4, Generation: gen, Status: status}}
	}
	hub.OnResult(result(1, schema.RunStatusRunning))
	hub.OnResult(result(2, schema.RunStatusRunning))
	hub.OnResult(result(1, schema.RunStatusSuccess))
	hub.OnResult(result(2, schema.RunStatusSuccess))

	events := hub.Replay("a", 0)
	if len(events) != 3 {
		t.Fatalf("expected stale result dropped, got %d events", len(events))
	}
	last := events[len(events)-1].Result
	if last.Generation != 2 || last.Status != schema.RunStatusSuccess {
		t.Fatalf("unexpected last result: %+v", last)
	}

	hub.OnFileEvent(schema.FileEvent{WorkspaceID: "a", Type: schema.FileEventDeleted, File: schema.FileSnapshot{ID: 4}})
	hub.OnResult(result(1, schema.RunStatusRunning))
	if got := hub.Replay("a", events[len(events)-1].Seq+1); len(got) != 1 || got[0].Result == nil {
		t.Fatalf("expected a reused file id to start over, got %+v", got)
	}
}

func TestHubReleaseKeepsSubscribedWorkspaces(t *testing.T) {
	hub := NewHub(10)
	hub.OnTerminalOutput(schema.TerminalEvent{WorkspaceID: "a", Lines: []string{"x"}})
	_, unsub, _ := hub.Subscribe("b")
	if !hub.Release("a") {
		t.Fatalf("expected idle workspace to be released")
	}
	if hub.Replay("a", 0) != nil {
		t.Fatalf("expected released history to be gone")
	}
	if hub.Release("b") {
		t.Fatalf("expected subscribed workspace to stay")
	}
	unsub()
	if !hub.Release("b") {
		t.Fatalf("expected workspace released after unsubscribe")
	}
}
