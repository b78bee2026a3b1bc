package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/snippad/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventFile carries file lifecycle updates.
	EventFile EventType = "file"
	// EventResult carries a new run result.
	EventResult EventType = "result"
	// EventTerminal carries terminal lines.
	EventTerminal EventType = "terminal"
)

// Event represents a transport-facing event emitted by the core service.
type Event struct {
	Type     EventType
	File     schema.FileEvent
	Result   schema.ResultEvent
	Terminal schema.TerminalEvent
}

// Bus fans events out to per-workspace subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.WorkspaceID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.WorkspaceID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the workspace and returns a channel + cancel.
func (b *Bus) Subscribe(workspaceID schema.WorkspaceID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	wsSubs := b.subs[workspaceID]
	if wsSubs == nil {
		wsSubs = make(map[chan Event]struct{})
		b.subs[workspaceID] = wsSubs
	}
	wsSubs[ch] = struct{}{}
	count := len(wsSubs)
	b.mu.Unlock()
	b.log.With("workspace", workspaceID).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[workspaceID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, workspaceID)
				}
			}
			close(ch)
			b.mu.Unlock()
			b.log.With("workspace", workspaceID).Debug("eventbus unsubscribe")
		})
	}
}

// OnFileEvent publishes a file event.
func (b *Bus) OnFileEvent(event schema.FileEvent) {
	b.publish(event.WorkspaceID, Event{Type: EventFile, File: event})
}

// OnResult publishes a result event.
func (b *Bus) OnResult(event schema.ResultEvent) {
	b.publish(event.WorkspaceID, Event{Type: EventResult, Result: event})
}

// OnTerminalOutput publishes a terminal event.
func (b *Bus) OnTerminalOutput(event schema.TerminalEvent) {
	b.publish(event.WorkspaceID, Event{Type: EventTerminal, Terminal: event})
}

func (b *Bus) publish(workspaceID schema.WorkspaceID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	wsSubs := b.subs[workspaceID]
	if len(wsSubs) == 0 {
		return
	}
	dropped := 0
	for sub := range wsSubs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.With("workspace", workspaceID).Trace("eventbus dropped", "count", dropped)
	}
}
