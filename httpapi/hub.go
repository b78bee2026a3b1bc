package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq        uint64               `json:"seq"`
	Type       string               `json:"type"`
	FileEvent  string               `json:"file_event,omitempty"`
	File       *schema.FileSnapshot `json:"file,omitempty"`
	ActiveFile schema.FileID        `json:"active_file,omitempty"`
	Order      []schema.FileID      `json:"order,omitempty"`
	Result     *schema.RunResult    `json:"result,omitempty"`
	Lines      []string             `json:"lines,omitempty"`
	Cleared    bool                 `json:"cleared,omitempty"`
	Snapshot   *SnapshotPayload     `json:"snapshot,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Workspace schema.WorkspaceSnapshot `json:"workspace"`
	Terminal  schema.TerminalSnapshot  `json:"terminal"`
}

// Hub broadcasts events per workspace and keeps a bounded history for replay.
type Hub struct {
	mu          sync.Mutex
	workspaces  map[schema.WorkspaceID]*workspaceHub
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		workspaces:  make(map[schema.WorkspaceID]*workspaceHub),
		historySize: historySize,
	}
}

// OnFileEvent implements core.EventSink.
func (h *Hub) OnFileEvent(event schema.FileEvent) {
	log := logx.WithWorkspace(context.Background(), event.WorkspaceID)
	log.Trace("hub file event", "type", event.Type, "file", int(event.File.ID), "active", int(event.ActiveFile))
	file := event.File
	out := StreamEvent{
		Type:       "file",
		FileEvent:  string(event.Type),
		ActiveFile: event.ActiveFile,
		Order:      event.Order,
		Timestamp:  time.Now(),
	}
	if file.ID != 0 {
		out.File = &file
	}
	if event.Type == schema.FileEventDeleted && file.ID != 0 {
		h.mu.Lock()
		if wh := h.workspaces[event.WorkspaceID]; wh != nil {
			delete(wh.generations, file.ID)
		}
		h.mu.Unlock()
	}
	h.publish(event.WorkspaceID, out)
}

// OnResult implements core.EventSink. Results older than the last
// generation seen for the file are dropped.
func (h *Hub) OnResult(event schema.ResultEvent) {
	log := logx.WithWorkspaceFile(context.Background(), event.WorkspaceID, event.Result.FileID)
	result := event.Result
	h.mu.Lock()
	wh := h.getOrCreateLocked(event.WorkspaceID)
	if last, ok := wh.generations[result.FileID]; ok && result.Generation < last {
		h.mu.Unlock()
		log.Debug("hub stale result dropped", "generation", result.Generation, "last_generation", last)
		return
	}
	wh.generations[result.FileID] = result.Generation
	h.mu.Unlock()
	log.Trace("hub result event", "status", result.Status, "generation", result.Generation)
	h.publish(event.WorkspaceID, StreamEvent{
		Type:      "result",
		Result:    &result,
		Timestamp: time.Now(),
	})
}

// OnTerminalOutput implements core.EventSink.
func (h *Hub) OnTerminalOutput(event schema.TerminalEvent) {
	log := logx.WithWorkspace(context.Background(), event.WorkspaceID)
	log.Trace("hub terminal event", "lines", len(event.Lines), "cleared", event.Cleared)
	h.publish(event.WorkspaceID, StreamEvent{
		Type:      "terminal",
		Lines:     event.Lines,
		Cleared:   event.Cleared,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a subscriber for a workspace and returns the current seq.
func (h *Hub) Subscribe(workspaceID schema.WorkspaceID) (<-chan StreamEvent, func(), uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	wh := h.getOrCreateLocked(workspaceID)
	ch := make(chan StreamEvent, 256)
	wh.subs[ch] = struct{}{}
	seq := wh.seq
	log := logx.WithWorkspace(context.Background(), workspaceID)
	log.Info("hub subscribe", "subs", len(wh.subs), "history", len(wh.history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(wh.subs, ch)
			close(ch)
			remaining := len(wh.subs)
			h.mu.Unlock()
			log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(workspaceID schema.WorkspaceID, after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	wh := h.workspaces[workspaceID]
	if wh == nil {
		return nil
	}
	events := make([]StreamEvent, 0, len(wh.history))
	for _, event := range wh.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	logx.WithWorkspace(context.Background(), workspaceID).Debug("hub replay", "after", after, "count", len(events))
	return events
}

// publish holds the lock while sending so unsubscribe cannot close a channel
// mid-send; sends never block.
func (h *Hub) publish(workspaceID schema.WorkspaceID, event StreamEvent) {
	h.mu.Lock()
	wh := h.getOrCreateLocked(workspaceID)
	wh.seq++
	event.Seq = wh.seq
	wh.history = append(wh.history, event)
	if len(wh.history) > h.historySize {
		wh.history = wh.history[len(wh.history)-h.historySize:]
	}
	dropped := 0
	for sub := range wh.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		logx.WithWorkspace(context.Background(), workspaceID).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}

func (h *Hub) getOrCreateLocked(workspaceID schema.WorkspaceID) *workspaceHub {
	wh := h.workspaces[workspaceID]
	if wh == nil {
		wh = &workspaceHub{
			subs:        make(map[chan StreamEvent]struct{}),
			generations: make(map[schema.FileID]uint64),
		}
		h.workspaces[workspaceID] = wh
	}
	return wh
}

type workspaceHub struct {
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	generations map[schema.FileID]uint64
}

// Release drops a workspace's history once nobody is subscribed.
func (h *Hub) Release(workspaceID schema.WorkspaceID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	wh := h.workspaces[workspaceID]
	if wh == nil {
		return true
	}
	if len(wh.subs) > 0 {
		return false
	}
	delete(h.workspaces, workspaceID)
	return true
}
