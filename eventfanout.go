package snippad

import (
	"pkt.systems/pslog"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/schema"
)

// eventFanout delivers workspace events to every front end sink. A sink that
// panics is logged and skipped so the remaining front ends still see the event.
type eventFanout struct {
	sinks  []core.EventSink
	logger pslog.Logger
}

// newEventFanout returns nil when no sinks are given and the sink itself when
// only one is, so the service talks to a single front end directly.
func newEventFanout(logger pslog.Logger, sinks ...core.EventSink) core.EventSink {
	live := make([]core.EventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			live = append(live, sink)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return eventFanout{sinks: live, logger: logger}
}

func (f eventFanout) OnFileEvent(event schema.FileEvent) {
	for _, sink := range f.sinks {
		f.deliver(event.WorkspaceID, "file", func() { sink.OnFileEvent(event) })
	}
}

func (f eventFanout) OnResult(event schema.ResultEvent) {
	for _, sink := range f.sinks {
		f.deliver(event.WorkspaceID, "result", func() { sink.OnResult(event) })
	}
}

func (f eventFanout) OnTerminalOutput(event schema.TerminalEvent) {
	for _, sink := range f.sinks {
		f.deliver(event.WorkspaceID, "terminal", func() { sink.OnTerminalOutput(event) })
	}
}

func (f eventFanout) deliver(workspaceID schema.WorkspaceID, kind string, send func()) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("server event sink panicked", "workspace", workspaceID, "event", kind, "panic", r)
		}
	}()
	send()
}
