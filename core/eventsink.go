package core

import "pkt.systems/snippad/schema"

// EventSink receives file, result and terminal events from the core service.
type EventSink interface {
	OnFileEvent(event schema.FileEvent)
	OnResult(event schema.ResultEvent)
	OnTerminalOutput(event schema.TerminalEvent)
}
