package core

import (
	"encoding/json"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/snippad/schema"
)

// outbox collects side effects produced while the service lock is held so
// they can run after it is released. Every outbox must be flushed: its
// ticket holds back later flushes of the same workspace.
type outbox struct {
	workspace schema.WorkspaceID
	queue     *flushQueue
	ticket    uint64
	files     []schema.FileEvent
	results   []schema.ResultEvent
	terminal  []schema.TerminalEvent
	writes    []kvWrite
	jobs      []*remoteJob
	purge     bool
}

type kvWrite struct {
	key    string
	value  string
	delete bool
}

// newOutbox must be called with s.mu held so tickets follow mutation order.
func newOutbox(ws *workspace) *outbox {
	return &outbox{workspace: ws.id, queue: ws.flushes, ticket: ws.flushes.take()}
}

// flushQueue hands out tickets in lock order and lets flushes of one
// workspace run strictly in ticket order.
type flushQueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	next uint64
	done uint64
}

func newFlushQueue() *flushQueue {
	q := &flushQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *flushQueue) take() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	ticket := q.next
	q.next++
	return ticket
}

func (q *flushQueue) wait(ticket uint64) {
	q.mu.Lock()
	for q.done != ticket {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

func (q *flushQueue) finish() {
	q.mu.Lock()
	q.done++
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (o *outbox) fileEvent(ws *workspace, kind schema.FileEventType, f *file) {
	event := schema.FileEvent{
		WorkspaceID: ws.id,
		Type:        kind,
		ActiveFile:  ws.active,
		Order:       append([]schema.FileID(nil), ws.order...),
	}
	if f != nil {
		event.File = f.Snapshot(f.ID == ws.active)
	}
	o.files = append(o.files, event)
}

func (o *outbox) set(key, value string) {
	o.writes = append(o.writes, kvWrite{key: key, value: value})
}

func (o *outbox) setJSON(log pslog.Logger, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn("service kv encode failed", "key", key, "err", err)
		return
	}
	o.set(key, string(data))
}

func (o *outbox) saveFiles(log pslog.Logger, ws *workspace) {
	o.setJSON(log, keyFiles, ws.persistedFiles())
}

// flush emits events, applies best-effort writes and starts remote jobs.
// Outboxes of one workspace flush in the order their tickets were taken.
func (s *service) flush(log pslog.Logger, out *outbox) {
	if out == nil {
		return
	}
	if out.queue != nil {
		out.queue.wait(out.ticket)
		defer out.queue.finish()
	}
	if s.sink != nil {
		for _, event := range out.files {
			s.sink.OnFileEvent(event)
		}
		for _, event := range out.results {
			s.sink.OnResult(event)
		}
		for _, event := range out.terminal {
			s.sink.OnTerminalOutput(event)
		}
	}
	if s.store != nil {
		for _, w := range out.writes {
			var err error
			if w.delete {
				err = s.store.Delete(out.workspace, w.key)
			} else {
				err = s.store.Set(out.workspace, w.key, w.value)
			}
			if err != nil {
				log.Warn("service kv write failed", "key", w.key, "err", err)
			}
		}
		if out.purge {
			s.purgeStore(log, out.workspace)
		}
	}
	for _, job := range out.jobs {
		go s.runRemote(job)
	}
}
