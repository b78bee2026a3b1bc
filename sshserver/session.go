package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/term"

	"pkt.systems/pslog"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/internal/command"
	"pkt.systems/snippad/internal/eventbus"
	"pkt.systems/snippad/schema"
)

// terminalSession is a line-mode shell: x/term handles editing and history,
// command output arrives through the event bus.
type terminalSession struct {
	service     core.Service
	handler     CommandHandler
	workspaceID schema.WorkspaceID
	theme       tuiTheme
	term        *term.Terminal
	events      <-chan eventbus.Event

	mu          sync.Mutex
	echoes      map[string]int
	names       map[schema.FileID]string
	generations map[schema.FileID]uint64
}

func newTerminalSession(rw io.ReadWriter, service core.Service, handler CommandHandler, workspaceID schema.WorkspaceID, prompt string, theme tuiTheme, events <-chan eventbus.Event) *terminalSession {
	return &terminalSession{
		service:     service,
		handler:     handler,
		workspaceID: workspaceID,
		theme:       theme,
		term:        term.NewTerminal(rw, theme.stylePrompt(prompt)),
		events:      events,
		echoes:      make(map[string]int),
		names:       make(map[schema.FileID]string),
		generations: make(map[schema.FileID]uint64),
	}
}

func (t *terminalSession) SetSize(width, height int) {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	_ = t.term.SetSize(width, height)
}

// Run reads command lines until the client disconnects or types exit.
func (t *terminalSession) Run(ctx context.Context, winCh <-chan windowSize) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := pslog.Ctx(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.greet(ctx)
	log.Info("terminal session start")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.pump(ctx, winCh)
	}()
	defer wg.Wait()
	defer cancel()

	for {
		line, err := t.term.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "exit", "quit", "logout":
			return nil
		}
		if t.handler == nil {
			t.writeLines(schema.ErrorMarker + "terminal unavailable")
			continue
		}
		t.expectEcho("$ " + input)
		if err := t.handler.Handle(ctx, t.workspaceID, input); err != nil {
			log.Warn("terminal command failed", "err", err)
			t.writeLines(schema.ErrorMarker + "Error: " + err.Error())
		}
	}
}

func (t *terminalSession) greet(ctx context.Context) {
	lines := append([]string(nil), command.Banner...)
	lines = append(lines, schema.InfoMarker+fmt.Sprintf("workspace %s, type exit to leave", t.workspaceID), "")
	t.writeLines(lines...)
	if t.service == nil {
		return
	}
	if resp, err := t.service.ListFiles(ctx, schema.ListFilesRequest{WorkspaceID: t.workspaceID}); err == nil {
		t.mu.Lock()
		for _, f := range resp.Files {
			t.names[f.ID] = f.Name
		}
		t.mu.Unlock()
	}
}

// pump forwards bus events and window changes until ctx ends.
func (t *terminalSession) pump(ctx context.Context, winCh <-chan windowSize) {
	events := t.events
	for {
		select {
		case <-ctx.Done():
			return
		case win, ok := <-winCh:
			if !ok {
				winCh = nil
				continue
			}
			t.SetSize(win.width, win.height)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			t.handleEvent(ev)
		}
	}
}

func (t *terminalSession) handleEvent(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.EventTerminal:
		if ev.Terminal.Cleared {
			_, _ = t.term.Write([]byte("\x1b[H\x1b[2J"))
		}
		lines := make([]string, 0, len(ev.Terminal.Lines))
		for _, line := range ev.Terminal.Lines {
			if t.consumeEcho(line) {
				continue
			}
			lines = append(lines, line)
		}
		t.writeLines(lines...)
	case eventbus.EventFile:
		t.handleFileEvent(ev.File)
	case eventbus.EventResult:
		result := ev.Result.Result
		if !t.currentGeneration(result) {
			return
		}
		if result.Status == schema.RunStatusRunning || result.Status == schema.RunStatusIdle {
			return
		}
		name := t.fileName(result.FileID)
		t.writeEvent(fmt.Sprintf("● %s %s (%d bytes, generation %d)", name, result.Status, len(result.Output), result.Generation))
	}
}

func (t *terminalSession) handleFileEvent(ev schema.FileEvent) {
	t.mu.Lock()
	previous := t.names[ev.File.ID]
	if ev.File.ID != 0 {
		if ev.Type == schema.FileEventDeleted {
			delete(t.names, ev.File.ID)
			delete(t.generations, ev.File.ID)
		} else {
			t.names[ev.File.ID] = ev.File.Name
		}
	}
	t.mu.Unlock()
	switch ev.Type {
	case schema.FileEventCreated, schema.FileEventImported, schema.FileEventDeleted:
		t.writeEvent(fmt.Sprintf("● %s %s", ev.File.Name, ev.Type))
	case schema.FileEventRenamed:
		t.writeEvent(fmt.Sprintf("● %s renamed to %s", previous, ev.File.Name))
	case schema.FileEventCleared:
		t.writeEvent("● all files cleared")
	}
}

// currentGeneration records the result's generation and reports false for
// results older than one already seen.
func (t *terminalSession) currentGeneration(result schema.RunResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.generations[result.FileID]; ok && result.Generation < last {
		return false
	}
	t.generations[result.FileID] = result.Generation
	return true
}

func (t *terminalSession) fileName(id schema.FileID) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if name := t.names[id]; name != "" {
		return name
	}
	return fmt.Sprintf("file %d", id)
}

func (t *terminalSession) expectEcho(line string) {
	t.mu.Lock()
	t.echoes[line]++
	t.mu.Unlock()
}

// consumeEcho drops the echo of a line this session typed; the prompt already
// shows it.
func (t *terminalSession) consumeEcho(line string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.echoes[line] == 0 {
		return false
	}
	t.echoes[line]--
	if t.echoes[line] == 0 {
		delete(t.echoes, line)
	}
	return true
}

func (t *terminalSession) writeLines(lines ...string) {
	if len(lines) == 0 {
		return
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(t.theme.styleLine(line))
		b.WriteString("\n")
	}
	_, _ = t.term.Write([]byte(b.String()))
}

func (t *terminalSession) writeEvent(text string) {
	_, _ = t.term.Write([]byte(t.theme.styleEvent(text) + "\n"))
}
