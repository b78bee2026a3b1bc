package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

const streamKeepAlive = 25 * time.Second

// handleTerminal runs one command line; GET returns the scrollback.
func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.GetTerminal(r.Context(), schema.GetTerminalRequest{
			WorkspaceID: workspaceID,
			Limit:       parseInt(r.URL.Query().Get("limit"), s.cfg.TerminalLines),
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var payload struct {
			Input string `json:"input"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if s.cmdHandler == nil {
			writeError(w, http.StatusNotImplemented, errors.New("terminal unavailable"))
			return
		}
		log = log.With("input_len", len(payload.Input))
		if err := s.cmdHandler.Handle(r.Context(), workspaceID, payload.Input); err != nil {
			log.Warn("http terminal command failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		log.Info("http terminal command ok")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())
	ctx := r.Context()

	// Subscribe before reading the snapshot so no event falls in between.
	ch, unsubscribe, seq := s.hub.Subscribe(workspaceID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	replayCount := 0
	var replay []StreamEvent
	if lastID > 0 && lastID <= seq {
		replay = s.hub.Replay(workspaceID, lastID)
	}
	// A gap in the retained history falls back to a fresh snapshot.
	if lastID > 0 && lastID <= seq && (len(replay) == 0 || replay[0].Seq == lastID+1) {
		for _, event := range replay {
			if event.Seq > seq {
				break
			}
			_ = writeSSEvent(w, event)
			replayCount++
		}
	} else {
		snapshot, err := s.buildSnapshot(ctx, workspaceID)
		if err != nil {
			log.Warn("http stream snapshot failed", "err", err)
		}
		_ = writeSSEvent(w, StreamEvent{
			Seq:       seq,
			Type:      "snapshot",
			Snapshot:  &snapshot,
			Timestamp: time.Now(),
		})
	}
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount)
	for {
		select {
		case <-ctx.Done():
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Seq <= seq {
				continue
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) buildSnapshot(ctx context.Context, workspaceID schema.WorkspaceID) (SnapshotPayload, error) {
	resp, err := s.service.GetWorkspace(ctx, schema.GetWorkspaceRequest{WorkspaceID: workspaceID})
	if err != nil {
		return SnapshotPayload{}, err
	}
	payload := SnapshotPayload{Workspace: resp.Workspace}
	if term, err := s.service.GetTerminal(ctx, schema.GetTerminalRequest{
		WorkspaceID: workspaceID,
		Limit:       s.cfg.TerminalLines,
	}); err == nil {
		payload.Terminal = term.Terminal
	}
	return payload, nil
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}
