package core

import (
	"context"

	"pkt.systems/snippad/schema"
)

func (s *service) AppendTerminal(ctx context.Context, req schema.AppendTerminalRequest) (schema.AppendTerminalResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.AppendTerminalResponse{}, err
	}
	if len(req.Lines) == 0 {
		s.mu.Unlock()
		return schema.AppendTerminalResponse{}, nil
	}
	lines := append([]string(nil), req.Lines...)
	ws.terminal.Append(lines...)
	out := newOutbox(ws)
	out.terminal = append(out.terminal, schema.TerminalEvent{WorkspaceID: ws.id, Lines: lines})
	s.mu.Unlock()

	s.flush(log, out)
	log.Trace("service terminal appended", "lines", len(lines))
	return schema.AppendTerminalResponse{Appended: len(lines)}, nil
}

func (s *service) GetTerminal(ctx context.Context, req schema.GetTerminalRequest) (schema.GetTerminalResponse, error) {
	ws, _, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.GetTerminalResponse{}, err
	}
	defer s.mu.Unlock()
	return schema.GetTerminalResponse{Terminal: ws.terminal.Snapshot(req.Limit)}, nil
}

func (s *service) ClearTerminal(ctx context.Context, req schema.ClearTerminalRequest) (schema.ClearTerminalResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ClearTerminalResponse{}, err
	}
	ws.terminal.Clear()
	out := newOutbox(ws)
	out.terminal = append(out.terminal, schema.TerminalEvent{WorkspaceID: ws.id, Cleared: true})
	s.mu.Unlock()

	s.flush(log, out)
	log.Debug("service terminal cleared")
	return schema.ClearTerminalResponse{}, nil
}
