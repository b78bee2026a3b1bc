package core

import (
	"context"

	"pkt.systems/snippad/schema"
)

func (s *service) ListRuntimes(ctx context.Context, req schema.ListRuntimesRequest) (schema.ListRuntimesResponse, error) {
	_ = ctx
	_ = req
	s.mu.Lock()
	defer s.mu.Unlock()
	return schema.ListRuntimesResponse{Runtimes: append([]schema.Runtime(nil), s.runtimes...)}, nil
}

// RefreshRuntimes refetches the runtime list. A failed fetch leaves the list
// empty; either way the arrival recomputes every active remote-mode file.
func (s *service) RefreshRuntimes(ctx context.Context, req schema.RefreshRuntimesRequest) (schema.RefreshRuntimesResponse, error) {
	_ = req
	if ctx == nil {
		ctx = context.Background()
	}
	log := s.logger
	var runtimes []schema.Runtime
	var fetchErr error
	if s.exec == nil {
		fetchErr = schema.ErrExecutorUnavailable
	} else {
		runtimes, fetchErr = s.exec.Runtimes(ctx)
	}
	if fetchErr != nil {
		runtimes = nil
		log.Warn("service runtimes refresh failed", "err", fetchErr)
	} else {
		log.Info("service runtimes refreshed", "count", len(runtimes))
	}

	s.mu.Lock()
	s.runtimes = append([]schema.Runtime(nil), runtimes...)
	var boxes []*outbox
	for _, ws := range s.workspaces {
		active := ws.activeFile()
		if active == nil || schema.ModeFor(active.Language) != schema.RunModeRemote {
			continue
		}
		out := newOutbox(ws)
		s.recomputeLocked(ws, active.ID, out)
		boxes = append(boxes, out)
	}
	s.mu.Unlock()

	for _, out := range boxes {
		s.flush(log.With("workspace", out.workspace), out)
	}
	return schema.RefreshRuntimesResponse{Runtimes: append([]schema.Runtime(nil), runtimes...)}, fetchErr
}
