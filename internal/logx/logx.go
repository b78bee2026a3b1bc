package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/snippad/schema"
)

type contextKey int

const (
	workspaceKey contextKey = iota
	fileKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithWorkspace annotates the logger with the workspace id if present.
func WithWorkspace(ctx context.Context, workspaceID schema.WorkspaceID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if workspaceID != "" {
		if current, ok := ctx.Value(workspaceKey).(schema.WorkspaceID); ok && current == workspaceID {
			return log
		}
		log = log.With("workspace", workspaceID)
	}
	return log
}

// WithWorkspaceFile annotates the logger with workspace and file identifiers.
func WithWorkspaceFile(ctx context.Context, workspaceID schema.WorkspaceID, fileID schema.FileID) pslog.Logger {
	log := WithWorkspace(ctx, workspaceID)
	if fileID != 0 {
		if current, ok := ctx.Value(fileKey).(schema.FileID); ok && current == fileID {
			return log
		}
		log = log.With("file", int(fileID))
	}
	return log
}

// WithFile annotates a logger with file metadata when available.
func WithFile(log pslog.Logger, file schema.FileSnapshot) pslog.Logger {
	if file.ID != 0 {
		log = log.With("file", int(file.ID))
	}
	if file.Name != "" {
		log = log.With("file_name", file.Name)
	}
	if file.Language != "" {
		log = log.With("language", string(file.Language))
	}
	return log
}

// ContextWithWorkspace stores the workspace marker on the context for log de-duplication.
func ContextWithWorkspace(ctx context.Context, workspaceID schema.WorkspaceID) context.Context {
	if ctx == nil || workspaceID == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceKey, workspaceID)
}

// ContextWithFile stores the file marker on the context for log de-duplication.
func ContextWithFile(ctx context.Context, fileID schema.FileID) context.Context {
	if ctx == nil || fileID == 0 {
		return ctx
	}
	return context.WithValue(ctx, fileKey, fileID)
}

// ContextWithWorkspaceLogger attaches the logger and workspace marker to the context.
func ContextWithWorkspaceLogger(ctx context.Context, log pslog.Logger, workspaceID schema.WorkspaceID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithWorkspace(ctx, workspaceID)
}

// ContextWithWorkspaceFileLogger attaches the logger and workspace/file markers to the context.
func ContextWithWorkspaceFileLogger(ctx context.Context, log pslog.Logger, workspaceID schema.WorkspaceID, fileID schema.FileID) context.Context {
	ctx = ContextWithWorkspaceLogger(ctx, log, workspaceID)
	return ContextWithFile(ctx, fileID)
}

// CopyContextFields copies workspace/file markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if ws, ok := src.Value(workspaceKey).(schema.WorkspaceID); ok && ws != "" {
		dst = ContextWithWorkspace(dst, ws)
	}
	if id, ok := src.Value(fileKey).(schema.FileID); ok && id != 0 {
		dst = ContextWithFile(dst, id)
	}
	return dst
}
