package core

import (
	"context"

	"pkt.systems/snippad/schema"
)

// Service is the transport-agnostic API for workspaces, files, history and runs.
type Service interface {
	ListFiles(ctx context.Context, req schema.ListFilesRequest) (schema.ListFilesResponse, error)
	GetFile(ctx context.Context, req schema.GetFileRequest) (schema.GetFileResponse, error)
	CreateFile(ctx context.Context, req schema.CreateFileRequest) (schema.CreateFileResponse, error)
	DeleteFile(ctx context.Context, req schema.DeleteFileRequest) (schema.DeleteFileResponse, error)
	RenameFile(ctx context.Context, req schema.RenameFileRequest) (schema.RenameFileResponse, error)
	UpdateCode(ctx context.Context, req schema.UpdateCodeRequest) (schema.UpdateCodeResponse, error)
	ReorderFile(ctx context.Context, req schema.ReorderFileRequest) (schema.ReorderFileResponse, error)
	ActivateFile(ctx context.Context, req schema.ActivateFileRequest) (schema.ActivateFileResponse, error)
	SearchFiles(ctx context.Context, req schema.SearchFilesRequest) (schema.SearchFilesResponse, error)
	ImportFile(ctx context.Context, req schema.ImportFileRequest) (schema.ImportFileResponse, error)
	ClearCode(ctx context.Context, req schema.ClearCodeRequest) (schema.ClearCodeResponse, error)

	Undo(ctx context.Context, req schema.UndoRequest) (schema.UndoResponse, error)
	Redo(ctx context.Context, req schema.RedoRequest) (schema.RedoResponse, error)
	GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error)

	Run(ctx context.Context, req schema.RunRequest) (schema.RunResponse, error)
	GetResult(ctx context.Context, req schema.GetResultRequest) (schema.GetResultResponse, error)
	ClearOutput(ctx context.Context, req schema.ClearOutputRequest) (schema.ClearOutputResponse, error)
	Execute(ctx context.Context, req schema.ExecuteRequest) (schema.ExecuteResponse, error)
	Preview(ctx context.Context, req schema.PreviewRequest) (schema.PreviewResponse, error)
	Export(ctx context.Context, req schema.ExportRequest) (schema.ExportResponse, error)

	ListRuntimes(ctx context.Context, req schema.ListRuntimesRequest) (schema.ListRuntimesResponse, error)
	RefreshRuntimes(ctx context.Context, req schema.RefreshRuntimesRequest) (schema.RefreshRuntimesResponse, error)

	GetSettings(ctx context.Context, req schema.GetSettingsRequest) (schema.GetSettingsResponse, error)
	UpdateSettings(ctx context.Context, req schema.UpdateSettingsRequest) (schema.UpdateSettingsResponse, error)
	ListSnippets(ctx context.Context, req schema.ListSnippetsRequest) (schema.ListSnippetsResponse, error)
	SaveSnippet(ctx context.Context, req schema.SaveSnippetRequest) (schema.SaveSnippetResponse, error)
	DeleteSnippet(ctx context.Context, req schema.DeleteSnippetRequest) (schema.DeleteSnippetResponse, error)
	InsertSnippet(ctx context.Context, req schema.InsertSnippetRequest) (schema.InsertSnippetResponse, error)

	AppendTerminal(ctx context.Context, req schema.AppendTerminalRequest) (schema.AppendTerminalResponse, error)
	GetTerminal(ctx context.Context, req schema.GetTerminalRequest) (schema.GetTerminalResponse, error)
	ClearTerminal(ctx context.Context, req schema.ClearTerminalRequest) (schema.ClearTerminalResponse, error)

	GetWorkspace(ctx context.Context, req schema.GetWorkspaceRequest) (schema.GetWorkspaceResponse, error)
	ReleaseWorkspace(ctx context.Context, req schema.ReleaseWorkspaceRequest) (schema.ReleaseWorkspaceResponse, error)
	Close() error
}
