package core

import (
	"context"

	"pkt.systems/snippad/schema"
)

// Executor runs code on a remote execution service.
type Executor interface {
	Runtimes(ctx context.Context) ([]schema.Runtime, error)
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error)
}

// ExecuteRequest describes one remote execution.
type ExecuteRequest struct {
	Language string
	Version  string
	Files    []ExecuteFile
}

// ExecuteFile is a source file submitted for execution.
type ExecuteFile struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// ExecuteResponse is the outcome reported by the remote service.
// Run is nil when the service reported no run stage.
type ExecuteResponse struct {
	Language string
	Version  string
	Run      *RunOutput
}

// RunOutput carries the run stage output.
type RunOutput struct {
	Stdout string
	Stderr string
	Output string
	Code   *int
	Signal string
}
