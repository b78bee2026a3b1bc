package core

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

const (
	outputRunning  = "Running..."
	outputNoOutput = "No output"
	// ExportFileName is the download name of the exported document.
	ExportFileName = "snippad.html"
)

// remoteJob is one in-flight remote execution bound to a generation.
type remoteJob struct {
	workspace  schema.WorkspaceID
	fileID     schema.FileID
	generation uint64
	req        ExecuteRequest
	ctx        context.Context
	cancel     context.CancelFunc
	log        pslog.Logger
}

// affectsActiveLocked reports whether a change to f can alter the active
// file's output: either f is the active file, or the active file renders a
// composed preview that f feeds.
func (s *service) affectsActiveLocked(ws *workspace, f *file) bool {
	active := ws.activeFile()
	if active == nil || f == nil {
		return false
	}
	if active.ID == f.ID {
		return true
	}
	return schema.ModeFor(active.Language) == schema.RunModePreview && isPreviewSource(f.Language)
}

func isPreviewSource(lang schema.Language) bool {
	switch lang {
	case schema.LanguageHTML, schema.LanguageCSS, schema.LanguageJavaScript:
		return true
	default:
		return false
	}
}

// scheduleLocked (re)arms the workspace debounce timer. A newer edit cancels
// the pending one.
func (s *service) scheduleLocked(ws *workspace) {
	ws.stopDebounce()
	seq := ws.debounceSeq
	id := ws.id
	ws.debounce = time.AfterFunc(s.cfg.DebounceDelay, func() {
		s.fireDebounce(id, seq)
	})
}

func (s *service) fireDebounce(id schema.WorkspaceID, seq uint64) {
	s.mu.Lock()
	ws := s.workspaces[id]
	if ws == nil || ws.debounceSeq != seq || s.closed {
		s.mu.Unlock()
		return
	}
	ws.debounce = nil
	out := newOutbox(ws)
	s.recomputeLocked(ws, ws.active, out)
	s.mu.Unlock()

	log := s.logger.With("workspace", id)
	s.flush(log, out)
	log.Trace("orchestrator debounce fired")
}

// recomputeLocked starts a new generation for file id and produces its
// result: immediately for previews and resolution failures, asynchronously
// for remote runs.
func (s *service) recomputeLocked(ws *workspace, id schema.FileID, out *outbox) {
	f := ws.files[id]
	if f == nil {
		return
	}
	rs := ws.run(id)
	gen := rs.supersede()
	rs.done = make(chan struct{})
	mode := schema.ModeFor(f.Language)

	if mode == schema.RunModePreview {
		s.storeResultLocked(ws, s.newResult(id, composePreview(ws.ordered()), schema.ClassInfo, mode, gen), out)
		rs.settle()
		return
	}

	rt, ok := resolveRuntime(s.runtimes, f.Language)
	if !ok || s.exec == nil || s.closed {
		msg := fmt.Sprintf("Could not determine version for language: %s", f.Language)
		s.storeResultLocked(ws, s.newResult(id, msg, schema.ClassError, mode, gen), out)
		rs.settle()
		return
	}

	running := s.newResult(id, outputRunning, schema.ClassInfo, mode, gen)
	running.Status = schema.RunStatusRunning
	s.storeResultLocked(ws, running, out)

	log := s.logger.With("workspace", ws.id, "file", int(id), "generation", gen)
	base := pslog.ContextWithLogger(context.Background(), log)
	base = logx.ContextWithWorkspace(logx.ContextWithFile(base, id), ws.id)
	ctx, cancel := context.WithTimeout(base, s.cfg.ExecuteTimeout)
	rs.cancel = cancel
	out.jobs = append(out.jobs, &remoteJob{
		workspace:  ws.id,
		fileID:     id,
		generation: gen,
		req: ExecuteRequest{
			Language: rt.Language,
			Version:  rt.Version,
			Files:    []ExecuteFile{{Name: f.Name, Content: f.Code}},
		},
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	})
}

// runRemote performs the request and applies the outcome only if its
// generation is still current.
func (s *service) runRemote(job *remoteJob) {
	defer job.cancel()
	started := time.Now()
	resp, err := s.exec.Execute(job.ctx, job.req)
	output, class := classifyExecution(resp, err)

	s.mu.Lock()
	ws := s.workspaces[job.workspace]
	var rs *runState
	if ws != nil && ws.files[job.fileID] != nil {
		rs = ws.runs[job.fileID]
	}
	if rs == nil || rs.generation != job.generation {
		s.mu.Unlock()
		job.log.Debug("orchestrator stale result discarded", "err", err)
		return
	}
	out := newOutbox(ws)
	s.storeResultLocked(ws, s.newResult(job.fileID, output, class, schema.RunModeRemote, job.generation), out)
	rs.settle()
	s.mu.Unlock()

	s.flush(job.log, out)
	if err != nil {
		job.log.Warn("orchestrator remote run failed", "language", job.req.Language, "elapsed", time.Since(started), "err", err)
		return
	}
	job.log.Debug("orchestrator remote run done", "language", job.req.Language, "version", job.req.Version, "classification", class, "elapsed", time.Since(started))
}

// classifyExecution maps a remote outcome to output text and class.
func classifyExecution(resp ExecuteResponse, err error) (string, schema.Classification) {
	if err != nil {
		return "Error: " + err.Error(), schema.ClassError
	}
	if resp.Run == nil {
		return outputNoOutput, schema.ClassInfo
	}
	if resp.Run.Stderr != "" {
		return resp.Run.Stderr, schema.ClassError
	}
	if resp.Run.Stdout != "" {
		return resp.Run.Stdout, schema.ClassSuccess
	}
	return outputNoOutput, schema.ClassInfo
}

// resolveRuntime picks the first runtime whose language or aliases match.
func resolveRuntime(runtimes []schema.Runtime, lang schema.Language) (schema.Runtime, bool) {
	for _, rt := range runtimes {
		if rt.Matches(lang) {
			return rt, true
		}
	}
	return schema.Runtime{}, false
}

// composePreview builds one document from the first html, css and
// javascript files in order.
func composePreview(files []*file) string {
	var html, css, js *file
	for _, f := range files {
		switch f.Language {
		case schema.LanguageHTML:
			if html == nil {
				html = f
			}
		case schema.LanguageCSS:
			if css == nil {
				css = f
			}
		case schema.LanguageJavaScript:
			if js == nil {
				js = f
			}
		}
	}
	return "<!DOCTYPE html>\n<html>\n<head>\n<style>" + codeOf(css) + "</style>\n</head>\n<body>\n" +
		codeOf(html) + "\n<script>" + codeOf(js) + "</script>\n</body>\n</html>"
}

func codeOf(f *file) string {
	if f == nil {
		return ""
	}
	return f.Code
}

func (s *service) newResult(id schema.FileID, output string, class schema.Classification, mode schema.RunMode, gen uint64) schema.RunResult {
	return schema.RunResult{
		FileID:         id,
		Output:         output,
		Classification: class,
		Status:         schema.StatusFor(class),
		Mode:           mode,
		Generation:     gen,
		UpdatedAt:      s.now(),
	}
}

func (s *service) storeResultLocked(ws *workspace, result schema.RunResult, out *outbox) {
	ws.results[result.FileID] = result
	out.results = append(out.results, schema.ResultEvent{WorkspaceID: ws.id, Result: result})
}

// resultLocked returns the stored result or an idle placeholder.
func (s *service) resultLocked(ws *workspace, f *file) schema.RunResult {
	if result, ok := ws.results[f.ID]; ok {
		return result
	}
	return schema.RunResult{
		FileID:         f.ID,
		Classification: schema.ClassInfo,
		Status:         schema.RunStatusIdle,
		Mode:           schema.ModeFor(f.Language),
	}
}

func (s *service) Run(ctx context.Context, req schema.RunRequest) (schema.RunResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.RunResponse{}, err
	}
	f, err := ws.resolve(req.FileID)
	if err != nil {
		s.mu.Unlock()
		log.Warn("orchestrator run failed", "file", int(req.FileID), "err", err)
		return schema.RunResponse{}, err
	}
	if f.ID == ws.active {
		ws.stopDebounce()
	}
	out := newOutbox(ws)
	s.recomputeLocked(ws, f.ID, out)
	done := ws.run(f.ID).done
	result := s.resultLocked(ws, f)
	s.mu.Unlock()

	s.flush(log, out)
	logx.WithFile(log, f.Snapshot(false)).Debug("orchestrator run started", "generation", result.Generation, "mode", result.Mode)
	if !req.Wait || done == nil {
		return schema.RunResponse{Result: result}, nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return schema.RunResponse{Result: result}, ctx.Err()
	}
	s.mu.Lock()
	if current, ok := ws.results[f.ID]; ok {
		result = current
	}
	s.mu.Unlock()
	return schema.RunResponse{Result: result}, nil
}

func (s *service) GetResult(ctx context.Context, req schema.GetResultRequest) (schema.GetResultResponse, error) {
	ws, _, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.GetResultResponse{}, err
	}
	defer s.mu.Unlock()
	f, err := ws.resolve(req.FileID)
	if err != nil {
		return schema.GetResultResponse{}, err
	}
	return schema.GetResultResponse{Result: s.resultLocked(ws, f)}, nil
}

func (s *service) ClearOutput(ctx context.Context, req schema.ClearOutputRequest) (schema.ClearOutputResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ClearOutputResponse{}, err
	}
	f, err := ws.resolve(req.FileID)
	if err != nil {
		s.mu.Unlock()
		return schema.ClearOutputResponse{}, err
	}
	gen := ws.run(f.ID).supersede()
	result := s.newResult(f.ID, "", schema.ClassInfo, schema.ModeFor(f.Language), gen)
	result.Status = schema.RunStatusIdle
	out := newOutbox(ws)
	s.storeResultLocked(ws, result, out)
	s.mu.Unlock()

	s.flush(log, out)
	log.Debug("orchestrator output cleared", "file", int(f.ID))
	return schema.ClearOutputResponse{Result: result}, nil
}

// Execute runs a file remotely and returns the classified outcome without
// storing it as the file's result.
func (s *service) Execute(ctx context.Context, req schema.ExecuteRequest) (schema.ExecuteResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ExecuteResponse{}, err
	}
	f, err := ws.resolve(req.FileID)
	if err != nil {
		s.mu.Unlock()
		return schema.ExecuteResponse{}, err
	}
	lang := f.Language
	if req.Language != "" {
		if _, ok := schema.LookupLanguage(req.Language); !ok {
			s.mu.Unlock()
			return schema.ExecuteResponse{}, schema.ErrInvalidLanguage
		}
		lang = req.Language
	}
	rt, ok := resolveRuntime(s.runtimes, lang)
	exec := s.exec
	name, code, id := f.Name, f.Code, f.ID
	s.mu.Unlock()

	if !ok || exec == nil {
		msg := fmt.Sprintf("Could not determine version for language: %s", lang)
		return schema.ExecuteResponse{Result: s.newResult(id, msg, schema.ClassError, schema.RunModeRemote, 0)}, nil
	}
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.ExecuteTimeout)
	defer cancel()
	started := time.Now()
	resp, err := exec.Execute(runCtx, ExecuteRequest{
		Language: rt.Language,
		Version:  rt.Version,
		Files:    []ExecuteFile{{Name: name, Content: code}},
	})
	output, class := classifyExecution(resp, err)
	if err != nil {
		log.Warn("orchestrator execute failed", "file", int(id), "language", rt.Language, "err", err)
	} else {
		log.Debug("orchestrator execute done", "file", int(id), "language", rt.Language, "classification", class, "elapsed", time.Since(started))
	}
	return schema.ExecuteResponse{Result: s.newResult(id, output, class, schema.RunModeRemote, 0)}, nil
}

func (s *service) Preview(ctx context.Context, req schema.PreviewRequest) (schema.PreviewResponse, error) {
	ws, _, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.PreviewResponse{}, err
	}
	defer s.mu.Unlock()
	return schema.PreviewResponse{Document: composePreview(ws.ordered())}, nil
}

func (s *service) Export(ctx context.Context, req schema.ExportRequest) (schema.ExportResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ExportResponse{}, err
	}
	doc := composePreview(ws.ordered())
	s.mu.Unlock()
	log.Info("orchestrator export", "bytes", len(doc))
	return schema.ExportResponse{FileName: ExportFileName, Document: doc}, nil
}

// ComposeDocument builds the preview document from loose sources, matching
// what a workspace holding them would render.
func ComposeDocument(html, css, js string) string {
	return composePreview([]*file{
		{Language: schema.LanguageHTML, Code: html},
		{Language: schema.LanguageCSS, Code: css},
		{Language: schema.LanguageJavaScript, Code: js},
	})
}
