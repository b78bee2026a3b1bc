// Package piston implements the remote executor against a Piston-compatible
// HTTP service.
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pkt.systems/pslog"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/schema"
)

const (
	// DefaultBaseURL is the public Piston instance.
	DefaultBaseURL = "https://emkc.org/api/v2/piston"
	// DefaultRuntimesPath lists installed runtimes.
	DefaultRuntimesPath = "/runtimes"
	// DefaultExecutePath runs a job.
	DefaultExecutePath = "/execute"

	maxResponseSize = 4 * 1024 * 1024
)

// Config configures the client.
type Config struct {
	BaseURL      string
	RuntimesPath string
	ExecutePath  string
	// RatePerSecond and Burst shape the outgoing token bucket. Zero rate
	// disables limiting.
	RatePerSecond float64
	Burst         int
	Retry         RetryConfig
	UserAgent     string
	HTTPClient    *http.Client
}

// Client talks to the remote execution service.
type Client struct {
	baseURL      string
	runtimesPath string
	executePath  string
	userAgent    string
	retry        RetryConfig
	limiter      *rate.Limiter
	http         *http.Client
}

var _ core.Executor = (*Client)(nil)

// New builds a client from cfg, applying defaults for empty fields.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("piston base url %q must be http or https", cfg.BaseURL)
	}
	runtimesPath := normalizePath(cfg.RuntimesPath, DefaultRuntimesPath)
	executePath := normalizePath(cfg.ExecutePath, DefaultExecutePath)
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = "snippad"
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Client{
		baseURL:      base,
		runtimesPath: runtimesPath,
		executePath:  executePath,
		userAgent:    userAgent,
		retry:        cfg.Retry.withDefaults(),
		limiter:      limiter,
		http:         client,
	}, nil
}

func normalizePath(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return value
}

type runtimeDTO struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases"`
	Runtime  string   `json:"runtime,omitempty"`
}

type fileDTO struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type executeDTO struct {
	Language string    `json:"language"`
	Version  string    `json:"version"`
	Files    []fileDTO `json:"files"`
}

type stageDTO struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Output string  `json:"output"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

type executeResultDTO struct {
	Language string    `json:"language"`
	Version  string    `json:"version"`
	Run      *stageDTO `json:"run"`
	Compile  *stageDTO `json:"compile,omitempty"`
	Message  string    `json:"message,omitempty"`
}

type errorDTO struct {
	Message string `json:"message"`
}

// Runtimes lists the runtimes the service can execute. The request is
// retried with backoff.
func (c *Client) Runtimes(ctx context.Context) ([]schema.Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := pslog.Ctx(ctx)
	started := time.Now()
	var payload []runtimeDTO
	err := withRetry(ctx, c.retry, "runtimes", func(ctx context.Context) error {
		payload = nil
		return c.do(ctx, http.MethodGet, c.runtimesPath, nil, &payload)
	})
	if err != nil {
		log.Warn("piston runtimes failed", "elapsed", time.Since(started), "err", err)
		return nil, err
	}
	runtimes := make([]schema.Runtime, 0, len(payload))
	for _, rt := range payload {
		if strings.TrimSpace(rt.Language) == "" {
			continue
		}
		runtimes = append(runtimes, schema.Runtime{
			Language: rt.Language,
			Version:  rt.Version,
			Aliases:  append([]string(nil), rt.Aliases...),
			Runtime:  rt.Runtime,
		})
	}
	log.Debug("piston runtimes ok", "count", len(runtimes), "elapsed", time.Since(started))
	return runtimes, nil
}

// Execute submits one job. Jobs are not idempotent and are never retried.
func (c *Client) Execute(ctx context.Context, req core.ExecuteRequest) (core.ExecuteResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := pslog.Ctx(ctx)
	if strings.TrimSpace(req.Language) == "" || len(req.Files) == 0 {
		return core.ExecuteResponse{}, &core.ExecError{Kind: core.ExecErrorUnknown, Op: "execute", Message: "language and at least one file are required"}
	}
	body := executeDTO{Language: req.Language, Version: req.Version}
	for _, f := range req.Files {
		body.Files = append(body.Files, fileDTO{Name: f.Name, Content: f.Content})
	}
	started := time.Now()
	var payload executeResultDTO
	if err := c.do(ctx, http.MethodPost, c.executePath, body, &payload); err != nil {
		log.Warn("piston execute failed", "language", req.Language, "version", req.Version, "elapsed", time.Since(started), "err", err)
		return core.ExecuteResponse{}, err
	}
	resp := core.ExecuteResponse{Language: payload.Language, Version: payload.Version}
	if run := mergeStages(payload.Compile, payload.Run); run != nil {
		resp.Run = run
	}
	log.Debug("piston execute ok", "language", req.Language, "version", req.Version, "elapsed", time.Since(started))
	return resp, nil
}

// mergeStages folds a failed compile stage into the run output so compiler
// diagnostics surface as stderr.
func mergeStages(compile, run *stageDTO) *core.RunOutput {
	if run == nil && compile == nil {
		return nil
	}
	out := &core.RunOutput{}
	if run != nil {
		out.Stdout = run.Stdout
		out.Stderr = run.Stderr
		out.Output = run.Output
		out.Code = run.Code
		if run.Signal != nil {
			out.Signal = *run.Signal
		}
	}
	if compile != nil && compile.Code != nil && *compile.Code != 0 {
		diag := compile.Stderr
		if diag == "" {
			diag = compile.Output
		}
		if diag != "" {
			out.Stderr = diag + out.Stderr
		}
	}
	return out
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	op := strings.TrimPrefix(path, "/")
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return contextError(op, ctxErr)
			}
			return core.NewExecError(core.ExecErrorRateLimited, op, err)
		}
	}
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return core.NewExecError(core.ExecErrorUnknown, op, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return core.NewExecError(core.ExecErrorUnknown, op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	pslog.Ctx(ctx).Trace("piston request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contextError(op, ctxErr)
		}
		return core.NewExecError(core.ExecErrorUnavailable, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contextError(op, ctxErr)
		}
		return core.NewExecError(core.ExecErrorUnavailable, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			ExecError: core.ExecError{
				Kind:    core.ExecErrorStatus,
				Op:      op,
				Message: statusMessage(resp.StatusCode, data),
			},
			StatusCode: resp.StatusCode,
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return core.NewExecError(core.ExecErrorDecode, op, fmt.Errorf("decode %s response: %w", op, err))
	}
	return nil
}

func statusMessage(code int, body []byte) string {
	var payload errorDTO
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		return fmt.Sprintf("%d %s: %s", code, http.StatusText(code), strings.TrimSpace(payload.Message))
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return fmt.Sprintf("%d %s", code, http.StatusText(code))
	}
	return fmt.Sprintf("%d %s: %s", code, http.StatusText(code), text)
}

func contextError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.ExecError{Kind: core.ExecErrorTimeout, Op: op, Message: "request timed out", Err: err}
	}
	return &core.ExecError{Kind: core.ExecErrorCanceled, Op: op, Message: "request canceled", Err: err}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	core.ExecError
	StatusCode int
}

func (e *StatusError) Error() string {
	return e.ExecError.Error()
}

func (e *StatusError) Unwrap() error {
	return &e.ExecError
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var execErr *core.ExecError
	if errors.As(err, &execErr) {
		return execErr.Kind == core.ExecErrorUnavailable
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
