package snippad

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/httpapi"
	"pkt.systems/snippad/internal/command"
	"pkt.systems/snippad/internal/dropwatch"
	"pkt.systems/snippad/internal/eventbus"
	"pkt.systems/snippad/schema"
	"pkt.systems/snippad/sshserver"
)

// Server composes the HTTP, SSH, and drop folder front ends around one service.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	Service() core.Service
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service             schema.ServiceConfig
	HTTP                httpapi.Config
	SSH                 sshserver.Config
	Drop                dropwatch.Config
	HubHistory          int
	DisableAuditLogging bool
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	enableSSH  bool
	enableDrop bool
}

// WithHTTP enables the HTTP API/UI server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithSSH enables the SSH server.
func WithSSH() ServerOption {
	return func(o *serverOptions) { o.enableSSH = true }
}

// WithDropWatch enables the drop folder importer.
func WithDropWatch() ServerOption {
	return func(o *serverOptions) { o.enableDrop = true }
}

// New constructs a composable snippad server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableSSH && !options.enableDrop {
		return nil, errors.New("no services enabled")
	}
	if deps.ServiceDeps.Executor == nil {
		return nil, errors.New("executor dependency is required")
	}
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized

	var hub *httpapi.Hub
	var bus *eventbus.Bus
	serviceDeps := deps.ServiceDeps
	if options.enableSSH {
		bus = eventbus.New(serviceDeps.Logger)
	}
	if options.enableHTTP {
		hub = httpapi.NewHub(cfg.HubHistory)
	}
	sinks := []core.EventSink{serviceDeps.EventSink}
	if hub != nil {
		sinks = append(sinks, hub)
	}
	if bus != nil {
		sinks = append(sinks, bus)
	}
	serviceDeps.EventSink = newEventFanout(serviceDeps.Logger, sinks...)

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		return nil, err
	}

	srv := &compositeServer{
		cfg:     cfg,
		options: options,
		service: service,
	}
	if options.enableHTTP {
		handler := command.NewHandler(service, command.HandlerConfig{
			DisableAuditLogging: cfg.DisableAuditLogging,
		})
		srv.httpSrv = httpapi.NewServer(cfg.HTTP, service, handler, hub)
	}
	if options.enableSSH {
		handler := command.NewHandler(service, command.HandlerConfig{
			Highlight:           true,
			Style:               sshserver.CodeStyle(cfg.SSH.Theme),
			DisableAuditLogging: cfg.DisableAuditLogging,
		})
		srv.sshSrv = &sshserver.Server{
			Addr:        cfg.SSH.Addr,
			HostKeyPath: cfg.SSH.HostKeyPath,
			Service:     service,
			Handler:     handler,
			Prompt:      cfg.SSH.Prompt,
			Theme:       cfg.SSH.Theme,
			EventBus:    bus,
		}
	}
	if options.enableDrop {
		watcher, err := dropwatch.New(service, cfg.Drop)
		if err != nil {
			_ = service.Close()
			return nil, err
		}
		srv.dropper = watcher
	}
	return srv, nil
}

type compositeServer struct {
	cfg     ServerConfig
	options serverOptions
	service core.Service
	httpSrv *httpapi.Server
	sshSrv  *sshserver.Server
	dropper *dropwatch.Watcher
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	wg      sync.WaitGroup
	started bool
	stopped bool
}

func (s *compositeServer) Service() core.Service {
	return s.service
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 4)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"ssh", s.options.enableSSH,
		"drop", s.options.enableDrop,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
		"http_base_path", s.cfg.HTTP.BasePath,
		"ssh_addr", s.cfg.SSH.Addr,
		"drop_dir", s.cfg.Drop.Dir,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.service.RefreshRuntimes(s.ctx, schema.RefreshRuntimesRequest{}); err != nil {
			log.Warn("server runtimes refresh failed", "err", err)
		}
	}()
	if s.httpSrv != nil {
		s.run("http", func(ctx context.Context) error {
			return s.httpSrv.ListenAndServe(ctx, s.cfg.HTTP.Addr)
		})
		s.run("http sessions", func(ctx context.Context) error {
			return s.httpSrv.SweepSessions(ctx, httpapi.DefaultSessionSweepInterval)
		})
	}
	if s.sshSrv != nil {
		s.run("ssh", s.sshSrv.ListenAndServe)
	}
	if s.dropper != nil {
		s.run("drop", s.dropper.Run)
	}
	return nil
}

func (s *compositeServer) run(name string, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(s.ctx); err != nil {
			s.logger.Error(name+" server failed", "err", err)
			s.errCh <- err
		}
	}()
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	stopped := s.stopped
	s.stopped = true
	log := s.logger
	s.mu.Unlock()
	if !started || stopped {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
	}
	if err := s.service.Close(); err != nil {
		log.Warn("server service close failed", "err", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
