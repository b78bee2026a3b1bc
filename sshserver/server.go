package sshserver

import (
	"context"
	"io"
	"net"

	gliderssh "github.com/gliderlabs/ssh"

	"pkt.systems/pslog"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/internal/eventbus"
	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

// CommandHandler runs one terminal command line against a workspace.
type CommandHandler interface {
	Handle(ctx context.Context, workspaceID schema.WorkspaceID, input string) error
}

// Server exposes workspace terminals over SSH. The SSH user name selects the
// workspace; sessions are anonymous.
type Server struct {
	Addr        string
	HostKeyPath string
	Listener    net.Listener
	Service     core.Service
	Handler     CommandHandler
	Prompt      string
	Theme       string
	EventBus    *eventbus.Bus
	logger      pslog.Logger
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Prompt == "" {
		s.Prompt = "$ "
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}

	hostKey, err := EnsureHostKey(s.logger, s.HostKeyPath)
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:    s.Addr,
		Handler: s.handleSession,
	}
	server.AddHostKey(hostKey.Signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()
	addr := s.Addr
	if s.Listener != nil {
		addr = s.Listener.Addr().String()
	}
	s.logger.Info("ssh listening", "addr", addr, "fingerprint", hostKey.Fingerprint())

	select {
	case <-ctx.Done():
		_ = server.Close()
		s.logger.Info("ssh stopped", "addr", addr)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(sess.Context())
	}
	remote := sess.RemoteAddr().String()
	workspaceID := schema.WorkspaceID(sess.User())
	if err := schema.ValidateWorkspaceID(workspaceID); err != nil {
		log.Info("ssh session rejected", "reason", "invalid workspace", "user", sess.User(), "remote", remote)
		_, _ = io.WriteString(sess, "invalid workspace name; connect as <workspace>@host\n")
		_ = sess.Exit(1)
		return
	}
	log = log.With("workspace", workspaceID, "remote", remote)
	if id := sess.Context().SessionID(); id != "" {
		log = log.With("ssh_session", id)
	}
	ctx := logx.ContextWithWorkspaceLogger(sess.Context(), log, workspaceID)

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		_ = sess.Exit(1)
		return
	}

	log.Info("ssh session opened", "term", pty.Term)
	var events <-chan eventbus.Event
	unsubscribe := func() {}
	if s.EventBus != nil {
		events, unsubscribe = s.EventBus.Subscribe(workspaceID)
	}
	defer unsubscribe()

	ui := newTerminalSession(sess, s.Service, s.Handler, workspaceID, s.Prompt, themeForName(s.Theme), events)
	ui.SetSize(pty.Window.Width, pty.Window.Height)
	if err := ui.Run(ctx, windowSizes(winCh)); err != nil {
		log.Warn("ssh session failed", "err", err)
	}
	log.Info("ssh session closed", "term", pty.Term)
}

type windowSize struct {
	width  int
	height int
}

func windowSizes(in <-chan gliderssh.Window) <-chan windowSize {
	out := make(chan windowSize, 1)
	go func() {
		defer close(out)
		for win := range in {
			out <- windowSize{width: win.Width, height: win.Height}
		}
	}()
	return out
}
