package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/snippad"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/httpapi"
	"pkt.systems/snippad/internal/appconfig"
	"pkt.systems/snippad/internal/dropwatch"
	"pkt.systems/snippad/internal/piston"
	"pkt.systems/snippad/internal/version"
	"pkt.systems/snippad/schema"
	"pkt.systems/snippad/sshserver"
)

//go:embed assets/logo.txt
var serveLogo string

const sessionFileName = "sessions.json"

func newServeCmd() *cobra.Command {
	var cfgPath string
	var noSSH bool
	var dropDir string
	var showQR bool
	var noBanner bool
	var disableAuditTrails bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the snippad servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logMode := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_MODE")))
			showBanner := !noBanner && logMode != "json" && logMode != "structured"
			if showBanner && serveLogo != "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), serveLogo)
			}
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if noSSH {
				cfg.SSH.Enabled = false
			}
			if dropDir != "" {
				cfg.Drop.Dir = dropDir
			}

			client, err := newPistonClient(cfg)
			if err != nil {
				return err
			}
			logger.Info("piston client ready", "base_url", cfg.Piston.BaseURL)

			serverCfg := snippad.ServerConfig{
				Service:             cfg.CoreConfig(),
				HTTP:                toHTTPConfig(cfg),
				SSH:                 toSSHConfig(cfg.SSH),
				Drop:                toDropConfig(cfg.Drop),
				HubHistory:          1000,
				DisableAuditLogging: disableAuditTrails,
			}
			opts := []snippad.ServerOption{snippad.WithHTTP()}
			if cfg.SSH.Enabled {
				opts = append(opts, snippad.WithSSH())
			}
			if strings.TrimSpace(cfg.Drop.Dir) != "" {
				opts = append(opts, snippad.WithDropWatch())
			}
			server, err := snippad.New(serverCfg, snippad.ServerDeps{
				ServiceDeps: core.ServiceDeps{
					Executor: client,
					Logger:   logger,
				},
			}, opts...)
			if err != nil {
				return err
			}

			if showQR {
				printQR(cmd.OutOrStdout(), uiURL(cfg.HTTP))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noSSH, "no-ssh", false, "disable the SSH server")
	cmd.Flags().StringVar(&dropDir, "drop-dir", "", "import files dropped into this directory")
	cmd.Flags().BoolVar(&showQR, "qr", false, "print the UI address as a QR code")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "disable startup banner")
	cmd.Flags().BoolVar(&disableAuditTrails, "disable-audit-trails", false, "disable audit trail logging for commands")
	return cmd
}

func newPistonClient(cfg appconfig.Config) (*piston.Client, error) {
	clientCfg := cfg.PistonClientConfig()
	clientCfg.UserAgent = "snippad/" + version.Current()
	return piston.New(clientCfg)
}

func toHTTPConfig(cfg appconfig.Config) httpapi.Config {
	return httpapi.Config{
		Addr:             cfg.HTTP.Addr,
		SessionCookie:    cfg.HTTP.SessionCookie,
		SessionTTLHours:  cfg.HTTP.SessionTTLHours,
		SessionPath:      filepath.Join(cfg.StateDir, sessionFileName),
		BaseURL:          cfg.HTTP.BaseURL,
		BasePath:         cfg.HTTP.BasePath,
		RunRatePerSecond: cfg.HTTP.RunRatePerSecond,
		RunBurst:         cfg.HTTP.RunBurst,
		TerminalLines:    cfg.Service.TerminalMaxLines,
	}
}

func toSSHConfig(cfg appconfig.SSHConfig) sshserver.Config {
	return sshserver.Config{
		Addr:        cfg.Addr,
		HostKeyPath: cfg.HostKeyPath,
		Prompt:      "$ ",
		Theme:       cfg.Theme,
	}
}

func toDropConfig(cfg appconfig.DropConfig) dropwatch.Config {
	return dropwatch.Config{
		Dir:       cfg.Dir,
		Workspace: schema.WorkspaceID(cfg.Workspace),
	}
}

// uiURL is the address users open in a browser.
func uiURL(cfg appconfig.HTTPConfig) string {
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		return base + "/" + strings.TrimLeft(strings.TrimSpace(cfg.BasePath), "/")
	}
	host, port, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return "http://localhost/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	path := strings.Trim(strings.TrimSpace(cfg.BasePath), "/")
	if path != "" {
		path += "/"
	}
	return "http://" + net.JoinHostPort(host, port) + "/" + path
}

func printQR(w io.Writer, url string) {
	_, _ = fmt.Fprintf(w, "open %s\n", url)
	qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
}
