// Package snapshot renders composed preview documents to PNG with headless Chrome.
package snapshot

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"pkt.systems/pslog"
)

// Options configures a render.
type Options struct {
	Width   int64
	Height  int64
	Timeout time.Duration
	// Settle waits after load so scripts in the document can paint.
	Settle time.Duration
	// ExecPath overrides the Chrome binary chromedp looks up.
	ExecPath string
}

// DefaultOptions returns a 1280x800 viewport with a 30 second timeout.
func DefaultOptions() Options {
	return Options{Width: 1280, Height: 800, Timeout: 30 * time.Second, Settle: 250 * time.Millisecond}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Height <= 0 {
		o.Height = def.Height
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	return o
}

// Render loads document in headless Chrome and returns a full-page PNG.
func Render(ctx context.Context, document string, opts Options) ([]byte, error) {
	if document == "" {
		return nil, errors.New("snapshot: document is empty")
	}
	opts = opts.withDefaults()
	log := pslog.Ctx(ctx)

	srv, url, err := serveDocument(document)
	if err != nil {
		return nil, err
	}
	defer func() { _ = srv.Close() }()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(int(opts.Width), int(opts.Height)),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancel()

	var png []byte
	start := time.Now()
	err = chromedp.Run(runCtx,
		chromedp.EmulateViewport(opts.Width, opts.Height),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(opts.Settle),
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		log.Warn("snapshot render failed", "err", err)
		return nil, err
	}
	log.Info("snapshot rendered", "bytes", len(png), "duration", time.Since(start))
	return png, nil
}

// serveDocument serves document on a loopback listener and returns its URL.
func serveDocument(document string) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	srv := &http.Server{
		Handler:           documentHandler(document),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	return srv, "http://" + ln.Addr().String() + "/", nil
}

func documentHandler(document string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(document))
	})
}
