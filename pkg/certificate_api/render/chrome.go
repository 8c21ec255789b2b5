package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/config"
	"golang.org/x/sync/semaphore"
)

// A4 in inches; only used when the markup carries no @page size.
const (
	a4Width  = 8.27
	a4Height = 11.69
)

// ErrRender wraps launch, load and print failures of the browser process.
var ErrRender = errors.New("certificate rendering failed")

// Options configures a ChromeRenderer. Mode is fixed at construction.
type Options struct {
	Mode            config.Mode
	ExecPath        string
	Timeout         time.Duration
	MaxConcurrent   int64 // 0 = unbounded
	LocalOutputPath string
	Logger          *slog.Logger
}

// ChromeRenderer prints markup to PDF with a headless browser, one process per call.
type ChromeRenderer struct {
	opts  Options
	slots *semaphore.Weighted
}

func NewChromeRenderer(opts Options) *ChromeRenderer {
	if opts.Mode == "" {
		opts.Mode = config.ModeProduction
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &ChromeRenderer{opts: opts}
	if opts.MaxConcurrent > 0 {
		r.slots = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return r
}

// Flags returns the browser switches for mode on top of chromedp's defaults.
// Local mode relaxes the sandbox for developer machines and containers
// without user namespaces; production keeps it.
func Flags(mode config.Mode) map[string]interface{} {
	if mode == config.ModeLocal {
		return map[string]interface{}{
			"headless":                 true,
			"disable-gpu":              true,
			"full-memory-crash-report": true,
			"unlimited-storage":        true,
			"no-sandbox":               true,
			"disable-setuid-sandbox":   true,
			"disable-dev-shm-usage":    true,
		}
	}
	return map[string]interface{}{
		"headless":    true,
		"disable-gpu": true,
	}
}

func AllocatorOptions(mode config.Mode, execPath string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range Flags(mode) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return opts
}

// Render launches a browser, loads markup as the page content and prints it.
// The browser is shut down on every path, including cancellation of ctx.
// The timeout covers waiting for a render slot as well.
func (r *ChromeRenderer) Render(ctx context.Context, markup string) ([]byte, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	if r.slots != nil {
		if err := r.slots.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("%w: waiting for render slot: %w", ErrRender, err)
		}
		defer r.slots.Release(1)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, AllocatorOptions(r.opts.Mode, r.opts.ExecPath)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer func() {
		// chromedp.Cancel closes the browser gracefully; cancelAlloc above kills it if that fails
		if err := chromedp.Cancel(browserCtx); err != nil && ctx.Err() == nil {
			r.opts.Logger.Warn("browser shutdown failed", "error", err)
		}
		cancelBrowser()
	}()

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, markup).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = PrintParams().Do(ctx)
			return err
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	r.opts.Logger.Debug("certificate rendered", "bytes", len(pdf), "duration", time.Since(start), "mode", string(r.opts.Mode))

	if r.opts.Mode == config.ModeLocal && r.opts.LocalOutputPath != "" {
		if err := writeFileAtomic(r.opts.LocalOutputPath, pdf); err != nil {
			r.opts.Logger.Warn("could not write local certificate copy", "path", r.opts.LocalOutputPath, "error", err)
		}
	}
	return pdf, nil
}

// writeFileAtomic writes to a temp file next to path and renames it into
// place, so concurrent renders never leave a torn copy behind.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op na een geslaagde rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// PrintParams is the fixed print layout: landscape, backgrounds on, page
// size taken from the markup's @page rule.
func PrintParams() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithLandscape(true).
		WithPrintBackground(true).
		WithPreferCSSPageSize(true).
		WithPaperWidth(a4Width).
		WithPaperHeight(a4Height)
}
