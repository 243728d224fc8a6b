// Command render renders a document request JSON file to PDF without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	printingapp "github.com/invoicing/backend/internal/application/printing"
	domain "github.com/invoicing/backend/internal/domain/printing"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	infra "github.com/invoicing/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

type options struct {
	inPath    string
	outPath   string
	paperSize string
	overflow  string
	localQR   bool
	noAssets  bool
	pages     bool
	timeout   time.Duration
	verbose   bool
}

var opts options

func init() {
	flag.StringVar(&opts.inPath, "in", "-", "Request JSON file, - reads stdin")
	flag.StringVar(&opts.inPath, "i", "-", "Request JSON file (shorthand)")
	flag.StringVar(&opts.outPath, "out", "", "Output PDF path, defaults to {kind}-{number}.pdf")
	flag.StringVar(&opts.outPath, "o", "", "Output PDF path (shorthand)")

	flag.StringVar(&opts.paperSize, "paper", "A4", "Paper size: A4, A5, LETTER or LEGAL")
	flag.StringVar(&opts.overflow, "overflow", "TRUNCATE", "Description overflow: TRUNCATE or WRAP")
	flag.BoolVar(&opts.pages, "page-numbers", false, "Print page numbers")

	flag.BoolVar(&opts.localQR, "local-qr", false, "Generate QR codes in process instead of calling the QR service")
	flag.BoolVar(&opts.noAssets, "no-assets", false, "Skip logo and QR code")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Overall render timeout")

	flag.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&opts.verbose, "v", false, "Enable debug logging (shorthand)")

	flag.Usage = printUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `render - render an invoice, quote or receipt to PDF

USAGE:
    render -in request.json [-out document.pdf] [options]
    cat request.json | render -local-qr

OPTIONS:
    -in, -i <path>        Request JSON file, - reads stdin (default -)
    -out, -o <path>       Output PDF path (default {kind}-{number}.pdf)
    -paper <size>         A4, A5, LETTER or LEGAL (default A4)
    -overflow <policy>    TRUNCATE or WRAP (default TRUNCATE)
    -page-numbers         Print "Page n of m" on every page
    -local-qr             Generate QR codes in process
    -no-assets            Skip logo and QR code
    -timeout <dur>        Overall render timeout (default 30s)
    -verbose, -v          Enable debug logging
`)
}

func main() {
	flag.Parse()

	level := "info"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.New(&logger.Config{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	out, err := run(ctx, opts, os.Stdin, log)
	if err != nil {
		log.Error("Render failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Document written",
		zap.String("path", out.path),
		zap.Int("pages", out.pages),
		zap.Int("bytes", out.size),
		zap.Int("warnings", out.warnings),
	)
}

type result struct {
	path     string
	pages    int
	size     int
	warnings int
}

func run(ctx context.Context, o options, stdin io.Reader, log *zap.Logger) (*result, error) {
	req, err := readRequest(o.inPath, stdin)
	if err != nil {
		return nil, err
	}

	service := printingapp.NewDocumentService(printingapp.DocumentServiceConfig{
		Renderer: newRenderer(o, log),
		Logger:   log,
	})
	resp, err := service.Render(ctx, *req)
	if err != nil {
		return nil, err
	}
	for _, w := range resp.Warnings {
		log.Warn("Asset skipped", zap.String("kind", w.Kind), zap.String("reason", w.Message))
	}

	path := o.outPath
	if path == "" {
		path = resp.FileName
	}
	if err := os.WriteFile(path, resp.PDFData, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return &result{
		path:     path,
		pages:    resp.PageCount,
		size:     len(resp.PDFData),
		warnings: len(resp.Warnings),
	}, nil
}

func readRequest(path string, stdin io.Reader) (*printingapp.RenderDocumentRequest, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var req printingapp.RenderDocumentRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

func newRenderer(o options, log *zap.Logger) *infra.Renderer {
	theme := infra.DefaultTheme()
	theme.PaperSize = domain.PaperSize(o.paperSize)
	theme.DescriptionOverflow = infra.OverflowPolicy(o.overflow)
	theme.PageNumbers = o.pages
	theme.Columns = infra.ColumnOffsets{}
	theme.TotalsLabelRightPt = 0

	cfg := &infra.RendererConfig{Theme: &theme, Logger: log}
	if !o.noAssets {
		loader := infra.NewAssetLoader(infra.NewHTTPFetcher(&infra.HTTPFetcherConfig{Logger: log}), nil, log)
		cfg.Loader = loader
		if o.localQR {
			cfg.QR = infra.NewLocalQRProvider(loader, 0)
		} else {
			cfg.QR = infra.NewRemoteQRProvider(loader, "", 0)
		}
	}
	return infra.NewRenderer(cfg)
}
