// Package printing renders invoice, quote and receipt documents to PDF.
//
// The pipeline has three stages:
// - Asset prefetch: logos through an AssetLoader and QR codes through a
//   QRProvider, both fail soft and surface as AssetWarning
// - Layout: a PageCursor walks the LayoutTheme geometry and emits Page draw
//   operations, breaking pages between item rows; page numbers are stamped
//   once the page count is known
// - Serialization: the Serializer replays the pages into a go-pdf/fpdf document
//
// Example usage:
//
//	loader := NewAssetLoader(NewHTTPFetcher(&HTTPFetcherConfig{Timeout: 10 * time.Second}), nil, logger)
//	renderer := NewRenderer(&RendererConfig{
//	    Loader: loader,
//	    QR:     NewLocalQRProvider(loader, 240),
//	    Logger: logger,
//	})
//
//	result, err := renderer.Render(ctx, spec)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Generated PDF: %d pages, %d bytes\n", result.PageCount, len(result.PDFData))
package printing
