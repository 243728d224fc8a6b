package printing

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// DefaultQRSize is the pixel size requested from QR generators
	DefaultQRSize = 240
	// DefaultQRServiceURL renders {data} at {size}x{size}
	DefaultQRServiceURL = "https://api.qrserver.com/v1/create-qr-code/?size={size}x{size}&data={data}"
)

// QRProvider produces the QR image for a target URL
type QRProvider interface {
	QRCode(ctx context.Context, target string) (*Asset, error)
}

// RemoteQRProvider asks an external code-generation service for the QR image
type RemoteQRProvider struct {
	loader   *AssetLoader
	template string
	size     int
}

// NewRemoteQRProvider creates a provider. The template may contain the
// placeholders {data} and {size}; empty values select the defaults.
func NewRemoteQRProvider(loader *AssetLoader, template string, size int) *RemoteQRProvider {
	if template == "" {
		template = DefaultQRServiceURL
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	return &RemoteQRProvider{loader: loader, template: template, size: size}
}

// URL returns the service URL that renders target
func (p *RemoteQRProvider) URL(target string) string {
	return strings.NewReplacer(
		"{data}", url.QueryEscape(target),
		"{size}", strconv.Itoa(p.size),
	).Replace(p.template)
}

// QRCode implements QRProvider
func (p *RemoteQRProvider) QRCode(ctx context.Context, target string) (*Asset, error) {
	return p.loader.Load(ctx, AssetKindQR, p.URL(target))
}

// LocalQRProvider encodes the QR image in process
type LocalQRProvider struct {
	loader *AssetLoader
	size   int
	level  qrcode.RecoveryLevel
}

// NewLocalQRProvider creates an in-process QR generator with medium error correction
func NewLocalQRProvider(loader *AssetLoader, size int) *LocalQRProvider {
	if size <= 0 {
		size = DefaultQRSize
	}
	return &LocalQRProvider{loader: loader, size: size, level: qrcode.Medium}
}

// QRCode implements QRProvider
func (p *LocalQRProvider) QRCode(_ context.Context, target string) (*Asset, error) {
	data, err := qrcode.Encode(target, p.level, p.size)
	if err != nil {
		return nil, &AssetError{Kind: AssetErrorQR, Err: err}
	}
	asset, err := p.loader.Decode(AssetKindQR, data, "image/png")
	if err != nil {
		return nil, &AssetError{Kind: AssetErrorDecode, Err: err}
	}
	return asset, nil
}

var (
	_ QRProvider = (*RemoteQRProvider)(nil)
	_ QRProvider = (*LocalQRProvider)(nil)
)
