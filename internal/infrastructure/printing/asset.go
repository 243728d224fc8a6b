package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// AssetKind identifies which remote image an asset is
type AssetKind string

const (
	AssetKindLogo AssetKind = "logo"
	AssetKindQR   AssetKind = "qr"
)

// Embeddable image formats understood by the Serializer
const (
	ImageFormatPNG = "PNG"
	ImageFormatJPG = "JPG"
)

// Asset is a decoded image ready for embedding.
// Width and Height are the intrinsic pixel dimensions; TargetWidth and
// TargetHeight are the placed size in points.
type Asset struct {
	Kind         AssetKind
	Format       string
	Data         []byte
	Width        float64
	Height       float64
	TargetWidth  float64
	TargetHeight float64
}

// Name returns the identifier the Serializer registers the image under
func (a *Asset) Name() string {
	return string(a.Kind)
}

// Fit sets the target size to the largest box within maxW x maxH that keeps
// the aspect ratio without upscaling.
func (a *Asset) Fit(maxW, maxH float64) {
	a.TargetWidth, a.TargetHeight = FitWithin(a.Width, a.Height, maxW, maxH)
}

// FitWithin scales w x h by min(maxW/w, maxH/h, 1)
func FitWithin(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	scale := math.Min(math.Min(maxW/w, maxH/h), 1)
	return w * scale, h * scale
}

// Asset error kinds
const (
	AssetErrorFetch  = "FETCH"
	AssetErrorStatus = "STATUS"
	AssetErrorSize   = "TOO_LARGE"
	AssetErrorDecode = "DECODE"
	AssetErrorQR     = "QR"
)

// AssetError describes why an asset could not be loaded.
// Callers treat it as a soft failure.
type AssetError struct {
	Kind string
	URL  string
	Err  error
}

func (e *AssetError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("asset %s (%s): %v", strings.ToLower(e.Kind), e.URL, e.Err)
	}
	return fmt.Sprintf("asset %s: %v", strings.ToLower(e.Kind), e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// ErrUnsupportedImage is returned when no decoder accepts the payload
var ErrUnsupportedImage = errors.New("unsupported image format")

// Decoder decodes one image format
type Decoder struct {
	Format    string
	MIMETypes []string
	Decode    func(io.Reader) (image.Image, error)
}

func (d Decoder) accepts(contentType string) bool {
	for _, m := range d.MIMETypes {
		if m == contentType {
			return true
		}
	}
	return false
}

// DefaultDecoders returns the decoders in the order they are tried when the
// payload does not identify its own format.
func DefaultDecoders() []Decoder {
	return []Decoder{
		{Format: "png", MIMETypes: []string{"image/png"}, Decode: png.Decode},
		{Format: "jpeg", MIMETypes: []string{"image/jpeg", "image/jpg", "image/pjpeg"}, Decode: jpeg.Decode},
		{Format: "gif", MIMETypes: []string{"image/gif"}, Decode: gif.Decode},
		{Format: "webp", MIMETypes: []string{"image/webp"}, Decode: webp.Decode},
		{Format: "bmp", MIMETypes: []string{"image/bmp", "image/x-ms-bmp"}, Decode: bmp.Decode},
		{Format: "tiff", MIMETypes: []string{"image/tiff"}, Decode: tiff.Decode},
	}
}

// Fetcher retrieves raw asset bytes
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// FetchResult is a fetched payload and the content type the origin reported
type FetchResult struct {
	Data        []byte
	ContentType string
}

// AssetLoader fetches and decodes remote images
type AssetLoader struct {
	fetcher  Fetcher
	decoders []Decoder
	logger   *zap.Logger
}

// NewAssetLoader creates a loader. A nil decoder list selects DefaultDecoders.
func NewAssetLoader(fetcher Fetcher, decoders []Decoder, logger *zap.Logger) *AssetLoader {
	if len(decoders) == 0 {
		decoders = DefaultDecoders()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetLoader{fetcher: fetcher, decoders: decoders, logger: logger}
}

// Load fetches url and decodes it into an asset of the given kind.
// Every failure is returned as an *AssetError.
func (l *AssetLoader) Load(ctx context.Context, kind AssetKind, url string) (*Asset, error) {
	res, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		var assetErr *AssetError
		if errors.As(err, &assetErr) {
			return nil, assetErr
		}
		return nil, &AssetError{Kind: AssetErrorFetch, URL: url, Err: err}
	}
	asset, err := l.Decode(kind, res.Data, res.ContentType)
	if err != nil {
		return nil, &AssetError{Kind: AssetErrorDecode, URL: url, Err: err}
	}
	l.logger.Debug("Asset loaded",
		zap.String("kind", string(kind)),
		zap.String("url", url),
		zap.String("format", asset.Format),
		zap.Int("bytes", len(asset.Data)),
	)
	return asset, nil
}

// Decode turns raw bytes into an embeddable asset. The decoder matching the
// sniffed content type is tried first, then the remaining decoders in order.
// JPEG payloads are kept as is; everything else is re-encoded as 8-bit PNG.
func (l *AssetLoader) Decode(kind AssetKind, data []byte, contentType string) (*Asset, error) {
	if len(data) == 0 {
		return nil, ErrUnsupportedImage
	}
	for _, dec := range l.orderedDecoders(data, contentType) {
		img, err := dec.Decode(bytes.NewReader(data))
		if err != nil {
			continue
		}
		return newAsset(kind, dec.Format, data, img)
	}
	return nil, ErrUnsupportedImage
}

func (l *AssetLoader) orderedDecoders(data []byte, contentType string) []Decoder {
	hints := []string{http.DetectContentType(data), mediaType(contentType)}
	for _, hint := range hints {
		for i, dec := range l.decoders {
			if !dec.accepts(hint) {
				continue
			}
			ordered := make([]Decoder, 0, len(l.decoders))
			ordered = append(ordered, dec)
			ordered = append(ordered, l.decoders[:i]...)
			return append(ordered, l.decoders[i+1:]...)
		}
	}
	return l.decoders
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func newAsset(kind AssetKind, format string, raw []byte, img image.Image) (*Asset, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}
	asset := &Asset{
		Kind:   kind,
		Width:  float64(b.Dx()),
		Height: float64(b.Dy()),
	}
	if format == "jpeg" {
		asset.Format = ImageFormatJPG
		asset.Data = raw
		return asset, nil
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Clone(img), imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to normalize image: %w", err)
	}
	asset.Format = ImageFormatPNG
	asset.Data = buf.Bytes()
	return asset, nil
}
