package printing

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

const defaultCreator = "invoicing document renderer"

// DocumentInfo is written into the PDF information dictionary
type DocumentInfo struct {
	Title     string
	Subject   string
	Author    string
	Creator   string
	Keywords  string
	CreatedAt time.Time
}

// SerializerConfig contains configuration for the Serializer
type SerializerConfig struct {
	// Compress enables stream compression. Uncompressed output keeps text
	// operators readable, which is useful when debugging layouts.
	Compress bool
	// Logger for debug output
	Logger *zap.Logger
}

// Serializer replays laid out pages into a PDF file
type Serializer struct {
	compress bool
	logger   *zap.Logger
}

// NewSerializer creates a serializer. A nil config enables compression.
func NewSerializer(config *SerializerConfig) *Serializer {
	if config == nil {
		config = &SerializerConfig{Compress: true}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serializer{compress: config.Compress, logger: logger}
}

// ErrNoPages is returned when Finalize receives nothing to serialize
var ErrNoPages = errors.New("document has no pages")

// Finalize concatenates pages into one PDF document.
// This is the only step of a render that can fail hard.
func (s *Serializer) Finalize(pages []*Page, info DocumentInfo) ([]byte, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	geom := pages[0].Geometry

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: geom.Width, Ht: geom.Height},
	})
	pdf.SetCompression(s.compress)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	s.writeInfo(pdf, info)

	translate := pdf.UnicodeTranslatorFromDescriptor("")
	registered := make(map[string]bool)

	for _, page := range pages {
		pdf.AddPage()
		for _, op := range page.ops {
			switch o := op.(type) {
			case TextOp:
				pdf.SetFont(coreFamily(o.Font.Family), o.Font.Style(), o.Size)
				r, g, b := o.Color.RGB255()
				pdf.SetTextColor(r, g, b)
				pdf.Text(o.X, geom.Height-o.Y, translate(o.Text))
			case LineOp:
				r, g, b := o.Color.RGB255()
				pdf.SetDrawColor(r, g, b)
				pdf.SetLineWidth(o.Width)
				pdf.Line(o.X1, geom.Height-o.Y1, o.X2, geom.Height-o.Y2)
			case ImageOp:
				if o.Asset == nil {
					continue
				}
				name := o.Asset.Name()
				opts := fpdf.ImageOptions{ImageType: o.Asset.Format}
				if !registered[name] {
					pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(o.Asset.Data))
					registered[name] = true
				}
				pdf.ImageOptions(name, o.X, geom.Height-o.Y-o.H, o.W, o.H, false, opts, 0, "")
			}
		}
		if pdf.Err() {
			return nil, fmt.Errorf("failed to write page %d: %w", page.Number, pdf.Error())
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to output PDF: %w", err)
	}

	s.logger.Debug("PDF serialized",
		zap.Int("pages", len(pages)),
		zap.Int("bytes", buf.Len()),
		zap.Bool("compressed", s.compress),
	)
	return buf.Bytes(), nil
}

func (s *Serializer) writeInfo(pdf *fpdf.Fpdf, info DocumentInfo) {
	creator := info.Creator
	if creator == "" {
		creator = defaultCreator
	}
	pdf.SetTitle(info.Title, true)
	pdf.SetSubject(info.Subject, true)
	pdf.SetAuthor(info.Author, true)
	pdf.SetCreator(creator, true)
	if info.Keywords != "" {
		pdf.SetKeywords(info.Keywords, true)
	}
	if !info.CreatedAt.IsZero() {
		pdf.SetCreationDate(info.CreatedAt)
	}
}
