package card

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Renderer draws layouts into two-page PDF documents.
type Renderer struct {
	compress bool
}

// RendererOption customises a Renderer.
type RendererOption func(*Renderer)

// WithoutCompression leaves content streams uncompressed.
func WithoutCompression() RendererOption {
	return func(r *Renderer) {
		r.compress = false
	}
}

// NewRenderer builds a renderer.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type pageCursor int

const (
	cursorFront pageCursor = iota
	cursorBack
	cursorDone
)

func (c pageCursor) next() pageCursor {
	if c >= cursorDone {
		return cursorDone
	}
	return c + 1
}

// Render produces the PDF bytes for layout: the front face on page one and the
// back face on page two. Identical layouts give identical bytes.
func (r *Renderer) Render(layout *Layout) ([]byte, error) {
	if layout == nil {
		return nil, fmt.Errorf("render card: nil layout")
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: layout.Width, Ht: layout.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(r.compress)
	pdf.SetCatalogSort(true)
	created := layout.Created
	if created.IsZero() {
		created = time.Unix(0, 0)
	}
	pdf.SetCreationDate(created.UTC())

	d := &drawer{pdf: pdf, height: layout.Height, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	for cursor := cursorFront; cursor != cursorDone; cursor = cursor.next() {
		pdf.AddPage()
		switch cursor {
		case cursorFront:
			d.face(layout.Front)
		case cursorBack:
			d.face(layout.Back)
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("render card page %d: %w", int(cursor)+1, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render card: %w", err)
	}
	return buf.Bytes(), nil
}

type drawer struct {
	pdf    *gofpdf.Fpdf
	height float64
	tr     func(string) string
}

func (d *drawer) face(f Face) {
	if f.Background != nil {
		d.image(f.Background.Path, f.Background.Box)
	}
	for _, text := range f.Texts {
		d.text(text)
	}
	if f.Photo != nil {
		d.photo(*f.Photo)
	}
	if f.Code != nil {
		d.code(*f.Code)
	}
}

// top converts a bottom-left y coordinate to gofpdf's top-left system.
func (d *drawer) top(y float64) float64 {
	return d.height - y
}

func (d *drawer) text(t TextElement) {
	d.pdf.SetFont(t.Font.Family, t.Font.Style, t.Font.Size)
	d.pdf.SetTextColor(t.Color.R, t.Color.G, t.Color.B)
	s := d.tr(t.Text)
	x := t.Origin.X
	if t.Align == AlignCenter {
		x -= d.pdf.GetStringWidth(s) / 2
	}
	d.pdf.Text(x, d.top(t.Origin.Y), s)
}

func (d *drawer) image(path string, box Rect) {
	d.pdf.ImageOptions(path, box.X, d.top(box.Y+box.H), box.W, box.H, false, gofpdf.ImageOptions{}, 0, "")
}

func (d *drawer) photo(p PhotoElement) {
	d.pdf.ClipCircle(p.Clip.Center.X, d.top(p.Clip.Center.Y), p.Clip.Radius, false)
	d.image(p.Path, p.Box)
	d.pdf.ClipEnd()
}

// code fills each horizontal run of dark modules with one rectangle.
func (d *drawer) code(c CodeElement) {
	d.pdf.SetFillColor(Black.R, Black.G, Black.B)
	boxTop := d.top(c.Origin.Y + c.Size)
	for row, modules := range c.Modules {
		y := boxTop + float64(row)*c.ScaleY
		for col := 0; col < len(modules); {
			if !modules[col] {
				col++
				continue
			}
			start := col
			for col < len(modules) && modules[col] {
				col++
			}
			x := c.Origin.X + float64(start)*c.ScaleX
			d.pdf.Rect(x, y, float64(col-start)*c.ScaleX, c.ScaleY, "F")
		}
	}
}
