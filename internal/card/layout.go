package card

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/roman"
)

// Card dimensions in points. Coordinates in a Layout use a bottom-left origin.
const (
	PageWidth  = 189.0
	PageHeight = 321.0
)

// Point is a position on the card.
type Point struct {
	X, Y float64
}

// Rect is a box anchored at its bottom-left corner.
type Rect struct {
	X, Y, W, H float64
}

// Color is an RGB triple.
type Color struct {
	R, G, B int
}

var (
	Ink   = Color{R: 0x23, G: 0x1f, B: 0x55}
	White = Color{R: 255, G: 255, B: 255}
	Black = Color{}
)

// Font names one of the PDF core fonts.
type Font struct {
	Family string
	Style  string
	Size   float64
}

var (
	labelFont  = Font{Family: "Helvetica", Style: "B", Size: 9}
	detailFont = Font{Family: "Helvetica", Size: 9}
	dateFont   = Font{Family: "Helvetica", Style: "B", Size: 8}
	phoneFont  = Font{Family: "Helvetica", Style: "B", Size: 8.5}
)

// Align controls how a text origin is interpreted horizontally.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// TextElement is a single line drawn at a baseline origin.
type TextElement struct {
	Text   string
	Origin Point
	Font   Font
	Color  Color
	Align  Align
}

// ImageElement draws an image file stretched into Box.
type ImageElement struct {
	Path string
	Box  Rect
}

// Circle is a clip region.
type Circle struct {
	Center Point
	Radius float64
}

// PhotoElement draws the student photo into Box, visible only inside Clip.
type PhotoElement struct {
	Path string
	Box  Rect
	Clip Circle
}

// CodeElement is a QR symbol. Modules is row-major from the top row and
// includes the quiet zone; each module is ScaleX by ScaleY points.
type CodeElement struct {
	Payload string
	Origin  Point
	Size    float64
	Modules [][]bool
	ScaleX  float64
	ScaleY  float64
}

// Face is everything drawn on one side of the card.
type Face struct {
	Background *ImageElement
	Texts      []TextElement
	Photo      *PhotoElement
	Code       *CodeElement
}

// Layout is the resolved, drawable description of a card.
type Layout struct {
	Width    float64
	Height   float64
	Front    Face
	Back     Face
	Filename string
	// Created pins the document creation date.
	Created time.Time
}

// Assets locates the artwork printed under each face.
type Assets struct {
	FrontBackground string
	BackBackground  string
}

var (
	photoBox  = Rect{X: 40, Y: 159.5, W: 103, H: 103}
	photoClip = Circle{Center: Point{X: 91.5, Y: 211}, Radius: 51.5}
	codeBox   = Rect{X: 50, Y: 118, W: 80, H: 80}
)

var drawableImages = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
}

// Engine turns student records into card layouts.
type Engine struct {
	assets Assets
	logger *zap.Logger
	exists func(path string) bool
}

// NewEngine builds a layout engine over the given artwork.
func NewEngine(assets Assets, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{assets: assets, logger: logger, exists: isRegularFile}
}

// Layout resolves every element of both faces. Missing or undrawable photo and
// background files are left out; malformed dates fail with ErrMalformedDate.
func (e *Engine) Layout(student models.Student, photoPath string) (*Layout, error) {
	dob, err := cardDate("date_of_birth", student.DateOfBirth)
	if err != nil {
		return nil, err
	}
	payload, err := BuildPayload(student)
	if err != nil {
		return nil, err
	}
	issue, _ := student.DateOfIssue.CardFormat()
	expiry, _ := student.DateOfExpiry.CardFormat()

	modules, err := EncodeMatrix(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode card payload")
	}

	layout := &Layout{
		Width:    PageWidth,
		Height:   PageHeight,
		Filename: Filename(student.RollNo),
		Created:  student.LastModified(),
	}

	layout.Front = Face{
		Background: e.background(e.assets.FrontBackground),
		Texts: []TextElement{
			{Text: strings.ToUpper(student.Name), Origin: Point{X: 94.5, Y: 140}, Font: labelFont, Color: Ink, Align: AlignCenter},
			{Text: strings.ToUpper(student.FatherName), Origin: Point{X: 94.5, Y: 113}, Font: labelFont, Color: Ink, Align: AlignCenter},
			{Text: ClassLabel(student.Class), Origin: Point{X: 90.5, Y: 95}, Font: labelFont, Color: White, Align: AlignCenter},
			{Text: student.RollNo, Origin: Point{X: 65, Y: 67}, Font: detailFont, Color: Ink},
			{Text: student.GRNumber, Origin: Point{X: 65, Y: 52}, Font: detailFont, Color: Ink},
			{Text: dob, Origin: Point{X: 65, Y: 37}, Font: detailFont, Color: Ink},
		},
		Photo: e.photo(photoPath),
	}

	rows, cols := float64(len(modules)), float64(len(modules[0]))
	layout.Back = Face{
		Background: e.background(e.assets.BackBackground),
		Texts: []TextElement{
			{Text: issue, Origin: Point{X: 95, Y: 104}, Font: dateFont, Color: Ink},
			{Text: expiry, Origin: Point{X: 95, Y: 93}, Font: dateFont, Color: Ink},
			{Text: student.Phone, Origin: Point{X: 85.5, Y: 62.5}, Font: phoneFont, Color: White},
		},
		Code: &CodeElement{
			Payload: payload,
			Origin:  Point{X: codeBox.X, Y: codeBox.Y},
			Size:    codeBox.W,
			Modules: modules,
			ScaleX:  codeBox.W / cols,
			ScaleY:  codeBox.H / rows,
		},
	}
	return layout, nil
}

func (e *Engine) background(path string) *ImageElement {
	if !e.drawable(path) {
		return nil
	}
	return &ImageElement{Path: path, Box: Rect{W: PageWidth, H: PageHeight}}
}

func (e *Engine) photo(path string) *PhotoElement {
	if !e.drawable(path) {
		return nil
	}
	return &PhotoElement{Path: path, Box: photoBox, Clip: photoClip}
}

func (e *Engine) drawable(path string) bool {
	if path == "" {
		return false
	}
	if _, ok := drawableImages[strings.ToLower(filepath.Ext(path))]; !ok {
		e.logger.Debug("card image skipped: unsupported type", zap.String("path", path))
		return false
	}
	if !e.exists(path) {
		e.logger.Debug("card image skipped: missing file", zap.String("path", path))
		return false
	}
	return true
}

// ClassLabel is the class line printed on the front face.
func ClassLabel(class string) string {
	return "Level-" + roman.Encode(class)
}

// Filename is the PDF name for a roll number.
func Filename(rollNo string) string {
	return strings.ReplaceAll(rollNo, " ", "_") + "_card.pdf"
}

func cardDate(field string, d models.Date) (string, error) {
	formatted, err := d.CardFormat()
	if err != nil {
		return "", appErrors.Annotate(appErrors.ErrMalformedDate, err, fmt.Sprintf("%s is not a valid date", field))
	}
	return formatted, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
