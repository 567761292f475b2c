package card

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
)

func aliKhan() models.Student {
	return models.Student{
		ID:           1,
		Name:         "Ali Khan",
		FatherName:   "Karim Khan",
		RollNo:       "101",
		Class:        "9",
		Phone:        "03001234567",
		GRNumber:     "GR55",
		DateOfBirth:  models.MustParseDate("2008-05-10"),
		DateOfIssue:  models.MustParseDate("2024-01-01"),
		DateOfExpiry: models.MustParseDate("2026-01-01"),
		CreatedAt:    models.Timestamp{Time: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
	}
}

func writeImage(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 120, B: uint8(y * 30), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if strings.HasSuffix(path, ".png") {
		require.NoError(t, png.Encode(f, img))
		return
	}
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func pageCount(doc []byte) int {
	return bytes.Count(doc, []byte("<</Type /Page\n"))
}

func TestBuildPayload(t *testing.T) {
	payload, err := BuildPayload(aliKhan())
	require.NoError(t, err)

	lines := strings.Split(payload, "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, []string{
		"Name: Ali Khan",
		"Father Name: Karim Khan",
		"Roll No: 101",
		"GR NO: GR55",
		"DOB: 10 May, 2008",
		"Issue: 01 January, 2024",
		"Expiry: 01 January, 2026",
		"Phone: 03001234567",
	}, lines)
}

func TestBuildPayloadMalformedDate(t *testing.T) {
	st := aliKhan()
	require.NoError(t, st.DateOfExpiry.UnmarshalJSON([]byte(`"31/12/2026"`)))

	_, err := BuildPayload(st)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMalformedDate))
}

func TestEncodeMatrixIncludesQuietZone(t *testing.T) {
	modules, err := EncodeMatrix("Roll No: 101")
	require.NoError(t, err)
	require.NotEmpty(t, modules)
	assert.Len(t, modules[0], len(modules))
	for _, row := range modules[:4] {
		for _, dark := range row {
			assert.False(t, dark)
		}
	}
	assert.True(t, modules[4][4], "finder pattern starts after the quiet zone")
}

func TestEngineLayoutAnchors(t *testing.T) {
	engine := NewEngine(Assets{}, nil)

	layout, err := engine.Layout(aliKhan(), "")
	require.NoError(t, err)

	assert.Equal(t, PageWidth, layout.Width)
	assert.Equal(t, PageHeight, layout.Height)
	assert.Equal(t, "101_card.pdf", layout.Filename)
	assert.Nil(t, layout.Front.Background)
	assert.Nil(t, layout.Front.Photo)
	assert.Nil(t, layout.Back.Background)

	front := layout.Front.Texts
	require.Len(t, front, 6)
	assert.Equal(t, TextElement{Text: "ALI KHAN", Origin: Point{X: 94.5, Y: 140}, Font: labelFont, Color: Ink, Align: AlignCenter}, front[0])
	assert.Equal(t, "KARIM KHAN", front[1].Text)
	assert.Equal(t, Point{X: 94.5, Y: 113}, front[1].Origin)
	assert.Equal(t, TextElement{Text: "Level-IX", Origin: Point{X: 90.5, Y: 95}, Font: labelFont, Color: White, Align: AlignCenter}, front[2])
	assert.Equal(t, TextElement{Text: "101", Origin: Point{X: 65, Y: 67}, Font: detailFont, Color: Ink}, front[3])
	assert.Equal(t, Point{X: 65, Y: 52}, front[4].Origin)
	assert.Equal(t, "10 May, 2008", front[5].Text)
	assert.Equal(t, Point{X: 65, Y: 37}, front[5].Origin)

	back := layout.Back.Texts
	require.Len(t, back, 3)
	assert.Equal(t, TextElement{Text: "01 January, 2024", Origin: Point{X: 95, Y: 104}, Font: dateFont, Color: Ink}, back[0])
	assert.Equal(t, TextElement{Text: "01 January, 2026", Origin: Point{X: 95, Y: 93}, Font: dateFont, Color: Ink}, back[1])
	assert.Equal(t, TextElement{Text: "03001234567", Origin: Point{X: 85.5, Y: 62.5}, Font: phoneFont, Color: White}, back[2])

	code := layout.Back.Code
	require.NotNil(t, code)
	assert.Equal(t, Point{X: 50, Y: 118}, code.Origin)
	assert.Equal(t, 80.0, code.Size)
	assert.InDelta(t, 80.0, code.ScaleX*float64(len(code.Modules[0])), 1e-9)
	assert.InDelta(t, 80.0, code.ScaleY*float64(len(code.Modules)), 1e-9)
	assert.Equal(t, "Roll No: 101", strings.Split(code.Payload, "\n")[2])
}

func TestEngineLayoutPhotoAndBackgrounds(t *testing.T) {
	dir := t.TempDir()
	front := filepath.Join(dir, "1.jpeg")
	back := filepath.Join(dir, "2.jpeg")
	photo := filepath.Join(dir, "101.png")
	writeImage(t, front)
	writeImage(t, back)
	writeImage(t, photo)

	layout, err := NewEngine(Assets{FrontBackground: front, BackBackground: back}, nil).Layout(aliKhan(), photo)
	require.NoError(t, err)

	require.NotNil(t, layout.Front.Background)
	assert.Equal(t, Rect{W: 189, H: 321}, layout.Front.Background.Box)
	require.NotNil(t, layout.Back.Background)
	require.NotNil(t, layout.Front.Photo)
	assert.Equal(t, Rect{X: 40, Y: 159.5, W: 103, H: 103}, layout.Front.Photo.Box)
	assert.Equal(t, Circle{Center: Point{X: 91.5, Y: 211}, Radius: 51.5}, layout.Front.Photo.Clip)
	assert.InDelta(t, 103.0/189.0, 2*layout.Front.Photo.Clip.Radius/layout.Width, 1e-9)
}

func TestEngineLayoutSkipsUnusablePhotos(t *testing.T) {
	dir := t.TempDir()
	bitmap := filepath.Join(dir, "photo.bmp")
	require.NoError(t, os.WriteFile(bitmap, []byte("BM"), 0o644))

	engine := NewEngine(Assets{FrontBackground: filepath.Join(dir, "missing.jpeg")}, nil)
	for _, path := range []string{filepath.Join(dir, "missing.png"), bitmap, dir + "/"} {
		layout, err := engine.Layout(aliKhan(), path)
		require.NoError(t, err, path)
		assert.Nil(t, layout.Front.Photo, path)
		assert.Nil(t, layout.Front.Background)
	}
}

func TestEngineLayoutMalformedDate(t *testing.T) {
	st := aliKhan()
	require.NoError(t, st.DateOfBirth.UnmarshalJSON([]byte(`"10-05-2008"`)))

	_, err := NewEngine(Assets{}, nil).Layout(st, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMalformedDate))
}

func TestClassLabel(t *testing.T) {
	assert.Equal(t, "Level-IX", ClassLabel("9"))
	assert.Equal(t, "Level-IX", ClassLabel("09"))
	assert.Equal(t, "Level-Nursery", ClassLabel("Nursery"))
	assert.Equal(t, "Level-0", ClassLabel("0"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "101_card.pdf", Filename("101"))
	assert.Equal(t, "7_A_2_card.pdf", Filename("7 A 2"))
}

func TestRenderAliKhanWithoutPhoto(t *testing.T) {
	layout, err := NewEngine(Assets{}, nil).Layout(aliKhan(), "")
	require.NoError(t, err)

	doc, err := NewRenderer(WithoutCompression()).Render(layout)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.Equal(t, 2, pageCount(doc))
	assert.Contains(t, string(doc), "(Level-IX) Tj")
	assert.Contains(t, string(doc), "(ALI KHAN) Tj")
	assert.Contains(t, string(doc), "(03001234567) Tj")
	assert.NotContains(t, string(doc), "/Subtype /Image")
}

func TestRenderIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "101.png")
	writeImage(t, photo)
	engine := NewEngine(Assets{}, nil)
	renderer := NewRenderer()

	render := func() []byte {
		layout, err := engine.Layout(aliKhan(), photo)
		require.NoError(t, err)
		doc, err := renderer.Render(layout)
		require.NoError(t, err)
		return doc
	}

	first := render()
	assert.Equal(t, first, render())
	assert.Equal(t, 2, pageCount(first))
}

func TestRenderDrawsImages(t *testing.T) {
	dir := t.TempDir()
	front := filepath.Join(dir, "1.jpeg")
	photo := filepath.Join(dir, "101.png")
	writeImage(t, front)
	writeImage(t, photo)

	layout, err := NewEngine(Assets{FrontBackground: front}, nil).Layout(aliKhan(), photo)
	require.NoError(t, err)
	doc, err := NewRenderer(WithoutCompression()).Render(layout)
	require.NoError(t, err)

	assert.Equal(t, 2, bytes.Count(doc, []byte("/Subtype /Image")))
}

func TestRenderCorruptPhotoFails(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(photo, []byte("not an image"), 0o644))

	layout, err := NewEngine(Assets{}, nil).Layout(aliKhan(), photo)
	require.NoError(t, err)
	_, err = NewRenderer().Render(layout)
	require.Error(t, err)
}

func TestRenderNilLayout(t *testing.T) {
	_, err := NewRenderer().Render(nil)
	require.Error(t, err)
}

func TestPageCursor(t *testing.T) {
	assert.Equal(t, cursorBack, cursorFront.next())
	assert.Equal(t, cursorDone, cursorBack.next())
	assert.Equal(t, cursorDone, cursorDone.next())
}
