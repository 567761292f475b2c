package service

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/storage"
)

func encodedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x % 256), B: 40, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, img, nil))
	return buf.Bytes()
}

func newPhotoService(t *testing.T, cfg PhotoConfig) (*PhotoService, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "photos")
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return NewPhotoService(files, cfg, nil), dir
}

func TestPhotoServiceStoreCropsAndResizes(t *testing.T) {
	svc, dir := newPhotoService(t, PhotoConfig{SizePx: 64})

	path, err := svc.Store("7 A", bytes.NewReader(encodedJPEG(t, 300, 200)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "7_A.png"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestPhotoServiceKeepsSmallPhotos(t *testing.T) {
	svc, _ := newPhotoService(t, PhotoConfig{SizePx: 600})

	path, err := svc.Store("101", bytes.NewReader(encodedJPEG(t, 40, 90)))
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 40, cfg.Height)
}

func TestPhotoServiceRejectsBadUploads(t *testing.T) {
	svc, _ := newPhotoService(t, PhotoConfig{MaxUploadBytes: 1024})

	_, err := svc.Store("101", bytes.NewReader(make([]byte, 2048)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Store("101", strings.NewReader("definitely not an image"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestPhotoServiceRemoveAndClear(t *testing.T) {
	svc, dir := newPhotoService(t, PhotoConfig{})
	path, err := svc.Store("101", bytes.NewReader(encodedJPEG(t, 10, 10)))
	require.NoError(t, err)
	_, err = svc.Store("102", bytes.NewReader(encodedJPEG(t, 10, 10)))
	require.NoError(t, err)

	require.NoError(t, svc.Remove(path))
	require.NoError(t, svc.Remove(path))
	require.NoError(t, svc.Remove(""))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, svc.Clear())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPhotoFilename(t *testing.T) {
	assert.Equal(t, "101.png", PhotoFilename("101"))
	assert.Equal(t, "7_A.png", PhotoFilename("7 A"))
}

func TestPhotoServiceRename(t *testing.T) {
	svc, dir := newPhotoService(t, PhotoConfig{SizePx: 32})
	path, err := svc.Store("101", bytes.NewReader(encodedJPEG(t, 40, 40)))
	require.NoError(t, err)

	moved, err := svc.Rename(path, PhotoFilename("201 B"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "201_B.png"), moved)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(moved)
	require.NoError(t, err)

	gone, err := svc.Rename(path, "301.png")
	require.NoError(t, err)
	assert.Empty(t, gone)

	none, err := svc.Rename("", "301.png")
	require.NoError(t, err)
	assert.Empty(t, none)
}
