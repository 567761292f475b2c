package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
)

type photoStorage interface {
	Save(filename string, data []byte) (string, error)
	Move(from, filename string) (string, error)
	Delete(filename string) error
	Clear() (int, error)
}

// PhotoConfig tunes photo normalisation.
type PhotoConfig struct {
	SizePx         int
	MaxUploadBytes int64
}

// PhotoService normalises uploaded student photos and stores them as PNG.
type PhotoService struct {
	storage photoStorage
	cfg     PhotoConfig
	logger  *zap.Logger
}

// NewPhotoService constructs a PhotoService.
func NewPhotoService(files photoStorage, cfg PhotoConfig, logger *zap.Logger) *PhotoService {
	if cfg.SizePx <= 0 {
		cfg.SizePx = 600
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhotoService{storage: files, cfg: cfg, logger: logger}
}

// Store crops the upload to its centre square, shrinks it to at most SizePx
// and saves it as "<roll>.png". It returns the stored path.
func (s *PhotoService) Store(rollNo string, upload io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(upload, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read photo")
	}
	if int64(len(raw)) > s.cfg.MaxUploadBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("photo exceeds %d bytes", s.cfg.MaxUploadBytes))
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "photo must be a PNG, JPEG or GIF image")
	}

	bounds := img.Bounds()
	side := bounds.Dx()
	if bounds.Dy() < side {
		side = bounds.Dy()
	}
	square := imaging.CropCenter(img, side, side)
	if side > s.cfg.SizePx {
		square = imaging.Resize(square, s.cfg.SizePx, s.cfg.SizePx, imaging.Lanczos)
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, square, imaging.PNG); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode photo")
	}
	path, err := s.storage.Save(PhotoFilename(rollNo), buf.Bytes())
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store photo")
	}
	s.logger.Debug("photo stored", zap.String("path", path), zap.Int("side", square.Bounds().Dx()))
	return path, nil
}

// Rename moves the photo at path to filename and returns the new path. It
// returns "" when the photo no longer exists.
func (s *PhotoService) Rename(path, filename string) (string, error) {
	if path == "" {
		return "", nil
	}
	moved, err := s.storage.Move(path, filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("photo missing on rename", zap.String("path", path))
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename photo")
	}
	return moved, nil
}

// Remove deletes a stored photo; a missing file is not an error.
func (s *PhotoService) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := s.storage.Delete(path); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete photo")
	}
	return nil
}

// Clear removes every stored photo.
func (s *PhotoService) Clear() error {
	removed, err := s.storage.Clear()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear photos")
	}
	s.logger.Info("photos cleared", zap.Int("files", removed))
	return nil
}

// PhotoFilename is the stored name of a student's photo.
func PhotoFilename(rollNo string) string {
	return strings.ReplaceAll(rollNo, " ", "_") + ".png"
}
