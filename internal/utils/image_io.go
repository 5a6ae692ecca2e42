package utils

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
)

// SupportedImageExtensions lists supported file extensions for loading and saving.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string `json:"path"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// LoadImage opens and decodes an image file, applying EXIF orientation, and
// returns the image with its metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
	}
	format, err := imaging.FormatFromFilename(path)
	if err != nil || !IsSupportedImage(path) {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}

	img, err := DecodeImage(f)
	if err != nil {
		return nil, ImageMetadata{}, err
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:      path,
		Format:    strings.ToLower(format.String()),
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}

// DecodeImage decodes any supported format from r, applying EXIF orientation.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageProcessingError{Operation: "decode", Err: err}
	}
	return img, nil
}

// SaveImage encodes img to path, choosing the format from the extension and
// creating parent directories.
func SaveImage(img image.Image, path string) error {
	if img == nil {
		return &ImageProcessingError{Operation: "save", Err: errors.New("input image is nil")}
	}
	if !IsSupportedImage(path) {
		return &ImageProcessingError{Operation: "save", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &ImageProcessingError{Operation: "save", Err: err}
		}
	}
	if err := imaging.Save(img, path); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}

// EncodeImage writes img to w in the named format ("png", "jpeg", ...).
func EncodeImage(w io.Writer, img image.Image, format string) error {
	f, err := imaging.FormatFromExtension(strings.TrimPrefix(format, "."))
	if err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	if err := imaging.Encode(w, img, f); err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	return nil
}

// ValidateImageConstraints checks dimensions against the provided constraints.
// Zero limits are not enforced.
func ValidateImageConstraints(img image.Image, constraints ImageConstraints) error {
	if img == nil {
		return &ImageProcessingError{Operation: "validate", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < constraints.MinWidth || h < constraints.MinHeight {
		return &ImageProcessingError{
			Operation: "validate",
			Err: fmt.Errorf(
				"image too small: %dx%d < %dx%d",
				w, h, constraints.MinWidth, constraints.MinHeight,
			),
		}
	}
	if (constraints.MaxWidth > 0 && w > constraints.MaxWidth) || (constraints.MaxHeight > 0 && h > constraints.MaxHeight) {
		return &ImageProcessingError{
			Operation: "validate",
			Err: fmt.Errorf(
				"image too large: %dx%d > %dx%d",
				w, h, constraints.MaxWidth, constraints.MaxHeight,
			),
		}
	}
	return nil
}
