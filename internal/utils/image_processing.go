package utils

import (
	"fmt"
)

// ImageProcessingError represents errors that can occur during image I/O.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds the dimensions of accepted input images.
type ImageConstraints struct {
	MaxWidth  int
	MaxHeight int
	MinWidth  int
	MinHeight int
}

// DefaultImageConstraints accepts any non-empty image up to 16384 pixels per side.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MaxWidth:  16384,
		MaxHeight: 16384,
		MinWidth:  1,
		MinHeight: 1,
	}
}
