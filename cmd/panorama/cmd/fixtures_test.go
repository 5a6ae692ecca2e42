package cmd

import "image"

var (
	rectA = image.Rect(0, 0, 200, 150)
	rectB = image.Rect(120, 20, 320, 170)
)
