package utils

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#ffffff", color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"ff0000", color.NRGBA{R: 255, A: 255}},
		{"#0f0", color.NRGBA{G: 255, A: 255}},
		{"#11223380", color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x80}},
		{" White ", color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"black", color.NRGBA{A: 255}},
		{"transparent", color.NRGBA{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "#12", "red", "#gggggg", "#112233zz"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatColor(t *testing.T) {
	assert.Equal(t, "#ff8000", FormatColor(color.NRGBA{R: 255, G: 128, A: 255}))
	assert.Equal(t, "#11223380", FormatColor(color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x80}))

	c, err := ParseColor(FormatColor(color.NRGBA{R: 1, G: 2, B: 3, A: 4}))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 4}, c)
}
