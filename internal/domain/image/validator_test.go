package image

import (
	"bytes"
	stdimage "image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-caption-server/internal/platform/errors"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testLimits() Limits {
	return Limits{
		MaxFileSize:    1 << 20,
		MaxPixels:      64 * 64,
		MaxWidth:       64,
		MaxHeight:      64,
		AllowedFormats: []string{"jpeg", "png"},
	}
}

func TestValidateAcceptsPNG(t *testing.T) {
	v := NewSecurityValidator(testLimits(), nil)

	result := v.ValidateBytes(encodePNG(t, 8, 4))
	require.True(t, result.IsValid, "error: %v", result.Error)
	assert.Equal(t, "png", result.Format)
	assert.Equal(t, "image/png", result.MimeType)
	assert.Equal(t, 8, result.Width)
	assert.Equal(t, 4, result.Height)

	mime, err := v.Validate(encodePNG(t, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
}

func TestValidateRejections(t *testing.T) {
	v := NewSecurityValidator(testLimits(), nil)

	tests := []struct {
		name string
		data []byte
		risk string
	}{
		{name: "empty", data: nil},
		{name: "too wide", data: encodePNG(t, 65, 1), risk: "dimensions too large"},
		{name: "not an image", data: []byte("hello world"), risk: "corrupted image data"},
		{name: "executable", data: append([]byte{0x4D, 0x5A}, make([]byte, 32)...), risk: "suspicious content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateBytes(tt.data)
			assert.False(t, result.IsValid)
			assert.Error(t, result.Error)
			assert.Equal(t, tt.risk, result.SecurityRisk)

			_, err := v.Validate(tt.data)
			assert.True(t, errors.IsKind(err, errors.KindDomain))
		})
	}
}

func TestValidateFormatAllowList(t *testing.T) {
	limits := testLimits()
	limits.AllowedFormats = []string{"jpg"}
	v := NewSecurityValidator(limits, nil)

	result := v.ValidateBytes(encodePNG(t, 2, 2))
	assert.False(t, result.IsValid)
	assert.Equal(t, "unapproved format", result.SecurityRisk)
}

func TestValidatePixelLimit(t *testing.T) {
	limits := testLimits()
	limits.MaxPixels = 10
	v := NewSecurityValidator(limits, nil)

	result := v.ValidateBytes(encodePNG(t, 4, 4))
	assert.False(t, result.IsValid)
	assert.Equal(t, "pixel count too high", result.SecurityRisk)
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, "image/png", DetectMIME(encodePNG(t, 1, 1)))
	assert.Equal(t, "text/plain", DetectMIME([]byte("plain text")))
}

func TestRead(t *testing.T) {
	data, err := Read(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = Read(strings.NewReader("123456"), 5)
	assert.True(t, errors.IsKind(err, errors.KindDomain))
}
