package image

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"media-caption-server/internal/platform/errors"
	"media-caption-server/internal/platform/logging"
)

// SecurityValidator checks uploaded image bytes against Limits.
type SecurityValidator struct {
	limits Limits
	logger *logging.Logger
}

func NewSecurityValidator(limits Limits, logger *logging.Logger) *SecurityValidator {
	return &SecurityValidator{limits: limits, logger: logger}
}

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
}

var suspiciousPrefixes = [][]byte{
	{0x4D, 0x5A},             // PE executable
	{0x25, 0x50, 0x44, 0x46}, // PDF
	{0x50, 0x4B, 0x03, 0x04}, // zip
	{0x1F, 0x8B, 0x08},       // gzip
}

// DetectMIME sniffs the MIME type of data. Parameters such as charset are
// stripped.
func DetectMIME(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}

// Read drains r up to max bytes. A larger payload is an error.
func Read(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, errors.Wrap(errors.KindResource, "image.read", "failed to read upload", err)
	}
	if int64(len(data)) > max {
		return nil, errors.New(errors.KindDomain, "image.read", fmt.Sprintf("upload exceeds %d bytes", max))
	}
	return data, nil
}

// Validate returns the MIME type of a valid image, or a domain error.
func (v *SecurityValidator) Validate(data []byte) (string, error) {
	result := v.ValidateBytes(data)
	if !result.IsValid {
		return "", errors.Wrap(errors.KindDomain, "image.validate", "invalid image upload", result.Error)
	}
	return result.MimeType, nil
}

// ValidateBytes runs every check and reports the details.
func (v *SecurityValidator) ValidateBytes(data []byte) ValidationResult {
	result := ValidationResult{FileSize: int64(len(data))}

	if len(data) == 0 {
		result.Error = fmt.Errorf("empty image payload")
		return result
	}

	if v.limits.MaxFileSize > 0 && int64(len(data)) > v.limits.MaxFileSize {
		result.Error = fmt.Errorf("file size exceeds limit: %d bytes (max %d bytes)", len(data), v.limits.MaxFileSize)
		result.SecurityRisk = "file too large"
		v.warn("oversized image: size=%d max_size=%d", len(data), v.limits.MaxFileSize)
		return result
	}

	for _, prefix := range suspiciousPrefixes {
		if bytes.HasPrefix(data, prefix) {
			result.Error = fmt.Errorf("potential malicious content detected")
			result.SecurityRisk = "suspicious content"
			v.warn("rejected upload with signature %x", prefix)
			return result
		}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("decode image config: %w", err)
		result.SecurityRisk = "corrupted image data"
		return result
	}
	result.Format = format

	if !v.isFormatAllowed(format) {
		result.Error = fmt.Errorf("unsupported format: %s", format)
		result.SecurityRisk = "unapproved format"
		return result
	}
	if !validateFileSignature(data, format) {
		result.Error = fmt.Errorf("file signature does not match %s", format)
		result.SecurityRisk = "signature mismatch"
		v.warn("file signature mismatch: format=%s header=%x", format, data[:min(len(data), 16)])
		return result
	}

	if (v.limits.MaxWidth > 0 && cfg.Width > v.limits.MaxWidth) ||
		(v.limits.MaxHeight > 0 && cfg.Height > v.limits.MaxHeight) {
		result.Error = fmt.Errorf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, v.limits.MaxWidth, v.limits.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}

	totalPixels := int64(cfg.Width) * int64(cfg.Height)
	if v.limits.MaxPixels > 0 && totalPixels > v.limits.MaxPixels {
		result.Error = fmt.Errorf("pixel count exceeds limit: %d (max %d)", totalPixels, v.limits.MaxPixels)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	result.IsValid = true
	result.Width = cfg.Width
	result.Height = cfg.Height
	result.MimeType = DetectMIME(data)

	if v.logger != nil {
		v.logger.DebugTag("Media", "image validated: format=%s mime=%s %dx%d size=%d",
			result.Format, result.MimeType, result.Width, result.Height, result.FileSize)
	}
	return result
}

func (v *SecurityValidator) isFormatAllowed(format string) bool {
	if len(v.limits.AllowedFormats) == 0 {
		return true
	}
	format = strings.ToLower(format)
	for _, allowed := range v.limits.AllowedFormats {
		allowed = strings.ToLower(allowed)
		if allowed == format || (allowed == "jpg" && format == "jpeg") {
			return true
		}
	}
	return false
}

func (v *SecurityValidator) warn(format string, args ...interface{}) {
	if v.logger != nil {
		v.logger.WarnTag("Media", format, args...)
	}
}

func validateFileSignature(data []byte, format string) bool {
	signature, ok := imageSignatures[strings.ToLower(format)]
	if !ok {
		return true
	}
	return bytes.HasPrefix(data, signature)
}
