package image

// Limits bounds what an upload may contain.
type Limits struct {
	MaxFileSize    int64
	MaxPixels      int64
	MaxWidth       int
	MaxHeight      int
	AllowedFormats []string
}

// ValidationResult captures the outcome of validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	MimeType     string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}
