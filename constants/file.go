package constants

import "strings"

// Document formats understood by the extraction layer.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	JSON  = "JSON"
)

// FileTypes holds the document formats an invoice may arrive in.
var FileTypes = []string{PDF, IMAGE, JSON}

// AllowedExtensions holds the default allowed file extensions for invoice discovery.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"json": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat returns the document format for an extension, or "" if unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tif", "tiff":
		return IMAGE
	case "json":
		return JSON
	default:
		return ""
	}
}

// IsAllowedExt reports whether files with ext are picked up by discovery.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// DefaultCurrency applies when neither the document nor the PO names one.
const DefaultCurrency = "GBP"
