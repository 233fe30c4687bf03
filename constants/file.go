package constants

import "strings"

// Format is the document family a file belongs to, derived from its extension.
type Format string

const (
	PDF   Format = "PDF"
	DOCX  Format = "DOCX"
	SHEET Format = "SHEET"
	IMAGE Format = "IMAGE"
)

// SupportedExtensions maps lowercased extensions (sans '.') to their document format.
// Anything not listed here is routed to enquiries without extraction.
var SupportedExtensions = map[string]Format{
	"pdf":  PDF,
	"docx": DOCX,
	"xls":  SHEET,
	"xlsx": SHEET,
	"png":  IMAGE,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the format for ext, or "" when the extension is unsupported.
func MapExtToFormat(ext string) Format {
	return SupportedExtensions[NormalizeExt(ext)]
}

// IsAllowedExt reports whether ext belongs to a supported document family.
func IsAllowedExt(ext string) bool {
	return MapExtToFormat(ext) != ""
}
