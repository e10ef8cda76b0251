package constants

import "strings"

// AllowedExtensions holds the image extensions picked up from the input folder.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// SheetExt is the extension of every spreadsheet the pipeline writes.
const SheetExt = ".xlsx"

// Name prefixes for images moved out of the input folder without being processed.
const (
	CorruptedPrefix = "CORRUPTED_"
	DuplicatePrefix = "DUPLICATE_"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MIMEForExt maps an image extension to the MIME type sent to the model.
// Only png is distinguished; everything else is sent as jpeg.
func MIMEForExt(ext string) string {
	if NormalizeExt(ext) == "png" {
		return "image/png"
	}
	return "image/jpeg"
}
