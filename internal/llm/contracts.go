package llm

import (
	"context"
	"errors"
)

// ErrExtractionFailed is returned once every attempt for an image failed.
var ErrExtractionFailed = errors.New("extraction failed after retries")

// MenuItem is one priced line extracted from an image.
type MenuItem struct {
	Name        string `json:"Name"`
	Value       string `json:"Value"` // locale-formatted currency text, e.g. "R$ 20,00"
	Category    string `json:"Category"`
	Description string `json:"Description"`
}

// ExtractRequest carries one encoded image plus the classification inputs.
type ExtractRequest struct {
	ImageName         string
	MIMEType          string
	ImageBase64       string
	AllowedCategories []string
	FallbackCategory  string
}

// ItemExtractor is the interface the pipeline depends on.
type ItemExtractor interface {
	ExtractItems(ctx context.Context, req ExtractRequest) ([]MenuItem, error)
}
