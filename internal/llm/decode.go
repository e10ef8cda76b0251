package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/menu-catalog/constants"
)

// Decoder validates model output text and turns it into records.
type Decoder struct {
	schema  *jsonschema.Schema
	lenient bool
	log     *slog.Logger
}

// NewDecoder compiles the validation schema once.
func NewDecoder(lenient bool, logger *slog.Logger) (*Decoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := CompileSchema(BuildValidationSchema())
	if err != nil {
		return nil, err
	}
	return &Decoder{schema: schema, lenient: lenient, log: logger}, nil
}

// Decode validates text strictly; in lenient mode a failing document is
// normalized and validated again. An absent Description is read as "" in
// both modes. Categories are canonicalized against allowed, unknown labels
// become fallback.
func (d *Decoder) Decode(text string, allowed []string, fallback string) ([]MenuItem, error) {
	content := []byte(stripFences(text))

	if !json.Valid(content) {
		return nil, fmt.Errorf("model output is not valid json")
	}

	content = fillMissingDescription(content)

	if err := ValidateJSON(d.schema, content); err != nil {
		if !d.lenient {
			return nil, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, _, nErr := NormalizeItemsJSON(content, d.log)
		if nErr != nil {
			return nil, fmt.Errorf("normalize failed: %w", nErr)
		}
		if vErr := ValidateJSON(d.schema, cleaned); vErr != nil {
			return nil, fmt.Errorf("schema validation failed: %w", vErr)
		}
		content = cleaned
	}

	var items []MenuItem
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}

	if fallback == "" {
		fallback = constants.DefaultFallbackCategory
	}
	for i := range items {
		cat, ok := constants.CanonicalizeCategory(items[i].Category, allowed, fallback)
		if !ok {
			d.log.Debug("llm.extract.category_fallback", "name", items[i].Name, "category", items[i].Category, "fallback", fallback)
		}
		items[i].Category = cat
	}
	return items, nil
}

// fillMissingDescription adds "Description": "" to records that lack the key.
// Documents that are not an array of objects are returned untouched.
func fillMissingDescription(content []byte) []byte {
	var list []any
	if err := json.Unmarshal(content, &list); err != nil {
		return content
	}
	filled := false
	for _, el := range list {
		rec, ok := el.(map[string]any)
		if !ok {
			return content
		}
		if _, has := rec["Description"]; !has {
			rec["Description"] = ""
			filled = true
		}
	}
	if !filled {
		return content
	}
	out, err := json.Marshal(list)
	if err != nil {
		return content
	}
	return out
}

// stripFences removes a ```json ... ``` wrapper some models add despite the
// response MIME type.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
