package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// NormalizeItemsJSON
// - Unwraps a single-key object holding the array ({"items": [...]})
// - Fills missing / null fields with ""
// - Coerces numbers and booleans to strings
// - Removes unknown keys
// - Trims whitespace
// Anything that is not an array of objects is rejected.
func NormalizeItemsJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("normalize: decode: %w", err)
	}

	changed := make([]string, 0, 4)
	if obj, ok := doc.(map[string]any); ok && len(obj) == 1 {
		for k, v := range obj {
			if _, isList := v.([]any); isList {
				doc = v
				changed = append(changed, k+"(unwrapped)")
			}
		}
	}

	list, ok := doc.([]any)
	if !ok {
		return nil, changed, fmt.Errorf("normalize: expected array, got %T", doc)
	}

	out := make([]map[string]string, 0, len(list))
	for i, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, changed, fmt.Errorf("normalize: item %d is %T, want object", i, el)
		}
		item := make(map[string]string, len(ItemFields))
		for _, f := range ItemFields {
			v, present := obj[f]
			switch t := v.(type) {
			case string:
				item[f] = strings.TrimSpace(t)
			case float64:
				item[f] = strconv.FormatFloat(t, 'f', -1, 64)
				changed = append(changed, fmt.Sprintf("%d.%s(number)", i, f))
			case bool:
				item[f] = strconv.FormatBool(t)
				changed = append(changed, fmt.Sprintf("%d.%s(bool)", i, f))
			case nil:
				item[f] = ""
				if present {
					changed = append(changed, fmt.Sprintf("%d.%s(null)", i, f))
				} else {
					changed = append(changed, fmt.Sprintf("%d.%s(missing)", i, f))
				}
			default:
				item[f] = ""
				changed = append(changed, fmt.Sprintf("%d.%s(type)", i, f))
			}
		}
		for k := range obj {
			if !isItemField(k) {
				changed = append(changed, fmt.Sprintf("%d.%s(unknown)", i, k))
			}
		}
		out = append(out, item)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, changed, fmt.Errorf("normalize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.extract.normalize", "changed", changed)
	}
	return b, changed, nil
}

func isItemField(k string) bool {
	for _, f := range ItemFields {
		if f == k {
			return true
		}
	}
	return false
}
