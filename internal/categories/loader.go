// Package categories loads the allow-list of classification labels.
package categories

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joseph-ayodele/menu-catalog/internal/common"
)

// Load reads a JSON array of strings from path. Every failure is a
// configuration error: the file must be fixed before any work proceeds.
func Load(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("categories file %q not found", path), common.ErrConfig)
		}
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("read categories file %q", path), errors.Join(common.ErrConfig, err))
	}
	return Parse(b)
}

// Parse decodes a JSON document that must be a non-empty list of strings.
func Parse(b []byte) ([]string, error) {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "categories file is not valid JSON", errors.Join(common.ErrConfig, err))
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, common.NewAppError("CONFIG_ERROR", "categories file must be a JSON array of strings", common.ErrConfig)
	}
	if len(list) == 0 {
		return nil, common.NewAppError("CONFIG_ERROR", "categories file is empty", common.ErrConfig)
	}

	out := make([]string, 0, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("categories[%d] is %T, want string", i, v), common.ErrConfig)
		}
		if strings.TrimSpace(s) == "" {
			return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("categories[%d] is blank", i), common.ErrConfig)
		}
		out = append(out, s)
	}
	return out, nil
}
