package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListImages returns the image files directly inside dir, sorted by name.
// Subdirectories and hidden files are ignored.
func ListImages(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("input dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || IsHidden(e.Name()) {
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		if !AllowedExt(filepath.Ext(e.Name())) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
