// Package archive moves finished files out of the working folders.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Move relocates src into dir as prefix+base(src) and returns the new path.
// When that name is taken, the next free "_n" name is used instead.
func Move(src, dir, prefix string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	dst, err := FreePath(dir, prefix+filepath.Base(src))
	if err != nil {
		return "", err
	}
	if err := moveFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// FreePath returns dir/base when nothing exists there yet, otherwise the
// next free "_n" name.
func FreePath(dir, base string) (string, error) {
	dst := filepath.Join(dir, base)
	if !exists(dst) {
		return dst, nil
	}
	return NextFreeName(dir, base)
}

// NextFreeName returns dir/<stem>_<n><ext> for the lowest n >= 1 not present in dir.
func NextFreeName(dir, base string) (string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; n < 1<<20; n++ {
		candidate := filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("no free archive name for %s in %s", base, dir)
}

// Rotate moves an existing file at path into dir under the next free
// numbered name. It returns "" when there was nothing to move.
func Rotate(path, dir string) (string, error) {
	if !exists(path) {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	dst, err := NextFreeName(dir, filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := moveFile(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// moveFile tries an atomic rename; if it fails (e.g., EXDEV), copy then remove src.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	inF, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	outF, err := os.Create(dst)
	if err != nil {
		_ = inF.Close()
		return fmt.Errorf("move %s: %w", src, err)
	}
	if _, err := io.Copy(outF, inF); err != nil {
		_ = inF.Close()
		_ = outF.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := outF.Close(); err != nil {
		_ = inF.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := inF.Close(); err != nil {
		return fmt.Errorf("close %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove %s after copy: %w", src, err)
	}
	return nil
}
