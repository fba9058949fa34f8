package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxImportFileBytes caps a single backfill file read into memory.
const MaxImportFileBytes = 1 << 30

// ReadImportFile reads a local backfill file.
func ReadImportFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImportFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > MaxImportFileBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, MaxImportFileBytes)
	}
	return data, nil
}

// ExpandImportPaths turns files and directories into a sorted list of files
// with one of exts. Directories are walked recursively.
func ExpandImportPaths(paths []string, exts ...string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && hasExt(strings.ToLower(path), exts) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}
