// utils/unzip.go
package utils

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// MaxZipEntryBytes caps the uncompressed size of one archive entry.
const MaxZipEntryBytes = 256 << 20

// ZipEntry is one regular file read from an archive.
type ZipEntry struct {
	Name string
	Data []byte
}

// ReadZip returns the regular files of an in-memory archive whose extension
// is in exts (all files when exts is empty), sorted by name. Entries with
// absolute or parent-relative paths are rejected.
func ReadZip(data []byte, exts ...string) ([]ZipEntry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if errors.Is(err, zip.ErrInsecurePath) && r != nil {
		err = nil // reported per entry below
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	var out []ZipEntry
	for _, f := range r.File {
		// ✅ Security: reject zip slip style names even though nothing is written to disk
		clean := path.Clean(f.Name)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, fmt.Errorf("illegal file path: %s", f.Name)
		}
		if f.FileInfo().IsDir() || !hasExt(clean, exts) {
			continue
		}
		if f.UncompressedSize64 > MaxZipEntryBytes {
			return nil, fmt.Errorf("archive entry %s exceeds %d bytes", f.Name, MaxZipEntryBytes)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		body, err := io.ReadAll(io.LimitReader(rc, MaxZipEntryBytes+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		if len(body) > MaxZipEntryBytes {
			return nil, fmt.Errorf("archive entry %s exceeds %d bytes", f.Name, MaxZipEntryBytes)
		}
		out = append(out, ZipEntry{Name: clean, Data: body})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
