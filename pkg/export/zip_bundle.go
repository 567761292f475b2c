package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// BundleEntry is one file inside a ZIP bundle.
type BundleEntry struct {
	Name    string
	Content []byte
}

// Bundle packs entries into a deflated ZIP archive. Duplicate names keep the
// first occurrence.
func Bundle(entries []BundleEntry, modified time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.Name]; dup {
			continue
		}
		seen[entry.Name] = struct{}{}
		header := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate, Modified: modified}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", entry.Name, err)
		}
		if _, err := w.Write(entry.Content); err != nil {
			return nil, fmt.Errorf("write %s: %w", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}
