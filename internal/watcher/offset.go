package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// readOffset reads the byte offset from the offset tracking file.
// Returns 0 if the file does not exist.
func readOffset(offsetPath string) (int64, error) {
	data, err := os.ReadFile(offsetPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, nil
	}
	offset, err := strconv.ParseInt(s, 10, 64)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("parse offset %q: invalid byte offset", s)
	}
	return offset, nil
}

// writeOffsetAtomic writes offset to offsetPath via a temp-file rename.
func writeOffsetAtomic(offsetPath string, offset int64) error {
	dir := filepath.Dir(offsetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create offset dir: %w", err)
	}
	tmpPath := filepath.Join(dir, "."+filepath.Base(offsetPath)+".tmp")

	if err := os.WriteFile(tmpPath, []byte(strconv.FormatInt(offset, 10)), 0600); err != nil {
		return fmt.Errorf("write temp offset file: %w", err)
	}
	if err := os.Rename(tmpPath, offsetPath); err != nil {
		return fmt.Errorf("rename offset file: %w", err)
	}
	return nil
}
