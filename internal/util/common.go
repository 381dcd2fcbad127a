// internal/util/common.go

package util

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ResolvePath joins base and rel unless rel is already absolute, in which
// case the cleaned rel wins. filepath.Join alone would turn ("a", "/b")
// into "a/b".
func ResolvePath(base, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(base, rel)
}

// WriteFile writes b to path, creating parent directories if needed.
func WriteFile(path string, b []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

// WriteJSONFile writes v as indented JSON.
func WriteJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFile(path, append(b, '\n'))
}
