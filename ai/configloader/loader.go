// Package configloader reads operator-edited configuration documents.
// Documents are read from disk on every call so edits apply without restart.
package configloader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// utf8BOM is written by some Windows editors at the start of JSON files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader reads JSON or YAML documents relative to a base directory.
type Loader struct {
	baseDir string
}

// NewLoader creates a new configuration loader.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		baseDir: baseDir,
	}
}

// BaseDir returns the directory documents are resolved against.
func (l *Loader) BaseDir() string {
	return l.baseDir
}

// Load reads a document and unmarshals it into target. The format follows
// the file extension: .yaml/.yml use YAML, anything else is JSON.
func (l *Loader) Load(subPath string, target any) error {
	data, err := l.ReadFileWithFallback(subPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", subPath, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	switch strings.ToLower(filepath.Ext(subPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
		}
	default:
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("unmarshal JSON %s: %w", subPath, err)
		}
	}

	return nil
}

// ReadFileWithFallback tries to read file from path relative to baseDir,
// then falls back to the executable directory for packaged builds.
// Absolute paths are read as-is.
func (l *Loader) ReadFileWithFallback(path string) ([]byte, error) {
	if filepath.IsAbs(path) {
		return os.ReadFile(path)
	}

	absPath := filepath.Join(l.baseDir, path)
	data, err := os.ReadFile(absPath)
	if err == nil {
		return data, nil
	}

	execPath, execErr := os.Executable()
	if execErr != nil {
		return nil, err
	}

	execDir := filepath.Dir(execPath)
	data, fallbackErr := os.ReadFile(filepath.Join(execDir, l.baseDir, path))
	if fallbackErr != nil {
		// report the primary location, it is the one operators configure
		return nil, err
	}
	return data, nil
}
