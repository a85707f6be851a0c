package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"ofs-bridge/internal/codec"
)

// FileReader reads local files for upload and writes downloaded content.
type FileReader struct {
	BaseDir string
}

// NewFileReader creates a new FileReader.
func NewFileReader(baseDir string) *FileReader {
	return &FileReader{
		BaseDir: baseDir,
	}
}

func (f *FileReader) resolve(path string) string {
	if !filepath.IsAbs(path) && f.BaseDir != "" {
		return filepath.Join(f.BaseDir, path)
	}
	return path
}

// ReadBase64 reads a file (relative to BaseDir if relative) and returns its
// content as base64 along with the raw byte size.
func (f *FileReader) ReadBase64(path string) (string, int64, error) {
	fullPath := f.resolve(path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read file %s: %w", fullPath, err)
	}
	return codec.Encode(data), int64(len(data)), nil
}

// WriteDecoded decodes payload and writes it to path.
func (f *FileReader) WriteDecoded(path, payload string) (int, error) {
	data, err := codec.Decode(payload)
	if err != nil {
		return 0, err
	}
	fullPath := f.resolve(path)
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}
	return len(data), nil
}

// Exists checks if a regular file exists.
func (f *FileReader) Exists(path string) bool {
	info, err := os.Stat(f.resolve(path))
	if err != nil {
		return false
	}
	return !info.IsDir()
}
