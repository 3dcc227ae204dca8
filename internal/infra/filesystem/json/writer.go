package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer writes files atomically: content goes to a temporary sibling first
// and is renamed over the target, so readers never observe a partial file.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// WriteJSON writes data as indented JSON to path.
func (w *Writer) WriteJSON(path string, data any) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return w.WriteBytes(path, append(content, '\n'))
}

// WriteBytes writes raw bytes to path.
func (w *Writer) WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	return nil
}
