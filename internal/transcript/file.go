package transcript

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// SaveFile writes the whole transcript to path atomically. There is no
// partial or append persistence: every save is a full-file round trip.
func (t *Transcript) SaveFile(path string) error {
	data, err := t.Serialize()
	if err != nil {
		return fmt.Errorf("serialize transcript: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create transcript dir: %w", err)
		}
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write transcript %s: %w", path, err)
	}
	return nil
}

// LoadFile replaces the transcript with the file's contents.
func (t *Transcript) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read transcript %s: %w", path, err)
	}
	if err := t.Deserialize(data); err != nil {
		return fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return nil
}
