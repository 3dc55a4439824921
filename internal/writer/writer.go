// Package writer resolves the output directory and writes the documents a
// pipeline run produced.
package writer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikemuryn/VoiceNotes/internal/domain/pipeline"
)

// DefaultOutputDir is the directory containing the audio file.
func DefaultOutputDir(audioPath string) string {
	return filepath.Dir(audioPath)
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return nil
}

// WriteDocuments writes every document into dir. onWrite, when set, is called
// with each written path. Rewriting identical content is harmless, so a rerun
// over the same output directory simply refreshes the files.
func WriteDocuments(dir string, docs []pipeline.Document, onWrite func(path string)) error {
	if err := EnsureDir(dir); err != nil {
		return err
	}
	for _, doc := range docs {
		path := filepath.Join(dir, doc.Name)
		if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", doc.Name, err)
		}
		if onWrite != nil {
			onWrite(path)
		}
	}
	return nil
}
