package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config controls WAL file rotation and retention
type Config struct {
	// FilePrefix names the segment files: <prefix>-<timestamp>.wal
	FilePrefix string

	// MaxFileSize triggers rotation once the active segment reaches it
	MaxFileSize int64

	// RetentionDays bounds how long rotated segments are kept
	RetentionDays int
}

// DefaultConfig returns the rotation settings used in production
func DefaultConfig() Config {
	return Config{
		FilePrefix:    "reaper",
		MaxFileSize:   64 * 1024 * 1024,
		RetentionDays: 30,
	}
}

// shouldRotate reports whether the active segment is full
func (w *WAL) shouldRotate() bool {
	return w.getCurrentFileSize() >= w.config.MaxFileSize
}

// rotate seals the active segment and starts a new one. The sequence
// keeps counting across segments.
func (w *WAL) rotate() error {
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("flush before rotation: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close segment: %w", err)
	}

	file, err := openSegment(w.dir, w.config.FilePrefix)
	if err != nil {
		return err
	}

	w.file = file
	w.writer.Reset(file)
	return nil
}

// openSegment creates a fresh segment file. Nanosecond timestamps keep
// names unique even when rotation fires twice within a second.
func openSegment(dir, prefix string) (*os.File, error) {
	filename := fmt.Sprintf("%s-%s.wal", prefix, time.Now().Format("20060102-150405.000000000"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal segment: %w", err)
	}
	return file, nil
}

// listWALFiles returns this WAL's segment files in name order
func (w *WAL) listWALFiles() []string {
	return findAllWALFiles(w.dir, w.config.FilePrefix)
}

// findAllWALFiles returns all WAL segments in a directory
func findAllWALFiles(dir, prefix string) []string {
	pattern := filepath.Join(dir, prefix+"-*.wal")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	return files
}
