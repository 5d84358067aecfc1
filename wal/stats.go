package wal

import (
	"io"
	"time"
)

// Stats represents WAL statistics
type Stats struct {
	TotalFiles      int
	TotalSizeBytes  int64
	OldestFile      time.Time
	NewestFile      time.Time
	CurrentFileSize int64

	SequenceCount int64
	FirstSequence int64
	LastSequence  int64
}

// GetStats returns current WAL statistics
func (w *WAL) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := Stats{
		LastSequence:    w.sequence,
		CurrentFileSize: w.getCurrentFileSize(),
	}

	files := w.listWALFiles()
	stats.TotalFiles = len(files)
	if len(files) == 0 {
		return stats
	}

	stats.TotalSizeBytes = calculateTotalSize(files)
	stats.OldestFile, stats.NewestFile = findTimeRange(files)

	stats.FirstSequence = findFirstSequenceInFiles(files)
	if stats.LastSequence >= stats.FirstSequence {
		stats.SequenceCount = stats.LastSequence - stats.FirstSequence + 1
	}

	return stats
}

// GetStatsFromDir returns statistics for a WAL directory without an
// active WAL, which is what the status command wants
func GetStatsFromDir(dir string, config Config) Stats {
	stats := Stats{}

	files := findAllWALFiles(dir, config.FilePrefix)
	if len(files) == 0 {
		return stats
	}

	stats.TotalFiles = len(files)
	stats.TotalSizeBytes = calculateTotalSize(files)
	stats.OldestFile, stats.NewestFile = findTimeRange(files)

	stats.FirstSequence = findFirstSequenceInFiles(files)
	stats.LastSequence = findLastSequenceInFiles(files)
	if stats.LastSequence >= stats.FirstSequence {
		stats.SequenceCount = stats.LastSequence - stats.FirstSequence + 1
	}

	return stats
}

// getCurrentFileSize returns size of the active segment
func (w *WAL) getCurrentFileSize() int64 {
	info, err := w.file.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// findFirstSequenceInFiles reads the first entry of the oldest segment
func findFirstSequenceInFiles(files []string) int64 {
	if len(files) == 0 {
		return 0
	}

	reader, err := NewReader(files[0])
	if err != nil {
		return 0
	}
	defer func() { _ = reader.Close() }()

	entry, err := reader.Next()
	if err != nil {
		return 0
	}

	return entry.Sequence
}

// findLastSequenceInFiles finds the highest sequence across segments
func findLastSequenceInFiles(files []string) int64 {
	maxSeq := int64(0)

	for _, file := range files {
		if fileMax := maxSequenceInFile(file); fileMax > maxSeq {
			maxSeq = fileMax
		}
	}

	return maxSeq
}

// maxSequenceInFile scans one segment, skipping corrupted entries
func maxSequenceInFile(path string) int64 {
	reader, err := NewReader(path)
	if err != nil {
		return 0
	}
	defer func() { _ = reader.Close() }()

	maxSeq := int64(0)
	for {
		entry, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			continue
		}
		if entry.Sequence > maxSeq {
			maxSeq = entry.Sequence
		}
	}
	return maxSeq
}

// HealthStatus represents WAL health
type HealthStatus struct {
	Healthy          bool
	DiskUsagePercent float64
	OldestFileAge    time.Duration
	NeedsRotation    bool
	NeedsCleanup     bool
	Issues           []string
}

// GetHealth returns WAL health status
func (w *WAL) GetHealth() HealthStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	health := HealthStatus{
		Healthy: true,
		Issues:  []string{},
	}

	w.checkDiskUsage(&health)
	w.checkFileAge(&health)
	if w.shouldRotate() {
		health.NeedsRotation = true
		health.Issues = append(health.Issues, "file rotation needed")
	}

	health.Healthy = len(health.Issues) == 0

	return health
}

// checkDiskUsage checks active segment size against the rotation limit
func (w *WAL) checkDiskUsage(health *HealthStatus) {
	size := w.getCurrentFileSize()
	health.DiskUsagePercent = float64(size) / float64(w.config.MaxFileSize) * 100

	if health.DiskUsagePercent > 90 {
		health.Issues = append(health.Issues, "current file >90% of max size")
	}
}

// checkFileAge checks oldest segment age against retention
func (w *WAL) checkFileAge(health *HealthStatus) {
	files := w.listWALFiles()
	if len(files) == 0 {
		return
	}

	oldest, _ := findTimeRange(files)
	health.OldestFileAge = time.Since(oldest)

	retention := time.Duration(w.config.RetentionDays) * 24 * time.Hour
	if health.OldestFileAge > retention {
		health.NeedsCleanup = true
		health.Issues = append(health.Issues, "old files exceed retention period")
	}
}
