package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// WriteLines writes lines to path, one per line, replacing the file
// atomically through a temp file and rename.
func WriteLines(path string, lines []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}

	return nil
}

// LineLog appends report lines to a file.
type LineLog struct {
	mu sync.Mutex
	f  *os.File
}

func OpenLineLog(path string) (*LineLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open report log: %w", err)
	}
	return &LineLog{f: f}, nil
}

func (l *LineLog) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append report line: %w", err)
	}
	return nil
}

func (l *LineLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
