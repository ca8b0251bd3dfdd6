package eventlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileBackend stores records as JSON lines in a single file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the JSON lines file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Append writes line followed by a newline in one write call.
func (f *FileBackend) Append(ctx context.Context, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := file.Write(buf); err != nil {
		_ = file.Close()
		return fmt.Errorf("write log: %w", err)
	}
	return file.Close()
}

// Scan reads the file line by line. Blank lines are ignored and a trailing
// line without a newline is still delivered.
func (f *FileBackend) Scan(ctx context.Context, fn func(line []byte) error) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := bufio.NewReader(file)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			if err := fn(line); err != nil {
				return err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read log: %w", readErr)
		}
	}
}

// Size returns the file size in bytes.
func (f *FileBackend) Size(ctx context.Context) (int64, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0, fmt.Errorf("stat log: %w", err)
	}
	return info.Size(), nil
}
