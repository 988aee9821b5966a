// internal/report/jsonl.go
package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// JSONL appends one JSON object per event to a file.
type JSONL struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	enc    *json.Encoder
	logger *zap.Logger
}

// NewJSONL opens path for appending, creating parent directories.
func NewJSONL(path string, logger *zap.Logger) (*JSONL, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	buf := bufio.NewWriter(f)
	return &JSONL{
		file:   f,
		buf:    buf,
		enc:    json.ConfigCompatibleWithStandardLibrary.NewEncoder(buf),
		logger: logger.Named("jsonl-report"),
	}, nil
}

// Record writes ev and flushes so followers see it promptly. Write errors
// are logged, not returned: reporting never fails a test.
func (j *JSONL) Record(ev Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return
	}
	if err := j.enc.Encode(ev); err != nil {
		j.logger.Warn("Failed to encode report event.", zap.Error(err))
		return
	}
	if err := j.buf.Flush(); err != nil {
		j.logger.Warn("Failed to flush report event.", zap.Error(err))
	}
}

func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	flushErr := j.buf.Flush()
	closeErr := j.file.Close()
	j.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
