package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/stackhound/stackhound/internal/types"
)

// JSONLSink streams one JSON object per line. Records hit disk as soon
// as they are emitted, so a crawl killed mid-run keeps what it found.
type JSONLSink struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLSink creates the output file, making parent directories as
// needed.
func NewJSONLSink(outputPath string, logger *slog.Logger) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, &types.SinkError{Sink: "jsonl", Err: fmt.Errorf("create output dir: %w", err)}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, &types.SinkError{Sink: "jsonl", Err: fmt.Errorf("create output file: %w", err)}
	}

	return &JSONLSink{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_sink"),
	}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Emit(record *types.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(record); err != nil {
		return &types.SinkError{Sink: "jsonl", Err: err}
	}
	s.count++
	s.logger.Debug("record written", "url", record.URL, "total", s.count)
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("output closed", "path", s.path, "records", s.count)
	if err := s.file.Close(); err != nil {
		return &types.SinkError{Sink: "jsonl", Err: err}
	}
	return nil
}

// JSONSink buffers records and writes a single indented JSON array on
// Close.
type JSONSink struct {
	path    string
	records []*types.ProductRecord
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewJSONSink creates a buffered array sink.
func NewJSONSink(outputPath string, logger *slog.Logger) (*JSONSink, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, &types.SinkError{Sink: "json", Err: fmt.Errorf("create output dir: %w", err)}
	}

	return &JSONSink{
		path:    outputPath,
		records: make([]*types.ProductRecord, 0),
		logger:  logger.With("component", "json_sink"),
	}, nil
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Emit(record *types.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.SinkError{Sink: "json", Err: fmt.Errorf("create output file: %w", err)}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.records); err != nil {
		return &types.SinkError{Sink: "json", Err: err}
	}

	s.logger.Info("output closed", "path", s.path, "records", len(s.records))
	return nil
}
