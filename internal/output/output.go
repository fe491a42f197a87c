// Package output persists product records. Sinks are append-oriented:
// the engine emits one record at a time as pages complete, and Close
// flushes whatever the format buffers.
package output

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/types"
)

// Sink receives emitted product records.
type Sink interface {
	Name() string
	Emit(record *types.ProductRecord) error
	Close() error
}

// New builds the sink named by the output configuration.
func New(cfg *config.OutputConfig, logger *slog.Logger) (Sink, error) {
	switch strings.ToLower(cfg.Type) {
	case "jsonl":
		return NewJSONLSink(cfg.Path, logger)
	case "json":
		return NewJSONSink(cfg.Path, logger)
	case "mongodb":
		return NewMongoSink(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	default:
		return nil, fmt.Errorf("unknown output type %q", cfg.Type)
	}
}
