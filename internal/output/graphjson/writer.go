package graphjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"auditgraph/internal/logger"
	"auditgraph/pkg/models"
)

// record is one JSON line: a vertex or an edge with its content hash.
// Edges carry the hashes of their endpoints instead of the vertices
// themselves.
type record struct {
	Record      string            `json:"record"`
	Type        string            `json:"type"`
	ID          string            `json:"id"`
	From        string            `json:"from,omitempty"`
	To          string            `json:"to,omitempty"`
	Annotations map[string]string `json:"annotations"`
}

// Writer outputs provenance vertices and edges to a JSON lines file.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter creates a JSONL writer for graph elements.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("Graph JSON writer initialized: %s", path)
	return &Writer{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// PutVertex writes one vertex line.
func (w *Writer) PutVertex(vertex *models.Vertex) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec := record{
		Record:      "vertex",
		Type:        vertex.Type,
		ID:          vertex.ID(),
		Annotations: vertex.Annotations,
	}
	if err := w.encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode vertex: %w", err)
	}
	return nil
}

// PutEdge writes one edge line referencing its endpoints by id.
func (w *Writer) PutEdge(edge *models.Edge) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec := record{
		Record:      "edge",
		Type:        edge.Type,
		ID:          edge.ID(),
		From:        edge.From,
		To:          edge.To,
		Annotations: edge.Annotations,
	}
	if err := w.encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode edge: %w", err)
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
