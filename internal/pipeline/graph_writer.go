package pipeline

import "auditgraph/pkg/models"

// GraphWriter writes provenance graph elements to a durable sink.
type GraphWriter interface {
	PutVertex(vertex *models.Vertex) error
	PutEdge(edge *models.Edge) error
	Close() error
}
