package reporter

import (
	"auditgraph/pkg/models"
)

// SeedProcess registers and emits a process vertex discovered outside
// the audit stream, typically from a /proc scan at startup. An already
// known pid keeps its existing vertex.
func (r *Reporter) SeedProcess(annotations map[string]string) *models.Vertex {
	return r.putProcess(annotations, false)
}

// SeedTriggeredBy draws a parent-child edge between seeded processes.
func (r *Reporter) SeedTriggeredBy(child, parent *models.Vertex) {
	r.putWasTriggeredByEdge(child, parent, "", "", models.SourceProc, "")
}
