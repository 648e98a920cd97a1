package models

// Edge types in the emitted provenance graph.
const (
	EdgeUsed           = "Used"
	EdgeWasGeneratedBy = "WasGeneratedBy"
	EdgeWasDerivedFrom = "WasDerivedFrom"
	EdgeWasTriggeredBy = "WasTriggeredBy"
)

// Edge is a directed provenance edge between two vertices, referenced by ID.
type Edge struct {
	Type        string            `json:"type"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Annotations map[string]string `json:"annotations"`
}

// NewEdge creates an edge of the given type between two vertices.
func NewEdge(edgeType string, from, to *Vertex) *Edge {
	return &Edge{
		Type:        edgeType,
		From:        from.ID(),
		To:          to.ID(),
		Annotations: make(map[string]string),
	}
}

// Add sets a single annotation.
func (e *Edge) Add(key, value string) {
	if e.Annotations == nil {
		e.Annotations = make(map[string]string)
	}
	e.Annotations[key] = value
}

// AddEventInfo sets the time, event id, operation and source annotations
// shared by every audit-derived edge.
func (e *Edge) AddEventInfo(time, eventID, operation, source string) {
	e.Add(AnnotationTime, time)
	e.Add(AnnotationEventID, eventID)
	e.Add(AnnotationOperation, operation)
	e.Add(AnnotationSource, source)
}

// ID returns a stable content hash covering type, endpoints and annotations.
func (e *Edge) ID() string {
	combined := make(map[string]string, len(e.Annotations)+2)
	for k, v := range e.Annotations {
		combined[k] = v
	}
	combined["from"] = e.From
	combined["to"] = e.To
	return contentHash(e.Type, combined)
}
