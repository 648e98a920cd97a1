package models

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// Vertex types emitted by the reporter.
const (
	TypeProcess  = "Process"
	TypeArtifact = "Artifact"
)

// Common annotation keys shared by vertices and edges.
const (
	AnnotationSource      = "source"
	AnnotationTime        = "time"
	AnnotationOperation   = "operation"
	AnnotationEventID     = "event id"
	AnnotationVersion     = "version"
	AnnotationEpoch       = "epoch"
	AnnotationSubtype     = "subtype"
	AnnotationPath        = "path"
	AnnotationMemoryAddr  = "memory address"
	AnnotationSize        = "size"
	AnnotationPid         = "pid"
	AnnotationPpid        = "ppid"
	AnnotationName        = "name"
	AnnotationCommandLine = "commandline"
	AnnotationCwd         = "cwd"
	AnnotationStartTime   = "start time"
	AnnotationUnit        = "unit"
	AnnotationIteration   = "iteration"
	AnnotationCount       = "count"
)

// Provenance record sources.
const (
	SourceAudit = "/dev/audit"
	SourceProc  = "/proc"
	SourceBeep  = "beep"
)

// Vertex is a provenance graph vertex with a flat annotation map.
type Vertex struct {
	Type        string            `json:"type"`
	Annotations map[string]string `json:"annotations"`
}

// NewVertex creates a vertex of the given type with an empty annotation map.
func NewVertex(vertexType string) *Vertex {
	return &Vertex{
		Type:        vertexType,
		Annotations: make(map[string]string),
	}
}

// Add sets a single annotation.
func (v *Vertex) Add(key, value string) {
	if v.Annotations == nil {
		v.Annotations = make(map[string]string)
	}
	v.Annotations[key] = value
}

// Annotation returns an annotation value, or "" when absent.
func (v *Vertex) Annotation(key string) string {
	if v == nil || v.Annotations == nil {
		return ""
	}
	return v.Annotations[key]
}

// ID returns a stable content hash over the vertex type and annotations.
// Two vertices with the same type and annotations share an ID.
func (v *Vertex) ID() string {
	return contentHash(v.Type, v.Annotations)
}

func contentHash(kind string, annotations map[string]string) string {
	keys := make([]string, 0, len(annotations))
	for k := range annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(kind)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString(":")
		b.WriteString(annotations[k])
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
