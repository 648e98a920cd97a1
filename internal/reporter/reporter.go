package reporter

import (
	"strconv"
	"strings"

	"auditgraph/internal/artifact"
	"auditgraph/internal/cache"
	"auditgraph/internal/descriptor"
	"auditgraph/internal/logger"
	"auditgraph/internal/metrics"
	"auditgraph/internal/pipeline"
	"auditgraph/internal/syscalls"
	"auditgraph/pkg/models"
)

// Config carries the reporter feature toggles.
type Config struct {
	Arch syscalls.Arch

	// Simplify collapses syscall variants into operation families and
	// drops the saved/filesystem uid and gid annotations.
	Simplify bool
	// Units enables loop-level unit vertices driven by instrumented
	// kill() markers.
	Units bool
	// FileIO and NetIO gate read/write and send/recv edge emission.
	FileIO bool
	NetIO  bool
	// Memory gates mmap/mprotect handling.
	Memory bool
	// UnixSockets gates unix domain socket artifacts end to end.
	UnixSockets bool
	// NetSocketVersioning allows version bumps on network sockets.
	NetSocketVersioning bool
	// OnlySuccessful drops failed syscalls except kill and exit.
	OnlySuccessful bool
	// VersionExcludePrefixes lists path prefixes whose artifacts never
	// get version bumps, such as device nodes.
	VersionExcludePrefixes []string
}

// Reporter turns finalized audit events into provenance vertices and
// edges. All state is carried on the struct; event handling is single
// threaded by the pipeline.
type Reporter struct {
	cfg  Config
	sink pipeline.GraphWriter

	descriptors *descriptor.Tables
	artifacts   *cache.BoundedCache[*artifact.Properties]

	// Unit bookkeeping, one stack of process/unit vertices per pid with
	// the containing process at index zero.
	processUnitStack map[string][]*models.Vertex
	iterationNumber  map[string]map[string]int64
	repetitionCounts map[unitKey]int64
	pidToMemAddress  map[string]uint64
	lastTimestamp    string

	unsupportedSyscalls map[int]bool
}

type unitKey struct {
	Pid       string `json:"pid"`
	UnitID    string `json:"unit_id"`
	Iteration string `json:"iteration"`
}

// New creates a reporter writing to the given sink, with artifact
// version bookkeeping bounded by the artifacts cache.
func New(cfg Config, artifacts *cache.BoundedCache[*artifact.Properties], sink pipeline.GraphWriter) *Reporter {
	return &Reporter{
		cfg:                 cfg,
		sink:                sink,
		descriptors:         descriptor.NewTables(),
		artifacts:           artifacts,
		processUnitStack:    make(map[string][]*models.Vertex),
		iterationNumber:     make(map[string]map[string]int64),
		repetitionCounts:    make(map[unitKey]int64),
		pidToMemAddress:     make(map[string]uint64),
		unsupportedSyscalls: make(map[int]bool),
	}
}

// Descriptors exposes the descriptor tables for seeding and checkpoints.
func (r *Reporter) Descriptors() *descriptor.Tables {
	return r.descriptors
}

func (r *Reporter) putVertex(vertex *models.Vertex) {
	if vertex == nil {
		return
	}
	if err := r.sink.PutVertex(vertex); err != nil {
		logger.Errorf("Failed to write vertex: %v", err)
		return
	}
	metrics.VerticesEmitted.Inc()
}

func (r *Reporter) putEdge(edge *models.Edge) {
	if edge == nil {
		return
	}
	if err := r.sink.PutEdge(edge); err != nil {
		logger.Errorf("Failed to write edge: %v", err)
		return
	}
	metrics.EdgesEmitted.Inc()
}

func (r *Reporter) operation(name string) string {
	return syscalls.Operation(name, r.cfg.Simplify)
}

// artifactProperties returns the bookkeeping entry for an identity,
// creating one on first lookup. Mutations must be written back through
// saveArtifactProperties so the overflow tier stays current.
func (r *Reporter) artifactProperties(identity artifact.Identity) *artifact.Properties {
	props, ok, err := r.artifacts.Get(identity.Key())
	if err != nil {
		logger.Errorf("Artifact properties read failed for %s: %v", identity, err)
	}
	if !ok || props == nil {
		props = artifact.NewProperties()
	}
	return props
}

// peekArtifactProperties looks up properties without creating them.
func (r *Reporter) peekArtifactProperties(identity artifact.Identity) (*artifact.Properties, bool) {
	props, ok, err := r.artifacts.Get(identity.Key())
	if err != nil {
		logger.Errorf("Artifact properties read failed for %s: %v", identity, err)
		return nil, false
	}
	return props, ok && props != nil
}

func (r *Reporter) saveArtifactProperties(identity artifact.Identity, props *artifact.Properties) {
	if err := r.artifacts.Put(identity.Key(), props); err != nil {
		logger.Errorf("Artifact properties write failed for %s: %v", identity, err)
	}
}

func (r *Reporter) markNewEpoch(identity artifact.Identity, eventID string) {
	props := r.artifactProperties(identity)
	props.MarkNewEpoch(eventID)
	r.saveArtifactProperties(identity, props)
}

// putArtifact builds the artifact vertex for an identity, applying the
// versioning rules, and emits it when new or version-updated. A nil
// return means the artifact is suppressed by configuration.
func (r *Reporter) putArtifact(event map[string]string, identity artifact.Identity, updateVersion bool, source string) *models.Vertex {
	if identity.Kind == artifact.KindUnixSocket && !r.cfg.UnixSockets {
		return nil
	}
	if source == "" {
		source = models.SourceAudit
	}

	vertex := models.NewVertex(models.TypeArtifact)
	for key, value := range identity.Annotations() {
		vertex.Add(key, value)
	}
	vertex.Add(models.AnnotationSource, source)

	if identity.HasPath() && updateVersion {
		for _, prefix := range r.cfg.VersionExcludePrefixes {
			if strings.HasPrefix(identity.Path, prefix) {
				updateVersion = false
				break
			}
		}
	}
	if identity.Kind == artifact.KindNetworkSocket && !r.cfg.NetSocketVersioning {
		updateVersion = false
	}

	props := r.artifactProperties(identity)
	// An uninitialized version means this epoch was never emitted.
	notSeenBefore := updateVersion || !props.Initialized()

	vertex.Add(models.AnnotationVersion, strconv.FormatInt(props.NextVersion(updateVersion), 10))
	if identity.Kind != artifact.KindMemory {
		vertex.Add(models.AnnotationEpoch, strconv.FormatInt(props.Epoch, 10))
	}
	r.saveArtifactProperties(identity, props)

	if notSeenBefore {
		r.putVertex(vertex)
	}

	if updateVersion && identity.Kind == artifact.KindFile {
		if event != nil {
			r.putVersionUpdateEdge(vertex, event["time"], event["eventid"], event["pid"])
		} else {
			logger.Warnf("Missing event info for version update of artifact %s", identity)
		}
	}
	return vertex
}

// putVersionUpdateEdge links a file's new version to its previous one.
// Nothing is drawn for version zero, which has no predecessor.
func (r *Reporter) putVersionUpdateEdge(newArtifact *models.Vertex, time, eventID, pid string) {
	if newArtifact == nil || time == "" || eventID == "" || pid == "" {
		logger.Warnf("Incomplete arguments for version update edge: time=%q eventid=%q pid=%q", time, eventID, pid)
		return
	}
	version, err := strconv.ParseInt(newArtifact.Annotation(models.AnnotationVersion), 10, 64)
	if err != nil || version-1 < 0 {
		return
	}
	oldArtifact := models.NewVertex(models.TypeArtifact)
	for key, value := range newArtifact.Annotations {
		oldArtifact.Add(key, value)
	}
	oldArtifact.Add(models.AnnotationVersion, strconv.FormatInt(version-1, 10))

	edge := models.NewEdge(models.EdgeWasDerivedFrom, newArtifact, oldArtifact)
	edge.Add(models.AnnotationPid, pid)
	edge.Add(models.AnnotationOperation, syscalls.OpUpdate)
	edge.Add(models.AnnotationTime, time)
	edge.Add(models.AnnotationEventID, eventID)
	edge.Add(models.AnnotationSource, models.SourceAudit)
	r.putEdge(edge)
}

// validIdentityForPath probes the known path-based identities for a
// path and returns the one created most recently, judged by creation
// event id. A path never seen before is assumed to be a file.
func (r *Reporter) validIdentityForPath(path string) artifact.Identity {
	file := artifact.File(path)
	namedPipe := artifact.NamedPipe(path)
	unixSocket := artifact.UnixSocket(path)

	fileEvent := r.creationEventID(file)
	pipeEvent := r.creationEventID(namedPipe)
	socketEvent := r.creationEventID(unixSocket)

	// File wins ties so unprobed paths default to files.
	if fileEvent >= pipeEvent && fileEvent >= socketEvent {
		return file
	}
	if pipeEvent >= fileEvent && pipeEvent >= socketEvent {
		return namedPipe
	}
	return unixSocket
}

func (r *Reporter) creationEventID(identity artifact.Identity) int64 {
	props, ok := r.peekArtifactProperties(identity)
	if !ok {
		return -1
	}
	id, err := strconv.ParseInt(props.CreationEventID, 10, 64)
	if err != nil {
		return -1
	}
	return id
}
