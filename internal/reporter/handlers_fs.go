package reporter

import (
	"math/big"
	"strconv"

	"auditgraph/internal/artifact"
	"auditgraph/internal/logger"
	"auditgraph/internal/syscalls"
	"auditgraph/pkg/models"
)

func (r *Reporter) handleOpen(event map[string]string, name string) {
	// Records: SYSCALL, CWD, PATH (CREATE or NORMAL, possibly PARENT), EOE.
	flags, _ := strconv.ParseInt(event["a1"], 10, 64)

	pid := event["pid"]
	cwd := event["cwd"]
	isCreate := false

	paths := pathsWithNametype(event, "CREATE")
	if len(paths) == 0 {
		paths = pathsWithNametype(event, "NORMAL")
		if len(paths) == 0 {
			logger.Infof("Missing required path record in open. event id %s", event["eventid"])
			return
		}
	} else {
		isCreate = true
	}
	path := firstPath(paths)
	fd := event["exit"]
	time := event["time"]

	path = absolutePath(cwd, path)
	if path == "" {
		logger.Warnf("Missing CWD or PATH record in open. event id %s", event["eventid"])
		return
	}

	process := r.putProcess(event, false)
	identity := r.validIdentityForPath(path)

	var edge *models.Edge
	operation := r.operation(name)

	if isCreate {
		if identity.Kind != artifact.KindFile {
			// Only files come out of open with O_CREAT.
			identity = artifact.File(path)
		}
		r.markNewEpoch(identity, event["eventid"])
		vertex := r.putArtifact(event, identity, true, "")
		edge = models.NewEdge(models.EdgeWasGeneratedBy, vertex, process)
		operation = syscalls.OpCreate
	} else {
		if identity.Kind != artifact.KindFile && identity.Kind != artifact.KindNamedPipe {
			identity = artifact.File(path)
		}
		if flags&(oWRONLY|oRDWR) != 0 {
			vertex := r.putArtifact(event, identity, true, "")
			edge = models.NewEdge(models.EdgeWasGeneratedBy, vertex, process)
		} else if flags&oRDONLY == oRDONLY {
			vertex := r.putArtifact(event, identity, false, "")
			edge = models.NewEdge(models.EdgeUsed, process, vertex)
		} else {
			logger.Infof("Unknown flags %d for open. event id %s", flags, event["eventid"])
			return
		}
	}

	r.descriptors.Add(pid, fd, identity)
	edge.Add(models.AnnotationOperation, operation)
	edge.Add(models.AnnotationTime, time)
	edge.Add(models.AnnotationEventID, event["eventid"])
	edge.Add(models.AnnotationSource, models.SourceAudit)
	r.putEdge(edge)
}

func (r *Reporter) handleCreat(event map[string]string) {
	// creat is open with O_CREAT|O_WRONLY|O_TRUNC and the mode in a1.
	event["a2"] = event["a1"]
	event["a1"] = strconv.Itoa(oCREAT | oWRONLY | oTRUNC)
	r.handleOpen(event, "creat")
}

func (r *Reporter) handleOpenat(event map[string]string) {
	dirFD, _ := strconv.ParseInt(event["a0"], 10, 64)
	if dirFD != atFDCWD {
		pid := event["pid"]
		identity, ok := r.descriptors.Get(pid, strconv.FormatInt(dirFD, 10))
		if !ok || identity.Kind != artifact.KindFile {
			logger.Infof("openat does not support directory fd of type %s. event id %s", identity.Subtype(), event["eventid"])
			return
		}
		// Resolve relative paths against the directory fd instead of cwd.
		event["cwd"] = identity.Path
	}

	event["a0"] = event["a1"]
	event["a1"] = event["a2"]
	event["a2"] = event["a3"]
	r.handleOpen(event, "openat")
}

func (r *Reporter) handleClose(event map[string]string) {
	fd, _ := strconv.ParseInt(event["a0"], 10, 64)
	r.descriptors.Remove(event["pid"], strconv.FormatInt(fd, 10))
	// Epochs are handled at open/create, not at close.
}

func (r *Reporter) handleRead(event map[string]string, name string) {
	pid := event["pid"]
	fd := event["a0"]
	bytesRead := event["exit"]
	process := r.putProcess(event, false)
	time := event["time"]

	if _, ok := r.descriptors.Get(pid, fd); !ok {
		identity := r.descriptors.AddUnknown(pid, fd)
		r.markNewEpoch(identity, event["eventid"])
	}
	identity, _ := r.descriptors.Get(pid, fd)
	if identity.Kind == artifact.KindUnixSocket && !r.cfg.UnixSockets {
		return
	}

	vertex := r.putArtifact(event, identity, false, "")
	used := models.NewEdge(models.EdgeUsed, process, vertex)
	used.Add(models.AnnotationOperation, r.operation(name))
	used.Add(models.AnnotationTime, time)
	used.Add(models.AnnotationSize, bytesRead)
	used.Add(models.AnnotationEventID, event["eventid"])
	used.Add(models.AnnotationSource, models.SourceAudit)
	r.putEdge(used)
}

func (r *Reporter) handleWrite(event map[string]string, name string) {
	pid := event["pid"]
	process := r.putProcess(event, false)
	fd := event["a0"]
	time := event["time"]
	bytesWritten := event["exit"]

	if _, ok := r.descriptors.Get(pid, fd); !ok {
		identity := r.descriptors.AddUnknown(pid, fd)
		r.markNewEpoch(identity, event["eventid"])
	}
	identity, _ := r.descriptors.Get(pid, fd)
	if identity.Kind == artifact.KindUnixSocket && !r.cfg.UnixSockets {
		return
	}

	vertex := r.putArtifact(event, identity, true, "")
	wgb := models.NewEdge(models.EdgeWasGeneratedBy, vertex, process)
	wgb.Add(models.AnnotationOperation, r.operation(name))
	wgb.Add(models.AnnotationTime, time)
	wgb.Add(models.AnnotationSize, bytesWritten)
	wgb.Add(models.AnnotationEventID, event["eventid"])
	wgb.Add(models.AnnotationSource, models.SourceAudit)
	r.putEdge(wgb)
}

func (r *Reporter) handleTruncate(event map[string]string, name string) {
	pid := event["pid"]
	process := r.putProcess(event, false)
	time := event["time"]

	var identity artifact.Identity
	if name == "truncate" {
		paths := pathsWithNametype(event, "NORMAL")
		if len(paths) == 0 {
			logger.Infof("Missing required path in truncate. event id %s", event["eventid"])
			return
		}
		path := absolutePath(event["cwd"], firstPath(paths))
		if path == "" {
			logger.Infof("Missing required CWD record in truncate. event id %s", event["eventid"])
			return
		}
		identity = artifact.File(path)
	} else {
		fd := event["a0"]
		if _, ok := r.descriptors.Get(pid, fd); !ok {
			unknown := r.descriptors.AddUnknown(pid, fd)
			r.markNewEpoch(unknown, event["eventid"])
		}
		identity, _ = r.descriptors.Get(pid, fd)
	}

	if identity.Kind != artifact.KindFile && identity.Kind != artifact.KindUnknown {
		logger.Infof("Unexpected artifact type %s for truncate. event id %s", identity.Subtype(), event["eventid"])
		return
	}

	vertex := r.putArtifact(event, identity, true, "")
	wgb := models.NewEdge(models.EdgeWasGeneratedBy, vertex, process)
	wgb.Add(models.AnnotationOperation, r.operation(name))
	wgb.Add(models.AnnotationTime, time)
	wgb.Add(models.AnnotationEventID, event["eventid"])
	wgb.Add(models.AnnotationSource, models.SourceAudit)
	r.putEdge(wgb)
}

func (r *Reporter) handleDup(event map[string]string, name string) {
	pid := event["pid"]
	fd := event["a0"]
	newFD := event["exit"]

	// dup2 with identical descriptors succeeds without doing anything.
	if fd == newFD {
		return
	}
	if _, ok := r.descriptors.Get(pid, fd); !ok {
		identity := r.descriptors.AddUnknown(pid, fd)
		r.markNewEpoch(identity, event["eventid"])
	}
	identity, _ := r.descriptors.Get(pid, fd)
	r.descriptors.Add(pid, newFD, identity)
}

func (r *Reporter) handlePipe(event map[string]string, name string) {
	// Records: SYSCALL, FD_PAIR, EOE.
	pid := event["pid"]
	fd0 := event["fd0"]
	fd1 := event["fd1"]
	identity := artifact.UnnamedPipe(pid, fd0, fd1)
	r.descriptors.Add(pid, fd0, identity)
	r.descriptors.Add(pid, fd1, identity)
	r.markNewEpoch(identity, event["eventid"])
}

func (r *Reporter) handleRename(event map[string]string) {
	// Records: SYSCALL, CWD, PATH x4, EOE. Paths 0 and 1 are the source
	// and destination directories, 2 and 3 the relative paths.
	time := event["time"]
	pid := event["pid"]
	process := r.putProcess(event, false)

	srcPath := absolutePath(event["path0"], event["path2"])
	dstPath := absolutePath(event["path1"], event["path3"])
	if srcPath == "" || dstPath == "" {
		logger.Infof("Missing required PATH or CWD records in rename. event id %s", event["eventid"])
		return
	}

	srcIdentity := r.validIdentityForPath(srcPath)
	var dstIdentity artifact.Identity
	switch srcIdentity.Kind {
	case artifact.KindFile:
		dstIdentity = artifact.File(dstPath)
	case artifact.KindNamedPipe:
		dstIdentity = artifact.NamedPipe(dstPath)
	case artifact.KindUnixSocket:
		dstIdentity = artifact.UnixSocket(dstPath)
	default:
		logger.Infof("Unexpected artifact type %s for rename. event id %s", srcIdentity.Subtype(), event["eventid"])
		return
	}

	// The destination is always freshly created.
	r.markNewEpoch(dstIdentity, event["eventid"])

	r.putDerivationTriple(event, process, srcIdentity, dstIdentity, r.operation("rename"), time, pid)
}

func (r *Reporter) handleLink(event map[string]string, name string) {
	// Records: SYSCALL, CWD, PATH x3, EOE. Path 0 is the source relative
	// to cwd, path 1 the destination directory, path 2 the destination.
	time := event["time"]
	pid := event["pid"]
	cwd := event["cwd"]
	process := r.putProcess(event, false)

	srcPath := absolutePath(cwd, event["path0"])
	dstPath := absolutePath(event["path1"], event["path2"])
	if srcPath == "" || dstPath == "" {
		logger.Infof("Missing CWD or PATH records in link syscall. event id %s", event["eventid"])
		return
	}

	srcIdentity := r.validIdentityForPath(srcPath)
	var dstIdentity artifact.Identity
	switch srcIdentity.Kind {
	case artifact.KindFile:
		dstIdentity = artifact.File(dstPath)
	case artifact.KindNamedPipe:
		dstIdentity = artifact.NamedPipe(dstPath)
	case artifact.KindUnixSocket:
		dstIdentity = artifact.UnixSocket(dstPath)
	default:
		logger.Infof("Unexpected artifact type %s for link. event id %s", srcIdentity.Subtype(), event["eventid"])
		return
	}

	r.markNewEpoch(dstIdentity, event["eventid"])

	r.putDerivationTriple(event, process, srcIdentity, dstIdentity, r.operation(name), time, pid)
}

// putDerivationTriple emits the used(src), generated-by(dst) and
// derived-from(dst, src) edges shared by rename and link.
func (r *Reporter) putDerivationTriple(event map[string]string, process *models.Vertex, srcIdentity, dstIdentity artifact.Identity, operation, time, pid string) {
	if !r.cfg.UnixSockets &&
		(srcIdentity.Kind == artifact.KindUnixSocket || dstIdentity.Kind == artifact.KindUnixSocket) {
		return
	}
	eventID := event["eventid"]

	srcVertex := r.putArtifact(event, srcIdentity, false, "")
	used := models.NewEdge(models.EdgeUsed, process, srcVertex)
	used.AddEventInfo(time, eventID, operation+"_"+r.operation("read"), models.SourceAudit)
	r.putEdge(used)

	dstVertex := r.putArtifact(event, dstIdentity, true, "")
	wgb := models.NewEdge(models.EdgeWasGeneratedBy, dstVertex, process)
	wgb.AddEventInfo(time, eventID, operation+"_"+r.operation("write"), models.SourceAudit)
	r.putEdge(wgb)

	wdf := models.NewEdge(models.EdgeWasDerivedFrom, dstVertex, srcVertex)
	wdf.AddEventInfo(time, eventID, operation, models.SourceAudit)
	wdf.Add(models.AnnotationPid, pid)
	r.putEdge(wdf)
}

func (r *Reporter) handleMknodat(event map[string]string) {
	pid := event["pid"]
	fd := event["a0"]
	fdNum, _ := strconv.ParseInt(fd, 10, 64)

	if fdNum != atFDCWD {
		identity, ok := r.descriptors.Get(pid, fd)
		if !ok {
			logger.Infof("Could not find directory fd for mknodat. event id %s", event["eventid"])
			return
		}
		if identity.Kind != artifact.KindFile {
			logger.Infof("Unsupported directory fd type %s for mknodat. event id %s", identity.Subtype(), event["eventid"])
			return
		}
		// The created path is always relative in this syscall.
		event["cwd"] = identity.Path
	}

	event["a1"] = event["a2"]
	r.handleMknod(event, "mknodat")
}

func (r *Reporter) handleMknod(event map[string]string, name string) {
	mode, _ := strconv.ParseInt(event["a1"], 10, 64)

	var parentPath string
	if name == "mknodat" {
		parentPath = event["cwd"]
	} else {
		if parents := pathsWithNametype(event, "PARENT"); len(parents) != 0 {
			parentPath = firstPath(parents)
		}
	}

	paths := pathsWithNametype(event, "CREATE")
	path := absolutePath(parentPath, firstPath(paths))
	if path == "" {
		logger.Infof("Missing records for %s. event id %s", name, event["eventid"])
		return
	}

	var identity artifact.Identity
	switch {
	case mode&sIFIFO == sIFIFO:
		identity = artifact.NamedPipe(path)
	case mode&sIFREG == sIFREG:
		identity = artifact.File(path)
	case mode&sIFSOCK == sIFSOCK:
		identity = artifact.UnixSocket(path)
	default:
		logger.Infof("Unsupported mode %d for mknod. event id %s", mode, event["eventid"])
		return
	}

	// The node has no content yet, so creation is announced without edges.
	r.markNewEpoch(identity, event["eventid"])
}

func (r *Reporter) handleChmod(event map[string]string, name string) {
	time := event["time"]
	pid := event["pid"]
	process := r.putProcess(event, false)

	modeArg, ok := new(big.Int).SetString(event["a1"], 10)
	if !ok {
		logger.Infof("Missing mode argument in chmod. event id %s", event["eventid"])
		return
	}
	mode := modeArg.Text(8)

	var identity artifact.Identity
	if name == "chmod" {
		paths := pathsWithNametype(event, "NORMAL")
		if len(paths) == 0 {
			logger.Infof("Missing required path in chmod. event id %s", event["eventid"])
			return
		}
		path := absolutePath(event["cwd"], firstPath(paths))
		if path == "" {
			logger.Infof("Missing required CWD record in chmod. event id %s", event["eventid"])
			return
		}
		identity = r.validIdentityForPath(path)
	} else {
		fd := event["a0"]
		if _, ok := r.descriptors.Get(pid, fd); !ok {
			unknown := r.descriptors.AddUnknown(pid, fd)
			r.markNewEpoch(unknown, event["eventid"])
		}
		identity, _ = r.descriptors.Get(pid, fd)
	}
	if identity.Kind == artifact.KindUnixSocket && !r.cfg.UnixSockets {
		return
	}

	vertex := r.putArtifact(event, identity, true, "")
	wgb := models.NewEdge(models.EdgeWasGeneratedBy, vertex, process)
	wgb.Add(models.AnnotationOperation, r.operation(name))
	wgb.Add("mode", mode)
	wgb.Add(models.AnnotationTime, time)
	wgb.Add(models.AnnotationEventID, event["eventid"])
	wgb.Add(models.AnnotationSource, models.SourceAudit)
	r.putEdge(wgb)
}
