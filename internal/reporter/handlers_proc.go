package reporter

import (
	"math/big"
	"strconv"
	"strings"

	"auditgraph/internal/artifact"
	"auditgraph/internal/logger"
	"auditgraph/internal/syscalls"
	"auditgraph/pkg/models"
)

func (r *Reporter) handleExit(event map[string]string) {
	delete(r.processUnitStack, event["pid"])
}

func (r *Reporter) handleForkClone(event map[string]string, name string) {
	time := event["time"]
	oldPid := event["pid"]
	newPid := event["exit"]

	if name == "clone" {
		flags, _ := strconv.ParseInt(event["a0"], 10, 64)
		if flags&sigCHLD == sigCHLD && flags&cloneVM == cloneVM && flags&cloneVFORK == cloneVFORK {
			name = "vfork"
		} else if flags&sigCHLD == sigCHLD {
			name = "fork"
		}
	}

	oldProcess := r.putProcess(event, false)

	childEvent := make(map[string]string, len(event)+4)
	for key, value := range event {
		childEvent[key] = value
	}
	childEvent["pid"] = newPid
	childEvent["ppid"] = oldPid
	childEvent["commandline"] = oldProcess.Annotation(models.AnnotationCommandLine)
	childEvent["start time"] = time

	// Recreate because pids are recycled.
	newProcess := r.putProcess(childEvent, true)

	r.putWasTriggeredByEdge(newProcess, oldProcess, event["eventid"], time, models.SourceAudit, r.operation(name))

	if name == "clone" {
		r.descriptors.Link(newPid, oldPid)
	} else {
		r.descriptors.Copy(newPid, oldPid)
	}
}

func (r *Reporter) handleExecve(event map[string]string) {
	// Records: SYSCALL, EXECVE, CWD, PATH x2, EOE.
	pid := event["pid"]
	time := event["time"]

	commandline := "[Record Missing]"
	if event["execve_argc"] != "" {
		argc, _ := strconv.Atoi(event["execve_argc"])
		args := make([]string, 0, argc)
		for i := 0; i < argc; i++ {
			args = append(args, event["execve_a"+strconv.Itoa(i)])
		}
		commandline = strings.TrimSpace(strings.Join(args, " "))
	}
	event["commandline"] = commandline
	event["start time"] = time

	// Grab the pre-exec vertex before replacing it. When it was never
	// seen we cannot know its identifiers, so no exec edge is drawn.
	oldProcess := r.getProcess(pid)

	newProcess := r.putProcess(event, true)

	if oldProcess != nil {
		r.putWasTriggeredByEdge(newProcess, oldProcess, event["eventid"], time, models.SourceAudit, r.operation("execve"))
	} else {
		logger.Infof("Unable to find the process that did the execve. event id %s", event["eventid"])
	}

	// Load edges to every path named in the event, typically the binary
	// and its interpreter.
	cwd := event["cwd"]
	items, _ := strconv.Atoi(event["items"])
	for i := 0; i < items; i++ {
		path := absolutePath(cwd, event["path"+strconv.Itoa(i)])
		if path == "" {
			logger.Infof("Unable to create load edge for execve. event id %s", event["eventid"])
			continue
		}
		usedArtifact := r.putArtifact(event, artifact.File(path), false, "")
		used := models.NewEdge(models.EdgeUsed, newProcess, usedArtifact)
		used.AddEventInfo(time, event["eventid"], syscalls.OpLoad, models.SourceAudit)
		r.putEdge(used)
	}

	r.descriptors.Unlink(pid)
}

func (r *Reporter) handleSetuid(event map[string]string, name string) {
	time := event["time"]
	pid := event["pid"]
	eventID := event["eventid"]

	existing := r.getProcess(pid)
	if existing == nil {
		r.putProcess(event, false)
		return
	}

	updated := map[string]string{
		"auid":  event["auid"],
		"uid":   event["uid"],
		"suid":  event["suid"],
		"euid":  event["euid"],
		"fsuid": event["fsuid"],
	}

	unit := existing.Annotation(models.AnnotationUnit)
	if unit == "" || unit == "0" {
		// No active units; rebuild the process vertex with the new ids.
		annotations := mergeAnnotations(existing.Annotations, updated)
		newProcess := r.putProcess(annotations, true)
		r.putWasTriggeredByEdge(newProcess, existing, eventID, time, models.SourceAudit, r.operation(name))
		return
	}

	// Active units: the whole stack is re-created with updated ids, with
	// edges from each new frame to its predecessor and its new container.
	oldStack := r.processUnitStack[pid]
	oldContaining := r.containingProcess(pid)

	newContaining := r.putProcess(mergeAnnotations(oldContaining.Annotations, updated), true)
	r.putWasTriggeredByEdge(newContaining, oldContaining, eventID, time, models.SourceAudit, r.operation(name))

	for i := 1; i < len(oldStack); i++ {
		oldUnit := oldStack[i]
		newUnit := r.createProcessVertex(mergeAnnotations(oldUnit.Annotations, updated))
		r.processUnitStack[pid] = append(r.processUnitStack[pid], newUnit)
		r.putVertex(newUnit)

		r.putWasTriggeredByEdge(newUnit, oldUnit, eventID, time, models.SourceAudit, r.operation(name))
		r.putWasTriggeredByEdge(newUnit, newContaining, eventID, time, models.SourceBeep, syscalls.OpUnit)
	}
}

func mergeAnnotations(existing, updates map[string]string) map[string]string {
	out := make(map[string]string, len(existing)+len(updates))
	for key, value := range existing {
		out[key] = value
	}
	for key, value := range updates {
		out[key] = value
	}
	return out
}

func (r *Reporter) handleKill(event map[string]string) {
	if !r.cfg.Units {
		return
	}
	pid := event["pid"]
	time := event["time"]

	arg0, ok0 := new(big.Int).SetString(event["a0"], 10)
	arg1, ok1 := new(big.Int).SetString(event["a1"], 10)
	if !ok0 || !ok1 {
		logger.Warnf("Failed to process kill syscall arguments for event id %s", event["eventid"])
		return
	}
	unitID := arg1.String()

	// The markers are negative pids. They arrive as unsigned register
	// values, so truncate to recover the sign on either arch.
	code := int32(arg0.Int64())

	switch code {
	case beepUnitBegin:
		r.putProcess(event, false)
		addedUnit := r.pushUnitIteration(pid, unitID, time)
		// Keep the graph connected between the unit and its process.
		r.putWasTriggeredByEdge(addedUnit, r.containingProcess(pid), event["eventid"], time, models.SourceBeep, syscalls.OpUnit)
	case beepUnitEnd:
		r.popUnitIterations(pid, unitID)
	case beepReadHighBits, beepWriteHighBits:
		r.pidToMemAddress[pid] = arg1.Uint64()
	case beepReadLowBits, beepWriteLowBits:
		high, ok := r.pidToMemAddress[pid]
		if !ok {
			return
		}
		process := r.getProcess(pid)
		if process == nil || process.Annotation(models.AnnotationUnit) == "0" {
			logger.Infof("Unit vertex not found, possibly missing unit creation marker. event id %s", event["eventid"])
			return
		}
		address := high<<32 + arg1.Uint64()
		delete(r.pidToMemAddress, pid)

		identity := artifact.Memory(pid, strconv.FormatUint(address, 16), "")
		var edge *models.Edge
		var operation string
		if code == beepReadLowBits {
			memArtifact := r.putArtifact(event, identity, false, models.SourceBeep)
			edge = models.NewEdge(models.EdgeUsed, process, memArtifact)
			operation = r.operation("read")
		} else {
			memArtifact := r.putArtifact(event, identity, true, models.SourceBeep)
			edge = models.NewEdge(models.EdgeWasGeneratedBy, memArtifact, process)
			operation = r.operation("write")
		}
		edge.AddEventInfo(time, event["eventid"], operation, models.SourceBeep)
		r.putEdge(edge)
	}
}

func (r *Reporter) handleMmap(event map[string]string, name string) {
	// Records: MMAP, SYSCALL, EOE.
	if !r.cfg.Memory {
		return
	}
	pid := event["pid"]
	time := event["time"]

	address, okAddr := new(big.Int).SetString(event["exit"], 10)
	length, okLen := new(big.Int).SetString(event["a1"], 10)
	protection, okProt := new(big.Int).SetString(event["a2"], 10)
	if !okAddr || !okLen || !okProt {
		logger.Infof("Missing address arguments in mmap event. event id %s", event["eventid"])
		return
	}

	fd := event["fd"]
	if fd == "" {
		logger.Infof("FD record missing in mmap event. event id %s", event["eventid"])
		return
	}

	fileIdentity, ok := r.descriptors.Get(pid, fd)
	if !ok {
		fileIdentity = r.descriptors.AddUnknown(pid, fd)
		r.markNewEpoch(fileIdentity, event["eventid"])
	}

	if fileIdentity.Kind != artifact.KindUnknown && fileIdentity.Kind != artifact.KindFile {
		logger.Infof("mmap only supported for unknown and file artifacts, not %s. event id %s", fileIdentity.Subtype(), event["eventid"])
		return
	}

	fileArtifact := r.putArtifact(event, fileIdentity, false, "")
	memoryIdentity := artifact.Memory(pid, address.Text(16), length.Text(16))
	memoryArtifact := r.putArtifact(event, memoryIdentity, true, "")
	process := r.putProcess(event, false)

	operation := r.operation(name)

	wdf := models.NewEdge(models.EdgeWasDerivedFrom, memoryArtifact, fileArtifact)
	wdf.Add("protection", protection.Text(16))
	wdf.AddEventInfo(time, event["eventid"], operation, models.SourceAudit)
	wdf.Add(models.AnnotationPid, pid)
	r.putEdge(wdf)

	wgb := models.NewEdge(models.EdgeWasGeneratedBy, memoryArtifact, process)
	wgb.AddEventInfo(time, event["eventid"], operation+"_"+r.operation("write"), models.SourceAudit)
	r.putEdge(wgb)

	used := models.NewEdge(models.EdgeUsed, process, fileArtifact)
	used.AddEventInfo(time, event["eventid"], operation+"_"+r.operation("read"), models.SourceAudit)
	r.putEdge(used)
}

func (r *Reporter) handleMprotect(event map[string]string, name string) {
	if !r.cfg.Memory {
		return
	}
	pid := event["pid"]
	time := event["time"]

	address, okAddr := new(big.Int).SetString(event["a0"], 10)
	length, okLen := new(big.Int).SetString(event["a1"], 10)
	protection, okProt := new(big.Int).SetString(event["a2"], 10)
	if !okAddr || !okLen || !okProt {
		logger.Infof("Missing address arguments in mprotect event. event id %s", event["eventid"])
		return
	}

	identity := artifact.Memory(pid, address.Text(16), length.Text(16))
	memoryArtifact := r.putArtifact(event, identity, true, "")
	process := r.putProcess(event, false)

	wgb := models.NewEdge(models.EdgeWasGeneratedBy, memoryArtifact, process)
	wgb.Add("protection", protection.Text(16))
	wgb.AddEventInfo(time, event["eventid"], r.operation(name), models.SourceAudit)
	r.putEdge(wgb)
}
