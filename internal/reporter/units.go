package reporter

import (
	"strconv"

	"auditgraph/internal/logger"
	"auditgraph/pkg/models"
)

// getProcess returns the active vertex for a pid: the top of the unit
// stack, which is a unit iteration when one is running.
func (r *Reporter) getProcess(pid string) *models.Vertex {
	stack := r.processUnitStack[pid]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// containingProcess returns the vertex at the bottom of the stack, the
// process itself rather than any unit iteration.
func (r *Reporter) containingProcess(pid string) *models.Vertex {
	stack := r.processUnitStack[pid]
	if len(stack) == 0 {
		return nil
	}
	return stack[0]
}

// addProcess resets all unit state for a pid and installs the process
// vertex as the new stack bottom. Use when the process is created or
// replaces itself.
func (r *Reporter) addProcess(pid string, process *models.Vertex) {
	if pid == "" || process == nil {
		logger.Warnf("Refusing to register process vertex with empty pid or nil vertex (pid=%q)", pid)
		return
	}
	delete(r.iterationNumber, pid)
	r.processUnitStack[pid] = []*models.Vertex{process}
}

// putProcess returns the active vertex for the event's pid, creating
// and emitting one from the event attributes when none exists. With
// recreate set, the vertex is rebuilt and replaces the existing one,
// discarding any active units.
func (r *Reporter) putProcess(annotations map[string]string, recreate bool) *models.Vertex {
	if annotations == nil {
		return nil
	}
	pid := annotations["pid"]
	process := r.getProcess(pid)
	if process == nil || recreate {
		process = r.createProcessVertex(annotations)
		r.addProcess(pid, process)
		r.putVertex(process)
	}
	return process
}

// createProcessVertex builds a process vertex from audit attributes.
// The name comes from 'comm' on audit events and 'name' elsewhere.
func (r *Reporter) createProcessVertex(annotations map[string]string) *models.Vertex {
	name := annotations["name"]
	if name == "" {
		name = annotations["comm"]
	}
	fields := processVertexFields{
		pid:         annotations["pid"],
		ppid:        annotations["ppid"],
		name:        name,
		commandline: annotations["commandline"],
		cwd:         annotations["cwd"],
		uid:         annotations["uid"],
		euid:        annotations["euid"],
		suid:        annotations["suid"],
		fsuid:       annotations["fsuid"],
		gid:         annotations["gid"],
		egid:        annotations["egid"],
		sgid:        annotations["sgid"],
		fsgid:       annotations["fsgid"],
		source:      annotations[models.AnnotationSource],
		startTime:   annotations["start time"],
		unit:        annotations[models.AnnotationUnit],
		iteration:   annotations[models.AnnotationIteration],
		count:       annotations[models.AnnotationCount],
	}
	return r.buildProcessVertex(fields)
}

type processVertexFields struct {
	pid, ppid, name, commandline, cwd  string
	uid, euid, suid, fsuid             string
	gid, egid, sgid, fsgid             string
	source, startTime, unit, iteration string
	count                              string
}

// buildProcessVertex is the single construction point for process
// vertices so the simplify and units rules apply uniformly.
func (r *Reporter) buildProcessVertex(f processVertexFields) *models.Vertex {
	process := models.NewVertex(models.TypeProcess)
	process.Add(models.AnnotationPid, f.pid)
	process.Add(models.AnnotationPpid, f.ppid)
	process.Add(models.AnnotationName, f.name)
	process.Add("uid", f.uid)
	process.Add("euid", f.euid)
	process.Add("gid", f.gid)
	process.Add("egid", f.egid)

	if f.source == "" {
		process.Add(models.AnnotationSource, models.SourceAudit)
	} else {
		process.Add(models.AnnotationSource, f.source)
	}

	if f.commandline != "" {
		process.Add(models.AnnotationCommandLine, f.commandline)
	}
	if f.cwd != "" {
		process.Add(models.AnnotationCwd, f.cwd)
	}
	if !r.cfg.Simplify {
		process.Add("suid", f.suid)
		process.Add("fsuid", f.fsuid)
		process.Add("sgid", f.sgid)
		process.Add("fsgid", f.fsgid)
	}
	if f.startTime != "" {
		process.Add(models.AnnotationStartTime, f.startTime)
	}
	if r.cfg.Units {
		if f.unit == "" {
			// Unit zero marks the containing process.
			process.Add(models.AnnotationUnit, "0")
		} else {
			process.Add(models.AnnotationUnit, f.unit)
			if f.iteration != "" {
				process.Add(models.AnnotationIteration, f.iteration)
			}
			if f.count != "" {
				process.Add(models.AnnotationCount, f.count)
			}
		}
	}
	return process
}

func (r *Reporter) nextIterationNumber(pid, unitID string) int64 {
	perUnit, ok := r.iterationNumber[pid]
	if !ok {
		perUnit = make(map[string]int64)
		r.iterationNumber[pid] = perUnit
	}
	next, ok := perUnit[unitID]
	if !ok {
		next = -1
	}
	next++
	perUnit[unitID] = next
	return next
}

// pushUnitIteration creates a unit iteration vertex as a copy of the
// containing process, installs it on the stack replacing the previous
// iteration of the same unit, and emits it. The count annotation
// separates same-numbered iterations falling inside one audit
// timestamp.
func (r *Reporter) pushUnitIteration(pid, unitID, startTime string) *models.Vertex {
	if unitID == "0" {
		// Unit zero is the containing process, never an iteration.
		return nil
	}
	containing := r.containingProcess(pid)
	if containing == nil {
		return nil
	}

	iteration := r.nextIterationNumber(pid, unitID)
	if iteration > 0 {
		r.removePreviousIteration(pid, unitID, iteration)
	}

	if r.lastTimestamp == "" || startTime != r.lastTimestamp {
		r.lastTimestamp = startTime
		r.repetitionCounts = make(map[unitKey]int64)
	}

	key := unitKey{Pid: pid, UnitID: unitID, Iteration: strconv.FormatInt(iteration, 10)}
	count, ok := r.repetitionCounts[key]
	if !ok {
		count = -1
	}
	count++
	r.repetitionCounts[key] = count

	unit := r.buildProcessVertex(processVertexFields{
		pid:         containing.Annotation(models.AnnotationPid),
		ppid:        containing.Annotation(models.AnnotationPpid),
		name:        containing.Annotation(models.AnnotationName),
		commandline: containing.Annotation(models.AnnotationCommandLine),
		cwd:         containing.Annotation(models.AnnotationCwd),
		uid:         containing.Annotation("uid"),
		euid:        containing.Annotation("euid"),
		suid:        containing.Annotation("suid"),
		fsuid:       containing.Annotation("fsuid"),
		gid:         containing.Annotation("gid"),
		egid:        containing.Annotation("egid"),
		sgid:        containing.Annotation("sgid"),
		fsgid:       containing.Annotation("fsgid"),
		source:      models.SourceBeep,
		startTime:   startTime,
		unit:        unitID,
		iteration:   strconv.FormatInt(iteration, 10),
		count:       strconv.FormatInt(count, 10),
	})

	r.processUnitStack[pid] = append(r.processUnitStack[pid], unit)
	r.putVertex(unit)
	return unit
}

// popUnitIterations removes every stack frame of the given unit and
// resets its iteration counter.
func (r *Reporter) popUnitIterations(pid, unitID string) {
	if unitID == "" || unitID == "0" {
		return
	}
	stack, ok := r.processUnitStack[pid]
	if !ok {
		return
	}
	kept := stack[:0]
	for _, unit := range stack {
		if unit.Annotation(models.AnnotationUnit) != unitID {
			kept = append(kept, unit)
		}
	}
	r.processUnitStack[pid] = kept
	if perUnit, ok := r.iterationNumber[pid]; ok {
		delete(perUnit, unitID)
	}
}

// removePreviousIteration drops the single stack frame holding the
// previous iteration of a unit; each iteration lives only until the
// next one begins.
func (r *Reporter) removePreviousIteration(pid, unitID string, currentIteration int64) {
	if unitID == "" || unitID == "0" {
		return
	}
	stack, ok := r.processUnitStack[pid]
	if !ok {
		return
	}
	for i := len(stack) - 1; i >= 0; i-- {
		unit := stack[i]
		if unit.Annotation(models.AnnotationUnit) != unitID {
			continue
		}
		iteration, err := strconv.ParseInt(unit.Annotation(models.AnnotationIteration), 10, 64)
		if err != nil {
			continue
		}
		if iteration < currentIteration {
			r.processUnitStack[pid] = append(stack[:i], stack[i+1:]...)
			break
		}
	}
}

// putWasTriggeredByEdge draws a process-to-process edge with the usual
// event annotations.
func (r *Reporter) putWasTriggeredByEdge(from, to *models.Vertex, eventID, time, source, operation string) {
	if from == nil || to == nil {
		logger.Warnf("Missing endpoint for triggered-by edge (event id %s)", eventID)
		return
	}
	edge := models.NewEdge(models.EdgeWasTriggeredBy, from, to)
	if eventID != "" {
		edge.Add(models.AnnotationEventID, eventID)
	}
	if source != "" {
		edge.Add(models.AnnotationSource, source)
	}
	if time != "" {
		edge.Add(models.AnnotationTime, time)
	}
	if operation != "" {
		edge.Add(models.AnnotationOperation, operation)
	}
	r.putEdge(edge)
}
