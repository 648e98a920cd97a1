// Package procseed walks /proc once at startup and seeds the reporter
// with the processes and open descriptors that existed before auditing
// began, so early events attach to known vertices instead of
// placeholder ones.
package procseed

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"

	"auditgraph/internal/artifact"
	"auditgraph/internal/logger"
	"auditgraph/internal/reporter"
	"auditgraph/pkg/models"
)

// Seed scans the proc filesystem mounted at procPath and registers
// every live process with the reporter: a vertex per process, an edge
// to its parent, and descriptor table entries for its open fds.
// Processes that vanish mid-scan are skipped.
func Seed(procPath string, rep *reporter.Reporter) error {
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return fmt.Errorf("failed to open proc filesystem: %w", err)
	}

	procs, err := fs.AllProcs()
	if err != nil {
		return fmt.Errorf("failed to list processes: %w", err)
	}

	seeded := make(map[string]*models.Vertex, len(procs))
	parents := make(map[string]string, len(procs))

	for _, proc := range procs {
		annotations, ppid, ok := readProcess(proc)
		if !ok {
			continue
		}
		pid := annotations["pid"]
		vertex := rep.SeedProcess(annotations)
		seeded[pid] = vertex
		parents[pid] = ppid

		seedDescriptors(procPath, pid, rep)
	}

	// Parent edges second, once every surviving process has a vertex.
	for pid, vertex := range seeded {
		parent, ok := seeded[parents[pid]]
		if !ok {
			continue
		}
		rep.SeedTriggeredBy(vertex, parent)
	}

	logger.Infof("Seeded %d processes from %s", len(seeded), procPath)
	return nil
}

func readProcess(proc procfs.Proc) (map[string]string, string, bool) {
	stat, err := proc.Stat()
	if err != nil {
		return nil, "", false
	}
	status, err := proc.NewStatus()
	if err != nil {
		return nil, "", false
	}

	pid := strconv.Itoa(proc.PID)
	ppid := strconv.Itoa(stat.PPID)

	annotations := map[string]string{
		"pid":   pid,
		"ppid":  ppid,
		"name":  stat.Comm,
		"uid":   status.UIDs[0],
		"euid":  status.UIDs[1],
		"suid":  status.UIDs[2],
		"fsuid": status.UIDs[3],
		"gid":   status.GIDs[0],
		"egid":  status.GIDs[1],
		"sgid":  status.GIDs[2],
		"fsgid": status.GIDs[3],
	}
	annotations[models.AnnotationSource] = models.SourceProc

	if cmdline, err := proc.CmdLine(); err == nil && len(cmdline) > 0 {
		annotations["commandline"] = strings.Join(cmdline, " ")
	}
	if cwd, err := proc.Cwd(); err == nil && cwd != "" {
		annotations["cwd"] = cwd
	}
	if startTime, err := stat.StartTime(); err == nil {
		annotations["start time"] = strconv.FormatFloat(startTime, 'f', 3, 64)
	}

	return annotations, ppid, true
}

// seedDescriptors reads the fd symlinks of one process. Regular paths
// become file identities and pipe links become unnamed pipes; sockets
// are left to the audit stream since their endpoints are unknowable
// from the link text.
func seedDescriptors(procPath, pid string, rep *reporter.Reporter) {
	fdDir := filepath.Join(procPath, pid, "fd")
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		fd := entry.Name()
		target, err := os.Readlink(filepath.Join(fdDir, fd))
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(target, "pipe:["):
			rep.Descriptors().Add(pid, fd, artifact.UnnamedPipe(pid, fd, fd))
		case strings.HasPrefix(target, "socket:["), strings.HasPrefix(target, "anon_inode:"):
			// Endpoint unknown until a syscall names it.
		case strings.HasPrefix(target, "/"):
			rep.Descriptors().Add(pid, fd, artifact.File(target))
		}
	}
}
