package reporter

import (
	"math/big"
	"strconv"
	"strings"

	"auditgraph/internal/logger"
	"auditgraph/internal/metrics"
	"auditgraph/internal/syscalls"
)

// HandleEvent dispatches one finalized audit event to its syscall
// handler. It is the assembler's handler callback.
func (r *Reporter) HandleEvent(event map[string]string) {
	eventID := event["eventid"]

	syscallNum, err := strconv.Atoi(event["syscall"])
	if err != nil {
		logger.Infof("Non-syscall audit event or missing syscall record for event id %s", eventID)
		metrics.EventsDropped.Inc()
		return
	}

	name, ok := syscalls.Name(r.cfg.Arch, syscallNum)
	if !ok {
		if !r.unsupportedSyscalls[syscallNum] {
			r.unsupportedSyscalls[syscallNum] = true
			logger.Infof("Unsupported syscall number %d for event id %s. Not logging this number again.", syscallNum, eventID)
		}
		metrics.EventsDropped.Inc()
		return
	}

	if r.cfg.OnlySuccessful && event["success"] == "no" {
		switch name {
		case "kill", "exit", "exit_group":
			// Needed for bookkeeping even when they fail.
		default:
			metrics.EventsDropped.Inc()
			return
		}
	}

	// Audit reports a0..a3 in hex; handlers expect decimal.
	for i := 0; i < 4; i++ {
		key := "a" + strconv.Itoa(i)
		value, ok := new(big.Int).SetString(event[key], 16)
		if ok {
			event[key] = value.String()
		} else {
			logger.Debugf("Missing or non-numerical argument %s for event id %s", key, eventID)
		}
	}

	switch name {
	case "exit", "exit_group":
		r.handleExit(event)
	case "read", "readv", "pread64", "write", "writev", "pwrite64",
		"sendto", "recvfrom", "sendmsg", "recvmsg":
		r.handleIOEvent(name, event)
	case "mmap", "mmap2":
		r.handleMmap(event, name)
	case "mprotect":
		r.handleMprotect(event, name)
	case "symlink", "link":
		r.handleLink(event, name)
	case "vfork", "fork", "clone":
		r.handleForkClone(event, name)
	case "execve":
		r.handleExecve(event)
	case "open":
		r.handleOpen(event, name)
	case "close":
		r.handleClose(event)
	case "creat":
		r.handleCreat(event)
	case "openat":
		r.handleOpenat(event)
	case "mknodat":
		r.handleMknodat(event)
	case "mknod":
		r.handleMknod(event, name)
	case "dup", "dup2", "dup3":
		r.handleDup(event, name)
	case "bind":
		r.handleBind(event, name)
	case "accept", "accept4":
		r.handleAccept(event, name)
	case "connect":
		r.handleConnect(event)
	case "kill":
		r.handleKill(event)
	case "rename":
		r.handleRename(event)
	case "setuid", "setreuid", "setresuid":
		r.handleSetuid(event, name)
	case "chmod", "fchmod":
		r.handleChmod(event, name)
	case "pipe", "pipe2":
		r.handlePipe(event, name)
	case "truncate", "ftruncate":
		r.handleTruncate(event, name)
	default:
		// Resolved but not graph-relevant, e.g. socket on 32-bit.
		metrics.EventsDropped.Inc()
	}
}

// pathsWithNametype returns the recorded paths carrying the given
// nametype, keyed by their record index.
func pathsWithNametype(event map[string]string, nametype string) map[int]string {
	out := make(map[int]string)
	items, _ := strconv.Atoi(event["items"])
	for i := 0; i < items; i++ {
		if event["nametype"+strconv.Itoa(i)] == nametype {
			out[i] = event["path"+strconv.Itoa(i)]
		}
	}
	return out
}

func firstPath(paths map[int]string) string {
	lowest := -1
	for index := range paths {
		if lowest == -1 || index < lowest {
			lowest = index
		}
	}
	if lowest == -1 {
		return ""
	}
	return paths[lowest]
}

// absolutePath anchors a relative path at the parent directory. An
// empty return means the pieces were insufficient.
func absolutePath(parentDir, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "/") {
		return path
	}
	path = strings.TrimPrefix(path, "./")
	if parentDir == "" {
		return ""
	}
	if strings.HasSuffix(parentDir, "/") {
		return parentDir + path
	}
	return parentDir + "/" + path
}
