package artifact

import (
	"fmt"
	"strings"

	"auditgraph/pkg/models"
)

// Kind discriminates artifact identity variants.
type Kind int

const (
	KindFile Kind = iota
	KindNamedPipe
	KindUnnamedPipe
	KindUnixSocket
	KindNetworkSocket
	KindMemory
	KindUnknown
)

// Subtype annotation values per kind.
const (
	SubtypeFile    = "file"
	SubtypePipe    = "pipe"
	SubtypeSocket  = "socket"
	SubtypeNetwork = "network"
	SubtypeMemory  = "memory"
	SubtypeUnknown = "unknown"
)

// Identity identifies an artifact. It is a closed set of variants
// discriminated by Kind; unused fields are zero. The struct is
// comparable and used directly as a map key.
type Identity struct {
	Kind Kind

	// File, named pipe, unix socket.
	Path string

	// Unnamed pipe and unknown descriptors.
	Pid     string
	FD      string
	ReadFD  string
	WriteFD string

	// Network socket.
	SourceHost      string
	SourcePort      string
	DestinationHost string
	DestinationPort string
	Protocol        string

	// Memory region.
	MemoryAddress string
	MemoryLength  string
}

// File identifies a regular file by normalized path.
func File(path string) Identity {
	return Identity{Kind: KindFile, Path: normalizePath(path)}
}

// NamedPipe identifies a FIFO by normalized path.
func NamedPipe(path string) Identity {
	return Identity{Kind: KindNamedPipe, Path: normalizePath(path)}
}

// UnnamedPipe identifies an anonymous pipe by owning pid and its fd pair.
func UnnamedPipe(pid, readFD, writeFD string) Identity {
	return Identity{Kind: KindUnnamedPipe, Pid: pid, ReadFD: readFD, WriteFD: writeFD}
}

// UnixSocket identifies a unix domain socket by normalized path.
func UnixSocket(path string) Identity {
	return Identity{Kind: KindUnixSocket, Path: normalizePath(path)}
}

// NetworkSocket identifies a network connection endpoint pair.
func NetworkSocket(srcHost, srcPort, dstHost, dstPort, protocol string) Identity {
	return Identity{
		Kind:            KindNetworkSocket,
		SourceHost:      srcHost,
		SourcePort:      srcPort,
		DestinationHost: dstHost,
		DestinationPort: dstPort,
		Protocol:        protocol,
	}
}

// Memory identifies an address range in a process address space.
func Memory(pid, address, length string) Identity {
	return Identity{Kind: KindMemory, Pid: pid, MemoryAddress: address, MemoryLength: length}
}

// Unknown identifies a descriptor whose backing object was never observed.
func Unknown(pid, fd string) Identity {
	return Identity{Kind: KindUnknown, Pid: pid, FD: fd}
}

func normalizePath(path string) string {
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return path
}

// Subtype returns the subtype annotation value for the identity.
func (id Identity) Subtype() string {
	switch id.Kind {
	case KindFile:
		return SubtypeFile
	case KindNamedPipe, KindUnnamedPipe:
		return SubtypePipe
	case KindUnixSocket:
		return SubtypeSocket
	case KindNetworkSocket:
		return SubtypeNetwork
	case KindMemory:
		return SubtypeMemory
	default:
		return SubtypeUnknown
	}
}

// HasPath reports whether the identity addresses a filesystem path.
func (id Identity) HasPath() bool {
	switch id.Kind {
	case KindFile, KindNamedPipe, KindUnixSocket:
		return true
	}
	return false
}

// Annotations returns the identity portion of an artifact vertex's
// annotation map.
func (id Identity) Annotations() map[string]string {
	a := map[string]string{models.AnnotationSubtype: id.Subtype()}
	switch id.Kind {
	case KindFile, KindNamedPipe, KindUnixSocket:
		a[models.AnnotationPath] = id.Path
	case KindUnnamedPipe:
		a[models.AnnotationPid] = id.Pid
		a[models.AnnotationPath] = fmt.Sprintf("pipe[%s-%s]", id.ReadFD, id.WriteFD)
	case KindNetworkSocket:
		a["source host"] = id.SourceHost
		a["source port"] = id.SourcePort
		a["destination host"] = id.DestinationHost
		a["destination port"] = id.DestinationPort
		a["protocol"] = id.Protocol
	case KindMemory:
		a[models.AnnotationPid] = id.Pid
		a[models.AnnotationMemoryAddr] = id.MemoryAddress
		if id.MemoryLength != "" {
			a[models.AnnotationSize] = id.MemoryLength
		}
	case KindUnknown:
		a[models.AnnotationPid] = id.Pid
		a[models.AnnotationPath] = "/unknown/" + id.Pid + "_" + id.FD
	}
	return a
}

// Key returns a canonical string for use as a cache key. Identities
// that compare equal share a key.
func (id Identity) Key() string {
	switch id.Kind {
	case KindFile:
		return "file|" + id.Path
	case KindNamedPipe:
		return "namedpipe|" + id.Path
	case KindUnnamedPipe:
		return "pipe|" + id.Pid + "|" + id.ReadFD + "|" + id.WriteFD
	case KindUnixSocket:
		return "unixsocket|" + id.Path
	case KindNetworkSocket:
		return "netsocket|" + id.SourceHost + "|" + id.SourcePort + "|" + id.DestinationHost + "|" + id.DestinationPort + "|" + id.Protocol
	case KindMemory:
		return "memory|" + id.Pid + "|" + id.MemoryAddress + "|" + id.MemoryLength
	default:
		return "unknown|" + id.Pid + "|" + id.FD
	}
}

// String renders the identity for logs.
func (id Identity) String() string {
	switch id.Kind {
	case KindFile:
		return "file " + id.Path
	case KindNamedPipe:
		return "named pipe " + id.Path
	case KindUnnamedPipe:
		return fmt.Sprintf("pipe[%s-%s] pid %s", id.ReadFD, id.WriteFD, id.Pid)
	case KindUnixSocket:
		return "unix socket " + id.Path
	case KindNetworkSocket:
		return fmt.Sprintf("network %s:%s -> %s:%s (%s)", id.SourceHost, id.SourcePort, id.DestinationHost, id.DestinationPort, id.Protocol)
	case KindMemory:
		return fmt.Sprintf("memory %s len %s pid %s", id.MemoryAddress, id.MemoryLength, id.Pid)
	default:
		return fmt.Sprintf("unknown fd %s pid %s", id.FD, id.Pid)
	}
}
