package syscalls

import "runtime"

// Arch selects the syscall numbering table.
type Arch int

const (
	Arch64 Arch = iota
	Arch32
)

// ParseArch maps a machine name to a numbering table.
func ParseArch(machine string) Arch {
	switch machine {
	case "32", "i386", "i486", "i586", "i686", "x86":
		return Arch32
	default:
		return Arch64
	}
}

// HostArch resolves the numbering table for the machine this process
// runs on, for live capture where the audited kernel is the local one.
func HostArch() Arch {
	switch runtime.GOARCH {
	case "386", "arm":
		return Arch32
	default:
		return Arch64
	}
}

var names64 = map[int]string{
	0:   "read",
	1:   "write",
	2:   "open",
	3:   "close",
	9:   "mmap",
	10:  "mprotect",
	17:  "pread64",
	18:  "pwrite64",
	19:  "readv",
	20:  "writev",
	22:  "pipe",
	32:  "dup",
	33:  "dup2",
	42:  "connect",
	43:  "accept",
	44:  "sendto",
	45:  "recvfrom",
	46:  "sendmsg",
	47:  "recvmsg",
	49:  "bind",
	56:  "clone",
	57:  "fork",
	58:  "vfork",
	59:  "execve",
	60:  "exit",
	62:  "kill",
	76:  "truncate",
	77:  "ftruncate",
	82:  "rename",
	85:  "creat",
	86:  "link",
	88:  "symlink",
	90:  "chmod",
	91:  "fchmod",
	105: "setuid",
	113: "setreuid",
	117: "setresuid",
	133: "mknod",
	231: "exit_group",
	257: "openat",
	259: "mknodat",
	288: "accept4",
	292: "dup3",
	293: "pipe2",
}

var names32 = map[int]string{
	1:   "exit",
	2:   "fork",
	3:   "read",
	4:   "write",
	5:   "open",
	6:   "close",
	8:   "creat",
	9:   "link",
	11:  "execve",
	14:  "mknod",
	15:  "chmod",
	23:  "setuid",
	37:  "kill",
	38:  "rename",
	41:  "dup",
	42:  "pipe",
	63:  "dup2",
	70:  "setreuid",
	83:  "symlink",
	90:  "mmap",
	92:  "truncate",
	93:  "ftruncate",
	94:  "fchmod",
	102: "socketcall",
	120: "clone",
	125: "mprotect",
	145: "readv",
	146: "writev",
	164: "setresuid",
	180: "pread64",
	181: "pwrite64",
	190: "vfork",
	192: "mmap2",
	203: "setreuid",
	208: "setresuid",
	213: "setuid",
	252: "exit_group",
	295: "openat",
	297: "mknodat",
	330: "dup3",
	331: "pipe2",
	359: "socket",
	361: "bind",
	362: "connect",
	364: "accept4",
	369: "sendto",
	370: "sendmsg",
	371: "recvfrom",
	372: "recvmsg",
}

// Name resolves a syscall number to its name for the given arch. The
// second return is false for numbers the dispatcher does not handle.
func Name(arch Arch, number int) (string, bool) {
	var name string
	var ok bool
	if arch == Arch32 {
		name, ok = names32[number]
	} else {
		name, ok = names64[number]
	}
	return name, ok
}
