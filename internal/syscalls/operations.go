package syscalls

// Pseudo operations emitted on edges without a direct syscall.
const (
	OpUnknown = "unknown"
	OpUpdate  = "update"
	OpCreate  = "create"
	OpLoad    = "load"
	OpUnit    = "unit"
	OpSend    = "send"
	OpRecv    = "recv"
)

var simplified = map[string]string{
	"pipe2":      "pipe",
	"exit_group": "exit",
	"dup2":       "dup",
	"dup3":       "dup",
	"mknodat":    "mknod",
	"mmap2":      "mmap",
	"openat":     "open",
	"creat":      "open",
	"vfork":      "fork",
	"fchmod":     "chmod",
	"sendto":     OpSend,
	"sendmsg":    OpSend,
	"recvfrom":   OpRecv,
	"recvmsg":    OpRecv,
	"ftruncate":  "truncate",
	"readv":      "read",
	"pread64":    "read",
	"writev":     "write",
	"pwrite64":   "write",
	"accept4":    "accept",
	"symlink":    "link",
	"setreuid":   "setuid",
	"setresuid":  "setuid",
}

// Operation returns the edge operation annotation for a syscall name.
// With simplify on, variant syscalls collapse into their base family.
func Operation(name string, simplify bool) string {
	if simplify {
		if base, ok := simplified[name]; ok {
			return base
		}
	}
	return name
}
