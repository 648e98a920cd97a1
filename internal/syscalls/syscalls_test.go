package syscalls

import (
	"runtime"
	"testing"
)

func TestNameLookupPerArch(t *testing.T) {
	if name, ok := Name(Arch64, 2); !ok || name != "open" {
		t.Fatalf("expected 64-bit syscall 2 to be open, got %q ok=%v", name, ok)
	}
	if name, ok := Name(Arch32, 5); !ok || name != "open" {
		t.Fatalf("expected 32-bit syscall 5 to be open, got %q ok=%v", name, ok)
	}
	if _, ok := Name(Arch64, 99999); ok {
		t.Fatalf("expected unknown syscall number to miss")
	}
}

func TestParseArch(t *testing.T) {
	if ParseArch("x86_64") != Arch64 {
		t.Fatalf("x86_64 should map to the 64-bit table")
	}
	if ParseArch("i686") != Arch32 {
		t.Fatalf("i686 should map to the 32-bit table")
	}
	if ParseArch("32") != Arch32 {
		t.Fatalf("\"32\" should map to the 32-bit table")
	}
}

func TestHostArch(t *testing.T) {
	want := Arch64
	if runtime.GOARCH == "386" || runtime.GOARCH == "arm" {
		want = Arch32
	}
	if got := HostArch(); got != want {
		t.Fatalf("HostArch() = %v on %s, want %v", got, runtime.GOARCH, want)
	}
}

func TestOperationSimplification(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"openat", "open"},
		{"creat", "open"},
		{"dup2", "dup"},
		{"vfork", "fork"},
		{"sendmsg", "send"},
		{"recvfrom", "recv"},
		{"pwrite64", "write"},
		{"exit_group", "exit"},
		{"setresuid", "setuid"},
	}
	for _, c := range cases {
		if got := Operation(c.name, true); got != c.want {
			t.Fatalf("Operation(%q, true) = %q, want %q", c.name, got, c.want)
		}
	}
	if got := Operation("openat", false); got != "openat" {
		t.Fatalf("without simplification the syscall name must pass through, got %q", got)
	}
}
