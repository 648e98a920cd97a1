package assembler

import (
	"testing"

	"auditgraph/internal/cache"
	"auditgraph/internal/store"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Put(key string, value []byte) error {
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Get(key string) ([]byte, error) {
	value, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return value, nil
}

func (s *memStore) Delete(key string) error {
	delete(s.data, key)
	return nil
}

func (s *memStore) Close() error { return nil }

func newTestAssembler(t *testing.T, handler Handler) *Assembler {
	t.Helper()
	buffer, err := cache.New[map[string]string](cache.Options{MaxEntries: 64}, newMemStore())
	if err != nil {
		t.Fatalf("failed to create event buffer: %v", err)
	}
	return New(buffer, handler)
}

func TestAssemblesMultiRecordEvent(t *testing.T) {
	var events []map[string]string
	a := newTestAssembler(t, func(event map[string]string) {
		events = append(events, event)
	})

	a.ParseLine(`type=SYSCALL msg=audit(1449544783.123:567): arch=c000003e syscall=2 success=yes exit=3 a0=7f0 a1=0 a2=1b6 a3=0 items=1 ppid=100 pid=200 auid=1000 uid=1000 gid=1000 euid=1000 suid=1000 fsuid=1000 egid=1000 sgid=1000 fsgid=1000 comm="cat" exe="/bin/cat"`)
	a.ParseLine(`type=CWD msg=audit(1449544783.123:567): cwd="/home/user"`)
	a.ParseLine(`type=PATH msg=audit(1449544783.123:567): item=0 name="notes.txt" inode=393 dev=08:02 mode=0100644 ouid=1000 ogid=1000 rdev=00:00 nametype=NORMAL`)

	if len(events) != 0 {
		t.Fatalf("event must not finalize before its closing record")
	}

	a.ParseLine(`type=EOE msg=audit(1449544783.123:567): `)

	if len(events) != 1 {
		t.Fatalf("expected 1 finalized event, got %d", len(events))
	}
	event := events[0]
	checks := map[string]string{
		"eventid":   "567",
		"time":      "1449544783.123",
		"syscall":   "2",
		"exit":      "3",
		"pid":       "200",
		"comm":      "cat",
		"exe":       "/bin/cat",
		"cwd":       "/home/user",
		"path0":     "notes.txt",
		"nametype0": "NORMAL",
	}
	for key, want := range checks {
		if event[key] != want {
			t.Fatalf("event[%q] = %q, want %q", key, event[key], want)
		}
	}
}

func TestEventsInterleaveByID(t *testing.T) {
	var events []map[string]string
	a := newTestAssembler(t, func(event map[string]string) {
		events = append(events, event)
	})

	a.ParseLine(`type=SYSCALL msg=audit(100.001:1): syscall=2 pid=10 exit=3`)
	a.ParseLine(`type=SYSCALL msg=audit(100.002:2): syscall=0 pid=20 exit=9`)
	a.ParseLine(`type=EOE msg=audit(100.002:2): `)
	a.ParseLine(`type=EOE msg=audit(100.001:1): `)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0]["pid"] != "20" || events[1]["pid"] != "10" {
		t.Fatalf("events finalized in wrong order: %v", events)
	}
}

func TestExecveRecordsArePrefixed(t *testing.T) {
	var events []map[string]string
	a := newTestAssembler(t, func(event map[string]string) {
		events = append(events, event)
	})

	a.ParseLine(`type=SYSCALL msg=audit(100.001:7): syscall=59 pid=10 exit=0`)
	a.ParseLine(`type=EXECVE msg=audit(100.001:7): argc=2 a0="ls" a1="-l"`)
	a.ParseLine(`type=EOE msg=audit(100.001:7): `)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	event := events[0]
	if event["execve_argc"] != "2" || event["execve_a0"] != "ls" || event["execve_a1"] != "-l" {
		t.Fatalf("execve fields not prefixed as expected: %v", event)
	}
	// The syscall a0 must not be clobbered by the execve record.
	if event["a0"] != "" {
		t.Fatalf("execve argument leaked into syscall argument: %q", event["a0"])
	}
}

func TestHexEncodedPathsAreDecoded(t *testing.T) {
	var events []map[string]string
	a := newTestAssembler(t, func(event map[string]string) {
		events = append(events, event)
	})

	// "/tmp/a b" hex-encoded, as audit emits names containing spaces.
	a.ParseLine(`type=SYSCALL msg=audit(100.001:9): syscall=2 pid=10 exit=3`)
	a.ParseLine(`type=PATH msg=audit(100.001:9): item=0 name=2F746D702F612062 inode=1 nametype=NORMAL`)
	a.ParseLine(`type=EOE msg=audit(100.001:9): `)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0]["path0"] != "/tmp/a b" {
		t.Fatalf("hex path not decoded, got %q", events[0]["path0"])
	}
}

func TestUnparseableLineIsIgnored(t *testing.T) {
	called := false
	a := newTestAssembler(t, func(event map[string]string) {
		called = true
	})

	a.ParseLine("not an audit line at all")
	if called {
		t.Fatalf("garbage input must not produce events")
	}
}

func TestCloseWithoutOpenIsIgnored(t *testing.T) {
	called := false
	a := newTestAssembler(t, func(event map[string]string) {
		called = true
	})

	a.ParseLine(`type=EOE msg=audit(100.001:99): `)
	if called {
		t.Fatalf("a bare closing record must not produce an event")
	}
}

func TestSingleRecordEventFinalizesImmediately(t *testing.T) {
	var events []map[string]string
	a := newTestAssembler(t, func(event map[string]string) {
		events = append(events, event)
	})

	// Packet records close themselves; there is no EOE to wait for.
	a.ParseLine(`type=NETFILTER_PKT msg=audit(100.001:42): mark=0x0 saddr=10.0.0.1 daddr=10.0.0.2 proto=17`)

	if len(events) != 1 {
		t.Fatalf("expected 1 finalized event, got %d", len(events))
	}
	event := events[0]
	if event["eventid"] != "42" || event["saddr"] != "10.0.0.1" || event["proto"] != "17" {
		t.Fatalf("packet attributes not delivered: %v", event)
	}
}

func TestDecodeHexUTF8(t *testing.T) {
	if got := DecodeHexUTF8("2F746D702F78"); got != "/tmp/x" {
		t.Fatalf("DecodeHexUTF8 = %q, want /tmp/x", got)
	}
	if got := DecodeHexUTF8("2F746D702F7800"); got != "/tmp/x" {
		t.Fatalf("trailing null must be dropped, got %q", got)
	}
	if got := DecodeHexUTF8("not-hex"); got != "not-hex" {
		t.Fatalf("non-hex input must pass through, got %q", got)
	}
}
