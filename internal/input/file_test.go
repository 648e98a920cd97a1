package input

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	return path
}

func collect(t *testing.T, feed *FileFeed) []string {
	t.Helper()
	var out []string
	for line := range feed.Lines() {
		out = append(out, line)
	}
	if err := feed.Err(); err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	return out
}

func TestFileFeedStreamsInFileOrder(t *testing.T) {
	lines := []string{
		"type=SYSCALL msg=audit(1449544783.100:2): syscall=2",
		"type=SYSCALL msg=audit(1449544783.000:1): syscall=1",
		"type=EOE msg=audit(1449544783.100:2): ",
	}
	path := writeLog(t, lines)

	feed, err := NewFileFeed(path, false)
	if err != nil {
		t.Fatalf("failed to open feed: %v", err)
	}
	defer feed.Close()

	got := collect(t, feed)
	if len(got) != len(lines) {
		t.Fatalf("expected %d lines, got %d", len(lines), len(got))
	}
	for i := range lines {
		if got[i] != lines[i] {
			t.Fatalf("line %d reordered: %q", i, got[i])
		}
	}
}

func TestFileFeedSortsByTimestampAndEventID(t *testing.T) {
	path := writeLog(t, []string{
		"type=SYSCALL msg=audit(1449544784.000:3): syscall=2",
		"type=SYSCALL msg=audit(1449544783.000:1): syscall=1",
		"type=PATH msg=audit(1449544784.000:3): item=0",
		"type=SYSCALL msg=audit(1449544783.500:2): syscall=3",
	})

	feed, err := NewFileFeed(path, true)
	if err != nil {
		t.Fatalf("failed to open feed: %v", err)
	}
	defer feed.Close()

	got := collect(t, feed)
	want := []string{
		"type=SYSCALL msg=audit(1449544783.000:1): syscall=1",
		"type=SYSCALL msg=audit(1449544783.500:2): syscall=3",
		"type=SYSCALL msg=audit(1449544784.000:3): syscall=2",
		"type=PATH msg=audit(1449544784.000:3): item=0",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d out of order: %q", i, got[i])
		}
	}
}

func TestFileFeedSortKeepsRecordOrderWithinEvent(t *testing.T) {
	// Two records of one event must never swap, whatever their type.
	path := writeLog(t, []string{
		"type=PATH msg=audit(1449544783.000:1): item=0",
		"type=PATH msg=audit(1449544783.000:1): item=1",
		"type=EOE msg=audit(1449544783.000:1): ",
	})

	feed, err := NewFileFeed(path, true)
	if err != nil {
		t.Fatalf("failed to open feed: %v", err)
	}
	defer feed.Close()

	got := collect(t, feed)
	if got[0] != "type=PATH msg=audit(1449544783.000:1): item=0" ||
		got[1] != "type=PATH msg=audit(1449544783.000:1): item=1" {
		t.Fatalf("records within one event reordered: %v", got)
	}
}

func TestFileFeedMissingFile(t *testing.T) {
	if _, err := NewFileFeed(filepath.Join(t.TempDir(), "missing.log"), false); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
