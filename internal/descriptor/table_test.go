package descriptor

import (
	"testing"

	"auditgraph/internal/artifact"
)

func TestAddGetRemove(t *testing.T) {
	tables := NewTables()
	id := artifact.File("/tmp/x")
	tables.Add("10", "3", id)

	got, ok := tables.Get("10", "3")
	if !ok || got != id {
		t.Fatalf("expected stored identity back, got %v ok=%v", got, ok)
	}

	removed, ok := tables.Remove("10", "3")
	if !ok || removed != id {
		t.Fatalf("expected removed identity back, got %v ok=%v", removed, ok)
	}
	if _, ok := tables.Get("10", "3"); ok {
		t.Fatalf("descriptor should be gone after remove")
	}
}

func TestAddUnknownIsStable(t *testing.T) {
	tables := NewTables()
	first := tables.AddUnknown("10", "5")
	second := tables.AddUnknown("10", "5")
	if first != second {
		t.Fatalf("repeated AddUnknown must return the same identity")
	}
	if first.Kind != artifact.KindUnknown {
		t.Fatalf("unexpected kind: %v", first.Kind)
	}

	tables.Add("10", "6", artifact.File("/tmp/x"))
	kept := tables.AddUnknown("10", "6")
	if kept.Kind != artifact.KindFile {
		t.Fatalf("AddUnknown must not clobber a known descriptor")
	}
}

func TestLinkSharesTable(t *testing.T) {
	tables := NewTables()
	tables.Add("10", "3", artifact.File("/tmp/x"))
	tables.Link("11", "10")

	if got, ok := tables.Get("11", "3"); !ok || got.Path != "/tmp/x" {
		t.Fatalf("linked child should see parent descriptors, got %v ok=%v", got, ok)
	}

	// Writes through the child are visible to the parent while linked.
	tables.Add("11", "4", artifact.File("/tmp/y"))
	if _, ok := tables.Get("10", "4"); !ok {
		t.Fatalf("parent should see descriptors added via linked child")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	tables := NewTables()
	tables.Add("10", "3", artifact.File("/tmp/x"))
	tables.Copy("12", "10")

	if got, ok := tables.Get("12", "3"); !ok || got.Path != "/tmp/x" {
		t.Fatalf("copied child should inherit descriptors, got %v ok=%v", got, ok)
	}

	tables.Add("12", "4", artifact.File("/tmp/y"))
	if _, ok := tables.Get("10", "4"); ok {
		t.Fatalf("parent must not see descriptors added to a copied child")
	}
}

func TestUnlinkSeversSharing(t *testing.T) {
	tables := NewTables()
	tables.Add("10", "3", artifact.File("/tmp/x"))
	tables.Link("11", "10")
	tables.Unlink("11")

	if got, ok := tables.Get("11", "3"); !ok || got.Path != "/tmp/x" {
		t.Fatalf("unlinked child keeps a copy of its descriptors, got %v ok=%v", got, ok)
	}

	tables.Add("11", "4", artifact.File("/tmp/y"))
	if _, ok := tables.Get("10", "4"); ok {
		t.Fatalf("parent must not see child descriptors after unlink")
	}
}

func TestSnapshotRestore(t *testing.T) {
	tables := NewTables()
	tables.Add("10", "3", artifact.File("/tmp/x"))
	tables.Add("20", "0", artifact.UnnamedPipe("20", "0", "1"))

	snapshot := tables.Snapshot()

	restored := NewTables()
	restored.Restore(snapshot)
	if got, ok := restored.Get("10", "3"); !ok || got.Path != "/tmp/x" {
		t.Fatalf("restored table missing file descriptor, got %v ok=%v", got, ok)
	}
	if got, ok := restored.Get("20", "0"); !ok || got.Kind != artifact.KindUnnamedPipe {
		t.Fatalf("restored table missing pipe descriptor, got %v ok=%v", got, ok)
	}
}
