package descriptor

import (
	"auditgraph/internal/artifact"
)

// Tables tracks open file descriptors per process. A clone that shares
// the parent's file table aliases the same inner map; a fork gets an
// independent copy; an exec severs any alias while keeping the entries.
type Tables struct {
	perPid map[string]map[string]artifact.Identity
}

// NewTables creates empty descriptor tables.
func NewTables() *Tables {
	return &Tables{perPid: make(map[string]map[string]artifact.Identity)}
}

func (t *Tables) table(pid string) map[string]artifact.Identity {
	table, ok := t.perPid[pid]
	if !ok {
		table = make(map[string]artifact.Identity)
		t.perPid[pid] = table
	}
	return table
}

// Add records the identity behind a descriptor.
func (t *Tables) Add(pid, fd string, identity artifact.Identity) {
	t.table(pid)[fd] = identity
}

// Get returns the identity behind a descriptor.
func (t *Tables) Get(pid, fd string) (artifact.Identity, bool) {
	table, ok := t.perPid[pid]
	if !ok {
		return artifact.Identity{}, false
	}
	identity, ok := table[fd]
	return identity, ok
}

// AddUnknown returns the identity behind a descriptor, registering an
// unknown placeholder when the descriptor was never observed.
func (t *Tables) AddUnknown(pid, fd string) artifact.Identity {
	table := t.table(pid)
	if identity, ok := table[fd]; ok {
		return identity
	}
	identity := artifact.Unknown(pid, fd)
	table[fd] = identity
	return identity
}

// Remove drops a descriptor and returns the identity it held.
func (t *Tables) Remove(pid, fd string) (artifact.Identity, bool) {
	table, ok := t.perPid[pid]
	if !ok {
		return artifact.Identity{}, false
	}
	identity, ok := table[fd]
	if ok {
		delete(table, fd)
	}
	return identity, ok
}

// Link makes the child share the parent's descriptor table. Later
// changes through either pid are visible to both.
func (t *Tables) Link(childPid, parentPid string) {
	t.perPid[childPid] = t.table(parentPid)
}

// Copy gives the child an independent copy of the parent's table.
func (t *Tables) Copy(childPid, parentPid string) {
	parent := t.table(parentPid)
	child := make(map[string]artifact.Identity, len(parent))
	for fd, identity := range parent {
		child[fd] = identity
	}
	t.perPid[childPid] = child
}

// Unlink severs any table sharing for the pid while keeping its
// entries. Descriptors survive an exec; the shared view does not.
func (t *Tables) Unlink(pid string) {
	table, ok := t.perPid[pid]
	if !ok {
		return
	}
	own := make(map[string]artifact.Identity, len(table))
	for fd, identity := range table {
		own[fd] = identity
	}
	t.perPid[pid] = own
}

// RemoveProcess drops the whole table for a pid.
func (t *Tables) RemoveProcess(pid string) {
	delete(t.perPid, pid)
}

// Snapshot returns a deep copy for checkpointing. Table aliasing is
// not preserved across a snapshot/restore cycle.
func (t *Tables) Snapshot() map[string]map[string]artifact.Identity {
	out := make(map[string]map[string]artifact.Identity, len(t.perPid))
	for pid, table := range t.perPid {
		copied := make(map[string]artifact.Identity, len(table))
		for fd, identity := range table {
			copied[fd] = identity
		}
		out[pid] = copied
	}
	return out
}

// Restore replaces all tables from a snapshot.
func (t *Tables) Restore(snapshot map[string]map[string]artifact.Identity) {
	t.perPid = make(map[string]map[string]artifact.Identity, len(snapshot))
	for pid, table := range snapshot {
		copied := make(map[string]artifact.Identity, len(table))
		for fd, identity := range table {
			copied[fd] = identity
		}
		t.perPid[pid] = copied
	}
}
