package reporter

import (
	"auditgraph/internal/artifact"
	"auditgraph/pkg/models"
)

// State is the reporter's serializable runtime state, captured for
// checkpoints. Only bookkeeping lives here; artifact version properties
// are persisted separately through the artifacts cache.
type State struct {
	Descriptors       map[string]map[string]artifact.Identity `json:"descriptors"`
	PidToMemAddress   map[string]uint64                       `json:"pid_to_mem_address"`
	RepetitionCounts  []repetitionCount                       `json:"repetition_counts"`
	IterationNumbers  map[string]map[string]int64             `json:"iteration_numbers"`
	ProcessUnitStacks map[string][]*models.Vertex             `json:"process_unit_stacks"`
	LastTimestamp     string                                  `json:"last_timestamp"`
}

type repetitionCount struct {
	unitKey
	Count int64 `json:"count"`
}

// ExportState snapshots the reporter for a checkpoint.
func (r *Reporter) ExportState() *State {
	state := &State{
		Descriptors:       r.descriptors.Snapshot(),
		PidToMemAddress:   make(map[string]uint64, len(r.pidToMemAddress)),
		RepetitionCounts:  make([]repetitionCount, 0, len(r.repetitionCounts)),
		IterationNumbers:  make(map[string]map[string]int64, len(r.iterationNumber)),
		ProcessUnitStacks: make(map[string][]*models.Vertex, len(r.processUnitStack)),
		LastTimestamp:     r.lastTimestamp,
	}
	for pid, address := range r.pidToMemAddress {
		state.PidToMemAddress[pid] = address
	}
	for key, count := range r.repetitionCounts {
		state.RepetitionCounts = append(state.RepetitionCounts, repetitionCount{unitKey: key, Count: count})
	}
	for pid, perUnit := range r.iterationNumber {
		copied := make(map[string]int64, len(perUnit))
		for unitID, n := range perUnit {
			copied[unitID] = n
		}
		state.IterationNumbers[pid] = copied
	}
	for pid, stack := range r.processUnitStack {
		state.ProcessUnitStacks[pid] = append([]*models.Vertex(nil), stack...)
	}
	return state
}

// ImportState restores a checkpoint snapshot, replacing all runtime
// bookkeeping.
func (r *Reporter) ImportState(state *State) {
	if state == nil {
		return
	}
	r.descriptors.Restore(state.Descriptors)
	r.pidToMemAddress = make(map[string]uint64, len(state.PidToMemAddress))
	for pid, address := range state.PidToMemAddress {
		r.pidToMemAddress[pid] = address
	}
	r.repetitionCounts = make(map[unitKey]int64, len(state.RepetitionCounts))
	for _, entry := range state.RepetitionCounts {
		r.repetitionCounts[entry.unitKey] = entry.Count
	}
	r.iterationNumber = make(map[string]map[string]int64, len(state.IterationNumbers))
	for pid, perUnit := range state.IterationNumbers {
		copied := make(map[string]int64, len(perUnit))
		for unitID, n := range perUnit {
			copied[unitID] = n
		}
		r.iterationNumber[pid] = copied
	}
	r.processUnitStack = make(map[string][]*models.Vertex, len(state.ProcessUnitStacks))
	for pid, stack := range state.ProcessUnitStacks {
		r.processUnitStack[pid] = append([]*models.Vertex(nil), stack...)
	}
	r.lastTimestamp = state.LastTimestamp
}
