package artifact

// Properties tracks mutable bookkeeping for one artifact identity:
// monotonically increasing content version, reuse epoch, and the id of
// the audit event that created the current epoch.
type Properties struct {
	Version         int64  `json:"version"`
	Epoch           int64  `json:"epoch"`
	CreationEventID string `json:"creation_event_id,omitempty"`
	Seen            bool   `json:"seen,omitempty"`
}

const versionUninitialized = -1

// NewProperties returns properties with an uninitialized version and
// epoch zero.
func NewProperties() *Properties {
	return &Properties{Version: versionUninitialized}
}

// Initialized reports whether a version was ever assigned in the
// current epoch.
func (p *Properties) Initialized() bool {
	return p.Version != versionUninitialized
}

// MarkNewEpoch records a creation of the underlying object. The version
// resets to uninitialized and the creating event id is retained for
// identity disambiguation. The epoch increments only when the identity
// was observed before; the very first creation stays at epoch zero.
func (p *Properties) MarkNewEpoch(eventID string) {
	if p.Seen {
		p.Epoch++
	}
	p.Seen = true
	p.Version = versionUninitialized
	p.CreationEventID = eventID
}

// NextVersion returns the version to stamp on the next emitted artifact
// vertex. The first observation in an epoch yields version 0 regardless
// of update; afterwards update increments while plain reads keep the
// version.
func (p *Properties) NextVersion(update bool) int64 {
	p.Seen = true
	if p.Version == versionUninitialized {
		p.Version = 0
	} else if update {
		p.Version++
	}
	return p.Version
}
