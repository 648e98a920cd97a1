package artifact

import "testing"

func TestFreshCreateGetsVersionZeroEpochZero(t *testing.T) {
	p := NewProperties()
	p.MarkNewEpoch("100")

	if p.Epoch != 0 {
		t.Fatalf("first epoch should be 0, got %d", p.Epoch)
	}
	if v := p.NextVersion(true); v != 0 {
		t.Fatalf("first version should be 0, got %d", v)
	}
	if p.CreationEventID != "100" {
		t.Fatalf("unexpected creation event id: %q", p.CreationEventID)
	}
}

func TestVersionAdvancesOnlyOnUpdate(t *testing.T) {
	p := NewProperties()

	if v := p.NextVersion(false); v != 0 {
		t.Fatalf("uninitialized read should yield version 0, got %d", v)
	}
	if v := p.NextVersion(false); v != 0 {
		t.Fatalf("repeated read should keep version 0, got %d", v)
	}
	if v := p.NextVersion(true); v != 1 {
		t.Fatalf("write should advance to version 1, got %d", v)
	}
	if v := p.NextVersion(false); v != 1 {
		t.Fatalf("read after write should keep version 1, got %d", v)
	}
}

func TestRecreateBumpsEpochAndResetsVersion(t *testing.T) {
	p := NewProperties()
	p.MarkNewEpoch("100")
	p.NextVersion(true)
	p.NextVersion(true)

	p.MarkNewEpoch("200")
	if p.Epoch != 1 {
		t.Fatalf("second create should bump epoch to 1, got %d", p.Epoch)
	}
	if v := p.NextVersion(true); v != 0 {
		t.Fatalf("version should restart at 0 in a new epoch, got %d", v)
	}
	if p.CreationEventID != "200" {
		t.Fatalf("creation event id should follow the latest epoch, got %q", p.CreationEventID)
	}
}

func TestInitialized(t *testing.T) {
	p := NewProperties()
	if p.Initialized() {
		t.Fatalf("fresh properties must not be initialized")
	}
	p.NextVersion(false)
	if !p.Initialized() {
		t.Fatalf("properties must be initialized after first version")
	}
}
